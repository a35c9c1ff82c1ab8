package core

import "errors"

// AudioMode selects which PDM microphone(s) feed the PCM stream.
type AudioMode uint8

const (
	AudioModeLeft AudioMode = iota
	AudioModeRight
	AudioModeStereo
)

// AudioConfig holds the build-time audio parameters.
type AudioConfig struct {
	SampleRate     uint32
	FrameSize      int // samples per frame
	DecimationRate int // PDM bits per PCM sample
	WordLength     int // bits
	LeftGainDB     int8
	RightGainDB    int8
	Mode           AudioMode
}

// DefaultAudioConfig is 16 kHz left-channel mono with a 3 dB boost.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:     16000,
		FrameSize:      1024,
		DecimationRate: 64,
		WordLength:     16,
		LeftGainDB:     3,
		RightGainDB:    0,
		Mode:           AudioModeLeft,
	}
}

var (
	ErrInvalidFrameSize  = errors.New("invalid audio frame size")
	ErrInvalidDecimation = errors.New("invalid decimation rate")
	ErrInvalidWordLength = errors.New("unsupported pcm word length")
)

// Validate checks the configuration before any hardware is touched.
func (c AudioConfig) Validate() error {
	if _, err := AudioPLLFrequency(c.SampleRate); err != nil {
		return err
	}
	if c.FrameSize <= 0 {
		return ErrInvalidFrameSize
	}
	if c.DecimationRate <= 0 || c.DecimationRate%32 != 0 {
		return ErrInvalidDecimation
	}
	if c.WordLength != 16 {
		return ErrInvalidWordLength
	}
	return nil
}

// FramePeriod returns the duration of one frame in timer ticks, rounded
// down.
func (c AudioConfig) FramePeriod() uint32 {
	return uint32(uint64(c.FrameSize) * TimerFreq / uint64(c.SampleRate))
}

// PCMSource is the PDM/PCM converter driver. ReadAsync arms one transfer
// of len(dst) samples; when it completes the driver calls the completion
// handler from interrupt context.
type PCMSource interface {
	Init(cfg AudioConfig) error
	SetCompletionHandler(fn func())
	Start() error
	ReadAsync(dst []int16)
}

// AudioChannel captures PCM frames through a ping-pong buffer pair.
type AudioChannel struct {
	cfg     AudioConfig
	src     PCMSource
	pair    *BufferPair
	frame   []byte
	running bool
}

// NewAudioChannel allocates the buffer pair and the outgoing frame.
func NewAudioChannel(cfg AudioConfig, src PCMSource) *AudioChannel {
	return &AudioChannel{
		cfg:   cfg,
		src:   src,
		pair:  NewBufferPair(cfg.FrameSize),
		frame: make([]byte, AudioLayout(cfg.FrameSize).Size()),
	}
}

func (a *AudioChannel) ID() ChannelID  { return ChannelAudio }
func (a *AudioChannel) Layout() Layout { return AudioLayout(a.cfg.FrameSize) }

func (a *AudioChannel) attach(flag *ReadyFlag) {
	a.pair.attach(flag)
}

// Pair exposes the buffer pair for inspection.
func (a *AudioChannel) Pair() *BufferPair {
	return a.pair
}

// Running reports whether Init completed.
func (a *AudioChannel) Running() bool {
	return a.running
}

// Init provisions the audio clock, starts the converter and arms the
// first capture into slot 0.
func (a *AudioChannel) Init(res Resources) error {
	if err := a.cfg.Validate(); err != nil {
		return stepError(ChannelAudio, StepPCMInit, err)
	}
	if err := ProvisionAudioClock(res.Clocks, a.cfg.SampleRate); err != nil {
		return err
	}
	if err := a.src.Init(a.cfg); err != nil {
		return stepError(ChannelAudio, StepPCMInit, err)
	}
	a.pair.reset()
	a.src.SetCompletionHandler(a.HandleComplete)
	if err := a.src.Start(); err != nil {
		return stepError(ChannelAudio, StepPCMStart, err)
	}
	a.running = true
	a.src.ReadAsync(a.pair.Samples(a.pair.Active()))
	return nil
}

// HandleComplete runs in interrupt context when a capture finishes.
// Re-arming is unconditional and always the last action.
func (a *AudioChannel) HandleComplete() {
	next := a.pair.SwapAndMarkFull()
	a.src.ReadAsync(a.pair.Samples(next))
}

func (a *AudioChannel) Ready() bool {
	_, ok := a.pair.TakeFull()
	return ok
}

// Service copies the full slot into the outgoing frame and then releases
// it. The returned frame is owned by the channel.
func (a *AudioChannel) Service() []byte {
	slot, ok := a.pair.TakeFull()
	if !ok {
		return a.frame
	}
	PutInt16s(a.frame, a.pair.Samples(slot))
	a.pair.Release(slot)
	return a.frame
}
