package core

import "errors"

// InitStep names one provisioning step. A failing step is reported in an
// InitError so boot logs say exactly where bring-up stopped.
type InitStep uint8

const (
	StepSinkInit InitStep = iota + 1
	StepPLLReserve
	StepPLLFrequency
	StepPLLEnable
	StepRootReserve
	StepRootSource
	StepRootEnable
	StepTimerInit
	StepTimerConfigure
	StepTimerFrequency
	StepTimerCallback
	StepTimerEvent
	StepTimerStart
	StepPCMInit
	StepPCMStart
	StepSensorInit
)

var stepNames = [...]string{
	StepSinkInit:       "sink init",
	StepPLLReserve:     "pll reserve",
	StepPLLFrequency:   "pll frequency",
	StepPLLEnable:      "pll enable",
	StepRootReserve:    "root clock reserve",
	StepRootSource:     "root clock source",
	StepRootEnable:     "root clock enable",
	StepTimerInit:      "timer init",
	StepTimerConfigure: "timer configure",
	StepTimerFrequency: "timer frequency",
	StepTimerCallback:  "timer callback",
	StepTimerEvent:     "timer event",
	StepTimerStart:     "timer start",
	StepPCMInit:        "pcm init",
	StepPCMStart:       "pcm start",
	StepSensorInit:     "sensor init",
}

func (s InitStep) String() string {
	if int(s) < len(stepNames) && stepNames[s] != "" {
		return stepNames[s]
	}
	return "step" + utoa(uint32(s))
}

// InitError reports the channel and step at which initialisation failed.
type InitError struct {
	Channel ChannelID
	Step    InitStep
	Err     error
}

func (e *InitError) Error() string {
	msg := e.Channel.String() + ": " + e.Step.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InitError) Unwrap() error {
	return e.Err
}

func stepError(ch ChannelID, step InitStep, err error) error {
	if err == nil {
		return nil
	}
	return &InitError{Channel: ch, Step: step, Err: err}
}

// Audio master clock frequencies. Each divides down to its family of
// PCM sample rates with an integer ratio.
const (
	AudioPLL48kFamily = 24576000 // 8, 12, 16, 24, 32, 48, 96 kHz
	AudioPLL44kFamily = 22579200 // 11.025, 22.05, 44.1 kHz
)

var ErrUnsupportedSampleRate = errors.New("unsupported pcm sample rate")

// AudioPLLFrequency returns the audio PLL frequency for sampleRate.
func AudioPLLFrequency(sampleRate uint32) (uint32, error) {
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 32000, 48000, 96000:
		return AudioPLL48kFamily, nil
	case 11025, 22050, 44100:
		return AudioPLL44kFamily, nil
	}
	return 0, ErrUnsupportedSampleRate
}

// ClockProvider programs the audio clock domain. Implementations are
// platform specific; every method is called once, in order, at boot.
type ClockProvider interface {
	ReservePLL() error
	SetPLLFrequency(hz uint32) error
	EnablePLL() error
	ReserveAudioRoot() error
	SelectAudioRootSource() error
	EnableAudioRoot() error
}

// ProvisionAudioClock brings the PLL up at the frequency matching
// sampleRate and routes the audio root clock from it.
func ProvisionAudioClock(c ClockProvider, sampleRate uint32) error {
	hz, err := AudioPLLFrequency(sampleRate)
	if err != nil {
		return stepError(ChannelAudio, StepPLLFrequency, err)
	}
	if err := c.ReservePLL(); err != nil {
		return stepError(ChannelAudio, StepPLLReserve, err)
	}
	if err := c.SetPLLFrequency(hz); err != nil {
		return stepError(ChannelAudio, StepPLLFrequency, err)
	}
	if err := c.EnablePLL(); err != nil {
		return stepError(ChannelAudio, StepPLLEnable, err)
	}
	if err := c.ReserveAudioRoot(); err != nil {
		return stepError(ChannelAudio, StepRootReserve, err)
	}
	if err := c.SelectAudioRootSource(); err != nil {
		return stepError(ChannelAudio, StepRootSource, err)
	}
	if err := c.EnableAudioRoot(); err != nil {
		return stepError(ChannelAudio, StepRootEnable, err)
	}
	return nil
}

// TimerID identifies a periodic hardware timer. Each timer is owned by
// exactly one channel for the life of the system.
type TimerID uint8

// TimerProvider programs periodic timers. Callbacks run in interrupt
// context at the priority given to EnableTimerEvent; lower numbers are
// more urgent.
type TimerProvider interface {
	InitTimer(id TimerID) error
	ConfigureTimer(id TimerID, period uint32) error
	SetTimerFrequency(id TimerID, hz uint32) error
	RegisterTimerCallback(id TimerID, fn func()) error
	EnableTimerEvent(id TimerID, priority uint8) error
	StartTimer(id TimerID) error
}

// AudioIRQPriority is the priority of the capture-complete interrupt.
// Polled-channel timers must be strictly less urgent.
const AudioIRQPriority = 2

var ErrPriority = errors.New("timer priority must be below audio")

// ProvisionTimer brings up the periodic timer for one polled channel.
func ProvisionTimer(t TimerProvider, ch ChannelID, id TimerID, cfg PolledConfig, tick func()) error {
	if cfg.Priority <= AudioIRQPriority {
		return stepError(ch, StepTimerEvent, ErrPriority)
	}
	if err := t.InitTimer(id); err != nil {
		return stepError(ch, StepTimerInit, err)
	}
	if err := t.ConfigureTimer(id, cfg.Period()); err != nil {
		return stepError(ch, StepTimerConfigure, err)
	}
	if err := t.SetTimerFrequency(id, cfg.TimerFreq); err != nil {
		return stepError(ch, StepTimerFrequency, err)
	}
	if err := t.RegisterTimerCallback(id, tick); err != nil {
		return stepError(ch, StepTimerCallback, err)
	}
	if err := t.EnableTimerEvent(id, cfg.Priority); err != nil {
		return stepError(ch, StepTimerEvent, err)
	}
	if err := t.StartTimer(id); err != nil {
		return stepError(ch, StepTimerStart, err)
	}
	return nil
}
