package core

import (
	"encoding/binary"
	"errors"
	"math"
)

// ChannelID is the transport identifier a frame is tagged with when it is
// handed to the sink. Values are part of the host wire format.
type ChannelID uint8

const (
	ChannelAudio        ChannelID = 0
	ChannelIMU          ChannelID = 1
	ChannelPressure     ChannelID = 2
	ChannelRadar        ChannelID = 3
	ChannelGyro         ChannelID = 4
	ChannelMagnetometer ChannelID = 5

	MaxChannels = 8
)

func (id ChannelID) String() string {
	switch id {
	case ChannelAudio:
		return "audio"
	case ChannelIMU:
		return "imu"
	case ChannelPressure:
		return "pressure"
	case ChannelRadar:
		return "radar"
	case ChannelGyro:
		return "gyro"
	case ChannelMagnetometer:
		return "magnetometer"
	}
	return "channel" + utoa(uint32(id))
}

// SampleKind is the interpretation of the samples in a frame.
type SampleKind uint8

const (
	SamplePCM16   SampleKind = iota + 1 // signed 16-bit PCM
	SampleFloat32                       // IEEE-754 single precision
	SampleUint16                        // unsigned 16-bit word
)

// Width returns the sample width in bits.
func (k SampleKind) Width() int {
	switch k {
	case SamplePCM16, SampleUint16:
		return 16
	case SampleFloat32:
		return 32
	}
	return 0
}

func (k SampleKind) String() string {
	switch k {
	case SamplePCM16:
		return "pcm16"
	case SampleFloat32:
		return "float32"
	case SampleUint16:
		return "uint16"
	}
	return "unknown"
}

// Layout describes a channel's fixed frame shape. Samples are encoded
// little-endian.
type Layout struct {
	Kind  SampleKind
	Count int
}

// Size returns the frame length in bytes.
func (l Layout) Size() int {
	return l.Kind.Width() / 8 * l.Count
}

// Radar frame dimensions.
const (
	RadarSamplesPerChirp = 128
	RadarChirpsPerFrame  = 16
	RadarAntennas        = 1
	RadarFrameSamples    = RadarSamplesPerChirp * RadarChirpsPerFrame * RadarAntennas
)

// AxisCount is the number of axes of the inertial and magnetic channels.
const AxisCount = 3

var (
	IMULayout          = Layout{Kind: SampleFloat32, Count: AxisCount}
	GyroLayout         = Layout{Kind: SampleFloat32, Count: AxisCount}
	PressureLayout     = Layout{Kind: SampleFloat32, Count: 2}
	RadarLayout        = Layout{Kind: SampleUint16, Count: RadarFrameSamples}
	MagnetometerLayout = Layout{Kind: SampleFloat32, Count: AxisCount}
)

// AudioLayout returns the layout of an audio frame of frameSize samples.
func AudioLayout(frameSize int) Layout {
	return Layout{Kind: SamplePCM16, Count: frameSize}
}

// Resources are the hardware provisioning collaborators handed to each
// channel during initialisation.
type Resources struct {
	Clocks ClockProvider
	Timers TimerProvider
}

// Channel is one logical sensor stream.
//
// Init runs once before the scheduler starts. Ready and Service are
// called from the foreground only; Service must only be called after
// Ready returned true and returns a frame of exactly Layout().Size()
// bytes, valid until the next Service call.
type Channel interface {
	ID() ChannelID
	Layout() Layout
	Init(res Resources) error
	Ready() bool
	Service() []byte

	attach(flag *ReadyFlag)
}

var (
	ErrDuplicateChannel = errors.New("channel already declared")
	ErrChannelRange     = errors.New("channel id out of range")
)

// Registry is the statically enumerated set of channels. Channels are
// declared once at startup, each with its feature gate; the scheduler
// iterates the enabled subset in declaration order.
type Registry struct {
	mailbox  Mailbox
	declared []Channel
	enabled  []Channel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		declared: make([]Channel, 0, MaxChannels),
		enabled:  make([]Channel, 0, MaxChannels),
	}
}

// Declare adds ch to the registry. The audio channel is always enabled.
func (r *Registry) Declare(ch Channel, enabled bool) error {
	id := ch.ID()
	if int(id) >= MaxChannels {
		return ErrChannelRange
	}
	flag, ok := r.mailbox.bind(id)
	if !ok {
		return ErrDuplicateChannel
	}
	ch.attach(flag)
	r.declared = append(r.declared, ch)
	if enabled || id == ChannelAudio {
		r.enabled = append(r.enabled, ch)
	}
	return nil
}

// MustDeclare is Declare for static tables; it panics on error.
func (r *Registry) MustDeclare(ch Channel, enabled bool) {
	if err := r.Declare(ch, enabled); err != nil {
		panic(err.Error() + ": " + ch.ID().String())
	}
}

// Enabled returns the enabled channels in declaration order.
func (r *Registry) Enabled() []Channel {
	return r.enabled
}

// Declared returns every declared channel in declaration order.
func (r *Registry) Declared() []Channel {
	return r.declared
}

// Lookup returns the declared channel with the given id.
func (r *Registry) Lookup(id ChannelID) (Channel, bool) {
	for _, ch := range r.declared {
		if ch.ID() == id {
			return ch, true
		}
	}
	return nil, false
}

// Pending reports whether id has a frame waiting.
func (r *Registry) Pending(id ChannelID) bool {
	return r.mailbox.Pending(id)
}

// PutFloat32s encodes vals into dst as little-endian floats.
func PutFloat32s(dst []byte, vals ...float32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// PutInt16s encodes samples into dst as little-endian words.
func PutInt16s(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
}

// PutUint16s encodes samples into dst as little-endian words.
func PutUint16s(dst []byte, samples []uint16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], s)
	}
}
