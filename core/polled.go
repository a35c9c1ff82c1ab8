package core

import "errors"

// PolledConfig is the cadence of a timer-paced channel.
type PolledConfig struct {
	ScanRate  uint32 // Hz
	TimerFreq uint32 // timer count rate, Hz
	Priority  uint8  // timer interrupt priority, lower is more urgent
}

// Period returns the terminal count yielding ScanRate interrupts per
// second.
func (c PolledConfig) Period() uint32 {
	if c.ScanRate == 0 {
		return 0
	}
	return c.TimerFreq / c.ScanRate
}

var ErrInvalidScanRate = errors.New("invalid scan rate")

func (c PolledConfig) Validate() error {
	if c.ScanRate == 0 || c.TimerFreq < c.ScanRate {
		return ErrInvalidScanRate
	}
	if c.Priority <= AudioIRQPriority {
		return ErrPriority
	}
	return nil
}

// Channel cadences used by the firmware.
var (
	IMUTiming          = PolledConfig{ScanRate: 50, TimerFreq: TimerFreq, Priority: 3}
	MagnetometerTiming = PolledConfig{ScanRate: 50, TimerFreq: TimerFreq, Priority: 4}
	GyroTiming         = PolledConfig{ScanRate: 50, TimerFreq: TimerFreq, Priority: 5}
	PressureTiming     = PolledConfig{ScanRate: 50, TimerFreq: TimerFreq, Priority: 6}
	RadarTiming        = PolledConfig{ScanRate: 16, TimerFreq: TimerFreq, Priority: 7}
)

// Sensor is a slow sensor read synchronously from the foreground. Read
// fills dst, which is exactly one frame long, and may block for the
// duration of a bus transaction.
type Sensor interface {
	Init() error
	Read(dst []byte) error
}

// PolledChannel paces a Sensor with a periodic timer. The timer interrupt
// only raises the ready flag; the foreground does the read.
type PolledChannel struct {
	id      ChannelID
	timer   TimerID
	layout  Layout
	cfg     PolledConfig
	sensor  Sensor
	ready   *ReadyFlag
	scratch []byte
	staging []byte
	lastErr error
	reads   uint32
	failed  uint32
}

// NewPolledChannel creates a channel on timer id, allocating its scratch
// frame.
func NewPolledChannel(id ChannelID, timer TimerID, layout Layout, cfg PolledConfig, s Sensor) *PolledChannel {
	return &PolledChannel{
		id:      id,
		timer:   timer,
		layout:  layout,
		cfg:     cfg,
		sensor:  s,
		scratch: make([]byte, layout.Size()),
		staging: make([]byte, layout.Size()),
	}
}

func (p *PolledChannel) ID() ChannelID          { return p.id }
func (p *PolledChannel) Layout() Layout         { return p.layout }
func (p *PolledChannel) Config() PolledConfig   { return p.cfg }
func (p *PolledChannel) attach(flag *ReadyFlag) { p.ready = flag }

// Init brings the sensor up, then its timer.
func (p *PolledChannel) Init(res Resources) error {
	if err := p.cfg.Validate(); err != nil {
		return stepError(p.id, StepTimerConfigure, err)
	}
	if err := p.sensor.Init(); err != nil {
		return stepError(p.id, StepSensorInit, err)
	}
	p.ready.clear()
	return ProvisionTimer(res.Timers, p.id, p.timer, p.cfg, p.Tick)
}

// Tick is the terminal-count interrupt handler. A tick arriving while a
// sample is still pending is dropped.
func (p *PolledChannel) Tick() {
	p.ready.set()
}

func (p *PolledChannel) Ready() bool {
	return p.ready.IsSet()
}

// Service clears the flag before reading, so a tick landing during the
// bus transaction schedules the next sample. A failed read leaves the
// previous sample in the scratch frame, which is forwarded as is.
func (p *PolledChannel) Service() []byte {
	p.ready.clear()
	p.reads++
	if err := p.sensor.Read(p.staging); err != nil {
		p.lastErr = err
		p.failed++
		if IsDebugEnabled() {
			DebugAsync("[READ] " + p.id.String() + ": " + err.Error())
		}
		return p.scratch
	}
	copy(p.scratch, p.staging)
	return p.scratch
}

// LastReadErr returns the most recent read error, if any.
func (p *PolledChannel) LastReadErr() error {
	return p.lastErr
}

// ReadStats returns the number of reads and failed reads.
func (p *PolledChannel) ReadStats() (reads, failed uint32) {
	return p.reads, p.failed
}
