package core

import "errors"

// Scheduler owns the foreground loop. After one-time initialisation it
// busy-polls the enabled channels and forwards each pending frame to the
// sink.
type Scheduler struct {
	sink     Sink
	registry *Registry
	res      Resources
	channels []Channel
	passes   uint32
	frames   uint32
	booted   bool
	bootErr  error
}

// NewScheduler creates a scheduler over the enabled channels of reg.
func NewScheduler(sink Sink, reg *Registry, res Resources) *Scheduler {
	return &Scheduler{
		sink:     sink,
		registry: reg,
		res:      res,
		channels: reg.Enabled(),
	}
}

// Init brings up the sink, then every enabled channel in declaration
// order. It stops at the first failure.
func (s *Scheduler) Init() error {
	if err := s.sink.Init(); err != nil {
		return &InitError{Step: StepSinkInit, Err: err}
	}
	for _, ch := range s.channels {
		if err := ch.Init(s.res); err != nil {
			var ie *InitError
			if !errors.As(err, &ie) {
				err = &InitError{Channel: ch.ID(), Step: StepSensorInit, Err: err}
			}
			return err
		}
		RecordTiming(EvtChannelUp, uint8(ch.ID()), s.now(), 0, 0)
	}
	return nil
}

// Boot initialises everything and resets the system on failure. There is
// no partial start: it returns true only if every step succeeded.
func (s *Scheduler) Boot() bool {
	RecordTiming(EvtBoot, 0, s.now(), uint32(len(s.channels)), 0)
	if err := s.Init(); err != nil {
		s.bootErr = err
		var ie *InitError
		if errors.As(err, &ie) {
			RecordTiming(EvtInitFailed, uint8(ie.Channel), s.now(), uint32(ie.Step), 0)
		}
		DebugPrintln("[BOOT] init failed: " + err.Error())
		SystemReset()
		return false
	}
	s.booted = true
	DebugPrintln("[BOOT] running, channels=" + itoa(len(s.channels)))
	return true
}

// Pass runs one foreground iteration: service host commands once, then
// each enabled channel at most once, in declaration order, then write any
// queued debug lines. It returns the number of frames delivered.
func (s *Scheduler) Pass() int {
	s.sink.ServiceIncoming()
	n := 0
	for _, ch := range s.channels {
		if !ch.Ready() {
			continue
		}
		s.sink.Send(ch.ID(), ch.Service())
		n++
	}
	FlushDebug()
	s.passes++
	s.frames += uint32(n)
	return n
}

// Run boots and then loops forever. It returns only if boot failed and
// the reset handler returned.
func (s *Scheduler) Run() {
	if !s.Boot() {
		return
	}
	for {
		s.Pass()
	}
}

// Booted reports whether Boot succeeded.
func (s *Scheduler) Booted() bool {
	return s.booted
}

// BootErr returns the failure that made Boot reset the system, if any.
func (s *Scheduler) BootErr() error {
	return s.bootErr
}

// Stats returns the number of passes run and frames delivered.
func (s *Scheduler) Stats() (passes, frames uint32) {
	return s.passes, s.frames
}

func (s *Scheduler) now() uint32 {
	if c, ok := s.res.Timers.(interface{ Now() uint32 }); ok {
		return c.Now()
	}
	return 0
}
