package core

import (
	"errors"
	"testing"
)

// simPCM is a PDM/PCM converter whose DMA engine is stepped by the test.
// Samples come from gen; a frame completes when the armed buffer has
// been filled.
type simPCM struct {
	t        *testing.T
	pair     *BufferPair
	handler  func()
	dst      []int16
	pos      int
	armed    int
	started  bool
	frames   int
	gen      func(frame, i int) int16
	initErr  error
	startErr error
}

func (s *simPCM) Init(cfg AudioConfig) error     { return s.initErr }
func (s *simPCM) SetCompletionHandler(fn func()) { s.handler = fn }
func (s *simPCM) ReadAsync(dst []int16)          { s.dst = dst; s.pos = 0; s.armed++ }
func (s *simPCM) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

// step lets the DMA engine write n samples into the armed buffer,
// raising the completion interrupt when it is full.
func (s *simPCM) step(n int) {
	if !s.started || s.dst == nil {
		return
	}
	if s.pair != nil {
		if slot, ok := s.pair.TakeFull(); ok && &s.pair.Samples(slot)[0] == &s.dst[0] {
			s.t.Fatalf("dma writing slot %d while it is full", slot)
		}
	}
	for ; n > 0 && s.pos < len(s.dst); n-- {
		s.dst[s.pos] = s.gen(s.frames, s.pos)
		s.pos++
	}
	if s.pos == len(s.dst) {
		s.frames++
		s.handler()
	}
}

// complete finishes the armed transfer in one go.
func (s *simPCM) complete() {
	s.step(len(s.dst))
}

// fakeSensor fills frames with a counter so stale frames are visible.
type fakeSensor struct {
	initErr error
	readErr error
	reads   int
	onRead  func()
}

func (f *fakeSensor) Init() error { return f.initErr }

func (f *fakeSensor) Read(dst []byte) error {
	f.reads++
	if f.onRead != nil {
		f.onRead()
	}
	if f.readErr != nil {
		for i := range dst {
			dst[i] = 0xEE
		}
		return f.readErr
	}
	for i := range dst {
		dst[i] = byte(f.reads)
	}
	return nil
}

type sentFrame struct {
	pass  int
	tick  uint32
	id    ChannelID
	frame []byte
}

// recordingSink keeps a transcript of every Send.
type recordingSink struct {
	clock   func() uint32
	initErr error
	passes  int
	sent    []sentFrame
}

func (r *recordingSink) Init() error      { return r.initErr }
func (r *recordingSink) ServiceIncoming() { r.passes++ }

func (r *recordingSink) Send(id ChannelID, frame []byte) {
	var tick uint32
	if r.clock != nil {
		tick = r.clock()
	}
	r.sent = append(r.sent, sentFrame{
		pass:  r.passes,
		tick:  tick,
		id:    id,
		frame: append([]byte(nil), frame...),
	})
}

func (r *recordingSink) frames(id ChannelID) []sentFrame {
	var out []sentFrame
	for _, f := range r.sent {
		if f.id == id {
			out = append(out, f)
		}
	}
	return out
}

// fakeClocks records provisioning calls and can fail a given step.
type fakeClocks struct {
	calls  []string
	pllHz  uint32
	failAt InitStep
}

var errInjected = errors.New("injected failure")

func (c *fakeClocks) do(step InitStep, name string) error {
	c.calls = append(c.calls, name)
	if c.failAt == step {
		return errInjected
	}
	return nil
}

func (c *fakeClocks) ReservePLL() error { return c.do(StepPLLReserve, "reserve_pll") }
func (c *fakeClocks) SetPLLFrequency(hz uint32) error {
	c.pllHz = hz
	return c.do(StepPLLFrequency, "pll_frequency")
}
func (c *fakeClocks) EnablePLL() error        { return c.do(StepPLLEnable, "enable_pll") }
func (c *fakeClocks) ReserveAudioRoot() error { return c.do(StepRootReserve, "reserve_root") }
func (c *fakeClocks) SelectAudioRootSource() error {
	return c.do(StepRootSource, "root_source")
}
func (c *fakeClocks) EnableAudioRoot() error { return c.do(StepRootEnable, "enable_root") }

// failingTimers wraps a TimerBank and fails one step.
type failingTimers struct {
	*TimerBank
	failAt InitStep
}

func (f *failingTimers) InitTimer(id TimerID) error {
	if f.failAt == StepTimerInit {
		return errInjected
	}
	return f.TimerBank.InitTimer(id)
}

func (f *failingTimers) ConfigureTimer(id TimerID, period uint32) error {
	if f.failAt == StepTimerConfigure {
		return errInjected
	}
	return f.TimerBank.ConfigureTimer(id, period)
}

func (f *failingTimers) SetTimerFrequency(id TimerID, hz uint32) error {
	if f.failAt == StepTimerFrequency {
		return errInjected
	}
	return f.TimerBank.SetTimerFrequency(id, hz)
}

func (f *failingTimers) RegisterTimerCallback(id TimerID, fn func()) error {
	if f.failAt == StepTimerCallback {
		return errInjected
	}
	return f.TimerBank.RegisterTimerCallback(id, fn)
}

func (f *failingTimers) EnableTimerEvent(id TimerID, priority uint8) error {
	if f.failAt == StepTimerEvent {
		return errInjected
	}
	return f.TimerBank.EnableTimerEvent(id, priority)
}

func (f *failingTimers) StartTimer(id TimerID) error {
	if f.failAt == StepTimerStart {
		return errInjected
	}
	return f.TimerBank.StartTimer(id)
}

// rig is a complete simulated board: audio DMA completing every
// audioPeriod ticks, the timer bank, and a recording sink.
type rig struct {
	t           *testing.T
	cfg         AudioConfig
	bank        *TimerBank
	clocks      *fakeClocks
	pcm         *simPCM
	audio       *AudioChannel
	sink        *recordingSink
	reg         *Registry
	res         Resources
	sched       *Scheduler
	now         uint32
	audioPeriod uint32
	nextAudio   uint32
	resets      int
}

func newRig(t *testing.T, frameSize int) *rig {
	cfg := DefaultAudioConfig()
	cfg.FrameSize = frameSize
	r := &rig{
		t:      t,
		cfg:    cfg,
		bank:   NewTimerBank(),
		clocks: &fakeClocks{},
		reg:    NewRegistry(),
	}
	r.pcm = &simPCM{t: t, gen: func(frame, i int) int16 { return int16(i) }}
	r.audio = NewAudioChannel(cfg, r.pcm)
	r.pcm.pair = r.audio.Pair()
	r.sink = &recordingSink{clock: func() uint32 { return r.now }}
	r.res = Resources{Clocks: r.clocks, Timers: r.bank}
	r.audioPeriod = cfg.FramePeriod()
	r.nextAudio = r.audioPeriod
	if err := r.reg.Declare(r.audio, true); err != nil {
		t.Fatalf("declare audio: %v", err)
	}
	SetResetHandler(func() { r.resets++ })
	t.Cleanup(func() { SetResetHandler(nil) })
	return r
}

func (r *rig) declare(ch Channel, enabled bool) {
	if err := r.reg.Declare(ch, enabled); err != nil {
		r.t.Fatalf("declare %v: %v", ch.ID(), err)
	}
}

func (r *rig) boot() bool {
	r.sched = NewScheduler(r.sink, r.reg, r.res)
	return r.sched.Boot()
}

func (r *rig) mustBoot() {
	if !r.boot() {
		r.t.Fatalf("boot failed")
	}
}

// tick advances simulated time by one timer tick, raising any hardware
// events that fall on it.
func (r *rig) tick() {
	r.now++
	if r.now == r.nextAudio {
		r.pcm.complete()
		r.nextAudio += r.audioPeriod
	}
	r.bank.Advance(r.now)
}

// run advances n ticks with one foreground pass per tick.
func (r *rig) run(n int) {
	for i := 0; i < n; i++ {
		r.tick()
		r.sched.Pass()
	}
}

// stall advances n ticks with the foreground suspended.
func (r *rig) stall(n int) {
	for i := 0; i < n; i++ {
		r.tick()
	}
}
