package core

import "errors"

// TimerFreq is the base tick rate of the timer bank.
const TimerFreq = 100000

// MaxTimers is the number of periodic timers a bank can host.
const MaxTimers = 8

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Priority uint8
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// timerBefore compares wake times modulo 2^32.
func timerBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// runsBefore orders timers by wake time, then by priority so that the
// more urgent of two simultaneous events fires first.
func runsBefore(a, b *Timer) bool {
	if a.WakeTime != b.WakeTime {
		return timerBefore(a.WakeTime, b.WakeTime)
	}
	return a.Priority < b.Priority
}

var (
	ErrTimerInUse     = errors.New("timer already in use")
	ErrNoTimer        = errors.New("no such timer")
	ErrInvalidPeriod  = errors.New("invalid timer period")
	ErrTimerFrequency = errors.New("timer frequency does not divide base rate")
	ErrTimerState     = errors.New("timer not ready for operation")
)

type timerState uint8

const (
	timerFree timerState = iota
	timerInit
	timerConfigured
	timerRunning
)

type bankTimer struct {
	Timer
	state    timerState
	period   uint32 // in counts of freq
	freq     uint32
	interval uint32 // in bank ticks
	callback func()
}

// TimerBank multiplexes periodic timers onto one hardware tick source.
// The platform calls Advance from its alarm interrupt (or a simulator
// calls it directly) and programs the next alarm from NextWake.
type TimerBank struct {
	timers [MaxTimers]bankTimer
	list   *Timer
	now    uint32
}

// NewTimerBank creates an idle bank at tick 0.
func NewTimerBank() *TimerBank {
	return &TimerBank{}
}

func (b *TimerBank) get(id TimerID) (*bankTimer, error) {
	if int(id) >= MaxTimers {
		return nil, ErrNoTimer
	}
	return &b.timers[id], nil
}

// InitTimer reserves a timer.
func (b *TimerBank) InitTimer(id TimerID) error {
	t, err := b.get(id)
	if err != nil {
		return err
	}
	if t.state != timerFree {
		return ErrTimerInUse
	}
	*t = bankTimer{state: timerInit, freq: TimerFreq}
	return nil
}

// ConfigureTimer sets the terminal count, in counts of the timer's
// frequency.
func (b *TimerBank) ConfigureTimer(id TimerID, period uint32) error {
	t, err := b.get(id)
	if err != nil {
		return err
	}
	if t.state != timerInit && t.state != timerConfigured {
		return ErrTimerState
	}
	if period == 0 {
		return ErrInvalidPeriod
	}
	t.period = period
	t.state = timerConfigured
	return nil
}

// SetTimerFrequency sets the count rate of a timer. It must divide the
// bank's base rate.
func (b *TimerBank) SetTimerFrequency(id TimerID, hz uint32) error {
	t, err := b.get(id)
	if err != nil {
		return err
	}
	if t.state == timerFree || t.state == timerRunning {
		return ErrTimerState
	}
	if hz == 0 || hz > TimerFreq || TimerFreq%hz != 0 {
		return ErrTimerFrequency
	}
	t.freq = hz
	return nil
}

// RegisterTimerCallback sets the function run at each terminal count.
func (b *TimerBank) RegisterTimerCallback(id TimerID, fn func()) error {
	t, err := b.get(id)
	if err != nil {
		return err
	}
	if t.state == timerFree || t.state == timerRunning {
		return ErrTimerState
	}
	t.callback = fn
	return nil
}

// EnableTimerEvent sets the priority used to order simultaneous events.
func (b *TimerBank) EnableTimerEvent(id TimerID, priority uint8) error {
	t, err := b.get(id)
	if err != nil {
		return err
	}
	if t.state == timerFree || t.state == timerRunning {
		return ErrTimerState
	}
	t.Priority = priority
	return nil
}

// StartTimer schedules the first terminal count one period from now.
func (b *TimerBank) StartTimer(id TimerID) error {
	t, err := b.get(id)
	if err != nil {
		return err
	}
	if t.state != timerConfigured || t.callback == nil {
		return ErrTimerState
	}
	t.interval = t.period * (TimerFreq / t.freq)
	t.Handler = func(tm *Timer) uint8 {
		t.callback()
		tm.WakeTime += t.interval
		return SF_RESCHEDULE
	}
	t.state = timerRunning

	state := disableInterrupts()
	t.WakeTime = b.now + t.interval
	b.insertTimer(&t.Timer)
	restoreInterrupts(state)
	return nil
}

// StopTimer removes a timer from the schedule and frees it.
func (b *TimerBank) StopTimer(id TimerID) error {
	t, err := b.get(id)
	if err != nil {
		return err
	}
	state := disableInterrupts()
	b.removeTimer(&t.Timer)
	restoreInterrupts(state)
	*t = bankTimer{}
	return nil
}

// Interval returns the tick interval of a running timer.
func (b *TimerBank) Interval(id TimerID) uint32 {
	if int(id) >= MaxTimers {
		return 0
	}
	return b.timers[id].interval
}

// Now returns the time of the last Advance.
func (b *TimerBank) Now() uint32 {
	return b.now
}

// NextWake returns the wake time of the earliest scheduled timer.
func (b *TimerBank) NextWake() (uint32, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	if b.list == nil {
		return 0, false
	}
	return b.list.WakeTime, true
}

// Advance moves the bank to now and runs every timer that is due, in
// wake-time order.
func (b *TimerBank) Advance(now uint32) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	b.now = now
	for b.list != nil && !timerBefore(now, b.list.WakeTime) {
		timer := b.list
		b.list = timer.Next
		timer.Next = nil

		if timer.Handler(timer) == SF_RESCHEDULE {
			b.insertTimer(timer)
		}
	}
}

// insertTimer inserts a timer in sorted order
func (b *TimerBank) insertTimer(t *Timer) {
	if b.list == nil || runsBefore(t, b.list) {
		t.Next = b.list
		b.list = t
		return
	}

	current := b.list
	for current.Next != nil && !runsBefore(t, current.Next) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

func (b *TimerBank) removeTimer(t *Timer) {
	for pp := &b.list; *pp != nil; pp = &(*pp).Next {
		if *pp == t {
			*pp = t.Next
			t.Next = nil
			return
		}
	}
}
