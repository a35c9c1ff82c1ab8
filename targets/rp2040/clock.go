//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/interrupt"
	"runtime/volatile"
	"sensorstream/core"
	"unsafe"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerALARM1   = timerBase + 0x14
	timerTIMERAWH = timerBase + 0x24 // Raw timer high word
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word
	timerINTR     = timerBase + 0x34
	timerINTE     = timerBase + 0x38

	alarmNum   = 1 // alarm 0 belongs to the runtime's sleep
	usPerTick  = 1000000 / core.TimerFreq
	alarmMinUS = 2
)

var (
	timerALARM = (*volatile.Register32)(unsafe.Pointer(uintptr(timerALARM1)))
	timerRAWH  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
	timerIntr  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTR)))
	timerInte  = (*volatile.Register32)(unsafe.Pointer(uintptr(timerINTE)))
)

// NVIC priorities. Only the top two bits are implemented on the M0+.
const (
	dmaIRQPriority   = 0x40
	alarmIRQPriority = 0x80
)

// GetHardwareUptime reads the full 64-bit RP2040 hardware timer
func GetHardwareUptime() uint64 {
	// Must read high first, then low, then high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// bankTicks converts the microsecond counter into timer bank ticks.
func bankTicks(us uint64) uint32 {
	return uint32(us / usPerTick)
}

// timerBank hosts every polled-channel timer on hardware alarm 1.
var timerBank = core.NewTimerBank()

// InitAlarm enables the alarm interrupt that drives timerBank. It must
// run before the first StartTimer so new timers see a current clock.
func InitAlarm() {
	timerBank.Advance(bankTicks(GetHardwareUptime()))
	timerInte.SetBits(1 << alarmNum)
	irq := interrupt.New(rp.IRQ_TIMER_IRQ_1, alarmHandler)
	irq.SetPriority(alarmIRQPriority)
	irq.Enable()
	armAlarm()
}

// alarmTimers is the TimerProvider handed to the channels. Starting a
// timer refreshes the bank clock first and re-arms the alarm after.
type alarmTimers struct {
	*core.TimerBank
}

func (t alarmTimers) StartTimer(id core.TimerID) error {
	t.Advance(bankTicks(GetHardwareUptime()))
	if err := t.TimerBank.StartTimer(id); err != nil {
		return err
	}
	ArmAlarm()
	return nil
}

// ArmAlarm reprograms the alarm after timers were started from the
// foreground.
func ArmAlarm() {
	state := interrupt.Disable()
	armAlarm()
	interrupt.Restore(state)
}

func alarmHandler(interrupt.Interrupt) {
	timerIntr.Set(1 << alarmNum)
	timerBank.Advance(bankTicks(GetHardwareUptime()))
	armAlarm()
}

// armAlarm targets the earliest pending wake. A wake that is already due
// is run immediately so the alarm is never set in the past.
func armAlarm() {
	for {
		wake, ok := timerBank.NextWake()
		if !ok {
			return
		}
		now := GetHardwareUptime()
		delta := int32(wake - bankTicks(now))
		if delta > 0 {
			target := now + uint64(delta)*usPerTick - now%usPerTick
			if target-now < alarmMinUS {
				target = now + alarmMinUS
			}
			timerALARM.Set(uint32(target))
			return
		}
		timerBank.Advance(bankTicks(now))
	}
}

var (
	errClockBusy   = errors.New("pio state machine in use")
	errClockOrder  = errors.New("audio clock step out of order")
	errClockRatio  = errors.New("pdm clock does not divide master clock")
	errClockTooLow = errors.New("system clock too slow for pdm")
)

// pdmCyclesPerBit is the length of the PDM capture loop in PIO cycles.
const pdmCyclesPerBit = 4

// audioClock derives the PDM bit clock from the system clock through a
// PIO state machine's fractional divider. The master frequency stands in
// for the audio PLL; the root clock is the PDM bit clock.
type audioClock struct {
	pio        *rp2pio.PIO
	sm         rp2pio.StateMachine
	cfg        core.AudioConfig
	masterHz   uint32
	rootHz     uint32
	divWhole   uint16
	divFrac    uint8
	claimed    bool
	enabled    bool
	rootOwned  bool
	rootActive bool
}

func newAudioClock(pio *rp2pio.PIO, smNum uint8, cfg core.AudioConfig) *audioClock {
	return &audioClock{pio: pio, sm: pio.StateMachine(smNum), cfg: cfg}
}

func (c *audioClock) ReservePLL() error {
	if !c.sm.TryClaim() {
		return errClockBusy
	}
	c.claimed = true
	return nil
}

func (c *audioClock) SetPLLFrequency(hz uint32) error {
	if !c.claimed {
		return errClockOrder
	}
	c.masterHz = hz
	return nil
}

func (c *audioClock) EnablePLL() error {
	if c.masterHz == 0 {
		return errClockOrder
	}
	c.enabled = true
	return nil
}

func (c *audioClock) ReserveAudioRoot() error {
	if !c.enabled {
		return errClockOrder
	}
	c.rootOwned = true
	return nil
}

// SelectAudioRootSource picks the integer ratio from the master clock to
// the PDM bit clock and the state machine divider that produces it.
func (c *audioClock) SelectAudioRootSource() error {
	if !c.rootOwned {
		return errClockOrder
	}
	bitHz := c.cfg.SampleRate * uint32(c.cfg.DecimationRate)
	if bitHz == 0 || c.masterHz%bitHz != 0 {
		return errClockRatio
	}
	c.rootHz = c.masterHz / (c.masterHz / bitHz)

	smHz := c.rootHz * pdmCyclesPerBit
	cpu := machine.CPUFrequency()
	if cpu < smHz {
		return errClockTooLow
	}
	c.divWhole = uint16(cpu / smHz)
	c.divFrac = uint8(uint64(cpu%smHz) * 256 / uint64(smHz))
	return nil
}

func (c *audioClock) EnableAudioRoot() error {
	if c.rootHz == 0 {
		return errClockOrder
	}
	c.rootActive = true
	return nil
}

// Divider returns the state machine clock divider once the root clock is
// enabled.
func (c *audioClock) Divider() (whole uint16, frac uint8, ok bool) {
	return c.divWhole, c.divFrac, c.rootActive
}
