//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/interrupt"
	"sensorstream/core"
	"unsafe"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// PDM capture loop, four cycles per bit:
//
//	.wrap_target
//	set pins, 1      ; clock high
//	in pins, 1       ; sample data
//	set pins, 0 [1]  ; clock low
//	.wrap
var pdmProgram = []uint16{
	0xe001,
	0x4001,
	0xe100,
}

// The program has no jumps and loads anywhere.
const pdmProgramOrigin = -1

const (
	pdmDMAChannel = 0
	dreqPIO0RX0   = 4
)

var (
	errPDMClock   = errors.New("pdm clock not enabled")
	errPDMStarted = errors.New("pdm already started")
)

// pdmSource implements core.PCMSource with PIO0 clocking the microphone
// and a DMA channel draining the RX FIFO into one of two raw buffers.
// The DMA is restarted on the other raw buffer before decimation, so
// capture is continuous across frames.
type pdmSource struct {
	clock   *audioClock
	dec     *core.PDMDecimator
	raw     [2][]uint32
	fill    int
	dst     []int16
	handler func()
	started bool
	dmaOn   bool
	frames  uint32
}

// pdm is referenced from the DMA interrupt handler.
var pdm *pdmSource

func newPDMSource(clock *audioClock) *pdmSource {
	return &pdmSource{clock: clock}
}

func (p *pdmSource) Init(cfg core.AudioConfig) error {
	dec, err := core.NewPDMDecimator(cfg)
	if err != nil {
		return err
	}
	whole, frac, ok := p.clock.Divider()
	if !ok {
		return errPDMClock
	}
	p.dec = dec
	words := cfg.FrameSize * dec.WordsPerSample()
	p.raw[0] = make([]uint32, words)
	p.raw[1] = make([]uint32, words)

	pio := p.clock.pio
	sm := p.clock.sm
	offset, err := pio.AddProgram(pdmProgram, pdmProgramOrigin)
	if err != nil {
		return err
	}

	pdmClockPin.Configure(machine.PinConfig{Mode: pio.PinMode()})
	pdmDataPin.Configure(machine.PinConfig{Mode: pio.PinMode()})

	smCfg := rp2pio.DefaultStateMachineConfig()
	smCfg.SetSetPins(pdmClockPin, 1)
	smCfg.SetWrap(offset+uint8(len(pdmProgram))-1, offset)
	smCfg.SetClkDivIntFrac(whole, frac)
	sm.Init(offset, smCfg)

	// IN base, autopush of full 32-bit words, RX FIFO joined to 8 deep.
	pinctrl := &rp.PIO0.SM0_PINCTRL
	pinctrl.Set(pinctrl.Get()&^rp.PIO0_SM0_PINCTRL_IN_BASE_Msk |
		uint32(pdmDataPin)<<rp.PIO0_SM0_PINCTRL_IN_BASE_Pos)
	shift := &rp.PIO0.SM0_SHIFTCTRL
	shift.Set(shift.Get()&^(rp.PIO0_SM0_SHIFTCTRL_PUSH_THRESH_Msk|rp.PIO0_SM0_SHIFTCTRL_IN_SHIFTDIR) |
		rp.PIO0_SM0_SHIFTCTRL_AUTOPUSH | rp.PIO0_SM0_SHIFTCTRL_FJOIN_RX)

	sm.SetPindirsConsecutive(pdmClockPin, 1, true)
	sm.SetPindirsConsecutive(pdmDataPin, 1, false)
	sm.SetPinsConsecutive(pdmClockPin, 1, false)
	sm.ClearFIFOs()

	pdm = p
	rp.DMA.INTE0.SetBits(1 << pdmDMAChannel)
	irq := interrupt.New(rp.IRQ_DMA_IRQ_0, pdmDMAHandler)
	irq.SetPriority(dmaIRQPriority)
	irq.Enable()
	return nil
}

func (p *pdmSource) SetCompletionHandler(fn func()) {
	p.handler = fn
}

func (p *pdmSource) Start() error {
	if p.started {
		return errPDMStarted
	}
	p.clock.sm.SetEnabled(true)
	p.started = true
	return nil
}

// ReadAsync names the PCM destination of the raw buffer being filled.
// The first call starts the DMA.
func (p *pdmSource) ReadAsync(dst []int16) {
	p.dst = dst
	if !p.dmaOn {
		p.dmaOn = true
		p.startDMA(p.raw[p.fill])
	}
}

func (p *pdmSource) startDMA(buf []uint32) {
	rp.DMA.CH0_READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&rp.PIO0.RXF0))))
	rp.DMA.CH0_WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf)))))
	rp.DMA.CH0_TRANS_COUNT.Set(uint32(len(buf)))
	rp.DMA.CH0_CTRL_TRIG.Set(
		rp.DMA_CH0_CTRL_TRIG_INCR_WRITE |
			rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_SIZE_WORD<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos |
			pdmDMAChannel<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos |
			dreqPIO0RX0<<rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos |
			rp.DMA_CH0_CTRL_TRIG_HIGH_PRIORITY |
			rp.DMA_CH0_CTRL_TRIG_EN,
	)
}

func pdmDMAHandler(interrupt.Interrupt) {
	pdm.complete()
}

// complete runs in the DMA interrupt.
func (p *pdmSource) complete() {
	rp.DMA.INTS0.Set(1 << pdmDMAChannel)
	done := p.fill
	p.fill ^= 1
	p.startDMA(p.raw[p.fill])

	p.dec.Decimate(p.dst, p.raw[done])
	p.frames++
	if p.handler != nil {
		p.handler()
	}
}
