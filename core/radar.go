package core

import (
	"encoding/binary"
	"errors"
)

// BGT60TR13C SPI framing. A register access is one big-endian 32-bit
// word: address in bits 31..25, write flag in bit 24, data below. The
// first byte clocked back on every transaction is the GSR0 status.
const (
	bgt60WriteFlag = 1 << 24
	bgt60AddrShift = 25

	bgt60MainReg     = 0x00
	bgt60FrameStart  = 1 << 0
	bgt60SoftReset   = 1 << 1
	bgt60FIFOReset   = 1 << 3
	bgt60FIFOAddress = 0x60

	bgt60BurstCmd   = 0xFF000000
	bgt60BurstShift = 17

	// GSR0 error bits: FIFO overflow/underflow, burst error, clock count.
	bgt60StatusErrors = 0x08 | 0x02 | 0x01
)

// RadarRegisters is the BGT60TR13C configuration for 128 samples per
// chirp, 16 chirps per frame on one receive antenna, 61.02 to 61.48 GHz.
// Each entry is a complete write word.
var RadarRegisters = []uint32{
	0x011e8270, 0x03088210, 0x09e967fd, 0x0b0805b4, 0x0df02fff,
	0x0f010700, 0x11000000, 0x13000000, 0x15000000, 0x17000be0,
	0x19000000, 0x1b000000, 0x1d000000, 0x1f000b60, 0x21130c51,
	0x234ff41f, 0x25006f7b, 0x2d000490, 0x3b000480, 0x49000480,
	0x57000480, 0x5911be0e, 0x5b3ef40a, 0x5d00f000, 0x5f787e1e,
	0x61f5208c, 0x630000a4, 0x65000252, 0x67000080, 0x69000000,
	0x6b000000, 0x6d000000, 0x6f092910, 0x7f000100, 0x8f000100,
	0x9f000100, 0xad000000, 0xb7000000,
}

var (
	ErrRadarStatus   = errors.New("bgt60: status error")
	ErrRadarRegister = errors.New("bgt60: register list must start with MAIN")
)

// Radar reads whole frames from a BGT60TR13C FIFO. Samples are 12 bits,
// packed two per three bytes on the wire and widened to uint16.
type Radar struct {
	bus     SPIBus
	cs      OutputPin
	reset   OutputPin
	regs    []uint32
	main    uint32
	word    [4]byte
	status  [4]byte
	tx, rx  []byte
	samples int
	gsr0    uint8
}

// NewRadar creates the adapter. reset may be nil when the line is not
// wired.
func NewRadar(bus SPIBus, cs, reset OutputPin, regs []uint32) *Radar {
	n := RadarFrameSamples
	return &Radar{
		bus:     bus,
		cs:      cs,
		reset:   reset,
		regs:    regs,
		samples: n,
		tx:      make([]byte, 4+n*3/2),
		rx:      make([]byte, 4+n*3/2),
	}
}

func (r *Radar) transfer(w, rx []byte) error {
	r.cs.Low()
	err := r.bus.Tx(w, rx)
	r.cs.High()
	if err != nil {
		return err
	}
	r.gsr0 = rx[0]
	if r.gsr0&bgt60StatusErrors != 0 {
		return ErrRadarStatus
	}
	return nil
}

func (r *Radar) writeWord(v uint32) error {
	binary.BigEndian.PutUint32(r.word[:], v)
	return r.transfer(r.word[:], r.status[:])
}

// Status returns GSR0 from the last transaction.
func (r *Radar) Status() uint8 {
	return r.gsr0
}

// Init pulses the reset line, loads the register list and starts frame
// generation with an empty FIFO.
func (r *Radar) Init() error {
	if len(r.regs) == 0 || r.regs[0]>>bgt60AddrShift != bgt60MainReg {
		return ErrRadarRegister
	}
	r.cs.High()
	if r.reset != nil {
		r.reset.Low()
		r.reset.High()
	}
	r.main = r.regs[0]
	if err := r.writeWord(r.main | bgt60SoftReset); err != nil {
		return err
	}
	for _, v := range r.regs {
		if err := r.writeWord(v | bgt60WriteFlag); err != nil {
			return err
		}
	}
	if err := r.writeWord(r.main | bgt60FIFOReset); err != nil {
		return err
	}
	return r.writeWord(r.main | bgt60FrameStart)
}

// Read bursts one frame out of the FIFO into dst as little-endian
// uint16 samples.
func (r *Radar) Read(dst []byte) error {
	for i := range r.tx {
		r.tx[i] = 0
	}
	binary.BigEndian.PutUint32(r.tx, bgt60BurstCmd|bgt60FIFOAddress<<bgt60BurstShift)
	if err := r.transfer(r.tx, r.rx); err != nil {
		return err
	}
	unpack12(dst[:r.samples*2], r.rx[4:])
	return nil
}

// unpack12 widens packed 12-bit samples: bytes a, b, c carry the pair
// a<<4|b>>4 and (b&0xF)<<8|c.
func unpack12(dst, src []byte) {
	for i, j := 0, 0; j+2 < len(src) && i+3 < len(dst); i, j = i+4, j+3 {
		a, b, c := uint16(src[j]), uint16(src[j+1]), uint16(src[j+2])
		binary.LittleEndian.PutUint16(dst[i:], a<<4|b>>4)
		binary.LittleEndian.PutUint16(dst[i+2:], (b&0x0F)<<8|c)
	}
}
