package core

import (
	"errors"
	"time"
)

// BMM350 registers.
const (
	bmm350ChipIDReg  = 0x00
	bmm350AggrSetReg = 0x04
	bmm350PMUCmdReg  = 0x06
	bmm350DataReg    = 0x31 // x, y, z, temperature; 24 bits each
	bmm350CmdReg     = 0x7E

	bmm350ChipID    = 0x33
	bmm350SoftReset = 0xB6
	bmm350PMUNormal = 0x01
	bmm350PMUUpdate = 0x02
	bmm350ODR50Hz   = 0x05
	bmm350Avg2      = 0x01 << 4

	// Every read returns two dummy bytes before the payload.
	bmm350Dummy = 2
)

// Default bus addresses.
const (
	BMM350Address          I2CAddress = 0x14
	BMM350AddressSecondary I2CAddress = 0x15
)

// Conversion from raw counts to microtesla, from the sensor's nominal
// sensitivity and gain chain.
const (
	bmm350Power   = 1000000.0 / 1048576.0
	bmm350ADCGain = 1 / 1.5
	bmm350LUTGain = 0.714607238769531

	bmm350LSBToUTXY = bmm350Power / (14.55 * 19.46 * bmm350ADCGain * bmm350LUTGain)
	bmm350LSBToUTZ  = bmm350Power / (9.0 * 31.0 * bmm350ADCGain * bmm350LUTGain)
)

var ErrMagnetometerID = errors.New("bmm350: unexpected chip id")

// Magnetometer reads a BMM350 over I2C. Frames hold three float32 in
// microtesla, ordered y, x, z.
type Magnetometer struct {
	bus   I2CBus
	addr  I2CAddress
	sleep func(time.Duration)
	w     [2]byte
	r     [bmm350Dummy + 12]byte
}

// NewMagnetometer creates the sensor adapter at addr.
func NewMagnetometer(bus I2CBus, addr I2CAddress) *Magnetometer {
	return &Magnetometer{bus: bus, addr: addr, sleep: time.Sleep}
}

func (m *Magnetometer) write(reg, value uint8) error {
	m.w[0], m.w[1] = reg, value
	return m.bus.Tx(uint16(m.addr), m.w[:2], nil)
}

func (m *Magnetometer) read(reg uint8, n int) ([]byte, error) {
	m.w[0] = reg
	buf := m.r[:bmm350Dummy+n]
	if err := m.bus.Tx(uint16(m.addr), m.w[:1], buf); err != nil {
		return nil, err
	}
	return buf[bmm350Dummy:], nil
}

// Init resets the device, checks its id and starts 50 Hz continuous
// measurement.
func (m *Magnetometer) Init() error {
	if err := m.write(bmm350CmdReg, bmm350SoftReset); err != nil {
		return err
	}
	m.sleep(24 * time.Millisecond)

	id, err := m.read(bmm350ChipIDReg, 1)
	if err != nil {
		return err
	}
	if id[0] != bmm350ChipID {
		return ErrMagnetometerID
	}

	if err := m.write(bmm350AggrSetReg, bmm350ODR50Hz|bmm350Avg2); err != nil {
		return err
	}
	if err := m.write(bmm350PMUCmdReg, bmm350PMUUpdate); err != nil {
		return err
	}
	m.sleep(time.Millisecond)
	if err := m.write(bmm350PMUCmdReg, bmm350PMUNormal); err != nil {
		return err
	}
	m.sleep(38 * time.Millisecond)
	return nil
}

// Read fills dst with one y, x, z sample.
func (m *Magnetometer) Read(dst []byte) error {
	data, err := m.read(bmm350DataReg, 12)
	if err != nil {
		return err
	}
	x := float32(float64(int24(data[0:3])) * bmm350LSBToUTXY)
	y := float32(float64(int24(data[3:6])) * bmm350LSBToUTXY)
	z := float32(float64(int24(data[6:9])) * bmm350LSBToUTZ)
	PutFloat32s(dst, y, x, z)
	return nil
}

// int24 sign-extends a little-endian 24-bit value.
func int24(b []byte) int32 {
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	return v << 8 >> 8
}
