//go:build rp2040

package main

import (
	"errors"
	"machine"
	"sync"
)

// sensorBus is the shared I2C0 bus carrying the IMU, the pressure sensor
// and the magnetometer. Transactions are serialised so a driver never
// interleaves with another on the wire.
type sensorBus struct {
	mu         sync.Mutex
	i2c        *machine.I2C
	configured bool
}

var errBusNotConfigured = errors.New("I2C bus not configured")

var i2cBus = &sensorBus{i2c: machine.I2C0}

// configure brings the bus up once. Later calls only adjust the rate.
func (b *sensorBus) configure(frequencyHz uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.configured {
		return b.i2c.SetBaudRate(frequencyHz)
	}
	err := b.i2c.Configure(machine.I2CConfig{
		Frequency: frequencyHz,
		SDA:       sensorSDA,
		SCL:       sensorSCL,
	})
	if err != nil {
		return err
	}
	b.configured = true
	return nil
}

// Tx implements core.I2CBus and drivers.I2C.
func (b *sensorBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.configured {
		return errBusNotConfigured
	}
	return b.i2c.Tx(addr, w, r)
}
