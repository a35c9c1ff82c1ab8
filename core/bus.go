package core

// I2CAddress is a 7-bit I2C device address.
type I2CAddress uint8

// I2CBus is the transaction primitive register-level sensors use.
// machine.I2C and drivers.I2C both satisfy it.
type I2CBus interface {
	Tx(addr uint16, w, r []byte) error
}

// SPIBus is a full-duplex SPI transfer. machine.SPI satisfies it.
type SPIBus interface {
	Tx(w, r []byte) error
}

// OutputPin drives a chip-select or reset line. machine.Pin satisfies it.
type OutputPin interface {
	High()
	Low()
}
