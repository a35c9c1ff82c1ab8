//go:build rp2040

package main

import (
	"errors"
	"machine"
)

// RP2040 SPI pin groups, named after their controller.
type spiBusConfig struct {
	spi  *machine.SPI
	sck  machine.Pin
	mosi machine.Pin
	miso machine.Pin
	name string
}

var rp2040SPIBuses = map[uint8]spiBusConfig{
	0: {spi: machine.SPI0, sck: machine.GPIO2, mosi: machine.GPIO3, miso: machine.GPIO0, name: "spi0a"},
	1: {spi: machine.SPI0, sck: machine.GPIO6, mosi: machine.GPIO7, miso: machine.GPIO4, name: "spi0b"},
	2: {spi: machine.SPI0, sck: machine.GPIO18, mosi: machine.GPIO19, miso: machine.GPIO16, name: "spi0c"},
	3: {spi: machine.SPI0, sck: machine.GPIO22, mosi: machine.GPIO23, miso: machine.GPIO20, name: "spi0d"},
	5: {spi: machine.SPI1, sck: machine.GPIO10, mosi: machine.GPIO11, miso: machine.GPIO8, name: "spi1a"},
	6: {spi: machine.SPI1, sck: machine.GPIO14, mosi: machine.GPIO15, miso: machine.GPIO12, name: "spi1b"},
	7: {spi: machine.SPI1, sck: machine.GPIO26, mosi: machine.GPIO27, miso: machine.GPIO24, name: "spi1c"},
}

var errSPIBus = errors.New("invalid SPI bus ID")

// configureSPI sets up a hardware SPI bus in mode 0 and returns it.
func configureSPI(busID uint8, rate uint32) (*machine.SPI, error) {
	bus, ok := rp2040SPIBuses[busID]
	if !ok {
		return nil, errSPIBus
	}
	err := bus.spi.Configure(machine.SPIConfig{
		Frequency: rate,
		SCK:       bus.sck,
		SDO:       bus.mosi,
		SDI:       bus.miso,
		Mode:      0,
	})
	if err != nil {
		return nil, err
	}
	return bus.spi, nil
}

// outputPin configures p as a push-pull output at level high.
func outputPin(p machine.Pin) machine.Pin {
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.High()
	return p
}
