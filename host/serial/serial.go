package serial

import (
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-memory pipes for tests
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string `yaml:"device"`

	// Baud rate. USB CDC ignores it; the UART build runs at 1 Mbaud.
	Baud int `yaml:"baud"`

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int `yaml:"readTimeoutMs"`
}

// DefaultConfig returns the configuration the firmware expects
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        1000000,
		ReadTimeout: 100,
	}
}
