//go:build rp2040

package main

import (
	"errors"
	"machine"
)

var errUSBStalled = errors.New("usb write made no progress")

// usbPort is the USB CDC link to the host. It implements protocol.Port.
type usbPort struct {
	failures uint32
}

// InitUSB initializes USB serial communication
// TinyGo sets up USB CDC-ACM on RP2040; machine.Serial is that endpoint
func InitUSB() *usbPort {
	machine.Serial.Configure(machine.UARTConfig{})
	return &usbPort{}
}

// Write sends all of p or reports the first error. A write that makes no
// progress counts as a failure so a detached host never blocks the loop.
func (u *usbPort) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := machine.Serial.Write(p[written:])
		if err != nil {
			u.failures++
			return written, err
		}
		if n == 0 {
			u.failures++
			return written, errUSBStalled
		}
		written += n
	}
	return written, nil
}

func (u *usbPort) Buffered() int {
	return machine.Serial.Buffered()
}

func (u *usbPort) ReadByte() (byte, error) {
	return machine.Serial.ReadByte()
}
