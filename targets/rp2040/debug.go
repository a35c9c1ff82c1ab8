//go:build rp2040

package main

import (
	"machine"
	"sensorstream/core"
)

// Debug console. USB CDC carries the binary frame stream, so text goes
// out on UART0 instead.
const (
	debugBaudRate = 115200
	debugTXPin    = machine.GPIO0
	debugRXPin    = machine.GPIO1
)

var debugUART *machine.UART

// InitDebugUART configures UART0 and routes core debug output to it. If
// the UART cannot be configured debug output stays disabled at the
// writer level, even after "debug on".
func InitDebugUART() {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: debugBaudRate,
		TX:       debugTXPin,
		RX:       debugRXPin,
	})
	if err != nil {
		return
	}
	debugUART = uart
	core.SetDebugWriter(writeDebugLine)
}

func writeDebugLine(s string) {
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
