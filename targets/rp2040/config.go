//go:build rp2040

package main

import (
	"machine"
	"sensorstream/core"
)

// Build-time channel gates. Audio is always captured.
const (
	imuEnabled          = true
	gyroEnabled         = false
	pressureEnabled     = true
	radarEnabled        = false
	magnetometerEnabled = false
)

// Audio capture.
const (
	pdmSampleRate  = 16000
	frameSize      = 1024
	decimationRate = 64
	leftGainDB     = 3
)

// Pins.
const (
	pdmClockPin = machine.GPIO2
	pdmDataPin  = machine.GPIO3

	sensorSDA = machine.GPIO4
	sensorSCL = machine.GPIO5

	radarCSPin    = machine.GPIO13
	radarResetPin = machine.GPIO14
)

// Bus rates.
const (
	sensorI2CFrequency = 400 * machine.KHz
	radarSPIFrequency  = 25 * machine.MHz
	radarSPIBus        = 5 // spi1a
)

// Timer assignment, one per polled channel.
const (
	imuTimer core.TimerID = iota
	pressureTimer
	radarTimer
	gyroTimer
	magnetometerTimer
)

func audioConfig() core.AudioConfig {
	cfg := core.DefaultAudioConfig()
	cfg.SampleRate = pdmSampleRate
	cfg.FrameSize = frameSize
	cfg.DecimationRate = decimationRate
	cfg.LeftGainDB = leftGainDB
	return cfg
}
