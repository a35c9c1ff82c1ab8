//go:build rp2040

package main

import (
	"machine"
	"sensorstream/core"
	"sensorstream/protocol"
	"time"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	// Debug lines go to the UART0 console; USB carries frames
	InitDebugUART()
	core.InitAsyncDebug()

	// Use watchdog reset instead of ARM SYSRESETREQ; it also makes the
	// USB device re-enumerate
	core.SetResetHandler(func() {
		if machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}) != nil {
			return
		}
		if machine.Watchdog.Start() != nil {
			return
		}
		for {
			time.Sleep(1 * time.Millisecond)
		}
	})

	port := InitUSB()
	commands := protocol.NewCommandRegistry()
	protocol.RegisterBuiltins(commands)
	streamer := protocol.NewStreamer(port, commands)

	if err := i2cBus.configure(sensorI2CFrequency); err != nil {
		core.DebugPrintln("[BOOT] i2c: " + err.Error())
	}
	InitAlarm()

	cfg := audioConfig()
	clock := newAudioClock(rp2pio.PIO0, 0, cfg)
	imu := &imuDevice{}

	// Canonical declaration order fixes the per-pass service order.
	registry := core.NewRegistry()
	registry.MustDeclare(core.NewAudioChannel(cfg, newPDMSource(clock)), true)
	registry.MustDeclare(core.NewPolledChannel(core.ChannelIMU, imuTimer, core.IMULayout,
		core.IMUTiming, accelSensor{imu}), imuEnabled)
	registry.MustDeclare(core.NewPolledChannel(core.ChannelPressure, pressureTimer, core.PressureLayout,
		core.PressureTiming, &pressureSensor{}), pressureEnabled)
	registry.MustDeclare(core.NewPolledChannel(core.ChannelRadar, radarTimer, core.RadarLayout,
		core.RadarTiming, &radarSensor{}), radarEnabled)
	registry.MustDeclare(core.NewPolledChannel(core.ChannelGyro, gyroTimer, core.GyroLayout,
		core.GyroTiming, gyroSensor{imu}), gyroEnabled)
	registry.MustDeclare(core.NewPolledChannel(core.ChannelMagnetometer, magnetometerTimer, core.MagnetometerLayout,
		core.MagnetometerTiming, core.NewMagnetometer(i2cBus, core.BMM350Address)), magnetometerEnabled)

	registerTargetCommands(commands, registry, clock)

	scheduler := core.NewScheduler(streamer, registry, core.Resources{
		Clocks: clock,
		Timers: alarmTimers{timerBank},
	})
	scheduler.Run()

	// Only reached if the reset handler returned.
	for {
		time.Sleep(time.Second)
	}
}
