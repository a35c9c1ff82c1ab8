//go:build rp2040

package main

import (
	"errors"
	"sensorstream/core"

	"tinygo.org/x/drivers/bmp280"
	"tinygo.org/x/drivers/lsm6ds3tr"
)

var (
	errIMUNotConnected      = errors.New("lsm6ds3tr not connected")
	errPressureNotConnected = errors.New("bmp280 not connected")
)

// imuDevice is shared by the acceleration and rotation channels; the
// first Init configures it.
type imuDevice struct {
	dev        *lsm6ds3tr.Device
	configured bool
}

func (d *imuDevice) init() error {
	if d.configured {
		return nil
	}
	d.dev = lsm6ds3tr.New(i2cBus)
	err := d.dev.Configure(lsm6ds3tr.Configuration{
		AccelRange:      lsm6ds3tr.ACCEL_2G,
		AccelSampleRate: lsm6ds3tr.ACCEL_SR_104,
		GyroRange:       lsm6ds3tr.GYRO_250DPS,
		GyroSampleRate:  lsm6ds3tr.GYRO_SR_104,
	})
	if err != nil {
		return err
	}
	if !d.dev.Connected() {
		return errIMUNotConnected
	}
	d.configured = true
	return nil
}

// accelSensor reports acceleration in g.
type accelSensor struct {
	imu *imuDevice
}

func (s accelSensor) Init() error {
	return s.imu.init()
}

func (s accelSensor) Read(dst []byte) error {
	x, y, z, err := s.imu.dev.ReadAcceleration()
	if err != nil {
		return err
	}
	core.PutFloat32s(dst, float32(x)/1e6, float32(y)/1e6, float32(z)/1e6)
	return nil
}

// gyroSensor reports angular rate in degrees per second.
type gyroSensor struct {
	imu *imuDevice
}

func (s gyroSensor) Init() error {
	return s.imu.init()
}

func (s gyroSensor) Read(dst []byte) error {
	x, y, z, err := s.imu.dev.ReadRotation()
	if err != nil {
		return err
	}
	core.PutFloat32s(dst, float32(x)/1e6, float32(y)/1e6, float32(z)/1e6)
	return nil
}

// pressureSensor reports pressure in hPa followed by temperature in °C.
type pressureSensor struct {
	dev bmp280.Device
}

func (s *pressureSensor) Init() error {
	s.dev = bmp280.New(i2cBus)
	if !s.dev.Connected() {
		return errPressureNotConnected
	}
	s.dev.Configure(bmp280.STANDBY_125MS, bmp280.FILTER_4X, bmp280.SAMPLING_2X, bmp280.SAMPLING_16X, bmp280.MODE_NORMAL)
	return nil
}

func (s *pressureSensor) Read(dst []byte) error {
	p, err := s.dev.ReadPressure() // milli-pascal
	if err != nil {
		return err
	}
	t, err := s.dev.ReadTemperature() // milli-degrees
	if err != nil {
		return err
	}
	core.PutFloat32s(dst, float32(p)/100000, float32(t)/1000)
	return nil
}

// radarSensor configures the SPI bus on Init, then hands over to the
// register-level driver.
type radarSensor struct {
	radar *core.Radar
}

func (s *radarSensor) Init() error {
	spi, err := configureSPI(radarSPIBus, radarSPIFrequency)
	if err != nil {
		return err
	}
	s.radar = core.NewRadar(spi, outputPin(radarCSPin), outputPin(radarResetPin), core.RadarRegisters)
	return s.radar.Init()
}

func (s *radarSensor) Read(dst []byte) error {
	return s.radar.Read(dst)
}
