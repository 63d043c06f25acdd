// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/telescope_server/internal/config"
	"github.com/relabs-tech/telescope_server/internal/imu"
)

// Power-on full scale of the MPU9250: ±2 g and ±250 °/s.
const (
	accelLSBPerG   = 16384.0
	gyroLSBPerDegS = 131.0
)

// imuSource reads acceleration and rotation from an MPU9250 on SPI and the
// magnetic field from an HMC5883L on I2C, the pairing found on the GY-80
// style boards. Every vector is returned in NED body axes.
type imuSource struct {
	logger *zap.Logger
	imu    *mpu9250.MPU9250
	mag    *HMC5883L
	bus    i2c.BusCloser
}

// NewIMUSource initializes both chips from cfg.
func NewIMUSource(cfg *config.Config, logger *zap.Logger) (Reader, func() error, error) {
	logger = logger.Named("imu")

	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, nil, fmt.Errorf("IMU: CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.IMUSPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return nil, nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if _, err := dev.SelfTest(); err != nil {
		logger.Warn("self-test failed", zap.Error(err))
	} else {
		logger.Info("self-test passed")
	}

	if err := dev.Calibrate(); err != nil {
		logger.Warn("calibration failed", zap.Error(err))
	} else {
		logger.Info("calibration complete")
	}

	bus, err := i2creg.Open(cfg.MagI2CBus)
	if err != nil {
		return nil, nil, fmt.Errorf("IMU: i2c open failed on bus %s: %w", cfg.MagI2CBus, err)
	}

	mag, err := NewHMC5883L(bus, cfg.MagI2CAddr)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("IMU: magnetometer: %w", err)
	}
	logger.Info("sensors ready",
		zap.String("spi", cfg.IMUSPIDevice),
		zap.String("i2c_bus", cfg.MagI2CBus),
		zap.Uint16("mag_addr", cfg.MagI2CAddr))

	s := &imuSource{logger: logger, imu: dev, mag: mag, bus: bus}
	return s, bus.Close, nil
}

// toNED turns chip axes (x forward, y left, z up) into NED body axes.
func toNED(x, y, z float64) imu.Vector {
	return imu.Vector{X: x, Y: -y, Z: -z}
}

func (s *imuSource) ReadAccelerometer() (imu.Vector, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.Vector{}, readErr(Accelerometer, fmt.Errorf("IMU accel X: %w", err))
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.Vector{}, readErr(Accelerometer, fmt.Errorf("IMU accel Y: %w", err))
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.Vector{}, readErr(Accelerometer, fmt.Errorf("IMU accel Z: %w", err))
	}
	// level board: chip z = +1 g, NED z = -1 g
	return toNED(float64(ax), float64(ay), float64(az)).Scale(1 / accelLSBPerG), nil
}

func (s *imuSource) ReadGyroscope() (imu.Vector, error) {
	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.Vector{}, readErr(Gyroscope, fmt.Errorf("IMU gyro X: %w", err))
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.Vector{}, readErr(Gyroscope, fmt.Errorf("IMU gyro Y: %w", err))
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.Vector{}, readErr(Gyroscope, fmt.Errorf("IMU gyro Z: %w", err))
	}
	scale := math.Pi / 180 / gyroLSBPerDegS
	return toNED(float64(gx), float64(gy), float64(gz)).Scale(scale), nil
}

func (s *imuSource) ReadMagnetometer() (imu.Vector, error) {
	m, err := s.mag.Sense()
	if err != nil {
		return imu.Vector{}, readErr(Magnetometer, err)
	}
	return toNED(m.X, m.Y, m.Z), nil
}
