// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensorstest provides a scriptable sensors.Reader for tests.
package sensorstest

import (
	"sync"

	"github.com/relabs-tech/telescope_server/internal/imu"
	"github.com/relabs-tech/telescope_server/internal/sensors"
)

// Fake returns fixed vectors. A non-nil Err is returned from every read,
// wrapped in a *sensors.ReadError.
type Fake struct {
	mu    sync.Mutex
	Accel imu.Vector
	Gyro  imu.Vector
	Mag   imu.Vector
	Err   error
	Reads int
}

// Level returns a stationary, level, north-facing sensor.
func Level() *Fake {
	return &Fake{
		Accel: imu.Vector{Z: -1},
		Mag:   imu.Vector{X: 1, Z: 0.5},
	}
}

// Set replaces the vectors returned by later reads.
func (f *Fake) Set(accel, gyro, mag imu.Vector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accel, f.Gyro, f.Mag = accel, gyro, mag
}

// Fail makes every later read return err.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// ReadCount returns the number of reads served so far.
func (f *Fake) ReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reads
}

func (f *Fake) read(sensor string, v *imu.Vector) (imu.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.Err != nil {
		return imu.Vector{}, &sensors.ReadError{Sensor: sensor, Err: f.Err}
	}
	return *v, nil
}

func (f *Fake) ReadAccelerometer() (imu.Vector, error) {
	return f.read(sensors.Accelerometer, &f.Accel)
}

func (f *Fake) ReadGyroscope() (imu.Vector, error) {
	return f.read(sensors.Gyroscope, &f.Gyro)
}

func (f *Fake) ReadMagnetometer() (imu.Vector, error) {
	return f.read(sensors.Magnetometer, &f.Mag)
}
