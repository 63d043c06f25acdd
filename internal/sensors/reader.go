// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/telescope_server/internal/imu"
)

// Sensor names used in ReadError.
const (
	Accelerometer = "accelerometer"
	Gyroscope     = "gyroscope"
	Magnetometer  = "magnetometer"
)

// DefaultTimeout bounds a single vector read.
const DefaultTimeout = 250 * time.Millisecond

// ErrTimeout is reported (inside a ReadError) when a read does not finish in
// time.
var ErrTimeout = errors.New("sensor read timed out")

// Reader provides calibrated vectors from the inertial sensors: acceleration
// in g, angular rate in rad/s, magnetic field in µT. All axes are in the
// sensor's NED body frame.
type Reader interface {
	ReadAccelerometer() (imu.Vector, error)
	ReadGyroscope() (imu.Vector, error)
	ReadMagnetometer() (imu.Vector, error)
}

// ReadError reports a failed sensor read.
type ReadError struct {
	Sensor string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s read: %v", e.Sensor, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// readErr wraps err as a ReadError unless it already is one.
func readErr(sensor string, err error) error {
	var re *ReadError
	if errors.As(err, &re) {
		return err
	}
	return &ReadError{Sensor: sensor, Err: err}
}

type timeoutReader struct {
	r       Reader
	timeout time.Duration

	// held for the whole hardware read so a read abandoned after a timeout
	// never overlaps the next one on the bus
	busMu sync.Mutex
}

// WithTimeout bounds every read of r to d. A read that overruns is reported
// as a ReadError wrapping ErrTimeout; the abandoned call finishes in the
// background and its result is discarded.
func WithTimeout(r Reader, d time.Duration) Reader {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &timeoutReader{r: r, timeout: d}
}

type vectorResult struct {
	v   imu.Vector
	err error
}

func (t *timeoutReader) read(sensor string, fn func() (imu.Vector, error)) (imu.Vector, error) {
	done := make(chan vectorResult, 1)
	go func() {
		t.busMu.Lock()
		defer t.busMu.Unlock()
		v, err := fn()
		done <- vectorResult{v: v, err: err}
	}()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return imu.Vector{}, readErr(sensor, res.err)
		}
		return res.v, nil
	case <-timer.C:
		return imu.Vector{}, &ReadError{Sensor: sensor, Err: ErrTimeout}
	}
}

func (t *timeoutReader) ReadAccelerometer() (imu.Vector, error) {
	return t.read(Accelerometer, t.r.ReadAccelerometer)
}

func (t *timeoutReader) ReadGyroscope() (imu.Vector, error) {
	return t.read(Gyroscope, t.r.ReadGyroscope)
}

func (t *timeoutReader) ReadMagnetometer() (imu.Vector, error) {
	return t.read(Magnetometer, t.r.ReadMagnetometer)
}
