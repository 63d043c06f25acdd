// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/telescope_server/internal/quaternion"
	"github.com/relabs-tech/telescope_server/internal/sensors"
)

// Filter constants.
const (
	// MinInterval is the shortest gap between two integrated samples.
	MinInterval = 20 * time.Millisecond
	// StationaryBand is how far |accel| may stray from 1 g for the
	// accel/mag estimate to be trusted.
	StationaryBand = 0.3
	// BlendWeight is the share of the accel/mag estimate mixed in per update.
	BlendWeight = 0.02
)

// Estimator fuses gyroscope, accelerometer and magnetometer readings into an
// attitude quaternion with a complementary filter. It is safe for concurrent
// use.
type Estimator struct {
	mu     sync.Mutex
	reader sensors.Reader
	now    func() time.Time
	logger *zap.Logger

	hybrid     quaternion.Quaternion
	lastSample time.Time
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) { e.now = now }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Estimator) { e.logger = logger }
}

// NewEstimator seeds the attitude from one accelerometer and magnetometer
// sample.
func NewEstimator(r sensors.Reader, opts ...Option) (*Estimator, error) {
	e := &Estimator{reader: r, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	accel, err := r.ReadAccelerometer()
	if err != nil {
		return nil, fmt.Errorf("seed estimator: %w", err)
	}
	mag, err := r.ReadMagnetometer()
	if err != nil {
		return nil, fmt.Errorf("seed estimator: %w", err)
	}
	q, err := AccelMagQuaternion(accel, mag)
	if err != nil {
		return nil, fmt.Errorf("seed estimator: %w", err)
	}

	e.hybrid = q
	e.lastSample = e.now()
	e.logger.Debug("estimator seeded",
		zap.Float64("w", q.W), zap.Float64("x", q.X), zap.Float64("y", q.Y), zap.Float64("z", q.Z))
	return e, nil
}

// Update integrates one new sensor sample. Calls closer together than
// MinInterval leave the attitude untouched. Sensor failures are returned
// as *sensors.ReadError and leave the attitude untouched.
func (e *Estimator) Update() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update()
}

func (e *Estimator) update() error {
	gyro, err := e.reader.ReadGyroscope()
	if err != nil {
		return err
	}
	accel, err := e.reader.ReadAccelerometer()
	if err != nil {
		return err
	}
	mag, err := e.reader.ReadMagnetometer()
	if err != nil {
		return err
	}
	now := e.now()

	dt := now.Sub(e.lastSample)
	if dt < MinInterval {
		return nil
	}
	e.lastSample = now

	s := dt.Seconds()
	increment := quaternion.FromAxisRates(gyro.X*s, gyro.Y*s, gyro.Z*s)
	hybrid := quaternion.Multiply(e.hybrid, increment)

	if math.Abs(accel.Norm()-1) < StationaryBand {
		if q, err := AccelMagQuaternion(accel, mag); err != nil {
			e.logger.Debug("skipping accel/mag correction", zap.Error(err))
		} else {
			hybrid = quaternion.Blend(hybrid, q, BlendWeight)
		}
	}

	e.hybrid = quaternion.Normalize(hybrid)
	return nil
}

// Quaternion updates and returns the fused attitude.
func (e *Estimator) Quaternion() (quaternion.Quaternion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.update(); err != nil {
		return quaternion.Quaternion{}, err
	}
	return e.hybrid, nil
}

// Euler updates and returns the fused attitude as yaw, pitch and roll.
func (e *Estimator) Euler() (Pose, error) {
	q, err := e.Quaternion()
	if err != nil {
		return Pose{}, err
	}
	return PoseFromQuaternion(q), nil
}

// AccelMag returns the unfiltered accel/mag attitude from a fresh sample,
// without touching the fused state.
func (e *Estimator) AccelMag() (Pose, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	accel, err := e.reader.ReadAccelerometer()
	if err != nil {
		return Pose{}, err
	}
	mag, err := e.reader.ReadMagnetometer()
	if err != nil {
		return Pose{}, err
	}
	q, err := AccelMagQuaternion(accel, mag)
	if err != nil {
		return Pose{}, err
	}
	return PoseFromQuaternion(q), nil
}
