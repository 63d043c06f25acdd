// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/telescope_server/internal/imu"
	"github.com/relabs-tech/telescope_server/internal/quaternion"
)

// Earth field used by the mock, µT in NED: 20 north, 45 down.
var mockField = imu.Vector{X: 20, Z: 45}

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock sensor that sweeps slowly in azimuth while
// nodding in altitude, producing consistent gyro, accel and mag vectors.
func NewMockSource(now func() time.Time) Reader {
	if now == nil {
		now = time.Now
	}
	return &mockSource{start: now(), now: now}
}

// pose returns yaw, pitch and their rates at elapsed seconds.
func (m *mockSource) pose() (yaw, pitch, yawRate, pitchRate float64) {
	elapsed := m.now().Sub(m.start).Seconds()
	yawRate = 2 * math.Pi / 360 // one turn every six minutes
	yaw = math.Mod(elapsed*yawRate, 2*math.Pi)
	pitch = 0.5 + 0.3*math.Sin(elapsed*0.1)
	pitchRate = 0.03 * math.Cos(elapsed*0.1)
	return yaw, pitch, yawRate, pitchRate
}

// toBody expresses a world vector in the mock's body frame.
func (m *mockSource) toBody(w imu.Vector) imu.Vector {
	yaw, pitch, _, _ := m.pose()
	r0, r1, r2 := quaternion.ToRotationRows(quaternion.FromEuler(yaw, pitch, 0))
	return imu.Vector{
		X: r0.X*w.X + r1.X*w.Y + r2.X*w.Z,
		Y: r0.Y*w.X + r1.Y*w.Y + r2.Y*w.Z,
		Z: r0.Z*w.X + r1.Z*w.Y + r2.Z*w.Z,
	}
}

func (m *mockSource) ReadAccelerometer() (imu.Vector, error) {
	return m.toBody(imu.Vector{Z: -1}), nil
}

func (m *mockSource) ReadGyroscope() (imu.Vector, error) {
	_, pitch, yawRate, pitchRate := m.pose()
	// body rates for zero roll
	return imu.Vector{
		X: -yawRate * math.Sin(pitch),
		Y: pitchRate,
		Z: yawRate * math.Cos(pitch),
	}, nil
}

func (m *mockSource) ReadMagnetometer() (imu.Vector, error) {
	return m.toBody(mockField), nil
}
