// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"errors"

	"github.com/relabs-tech/telescope_server/internal/imu"
	"github.com/relabs-tech/telescope_server/internal/quaternion"
)

// Pose is the canonical representation of orientation, in radians.
// Yaw is measured from magnetic north towards east, pitch is positive nose
// up, roll is about the pointing axis.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide poses over time.
type Source interface {
	Euler() (Pose, error)
}

// ErrDegenerate is returned when acceleration and magnetic field are
// parallel (or zero) and no heading can be derived from them.
var ErrDegenerate = errors.New("accel/mag estimate undefined")

// minCross is the smallest |down × mag| (in units of |mag|) accepted.
const minCross = 1e-6

// AccelMagQuaternion computes the attitude from gravity and magnetic field
// alone: down = -accel, east = down × mag, north = east × down.
func AccelMagQuaternion(accel, mag imu.Vector) (quaternion.Quaternion, error) {
	down := accel.Scale(-1).Unit()
	east := down.Cross(mag)
	if n := mag.Norm(); n == 0 || east.Norm() < minCross*n {
		return quaternion.Quaternion{}, ErrDegenerate
	}
	east = east.Unit()
	north := east.Cross(down).Unit()
	return quaternion.Normalize(quaternion.FromRotationRows(north, east, down)), nil
}

// PoseFromQuaternion converts q to yaw, pitch and roll.
func PoseFromQuaternion(q quaternion.Quaternion) Pose {
	yaw, pitch, roll := quaternion.ToEuler(q)
	return Pose{Roll: roll, Pitch: pitch, Yaw: yaw}
}
