// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package quaternion holds the rotation primitives used by the attitude
// estimator. Every function is pure; a Quaternion is a value type.
//
// Frames follow North, East, Down (NED) as in the rest of the project:
// yaw is about Z (down), pitch about Y (east), roll about X (north).
package quaternion

import (
	"math"

	"github.com/relabs-tech/telescope_server/internal/imu"
)

// minRotation is the smallest accumulated rotation (radians) worth turning
// into a quaternion; anything below it is treated as no rotation.
const minRotation = 1e-6

// Quaternion is a rotation {W, X, Y, Z}. Rotations are expected to be unit
// norm; call Normalize after repeated composition.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity is the no-rotation quaternion.
var Identity = Quaternion{W: 1}

// FromAxisAngle returns the rotation of angle radians about a unit axis.
func FromAxisAngle(axis imu.Vector, angle float64) Quaternion {
	s := math.Sin(angle / 2)
	return Quaternion{
		W: math.Cos(angle / 2),
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
	}
}

// FromAxisRates returns the rotation accumulated by a constant angular rate
// already multiplied by the elapsed time (so each component is in radians).
func FromAxisRates(rx, ry, rz float64) Quaternion {
	angle := math.Sqrt(rx*rx + ry*ry + rz*rz)
	if angle < minRotation {
		return Identity
	}
	axis := imu.Vector{X: rx / angle, Y: ry / angle, Z: rz / angle}
	return FromAxisAngle(axis, angle)
}

// Multiply returns the Hamilton product a*b. Not commutative: b is applied
// in the frame already rotated by a.
func Multiply(a, b Quaternion) Quaternion {
	return Quaternion{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
	}
}

// Magnitude returns the Euclidean norm of q.
func Magnitude(q Quaternion) float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalize scales q to unit norm.
func Normalize(q Quaternion) Quaternion {
	m := Magnitude(q)
	return Quaternion{W: q.W / m, X: q.X / m, Y: q.Y / m, Z: q.Z / m}
}

// Dot returns the 4-D dot product of a and b.
func Dot(a, b Quaternion) float64 {
	return a.W*b.W + a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Negate returns -q, which encodes the same rotation as q.
func Negate(q Quaternion) Quaternion {
	return Quaternion{W: -q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Blend mixes weight of b into (1-weight) of a, component-wise, after moving
// b onto a's hemisphere. The result is not normalised.
func Blend(a, b Quaternion, weight float64) Quaternion {
	if Dot(a, b) < 0 {
		b = Negate(b)
	}
	keep := 1 - weight
	return Quaternion{
		W: keep*a.W + weight*b.W,
		X: keep*a.X + weight*b.X,
		Y: keep*a.Y + weight*b.Y,
		Z: keep*a.Z + weight*b.Z,
	}
}

// ToRotationRows returns the three rows of the 3x3 rotation matrix for q.
func ToRotationRows(q Quaternion) (row0, row1, row2 imu.Vector) {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	row0 = imu.Vector{X: 1 - 2*(y*y+z*z), Y: 2 * (x*y - w*z), Z: 2 * (x*z + w*y)}
	row1 = imu.Vector{X: 2 * (x*y + w*z), Y: 1 - 2*(x*x+z*z), Z: 2 * (y*z - w*x)}
	row2 = imu.Vector{X: 2 * (x*z - w*y), Y: 2 * (y*z + w*x), Z: 1 - 2*(x*x+y*y)}
	return row0, row1, row2
}

// FromRotationRows converts a rotation matrix given as rows into a
// quaternion using Shepperd's method: the branch is picked on the largest of
// the trace and the three diagonal terms so the square root never sees a
// small difference of large numbers.
func FromRotationRows(row0, row1, row2 imu.Vector) Quaternion {
	m00, m01, m02 := row0.X, row0.Y, row0.Z
	m10, m11, m12 := row1.X, row1.Y, row1.Z
	m20, m21, m22 := row2.X, row2.Y, row2.Z
	trace := m00 + m11 + m22

	switch {
	case trace >= m00 && trace >= m11 && trace >= m22:
		s := 2 * math.Sqrt(1+trace)
		return Quaternion{
			W: 0.25 * s,
			X: (m21 - m12) / s,
			Y: (m02 - m20) / s,
			Z: (m10 - m01) / s,
		}
	case m00 >= m11 && m00 >= m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		return Quaternion{
			W: (m21 - m12) / s,
			X: 0.25 * s,
			Y: (m01 + m10) / s,
			Z: (m02 + m20) / s,
		}
	case m11 >= m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		return Quaternion{
			W: (m02 - m20) / s,
			X: (m01 + m10) / s,
			Y: 0.25 * s,
			Z: (m12 + m21) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		return Quaternion{
			W: (m10 - m01) / s,
			X: (m02 + m20) / s,
			Y: (m12 + m21) / s,
			Z: 0.25 * s,
		}
	}
}

// FromEuler builds a quaternion from yaw, pitch and roll (radians) applied
// in Z, Y, X order in the sensor's moving frame.
func FromEuler(yaw, pitch, roll float64) Quaternion {
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	return Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// ToEuler returns yaw (-π..π), pitch (-π/2..π/2) and roll (-π..π) for q.
// q need not be normalised.
func ToEuler(q Quaternion) (yaw, pitch, roll float64) {
	w2, x2, y2, z2 := q.W*q.W, q.X*q.X, q.Y*q.Y, q.Z*q.Z
	yaw = math.Atan2(2*(q.X*q.Y+q.Z*q.W), w2+x2-y2-z2)
	pitch = math.Asin(clamp(2 * (q.W*q.Y - q.X*q.Z) / (w2 + x2 + y2 + z2)))
	roll = math.Atan2(2*(q.Y*q.Z+q.X*q.W), w2-x2-y2+z2)
	return yaw, pitch, roll
}

// clamp keeps asin arguments inside [-1, 1]; round-off near the poles would
// otherwise turn into NaN.
func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
