package quaternion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/telescope_server/internal/imu"
)

const tol = 1e-9

func assertSameRotation(t *testing.T, want, got Quaternion) {
	t.Helper()
	if Dot(want, got) < 0 {
		got = Negate(got)
	}
	assert.InDelta(t, want.W, got.W, tol)
	assert.InDelta(t, want.X, got.X, tol)
	assert.InDelta(t, want.Y, got.Y, tol)
	assert.InDelta(t, want.Z, got.Z, tol)
}

func TestFromAxisRatesBelowThresholdIsIdentity(t *testing.T) {
	assert.Equal(t, Identity, FromAxisRates(0, 0, 0))
	assert.Equal(t, Identity, FromAxisRates(1e-7, -1e-7, 0))
}

func TestFromAxisRatesMatchesAxisAngle(t *testing.T) {
	got := FromAxisRates(0, 0, math.Pi/2)
	want := FromAxisAngle(imu.Vector{Z: 1}, math.Pi/2)
	assertSameRotation(t, want, got)
	assert.InDelta(t, 1.0, Magnitude(got), tol)
}

func TestMultiplyIdentity(t *testing.T) {
	q := Normalize(Quaternion{W: 0.3, X: -0.2, Y: 0.5, Z: 0.1})
	assertSameRotation(t, q, Multiply(q, Identity))
	assertSameRotation(t, q, Multiply(Identity, q))
}

func TestMultiplyComposesRotations(t *testing.T) {
	quarter := FromAxisAngle(imu.Vector{Z: 1}, math.Pi/2)
	half := FromAxisAngle(imu.Vector{Z: 1}, math.Pi)
	assertSameRotation(t, half, Multiply(quarter, quarter))

	// i*j = k
	i := Quaternion{X: 1}
	j := Quaternion{Y: 1}
	assert.Equal(t, Quaternion{Z: 1}, Multiply(i, j))
	assert.Equal(t, Quaternion{Z: -1}, Multiply(j, i))
}

func TestRotationRowsRoundTrip(t *testing.T) {
	cases := []Quaternion{
		Identity,
		Normalize(Quaternion{W: 0.9, X: 0.1, Y: -0.3, Z: 0.2}),
		Normalize(Quaternion{W: 0.05, X: 0.99, Y: 0.1, Z: -0.05}),
		Normalize(Quaternion{W: 0.1, X: 0.1, Y: 0.98, Z: 0.2}),
		Normalize(Quaternion{W: -0.02, X: 0.3, Y: 0.1, Z: 0.95}),
		FromAxisAngle(imu.Vector{X: 1}, math.Pi),
	}
	for _, q := range cases {
		r0, r1, r2 := ToRotationRows(q)
		assertSameRotation(t, q, FromRotationRows(r0, r1, r2))
	}
}

func TestFromRotationRowsIdentity(t *testing.T) {
	q := FromRotationRows(imu.Vector{X: 1}, imu.Vector{Y: 1}, imu.Vector{Z: 1})
	assertSameRotation(t, Identity, q)
}

func TestEulerRoundTrip(t *testing.T) {
	cases := []struct {
		name             string
		yaw, pitch, roll float64
	}{
		{"zero", 0, 0, 0},
		{"yaw only", 1.2, 0, 0},
		{"pitch only", 0, 0.6, 0},
		{"roll only", 0, 0, -2.1},
		{"mixed", -2.5, -1.1, 0.4},
		{"near pole", 0.3, 1.5, 0.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			yaw, pitch, roll := ToEuler(FromEuler(tc.yaw, tc.pitch, tc.roll))
			assert.InDelta(t, tc.yaw, yaw, 1e-9)
			assert.InDelta(t, tc.pitch, pitch, 1e-9)
			assert.InDelta(t, tc.roll, roll, 1e-9)
		})
	}
}

func TestToEulerClampsAtPole(t *testing.T) {
	// Slightly over-unit pitch term from round-off must not yield NaN.
	q := Quaternion{W: math.Sqrt(0.5) + 1e-12, Y: math.Sqrt(0.5) + 1e-12}
	_, pitch, _ := ToEuler(q)
	assert.False(t, math.IsNaN(pitch))
	assert.InDelta(t, math.Pi/2, pitch, 1e-5)
}

func TestBlendAlignsHemisphere(t *testing.T) {
	q := Normalize(Quaternion{W: 0.8, X: 0.2, Y: 0.1, Z: 0.3})
	got := Normalize(Blend(q, Negate(q), 0.02))
	assertSameRotation(t, q, got)
	assert.Greater(t, got.W, 0.0)
}
