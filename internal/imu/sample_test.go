package imu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorCross(t *testing.T) {
	x := Vector{X: 1}
	y := Vector{Y: 1}

	assert.Equal(t, Vector{Z: 1}, x.Cross(y))
	assert.Equal(t, Vector{Z: -1}, y.Cross(x))
}

func TestVectorUnit(t *testing.T) {
	v := Vector{X: 3, Y: 4}.Unit()
	assert.InDelta(t, 1.0, v.Norm(), 1e-12)
	assert.InDelta(t, 0.6, v.X, 1e-12)

	assert.Equal(t, Vector{}, Vector{}.Unit())
}
