package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/relabs-tech/telescope_server/internal/imu"
)

func TestNewHMC5883LConfiguresChip(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: DefaultMagAddr, W: []byte{hmcRegIDA}, R: []byte("H43")},
		{Addr: DefaultMagAddr, W: []byte{hmcRegConfigA, hmcConfigA}},
		{Addr: DefaultMagAddr, W: []byte{hmcRegConfigB, hmcConfigB}},
		{Addr: DefaultMagAddr, W: []byte{hmcRegMode, hmcModeCont}},
		// X=1090, Z=-545, Y=0
		{Addr: DefaultMagAddr, W: []byte{hmcRegDataX}, R: []byte{0x04, 0x42, 0xFD, 0xDF, 0x00, 0x00}},
	}}

	h, err := NewHMC5883L(bus, 0)
	require.NoError(t, err)

	v, err := h.Sense()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, v.X, 1e-9)
	assert.InDelta(t, 0.0, v.Y, 1e-9)
	assert.InDelta(t, -50.0, v.Z, 1e-9)
	assert.NoError(t, bus.Close())
}

func TestNewHMC5883LRejectsWrongChip(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x1E, W: []byte{hmcRegIDA}, R: []byte{0, 0, 0}},
	}}

	_, err := NewHMC5883L(bus, 0x1E)
	assert.ErrorContains(t, err, "unexpected ID")
}

func TestDecodeHMCOverflow(t *testing.T) {
	_, err := decodeHMC([]byte{0xF0, 0x00, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrMagOverflow)
}

func TestToNED(t *testing.T) {
	assert.Equal(t, imu.Vector{X: 1, Y: -2, Z: -3}, toNED(1, 2, 3))
}
