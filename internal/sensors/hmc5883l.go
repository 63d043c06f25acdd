// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/telescope_server/internal/imu"
)

// HMC5883L / HMC5983 register map.
const (
	hmcRegConfigA = 0x00
	hmcRegConfigB = 0x01
	hmcRegMode    = 0x02
	hmcRegDataX   = 0x03 // X, Z, Y big-endian pairs
	hmcRegIDA     = 0x0A

	hmcConfigA    = 0x70 // 8-sample average, 15 Hz, normal measurement
	hmcConfigB    = 0x20 // ±1.3 Ga
	hmcModeCont   = 0x00
	hmcLSBPerGa   = 1090.0
	hmcMicroTesla = 100.0 // µT per gauss
	hmcOverflow   = -4096

	// DefaultMagAddr is the fixed I2C address of the HMC5883L.
	DefaultMagAddr = 0x1E
)

// ErrMagOverflow is returned when an axis saturates.
var ErrMagOverflow = errors.New("magnetometer overflow")

// HMC5883L drives the GY-80 / HMC5983 3-axis compass over I2C.
type HMC5883L struct {
	dev *i2c.Dev
}

// NewHMC5883L checks the chip identity and starts continuous measurement.
func NewHMC5883L(bus i2c.Bus, addr uint16) (*HMC5883L, error) {
	if addr == 0 {
		addr = DefaultMagAddr
	}
	h := &HMC5883L{dev: &i2c.Dev{Bus: bus, Addr: addr}}

	id := make([]byte, 3)
	if err := h.dev.Tx([]byte{hmcRegIDA}, id); err != nil {
		return nil, fmt.Errorf("HMC5883L: read ID: %w", err)
	}
	if string(id) != "H43" {
		return nil, fmt.Errorf("HMC5883L: unexpected ID %q at 0x%02X", id, addr)
	}

	for _, w := range [][]byte{
		{hmcRegConfigA, hmcConfigA},
		{hmcRegConfigB, hmcConfigB},
		{hmcRegMode, hmcModeCont},
	} {
		if err := h.dev.Tx(w, nil); err != nil {
			return nil, fmt.Errorf("HMC5883L: write register 0x%02X: %w", w[0], err)
		}
	}
	return h, nil
}

// Sense returns the field in µT in the chip's own axes.
func (h *HMC5883L) Sense() (imu.Vector, error) {
	buf := make([]byte, 6)
	if err := h.dev.Tx([]byte{hmcRegDataX}, buf); err != nil {
		return imu.Vector{}, fmt.Errorf("HMC5883L: read data: %w", err)
	}
	return decodeHMC(buf)
}

// decodeHMC converts the six data registers (X, Z, Y order) to µT.
func decodeHMC(buf []byte) (imu.Vector, error) {
	x := int16(binary.BigEndian.Uint16(buf[0:2]))
	z := int16(binary.BigEndian.Uint16(buf[2:4]))
	y := int16(binary.BigEndian.Uint16(buf[4:6]))
	if x == hmcOverflow || y == hmcOverflow || z == hmcOverflow {
		return imu.Vector{}, ErrMagOverflow
	}
	scale := hmcMicroTesla / hmcLSBPerGa
	return imu.Vector{
		X: float64(x) * scale,
		Y: float64(y) * scale,
		Z: float64(z) * scale,
	}, nil
}
