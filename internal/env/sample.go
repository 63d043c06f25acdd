// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import (
	"time"

	"periph.io/x/conn/v3/physic"
)

// Sample represents a single site environment measurement (BMP280).
type Sample struct {
	Temperature float64 `json:"temp_c"`       // °C
	Pressure    float64 `json:"pressure_hpa"` // hPa
	Time        string  `json:"time"`         // RFC3339, UTC
}

// FromPhysic converts a periph reading taken at t.
func FromPhysic(e physic.Env, t time.Time) Sample {
	pa := float64(e.Pressure) / float64(physic.Pascal)
	return Sample{
		Temperature: e.Temperature.Celsius(),
		Pressure:    pa / 100,
		Time:        t.UTC().Format(time.RFC3339),
	}
}
