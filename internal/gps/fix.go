// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"fmt"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// ErrNoFix is returned for sentences that carry no usable position.
var ErrNoFix = errors.New("gps: no valid fix")

// Fix represents a single RMC fix suitable for JSON and MQTT.
type Fix struct {
	Time       time.Time `json:"time"`
	Latitude   float64   `json:"lat"`         // decimal degrees, north positive
	Longitude  float64   `json:"lon"`         // decimal degrees, east positive
	SpeedKnots float64   `json:"speed_knots"` // speed over ground
	CourseDeg  float64   `json:"course_deg"`  // course over ground
}

// ParseFix decodes one NMEA line. Only valid RMC sentences yield a fix;
// other sentence types and void fixes return ErrNoFix.
func ParseFix(line string) (Fix, error) {
	line = strings.TrimSpace(line)
	// NMEA sentences usually start with '$'
	if !strings.HasPrefix(line, "$") {
		return Fix{}, ErrNoFix
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, fmt.Errorf("gps: parse %q: %w", line, err)
	}
	if sentence.DataType() != nmea.TypeRMC {
		return Fix{}, ErrNoFix
	}

	m := sentence.(nmea.RMC)
	if m.Validity != nmea.ValidRMC || !m.Date.Valid || !m.Time.Valid {
		return Fix{}, ErrNoFix
	}
	return Fix{
		Time:       fixTime(m.Date, m.Time),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
	}, nil
}

// fixTime joins the RMC date and time. Two-digit years are 20xx.
func fixTime(d nmea.Date, t nmea.Time) time.Time {
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
