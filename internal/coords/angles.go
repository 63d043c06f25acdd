// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package coords

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/unit"
)

// ParseError reports a malformed angle, time or hex field.
type ParseError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %s", e.Field, e.Value, e.Reason)
}

func parseErr(field, value, format string, args ...any) *ParseError {
	return &ParseError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// degreeSep normalises the separators clients put after the degrees:
// '*', the 0xDF byte Stellarium sends, or a UTF-8 degree sign.
var degreeSep = strings.NewReplacer("\xdf", "*", "°", "*", "'", ":")

// sexagesimal splits a total count of the smallest unit into three fields.
func sexagesimal(total, perMid, perHigh int64) (high, mid, low int64) {
	return total / perHigh, (total % perHigh) / perMid, total % perMid
}

// FormatHHMMSS encodes a right ascension as "HH:MM:SS#".
func FormatHHMMSS(ra float64) string {
	total := int64(math.Round(unit.RA(Wrap(ra)).Hour()*3600)) % 86400
	h, m, s := sexagesimal(total, 60, 3600)
	return fmt.Sprintf("%02d:%02d:%02d#", h, m, s)
}

// FormatHHMMT encodes a right ascension as "HH:MM.T#" (tenths of a minute).
func FormatHHMMT(ra float64) string {
	total := int64(math.Round(unit.RA(Wrap(ra)).Hour()*600)) % 14400
	h, m, t := sexagesimal(total, 10, 600)
	return fmt.Sprintf("%02d:%02d.%d#", h, m, t)
}

// FormatSDDMMSS encodes a declination as "sDD*MM:SS#".
func FormatSDDMMSS(dec float64) string {
	sign, deg := signed(dec)
	total := int64(math.Round(deg * 3600))
	d, m, s := sexagesimal(total, 60, 3600)
	return fmt.Sprintf("%c%02d*%02d:%02d#", sign, d, m, s)
}

// FormatSDDMM encodes a declination as "sDD*MM#".
func FormatSDDMM(dec float64) string {
	sign, deg := signed(dec)
	total := int64(math.Round(deg * 60))
	return fmt.Sprintf("%c%02d*%02d#", sign, total/60, total%60)
}

// signed splits an angle into its sign byte and absolute value in degrees.
func signed(rad float64) (byte, float64) {
	deg := unit.Angle(rad).Deg()
	if deg < 0 {
		return '-', -deg
	}
	return '+', deg
}

// ParseHHMM decodes "HH:MM:SS" or "HH:MM.T" into a right ascension.
func ParseHHMM(value string) (float64, error) {
	const field = "right ascension"
	s := strings.TrimSpace(value)
	parts := strings.Split(s, ":")

	var h, m int
	var sec float64
	var err error
	switch len(parts) {
	case 3:
		if h, err = strconv.Atoi(parts[0]); err != nil {
			return 0, parseErr(field, value, "bad hours")
		}
		if m, err = strconv.Atoi(parts[1]); err != nil {
			return 0, parseErr(field, value, "bad minutes")
		}
		if sec, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return 0, parseErr(field, value, "bad seconds")
		}
	case 2:
		if h, err = strconv.Atoi(parts[0]); err != nil {
			return 0, parseErr(field, value, "bad hours")
		}
		minutes, tenths, found := strings.Cut(parts[1], ".")
		if m, err = strconv.Atoi(minutes); err != nil {
			return 0, parseErr(field, value, "bad minutes")
		}
		if found {
			t, err := strconv.Atoi(tenths)
			if err != nil || len(tenths) != 1 || t < 0 {
				return 0, parseErr(field, value, "bad tenths of minute")
			}
			sec = float64(t) * 6
		}
	default:
		return 0, parseErr(field, value, "want HH:MM:SS or HH:MM.T")
	}

	if h < 0 || h >= 24 {
		return 0, parseErr(field, value, "hours %d out of range", h)
	}
	if m < 0 || m >= 60 {
		return 0, parseErr(field, value, "minutes %d out of range", m)
	}
	if sec < 0 || sec >= 60 || math.IsNaN(sec) {
		return 0, parseErr(field, value, "seconds %g out of range", sec)
	}
	return unit.NewRA(h, m, sec).Rad(), nil
}

// ParseSDDMM decodes a declination or latitude given as "sDD*MM",
// "sDD*MM:SS" or "sDD*MM'SS". The sign is optional.
func ParseSDDMM(value string) (float64, error) {
	return parseDegrees("declination", value, 90)
}

// ParseDDDMM decodes a longitude given as "DDD*MM" or "sDDD*MM" (optionally
// with ":SS"). West is positive.
func ParseDDDMM(value string) (float64, error) {
	return parseDegrees("longitude", value, 360)
}

func parseDegrees(field, value string, limit float64) (float64, error) {
	s := degreeSep.Replace(strings.TrimSpace(value))

	neg := byte('+')
	switch {
	case strings.HasPrefix(s, "-"):
		neg = '-'
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	degText, rest, found := strings.Cut(s, "*")
	if !found {
		return 0, parseErr(field, value, "missing degree separator")
	}
	d, err := strconv.Atoi(degText)
	if err != nil || d < 0 {
		return 0, parseErr(field, value, "bad degrees")
	}

	minText, secText, hasSec := strings.Cut(rest, ":")
	m, err := strconv.Atoi(minText)
	if err != nil || m < 0 || m >= 60 {
		return 0, parseErr(field, value, "bad arcminutes")
	}
	var sec float64
	// A trailing arcminute mark ("003*08'") leaves an empty seconds field.
	if hasSec && secText != "" {
		sec, err = strconv.ParseFloat(secText, 64)
		if err != nil || sec < 0 || sec >= 60 {
			return 0, parseErr(field, value, "bad arcseconds")
		}
	}

	a := unit.NewAngle(neg, d, m, sec)
	if math.Abs(a.Deg()) > limit {
		return 0, parseErr(field, value, "magnitude above %g degrees", limit)
	}
	return a.Rad(), nil
}

// ParseTimezone decodes "sHH.H", the hours to add to local time to get UTC.
func ParseTimezone(value string) (float64, error) {
	s := strings.TrimSpace(value)
	tz, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(tz) || math.IsInf(tz, 0) {
		return 0, parseErr("timezone", value, "want sHH.H")
	}
	if math.Abs(tz) > 24 {
		return 0, parseErr("timezone", value, "offset above 24 hours")
	}
	return tz, nil
}

// NexStar hex fractions of a full turn.
const (
	nexstarLow     = 1 << 16
	nexstarPrecise = 1 << 32
)

func nexstarFraction(angle float64, steps uint64) uint64 {
	return uint64(math.Round(Wrap(angle)/FullTurn*float64(steps))) % steps
}

// FormatNexStar encodes RA and Dec as "RRRR,DDDD#" (precise: "RRRRRRRR,DDDDDDDD#").
// Negative declinations wrap to the top of the range.
func FormatNexStar(ra, dec float64, precise bool) string {
	if precise {
		return fmt.Sprintf("%08X,%08X#", nexstarFraction(ra, nexstarPrecise), nexstarFraction(dec, nexstarPrecise))
	}
	return fmt.Sprintf("%04X,%04X#", nexstarFraction(ra, nexstarLow), nexstarFraction(dec, nexstarLow))
}

// ParseNexStar decodes "RRRR,DDDD" (precise: eight hex digits per field).
// The returned declination lies in [-π/2, π/2].
func ParseNexStar(value string, precise bool) (ra, dec float64, err error) {
	const field = "nexstar coordinates"
	digits, steps := 4, float64(nexstarLow)
	if precise {
		digits, steps = 8, float64(nexstarPrecise)
	}

	raText, decText, found := strings.Cut(strings.TrimSpace(value), ",")
	if !found {
		return 0, 0, parseErr(field, value, "missing comma")
	}
	parse := func(text string) (float64, error) {
		if len(text) != digits {
			return 0, parseErr(field, value, "want %d hex digits", digits)
		}
		n, err := strconv.ParseUint(text, 16, 64)
		if err != nil {
			return 0, parseErr(field, value, "bad hex")
		}
		return float64(n) / steps * FullTurn, nil
	}
	if ra, err = parse(raText); err != nil {
		return 0, 0, err
	}
	if dec, err = parse(decText); err != nil {
		return 0, 0, err
	}
	if dec > math.Pi {
		dec -= FullTurn
	}
	if math.Abs(dec) > math.Pi/2 {
		return 0, 0, parseErr(field, value, "declination beyond a pole")
	}
	return ra, dec, nil
}
