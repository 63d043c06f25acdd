// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package coords converts between the horizontal (alt/az) and equatorial
// (RA/Dec) frames and encodes angles for the LX200 and NexStar wire
// protocols. All angles are radians. Longitudes are positive west, as sent
// by LX200 clients.
package coords

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
)

// FullTurn is 2π.
const FullTurn = 2 * math.Pi

// Wrap reduces angle to [0, 2π).
func Wrap(angle float64) float64 {
	a := math.Mod(angle, FullTurn)
	if a < 0 {
		a += FullTurn
	}
	if a >= FullTurn {
		a = 0
	}
	return a
}

// clamp keeps asin/acos arguments inside [-1, 1].
func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// GreenwichSiderealTime returns the mean sidereal time at Greenwich for t,
// in radians.
func GreenwichSiderealTime(t time.Time) float64 {
	seconds := float64(sidereal.Mean(julian.TimeToJD(t.UTC())))
	return Wrap(seconds * math.Pi / 43200)
}

// AltAzToEquatorial converts a horizontal direction seen from lat/lon at
// Greenwich sidereal time gst into right ascension and declination.
func AltAzToEquatorial(alt, az, lat, lon, gst float64) (ra, dec float64) {
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	sinAlt, cosAlt := math.Sin(alt), math.Cos(alt)
	sinAz, cosAz := math.Sin(az), math.Cos(az)

	dec = math.Asin(clamp(sinAlt*sinLat + cosAlt*cosLat*cosAz))

	// hour angle is undefined at the poles; report 0 there
	den := cosLat * math.Cos(dec)
	var ha float64
	if den != 0 {
		ha = math.Acos(clamp((sinAlt - sinLat*math.Sin(dec)) / den))
	}
	if sinAz > 0 {
		ha = FullTurn - ha
	}
	return Wrap(gst - lon - ha), dec
}

// EquatorialToAltAz converts right ascension and declination into the
// horizontal direction seen from lat/lon at Greenwich sidereal time gst.
func EquatorialToAltAz(ra, dec, lat, lon, gst float64) (alt, az float64) {
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	sinDec, cosDec := math.Sin(dec), math.Cos(dec)
	h := gst - lon - ra
	sinH, cosH := math.Sin(h), math.Cos(h)

	alt = math.Asin(clamp(sinLat*sinDec + cosLat*cosDec*cosH))
	az = math.Atan2(-cosDec*sinH, cosLat*sinDec-sinLat*cosDec*cosH)
	return alt, Wrap(az)
}

// Diff returns the signed smallest difference a-b, in (-π, π].
func Diff(a, b float64) float64 {
	d := Wrap(a - b)
	if d > math.Pi {
		d -= FullTurn
	}
	return d
}
