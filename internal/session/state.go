// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session holds the state shared by every client of the telescope:
// site, calibration, staged target, precision mode and the virtual clock.
package session

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/telescope_server/internal/coords"
	"github.com/relabs-tech/telescope_server/internal/orientation"
)

// Site is the observer location. Longitude is positive west; Timezone is
// the hours added to local time to give UTC.
type Site struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  float64 `json:"timezone"`
}

// Calibration is added to the raw pitch and yaw to give altitude and
// azimuth.
type Calibration struct {
	Altitude float64 `json:"altitude"`
	Azimuth  float64 `json:"azimuth"`
}

// Target is the staged sky position, zero until a client sets it.
type Target struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

// Persister saves site and calibration changes. Angles are radians,
// longitude positive west, timezone in hours.
type Persister interface {
	SaveSite(latitude, longitude, timezone float64) error
	SaveCalibration(altitude, azimuth float64) error
}

// State is the single telescope session. It is safe for concurrent use.
type State struct {
	mu       sync.Mutex
	attitude orientation.Source
	persist  Persister
	logger   *zap.Logger
	now      func() time.Time

	site          Site
	calibration   Calibration
	target        Target
	highPrecision bool
	clockOffset   time.Duration
}

// Option configures a State.
type Option func(*State)

// WithClock replaces time.Now as the host clock.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *State) { s.logger = logger }
}

// WithPersister saves site and calibration changes through p.
func WithPersister(p Persister) Option {
	return func(s *State) { s.persist = p }
}

// New creates the session around an attitude source. Precision starts high.
func New(attitude orientation.Source, site Site, cal Calibration, opts ...Option) *State {
	s := &State{
		attitude:      attitude,
		logger:        zap.NewNop(),
		now:           time.Now,
		site:          site,
		calibration:   cal,
		highPrecision: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the host clock shifted by the client-set offset, in UTC.
func (s *State) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowLocked()
}

func (s *State) nowLocked() time.Time {
	return s.now().UTC().Add(s.clockOffset)
}

// GST returns the Greenwich sidereal time at Now, in radians.
func (s *State) GST() float64 {
	return coords.GreenwichSiderealTime(s.Now())
}

// AltAz reads the attitude and returns the calibrated altitude and azimuth,
// both in [0, 2π).
func (s *State) AltAz() (alt, az float64, err error) {
	pose, err := s.attitude.Euler()
	if err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	alt, az = s.applyCalibration(pose)
	return alt, az, nil
}

func (s *State) applyCalibration(pose orientation.Pose) (alt, az float64) {
	return coords.Wrap(s.calibration.Altitude + pose.Pitch), coords.Wrap(s.calibration.Azimuth + pose.Yaw)
}

// Equatorial returns where the instrument points, as RA and Dec.
func (s *State) Equatorial() (ra, dec float64, err error) {
	pose, err := s.attitude.Euler()
	if err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	alt, az := s.applyCalibration(pose)
	gst := coords.GreenwichSiderealTime(s.nowLocked())
	ra, dec = coords.AltAzToEquatorial(alt, az, s.site.Latitude, s.site.Longitude, gst)
	return ra, dec, nil
}

// Sync aligns the instrument on the staged target: the difference between
// the target's alt/az and the observed alt/az is folded into the
// calibration, which is then persisted.
func (s *State) Sync() error {
	pose, err := s.attitude.Euler()
	if err != nil {
		return err
	}

	s.mu.Lock()
	alt, az := s.applyCalibration(pose)
	gst := coords.GreenwichSiderealTime(s.nowLocked())
	targetAlt, targetAz := coords.EquatorialToAltAz(s.target.RA, s.target.Dec, s.site.Latitude, s.site.Longitude, gst)
	s.calibration.Altitude = coords.Wrap(s.calibration.Altitude + targetAlt - alt)
	s.calibration.Azimuth = coords.Wrap(s.calibration.Azimuth + targetAz - az)
	cal := s.calibration
	target := s.target
	s.mu.Unlock()

	s.logger.Info("synced on target",
		zap.String("ra", coords.FormatHHMMSS(target.RA)),
		zap.String("dec", coords.FormatSDDMMSS(target.Dec)),
		zap.Float64("offset_alt", cal.Altitude),
		zap.Float64("offset_az", cal.Azimuth))
	s.saveCalibration(cal)
	return nil
}

// SetTargetRA stages a right ascension given as HH:MM:SS or HH:MM.T.
// On error the previous target is kept.
func (s *State) SetTargetRA(arg string) error {
	ra, err := coords.ParseHHMM(arg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.target.RA = ra
	s.mu.Unlock()
	s.logger.Debug("target right ascension staged", zap.String("arg", arg), zap.Float64("ra", ra))
	return nil
}

// SetTargetDec stages a declination given as sDD*MM or sDD*MM:SS.
// On error the previous target is kept.
func (s *State) SetTargetDec(arg string) error {
	dec, err := coords.ParseSDDMM(arg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.target.Dec = dec
	s.mu.Unlock()
	s.logger.Debug("target declination staged", zap.String("arg", arg), zap.Float64("dec", dec))
	return nil
}

// SetTargetFractions stages both coordinates from NexStar hex fractions.
func (s *State) SetTargetFractions(arg string, precise bool) error {
	ra, dec, err := coords.ParseNexStar(arg, precise)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.target = Target{RA: ra, Dec: dec}
	s.mu.Unlock()
	return nil
}

// Target returns the staged target.
func (s *State) Target() Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// TogglePrecision flips between high (seconds) and low (tenths of a minute,
// arcminutes) output.
func (s *State) TogglePrecision() bool {
	s.mu.Lock()
	s.highPrecision = !s.highPrecision
	high := s.highPrecision
	s.mu.Unlock()
	s.logger.Info("precision toggled", zap.Bool("high", high))
	return high
}

// HighPrecision reports the current output precision.
func (s *State) HighPrecision() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highPrecision
}

// Site returns the observer location.
func (s *State) Site() Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.site
}

// Calibration returns the current offsets.
func (s *State) Calibration() Calibration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibration
}

// SetLatitude sets the site latitude from sDD*MM.
func (s *State) SetLatitude(arg string) error {
	lat, err := coords.ParseSDDMM(arg)
	if err != nil {
		return err
	}
	s.updateSite(func(site *Site) { site.Latitude = lat })
	return nil
}

// SetLongitude sets the site longitude from DDD*MM (positive west).
func (s *State) SetLongitude(arg string) error {
	lon, err := coords.ParseDDDMM(arg)
	if err != nil {
		return err
	}
	s.updateSite(func(site *Site) { site.Longitude = lon })
	return nil
}

// SetTimezone sets the hours added to local time to give UTC, from sHH.H.
func (s *State) SetTimezone(arg string) error {
	tz, err := coords.ParseTimezone(arg)
	if err != nil {
		return err
	}
	s.updateSite(func(site *Site) { site.Timezone = tz })
	return nil
}

// SetSite replaces latitude and longitude (radians, positive west), as
// reported by a GPS fix.
func (s *State) SetSite(latitude, longitude float64) error {
	if math.Abs(latitude) > math.Pi/2 || math.IsNaN(latitude) || math.IsNaN(longitude) {
		return &coords.ParseError{
			Field:  "site",
			Value:  fmt.Sprintf("%g,%g", latitude, longitude),
			Reason: "latitude beyond a pole",
		}
	}
	s.updateSite(func(site *Site) {
		site.Latitude = latitude
		site.Longitude = longitude
	})
	return nil
}

func (s *State) updateSite(change func(*Site)) {
	s.mu.Lock()
	change(&s.site)
	site := s.site
	s.mu.Unlock()

	s.logger.Info("site updated",
		zap.Float64("latitude_deg", site.Latitude*180/math.Pi),
		zap.Float64("longitude_deg", site.Longitude*180/math.Pi),
		zap.Float64("timezone", site.Timezone))
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveSite(site.Latitude, site.Longitude, site.Timezone); err != nil {
		s.logger.Warn("failed to persist site", zap.Error(err))
	}
}

func (s *State) saveCalibration(cal Calibration) {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveCalibration(cal.Altitude, cal.Azimuth); err != nil {
		s.logger.Warn("failed to persist calibration", zap.Error(err))
	}
}

// localWallLocked returns the site's local wall-clock time as a UTC-zoned
// value.
func (s *State) localWallLocked() time.Time {
	return s.nowLocked().Add(-time.Duration(s.site.Timezone * float64(time.Hour)))
}

// SetLocalTime shifts the virtual clock so the site's local time reads
// HH:MM:SS now. The date is left to SetLocalDate.
func (s *State) SetLocalTime(arg string) error {
	parts := strings.Split(strings.TrimSpace(arg), ":")
	if len(parts) != 3 {
		return &coords.ParseError{Field: "local time", Value: arg, Reason: "want HH:MM:SS"}
	}
	var hms [3]int
	limits := [3]int{24, 60, 60}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] {
			return &coords.ParseError{Field: "local time", Value: arg, Reason: "field out of range"}
		}
		hms[i] = n
	}
	desired := time.Duration(hms[0])*time.Hour + time.Duration(hms[1])*time.Minute + time.Duration(hms[2])*time.Second

	s.mu.Lock()
	local := s.localWallLocked()
	current := local.Sub(local.Truncate(24 * time.Hour))
	delta := (desired - current).Truncate(time.Second)
	s.clockOffset += delta
	offset := s.clockOffset
	s.mu.Unlock()

	s.logger.Info("local time set", zap.String("time", arg), zap.Duration("delta", delta), zap.Duration("offset", offset))
	return nil
}

// SetLocalDate shifts the virtual clock by whole days so the site's local
// date reads MM/DD/YY. Years 69-99 are 19YY, 00-68 are 20YY.
func (s *State) SetLocalDate(arg string) error {
	wanted, err := time.Parse("01/02/06", strings.TrimSpace(arg))
	if err != nil {
		return &coords.ParseError{Field: "local date", Value: arg, Reason: "want MM/DD/YY"}
	}

	s.mu.Lock()
	local := s.localWallLocked()
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Round(wanted.Sub(today).Hours() / 24))
	delta := time.Duration(days) * 24 * time.Hour
	s.clockOffset += delta
	s.mu.Unlock()

	s.logger.Info("local date set", zap.String("date", arg), zap.Int("days", days))
	return nil
}

// SetClock shifts the virtual clock so Now reports t.
func (s *State) SetClock(t time.Time) {
	s.mu.Lock()
	s.clockOffset = t.Sub(s.now())
	s.mu.Unlock()
}

// ClockOffset returns the shift applied to the host clock.
func (s *State) ClockOffset() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockOffset
}

// Snapshot is a point-in-time view of where the instrument points, for
// telemetry. Angles are degrees, right ascension in hours.
type Snapshot struct {
	Time          time.Time `json:"time"`
	RA            float64   `json:"ra_hours"`
	Dec           float64   `json:"dec_deg"`
	Alt           float64   `json:"alt_deg"`
	Az            float64   `json:"az_deg"`
	RAText        string    `json:"ra"`
	DecText       string    `json:"dec"`
	Latitude      float64   `json:"latitude_deg"`
	Longitude     float64   `json:"longitude_deg"`
	HighPrecision bool      `json:"high_precision"`
}

// Snapshot reads the attitude once and reports the pointing in every frame.
func (s *State) Snapshot() (Snapshot, error) {
	pose, err := s.attitude.Euler()
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowLocked()
	alt, az := s.applyCalibration(pose)
	ra, dec := coords.AltAzToEquatorial(alt, az, s.site.Latitude, s.site.Longitude, coords.GreenwichSiderealTime(now))

	const deg = 180 / math.Pi
	snap := Snapshot{
		Time:          now,
		RA:            ra * 12 / math.Pi,
		Dec:           dec * deg,
		Alt:           altitudeDegrees(alt),
		Az:            az * deg,
		Latitude:      s.site.Latitude * deg,
		Longitude:     s.site.Longitude * deg,
		HighPrecision: s.highPrecision,
	}
	if s.highPrecision {
		snap.RAText, snap.DecText = coords.FormatHHMMSS(ra), coords.FormatSDDMMSS(dec)
	} else {
		snap.RAText, snap.DecText = coords.FormatHHMMT(ra), coords.FormatSDDMM(dec)
	}
	snap.RAText = strings.TrimSuffix(snap.RAText, "#")
	snap.DecText = strings.TrimSuffix(snap.DecText, "#")
	return snap, nil
}

// altitudeDegrees maps a wrapped altitude back to (-180, 180] degrees.
func altitudeDegrees(alt float64) float64 {
	return coords.Diff(alt, 0) * 180 / math.Pi
}
