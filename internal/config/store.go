// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"math"
	"sync"
)

// Store keeps the loaded configuration and rewrites the file whenever the
// site or the calibration changes at runtime.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  Config
}

// NewStore returns a Store that persists to path, starting from cfg.
func NewStore(path string, cfg *Config) *Store {
	return &Store{path: path, cfg: *cfg}
}

// Config returns a copy of the current configuration.
func (s *Store) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SaveSite records latitude and longitude (radians, longitude west-positive)
// and the timezone (hours) and writes the file.
func (s *Store) SaveSite(latitude, longitude, timezone float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.SiteLatitude = latitude * 180 / math.Pi
	s.cfg.SiteLongitude = longitude * 180 / math.Pi
	s.cfg.SiteTimezone = timezone
	return Save(s.path, &s.cfg)
}

// SaveCalibration records the altitude and azimuth offsets (radians) and
// writes the file.
func (s *Store) SaveCalibration(altitude, azimuth float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.OffsetAltitude = altitude
	s.cfg.OffsetAzimuth = azimuth
	return Save(s.path, &s.cfg)
}
