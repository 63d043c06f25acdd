// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gps reads NMEA fixes from a serial receiver and feeds the site
// location and time into the session.
package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/relabs-tech/telescope_server/internal/session"
)

// Thresholds below which a fix does not update the session.
const (
	SiteTolerance  = 1e-5 // radians, about 60 m on the ground
	ClockTolerance = 2 * time.Second
)

// Sink receives location and time from fixes.
type Sink interface {
	Site() session.Site
	SetSite(latitude, longitude float64) error
	Now() time.Time
	SetClock(t time.Time)
}

// OpenSerial opens the receiver's serial port, 8N1.
func OpenSerial(port string, baud uint) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("gps: open %s: %w", port, err)
	}
	return p, nil
}

// Listener applies valid fixes to a Sink.
type Listener struct {
	sink     Sink
	setClock bool
	logger   *zap.Logger

	mu   sync.Mutex
	last Fix
	seen bool
}

// NewListener returns a listener feeding sink. With setClock the session
// clock follows GPS time as well.
func NewListener(sink Sink, setClock bool, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{sink: sink, setClock: setClock, logger: logger}
}

// Run reads NMEA lines from r until it fails or ctx is done. Closing r is
// the caller's way to unblock a pending read.
func (l *Listener) Run(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if line != "" {
			l.HandleLine(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("gps: read: %w", err)
		}
	}
}

// HandleLine parses one NMEA line and applies it if it is a valid fix.
func (l *Listener) HandleLine(line string) {
	fix, err := ParseFix(line)
	if err != nil {
		if !errors.Is(err, ErrNoFix) {
			// noisy GPS or partial sentences
			l.logger.Debug("NMEA parse error", zap.Error(err))
		}
		return
	}
	l.Apply(fix)
}

// Apply moves the session site (and clock) to fix when they differ by more
// than the tolerances.
func (l *Listener) Apply(fix Fix) {
	l.mu.Lock()
	l.last, l.seen = fix, true
	l.mu.Unlock()

	lat := fix.Latitude * math.Pi / 180
	// LX200 longitudes are positive west.
	lon := -fix.Longitude * math.Pi / 180
	site := l.sink.Site()
	if math.Abs(site.Latitude-lat) > SiteTolerance || math.Abs(site.Longitude-lon) > SiteTolerance {
		if err := l.sink.SetSite(lat, lon); err != nil {
			l.logger.Warn("GPS site rejected", zap.Error(err))
		} else {
			l.logger.Info("site set from GPS", zap.Float64("lat", fix.Latitude), zap.Float64("lon", fix.Longitude))
		}
	}

	if !l.setClock {
		return
	}
	drift := fix.Time.Sub(l.sink.Now())
	if drift > ClockTolerance || drift < -ClockTolerance {
		l.sink.SetClock(fix.Time)
		l.logger.Info("clock set from GPS", zap.Time("time", fix.Time), zap.Duration("drift", drift))
	}
}

// Last returns the most recent valid fix.
func (l *Listener) Last() (Fix, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.seen
}
