// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/telescope_server/internal/session"
)

// OLED geometry.
const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// RunDisplay shows the pointing on an SSD1306 OLED on the given I2C bus,
// refreshed every interval until ctx is done.
func RunDisplay(ctx context.Context, busName string, interval time.Duration, state *session.State, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	logger.Info("display initialized", zap.String("bus", busName))

	if err := dev.Draw(dev.Bounds(), renderLines("Telescope", "Push-To", "Waiting..."), image.Point{}); err != nil {
		logger.Warn("display splash error", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		snap, err := state.Snapshot()
		if err := dev.Draw(dev.Bounds(), renderPointing(snap, err == nil), image.Point{}); err != nil {
			logger.Warn("display update error", zap.Error(err))
		}
	}
}

// renderPointing lays out RA, Dec, Alt and Az, one per line.
func renderPointing(s session.Snapshot, haveData bool) *image1bit.VerticalLSB {
	if !haveData {
		return renderLines("Pointing", "Sensor error")
	}
	return renderLines(
		"RA  "+s.RAText,
		"DEC "+s.DecText,
		fmt.Sprintf("ALT %6.1f", s.Alt),
		fmt.Sprintf("AZ  %6.1f", s.Az),
	)
}

func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, lineHeight*(i+1))
		drawer.DrawString(line)
	}
	return img
}
