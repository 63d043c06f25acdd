// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/telescope_server/internal/env"
)

// EnvSensor reads site temperature and pressure from a BMP280 on SPI.
type EnvSensor struct {
	port spi.PortCloser
	dev  *bmxx80.Dev
	now  func() time.Time
}

// NewEnvSensor opens the BMP280 on spiDev.
func NewEnvSensor(spiDev string) (*EnvSensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("BMP: periph host init: %w", err)
	}

	port, err := spireg.Open(spiDev)
	if err != nil {
		return nil, fmt.Errorf("BMP: SPI open (%s): %w", spiDev, err)
	}

	dev, err := bmxx80.NewSPI(port, &bmxx80.DefaultOpts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("BMP: init: %w", err)
	}
	return &EnvSensor{port: port, dev: dev, now: time.Now}, nil
}

// Read reads temperature and pressure.
func (s *EnvSensor) Read() (env.Sample, error) {
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return env.Sample{}, fmt.Errorf("BMP sense: %w", err)
	}
	return env.FromPhysic(e, s.now()), nil
}

// Close halts the chip and releases the SPI port.
func (s *EnvSensor) Close() error {
	if err := s.dev.Halt(); err != nil {
		s.port.Close()
		return fmt.Errorf("BMP halt: %w", err)
	}
	return s.port.Close()
}
