// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/telescope_server/internal/app"
	"github.com/relabs-tech/telescope_server/internal/config"
	"github.com/relabs-tech/telescope_server/internal/orientation"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "configuration file")
	mock := flag.Bool("mock", false, "use simulated sensors")
	interval := flag.Duration("interval", 100*time.Millisecond, "print interval")
	flag.Parse()

	if err := run(*configPath, *mock, *interval); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(configPath string, mock bool, interval time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if mock {
		cfg.SensorMode = config.SensorModeMock
	}

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reader, release, err := app.OpenSensors(cfg, logger)
	if err != nil {
		logger.Error("sensors", zap.Error(err))
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("sensor release", zap.Error(err))
		}
	}()

	est, err := orientation.NewEstimator(reader, orientation.WithLogger(logger.Named("estimator")))
	if err != nil {
		logger.Error("estimator", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting orientation console", zap.String("sensors", cfg.SensorMode))
	if err := app.RunOrientationConsole(ctx, est, interval, os.Stdout); err != nil {
		logger.Error("orientation console stopped", zap.Error(err))
		return err
	}
	return nil
}
