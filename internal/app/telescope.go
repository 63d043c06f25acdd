// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/telescope_server/internal/config"
	"github.com/relabs-tech/telescope_server/internal/gps"
	"github.com/relabs-tech/telescope_server/internal/orientation"
	"github.com/relabs-tech/telescope_server/internal/protocol"
	"github.com/relabs-tech/telescope_server/internal/sensors"
	"github.com/relabs-tech/telescope_server/internal/session"
)

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// OpenSensors returns the configured reader, bounded by the sensor timeout,
// and a function releasing the hardware.
func OpenSensors(cfg *config.Config, logger *zap.Logger) (sensors.Reader, func() error, error) {
	var (
		r       sensors.Reader
		release = func() error { return nil }
	)
	switch cfg.SensorMode {
	case config.SensorModeMock:
		logger.Info("using mock sensors")
		r = sensors.NewMockSource(time.Now)
	default:
		var err error
		r, release, err = sensors.NewIMUSource(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
	}
	return sensors.WithTimeout(r, millis(cfg.SensorTimeoutMS)), release, nil
}

// NewSession builds the shared session from the stored site and
// calibration, persisting later changes to store.
func NewSession(cfg *config.Config, att orientation.Source, store *config.Store, logger *zap.Logger) *session.State {
	const rad = math.Pi / 180
	return session.New(att,
		session.Site{
			Latitude:  cfg.SiteLatitude * rad,
			Longitude: cfg.SiteLongitude * rad,
			Timezone:  cfg.SiteTimezone,
		},
		session.Calibration{Altitude: cfg.OffsetAltitude, Azimuth: cfg.OffsetAzimuth},
		session.WithPersister(store),
		session.WithLogger(logger.Named("session")))
}

// RunTelescopeServer runs the LX200/NexStar server and every enabled
// companion (MQTT telemetry, GPS, web, display) until ctx is done or one of
// them fails.
func RunTelescopeServer(ctx context.Context, configPath string, cfg *config.Config, logger *zap.Logger) error {
	reader, release, err := OpenSensors(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("sensor release", zap.Error(err))
		}
	}()

	est, err := orientation.NewEstimator(reader, orientation.WithLogger(logger.Named("estimator")))
	if err != nil {
		return err
	}
	store := config.NewStore(configPath, cfg)
	state := NewSession(cfg, est, store, logger)

	var tel *Telemetry
	if cfg.MQTTBroker != "" {
		client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		logger.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

		tel = &Telemetry{
			State:         state,
			Publisher:     NewMQTTPublisher(client),
			TopicPointing: cfg.TopicPointing,
			TopicEnv:      cfg.TopicEnv,
			Interval:      millis(cfg.PublishInterval),
			Logger:        logger.Named("telemetry"),
		}
		if cfg.BMPSPIDevice != "" {
			envSensor, err := sensors.NewEnvSensor(cfg.BMPSPIDevice)
			if err != nil {
				logger.Warn("BMP280 unavailable, env telemetry off", zap.Error(err))
			} else {
				defer envSensor.Close()
				tel.Env = envSensor
			}
		}
	}

	var gpsPort io.ReadWriteCloser
	if cfg.GPSSerialPort != "" {
		gpsPort, err = gps.OpenSerial(cfg.GPSSerialPort, uint(cfg.GPSBaudRate))
		if err != nil {
			return err
		}
		defer gpsPort.Close()
		logger.Info("GPS serial port opened", zap.String("port", cfg.GPSSerialPort), zap.Int("baud", cfg.GPSBaudRate))
	}

	g, ctx := errgroup.WithContext(ctx)

	addr := net.JoinHostPort(cfg.ServerAddress, strconv.Itoa(cfg.ServerPort))
	srv := NewServer(addr, protocol.NewDispatcher(state, logger.Named("protocol")), est, logger)
	g.Go(func() error { return srv.Run(ctx) })

	if tel != nil {
		g.Go(func() error { return tel.Run(ctx) })
	}

	if gpsPort != nil {
		listener := gps.NewListener(state, cfg.GPSSetClock, logger.Named("gps"))
		g.Go(func() error {
			go func() {
				<-ctx.Done()
				gpsPort.Close()
			}()
			return listener.Run(ctx, gpsPort)
		})
	}

	if cfg.WebServerPort != 0 {
		if cfg.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		web := NewWeb(state, millis(cfg.WebPushInterval), logger)
		webAddr := net.JoinHostPort(cfg.ServerAddress, strconv.Itoa(cfg.WebServerPort))
		g.Go(func() error { return RunWeb(ctx, webAddr, web.Router(), logger) })
	}

	if cfg.DisplayEnabled {
		g.Go(func() error {
			err := RunDisplay(ctx, cfg.DisplayI2CBus, millis(cfg.DisplayUpdateInterval), state, logger.Named("display"))
			if err != nil {
				logger.Warn("display stopped", zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("telescope server: %w", err)
	}
	return nil
}
