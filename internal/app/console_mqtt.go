// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/telescope_server/internal/env"
	"github.com/relabs-tech/telescope_server/internal/session"
)

// FormatPointing renders one pointing message as a console line.
func FormatPointing(s session.Snapshot) string {
	return fmt.Sprintf("[POINT] %s  RA=%s DEC=%s  ALT=%7.2f AZ=%7.2f\n",
		s.Time.Format("15:04:05"), s.RAText, s.DecText, s.Alt, s.Az)
}

// FormatEnv renders one environment message as a console line.
func FormatEnv(e env.Sample) string {
	return fmt.Sprintf("[ENV ]  T=%6.2f°C  P=%7.2f hPa\n", e.Temperature, e.Pressure)
}

// RunConsoleMQTT prints every pointing and environment message published on
// the broker until ctx is done.
func RunConsoleMQTT(ctx context.Context, client mqtt.Client, topicPointing, topicEnv string, out io.Writer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var mu sync.Mutex
	write := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		io.WriteString(out, line)
	}

	pointToken := client.Subscribe(topicPointing, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s session.Snapshot
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			logger.Warn("pointing unmarshal error", zap.Error(err))
			return
		}
		write(FormatPointing(s))
	})
	pointToken.Wait()
	if pointToken.Error() != nil {
		return pointToken.Error()
	}
	logger.Info("subscribed", zap.String("topic", topicPointing))

	envToken := client.Subscribe(topicEnv, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var e env.Sample
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			logger.Warn("env unmarshal error", zap.Error(err))
			return
		}
		write(FormatEnv(e))
	})
	envToken.Wait()
	if envToken.Error() != nil {
		return envToken.Error()
	}
	logger.Info("subscribed", zap.String("topic", topicEnv))

	<-ctx.Done()
	client.Unsubscribe(topicPointing, topicEnv).Wait()
	return nil
}
