// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/telescope_server/internal/env"
	"github.com/relabs-tech/telescope_server/internal/session"
)

// Publisher sends a retained payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// EnvReader samples the site environment.
type EnvReader interface {
	Read() (env.Sample, error)
}

// ConnectMQTT connects a paho client to broker.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	return client, nil
}

type mqttPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher publishes through client at QoS 0 with the retain flag,
// so late subscribers get the last reading.
func NewMQTTPublisher(client mqtt.Client) Publisher {
	return &mqttPublisher{client: client}
}

func (p *mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, true, payload)
	token.Wait()
	return token.Error()
}

// Telemetry periodically publishes where the instrument points and, when a
// BMP280 is fitted, the site temperature and pressure.
type Telemetry struct {
	State         *session.State
	Env           EnvReader // optional
	Publisher     Publisher
	TopicPointing string
	TopicEnv      string
	Interval      time.Duration
	Logger        *zap.Logger
}

// Run publishes every Interval until ctx is done.
func (t *Telemetry) Run(ctx context.Context) error {
	if t.Logger == nil {
		t.Logger = zap.NewNop()
	}
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	t.Logger.Info("publishing telemetry",
		zap.String("topic_pointing", t.TopicPointing),
		zap.String("topic_env", t.TopicEnv),
		zap.Duration("interval", t.Interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.PublishOnce()
		}
	}
}

// PublishOnce takes one snapshot and one environment sample and publishes
// them. Failures are logged and skipped.
func (t *Telemetry) PublishOnce() {
	if t.Logger == nil {
		t.Logger = zap.NewNop()
	}
	snap, err := t.State.Snapshot()
	if err != nil {
		t.Logger.Warn("pointing read error", zap.Error(err))
	} else {
		t.publishJSON(t.TopicPointing, snap)
	}

	if t.Env == nil {
		return
	}
	sample, err := t.Env.Read()
	if err != nil {
		t.Logger.Warn("env read error", zap.Error(err))
		return
	}
	t.publishJSON(t.TopicEnv, sample)
}

func (t *Telemetry) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		t.Logger.Warn("json marshal error", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := t.Publisher.Publish(topic, payload); err != nil {
		t.Logger.Warn("MQTT publish error", zap.String("topic", topic), zap.Error(err))
	}
}
