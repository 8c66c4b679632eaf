// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// Connect opens an MQTT client to broker.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "MQTT connect %s", broker)
	}
	return client, nil
}

// MQTTPublisher publishes snapshots as retained JSON messages on one topic.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *zap.SugaredLogger
}

// NewMQTTPublisher publishes through an already connected client.
func NewMQTTPublisher(client mqtt.Client, topic string, logger *zap.SugaredLogger) *MQTTPublisher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MQTTPublisher{client: client, topic: topic, logger: logger}
}

func (p *MQTTPublisher) Topic() string { return p.topic }

func (p *MQTTPublisher) Publish(s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "telemetry: marshal snapshot")
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Errorf("telemetry: publish to %s timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "telemetry: publish to %s", p.topic)
	}
	return nil
}

// Close disconnects the client.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	p.logger.Infow("telemetry: MQTT disconnected", "topic", p.topic)
	return nil
}

// Subscribe delivers every snapshot published on topic to fn until the
// client disconnects. Malformed messages are logged and skipped.
func Subscribe(client mqtt.Client, topic string, logger *zap.SugaredLogger, fn func(Snapshot)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s, err := Decode(msg.Payload())
		if err != nil {
			logger.Warnw("telemetry: dropping message", "topic", msg.Topic(), "error", err)
			return
		}
		fn(s)
	})
	if token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "MQTT subscribe %s", topic)
	}
	return nil
}
