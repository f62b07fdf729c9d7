// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/nmea_simulator/internal/feeder"
	"github.com/relabs-tech/nmea_simulator/internal/gps"
)

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTConfig selects topics and payload encoding.
type MQTTConfig struct {
	TopicNMEA     string
	TopicGPS      string
	PayloadFormat string
}

// MQTTPublisher forwards raw batches and decoded fixes to a broker.
// Publishing never blocks the caller; failures are only logged.
type MQTTPublisher struct {
	client Publisher
	cfg    MQTTConfig
}

func NewMQTTPublisher(client Publisher, cfg MQTTConfig) *MQTTPublisher {
	if cfg.PayloadFormat == "" {
		cfg.PayloadFormat = gps.FormatJSON
	}
	return &MQTTPublisher{client: client, cfg: cfg}
}

// Push publishes the batch wire bytes, not retained.
func (p *MQTTPublisher) Push(b feeder.Batch) {
	token := p.client.Publish(p.cfg.TopicNMEA, 0, false, b.Bytes())
	go checkToken(token, p.cfg.TopicNMEA)
}

// PublishFix publishes the encoded fix as a retained message so late
// subscribers get the current position immediately.
func (p *MQTTPublisher) PublishFix(f gps.Fix) {
	payload, err := gps.Encode(f, p.cfg.PayloadFormat)
	if err != nil {
		log.Printf("mqtt: encode fix: %v", err)
		return
	}
	token := p.client.Publish(p.cfg.TopicGPS, 0, true, payload)
	go checkToken(token, p.cfg.TopicGPS)
}

func checkToken(token mqtt.Token, topic string) {
	<-token.Done()
	if err := token.Error(); err != nil {
		log.Printf("mqtt: publish to %s failed: %v", topic, err)
	}
}

// ClientID returns id, or prefix plus a random suffix when id is empty, so
// several simulator instances can share a broker.
func ClientID(id, prefix string) string {
	if id != "" {
		return id
	}
	return prefix + "-" + uuid.NewString()[:8]
}

// ConnectMQTT connects to broker and blocks until the handshake finishes.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	log.Printf("mqtt: connected to %s as %s", broker, clientID)
	return client, nil
}
