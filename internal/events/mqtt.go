package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/sentinel/internal/logger"
)

const publishTimeout = 5 * time.Second

// MQTTPublisher is the subset of mqtt.Client used by the forwarder.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// MQTTForwarder publishes entity events as JSON to
// <prefix>/<resource>/<type>.
type MQTTForwarder struct {
	client MQTTPublisher
	prefix string
	log    logger.Logger
}

// NewMQTTForwarder creates a forwarder publishing under prefix.
func NewMQTTForwarder(client MQTTPublisher, prefix string, log logger.Logger) *MQTTForwarder {
	return &MQTTForwarder{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		log:    log.Module("events.mqtt"),
	}
}

// Topic returns the topic an event is published to.
func (f *MQTTForwarder) Topic(event *EntityEvent) string {
	return fmt.Sprintf("%s/%s/%s", f.prefix, event.Resource, event.Type)
}

// Handle is a Handler forwarding events to the broker.
func (f *MQTTForwarder) Handle(event *EntityEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		f.log.Error("failed to encode entity event", logger.Error(err))
		return
	}

	token := f.client.Publish(f.Topic(event), 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		f.log.Warn("timed out publishing entity event", logger.String("topic", f.Topic(event)))
		return
	}
	if err := token.Error(); err != nil {
		f.log.Error("failed to publish entity event",
			logger.String("topic", f.Topic(event)),
			logger.Error(err))
	}
}

// MQTTConfig configures ConnectMQTT.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// ConnectMQTT connects a paho client with automatic reconnects.
func ConnectMQTT(cfg MQTTConfig, log logger.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("mqtt connection lost", logger.Error(err))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
	}
	return client, nil
}
