// Package mqtt publishes detection events to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/tphakala/petmood/internal/conf"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends payload to topic. It fails fast when not connected.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // base topic for detection events
	QoS      byte
	Retain   bool // true to retain messages at the broker

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	MaxReconnectDelay time.Duration
	ConnectRetryDelay time.Duration // interval between attempts while the first connect is pending
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		Topic:             "petmood",
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		MaxReconnectDelay: 5 * time.Minute,
		ConnectRetryDelay: 10 * time.Second,
	}
}

// ConfigFromSettings builds a Config from the mqtt settings section. The
// client id falls back to the instance name.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.MQTT.ClientID
	if cfg.ClientID == "" {
		cfg.ClientID = settings.Main.Name
	}
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	if settings.MQTT.Topic != "" {
		cfg.Topic = settings.MQTT.Topic
	}
	cfg.QoS = byte(min(max(settings.MQTT.QoS, 0), 2))
	cfg.Retain = settings.MQTT.Retain
	return cfg
}
