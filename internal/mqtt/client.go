package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/logger"
	"github.com/tphakala/petmood/internal/observability/metrics"
)

var (
	ErrNotConnected   = errors.NewStd("not connected to MQTT broker")
	ErrConnectTimeout = errors.NewStd("mqtt connection timeout")
	ErrPublishTimeout = errors.NewStd("mqtt publish timeout")
)

// client implements the Client interface on top of paho. Paho keeps
// retrying the initial connection in the background and reconnects after
// a lost connection.
type client struct {
	config    Config
	mu        sync.Mutex
	internal  paho.Client
	metrics   *metrics.MQTTMetrics
	log       logger.Logger
	newClient func(*paho.ClientOptions) paho.Client
}

// NewClient creates a new MQTT client. It does not connect.
func NewClient(cfg Config, m *metrics.MQTTMetrics, log logger.Logger) Client {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &client{
		config:    cfg,
		metrics:   m,
		log:       log.Module("mqtt"),
		newClient: paho.NewClient,
	}
}

// Connect starts connecting to the broker and waits up to ConnectTimeout.
// A timeout is reported as an error, but paho keeps retrying and the client
// starts publishing once the broker becomes reachable.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return mqttError(fmt.Errorf("invalid broker URL: %w", err), errors.CategoryConfiguration, c.config.Broker)
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			c.metrics.RecordError("dns")
			c.log.Warn("failed to resolve MQTT broker, will keep retrying",
				logger.String("host", host),
				logger.Error(err))
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(c.config.ConnectRetryDelay)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectDelay)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internal = c.newClient(opts)

	token := c.internal.Connect()
	if !waitToken(ctx, token, c.config.ConnectTimeout) {
		c.metrics.RecordError("connect_timeout")
		return mqttError(ErrConnectTimeout, errors.CategoryMQTTConnect, c.config.Broker)
	}
	if err := token.Error(); err != nil {
		c.metrics.RecordError("connect")
		return mqttError(fmt.Errorf("connection error: %w", err), errors.CategoryMQTTConnect, c.config.Broker)
	}

	c.metrics.UpdateConnectionStatus(true)
	return nil
}

// Publish sends payload to topic with the configured QoS and retain flag.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnectedLocked() {
		c.metrics.RecordError("not_connected")
		return ErrNotConnected
	}

	start := time.Now()
	token := c.internal.Publish(topic, c.config.QoS, c.config.Retain, payload)
	if !waitToken(ctx, token, c.config.PublishTimeout) {
		c.metrics.RecordError("publish_timeout")
		return mqttError(ErrPublishTimeout, errors.CategoryMQTTPublish, c.config.Broker)
	}
	if err := token.Error(); err != nil {
		c.metrics.RecordError("publish")
		return mqttError(err, errors.CategoryMQTTPublish, c.config.Broker)
	}

	c.metrics.RecordPublish(len(payload), time.Since(start).Seconds())
	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnectedLocked()
}

func (c *client) isConnectedLocked() bool {
	return c.internal != nil && c.internal.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A pending connect is cancelled by Disconnect as well.
	if c.internal != nil {
		c.internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.metrics.UpdateConnectionStatus(false)
	}
}

func (c *client) onConnect(_ paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.metrics.UpdateConnectionStatus(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.RecordError("connection_lost")
}

// waitToken waits for token up to timeout or until ctx is done.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func mqttError(err error, category errors.ErrorCategory, broker string) error {
	return errors.New(err).
		Component("mqtt").
		Category(category).
		Context("broker", broker).
		Build()
}
