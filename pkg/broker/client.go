package broker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kabili207/mesh-telegram-bridge/pkg/config"
)

const (
	publishTimeout    = 10 * time.Second
	connectTimeout    = 30 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// Client is a paho connection to a remote broker.
type Client struct {
	cfg    config.MqttSettings
	client paho.Client
	log    *slog.Logger

	mu      sync.Mutex
	topics  []string
	handler Handler
}

func NewClient(cfg config.MqttSettings, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg: cfg,
		log: logger.With("component", "mqtt-client"),
	}

	opts, err := c.clientOptions()
	if err != nil {
		return nil, err
	}
	c.client = paho.NewClient(opts)
	return c, nil
}

func (c *Client) clientOptions() (*paho.ClientOptions, error) {
	scheme := "tcp"
	if c.cfg.UseTLS {
		scheme = "ssl"
	}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, c.cfg.Host, c.cfg.Port)).
		SetClientID(c.cfg.ClientID).
		SetUsername(c.cfg.Username).
		SetPassword(c.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetMaxReconnectInterval(time.Minute).
		// Handlers run on the router goroutine so mesh messages keep their
		// arrival order.
		SetOrderMatters(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
			c.log.Info("reconnecting to broker")
		})

	if c.cfg.UseTLS {
		tlsCfg, err := tlsConfig(c.cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func tlsConfig(cfg config.MqttSettings) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.CACert == "" {
		return tlsCfg, nil
	}

	pem, err := os.ReadFile(cfg.CACert)
	if err != nil {
		return nil, fmt.Errorf("reading CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", cfg.CACert)
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}

// Connect dials the broker once. A failed first connection is returned
// to the caller; later drops are handled by auto reconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.log.Info("connecting to broker", "host", c.cfg.Host, "port", c.cfg.Port, "tls", c.cfg.UseTLS)
	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		c.client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	return nil
}

func (c *Client) onConnect(client paho.Client) {
	c.log.Info("connected to broker")

	c.mu.Lock()
	topics, handler := c.topics, c.handler
	c.mu.Unlock()

	if handler != nil {
		if err := c.subscribe(topics, handler); err != nil {
			c.log.Error("failed to resubscribe", "error", err)
		}
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("lost connection to broker", "error", err)
}

func (c *Client) Subscribe(topics []string, handler Handler) error {
	c.mu.Lock()
	c.topics = append([]string(nil), topics...)
	c.handler = handler
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		// onConnect subscribes once the link is up
		return nil
	}
	return c.subscribe(topics, handler)
}

func (c *Client) subscribe(topics []string, handler Handler) error {
	if len(topics) == 0 {
		return nil
	}
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = c.cfg.QoS
	}

	token := c.client.SubscribeMultiple(filters, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribing to %v: timed out", topics)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %v: %w", topics, err)
	}
	c.log.Info("subscribed", "topics", topics, "qos", c.cfg.QoS)
	return nil
}

func (c *Client) Publish(topic string, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (c *Client) Connected() bool {
	return c.client.IsConnectionOpen()
}

// Close unsubscribes and disconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	topics := c.topics
	c.topics, c.handler = nil, nil
	c.mu.Unlock()

	if c.client.IsConnectionOpen() && len(topics) > 0 {
		token := c.client.Unsubscribe(topics...)
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			c.log.Warn("failed to unsubscribe", "error", token.Error())
		}
	}
	c.client.Disconnect(disconnectQuiesce)
	c.log.Info("disconnected from broker")
	return nil
}
