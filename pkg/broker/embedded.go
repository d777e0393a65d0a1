package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/kabili207/mesh-telegram-bridge/pkg/config"
)

const inlineSubscriptionID = 1

// Embedded runs a mochi MQTT server inside the bridge. Mesh gateways
// connect to it directly and the bridge talks to it through the inline
// client.
type Embedded struct {
	cfg     config.MqttSettings
	server  *mqtt.Server
	log     *slog.Logger
	running atomic.Bool

	mu     sync.Mutex
	topics []string
}

func NewEmbedded(cfg config.MqttSettings, logger *slog.Logger) (*Embedded, error) {
	if logger == nil {
		logger = slog.Default()
	}

	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
		Logger:       logger.With("component", "mqtt-server"),
	})

	err := server.AddHook(new(AccessHook), &AccessHookOptions{
		Users:     cfg.Embedded.Users,
		TopicRoot: cfg.Embedded.TopicRoot,
	})
	if err != nil {
		return nil, fmt.Errorf("adding access hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "tcp",
		Address: cfg.Embedded.ListenAddr,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("adding listener on %s: %w", cfg.Embedded.ListenAddr, err)
	}

	return &Embedded{
		cfg:    cfg,
		server: server,
		log:    logger.With("component", "embedded-broker"),
	}, nil
}

// Connect starts serving. Listeners run in their own goroutines.
func (e *Embedded) Connect(_ context.Context) error {
	if err := e.server.Serve(); err != nil {
		return fmt.Errorf("starting embedded broker: %w", err)
	}
	e.running.Store(true)
	e.log.Info("embedded broker listening", "addr", e.cfg.Embedded.ListenAddr, "topic_root", e.cfg.Embedded.TopicRoot)
	return nil
}

func (e *Embedded) Subscribe(topics []string, handler Handler) error {
	for _, t := range topics {
		err := e.server.Subscribe(t, inlineSubscriptionID, func(_ *mqtt.Client, _ packets.Subscription, pk packets.Packet) {
			handler(pk.TopicName, pk.Payload)
		})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", t, err)
		}
	}

	e.mu.Lock()
	e.topics = append(e.topics, topics...)
	e.mu.Unlock()
	e.log.Info("subscribed", "topics", topics)
	return nil
}

func (e *Embedded) Publish(topic string, payload []byte) error {
	if !e.running.Load() {
		return ErrNotConnected
	}
	if err := e.server.Publish(topic, payload, false, e.cfg.QoS); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (e *Embedded) Connected() bool {
	return e.running.Load()
}

func (e *Embedded) Close() error {
	e.mu.Lock()
	topics := e.topics
	e.topics = nil
	e.mu.Unlock()

	for _, t := range topics {
		if err := e.server.Unsubscribe(t, inlineSubscriptionID); err != nil {
			e.log.Warn("failed to unsubscribe", "topic", t, "error", err)
		}
	}

	e.running.Store(false)
	if err := e.server.Close(); err != nil {
		return fmt.Errorf("closing embedded broker: %w", err)
	}
	return nil
}
