// Package broker connects the bridge to the MQTT side of the mesh, either
// by dialing a remote broker or by running one in-process.
package broker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kabili207/mesh-telegram-bridge/pkg/config"
)

var ErrNotConnected = errors.New("mqtt broker not connected")

// Handler receives every message matching a subscription. It runs on the
// transport's delivery goroutine and must not block for long.
type Handler func(topic string, payload []byte)

type Broker interface {
	// Connect dials or starts the broker.
	Connect(ctx context.Context) error
	// Subscribe registers handler for topics. Subscriptions survive
	// reconnects.
	Subscribe(topics []string, handler Handler) error
	Publish(topic string, payload []byte) error
	Connected() bool
	Close() error
}

// New returns the embedded broker when it is enabled and a remote client
// otherwise. Neither is connected yet.
func New(cfg config.MqttSettings, logger *slog.Logger) (Broker, error) {
	if cfg.Embedded.Enabled {
		e, err := NewEmbedded(cfg, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	c, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
