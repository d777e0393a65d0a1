// Package bridge holds the two relay pipelines: broker events flowing
// towards Telegram and chat events flowing towards the mesh.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kabili207/mesh-telegram-bridge/pkg/config"
	"github.com/kabili207/mesh-telegram-bridge/pkg/metrics"
	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
	"github.com/kabili207/mesh-telegram-bridge/pkg/nodes"
	"github.com/kabili207/mesh-telegram-bridge/pkg/relay"
)

// MeshPublisher sends downlink messages into the mesh.
type MeshPublisher interface {
	SendText(text string) error
	SendPosition(lat, lon float64, alt int) error
}

type UserStore interface {
	AddOrGetUser(chatID int64, username, firstName, lastName string, isAdmin bool) (*models.ChatUser, error)
	IsAdmin(chatID int64) (bool, error)
}

type MessageLog interface {
	LogMessage(msg *models.RelayedMessage) error
	GetStats() (*models.Stats, error)
}

type NodeStore interface {
	SaveNode(node *models.MeshNode) error
	GetAllNodes() ([]*models.MeshNode, error)
}

// ConnectionState reports whether the broker link is up.
type ConnectionState interface {
	Connected() bool
}

type Options struct {
	Registry  *nodes.Registry
	Queue     *relay.Queue
	Publisher MeshPublisher
	Chat      relay.Sender
	Users     UserStore
	Messages  MessageLog
	Nodes     NodeStore
	// Broker is optional, it only feeds the admin panel.
	Broker   ConnectionState
	Telegram config.TelegramSettings
	Settings config.BridgeSettings
	Metrics  *metrics.Metrics
	Clock    func() time.Time
}

type Bridge struct {
	registry  *nodes.Registry
	queue     *relay.Queue
	publisher MeshPublisher
	chat      relay.Sender
	users     UserStore
	messages  MessageLog
	nodes     NodeStore
	broker    ConnectionState
	telegram  config.TelegramSettings
	settings  config.BridgeSettings
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *slog.Logger
}

func New(opts Options) (*Bridge, error) {
	if opts.Registry == nil || opts.Queue == nil {
		return nil, errors.New("bridge: registry and queue are required")
	}
	if opts.Publisher == nil || opts.Chat == nil {
		return nil, errors.New("bridge: publisher and chat sender are required")
	}
	if opts.Users == nil || opts.Messages == nil || opts.Nodes == nil {
		return nil, errors.New("bridge: stores are required")
	}
	if opts.Settings.MessageFormat == "" {
		opts.Settings.MessageFormat = config.DefaultMessageFormat
	}
	if opts.Settings.MaxMessageLength < 2 {
		return nil, fmt.Errorf("bridge: max message length %d is too small", opts.Settings.MaxMessageLength)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Bridge{
		registry:  opts.Registry,
		queue:     opts.Queue,
		publisher: opts.Publisher,
		chat:      opts.Chat,
		users:     opts.Users,
		messages:  opts.Messages,
		nodes:     opts.Nodes,
		broker:    opts.Broker,
		telegram:  opts.Telegram,
		settings:  opts.Settings,
		metrics:   opts.Metrics,
		now:       opts.Clock,
		log:       slog.With("component", "bridge"),
	}, nil
}

// enqueue hands an action to the delivery loop. It never blocks; when
// the queue is full the action is dropped.
func (b *Bridge) enqueue(a relay.Action) {
	if err := b.queue.Enqueue(a); err != nil {
		b.metrics.RelayDropped.Inc()
		b.log.Warn("dropping relay action", "action", a.Kind, "error", err)
		return
	}
	b.metrics.RelayEnqueued.WithLabelValues(a.Kind.String()).Inc()
	b.metrics.QueueDepth.Set(float64(b.queue.Len()))
}

// recoverHandler stops a panic from unwinding into the transport that
// invoked the handler.
func (b *Bridge) recoverHandler(pipeline string) {
	if r := recover(); r != nil {
		b.metrics.HandlerFailures.WithLabelValues(pipeline).Inc()
		b.log.Error("recovered from handler panic", "pipeline", pipeline, "panic", r)
	}
}

func (b *Bridge) saveNode(n models.MeshNode) {
	if err := b.nodes.SaveNode(&n); err != nil {
		b.log.Error("failed to persist node", "node", n.NodeID, "error", err)
	}
}

func (b *Bridge) logMessage(direction models.Direction, chatID int64, content string, meshNode *string, kind string) {
	msg := &models.RelayedMessage{
		Direction:   direction,
		ChatID:      chatID,
		MeshNode:    meshNode,
		Content:     content,
		MessageKind: kind,
		Created:     b.now(),
	}
	if err := b.messages.LogMessage(msg); err != nil {
		b.log.Error("failed to log relayed message", "direction", direction, "error", err)
	}
}

func (b *Bridge) reply(ctx context.Context, chatID int64, text string) {
	if err := b.chat.Send(ctx, chatID, text); err != nil {
		b.log.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}
