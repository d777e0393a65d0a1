package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
)

// Fixed replies sent back to chat users.
const (
	ReplyAccessDenied     = "❌ Access denied"
	ReplyTruncated        = "⚠️ Message was truncated"
	ReplySent             = "✅ Message sent to the mesh"
	ReplySendFailed       = "❌ Failed to send to the mesh"
	ReplyPositionDisabled = "❌ Position sharing is disabled"
	ReplyNoNodes          = "❌ No node data yet"
	ReplyNodesFailed      = "❌ Failed to load node data"
	ReplyStatsFailed      = "❌ Failed to load statistics"
	ReplyNotAdmin         = "❌ Insufficient permissions"
	ReplyAdminCheckFailed = "❌ Failed to check permissions"
	ReplyUnknownCommand   = "❓ Unknown command, see /help"
)

type ChatEventKind int

const (
	ChatText ChatEventKind = iota
	ChatLocation
	ChatCommand
)

func (k ChatEventKind) String() string {
	switch k {
	case ChatText:
		return "text"
	case ChatLocation:
		return "location"
	case ChatCommand:
		return "command"
	default:
		return "unknown"
	}
}

// ChatEvent is a Telegram update reduced to what the bridge acts on.
type ChatEvent struct {
	Kind      ChatEventKind
	ChatID    int64
	UserName  string
	FirstName string
	LastName  string
	// Text is the message body for ChatText
	Text string
	// Command is the command name without the leading slash
	Command   string
	Args      string
	Latitude  float64
	Longitude float64
}

// HandleChatEvent runs one chat update through access control and the
// matching handler. Replies go straight back to ev.ChatID.
func (b *Bridge) HandleChatEvent(ctx context.Context, ev ChatEvent) {
	defer b.recoverHandler("chat")

	b.metrics.ChatEvents.WithLabelValues(ev.Kind.String()).Inc()

	if !b.telegram.IsAllowed(ev.ChatID) {
		b.metrics.ChatDenied.Inc()
		b.log.Debug("chat not in allow-list", "chat_id", ev.ChatID)
		b.reply(ctx, ev.ChatID, ReplyAccessDenied)
		return
	}

	switch ev.Kind {
	case ChatText:
		b.handleChatText(ctx, ev)
	case ChatLocation:
		b.handleChatLocation(ctx, ev)
	case ChatCommand:
		b.handleCommand(ctx, ev)
	}
}

func (b *Bridge) handleChatText(ctx context.Context, ev ChatEvent) {
	if strings.TrimSpace(ev.Text) == "" {
		return
	}

	formatted := FormatChatMessage(b.settings.MessageFormat, SenderName(ev.FirstName, ev.UserName), ev.Text)
	formatted, truncated := Truncate(formatted, b.settings.MaxMessageLength)
	if truncated {
		b.reply(ctx, ev.ChatID, ReplyTruncated)
	}

	if err := b.publisher.SendText(formatted); err != nil {
		b.metrics.MeshPublishes.WithLabelValues("sendtext", "error").Inc()
		b.log.Error("failed to publish text to mesh", "chat_id", ev.ChatID, "error", err)
		b.reply(ctx, ev.ChatID, ReplySendFailed)
		return
	}
	b.metrics.MeshPublishes.WithLabelValues("sendtext", "ok").Inc()

	b.reply(ctx, ev.ChatID, ReplySent)
	b.logMessage(models.DirectionToMesh, ev.ChatID, ev.Text, nil, models.MessageKindText)
	b.log.Info("message to mesh", "chat_id", ev.ChatID, "truncated", truncated)
}

func (b *Bridge) handleChatLocation(ctx context.Context, ev ChatEvent) {
	if !b.settings.EnablePositionSharing {
		b.reply(ctx, ev.ChatID, ReplyPositionDisabled)
		return
	}

	if err := b.publisher.SendPosition(ev.Latitude, ev.Longitude, 0); err != nil {
		b.metrics.MeshPublishes.WithLabelValues("position", "error").Inc()
		b.log.Error("failed to publish position to mesh", "chat_id", ev.ChatID, "error", err)
		b.reply(ctx, ev.ChatID, ReplySendFailed)
		return
	}
	b.metrics.MeshPublishes.WithLabelValues("position", "ok").Inc()

	b.reply(ctx, ev.ChatID, fmt.Sprintf("✅ Location sent!\n📍 Latitude: %.6f\n📍 Longitude: %.6f", ev.Latitude, ev.Longitude))
	b.logMessage(models.DirectionToMesh, ev.ChatID,
		fmt.Sprintf("POSITION: %f, %f", ev.Latitude, ev.Longitude), nil, models.MessageKindPosition)
}
