package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
	"github.com/kabili207/mesh-telegram-bridge/pkg/nodes"
)

// MaxListedNodes caps the /nodes reply.
const MaxListedNodes = 10

type CommandInfo struct {
	Name        string
	Description string
}

// Commands is the bot command menu, in display order.
var Commands = []CommandInfo{
	{"start", "Start using the bot"},
	{"help", "Show help"},
	{"nodes", "List mesh nodes"},
	{"stats", "Bridge statistics"},
	{"location", "How to share your location"},
	{"admin", "Admin panel"},
}

const helpText = `🤖 Meshtastic-Telegram Bridge

Commands:
/start - Start using the bot
/help - Show this help
/nodes - List mesh nodes
/stats - Bridge statistics
/location - Send your location

Usage:
- Send a text message and it is forwarded to the mesh
- Send a location via Attachment → Location

Message format:
From Telegram: 📱 Name: Text
From the mesh: 📡 Node: Text`

const locationHelpText = "📍 Send your location via Attachment → Location"

func (b *Bridge) handleCommand(ctx context.Context, ev ChatEvent) {
	switch ev.Command {
	case "start":
		b.cmdStart(ctx, ev)
	case "help":
		b.reply(ctx, ev.ChatID, helpText)
		b.logCommand(ev)
	case "nodes":
		b.cmdNodes(ctx, ev)
	case "stats":
		b.cmdStats(ctx, ev)
	case "location":
		b.reply(ctx, ev.ChatID, locationHelpText)
	case "admin":
		b.cmdAdmin(ctx, ev)
	default:
		b.reply(ctx, ev.ChatID, ReplyUnknownCommand)
	}
}

func (b *Bridge) logCommand(ev ChatEvent) {
	b.logMessage(models.DirectionCommand, ev.ChatID, "/"+ev.Command, nil, models.MessageKindCommand)
}

func (b *Bridge) cmdStart(ctx context.Context, ev ChatEvent) {
	isAdmin := b.telegram.IsAdmin(ev.ChatID)
	if _, err := b.users.AddOrGetUser(ev.ChatID, ev.UserName, ev.FirstName, ev.LastName, isAdmin); err != nil {
		b.log.Error("failed to register chat user", "chat_id", ev.ChatID, "error", err)
	}

	b.reply(ctx, ev.ChatID, b.telegram.WelcomeMessage)
	b.logCommand(ev)
}

func (b *Bridge) cmdNodes(ctx context.Context, ev ChatEvent) {
	stored, err := b.nodes.GetAllNodes()
	if err != nil {
		b.log.Error("failed to load nodes", "error", err)
		b.reply(ctx, ev.ChatID, ReplyNodesFailed)
		return
	}
	if len(stored) == 0 {
		b.reply(ctx, ev.ChatID, ReplyNoNodes)
		return
	}

	list := make([]models.MeshNode, 0, len(stored))
	for _, n := range stored {
		if n != nil {
			list = append(list, *n)
		}
	}
	nodes.SortNodes(list)

	b.reply(ctx, ev.ChatID, b.formatNodes(list))
	b.logCommand(ev)
}

func (b *Bridge) formatNodes(list []models.MeshNode) string {
	var sb strings.Builder
	sb.WriteString("📡 Mesh nodes:\n\n")

	for i, n := range list {
		if i == MaxListedNodes {
			break
		}
		name := n.LongName
		if name == "" {
			name = n.NodeID
		}
		fmt.Fprintf(&sb, "• %s\n", name)
		if n.HardwareModel != "" {
			fmt.Fprintf(&sb, "  📟 %s\n", n.HardwareModel)
		}
		if n.BatteryLevel != nil {
			fmt.Fprintf(&sb, "  🔋 %d%%\n", *n.BatteryLevel)
		}
		if n.LastSeen != nil {
			fmt.Fprintf(&sb, "  ⏱ %.0f min ago\n", b.now().Sub(*n.LastSeen).Minutes())
		}
		sb.WriteString("\n")
	}

	if len(list) > MaxListedNodes {
		fmt.Fprintf(&sb, "... and %d more nodes", len(list)-MaxListedNodes)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bridge) cmdStats(ctx context.Context, ev ChatEvent) {
	s, err := b.messages.GetStats()
	if err != nil {
		b.log.Error("failed to load statistics", "error", err)
		b.reply(ctx, ev.ChatID, ReplyStatsFailed)
		return
	}

	b.reply(ctx, ev.ChatID, fmt.Sprintf(`📊 Bridge statistics

👥 Users:
   Total: %d
   Active: %d

📨 Messages:
   ➡️ To mesh: %d
   ⬅️ From mesh: %d
   Total: %d

📡 Mesh nodes:
   Total: %d`,
		s.TotalUsers, s.ActiveUsers,
		s.ToMesh, s.FromMesh, s.ToMesh+s.FromMesh,
		s.TotalNodes,
	))
	b.logCommand(ev)
}

func (b *Bridge) cmdAdmin(ctx context.Context, ev ChatEvent) {
	ok, err := b.users.IsAdmin(ev.ChatID)
	if err != nil {
		b.log.Error("failed to check admin flag", "chat_id", ev.ChatID, "error", err)
		b.reply(ctx, ev.ChatID, ReplyAdminCheckFailed)
		return
	}
	if !ok {
		b.reply(ctx, ev.ChatID, ReplyNotAdmin)
		return
	}

	broker := "unknown"
	if b.broker != nil {
		broker = "❌ disconnected"
		if b.broker.Connected() {
			broker = "✅ connected"
		}
	}

	b.reply(ctx, ev.ChatID, fmt.Sprintf(`🛠 Admin panel

Commands:
• /stats - detailed statistics
• /nodes - list all nodes

System status:
• MQTT: %s
• Relay queue: %d/%d
• Known nodes: %d`,
		broker, b.queue.Len(), b.queue.Cap(), b.registry.Len(),
	))
}
