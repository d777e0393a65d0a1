// Package telegram adapts the Telegram Bot API to the bridge's chat
// pipeline.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kabili207/mesh-telegram-bridge/pkg/bridge"
	"github.com/kabili207/mesh-telegram-bridge/pkg/config"
)

const pollTimeout = 60 // seconds

// EventHandler is called for every update that maps to a chat event.
type EventHandler func(ctx context.Context, ev bridge.ChatEvent)

type Bot struct {
	api *tgbotapi.BotAPI
	log *slog.Logger
}

// New authenticates against the Bot API with the configured token.
func New(cfg config.TelegramSettings) (*Bot, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := &http.Client{Timeout: (pollTimeout + 10) * time.Second}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	api.Debug = cfg.Debug

	b := &Bot{
		api: api,
		log: slog.With("component", "telegram"),
	}
	b.log.Info("authorized on telegram", "bot", api.Self.UserName)
	return b, nil
}

// Send delivers a plain text message to chatID.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("sending to chat %d: %w", chatID, err)
	}
	b.log.Debug("message sent", "chat_id", chatID)
	return nil
}

// SetCommands registers the command menu shown by Telegram clients.
func (b *Bot) SetCommands(commands []bridge.CommandInfo) error {
	cmds := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		return fmt.Errorf("setting bot commands: %w", err)
	}
	return nil
}

// Run long-polls for updates and hands each one to handle until ctx is
// cancelled. Updates are processed one at a time.
func (b *Bot) Run(ctx context.Context, handle EventHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.log.Info("polling for updates")
	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopped polling for updates")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := ToChatEvent(update)
			if !ok {
				continue
			}
			handle(ctx, ev)
		}
	}
}

// ToChatEvent extracts the text, location or command carried by update.
// Other update types report false.
func ToChatEvent(update tgbotapi.Update) (bridge.ChatEvent, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return bridge.ChatEvent{}, false
	}

	ev := bridge.ChatEvent{ChatID: msg.Chat.ID}
	if msg.From != nil {
		ev.UserName = msg.From.UserName
		ev.FirstName = msg.From.FirstName
		ev.LastName = msg.From.LastName
	}

	switch {
	case msg.IsCommand():
		ev.Kind = bridge.ChatCommand
		ev.Command = msg.Command()
		ev.Args = msg.CommandArguments()
	case msg.Location != nil:
		ev.Kind = bridge.ChatLocation
		ev.Latitude = msg.Location.Latitude
		ev.Longitude = msg.Location.Longitude
	case msg.Text != "":
		ev.Kind = bridge.ChatText
		ev.Text = msg.Text
	default:
		return bridge.ChatEvent{}, false
	}
	return ev, true
}
