package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kabili207/mesh-telegram-bridge/pkg/bridge"
	"github.com/kabili207/mesh-telegram-bridge/pkg/broker"
	"github.com/kabili207/mesh-telegram-bridge/pkg/config"
	"github.com/kabili207/mesh-telegram-bridge/pkg/mesh"
	"github.com/kabili207/mesh-telegram-bridge/pkg/metrics"
	"github.com/kabili207/mesh-telegram-bridge/pkg/nodes"
	"github.com/kabili207/mesh-telegram-bridge/pkg/relay"
	"github.com/kabili207/mesh-telegram-bridge/pkg/routes"
	"github.com/kabili207/mesh-telegram-bridge/pkg/store"
	"github.com/kabili207/mesh-telegram-bridge/pkg/telegram"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay",
		Long:  "Connect to MQTT and Telegram and relay messages until interrupted",
		RunE:  runBridge,
	}
	return cmd
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Bridge.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := cfg.DatabaseURL()
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(dsn); err != nil {
			return err
		}
	}
	db, err := store.Connect(dsn)
	if err != nil {
		return err
	}
	stores := store.New(db)

	registry := nodes.NewRegistry()
	known, err := stores.Nodes.GetAllNodes()
	if err != nil {
		return shutdown(logger, fmt.Errorf("loading mesh nodes: %w", err), stores)
	}
	registry.Load(known)
	logger.Info("loaded mesh nodes", "count", len(known))

	m := metrics.New()
	promRegistry, err := metrics.NewRegistry(m)
	if err != nil {
		return shutdown(logger, err, stores)
	}

	brk, err := broker.New(cfg.Mqtt, logger)
	if err != nil {
		return shutdown(logger, err, stores)
	}
	if err := brk.Connect(ctx); err != nil {
		return shutdown(logger, err, stores, brk)
	}

	bot, err := telegram.New(cfg.Telegram)
	if err != nil {
		return shutdown(logger, err, stores, brk)
	}
	if err := bot.SetCommands(bridge.Commands); err != nil {
		logger.Warn("could not register bot commands", "error", err)
	}

	queue := relay.NewQueue(cfg.Bridge.QueueCapacity)
	b, err := bridge.New(bridge.Options{
		Registry:  registry,
		Queue:     queue,
		Publisher: mesh.NewPublisher(brk, cfg.Mqtt.Topics.Publish, cfg.Mqtt.GatewayNode),
		Chat:      bot,
		Users:     stores.Users,
		Messages:  stores.Messages,
		Nodes:     stores.Nodes,
		Broker:    brk,
		Telegram:  cfg.Telegram,
		Settings:  cfg.Bridge,
		Metrics:   m,
	})
	if err != nil {
		return shutdown(logger, err, stores, brk)
	}

	if err := brk.Subscribe(cfg.Mqtt.Topics.Subscribe, b.HandleMeshMessage); err != nil {
		return shutdown(logger, err, stores, brk)
	}

	loop := relay.NewLoop(relay.LoopOptions{
		Queue:    queue,
		Sender:   bot,
		Users:    stores.Users,
		AdminIDs: cfg.Telegram.AdminIDs,
		Interval: cfg.Bridge.QueueInterval,
		Metrics:  m,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return bot.Run(gctx, b.HandleChatEvent) })
	if addr := cfg.HTTP.ListenAddr; addr != "" {
		web := routes.NewWebRouter(routes.Options{
			Registry: registry,
			Stats:    stores.Messages,
			Broker:   brk,
			Queue:    queue,
			Gatherer: promRegistry,
		})
		g.Go(func() error { return web.ListenAndServe(gctx, addr) })
	}

	logger.Info("bridge running",
		"embedded_broker", cfg.Mqtt.Embedded.Enabled,
		"subscriptions", cfg.Mqtt.Topics.Subscribe,
		"publish_topic", cfg.Mqtt.Topics.Publish)

	err = g.Wait()
	if dropped := queue.Clear(); dropped > 0 {
		logger.Info("discarded pending relay actions", "count", dropped)
	}
	return shutdown(logger, err, stores, brk)
}

type closer interface {
	Close() error
}

// shutdown closes every resource and folds their errors into cause.
func shutdown(logger *slog.Logger, cause error, resources ...closer) error {
	var result error
	if cause != nil && !errors.Is(cause, context.Canceled) {
		result = multierror.Append(result, cause)
	}
	// Close in reverse order of creation.
	for i := len(resources) - 1; i >= 0; i-- {
		if err := resources[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result == nil {
		logger.Info("shutdown complete")
	}
	return result
}
