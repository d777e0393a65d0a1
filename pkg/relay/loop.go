package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/kabili207/mesh-telegram-bridge/pkg/metrics"
	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
)

const DefaultInterval = time.Second

// Sender delivers a single chat message.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Recipients lists the chat users a broadcast goes to.
type Recipients interface {
	GetAll() ([]*models.ChatUser, error)
}

type LoopOptions struct {
	Queue    *Queue
	Sender   Sender
	Users    Recipients
	AdminIDs []int64
	Interval time.Duration
	Metrics  *metrics.Metrics
}

// Loop periodically drains the queue and executes each action against the
// chat transport.
type Loop struct {
	opts LoopOptions
	log  *slog.Logger
}

func NewLoop(opts LoopOptions) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Loop{
		opts: opts,
		log:  slog.With("component", "delivery-loop"),
	}
}

// Run ticks until ctx is cancelled. Actions still queued at that point
// are discarded.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	l.log.Info("delivery loop started", "interval", l.opts.Interval)
	for {
		select {
		case <-ctx.Done():
			if n := l.opts.Queue.Clear(); n > 0 {
				l.opts.Metrics.RelayDiscarded.Add(float64(n))
				l.log.Warn("discarding queued relay actions", "count", n)
			}
			l.opts.Metrics.QueueDepth.Set(0)
			l.log.Info("delivery loop stopped")
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick drains whatever is queued right now and delivers it in order. It
// returns the number of successful sends.
func (l *Loop) Tick(ctx context.Context) int {
	actions := l.opts.Queue.Drain()
	l.opts.Metrics.QueueDepth.Set(float64(l.opts.Queue.Len()))

	delivered := 0
	for i, a := range actions {
		if ctx.Err() != nil {
			rest := len(actions) - i
			l.opts.Metrics.RelayDiscarded.Add(float64(rest))
			l.log.Warn("shutdown during delivery, discarding actions", "count", rest)
			break
		}
		delivered += l.deliver(ctx, a)
	}
	return delivered
}

func (l *Loop) deliver(ctx context.Context, a Action) int {
	recipients, err := l.recipients(a)
	if err != nil {
		l.log.Error("unable to resolve recipients", "action", a.Kind, "error", err)
		return 0
	}

	sent := 0
	for _, chatID := range recipients {
		if err := l.opts.Sender.Send(ctx, chatID, a.Text); err != nil {
			l.opts.Metrics.ChatDeliveries.WithLabelValues(a.Kind.String(), "error").Inc()
			l.log.Error("failed to deliver relay message", "action", a.Kind, "chat_id", chatID, "error", err)
			continue
		}
		l.opts.Metrics.ChatDeliveries.WithLabelValues(a.Kind.String(), "ok").Inc()
		sent++
	}
	return sent
}

func (l *Loop) recipients(a Action) ([]int64, error) {
	switch a.Kind {
	case ActionNotifyAdmins:
		return l.opts.AdminIDs, nil
	default:
		users, err := l.opts.Users.GetAll()
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ChatID)
		}
		return ids, nil
	}
}
