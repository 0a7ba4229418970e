package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/notify"
)

// Pub/sub channel and durable stream for opportunity lifecycle events.
const (
	OpportunityChannel = "arbwatch:opportunities"
	OpportunityStream  = "arbwatch:opportunities:stream"
)

// Snapshotter provides a consistent cross-section of the current books.
type Snapshotter interface {
	Snapshot() domain.Snapshot
}

// Alerter receives opportunity lifecycle alerts. Satisfied by
// notify.Notifier.
type Alerter interface {
	NotifyOpportunity(ctx context.Context, event string, opp domain.Opportunity) error
}

// Event is the JSON payload published on the signal bus.
type Event struct {
	Event       string             `json:"event"`
	At          time.Time          `json:"at"`
	Opportunity domain.Opportunity `json:"opportunity"`
}

// Runner drives the engine on a fixed interval and fans scan results out to
// the signal bus, the durable history, and the notifier. Every side effect is
// optional; a nil dependency is skipped.
type Runner struct {
	interval time.Duration
	logger   *slog.Logger

	books   Snapshotter
	engine  *Engine
	bus     domain.SignalBus
	history domain.OpportunityStore
	alerter Alerter
}

// NewRunner creates a Runner.
func NewRunner(interval time.Duration, logger *slog.Logger, books Snapshotter, eng *Engine, bus domain.SignalBus, history domain.OpportunityStore, alerter Alerter) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Runner{
		interval: interval,
		logger:   logger.With(slog.String("component", "scan_runner")),
		books:    books,
		engine:   eng,
		bus:      bus,
		history:  history,
		alerter:  alerter,
	}
}

// Run scans until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.ScanOnce(ctx, now)
		}
	}
}

// ScanOnce performs one full scan cycle and dispatches its side effects.
func (r *Runner) ScanOnce(ctx context.Context, now time.Time) ScanResult {
	res := r.engine.Scan(now, r.books.Snapshot())

	for _, opp := range res.New {
		r.emit(ctx, notify.EventDiscovered, now, opp)
	}
	for _, opp := range res.Expired {
		if r.history != nil {
			if err := r.history.Insert(ctx, opp); err != nil {
				r.logger.Error("persist expired opportunity failed",
					slog.String("id", opp.ID),
					slog.Any("error", err),
				)
			}
		}
		r.emit(ctx, notify.EventExpired, now, opp)
	}

	if len(res.New) > 0 || len(res.Expired) > 0 {
		r.logger.Info("scan cycle",
			slog.Int("active", len(res.Opportunities)),
			slog.Int("new", len(res.New)),
			slog.Int("expired", len(res.Expired)),
		)
	}
	return res
}

// emit publishes one lifecycle event to the bus and the notifier. Delivery
// failures are logged, never fatal to the scan loop.
func (r *Runner) emit(ctx context.Context, event string, now time.Time, opp domain.Opportunity) {
	if r.bus != nil {
		payload, err := json.Marshal(Event{Event: event, At: now, Opportunity: opp})
		if err != nil {
			r.logger.Error("marshal event failed", slog.Any("error", err))
		} else {
			if err := r.bus.Publish(ctx, OpportunityChannel, payload); err != nil {
				r.logger.Warn("publish failed", slog.Any("error", err))
			}
			if err := r.bus.StreamAppend(ctx, OpportunityStream, payload); err != nil {
				r.logger.Warn("stream append failed", slog.Any("error", err))
			}
		}
	}

	if r.alerter != nil {
		if err := r.alerter.NotifyOpportunity(ctx, event, opp); err != nil {
			r.logger.Warn("notify failed", slog.Any("error", err))
		}
	}
}
