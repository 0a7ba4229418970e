package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/aggregate"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/engine"
)

// ScanMode runs the full detection pipeline: venue collectors feeding the
// order book store, plus the scan loop publishing opportunity lifecycle
// events.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScanPipeline(ctx, g, deps)
	return g.Wait()
}

// MonitorMode tails the opportunity event stream without running any
// detection itself. It requires the Redis signal bus.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	if deps.SignalBus == nil {
		return fmt.Errorf("monitor mode: redis must be enabled")
	}

	// Replay recent history from the durable stream before tailing live
	// events.
	recent, err := deps.SignalBus.StreamRead(ctx, engine.OpportunityStream, "0", 50)
	if err != nil {
		a.logger.WarnContext(ctx, "stream replay failed", slog.Any("error", err))
	}
	for _, msg := range recent {
		a.logEvent(ctx, "replay", msg.Payload)
	}

	ch, err := deps.SignalBus.Subscribe(ctx, engine.OpportunityChannel)
	if err != nil {
		return fmt.Errorf("monitor mode: subscribe: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			a.logEvent(ctx, "live", payload)
		}
	}
}

// ArchiveMode runs only the cold-storage rotation loop.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	return deps.Archiver.Run(ctx, a.cfg.Archive.Interval.Duration, a.retention())
}

// FullMode runs the detection pipeline and the archive loop together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScanPipeline(ctx, g, deps)
	g.Go(func() error {
		return deps.Archiver.Run(ctx, a.cfg.Archive.Interval.Duration, a.retention())
	})
	return g.Wait()
}

// startScanPipeline launches the aggregator and the scan runner on the given
// group.
func (a *App) startScanPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	agg := aggregate.New(
		aggregate.Config{
			PollInterval: a.cfg.Scan.PollInterval.Duration,
			MaxBackoff:   a.cfg.Scan.MaxBackoff.Duration,
		},
		a.logger,
		deps.Registry,
		deps.Books,
		deps.Mirror,
		deps.Adapters...,
	)

	eng := engine.New(engine.Config{
		VenueFees:          a.cfg.FeeRates(),
		InternalThreshold:  a.cfg.Scan.InternalThreshold,
		MinProfitPercent:   a.cfg.Scan.MinProfitPercent,
		MinDollarProfit:    a.cfg.Scan.MinDollarProfit,
		MinVolumeFloor:     a.cfg.Scan.MinVolumeFloor,
		MinSafeDenominator: a.cfg.Scan.MinSafeDenominator,
	}, a.logger)

	// Avoid handing the runner a non-nil interface wrapping a nil bus.
	var bus domain.SignalBus
	if deps.SignalBus != nil {
		bus = deps.SignalBus
	}
	runner := engine.NewRunner(
		a.cfg.Scan.Interval.Duration,
		a.logger,
		deps.Books,
		eng,
		bus,
		deps.History,
		deps.Notifier,
	)

	g.Go(func() error {
		return agg.Run(ctx)
	})
	g.Go(func() error {
		return runner.Run(ctx)
	})
}

// retention converts the configured retention days to a duration.
func (a *App) retention() time.Duration {
	return time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
}

// logEvent decodes one bus payload and logs its headline fields.
func (a *App) logEvent(ctx context.Context, source string, payload []byte) {
	var ev engine.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		a.logger.WarnContext(ctx, "malformed event payload", slog.Any("error", err))
		return
	}
	a.logger.InfoContext(ctx, "opportunity event",
		slog.String("source", source),
		slog.String("event", ev.Event),
		slog.String("market", string(ev.Opportunity.MarketKey)),
		slog.String("kind", string(ev.Opportunity.Kind)),
		slog.Float64("net_profit_total", ev.Opportunity.NetProfitTotal),
	)
}
