// Package aggregate runs one collection loop per venue feed, resolves
// venue-native instrument IDs to canonical markets, and commits the grouped
// books to the store in a single atomic replacement per venue.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/book"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/registry"
)

// FeedAdapter is one venue's pull surface. Push-based feeds buffer their
// latest state internally and serve it from PullRawOrderBooks.
type FeedAdapter interface {
	Venue() string
	// PullRawOrderBooks returns the venue's current books keyed by the
	// venue's native instrument ID, prices and sizes still in wire form.
	PullRawOrderBooks(ctx context.Context) (map[string]domain.RawBook, error)
}

// Config tunes the per-venue collection loops.
type Config struct {
	PollInterval time.Duration
	// MaxBackoff caps the exponential delay after consecutive pull failures.
	MaxBackoff time.Duration
}

// DefaultConfig returns loop timings suited to second-scale scanning.
func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		MaxBackoff:   30 * time.Second,
	}
}

// Aggregator owns the venue collection loops.
type Aggregator struct {
	cfg      Config
	logger   *slog.Logger
	reg      *registry.Registry
	store    *book.Store
	mirror   domain.BookMirror
	adapters []FeedAdapter
}

// New creates an Aggregator. mirror may be nil when no external cache is
// configured.
func New(cfg Config, logger *slog.Logger, reg *registry.Registry, store *book.Store, mirror domain.BookMirror, adapters ...FeedAdapter) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	return &Aggregator{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "aggregator")),
		reg:      reg,
		store:    store,
		mirror:   mirror,
		adapters: adapters,
	}
}

// Run starts one collection loop per adapter and blocks until the context is
// cancelled. A failing venue backs off and retries on its own; it never takes
// the other venues down.
func (a *Aggregator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, adapter := range a.adapters {
		adapter := adapter
		g.Go(func() error {
			return a.collectLoop(ctx, adapter)
		})
	}
	return g.Wait()
}

// RefreshOnce pulls every adapter a single time, used by one-shot scans.
func (a *Aggregator) RefreshOnce(ctx context.Context) error {
	var firstErr error
	for _, adapter := range a.adapters {
		if err := a.refresh(ctx, adapter); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *Aggregator) collectLoop(ctx context.Context, adapter FeedAdapter) error {
	venue := adapter.Venue()
	logger := a.logger.With(slog.String("venue", venue))

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	backoff := a.cfg.PollInterval
	for {
		if err := a.refresh(ctx, adapter); err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			logger.Warn("pull failed, backing off",
				slog.Duration("backoff", backoff),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > a.cfg.MaxBackoff {
				backoff = a.cfg.MaxBackoff
			}
			continue
		}
		backoff = a.cfg.PollInterval

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// refresh pulls one venue, groups its instrument books into per-market raw
// books, and commits them. Untracked instruments are discarded quietly; the
// registry is the sole authority on what we follow.
func (a *Aggregator) refresh(ctx context.Context, adapter FeedAdapter) error {
	venue := adapter.Venue()
	raw, err := adapter.PullRawOrderBooks(ctx)
	if err != nil {
		return err
	}

	grouped := make(map[domain.MarketKey]domain.RawVenueBook)
	for instrumentID, rb := range raw {
		ref, ok := a.reg.Resolve(venue, instrumentID)
		if !ok {
			a.logger.Debug("discarding untracked instrument",
				slog.String("venue", venue),
				slog.String("instrument", instrumentID),
			)
			continue
		}
		entry := grouped[ref.Key]
		rbCopy := rb
		switch ref.Outcome {
		case domain.OutcomeYes:
			entry.Yes = &rbCopy
		case domain.OutcomeNo:
			entry.No = &rbCopy
		}
		grouped[ref.Key] = entry
	}

	a.store.ApplyRawUpdate(venue, grouped)
	a.mirrorVenue(ctx, venue)
	return nil
}

// mirrorVenue pushes the venue's freshly normalized books to the external
// cache. Mirror failures are logged and swallowed; the in-process store is
// the source of truth.
func (a *Aggregator) mirrorVenue(ctx context.Context, venue string) {
	if a.mirror == nil {
		return
	}
	ts, _ := a.store.LastRefreshed(venue)
	for key, vb := range a.store.VenueBooks(venue) {
		if err := a.mirror.SetVenueBook(ctx, key, venue, vb, ts); err != nil {
			a.logger.Warn("book mirror write failed",
				slog.String("venue", venue),
				slog.String("market", string(key)),
				slog.Any("error", err),
			)
			return
		}
	}
}
