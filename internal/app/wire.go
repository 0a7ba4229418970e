package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/arbwatch/internal/aggregate"
	s3blob "github.com/alanyoungcy/arbwatch/internal/blob/s3"
	"github.com/alanyoungcy/arbwatch/internal/book"
	"github.com/alanyoungcy/arbwatch/internal/cache/redis"
	"github.com/alanyoungcy/arbwatch/internal/config"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/notify"
	"github.com/alanyoungcy/arbwatch/internal/registry"
	"github.com/alanyoungcy/arbwatch/internal/store/postgres"
	"github.com/alanyoungcy/arbwatch/internal/venue/kalshi"
	"github.com/alanyoungcy/arbwatch/internal/venue/limitless"
	"github.com/alanyoungcy/arbwatch/internal/venue/polymarket"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
// Optional backends (Mirror, SignalBus, History, Archiver) are nil when the
// corresponding section is disabled in configuration.
type Dependencies struct {
	Registry *registry.Registry
	Books    *book.Store
	Adapters []aggregate.FeedAdapter

	Mirror    domain.BookMirror
	SignalBus *redis.SignalBus
	History   domain.OpportunityStore

	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	Notifier *notify.Notifier
}

// needsArchiver returns true for modes that rotate history to cold storage.
func needsArchiver(mode string) bool {
	switch mode {
	case "archive", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Market registry and order book store ---
	reg, err := registry.New(marketSpecs(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("wire: registry: %w", err)
	}
	deps.Registry = reg
	deps.Books = book.NewStore(logger)

	// --- Redis (book mirror and signal bus) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Mirror = redis.NewBookMirror(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- PostgreSQL (opportunity history) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.History = postgres.NewOpportunityStore(pgClient.Pool())
	}

	// --- S3 blob storage (cold archive) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		if deps.History != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.History, logger)
		}
	}
	if needsArchiver(cfg.Mode) && deps.Archiver == nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: mode %q requires postgres and s3 to be enabled", cfg.Mode)
	}

	// --- Venue feed adapters ---
	adapters, err := buildAdapters(ctx, cfg, &closers)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Adapters = adapters

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// marketSpecs translates the configured market list into registry specs. The
// Kalshi ticker expands to its two per-outcome instrument IDs here so the
// registry never needs venue-specific knowledge.
func marketSpecs(cfg *config.Config) []registry.MarketSpec {
	specs := make([]registry.MarketSpec, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		venues := make(map[string]registry.VenueInstruments)
		if cfg.Polymarket.Enabled && m.PolymarketYesToken != "" {
			venues["polymarket"] = registry.VenueInstruments{
				Yes: m.PolymarketYesToken,
				No:  m.PolymarketNoToken,
			}
		}
		if cfg.Kalshi.Enabled && m.KalshiTicker != "" {
			venues["kalshi"] = registry.VenueInstruments{
				Yes: kalshi.YesInstrument(m.KalshiTicker),
				No:  kalshi.NoInstrument(m.KalshiTicker),
			}
		}
		if cfg.Limitless.Enabled && m.LimitlessPairID != "" {
			venues["limitless"] = registry.VenueInstruments{
				Yes: m.LimitlessPairID,
			}
		}
		specs = append(specs, registry.MarketSpec{
			Key:      domain.MarketKey(m.Key),
			Question: m.Question,
			Venues:   venues,
		})
	}
	return specs
}

// buildAdapters constructs one feed adapter per enabled venue. The Polymarket
// adapter holds a live websocket, so its connection is opened here and closed
// through the cleanup chain.
func buildAdapters(ctx context.Context, cfg *config.Config, closers *[]func()) ([]aggregate.FeedAdapter, error) {
	var adapters []aggregate.FeedAdapter

	if cfg.Polymarket.Enabled {
		var assetIDs []string
		for _, m := range cfg.Markets {
			if m.PolymarketYesToken != "" {
				assetIDs = append(assetIDs, m.PolymarketYesToken)
			}
			if m.PolymarketNoToken != "" {
				assetIDs = append(assetIDs, m.PolymarketNoToken)
			}
		}
		wsURL := strings.TrimRight(cfg.Polymarket.WsHost, "/") + "/ws/market"
		ws := polymarket.NewWSClient(wsURL)
		adapter := polymarket.NewAdapter(ws, assetIDs)
		if err := adapter.Start(ctx); err != nil {
			return nil, fmt.Errorf("wire: polymarket feed: %w", err)
		}
		*closers = append(*closers, func() { _ = adapter.Close() })
		adapters = append(adapters, adapter)
	}

	if cfg.Kalshi.Enabled {
		client := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey)
		if err := client.LoadRSAPrivateKeyFile(cfg.Kalshi.RsaPrivateKeyPath); err != nil {
			return nil, fmt.Errorf("wire: kalshi key: %w", err)
		}
		var tickers []string
		for _, m := range cfg.Markets {
			if m.KalshiTicker != "" {
				tickers = append(tickers, m.KalshiTicker)
			}
		}
		adapters = append(adapters, kalshi.NewAdapter(client, tickers))
	}

	if cfg.Limitless.Enabled {
		var pairIDs []string
		for _, m := range cfg.Markets {
			if m.LimitlessPairID != "" {
				pairIDs = append(pairIDs, m.LimitlessPairID)
			}
		}
		adapters = append(adapters, limitless.NewAdapter(limitless.NewClient(cfg.Limitless.BaseURL), pairIDs))
	}

	return adapters, nil
}
