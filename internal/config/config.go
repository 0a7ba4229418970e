// Package config defines the top-level configuration for arbwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBWATCH_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Limitless  LimitlessConfig  `toml:"limitless"`
	Scan       ScanConfig       `toml:"scan"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Notify     NotifyConfig     `toml:"notify"`
	Markets    []MarketConfig   `toml:"markets"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	Enabled  bool    `toml:"enabled"`
	ClobHost string  `toml:"clob_host"`
	WsHost   string  `toml:"ws_host"`
	FeeRate  float64 `toml:"fee_rate"`
}

// KalshiConfig holds Kalshi exchange API endpoints and credentials.
type KalshiConfig struct {
	Enabled           bool    `toml:"enabled"`
	BaseURL           string  `toml:"base_url"`
	ApiKey            string  `toml:"api_key"`
	RsaPrivateKeyPath string  `toml:"rsa_private_key_path"`
	FeeRate           float64 `toml:"fee_rate"`
}

// LimitlessConfig holds Limitless exchange API endpoints.
type LimitlessConfig struct {
	Enabled bool    `toml:"enabled"`
	BaseURL string  `toml:"base_url"`
	FeeRate float64 `toml:"fee_rate"`
}

// ScanConfig holds detection thresholds and loop timings.
type ScanConfig struct {
	Interval           duration `toml:"interval"`
	PollInterval       duration `toml:"poll_interval"`
	MaxBackoff         duration `toml:"max_backoff"`
	InternalThreshold  float64  `toml:"internal_threshold"`
	MinProfitPercent   float64  `toml:"min_profit_percent"`
	MinDollarProfit    float64  `toml:"min_dollar_profit"`
	MinVolumeFloor     float64  `toml:"min_volume_floor"`
	MinSafeDenominator float64  `toml:"min_safe_denominator"`
}

// PostgresConfig holds PostgreSQL connection parameters for the opportunity
// history.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the book mirror and
// signal bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds the cold-storage rotation parameters.
type ArchiveConfig struct {
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MarketConfig declares one tracked market and its per-venue instrument IDs.
// A venue entry left empty means the venue does not list the market.
type MarketConfig struct {
	Key      string `toml:"key"`
	Question string `toml:"question"`

	PolymarketYesToken string `toml:"polymarket_yes_token"`
	PolymarketNoToken  string `toml:"polymarket_no_token"`
	KalshiTicker       string `toml:"kalshi_ticker"`
	LimitlessPairID    string `toml:"limitless_pair_id"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "2m").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			Enabled:  true,
			ClobHost: "https://clob.polymarket.com",
			WsHost:   "wss://ws-subscriptions-clob.polymarket.com",
			FeeRate:  0.0,
		},
		Kalshi: KalshiConfig{
			Enabled: false,
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
			FeeRate: 0.007,
		},
		Limitless: LimitlessConfig{
			Enabled: false,
			BaseURL: "https://api.limitless.exchange",
			FeeRate: 0.0,
		},
		Scan: ScanConfig{
			Interval:           duration{2 * time.Second},
			PollInterval:       duration{2 * time.Second},
			MaxBackoff:         duration{30 * time.Second},
			InternalThreshold:  0.003,
			MinProfitPercent:   0.02,
			MinDollarProfit:    1.0,
			MinVolumeFloor:     0,
			MinSafeDenominator: 0.01,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "arbwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbwatch-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Interval:      duration{time.Hour},
			RetentionDays: 90,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_discovered", "opportunity_expired", "error"},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"monitor": true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, monitor, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if !c.Polymarket.Enabled && !c.Kalshi.Enabled && !c.Limitless.Enabled {
		errs = append(errs, "venues: at least one venue must be enabled")
	}

	if c.Polymarket.Enabled {
		if c.Polymarket.ClobHost == "" {
			errs = append(errs, "polymarket: clob_host must not be empty")
		}
		if c.Polymarket.WsHost == "" {
			errs = append(errs, "polymarket: ws_host must not be empty")
		}
	}
	if c.Kalshi.Enabled {
		if c.Kalshi.BaseURL == "" {
			errs = append(errs, "kalshi: base_url must not be empty")
		}
		if c.Kalshi.ApiKey == "" {
			errs = append(errs, "kalshi: api_key is required when enabled")
		}
		if c.Kalshi.RsaPrivateKeyPath == "" {
			errs = append(errs, "kalshi: rsa_private_key_path is required when enabled")
		}
	}
	if c.Limitless.Enabled && c.Limitless.BaseURL == "" {
		errs = append(errs, "limitless: base_url must not be empty")
	}
	for _, fee := range []struct {
		venue string
		rate  float64
	}{
		{"polymarket", c.Polymarket.FeeRate},
		{"kalshi", c.Kalshi.FeeRate},
		{"limitless", c.Limitless.FeeRate},
	} {
		if fee.rate < 0 || fee.rate >= 1 {
			errs = append(errs, fmt.Sprintf("%s: fee_rate must be in [0, 1), got %g", fee.venue, fee.rate))
		}
	}

	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be positive")
	}
	if c.Scan.PollInterval.Duration <= 0 {
		errs = append(errs, "scan: poll_interval must be positive")
	}
	if c.Scan.InternalThreshold < 0 {
		errs = append(errs, "scan: internal_threshold must be >= 0")
	}
	if c.Scan.MinProfitPercent < 0 {
		errs = append(errs, "scan: min_profit_percent must be >= 0")
	}
	if c.Scan.MinSafeDenominator <= 0 {
		errs = append(errs, "scan: min_safe_denominator must be > 0")
	}

	if len(c.Markets) == 0 {
		errs = append(errs, "markets: at least one [[markets]] table is required")
	}
	seen := make(map[string]bool, len(c.Markets))
	for i, m := range c.Markets {
		if m.Key == "" {
			errs = append(errs, fmt.Sprintf("markets[%d]: key must not be empty", i))
			continue
		}
		if seen[m.Key] {
			errs = append(errs, fmt.Sprintf("markets: duplicate key %q", m.Key))
		}
		seen[m.Key] = true
		if (m.PolymarketYesToken == "") != (m.PolymarketNoToken == "") {
			errs = append(errs, fmt.Sprintf("markets[%s]: polymarket tokens must be set in pairs", m.Key))
		}
		if m.PolymarketYesToken == "" && m.KalshiTicker == "" && m.LimitlessPairID == "" {
			errs = append(errs, fmt.Sprintf("markets[%s]: no venue instruments configured", m.Key))
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}
	if c.Mode == "archive" || c.Mode == "full" {
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// FeeRates returns the per-venue fee map for enabled venues.
func (c *Config) FeeRates() map[string]float64 {
	fees := make(map[string]float64, 3)
	if c.Polymarket.Enabled {
		fees["polymarket"] = c.Polymarket.FeeRate
	}
	if c.Kalshi.Enabled {
		fees["kalshi"] = c.Kalshi.FeeRate
	}
	if c.Limitless.Enabled {
		fees["limitless"] = c.Limitless.FeeRate
	}
	return fees
}
