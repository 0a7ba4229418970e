package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setBool(&cfg.Polymarket.Enabled, "ARBWATCH_POLYMARKET_ENABLED")
	setStr(&cfg.Polymarket.ClobHost, "ARBWATCH_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.WsHost, "ARBWATCH_POLYMARKET_WS_HOST")
	setFloat64(&cfg.Polymarket.FeeRate, "ARBWATCH_POLYMARKET_FEE_RATE")

	// ── Kalshi ──
	setBool(&cfg.Kalshi.Enabled, "ARBWATCH_KALSHI_ENABLED")
	setStr(&cfg.Kalshi.BaseURL, "ARBWATCH_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.ApiKey, "ARBWATCH_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "ARBWATCH_KALSHI_RSA_PRIVATE_KEY_PATH")
	setFloat64(&cfg.Kalshi.FeeRate, "ARBWATCH_KALSHI_FEE_RATE")

	// ── Limitless ──
	setBool(&cfg.Limitless.Enabled, "ARBWATCH_LIMITLESS_ENABLED")
	setStr(&cfg.Limitless.BaseURL, "ARBWATCH_LIMITLESS_BASE_URL")
	setFloat64(&cfg.Limitless.FeeRate, "ARBWATCH_LIMITLESS_FEE_RATE")

	// ── Scan ──
	setDuration(&cfg.Scan.Interval, "ARBWATCH_SCAN_INTERVAL")
	setDuration(&cfg.Scan.PollInterval, "ARBWATCH_SCAN_POLL_INTERVAL")
	setDuration(&cfg.Scan.MaxBackoff, "ARBWATCH_SCAN_MAX_BACKOFF")
	setFloat64(&cfg.Scan.InternalThreshold, "ARBWATCH_SCAN_INTERNAL_THRESHOLD")
	setFloat64(&cfg.Scan.MinProfitPercent, "ARBWATCH_SCAN_MIN_PROFIT_PERCENT")
	setFloat64(&cfg.Scan.MinDollarProfit, "ARBWATCH_SCAN_MIN_DOLLAR_PROFIT")
	setFloat64(&cfg.Scan.MinVolumeFloor, "ARBWATCH_SCAN_MIN_VOLUME_FLOOR")
	setFloat64(&cfg.Scan.MinSafeDenominator, "ARBWATCH_SCAN_MIN_SAFE_DENOMINATOR")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ARBWATCH_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBWATCH_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setDuration(&cfg.Archive.Interval, "ARBWATCH_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "ARBWATCH_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBWATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBWATCH_MODE")
	setStr(&cfg.LogLevel, "ARBWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
