package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
mode = "scan"
log_level = "debug"

[polymarket]
enabled = true
fee_rate = 0.0

[kalshi]
enabled = true
api_key = "key-id"
rsa_private_key_path = "/etc/arbwatch/kalshi.pem"
fee_rate = 0.007

[scan]
interval = "1s"
internal_threshold = 0.005

[[markets]]
key = "us-recession-2025"
question = "US recession in 2025?"
polymarket_yes_token = "1111"
polymarket_no_token = "2222"
kalshi_ticker = "KXREC-25"

[[markets]]
key = "fed-cut-march"
question = "Fed cuts rates in March?"
polymarket_yes_token = "3333"
polymarket_no_token = "4444"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.Scan.Interval.Duration)
	assert.Equal(t, 0.005, cfg.Scan.InternalThreshold)
	// Untouched fields keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.Scan.PollInterval.Duration)
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)

	require.Len(t, cfg.Markets, 2)
	assert.Equal(t, "KXREC-25", cfg.Markets[0].KalshiTicker)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ARBWATCH_KALSHI_API_KEY", "env-key")
	t.Setenv("ARBWATCH_SCAN_INTERVAL", "500ms")
	t.Setenv("ARBWATCH_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Kalshi.ApiKey)
	assert.Equal(t, 500*time.Millisecond, cfg.Scan.Interval.Duration)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Polymarket.Enabled = false
	cfg.Kalshi.Enabled = false
	cfg.Limitless.Enabled = false
	cfg.Markets = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "at least one venue")
	assert.Contains(t, err.Error(), "[[markets]]")
}

func TestValidate_MarketRules(t *testing.T) {
	base := func() Config {
		cfg := Defaults()
		cfg.Markets = []MarketConfig{{
			Key:                "a",
			PolymarketYesToken: "1",
			PolymarketNoToken:  "2",
		}}
		return cfg
	}

	cfg := base()
	cfg.Markets[0].PolymarketNoToken = ""
	assert.ErrorContains(t, cfg.Validate(), "pairs")

	cfg = base()
	cfg.Markets = append(cfg.Markets, cfg.Markets[0])
	assert.ErrorContains(t, cfg.Validate(), "duplicate key")

	cfg = base()
	cfg.Markets[0] = MarketConfig{Key: "bare"}
	assert.ErrorContains(t, cfg.Validate(), "no venue instruments")
}

func TestValidate_KalshiCredentialsRequired(t *testing.T) {
	cfg := Defaults()
	cfg.Markets = []MarketConfig{{Key: "a", KalshiTicker: "T"}}
	cfg.Kalshi.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.Contains(t, err.Error(), "rsa_private_key_path")
}

func TestFeeRates_OnlyEnabledVenues(t *testing.T) {
	cfg := Defaults()
	cfg.Kalshi.Enabled = true

	fees := cfg.FeeRates()
	assert.Contains(t, fees, "polymarket")
	assert.Equal(t, 0.007, fees["kalshi"])
	assert.NotContains(t, fees, "limitless")
}
