package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
alerts:
  tickers: [AAPL]
  threshold_pct: 1.5
ntfy:
  topic: my-alerts
gemini:
  timeout: 45s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "stock-alerts", cfg.App.Name)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "file", cfg.Alerts.StateBackend)
	assert.Equal(t, "alert_state.json", cfg.Alerts.StateFile)
	assert.Equal(t, 4, cfg.Alerts.MaxConcurrent)
	assert.Equal(t, 3, cfg.News.MaxItems)
	assert.Equal(t, "de", cfg.News.Lang)
	assert.Equal(t, "US", cfg.News.FallbackCountry)
	assert.Equal(t, 24*time.Hour, cfg.News.CompanyCacheTTL)
	assert.Equal(t, 45*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.Cron)
}

func TestLoadRejectsEmptyTickers(t *testing.T) {
	path := writeConfig(t, `
alerts:
  threshold_pct: 1.0
ntfy:
  topic: my-alerts
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "tickers")
}

func TestLoadRejectsNonPositiveThreshold(t *testing.T) {
	path := writeConfig(t, `
alerts:
  tickers: [AAPL]
  threshold_pct: 0
ntfy:
  topic: my-alerts
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "threshold_pct")
}

func TestLoadRejectsUnknownStateBackend(t *testing.T) {
	path := writeConfig(t, `
alerts:
  tickers: [AAPL]
  threshold_pct: 1.0
  state_backend: dynamo
ntfy:
  topic: my-alerts
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "state_backend")
}

func TestLoadRejectsIncompleteTelegram(t *testing.T) {
	path := writeConfig(t, `
alerts:
  tickers: [AAPL]
  threshold_pct: 1.0
ntfy:
  topic: my-alerts
telegram:
  enabled: true
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "telegram")
}

func TestForceDeltaPctIsOptional(t *testing.T) {
	path := writeConfig(t, `
alerts:
  tickers: [AAPL]
  threshold_pct: 1.0
ntfy:
  topic: my-alerts
test:
  enabled: true
  force_delta_pct: 2.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Test.ForceDeltaPct)
	assert.Equal(t, 2.5, *cfg.Test.ForceDeltaPct)

	path = writeConfig(t, `
alerts:
  tickers: [AAPL]
  threshold_pct: 1.0
ntfy:
  topic: my-alerts
`)
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.Test.ForceDeltaPct)
}
