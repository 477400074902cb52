// Package config holds the application configuration for the alerting jobs.
package config

import (
	"fmt"
	"time"

	"golang-stock-alerts/internal/alerting/advisory"
	"golang-stock-alerts/internal/alerting/hours"
	"golang-stock-alerts/pkg/config"
)

// Alerts configures the tickers under watch and the corridor threshold.
type Alerts struct {
	Tickers       []string `mapstructure:"tickers"`
	ThresholdPct  float64  `mapstructure:"threshold_pct"`
	MaxConcurrent int      `mapstructure:"max_concurrent"`

	// StateBackend selects where corridor state lives: "file" or "redis".
	StateBackend string `mapstructure:"state_backend"`
	StateFile    string `mapstructure:"state_file"`
}

// News configures the headline enrichment pipeline.
type News struct {
	Enabled             bool          `mapstructure:"enabled"`
	BaseURL             string        `mapstructure:"base_url"`
	MaxItems            int           `mapstructure:"max_items"`
	LookbackHours       int           `mapstructure:"lookback_hours"`
	Lang                string        `mapstructure:"lang"`
	Country             string        `mapstructure:"country"`
	FallbackLang        string        `mapstructure:"fallback_lang"`
	FallbackCountry     string        `mapstructure:"fallback_country"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	CompanyCacheTTL     time.Duration `mapstructure:"company_cache_ttl"`
}

// YahooFinance configures the price and company-name client.
type YahooFinance struct {
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Ntfy configures the primary push notification sink.
type Ntfy struct {
	Server string `mapstructure:"server"`
	Topic  string `mapstructure:"topic"`
}

// Telegram configures the optional secondary notification sink.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Gemini configures the optional advisory layer.
type Gemini struct {
	Enabled             bool          `mapstructure:"enabled"`
	APIKey              string        `mapstructure:"api_key"`
	Model               string        `mapstructure:"model"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// AdvisoryConfig converts the section into the formatter's own config.
func (g Gemini) AdvisoryConfig() advisory.Config {
	return advisory.Config{
		APIKey:              g.APIKey,
		Model:               g.Model,
		MaxRequestPerMinute: g.MaxRequestPerMinute,
		Timeout:             g.Timeout,
	}
}

// Test holds the manual-testing knobs. They only take effect with Enabled
// set, so a stray dry_run in a production config cannot silence alerts.
type Test struct {
	Enabled           bool     `mapstructure:"enabled"`
	DryRun            bool     `mapstructure:"dry_run"`
	BypassMarketHours bool     `mapstructure:"bypass_market_hours"`
	ForceDeltaPct     *float64 `mapstructure:"force_delta_pct"`
}

// Scheduler configures the periodic run in serve mode.
type Scheduler struct {
	Cron string `mapstructure:"cron"`
}

// Config is the root configuration of the alerting service.
type Config struct {
	App          config.App    `mapstructure:"app"`
	Logger       config.Logger `mapstructure:"logger"`
	Redis        config.Redis  `mapstructure:"redis"`
	Alerts       Alerts        `mapstructure:"alerts"`
	MarketHours  hours.Config  `mapstructure:"market_hours"`
	News         News          `mapstructure:"news"`
	YahooFinance YahooFinance  `mapstructure:"yahoo_finance"`
	Ntfy         Ntfy          `mapstructure:"ntfy"`
	Telegram     Telegram      `mapstructure:"telegram"`
	Gemini       Gemini        `mapstructure:"gemini"`
	Test         Test          `mapstructure:"test"`
	Scheduler    Scheduler     `mapstructure:"scheduler"`
}

// Load reads the YAML config file, applies defaults, and validates it.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "stock-alerts"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Encoding == "" {
		c.Logger.Encoding = "console"
	}
	if c.Alerts.MaxConcurrent <= 0 {
		c.Alerts.MaxConcurrent = 4
	}
	if c.Alerts.StateBackend == "" {
		c.Alerts.StateBackend = "file"
	}
	if c.Alerts.StateFile == "" {
		c.Alerts.StateFile = "alert_state.json"
	}
	if c.News.MaxItems <= 0 {
		c.News.MaxItems = 3
	}
	if c.News.LookbackHours <= 0 {
		c.News.LookbackHours = 6
	}
	if c.News.Lang == "" {
		c.News.Lang = "de"
	}
	if c.News.Country == "" {
		c.News.Country = "DE"
	}
	if c.News.FallbackLang == "" {
		c.News.FallbackLang = "en"
	}
	if c.News.FallbackCountry == "" {
		c.News.FallbackCountry = "US"
	}
	if c.News.CompanyCacheTTL <= 0 {
		c.News.CompanyCacheTTL = 24 * time.Hour
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Ntfy.Server == "" {
		c.Ntfy.Server = "https://ntfy.sh"
	}
	if c.Scheduler.Cron == "" {
		c.Scheduler.Cron = "*/5 * * * *"
	}
}

// Validate rejects configurations the run loop cannot work with. Anything
// not checked here degrades per ticker at runtime instead of failing fast.
func (c *Config) Validate() error {
	if len(c.Alerts.Tickers) == 0 {
		return fmt.Errorf("alerts.tickers must list at least one ticker")
	}
	if c.Alerts.ThresholdPct <= 0 {
		return fmt.Errorf("alerts.threshold_pct must be positive, got %v", c.Alerts.ThresholdPct)
	}
	switch c.Alerts.StateBackend {
	case "file", "redis":
	default:
		return fmt.Errorf("alerts.state_backend must be \"file\" or \"redis\", got %q", c.Alerts.StateBackend)
	}
	if c.Ntfy.Topic == "" {
		return fmt.Errorf("ntfy.topic is required")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	if c.Gemini.Enabled && c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required when gemini is enabled")
	}
	return nil
}
