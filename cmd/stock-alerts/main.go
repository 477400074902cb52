package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"golang-stock-alerts/internal/alerting/advisory"
	"golang-stock-alerts/internal/alerting/company"
	"golang-stock-alerts/internal/alerting/composer"
	"golang-stock-alerts/internal/alerting/config"
	"golang-stock-alerts/internal/alerting/dispatch"
	"golang-stock-alerts/internal/alerting/market"
	"golang-stock-alerts/internal/alerting/news"
	"golang-stock-alerts/internal/alerting/service"
	"golang-stock-alerts/internal/alerting/state"
	"golang-stock-alerts/pkg/logger"
	"golang-stock-alerts/pkg/ntfy"
	"golang-stock-alerts/pkg/redis"
	"golang-stock-alerts/pkg/telegram"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stock-alerts",
	Short: "Corridor-based stock price alerts with news enrichment",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Executes a single alerting sweep and exits",
	Run:   runOnce,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs alerting sweeps on the configured cron schedule",
	Run:   runServe,
}

func runOnce(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, _, appLogger, cleanup := mustBuildRunner(ctx)
	defer cleanup()

	if err := runner.Run(ctx); err != nil {
		appLogger.Fatal("Sweep failed", logger.ErrorField(err))
	}
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, cfg, appLogger, cleanup := mustBuildRunner(ctx)
	defer cleanup()

	c := cron.New()
	_, err := c.AddFunc(cfg.Scheduler.Cron, func() {
		if err := runner.Run(ctx); err != nil {
			appLogger.Error("Sweep failed", logger.ErrorField(err))
		}
	})
	if err != nil {
		appLogger.Fatal("Invalid cron schedule",
			logger.StringField("cron", cfg.Scheduler.Cron), logger.ErrorField(err))
	}

	appLogger.Info("Scheduler started", logger.StringField("cron", cfg.Scheduler.Cron))
	c.Start()

	<-ctx.Done()
	appLogger.Info("Shutting down scheduler...")

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		appLogger.Warn("Timed out waiting for running sweep to finish")
	}
	appLogger.Info("Scheduler exiting")
}

// mustBuildRunner loads the configuration and wires the full sweep runner.
// Any wiring failure is fatal; runtime failures degrade per ticker instead.
func mustBuildRunner(ctx context.Context) (*service.Runner, *config.Config, *logger.Logger, func()) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var fileOutput *logger.FileOutput
	if cfg.Logger.File != "" {
		fileOutput = &logger.FileOutput{
			Path:       cfg.Logger.File,
			MaxSizeMB:  cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAgeDays: cfg.Logger.MaxAgeDays,
		}
	}
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding, fileOutput)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger.Info("Starting stock alerts",
		logger.StringField("name", cfg.App.Name),
		logger.StringField("version", cfg.App.Version),
	)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		_ = appLogger.Sync()
	}

	// Prices and company names both come from the Yahoo Finance client.
	marketRepo := market.NewYahooFinanceRepository(market.Config{
		BaseURL:             cfg.YahooFinance.BaseURL,
		MaxRequestPerMinute: cfg.YahooFinance.MaxRequestPerMinute,
	}, appLogger)

	var headlines service.HeadlineSource
	if cfg.News.Enabled {
		companySvc := company.NewService(marketRepo, cfg.News.CompanyCacheTTL, appLogger)
		fetcher := news.NewFetcher(cfg.News.BaseURL, cfg.News.MaxRequestPerMinute, appLogger)
		resolver := news.NewResolver(10*time.Second, appLogger)
		pipeline := news.NewPipeline(fetcher, resolver, news.PipelineConfig{
			MaxItems: cfg.News.MaxItems,
			Lookback: time.Duration(cfg.News.LookbackHours) * time.Hour,
			Primary:  news.Locale{Lang: cfg.News.Lang, Country: cfg.News.Country},
			Fallback: news.Locale{Lang: cfg.News.FallbackLang, Country: cfg.News.FallbackCountry},
		}, appLogger)
		headlines = service.NewCompanyNewsSource(companySvc, pipeline)
	}

	var advisoryFormatter composer.AdvisoryFormatter
	if cfg.Gemini.Enabled {
		genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini client", logger.ErrorField(err))
		}
		advisoryFormatter = advisory.NewGeminiFormatter(cfg.Gemini.AdvisoryConfig(), genAiClient, appLogger)
	}
	comp := composer.New(advisoryFormatter, appLogger)

	dryRun := cfg.Test.Enabled && cfg.Test.DryRun
	dispatchers := []dispatch.Dispatcher{
		dispatch.NewNtfyDispatcher(ntfy.NewClient(cfg.Ntfy.Server, cfg.Ntfy.Topic, dryRun, appLogger)),
	}
	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram client", logger.ErrorField(err))
		}
		dispatchers = append(dispatchers, dispatch.NewTelegramDispatcher(tg))
	}

	var store state.Store
	switch cfg.Alerts.StateBackend {
	case "redis":
		redisClient, err := redis.NewClient(redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
		}
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
		store = state.NewRedisStore(redisClient, appLogger)
	default:
		store = state.NewFileStore(cfg.Alerts.StateFile, appLogger)
	}

	runner := service.NewRunner(cfg, marketRepo, headlines, comp, dispatchers, store, appLogger)
	return runner, cfg, appLogger, cleanup
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing stock-alerts CLI: %s\n", err)
		os.Exit(1)
	}
}
