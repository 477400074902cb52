// Package service orchestrates one alerting sweep over the watched tickers.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang-stock-alerts/internal/alerting/company"
	"golang-stock-alerts/internal/alerting/composer"
	"golang-stock-alerts/internal/alerting/config"
	"golang-stock-alerts/internal/alerting/corridor"
	"golang-stock-alerts/internal/alerting/dispatch"
	"golang-stock-alerts/internal/alerting/hours"
	"golang-stock-alerts/internal/alerting/market"
	"golang-stock-alerts/internal/alerting/news"
	"golang-stock-alerts/internal/alerting/state"
	"golang-stock-alerts/pkg/logger"
	"golang-stock-alerts/pkg/utils"
)

// HeadlineSource supplies enriched headlines plus a click URL for a ticker.
type HeadlineSource interface {
	Headlines(ctx context.Context, ticker string) ([]news.Headline, string)
}

// CompanyNewsSource resolves the company identity and feeds it into the
// enrichment pipeline.
type CompanyNewsSource struct {
	companies *company.Service
	pipeline  *news.Pipeline
}

// NewCompanyNewsSource combines company lookup and headline enrichment.
func NewCompanyNewsSource(companies *company.Service, pipeline *news.Pipeline) *CompanyNewsSource {
	return &CompanyNewsSource{companies: companies, pipeline: pipeline}
}

func (s *CompanyNewsSource) Headlines(ctx context.Context, ticker string) ([]news.Headline, string) {
	name, keywords := s.companies.Keywords(ctx, ticker)
	return s.pipeline.Enrich(ctx, ticker, name, keywords)
}

// Runner executes one sweep: gate on market hours, evaluate every ticker
// concurrently, and persist corridor state after each mutation.
type Runner struct {
	cfg         *config.Config
	prices      market.Repository
	headlines   HeadlineSource
	composer    *composer.Composer
	dispatchers []dispatch.Dispatcher
	store       state.Store
	log         *logger.Logger

	now func() time.Time
}

// NewRunner wires a sweep runner. headlines may be nil when news enrichment
// is disabled.
func NewRunner(
	cfg *config.Config,
	prices market.Repository,
	headlines HeadlineSource,
	comp *composer.Composer,
	dispatchers []dispatch.Dispatcher,
	store state.Store,
	log *logger.Logger,
) *Runner {
	return &Runner{
		cfg:         cfg,
		prices:      prices,
		headlines:   headlines,
		composer:    comp,
		dispatchers: dispatchers,
		store:       store,
		log:         log,
		now:         time.Now,
	}
}

// Run performs one sweep over all configured tickers. Per-ticker failures
// are logged and isolated; only a broken market-hours configuration aborts
// the sweep.
func (r *Runner) Run(ctx context.Context) error {
	open, err := hours.IsOpen(r.cfg.MarketHours, r.now())
	if err != nil {
		return fmt.Errorf("failed to evaluate market hours: %w", err)
	}
	if !open && !(r.cfg.Test.Enabled && r.cfg.Test.BypassMarketHours) {
		r.log.Info("Market closed, skipping sweep")
		return nil
	}

	st, err := r.store.Load(ctx)
	if err != nil {
		// Degrade to a fresh corridor state rather than aborting the sweep.
		r.log.Warn("Failed to load corridor state, starting empty", logger.ErrorField(err))
		st = make(map[string]corridor.Direction)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		maxJobs = make(chan struct{}, r.cfg.Alerts.MaxConcurrent)
	)
	for _, ticker := range r.cfg.Alerts.Tickers {
		if !utils.ShouldContinue(ctx) {
			break
		}
		wg.Add(1)
		maxJobs <- struct{}{}
		tk := ticker
		utils.GoSafe(func() {
			defer wg.Done()
			defer func() { <-maxJobs }()
			r.processTicker(ctx, tk, st, &mu)
		}, func(rec any, stack []byte) {
			r.log.Error("Panic while processing ticker",
				logger.StringField("ticker", tk),
				logger.StringField("panic", fmt.Sprintf("%v", rec)),
				logger.StringField("stack", string(stack)),
			)
		})
	}
	wg.Wait()
	return nil
}

func (r *Runner) processTicker(ctx context.Context, ticker string, st map[string]corridor.Direction, mu *sync.Mutex) {
	quote, err := r.prices.GetOpenAndLast(ctx, ticker)
	if err != nil {
		r.log.Error("Failed to fetch quote",
			logger.StringField("ticker", ticker), logger.ErrorField(err))
		return
	}

	deltaPct := (quote.Last - quote.Open) / quote.Open * 100
	if r.cfg.Test.Enabled && r.cfg.Test.ForceDeltaPct != nil {
		deltaPct = *r.cfg.Test.ForceDeltaPct
		quote.Last = quote.Open * (1 + deltaPct/100)
	}

	mu.Lock()
	prev := st[ticker]
	mu.Unlock()

	curr := corridor.Classify(deltaPct, r.cfg.Alerts.ThresholdPct)
	r.log.Debug("Evaluated ticker",
		logger.StringField("ticker", ticker),
		logger.Float64Field("delta_pct", deltaPct),
		logger.StringField("prev", string(prev)),
		logger.StringField("curr", string(curr)),
	)

	switch corridor.Transition(prev, curr) {
	case corridor.ActionNotify:
		if r.notify(ctx, ticker, quote, deltaPct) {
			r.saveState(ctx, st, mu, ticker, curr)
		}
	case corridor.ActionReset:
		r.log.Info("Price back inside corridor, re-arming",
			logger.StringField("ticker", ticker))
		r.saveState(ctx, st, mu, ticker, corridor.DirectionNone)
	case corridor.ActionHold:
	}
}

// notify enriches, composes, and dispatches one breakout. It reports whether
// at least one sink accepted the event, which is what arms the debounce.
func (r *Runner) notify(ctx context.Context, ticker string, quote market.Quote, deltaPct float64) bool {
	var (
		headlines []news.Headline
		clickURL  string
	)
	if r.headlines != nil {
		headlines, clickURL = r.headlines.Headlines(ctx, ticker)
	}

	ev := r.composer.Compose(ctx, composer.Input{
		Ticker:       ticker,
		Open:         quote.Open,
		Last:         quote.Last,
		DeltaPct:     deltaPct,
		ThresholdPct: r.cfg.Alerts.ThresholdPct,
		Headlines:    headlines,
	})
	if ev.ClickURL == "" {
		ev.ClickURL = clickURL
	}
	if !ev.ShouldSend {
		r.log.Info("Composer suppressed breakout notification",
			logger.StringField("ticker", ticker))
		return false
	}

	delivered := false
	for _, d := range r.dispatchers {
		if err := d.Dispatch(ctx, ev); err != nil {
			r.log.Error("Failed to dispatch alert",
				logger.StringField("ticker", ticker),
				logger.StringField("sink", d.Name()),
				logger.ErrorField(err),
			)
			continue
		}
		delivered = true
	}
	if delivered {
		r.log.InfoContext(ctx, "Alert dispatched",
			logger.StringField("ticker", ticker),
			logger.Float64Field("delta_pct", deltaPct),
		)
	}
	return delivered
}

// saveState applies one mutation and persists the full snapshot immediately,
// so a crash mid-sweep never replays already-sent alerts.
func (r *Runner) saveState(ctx context.Context, st map[string]corridor.Direction, mu *sync.Mutex, ticker string, dir corridor.Direction) {
	mu.Lock()
	defer mu.Unlock()
	st[ticker] = dir
	if err := r.store.Save(ctx, st); err != nil {
		r.log.Error("Failed to persist corridor state",
			logger.StringField("ticker", ticker), logger.ErrorField(err))
	}
}
