package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang-stock-alerts/pkg/logger"
)

// financeTerms biases the aggregator's relevance ranking toward financial
// news about the entity rather than unrelated homonyms.
var financeTerms = []string{
	"stock", "Aktie", "Börse",
	"earnings", "guidance", "outlook",
	"revenue", "profit", "dividend",
	"forecast", "rating", "upgrade", "downgrade",
	"merger", "acquisition", "M&A",
}

// PipelineConfig carries the tunables of the enrichment pipeline.
type PipelineConfig struct {
	MaxItems int
	Lookback time.Duration
	Primary  Locale
	Fallback Locale
}

// Pipeline turns a ticker into deduplicated, canonical-URL headlines.
type Pipeline struct {
	fetcher  *Fetcher
	resolver *Resolver
	cfg      PipelineConfig
	log      *logger.Logger
}

// NewPipeline creates an enrichment pipeline.
func NewPipeline(fetcher *Fetcher, resolver *Resolver, cfg PipelineConfig, log *logger.Logger) *Pipeline {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 3
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 12 * time.Hour
	}
	return &Pipeline{fetcher: fetcher, resolver: resolver, cfg: cfg, log: log}
}

// BuildQuery combines the quoted display name (when known) and the raw
// ticker, OR-combined with the fixed finance disambiguation terms.
func BuildQuery(name, ticker string) string {
	name = strings.TrimSpace(name)
	ticker = strings.TrimSpace(ticker)

	var parts []string
	if name != "" {
		parts = append(parts, fmt.Sprintf("%q", name))
	}
	if ticker != "" {
		parts = append(parts, ticker)
	}
	base := strings.Join(parts, " OR ")
	if base == "" {
		base = ticker
	}
	return fmt.Sprintf("%s (%s)", base, strings.Join(financeTerms, " OR "))
}

// FilterTitles keeps only headlines whose title contains at least one of the
// required keywords, case-insensitively. An empty keyword list keeps all.
func FilterTitles(items []Headline, requiredKeywords []string) []Headline {
	var req []string
	for _, k := range requiredKeywords {
		if k = strings.TrimSpace(k); k != "" {
			req = append(req, strings.ToLower(k))
		}
	}
	if len(req) == 0 {
		return items
	}
	var out []Headline
	for _, it := range items {
		title := strings.ToLower(it.Title)
		for _, k := range req {
			if strings.Contains(title, k) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// Enrich fetches, resolves, dedups, and filters headlines for a ticker.
// The returned click URL is the canonical URL of the first surviving
// headline. Enrichment never fails; on any trouble it returns no headlines.
func (p *Pipeline) Enrich(ctx context.Context, ticker, displayName string, requiredKeywords []string) ([]Headline, string) {
	query := BuildQuery(displayName, ticker)

	items := p.fetchResolved(ctx, query, p.cfg.Primary, p.cfg.Lookback)
	items = FilterTitles(items, requiredKeywords)

	clickURL := ""
	if len(items) > 0 {
		clickURL = items[0].CanonicalURL
	}

	if len(items) == 0 {
		// Broader-language fallback edition, with at least the same window.
		lookback := p.cfg.Lookback
		if lookback < 12*time.Hour {
			lookback = 12 * time.Hour
		}
		items = p.fetchResolved(ctx, query, p.cfg.Fallback, lookback)
		items = FilterTitles(items, requiredKeywords)
		if clickURL == "" && len(items) > 0 {
			clickURL = items[0].CanonicalURL
		}
	}

	p.log.DebugContext(ctx, "Enriched ticker with headlines",
		logger.StringField("ticker", ticker),
		logger.IntField("headlines", len(items)),
	)
	return items, clickURL
}

// fetchResolved fetches one locale and resolves plus dedups the results by
// canonical URL. Aggregator links for the same article often differ, so raw
// links are never used as the dedup key.
func (p *Pipeline) fetchResolved(ctx context.Context, query string, locale Locale, lookback time.Duration) []Headline {
	fetched := p.fetcher.Fetch(ctx, query, locale, p.cfg.MaxItems, lookback)

	seen := make(map[string]bool, len(fetched))
	var out []Headline
	for _, it := range fetched {
		canonical := p.resolver.Resolve(ctx, it.RawURL, true)
		if canonical == "" {
			continue
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true

		it.CanonicalURL = canonical
		if it.Source == "" {
			it.Source = prettyDomain(canonical)
		}
		out = append(out, it)
	}
	return out
}

// prettyDomain extracts a compact display domain, stripping a leading www.
func prettyDomain(rawURL string) string {
	host := hostOf(rawURL)
	if host == "" {
		return "link"
	}
	return strings.TrimPrefix(host, "www.")
}
