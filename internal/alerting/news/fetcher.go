// Package news fetches aggregator headlines and resolves their links to
// canonical article URLs.
package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"
	"golang.org/x/time/rate"

	"golang-stock-alerts/pkg/logger"
	"golang-stock-alerts/pkg/utils"
)

const googleNewsSearchURL = "https://news.google.com/rss/search"

// Headline is a single fetched news item. CanonicalURL is filled in by the
// enrichment pipeline and is what dedup and click-through use.
type Headline struct {
	Title        string
	Source       string
	RawURL       string
	CanonicalURL string
	PublishedAt  *time.Time
}

// Locale selects the language and country edition of the aggregator.
type Locale struct {
	Lang    string
	Country string
}

// Fetcher retrieves headlines from the Google News RSS search endpoint.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewFetcher creates a fetcher limited to maxRequestPerMinute upstream
// calls. An empty baseURL selects the public Google News endpoint.
func NewFetcher(baseURL string, maxRequestPerMinute int, log *logger.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = googleNewsSearchURL
	}
	if maxRequestPerMinute <= 0 {
		maxRequestPerMinute = 30
	}
	secondsPerRequest := time.Minute / time.Duration(maxRequestPerMinute)
	return &Fetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		log:     log,
	}
}

// SearchURL builds the RSS search URL for a query in the given locale. The
// lookback window is expressed in the query itself via when:<h>h so the
// aggregator pre-filters on its side too.
func (f *Fetcher) SearchURL(query string, locale Locale, lookback time.Duration) string {
	q := fmt.Sprintf("%s when:%dh", query, int(lookback.Hours()))
	return fmt.Sprintf("%s?q=%s&hl=%s&gl=%s&ceid=%s:%s",
		f.baseURL,
		url.QueryEscape(q),
		locale.Lang, locale.Country, locale.Country, locale.Lang,
	)
}

// sourceTranslator keeps the RSS <source> element the default translation
// drops. Google News names the publishing outlet there; when present it is
// a better display source than the canonical URL's domain.
type sourceTranslator struct {
	defaultTranslator *gofeed.DefaultRSSTranslator
}

func (t *sourceTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	rssFeed, ok := feed.(*rss.Feed)
	if !ok {
		return nil, fmt.Errorf("expected an RSS feed, got %T", feed)
	}
	translated, err := t.defaultTranslator.Translate(rssFeed)
	if err != nil {
		return nil, err
	}
	for i, item := range rssFeed.Items {
		if i >= len(translated.Items) || item.Source == nil || item.Source.Title == "" {
			continue
		}
		if translated.Items[i].Custom == nil {
			translated.Items[i].Custom = make(map[string]string)
		}
		translated.Items[i].Custom["source"] = item.Source.Title
	}
	return translated, nil
}

// Fetch returns up to maxItems recent headlines for the query. Entries whose
// own publish timestamp falls outside the lookback window are excluded; any
// fetch or parse failure yields an empty list, never an error.
func (f *Fetcher) Fetch(ctx context.Context, query string, locale Locale, maxItems int, lookback time.Duration) []Headline {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil
	}

	feedURL := f.SearchURL(query, locale, lookback)
	f.log.DebugContext(ctx, "Fetching headlines", logger.StringField("url", feedURL))

	fp := gofeed.NewParser()
	fp.Client = f.httpClient
	fp.RSSTranslator = &sourceTranslator{defaultTranslator: &gofeed.DefaultRSSTranslator{}}
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		f.log.Warn("Failed to fetch headlines",
			logger.StringField("query", query),
			logger.StringField("lang", locale.Lang),
			logger.ErrorField(err),
		)
		return nil
	}

	now := time.Now().UTC()
	var out []Headline
	for _, item := range feed.Items {
		if len(out) >= maxItems {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}
		if item.PublishedParsed != nil && now.Sub(item.PublishedParsed.UTC()) > lookback {
			continue
		}
		out = append(out, Headline{
			Title:       utils.CleanToValidUTF8(item.Title),
			Source:      utils.CleanToValidUTF8(item.Custom["source"]),
			RawURL:      item.Link,
			PublishedAt: item.PublishedParsed,
		})
	}
	return out
}
