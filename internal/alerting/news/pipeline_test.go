package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-stock-alerts/pkg/logger"
)

type feedItem struct {
	title   string
	link    string
	source  string
	pubDate time.Time
}

// rssHandler serves one RSS document per locale, keyed by the hl query
// parameter, and records how often each locale was hit.
func rssHandler(t *testing.T, perLocale map[string][]feedItem, hits map[string]int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		lang := r.URL.Query().Get("hl")
		hits[lang]++

		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>search</title>`)
		for _, it := range perLocale[lang] {
			fmt.Fprintf(w, "<item><title>%s</title><link>%s</link><pubDate>%s</pubDate>",
				it.title, it.link, it.pubDate.Format(time.RFC1123Z))
			if it.source != "" {
				fmt.Fprintf(w, "<source url=%q>%s</source>", "https://"+it.source, it.source)
			}
			fmt.Fprint(w, "</item>")
		}
		fmt.Fprint(w, `</channel></rss>`)
	}
}

func newTestPipeline(feedURL string, cfg PipelineConfig) *Pipeline {
	fetcher := NewFetcher(feedURL, 600, logger.NewNop())
	resolver := NewResolver(2*time.Second, logger.NewNop())
	return NewPipeline(fetcher, resolver, cfg, logger.NewNop())
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery("Apple", "AAPL")
	assert.Contains(t, q, `"Apple" OR AAPL`)
	assert.Contains(t, q, "(stock OR ")
	assert.Contains(t, q, "Aktie")
	assert.Contains(t, q, "M&A)")

	assert.Equal(t, BuildQuery("", "AAPL")[:5], "AAPL ")
}

func TestFilterTitles(t *testing.T) {
	items := []Headline{
		{Title: "Apple beats estimates"},
		{Title: "Orange juice futures slide"},
		{Title: "AAPL upgraded by analysts"},
	}

	got := FilterTitles(items, []string{"Apple", "AAPL"})
	require.Len(t, got, 2)
	assert.Equal(t, "Apple beats estimates", got[0].Title)
	assert.Equal(t, "AAPL upgraded by analysts", got[1].Title)

	assert.Len(t, FilterTitles(items, nil), 3)
	assert.Len(t, FilterTitles(items, []string{"  "}), 3)
}

func TestFetcherParsesFeedAndAppliesLookback(t *testing.T) {
	now := time.Now().UTC()
	hits := map[string]int{}
	srv := httptest.NewServer(rssHandler(t, map[string][]feedItem{
		"en": {
			{title: "Fresh story", link: "https://example.com/fresh", pubDate: now.Add(-1 * time.Hour)},
			{title: "Stale story", link: "https://example.com/stale", pubDate: now.Add(-48 * time.Hour)},
		},
	}, hits))
	defer srv.Close()

	fetcher := NewFetcher(srv.URL, 600, logger.NewNop())
	got := fetcher.Fetch(context.Background(), "query", Locale{Lang: "en", Country: "US"}, 5, 6*time.Hour)

	require.Len(t, got, 1)
	assert.Equal(t, "Fresh story", got[0].Title)
	assert.Equal(t, "https://example.com/fresh", got[0].RawURL)
	assert.Equal(t, 1, hits["en"])
}

func TestFetcherSearchURL(t *testing.T) {
	fetcher := NewFetcher("", 600, logger.NewNop())
	u := fetcher.SearchURL("SAP Aktie", Locale{Lang: "de", Country: "DE"}, 6*time.Hour)

	assert.Contains(t, u, "https://news.google.com/rss/search?q=")
	assert.Contains(t, u, "when%3A6h")
	assert.Contains(t, u, "hl=de")
	assert.Contains(t, u, "ceid=DE:de")
}

func TestFetcherCarriesFeedSource(t *testing.T) {
	now := time.Now().UTC()
	hits := map[string]int{}
	srv := httptest.NewServer(rssHandler(t, map[string][]feedItem{
		"en": {
			{title: "Apple beats estimates", link: "https://example.com/a", source: "Reuters", pubDate: now.Add(-time.Hour)},
			{title: "Second story", link: "https://example.com/b", pubDate: now.Add(-time.Hour)},
		},
	}, hits))
	defer srv.Close()

	fetcher := NewFetcher(srv.URL, 600, logger.NewNop())
	got := fetcher.Fetch(context.Background(), "query", Locale{Lang: "en", Country: "US"}, 5, 6*time.Hour)

	require.Len(t, got, 2)
	assert.Equal(t, "Reuters", got[0].Source)
	assert.Empty(t, got[1].Source)
}

func TestFetchTimesOutOnStalledFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Stall until the client gives up.
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer srv.Close()

	fetcher := NewFetcher(srv.URL, 600, logger.NewNop())
	fetcher.httpClient = &http.Client{Timeout: 200 * time.Millisecond}

	start := time.Now()
	got := fetcher.Fetch(context.Background(), "query", Locale{Lang: "en", Country: "US"}, 5, 6*time.Hour)

	assert.Empty(t, got)
	assert.Less(t, time.Since(start), 2*time.Second,
		"a stalled feed must not block the sweep beyond the client timeout")
}

func TestFetcherFailureYieldsNoHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fetcher := NewFetcher(srv.URL, 600, logger.NewNop())
	got := fetcher.Fetch(context.Background(), "query", Locale{Lang: "en", Country: "US"}, 5, 6*time.Hour)
	assert.Empty(t, got)
}

func TestEnrichDeduplicatesByCanonicalURL(t *testing.T) {
	now := time.Now().UTC()

	// Two distinct aggregator links that both carry the same target article.
	hits := map[string]int{}
	feed := httptest.NewServer(rssHandler(t, map[string][]feedItem{
		"de": {
			{
				title:   "Apple beats estimates",
				link:    "https://news.google.com/rss/articles/abc?url=https%3A%2F%2Fexample.com%2Foriginal",
				pubDate: now.Add(-time.Hour),
			},
			{
				title:   "Apple beats estimates again",
				link:    "https://news.google.com/articles/def?url=https%3A%2F%2Fexample.com%2Foriginal",
				pubDate: now.Add(-time.Hour),
			},
		},
	}, hits))
	defer feed.Close()

	p := newTestPipeline(feed.URL, PipelineConfig{
		MaxItems: 5,
		Lookback: 6 * time.Hour,
		Primary:  Locale{Lang: "de", Country: "DE"},
		Fallback: Locale{Lang: "en", Country: "US"},
	})

	items, clickURL := p.Enrich(context.Background(), "AAPL", "Apple", []string{"Apple"})
	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/original", items[0].CanonicalURL)
	assert.Equal(t, "https://example.com/original", clickURL)
	assert.Equal(t, "example.com", items[0].Source)
}

func TestEnrichFallsBackToSecondLocale(t *testing.T) {
	now := time.Now().UTC()

	article := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>story</body></html>")
	}))
	defer article.Close()

	hits := map[string]int{}
	feed := httptest.NewServer(rssHandler(t, map[string][]feedItem{
		"de": {},
		"en": {
			{title: "Apple beats estimates", link: article.URL + "/story", pubDate: now.Add(-time.Hour)},
		},
	}, hits))
	defer feed.Close()

	p := newTestPipeline(feed.URL, PipelineConfig{
		MaxItems: 3,
		Lookback: 6 * time.Hour,
		Primary:  Locale{Lang: "de", Country: "DE"},
		Fallback: Locale{Lang: "en", Country: "US"},
	})

	items, clickURL := p.Enrich(context.Background(), "AAPL", "Apple", []string{"Apple"})
	require.Len(t, items, 1)
	assert.Equal(t, article.URL+"/story", items[0].CanonicalURL)
	assert.Equal(t, article.URL+"/story", clickURL)
	assert.Equal(t, 1, hits["de"])
	assert.Equal(t, 1, hits["en"])
}

func TestEnrichTitleFilterRemovesUnrelated(t *testing.T) {
	now := time.Now().UTC()

	article := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>story</body></html>")
	}))
	defer article.Close()

	hits := map[string]int{}
	feed := httptest.NewServer(rssHandler(t, map[string][]feedItem{
		"de": {
			{title: "Completely unrelated fruit news", link: article.URL + "/fruit", pubDate: now.Add(-time.Hour)},
		},
		"en": {},
	}, hits))
	defer feed.Close()

	p := newTestPipeline(feed.URL, PipelineConfig{
		MaxItems: 3,
		Lookback: 6 * time.Hour,
		Primary:  Locale{Lang: "de", Country: "DE"},
		Fallback: Locale{Lang: "en", Country: "US"},
	})

	items, clickURL := p.Enrich(context.Background(), "AAPL", "Apple", []string{"Apple", "AAPL"})
	assert.Empty(t, items)
	assert.Empty(t, clickURL)
}

func TestPrettyDomain(t *testing.T) {
	assert.Equal(t, "example.com", prettyDomain("https://www.example.com/a/b"))
	assert.Equal(t, "example.org", prettyDomain("https://example.org/x"))
	assert.Equal(t, "link", prettyDomain("not a url"))
}
