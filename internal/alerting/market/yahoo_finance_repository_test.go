package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-stock-alerts/pkg/logger"
)

func newTestRepository(t *testing.T, handler http.HandlerFunc) (*YahooFinanceRepository, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	repo := NewYahooFinanceRepository(Config{BaseURL: srv.URL, MaxRequestPerMinute: 600}, logger.NewNop())
	return repo, srv.Close
}

func chartJSON(last float64, opens string) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"regularMarketPrice":%v},"indicators":{"quote":[{"open":%s}]}}],"error":null}}`, last, opens)
}

func TestGetOpenAndLast(t *testing.T) {
	repo, cleanup := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		fmt.Fprint(w, chartJSON(101.50, "[100.0]"))
	})
	defer cleanup()

	q, err := repo.GetOpenAndLast(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Quote{Ticker: "AAPL", Open: 100.0, Last: 101.50}, q)
}

func TestGetOpenAndLastSkipsNullOpens(t *testing.T) {
	repo, cleanup := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON(101.50, "[null,0,100.0]"))
	})
	defer cleanup()

	q, err := repo.GetOpenAndLast(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100.0, q.Open)
}

func TestGetOpenAndLastZeroOpenIsError(t *testing.T) {
	repo, cleanup := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON(101.50, "[null,0]"))
	})
	defer cleanup()

	_, err := repo.GetOpenAndLast(context.Background(), "AAPL")
	assert.ErrorContains(t, err, "open price unavailable")
}

func TestGetOpenAndLastUpstreamError(t *testing.T) {
	repo, cleanup := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":{"code":"Not Found","description":"No data found"}}}`)
	})
	defer cleanup()

	_, err := repo.GetOpenAndLast(context.Background(), "NOPE")
	assert.ErrorContains(t, err, "No data found")
}

func TestLookupNamePrefersLongName(t *testing.T) {
	repo, cleanup := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		fmt.Fprint(w, `{"quoteResponse":{"result":[{"longName":"Apple Inc.","shortName":"Apple"}]}}`)
	})
	defer cleanup()

	name, source, err := repo.LookupName(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", name)
	assert.Equal(t, "quote.longName", source)
}

func TestLookupNameFallsBackToShortName(t *testing.T) {
	repo, cleanup := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse":{"result":[{"shortName":"Apple"}]}}`)
	})
	defer cleanup()

	name, source, err := repo.LookupName(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple", name)
	assert.Equal(t, "quote.shortName", source)
}

func TestLookupNameNoResults(t *testing.T) {
	repo, cleanup := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse":{"result":[]}}`)
	})
	defer cleanup()

	_, _, err := repo.LookupName(context.Background(), "NOPE")
	assert.Error(t, err)
}
