// Package market provides intraday price data for tickers.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"golang-stock-alerts/pkg/logger"
)

// Quote is one price observation: the session open and the latest price.
type Quote struct {
	Ticker string
	Open   float64
	Last   float64
}

// Repository fetches the current open and last price for a ticker.
type Repository interface {
	GetOpenAndLast(ctx context.Context, ticker string) (Quote, error)
}

// Config holds the settings for the Yahoo Finance client.
type Config struct {
	BaseURL             string
	MaxRequestPerMinute int
}

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFinanceRepository is a Repository backed by the Yahoo Finance chart
// and quote endpoints.
type YahooFinanceRepository struct {
	cfg            Config
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	log            *logger.Logger
}

// NewYahooFinanceRepository creates a rate-limited Yahoo Finance client.
func NewYahooFinanceRepository(cfg Config, log *logger.Logger) *YahooFinanceRepository {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultYahooBaseURL
	}
	if cfg.MaxRequestPerMinute <= 0 {
		cfg.MaxRequestPerMinute = 60
	}
	secondsPerRequest := time.Minute / time.Duration(cfg.MaxRequestPerMinute)
	return &YahooFinanceRepository{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		log:            log,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Open []*float64 `json:"open"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetOpenAndLast returns the day's open and the latest traded price. A zero
// or missing open price is an error: dividing by it would turn a failed
// reading into a fake 0% change.
func (r *YahooFinanceRepository) GetOpenAndLast(ctx context.Context, ticker string) (Quote, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return Quote{}, err
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", r.cfg.BaseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to create chart request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; stock-alerts/1.0)")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to fetch chart data for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("chart request for %s failed with status %d", ticker, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to read chart response: %w", err)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Quote{}, fmt.Errorf("failed to decode chart response for %s: %w", ticker, err)
	}
	if parsed.Chart.Error != nil {
		return Quote{}, fmt.Errorf("chart request for %s rejected: %s", ticker, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("no chart data for %s", ticker)
	}

	result := parsed.Chart.Result[0]
	quote := Quote{
		Ticker: ticker,
		Last:   result.Meta.RegularMarketPrice,
	}
	for _, q := range result.Indicators.Quote {
		for _, open := range q.Open {
			if open != nil && *open != 0 {
				quote.Open = *open
				break
			}
		}
		if quote.Open != 0 {
			break
		}
	}

	if quote.Open == 0 {
		return Quote{}, fmt.Errorf("open price unavailable for %s", ticker)
	}
	if quote.Last == 0 {
		return Quote{}, fmt.Errorf("last price unavailable for %s", ticker)
	}

	r.log.Debug("Fetched quote",
		logger.StringField("ticker", ticker),
		logger.Float64Field("open", quote.Open),
		logger.Float64Field("last", quote.Last),
	)
	return quote, nil
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			LongName    string `json:"longName"`
			ShortName   string `json:"shortName"`
			DisplayName string `json:"displayName"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// LookupName resolves the company name for a symbol, preferring the long
// name. Satisfies company.NameProvider.
func (r *YahooFinanceRepository) LookupName(ctx context.Context, symbol string) (string, string, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return "", "", err
	}

	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", r.cfg.BaseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create quote request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; stock-alerts/1.0)")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("quote request for %s failed with status %d", symbol, resp.StatusCode)
	}

	var parsed quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("failed to decode quote response for %s: %w", symbol, err)
	}
	if len(parsed.QuoteResponse.Result) == 0 {
		return "", "", fmt.Errorf("no quote data for %s", symbol)
	}

	result := parsed.QuoteResponse.Result[0]
	switch {
	case result.LongName != "":
		return result.LongName, "quote.longName", nil
	case result.ShortName != "":
		return result.ShortName, "quote.shortName", nil
	case result.DisplayName != "":
		return result.DisplayName, "quote.displayName", nil
	}
	return "", "", fmt.Errorf("no name fields for %s", symbol)
}
