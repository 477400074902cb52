// Package advisory implements the optional LLM layer that refines alert
// wording and may add a send signal on top of the deterministic decision.
package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"golang-stock-alerts/internal/alerting/composer"
	"golang-stock-alerts/pkg/logger"
)

// Config holds the Gemini advisory settings.
type Config struct {
	APIKey              string        `mapstructure:"api_key"`
	Model               string        `mapstructure:"model"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// GeminiFormatter asks the Gemini API to rate and format one alert. It
// implements composer.AdvisoryFormatter; every failure surfaces as an error
// so the composer can fall back to deterministic output.
type GeminiFormatter struct {
	cfg            Config
	genAiClient    *genai.Client
	requestLimiter *rate.Limiter
	log            *logger.Logger
}

// NewGeminiFormatter creates a rate-limited Gemini advisory formatter.
func NewGeminiFormatter(cfg Config, genAiClient *genai.Client, log *logger.Logger) *GeminiFormatter {
	if cfg.MaxRequestPerMinute <= 0 {
		cfg.MaxRequestPerMinute = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	secondsPerRequest := time.Minute / time.Duration(cfg.MaxRequestPerMinute)
	return &GeminiFormatter{
		cfg:            cfg,
		genAiClient:    genAiClient,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		log:            log,
	}
}

type adviceFacts struct {
	Ticker       string         `json:"ticker"`
	Open         float64        `json:"open"`
	Last         float64        `json:"last"`
	DeltaPct     float64        `json:"delta_pct"`
	ThresholdPct float64        `json:"threshold_pct"`
	Headlines    []factHeadline `json:"headlines"`
}

type factHeadline struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

type adviceResponse struct {
	SendAlert bool    `json:"send_alert"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	ClickURL  *string `json:"click_url"`
}

// Format submits the structured facts and parses the structured answer.
func (f *GeminiFormatter) Format(ctx context.Context, in composer.Input) (*composer.Advice, error) {
	if err := f.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	prompt, err := buildPrompt(in)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, "user"),
	}
	resp, err := f.genAiClient.Models.GenerateContent(ctx, f.cfg.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}
	return parseAdvice(text)
}

// buildPrompt renders the instruction block plus the facts JSON. At most
// five headlines are submitted.
func buildPrompt(in composer.Input) (string, error) {
	facts := adviceFacts{
		Ticker:       in.Ticker,
		Open:         in.Open,
		Last:         in.Last,
		DeltaPct:     in.DeltaPct,
		ThresholdPct: in.ThresholdPct,
	}
	for i, h := range in.Headlines {
		if i >= 5 {
			break
		}
		facts.Headlines = append(facts.Headlines, factHeadline{
			Title:  h.Title,
			Source: h.Source,
			URL:    h.CanonicalURL,
		})
	}
	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal advisory facts: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a stock alerts agent. Decide whether a push notification should be sent and format it.\n")
	b.WriteString("Answer with a single JSON object with fields: send_alert (bool), title (string, ASCII only), body (string, Markdown allowed), click_url (string or null).\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Threshold: %.3f%% absolute vs. open.\n", in.ThresholdPct)
	b.WriteString("- Always send when |delta_pct| >= threshold.\n")
	b.WriteString("- Keep headlines concise; use at most 2-3 relevant ones with their real target links.\n")
	b.WriteString("- The title must stay ASCII (e.g. 'Stock Alert: TICKER'); emoji only in the body.\n\n")
	b.WriteString("Facts:\n")
	b.Write(factsJSON)
	return b.String(), nil
}

// parseAdvice unmarshals the model answer, tolerating a Markdown code fence.
func parseAdvice(text string) (*composer.Advice, error) {
	jsonString := strings.Trim(strings.TrimSpace(text), "`json\n`")

	var parsed adviceResponse
	if err := json.Unmarshal([]byte(jsonString), &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal advice from Gemini response: %w", err)
	}

	advice := &composer.Advice{
		SendAlert: parsed.SendAlert,
		Title:     parsed.Title,
		Body:      parsed.Body,
	}
	if parsed.ClickURL != nil {
		advice.ClickURL = *parsed.ClickURL
	}
	return advice, nil
}
