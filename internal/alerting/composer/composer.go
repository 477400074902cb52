// Package composer turns an evaluated breakout into the notification payload.
package composer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang-stock-alerts/internal/alerting/news"
	"golang-stock-alerts/pkg/logger"
)

// Input carries the structured facts for one breakout event.
type Input struct {
	Ticker       string
	Open         float64
	Last         float64
	DeltaPct     float64
	ThresholdPct float64
	Headlines    []news.Headline
}

// Event is the composed notification, consumed once by dispatch.
type Event struct {
	Title      string
	Body       string
	ClickURL   string
	ShouldSend bool
}

// Advice is the structured answer of an advisory formatter.
type Advice struct {
	SendAlert bool
	Title     string
	Body      string
	ClickURL  string
}

// AdvisoryFormatter optionally refines wording and the send decision. Any
// error or contract violation collapses to the deterministic baseline; the
// advisory can add a send signal but never veto the magnitude test.
type AdvisoryFormatter interface {
	Format(ctx context.Context, in Input) (*Advice, error)
}

// Composer produces notification events, with or without an advisory layer.
type Composer struct {
	advisory AdvisoryFormatter
	log      *logger.Logger
}

// New creates a composer. advisory may be nil.
func New(advisory AdvisoryFormatter, log *logger.Logger) *Composer {
	return &Composer{advisory: advisory, log: log}
}

// Compose builds the notification for one breakout. The deterministic
// magnitude test is the floor of the send decision in every code path.
func (c *Composer) Compose(ctx context.Context, in Input) Event {
	baseline := c.baseline(in)
	if c.advisory == nil {
		return baseline
	}

	advice, err := c.advisory.Format(ctx, in)
	if err != nil || advice == nil {
		if err != nil {
			c.log.Warn("Advisory formatter failed, using deterministic composition",
				logger.StringField("ticker", in.Ticker), logger.ErrorField(err))
		}
		return baseline
	}

	if advice.Body == "" {
		// Contract violation: keep deterministic formatting and decision.
		return baseline
	}

	ev := Event{
		Title:      advice.Title,
		Body:       advice.Body,
		ClickURL:   advice.ClickURL,
		ShouldSend: baseline.ShouldSend || advice.SendAlert,
	}
	if ev.Title == "" {
		ev.Title = baseline.Title
	}
	if ev.ClickURL == "" {
		ev.ClickURL = baseline.ClickURL
	}
	return ev
}

// baseline is the deterministic composition used whenever the advisory layer
// is absent or misbehaves.
func (c *Composer) baseline(in Input) Event {
	ev := Event{
		Title:      FormatTitle(in.Ticker),
		Body:       FormatBody(in),
		ShouldSend: math.Abs(in.DeltaPct) >= in.ThresholdPct,
	}
	if len(in.Headlines) > 0 {
		ev.ClickURL = in.Headlines[0].CanonicalURL
	}
	return ev
}

// FormatTitle renders the notification title. It travels in a transport
// header, so it stays ASCII-only.
func FormatTitle(ticker string) string {
	return fmt.Sprintf("Stock Alert: %s", ticker)
}

// FormatBody renders the deterministic Markdown body: direction, magnitude,
// prices, and the headline block when headlines are present.
func FormatBody(in Input) string {
	arrow := "📈"
	if in.DeltaPct < 0 {
		arrow = "📉"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %+.2f%% vs. Open\n", arrow, in.Ticker, in.DeltaPct)
	fmt.Fprintf(&b, "Last: %.2f | Open: %.2f", in.Last, in.Open)

	if block := FormatHeadlines(in.Headlines); block != "" {
		b.WriteString("\n\n📰 News:\n")
		b.WriteString(block)
	}
	return b.String()
}

// FormatHeadlines renders a compact Markdown block. The web app renders the
// Markdown link; mobile clients get the full URL line underneath, which
// stays clickable as plain text.
func FormatHeadlines(items []news.Headline) string {
	var lines []string
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		url := it.CanonicalURL
		if url == "" {
			url = it.RawURL
		}
		if title == "" || url == "" {
			continue
		}
		srcPart := ""
		if src := strings.TrimSpace(it.Source); src != "" {
			srcPart = fmt.Sprintf(" — %s", src)
		}
		lines = append(lines, fmt.Sprintf("• [%s](%s)%s", title, url, srcPart))
		lines = append(lines, fmt.Sprintf("   🔗 %s", url))
	}
	return strings.Join(lines, "\n")
}
