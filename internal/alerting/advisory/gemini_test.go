package advisory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-stock-alerts/internal/alerting/composer"
	"golang-stock-alerts/internal/alerting/news"
)

func TestParseAdvicePlainJSON(t *testing.T) {
	advice, err := parseAdvice(`{"send_alert": true, "title": "Stock Alert: AAPL", "body": "up big", "click_url": "https://example.com/a"}`)
	require.NoError(t, err)
	assert.True(t, advice.SendAlert)
	assert.Equal(t, "Stock Alert: AAPL", advice.Title)
	assert.Equal(t, "up big", advice.Body)
	assert.Equal(t, "https://example.com/a", advice.ClickURL)
}

func TestParseAdviceFencedJSON(t *testing.T) {
	text := "```json\n{\"send_alert\": false, \"title\": \"t\", \"body\": \"b\", \"click_url\": null}\n```"
	advice, err := parseAdvice(text)
	require.NoError(t, err)
	assert.False(t, advice.SendAlert)
	assert.Equal(t, "b", advice.Body)
	assert.Empty(t, advice.ClickURL)
}

func TestParseAdviceMalformed(t *testing.T) {
	_, err := parseAdvice("sorry, I cannot help with that")
	assert.Error(t, err)
}

func TestBuildPromptCapsHeadlinesAtFive(t *testing.T) {
	in := composer.Input{
		Ticker:       "AAPL",
		Open:         100,
		Last:         102,
		DeltaPct:     2.0,
		ThresholdPct: 1.0,
	}
	for i := 0; i < 8; i++ {
		in.Headlines = append(in.Headlines, news.Headline{
			Title:        "headline",
			CanonicalURL: "https://example.com/a",
		})
	}

	prompt, err := buildPrompt(in)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(prompt, `"https://example.com/a"`))
	assert.Contains(t, prompt, "Always send when |delta_pct| >= threshold.")
	assert.Contains(t, prompt, `"ticker":"AAPL"`)
}
