// Package dispatch adapts the composed alert event onto the configured
// notification sinks.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"golang-stock-alerts/internal/alerting/composer"
	"golang-stock-alerts/pkg/ntfy"
	"golang-stock-alerts/pkg/telegram"
)

// Dispatcher delivers one composed alert event.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, ev composer.Event) error
}

// NtfyDispatcher publishes events over an ntfy topic.
type NtfyDispatcher struct {
	notifier ntfy.Notifier
}

// NewNtfyDispatcher wraps an ntfy notifier as a Dispatcher.
func NewNtfyDispatcher(notifier ntfy.Notifier) *NtfyDispatcher {
	return &NtfyDispatcher{notifier: notifier}
}

func (d *NtfyDispatcher) Name() string { return "ntfy" }

func (d *NtfyDispatcher) Dispatch(ctx context.Context, ev composer.Event) error {
	return d.notifier.Publish(ctx, ntfy.Message{
		Title:    ev.Title,
		Body:     ev.Body,
		ClickURL: ev.ClickURL,
		Markdown: true,
	})
}

// TelegramDispatcher mirrors events into a Telegram chat. Telegram has no
// separate title or click header, so both are folded into the message text.
type TelegramDispatcher struct {
	notifier telegram.Notifier
}

// NewTelegramDispatcher wraps a Telegram notifier as a Dispatcher.
func NewTelegramDispatcher(notifier telegram.Notifier) *TelegramDispatcher {
	return &TelegramDispatcher{notifier: notifier}
}

func (d *TelegramDispatcher) Name() string { return "telegram" }

func (d *TelegramDispatcher) Dispatch(_ context.Context, ev composer.Event) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n%s", ev.Title, ev.Body)
	if ev.ClickURL != "" && !strings.Contains(ev.Body, ev.ClickURL) {
		fmt.Fprintf(&b, "\n\n🔗 %s", ev.ClickURL)
	}
	return d.notifier.SendMessage(b.String())
}
