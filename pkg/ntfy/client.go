// Package ntfy implements a minimal client for the ntfy.sh push protocol.
package ntfy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang-stock-alerts/pkg/logger"
)

// Message is a single push notification.
type Message struct {
	Title    string
	Body     string
	ClickURL string
	Markdown bool
}

// Notifier defines the interface for an ntfy publisher.
type Notifier interface {
	Publish(ctx context.Context, msg Message) error
}

// client is an implementation of Notifier.
type client struct {
	httpClient *http.Client
	server     string
	topic      string
	dryRun     bool
	log        *logger.Logger
}

// NewClient creates a new ntfy notifier publishing to server/topic.
// With dryRun set, Publish runs identical logic but skips the network send.
func NewClient(server, topic string, dryRun bool, log *logger.Logger) Notifier {
	return &client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		server:     strings.TrimRight(server, "/"),
		topic:      topic,
		dryRun:     dryRun,
		log:        log,
	}
}

// Publish sends the message to the configured topic. The title travels in a
// header and must stay ASCII; the body may carry Markdown and Unicode.
func (c *client) Publish(ctx context.Context, msg Message) error {
	endpoint := fmt.Sprintf("%s/%s", c.server, c.topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("failed to create ntfy request: %w", err)
	}
	req.Header.Set("Title", msg.Title)
	if msg.Markdown {
		req.Header.Set("Markdown", "yes")
	}
	if msg.ClickURL != "" {
		req.Header.Set("Click", msg.ClickURL)
	}

	if c.dryRun {
		c.log.Info("Dry run: skipping ntfy publish",
			logger.StringField("endpoint", endpoint),
			logger.StringField("title", msg.Title),
		)
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish to ntfy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ntfy publish failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
