// Package notify delivers team messages: to a Discord webhook when one is
// configured, otherwise to the log.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds a webhook delivery when the caller sets none.
const DefaultTimeout = 5 * time.Second

// Discord posts messages to a Discord webhook.
type Discord struct {
	WebhookURL string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Notify posts content; any 2xx counts as delivered.
func (d *Discord) Notify(ctx context.Context, content string) error {
	if d.WebhookURL == "" {
		return fmt.Errorf("discord webhook url not configured")
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(webhookPayload{Content: content})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := d.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// Log writes messages to the structured log.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, content string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "team notification", slog.String("component", "notify"), slog.String("content", content))
	return nil
}
