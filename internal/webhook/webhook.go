// Package webhook posts plain-text messages to a Discord-compatible webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxContent is the webhook's per-message character limit.
const maxContent = 2000

// Client sends messages to a single webhook URL.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a webhook client.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts content as {"content": ...}. Content longer than the limit is truncated.
func (c *Client) Send(ctx context.Context, content string) error {
	if c.url == "" {
		return fmt.Errorf("webhook url is not configured")
	}
	if r := []rune(content); len(r) > maxContent {
		content = string(r[:maxContent-1]) + "…"
	}

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
