// Package feed fetches the upstream quake feed and parses it into quakes.
package feed

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rewired-gh/quakewatch/internal/models"
)

const maxBodyBytes = 8 << 20

type ClientConfig struct {
	URL                string
	Timeout            time.Duration
	MaxRetries         int
	RetryDelay         time.Duration
	InsecureSkipVerify bool
	UserAgent          string
}

// Client downloads the raw feed document.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

func NewClient(config ClientConfig) *Client {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if config.UserAgent == "" {
		config.UserAgent = "quakewatch/1.0"
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for feeds with broken chains
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// Fetch returns the feed body. Transport errors and 5xx responses are retried
// with a linear backoff; anything still failing wraps ErrFeedUnavailable.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for i := 0; i < c.config.MaxRetries; i++ {
		if i > 0 {
			if err := sleepWithContext(ctx, time.Duration(i)*c.config.RetryDelay); err != nil {
				return nil, fmt.Errorf("%w: %v", models.ErrFeedUnavailable, err)
			}
		}

		body, retry, err := c.fetchOnce(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", models.ErrFeedUnavailable, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/geo+json, application/json, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("server error: %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read body: %w", err)
	}
	return body, false, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
