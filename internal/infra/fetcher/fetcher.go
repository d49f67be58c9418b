// Package fetcher retrieves the changelog document over HTTP. Responses are
// capped at 1 MiB; non-2xx statuses and oversize bodies surface as
// *entity.FetchError so the retry policy can classify them.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"relwatch/internal/domain/entity"
)

const (
	// DefaultTimeout bounds a single fetch, redirects included.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize caps the accepted response body.
	DefaultMaxBodySize = 1 << 20 // 1 MiB
)

// Config holds the fetcher configuration.
type Config struct {
	// URL is the changelog document location.
	URL string

	// Timeout bounds each request. Zero selects DefaultTimeout.
	Timeout time.Duration

	// MaxBodySize caps the response body in bytes. Zero selects
	// DefaultMaxBodySize.
	MaxBodySize int64
}

// Client fetches the changelog document.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a fetch client for the configured URL.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Fetch performs a single GET of the changelog and returns the body as
// UTF-8 text. Network failures, non-2xx statuses and oversize responses all
// return a *entity.FetchError; timeouts surface like any other network
// failure and share its retry class.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return "", &entity.FetchError{URL: c.cfg.URL, Message: "create request", Err: err}
	}
	req.Header.Set("Accept", "text/plain, text/markdown, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &entity.FetchError{URL: c.cfg.URL, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little of the body for the error message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", &entity.FetchError{
			URL:        c.cfg.URL,
			StatusCode: resp.StatusCode,
			Message:    string(snippet),
		}
	}

	// Read one byte past the cap to distinguish "exactly at the limit"
	// from "too large".
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodySize+1))
	if err != nil {
		return "", &entity.FetchError{URL: c.cfg.URL, Message: "read body", Err: err}
	}
	if int64(len(body)) > c.cfg.MaxBodySize {
		return "", &entity.FetchError{
			URL:     c.cfg.URL,
			Message: fmt.Sprintf("response exceeds %d bytes", c.cfg.MaxBodySize),
		}
	}

	return string(body), nil
}
