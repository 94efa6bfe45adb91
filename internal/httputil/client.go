// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the rate-limited HTTP client shared by the
// NCBI-facing stages.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/pm-tools/pkg/types"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

const defaultMaxRetries = 5

// Client wraps http.Client with a token-bucket rate limiter and the
// shared request conventions (User-Agent, 429 backoff). NCBI allows
// roughly 3 requests per second without an API key and 10 with one.
type Client struct {
	HTTP      *http.Client
	Limiter   *rate.Limiter
	UserAgent string
}

// NewClient builds a Client from the E-utilities configuration.
func NewClient(cfg types.EutilsConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	if cfg.APIKey != "" && rps < 10 {
		rps = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		Limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		UserAgent: cfg.UserAgent,
	}
}

// Get issues a rate-limited GET and retries on HTTP 429.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	return c.Do(req)
}

// Do waits for the rate limiter, executes the request, and retries on
// HTTP 429 with exponential backoff: RetryBaseDelay doubled per attempt,
// or the server's Retry-After when it asks for longer. After exhausting
// retries the last 429 response is returned so the caller can inspect it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.HTTP.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		if attempt >= defaultMaxRetries {
			return resp, nil
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		if ra := retryAfter(resp); ra > backoff {
			backoff = ra
		}

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// retryAfter parses a seconds-valued Retry-After header, or 0.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
