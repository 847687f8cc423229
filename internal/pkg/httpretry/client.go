// Package httpretry fetches remote resources with bounded retries and
// jittered exponential backoff.
package httpretry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/ignite/newsletter/internal/pkg/logger"
)

// ErrStatus is wrapped by Get when the final response is not 2xx.
var ErrStatus = errors.New("unexpected status")

// HTTPDoer executes HTTP requests. *http.Client and *Client satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options tunes a Client. Zero values take the defaults.
type Options struct {
	MaxRetries int           // attempts after the first, default 3
	BaseDelay  time.Duration // default 1s
	MaxDelay   time.Duration // default 30s
	MaxBody    int64         // Get body cap in bytes, default 10 MiB
	UserAgent  string
}

// Client wraps an HTTPDoer with retries on transport errors and on
// 429/5xx responses.
type Client struct {
	doer HTTPDoer
	opts Options
}

// New creates a Client. A nil doer uses an http.Client with a 30s timeout.
func New(doer HTTPDoer, opts Options) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 10 << 20
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "newsletter-rss/1.0"
	}
	return &Client{doer: doer, opts: opts}
}

// Do sends req, retrying transient failures. The last retryable response
// is returned as-is so the caller can inspect it. Context cancellation
// stops immediately.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Join(err, lastErr)
		}
		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset body: %w", err)
				}
				req.Body = body
			}
			delay := c.backoff(attempt)
			logger.Debug("retrying request",
				"attempt", attempt,
				"host", req.URL.Host,
				"delay", delay.String(),
				"error", lastErr,
			)
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return nil, errors.Join(ctx.Err(), lastErr)
			}
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if !retryable(resp.StatusCode) || attempt == c.opts.MaxRetries {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}
	return nil, lastErr
}

// Get fetches url and returns its body, capped at MaxBody. Non-2xx final
// responses wrap ErrStatus.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, req.URL.Host)
	}
	return io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBody))
}

// backoff is full jitter over min(MaxDelay, BaseDelay*2^(attempt-1)),
// floored at a tenth of BaseDelay.
func (c *Client) backoff(attempt int) time.Duration {
	ceil := math.Min(float64(c.opts.MaxDelay), float64(c.opts.BaseDelay)*math.Pow(2, float64(attempt-1)))
	d := time.Duration(rand.Float64() * ceil)
	if floor := c.opts.BaseDelay / 10; d < floor {
		d = floor
	}
	return d
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500 && code != http.StatusNotImplemented
}
