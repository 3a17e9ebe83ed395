// Package httpclient provides the retrying HTTP executor shared by every
// unit: exponential backoff with jitter, 5xx retries, and rate-limit-aware
// throttling on 429 responses.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"noctua/internal/platform/errors"
	"noctua/internal/platform/logx"
)

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout is the per-request timeout, independent of retry/backoff time.
	// Default: 20 seconds
	Timeout time.Duration

	// MaxAttempts is the total attempt budget per request.
	// Default: 3
	MaxAttempts int

	// BackoffFactor is the base of the exponential backoff, in seconds.
	// Delay before attempt k+1 is backoffFactor × 2^(k-1) + uniform(0, jitter).
	// Default: 0.6
	BackoffFactor float64

	// Jitter is the upper bound of the uniform random delay component, in seconds.
	// Default: 0.3
	Jitter float64

	// ThrottleOn429 enables Retry-After-aware throttling for 429 responses.
	// Default: true
	ThrottleOn429 bool

	// UserAgent is the User-Agent header value.
	UserAgent string

	// Headers are default headers applied to every request.
	Headers map[string]string

	// ProxyURL routes all requests through an HTTP(S) proxy when set.
	ProxyURL string

	// RateLimit is the maximum requests per second across the whole run.
	// 0 means no pacing.
	RateLimit float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:       20 * time.Second,
		MaxAttempts:   3,
		BackoffFactor: 0.6,
		Jitter:        0.3,
		ThrottleOn429: true,
		UserAgent:     "noctua/1.0",
	}
}

// Request describes a single call. Zero-valued override fields fall back to
// the client configuration.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte

	// Per-call overrides
	Timeout       time.Duration
	MaxAttempts   int
	BackoffFactor float64
	Jitter        float64
}

// Client is the shared retrying request executor. It owns a single
// connection pool; all other state is per-call.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logx.Logger
	config     Config
}

// New creates a new HTTP client with the given configuration.
func New(config Config, logger logx.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 20 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = 0.6
	}
	if config.Jitter < 0 {
		config.Jitter = 0
	}
	if config.UserAgent == "" {
		config.UserAgent = "noctua/1.0"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.ProxyURL != "" {
		if proxy, err := url.Parse(config.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxy)
		} else {
			logger.Warn("invalid proxy URL, ignoring", "proxy", config.ProxyURL)
		}
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		limiter:    limiter,
		logger:     logger.With("component", "httpclient"),
		config:     config,
	}
}

// Do performs the request with retry, backoff, and throttling semantics:
//
//   - transport failures are retried with exponential backoff + jitter and
//     surfaced as a request-failed error once attempts are exhausted;
//   - 5xx responses are retried the same way, but the last attempt returns
//     the response itself, not an error;
//   - 429 responses (with throttling enabled) wait for the Retry-After
//     header when parseable, else the backoff formula, and are retried
//     while budget remains;
//   - every other status is returned immediately; interpretation belongs
//     to the caller.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	attempts := c.config.MaxAttempts
	if req.MaxAttempts > 0 {
		attempts = req.MaxAttempts
	}
	backoff := c.config.BackoffFactor
	if req.BackoffFactor > 0 {
		backoff = req.BackoffFactor
	}
	jitter := c.config.Jitter
	if req.Jitter > 0 {
		jitter = req.Jitter
	}
	timeout := c.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, errors.Wrap(err, "rate limit wait interrupted")
			}
		}

		resp, err := c.sendOnce(ctx, req, timeout)
		if err != nil {
			lastErr = err
			c.logger.Warn("request attempt failed",
				"method", req.Method,
				"url", req.URL,
				"attempt", attempt,
				"error", err.Error(),
			)
			if attempt < attempts {
				delay := c.computeBackoff(attempt, backoff, jitter)
				c.logger.Debug("retrying after transport failure",
					"delay_ms", delay.Milliseconds(),
					"attempt", attempt+1,
					"max_attempts", attempts,
				)
				if err := sleep(ctx, delay); err != nil {
					return nil, errors.Wrap(err, "backoff interrupted")
				}
			}
			continue
		}

		switch {
		case resp.StatusCode >= 500:
			if attempt == attempts {
				// Budget spent: the 5xx response is the result, not an error.
				return resp, nil
			}
			delay := c.computeBackoff(attempt, backoff, jitter)
			c.logger.Warn("server error, retrying",
				"url", req.URL,
				"status", resp.StatusCode,
				"delay_ms", delay.Milliseconds(),
			)
			drain(resp)
			if err := sleep(ctx, delay); err != nil {
				return nil, errors.Wrap(err, "backoff interrupted")
			}

		case resp.StatusCode == http.StatusTooManyRequests && c.config.ThrottleOn429:
			if attempt == attempts {
				return resp, nil
			}
			delay := c.retryAfterDelay(resp.Header, attempt, backoff, jitter)
			c.logger.Warn("throttled, backing off",
				"url", req.URL,
				"delay_ms", delay.Milliseconds(),
			)
			drain(resp)
			if err := sleep(ctx, delay); err != nil {
				return nil, errors.Wrap(err, "throttle wait interrupted")
			}

		default:
			c.logger.Debug("response received",
				"method", req.Method,
				"url", req.URL,
				"status", resp.StatusCode,
				"attempt", attempt,
			)
			return resp, nil
		}
	}

	return nil, errors.Errorf("%w after %d attempts: %w", errors.ErrRequestFailed, attempts, lastErr)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url, Headers: headers})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, url string, body []byte, headers map[string]string) (*http.Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: url, Body: body, Headers: headers})
}

// FetchJSON performs a GET expecting a JSON body and returns the raw bytes.
// Non-2xx statuses are surfaced as errors here because JSON API callers
// have no use for error pages.
func (c *Client) FetchJSON(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, Request{
		Method:  http.MethodGet,
		URL:     url,
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp)
		return nil, errors.Errorf("request to %s returned HTTP %d", url, resp.StatusCode)
	}
	return ReadBody(resp)
}

// sendOnce performs a single attempt with its own timeout.
func (c *Client) sendOnce(ctx context.Context, req Request, timeout time.Duration) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, body)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "failed to create request for %s %s", req.Method, req.URL)
	}

	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, err
	}
	c.logger.Debug("attempt completed",
		"method", req.Method,
		"url", req.URL,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// Tie the timeout context to the body lifetime.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// computeBackoff implements backoffFactor × 2^(attempt-1) + uniform(0, jitter).
func (c *Client) computeBackoff(attempt int, backoffFactor, jitter float64) time.Duration {
	base := backoffFactor * math.Pow(2, float64(attempt-1))
	delay := base
	if jitter > 0 {
		delay += rand.Float64() * jitter
	}
	return time.Duration(delay * float64(time.Second))
}

// retryAfterDelay honors a parseable non-negative Retry-After header,
// falling back to the backoff formula.
func (c *Client) retryAfterDelay(headers http.Header, attempt int, backoffFactor, jitter float64) time.Duration {
	if v := headers.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			if secs < 0.1 {
				secs = 0.1
			}
			return time.Duration(secs * float64(time.Second))
		}
	}
	return c.computeBackoff(attempt, backoffFactor, jitter)
}

// String returns a human-readable representation of the client configuration.
func (c *Client) String() string {
	return fmt.Sprintf("Client{timeout=%s, max_attempts=%d, throttle_429=%t}",
		c.config.Timeout, c.config.MaxAttempts, c.config.ThrottleOn429)
}

// ReadBody reads the response body and closes it.
func ReadBody(resp *http.Response) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("response is nil")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	return body, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
