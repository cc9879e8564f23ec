package provider

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/config"
)

// Doer is the HTTP transport seam; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Attempt records one network attempt for the run manifest.
type Attempt struct {
	Number     int           `json:"number"`
	Outcome    string        `json:"outcome"` // "ok" or a FailureClass
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency_ms"`
}

// Fetched is a successful raw response plus its attempt history.
type Fetched struct {
	Body       []byte
	StatusCode int
	Endpoint   string
	FetchedAt  time.Time
	Attempts   []Attempt
}

// Client wraps one provider's HTTP access with a token-bucket rate limiter,
// retry with exponential backoff and jitter, and a circuit breaker. One
// Client exists per provider; clients never share limiter or breaker state,
// so one provider's outage never blocks another's workers.
type Client struct {
	name    string
	baseURL string
	http    Doer
	limiter *TokenBucket
	breaker *Breaker
	cfg     config.ProviderConfig
	logger  *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration) time.Duration
}

// NewClient builds a Client from the provider's config section.
func NewClient(name string, cfg config.ProviderConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Client{
		name:    name,
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: NewTokenBucket(cfg.RatePerMinute, cfg.Burst),
		breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		cfg:     cfg,
		logger:  logger.With("provider", name),
		sleep:   sleepCtx,
		jitter: func(d time.Duration) time.Duration {
			return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
		},
	}
}

// WithTransport replaces the HTTP transport, for tests.
func (c *Client) WithTransport(d Doer) *Client {
	c.http = d
	return c
}

// Breaker exposes the circuit breaker (read-only use in callers and tests).
func (c *Client) Breaker() *Breaker { return c.breaker }

// Name returns the provider name this client serves.
func (c *Client) Name() string { return c.name }

// Fetch performs one logical GET against the provider. Transient failures
// (429, 5xx, timeouts) are retried with backoff up to the configured attempt
// cap; fatal failures (auth) surface immediately. When the breaker is open
// Fetch fails fast with FailureCircuitOpen and no network attempt.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) (*Fetched, error) {
	if !c.breaker.Allow() {
		c.logger.Warn("Circuit open, failing fast", "endpoint", endpoint)
		return nil, &Error{Class: FailureCircuitOpen, Provider: c.name, Endpoint: endpoint}
	}

	var attempts []Attempt
	var lastErr *Error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		// Retries re-consult the breaker: a failure on the previous attempt
		// may have tripped or reopened it.
		if attempt > 1 && !c.breaker.Allow() {
			c.logger.Warn("Circuit opened during retries, failing fast", "endpoint", endpoint)
			return nil, &Error{Class: FailureCircuitOpen, Provider: c.name, Endpoint: endpoint}
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			c.breaker.ReleaseProbe()
			return nil, &Error{Class: FailureRateLimit, Provider: c.name, Endpoint: endpoint, Err: err}
		}

		start := time.Now()
		body, status, err := c.doOnce(ctx, endpoint, params)
		latency := time.Since(start)

		rec := Attempt{Number: attempt, StatusCode: status, Latency: latency}
		if err == nil {
			rec.Outcome = "ok"
			attempts = append(attempts, rec)
			c.breaker.RecordSuccess()
			c.logger.Debug("Fetch succeeded",
				"endpoint", endpoint, "attempt", attempt, "latency", latency)
			return &Fetched{
				Body:       body,
				StatusCode: status,
				Endpoint:   endpoint,
				FetchedAt:  time.Now().UTC(),
				Attempts:   attempts,
			}, nil
		}

		lastErr = classify(err, c.name, endpoint, status)
		rec.Outcome = string(lastErr.Class)
		attempts = append(attempts, rec)

		if lastErr.Class == FailureUpstreamUnavailable {
			c.breaker.RecordFailure()
		} else if status != 0 {
			// Any HTTP response proves the upstream is reachable, so a
			// half-open trial that hit a 429 or auth wall still closes the
			// breaker instead of wedging the trial slot.
			c.breaker.RecordSuccess()
		}
		c.logger.Warn("Fetch attempt failed",
			"endpoint", endpoint, "attempt", attempt,
			"latency", latency, "outcome", rec.Outcome, "status", status)

		if !lastErr.Class.Transient() || attempt == c.cfg.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			return nil, &Error{Class: FailureUpstreamUnavailable, Provider: c.name, Endpoint: endpoint, Err: err}
		}
	}

	return nil, lastErr
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffInitial << (attempt - 1)
	if d > c.cfg.BackoffMax || d <= 0 {
		d = c.cfg.BackoffMax
	}
	return c.jitter(d)
}

// httpError carries the status code through to classify.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.status)
}

func (c *Client) doOnce(ctx context.Context, endpoint string, params url.Values) ([]byte, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the log line, then classify.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, &httpError{status: resp.StatusCode, body: string(snippet)}
	}

	var body []byte
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()

		body, err = io.ReadAll(gzReader)
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("failed to read gzipped body: %w", err)
		}
	} else {
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("failed to read body: %w", err)
		}
	}

	return body, resp.StatusCode, nil
}

func classify(err error, providerName, endpoint string, status int) *Error {
	e := &Error{Provider: providerName, Endpoint: endpoint, StatusCode: status, Err: err}

	var he *httpError
	if errors.As(err, &he) {
		switch {
		case he.status == http.StatusTooManyRequests:
			e.Class = FailureRateLimit
		case he.status == http.StatusUnauthorized || he.status == http.StatusForbidden:
			e.Class = FailureAuth
		case he.status >= 500:
			e.Class = FailureUpstreamUnavailable
		default:
			// Other 4xx means we sent something the contract does not
			// accept; treat like a contract problem, not an outage.
			e.Class = FailureMalformed
		}
		return e
	}

	// Network errors and timeouts.
	e.Class = FailureUpstreamUnavailable
	return e
}
