// Package fetch provides the resilient HTTP client used for all upstream
// calls: bounded timeouts, exponential-backoff retries for transient
// failures, and a per-source circuit breaker.
package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Source names the upstream for error reporting and breaker naming.
	Source string

	// Timeout is the per-request timeout. Default: 10 seconds.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient
	// failures. Default: 3.
	MaxRetries uint64

	// InitialInterval is the initial retry backoff. Default: 200ms.
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff. Default: 5 seconds.
	MaxInterval time.Duration

	// Headers are added to every request.
	Headers map[string]string

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client wraps net/http with retry and circuit-breaker protection.
// Per-source minimum intervals are the coordinator's concern, not enforced
// here.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a new resilient client for one upstream source.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Source,
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	})

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		breaker: breaker,
		config:  cfg,
	}
}

// Get issues a GET request and returns the response body. Transient failures
// (network errors, timeouts, 5xx) are retried with exponential backoff up to
// MaxRetries; 4xx responses fail immediately. The returned error is always a
// *Error (or wraps ErrCircuitOpen).
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var body []byte
	operation := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
			if reqErr != nil {
				return nil, reqErr
			}
			for k, v := range c.config.Headers {
				req.Header.Set(k, v)
			}
			r, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// 5xx counts as a breaker failure.
			if r.StatusCode >= 500 {
				r.Body.Close()
				return nil, &Error{Source: c.config.Source, Kind: KindHTTPStatus, StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(&Error{Source: c.config.Source, Kind: KindNetwork, Err: ErrCircuitOpen})
			}
			return c.classify(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			// Contract error: do not retry.
			return backoff.Permanent(&Error{Source: c.config.Source, Kind: KindHTTPStatus, StatusCode: resp.StatusCode})
		}

		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return c.classify(readErr)
		}
		body = b
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if fe := AsError(err); fe != nil {
			return nil, fe
		}
		return nil, c.classifyFinal(err)
	}
	return body, nil
}

// classify wraps a transport error as a retryable fetch Error.
func (c *Client) classify(err error) error {
	if fe := AsError(err); fe != nil {
		return fe
	}
	kind := KindNetwork
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = KindTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = KindTimeout
	}
	return &Error{Source: c.config.Source, Kind: kind, Err: err}
}

func (c *Client) classifyFinal(err error) *Error {
	if fe := AsError(err); fe != nil {
		return fe
	}
	classified := c.classify(err)
	if fe := AsError(classified); fe != nil {
		return fe
	}
	return &Error{Source: c.config.Source, Kind: KindNetwork, Err: err}
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}
