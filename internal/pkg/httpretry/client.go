// Package httpretry provides an HTTP client with automatic retry logic,
// exponential backoff, and jitter for resilient external API calls.
package httpretry

import (
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/ignite/outreach-tracker/internal/pkg/logger"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient wraps an HTTPDoer with retry logic using exponential backoff
// and jitter. Retries happen on 429/5xx responses and transport errors,
// never on client errors or context cancellation.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryClient creates a RetryClient wrapping the given HTTPDoer.
// If client is nil, a default http.Client with a 30s timeout is used.
// maxRetries is the number of retries after the initial attempt (default 3).
func NewRetryClient(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   10 * time.Second,
	}
}

// Do executes the request, retrying transient failures. Requests with a
// body are not retried since the body cannot be replayed safely here; the
// geo lookups this client serves are all GETs.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if err := req.Context().Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		if attempt > 0 {
			delay := rc.backoff(attempt)
			logger.Debug("retrying request", "attempt", attempt, "url", req.URL.Path, "delay", delay)
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if !retryable(resp.StatusCode) || attempt == rc.maxRetries {
			return resp, nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

func (rc *RetryClient) backoff(attempt int) time.Duration {
	d := time.Duration(float64(rc.baseDelay) * math.Pow(2, float64(attempt-1)))
	if d > rc.maxDelay {
		d = rc.maxDelay
	}
	// up to 25% jitter
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
