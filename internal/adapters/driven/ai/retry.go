// Package ai holds the retry policy shared by the embedding and LLM
// adapters: rate limits and server errors are retried with exponential
// backoff plus jitter, other client errors surface immediately.
package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/custodia-labs/hivemind/internal/logger"
)

const (
	// MaxAttempts is the total attempt budget per call.
	MaxAttempts = 3

	// baseBackoff is the first retry delay; it doubles per attempt.
	baseBackoff = time.Second
)

// HTTPError is a non-2xx response from an AI API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether an error may succeed on retry: HTTP 429
// and 5xx qualify, other HTTP statuses do not. Transport errors
// (connection reset, timeout) are treated as retryable.
func IsRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests ||
			httpErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn up to MaxAttempts times. Non-retryable errors propagate
// after exactly one attempt.
func Do(ctx context.Context, name string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == MaxAttempts {
			break
		}

		delay := backoff(attempt)
		logger.Debug("%s: attempt %d failed (%v), retrying in %s", name, attempt, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", name, MaxAttempts, err)
}

// backoff doubles per attempt with up to 50% random jitter.
func backoff(attempt int) time.Duration {
	delay := baseBackoff << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(delay / 2)))
	return delay + jitter
}
