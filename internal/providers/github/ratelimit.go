package github

import (
	"context"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/time/rate"
)

const (
	// authenticatedQuota is the authenticated REST quota (5000/hour).
	authenticatedQuota = 5000

	// proactiveRate throttles to ~1.2 req/sec (4320/hour), keeping
	// headroom under the hourly quota.
	proactiveRate = 1.2

	// minRemaining is the safety threshold: below it the limiter waits
	// for the quota reset before allowing further page fetches.
	minRemaining = 100
)

// RateLimiter combines proactive token-bucket throttling with reactive
// tracking of the quota the API reports on every response.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int
	resetAt   time.Time
	bucket    *rate.Limiter
}

// NewRateLimiter creates a limiter assuming a full quota.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		remaining: authenticatedQuota,
		bucket:    rate.NewLimiter(rate.Limit(proactiveRate), 1),
	}
}

// Wait blocks until it is safe to make the next request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining := r.remaining
	resetAt := r.resetAt
	r.mu.Unlock()

	if remaining < minRemaining && time.Now().Before(resetAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(resetAt)):
		}
	}
	return nil
}

// Update records the quota state go-github parsed from a response.
func (r *RateLimiter) Update(resp *gh.Response) {
	if resp == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = resp.Rate.Remaining
	r.resetAt = resp.Rate.Reset.Time
}

// Remaining returns the tracked remaining quota.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// ResetAt returns the tracked quota reset time.
func (r *RateLimiter) ResetAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetAt
}
