package courtlistener

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// HeaderRetryAfter is the retry-after header (seconds or HTTP date).
	HeaderRetryAfter = "Retry-After"

	// defaultRetryAfter is used when a 429 carries no usable Retry-After.
	defaultRetryAfter = 5 * time.Second
)

// RateLimiter combines proactive token bucket throttling with the pauses
// requested by the API.
type RateLimiter struct {
	mu      sync.Mutex
	bucket  *rate.Limiter
	pauseTo time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with the given burst.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(limit, burst),
		now:    time.Now,
	}
}

// Wait blocks until a request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	pauseTo := r.pauseTo
	r.mu.Unlock()

	if wait := pauseTo.Sub(r.now()); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.bucket.Wait(ctx)
}

// Pause records a throttling response and returns how long requests are held.
func (r *RateLimiter) Pause(resp *http.Response) time.Duration {
	wait := parseRetryAfter(resp.Header.Get(HeaderRetryAfter), r.now())
	r.mu.Lock()
	defer r.mu.Unlock()
	if until := r.now().Add(wait); until.After(r.pauseTo) {
		r.pauseTo = until
	}
	return wait
}

func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(now); wait > 0 {
			return wait
		}
		return 0
	}
	return defaultRetryAfter
}
