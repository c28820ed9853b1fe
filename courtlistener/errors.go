package courtlistener

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTokenRequired indicates the client was created without an API token.
	ErrTokenRequired = errors.New("courtlistener API token is required")

	// ErrUnauthorized indicates the API rejected the token.
	ErrUnauthorized = errors.New("courtlistener rejected the API token")
)

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("courtlistener: %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("courtlistener: %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// RateLimitError is returned when the API keeps throttling after all retries.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("courtlistener rate limit exceeded, retry after %s", e.RetryAfter)
}
