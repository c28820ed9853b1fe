package chunking

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWindow is returned when the window size is not positive.
	ErrInvalidWindow = errors.New("window size must be greater than 0")

	// ErrInvalidOverlap is returned when overlap is negative or not smaller than the window.
	ErrInvalidOverlap = errors.New("overlap must be in [0, window size)")

	// ErrTokenizerRequired is returned when a nil tokenizer is supplied.
	ErrTokenizerRequired = errors.New("tokenizer required")

	// ErrTokenizerUnavailable is returned when the tokenizer cannot tokenize any text,
	// e.g. its encoding failed to load. It is not an opinion-level failure.
	ErrTokenizerUnavailable = errors.New("tokenizer unavailable")
)

// ChunkingError reports an opinion that could not be chunked.
type ChunkingError struct {
	OpinionID string
	Err       error
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunking opinion %q: %v", e.OpinionID, e.Err)
}

func (e *ChunkingError) Unwrap() error {
	return e.Err
}
