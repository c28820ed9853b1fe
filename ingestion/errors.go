package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceRequired is returned when an opinion source is not provided.
	ErrSourceRequired = errors.New("opinion source required")

	// ErrChunkerRequired is returned when a chunker is not provided.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIndexRequired is returned when a search index is not provided.
	ErrIndexRequired = errors.New("search index required")

	// ErrNoOpinions is returned when the source yields no opinions.
	ErrNoOpinions = errors.New("no opinions found")

	// ErrInterrupted is returned when a run is cancelled before its report is built.
	ErrInterrupted = errors.New("run interrupted")

	// ErrInvalidRequest is returned for malformed run requests.
	ErrInvalidRequest = errors.New("invalid run request")

	// ErrInvalidBatchSize is returned for non-positive batch sizes.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// FetchError reports a failure to obtain opinions. It is fatal to a run.
type FetchError struct {
	Court string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching opinions for court %q: %v", e.Court, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// EmbeddingError reports a failed embedding batch. It is fatal to a run.
type EmbeddingError struct {
	Batch int // 1-based batch number
	Start int // Index of the first chunk in the batch
	End   int // Index one past the last chunk in the batch
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch %d (chunks %d-%d): %v", e.Batch, e.Start, e.End-1, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// UploadBatchError reports a batch the index rejected as a whole.
// The run continues with the next batch.
type UploadBatchError struct {
	Batch int // 1-based batch number
	Size  int
	Err   error
}

func (e *UploadBatchError) Error() string {
	return fmt.Sprintf("uploading batch %d (%d documents): %v", e.Batch, e.Size, e.Err)
}

func (e *UploadBatchError) Unwrap() error {
	return e.Err
}
