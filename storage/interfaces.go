package storage

import (
	"context"

	"github.com/poiesic/caseingest/core"
)

// FailedDocument is a document the index rejected within an accepted batch.
type FailedDocument struct {
	Key     string
	Message string
}

// IndexingResult reports the per-document outcome of one upload call.
type IndexingResult struct {
	Succeeded int
	Failed    []FailedDocument
}

// SearchIndex is the searchable document index chunks are loaded into.
// Implementations must be safe for sequential reuse across runs.
type SearchIndex interface {
	// Name returns the index name.
	Name() string

	// CreateIndex creates the index schema, or updates it when it already exists.
	CreateIndex(ctx context.Context) error

	// DeleteIndex removes the index and all its documents.
	// Returns ErrIndexNotFound if the index does not exist.
	DeleteIndex(ctx context.Context) error

	// UploadDocuments upserts one batch of documents keyed by UploadDocument.ID.
	// Resubmitting an existing key overwrites the stored document.
	// A non-nil error means no document of the batch can be assumed stored;
	// per-document rejections are reported in the result instead.
	UploadDocuments(ctx context.Context, docs []core.UploadDocument) (IndexingResult, error)

	// Close releases resources held by the index client.
	Close() error
}

// RunRepository persists the reports of completed pipeline runs.
type RunRepository interface {
	// SaveRun stores a report, replacing any report with the same RunID.
	SaveRun(ctx context.Context, report *core.RunReport) error

	// GetRun retrieves a report by RunID.
	// Returns ErrNotFound if no such run was recorded.
	GetRun(ctx context.Context, id core.RunID) (*core.RunReport, error)

	// ListRuns returns up to limit reports, most recently started first.
	// Zero returns every report; a negative limit returns ErrInvalidQuery.
	ListRuns(ctx context.Context, limit int) ([]*core.RunReport, error)
}
