// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/caseingest/core"
	"github.com/poiesic/caseingest/storage"
)

// DefaultUploadBatchSize is the number of documents per index request.
const DefaultUploadBatchSize = 100

// UploadStats aggregates the outcome of an upload.
// Uploaded + Failed always equals the number of submitted documents.
type UploadStats struct {
	Uploaded      int
	Failed        int
	Batches       int
	FailedBatches int
	SuccessRate   float64
	Errors        error // Joined batch and document errors, nil when all succeeded
}

// SuccessRate returns uploaded / (uploaded + failed), or 0 when nothing was submitted.
func SuccessRate(uploaded, failed int) float64 {
	total := uploaded + failed
	if total == 0 {
		return 0
	}
	return float64(uploaded) / float64(total)
}

// Uploader submits documents to a search index in sequential batches.
// A failed batch is counted and does not stop later batches.
type Uploader struct {
	index     storage.SearchIndex
	batchSize int
	sink      EventSink
	logger    *slog.Logger
}

// NewUploader creates an Uploader.
// A nil sink discards events and a nil logger means slog.Default().
func NewUploader(index storage.SearchIndex, batchSize int, sink EventSink, logger *slog.Logger) (*Uploader, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("upload %w, got %d", ErrInvalidBatchSize, batchSize)
	}
	if sink == nil {
		sink = discardSink
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		index:     index,
		batchSize: batchSize,
		sink:      sink,
		logger:    logger.With("component", "uploader", "index", index.Name()),
	}, nil
}

// Upload submits docs and returns the aggregated counts.
// The only error returned is the context's, when cancelled between batches;
// index failures are reported through the stats.
func (u *Uploader) Upload(ctx context.Context, docs []core.UploadDocument) (UploadStats, error) {
	var stats UploadStats
	var errs []error

	batches := (len(docs) + u.batchSize - 1) / u.batchSize
	stats.Batches = batches

	for batch := 0; batch < batches; batch++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		start := batch * u.batchSize
		end := min(start+u.batchSize, len(docs))
		size := end - start

		result, err := u.index.UploadDocuments(ctx, docs[start:end])
		if err != nil {
			batchErr := &UploadBatchError{Batch: batch + 1, Size: size, Err: err}
			errs = append(errs, batchErr)
			stats.Failed += size
			stats.FailedBatches++
			u.logger.Warn("batch upload failed", "batch", batch+1, "documents", size, "error", err)
			u.sink.Emit(Event{Stage: StageUpload, Kind: EventBatchFailed, Item: batch + 1, Items: batches, Failed: size, Err: batchErr})
			continue
		}

		// Clamp to the batch so the totals stay consistent with what was submitted.
		succeeded := max(0, min(result.Succeeded, size))
		failed := size - succeeded
		stats.Uploaded += succeeded
		stats.Failed += failed
		for _, doc := range result.Failed {
			errs = append(errs, fmt.Errorf("document %s: %s", doc.Key, doc.Message))
		}
		u.sink.Emit(Event{Stage: StageUpload, Kind: EventBatchUploaded, Item: batch + 1, Items: batches, Count: succeeded, Failed: failed})
	}

	stats.SuccessRate = SuccessRate(stats.Uploaded, stats.Failed)
	stats.Errors = errors.Join(errs...)
	return stats, nil
}
