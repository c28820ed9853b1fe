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
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/caseingest/ai"
	"github.com/poiesic/caseingest/core"
)

const (
	// DefaultEmbeddingBatchSize is the number of chunks per embedding request.
	DefaultEmbeddingBatchSize = 16

	// DefaultMaxAttempts is the number of tries per embedding batch.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the delay before the first retry of a batch.
	DefaultRetryDelay = time.Second
)

// BatcherConfig controls embedding batch sizing and retries.
type BatcherConfig struct {
	BatchSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultBatcherConfig returns the default embedding batch configuration.
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		BatchSize:   DefaultEmbeddingBatchSize,
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
	}
}

// Validate checks the configuration.
func (c BatcherConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("embedding %w, got %d", ErrInvalidBatchSize, c.BatchSize)
	}
	if c.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative, got %s", c.RetryDelay)
	}
	return nil
}

// EmbeddingBatcher attaches vectors to chunks, one embedder call per batch.
type EmbeddingBatcher struct {
	embedder ai.Embedder
	config   BatcherConfig
	sink     EventSink
	logger   *slog.Logger
}

// NewEmbeddingBatcher creates an EmbeddingBatcher.
// A nil sink discards events and a nil logger means slog.Default().
func NewEmbeddingBatcher(embedder ai.Embedder, config BatcherConfig, sink EventSink, logger *slog.Logger) (*EmbeddingBatcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = discardSink
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingBatcher{
		embedder: embedder,
		config:   config,
		sink:     sink,
		logger:   logger.With("component", "embedding_batcher"),
	}, nil
}

// Embed returns one EmbeddedChunk per chunk, in input order.
// Any batch that still fails after its retries fails the whole call with an
// *EmbeddingError and no partial output. Every vector must have the length
// of the first one.
func (b *EmbeddingBatcher) Embed(ctx context.Context, chunks []core.Chunk) ([]core.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	size := b.config.BatchSize
	batches := (len(chunks) + size - 1) / size
	embedded := make([]core.EmbeddedChunk, 0, len(chunks))
	dimensions := 0

	for batch := 0; batch < batches; batch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := batch * size
		end := min(start+size, len(chunks))
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Content
		}

		var vectors [][]float32
		err := RetryWithBackoff(ctx, b.logger, func() error {
			var embedErr error
			vectors, embedErr = b.embedder.EmbedTexts(ctx, texts)
			if embedErr != nil {
				return embedErr
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(vectors))
			}
			return nil
		}, b.config.MaxAttempts, b.config.RetryDelay)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &EmbeddingError{Batch: batch + 1, Start: start, End: end, Err: err}
		}

		for i, vector := range vectors {
			if dimensions == 0 {
				dimensions = len(vector)
			}
			if len(vector) == 0 || len(vector) != dimensions {
				return nil, &EmbeddingError{
					Batch: batch + 1,
					Start: start,
					End:   end,
					Err:   fmt.Errorf("chunk %s: vector dimension %d, expected %d", chunks[start+i].ChunkID, len(vector), dimensions),
				}
			}
			embedded = append(embedded, core.EmbeddedChunk{Chunk: chunks[start+i], ContentVector: vector})
		}

		b.sink.Emit(Event{Stage: StageEmbed, Kind: EventBatchEmbedded, Item: batch + 1, Items: batches, Count: len(vectors)})
	}

	return embedded, nil
}
