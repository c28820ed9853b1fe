package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/caseingest/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBatcherConfig(batchSize int) BatcherConfig {
	return BatcherConfig{BatchSize: batchSize, MaxAttempts: 2, RetryDelay: time.Millisecond}
}

func TestNewEmbeddingBatcher_Validation(t *testing.T) {
	_, err := NewEmbeddingBatcher(nil, DefaultBatcherConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewEmbeddingBatcher(mock.NewMockEmbedder(), BatcherConfig{BatchSize: 0, MaxAttempts: 1}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	_, err = NewEmbeddingBatcher(mock.NewMockEmbedder(), BatcherConfig{BatchSize: 1, MaxAttempts: 0}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestEmbed_PreservesOrderAcrossBatches(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	recorder := &EventRecorder{}
	batcher, err := NewEmbeddingBatcher(embedder, fastBatcherConfig(4), recorder, nil)
	require.NoError(t, err)

	chunks := testChunks(10)
	embedded, err := batcher.Embed(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, embedded, 10)

	for i, ec := range embedded {
		assert.Equal(t, chunks[i], ec.Chunk)
		assert.Equal(t, mock.GenerateDeterministicVector(chunks[i].Content, mock.DefaultDimensions), ec.ContentVector)
	}

	batches := embedder.Batches()
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 4)
	assert.Len(t, batches[1], 4)
	assert.Len(t, batches[2], 2)
	assert.Equal(t, 3, recorder.Count(EventBatchEmbedded))
}

func TestEmbed_Empty(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	batcher, err := NewEmbeddingBatcher(embedder, fastBatcherConfig(4), nil, nil)
	require.NoError(t, err)

	embedded, err := batcher.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, embedded)
	assert.Zero(t, embedder.CallCount())
}

func TestEmbed_BatchFailureIsFatal(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	calls := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls > 1 {
			return nil, errBoom
		}
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 2}
		}
		return out, nil
	}
	batcher, err := NewEmbeddingBatcher(embedder, fastBatcherConfig(4), nil, nil)
	require.NoError(t, err)

	embedded, err := batcher.Embed(context.Background(), testChunks(10))
	require.Error(t, err)
	assert.Nil(t, embedded, "no partial output")

	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 2, embErr.Batch)
	assert.Equal(t, 4, embErr.Start)
	assert.Equal(t, 8, embErr.End)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls, "first batch plus two attempts of the second")
}

func TestEmbed_RetriesTransientFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	failed := false
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if !failed {
			failed = true
			return nil, errors.New("rate limited")
		}
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 2, 3}
		}
		return out, nil
	}
	batcher, err := NewEmbeddingBatcher(embedder, fastBatcherConfig(16), nil, nil)
	require.NoError(t, err)

	embedded, err := batcher.Embed(context.Background(), testChunks(3))
	require.NoError(t, err)
	assert.Len(t, embedded, 3)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestEmbed_CountMismatch(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	batcher, err := NewEmbeddingBatcher(embedder, fastBatcherConfig(16), nil, nil)
	require.NoError(t, err)

	_, err = batcher.Embed(context.Background(), testChunks(3))
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestEmbed_InconsistentDimensions(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	call := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		call++
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = make([]float32, 2+call)
		}
		return out, nil
	}
	batcher, err := NewEmbeddingBatcher(embedder, fastBatcherConfig(2), nil, nil)
	require.NoError(t, err)

	_, err = batcher.Embed(context.Background(), testChunks(4))
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 2, embErr.Batch)
	assert.Contains(t, err.Error(), "dimension")
}

func TestEmbed_CancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		cancel()
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1}
		}
		return out, nil
	}
	batcher, err := NewEmbeddingBatcher(embedder, fastBatcherConfig(2), nil, nil)
	require.NoError(t, err)

	_, err = batcher.Embed(ctx, testChunks(6))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, embedder.CallCount(), "the in-flight batch completes, the next is not started")
}
