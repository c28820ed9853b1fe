// Package mock provides test double implementations of AI service interfaces.
//
// MockEmbedder implements ai.Embedder for unit tests. It runs without external
// AI services and produces deterministic vectors derived from the text hash.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	embedder := mock.NewMockEmbedder()
//	vectors, err := embedder.EmbedTexts(ctx, []string{"test"})
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("service unavailable")
//	}
//
//	// Check call counts and batch boundaries
//	count := embedder.CallCount()
//	batches := embedder.Batches()
package mock
