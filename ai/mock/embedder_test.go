package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedTexts(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	b, err := m.EmbedTexts(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a[0], DefaultDimensions)
	assert.NotEqual(t, a[0], a[1])
	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, [][]string{{"alpha", "beta"}, {"alpha", "beta"}}, m.Batches())
}

func TestMockEmbedder_InjectedBehavior(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("boom")
	}

	_, err := m.EmbedTexts(context.Background(), []string{"x"})
	require.Error(t, err)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	_, err = m.EmbedTexts(context.Background(), []string{"x"})
	require.NoError(t, err)
}

func TestMockEmbedder_Dimensions(t *testing.T) {
	m := NewMockEmbedder()
	m.Dimensions = 3

	v, err := m.EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 3)
}
