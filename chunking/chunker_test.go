package chunking

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/caseingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// words builds a text of n distinct whitespace-separated tokens w0..w(n-1).
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func newWordChunker(t *testing.T, window, overlap int) *Chunker {
	t.Helper()
	c, err := New(WithWindowSize(window), WithOverlap(overlap), WithTokenizer(WordTokenizer{}))
	require.NoError(t, err)
	return c
}

func testOpinion(id, text string) *core.Opinion {
	return &core.Opinion{
		ID:           id,
		CaseName:     "Doe v. Roe",
		Citation:     "1 F.4th 1",
		Court:        "ca9",
		DateFiled:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Jurisdiction: "Federal Appellate",
		URL:          "https://www.courtlistener.com/opinion/" + id + "/doe-v-roe/",
		FullText:     text,
	}
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c, err := New(WithTokenizer(WordTokenizer{}))
		require.NoError(t, err)
		assert.Equal(t, DefaultWindowSize, c.WindowSize())
		assert.Equal(t, DefaultOverlap, c.Overlap())
	})

	t.Run("default tokenizer is tiktoken", func(t *testing.T) {
		c, err := New()
		require.NoError(t, err)
		assert.IsType(t, &TiktokenTokenizer{}, c.tokenizer)
	})

	t.Run("overlap equal to window rejected", func(t *testing.T) {
		_, err := New(WithWindowSize(100), WithOverlap(100))
		assert.ErrorIs(t, err, ErrInvalidOverlap)
	})

	t.Run("negative overlap rejected", func(t *testing.T) {
		_, err := New(WithOverlap(-1))
		assert.ErrorIs(t, err, ErrInvalidOverlap)
	})

	t.Run("zero window rejected", func(t *testing.T) {
		_, err := New(WithWindowSize(0))
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("nil tokenizer rejected", func(t *testing.T) {
		_, err := New(WithTokenizer(nil))
		assert.ErrorIs(t, err, ErrTokenizerRequired)
	})

	t.Run("zero overlap allowed", func(t *testing.T) {
		c, err := New(WithOverlap(0), WithTokenizer(WordTokenizer{}))
		require.NoError(t, err)
		assert.Equal(t, 0, c.Overlap())
	})
}

func TestChunk_ThousandTokens(t *testing.T) {
	c := newWordChunker(t, 512, 50)

	chunks, err := c.Chunk(testOpinion("1001", words(1000)))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	spans := [][2]int{{0, 512}, {462, 974}, {924, 1000}}
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Equal(t, 3, chunk.TotalChunks)
		assert.Equal(t, fmt.Sprintf("1001_%d", i), chunk.ChunkID)

		fields := strings.Fields(chunk.Content)
		assert.Len(t, fields, spans[i][1]-spans[i][0])
		assert.Equal(t, fmt.Sprintf("w%d", spans[i][0]), fields[0])
		assert.Equal(t, fmt.Sprintf("w%d", spans[i][1]-1), fields[len(fields)-1])
	}
}

func TestChunk_Count(t *testing.T) {
	tests := []struct {
		tokens, window, overlap int
	}{
		{1, 512, 50},
		{511, 512, 50},
		{512, 512, 50},
		{513, 512, 50},
		{974, 512, 50},
		{975, 512, 50},
		{1000, 512, 50},
		{5000, 512, 50},
		{10, 3, 0},
		{11, 4, 3},
		{100, 10, 9},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("L=%d W=%d O=%d", tt.tokens, tt.window, tt.overlap), func(t *testing.T) {
			c := newWordChunker(t, tt.window, tt.overlap)
			chunks, err := c.Chunk(testOpinion("7", words(tt.tokens)))
			require.NoError(t, err)

			want := 1
			if tt.tokens > tt.window {
				stride := tt.window - tt.overlap
				want = (tt.tokens - tt.overlap + stride - 1) / stride
			}
			require.Len(t, chunks, want)

			for i, chunk := range chunks {
				assert.Equal(t, i, chunk.ChunkIndex)
				assert.Equal(t, want, chunk.TotalChunks)
				assert.LessOrEqual(t, len(strings.Fields(chunk.Content)), tt.window)
			}
		})
	}
}

func TestChunk_ReconstructsText(t *testing.T) {
	const window, overlap = 20, 5
	c := newWordChunker(t, window, overlap)
	text := words(137)

	chunks, err := c.Chunk(testOpinion("9", text))
	require.NoError(t, err)

	var rebuilt []string
	for i, chunk := range chunks {
		fields := strings.Fields(chunk.Content)
		if i > 0 {
			fields = fields[overlap:]
		}
		rebuilt = append(rebuilt, fields...)
	}
	assert.Equal(t, strings.Fields(text), rebuilt)
}

func TestChunk_PreservesInnerWhitespace(t *testing.T) {
	c := newWordChunker(t, 10, 2)
	text := "  FACTS\n\nThe appellant   filed\ta motion.  "

	chunks, err := c.Chunk(testOpinion("3", text))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "FACTS\n\nThe appellant   filed\ta motion.", chunks[0].Content)
}

func TestChunk_CarriesMetadata(t *testing.T) {
	c := newWordChunker(t, 4, 1)
	opinion := testOpinion("55", words(10))

	chunks, err := c.Chunk(opinion)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.Equal(t, opinion.ID, chunk.CaseID)
		assert.Equal(t, opinion.CaseName, chunk.CaseName)
		assert.Equal(t, opinion.Citation, chunk.Citation)
		assert.Equal(t, opinion.Court, chunk.Court)
		assert.Equal(t, opinion.DateFiled, chunk.DateFiled)
		assert.Equal(t, opinion.Jurisdiction, chunk.Jurisdiction)
		assert.Equal(t, opinion.URL, chunk.URL)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c := newWordChunker(t, 50, 10)
	opinion := testOpinion("77", words(333))

	first, err := c.Chunk(opinion)
	require.NoError(t, err)
	second, err := c.Chunk(opinion)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunk_EmptyText(t *testing.T) {
	c := newWordChunker(t, 512, 50)

	for _, text := range []string{"", "   ", "\n\t \n"} {
		chunks, err := c.Chunk(testOpinion("5", text))
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunk_MalformedOpinion(t *testing.T) {
	c := newWordChunker(t, 512, 50)

	t.Run("missing id", func(t *testing.T) {
		_, err := c.Chunk(testOpinion("", "some text"))
		var chunkErr *ChunkingError
		require.True(t, errors.As(err, &chunkErr))
		assert.Empty(t, chunkErr.OpinionID)
		assert.ErrorIs(t, err, core.ErrMissingID)
	})

	t.Run("unsafe id", func(t *testing.T) {
		_, err := c.Chunk(testOpinion("a/b", "some text"))
		var chunkErr *ChunkingError
		require.True(t, errors.As(err, &chunkErr))
		assert.Equal(t, "a/b", chunkErr.OpinionID)
		assert.ErrorIs(t, err, core.ErrUnsafeID)
	})

	t.Run("nil opinion", func(t *testing.T) {
		_, err := c.Chunk(nil)
		assert.ErrorIs(t, err, core.ErrInvalidOpinion)
	})
}

type failingTokenizer struct{}

func (failingTokenizer) Tokenize(string) (Tokens, error) {
	return nil, errors.New("encoding unavailable")
}

func TestChunk_TokenizerFailure(t *testing.T) {
	c, err := New(WithTokenizer(failingTokenizer{}))
	require.NoError(t, err)

	_, err = c.Chunk(testOpinion("8", "text"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenizerUnavailable)
	var chunkErr *ChunkingError
	assert.False(t, errors.As(err, &chunkErr), "a broken tokenizer is not an opinion failure")
}

func TestPreload(t *testing.T) {
	t.Run("unknown encoding", func(t *testing.T) {
		c, err := New(WithTokenizer(NewTiktokenTokenizer("no_such_encoding")))
		require.NoError(t, err)

		err = c.Preload()
		assert.ErrorIs(t, err, ErrTokenizerUnavailable)
		assert.Contains(t, err.Error(), "no_such_encoding")

		_, err = c.Chunk(testOpinion("9", "some text"))
		assert.ErrorIs(t, err, ErrTokenizerUnavailable)
	})

	t.Run("tokenizer without encoding", func(t *testing.T) {
		c, err := New(WithTokenizer(WordTokenizer{}))
		require.NoError(t, err)
		assert.NoError(t, c.Preload())
	})
}

func TestWindows(t *testing.T) {
	assert.Nil(t, Windows(0, 512, 50))
	assert.Equal(t, []Window{{0, 10}}, Windows(10, 512, 50))
	assert.Equal(t, []Window{{0, 512}, {462, 974}, {924, 1000}}, Windows(1000, 512, 50))
	assert.Equal(t, []Window{{0, 3}, {3, 6}, {6, 9}, {9, 10}}, Windows(10, 3, 0))
}
