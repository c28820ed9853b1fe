package chunking

import (
	"fmt"
	"strings"

	"github.com/poiesic/caseingest/core"
)

const (
	// DefaultWindowSize is the default number of tokens per chunk.
	DefaultWindowSize = 512

	// DefaultOverlap is the default number of tokens shared by consecutive chunks.
	DefaultOverlap = 50
)

// Chunker splits opinions into overlapping fixed-size token windows.
// A Chunker holds no per-call state and is deterministic for a given configuration.
type Chunker struct {
	windowSize int
	overlap    int
	tokenizer  Tokenizer
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithWindowSize sets the target number of tokens per chunk.
func WithWindowSize(size int) Option {
	return func(c *Chunker) error {
		if size <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidWindow, size)
		}
		c.windowSize = size
		return nil
	}
}

// WithOverlap sets the number of tokens shared between consecutive windows.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) error {
		if overlap < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidOverlap, overlap)
		}
		c.overlap = overlap
		return nil
	}
}

// WithTokenizer sets the tokenizer that defines token units.
// Default is a TiktokenTokenizer with DefaultEncoding.
func WithTokenizer(tokenizer Tokenizer) Option {
	return func(c *Chunker) error {
		if tokenizer == nil {
			return ErrTokenizerRequired
		}
		c.tokenizer = tokenizer
		return nil
	}
}

// New creates a Chunker. The overlap must be smaller than the window size.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		windowSize: DefaultWindowSize,
		overlap:    DefaultOverlap,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.overlap >= c.windowSize {
		return nil, fmt.Errorf("%w: overlap %d, window %d", ErrInvalidOverlap, c.overlap, c.windowSize)
	}

	if c.tokenizer == nil {
		c.tokenizer = NewTiktokenTokenizer(DefaultEncoding)
	}

	return c, nil
}

// WindowSize returns the configured window size in tokens.
func (c *Chunker) WindowSize() int {
	return c.windowSize
}

// Overlap returns the configured overlap in tokens.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Preload prepares the tokenizer, loading its encoding if it has one.
// Errors wrap ErrTokenizerUnavailable.
func (c *Chunker) Preload() error {
	loader, ok := c.tokenizer.(interface{ Load() error })
	if !ok {
		return nil
	}
	if err := loader.Load(); err != nil {
		return fmt.Errorf("%w: %w", ErrTokenizerUnavailable, err)
	}
	return nil
}

// Chunk splits an opinion into ordered chunks.
// Empty or whitespace-only text yields no chunks and no error.
// A malformed opinion is reported as a *ChunkingError; a tokenizer failure
// wraps ErrTokenizerUnavailable instead.
func (c *Chunker) Chunk(opinion *core.Opinion) ([]core.Chunk, error) {
	if err := core.ValidateOpinion(opinion); err != nil {
		id := ""
		if opinion != nil {
			id = opinion.ID
		}
		return nil, &ChunkingError{OpinionID: id, Err: err}
	}

	if strings.TrimSpace(opinion.FullText) == "" {
		return nil, nil
	}

	tokens, err := c.tokenizer.Tokenize(opinion.FullText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenizerUnavailable, err)
	}

	windows := Windows(tokens.Len(), c.windowSize, c.overlap)
	chunks := make([]core.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = core.Chunk{
			ChunkID:      core.ChunkID(opinion.ID, i),
			CaseID:       opinion.ID,
			CaseName:     opinion.CaseName,
			Citation:     opinion.Citation,
			Court:        opinion.Court,
			DateFiled:    opinion.DateFiled,
			Jurisdiction: opinion.Jurisdiction,
			URL:          opinion.URL,
			Content:      tokens.Text(w.Start, w.End),
			ChunkIndex:   i,
			TotalChunks:  len(windows),
		}
	}

	return chunks, nil
}

// Window is a half-open token range [Start, End).
type Window struct {
	Start int
	End   int
}

// Windows computes the token ranges covering n tokens.
// It returns nil for n <= 0. Callers must ensure 0 <= overlap < size.
func Windows(n, size, overlap int) []Window {
	if n <= 0 {
		return nil
	}

	stride := size - overlap
	count := 1
	if n > size {
		count = (n - overlap + stride - 1) / stride
	}

	windows := make([]Window, 0, count)
	for start := 0; ; start += stride {
		end := min(start+size, n)
		windows = append(windows, Window{Start: start, End: end})
		if end == n {
			break
		}
	}
	return windows
}
