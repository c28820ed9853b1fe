package chunking

import (
	"fmt"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used by OpenAI embedding models.
const DefaultEncoding = "cl100k_base"

// Tokenizer turns text into an ordered sequence of tokens.
// Implementations must be deterministic.
type Tokenizer interface {
	// Tokenize splits text into tokens.
	Tokenize(text string) (Tokens, error)
}

// Tokens is a tokenized text that can render any contiguous token range.
type Tokens interface {
	// Len returns the number of tokens.
	Len() int
	// Text returns the text covered by tokens [start, end).
	Text(start, end int) string
}

// WordTokenizer treats each maximal run of non-space characters as one token.
type WordTokenizer struct{}

var _ Tokenizer = WordTokenizer{}

type wordSpan struct {
	begin int
	end   int
}

type wordTokens struct {
	text  string
	spans []wordSpan
}

// Tokenize records the byte span of every word in text.
func (WordTokenizer) Tokenize(text string) (Tokens, error) {
	var spans []wordSpan
	begin := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if begin >= 0 {
				spans = append(spans, wordSpan{begin: begin, end: i})
				begin = -1
			}
			continue
		}
		if begin < 0 {
			begin = i
		}
	}
	if begin >= 0 {
		spans = append(spans, wordSpan{begin: begin, end: len(text)})
	}
	return &wordTokens{text: text, spans: spans}, nil
}

func (w *wordTokens) Len() int {
	return len(w.spans)
}

// Text slices the original text so inner whitespace survives.
func (w *wordTokens) Text(start, end int) string {
	if start >= end {
		return ""
	}
	return w.text[w.spans[start].begin:w.spans[end-1].end]
}

// TiktokenTokenizer tokenizes with a tiktoken BPE encoding.
// The encoding is loaded on first use and shared afterwards.
type TiktokenTokenizer struct {
	encoding string
	once     sync.Once
	tke      *tiktoken.Tiktoken
	err      error
}

var _ Tokenizer = (*TiktokenTokenizer)(nil)

// NewTiktokenTokenizer creates a tokenizer for the named encoding.
// An empty name selects DefaultEncoding.
func NewTiktokenTokenizer(encoding string) *TiktokenTokenizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TiktokenTokenizer{encoding: encoding}
}

type bpeTokens struct {
	text    string
	offsets []int // offsets[i] is the byte offset where token i starts; len(ids)+1 entries
}

// Load loads the encoding. It is safe to call more than once.
func (t *TiktokenTokenizer) Load() error {
	t.once.Do(func() {
		t.tke, t.err = tiktoken.GetEncoding(t.encoding)
	})
	if t.err != nil {
		return fmt.Errorf("loading tiktoken encoding %q: %w", t.encoding, t.err)
	}
	return nil
}

// Tokenize encodes text, treating special-token markers as ordinary text.
func (t *TiktokenTokenizer) Tokenize(text string) (Tokens, error) {
	if err := t.Load(); err != nil {
		return nil, err
	}
	ids := t.tke.Encode(text, nil, nil)
	offsets := make([]int, len(ids)+1)
	for i, id := range ids {
		offsets[i+1] = min(offsets[i]+len(t.tke.Decode([]int{id})), len(text))
	}
	return &bpeTokens{text: text, offsets: offsets}, nil
}

func (b *bpeTokens) Len() int {
	return len(b.offsets) - 1
}

// Text returns the bytes of tokens [start, end), widened to whole characters
// when a byte-level token splits a multi-byte rune.
func (b *bpeTokens) Text(start, end int) string {
	return runeAlignedSlice(b.text, b.offsets[start], b.offsets[end])
}

func runeAlignedSlice(text string, begin, end int) string {
	for begin > 0 && begin < len(text) && !utf8.RuneStart(text[begin]) {
		begin--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	if begin >= end {
		return ""
	}
	return text[begin:end]
}
