package core

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// SentinelDateFiled is substituted for opinions without a filing date.
// The search index schema declares date_filed as a required DateTimeOffset.
const SentinelDateFiled = "1900-01-01T00:00:00Z"

// RunID identifies one pipeline invocation.
type RunID string

// RunIDFromContent derives a deterministic RunID from text using BLAKE2b hashing.
// Identical run parameters and start instants produce identical IDs.
func RunIDFromContent(text string) RunID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return RunID(hex.EncodeToString(h.Sum(nil)))
}

// ChunkID builds the index key for a chunk from its opinion id and position.
// The result is unique across a run as long as opinion ids are unique.
func ChunkID(caseID string, chunkIndex int) string {
	return caseID + "_" + strconv.Itoa(chunkIndex)
}

// Opinion is a judicial opinion as returned by the document provider.
// It is immutable once fetched.
type Opinion struct {
	ID           string
	CaseName     string
	Citation     string
	Court        string
	DateFiled    time.Time // Zero when the provider has no filing date
	Jurisdiction string
	URL          string
	FullText     string
}

// HasDateFiled reports whether the provider supplied a filing date.
func (o *Opinion) HasDateFiled() bool {
	return !o.DateFiled.IsZero()
}

// Chunk is a bounded, overlapping slice of one opinion's text.
type Chunk struct {
	ChunkID      string
	CaseID       string
	CaseName     string
	Citation     string
	Court        string
	DateFiled    time.Time
	Jurisdiction string
	URL          string
	Content      string
	ChunkIndex   int // 0-based position within the source opinion
	TotalChunks  int // Number of chunks produced from the same opinion
}

// EmbeddedChunk is a Chunk with its content vector attached.
type EmbeddedChunk struct {
	Chunk
	ContentVector []float32
}

// UploadDocument is the wire-ready projection of an EmbeddedChunk.
// Construct with NewUploadDocument so fields are normalized and validated.
type UploadDocument struct {
	ID            string    `json:"id"`
	CaseID        string    `json:"case_id"`
	CaseName      string    `json:"case_name"`
	Citation      string    `json:"citation"`
	Court         string    `json:"court"`
	DateFiled     string    `json:"date_filed"`
	Jurisdiction  string    `json:"jurisdiction"`
	Content       string    `json:"content"`
	ContentVector []float32 `json:"content_vector"`
	URL           string    `json:"url"`
	ChunkIndex    int       `json:"chunk_index"`
	TotalChunks   int       `json:"total_chunks"`
}

// ProcessingFailure records an opinion that could not be chunked.
type ProcessingFailure struct {
	CaseID string
	Reason string
}

// RunReport aggregates the outcome of one pipeline invocation.
// It is built once at the end of a run and not modified afterwards.
type RunReport struct {
	RunID               RunID
	Court               string
	FiledAfter          time.Time
	StartedAt           time.Time
	DryRun              bool
	TotalCases          int
	TotalChunks         int
	FailedProcessing    int
	SkippedEmpty        int // Opinions that produced no chunks
	EmbeddingDimensions int
	Uploaded            int
	FailedUpload        int
	SuccessRate         float64
	DurationSeconds     float64
	Failures            []ProcessingFailure
}
