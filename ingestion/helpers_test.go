package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/caseingest/chunking"
	"github.com/poiesic/caseingest/core"
	"github.com/poiesic/caseingest/storage"
	"github.com/stretchr/testify/require"
)

// fakeSource returns canned opinions.
type fakeSource struct {
	opinions []core.Opinion
	err      error
	calls    int
	onFetch  func()
}

func (s *fakeSource) FetchOpinions(ctx context.Context, court string, filedAfter time.Time, maxCases int) ([]core.Opinion, error) {
	s.calls++
	if s.onFetch != nil {
		s.onFetch()
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.opinions) > maxCases {
		return s.opinions[:maxCases], nil
	}
	return s.opinions, nil
}

// fakeIndex records uploaded batches.
type fakeIndex struct {
	mu          sync.Mutex
	batches     [][]core.UploadDocument
	docs        map[string]core.UploadDocument
	failBatches map[int]error   // 1-based batch number -> error
	rejectKeys  map[string]bool // keys reported as failed
	created     int
	deleted     int
	deleteErr   error
	createErr   error
}

var _ storage.SearchIndex = (*fakeIndex)(nil)

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		docs:        make(map[string]core.UploadDocument),
		failBatches: make(map[int]error),
		rejectKeys:  make(map[string]bool),
	}
}

func (x *fakeIndex) Name() string { return "fake" }
func (x *fakeIndex) Close() error { return nil }

func (x *fakeIndex) CreateIndex(ctx context.Context) error {
	x.created++
	return x.createErr
}

func (x *fakeIndex) DeleteIndex(ctx context.Context) error {
	x.deleted++
	return x.deleteErr
}

func (x *fakeIndex) UploadDocuments(ctx context.Context, docs []core.UploadDocument) (storage.IndexingResult, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.batches = append(x.batches, append([]core.UploadDocument(nil), docs...))
	if err, ok := x.failBatches[len(x.batches)]; ok {
		return storage.IndexingResult{}, err
	}
	var result storage.IndexingResult
	for _, doc := range docs {
		if x.rejectKeys[doc.ID] {
			result.Failed = append(result.Failed, storage.FailedDocument{Key: doc.ID, Message: "rejected"})
			continue
		}
		x.docs[doc.ID] = doc
		result.Succeeded++
	}
	return result, nil
}

func (x *fakeIndex) uploadCalls() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.batches)
}

// stepClock advances by one second on every reading.
type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func wordChunker(t *testing.T, window, overlap int) *chunking.Chunker {
	t.Helper()
	c, err := chunking.New(
		chunking.WithTokenizer(chunking.WordTokenizer{}),
		chunking.WithWindowSize(window),
		chunking.WithOverlap(overlap),
	)
	require.NoError(t, err)
	return c
}

// words returns n distinct words separated by spaces.
func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func testOpinions(count, wordsEach int) []core.Opinion {
	opinions := make([]core.Opinion, count)
	for i := range opinions {
		id := fmt.Sprintf("%d", 1000+i)
		opinions[i] = core.Opinion{
			ID:           id,
			CaseName:     "Case " + id,
			Citation:     id + " F.3d 1",
			Court:        "ca9",
			DateFiled:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Jurisdiction: "Federal Appellate",
			URL:          "https://www.courtlistener.com/opinion/" + id + "/",
			FullText:     words("w"+id+"-", wordsEach),
		}
	}
	return opinions
}

func testChunks(n int) []core.Chunk {
	chunks := make([]core.Chunk, n)
	for i := range chunks {
		chunks[i] = core.Chunk{
			ChunkID:     core.ChunkID("7", i),
			CaseID:      "7",
			Content:     fmt.Sprintf("chunk %d", i),
			ChunkIndex:  i,
			TotalChunks: n,
		}
	}
	return chunks
}

func testDocuments(n int) []core.UploadDocument {
	docs := make([]core.UploadDocument, n)
	for i := range docs {
		docs[i] = core.UploadDocument{ID: core.ChunkID("7", i), CaseID: "7", ContentVector: []float32{1}, ChunkIndex: i, TotalChunks: n}
	}
	return docs
}

var errBoom = errors.New("boom")
