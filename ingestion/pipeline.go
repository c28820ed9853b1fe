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
	"strings"
	"time"

	"github.com/poiesic/caseingest/ai"
	"github.com/poiesic/caseingest/chunking"
	"github.com/poiesic/caseingest/core"
	"github.com/poiesic/caseingest/storage"
)

// OpinionSource lists opinions for a court.
type OpinionSource interface {
	FetchOpinions(ctx context.Context, court string, filedAfter time.Time, maxCases int) ([]core.Opinion, error)
}

// DocumentChunker splits one opinion into chunks.
type DocumentChunker interface {
	Chunk(opinion *core.Opinion) ([]core.Chunk, error)
}

// RunRequest parameterizes one pipeline run.
type RunRequest struct {
	Court      string
	FiledAfter time.Time // Zero means no lower bound
	MaxCases   int
	DryRun     bool
}

// Validate checks the request.
func (r RunRequest) Validate() error {
	if strings.TrimSpace(r.Court) == "" {
		return fmt.Errorf("%w: court is required", ErrInvalidRequest)
	}
	if r.MaxCases <= 0 {
		return fmt.Errorf("%w: max cases must be greater than 0, got %d", ErrInvalidRequest, r.MaxCases)
	}
	return nil
}

// Pipeline sequences fetch, chunk, embed and upload for one court at a time.
type Pipeline struct {
	source          OpinionSource
	chunker         DocumentChunker
	embedder        ai.Embedder
	index           storage.SearchIndex
	runs            storage.RunRepository
	batcherConfig   BatcherConfig
	uploadBatchSize int
	sink            EventSink
	clock           func() time.Time
	logger          *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithEventSink sets the receiver of run events.
// Default discards events.
func WithEventSink(sink EventSink) Option {
	return func(p *Pipeline) error {
		if sink == nil {
			sink = discardSink
		}
		p.sink = sink
		return nil
	}
}

// WithRunRepository records every produced report in repo.
func WithRunRepository(repo storage.RunRepository) Option {
	return func(p *Pipeline) error {
		p.runs = repo
		return nil
	}
}

// WithBatcherConfig sets embedding batch size and retry policy.
func WithBatcherConfig(config BatcherConfig) Option {
	return func(p *Pipeline) error {
		if err := config.Validate(); err != nil {
			return err
		}
		p.batcherConfig = config
		return nil
	}
}

// WithUploadBatchSize sets the number of documents per index request.
// Default is DefaultUploadBatchSize.
func WithUploadBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size <= 0 {
			return fmt.Errorf("upload %w, got %d", ErrInvalidBatchSize, size)
		}
		p.uploadBatchSize = size
		return nil
	}
}

// WithClock sets the time source used for run timing.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		p.clock = clock
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	source OpinionSource,
	chunker DocumentChunker,
	embedder ai.Embedder,
	index storage.SearchIndex,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	p := &Pipeline{
		source:          source,
		chunker:         chunker,
		embedder:        embedder,
		index:           index,
		batcherConfig:   DefaultBatcherConfig(),
		uploadBatchSize: DefaultUploadBatchSize,
		sink:            discardSink,
		clock:           time.Now,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pipeline")

	return p, nil
}

// SetupIndex creates the index schema. With forceRecreate the index is
// deleted first; an index that does not exist yet is not an error.
func (p *Pipeline) SetupIndex(ctx context.Context, forceRecreate bool) error {
	if forceRecreate {
		err := p.index.DeleteIndex(ctx)
		switch {
		case errors.Is(err, storage.ErrIndexNotFound):
			p.logger.Info("index absent, nothing to delete", "index", p.index.Name())
		case err != nil:
			return fmt.Errorf("deleting index %s: %w", p.index.Name(), err)
		default:
			p.logger.Info("index deleted", "index", p.index.Name())
		}
	}
	if err := p.index.CreateIndex(ctx); err != nil {
		return fmt.Errorf("creating index %s: %w", p.index.Name(), err)
	}
	p.logger.Info("index ready", "index", p.index.Name())
	return nil
}

// run holds the state of a single Run invocation.
type run struct {
	p      *Pipeline
	id     core.RunID
	report core.RunReport
}

func (r *run) emit(e Event) {
	e.Time = r.p.clock()
	e.RunID = r.id
	r.p.sink.Emit(e)
}

// sinkFor returns a sink stamping events with this run's id and clock.
func (r *run) sinkFor() EventSink {
	return EventSinkFunc(r.emit)
}

// Run executes one ingestion run. It returns a report unless fetching or
// embedding fails, the tokenizer is unavailable or ctx is cancelled. The
// error is then a *FetchError, an *EmbeddingError, wraps
// chunking.ErrTokenizerUnavailable or wraps ErrInterrupted.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*core.RunReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	started := p.clock()
	r := &run{
		p:  p,
		id: newRunID(req, started),
	}
	r.report = core.RunReport{
		RunID:      r.id,
		Court:      req.Court,
		FiledAfter: req.FiledAfter,
		StartedAt:  started.UTC(),
		DryRun:     req.DryRun,
	}
	r.emit(Event{Kind: EventRunStarted})

	report, err := r.execute(ctx, req)
	if err != nil {
		r.emit(Event{Kind: EventRunFailed, Err: err})
		return nil, err
	}
	return report, nil
}

func (r *run) execute(ctx context.Context, req RunRequest) (*core.RunReport, error) {
	p := r.p

	// FETCH
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}
	r.emit(Event{Stage: StageFetch, Kind: EventStageStarted})
	opinions, err := p.source.FetchOpinions(ctx, req.Court, req.FiledAfter, req.MaxCases)
	if err != nil {
		if ctx.Err() != nil {
			return nil, interrupted(ctx)
		}
		return nil, &FetchError{Court: req.Court, Err: err}
	}
	if len(opinions) == 0 {
		return nil, &FetchError{Court: req.Court, Err: ErrNoOpinions}
	}
	r.report.TotalCases = len(opinions)
	r.emit(Event{Stage: StageFetch, Kind: EventStageCompleted, Count: len(opinions)})

	// CHUNK
	chunks, err := r.chunk(ctx, opinions)
	if err != nil {
		return nil, err
	}

	// EMBED
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}
	r.emit(Event{Stage: StageEmbed, Kind: EventStageStarted, Items: len(chunks)})
	batcher, err := NewEmbeddingBatcher(p.embedder, p.batcherConfig, r.sinkFor(), p.logger)
	if err != nil {
		return nil, err
	}
	embedded, err := batcher.Embed(ctx, chunks)
	if err != nil {
		if ctx.Err() != nil {
			return nil, interrupted(ctx)
		}
		return nil, err
	}
	if len(embedded) > 0 {
		r.report.EmbeddingDimensions = len(embedded[0].ContentVector)
	}
	r.emit(Event{Stage: StageEmbed, Kind: EventStageCompleted, Count: len(embedded)})

	// UPLOAD | SKIP_UPLOAD
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}
	if req.DryRun {
		r.emit(Event{Stage: StageSkipUpload, Kind: EventStageStarted})
		r.emit(Event{Stage: StageSkipUpload, Kind: EventStageCompleted})
	} else if err := r.upload(ctx, embedded); err != nil {
		return nil, err
	}

	// REPORT
	r.emit(Event{Stage: StageReport, Kind: EventStageStarted})
	report := r.report
	report.DurationSeconds = p.clock().Sub(report.StartedAt).Seconds()
	if p.runs != nil {
		if err := p.runs.SaveRun(ctx, &report); err != nil {
			p.logger.Error("failed to record run", "run_id", report.RunID, "err", err)
		}
	}
	r.emit(Event{Stage: StageReport, Kind: EventRunFinished, Report: &report})
	return &report, nil
}

// chunk splits every opinion, recording per-opinion failures.
func (r *run) chunk(ctx context.Context, opinions []core.Opinion) ([]core.Chunk, error) {
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}
	r.emit(Event{Stage: StageChunk, Kind: EventStageStarted, Items: len(opinions)})

	var all []core.Chunk
	for i := range opinions {
		if err := r.checkpoint(ctx); err != nil {
			return nil, err
		}
		opinion := &opinions[i]
		event := Event{Stage: StageChunk, CaseID: opinion.ID, CaseName: opinion.CaseName, Item: i + 1, Items: len(opinions)}

		chunks, err := r.p.chunker.Chunk(opinion)
		switch {
		case errors.Is(err, chunking.ErrTokenizerUnavailable):
			return nil, fmt.Errorf("chunking opinion %s: %w", opinion.ID, err)
		case err != nil:
			r.report.FailedProcessing++
			r.report.Failures = append(r.report.Failures, core.ProcessingFailure{CaseID: opinion.ID, Reason: err.Error()})
			event.Kind = EventDocumentFailed
			event.Err = err
		case len(chunks) == 0:
			r.report.SkippedEmpty++
			event.Kind = EventDocumentEmpty
		default:
			all = append(all, chunks...)
			event.Kind = EventDocumentChunked
			event.Count = len(chunks)
		}
		r.emit(event)
	}

	r.report.TotalChunks = len(all)
	r.emit(Event{Stage: StageChunk, Kind: EventStageCompleted, Count: len(all), Failed: r.report.FailedProcessing})
	return all, nil
}

// upload converts embedded chunks to documents and submits them.
func (r *run) upload(ctx context.Context, embedded []core.EmbeddedChunk) error {
	p := r.p
	r.emit(Event{Stage: StageUpload, Kind: EventStageStarted, Items: len(embedded)})

	docs := make([]core.UploadDocument, 0, len(embedded))
	rejected := 0
	for i := range embedded {
		doc, err := core.NewUploadDocument(&embedded[i])
		if err != nil {
			// Never submitted, but still counted against the upload.
			rejected++
			p.logger.Warn("invalid upload document", "chunk_id", embedded[i].ChunkID, "err", err)
			continue
		}
		docs = append(docs, doc)
	}

	uploader, err := NewUploader(p.index, p.uploadBatchSize, r.sinkFor(), p.logger)
	if err != nil {
		return err
	}
	stats, err := uploader.Upload(ctx, docs)
	if err != nil {
		return interrupted(ctx)
	}
	if stats.Errors != nil {
		p.logger.Warn("upload completed with failures", "failed", stats.Failed, "err", stats.Errors)
	}

	r.report.Uploaded = stats.Uploaded
	r.report.FailedUpload = stats.Failed + rejected
	r.report.SuccessRate = SuccessRate(r.report.Uploaded, r.report.FailedUpload)
	r.emit(Event{Stage: StageUpload, Kind: EventStageCompleted, Count: r.report.Uploaded, Failed: r.report.FailedUpload})
	return nil
}

// checkpoint reports an interrupt observed between steps.
func (r *run) checkpoint(ctx context.Context) error {
	if ctx.Err() != nil {
		return interrupted(ctx)
	}
	return nil
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
}

// newRunID derives a run identifier from the request and its start time.
func newRunID(req RunRequest, started time.Time) core.RunID {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%t|%s", req.Court, req.MaxCases, req.DryRun, started.UTC().Format(time.RFC3339Nano))
	if !req.FiledAfter.IsZero() {
		b.WriteString("|" + req.FiledAfter.Format(time.DateOnly))
	}
	return core.RunIDFromContent(b.String())
}
