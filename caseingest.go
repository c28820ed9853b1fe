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


// Package caseingest wires the CourtListener source, the chunker, the
// embedding service and the search index into a ready-to-run pipeline.
//
//	cfg, _ := config.Load("caseingest.toml")
//	ing, err := caseingest.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ing.Close()
//
//	report, err := ing.Run(ctx, ingestion.RunRequest{Court: "ca9", MaxCases: 100})
package caseingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/caseingest/ai"
	"github.com/poiesic/caseingest/ai/openai"
	"github.com/poiesic/caseingest/chunking"
	"github.com/poiesic/caseingest/config"
	"github.com/poiesic/caseingest/core"
	"github.com/poiesic/caseingest/courtlistener"
	"github.com/poiesic/caseingest/ingestion"
	"github.com/poiesic/caseingest/storage"
	"github.com/poiesic/caseingest/storage/azure"
	"github.com/poiesic/caseingest/storage/badger"
)

// ErrJournalDisabled is returned by Runs when no storage path is configured.
var ErrJournalDisabled = errors.New("run journal disabled: storage.path is empty")

// Ingester owns every collaborator of a pipeline.
type Ingester struct {
	backend  *badger.Backend
	index    storage.SearchIndex
	runs     storage.RunRepository
	pipeline *ingestion.Pipeline
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	sink     ingestion.EventSink
	source   ingestion.OpinionSource
	embedder ai.Embedder
	index    storage.SearchIndex
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventSink receives pipeline events in addition to the log.
func WithEventSink(sink ingestion.EventSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithOpinionSource replaces the CourtListener client.
func WithOpinionSource(source ingestion.OpinionSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithEmbedder replaces the configured embedding service.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *options) {
		o.embedder = embedder
	}
}

// WithSearchIndex replaces the configured index backend.
func WithSearchIndex(index storage.SearchIndex) Option {
	return func(o *options) {
		o.index = index
	}
}

// Open validates cfg and builds an Ingester.
func Open(cfg config.Config, opts ...Option) (*Ingester, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	logger := o.logger

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ing := &Ingester{logger: logger}
	ok := false
	defer func() {
		if !ok {
			ing.Close()
		}
	}()

	if cfg.Storage.Path != "" {
		backend, err := badger.OpenBackend(cfg.Storage.Path, false, logger)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		ing.backend = backend
		ing.runs = badger.NewRunRepository(backend)
	}

	chunker, err := newChunker(cfg.Chunking)
	if err != nil {
		return nil, err
	}

	source := o.source
	if source == nil {
		source, err = courtlistener.NewClient(cfg.CourtListener.Token,
			courtlistener.WithBaseURL(cfg.CourtListener.BaseURL),
			courtlistener.WithPageSize(cfg.CourtListener.PageSize),
			courtlistener.WithRateLimit(cfg.CourtListener.RequestsPerSecond, cfg.CourtListener.Burst),
			courtlistener.WithTimeout(cfg.CourtListener.Timeout.Duration),
			courtlistener.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
	}

	embedder := o.embedder
	if embedder == nil {
		aiConfig := ai.NewConfig(
			ai.WithAPIType(ai.APIType(cfg.Embedding.APIType)),
			ai.WithHost(cfg.Embedding.Host),
			ai.WithAPIKey(cfg.Embedding.APIKey),
			ai.WithModel(cfg.Embedding.Model),
			ai.WithAPIVersion(cfg.Embedding.APIVersion),
			ai.WithDimensions(cfg.Embedding.Dimensions),
		)
		embedder, err = openai.NewEmbedder(aiConfig)
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
	}

	index := o.index
	if index == nil {
		index, err = newIndex(cfg, ing.backend, logger)
		if err != nil {
			return nil, err
		}
	}
	ing.index = index

	sink := ingestion.EventSink(ingestion.NewLogSink(logger))
	if o.sink != nil {
		sink = ingestion.MultiSink{sink, o.sink}
	}
	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithEventSink(sink),
		ingestion.WithUploadBatchSize(cfg.Index.UploadBatchSize),
		ingestion.WithBatcherConfig(ingestion.BatcherConfig{
			BatchSize:   cfg.Embedding.BatchSize,
			MaxAttempts: cfg.Embedding.MaxAttempts,
			RetryDelay:  cfg.Embedding.RetryDelay.Duration,
		}),
	}
	if ing.runs != nil {
		pipelineOpts = append(pipelineOpts, ingestion.WithRunRepository(ing.runs))
	}
	ing.pipeline, err = ingestion.NewPipeline(source, chunker, embedder, ing.index, pipelineOpts...)
	if err != nil {
		return nil, err
	}

	ok = true
	return ing, nil
}

func newChunker(cfg config.ChunkingConfig) (*chunking.Chunker, error) {
	var tokenizer chunking.Tokenizer
	switch cfg.Tokenizer {
	case config.TokenizerWords:
		tokenizer = chunking.WordTokenizer{}
	default:
		tokenizer = chunking.NewTiktokenTokenizer(cfg.Encoding)
	}
	chunker, err := chunking.New(
		chunking.WithWindowSize(cfg.WindowSize),
		chunking.WithOverlap(cfg.Overlap),
		chunking.WithTokenizer(tokenizer),
	)
	if err != nil {
		return nil, err
	}
	if err := chunker.Preload(); err != nil {
		return nil, err
	}
	return chunker, nil
}

func newIndex(cfg config.Config, backend *badger.Backend, logger *slog.Logger) (storage.SearchIndex, error) {
	if cfg.Index.Backend == config.BackendLocal {
		if backend == nil {
			return nil, errors.New("local index requires storage.path")
		}
		index, err := badger.NewIndex(backend, cfg.Index.Name, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, err
		}
		return index, nil
	}
	index, err := azure.NewIndex(cfg.Index.Endpoint, cfg.Index.APIKey, cfg.Index.Name, cfg.Embedding.Dimensions,
		azure.WithAPIVersion(cfg.Index.APIVersion),
		azure.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating search index client: %w", err)
	}
	return index, nil
}

// Run executes one ingestion run.
func (i *Ingester) Run(ctx context.Context, req ingestion.RunRequest) (*core.RunReport, error) {
	return i.pipeline.Run(ctx, req)
}

// SetupIndex creates the index, deleting it first when forceRecreate is set.
func (i *Ingester) SetupIndex(ctx context.Context, forceRecreate bool) error {
	return i.pipeline.SetupIndex(ctx, forceRecreate)
}

// IndexName returns the name of the configured index.
func (i *Ingester) IndexName() string {
	return i.index.Name()
}

// Runs lists recorded reports, most recent first.
func (i *Ingester) Runs(ctx context.Context, limit int) ([]*core.RunReport, error) {
	if i.runs == nil {
		return nil, ErrJournalDisabled
	}
	return i.runs.ListRuns(ctx, limit)
}

// Close releases the index client and the storage backend.
func (i *Ingester) Close() error {
	var errs []error
	if i.index != nil {
		if err := i.index.Close(); err != nil {
			i.logger.Error("error closing index", "err", err)
			errs = append(errs, err)
		}
	}
	if i.backend != nil && !i.backend.IsClosed() {
		if err := i.backend.Close(); err != nil {
			i.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
