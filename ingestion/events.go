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
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/caseingest/core"
)

// Stage names a pipeline state.
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageChunk      Stage = "chunk"
	StageEmbed      Stage = "embed"
	StageUpload     Stage = "upload"
	StageSkipUpload Stage = "skip_upload"
	StageReport     Stage = "report"
)

// EventKind classifies an Event.
type EventKind string

const (
	EventRunStarted      EventKind = "run_started"
	EventStageStarted    EventKind = "stage_started"
	EventStageCompleted  EventKind = "stage_completed"
	EventDocumentChunked EventKind = "document_chunked"
	EventDocumentEmpty   EventKind = "document_empty"
	EventDocumentFailed  EventKind = "document_failed"
	EventBatchEmbedded   EventKind = "batch_embedded"
	EventBatchUploaded   EventKind = "batch_uploaded"
	EventBatchFailed     EventKind = "batch_failed"
	EventRunFinished     EventKind = "run_finished"
	EventRunFailed       EventKind = "run_failed"
)

// Event is one entry of a run's progress stream.
// Fields that do not apply to a kind are left zero.
type Event struct {
	Time     time.Time
	RunID    core.RunID
	Stage    Stage
	Kind     EventKind
	CaseID   string
	CaseName string
	Item     int // 1-based position of the opinion or batch
	Items    int // Number of opinions or batches in the stage
	Count    int // Items produced or accepted
	Failed   int // Items rejected
	Report   *core.RunReport
	Err      error
}

// EventSink receives pipeline events in emission order.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Emit calls f(e).
func (f EventSinkFunc) Emit(e Event) {
	f(e)
}

// discardSink drops every event.
var discardSink = EventSinkFunc(func(Event) {})

// EventRecorder keeps every event in memory.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

var _ EventSink = (*EventRecorder)(nil)

// Emit records e.
func (r *EventRecorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Stages returns the stages entered, in order.
func (r *EventRecorder) Stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stages []Stage
	for _, e := range r.events {
		if e.Kind == EventStageStarted {
			stages = append(stages, e.Stage)
		}
	}
	return stages
}

// Count returns how many events of kind were recorded.
func (r *EventRecorder) Count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

var _ EventSink = (*LogSink)(nil)

// NewLogSink creates a LogSink. A nil logger means slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "pipeline")}
}

// Emit logs e. Failures are logged at warn level, per-item progress at debug.
func (s *LogSink) Emit(e Event) {
	attrs := []any{"run_id", e.RunID, "stage", e.Stage, "event", e.Kind}
	if e.CaseID != "" {
		attrs = append(attrs, "case_id", e.CaseID)
	}
	if e.Items > 0 {
		attrs = append(attrs, "item", e.Item, "items", e.Items)
	}
	if e.Count > 0 {
		attrs = append(attrs, "count", e.Count)
	}
	if e.Failed > 0 {
		attrs = append(attrs, "failed", e.Failed)
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
	}

	switch e.Kind {
	case EventDocumentFailed, EventBatchFailed, EventRunFailed:
		s.logger.Warn("pipeline event", attrs...)
	case EventDocumentChunked, EventDocumentEmpty, EventBatchEmbedded, EventBatchUploaded:
		s.logger.Debug("pipeline event", attrs...)
	default:
		s.logger.Info("pipeline event", attrs...)
	}
}

// MultiSink fans events out to several sinks.
type MultiSink []EventSink

// Emit forwards e to every sink.
func (m MultiSink) Emit(e Event) {
	for _, sink := range m {
		sink.Emit(e)
	}
}
