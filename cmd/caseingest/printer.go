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


package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/poiesic/caseingest/core"
	"github.com/poiesic/caseingest/ingestion"
)

const rule = "============================================================"

// progressPrinter renders pipeline events as console progress.
type progressPrinter struct {
	writer io.Writer
	mu     sync.Mutex
}

var _ ingestion.EventSink = (*progressPrinter)(nil)

func newProgressPrinter(writer io.Writer) *progressPrinter {
	return &progressPrinter{writer: writer}
}

// Emit prints e.
func (p *progressPrinter) Emit(e ingestion.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind {
	case ingestion.EventStageStarted:
		p.stageStarted(e)
	case ingestion.EventStageCompleted:
		p.stageCompleted(e)
	case ingestion.EventDocumentChunked:
		fmt.Fprintf(p.writer, "      [%3d/%d] %-50s -> %2d chunks\n", e.Item, e.Items, truncate(e.CaseName, 50), e.Count)
	case ingestion.EventDocumentEmpty:
		fmt.Fprintf(p.writer, "      [%3d/%d] %-50s -> no text\n", e.Item, e.Items, truncate(e.CaseName, 50))
	case ingestion.EventDocumentFailed:
		fmt.Fprintf(p.writer, "      [%3d/%d] error processing opinion %s: %v\n", e.Item, e.Items, e.CaseID, e.Err)
	case ingestion.EventBatchEmbedded:
		fmt.Fprintf(p.writer, "\r      Batch %d/%d", e.Item, e.Items)
		if e.Item == e.Items {
			fmt.Fprintln(p.writer)
		}
	case ingestion.EventBatchUploaded:
		fmt.Fprintf(p.writer, "      Batch %d/%d: %d uploaded, %d failed\n", e.Item, e.Items, e.Count, e.Failed)
	case ingestion.EventBatchFailed:
		fmt.Fprintf(p.writer, "      Batch %d/%d failed: %v\n", e.Item, e.Items, e.Err)
	case ingestion.EventRunFailed:
		fmt.Fprintf(p.writer, "      error: %v\n\n", e.Err)
	case ingestion.EventRunFinished:
		printReport(p.writer, e.Report)
	}
}

func (p *progressPrinter) stageStarted(e ingestion.Event) {
	switch e.Stage {
	case ingestion.StageFetch:
		fmt.Fprintln(p.writer, "[1/4] Fetching cases from CourtListener...")
	case ingestion.StageChunk:
		fmt.Fprintf(p.writer, "[2/4] Chunking %d opinions...\n", e.Items)
	case ingestion.StageEmbed:
		fmt.Fprintf(p.writer, "[3/4] Generating embeddings for %d chunks...\n", e.Items)
	case ingestion.StageUpload:
		fmt.Fprintf(p.writer, "[4/4] Uploading %d documents...\n", e.Items)
	case ingestion.StageSkipUpload:
		fmt.Fprintln(p.writer, "[4/4] Skipping upload (dry run)")
	}
}

func (p *progressPrinter) stageCompleted(e ingestion.Event) {
	switch e.Stage {
	case ingestion.StageFetch:
		fmt.Fprintf(p.writer, "      Fetched %d opinions\n\n", e.Count)
	case ingestion.StageChunk:
		fmt.Fprintf(p.writer, "      Created %d chunks\n", e.Count)
		if e.Failed > 0 {
			fmt.Fprintf(p.writer, "      Failed to process %d opinions\n", e.Failed)
		}
		fmt.Fprintln(p.writer)
	case ingestion.StageEmbed:
		fmt.Fprintf(p.writer, "      Generated %d embeddings\n\n", e.Count)
	case ingestion.StageUpload:
		fmt.Fprintf(p.writer, "      Upload complete: %d uploaded, %d failed\n\n", e.Count, e.Failed)
	case ingestion.StageSkipUpload:
		fmt.Fprintln(p.writer)
	}
}

// printReport writes the run summary.
func printReport(w io.Writer, report *core.RunReport) {
	if report == nil {
		return
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Ingestion Summary")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Run:                 %s\n", report.RunID)
	fmt.Fprintf(w, "Court:               %s\n", report.Court)
	fmt.Fprintf(w, "Total Cases:         %d\n", report.TotalCases)
	fmt.Fprintf(w, "Total Chunks:        %d\n", report.TotalChunks)
	fmt.Fprintf(w, "Failed Processing:   %d\n", report.FailedProcessing)
	if report.SkippedEmpty > 0 {
		fmt.Fprintf(w, "Skipped Empty:       %d\n", report.SkippedEmpty)
	}
	if !report.DryRun {
		fmt.Fprintf(w, "Uploaded:            %d\n", report.Uploaded)
		fmt.Fprintf(w, "Failed Upload:       %d\n", report.FailedUpload)
		fmt.Fprintf(w, "Success Rate:        %.1f%%\n", report.SuccessRate*100)
	}
	fmt.Fprintf(w, "Duration:            %.1f seconds\n", report.DurationSeconds)
	fmt.Fprintln(w, rule)
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  - %s: %s\n", f.CaseID, f.Reason)
	}
	fmt.Fprintln(w)
}

// printRunHeader writes the banner shown before a run starts.
func printRunHeader(w io.Writer, req ingestion.RunRequest) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Legal Case Ingestion Pipeline")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Court:        %s\n", req.Court)
	if !req.FiledAfter.IsZero() {
		fmt.Fprintf(w, "Filed After:  %s\n", req.FiledAfter.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "Max Cases:    %d\n", req.MaxCases)
	fmt.Fprintf(w, "Dry Run:      %t\n", req.DryRun)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// printRuns writes one line per recorded run.
func printRuns(w io.Writer, runs []*core.RunReport) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	fmt.Fprintf(w, "%-16s  %-20s  %-8s  %6s  %7s  %8s  %7s\n", "RUN", "STARTED", "COURT", "CASES", "CHUNKS", "UPLOADED", "FAILED")
	for _, r := range runs {
		court := r.Court
		if r.DryRun {
			court += "*"
		}
		fmt.Fprintf(w, "%-16s  %-20s  %-8s  %6d  %7d  %8d  %7d\n",
			r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), court,
			r.TotalCases, r.TotalChunks, r.Uploaded, r.FailedUpload+r.FailedProcessing)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
