// Package ingestion drives opinions from a source into a search index.
//
// A Pipeline run moves through fixed stages:
//
//	fetch -> chunk -> embed -> upload (or skip_upload on dry runs) -> report
//
// Fetch and embed failures are fatal and produce no report. Chunking
// failures are recorded per opinion and upload failures per batch; both are
// reported as counters. Every stage transition and per-item outcome is
// emitted as an Event to the configured EventSink.
//
// Processing is strictly sequential. Cancellation is observed between
// stages, opinions and batches and ends the run with ErrInterrupted.
package ingestion
