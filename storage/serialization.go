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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/caseingest/core"
)

// encoder appends MUS-encoded fields to a pre-sized buffer.
type encoder struct {
	bs []byte
	n  int
}

func (e *encoder) string(v string)   { e.n += ord.String.Marshal(v, e.bs[e.n:]) }
func (e *encoder) bool(v bool)       { e.n += ord.Bool.Marshal(v, e.bs[e.n:]) }
func (e *encoder) int(v int)         { e.n += varint.Int.Marshal(v, e.bs[e.n:]) }
func (e *encoder) float64(v float64) { e.n += raw.Float64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) time(v time.Time) {
	var micros int64
	if !v.IsZero() {
		micros = v.UnixMicro()
	}
	e.n += varint.Int64.Marshal(micros, e.bs[e.n:])
}
func (e *encoder) vector(v []float32) {
	e.int(len(v))
	for _, f := range v {
		e.n += raw.Float32.Marshal(f, e.bs[e.n:])
	}
}

// decoder reads MUS-encoded fields, keeping the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) string() (v string) {
	if d.err == nil {
		var n int
		v, n, d.err = ord.String.Unmarshal(d.bs[d.n:])
		d.n += n
	}
	return
}

func (d *decoder) bool() (v bool) {
	if d.err == nil {
		var n int
		v, n, d.err = ord.Bool.Unmarshal(d.bs[d.n:])
		d.n += n
	}
	return
}

func (d *decoder) int() (v int) {
	if d.err == nil {
		var n int
		v, n, d.err = varint.Int.Unmarshal(d.bs[d.n:])
		d.n += n
	}
	return
}

func (d *decoder) float64() (v float64) {
	if d.err == nil {
		var n int
		v, n, d.err = raw.Float64.Unmarshal(d.bs[d.n:])
		d.n += n
	}
	return
}

func (d *decoder) time() time.Time {
	if d.err != nil {
		return time.Time{}
	}
	micros, n, err := varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	if err != nil || micros == 0 {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}

func (d *decoder) vector() []float32 {
	length := d.int()
	if d.err != nil {
		return nil
	}
	if length < 0 || length*raw.Float32.Size(0) > len(d.bs)-d.n {
		d.err = ErrTruncatedData
		return nil
	}
	v := make([]float32, length)
	for i := range v {
		var n int
		v[i], n, d.err = raw.Float32.Unmarshal(d.bs[d.n:])
		d.n += n
		if d.err != nil {
			return nil
		}
	}
	return v
}

func (d *decoder) finish(kind string) error {
	if d.err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, kind, d.err)
	}
	return nil
}

func sizeOfTime(v time.Time) int {
	if v.IsZero() {
		return varint.Int64.Size(0)
	}
	return varint.Int64.Size(v.UnixMicro())
}

func sizeOfVector(v []float32) int {
	return varint.Int.Size(len(v)) + len(v)*raw.Float32.Size(0)
}

func sizeOfUploadDocument(doc *core.UploadDocument) int {
	return ord.String.Size(doc.ID) +
		ord.String.Size(doc.CaseID) +
		ord.String.Size(doc.CaseName) +
		ord.String.Size(doc.Citation) +
		ord.String.Size(doc.Court) +
		ord.String.Size(doc.DateFiled) +
		ord.String.Size(doc.Jurisdiction) +
		ord.String.Size(doc.Content) +
		sizeOfVector(doc.ContentVector) +
		ord.String.Size(doc.URL) +
		varint.Int.Size(doc.ChunkIndex) +
		varint.Int.Size(doc.TotalChunks)
}

// MarshalUploadDocument serializes an UploadDocument to bytes.
func MarshalUploadDocument(doc *core.UploadDocument) []byte {
	e := &encoder{bs: make([]byte, sizeOfUploadDocument(doc))}
	e.string(doc.ID)
	e.string(doc.CaseID)
	e.string(doc.CaseName)
	e.string(doc.Citation)
	e.string(doc.Court)
	e.string(doc.DateFiled)
	e.string(doc.Jurisdiction)
	e.string(doc.Content)
	e.vector(doc.ContentVector)
	e.string(doc.URL)
	e.int(doc.ChunkIndex)
	e.int(doc.TotalChunks)
	return e.bs[:e.n]
}

// UnmarshalUploadDocument deserializes an UploadDocument from bytes.
func UnmarshalUploadDocument(data []byte) (*core.UploadDocument, error) {
	d := &decoder{bs: data}
	doc := &core.UploadDocument{
		ID:            d.string(),
		CaseID:        d.string(),
		CaseName:      d.string(),
		Citation:      d.string(),
		Court:         d.string(),
		DateFiled:     d.string(),
		Jurisdiction:  d.string(),
		Content:       d.string(),
		ContentVector: d.vector(),
		URL:           d.string(),
		ChunkIndex:    d.int(),
		TotalChunks:   d.int(),
	}
	if err := d.finish("upload document"); err != nil {
		return nil, err
	}
	return doc, nil
}

func sizeOfRunReport(r *core.RunReport) int {
	size := ord.String.Size(string(r.RunID)) +
		ord.String.Size(r.Court) +
		sizeOfTime(r.FiledAfter) +
		sizeOfTime(r.StartedAt) +
		ord.Bool.Size(r.DryRun) +
		varint.Int.Size(r.TotalCases) +
		varint.Int.Size(r.TotalChunks) +
		varint.Int.Size(r.FailedProcessing) +
		varint.Int.Size(r.SkippedEmpty) +
		varint.Int.Size(r.EmbeddingDimensions) +
		varint.Int.Size(r.Uploaded) +
		varint.Int.Size(r.FailedUpload) +
		raw.Float64.Size(r.SuccessRate) +
		raw.Float64.Size(r.DurationSeconds) +
		varint.Int.Size(len(r.Failures))
	for _, f := range r.Failures {
		size += ord.String.Size(f.CaseID) + ord.String.Size(f.Reason)
	}
	return size
}

// MarshalRunReport serializes a RunReport to bytes.
func MarshalRunReport(r *core.RunReport) []byte {
	e := &encoder{bs: make([]byte, sizeOfRunReport(r))}
	e.string(string(r.RunID))
	e.string(r.Court)
	e.time(r.FiledAfter)
	e.time(r.StartedAt)
	e.bool(r.DryRun)
	e.int(r.TotalCases)
	e.int(r.TotalChunks)
	e.int(r.FailedProcessing)
	e.int(r.SkippedEmpty)
	e.int(r.EmbeddingDimensions)
	e.int(r.Uploaded)
	e.int(r.FailedUpload)
	e.float64(r.SuccessRate)
	e.float64(r.DurationSeconds)
	e.int(len(r.Failures))
	for _, f := range r.Failures {
		e.string(f.CaseID)
		e.string(f.Reason)
	}
	return e.bs[:e.n]
}

// UnmarshalRunReport deserializes a RunReport from bytes.
func UnmarshalRunReport(data []byte) (*core.RunReport, error) {
	d := &decoder{bs: data}
	r := &core.RunReport{
		RunID:               core.RunID(d.string()),
		Court:               d.string(),
		FiledAfter:          d.time(),
		StartedAt:           d.time(),
		DryRun:              d.bool(),
		TotalCases:          d.int(),
		TotalChunks:         d.int(),
		FailedProcessing:    d.int(),
		SkippedEmpty:        d.int(),
		EmbeddingDimensions: d.int(),
		Uploaded:            d.int(),
		FailedUpload:        d.int(),
		SuccessRate:         d.float64(),
		DurationSeconds:     d.float64(),
	}
	count := d.int()
	if d.err == nil && (count < 0 || count > len(data)) {
		d.err = ErrTruncatedData
	}
	if d.err == nil && count > 0 {
		r.Failures = make([]core.ProcessingFailure, count)
		for i := range r.Failures {
			r.Failures[i] = core.ProcessingFailure{CaseID: d.string(), Reason: d.string()}
		}
	}
	if err := d.finish("run report"); err != nil {
		return nil, err
	}
	return r, nil
}
