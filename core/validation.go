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


package core

import (
	"fmt"
	"time"
)

// ValidateOpinion validates an Opinion according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - ID must be usable inside an index key (letters, digits, '_', '-', '=')
//
// NOT validated:
//   - FullText (empty text yields zero chunks, not an error)
//   - DateFiled (absent dates are replaced by SentinelDateFiled on upload)
func ValidateOpinion(opinion *Opinion) error {
	if opinion == nil {
		return fmt.Errorf("%w: opinion is nil", ErrInvalidOpinion)
	}

	if opinion.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidOpinion, ErrMissingID)
	}

	if !IsKeySafe(opinion.ID) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidOpinion, ErrUnsafeID, opinion.ID)
	}

	return nil
}

// IsKeySafe reports whether s only contains characters accepted in index document keys.
func IsKeySafe(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '=':
		default:
			return false
		}
	}
	return true
}

// NewUploadDocument projects an EmbeddedChunk onto its wire form.
// The case id is carried as text and a missing filing date becomes SentinelDateFiled.
func NewUploadDocument(chunk *EmbeddedChunk) (UploadDocument, error) {
	if chunk == nil {
		return UploadDocument{}, fmt.Errorf("%w: chunk is nil", ErrInvalidUploadDocument)
	}
	if chunk.ChunkID == "" || !IsKeySafe(chunk.ChunkID) {
		return UploadDocument{}, fmt.Errorf("%w: %w: %q", ErrInvalidUploadDocument, ErrUnsafeID, chunk.ChunkID)
	}
	if chunk.ChunkIndex < 0 || chunk.ChunkIndex >= chunk.TotalChunks {
		return UploadDocument{}, fmt.Errorf("%w: %w: %d of %d",
			ErrInvalidUploadDocument, ErrInvalidChunkPosition, chunk.ChunkIndex, chunk.TotalChunks)
	}
	if len(chunk.ContentVector) == 0 {
		return UploadDocument{}, fmt.Errorf("%w: %w", ErrInvalidUploadDocument, ErrEmptyVector)
	}

	dateFiled := SentinelDateFiled
	if !chunk.DateFiled.IsZero() {
		dateFiled = chunk.DateFiled.UTC().Format(time.RFC3339)
	}

	return UploadDocument{
		ID:            chunk.ChunkID,
		CaseID:        chunk.CaseID,
		CaseName:      chunk.CaseName,
		Citation:      chunk.Citation,
		Court:         chunk.Court,
		DateFiled:     dateFiled,
		Jurisdiction:  chunk.Jurisdiction,
		Content:       chunk.Content,
		ContentVector: chunk.ContentVector,
		URL:           chunk.URL,
		ChunkIndex:    chunk.ChunkIndex,
		TotalChunks:   chunk.TotalChunks,
	}, nil
}
