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

import "errors"

// Domain validation errors
var (
	// ErrInvalidOpinion indicates an Opinion failed validation.
	ErrInvalidOpinion = errors.New("invalid opinion")

	// ErrInvalidUploadDocument indicates an UploadDocument could not be built.
	ErrInvalidUploadDocument = errors.New("invalid upload document")

	// ErrMissingID indicates the provider-assigned opinion id is empty.
	ErrMissingID = errors.New("opinion id cannot be empty")

	// ErrUnsafeID indicates an id contains characters not allowed in index keys.
	ErrUnsafeID = errors.New("id contains characters not allowed in index keys")

	// ErrInvalidChunkPosition indicates chunk_index is outside [0, total_chunks).
	ErrInvalidChunkPosition = errors.New("chunk index out of range")

	// ErrEmptyVector indicates a chunk has no content vector.
	ErrEmptyVector = errors.New("content vector cannot be empty")
)
