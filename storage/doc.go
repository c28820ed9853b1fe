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


// Package storage provides the storage abstraction layer for caseingest.
//
// It defines the interfaces that decouple the ingestion pipeline from the
// search index service and from the local run journal, so the Azure-backed
// index, the embedded BadgerDB index and test doubles can be swapped freely.
//
// # Architecture
//
//   - SearchIndex: schema management and batched document upserts
//   - RunRepository: persistence of completed run reports
//
// Implementations live in subpackages:
//
//	idx, err := azure.NewIndex(endpoint, apiKey, "legal-cases", 1536)
//	journal, err := badger.NewRunRepository("/path/to/db")
//
// Use in tests with in-memory storage:
//
//	idx, err := badger.NewMemoryIndex("legal-cases", 8)
//
// # Serialization
//
// Records persisted by the BadgerDB backend are encoded with the MUS
// binary format through MarshalUploadDocument and MarshalRunReport.
//
// # Context Support
//
// All blocking methods accept context.Context for cancellation.
package storage
