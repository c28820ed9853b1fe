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


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/caseingest/core"
	"github.com/poiesic/caseingest/storage"
)

// Index implements storage.SearchIndex on top of BadgerDB.
// It stores documents without serving queries and is used for local
// runs and tests.
type Index struct {
	backend    *Backend
	name       string
	dimensions int
	logger     *slog.Logger
}

var _ storage.SearchIndex = (*Index)(nil)

// NewIndex creates an Index named name whose vectors have the given dimensions.
// The backend is shared and is not closed by Index.Close.
func NewIndex(backend *Backend, name string, dimensions int) (*Index, error) {
	if name == "" {
		return nil, errors.New("index name is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be greater than 0, got %d", dimensions)
	}
	return &Index{
		backend:    backend,
		name:       name,
		dimensions: dimensions,
		logger:     backend.logger.With("index", name),
	}, nil
}

// Name returns the index name.
func (x *Index) Name() string {
	return x.name
}

// Close is a no-op; the backend is owned by the caller.
func (x *Index) Close() error {
	return nil
}

// CreateIndex records the index schema, replacing the stored dimensions.
func (x *Index) CreateIndex(ctx context.Context) error {
	if x.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return x.backend.WithTx(func(tx *badger.Txn) error {
		buf := make([]byte, varint.Int.Size(x.dimensions))
		varint.Int.Marshal(x.dimensions, buf)
		if err := tx.Set(makeIndexMetaKey(x.name), buf); err != nil {
			return err
		}
		x.logger.Debug("index schema stored", "dimensions", x.dimensions)
		return tx.Commit()
	}, true)
}

// DeleteIndex removes the schema and every document of the index.
func (x *Index) DeleteIndex(ctx context.Context) error {
	if x.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if _, err := x.storedDimensions(); err != nil {
		return err
	}
	if err := x.backend.DropPrefix(makeIndexDocumentPrefix(x.name)); err != nil {
		return fmt.Errorf("failed to drop documents: %w", err)
	}
	return x.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeIndexMetaKey(x.name)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// UploadDocuments upserts docs in a single transaction.
// Documents whose vector length differs from the schema are rejected individually.
func (x *Index) UploadDocuments(ctx context.Context, docs []core.UploadDocument) (storage.IndexingResult, error) {
	var result storage.IndexingResult
	if x.backend.IsClosed() {
		return result, storage.ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	dimensions, err := x.storedDimensions()
	if err != nil {
		return result, err
	}

	err = x.backend.WithTx(func(tx *badger.Txn) error {
		for i := range docs {
			doc := &docs[i]
			if len(doc.ContentVector) != dimensions {
				result.Failed = append(result.Failed, storage.FailedDocument{
					Key: doc.ID,
					Message: fmt.Sprintf("%s: got %d, want %d",
						storage.ErrDimensionMismatch, len(doc.ContentVector), dimensions),
				})
				continue
			}
			if err := tx.Set(makeIndexDocumentKey(x.name, doc.ID), storage.MarshalUploadDocument(doc)); err != nil {
				return err
			}
			result.Succeeded++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return storage.IndexingResult{}, err
	}
	return result, nil
}

// GetDocument retrieves a stored document by its chunk id.
// Returns storage.ErrNotFound if it is absent.
func (x *Index) GetDocument(ctx context.Context, id string) (*core.UploadDocument, error) {
	var doc *core.UploadDocument
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeIndexDocumentKey(x.name, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			doc, unmarshalErr = storage.UnmarshalUploadDocument(val)
			return unmarshalErr
		})
	}, false)
	return doc, err
}

// Count returns the number of documents stored in the index.
func (x *Index) Count(ctx context.Context) (int, error) {
	count := 0
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeIndexDocumentPrefix(x.name)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

func (x *Index) storedDimensions() (int, error) {
	var dimensions int
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeIndexMetaKey(x.name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrIndexNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			dimensions, _, unmarshalErr = varint.Int.Unmarshal(val)
			return unmarshalErr
		})
	}, false)
	return dimensions, err
}
