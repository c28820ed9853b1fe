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

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/caseingest/core"
	"github.com/poiesic/caseingest/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) *RunRepository {
	return &RunRepository{
		backend: backend,
	}
}

// SaveRun persists a report and its start time index entry.
func (r *RunRepository) SaveRun(ctx context.Context, report *core.RunReport) error {
	if report.RunID == "" {
		return core.ErrMissingID
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		// Replace the date entry of a previous save with a different start time.
		previous, err := r.readRun(tx, makeRunRecordKey(report.RunID))
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if previous != nil && !previous.StartedAt.Equal(report.StartedAt) {
			if err := tx.Delete(makeRunDateKey(previous.StartedAt, previous.RunID)); err != nil {
				return err
			}
		}
		if err := tx.Set(makeRunRecordKey(report.RunID), storage.MarshalRunReport(report)); err != nil {
			return err
		}
		if err := tx.Set(makeRunDateKey(report.StartedAt, report.RunID), nil); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRun retrieves a report by RunID.
func (r *RunRepository) GetRun(ctx context.Context, id core.RunID) (*core.RunReport, error) {
	var report *core.RunReport
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		report, err = r.readRun(tx, makeRunRecordKey(id))
		return err
	}, false)
	return report, err
}

// ListRuns returns up to limit reports, most recently started first.
// A limit of zero returns every report; a negative limit is ErrInvalidQuery.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*core.RunReport, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit %d", storage.ErrInvalidQuery, limit)
	}
	var reports []*core.RunReport

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(runDatePrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration starts from the largest key under the prefix.
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for iter.Seek(seekKey); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := iter.Item().Key()
			id := core.RunID(key[len(prefix)+8:])
			report, err := r.readRun(tx, makeRunRecordKey(id))
			if err != nil {
				return err
			}
			reports = append(reports, report)
			if limit > 0 && len(reports) >= limit {
				break
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *RunRepository) readRun(tx *badger.Txn, key []byte) (*core.RunReport, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var report *core.RunReport
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		report, unmarshalErr = storage.UnmarshalRunReport(val)
		return unmarshalErr
	})
	return report, err
}
