// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces snapshot records in the shared database.
const keyPrefix = "insight"

// SnapshotStore persists one InsightSnapshot per (workspace, dataset,
// decision metric) key.
//
// # Concurrency
//
// Concurrent regenerations of the same key are NOT mutually excluded: two
// overlapping writers race and the store exhibits last-writer-wins. This is
// a documented limitation of the snapshot contract, not a defect to paper
// over here; callers needing strict consistency must serialize externally.
type SnapshotStore struct {
	db *badger.DB
}

// NewSnapshotStore wraps an opened database.
func NewSnapshotStore(db *badger.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// snapshotKey builds the record key, sanitizing path separators the same way
// the analytics backend sanitizes its snapshot filenames.
func snapshotKey(workspaceID, datasetID, decisionMetric string) []byte {
	clean := func(s string) string {
		s = strings.ReplaceAll(s, "/", "_")
		return strings.ReplaceAll(s, "\\", "_")
	}
	return []byte(fmt.Sprintf("%s/%s/%s/%s",
		keyPrefix, clean(workspaceID), clean(datasetID), clean(decisionMetric)))
}

// Load fetches the snapshot for the key, or (nil, nil) when none exists.
func (s *SnapshotStore) Load(ctx context.Context, workspaceID, datasetID, decisionMetric string) (*datatypes.InsightSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var snap *datatypes.InsightSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(workspaceID, datasetID, decisionMetric))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded datatypes.InsightSnapshot
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			snap = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// Save replaces the snapshot for the key wholesale: delete-then-write in one
// transaction, never merged. The stored version is the prior version plus
// one, starting at 1; CreatedAt is stamped here.
func (s *SnapshotStore) Save(ctx context.Context, snap *datatypes.InsightSnapshot) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if snap == nil {
		return errors.New("snapshot must not be nil")
	}

	key := snapshotKey(snap.WorkspaceID, snap.DatasetID, snap.DecisionMetric)
	err := s.db.Update(func(txn *badger.Txn) error {
		version := 1
		if item, err := txn.Get(key); err == nil {
			_ = item.Value(func(val []byte) error {
				var prior datatypes.InsightSnapshot
				if json.Unmarshal(val, &prior) == nil {
					version = prior.Version + 1
				}
				return nil
			})
			if err := txn.Delete(key); err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		snap.Version = version
		snap.CreatedAt = time.Now().UTC()
		encoded, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		return txn.Set(key, encoded)
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot for the key. Deleting a missing snapshot is
// not an error.
func (s *SnapshotStore) Delete(ctx context.Context, workspaceID, datasetID, decisionMetric string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(workspaceID, datasetID, decisionMetric))
	})
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ComputeDatasetHash derives a deterministic schema fingerprint used to
// detect dataset drift between snapshot creation and a later cache hit.
//
// The hash covers the sorted column name:type pairs. This service never
// reads the dataset itself, so content-level change detection stays with the
// analytics backend; a schema change is the invalidation signal here.
func ComputeDatasetHash(schema *datatypes.DatasetSchema) string {
	if schema == nil {
		return ""
	}
	pairs := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		pairs = append(pairs, col.Name+":"+col.Type)
	}
	sort.Strings(pairs)

	sum := sha256.Sum256([]byte(strings.Join(pairs, "|")))
	return hex.EncodeToString(sum[:])
}
