// Copyright 2026 Silt Data, Inc.
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

// Package delta computes the incremental portion of a normalized frame
// against the primary-key index. Pure functions, no I/O: callers read the
// index, call Compute, and persist the results.
package delta

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

// Result holds one delta computation. Delta rows carry KeyHash and keep
// the normalized frame's order, including rows whose hashes collide within
// the frame; only the index is deduplicated.
type Result struct {
	Delta        dataset.Frame
	UpdatedIndex []string
	PriorIndex   []string
}

// KeyHash computes the SHA1 over the canonical string forms of the
// primary-key columns, joined with '|'. Lowercase hex.
func KeyHash(row dataset.Row, primaryKeys []string) (string, error) {
	parts := make([]string, len(primaryKeys))
	for i, pk := range primaryKeys {
		v, err := row.Field(pk)
		if err != nil {
			return "", err
		}
		parts[i] = v
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:]), nil
}

// HashFrame computes per-row key hashes in frame order.
func HashFrame(frame dataset.Frame, primaryKeys []string) ([]string, error) {
	hashes := make([]string, len(frame))
	for i, row := range frame {
		h, err := KeyHash(row, primaryKeys)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	return hashes, nil
}

// Compute anti-joins the normalized frame against the index. Rows whose
// hash is already indexed are dropped; the rest become the delta, and the
// index grows by the delta's distinct hashes. Inputs are not mutated.
func Compute(normalized dataset.Frame, index []string, primaryKeys []string) (Result, error) {
	hashes, err := HashFrame(normalized, primaryKeys)
	if err != nil {
		return Result{}, err
	}

	existing := make(map[string]bool, len(index))
	for _, h := range index {
		existing[h] = true
	}

	delta := make(dataset.Frame, 0, len(normalized))
	added := make([]string, 0, len(normalized))
	for i, row := range normalized {
		if existing[hashes[i]] {
			continue
		}
		row.KeyHash = hashes[i]
		delta = append(delta, row)
		added = append(added, hashes[i])
	}

	prior := make([]string, len(index))
	copy(prior, index)

	return Result{
		Delta:        delta,
		UpdatedIndex: MergeIndex(index, added),
		PriorIndex:   prior,
	}, nil
}

// MergeIndex appends hashes to the index, deduplicating on first
// occurrence. The input slices are not mutated.
func MergeIndex(index []string, added []string) []string {
	merged := make([]string, 0, len(index)+len(added))
	seen := make(map[string]bool, len(index)+len(added))
	for _, h := range index {
		if seen[h] {
			continue
		}
		seen[h] = true
		merged = append(merged, h)
	}
	for _, h := range added {
		if seen[h] {
			continue
		}
		seen[h] = true
		merged = append(merged, h)
	}
	return merged
}
