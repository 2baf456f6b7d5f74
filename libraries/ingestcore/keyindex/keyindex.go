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

// Package keyindex maintains the primary-key index and the consistency
// guard between the index and the dataset pointer. The index is the set
// of key hashes of every row published up to the current version; the
// guard detects the crash window where the pointer advanced but the
// index write never happened, and heals it from the events.
package keyindex

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/libraries/ingestcore/codec"
	"github.com/siltdata/silt/libraries/ingestcore/delta"
	"github.com/siltdata/silt/libraries/ingestcore/events"
	"github.com/siltdata/silt/libraries/ingestcore/manifest"
	"github.com/siltdata/silt/libraries/ingestcore/paths"
	"github.com/siltdata/silt/store/blobstore"
)

// DefaultTolerance is the allowed divergence between the index
// cardinality and the row total recorded in the current event manifest.
// Deltas keep duplicate hashes within one frame while the index does not,
// so the two counts may drift by a few rows without any data loss.
const DefaultTolerance = 10

// Read loads the primary-key index. An absent index is an empty one.
func Read(ctx context.Context, bs blobstore.Blobstore, datasetID string) ([]string, error) {
	data, err := blobstore.GetBytes(ctx, bs, paths.IndexKey(datasetID))
	if err != nil {
		if blobstore.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return codec.DecodeKeyHashes(data)
}

// Write overwrites the primary-key index.
func Write(ctx context.Context, bs blobstore.Blobstore, datasetID string, hashes []string) error {
	data, err := codec.EncodeKeyHashes(hashes)
	if err != nil {
		return err
	}
	_, err = bs.Put(ctx, paths.IndexKey(datasetID), blobstore.ContentTypeParquet, data)
	return err
}

// Guard checks that the pointer and the primary-key index describe the
// same publication state, and rebuilds the index when they do not.
type Guard struct {
	bs        blobstore.Blobstore
	tolerance int
	lgr       *logrus.Entry
}

// NewGuard creates a Guard. A negative tolerance falls back to
// DefaultTolerance.
func NewGuard(bs blobstore.Blobstore, tolerance int, lgr *logrus.Entry) *Guard {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	return &Guard{bs: bs, tolerance: tolerance, lgr: lgr}
}

// Verify reports whether pointer and index agree. With no pointer the
// index must be empty; otherwise the index cardinality must match the
// current manifest's rows_total within the tolerance.
func (g *Guard) Verify(ctx context.Context, datasetID string) (bool, error) {
	ptr, _, err := manifest.ReadPointer(ctx, g.bs, datasetID)
	if err != nil {
		return false, err
	}
	index, err := Read(ctx, g.bs, datasetID)
	if err != nil {
		return false, err
	}
	if ptr == nil {
		if len(index) > 0 {
			g.lgr.WithFields(logrus.Fields{"dataset": datasetID, "index": len(index)}).
				Warn("primary-key index present without a pointer")
			return false, nil
		}
		return true, nil
	}

	m, err := manifest.Read(ctx, g.bs, datasetID, ptr.CurrentVersion)
	if err != nil {
		if blobstore.IsNotFoundError(err) {
			g.lgr.WithFields(logrus.Fields{"dataset": datasetID, "version": ptr.CurrentVersion}).
				Warn("pointer references a version without a manifest")
			return false, nil
		}
		return false, err
	}

	diff := len(index) - m.Outputs.RowsTotal
	if diff < 0 {
		diff = -diff
	}
	if diff > g.tolerance {
		g.lgr.WithFields(logrus.Fields{
			"dataset":    datasetID,
			"version":    ptr.CurrentVersion,
			"index":      len(index),
			"rows_total": m.Outputs.RowsTotal,
			"tolerance":  g.tolerance,
		}).Warn("pointer and primary-key index diverged")
		return false, nil
	}
	return true, nil
}

// RebuildFromPointer regenerates the index from every event at or before
// the current version and overwrites index/keys.parquet. With no pointer
// it removes any stray index. Returns the rebuilt cardinality.
func (g *Guard) RebuildFromPointer(ctx context.Context, datasetID string) (int, error) {
	ptr, _, err := manifest.ReadPointer(ctx, g.bs, datasetID)
	if err != nil {
		return 0, err
	}
	if ptr == nil {
		if err := g.bs.Delete(ctx, paths.IndexKey(datasetID)); err != nil {
			return 0, err
		}
		g.lgr.WithField("dataset", datasetID).Info("removed primary-key index for unpublished dataset")
		return 0, nil
	}

	m, err := manifest.Read(ctx, g.bs, datasetID, ptr.CurrentVersion)
	if err != nil {
		return 0, err
	}

	versions, err := events.ListVersions(ctx, g.bs, datasetID, ptr.CurrentVersion)
	if err != nil {
		return 0, err
	}

	var index []string
	for _, v := range versions {
		rows, err := events.ReadVersionRows(ctx, g.bs, datasetID, v)
		if err != nil {
			return 0, err
		}
		hashes, err := delta.HashFrame(rows, m.Index.KeyColumns)
		if err != nil {
			return 0, err
		}
		index = delta.MergeIndex(index, hashes)
	}

	if err := Write(ctx, g.bs, datasetID, index); err != nil {
		return 0, err
	}
	g.lgr.WithFields(logrus.Fields{
		"dataset":  datasetID,
		"version":  ptr.CurrentVersion,
		"versions": len(versions),
		"keys":     len(index),
	}).Info("rebuilt primary-key index from events")
	return len(index), nil
}
