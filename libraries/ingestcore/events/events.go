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

// Package events is the event-store access layer. The writer materializes
// one version's delta as immutable per-month parquet payloads and keeps
// the per-month version index current; the readers enumerate and load
// events for index rebuilds and projection consolidation.
package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/siltdata/silt/libraries/ingestcore/codec"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
	"github.com/siltdata/silt/libraries/ingestcore/paths"
	"github.com/siltdata/silt/store/blobstore"
)

const writeParallelism = 4

// Writer persists event payloads for newly published versions.
type Writer struct {
	bs  blobstore.Blobstore
	now func() time.Time
	lgr *logrus.Entry
}

// NewWriter creates a Writer on top of bs.
func NewWriter(bs blobstore.Blobstore, lgr *logrus.Entry) *Writer {
	return &Writer{bs: bs, now: time.Now, lgr: lgr}
}

// Write persists one parquet payload per (year, month) present in frame.
// Rows without obs_time or obs_date land in a single unpartitioned
// payload. It returns the written keys in deterministic key order and the
// affected months. On any failure every payload written by this call is
// deleted again and no month index references versionTS.
func (w *Writer) Write(ctx context.Context, datasetID, versionTS string, frame dataset.Frame) ([]string, []dataset.YearMonth, error) {
	groups, undated := groupByMonth(frame)
	months := sortedMonths(groups)

	type part struct {
		key  string
		rows dataset.Frame
	}
	parts := make([]part, 0, len(months)+1)
	if len(undated) > 0 {
		parts = append(parts, part{key: paths.EventSingleKey(datasetID, versionTS), rows: undated})
	}
	for _, ym := range months {
		parts = append(parts, part{key: paths.EventPartitionKey(datasetID, versionTS, ym), rows: groups[ym]})
	}

	// Partition puts may run concurrently, but a key enters written only
	// once its put has acknowledged, so rollback never misses a blob.
	var mu sync.Mutex
	written := make([]string, 0, len(parts))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(writeParallelism)
	for _, p := range parts {
		eg.Go(func() error {
			data, err := codec.EncodeRows(p.rows)
			if err != nil {
				return errors.Wrapf(err, "encode event partition %s", p.key)
			}
			if _, err := w.bs.Put(egCtx, p.key, blobstore.ContentTypeParquet, data); err != nil {
				return errors.Wrapf(err, "write event partition %s", p.key)
			}
			mu.Lock()
			written = append(written, p.key)
			mu.Unlock()
			w.lgr.WithFields(logrus.Fields{"key": p.key, "rows": len(p.rows)}).Debug("wrote event partition")
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		w.rollback(ctx, datasetID, versionTS, written, nil)
		return nil, nil, err
	}

	indexed := make([]dataset.YearMonth, 0, len(months))
	for _, ym := range months {
		if err := w.addToMonthIndex(ctx, datasetID, versionTS, ym); err != nil {
			w.rollback(ctx, datasetID, versionTS, written, indexed)
			return nil, nil, errors.Wrapf(err, "update month index %s", ym)
		}
		indexed = append(indexed, ym)
	}

	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		keys = append(keys, p.key)
	}
	return keys, months, nil
}

// rollback is best-effort. Leftovers under an unpublished version prefix
// are invisible to readers, so individual delete failures are only logged.
func (w *Writer) rollback(ctx context.Context, datasetID, versionTS string, written []string, indexed []dataset.YearMonth) {
	for _, key := range written {
		if err := w.bs.Delete(ctx, key); err != nil {
			w.lgr.WithError(err).WithField("key", key).Warn("could not delete event payload during rollback")
		}
	}
	for _, ym := range indexed {
		if err := w.removeFromMonthIndex(ctx, datasetID, versionTS, ym); err != nil {
			w.lgr.WithError(err).WithField("month", ym.String()).Warn("could not unwind month index during rollback")
		}
	}
	w.lgr.WithFields(logrus.Fields{"version": versionTS, "files": len(written)}).Info("rolled back event write")
}

func groupByMonth(frame dataset.Frame) (map[dataset.YearMonth]dataset.Frame, dataset.Frame) {
	groups := make(map[dataset.YearMonth]dataset.Frame)
	var undated dataset.Frame
	for _, row := range frame {
		ym, ok := row.PartitionMonth()
		if !ok {
			undated = append(undated, row)
			continue
		}
		groups[ym] = append(groups[ym], row)
	}
	return groups, undated
}

func sortedMonths(groups map[dataset.YearMonth]dataset.Frame) []dataset.YearMonth {
	months := make([]dataset.YearMonth, 0, len(groups))
	for ym := range groups {
		months = append(months, ym)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}
