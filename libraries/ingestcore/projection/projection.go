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

// Package projection consolidates per-month read models from the event
// store. Each month is rebuilt write-ahead-log style: stage the merged
// payload under .tmp/, copy it to the visible key, then mark the month
// completed. A crash at any point leaves the month in_progress and the
// next invocation redoes it from events, so the procedure is idempotent
// and the visible payload is never half-written.
package projection

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/libraries/ingestcore/codec"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
	"github.com/siltdata/silt/libraries/ingestcore/delta"
	"github.com/siltdata/silt/libraries/ingestcore/events"
	"github.com/siltdata/silt/libraries/ingestcore/paths"
	"github.com/siltdata/silt/store/blobstore"
)

// Consolidation manifest states.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// StatusManifest records where one month's consolidation stands.
type StatusManifest struct {
	DatasetID string `json:"dataset_id"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadStatus loads a month's consolidation manifest, or (nil, nil) when
// the month has never been consolidated.
func ReadStatus(ctx context.Context, bs blobstore.Blobstore, datasetID string, ym dataset.YearMonth) (*StatusManifest, error) {
	data, err := blobstore.GetBytes(ctx, bs, paths.ConsolidationKey(datasetID, ym))
	if err != nil {
		if blobstore.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	var m StatusManifest
	if err := codec.UnmarshalJSON(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Consolidator rebuilds monthly projections.
type Consolidator struct {
	bs  blobstore.Blobstore
	now func() time.Time
	lgr *logrus.Entry
}

// NewConsolidator creates a Consolidator on top of bs.
func NewConsolidator(bs blobstore.Blobstore, lgr *logrus.Entry) *Consolidator {
	return &Consolidator{bs: bs, now: time.Now, lgr: lgr}
}

// ConsolidateMonth rebuilds one month's projection from every event
// partition with version <= through. The merged frame is the ascending
// concatenation of the partitions, deduplicated on the primary keys
// keeping the last occurrence, so re-running on unchanged events yields
// byte-identical projection payloads.
func (c *Consolidator) ConsolidateMonth(ctx context.Context, datasetID string, primaryKeys []string, through string, ym dataset.YearMonth) error {
	lgr := c.lgr.WithFields(logrus.Fields{"dataset": datasetID, "month": ym.String()})

	if err := c.CleanupTemp(ctx, datasetID, ym); err != nil {
		return errors.Wrap(err, "cleanup temp projections")
	}
	if err := c.writeStatus(ctx, datasetID, ym, StatusInProgress); err != nil {
		return errors.Wrap(err, "mark consolidation in progress")
	}

	idx, err := events.ReadMonthIndex(ctx, c.bs, datasetID, ym)
	if err != nil {
		return err
	}
	if idx == nil {
		lgr.Info("month index missing, rebuilding from event listing")
		idx, err = events.RebuildMonthIndex(ctx, c.bs, datasetID, ym, c.now())
		if err != nil {
			return errors.Wrap(err, "rebuild month index")
		}
	}

	merged, err := c.mergeMonth(ctx, datasetID, primaryKeys, through, ym, idx.Versions)
	if err != nil {
		return err
	}

	data, err := codec.EncodeRows(merged)
	if err != nil {
		return errors.Wrap(err, "encode projection")
	}
	tmpKey := paths.ProjectionTempKey(datasetID, ym)
	if _, err := c.bs.Put(ctx, tmpKey, blobstore.ContentTypeParquet, data); err != nil {
		return errors.Wrapf(err, "stage projection %s", tmpKey)
	}

	// Readers only ever look at the non-temp key, so copy-then-delete is
	// atomic as far as they can observe.
	finalKey := paths.ProjectionKey(datasetID, ym)
	if _, err := c.bs.Copy(ctx, tmpKey, finalKey); err != nil {
		return errors.Wrapf(err, "commit projection %s", finalKey)
	}
	if err := c.bs.Delete(ctx, tmpKey); err != nil {
		lgr.WithError(err).Warn("could not delete staged projection after commit")
	}

	if err := c.writeStatus(ctx, datasetID, ym, StatusCompleted); err != nil {
		return errors.Wrap(err, "mark consolidation completed")
	}
	if err := c.CleanupTemp(ctx, datasetID, ym); err != nil {
		lgr.WithError(err).Warn("post-commit temp cleanup failed")
	}

	lgr.WithField("rows", len(merged)).Info("consolidated month")
	return nil
}

// ConsolidateAll repairs every month that has event partitions with
// version <= through but no completed consolidation manifest. With force
// set, completed months are redone as well. Returns the number of months
// consolidated.
func (c *Consolidator) ConsolidateAll(ctx context.Context, datasetID string, primaryKeys []string, through string, force bool) (int, error) {
	months, err := c.monthsFromEvents(ctx, datasetID, through)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, ym := range months {
		if !force {
			status, err := ReadStatus(ctx, c.bs, datasetID, ym)
			if err != nil {
				return done, err
			}
			if status != nil && status.Status == StatusCompleted {
				continue
			}
		}
		if err := c.ConsolidateMonth(ctx, datasetID, primaryKeys, through, ym); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// CleanupTemp removes everything under the month's WAL staging area.
func (c *Consolidator) CleanupTemp(ctx context.Context, datasetID string, ym dataset.YearMonth) error {
	keys, err := c.bs.List(ctx, paths.ProjectionTempPrefix(datasetID, ym))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.bs.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// mergeMonth loads the month's partition of every listed version <=
// through, ascending, and deduplicates on primary keys keeping the last
// occurrence. Index entries whose partition object is gone (a leak from
// a rolled-back write) are skipped.
func (c *Consolidator) mergeMonth(ctx context.Context, datasetID string, primaryKeys []string, through string, ym dataset.YearMonth, versions []string) (dataset.Frame, error) {
	sorted := make([]string, len(versions))
	copy(sorted, versions)
	sort.Strings(sorted)

	var frame dataset.Frame
	for _, v := range sorted {
		if through != "" && v > through {
			continue
		}
		rows, err := events.ReadPartitionRows(ctx, c.bs, datasetID, v, ym)
		if err != nil {
			if blobstore.IsNotFoundError(err) {
				c.lgr.WithFields(logrus.Fields{"dataset": datasetID, "month": ym.String(), "version": v}).
					Warn("month index references a missing partition, skipping")
				continue
			}
			return nil, errors.Wrapf(err, "read partition %s of %s", ym, v)
		}
		frame = append(frame, rows...)
	}

	hashes, err := delta.HashFrame(frame, primaryKeys)
	if err != nil {
		return nil, err
	}

	// Keep the last occurrence of each key without disturbing the order
	// of the survivors.
	keep := make([]bool, len(frame))
	seen := make(map[string]bool, len(frame))
	for i := len(frame) - 1; i >= 0; i-- {
		if !seen[hashes[i]] {
			seen[hashes[i]] = true
			keep[i] = true
		}
	}
	merged := make(dataset.Frame, 0, len(seen))
	for i, row := range frame {
		if keep[i] {
			merged = append(merged, row)
		}
	}
	return merged, nil
}

// monthsFromEvents derives the set of months with at least one event
// partition at version <= through, straight from the event keys so a
// lost month index cannot hide a month.
func (c *Consolidator) monthsFromEvents(ctx context.Context, datasetID, through string) ([]dataset.YearMonth, error) {
	keys, err := c.bs.List(ctx, paths.EventsPrefix(datasetID))
	if err != nil {
		return nil, err
	}
	set := make(map[dataset.YearMonth]bool)
	for _, key := range keys {
		v, ok := paths.VersionFromEventKey(datasetID, key)
		if !ok {
			continue
		}
		if through != "" && v > through {
			continue
		}
		if ym, ok := paths.MonthFromPartitionKey(key); ok {
			set[ym] = true
		}
	}
	months := make([]dataset.YearMonth, 0, len(set))
	for ym := range set {
		months = append(months, ym)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months, nil
}

func (c *Consolidator) writeStatus(ctx context.Context, datasetID string, ym dataset.YearMonth, status string) error {
	m := &StatusManifest{
		DatasetID: datasetID,
		Year:      ym.Year,
		Month:     ym.Month,
		Status:    status,
		Timestamp: c.now().UTC().Format(time.RFC3339),
	}
	data, err := codec.MarshalJSON(m)
	if err != nil {
		return err
	}
	_, err = c.bs.Put(ctx, paths.ConsolidationKey(datasetID, ym), blobstore.ContentTypeJSON, data)
	return err
}
