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

package events

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/siltdata/silt/libraries/ingestcore/codec"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
	"github.com/siltdata/silt/libraries/ingestcore/paths"
	"github.com/siltdata/silt/store/blobstore"
)

// MonthIndex lists the event versions that wrote a partition for one
// calendar month. It is an append-only optimization, not a source of
// truth: concurrent publishers for the same month may lose an update, and
// consolidation falls back to listing the event prefix when the index is
// missing.
type MonthIndex struct {
	DatasetID   string   `json:"dataset_id"`
	Year        int      `json:"year"`
	Month       int      `json:"month"`
	Versions    []string `json:"versions"`
	LastUpdated string   `json:"last_updated"`
	EventCount  int      `json:"event_count"`
}

// YearMonth returns the month this index covers.
func (idx *MonthIndex) YearMonth() dataset.YearMonth {
	return dataset.YearMonth{Year: idx.Year, Month: idx.Month}
}

// ReadMonthIndex loads the version index for one month. A month that has
// never been indexed returns (nil, nil).
func ReadMonthIndex(ctx context.Context, bs blobstore.Blobstore, datasetID string, ym dataset.YearMonth) (*MonthIndex, error) {
	data, err := blobstore.GetBytes(ctx, bs, paths.MonthIndexKey(datasetID, ym))
	if err != nil {
		if blobstore.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	var idx MonthIndex
	if err := codec.UnmarshalJSON(data, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// RebuildMonthIndex reconstructs the version index for one month by
// listing the event prefix, writes it back, and returns it.
func RebuildMonthIndex(ctx context.Context, bs blobstore.Blobstore, datasetID string, ym dataset.YearMonth, now time.Time) (*MonthIndex, error) {
	keys, err := bs.List(ctx, paths.EventsPrefix(datasetID))
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(keys))
	for _, key := range keys {
		v, ok := paths.VersionFromEventKey(datasetID, key)
		if !ok {
			continue
		}
		if key == paths.EventPartitionKey(datasetID, v, ym) {
			versions = append(versions, v)
		}
	}
	sort.Strings(versions)

	idx := &MonthIndex{
		DatasetID:   datasetID,
		Year:        ym.Year,
		Month:       ym.Month,
		Versions:    versions,
		LastUpdated: now.UTC().Format(time.RFC3339),
		EventCount:  len(versions),
	}
	if err := writeMonthIndex(ctx, bs, idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// KnownMonths returns every month with a version index, in chronological
// order.
func KnownMonths(ctx context.Context, bs blobstore.Blobstore, datasetID string) ([]dataset.YearMonth, error) {
	keys, err := bs.List(ctx, paths.MonthIndexPrefix(datasetID))
	if err != nil {
		return nil, err
	}
	months := make([]dataset.YearMonth, 0, len(keys))
	for _, key := range keys {
		if ym, ok := paths.MonthFromIndexKey(datasetID, key); ok {
			months = append(months, ym)
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months, nil
}

func (w *Writer) addToMonthIndex(ctx context.Context, datasetID, versionTS string, ym dataset.YearMonth) error {
	idx, err := ReadMonthIndex(ctx, w.bs, datasetID, ym)
	if err != nil {
		return err
	}
	if idx == nil {
		idx = &MonthIndex{DatasetID: datasetID, Year: ym.Year, Month: ym.Month}
	}
	pos := sort.SearchStrings(idx.Versions, versionTS)
	if pos < len(idx.Versions) && idx.Versions[pos] == versionTS {
		return nil
	}
	idx.Versions = slices.Insert(idx.Versions, pos, versionTS)
	idx.EventCount = len(idx.Versions)
	idx.LastUpdated = w.now().UTC().Format(time.RFC3339)
	return writeMonthIndex(ctx, w.bs, idx)
}

func (w *Writer) removeFromMonthIndex(ctx context.Context, datasetID, versionTS string, ym dataset.YearMonth) error {
	idx, err := ReadMonthIndex(ctx, w.bs, datasetID, ym)
	if err != nil || idx == nil {
		return err
	}
	pos := sort.SearchStrings(idx.Versions, versionTS)
	if pos >= len(idx.Versions) || idx.Versions[pos] != versionTS {
		return nil
	}
	idx.Versions = slices.Delete(idx.Versions, pos, pos+1)
	idx.EventCount = len(idx.Versions)
	idx.LastUpdated = w.now().UTC().Format(time.RFC3339)
	return writeMonthIndex(ctx, w.bs, idx)
}

func writeMonthIndex(ctx context.Context, bs blobstore.Blobstore, idx *MonthIndex) error {
	data, err := codec.MarshalJSON(idx)
	if err != nil {
		return err
	}
	_, err = bs.Put(ctx, paths.MonthIndexKey(idx.DatasetID, idx.YearMonth()), blobstore.ContentTypeJSON, data)
	return err
}
