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

// Package paths is the single source of truth for the object-store key
// layout. Every key under datasets/<dataset_id>/ is built and parsed here;
// no other package concatenates key fragments.
package paths

import (
	"fmt"
	"strings"

	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

const (
	partFile     = "part-0.parquet"
	manifestFile = "manifest.json"
)

// DatasetRoot returns "datasets/<id>/".
func DatasetRoot(datasetID string) string {
	return fmt.Sprintf("datasets/%s/", datasetID)
}

// ConfigKey returns the informational copy of the dataset config.
func ConfigKey(datasetID string) string {
	return DatasetRoot(datasetID) + "configs/config.yaml"
}

// IndexKey returns the primary-key index location.
func IndexKey(datasetID string) string {
	return DatasetRoot(datasetID) + "index/keys.parquet"
}

// PointerKey returns the CAS target that names the current version.
func PointerKey(datasetID string) string {
	return DatasetRoot(datasetID) + "current/" + manifestFile
}

// EventsPrefix returns the prefix holding every event version.
func EventsPrefix(datasetID string) string {
	return DatasetRoot(datasetID) + "events/"
}

// EventRoot returns "datasets/<id>/events/<version>/".
func EventRoot(datasetID, version string) string {
	return EventsPrefix(datasetID) + version + "/"
}

// EventManifestKey returns the manifest describing one event version.
func EventManifestKey(datasetID, version string) string {
	return EventRoot(datasetID, version) + manifestFile
}

// EventDataPrefix returns the prefix of an event version's data files.
func EventDataPrefix(datasetID, version string) string {
	return EventRoot(datasetID, version) + "data/"
}

// PartitionDir returns the hive-style month fragment "year=YYYY/month=MM/".
func PartitionDir(ym dataset.YearMonth) string {
	return fmt.Sprintf("year=%04d/month=%02d/", ym.Year, ym.Month)
}

// EventPartitionKey returns the parquet payload for one event month.
func EventPartitionKey(datasetID, version string, ym dataset.YearMonth) string {
	return EventDataPrefix(datasetID, version) + PartitionDir(ym) + partFile
}

// EventSingleKey returns the unpartitioned payload used when the dataset
// has no usable date column.
func EventSingleKey(datasetID, version string) string {
	return EventDataPrefix(datasetID, version) + partFile
}

// MonthIndexKey returns the per-month listing of event versions.
func MonthIndexKey(datasetID string, ym dataset.YearMonth) string {
	return fmt.Sprintf("%sindex/%04d/%02d/versions.json", EventsPrefix(datasetID), ym.Year, ym.Month)
}

// MonthIndexPrefix returns the prefix holding every month index.
func MonthIndexPrefix(datasetID string) string {
	return EventsPrefix(datasetID) + "index/"
}

// ProjectionDir returns the directory of one month's read projection.
func ProjectionDir(datasetID string, ym dataset.YearMonth) string {
	return DatasetRoot(datasetID) + "projections/windows/" + PartitionDir(ym)
}

// ProjectionKey returns the visible projection payload for a month.
func ProjectionKey(datasetID string, ym dataset.YearMonth) string {
	return ProjectionDir(datasetID, ym) + "data.parquet"
}

// ProjectionTempPrefix returns the WAL staging area for a month.
func ProjectionTempPrefix(datasetID string, ym dataset.YearMonth) string {
	return ProjectionDir(datasetID, ym) + ".tmp/"
}

// ProjectionTempKey returns the staged projection payload for a month.
func ProjectionTempKey(datasetID string, ym dataset.YearMonth) string {
	return ProjectionTempPrefix(datasetID, ym) + "data.parquet"
}

// ConsolidationKey returns the per-month consolidation status manifest.
func ConsolidationKey(datasetID string, ym dataset.YearMonth) string {
	return fmt.Sprintf("%sprojections/consolidation/%04d/%02d/%s", DatasetRoot(datasetID), ym.Year, ym.Month, manifestFile)
}

// ConsolidationPrefix returns the prefix holding every status manifest.
func ConsolidationPrefix(datasetID string) string {
	return DatasetRoot(datasetID) + "projections/consolidation/"
}

// RawRunKey returns the archive location of one run's fetched source.
func RawRunKey(datasetID, runID, filename string) string {
	return fmt.Sprintf("%sruns/%s/raw/%s", DatasetRoot(datasetID), runID, filename)
}

// LockKey returns the lock-table partition key guarding a dataset.
func LockKey(datasetID string) string {
	return "pipeline:" + datasetID
}

// VersionFromEventKey extracts the version path segment from any key under
// EventsPrefix. The month-index subtree reports ok=false.
func VersionFromEventKey(datasetID, key string) (string, bool) {
	rest, found := strings.CutPrefix(key, EventsPrefix(datasetID))
	if !found {
		return "", false
	}
	version, _, found := strings.Cut(rest, "/")
	if !found || version == "index" || version == "" {
		return "", false
	}
	return version, true
}

// MonthFromIndexKey extracts the (year, month) of a month-index key.
func MonthFromIndexKey(datasetID, key string) (dataset.YearMonth, bool) {
	rest, found := strings.CutPrefix(key, MonthIndexPrefix(datasetID))
	if !found {
		return dataset.YearMonth{}, false
	}
	var ym dataset.YearMonth
	if n, _ := fmt.Sscanf(rest, "%d/%d/versions.json", &ym.Year, &ym.Month); n != 2 {
		return dataset.YearMonth{}, false
	}
	return ym, true
}

// MonthFromPartitionKey extracts the (year, month) of a partitioned event
// payload key. Unpartitioned payloads report ok=false.
func MonthFromPartitionKey(key string) (dataset.YearMonth, bool) {
	var ym dataset.YearMonth
	segs := strings.Split(key, "/")
	for _, seg := range segs {
		if v, found := strings.CutPrefix(seg, "year="); found {
			fmt.Sscanf(v, "%d", &ym.Year)
		} else if v, found := strings.CutPrefix(seg, "month="); found {
			fmt.Sscanf(v, "%d", &ym.Month)
		}
	}
	if ym.Year == 0 || ym.Month == 0 {
		return dataset.YearMonth{}, false
	}
	return ym, true
}
