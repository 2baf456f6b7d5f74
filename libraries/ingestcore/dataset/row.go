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

// Package dataset defines the canonical row shape that flows through the
// ingestion pipeline and is persisted to event and projection payloads.
package dataset

import (
	"fmt"
	"strconv"
	"time"
)

// Source kinds recorded on published rows.
const (
	SourceKindFile = "FILE"
	SourceKindAPI  = "API"
)

// Quality flags recorded on published rows.
const (
	QualityOK      = "OK"
	QualityOutlier = "OUTLIER"
	QualityImputed = "IMPUTED"
)

// Canonical column names, in persisted order.
const (
	ColDatasetID          = "dataset_id"
	ColProvider           = "provider"
	ColFrequency          = "frequency"
	ColUnit               = "unit"
	ColSourceKind         = "source_kind"
	ColObsTime            = "obs_time"
	ColObsDate            = "obs_date"
	ColValue              = "value"
	ColInternalSeriesCode = "internal_series_code"
	ColVersion            = "version"
	ColVintageDate        = "vintage_date"
	ColQualityFlag        = "quality_flag"
)

// Columns lists the canonical column names in persisted order.
var Columns = []string{
	ColDatasetID,
	ColProvider,
	ColFrequency,
	ColUnit,
	ColSourceKind,
	ColObsTime,
	ColObsDate,
	ColValue,
	ColInternalSeriesCode,
	ColVersion,
	ColVintageDate,
	ColQualityFlag,
}

// Row is one observation. Fields before Version come from normalization,
// the rest from enrichment. KeyHash is carried between delta computation
// and event serialization and is never persisted.
type Row struct {
	DatasetID          string
	Provider           string
	Frequency          string
	Unit               string
	SourceKind         string
	ObsTime            time.Time
	ObsDate            time.Time
	Value              float64
	InternalSeriesCode string
	Version            string
	VintageDate        time.Time
	QualityFlag        string

	KeyHash string
}

// Frame is an ordered collection of rows.
type Frame []Row

// Field returns the canonical string form of the named column, used for
// primary-key hashing. The forms are stable across write and rebuild:
// timestamps render as RFC 3339 UTC at second precision, dates as
// YYYY-MM-DD, floats in shortest round-trip form.
func (r Row) Field(name string) (string, error) {
	switch name {
	case ColDatasetID:
		return r.DatasetID, nil
	case ColProvider:
		return r.Provider, nil
	case ColFrequency:
		return r.Frequency, nil
	case ColUnit:
		return r.Unit, nil
	case ColSourceKind:
		return r.SourceKind, nil
	case ColObsTime:
		return FormatTime(r.ObsTime), nil
	case ColObsDate:
		return FormatDate(r.ObsDate), nil
	case ColValue:
		return strconv.FormatFloat(r.Value, 'g', -1, 64), nil
	case ColInternalSeriesCode:
		return r.InternalSeriesCode, nil
	case ColVersion:
		return r.Version, nil
	case ColVintageDate:
		return FormatTime(r.VintageDate), nil
	case ColQualityFlag:
		return r.QualityFlag, nil
	}
	return "", fmt.Errorf("unknown column %q", name)
}

// FormatTime renders a timestamp in its canonical string form. The zero
// time renders empty so datasets without a time column hash stably.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// FormatDate renders a date in its canonical string form.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// YearMonth identifies one calendar month partition.
type YearMonth struct {
	Year  int
	Month int
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Before orders months chronologically.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// PartitionMonth derives the (year, month) partition for a row from
// obs_time, falling back to obs_date. Rows with neither report ok=false
// and land in the unpartitioned event file.
func (r Row) PartitionMonth() (YearMonth, bool) {
	t := r.ObsTime
	if t.IsZero() {
		t = r.ObsDate
	}
	if t.IsZero() {
		return YearMonth{}, false
	}
	return YearMonth{Year: t.Year(), Month: int(t.Month())}, true
}
