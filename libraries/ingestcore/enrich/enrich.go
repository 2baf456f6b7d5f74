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

// Package enrich stamps normalized rows with dataset metadata: identity
// columns from config, the publication version, vintage and quality.
package enrich

import (
	"time"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

// Apply returns a copy of the frame with metadata columns filled in.
// Row-level values win over config fallbacks for frequency, unit and
// internal_series_code; identity and version columns are always stamped.
func Apply(frame dataset.Frame, cfg *conf.DatasetConfig, versionTS string, now time.Time) dataset.Frame {
	kind := sourceKind(cfg)
	out := make(dataset.Frame, len(frame))
	for i, row := range frame {
		row.DatasetID = cfg.DatasetID
		row.Provider = cfg.Provider
		if row.Frequency == "" {
			row.Frequency = cfg.Frequency
		}
		if row.Unit == "" {
			row.Unit = cfg.Unit
		}
		if row.InternalSeriesCode == "" {
			row.InternalSeriesCode = cfg.DatasetID
		}
		row.SourceKind = kind
		if !row.ObsTime.IsZero() {
			// Observation date is the local calendar date of the
			// observation time, not its UTC date.
			y, m, d := row.ObsTime.Date()
			row.ObsDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
		row.Version = versionTS
		row.VintageDate = now
		if row.QualityFlag == "" {
			row.QualityFlag = dataset.QualityOK
		}
		out[i] = row
	}
	return out
}

func sourceKind(cfg *conf.DatasetConfig) string {
	if cfg.Source.Format != "" {
		return dataset.SourceKindFile
	}
	switch cfg.Source.Kind {
	case conf.SourceKindHTTP:
		return dataset.SourceKindAPI
	default:
		return dataset.SourceKindFile
	}
}
