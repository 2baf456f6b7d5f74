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

package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

func testConfig() *conf.DatasetConfig {
	return &conf.DatasetConfig{
		DatasetID: "gas_demand_es",
		Provider:  "enagas",
		Frequency: "D",
		Unit:      "GWh",
		Source:    conf.SourceConfig{Kind: conf.SourceKindHTTP, URL: "https://example.com/d.csv", Format: conf.FormatCSV},
		Normalize: conf.NormalizeConfig{PrimaryKeys: []string{"dataset_id", "obs_date"}},
	}
}

func TestApplyStampsMetadata(t *testing.T) {
	now := time.Date(2024, 1, 16, 4, 0, 0, 0, time.UTC)
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	frame := dataset.Frame{{
		ObsTime: time.Date(2024, 1, 15, 9, 30, 0, 0, madrid),
		Value:   731.25,
	}}

	out := Apply(frame, testConfig(), "2024-01-16T04-00-00", now)
	require.Len(t, out, 1)
	row := out[0]

	assert.Equal(t, "gas_demand_es", row.DatasetID)
	assert.Equal(t, "enagas", row.Provider)
	assert.Equal(t, "D", row.Frequency)
	assert.Equal(t, "GWh", row.Unit)
	assert.Equal(t, "gas_demand_es", row.InternalSeriesCode)
	assert.Equal(t, dataset.SourceKindFile, row.SourceKind)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), row.ObsDate)
	assert.Equal(t, "2024-01-16T04-00-00", row.Version)
	assert.Equal(t, now, row.VintageDate)
	assert.Equal(t, dataset.QualityOK, row.QualityFlag)

	// Input untouched.
	assert.Empty(t, frame[0].DatasetID)
}

func TestApplyRowValuesWin(t *testing.T) {
	frame := dataset.Frame{{
		Frequency:          "H",
		Unit:               "MWh",
		InternalSeriesCode: "ES_GAS_DEM_H",
		QualityFlag:        dataset.QualityOutlier,
	}}

	out := Apply(frame, testConfig(), "v", time.Now())
	assert.Equal(t, "H", out[0].Frequency)
	assert.Equal(t, "MWh", out[0].Unit)
	assert.Equal(t, "ES_GAS_DEM_H", out[0].InternalSeriesCode)
	assert.Equal(t, dataset.QualityOutlier, out[0].QualityFlag)
}

func TestApplyLocalDateCrossesUTCMidnight(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	// 00:30 Madrid on Jan 1 is 23:30 UTC on Dec 31; the observation
	// date must stay Jan 1.
	frame := dataset.Frame{{ObsTime: time.Date(2024, 1, 1, 0, 30, 0, 0, madrid)}}
	out := Apply(frame, testConfig(), "v", time.Now())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), out[0].ObsDate)
}

func TestApplyKeepsDateOnlyRows(t *testing.T) {
	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	frame := dataset.Frame{{ObsDate: date}}

	out := Apply(frame, testConfig(), "v", time.Now())
	assert.Equal(t, date, out[0].ObsDate)
	assert.True(t, out[0].ObsTime.IsZero())
}

func TestSourceKind(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, dataset.SourceKindFile, sourceKind(cfg))

	cfg.Source.Format = ""
	assert.Equal(t, dataset.SourceKindAPI, sourceKind(cfg))

	cfg.Source.Kind = conf.SourceKindLocal
	assert.Equal(t, dataset.SourceKindFile, sourceKind(cfg))
}
