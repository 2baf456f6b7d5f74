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

package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldCanonicalForms(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	r := Row{
		DatasetID:          "ine_ipc",
		ObsTime:            time.Date(2024, 1, 15, 10, 30, 0, 0, loc),
		ObsDate:            time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Value:              1234.5,
		InternalSeriesCode: "IPC_GENERAL",
	}

	tests := []struct {
		col  string
		want string
	}{
		{ColDatasetID, "ine_ipc"},
		{ColObsTime, "2024-01-15T09:30:00Z"},
		{ColObsDate, "2024-01-15"},
		{ColValue, "1234.5"},
		{ColInternalSeriesCode, "IPC_GENERAL"},
		{ColQualityFlag, ""},
	}
	for _, tt := range tests {
		got, err := r.Field(tt.col)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.col)
	}

	_, err = r.Field("no_such_column")
	assert.Error(t, err)
}

func TestFieldZeroTimesRenderEmpty(t *testing.T) {
	var r Row
	for _, col := range []string{ColObsTime, ColObsDate, ColVintageDate} {
		got, err := r.Field(col)
		require.NoError(t, err)
		assert.Equal(t, "", got)
	}
}

func TestFieldSubsecondTruncation(t *testing.T) {
	// Hashes must not depend on precision lost by the storage codec.
	a := Row{ObsTime: time.Date(2024, 3, 1, 12, 0, 0, 999999999, time.UTC)}
	b := Row{ObsTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	fa, _ := a.Field(ColObsTime)
	fb, _ := b.Field(ColObsTime)
	assert.Equal(t, fb, fa)
}

func TestPartitionMonth(t *testing.T) {
	withTime := Row{ObsTime: time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)}
	ym, ok := withTime.PartitionMonth()
	require.True(t, ok)
	assert.Equal(t, YearMonth{2024, 2}, ym)

	dateOnly := Row{ObsDate: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)}
	ym, ok = dateOnly.PartitionMonth()
	require.True(t, ok)
	assert.Equal(t, YearMonth{2023, 12}, ym)

	_, ok = Row{}.PartitionMonth()
	assert.False(t, ok)
}

func TestYearMonthOrdering(t *testing.T) {
	assert.True(t, YearMonth{2023, 12}.Before(YearMonth{2024, 1}))
	assert.True(t, YearMonth{2024, 1}.Before(YearMonth{2024, 2}))
	assert.False(t, YearMonth{2024, 2}.Before(YearMonth{2024, 2}))
	assert.Equal(t, "2024-02", YearMonth{2024, 2}.String())
}

func TestRawTable(t *testing.T) {
	tbl := &RawTable{
		Columns: []string{"date", "value"},
		Rows:    [][]string{{"2024-01-01", "1.5"}, {"2024-01-02"}},
	}
	idx, err := tbl.ColumnIndex("date")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	_, err = tbl.ColumnIndex("missing")
	assert.Error(t, err)
	assert.Equal(t, "1.5", tbl.Cell(0, 1))
	assert.Equal(t, "", tbl.Cell(1, 1))
	assert.Equal(t, 2, tbl.NumRows())
}
