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

package normalize

import (
	"fmt"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

// Longform normalizes tables with one observation per line.
//
// Options:
//
//	value_column   numeric column (default "value")
//	time_column    observation time column; absent means the dataset has
//	               no date axis and its event payload is unpartitioned
//	time_layout    explicit Go layout for time_column
//	series_column  column holding the series code per line
//	series_code    static series code for every line
//	decimal_comma  "true" for 1.234,56 style numbers
//
// Lines whose value (or time, when configured) cannot be parsed are
// dropped.
type Longform struct{}

func (n *Longform) ID() string { return "longform" }

func (n *Longform) Normalize(cfg *conf.DatasetConfig, table *dataset.RawTable) (dataset.Frame, error) {
	opts := cfg.Normalize.Options

	valueCol := opts["value_column"]
	if valueCol == "" {
		valueCol = "value"
	}
	vIdx, err := table.ColumnIndex(valueCol)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", cfg.DatasetID, err)
	}

	tIdx := -1
	if timeCol := opts["time_column"]; timeCol != "" {
		tIdx, err = table.ColumnIndex(timeCol)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", cfg.DatasetID, err)
		}
	}

	sIdx := -1
	if seriesCol := opts["series_column"]; seriesCol != "" {
		sIdx, err = table.ColumnIndex(seriesCol)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", cfg.DatasetID, err)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	decimalComma := opts["decimal_comma"] == "true"
	layout := opts["time_layout"]

	frame := make(dataset.Frame, 0, table.NumRows())
	for i := 0; i < table.NumRows(); i++ {
		value, err := parseValue(table.Cell(i, vIdx), decimalComma)
		if err != nil {
			continue
		}
		row := dataset.Row{Value: value, InternalSeriesCode: opts["series_code"]}
		if tIdx >= 0 {
			t, err := parseTime(table.Cell(i, tIdx), layout, loc)
			if err != nil {
				continue
			}
			row.ObsTime = t
		}
		if sIdx >= 0 {
			row.InternalSeriesCode = table.Cell(i, sIdx)
		}
		frame = append(frame, row)
	}
	return frame, nil
}
