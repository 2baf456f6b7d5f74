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
	"strings"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

// Wideform normalizes tables with one line per timestamp and one column
// per series.
//
// Options:
//
//	time_column    observation time column (required)
//	time_layout    explicit Go layout for time_column
//	series_map     "column=SERIES_CODE,column2=CODE2" (required); map
//	               order fixes the emitted row order within a line
//	decimal_comma  "true" for 1.234,56 style numbers
//
// Lines with unparseable times are dropped whole; empty or unparseable
// cells drop only that series' observation.
type Wideform struct{}

func (n *Wideform) ID() string { return "wideform" }

type seriesMapping struct {
	column string
	code   string
	idx    int
}

func (n *Wideform) Normalize(cfg *conf.DatasetConfig, table *dataset.RawTable) (dataset.Frame, error) {
	opts := cfg.Normalize.Options

	timeCol := opts["time_column"]
	if timeCol == "" {
		return nil, fmt.Errorf("dataset %s: wideform requires a time_column option", cfg.DatasetID)
	}
	tIdx, err := table.ColumnIndex(timeCol)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", cfg.DatasetID, err)
	}

	mappings, err := parseSeriesMap(opts["series_map"])
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", cfg.DatasetID, err)
	}
	for i := range mappings {
		idx, err := table.ColumnIndex(mappings[i].column)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", cfg.DatasetID, err)
		}
		mappings[i].idx = idx
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	decimalComma := opts["decimal_comma"] == "true"
	layout := opts["time_layout"]

	frame := make(dataset.Frame, 0, table.NumRows()*len(mappings))
	for i := 0; i < table.NumRows(); i++ {
		t, err := parseTime(table.Cell(i, tIdx), layout, loc)
		if err != nil {
			continue
		}
		for _, m := range mappings {
			value, err := parseValue(table.Cell(i, m.idx), decimalComma)
			if err != nil {
				continue
			}
			frame = append(frame, dataset.Row{
				ObsTime:            t,
				Value:              value,
				InternalSeriesCode: m.code,
			})
		}
	}
	return frame, nil
}

func parseSeriesMap(s string) ([]seriesMapping, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("wideform requires a series_map option")
	}
	var mappings []seriesMapping
	for _, entry := range strings.Split(s, ",") {
		column, code, found := strings.Cut(entry, "=")
		column, code = strings.TrimSpace(column), strings.TrimSpace(code)
		if !found || column == "" || code == "" {
			return nil, fmt.Errorf("malformed series_map entry %q", entry)
		}
		mappings = append(mappings, seriesMapping{column: column, code: code})
	}
	return mappings, nil
}
