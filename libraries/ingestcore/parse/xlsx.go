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

package parse

import (
	"fmt"
	"sort"

	"github.com/tealeg/xlsx"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

// XLSXParser reads one worksheet of an Excel workbook. The sheet is
// selected by name, defaulting to the first; cell values are read in
// their formatted string form.
type XLSXParser struct{}

func (p *XLSXParser) ID() string { return conf.FormatXLSX }

func (p *XLSXParser) Parse(src conf.SourceConfig, raw []byte) (*dataset.RawTable, error) {
	file, err := xlsx.OpenBinary(raw)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}

	sheet, err := selectSheet(file, src.Sheet)
	if err != nil {
		return nil, err
	}

	headerIdx := 0
	if src.HeaderRow != nil {
		headerIdx = *src.HeaderRow
	}
	if headerIdx >= len(sheet.Rows) {
		return nil, fmt.Errorf("header row %d beyond %d sheet rows", headerIdx, len(sheet.Rows))
	}

	table := &dataset.RawTable{Columns: cellStrings(sheet.Rows[headerIdx])}
	for _, row := range sheet.Rows[headerIdx+1:] {
		table.Rows = append(table.Rows, cellStrings(row))
	}
	return table, nil
}

func selectSheet(file *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name == "" {
		if len(file.Sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		return file.Sheets[0], nil
	}
	sheet, ok := file.Sheet[name]
	if !ok {
		names := make([]string, 0, len(file.Sheet))
		for n := range file.Sheet {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("sheet %q not in workbook (have %v)", name, names)
	}
	return sheet, nil
}

func cellStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}
