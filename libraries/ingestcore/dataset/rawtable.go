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

import "fmt"

// RawTable is the untyped output of a format parser: a header and string
// cells, one slice per source row. Normalizers turn it into a Frame.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of the named column.
func (t *RawTable) ColumnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q not in table (have %v)", name, t.Columns)
}

// Cell returns the value at (row, col), tolerating ragged rows.
func (t *RawTable) Cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// NumRows returns the number of data rows.
func (t *RawTable) NumRows() int {
	return len(t.Rows)
}
