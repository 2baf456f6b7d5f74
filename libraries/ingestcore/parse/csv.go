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
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

// CSVParser reads delimited text. Delimiter, header row and character
// encoding come from the source config; provider exports are frequently
// semicolon-separated latin1 with preamble lines above the header.
type CSVParser struct{}

func (p *CSVParser) ID() string { return conf.FormatCSV }

func (p *CSVParser) Parse(src conf.SourceConfig, raw []byte) (*dataset.RawTable, error) {
	decoded, err := decodeCharset(raw, src.Encoding)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(decoded))
	r.Comma = delimiter(src.Delimiter)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}

	headerIdx := 0
	if src.HeaderRow != nil {
		headerIdx = *src.HeaderRow
	}
	if headerIdx >= len(records) {
		return nil, fmt.Errorf("header row %d beyond %d csv lines", headerIdx, len(records))
	}

	columns := records[headerIdx]
	if len(columns) > 0 {
		columns[0] = strings.TrimPrefix(columns[0], "\uFEFF")
	}

	return &dataset.RawTable{
		Columns: columns,
		Rows:    records[headerIdx+1:],
	}, nil
}

func delimiter(s string) rune {
	if s == "" {
		return ','
	}
	return []rune(s)[0]
}

func decodeCharset(raw []byte, name string) ([]byte, error) {
	var enc encoding.Encoding
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return raw, nil
	case "latin1", "iso-8859-1", "iso8859-1":
		enc = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return out, nil
}
