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

// Package normalize converts raw string tables into canonical frames.
// Normalizers are registered by name and parameterized through the
// dataset config's options map; rows with unparseable required fields
// are dropped rather than failing the run.
package normalize

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

// DefaultPlugin handles the common one-observation-per-line shape.
const DefaultPlugin = "longform"

// Normalizer turns a raw table into canonical rows.
type Normalizer interface {
	ID() string
	Normalize(cfg *conf.DatasetConfig, table *dataset.RawTable) (dataset.Frame, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Normalizer{}
)

// Register adds a normalizer to the registry, replacing any previous one
// with the same id.
func Register(n Normalizer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[n.ID()] = n
}

// ForConfig selects the normalizer for a dataset, defaulting to longform.
func ForConfig(cfg *conf.DatasetConfig) (Normalizer, error) {
	name := cfg.Normalize.Plugin
	if name == "" {
		name = DefaultPlugin
	}

	registryMu.RLock()
	defer registryMu.RUnlock()
	n, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("dataset %s: normalizer %q not registered (have %v)", cfg.DatasetID, name, registeredNames())
	}
	return n, nil
}

func registeredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(&Longform{})
	Register(&Wideform{})
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// parseTime parses s in loc. With an explicit layout only that layout is
// tried; otherwise the common provider layouts are tried in order.
func parseTime(s, layout string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if layout != "" {
		return time.ParseInLocation(layout, s, loc)
	}
	for _, l := range timeLayouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// parseValue parses a numeric cell. With decimalComma, '.' groups
// thousands and ',' marks the decimal point; otherwise ',' groups
// thousands. Decimal parsing also accepts scientific notation.
func parseValue(s string, decimalComma bool) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	if decimalComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
