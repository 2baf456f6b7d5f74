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

// Package parse turns raw source bytes into string tables. Parsers are
// registered by name; a dataset config selects one explicitly or falls
// back to the parser named after its source format.
package parse

import (
	"fmt"
	"sort"
	"sync"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

// Parser converts one source payload into a raw table.
type Parser interface {
	ID() string
	Parse(src conf.SourceConfig, raw []byte) (*dataset.RawTable, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Parser{}
)

// Register adds a parser to the registry, replacing any previous parser
// with the same id.
func Register(p Parser) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p.ID()] = p
}

// ForConfig selects the parser for a dataset: the configured plugin name
// first, then the source format.
func ForConfig(cfg *conf.DatasetConfig) (Parser, error) {
	name := cfg.Parse.Plugin
	if name == "" {
		name = cfg.Source.Format
	}
	if name == "" {
		return nil, fmt.Errorf("dataset %s: no parser configured", cfg.DatasetID)
	}

	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("dataset %s: parser %q not registered (have %v)", cfg.DatasetID, name, registeredNames())
	}
	return p, nil
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
	Register(&CSVParser{})
	Register(&XLSXParser{})
}
