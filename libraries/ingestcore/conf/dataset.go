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

package conf

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

// Source kinds and formats accepted in dataset configs.
const (
	SourceKindHTTP  = "http"
	SourceKindLocal = "local"

	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// SourceConfig locates and shapes the raw input.
type SourceConfig struct {
	Kind      string `yaml:"kind"`
	URL       string `yaml:"url,omitempty"`
	Format    string `yaml:"format,omitempty"`
	Sheet     string `yaml:"sheet,omitempty"`
	HeaderRow *int   `yaml:"header_row,omitempty"`
	Delimiter string `yaml:"delimiter,omitempty"`
	Encoding  string `yaml:"encoding,omitempty"`
}

// ParseConfig selects a registered parser by name; empty picks the parser
// matching the source format.
type ParseConfig struct {
	Plugin string `yaml:"plugin,omitempty"`
}

// NormalizeConfig selects and parameterizes the normalizer that turns a
// raw table into canonical rows.
type NormalizeConfig struct {
	Plugin      string            `yaml:"plugin,omitempty"`
	PrimaryKeys []string          `yaml:"primary_keys"`
	Timezone    string            `yaml:"timezone,omitempty"`
	Options     map[string]string `yaml:"options,omitempty"`
}

// NotifyConfig routes success notifications for one dataset.
type NotifyConfig struct {
	SNSTopicARN string `yaml:"sns_topic_arn,omitempty"`
}

// DatasetConfig is the full recipe for one dataset.
type DatasetConfig struct {
	DatasetID string `yaml:"dataset_id"`
	Provider  string `yaml:"provider,omitempty"`
	Frequency string `yaml:"frequency"`
	Unit      string `yaml:"unit,omitempty"`

	// LagDays trims rows younger than the provider's settlement lag from
	// the incremental window.
	LagDays int `yaml:"lag_days"`

	FullReload   bool `yaml:"full_reload,omitempty"`
	PublishEmpty bool `yaml:"publish_empty,omitempty"`

	// LockTable overrides the application lock table for this dataset.
	LockTable string `yaml:"lock_table,omitempty"`

	Source    SourceConfig    `yaml:"source"`
	Parse     ParseConfig     `yaml:"parse,omitempty"`
	Normalize NormalizeConfig `yaml:"normalize"`
	Notify    *NotifyConfig   `yaml:"notify,omitempty"`
}

// LoadDatasetConfig parses a dataset config document. The data may hold a
// single dataset or a list; with a list, datasetID selects the entry.
func LoadDatasetConfig(data []byte, datasetID string) (*DatasetConfig, error) {
	var many []DatasetConfig
	if err := yaml.UnmarshalStrict(data, &many); err == nil {
		for i := range many {
			if many[i].DatasetID == datasetID {
				cfg := many[i]
				return &cfg, cfg.Validate()
			}
		}
		return nil, fmt.Errorf("dataset %q not found in config", datasetID)
	}

	var one DatasetConfig
	if err := yaml.UnmarshalStrict(data, &one); err != nil {
		return nil, fmt.Errorf("parsing dataset config: %w", err)
	}
	if datasetID != "" && one.DatasetID != datasetID {
		return nil, fmt.Errorf("config holds dataset %q, not %q", one.DatasetID, datasetID)
	}
	return &one, one.Validate()
}

// LoadDatasetConfigFile reads and parses the config at path.
func LoadDatasetConfigFile(path, datasetID string) (*DatasetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadDatasetConfig(data, datasetID)
}

// DatasetIDs lists every dataset id present in a config document.
func DatasetIDs(data []byte) ([]string, error) {
	var many []DatasetConfig
	if err := yaml.UnmarshalStrict(data, &many); err == nil {
		ids := make([]string, len(many))
		for i := range many {
			ids[i] = many[i].DatasetID
		}
		return ids, nil
	}

	var one DatasetConfig
	if err := yaml.UnmarshalStrict(data, &one); err != nil {
		return nil, fmt.Errorf("parsing dataset config: %w", err)
	}
	return []string{one.DatasetID}, nil
}

var canonicalColumns = func() map[string]bool {
	m := make(map[string]bool, len(dataset.Columns))
	for _, c := range dataset.Columns {
		m[c] = true
	}
	return m
}()

// Validate rejects configs that cannot produce a publishable dataset.
func (c *DatasetConfig) Validate() error {
	if c.DatasetID == "" {
		return fmt.Errorf("dataset_id is required")
	}
	if len(c.Normalize.PrimaryKeys) == 0 {
		return fmt.Errorf("dataset %s: normalize.primary_keys is required", c.DatasetID)
	}
	for _, pk := range c.Normalize.PrimaryKeys {
		if !canonicalColumns[pk] {
			return fmt.Errorf("dataset %s: primary key %q is not a canonical column", c.DatasetID, pk)
		}
	}
	switch c.Source.Kind {
	case SourceKindHTTP:
		if c.Source.URL == "" {
			return fmt.Errorf("dataset %s: source.url is required for kind %q", c.DatasetID, SourceKindHTTP)
		}
	case SourceKindLocal:
		if c.Source.URL == "" {
			return fmt.Errorf("dataset %s: source.url is required for kind %q", c.DatasetID, SourceKindLocal)
		}
	default:
		return fmt.Errorf("dataset %s: unknown source.kind %q", c.DatasetID, c.Source.Kind)
	}
	switch c.Source.Format {
	case "", FormatCSV, FormatXLSX:
	default:
		return fmt.Errorf("dataset %s: unknown source.format %q", c.DatasetID, c.Source.Format)
	}
	if c.LagDays < 0 {
		return fmt.Errorf("dataset %s: lag_days must be >= 0", c.DatasetID)
	}
	if c.Normalize.Timezone != "" {
		if _, err := time.LoadLocation(c.Normalize.Timezone); err != nil {
			return fmt.Errorf("dataset %s: normalize.timezone: %w", c.DatasetID, err)
		}
	}
	return nil
}

// Location returns the dataset's timezone, defaulting to UTC.
func (c *DatasetConfig) Location() (*time.Location, error) {
	if c.Normalize.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Normalize.Timezone)
}

// NotifyTopic returns the SNS topic for this dataset, empty when
// notifications are off.
func (c *DatasetConfig) NotifyTopic(app *AppConfig) string {
	if c.Notify != nil && c.Notify.SNSTopicARN != "" {
		return c.Notify.SNSTopicARN
	}
	if app != nil {
		return app.SNSTopicARN
	}
	return ""
}

// LockTableName returns the lock table guarding this dataset, empty when
// locking is off.
func (c *DatasetConfig) LockTableName(app *AppConfig) string {
	if c.LockTable != "" {
		return c.LockTable
	}
	if app != nil {
		return app.LockTable
	}
	return ""
}
