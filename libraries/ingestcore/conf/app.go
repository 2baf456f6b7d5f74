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

// Package conf loads the application config (TOML, environment overridable)
// and per-dataset configs (YAML, single document or list).
package conf

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
)

// AppConfig describes the runtime environment shared by every dataset:
// where blobs live, which lock table guards runs, how to reach AWS.
type AppConfig struct {
	// StoreURL selects the blobstore: s3://bucket/prefix, gs://bucket/prefix
	// or mem:// for throwaway runs.
	StoreURL string `toml:"store_url"`

	AWSRegion          string `toml:"aws_region" default:"us-east-1"`
	AWSAccessKeyID     string `toml:"aws_access_key_id"`
	AWSSecretAccessKey string `toml:"aws_secret_access_key"`

	// LockTable is the DynamoDB table guarding concurrent runs. Empty
	// disables locking entirely.
	LockTable      string `toml:"lock_table"`
	LockTTLSeconds int    `toml:"lock_ttl_seconds" default:"3600"`

	SNSTopicARN string `toml:"sns_topic_arn"`

	// IndexTolerance bounds the acceptable drift between the primary-key
	// index cardinality and the current manifest's row total before the
	// consistency guard rebuilds.
	IndexTolerance *int `toml:"index_tolerance" default:"10"`

	VerifySSL          *bool `toml:"verify_ssl" default:"true"`
	HTTPTimeoutSeconds int   `toml:"http_timeout_seconds" default:"60"`
}

// LoadAppConfig reads the TOML file at path, applies SILT_* environment
// overrides, then fills remaining zero fields with defaults. An empty path
// configures from environment and defaults alone.
func LoadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing %s: unknown key %q", path, undecoded[0].String())
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, err
	}
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store_url is required (file %q, env SILT_STORE_URL)", path)
	}
	return &cfg, nil
}

func (c *AppConfig) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SILT_STORE_URL"); ok {
		c.StoreURL = v
	}
	if v, ok := lookup("SILT_AWS_REGION"); ok {
		c.AWSRegion = v
	}
	if v, ok := lookup("SILT_AWS_ACCESS_KEY_ID"); ok {
		c.AWSAccessKeyID = v
	}
	if v, ok := lookup("SILT_AWS_SECRET_ACCESS_KEY"); ok {
		c.AWSSecretAccessKey = v
	}
	if v, ok := lookup("SILT_LOCK_TABLE"); ok {
		c.LockTable = v
	}
	if v, ok := lookup("SILT_SNS_TOPIC_ARN"); ok {
		c.SNSTopicARN = v
	}
	if v, ok := lookup("SILT_LOCK_TTL_SECONDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SILT_LOCK_TTL_SECONDS: %w", err)
		}
		c.LockTTLSeconds = n
	}
	if v, ok := lookup("SILT_INDEX_TOLERANCE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SILT_INDEX_TOLERANCE: %w", err)
		}
		c.IndexTolerance = &n
	}
	if v, ok := lookup("SILT_VERIFY_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SILT_VERIFY_SSL: %w", err)
		}
		c.VerifySSL = &b
	}
	if v, ok := lookup("SILT_HTTP_TIMEOUT_SECONDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SILT_HTTP_TIMEOUT_SECONDS: %w", err)
		}
		c.HTTPTimeoutSeconds = n
	}
	return nil
}

// Tolerance returns the configured index drift tolerance.
func (c *AppConfig) Tolerance() int {
	if c.IndexTolerance == nil {
		return 10
	}
	return *c.IndexTolerance
}

// SSLVerify reports whether HTTPS fetches verify certificates.
func (c *AppConfig) SSLVerify() bool {
	return c.VerifySSL == nil || *c.VerifySSL
}

// LockTTL returns the lock expiry as a duration.
func (c *AppConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// HTTPTimeout returns the source fetch timeout as a duration.
func (c *AppConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
