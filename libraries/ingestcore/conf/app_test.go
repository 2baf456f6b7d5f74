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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppConfigDefaults(t *testing.T) {
	path := writeTempFile(t, "app.toml", `store_url = "mem://"`)

	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mem://", cfg.StoreURL)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, time.Hour, cfg.LockTTL())
	assert.Equal(t, 10, cfg.Tolerance())
	assert.True(t, cfg.SSLVerify())
	assert.Equal(t, time.Minute, cfg.HTTPTimeout())
	assert.Empty(t, cfg.LockTable)
}

func TestLoadAppConfigExplicitValues(t *testing.T) {
	path := writeTempFile(t, "app.toml", `
store_url = "s3://silt-datasets/prod"
aws_region = "eu-west-1"
lock_table = "silt-locks"
lock_ttl_seconds = 600
sns_topic_arn = "arn:aws:sns:eu-west-1:123456789012:silt-updates.fifo"
index_tolerance = 0
verify_ssl = false
http_timeout_seconds = 15
`)

	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "s3://silt-datasets/prod", cfg.StoreURL)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
	assert.Equal(t, "silt-locks", cfg.LockTable)
	assert.Equal(t, 10*time.Minute, cfg.LockTTL())
	assert.Equal(t, "arn:aws:sns:eu-west-1:123456789012:silt-updates.fifo", cfg.SNSTopicARN)
	assert.Equal(t, 0, cfg.Tolerance())
	assert.False(t, cfg.SSLVerify())
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout())
}

func TestLoadAppConfigUnknownKey(t *testing.T) {
	path := writeTempFile(t, "app.toml", `
store_url = "mem://"
bukcet = "typo"
`)

	_, err := LoadAppConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestLoadAppConfigRequiresStoreURL(t *testing.T) {
	path := writeTempFile(t, "app.toml", `aws_region = "eu-west-1"`)

	_, err := LoadAppConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store_url")
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"SILT_STORE_URL":            "gs://silt-datasets",
		"SILT_AWS_REGION":           "eu-central-1",
		"SILT_LOCK_TABLE":           "silt-locks-staging",
		"SILT_LOCK_TTL_SECONDS":     "120",
		"SILT_INDEX_TOLERANCE":      "3",
		"SILT_VERIFY_SSL":           "false",
		"SILT_HTTP_TIMEOUT_SECONDS": "5",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := AppConfig{StoreURL: "mem://", AWSRegion: "us-east-1"}
	require.NoError(t, cfg.applyEnv(lookup))

	assert.Equal(t, "gs://silt-datasets", cfg.StoreURL)
	assert.Equal(t, "eu-central-1", cfg.AWSRegion)
	assert.Equal(t, "silt-locks-staging", cfg.LockTable)
	assert.Equal(t, 120, cfg.LockTTLSeconds)
	assert.Equal(t, 3, cfg.Tolerance())
	assert.False(t, cfg.SSLVerify())
	assert.Equal(t, 5, cfg.HTTPTimeoutSeconds)
}

func TestApplyEnvBadInt(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "SILT_LOCK_TTL_SECONDS" {
			return "soon", true
		}
		return "", false
	}

	var cfg AppConfig
	err := cfg.applyEnv(lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SILT_LOCK_TTL_SECONDS")
}
