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

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
)

func testFetcher(verifySSL bool) *Fetcher {
	return NewFetcher(10*time.Second, verifySSL, logrus.NewEntry(logrus.StandardLogger()))
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fecha;demanda\n2024-01-15;731.25\n"))
	}))
	defer srv.Close()

	res, err := testFetcher(true).Fetch(context.Background(), conf.SourceConfig{
		Kind: conf.SourceKindHTTP,
		URL:  srv.URL + "/exports/demand.csv",
	})
	require.NoError(t, err)

	assert.Equal(t, "fecha;demanda\n2024-01-15;731.25\n", string(res.Data))
	assert.Equal(t, "demand.csv", res.Filename)
	assert.Equal(t, Fingerprint(res.Data), res.SHA256)
	assert.EqualValues(t, len(res.Data), res.Size)
}

func TestFetchHTTPBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher(true).Fetch(context.Background(), conf.SourceConfig{
		Kind: conf.SourceKindHTTP,
		URL:  srv.URL,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailure))
	assert.Contains(t, err.Error(), "404")
}

func TestFetchHTTPSkipVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	src := conf.SourceConfig{Kind: conf.SourceKindHTTP, URL: srv.URL}

	// The self-signed test certificate fails verification...
	_, err := testFetcher(true).Fetch(context.Background(), src)
	require.Error(t, err)

	// ...unless verification is off.
	res, err := testFetcher(false).Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(res.Data))
}

func TestFetchLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reservoir.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0644))

	res, err := testFetcher(true).Fetch(context.Background(), conf.SourceConfig{
		Kind: conf.SourceKindLocal,
		URL:  path,
	})
	require.NoError(t, err)
	assert.Equal(t, "payload", string(res.Data))
	assert.Equal(t, "reservoir.xlsx", res.Filename)
}

func TestFetchLocalMissing(t *testing.T) {
	_, err := testFetcher(true).Fetch(context.Background(), conf.SourceConfig{
		Kind: conf.SourceKindLocal,
		URL:  filepath.Join(t.TempDir(), "absent.csv"),
	})
	require.Error(t, err)
}

func TestFetchUnknownKind(t *testing.T) {
	_, err := testFetcher(true).Fetch(context.Background(), conf.SourceConfig{Kind: "ftp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Fingerprint(nil))
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		Fingerprint([]byte("abc")))
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "demand.csv", filenameFromURL("https://example.com/a/b/demand.csv?x=1"))
	assert.Equal(t, "source", filenameFromURL("https://example.com/"))
	assert.Equal(t, "source", filenameFromURL("https://example.com"))
}
