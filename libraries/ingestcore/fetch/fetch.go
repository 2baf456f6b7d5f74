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

// Package fetch retrieves raw source bytes over HTTP or from the local
// filesystem and fingerprints them for change detection.
package fetch

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
)

// ErrFetchFailure marks a non-2xx response from a source.
var ErrFetchFailure = errors.New("fetch failed")

// Result is one fetched source file.
type Result struct {
	Data     []byte
	Filename string
	SHA256   string
	Size     int64
}

// Fetcher retrieves source files. Safe for concurrent use.
type Fetcher struct {
	client *http.Client
	lgr    *logrus.Entry
}

// NewFetcher builds a fetcher with the given request timeout. With
// verifySSL false, certificate errors are ignored; some providers serve
// data from hosts with broken chains.
func NewFetcher(timeout time.Duration, verifySSL bool, lgr *logrus.Entry) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout, Transport: transport},
		lgr:    lgr,
	}
}

// Fetch retrieves the configured source and fingerprints it.
func (f *Fetcher) Fetch(ctx context.Context, src conf.SourceConfig) (*Result, error) {
	switch src.Kind {
	case conf.SourceKindHTTP:
		return f.fetchHTTP(ctx, src.URL)
	case conf.SourceKindLocal:
		return fetchLocal(src.URL)
	default:
		return nil, errors.Errorf("unknown source kind %q", src.Kind)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) (*Result, error) {
	f.lgr.WithField("url", rawURL).Info("fetching source")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrFetchFailure, "%s returned status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", rawURL)
	}
	return newResult(data, filenameFromURL(rawURL)), nil
}

func fetchLocal(p string) (*Result, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return newResult(data, filepath.Base(p)), nil
}

func newResult(data []byte, filename string) *Result {
	return &Result{
		Data:     data,
		Filename: filename,
		SHA256:   Fingerprint(data),
		Size:     int64(len(data)),
	}
}

// Fingerprint computes the SHA256 of a source payload, lowercase hex.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "source"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "source"
	}
	return base
}
