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

package publish

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siltdata/silt/libraries/ingestcore/keyindex"
	"github.com/siltdata/silt/libraries/ingestcore/manifest"
	"github.com/siltdata/silt/store/blobstore"
)

const testDataset = "gas_demand_es"

var testKeys = []string{"dataset_id", "internal_series_code", "obs_date"}

func testPublisher(bs blobstore.Blobstore) *Publisher {
	p := NewPublisher(bs, logrus.NewEntry(logrus.StandardLogger()))
	p.now = func() time.Time { return time.Date(2024, 1, 16, 4, 0, 0, 0, time.UTC) }
	return p
}

func request(version string, prev, updated []string) Request {
	return Request{
		DatasetID: testDataset,
		VersionTS: version,
		Source: manifest.SourceFile{
			SHA256: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
			Size:   2048,
		},
		EventKeys: []string{
			"datasets/gas_demand_es/events/" + version + "/data/year=2024/month=01/part-0.parquet",
		},
		RowsAdded:    len(updated) - len(prev),
		PrimaryKeys:  testKeys,
		PrevIndex:    prev,
		UpdatedIndex: updated,
	}
}

func TestPublishColdStart(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")
	updated := []string{"h1", "h2", "h3"}

	res, err := testPublisher(bs).Publish(ctx, request("2024-01-15T04-00-00", nil, updated))
	require.NoError(t, err)
	assert.True(t, res.Published)
	assert.Equal(t, "", res.Reason)

	ptr, _, err := manifest.ReadPointer(ctx, bs, testDataset)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	assert.Equal(t, "2024-01-15T04-00-00", ptr.CurrentVersion)

	m, err := manifest.Read(ctx, bs, testDataset, "2024-01-15T04-00-00")
	require.NoError(t, err)
	assert.Equal(t, 3, m.Outputs.RowsTotal)
	assert.Equal(t, 3, m.Outputs.RowsAddedThisVersion)
	assert.Equal(t, testKeys, m.Index.KeyColumns)
	assert.Equal(t, "2024-01-16T04:00:00Z", m.CreatedAt)

	index, err := keyindex.Read(ctx, bs, testDataset)
	require.NoError(t, err)
	assert.Equal(t, updated, index)
}

func TestPublishAdvance(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")
	p := testPublisher(bs)

	first := []string{"h1", "h2", "h3"}
	_, err := p.Publish(ctx, request("2024-01-15T04-00-00", nil, first))
	require.NoError(t, err)

	second := append(append([]string{}, first...), "h4")
	res, err := p.Publish(ctx, request("2024-01-16T04-00-00", first, second))
	require.NoError(t, err)
	assert.True(t, res.Published)

	ptr, _, err := manifest.ReadPointer(ctx, bs, testDataset)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-16T04-00-00", ptr.CurrentVersion)

	index, err := keyindex.Read(ctx, bs, testDataset)
	require.NoError(t, err)
	assert.Equal(t, second, index)
}

// racingBlobstore advances the pointer between the publisher's read and
// its compare-and-set, as a concurrent run would.
type racingBlobstore struct {
	blobstore.Blobstore
	raced bool
}

func (r *racingBlobstore) CheckAndPut(ctx context.Context, expected, key, contentType string, data []byte) (string, error) {
	if !r.raced && strings.HasSuffix(key, "current/manifest.json") {
		r.raced = true
		body := []byte(`{"dataset_id":"gas_demand_es","current_version":"2024-01-16T03-59-00"}`)
		if _, err := r.Blobstore.Put(ctx, key, contentType, body); err != nil {
			return "", err
		}
	}
	return r.Blobstore.CheckAndPut(ctx, expected, key, contentType, data)
}

func TestPublishCASConflict(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewInMemoryBlobstore("test")

	first := []string{"h1", "h2", "h3"}
	_, err := testPublisher(mem).Publish(ctx, request("2024-01-15T04-00-00", nil, first))
	require.NoError(t, err)

	loser := testPublisher(&racingBlobstore{Blobstore: mem})
	res, err := loser.Publish(ctx, request("2024-01-16T04-00-00", first, append(append([]string{}, first...), "h4")))
	require.NoError(t, err)
	assert.False(t, res.Published)
	assert.Equal(t, ReasonCASConflict, res.Reason)

	// The interloper's pointer stands and the loser never touched the index.
	ptr, _, err := manifest.ReadPointer(ctx, mem, testDataset)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-16T03-59-00", ptr.CurrentVersion)

	index, err := keyindex.Read(ctx, mem, testDataset)
	require.NoError(t, err)
	assert.Equal(t, first, index)

	// The loser's manifest was written before the race and stays orphaned.
	m, err := manifest.Read(ctx, mem, testDataset, "2024-01-16T04-00-00")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-16T04-00-00", m.Version)
}

// failingBlobstore injects a Put failure for keys containing failSubstr.
type failingBlobstore struct {
	blobstore.Blobstore
	failSubstr string
}

func (f failingBlobstore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if strings.Contains(key, f.failSubstr) {
		return "", errors.New("injected put failure")
	}
	return f.Blobstore.Put(ctx, key, contentType, data)
}

func TestPublishIndexWriteFailureLeavesPointerAdvanced(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewInMemoryBlobstore("test")

	p := testPublisher(failingBlobstore{Blobstore: mem, failSubstr: "index/keys.parquet"})
	_, err := p.Publish(ctx, request("2024-01-15T04-00-00", nil, []string{"h1"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write primary-key index")

	// This is the divergence window the consistency guard exists for.
	ptr, _, err := manifest.ReadPointer(ctx, mem, testDataset)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	assert.Equal(t, "2024-01-15T04-00-00", ptr.CurrentVersion)

	index, err := keyindex.Read(ctx, mem, testDataset)
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestPublishZeroRows(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")
	p := testPublisher(bs)

	first := []string{"h1"}
	_, err := p.Publish(ctx, request("2024-01-15T04-00-00", nil, first))
	require.NoError(t, err)

	req := request("2024-01-16T04-00-00", first, first)
	req.EventKeys = nil
	res, err := p.Publish(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Published)

	m, err := manifest.Read(ctx, bs, testDataset, "2024-01-16T04-00-00")
	require.NoError(t, err)
	assert.Equal(t, 0, m.Outputs.RowsAddedThisVersion)
	assert.Equal(t, 1, m.Outputs.RowsTotal)
	assert.Empty(t, m.Outputs.Files)
}
