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

package manifest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siltdata/silt/libraries/ingestcore/codec"
	"github.com/siltdata/silt/store/blobstore"
)

func sampleManifest() *Manifest {
	src := SourceFile{
		Path:   "datasets/gas_demand_es/runs/2024-01-16T04-00-00/raw/demanda.csv",
		SHA256: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		Size:   2048,
	}
	keys := []string{
		"datasets/gas_demand_es/events/2024-01-16T04-00-00/data/year=2024/month=01/part-0.parquet",
	}
	pks := []string{"dataset_id", "internal_series_code", "obs_date"}
	created := time.Date(2024, 1, 16, 4, 0, 0, 0, time.UTC)
	return Build("gas_demand_es", "2024-01-16T04-00-00", src, keys, 24, 744, pks, created)
}

func TestBuild(t *testing.T) {
	m := sampleManifest()

	assert.Equal(t, "gas_demand_es", m.DatasetID)
	assert.Equal(t, "2024-01-16T04-00-00", m.Version)
	assert.Equal(t, "2024-01-16T04:00:00Z", m.CreatedAt)
	require.Len(t, m.Source.Files, 1)
	assert.Equal(t, int64(2048), m.Source.Files[0].Size)
	assert.Equal(t, "datasets/gas_demand_es/events/2024-01-16T04-00-00/data/", m.Outputs.DataPrefix)
	assert.Len(t, m.Outputs.Files, 1)
	assert.Equal(t, 744, m.Outputs.RowsTotal)
	assert.Equal(t, 24, m.Outputs.RowsAddedThisVersion)
	assert.Equal(t, "datasets/gas_demand_es/index/keys.parquet", m.Index.Path)
	assert.Equal(t, []string{"dataset_id", "internal_series_code", "obs_date"}, m.Index.KeyColumns)
	assert.Equal(t, "key_hash", m.Index.HashColumn)
}

func TestBuildNonUTCCreatedAt(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	m := Build("gas_demand_es", "2024-01-16T04-00-00", SourceFile{}, nil, 0, 0, nil,
		time.Date(2024, 1, 16, 5, 0, 0, 0, loc))
	assert.Equal(t, "2024-01-16T04:00:00Z", m.CreatedAt)
}

func TestManifestJSONFieldNames(t *testing.T) {
	data, err := codec.MarshalJSON(sampleManifest())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, codec.UnmarshalJSON(data, &fields))
	for _, k := range []string{"dataset_id", "version", "created_at", "source", "outputs", "index"} {
		assert.Contains(t, fields, k)
	}

	outputs, ok := fields["outputs"].(map[string]any)
	require.True(t, ok)
	for _, k := range []string{"data_prefix", "files", "rows_total", "rows_added_this_version"} {
		assert.Contains(t, outputs, k)
	}

	index, ok := fields["index"].(map[string]any)
	require.True(t, ok)
	for _, k := range []string{"path", "key_columns", "hash_column"} {
		assert.Contains(t, index, k)
	}
}

func TestSourceFilePathOmitted(t *testing.T) {
	data, err := codec.MarshalJSON(SourceFile{SHA256: "abc", Size: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "path")
}

func TestWriteRead(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")
	m := sampleManifest()

	require.NoError(t, Write(ctx, bs, m))

	exists, err := bs.Exists(ctx, "datasets/gas_demand_es/events/2024-01-16T04-00-00/manifest.json")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := Read(ctx, bs, "gas_demand_es", "2024-01-16T04-00-00")
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestReadMissing(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")

	_, err := Read(ctx, bs, "gas_demand_es", "2024-01-16T04-00-00")
	assert.True(t, blobstore.IsNotFoundError(err))
}

func TestReadPointerAbsent(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")

	p, ver, err := ReadPointer(ctx, bs, "gas_demand_es")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, "", ver)
}

func TestCASPointerCreate(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")
	p := &Pointer{DatasetID: "gas_demand_es", CurrentVersion: "2024-01-16T04-00-00"}

	ver, err := CASPointer(ctx, bs, p, "")
	require.NoError(t, err)
	require.NotEqual(t, "", ver)

	got, gotVer, err := ReadPointer(ctx, bs, "gas_demand_es")
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, ver, gotVer)
}

func TestCASPointerAdvance(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")

	ver, err := CASPointer(ctx, bs, &Pointer{DatasetID: "gas_demand_es", CurrentVersion: "2024-01-16T04-00-00"}, "")
	require.NoError(t, err)

	_, err = CASPointer(ctx, bs, &Pointer{DatasetID: "gas_demand_es", CurrentVersion: "2024-01-17T04-00-00"}, ver)
	require.NoError(t, err)

	got, _, err := ReadPointer(ctx, bs, "gas_demand_es")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-17T04-00-00", got.CurrentVersion)
}

func TestCASPointerConflict(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")

	staleVer, err := CASPointer(ctx, bs, &Pointer{DatasetID: "gas_demand_es", CurrentVersion: "2024-01-16T04-00-00"}, "")
	require.NoError(t, err)

	_, err = CASPointer(ctx, bs, &Pointer{DatasetID: "gas_demand_es", CurrentVersion: "2024-01-17T04-00-00"}, staleVer)
	require.NoError(t, err)

	// A second writer still holding the stale blob version must lose.
	_, err = CASPointer(ctx, bs, &Pointer{DatasetID: "gas_demand_es", CurrentVersion: "2024-01-17T05-00-00"}, staleVer)
	assert.True(t, blobstore.IsCheckAndPutError(err))

	got, _, err := ReadPointer(ctx, bs, "gas_demand_es")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-17T04-00-00", got.CurrentVersion)
}

func TestCASPointerCreateRace(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")

	_, err := CASPointer(ctx, bs, &Pointer{DatasetID: "gas_demand_es", CurrentVersion: "2024-01-16T04-00-00"}, "")
	require.NoError(t, err)

	_, err = CASPointer(ctx, bs, &Pointer{DatasetID: "gas_demand_es", CurrentVersion: "2024-01-16T05-00-00"}, "")
	assert.True(t, blobstore.IsCheckAndPutError(err))
}
