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

package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siltdata/silt/libraries/ingestcore/dataset"
	"github.com/siltdata/silt/store/blobstore"
)

// seedEvents writes v1 (Jan), v2 (Jan+Feb) and v3 (Feb) and returns the
// populated store.
func seedEvents(t *testing.T) *blobstore.InMemoryBlobstore {
	t.Helper()
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")
	w := testWriter(bs)

	jan := obsRow("GAS_ES", time.Date(2024, 1, 14, 10, 0, 0, 0, time.UTC), 731.2)
	feb := obsRow("GAS_ES", time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), 699.4)

	_, _, err := w.Write(ctx, testDataset, v1, dataset.Frame{jan})
	require.NoError(t, err)
	_, _, err = w.Write(ctx, testDataset, v2, dataset.Frame{jan, feb})
	require.NoError(t, err)
	_, _, err = w.Write(ctx, testDataset, v3, dataset.Frame{feb})
	require.NoError(t, err)
	return bs
}

func TestListVersions(t *testing.T) {
	ctx := context.Background()
	bs := seedEvents(t)

	all, err := ListVersions(ctx, bs, testDataset, "")
	require.NoError(t, err)
	assert.Equal(t, []string{v1, v2, v3}, all)

	bounded, err := ListVersions(ctx, bs, testDataset, v2)
	require.NoError(t, err)
	assert.Equal(t, []string{v1, v2}, bounded)
}

func TestListVersionsEmpty(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")

	versions, err := ListVersions(ctx, bs, testDataset, "")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestReadVersionRows(t *testing.T) {
	ctx := context.Background()
	bs := seedEvents(t)

	rows, err := ReadVersionRows(ctx, bs, testDataset, v2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Partitions concatenate in key order, January before February.
	assert.Equal(t, 731.2, rows[0].Value)
	assert.Equal(t, 699.4, rows[1].Value)
}

func TestReadPartitionRows(t *testing.T) {
	ctx := context.Background()
	bs := seedEvents(t)

	rows, err := ReadPartitionRows(ctx, bs, testDataset, v2, dataset.YearMonth{Year: 2024, Month: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 699.4, rows[0].Value)

	_, err = ReadPartitionRows(ctx, bs, testDataset, v1, dataset.YearMonth{Year: 2024, Month: 2})
	assert.True(t, blobstore.IsNotFoundError(err))
}

func TestReadMonthIndexAbsent(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("test")

	idx, err := ReadMonthIndex(ctx, bs, testDataset, dataset.YearMonth{Year: 2024, Month: 1})
	require.NoError(t, err)
	assert.Nil(t, idx)
}

func TestRebuildMonthIndex(t *testing.T) {
	ctx := context.Background()
	bs := seedEvents(t)
	jan := dataset.YearMonth{Year: 2024, Month: 1}

	// Drop the maintained index to force a reconstruction from listing.
	require.NoError(t, bs.Delete(ctx, "datasets/gas_demand_es/events/index/2024/01/versions.json"))

	rebuilt, err := RebuildMonthIndex(ctx, bs, testDataset, jan, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{v1, v2}, rebuilt.Versions)
	assert.Equal(t, 2, rebuilt.EventCount)
	assert.Equal(t, "2024-03-01T00:00:00Z", rebuilt.LastUpdated)

	persisted, err := ReadMonthIndex(ctx, bs, testDataset, jan)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, rebuilt.Versions, persisted.Versions)
}

func TestRebuildMonthIndexEmptyMonth(t *testing.T) {
	ctx := context.Background()
	bs := seedEvents(t)

	rebuilt, err := RebuildMonthIndex(ctx, bs, testDataset, dataset.YearMonth{Year: 2024, Month: 3},
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, rebuilt.Versions)
	assert.Equal(t, 0, rebuilt.EventCount)
}

func TestKnownMonths(t *testing.T) {
	ctx := context.Background()
	bs := seedEvents(t)

	months, err := KnownMonths(ctx, bs, testDataset)
	require.NoError(t, err)
	assert.Equal(t, []dataset.YearMonth{{Year: 2024, Month: 1}, {Year: 2024, Month: 2}}, months)
}
