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

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siltdata/silt/store/blobstore"
)

func TestRecordRunCompleted(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordRun("gas_demand_es", "completed", 24, 3*time.Second)
	c.RecordRun("gas_demand_es", "completed", 8, time.Second)
	c.RecordRun("gas_demand_es", "no_change", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runs.WithLabelValues("gas_demand_es", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("gas_demand_es", "no_change")))
	assert.Equal(t, 32.0, testutil.ToFloat64(c.rowsAdded.WithLabelValues("gas_demand_es")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.casConflicts.WithLabelValues("gas_demand_es")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.runDuration))
}

func TestRecordRunCASConflict(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordRun("gas_demand_es", "cas_conflict", 0, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("gas_demand_es", "cas_conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.casConflicts.WithLabelValues("gas_demand_es")))
}

func TestRecordRunSeparatesDatasets(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordRun("gas_demand_es", "completed", 24, time.Second)
	c.RecordRun("power_prices_fr", "completed", 7, time.Second)

	assert.Equal(t, 24.0, testutil.ToFloat64(c.rowsAdded.WithLabelValues("gas_demand_es")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.rowsAdded.WithLabelValues("power_prices_fr")))
}

func TestInstrumentCountsOperations(t *testing.T) {
	ctx := context.Background()
	c := NewCollector(prometheus.NewRegistry())
	bs := c.Instrument(blobstore.NewInMemoryBlobstore("mem://test"))

	_, err := bs.Put(ctx, "a/b", blobstore.ContentTypeJSON, []byte("{}"))
	require.NoError(t, err)
	_, err = bs.Put(ctx, "a/c", blobstore.ContentTypeJSON, []byte("{}"))
	require.NoError(t, err)
	_, err = blobstore.GetBytes(ctx, bs, "a/b")
	require.NoError(t, err)
	keys, err := bs.List(ctx, "a/")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	_, err = bs.Copy(ctx, "a/b", "a/d")
	require.NoError(t, err)
	require.NoError(t, bs.Delete(ctx, "a/d"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.blobRequests.WithLabelValues(opPut)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.blobRequests.WithLabelValues(opGet)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.blobRequests.WithLabelValues(opList)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.blobRequests.WithLabelValues(opCopy)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.blobRequests.WithLabelValues(opDelete)))
}

func TestInstrumentPreservesErrors(t *testing.T) {
	ctx := context.Background()
	c := NewCollector(prometheus.NewRegistry())
	bs := c.Instrument(blobstore.NewInMemoryBlobstore("mem://test"))

	_, _, err := bs.Get(ctx, "missing")
	assert.True(t, blobstore.IsNotFoundError(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.blobRequests.WithLabelValues(opGet)))
}
