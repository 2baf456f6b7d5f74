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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/siltdata/silt/store/blobstore"
)

// Blobstore operation label values.
const (
	opExists      = "exists"
	opGet         = "get"
	opHead        = "head"
	opPut         = "put"
	opCheckAndPut = "check_and_put"
	opDelete      = "delete"
	opList        = "list"
	opCopy        = "copy"
)

// instrumentedBlobstore counts every request against the wrapped store.
type instrumentedBlobstore struct {
	bs       blobstore.Blobstore
	requests *prometheus.CounterVec
}

var _ blobstore.Blobstore = &instrumentedBlobstore{}

// Instrument wraps bs so every operation increments the request counter
// labeled with the operation name.
func (c *Collector) Instrument(bs blobstore.Blobstore) blobstore.Blobstore {
	return &instrumentedBlobstore{bs: bs, requests: c.blobRequests}
}

func (i *instrumentedBlobstore) Path() string {
	return i.bs.Path()
}

func (i *instrumentedBlobstore) Exists(ctx context.Context, key string) (bool, error) {
	i.requests.WithLabelValues(opExists).Inc()
	return i.bs.Exists(ctx, key)
}

func (i *instrumentedBlobstore) Get(ctx context.Context, key string) ([]byte, string, error) {
	i.requests.WithLabelValues(opGet).Inc()
	return i.bs.Get(ctx, key)
}

func (i *instrumentedBlobstore) Head(ctx context.Context, key string) (blobstore.BlobInfo, error) {
	i.requests.WithLabelValues(opHead).Inc()
	return i.bs.Head(ctx, key)
}

func (i *instrumentedBlobstore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	i.requests.WithLabelValues(opPut).Inc()
	return i.bs.Put(ctx, key, contentType, data)
}

func (i *instrumentedBlobstore) CheckAndPut(ctx context.Context, expectedVersion, key, contentType string, data []byte) (string, error) {
	i.requests.WithLabelValues(opCheckAndPut).Inc()
	return i.bs.CheckAndPut(ctx, expectedVersion, key, contentType, data)
}

func (i *instrumentedBlobstore) Delete(ctx context.Context, key string) error {
	i.requests.WithLabelValues(opDelete).Inc()
	return i.bs.Delete(ctx, key)
}

func (i *instrumentedBlobstore) List(ctx context.Context, prefix string) ([]string, error) {
	i.requests.WithLabelValues(opList).Inc()
	return i.bs.List(ctx, prefix)
}

func (i *instrumentedBlobstore) Copy(ctx context.Context, srcKey, dstKey string) (string, error) {
	i.requests.WithLabelValues(opCopy).Inc()
	return i.bs.Copy(ctx, srcKey, dstKey)
}
