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

package blobstore

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cachedBlob struct {
	data    []byte
	version string
}

// CachingBlobstore wraps a Blobstore with an LRU byte cache over Get for
// keys the predicate accepts. It is meant for immutable blobs (event
// payloads, event manifests): index rebuild and month consolidation read
// the same partitions repeatedly within a run. Writes and deletes through
// the wrapper invalidate the affected key.
type CachingBlobstore struct {
	bs        Blobstore
	cache     *lru.Cache[string, cachedBlob]
	cacheable func(key string) bool
}

var _ Blobstore = &CachingBlobstore{}

// NewCachingBlobstore wraps bs with a cache of at most maxEntries blobs.
// Only keys for which cacheable returns true are retained.
func NewCachingBlobstore(bs Blobstore, maxEntries int, cacheable func(key string) bool) (*CachingBlobstore, error) {
	cache, err := lru.New[string, cachedBlob](maxEntries)
	if err != nil {
		return nil, err
	}
	return &CachingBlobstore{bs: bs, cache: cache, cacheable: cacheable}, nil
}

func (cb *CachingBlobstore) Path() string {
	return cb.bs.Path()
}

func (cb *CachingBlobstore) Exists(ctx context.Context, key string) (bool, error) {
	if _, ok := cb.cache.Get(key); ok {
		return true, nil
	}
	return cb.bs.Exists(ctx, key)
}

func (cb *CachingBlobstore) Get(ctx context.Context, key string) ([]byte, string, error) {
	if entry, ok := cb.cache.Get(key); ok {
		return entry.data, entry.version, nil
	}

	data, version, err := cb.bs.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	if cb.cacheable(key) {
		cb.cache.Add(key, cachedBlob{data: data, version: version})
	}
	return data, version, nil
}

func (cb *CachingBlobstore) Head(ctx context.Context, key string) (BlobInfo, error) {
	if entry, ok := cb.cache.Get(key); ok {
		return BlobInfo{Version: entry.version, Size: int64(len(entry.data))}, nil
	}
	return cb.bs.Head(ctx, key)
}

func (cb *CachingBlobstore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	cb.cache.Remove(key)
	return cb.bs.Put(ctx, key, contentType, data)
}

func (cb *CachingBlobstore) CheckAndPut(ctx context.Context, expectedVersion, key, contentType string, data []byte) (string, error) {
	cb.cache.Remove(key)
	return cb.bs.CheckAndPut(ctx, expectedVersion, key, contentType, data)
}

func (cb *CachingBlobstore) Delete(ctx context.Context, key string) error {
	cb.cache.Remove(key)
	return cb.bs.Delete(ctx, key)
}

func (cb *CachingBlobstore) List(ctx context.Context, prefix string) ([]string, error) {
	return cb.bs.List(ctx, prefix)
}

func (cb *CachingBlobstore) Copy(ctx context.Context, srcKey, dstKey string) (string, error) {
	cb.cache.Remove(dstKey)
	return cb.bs.Copy(ctx, srcKey, dstKey)
}
