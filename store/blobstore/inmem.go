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
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InMemoryBlobstore provides an in memory implementation of the Blobstore
// interface. It is the reference implementation for the contract tests and
// the test double for every component above the store.
type InMemoryBlobstore struct {
	path     string
	mutex    sync.RWMutex
	blobs    map[string][]byte
	versions map[string]string
}

var _ Blobstore = &InMemoryBlobstore{}

// NewInMemoryBlobstore creates an instance of an InMemoryBlobstore
func NewInMemoryBlobstore(path string) *InMemoryBlobstore {
	return &InMemoryBlobstore{
		path:     path,
		blobs:    make(map[string][]byte),
		versions: make(map[string]string),
	}
}

func (bs *InMemoryBlobstore) Path() string {
	return bs.path
}

// Get retrieves the payload of a blob along with its version
func (bs *InMemoryBlobstore) Get(ctx context.Context, key string) ([]byte, string, error) {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if val, ok := bs.blobs[key]; ok {
		if ver, ok := bs.versions[key]; ok && ver != "" {
			cp := make([]byte, len(val))
			copy(cp, val)
			return cp, ver, nil
		}

		panic("Blob without version, or with invalid version, should not be possible.")
	}

	return nil, "", NotFound{key}
}

// Head retrieves the version and size of a blob without its payload
func (bs *InMemoryBlobstore) Head(ctx context.Context, key string) (BlobInfo, error) {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if val, ok := bs.blobs[key]; ok {
		return BlobInfo{Version: bs.versions[key], Size: int64(len(val))}, nil
	}
	return BlobInfo{}, NotFound{key}
}

// Put sets the blob and the version for a key
func (bs *InMemoryBlobstore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()
	return bs.put(key, data), nil
}

// CheckAndPut will check the current version of a blob against an expectedVersion, and if the
// versions match it will update the data and version associated with the key
func (bs *InMemoryBlobstore) CheckAndPut(ctx context.Context, expectedVersion, key, contentType string, data []byte) (string, error) {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	ver, ok := bs.versions[key]
	check := !ok && expectedVersion == "" || ok && expectedVersion == ver

	if !check {
		return "", CheckAndPutError{key, expectedVersion, ver}
	}
	return bs.put(key, data), nil
}

// Exists returns true if a blob exists for the given key, and false if it does not.
// For InMemoryBlobstore instances error should never be returned (though other
// implementations of this interface can)
func (bs *InMemoryBlobstore) Exists(ctx context.Context, key string) (bool, error) {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	_, ok := bs.blobs[key]
	return ok, nil
}

// Delete removes the blob for a key. Deleting an absent key succeeds.
func (bs *InMemoryBlobstore) Delete(ctx context.Context, key string) error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()
	delete(bs.blobs, key)
	delete(bs.versions, key)
	return nil
}

// List returns the keys under prefix in lexicographic order.
func (bs *InMemoryBlobstore) List(ctx context.Context, prefix string) ([]string, error) {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	var keys []string
	for k := range bs.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Copy duplicates srcKey's payload to dstKey under a fresh version.
func (bs *InMemoryBlobstore) Copy(ctx context.Context, srcKey, dstKey string) (string, error) {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	val, ok := bs.blobs[srcKey]
	if !ok {
		return "", NotFound{srcKey}
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return bs.put(dstKey, cp), nil
}

func (bs *InMemoryBlobstore) put(key string, data []byte) string {
	ver := uuid.New().String()
	cp := make([]byte, len(data))
	copy(cp, data)

	bs.blobs[key] = cp
	bs.versions[key] = ver

	return ver
}
