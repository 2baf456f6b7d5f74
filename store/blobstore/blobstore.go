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

// Package blobstore provides a versioned object-store abstraction over
// whole blobs. Every blob carries an opaque version string (an ETag on S3,
// a generation number on GCS) and CheckAndPut is the only conditional
// write; it is the primitive the publication protocol's pointer CAS is
// built on.
package blobstore

import "context"

// Content types used for the payloads the pipeline writes.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeParquet = "application/octet-stream"
	ContentTypeBinary  = "application/octet-stream"
)

// BlobInfo describes a blob without its payload.
type BlobInfo struct {
	Version string
	Size    int64
}

// Blobstore is an interface for storing and retrieving versioned blobs.
// Payloads are passed as byte slices; callers never see streaming seams.
type Blobstore interface {
	// Path names the backing bucket and prefix for diagnostics.
	Path() string

	// Exists returns true if a blob exists for the given key.
	Exists(ctx context.Context, key string) (bool, error)

	// Get retrieves the blob for a key along with its version, or a
	// NotFound error.
	Get(ctx context.Context, key string) ([]byte, string, error)

	// Head retrieves a blob's version and size without its payload, or a
	// NotFound error.
	Head(ctx context.Context, key string) (BlobInfo, error)

	// Put writes the blob for a key unconditionally and returns the new
	// version.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)

	// CheckAndPut writes the blob for a key iff its current version
	// matches expectedVersion. The empty expectedVersion demands that the
	// key does not exist yet. On a version mismatch or a concurrent
	// create it fails with a CheckAndPutError.
	CheckAndPut(ctx context.Context, expectedVersion, key, contentType string, data []byte) (string, error)

	// Delete removes the blob for a key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// List returns every key under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Copy duplicates srcKey to dstKey and returns dstKey's new version.
	Copy(ctx context.Context, srcKey, dstKey string) (string, error)
}

// GetBytes retrieves just the payload for a key.
func GetBytes(ctx context.Context, bs Blobstore, key string) ([]byte, error) {
	data, _, err := bs.Get(ctx, key)
	return data, err
}
