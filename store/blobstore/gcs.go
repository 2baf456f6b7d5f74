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
	"errors"
	"io"
	"path"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCSBlobstore provides a Google Cloud Storage implementation of the
// Blobstore interface. Blob versions are object generation numbers;
// CheckAndPut maps to generation-match write preconditions.
type GCSBlobstore struct {
	bucket     *storage.BucketHandle
	bucketName string
	prefix     string
}

var _ Blobstore = &GCSBlobstore{}

// NewGCSBlobstore creates a new instance of a GCSBlobstore rooted at the
// given bucket and key prefix.
func NewGCSBlobstore(gcs *storage.Client, bucketName, prefix string) *GCSBlobstore {
	return &GCSBlobstore{
		bucket:     gcs.Bucket(bucketName),
		bucketName: bucketName,
		prefix:     normalizePrefix(prefix),
	}
}

func (bs *GCSBlobstore) Path() string {
	return path.Join(bs.bucketName, bs.prefix)
}

func (bs *GCSBlobstore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := bs.bucket.Object(bs.absKey(key)).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (bs *GCSBlobstore) Get(ctx context.Context, key string) ([]byte, string, error) {
	reader, err := bs.bucket.Object(bs.absKey(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, "", NotFound{key}
	}
	if err != nil {
		return nil, "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", err
	}
	return data, fmtGeneration(reader.Attrs.Generation), nil
}

func (bs *GCSBlobstore) Head(ctx context.Context, key string) (BlobInfo, error) {
	attrs, err := bs.bucket.Object(bs.absKey(key)).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return BlobInfo{}, NotFound{key}
	}
	if err != nil {
		return BlobInfo{}, err
	}
	return BlobInfo{Version: fmtGeneration(attrs.Generation), Size: attrs.Size}, nil
}

func (bs *GCSBlobstore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	return bs.write(ctx, bs.bucket.Object(bs.absKey(key)), contentType, data)
}

func (bs *GCSBlobstore) CheckAndPut(ctx context.Context, expectedVersion, key, contentType string, data []byte) (string, error) {
	var conds storage.Conditions
	if expectedVersion == "" {
		conds.DoesNotExist = true
	} else {
		gen, err := strconv.ParseInt(expectedVersion, 10, 64)
		if err != nil {
			return "", CheckAndPutError{key, expectedVersion, "unknown"}
		}
		conds.GenerationMatch = gen
	}

	version, err := bs.write(ctx, bs.bucket.Object(bs.absKey(key)).If(conds), contentType, data)
	if isGCSPreconditionFailed(err) {
		actual := ""
		if info, herr := bs.Head(ctx, key); herr == nil {
			actual = info.Version
		}
		return "", CheckAndPutError{key, expectedVersion, actual}
	}
	return version, err
}

func (bs *GCSBlobstore) Delete(ctx context.Context, key string) error {
	err := bs.bucket.Object(bs.absKey(key)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (bs *GCSBlobstore) List(ctx context.Context, prefix string) ([]string, error) {
	it := bs.bucket.Objects(ctx, &storage.Query{Prefix: bs.absKey(prefix)})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, bs.relKey(attrs.Name))
	}
	return keys, nil
}

func (bs *GCSBlobstore) Copy(ctx context.Context, srcKey, dstKey string) (string, error) {
	src := bs.bucket.Object(bs.absKey(srcKey))
	dst := bs.bucket.Object(bs.absKey(dstKey))

	attrs, err := dst.CopierFrom(src).Run(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", NotFound{srcKey}
	}
	if err != nil {
		return "", err
	}
	return fmtGeneration(attrs.Generation), nil
}

func (bs *GCSBlobstore) write(ctx context.Context, obj *storage.ObjectHandle, contentType string, data []byte) (string, error) {
	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	return fmtGeneration(writer.Attrs().Generation), nil
}

func (bs *GCSBlobstore) absKey(key string) string {
	if bs.prefix == "" {
		return key
	}
	return path.Join(bs.prefix, key)
}

func (bs *GCSBlobstore) relKey(absKey string) string {
	if bs.prefix == "" {
		return absKey
	}
	return absKey[len(bs.prefix)+1:]
}

func fmtGeneration(gen int64) string {
	return strconv.FormatInt(gen, 10)
}

func isGCSPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && (apiErr.Code == 412 || apiErr.Code == 409)
}
