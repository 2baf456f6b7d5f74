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
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
)

const s3Retries = 5

// S3Blobstore provides an S3 implementation of the Blobstore interface.
// Blob versions are ETags; CheckAndPut maps to conditional PutObject with
// If-Match (or If-None-Match: * for the create-if-absent case).
type S3Blobstore struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucketName string
	prefix     string
}

var _ Blobstore = &S3Blobstore{}

// NewS3Blobstore creates a new instance of an S3Blobstore rooted at the
// given bucket and key prefix.
func NewS3Blobstore(client *s3.Client, bucketName, prefix string) *S3Blobstore {
	return &S3Blobstore{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucketName: bucketName,
		prefix:     normalizePrefix(prefix),
	}
}

func (bs *S3Blobstore) Path() string {
	return path.Join(bs.bucketName, bs.prefix)
}

func (bs *S3Blobstore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := bs.Head(ctx, key)
	if IsNotFoundError(err) {
		return false, nil
	}
	return err == nil, err
}

func (bs *S3Blobstore) Get(ctx context.Context, key string) ([]byte, string, error) {
	absKey := bs.absKey(key)

	var data []byte
	var version string
	err := bs.retry(ctx, func() error {
		out, err := bs.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bs.bucketName),
			Key:    aws.String(absKey),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()
		data, err = io.ReadAll(out.Body)
		version = stripETagQuotes(aws.ToString(out.ETag))
		return err
	})
	if isS3NotFound(err) {
		return nil, "", NotFound{key}
	}
	if err != nil {
		return nil, "", err
	}
	return data, version, nil
}

func (bs *S3Blobstore) Head(ctx context.Context, key string) (BlobInfo, error) {
	var info BlobInfo
	err := bs.retry(ctx, func() error {
		out, err := bs.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bs.bucketName),
			Key:    aws.String(bs.absKey(key)),
		})
		if err != nil {
			return err
		}
		info = BlobInfo{
			Version: stripETagQuotes(aws.ToString(out.ETag)),
			Size:    aws.ToInt64(out.ContentLength),
		}
		return nil
	})
	if isS3NotFound(err) {
		return BlobInfo{}, NotFound{key}
	}
	return info, err
}

func (bs *S3Blobstore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	var version string
	err := bs.retry(ctx, func() error {
		out, err := bs.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bs.bucketName),
			Key:         aws.String(bs.absKey(key)),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return err
		}
		version = stripETagQuotes(aws.ToString(out.ETag))
		return nil
	})
	return version, err
}

func (bs *S3Blobstore) CheckAndPut(ctx context.Context, expectedVersion, key, contentType string, data []byte) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(bs.bucketName),
		Key:         aws.String(bs.absKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if expectedVersion == "" {
		in.IfNoneMatch = aws.String("*")
	} else {
		in.IfMatch = aws.String(`"` + expectedVersion + `"`)
	}

	var version string
	err := bs.retry(ctx, func() error {
		in.Body = bytes.NewReader(data)
		out, err := bs.client.PutObject(ctx, in)
		if err != nil {
			if isPreconditionFailed(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		version = stripETagQuotes(aws.ToString(out.ETag))
		return nil
	})
	if err != nil && isPreconditionFailed(err) {
		actual := ""
		if info, herr := bs.Head(ctx, key); herr == nil {
			actual = info.Version
		}
		return "", CheckAndPutError{key, expectedVersion, actual}
	}
	return version, err
}

func (bs *S3Blobstore) Delete(ctx context.Context, key string) error {
	return bs.retry(ctx, func() error {
		_, err := bs.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bs.bucketName),
			Key:    aws.String(bs.absKey(key)),
		})
		return err
	})
}

func (bs *S3Blobstore) List(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(bs.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bs.bucketName),
		Prefix: aws.String(bs.absKey(prefix)),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, bs.relKey(aws.ToString(obj.Key)))
		}
	}
	return keys, nil
}

func (bs *S3Blobstore) Copy(ctx context.Context, srcKey, dstKey string) (string, error) {
	src := url.PathEscape(bs.bucketName + "/" + bs.absKey(srcKey))

	var version string
	err := bs.retry(ctx, func() error {
		out, err := bs.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(bs.bucketName),
			Key:        aws.String(bs.absKey(dstKey)),
			CopySource: aws.String(src),
		})
		if err != nil {
			return err
		}
		if out.CopyObjectResult != nil {
			version = stripETagQuotes(aws.ToString(out.CopyObjectResult.ETag))
		}
		return nil
	})
	if isS3NotFound(err) {
		return "", NotFound{srcKey}
	}
	return version, err
}

// retry runs op under bounded exponential backoff. Terminal outcomes
// (not found, precondition failed, context cancellation) are not retried.
func (bs *S3Blobstore) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if !isTransientAWSErr(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s3Retries), ctx))
}

func (bs *S3Blobstore) absKey(key string) string {
	if bs.prefix == "" {
		return key
	}
	return path.Join(bs.prefix, key)
}

func (bs *S3Blobstore) relKey(absKey string) string {
	if bs.prefix == "" {
		return absKey
	}
	return strings.TrimPrefix(strings.TrimPrefix(absKey, bs.prefix), "/")
}

func normalizePrefix(prefix string) string {
	return strings.Trim(prefix, "/")
}

func stripETagQuotes(etag string) string {
	return strings.Trim(etag, `"`)
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == 404
}

func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		if code == "PreconditionFailed" || code == "ConditionalRequestConflict" {
			return true
		}
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && (re.HTTPStatusCode() == 412 || re.HTTPStatusCode() == 409)
}

var transientS3Codes = map[string]struct{}{
	"SlowDown":             {},
	"InternalError":        {},
	"RequestTimeout":       {},
	"ServiceUnavailable":   {},
	"Throttling":           {},
	"ThrottlingException":  {},
	"RequestLimitExceeded": {},
}

func isTransientAWSErr(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		if _, ok := transientS3Codes[ae.ErrorCode()]; ok {
			return true
		}
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() >= 500
}
