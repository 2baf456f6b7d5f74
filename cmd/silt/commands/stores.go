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

package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/notify"
	"github.com/siltdata/silt/libraries/ingestcore/pipeline"
	"github.com/siltdata/silt/store/blobstore"
	"github.com/siltdata/silt/store/dynlock"
)

const (
	s3Scheme  = "s3"
	gsScheme  = "gs"
	memScheme = "mem"
)

// newBlobstore constructs the blobstore named by the app's store URL.
// Supported schemes: s3://bucket/prefix, gs://bucket/prefix, and mem://
// for throwaway runs.
func newBlobstore(ctx context.Context, app *conf.AppConfig) (blobstore.Blobstore, error) {
	urlObj, err := url.Parse(app.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("parsing store url %q: %w", app.StoreURL, err)
	}

	bucket := urlObj.Host
	prefix := strings.Trim(urlObj.Path, "/")

	switch strings.ToLower(urlObj.Scheme) {
	case memScheme:
		return blobstore.NewInMemoryBlobstore(app.StoreURL), nil
	case s3Scheme:
		if bucket == "" {
			return nil, fmt.Errorf("store url %q names no bucket", app.StoreURL)
		}
		cfg, err := awsConfig(ctx, app)
		if err != nil {
			return nil, err
		}
		return blobstore.NewS3Blobstore(s3.NewFromConfig(cfg), bucket, prefix), nil
	case gsScheme:
		if bucket == "" {
			return nil, fmt.Errorf("store url %q names no bucket", app.StoreURL)
		}
		gcs, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		return blobstore.NewGCSBlobstore(gcs, bucket, prefix), nil
	}

	return nil, fmt.Errorf("unknown store url scheme: '%s'", urlObj.Scheme)
}

// awsConfig loads the default AWS config with the app's region. Explicit
// credentials in the app config win over the ambient chain.
func awsConfig(ctx context.Context, app *conf.AppConfig) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(app.AWSRegion)}
	if app.AWSAccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(app.AWSAccessKeyID, app.AWSSecretAccessKey, "")))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

// newLocker builds the run lock backed by the given DynamoDB table. A
// nil Locker (no table configured) disables locking.
func newLocker(ctx context.Context, app *conf.AppConfig, table string, lgr *logrus.Entry) (pipeline.Locker, error) {
	if table == "" {
		return nil, nil
	}
	cfg, err := awsConfig(ctx, app)
	if err != nil {
		return nil, err
	}
	return dynlock.New(dynamodb.NewFromConfig(cfg), table, lgr), nil
}

// newNotifier builds the SNS notifier for the given topic, or nil when
// no topic is configured.
func newNotifier(ctx context.Context, app *conf.AppConfig, topicARN string, lgr *logrus.Entry) (notify.Notifier, error) {
	if topicARN == "" {
		return nil, nil
	}
	cfg, err := awsConfig(ctx, app)
	if err != nil {
		return nil, err
	}
	return notify.NewSNS(sns.NewFromConfig(cfg), topicARN, lgr), nil
}
