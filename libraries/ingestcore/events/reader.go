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
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/siltdata/silt/libraries/ingestcore/codec"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
	"github.com/siltdata/silt/libraries/ingestcore/paths"
	"github.com/siltdata/silt/store/blobstore"
)

// ListVersions returns every version with at least one object under the
// event prefix, ascending. A non-empty through bounds the result to
// versions <= through; version strings sort chronologically so the
// comparison is plain string order.
func ListVersions(ctx context.Context, bs blobstore.Blobstore, datasetID, through string) ([]string, error) {
	keys, err := bs.List(ctx, paths.EventsPrefix(datasetID))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	versions := make([]string, 0, len(keys))
	for _, key := range keys {
		v, ok := paths.VersionFromEventKey(datasetID, key)
		if !ok || seen[v] {
			continue
		}
		if through != "" && v > through {
			continue
		}
		seen[v] = true
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

// ReadVersionRows loads every data payload of one version, concatenated
// in key order.
func ReadVersionRows(ctx context.Context, bs blobstore.Blobstore, datasetID, version string) (dataset.Frame, error) {
	keys, err := bs.List(ctx, paths.EventDataPrefix(datasetID, version))
	if err != nil {
		return nil, err
	}
	var frame dataset.Frame
	for _, key := range keys {
		if !strings.HasSuffix(key, ".parquet") {
			continue
		}
		data, err := blobstore.GetBytes(ctx, bs, key)
		if err != nil {
			return nil, errors.Wrapf(err, "read event payload %s", key)
		}
		rows, err := codec.DecodeRows(data)
		if err != nil {
			return nil, errors.Wrapf(err, "decode event payload %s", key)
		}
		frame = append(frame, rows...)
	}
	return frame, nil
}

// ReadPartitionRows loads the payload of one (version, month) partition.
// A version that wrote no rows for the month surfaces as a NotFound error.
func ReadPartitionRows(ctx context.Context, bs blobstore.Blobstore, datasetID, version string, ym dataset.YearMonth) (dataset.Frame, error) {
	data, err := blobstore.GetBytes(ctx, bs, paths.EventPartitionKey(datasetID, version, ym))
	if err != nil {
		return nil, err
	}
	return codec.DecodeRows(data)
}
