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

// Package manifest defines the version manifest and the dataset pointer,
// and their blobstore I/O. The pointer is the only compare-and-set target
// in the layout; everything else is immutable once written.
package manifest

import (
	"context"
	"time"

	"github.com/siltdata/silt/libraries/ingestcore/codec"
	"github.com/siltdata/silt/libraries/ingestcore/paths"
	"github.com/siltdata/silt/store/blobstore"
)

// SourceFile records the fingerprint of one fetched source payload.
type SourceFile struct {
	Path   string `json:"path,omitempty"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// SourceInfo groups the source files behind one version.
type SourceInfo struct {
	Files []SourceFile `json:"files"`
}

// OutputsInfo describes the event payloads of one version. RowsTotal is
// the primary-key index cardinality after this version; RowsAddedThisVersion
// is the delta size.
type OutputsInfo struct {
	DataPrefix           string   `json:"data_prefix"`
	Files                []string `json:"files"`
	RowsTotal            int      `json:"rows_total"`
	RowsAddedThisVersion int      `json:"rows_added_this_version"`
}

// IndexInfo locates the primary-key index and names its key columns.
type IndexInfo struct {
	Path       string   `json:"path"`
	KeyColumns []string `json:"key_columns"`
	HashColumn string   `json:"hash_column"`
}

// Manifest describes one published version.
type Manifest struct {
	DatasetID string      `json:"dataset_id"`
	Version   string      `json:"version"`
	CreatedAt string      `json:"created_at"`
	Source    SourceInfo  `json:"source"`
	Outputs   OutputsInfo `json:"outputs"`
	Index     IndexInfo   `json:"index"`
}

// Pointer names the current version of a dataset.
type Pointer struct {
	DatasetID      string `json:"dataset_id"`
	CurrentVersion string `json:"current_version"`
}

// Build assembles the manifest for a version about to be published.
func Build(datasetID, versionTS string, src SourceFile, outputKeys []string, rowsAdded, rowsTotal int, primaryKeys []string, createdAt time.Time) *Manifest {
	return &Manifest{
		DatasetID: datasetID,
		Version:   versionTS,
		CreatedAt: createdAt.UTC().Format(time.RFC3339),
		Source:    SourceInfo{Files: []SourceFile{src}},
		Outputs: OutputsInfo{
			DataPrefix:           paths.EventDataPrefix(datasetID, versionTS),
			Files:                outputKeys,
			RowsTotal:            rowsTotal,
			RowsAddedThisVersion: rowsAdded,
		},
		Index: IndexInfo{
			Path:       paths.IndexKey(datasetID),
			KeyColumns: primaryKeys,
			HashColumn: "key_hash",
		},
	}
}

// Write stores the event manifest for m's version.
func Write(ctx context.Context, bs blobstore.Blobstore, m *Manifest) error {
	data, err := codec.MarshalJSON(m)
	if err != nil {
		return err
	}
	_, err = bs.Put(ctx, paths.EventManifestKey(m.DatasetID, m.Version), blobstore.ContentTypeJSON, data)
	return err
}

// Read loads the event manifest for one version.
func Read(ctx context.Context, bs blobstore.Blobstore, datasetID, version string) (*Manifest, error) {
	data, err := blobstore.GetBytes(ctx, bs, paths.EventManifestKey(datasetID, version))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := codec.UnmarshalJSON(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReadPointer loads the dataset pointer together with the blob version
// needed to compare-and-set it. A dataset that has never published
// returns (nil, "", nil).
func ReadPointer(ctx context.Context, bs blobstore.Blobstore, datasetID string) (*Pointer, string, error) {
	data, ver, err := bs.Get(ctx, paths.PointerKey(datasetID))
	if err != nil {
		if blobstore.IsNotFoundError(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	var p Pointer
	if err := codec.UnmarshalJSON(data, &p); err != nil {
		return nil, "", err
	}
	return &p, ver, nil
}

// CASPointer advances the dataset pointer iff the stored blob still has
// expectedVersion; empty expectedVersion requires that no pointer exist.
// A lost race surfaces as a CheckAndPutError.
func CASPointer(ctx context.Context, bs blobstore.Blobstore, p *Pointer, expectedVersion string) (string, error) {
	data, err := codec.MarshalJSON(p)
	if err != nil {
		return "", err
	}
	return bs.CheckAndPut(ctx, expectedVersion, paths.PointerKey(p.DatasetID), blobstore.ContentTypeJSON, data)
}
