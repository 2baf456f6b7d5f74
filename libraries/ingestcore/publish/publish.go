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

// Package publish implements the publication protocol: write the event
// manifest, advance the dataset pointer by compare-and-set, then write
// the primary-key index. The ordering is load-bearing. The manifest is
// invisible until the pointer references it, the pointer CAS picks a
// unique winner under contention, and the index is written only by that
// winner.
package publish

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/libraries/ingestcore/keyindex"
	"github.com/siltdata/silt/libraries/ingestcore/manifest"
	"github.com/siltdata/silt/store/blobstore"
)

// ReasonCASConflict marks a publish that lost the pointer race.
const ReasonCASConflict = "cas_conflict"

// Request carries everything needed to publish one version.
type Request struct {
	DatasetID    string
	VersionTS    string
	Source       manifest.SourceFile
	EventKeys    []string
	RowsAdded    int
	PrimaryKeys  []string
	PrevIndex    []string
	UpdatedIndex []string
}

// Result reports the outcome of a publish attempt. Reason is set only
// when Published is false.
type Result struct {
	Published bool
	Reason    string
}

// Publisher advances dataset pointers.
type Publisher struct {
	bs  blobstore.Blobstore
	now func() time.Time
	lgr *logrus.Entry
}

// NewPublisher creates a Publisher on top of bs.
func NewPublisher(bs blobstore.Blobstore, lgr *logrus.Entry) *Publisher {
	return &Publisher{bs: bs, now: time.Now, lgr: lgr}
}

// Publish makes one version current. A lost CAS is not an error: the
// caller gets {Published: false, Reason: "cas_conflict"} and must not
// touch the index or projections. An error after the CAS succeeded means
// the index write was lost; the consistency guard repairs that on the
// next run.
func (p *Publisher) Publish(ctx context.Context, req Request) (Result, error) {
	m := manifest.Build(req.DatasetID, req.VersionTS, req.Source, req.EventKeys,
		req.RowsAdded, len(req.UpdatedIndex), req.PrimaryKeys, p.now())
	if err := manifest.Write(ctx, p.bs, m); err != nil {
		return Result{}, errors.Wrap(err, "write event manifest")
	}

	_, blobVer, err := manifest.ReadPointer(ctx, p.bs, req.DatasetID)
	if err != nil {
		return Result{}, errors.Wrap(err, "read pointer")
	}

	ptr := &manifest.Pointer{DatasetID: req.DatasetID, CurrentVersion: req.VersionTS}
	if _, err := manifest.CASPointer(ctx, p.bs, ptr, blobVer); err != nil {
		if blobstore.IsCheckAndPutError(err) {
			p.lgr.WithFields(logrus.Fields{
				"dataset": req.DatasetID,
				"version": req.VersionTS,
			}).Warn("pointer moved concurrently, publish lost the race")
			return Result{Reason: ReasonCASConflict}, nil
		}
		return Result{}, errors.Wrap(err, "swap pointer")
	}

	if err := keyindex.Write(ctx, p.bs, req.DatasetID, req.UpdatedIndex); err != nil {
		// The pointer already advanced; leave the divergence to the guard.
		return Result{}, errors.Wrap(err, "write primary-key index")
	}

	p.lgr.WithFields(logrus.Fields{
		"dataset":    req.DatasetID,
		"version":    req.VersionTS,
		"rows_added": req.RowsAdded,
		"keys_prev":  len(req.PrevIndex),
		"keys":       len(req.UpdatedIndex),
	}).Info("published version")
	return Result{Published: true}, nil
}
