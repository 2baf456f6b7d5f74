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

// Package pipeline drives one ingestion run end to end: lock, consistency
// guard, fetch, change check, parse, normalize, date filter, delta,
// enrich, event write, publish, consolidation and notification. The driver
// is the single place errors become result codes and the only owner of the
// lock release.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
	"github.com/siltdata/silt/libraries/ingestcore/delta"
	"github.com/siltdata/silt/libraries/ingestcore/enrich"
	"github.com/siltdata/silt/libraries/ingestcore/events"
	"github.com/siltdata/silt/libraries/ingestcore/fetch"
	"github.com/siltdata/silt/libraries/ingestcore/keyindex"
	"github.com/siltdata/silt/libraries/ingestcore/manifest"
	"github.com/siltdata/silt/libraries/ingestcore/metrics"
	"github.com/siltdata/silt/libraries/ingestcore/normalize"
	"github.com/siltdata/silt/libraries/ingestcore/notify"
	"github.com/siltdata/silt/libraries/ingestcore/parse"
	"github.com/siltdata/silt/libraries/ingestcore/paths"
	"github.com/siltdata/silt/libraries/ingestcore/projection"
	"github.com/siltdata/silt/libraries/ingestcore/publish"
	"github.com/siltdata/silt/store/blobstore"
)

// Run result codes.
const (
	StatusCompleted   = "completed"
	StatusNoChange    = "no_change"
	StatusNoNewData   = "no_new_data"
	StatusCASConflict = "cas_conflict"
	StatusSkippedLock = "skipped_lock"
	StatusError       = "error"
)

// Locker serializes runs per dataset. A dynlock.Lock satisfies this.
type Locker interface {
	Acquire(ctx context.Context, lockKey, ownerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockKey, ownerID string) (bool, error)
}

// Deps are the infrastructure seams one run executes against. Lock,
// Notifier and Metrics may be nil; locking, notifications and metrics are
// then disabled.
type Deps struct {
	Blobstore blobstore.Blobstore
	Lock      Locker
	Notifier  notify.Notifier
	Metrics   *metrics.Collector
}

// Options tune one run beyond its dataset config.
type Options struct {
	// FullReload processes the source even when its fingerprint is
	// unchanged and disables the incremental date window.
	FullReload bool

	// DryRun stops before the first write: no lock record, no raw
	// archive, no events, no publish. The delta is still computed and
	// reported.
	DryRun bool
}

// Result is the structured outcome of one run.
type Result struct {
	RunID     string `json:"run_id"`
	VersionTS string `json:"version_ts"`
	Status    string `json:"status"`
	RowsAdded int    `json:"rows_added"`
}

// Pipeline runs datasets against a fixed set of infrastructure.
type Pipeline struct {
	bs       blobstore.Blobstore
	lock     Locker
	notifier notify.Notifier
	metrics  *metrics.Collector
	app      *conf.AppConfig
	fetcher  *fetch.Fetcher
	now      func() time.Time
	lgr      *logrus.Entry
}

// New creates a Pipeline from its dependencies.
func New(deps Deps, app *conf.AppConfig, lgr *logrus.Entry) *Pipeline {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Null{}
	}
	return &Pipeline{
		bs:       deps.Blobstore,
		lock:     deps.Lock,
		notifier: notifier,
		metrics:  deps.Metrics,
		app:      app,
		fetcher:  fetch.NewFetcher(app.HTTPTimeout(), app.SSLVerify(), lgr),
		now:      time.Now,
		lgr:      lgr,
	}
}

// OwnerID identifies this process for lock ownership: the app-scoped
// machine id (hostname when the OS has none) plus the run id.
func OwnerID(runID string) string {
	id, err := machineid.ProtectedID("silt")
	if err != nil {
		host, herr := os.Hostname()
		if herr != nil {
			return runID
		}
		id = host
	}
	return id + "/" + runID
}

// Run executes the full pipeline for one dataset. The error is non-nil
// exactly when the result status is "error"; every other outcome,
// including a lost CAS and a held lock, is a normal result.
func (p *Pipeline) Run(ctx context.Context, cfg *conf.DatasetConfig, opts Options) (Result, error) {
	start := p.now()
	runID := uuid.New().String()
	versionTS := paths.FormatVersion(start)

	lgr := p.lgr.WithFields(logrus.Fields{
		"dataset": cfg.DatasetID,
		"run_id":  runID,
		"version": versionTS,
	})
	lgr.Info("starting run")

	res, err := p.run(ctx, cfg, opts, runID, versionTS, start, lgr)
	if err != nil {
		res.Status = StatusError
		lgr.WithError(err).Error("run failed")
	} else {
		lgr.WithFields(logrus.Fields{
			"status":     res.Status,
			"rows_added": res.RowsAdded,
		}).Info("run finished")
	}
	if p.metrics != nil {
		p.metrics.RecordRun(cfg.DatasetID, res.Status, res.RowsAdded, p.now().Sub(start))
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, cfg *conf.DatasetConfig, opts Options, runID, versionTS string, start time.Time, lgr *logrus.Entry) (Result, error) {
	res := Result{RunID: runID, VersionTS: versionTS}
	fullReload := opts.FullReload || cfg.FullReload

	if p.lock != nil && !opts.DryRun {
		ownerID := OwnerID(runID)
		acquired, err := p.lock.Acquire(ctx, paths.LockKey(cfg.DatasetID), ownerID, p.app.LockTTL())
		if err != nil {
			return res, errors.Wrap(err, "acquiring lock")
		}
		if !acquired {
			lgr.Warn("another run holds the dataset lock")
			res.Status = StatusSkippedLock
			return res, nil
		}
		defer func() {
			if _, rerr := p.lock.Release(ctx, paths.LockKey(cfg.DatasetID), ownerID); rerr != nil {
				lgr.WithError(rerr).Warn("releasing lock")
			}
		}()
	}

	guard := keyindex.NewGuard(p.bs, p.app.Tolerance(), lgr)
	consistent, err := guard.Verify(ctx, cfg.DatasetID)
	if err != nil {
		return res, err
	}
	if !consistent && !opts.DryRun {
		if _, err := guard.RebuildFromPointer(ctx, cfg.DatasetID); err != nil {
			return res, errors.Wrap(err, "rebuilding key index")
		}
	}

	src, err := p.fetcher.Fetch(ctx, cfg.Source)
	if err != nil {
		return res, err
	}

	rawKey := paths.RawRunKey(cfg.DatasetID, runID, src.Filename)
	if !opts.DryRun {
		if _, err := p.bs.Put(ctx, rawKey, blobstore.ContentTypeBinary, src.Data); err != nil {
			return res, errors.Wrap(err, "archiving raw source")
		}
	}

	if !fullReload {
		unchanged, err := p.sourceUnchanged(ctx, cfg.DatasetID, src.SHA256)
		if err != nil {
			return res, err
		}
		if unchanged {
			lgr.Info("source fingerprint unchanged")
			res.Status = StatusNoChange
			return res, nil
		}
	}

	parser, err := parse.ForConfig(cfg)
	if err != nil {
		return res, err
	}
	table, err := parser.Parse(cfg.Source, src.Data)
	if err != nil {
		return res, err
	}

	normalizer, err := normalize.ForConfig(cfg)
	if err != nil {
		return res, err
	}
	frame, err := normalizer.Normalize(cfg, table)
	if err != nil {
		return res, err
	}
	lgr.WithFields(logrus.Fields{"parsed": table.NumRows(), "normalized": len(frame)}).Info("normalized source")

	if !fullReload {
		frame, err = p.filterNewRows(ctx, cfg, frame, lgr)
		if err != nil {
			return res, err
		}
	}
	if len(frame) == 0 {
		lgr.Info("no rows inside the processing window")
		res.Status = StatusNoNewData
		return res, nil
	}

	index, err := keyindex.Read(ctx, p.bs, cfg.DatasetID)
	if err != nil {
		return res, err
	}
	d, err := delta.Compute(frame, index, cfg.Normalize.PrimaryKeys)
	if err != nil {
		return res, err
	}
	rowsAdded := len(d.Delta)
	if rowsAdded == 0 && !cfg.PublishEmpty {
		lgr.Info("every key already indexed")
		res.Status = StatusNoNewData
		return res, nil
	}

	if opts.DryRun {
		lgr.WithField("rows_added", rowsAdded).Info("dry run, skipping writes")
		res.Status = StatusCompleted
		res.RowsAdded = rowsAdded
		return res, nil
	}

	enriched := enrich.Apply(d.Delta, cfg, versionTS, start)

	writer := events.NewWriter(p.bs, lgr)
	eventKeys, months, err := writer.Write(ctx, cfg.DatasetID, versionTS, enriched)
	if err != nil {
		return res, errors.Wrap(err, "writing events")
	}

	publisher := publish.NewPublisher(p.bs, lgr)
	pres, err := publisher.Publish(ctx, publish.Request{
		DatasetID:    cfg.DatasetID,
		VersionTS:    versionTS,
		Source:       manifest.SourceFile{Path: rawKey, SHA256: src.SHA256, Size: src.Size},
		EventKeys:    eventKeys,
		RowsAdded:    rowsAdded,
		PrimaryKeys:  cfg.Normalize.PrimaryKeys,
		PrevIndex:    d.PriorIndex,
		UpdatedIndex: d.UpdatedIndex,
	})
	if err != nil {
		return res, err
	}
	if !pres.Published {
		res.Status = StatusCASConflict
		return res, nil
	}
	res.RowsAdded = rowsAdded

	cons := projection.NewConsolidator(p.bs, lgr)
	for _, ym := range months {
		if err := cons.ConsolidateMonth(ctx, cfg.DatasetID, cfg.Normalize.PrimaryKeys, versionTS, ym); err != nil {
			return res, errors.Wrapf(err, "consolidating %s", ym)
		}
	}

	if err := p.notifier.Notify(ctx, notify.Update{
		DatasetID:       cfg.DatasetID,
		Version:         versionTS,
		ManifestPointer: paths.EventManifestKey(cfg.DatasetID, versionTS),
		RowsAdded:       rowsAdded,
	}); err != nil {
		lgr.WithError(err).Warn("notifying consumers")
	}

	res.Status = StatusCompleted
	return res, nil
}

// sourceUnchanged compares the fetched fingerprint against the last
// published manifest's first source file. Any missing link in the chain
// means the source counts as changed.
func (p *Pipeline) sourceUnchanged(ctx context.Context, datasetID, sha string) (bool, error) {
	ptr, _, err := manifest.ReadPointer(ctx, p.bs, datasetID)
	if err != nil || ptr == nil {
		return false, err
	}
	m, err := manifest.Read(ctx, p.bs, datasetID, ptr.CurrentVersion)
	if blobstore.IsNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(m.Source.Files) == 0 {
		return false, nil
	}
	return m.Source.Files[0].SHA256 == sha, nil
}

// filterNewRows drops rows at or before the incremental cutoff: the
// newest observation of the last published version minus the dataset's
// lag. The lag re-opens the window for late restatements; the delta still
// dedupes keys seen before. Undated rows always pass.
func (p *Pipeline) filterNewRows(ctx context.Context, cfg *conf.DatasetConfig, frame dataset.Frame, lgr *logrus.Entry) (dataset.Frame, error) {
	latest, err := p.latestObservation(ctx, cfg.DatasetID)
	if err != nil {
		return nil, err
	}
	if latest.IsZero() {
		return frame, nil
	}
	cutoff := latest.AddDate(0, 0, -cfg.LagDays)

	kept := make(dataset.Frame, 0, len(frame))
	for _, row := range frame {
		when := row.ObsTime
		if when.IsZero() {
			when = row.ObsDate
		}
		if when.IsZero() || when.After(cutoff) {
			kept = append(kept, row)
		}
	}
	if dropped := len(frame) - len(kept); dropped > 0 {
		lgr.WithFields(logrus.Fields{
			"cutoff":  cutoff.Format(time.RFC3339),
			"kept":    len(kept),
			"dropped": dropped,
		}).Info("dropped rows inside the published window")
	}
	return kept, nil
}

// latestObservation finds the newest obs_time (obs_date for rows without
// one) across the last published version's event files. Zero when nothing
// is published or the published rows carry no dates.
func (p *Pipeline) latestObservation(ctx context.Context, datasetID string) (time.Time, error) {
	ptr, _, err := manifest.ReadPointer(ctx, p.bs, datasetID)
	if err != nil || ptr == nil {
		return time.Time{}, err
	}
	frame, err := events.ReadVersionRows(ctx, p.bs, datasetID, ptr.CurrentVersion)
	if err != nil {
		if blobstore.IsNotFoundError(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	var latest time.Time
	for _, row := range frame {
		when := row.ObsTime
		if when.IsZero() {
			when = row.ObsDate
		}
		if when.After(latest) {
			latest = when
		}
	}
	return latest, nil
}
