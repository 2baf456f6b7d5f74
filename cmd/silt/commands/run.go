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

// Package commands holds the silt subcommands.
package commands

import (
	"context"
	"net/http"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/cmd/silt/cli"
	"github.com/siltdata/silt/libraries/ingestcore/codec"
	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/metrics"
	"github.com/siltdata/silt/libraries/ingestcore/pipeline"
	"github.com/siltdata/silt/libraries/utils/argparser"
)

// Option names shared across subcommands.
const (
	configParam      = "config"
	datasetsParam    = "datasets"
	datasetParam     = "dataset"
	fullReloadFlag   = "full-reload"
	dryRunFlag       = "dry-run"
	metricsAddrParam = "metrics-addr"
	monthParam       = "month"
	forceFlag        = "force"
	fieldParam       = "field"
)

var runSynopsis = []string{
	"-c <file> -d <file> --dataset <id> [--full-reload] [--dry-run] [--metrics-addr <addr>]",
}

// RunCmd executes the ingestion pipeline for one dataset.
type RunCmd struct{}

func (cmd RunCmd) Name() string {
	return "run"
}

func (cmd RunCmd) Description() string {
	return "Fetch, normalize, and publish one dataset version."
}

func (cmd RunCmd) ArgParser() *argparser.ArgParser {
	ap := argparser.NewArgParser(cmd.Name(), 0)
	ap.SupportsRequiredString(configParam, "c", "file", "Application config file (TOML).")
	ap.SupportsRequiredString(datasetsParam, "d", "file", "Dataset config file (YAML).")
	ap.SupportsRequiredString(datasetParam, "", "id", "Dataset to run.")
	ap.SupportsFlag(fullReloadFlag, "", "Republish every row instead of the incremental delta.")
	ap.SupportsFlag(dryRunFlag, "", "Compute the delta and stop before any write.")
	ap.SupportsString(metricsAddrParam, "", "addr", "Serve Prometheus metrics on this address for the duration of the run.")
	return ap
}

func (cmd RunCmd) Exec(ctx context.Context, commandStr string, args []string, lgr *logrus.Entry) int {
	ap := cmd.ArgParser()
	apr, err := ap.Parse(args)
	if err != nil {
		return cli.HandleParseError(err, commandStr, runSynopsis, ap)
	}

	app, err := conf.LoadAppConfig(apr.MustGetValue(configParam))
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}
	cfg, err := conf.LoadDatasetConfigFile(apr.MustGetValue(datasetsParam), apr.MustGetValue(datasetParam))
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}

	bs, err := newBlobstore(ctx, app)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	bs = collector.Instrument(bs)

	if addr, ok := apr.GetValue(metricsAddrParam); ok {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				lgr.WithError(err).Warn("metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	locker, err := newLocker(ctx, app, cfg.LockTableName(app), lgr)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}
	notifier, err := newNotifier(ctx, app, cfg.NotifyTopic(app), lgr)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}

	p := pipeline.New(pipeline.Deps{
		Blobstore: bs,
		Lock:      locker,
		Notifier:  notifier,
		Metrics:   collector,
	}, app, lgr)

	res, runErr := p.Run(ctx, cfg, pipeline.Options{
		FullReload: apr.Contains(fullReloadFlag),
		DryRun:     apr.Contains(dryRunFlag),
	})

	if out, err := codec.MarshalJSON(res); err == nil {
		cli.Println(string(out))
	}
	if runErr != nil {
		cli.PrintErrln(color.RedString(runErr.Error()))
		return 1
	}
	return 0
}
