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
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/cmd/silt/cli"
	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/dataset"
	"github.com/siltdata/silt/libraries/ingestcore/manifest"
	"github.com/siltdata/silt/libraries/ingestcore/projection"
	"github.com/siltdata/silt/libraries/utils/argparser"
)

const monthFormat = "2006-01"

var consolidateSynopsis = []string{
	"-d <file> --dataset <id> [-c <file>] [--month <YYYY-MM>] [--force]",
}

func isMonthStr(s string) error {
	if _, err := time.Parse(monthFormat, s); err != nil {
		return fmt.Errorf("error: %q is not a valid month, expected YYYY-MM", s)
	}
	return nil
}

// ConsolidateCmd merges event partitions into monthly projections.
type ConsolidateCmd struct{}

func (cmd ConsolidateCmd) Name() string {
	return "consolidate"
}

func (cmd ConsolidateCmd) Description() string {
	return "Merge published events into per-month projection files."
}

func (cmd ConsolidateCmd) ArgParser() *argparser.ArgParser {
	ap := argparser.NewArgParser(cmd.Name(), 0)
	ap.SupportsString(configParam, "c", "file", "Application config file (TOML). Defaults to environment settings.")
	ap.SupportsRequiredString(datasetsParam, "d", "file", "Dataset config file (YAML).")
	ap.SupportsRequiredString(datasetParam, "", "id", "Dataset to consolidate.")
	ap.SupportsValidatedString(monthParam, "", "YYYY-MM", "Consolidate a single month instead of sweeping all known months.", isMonthStr)
	ap.SupportsFlag(forceFlag, "", "Redo completed months as well as incomplete ones.")
	return ap
}

func (cmd ConsolidateCmd) Exec(ctx context.Context, commandStr string, args []string, lgr *logrus.Entry) int {
	ap := cmd.ArgParser()
	apr, err := ap.Parse(args)
	if err != nil {
		return cli.HandleParseError(err, commandStr, consolidateSynopsis, ap)
	}

	app, err := conf.LoadAppConfig(apr.GetValueOrDefault(configParam, ""))
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

	ptr, _, err := manifest.ReadPointer(ctx, bs, cfg.DatasetID)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}
	if ptr == nil {
		cli.Println(color.YellowString("dataset %s has no published version, nothing to consolidate", cfg.DatasetID))
		return 0
	}

	c := projection.NewConsolidator(bs, lgr)
	pks := cfg.Normalize.PrimaryKeys

	if monthStr, ok := apr.GetValue(monthParam); ok {
		t, _ := time.Parse(monthFormat, monthStr)
		ym := dataset.YearMonth{Year: t.Year(), Month: int(t.Month())}
		if err := c.ConsolidateMonth(ctx, cfg.DatasetID, pks, ptr.CurrentVersion, ym); err != nil {
			cli.PrintErrln(color.RedString(err.Error()))
			return 1
		}
		cli.Printf("consolidated %s through version %s\n", ym, ptr.CurrentVersion)
		return 0
	}

	n, err := c.ConsolidateAll(ctx, cfg.DatasetID, pks, ptr.CurrentVersion, apr.Contains(forceFlag))
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}
	cli.Printf("consolidated %d month(s) through version %s\n", n, ptr.CurrentVersion)
	return 0
}
