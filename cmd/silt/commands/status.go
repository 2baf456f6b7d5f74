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

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/siltdata/silt/cmd/silt/cli"
	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/events"
	"github.com/siltdata/silt/libraries/ingestcore/keyindex"
	"github.com/siltdata/silt/libraries/ingestcore/manifest"
	"github.com/siltdata/silt/libraries/ingestcore/paths"
	"github.com/siltdata/silt/libraries/ingestcore/projection"
	"github.com/siltdata/silt/libraries/utils/argparser"
	"github.com/siltdata/silt/store/blobstore"
)

var statusSynopsis = []string{
	"--dataset <id> [-c <file>] [--field <json.path>]",
}

// StatusCmd reports the published state of a dataset.
type StatusCmd struct{}

func (cmd StatusCmd) Name() string {
	return "status"
}

func (cmd StatusCmd) Description() string {
	return "Show the current version, index, and consolidation state of a dataset."
}

func (cmd StatusCmd) ArgParser() *argparser.ArgParser {
	ap := argparser.NewArgParser(cmd.Name(), 0)
	ap.SupportsString(configParam, "c", "file", "Application config file (TOML). Defaults to environment settings.")
	ap.SupportsRequiredString(datasetParam, "", "id", "Dataset to inspect.")
	ap.SupportsString(fieldParam, "", "json.path", "Print one field of the current manifest instead of the summary.")
	return ap
}

func (cmd StatusCmd) Exec(ctx context.Context, commandStr string, args []string, lgr *logrus.Entry) int {
	ap := cmd.ArgParser()
	apr, err := ap.Parse(args)
	if err != nil {
		return cli.HandleParseError(err, commandStr, statusSynopsis, ap)
	}

	app, err := conf.LoadAppConfig(apr.GetValueOrDefault(configParam, ""))
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}
	bs, err := newBlobstore(ctx, app)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}

	datasetID := apr.MustGetValue(datasetParam)
	ptr, _, err := manifest.ReadPointer(ctx, bs, datasetID)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}
	if ptr == nil {
		cli.Println(color.YellowString("dataset %s has no published version", datasetID))
		return 0
	}

	if field, ok := apr.GetValue(fieldParam); ok {
		data, err := blobstore.GetBytes(ctx, bs, paths.EventManifestKey(datasetID, ptr.CurrentVersion))
		if err != nil {
			cli.PrintErrln(color.RedString(err.Error()))
			return 1
		}
		res := gjson.GetBytes(data, field)
		if !res.Exists() {
			cli.PrintErrln(color.RedString("no field %q in manifest for version %s", field, ptr.CurrentVersion))
			return 1
		}
		cli.Println(res.String())
		return 0
	}

	m, err := manifest.Read(ctx, bs, datasetID, ptr.CurrentVersion)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}
	hashes, err := keyindex.Read(ctx, bs, datasetID)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}

	var srcBytes int64
	for _, f := range m.Source.Files {
		srcBytes += f.Size
	}

	cli.Printf("Dataset:  %s\n", m.DatasetID)
	cli.Printf("Version:  %s\n", color.GreenString(m.Version))
	cli.Printf("Created:  %s\n", m.CreatedAt)
	cli.Printf("Rows:     %d total, %d added this version\n", m.Outputs.RowsTotal, m.Outputs.RowsAddedThisVersion)
	cli.Printf("Events:   %d file(s) under %s\n", len(m.Outputs.Files), m.Outputs.DataPrefix)
	cli.Printf("Source:   %s in %d file(s)\n", humanize.Bytes(uint64(srcBytes)), len(m.Source.Files))
	cli.Printf("Index:    %d keys\n", len(hashes))

	months, err := events.KnownMonths(ctx, bs, datasetID)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}
	if len(months) > 0 {
		cli.Println("Months:")
		for _, ym := range months {
			sm, err := projection.ReadStatus(ctx, bs, datasetID, ym)
			if err != nil {
				cli.PrintErrln(color.RedString(err.Error()))
				return 1
			}
			switch {
			case sm == nil:
				cli.Printf("  %s  %s\n", ym, color.YellowString("unconsolidated"))
			case sm.Status == projection.StatusCompleted:
				cli.Printf("  %s  %s  %s\n", ym, color.GreenString(sm.Status), sm.Timestamp)
			default:
				cli.Printf("  %s  %s  %s\n", ym, color.YellowString(sm.Status), sm.Timestamp)
			}
		}
	}
	return 0
}
