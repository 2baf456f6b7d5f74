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

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/cmd/silt/cli"
	"github.com/siltdata/silt/libraries/ingestcore/conf"
	"github.com/siltdata/silt/libraries/ingestcore/keyindex"
	"github.com/siltdata/silt/libraries/utils/argparser"
)

var rebuildIndexSynopsis = []string{
	"--dataset <id> [-c <file>]",
}

// RebuildIndexCmd regenerates the primary-key index from published events.
type RebuildIndexCmd struct{}

func (cmd RebuildIndexCmd) Name() string {
	return "rebuild-index"
}

func (cmd RebuildIndexCmd) Description() string {
	return "Rebuild the primary-key index from the events behind the current version."
}

func (cmd RebuildIndexCmd) ArgParser() *argparser.ArgParser {
	ap := argparser.NewArgParser(cmd.Name(), 0)
	ap.SupportsString(configParam, "c", "file", "Application config file (TOML). Defaults to environment settings.")
	ap.SupportsRequiredString(datasetParam, "", "id", "Dataset whose index to rebuild.")
	return ap
}

func (cmd RebuildIndexCmd) Exec(ctx context.Context, commandStr string, args []string, lgr *logrus.Entry) int {
	ap := cmd.ArgParser()
	apr, err := ap.Parse(args)
	if err != nil {
		return cli.HandleParseError(err, commandStr, rebuildIndexSynopsis, ap)
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
	before, err := keyindex.Read(ctx, bs, datasetID)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}

	guard := keyindex.NewGuard(bs, app.Tolerance(), lgr)
	after, err := guard.RebuildFromPointer(ctx, datasetID)
	if err != nil {
		cli.PrintErrln(color.RedString(err.Error()))
		return 1
	}

	cli.Printf("index rebuilt: %d keys before, %d after\n", len(before), after)
	return 0
}
