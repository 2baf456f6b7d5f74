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

	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/cmd/silt/cli"
	"github.com/siltdata/silt/libraries/utils/argparser"
)

var versionSynopsis = []string{""}

// VersionCmd prints the build version.
type VersionCmd struct {
	VersionStr string
}

func (cmd VersionCmd) Name() string {
	return "version"
}

func (cmd VersionCmd) Description() string {
	return "Print the silt version."
}

func (cmd VersionCmd) ArgParser() *argparser.ArgParser {
	return argparser.NewArgParser(cmd.Name(), 0)
}

func (cmd VersionCmd) Exec(ctx context.Context, commandStr string, args []string, lgr *logrus.Entry) int {
	ap := cmd.ArgParser()
	if _, err := ap.Parse(args); err != nil {
		return cli.HandleParseError(err, commandStr, versionSynopsis, ap)
	}
	cli.Println("silt version", cmd.VersionStr)
	return 0
}
