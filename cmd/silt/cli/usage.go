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

package cli

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/siltdata/silt/libraries/utils/argparser"
)

// PrintUsage renders the synopsis lines and supported options of a
// command.
func PrintUsage(commandStr string, synopsis []string, ap *argparser.ArgParser) {
	for i, curr := range synopsis {
		if i == 0 {
			Println("usage:", commandStr, curr)
		} else {
			Println("   or:", commandStr, curr)
		}
	}

	if len(ap.Supported) > 0 {
		Println()
		Println("Specific", commandStr, "options")
		for _, opt := range ap.Supported {
			Printf("    %s\n        %s\n", optionUsage(opt), opt.Desc)
		}
	}
}

func optionUsage(opt *argparser.Option) string {
	switch {
	case opt.Abbrev != "" && opt.ValDesc != "":
		return fmt.Sprintf("-%s <%s>, --%s=<%s>", opt.Abbrev, opt.ValDesc, opt.Name, opt.ValDesc)
	case opt.Abbrev != "":
		return fmt.Sprintf("-%s, --%s", opt.Abbrev, opt.Name)
	case opt.ValDesc != "":
		return fmt.Sprintf("--%s=<%s>", opt.Name, opt.ValDesc)
	default:
		return "--" + opt.Name
	}
}

// HandleParseError turns an ap.Parse error into an exit status, printing
// usage along the way. Asking for help is not an error.
func HandleParseError(err error, commandStr string, synopsis []string, ap *argparser.ArgParser) int {
	if err == argparser.ErrHelp {
		PrintUsage(commandStr, synopsis, ap)
		return 0
	}
	PrintErrln(color.RedString(err.Error()))
	PrintUsage(commandStr, synopsis, ap)
	return 1
}
