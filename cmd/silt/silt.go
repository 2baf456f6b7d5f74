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

package main

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"

	"github.com/siltdata/silt/cmd/silt/cli"
	"github.com/siltdata/silt/cmd/silt/commands"
)

const (
	Version = "0.1.0"

	logLevelEnvVar = "SILT_LOG_LEVEL"

	cpuProf = "cpu"
	memProf = "mem"
)

var siltCommand = cli.NewSubCommandHandler("silt", "Incremental dataset ingestion and publication.", []cli.Command{
	commands.RunCmd{},
	commands.StatusCmd{},
	commands.ConsolidateCmd{},
	commands.RebuildIndexCmd{},
	commands.VersionCmd{VersionStr: Version},
})

func main() {
	os.Exit(runMain())
}

func runMain() int {
	args := os.Args[1:]

	if len(args) >= 2 && args[0] == "--prof" {
		switch args[1] {
		case cpuProf:
			cli.Println("cpu profiling enabled.")
			defer profile.Start(profile.CPUProfile).Stop()
		case memProf:
			cli.Println("mem profiling enabled.")
			defer profile.Start(profile.MemProfile).Stop()
		default:
			cli.PrintErrln(color.RedString("Unexpected prof flag: " + args[1]))
			return 1
		}
		args = args[2:]
	}

	return siltCommand.Exec(context.Background(), "silt", args, newLogger())
}

// newLogger writes to stderr so command output stays parseable: text on
// terminals, JSON when piped.
func newLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level := logrus.InfoLevel
	if s := os.Getenv(logLevelEnvVar); s != "" {
		parsed, err := logrus.ParseLevel(s)
		if err != nil {
			logger.Warnf("unknown log level %q, using info", s)
		} else {
			level = parsed
		}
	}
	logger.SetLevel(level)

	return logrus.NewEntry(logger)
}
