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
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siltdata/silt/libraries/utils/argparser"
)

type stubCommand struct {
	name     string
	exitCode int

	gotCommandStr string
	gotArgs       []string
}

func (c *stubCommand) Name() string        { return c.name }
func (c *stubCommand) Description() string { return c.name + " desc" }
func (c *stubCommand) ArgParser() *argparser.ArgParser {
	return argparser.NewArgParser(c.name, 0)
}

func (c *stubCommand) Exec(_ context.Context, commandStr string, args []string, _ *logrus.Entry) int {
	c.gotCommandStr = commandStr
	c.gotArgs = args
	return c.exitCode
}

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr := CliOut, CliErr
	CliOut, CliErr = out, errOut
	t.Cleanup(func() { CliOut, CliErr = prevOut, prevErr })
	return out, errOut
}

func TestSubCommandHandlerDispatch(t *testing.T) {
	captureOutput(t)
	run := &stubCommand{name: "run", exitCode: 0}
	status := &stubCommand{name: "status", exitCode: 3}
	hc := NewSubCommandHandler("silt", "dataset pipeline", []Command{run, status})
	lgr := logrus.NewEntry(logrus.StandardLogger())

	code := hc.Exec(context.Background(), "silt", []string{"status", "--dataset", "gas_demand_es"}, lgr)
	assert.Equal(t, 3, code)
	assert.Equal(t, "silt status", status.gotCommandStr)
	assert.Equal(t, []string{"--dataset", "gas_demand_es"}, status.gotArgs)
	assert.Empty(t, run.gotArgs)
}

func TestSubCommandHandlerCaseInsensitive(t *testing.T) {
	captureOutput(t)
	run := &stubCommand{name: "run"}
	hc := NewSubCommandHandler("silt", "", []Command{run})

	code := hc.Exec(context.Background(), "silt", []string{"RUN"}, logrus.NewEntry(logrus.StandardLogger()))
	assert.Equal(t, 0, code)
	assert.Equal(t, "silt run", run.gotCommandStr)
}

func TestSubCommandHandlerUnknown(t *testing.T) {
	out, errOut := captureOutput(t)
	hc := NewSubCommandHandler("silt", "", []Command{&stubCommand{name: "run"}})

	code := hc.Exec(context.Background(), "silt", []string{"destroy"}, logrus.NewEntry(logrus.StandardLogger()))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "Unknown Command destroy")
	assert.Contains(t, out.String(), "Valid commands for silt are")
	assert.Contains(t, out.String(), "run")
}

func TestSubCommandHandlerNoArgs(t *testing.T) {
	out, _ := captureOutput(t)
	hc := NewSubCommandHandler("silt", "", []Command{&stubCommand{name: "run"}})

	code := hc.Exec(context.Background(), "silt", nil, logrus.NewEntry(logrus.StandardLogger()))
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Valid commands")
}

func TestHandleParseError(t *testing.T) {
	out, errOut := captureOutput(t)
	ap := argparser.NewArgParser("status", 0)
	ap.SupportsString("dataset", "", "id", "dataset to inspect")

	code := HandleParseError(argparser.ErrHelp, "silt status", []string{"--dataset <id>"}, ap)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "usage: silt status --dataset <id>")
	assert.Contains(t, out.String(), "--dataset=<id>")
	assert.Empty(t, errOut.String())

	_, err := ap.Parse([]string{"--bogus"})
	require.Error(t, err)
	code = HandleParseError(err, "silt status", nil, ap)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "unknown option")
}
