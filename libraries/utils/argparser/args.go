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

package argparser

import "strconv"

// ArgParseResults holds the options and positional arguments of one
// successful Parse call.
type ArgParseResults struct {
	options map[string]string
	args    []string
	parser  *ArgParser
}

// Contains reports whether the named option or flag was given.
func (res *ArgParseResults) Contains(name string) bool {
	_, ok := res.options[name]
	return ok
}

// ContainsAll reports whether every named option was given.
func (res *ArgParseResults) ContainsAll(names ...string) bool {
	for _, name := range names {
		if _, ok := res.options[name]; !ok {
			return false
		}
	}
	return true
}

// ContainsAny reports whether at least one named option was given.
func (res *ArgParseResults) ContainsAny(names ...string) bool {
	for _, name := range names {
		if _, ok := res.options[name]; ok {
			return true
		}
	}
	return false
}

// GetValue returns the value of the named option and whether it was given.
func (res *ArgParseResults) GetValue(name string) (string, bool) {
	val, ok := res.options[name]
	return val, ok
}

// GetValueOrDefault returns the value of the named option, or defVal when
// absent.
func (res *ArgParseResults) GetValueOrDefault(name, defVal string) string {
	if val, ok := res.options[name]; ok {
		return val
	}
	return defVal
}

// MustGetValue returns the value of the named option and panics when it
// was not given. Only valid for RequiredValue options, whose presence
// Parse already enforced.
func (res *ArgParseResults) MustGetValue(name string) string {
	val, ok := res.options[name]
	if !ok {
		panic("bug. value for " + name + " was not parsed")
	}
	return val
}

// GetInt returns the named option parsed as an int and whether it was
// given. Values that registered with SupportsInt already validated.
func (res *ArgParseResults) GetInt(name string) (int, bool) {
	val, ok := res.options[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetIntOrDefault returns the named option parsed as an int, or defVal
// when absent.
func (res *ArgParseResults) GetIntOrDefault(name string, defVal int) int {
	if n, ok := res.GetInt(name); ok {
		return n
	}
	return defVal
}

// NArg returns the number of positional arguments.
func (res *ArgParseResults) NArg() int {
	return len(res.args)
}

// Arg returns the i'th positional argument.
func (res *ArgParseResults) Arg(i int) string {
	return res.args[i]
}

// Args returns the positional arguments.
func (res *ArgParseResults) Args() []string {
	return res.args
}
