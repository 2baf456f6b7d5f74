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

// Package argparser parses command line flags and options for silt
// subcommands. Options have a long name, an optional single-letter
// abbreviation, and take values either as the following token or joined
// with '='.
package argparser

import (
	"errors"
	"fmt"
	"strings"
)

const (
	helpFlag       = "help"
	helpFlagAbbrev = "h"
)

// ErrHelp is returned by Parse when the universal --help or -h flag is
// found.
var ErrHelp = errors.New("Help")

// UnknownOptionError is returned for arguments that look like options but
// match nothing the parser supports.
type UnknownOptionError struct {
	name string
}

func (e UnknownOptionError) Error() string {
	return fmt.Sprintf("error: unknown option '%s'", e.name)
}

type ArgParser struct {
	// Name of the command the parser belongs to, used in errors.
	Name string
	// MaxArgs bounds the positional arguments; -1 means unbounded.
	MaxArgs int
	// Supported lists the options in registration order, for usage text.
	Supported         []*Option
	nameOrAbbrevToOpt map[string]*Option
}

// NewArgParser creates a parser for the named command accepting at most
// maxArgs positional arguments, or any number when maxArgs is -1.
func NewArgParser(name string, maxArgs int) *ArgParser {
	return &ArgParser{
		Name:              name,
		MaxArgs:           maxArgs,
		nameOrAbbrevToOpt: make(map[string]*Option),
	}
}

// SupportOption adds support for a new argument with the option given. Options must have a unique name and abbreviated name.
func (ap *ArgParser) SupportOption(opt *Option) {
	name := opt.Name
	abbrev := opt.Abbrev

	_, nameExist := ap.nameOrAbbrevToOpt[name]
	_, abbrevExist := ap.nameOrAbbrevToOpt[abbrev]

	if name == "" {
		panic("Name is required")
	} else if name == helpFlag || abbrev == helpFlag || name == helpFlagAbbrev || abbrev == helpFlagAbbrev {
		panic(`"help" and "h" are both reserved`)
	} else if nameExist || abbrevExist {
		panic("There is a bug. Two supported arguments have the same name or abbreviation")
	} else if name[0] == '-' || (len(abbrev) > 0 && abbrev[0] == '-') {
		panic("There is a bug. Option names and abbreviations should not start with -")
	} else if strings.ContainsAny(name, " =\r\n\t") {
		panic("There is a bug. Option name contains an invalid character")
	}

	ap.Supported = append(ap.Supported, opt)
	ap.nameOrAbbrevToOpt[name] = opt
	if abbrev != "" {
		ap.nameOrAbbrevToOpt[abbrev] = opt
	}
}

// SupportsFlag adds support for a new flag (argument with no value). See SupportOption for details on params.
func (ap *ArgParser) SupportsFlag(name, abbrev, desc string) *ArgParser {
	ap.SupportOption(&Option{Name: name, Abbrev: abbrev, OptType: OptionalFlag, Desc: desc})
	return ap
}

// SupportsString adds support for a new string argument with the description given. See SupportOption for details on params.
func (ap *ArgParser) SupportsString(name, abbrev, valDesc, desc string) *ArgParser {
	ap.SupportOption(&Option{Name: name, Abbrev: abbrev, ValDesc: valDesc, OptType: OptionalValue, Desc: desc})
	return ap
}

// SupportsRequiredString adds support for a new required string argument with the description given. See SupportOption for details on params.
func (ap *ArgParser) SupportsRequiredString(name, abbrev, valDesc, desc string) *ArgParser {
	ap.SupportOption(&Option{Name: name, Abbrev: abbrev, ValDesc: valDesc, OptType: RequiredValue, Desc: desc})
	return ap
}

// SupportsValidatedString adds support for a new string argument with the description given and defined validation function.
func (ap *ArgParser) SupportsValidatedString(name, abbrev, valDesc, desc string, validator ValidationFunc) *ArgParser {
	ap.SupportOption(&Option{Name: name, Abbrev: abbrev, ValDesc: valDesc, OptType: OptionalValue, Desc: desc, Validator: validator})
	return ap
}

// SupportsInt adds support for a new int argument with the description given. See SupportOption for details on params.
func (ap *ArgParser) SupportsInt(name, abbrev, valDesc, desc string) *ArgParser {
	ap.SupportOption(&Option{Name: name, Abbrev: abbrev, ValDesc: valDesc, OptType: OptionalValue, Desc: desc, Validator: isIntStr})
	return ap
}

// Parse parses the string args given using the configuration previously specified with calls to the various Supports*
// methods. Any unrecognized arguments or incorrect types will result in an appropriate error being returned. If the
// universal --help or -h flag is found, an ErrHelp error is returned.
func (ap *ArgParser) Parse(args []string) (*ArgParseResults, error) {
	positionalArgs := make([]string, 0, len(args))
	namedArgs := make(map[string]string)
	onlyPositionalArgsLeft := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// empty strings pass through like other naked words
		if len(arg) == 0 || arg[0] != '-' || onlyPositionalArgsLeft {
			positionalArgs = append(positionalArgs, arg)
			continue
		}
		if arg == "--" {
			onlyPositionalArgsLeft = true
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if name == helpFlag || name == helpFlagAbbrev {
			return nil, ErrHelp
		}

		value := ""
		hasValue := false
		if idx := strings.IndexByte(name, '='); idx != -1 {
			name, value, hasValue = name[:idx], name[idx+1:], true
		}

		opt, ok := ap.nameOrAbbrevToOpt[name]
		if !ok {
			return nil, UnknownOptionError{name: name}
		}
		if _, exists := namedArgs[opt.Name]; exists {
			return nil, fmt.Errorf("error: multiple values provided for '%s'", opt.Name)
		}

		if opt.OptType == OptionalFlag {
			if hasValue {
				return nil, fmt.Errorf("error: flag '%s' does not take a value", opt.Name)
			}
			namedArgs[opt.Name] = ""
			continue
		}

		if !hasValue {
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("error: no value for option '%s'", opt.Name)
			}
			value = args[i]
		}
		if opt.Validator != nil {
			if err := opt.Validator(value); err != nil {
				return nil, err
			}
		}
		namedArgs[opt.Name] = value
	}

	if ap.MaxArgs != -1 && len(positionalArgs) > ap.MaxArgs {
		if ap.MaxArgs == 0 {
			return nil, fmt.Errorf("error: %s does not take positional arguments, but found %d: %s",
				ap.Name, len(positionalArgs), strings.Join(positionalArgs, ", "))
		}
		return nil, fmt.Errorf("error: %s has too many positional arguments. Expected at most %d, found %d: %s",
			ap.Name, ap.MaxArgs, len(positionalArgs), strings.Join(positionalArgs, ", "))
	}

	for _, opt := range ap.Supported {
		if opt.OptType == RequiredValue {
			if _, ok := namedArgs[opt.Name]; !ok {
				return nil, fmt.Errorf("error: option '%s' is required", opt.Name)
			}
		}
	}

	return &ArgParseResults{namedArgs, positionalArgs, ap}, nil
}
