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

import (
	"fmt"
	"strconv"
	"strings"
)

type OptionType int

const (
	// OptionalFlag is a boolean switch taking no value.
	OptionalFlag OptionType = iota
	// OptionalValue takes a value when present but may be omitted.
	OptionalValue
	// RequiredValue takes a value and must be present.
	RequiredValue
)

type ValidationFunc func(string) error

// Convenience validation function that asserts that an arg is an integer
func isIntStr(str string) error {
	if _, err := strconv.ParseInt(str, 10, 32); err != nil {
		return fmt.Errorf("error: %q is not a valid int", str)
	}
	return nil
}

// ValidatorFromStrList builds a validator accepting only the listed
// values, case-insensitively.
func ValidatorFromStrList(paramName string, validStrList []string) ValidationFunc {
	errSuffix := " is not a valid value for '" + paramName + "'. valid values are: " + strings.Join(validStrList, "|")
	validStrSet := make(map[string]struct{}, len(validStrList))
	for _, str := range validStrList {
		validStrSet[strings.ToLower(str)] = struct{}{}
	}

	return func(s string) error {
		if _, ok := validStrSet[strings.ToLower(s)]; !ok {
			return fmt.Errorf("%s%s", s, errSuffix)
		}
		return nil
	}
}

// An Option encapsulates all the information necessary to represent and parse a command line argument.
type Option struct {
	// Long name for this Option, specified on the command line with --Name. Required.
	Name string
	// Abbreviated name for this Option, specified on the command line with -Abbrev. Optional.
	Abbrev string
	// Placeholder for the value in usage text, e.g. "file".
	ValDesc string
	// The type of this option, either a flag or a value.
	OptType OptionType
	// Longer help text for the option.
	Desc string
	// Function to validate an Option after parsing, returning any error.
	Validator ValidationFunc
}
