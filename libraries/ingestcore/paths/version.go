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

package paths

import (
	"fmt"
	"time"
)

// versionLayout is the RFC 3339 second-precision UTC timestamp with ':'
// replaced by '-' so it is a legal key segment. Lexicographic order on
// version strings equals temporal order.
const versionLayout = "2006-01-02T15-04-05"

// FormatVersion renders a run start time as a version string.
func FormatVersion(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(versionLayout)
}

// ParseVersion parses a version string back to its UTC timestamp.
func ParseVersion(s string) (time.Time, error) {
	t, err := time.ParseInLocation(versionLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad version %q: %w", s, err)
	}
	return t, nil
}
