// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package parser

import (
	"regexp"
	"strings"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// separatorCollapses run once each, in order. They are deliberately not
// repeated until stable: five hyphens become two, and existing object
// paths depend on that.
var separatorCollapses = []struct{ old, new string }{
	{"---", "-"},
	{"--", "-"},
	{"___", "_"},
	{"__", "_"},
}

// SanitizePath restricts s to lowercase letters, digits, '-' and '_' so it
// can be used as a single path segment.
func SanitizePath(s string) string {
	s = strings.ReplaceAll(s, ".", "-")
	s = unsafePathChars.ReplaceAllLiteralString(s, "")
	for _, c := range separatorCollapses {
		s = strings.ReplaceAll(s, c.old, c.new)
	}
	return strings.ToLower(s)
}
