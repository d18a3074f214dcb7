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
	"bytes"
	"encoding/json"
)

// Fields is the top level of a decoded JSON object payload. Values stay
// raw until looked up.
type Fields map[string]json.RawMessage

// DecodePayload decodes payload as a JSON object. It reports false for
// malformed input and for any top-level value that is not an object.
func DecodePayload(payload []byte) (Fields, bool) {
	var f Fields
	if err := json.Unmarshal(payload, &f); err != nil || f == nil {
		return nil, false
	}
	return f, true
}

// Lookup returns the named value rendered as a string. Absent keys and
// JSON null report false. Strings are unquoted, numbers and booleans keep
// their literal text, and objects and arrays are returned as compact JSON.
func (f Fields) Lookup(name string) (string, bool) {
	raw, ok := f[name]
	if !ok {
		return "", false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return string(raw), true
		}
		return buf.String(), true
	default:
		return string(raw), true
	}
}
