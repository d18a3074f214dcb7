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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"availability", "availability"},
		{"Task Scheduler - Task Published Event   - V 1.0", "taskscheduler-taskpublishedevent-v1-0"},
		{"search:*results-'|dir-v1", "searchresults-dir-v1"},
		{"a.b.c", "a-b-c"},
		{"a..b", "a-b"},
		{"a---b", "a-b"},
		{"a--b", "a-b"},
		{"a-----b", "a--b"},
		{"a___b", "a_b"},
		{"a__b", "a_b"},
		{"a_____b", "a__b"},
		{"MiXeD_Case-9", "mixed_case-9"},
		{"émoji 🎉 name", "mojiname"},
		{"../../etc/passwd", "-etcpasswd"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePath(tt.in))
		})
	}
}

func TestSanitizePathOutputAlphabet(t *testing.T) {
	inputs := []string{"Hello, World!", "x/y\\z", "tab\there", "100%"}
	for _, in := range inputs {
		out := SanitizePath(in)
		assert.Regexp(t, `^[a-z0-9\-_]*$`, out, "input %q", in)
	}
}
