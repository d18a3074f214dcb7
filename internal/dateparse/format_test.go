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

package dateparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	ts := time.Date(2014, 10, 17, 13, 4, 2, 450_000_000, time.UTC)

	tests := []struct {
		pattern string
		want    string
	}{
		{"yyyy/MM/dd/HH", "2014/10/17/13"},
		{"yyyy-MM-dd", "2014-10-17"},
		{"'dt='yyyy-MM-dd'/hr='HH", "dt=2014-10-17/hr=13"},
		{"yy/M/d/H", "14/10/17/13"},
		{"yyyyMMdd", "20141017"},
		{"HH:mm:ss.SSS", "13:04:02.450"},
		{"H:m:s", "13:4:2"},
		{"S", "4"},
		{"SSSSS", "45000"},
		{"hh a", "01 PM"},
		{"K k", "1 13"},
		{"MMM MMMM", "Oct October"},
		{"EEE EEEE e", "Fri Friday 5"},
		{"D DDD", "290 290"},
		{"xxxx-'W'ww", "2014-W42"},
		{"G C YYYY", "AD 20 2014"},
		{"'o''clock'", "o'clock"},
		{"HH''mm", "13'04"},
		{"'it''s' HH", "it's 13"},
		{"", ""},
		{"//", "//"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := Format(ts, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMidnightAndNoon(t *testing.T) {
	midnight := time.Date(2015, 1, 27, 0, 0, 0, 0, time.UTC)
	noon := time.Date(2015, 1, 27, 12, 0, 0, 0, time.UTC)

	got, err := Format(midnight, "h a k K H")
	require.NoError(t, err)
	assert.Equal(t, "12 AM 24 0 0", got)

	got, err = Format(noon, "h a k K H")
	require.NoError(t, err)
	assert.Equal(t, "12 PM 12 0 12", got)
}

func TestFormatZoneFieldsPrintNothing(t *testing.T) {
	ts := time.Date(2015, 1, 27, 18, 31, 1, 0, time.UTC)

	tests := []struct {
		pattern string
		want    string
	}{
		{"yyyy/MM/dd/HH Z", "2015/01/27/18 "},
		{"yyyy zzz", "2015 "},
		{"HH:mmZZ'Z'", "18:31Z"},
		{"zzzz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := Format(ts, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatErrors(t *testing.T) {
	ts := time.Date(2014, 10, 17, 13, 4, 2, 0, time.UTC)

	_, err := Format(ts, "yyyy/MM/dd/HH/q")
	assert.ErrorIs(t, err, ErrBadPattern)

	_, err = Format(ts, "'unterminated")
	assert.ErrorIs(t, err, ErrBadPattern)
}

func TestFormatUsesCache(t *testing.T) {
	ts := time.Date(2014, 10, 17, 1, 0, 0, 0, time.UTC)
	pattern := "yyyy|MM|dd|HH"

	first, err := Format(ts, pattern)
	require.NoError(t, err)
	require.NotNil(t, patternCache.Get(pattern))

	second, err := Format(ts, pattern)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "2014|10|17|01", second)
}

func TestCompileString(t *testing.T) {
	p, err := Compile("yyyy/MM")
	require.NoError(t, err)
	assert.Equal(t, "yyyy/MM", p.String())
}
