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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ErrBadPattern is returned for unknown pattern letters or an
// unterminated quote.
var ErrBadPattern = errors.New("invalid date pattern")

const (
	patternCacheTTL      = 30 * time.Minute
	patternCacheCapacity = 1024
)

var patternCache = ttlcache.New(
	ttlcache.WithTTL[string, *Pattern](patternCacheTTL),
	ttlcache.WithCapacity[string, *Pattern](patternCacheCapacity),
)

func init() {
	go patternCache.Start()
}

type field struct {
	letter  byte
	count   int
	literal string
}

// Pattern is a compiled Joda-style date pattern.
type Pattern struct {
	source string
	fields []field
}

// Format renders t using pattern, compiling and caching the pattern on
// first use.
func Format(t time.Time, pattern string) (string, error) {
	if item := patternCache.Get(pattern); item != nil {
		return item.Value().Format(t), nil
	}
	p, err := Compile(pattern)
	if err != nil {
		return "", err
	}
	patternCache.Set(pattern, p, ttlcache.DefaultTTL)
	return p.Format(t), nil
}

// Compile parses a Joda-style pattern. Runs of a letter form one field;
// text inside single quotes is literal and '' is a quote. Any other
// non-letter character is copied through. Zone fields print nothing since
// formatted values are local date-times.
func Compile(pattern string) (*Pattern, error) {
	p := &Pattern{source: pattern}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			p.fields = append(p.fields, field{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch {
		case c == '\'':
			if i+1 < len(pattern) && pattern[i+1] == '\'' {
				lit.WriteByte('\'')
				i += 2
				continue
			}
			j, closed := i+1, false
			for j < len(pattern) && !closed {
				switch {
				case pattern[j] != '\'':
					lit.WriteByte(pattern[j])
					j++
				case j+1 < len(pattern) && pattern[j+1] == '\'':
					lit.WriteByte('\'')
					j += 2
				default:
					closed = true
					j++
				}
			}
			if !closed {
				return nil, fmt.Errorf("%w %q: unterminated quote", ErrBadPattern, pattern)
			}
			i = j
		case isLetter(c):
			n := 1
			for i+n < len(pattern) && pattern[i+n] == c {
				n++
			}
			switch c {
			case 'G', 'z', 'Z', 'C', 'Y', 'x', 'y', 'w', 'e', 'E', 'D', 'M', 'd', 'a', 'K', 'h', 'H', 'k', 'm', 's', 'S':
			default:
				return nil, fmt.Errorf("%w %q: illegal letter %q", ErrBadPattern, pattern, c)
			}
			flush()
			p.fields = append(p.fields, field{letter: c, count: n})
			i += n
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return p, nil
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.source
}

// Format renders t's wall-clock fields.
func (p *Pattern) Format(t time.Time) string {
	var b strings.Builder
	for _, f := range p.fields {
		if f.letter == 0 {
			b.WriteString(f.literal)
			continue
		}
		writeField(&b, f, t)
	}
	return b.String()
}

func writeField(b *strings.Builder, f field, t time.Time) {
	switch f.letter {
	case 'G':
		if t.Year() <= 0 {
			b.WriteString("BC")
		} else {
			b.WriteString("AD")
		}
	case 'C':
		pad(b, yearOfEra(t.Year())/100, f.count)
	case 'Y':
		writeYear(b, yearOfEra(t.Year()), f.count)
	case 'y':
		writeYear(b, t.Year(), f.count)
	case 'x':
		wy, _ := t.ISOWeek()
		writeYear(b, wy, f.count)
	case 'w':
		_, wk := t.ISOWeek()
		pad(b, wk, f.count)
	case 'e':
		pad(b, isoWeekday(t), f.count)
	case 'E':
		name := t.Weekday().String()
		if f.count < 4 {
			name = name[:3]
		}
		b.WriteString(name)
	case 'D':
		pad(b, t.YearDay(), f.count)
	case 'M':
		switch {
		case f.count >= 4:
			b.WriteString(t.Month().String())
		case f.count == 3:
			b.WriteString(t.Month().String()[:3])
		default:
			pad(b, int(t.Month()), f.count)
		}
	case 'd':
		pad(b, t.Day(), f.count)
	case 'a':
		if t.Hour() < 12 {
			b.WriteString("AM")
		} else {
			b.WriteString("PM")
		}
	case 'K':
		pad(b, t.Hour()%12, f.count)
	case 'h':
		h := t.Hour() % 12
		if h == 0 {
			h = 12
		}
		pad(b, h, f.count)
	case 'H':
		pad(b, t.Hour(), f.count)
	case 'k':
		h := t.Hour()
		if h == 0 {
			h = 24
		}
		pad(b, h, f.count)
	case 'm':
		pad(b, t.Minute(), f.count)
	case 's':
		pad(b, t.Second(), f.count)
	case 'S':
		// Millisecond precision, truncated or zero-extended to the width.
		ms := fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
		if f.count <= len(ms) {
			b.WriteString(ms[:f.count])
		} else {
			b.WriteString(ms)
			b.WriteString(strings.Repeat("0", f.count-len(ms)))
		}
	}
}

// writeYear prints a two-letter year as the last two digits and any other
// width as the full year padded to that width.
func writeYear(b *strings.Builder, year, count int) {
	if count == 2 {
		y := year % 100
		if y < 0 {
			y = -y
		}
		pad(b, y, 2)
		return
	}
	pad(b, year, count)
}

func pad(b *strings.Builder, v, width int) {
	if v < 0 {
		b.WriteByte('-')
		v = -v
	}
	s := strconv.Itoa(v)
	for i := len(s); i < width; i++ {
		b.WriteByte('0')
	}
	b.WriteString(s)
}

func yearOfEra(year int) int {
	if year <= 0 {
		return 1 - year
	}
	return year
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
