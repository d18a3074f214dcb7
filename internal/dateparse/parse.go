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

// Package dateparse parses ISO-8601 dates with an optional time part and
// renders date-times with Joda-style patterns such as "yyyy/MM/dd/HH".
package dateparse

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDate is wrapped by every parse failure.
var ErrInvalidDate = errors.New("invalid ISO-8601 date")

const (
	maxYearDigits     = 9
	maxYear           = 292278993
	maxFractionDigits = 9
)

// ParseDateOptionalTime parses s as an ISO-8601 date with an optional time
// and offset. Accepted shapes include:
//
//	2014
//	2014-10
//	2014-10-17
//	2014-W42-5
//	2014-290
//	2014-10-17T01
//	2014-10-17T01:34:22.450+00:00
//	2015-01-27T18:31:01Z
//
// The offset is validated but not applied: the returned time carries the
// wall-clock fields exactly as written, in UTC.
func ParseDateOptionalTime(s string) (time.Time, error) {
	p := &scanner{src: s}

	date, err := p.date()
	if err != nil {
		return time.Time{}, p.fail(err)
	}

	var clock time.Duration
	if p.accept('T') {
		if clock, err = p.clock(); err != nil {
			return time.Time{}, p.fail(err)
		}
		if err := p.offset(); err != nil {
			return time.Time{}, p.fail(err)
		}
	}

	if !p.done() {
		return time.Time{}, p.fail(fmt.Errorf("unexpected %q", p.src[p.pos:]))
	}
	return date.Add(clock), nil
}

type scanner struct {
	src string
	pos int
}

func (p *scanner) fail(err error) error {
	return fmt.Errorf("%w %q: %v", ErrInvalidDate, p.src, err)
}

func (p *scanner) done() bool {
	return p.pos >= len(p.src)
}

func (p *scanner) peek() byte {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

func (p *scanner) accept(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

// digits reads between 1 and maxLen ASCII digits and returns the value and
// the number of digits consumed.
func (p *scanner) digits(maxLen int) (int, int, bool) {
	v, n := 0, 0
	for n < maxLen && !p.done() {
		c := p.src[p.pos]
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + int(c-'0')
		p.pos++
		n++
	}
	return v, n, n > 0
}

// runLength reports how many digits start at the current position.
func (p *scanner) runLength() int {
	n := 0
	for i := p.pos; i < len(p.src) && p.src[i] >= '0' && p.src[i] <= '9'; i++ {
		n++
	}
	return n
}

func (p *scanner) date() (time.Time, error) {
	sign := 1
	if p.accept('-') {
		sign = -1
	} else {
		p.accept('+')
	}

	year, _, ok := p.digits(maxYearDigits)
	if !ok {
		return time.Time{}, errors.New("missing year")
	}
	if year > maxYear {
		return time.Time{}, fmt.Errorf("year %d out of range", year)
	}
	year *= sign

	if !p.accept('-') {
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), nil
	}

	if p.accept('W') {
		return p.weekDate(year)
	}

	if p.runLength() == 3 {
		yday, _, _ := p.digits(3)
		daysInYear := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
		if yday < 1 || yday > daysInYear {
			return time.Time{}, fmt.Errorf("day of year %d out of range", yday)
		}
		return time.Date(year, time.January, yday, 0, 0, 0, 0, time.UTC), nil
	}

	month, _, ok := p.digits(2)
	if !ok {
		return time.Time{}, errors.New("missing month")
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}

	day := 1
	if p.accept('-') {
		if day, _, ok = p.digits(2); !ok {
			return time.Time{}, errors.New("missing day")
		}
		if day < 1 || day > daysIn(year, time.Month(month)) {
			return time.Time{}, fmt.Errorf("day %d out of range", day)
		}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

func (p *scanner) weekDate(weekyear int) (time.Time, error) {
	week, _, ok := p.digits(2)
	if !ok {
		return time.Time{}, errors.New("missing week")
	}

	weekday := 1
	if p.accept('-') {
		if weekday, _, ok = p.digits(1); !ok {
			return time.Time{}, errors.New("missing day of week")
		}
		if weekday < 1 || weekday > 7 {
			return time.Time{}, fmt.Errorf("day of week %d out of range", weekday)
		}
	}

	// January 4th is always in week 1.
	jan4 := time.Date(weekyear, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, -isoWeekday(jan4)+1)

	_, lastWeek := time.Date(weekyear, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	if week < 1 || week > lastWeek {
		return time.Time{}, fmt.Errorf("week %d out of range", week)
	}
	return monday.AddDate(0, 0, (week-1)*7+weekday-1), nil
}

// clock parses HH[:mm[:ss]] with an optional fraction on the last element.
// An empty time element is allowed, matching "2014-10-17T".
func (p *scanner) clock() (time.Duration, error) {
	if p.runLength() == 0 {
		return 0, nil
	}

	hour, _, _ := p.digits(2)
	if hour > 23 {
		return 0, fmt.Errorf("hour %d out of range", hour)
	}
	d := time.Duration(hour) * time.Hour

	if frac, ok, err := p.fraction(time.Hour); err != nil || ok {
		return d + frac, err
	}
	if !p.accept(':') {
		return d, nil
	}

	minute, _, ok := p.digits(2)
	if !ok {
		return 0, errors.New("missing minute")
	}
	if minute > 59 {
		return 0, fmt.Errorf("minute %d out of range", minute)
	}
	d += time.Duration(minute) * time.Minute

	if frac, ok, err := p.fraction(time.Minute); err != nil || ok {
		return d + frac, err
	}
	if !p.accept(':') {
		return d, nil
	}

	second, _, ok := p.digits(2)
	if !ok {
		return 0, errors.New("missing second")
	}
	if second > 59 {
		return 0, fmt.Errorf("second %d out of range", second)
	}
	d += time.Duration(second) * time.Second

	frac, _, err := p.fraction(time.Second)
	return d + frac, err
}

// fraction parses a decimal fraction of unit introduced by '.' or ','.
// At most nanosecond precision is accepted.
func (p *scanner) fraction(unit time.Duration) (time.Duration, bool, error) {
	if !p.accept('.') && !p.accept(',') {
		return 0, false, nil
	}
	n := p.runLength()
	if n == 0 {
		return 0, true, errors.New("missing fraction digits")
	}
	if n > maxFractionDigits {
		return 0, true, fmt.Errorf("fraction has %d digits, at most %d allowed", n, maxFractionDigits)
	}
	v, got, _ := p.digits(maxFractionDigits)

	scale := time.Duration(1)
	for i := 0; i < got; i++ {
		scale *= 10
	}
	// unit is a whole number of seconds or more, so it divides evenly.
	return time.Duration(v) * (unit / scale), true, nil
}

// offset validates a trailing 'Z' or ±HH[[:]mm] designator.
func (p *scanner) offset() error {
	if p.accept('Z') {
		return nil
	}
	if !p.accept('+') && !p.accept('-') {
		return nil
	}

	hours, n, _ := p.digits(2)
	if n != 2 || hours > 23 {
		return errors.New("invalid offset hours")
	}
	colon := p.accept(':')
	if p.runLength() == 0 {
		if colon {
			return errors.New("missing offset minutes")
		}
		return nil
	}
	minutes, n, _ := p.digits(2)
	if n != 2 || minutes > 59 {
		return errors.New("invalid offset minutes")
	}
	return nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// isoWeekday returns 1 for Monday through 7 for Sunday.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
