/*
Cardmon
Copyright (c) 2026 The Zaparoo Project Contributors.
SPDX-License-Identifier: GPL-3.0-or-later

This file is part of Cardmon.

Cardmon is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Cardmon is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Cardmon.  If not, see <http://www.gnu.org/licenses/>.
*/

package volume

import (
	"fmt"
	"time"
)

// FAT stores modification times as two packed 16-bit words:
//
//	date: yyyyyyym mmmddddd  (year offset from 1980, month, day)
//	time: hhhhhmmm mmmsssss  (hour, minute, second / 2)
const (
	yearBase = 1980
	yearMax  = yearBase + 0x7F

	dateYearShift  = 9
	dateYearMask   = 0xFE00
	dateMonthShift = 5
	dateMonthMask  = 0x01E0
	dateDayMask    = 0x001F

	timeHourShift   = 11
	timeHourMask    = 0xF800
	timeMinuteShift = 5
	timeMinuteMask  = 0x07E0
	timeSecondMask  = 0x001F
)

// Timestamp is a decoded FAT date and time.
type Timestamp struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// DecodeTimestamp unpacks FAT date and time words. Seconds have a
// resolution of two.
func DecodeTimestamp(date, tm uint16) Timestamp {
	return Timestamp{
		Year:   int((date&dateYearMask)>>dateYearShift) + yearBase,
		Month:  int((date & dateMonthMask) >> dateMonthShift),
		Day:    int(date & dateDayMask),
		Hour:   int((tm & timeHourMask) >> timeHourShift),
		Minute: int((tm & timeMinuteMask) >> timeMinuteShift),
		Second: int(tm&timeSecondMask) * 2,
	}
}

// PackDate packs the date part of t. Dates outside the FAT range are clamped
// to 1980-01-01 and 2107-12-31.
func PackDate(t time.Time) uint16 {
	y, m, d := t.Date()
	switch {
	case y < yearBase:
		y, m, d = yearBase, time.January, 1
	case y > yearMax:
		y, m, d = yearMax, time.December, 31
	}
	//nolint:gosec // all fields are range checked above
	return uint16(y-yearBase)<<dateYearShift | uint16(m)<<dateMonthShift | uint16(d)
}

// PackTime packs the time of day of t, truncating to even seconds. Times
// before 1980 pack as midnight and times after 2107 as 23:59:58, matching
// PackDate.
func PackTime(t time.Time) uint16 {
	switch y := t.Year(); {
	case y < yearBase:
		return 0
	case y > yearMax:
		return 23<<timeHourShift | 59<<timeMinuteShift | 29
	}
	//nolint:gosec // clock fields are always in range
	return uint16(t.Hour())<<timeHourShift | uint16(t.Minute())<<timeMinuteShift | uint16(t.Second()/2)
}

// Time converts the timestamp to a time.Time in loc. A nil loc means UTC.
func (ts Timestamp) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(ts.Year, time.Month(ts.Month), ts.Day, ts.Hour, ts.Minute, ts.Second, 0, loc)
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		ts.Year, ts.Month, ts.Day, ts.Hour, ts.Minute, ts.Second)
}
