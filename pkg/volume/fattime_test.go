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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDecodeTimestamp_Epoch(t *testing.T) {
	t.Parallel()

	// 1980-01-01 00:00:00: year offset 0, month 1, day 1
	date := uint16(0<<9 | 1<<5 | 1)
	ts := DecodeTimestamp(date, 0)

	assert.Equal(t, Timestamp{Year: 1980, Month: 1, Day: 1}, ts)
	assert.Equal(t, "1980-01-01 00:00:00", ts.String())
}

func TestDecodeTimestamp_Fields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want Timestamp
		date uint16
		tm   uint16
	}{
		{
			name: "max fields",
			date: 0xFFFF,
			tm:   0xFFFF,
			want: Timestamp{Year: 2107, Month: 15, Day: 31, Hour: 31, Minute: 63, Second: 62},
		},
		{
			name: "two second resolution",
			date: 45<<9 | 12<<5 | 24,
			tm:   13<<11 | 37<<5 | 29,
			want: Timestamp{Year: 2025, Month: 12, Day: 24, Hour: 13, Minute: 37, Second: 58},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DecodeTimestamp(tt.date, tt.tm))
		})
	}
}

func TestPackDate_Clamps(t *testing.T) {
	t.Parallel()

	early := time.Date(1970, time.June, 5, 10, 11, 12, 0, time.UTC)
	assert.Equal(t, Timestamp{Year: 1980, Month: 1, Day: 1},
		DecodeTimestamp(PackDate(early), PackTime(early)))

	late := time.Date(2200, time.March, 1, 1, 2, 3, 0, time.UTC)
	assert.Equal(t, Timestamp{Year: 2107, Month: 12, Day: 31, Hour: 23, Minute: 59, Second: 58},
		DecodeTimestamp(PackDate(late), PackTime(late)))
}

func TestTimestamp_Time(t *testing.T) {
	t.Parallel()

	ts := Timestamp{Year: 2015, Month: 12, Day: 19, Hour: 8, Minute: 30, Second: 2}
	assert.Equal(t, time.Date(2015, time.December, 19, 8, 30, 2, 0, time.UTC), ts.Time(nil))
}

// TestPropertyPackDecodeRoundTrip checks that any time in the FAT range
// survives packing, losing only odd seconds.
func TestPropertyPackDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		in := time.Date(
			rapid.IntRange(1980, 2107).Draw(t, "year"),
			time.Month(rapid.IntRange(1, 12).Draw(t, "month")),
			rapid.IntRange(1, 28).Draw(t, "day"),
			rapid.IntRange(0, 23).Draw(t, "hour"),
			rapid.IntRange(0, 59).Draw(t, "minute"),
			rapid.IntRange(0, 59).Draw(t, "second"),
			0, time.UTC,
		)

		got := DecodeTimestamp(PackDate(in), PackTime(in)).Time(time.UTC)
		want := in.Add(-time.Duration(in.Second()%2) * time.Second)
		if !got.Equal(want) {
			t.Fatalf("round trip of %s gave %s, want %s", in, got, want)
		}
	})
}
