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

package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrubberText(t *testing.T) {
	t.Parallel()

	sc := scrubber{mountPoint: "/media/sdcard"}
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "device node", input: "/dev/mmcblk0", want: "/dev/mmcblk0"},
		{
			name:  "home path",
			input: "/home/alice/.config/cardmon/cardmon.toml",
			want:  "/home/<user>/.config/cardmon/cardmon.toml",
		},
		{
			name:  "home path uppercase",
			input: "/Home/Alice/.config/cardmon",
			want:  "/home/<user>/.config/cardmon",
		},
		{
			name:  "macos users path",
			input: "/Users/alice/Library/Caches/cardmon/logs",
			want:  "/Users/<user>/Library/Caches/cardmon/logs",
		},
		{
			name:  "card file in message",
			input: `open "/media/sdcard/photos/cat.jpg": no such file`,
			want:  `open "<card>": no such file`,
		},
		{
			name:  "mount point alone",
			input: "mount /media/sdcard failed",
			want:  "mount <card> failed",
		},
		{
			name:  "longer sibling name kept",
			input: "/media/sdcard2/a.txt",
			want:  "/media/sdcard2/a.txt",
		},
		{
			name:  "several paths",
			input: "copy /media/sdcard/a to /home/bob/b",
			want:  "copy <card> to /home/<user>/b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sc.text(tt.input))
		})
	}
}

func TestScrubberText_RootMount(t *testing.T) {
	t.Parallel()

	sc := scrubber{mountPoint: "/"}
	assert.Equal(t, "/etc/fstab", sc.text("/etc/fstab"))
}

func TestScrubberEvent(t *testing.T) {
	t.Parallel()

	sc := scrubber{mountPoint: "/media/sdcard"}
	event := &sentry.Event{
		ServerName: "alices-laptop",
		Message:    "mkdir /media/sdcard/private failed",
		Extra: map[string]any{
			"path":  "/Users/alice/card",
			"count": 3,
		},
		Exception: []sentry.Exception{{
			Value: "open /media/sdcard/diary.txt: permission denied",
			Stacktrace: &sentry.Stacktrace{
				Frames: []sentry.Frame{{
					AbsPath:  "/home/alice/src/cardmon/pkg/lifecycle/lifecycle.go",
					Filename: "/home/alice/src/cardmon/pkg/lifecycle/lifecycle.go",
				}},
			},
		}},
	}

	got := sc.event(event)
	require.NotNil(t, got)
	assert.Empty(t, got.ServerName)
	assert.Equal(t, "mkdir <card> failed", got.Message)
	assert.Equal(t, "/Users/<user>/card", got.Extra["path"])
	assert.Equal(t, 3, got.Extra["count"])
	assert.Equal(t, "open <card>: permission denied", got.Exception[0].Value)
	frame := got.Exception[0].Stacktrace.Frames[0]
	assert.Equal(t, "/home/<user>/src/cardmon/pkg/lifecycle/lifecycle.go", frame.AbsPath)
	assert.Equal(t, "/home/<user>/src/cardmon/pkg/lifecycle/lifecycle.go", frame.Filename)
}

func TestInitWithoutDSN(t *testing.T) {
	t.Parallel()

	w, err := Init(Options{Version: "test", MountPoint: "/media/sdcard"})
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.False(t, Enabled())
}

func TestCloseWhenDisabled(t *testing.T) {
	t.Parallel()

	Close()
	Close()
	assert.False(t, Enabled())
}
