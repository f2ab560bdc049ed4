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

// Package telemetry provides opt-in error reporting via Sentry. Nothing is
// sent unless a DSN is configured. Home directories and anything below the
// card mount point are scrubbed from events first, since file names on a
// card are user data.
package telemetry

import (
	"fmt"
	"io"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	sentryzerolog "github.com/getsentry/sentry-go/zerolog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const flushTimeout = 2 * time.Second

// cardPath replaces everything below the mount point.
const cardPath = "<card>"

var homeRe = regexp.MustCompile(`(?i)/(home|users)/[^/\s"']+`)

// Options describes the reporting target and the process being reported.
type Options struct {
	DSN     string
	Version string
	// MountPoint is scrubbed from every event.
	MountPoint string
	Simulate   bool
}

type reporter struct {
	writer *sentryzerolog.Writer
	scrub  scrubber
}

var (
	mu      sync.Mutex
	current *reporter
)

// Init starts Sentry and returns a zerolog writer that forwards error
// events. It returns a nil writer when no DSN is set.
func Init(opts Options) (io.Writer, error) {
	if opts.DSN == "" {
		log.Debug().Msg("error reporting disabled")
		return nil, nil
	}

	sc := scrubber{mountPoint: strings.TrimSuffix(opts.MountPoint, "/")}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Release:          "cardmon@" + opts.Version,
		AttachStacktrace: true,
		SendDefaultPII:   false,
		ServerName:       "",
		MaxBreadcrumbs:   0,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return sc.event(event)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("simulate", fmt.Sprint(opts.Simulate))
	})

	w, err := sentryzerolog.NewWithHub(sentry.CurrentHub(), sentryzerolog.Options{
		Levels:          []zerolog.Level{zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel},
		FlushTimeout:    flushTimeout,
		WithBreadcrumbs: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry zerolog writer: %w", err)
	}

	mu.Lock()
	current = &reporter{writer: w, scrub: sc}
	mu.Unlock()
	log.Info().Msg("error reporting enabled")
	return w, nil
}

// Close flushes pending events and shuts Sentry down. Later calls do
// nothing.
func Close() {
	mu.Lock()
	r := current
	current = nil
	mu.Unlock()
	if r == nil {
		return
	}
	_ = r.writer.Close()
	sentry.Flush(flushTimeout)
}

// Enabled reports whether events are being sent.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return current != nil
}

type scrubber struct {
	mountPoint string
}

func (sc scrubber) event(event *sentry.Event) *sentry.Event {
	// the SDK fills in the host name even with ServerName unset
	event.ServerName = ""
	event.Message = sc.text(event.Message)

	for i := range event.Exception {
		event.Exception[i].Value = sc.text(event.Exception[i].Value)
		st := event.Exception[i].Stacktrace
		if st == nil {
			continue
		}
		for j := range st.Frames {
			st.Frames[j].AbsPath = sc.text(st.Frames[j].AbsPath)
			st.Frames[j].Filename = sc.text(st.Frames[j].Filename)
		}
	}

	for k, v := range event.Extra {
		if str, ok := v.(string); ok {
			event.Extra[k] = sc.text(str)
		}
	}
	return event
}

// text hides home directory names and card contents in s.
func (sc scrubber) text(s string) string {
	if s == "" {
		return s
	}
	if sc.mountPoint != "" && sc.mountPoint != "/" {
		s = scrubBelow(s, sc.mountPoint)
	}
	return homeRe.ReplaceAllStringFunc(s, func(m string) string {
		if strings.EqualFold(m[:len("/users")], "/users") {
			return "/Users/<user>"
		}
		return "/home/<user>"
	})
}

// scrubBelow replaces every path starting with root by cardPath.
func scrubBelow(s, root string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, root)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := i + len(root)
		if end < len(s) && s[end] != '/' && !isPathEnd(s[end]) {
			// a longer name that only shares the prefix
			b.WriteString(s[:end])
			s = s[end:]
			continue
		}
		for end < len(s) && !isPathEnd(s[end]) {
			end++
		}
		b.WriteString(s[:i])
		b.WriteString(cardPath)
		s = s[end:]
	}
}

func isPathEnd(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '"', '\'', ':', ',', ')':
		return true
	}
	return false
}
