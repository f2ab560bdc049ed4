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

// Package monitor polls a removable device for physical presence and turns
// the raw samples into debounced Inserted and Removed events.
//
// Polling runs on a self-rearming timer. The timer callback plays the role of
// an interrupt handler: it samples presence, updates the debounce counter,
// broadcasts events and schedules the next poll. It never blocks, never
// touches the filesystem and reports nothing but events.
package monitor

import (
	"errors"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/blockdev"
	"github.com/ZaparooProject/cardmon/pkg/events"
	"github.com/ZaparooProject/cardmon/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultInterval is the time between presence samples.
	DefaultInterval = 10 * time.Millisecond
	// DefaultSamples is how many consecutive present samples confirm an
	// insertion.
	DefaultSamples = 10
)

var ErrAlreadyStarted = errors.New("monitor already started")

// Options configures a Monitor. Zero values use the defaults.
type Options struct {
	Clock    clockwork.Clock
	Interval time.Duration
	Samples  int
}

// Monitor debounces a device's presence signal.
//
// Insertion needs Samples consecutive present samples. Removal is reported on
// the first absent sample after an insertion was confirmed, with no debounce,
// so a yanked card is acted on straight away.
type Monitor struct {
	dev      blockdev.Presence
	clock    clockwork.Clock
	inserted *events.Source
	removed  *events.Source
	timer    clockwork.Timer
	interval time.Duration
	samples  int
	// counter is owned by the poll callback. A value of zero means an
	// insertion has been confirmed.
	counter int
	mu      syncutil.Mutex
	started bool
	stopped bool
}

// New returns a monitor for dev. It does nothing until Start is called.
func New(dev blockdev.Presence, opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Samples <= 0 {
		opts.Samples = DefaultSamples
	}
	return &Monitor{
		dev:      dev,
		clock:    opts.Clock,
		interval: opts.Interval,
		samples:  opts.Samples,
		counter:  opts.Samples,
		inserted: events.NewSource("inserted"),
		removed:  events.NewSource("removed"),
	}
}

// Inserted is broadcast once per confirmed insertion.
func (m *Monitor) Inserted() *events.Source {
	return m.inserted
}

// Removed is broadcast once per removal of a confirmed insertion.
func (m *Monitor) Removed() *events.Source {
	return m.removed
}

// Start schedules the first poll. A monitor can only be started once.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true
	m.timer = m.clock.AfterFunc(m.interval, m.poll)

	log.Info().
		Dur("interval", m.interval).
		Int("samples", m.samples).
		Msg("card monitor started")
	return nil
}

// Stop cancels the next poll. A poll already running completes but does not
// rearm. The monitor can't be restarted.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
	}
}

// poll is the timer callback.
func (m *Monitor) poll() {
	m.sample(m.dev.IsInserted())

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.timer = m.clock.AfterFunc(m.interval, m.poll)
}

// sample advances the debounce state machine by one presence sample.
func (m *Monitor) sample(present bool) {
	if m.counter > 0 {
		if !present {
			m.counter = m.samples
			return
		}
		m.counter--
		if m.counter == 0 {
			m.inserted.Broadcast()
		}
		return
	}

	if !present {
		m.counter = m.samples
		m.removed.Broadcast()
	}
}
