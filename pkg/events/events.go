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

// Package events provides broadcast event sources and listeners modelled on
// RTOS event flags. A Source can be broadcast from a timer callback without
// blocking; a Listener collects the IDs of every source that fired and hands
// them to a task that waits for them.
package events

import (
	"context"
	"sort"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
)

// ID identifies an event on a Listener. It is chosen by the listener when
// registering on a source, so the same source can map to different IDs on
// different listeners.
type ID int

// Source is a broadcast point that any number of listeners can register on.
type Source struct {
	listeners map[*Listener]ID
	name      string
	mu        syncutil.RWMutex
}

// NewSource returns a source with no listeners. The name is only used for
// logging.
func NewSource(name string) *Source {
	return &Source{
		name:      name,
		listeners: make(map[*Listener]ID),
	}
}

// Name returns the name given to NewSource.
func (s *Source) Name() string {
	return s.name
}

// Register attaches l to the source. Subsequent broadcasts mark id pending on
// l. Registering the same listener again replaces its ID.
func (s *Source) Register(l *Listener, id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[l] = id
}

// Unregister detaches l. It is safe to call for a listener that was never
// registered.
func (s *Source) Unregister(l *Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, l)
}

// Broadcast marks the event pending on every registered listener and wakes
// any task waiting on them. It never blocks on a listener.
func (s *Source) Broadcast() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for l, id := range s.listeners {
		l.signal(id)
	}
}

// Listener accumulates pending event IDs between waits. Repeated broadcasts
// of the same ID before a wait coalesce into one delivery.
type Listener struct {
	clock   clockwork.Clock
	pending map[ID]uint64
	wake    chan struct{}
	seq     uint64
	mu      syncutil.Mutex
}

// NewListener returns an empty listener. A nil clock uses the real clock.
func NewListener(clock clockwork.Clock) *Listener {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Listener{
		clock:   clock,
		pending: make(map[ID]uint64),
		wake:    make(chan struct{}, 1),
	}
}

func (l *Listener) signal(id ID) {
	l.mu.Lock()
	l.seq++
	l.pending[id] = l.seq
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether any event is waiting to be collected.
func (l *Listener) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) > 0
}

// take drains the pending set, ordered by the last broadcast of each ID.
func (l *Listener) take() []ID {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return nil
	}
	ids := make([]ID, 0, len(l.pending))
	for id := range l.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return l.pending[ids[i]] < l.pending[ids[j]]
	})
	clear(l.pending)
	return ids
}

// Wait blocks until at least one event is pending, the timeout elapses or
// ctx is done. It returns the delivered IDs, which is empty on timeout. A
// timeout of zero or less polls without blocking.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) ([]ID, error) {
	if ids := l.take(); len(ids) > 0 {
		return ids, nil
	}
	if timeout <= 0 {
		return nil, nil
	}

	timer := l.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.Chan():
			return l.take(), nil
		case <-l.wake:
			if ids := l.take(); len(ids) > 0 {
				return ids, nil
			}
		}
	}
}

// Handler handles one delivered event.
type Handler func(id ID)

// Dispatch calls the handler registered for every ID in ids, in order. Each ID
// is checked independently so a pass that collected several events handles
// all of them. IDs without a handler are ignored.
func Dispatch(handlers map[ID]Handler, ids []ID) {
	for _, id := range ids {
		if h, ok := handlers[id]; ok && h != nil {
			h(id)
		}
	}
}
