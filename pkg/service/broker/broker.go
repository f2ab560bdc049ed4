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

// Package broker fans a single channel of values out to any number of
// subscribers. A full subscriber misses values instead of holding up the
// others.
package broker

import (
	"context"
	"sync/atomic"

	"github.com/ZaparooProject/cardmon/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

type subscriber[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

type Broker[T any] struct {
	source <-chan T
	subs   map[int]*subscriber[T]
	mu     syncutil.RWMutex
	nextID int
	closed bool
}

func New[T any](source <-chan T) *Broker[T] {
	return &Broker[T]{
		source: source,
		subs:   make(map[int]*subscriber[T]),
	}
}

// Run forwards values until the source closes or ctx ends, then closes
// every subscriber channel. Subscribing after Run returns yields a closed
// channel.
func (b *Broker[T]) Run(ctx context.Context) {
	defer b.shutdown()
	for {
		select {
		case v, ok := <-b.source:
			if !ok {
				log.Debug().Msg("broker source closed")
				return
			}
			b.publish(v)
		case <-ctx.Done():
			return
		}
	}
}

func (b *Broker[T]) publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		select {
		case sub.ch <- v:
		default:
			n := sub.dropped.Add(1)
			log.Warn().Int("subscriber_id", id).Uint64("dropped", n).
				Msg("subscriber full, dropping value")
		}
	}
}

// Subscribe returns a channel buffering up to size values and the ID to
// pass to Unsubscribe.
func (b *Broker[T]) Subscribe(size int) (values <-chan T, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, size)
	id = b.nextID
	b.nextID++
	if b.closed {
		close(ch)
		return ch, id
	}
	b.subs[id] = &subscriber[T]{ch: ch}
	log.Debug().Int("subscriber_id", id).Int("buffer", size).Msg("subscribed")
	return ch, id
}

// Unsubscribe closes the subscriber's channel. Unknown IDs are ignored.
func (b *Broker[T]) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Dropped is the number of values subscriber id missed because its buffer
// was full.
func (b *Broker[T]) Dropped(id int) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sub, ok := b.subs[id]; ok {
		return sub.dropped.Load()
	}
	return 0
}

func (b *Broker[T]) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	b.closed = true
	log.Debug().Msg("broker stopped")
}
