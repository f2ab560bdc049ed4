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

package events

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	idInserted ID = 0
	idRemoved  ID = 1
)

func TestSource_BroadcastWithoutListeners(t *testing.T) {
	t.Parallel()

	src := NewSource("inserted")
	assert.Equal(t, "inserted", src.Name())

	// Should not panic or block
	src.Broadcast()
}

func TestListener_WaitReturnsPendingImmediately(t *testing.T) {
	t.Parallel()

	src := NewSource("inserted")
	l := NewListener(clockwork.NewFakeClock())
	src.Register(l, idInserted)

	src.Broadcast()
	assert.True(t, l.Pending())

	ids, err := l.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []ID{idInserted}, ids)
	assert.False(t, l.Pending())
}

func TestListener_CoalescesRepeatedBroadcasts(t *testing.T) {
	t.Parallel()

	src := NewSource("inserted")
	l := NewListener(nil)
	src.Register(l, idInserted)

	src.Broadcast()
	src.Broadcast()
	src.Broadcast()

	ids, err := l.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []ID{idInserted}, ids)

	ids, err = l.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListener_DeliversInBroadcastOrder(t *testing.T) {
	t.Parallel()

	inserted := NewSource("inserted")
	removed := NewSource("removed")
	l := NewListener(nil)
	inserted.Register(l, idInserted)
	removed.Register(l, idRemoved)

	removed.Broadcast()
	inserted.Broadcast()

	ids, err := l.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []ID{idRemoved, idInserted}, ids)

	// latest broadcast of an ID decides its position
	inserted.Broadcast()
	removed.Broadcast()
	inserted.Broadcast()

	ids, err = l.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []ID{idRemoved, idInserted}, ids)
}

func TestListener_WaitTimesOut(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	l := NewListener(clock)

	done := make(chan []ID, 1)
	go func() {
		ids, _ := l.Wait(context.Background(), 500*time.Millisecond)
		done <- ids
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(500 * time.Millisecond)

	select {
	case ids := <-done:
		assert.Empty(t, ids)
	case <-time.After(time.Second):
		t.Fatal("wait did not time out")
	}
}

func TestListener_WaitWakesOnBroadcast(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	src := NewSource("removed")
	l := NewListener(clock)
	src.Register(l, idRemoved)

	done := make(chan []ID, 1)
	go func() {
		ids, _ := l.Wait(context.Background(), time.Hour)
		done <- ids
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	src.Broadcast()

	select {
	case ids := <-done:
		assert.Equal(t, []ID{idRemoved}, ids)
	case <-time.After(time.Second):
		t.Fatal("wait was not woken by broadcast")
	}
}

func TestListener_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	l := NewListener(clockwork.NewFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ids, err := l.Wait(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ids)
}

func TestSource_Unregister(t *testing.T) {
	t.Parallel()

	src := NewSource("inserted")
	l := NewListener(nil)
	src.Register(l, idInserted)
	src.Unregister(l)
	src.Unregister(l)

	src.Broadcast()
	assert.False(t, l.Pending())
}

func TestSource_BroadcastReachesEveryListener(t *testing.T) {
	t.Parallel()

	src := NewSource("inserted")
	a := NewListener(nil)
	b := NewListener(nil)
	src.Register(a, idInserted)
	src.Register(b, 7)

	src.Broadcast()

	ids, err := a.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []ID{idInserted}, ids)

	ids, err = b.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []ID{7}, ids)
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	var calls []ID
	handlers := map[ID]Handler{
		idInserted: func(id ID) { calls = append(calls, id) },
		idRemoved:  func(id ID) { calls = append(calls, id) },
	}

	Dispatch(handlers, []ID{idInserted, idRemoved, 42})
	assert.Equal(t, []ID{idInserted, idRemoved}, calls)

	calls = nil
	Dispatch(handlers, nil)
	assert.Empty(t, calls)
}
