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

package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type message struct {
	kind string
	seq  int
}

// start runs a broker until the test ends.
func start(t *testing.T, buffer int) (*Broker[message], chan<- message) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	source := make(chan message, buffer)
	b := New[message](source)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return b, source
}

func TestNew(t *testing.T) {
	t.Parallel()

	b := New[message](make(chan message))
	assert.NotNil(t, b.subs)
	assert.Equal(t, 0, b.nextID)
}

func TestBroker_Subscribe(t *testing.T) {
	t.Parallel()

	b := New[message](make(chan message))

	ch, id := b.Subscribe(10)
	assert.NotNil(t, ch)
	assert.Equal(t, 0, id)

	ch2, id2 := b.Subscribe(20)
	assert.NotNil(t, ch2)
	assert.Equal(t, 1, id2)
	assert.Len(t, b.subs, 2)
}

func TestBroker_Unsubscribe(t *testing.T) {
	t.Parallel()

	b := New[message](make(chan message))
	ch, id := b.Subscribe(10)

	b.Unsubscribe(id)
	assert.Empty(t, b.subs)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")

	// second unsubscribe is a no-op
	b.Unsubscribe(id)
}

func TestBroker_BroadcastToMultipleSubscribers(t *testing.T) {
	t.Parallel()

	b, source := start(t, 10)
	subs := make([]<-chan message, 3)
	for i := range subs {
		subs[i], _ = b.Subscribe(10)
	}

	source <- message{kind: "ready"}

	for _, sub := range subs {
		select {
		case got := <-sub:
			assert.Equal(t, "ready", got.kind)
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber did not receive message")
		}
	}
}

func TestBroker_NonBlockingSendDropsWhenFull(t *testing.T) {
	t.Parallel()

	b, source := start(t, 100)
	slow, slowID := b.Subscribe(2)
	fast, fastID := b.Subscribe(20)

	for i := range 10 {
		source <- message{seq: i}
	}

	// the fast subscriber sees everything even though the slow one is full
	for i := range 10 {
		select {
		case got := <-fast:
			assert.Equal(t, i, got.seq)
		case <-time.After(2 * time.Second):
			t.Fatalf("fast subscriber missed message %d", i)
		}
	}

	assert.Len(t, slow, 2, "slow subscriber keeps only its buffer")
	assert.Eventually(t, func() bool { return b.Dropped(slowID) == 8 }, 2*time.Second, time.Millisecond)
	assert.Zero(t, b.Dropped(fastID))
	assert.Equal(t, 0, (<-slow).seq)
	assert.Equal(t, 1, (<-slow).seq)
}

func TestBroker_ContextCancellationClosesSubscribers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	b := New[message](make(chan message))
	sub, _ := b.Subscribe(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()

	cancel()
	<-done

	_, ok := <-sub
	assert.False(t, ok, "subscriber channel should be closed on cancellation")

	late, _ := b.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok, "subscribing to a stopped broker yields a closed channel")
}

func TestBroker_SourceClosureClosesSubscribers(t *testing.T) {
	t.Parallel()

	source := make(chan message)
	b := New[message](source)
	sub, _ := b.Subscribe(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(context.Background())
	}()

	close(source)
	<-done

	_, ok := <-sub
	assert.False(t, ok, "subscriber channel should be closed when source closes")
}

func TestBroker_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	b, source := start(t, 100)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			_, id := b.Subscribe(5)
			time.Sleep(5 * time.Millisecond)
			b.Unsubscribe(id)
		})
	}
	wg.Go(func() {
		for i := range 20 {
			source <- message{seq: i}
		}
	})
	wg.Wait()
}

func TestBroker_SubscriberReceivesInOrder(t *testing.T) {
	t.Parallel()

	b, source := start(t, 100)
	sub, _ := b.Subscribe(100)

	kinds := []string{"mounting", "ready", "unmounted", "mounting", "error"}
	for i, kind := range kinds {
		source <- message{kind: kind, seq: i}
	}

	for i, want := range kinds {
		select {
		case got := <-sub:
			require.Equal(t, want, got.kind, "message %d out of order", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d not received", i)
		}
	}
}
