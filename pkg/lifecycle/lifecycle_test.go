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

package lifecycle

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/blockdev"
	"github.com/ZaparooProject/cardmon/pkg/testing/mocks"
	"github.com/ZaparooProject/cardmon/pkg/volume"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeLog struct {
	changes []Change
}

func (c *changeLog) record(ch Change) {
	c.changes = append(c.changes, ch)
}

func (c *changeLog) states() []State {
	out := make([]State, 0, len(c.changes))
	for _, ch := range c.changes {
		out = append(out, ch.State)
	}
	return out
}

func TestOnInserted_Success(t *testing.T) {
	t.Parallel()

	dev := &mocks.MockDevice{}
	vol := &mocks.MockVolume{}
	dev.On("Connect").Return(nil).Once()
	vol.On("Mount", "/").Return(nil).Once()

	changes := &changeLog{}
	c := New(dev, vol, Options{OnChange: changes.record})
	assert.Equal(t, Unmounted, c.State())
	assert.False(t, c.Ready())

	c.OnInserted()

	assert.True(t, c.Ready())
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, []State{Mounting, Ready}, changes.states())
	dev.AssertExpectations(t)
	vol.AssertExpectations(t)
}

func TestOnInserted_ConnectFailure(t *testing.T) {
	t.Parallel()

	dev := &mocks.MockDevice{}
	vol := &mocks.MockVolume{}
	dev.On("Connect").Return(blockdev.ErrConnectFailed).Once()

	changes := &changeLog{}
	c := New(dev, vol, Options{OnChange: changes.record})
	c.OnInserted()

	assert.False(t, c.Ready())
	assert.Equal(t, Error, c.State())
	require.Len(t, changes.changes, 2)
	require.ErrorIs(t, changes.changes[1].Err, blockdev.ErrConnectFailed)
	assert.NotEmpty(t, changes.changes[1].Error)
	dev.AssertExpectations(t)
	vol.AssertNotCalled(t, "Mount", "/")
}

func TestOnInserted_MountFailureDisconnects(t *testing.T) {
	t.Parallel()

	dev := &mocks.MockDevice{}
	vol := &mocks.MockVolume{}
	dev.On("Connect").Return(nil).Once()
	dev.On("Disconnect").Return(nil).Once()
	vol.On("Mount", "/sd").Return(volume.ErrNoFilesystem).Once()

	c := New(dev, vol, Options{Root: "/sd"})
	c.OnInserted()

	assert.False(t, c.Ready())
	assert.Equal(t, Error, c.State())
	dev.AssertExpectations(t)
	vol.AssertExpectations(t)
}

func TestOnRemoved_Idempotent(t *testing.T) {
	t.Parallel()

	dev := &mocks.MockDevice{}
	vol := &mocks.MockVolume{}
	dev.On("Disconnect").Return(nil).Twice()
	vol.On("Unmount").Return(volume.ErrNotMounted).Twice()

	changes := &changeLog{}
	c := New(dev, vol, Options{OnChange: changes.record})

	c.OnRemoved()
	assert.False(t, c.Ready())
	assert.Equal(t, Unmounted, c.State())

	c.OnRemoved()
	assert.False(t, c.Ready())
	assert.Equal(t, Unmounted, c.State())

	assert.Empty(t, changes.changes, "removing an unmounted card changes nothing")
	dev.AssertExpectations(t)
	vol.AssertExpectations(t)
}

func TestOnRemoved_ToleratesTeardownErrors(t *testing.T) {
	t.Parallel()

	dev := &mocks.MockDevice{}
	vol := &mocks.MockVolume{}
	dev.On("Connect").Return(nil).Once()
	vol.On("Mount", "/").Return(nil).Once()
	vol.On("Unmount").Return(errors.New("busy")).Once()
	dev.On("Disconnect").Return(errors.New("gone")).Once()

	c := New(dev, vol, Options{})
	c.OnInserted()
	require.True(t, c.Ready())

	c.OnRemoved()
	assert.False(t, c.Ready())
	assert.Equal(t, Unmounted, c.State())
	dev.AssertExpectations(t)
	vol.AssertExpectations(t)
}

func TestLifecycle_Repeatable(t *testing.T) {
	t.Parallel()

	card := blockdev.NewSimCard()
	vol := volume.NewMemVolume(1 << 20)
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	changes := &changeLog{}
	c := New(card, vol, Options{Clock: clock, OnChange: changes.record})

	for range 3 {
		card.Insert()
		c.OnInserted()
		require.True(t, c.Ready())
		assert.True(t, card.Connected())
		assert.True(t, vol.Mounted())

		card.Eject()
		c.OnRemoved()
		require.False(t, c.Ready())
		assert.False(t, card.Connected())
		assert.False(t, vol.Mounted())
	}

	assert.Equal(t, []State{
		Mounting, Ready, Unmounted,
		Mounting, Ready, Unmounted,
		Mounting, Ready, Unmounted,
	}, changes.states())
	assert.Equal(t, clock.Now(), changes.changes[0].At)
}

func TestLifecycle_RecoversAfterFailedMount(t *testing.T) {
	t.Parallel()

	card := blockdev.NewSimCard()
	vol := volume.NewMemVolume(1 << 20)
	c := New(card, vol, Options{})

	card.Insert()
	card.FailConnect(true)
	c.OnInserted()
	assert.Equal(t, Error, c.State())

	// no retry until the next insertion
	card.FailConnect(false)
	assert.Equal(t, Error, c.State())

	c.OnRemoved()
	c.OnInserted()
	assert.True(t, c.Ready())
}

func TestState_Strings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unmounted", Unmounted.String())
	assert.Equal(t, "mounting", Mounting.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestChange_JSON(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 4, 5, 6, 7, 0, time.UTC)
	data, err := json.Marshal(Change{
		At:       at,
		State:    Error,
		Previous: Mounting,
		Error:    "mount failed",
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"at":"2026-03-04T05:06:07Z","state":"error","previous":"mounting","error":"mount failed"}`,
		string(data))
}

func TestState_UnmarshalText(t *testing.T) {
	t.Parallel()

	var c Change
	require.NoError(t, json.Unmarshal([]byte(`{"state":"ready","previous":"mounting"}`), &c))
	assert.Equal(t, Ready, c.State)
	assert.Equal(t, Mounting, c.Previous)

	var s State
	require.ErrorIs(t, s.UnmarshalText([]byte("ejected")), ErrUnknownState)
}
