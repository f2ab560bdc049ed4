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

// Package lifecycle binds a volume to a removable device as the card comes
// and goes, and owns the flag that tells everyone else the filesystem is
// usable.
package lifecycle

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/blockdev"
	"github.com/ZaparooProject/cardmon/pkg/volume"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var ErrUnknownState = errors.New("unknown mount state")

// State is the mount state of the volume.
type State int32

const (
	Unmounted State = iota
	Mounting
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounting:
		return "mounting"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets states appear by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Unmounted, Mounting, Ready, Error} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownState, text)
}

// Change describes a state transition.
type Change struct {
	At       time.Time `json:"at"`
	Err      error     `json:"-"`
	Error    string    `json:"error,omitempty"`
	State    State     `json:"state"`
	Previous State     `json:"previous"`
}

// Options configures a Controller.
type Options struct {
	Clock clockwork.Clock
	// OnChange is called after every state change, from the goroutine that
	// handled the event. It must not block.
	OnChange func(Change)
	// Root is where the volume is mounted. Defaults to "/".
	Root string
}

// Controller reacts to insertion and removal events. OnInserted and
// OnRemoved must be called from a single goroutine; State and Ready can be
// read from anywhere.
type Controller struct {
	dev      blockdev.Device
	vol      volume.Volume
	clock    clockwork.Clock
	onChange func(Change)
	root     string
	state    atomic.Int32
}

func New(dev blockdev.Device, vol volume.Volume, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Root == "" {
		opts.Root = "/"
	}
	return &Controller{
		dev:      dev,
		vol:      vol,
		clock:    opts.Clock,
		onChange: opts.OnChange,
		root:     opts.Root,
	}
}

// State returns the current mount state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Ready reports whether the filesystem is mounted and usable. The card can
// be removed right after this returns true, so callers must still handle
// I/O errors.
func (c *Controller) Ready() bool {
	return c.State() == Ready
}

func (c *Controller) set(s State, err error) {
	prev := State(c.state.Swap(int32(s)))
	if prev == s && err == nil {
		return
	}
	if c.onChange == nil {
		return
	}
	change := Change{
		At:       c.clock.Now(),
		Err:      err,
		State:    s,
		Previous: prev,
	}
	if err != nil {
		change.Error = err.Error()
	}
	c.onChange(change)
}

// OnInserted connects the device and mounts the volume. Any failure leaves
// the controller in the Error state with the device disconnected; nothing is
// retried until the next insertion.
func (c *Controller) OnInserted() {
	c.set(Mounting, nil)

	if err := c.dev.Connect(); err != nil {
		log.Warn().Err(err).Msg("card connect failed")
		c.set(Error, err)
		return
	}

	if err := c.vol.Mount(c.root); err != nil {
		log.Warn().Err(err).Str("root", c.root).Msg("card mount failed")
		if derr := c.dev.Disconnect(); derr != nil {
			log.Warn().Err(derr).Msg("card disconnect after failed mount")
		}
		c.set(Error, err)
		return
	}

	c.set(Ready, nil)
	log.Info().Str("root", c.root).Msg("card mounted")
}

// OnRemoved clears the ready state, unmounts the volume and disconnects the
// device. It is safe to call in any state, any number of times.
func (c *Controller) OnRemoved() {
	c.set(Unmounted, nil)

	if err := c.vol.Unmount(); err != nil && !errors.Is(err, volume.ErrNotMounted) {
		log.Warn().Err(err).Msg("card unmount failed")
	}
	if err := c.dev.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("card disconnect failed")
	}

	log.Info().Msg("card removed")
}
