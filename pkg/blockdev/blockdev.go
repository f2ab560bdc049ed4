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

// Package blockdev defines the block device seen by the card monitor and the
// mount lifecycle, along with a simulated card and a device-node backed
// implementation.
package blockdev

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/afero"
)

var (
	ErrNotInserted    = errors.New("no media inserted")
	ErrConnectFailed  = errors.New("media connect failed")
	ErrNotConnected   = errors.New("device not connected")
	ErrNodeNotPresent = errors.New("device node not present")
)

// Presence is the part of a device the monitor samples. IsInserted is called
// from the monitor's timer callback, so it must be cheap and must not block.
type Presence interface {
	IsInserted() bool
}

// Device is a removable block device.
type Device interface {
	Presence
	// Connect initialises the media so a filesystem can be mounted on it.
	Connect() error
	// Disconnect releases the media. It must be safe to call when the device
	// was never connected.
	Disconnect() error
}

// SimCard is an in-memory removable card. Tests and simulate mode use it to
// drive insertion, removal and connect failures by hand.
type SimCard struct {
	inserted    atomic.Bool
	connected   atomic.Bool
	failConnect atomic.Bool
	connects    atomic.Int64
	disconnects atomic.Int64
}

func NewSimCard() *SimCard {
	return &SimCard{}
}

// Insert makes the card physically present.
func (c *SimCard) Insert() {
	c.inserted.Store(true)
}

// Eject makes the card physically absent. A connected card stays connected
// until the lifecycle disconnects it.
func (c *SimCard) Eject() {
	c.inserted.Store(false)
}

// Toggle flips physical presence and returns the new state.
func (c *SimCard) Toggle() bool {
	for {
		old := c.inserted.Load()
		if c.inserted.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// FailConnect makes subsequent Connect calls fail while enabled.
func (c *SimCard) FailConnect(fail bool) {
	c.failConnect.Store(fail)
}

func (c *SimCard) IsInserted() bool {
	return c.inserted.Load()
}

func (c *SimCard) Connect() error {
	c.connects.Add(1)
	if !c.inserted.Load() {
		return ErrNotInserted
	}
	if c.failConnect.Load() {
		return ErrConnectFailed
	}
	c.connected.Store(true)
	return nil
}

func (c *SimCard) Disconnect() error {
	c.disconnects.Add(1)
	c.connected.Store(false)
	return nil
}

// Connected reports whether the card is currently connected.
func (c *SimCard) Connected() bool {
	return c.connected.Load()
}

// Stats returns how many times Connect and Disconnect were called.
func (c *SimCard) Stats() (connects, disconnects int64) {
	return c.connects.Load(), c.disconnects.Load()
}

// NodeDevice treats a device node such as /dev/mmcblk0 as the card. The card
// is present while the node exists and connects when the node can be opened.
type NodeDevice struct {
	fs        afero.Fs
	node      string
	connected atomic.Bool
}

// NewNodeDevice returns a device backed by node on fs. A nil fs uses the OS
// filesystem.
func NewNodeDevice(fs afero.Fs, node string) *NodeDevice {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &NodeDevice{fs: fs, node: node}
}

// Node returns the device node path.
func (d *NodeDevice) Node() string {
	return d.node
}

func (d *NodeDevice) IsInserted() bool {
	_, err := d.fs.Stat(d.node)
	return err == nil
}

func (d *NodeDevice) Connect() error {
	f, err := d.fs.OpenFile(d.node, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNodeNotPresent, d.node)
		}
		return fmt.Errorf("failed to open device node %s: %w", d.node, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close device node %s: %w", d.node, err)
	}
	d.connected.Store(true)
	return nil
}

func (d *NodeDevice) Disconnect() error {
	d.connected.Store(false)
	return nil
}

// Connected reports whether the last Connect succeeded and no Disconnect
// followed it.
func (d *NodeDevice) Connected() bool {
	return d.connected.Load()
}
