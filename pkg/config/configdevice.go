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

package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultDeviceNode      = "/dev/mmcblk0"
	DefaultMountPoint      = "/media/sdcard"
	DefaultSimCapacity     = 64 << 20
	DefaultPollInterval    = 10 * time.Millisecond
	DefaultDebounceSamples = 10
	DefaultPathBufferSize  = 1024
)

type Device struct {
	Capacity   *uint64 `toml:"capacity,omitempty"`
	Watch      *bool   `toml:"watch,omitempty"`
	Node       string  `toml:"node"`
	MountPoint string  `toml:"mount_point"`
	Simulate   bool    `toml:"simulate"`
	ReadOnly   bool    `toml:"read_only"`
}

type Monitor struct {
	PollIntervalMs  *int `toml:"poll_interval_ms,omitempty"`
	DebounceSamples *int `toml:"debounce_samples,omitempty"`
}

type Tree struct {
	PathBufferSize *int `toml:"path_buffer_size,omitempty"`
}

func (c *Instance) DeviceNode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Device.Node == "" {
		return DefaultDeviceNode
	}
	return c.vals.Device.Node
}

func (c *Instance) MountPoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Device.MountPoint == "" {
		return DefaultMountPoint
	}
	return c.vals.Device.MountPoint
}

// WatchNode tracks the device node with filesystem events instead of a stat
// per sample. Defaults to true.
func (c *Instance) WatchNode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Device.Watch == nil {
		return true
	}
	return *c.vals.Device.Watch
}

func (c *Instance) Simulate() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Device.Simulate
}

func (c *Instance) SetSimulate(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Device.Simulate = enabled
}

func (c *Instance) ReadOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Device.ReadOnly
}

// SimCapacity is the size in bytes of the simulated card.
func (c *Instance) SimCapacity() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Device.Capacity == nil || *c.vals.Device.Capacity == 0 {
		return DefaultSimCapacity
	}
	return *c.vals.Device.Capacity
}

func (c *Instance) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.vals.Monitor.PollIntervalMs
	if v == nil {
		return DefaultPollInterval
	}
	if *v <= 0 {
		log.Warn().Int("poll_interval_ms", *v).Msg("invalid poll interval, using default")
		return DefaultPollInterval
	}
	return time.Duration(*v) * time.Millisecond
}

func (c *Instance) DebounceSamples() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.vals.Monitor.DebounceSamples
	if v == nil {
		return DefaultDebounceSamples
	}
	if *v <= 0 {
		log.Warn().Int("debounce_samples", *v).Msg("invalid debounce samples, using default")
		return DefaultDebounceSamples
	}
	return *v
}

func (c *Instance) PathBufferSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.vals.Tree.PathBufferSize
	if v == nil || *v <= 0 {
		return DefaultPathBufferSize
	}
	return *v
}
