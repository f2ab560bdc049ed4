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
	"net"
	"strconv"
)

const (
	DefaultAPIPort   = 7498
	DefaultBaudRate  = 115200
	DefaultMQTTTopic = "cardmon/state"
	// DefaultHistorySize is how many mount state changes are kept.
	DefaultHistorySize = 500
)

type Shell struct {
	Enabled    *bool  `toml:"enabled,omitempty"`
	BaudRate   *int   `toml:"baud_rate,omitempty"`
	SerialPort string `toml:"serial_port,omitempty"`
}

type API struct {
	Port           *int     `toml:"port,omitempty" validate:"omitnil,min=0,max=65535"`
	Listen         string   `toml:"listen,omitempty" validate:"omitempty,ip"`
	AllowedOrigins []string `toml:"allowed_origins,omitempty"`
	AllowedIPs     []string `toml:"allowed_ips,omitempty" validate:"omitempty,dive,cidr|ip"`
}

type Discovery struct {
	Enabled      *bool  `toml:"enabled,omitempty"`
	InstanceName string `toml:"instance_name,omitempty"`
}

// MQTT publishes mount state changes to a broker. An empty Broker disables
// it.
type MQTT struct {
	Retain *bool    `toml:"retain,omitempty"`
	Broker string   `toml:"broker,omitempty" validate:"omitempty,hostname_port"`
	Topic  string   `toml:"topic,omitempty"`
	States []string `toml:"states,omitempty" validate:"omitempty,dive,oneof=unmounted mounting ready error"`
}

type History struct {
	Enabled    *bool `toml:"enabled,omitempty"`
	MaxEntries *int  `toml:"max_entries,omitempty"`
}

type Telemetry struct {
	DSN string `toml:"dsn,omitempty" validate:"omitempty,url"`
}

// ShellEnabled defaults to true.
func (c *Instance) ShellEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Shell.Enabled == nil {
		return true
	}
	return *c.vals.Shell.Enabled
}

func (c *Instance) SetShellEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Shell.Enabled = &enabled
}

// SerialPort is the port the shell runs on. Empty means stdin/stdout.
func (c *Instance) SerialPort() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Shell.SerialPort
}

func (c *Instance) BaudRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Shell.BaudRate == nil || *c.vals.Shell.BaudRate <= 0 {
		return DefaultBaudRate
	}
	return *c.vals.Shell.BaudRate
}

func (c *Instance) APIPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiPortLocked()
}

// apiPortLocked returns the API port. Caller must hold mu (read or write).
func (c *Instance) apiPortLocked() int {
	if c.vals.API.Port == nil {
		return DefaultAPIPort
	}
	return *c.vals.API.Port
}

func (c *Instance) SetAPIPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.API.Port = &port
}

// APIListen returns the host:port the API listens on. A port of zero
// disables the API.
func (c *Instance) APIListen() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return net.JoinHostPort(c.vals.API.Listen, strconv.Itoa(c.apiPortLocked()))
}

func (c *Instance) AllowedOrigins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.API.AllowedOrigins
}

// AllowedIPs lists the addresses and CIDR ranges allowed to use the API.
// Empty allows everyone.
func (c *Instance) AllowedIPs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.API.AllowedIPs
}

// DiscoveryEnabled defaults to true. mDNS is only advertised when the API
// is also running.
func (c *Instance) DiscoveryEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Discovery.Enabled == nil {
		return true
	}
	return *c.vals.Discovery.Enabled
}

func (c *Instance) SetDiscoveryEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Discovery.Enabled = &enabled
}

func (c *Instance) DiscoveryInstanceName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Discovery.InstanceName
}

func (c *Instance) TelemetryDSN() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Telemetry.DSN
}

// MQTTBroker returns the broker host:port, or "" when publishing is off.
func (c *Instance) MQTTBroker() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.MQTT.Broker
}

func (c *Instance) MQTTTopic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.MQTT.Topic == "" {
		return DefaultMQTTTopic
	}
	return c.vals.MQTT.Topic
}

// MQTTStates limits which state names are published. Empty publishes all.
func (c *Instance) MQTTStates() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.MQTT.States
}

// MQTTRetain defaults to true so new subscribers see the current state.
func (c *Instance) MQTTRetain() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.MQTT.Retain == nil {
		return true
	}
	return *c.vals.MQTT.Retain
}

// HistoryEnabled defaults to true.
func (c *Instance) HistoryEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.History.Enabled == nil {
		return true
	}
	return *c.vals.History.Enabled
}

func (c *Instance) HistorySize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.History.MaxEntries == nil || *c.vals.History.MaxEntries <= 0 {
		return DefaultHistorySize
	}
	return *c.vals.History.MaxEntries
}
