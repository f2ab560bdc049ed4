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

package discovery

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/config"
	testhelpers "github.com/ZaparooProject/cardmon/pkg/testing/helpers"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	shutdown atomic.Bool
}

func (f *fakeServer) Shutdown() {
	f.shutdown.Store(true)
}

var up = net.FlagUp | net.FlagMulticast

func newTestService(cfg *config.Instance, clock clockwork.Clock, reg registerFunc) *Service {
	s := New(cfg)
	s.clock = clock
	s.register = reg
	s.interfaces = func() ([]net.Interface, error) {
		return []net.Interface{{Name: "eth0", Flags: up}}, nil
	}
	s.hostname = func() (string, error) { return "benchpi", nil }
	return s
}

func TestFilterInterfaces(t *testing.T) {
	t.Parallel()

	ifaces := []net.Interface{
		{Name: "eth0", Flags: up},
		{Name: "wlan0", Flags: up},
		{Name: "lo", Flags: up | net.FlagLoopback},
		{Name: "eth1", Flags: net.FlagMulticast},
		{Name: "ppp0", Flags: net.FlagUp},
		{Name: "docker0", Flags: up},
		{Name: "veth1234", Flags: up},
		{Name: "WG0", Flags: up},
	}

	var names []string
	for _, iface := range filterInterfaces(ifaces) {
		names = append(names, iface.Name)
	}
	assert.Equal(t, []string{"eth0", "wlan0"}, names)
}

func TestInstanceName(t *testing.T) {
	t.Parallel()

	cfg := testhelpers.NewTestConfig(t, nil)
	s := newTestService(cfg, clockwork.NewFakeClock(), nil)
	assert.Equal(t, "benchpi", s.InstanceName())

	s.hostname = func() (string, error) { return "", errors.New("no hostname") }
	assert.Equal(t, config.AppName, s.InstanceName())

	named := testhelpers.NewTestConfigTOML(t, "config_schema = 1\n[discovery]\ninstance_name = \"lab-card\"\n")
	assert.Equal(t, "lab-card", newTestService(named, clockwork.NewFakeClock(), nil).InstanceName())
}

func TestRun_Disabled(t *testing.T) {
	t.Parallel()

	cfg := testhelpers.NewTestConfig(t, nil)
	cfg.SetDiscoveryEnabled(false)

	called := false
	s := newTestService(cfg, clockwork.NewFakeClock(), func(
		string, string, string, int, []string, []net.Interface,
	) (server, error) {
		called = true
		return &fakeServer{}, nil
	})
	require.NoError(t, s.Run(context.Background()))
	assert.False(t, called)
}

func TestRun_RegistersAndShutsDown(t *testing.T) {
	t.Parallel()

	cfg := testhelpers.NewTestConfig(t, nil)
	srv := &fakeServer{}
	var gotPort atomic.Int32
	var gotText []string
	s := newTestService(cfg, clockwork.NewFakeClock(), func(
		instance, service, domain string, port int, text []string, ifaces []net.Interface,
	) (server, error) {
		assert.Equal(t, "benchpi", instance)
		assert.Equal(t, ServiceType, service)
		assert.Equal(t, "local.", domain)
		assert.Len(t, ifaces, 1)
		gotText = text
		gotPort.Store(int32(port)) //nolint:gosec // test port
		return srv, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return gotPort.Load() != 0 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.True(t, srv.shutdown.Load())
	assert.Equal(t, int32(config.DefaultAPIPort), gotPort.Load())
	assert.Contains(t, gotText, "version="+config.AppVersion)
}

func TestRun_RetriesThenGivesUp(t *testing.T) {
	t.Parallel()

	cfg := testhelpers.NewTestConfig(t, nil)
	clock := clockwork.NewFakeClock()
	var attempts atomic.Int32
	s := newTestService(cfg, clock, func(
		string, string, string, int, []string, []net.Interface,
	) (server, error) {
		attempts.Add(1)
		return nil, errors.New("network unreachable")
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	for range maxRetryDuration / retryInterval {
		require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
		clock.Advance(retryInterval)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not give up")
	}
	assert.Equal(t, int32(maxRetryDuration/retryInterval)+1, attempts.Load())
}
