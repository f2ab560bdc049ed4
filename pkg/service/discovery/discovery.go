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

// Package discovery advertises the card API over mDNS so clients on the
// local network can find it without knowing its address.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/config"
	"github.com/grandcat/zeroconf"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ServiceType is the DNS-SD service type of the card API.
const ServiceType = "_cardmon._tcp"

const (
	retryInterval    = 30 * time.Second
	maxRetryDuration = 5 * time.Minute
)

// virtualInterfacePrefixes are container and tunnel interfaces that are
// never advertised on.
var virtualInterfacePrefixes = []string{
	"docker", "br-", "veth", "virbr", "lxc", "lxd",
	"cni", "flannel", "cali", "tunl", "wg",
}

// server is a running registration.
type server interface {
	Shutdown()
}

type registerFunc func(
	instance, service, domain string,
	port int,
	text []string,
	ifaces []net.Interface,
) (server, error)

func zeroconfRegister(
	instance, service, domain string,
	port int,
	text []string,
	ifaces []net.Interface,
) (server, error) {
	srv, err := zeroconf.Register(instance, service, domain, port, text, ifaces)
	if err != nil {
		return nil, fmt.Errorf("mDNS register: %w", err)
	}
	return srv, nil
}

// filterInterfaces keeps interfaces that are up, multicast capable, not
// loopback and not virtual.
func filterInterfaces(ifaces []net.Interface) []net.Interface {
	var preferred []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagLoopback != 0 ||
			iface.Flags&net.FlagMulticast == 0 ||
			isVirtualInterface(iface.Name) {
			continue
		}
		preferred = append(preferred, iface)
	}
	return preferred
}

func isVirtualInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

type Service struct {
	cfg        *config.Instance
	clock      clockwork.Clock
	register   registerFunc
	interfaces func() ([]net.Interface, error)
	hostname   func() (string, error)
}

func New(cfg *config.Instance) *Service {
	return &Service{
		cfg:        cfg,
		clock:      clockwork.NewRealClock(),
		register:   zeroconfRegister,
		interfaces: net.Interfaces,
		hostname:   os.Hostname,
	}
}

// InstanceName is the configured name, or the hostname, or "cardmon".
func (s *Service) InstanceName() string {
	if name := s.cfg.DiscoveryInstanceName(); name != "" {
		return name
	}
	host, err := s.hostname()
	if err != nil || host == "" {
		log.Warn().Err(err).Msg("failed to get hostname, using fallback")
		return config.AppName
	}
	return host
}

func (s *Service) tryRegister(name string) server {
	all, err := s.interfaces()
	if err != nil {
		log.Debug().Err(err).Msg("failed to list network interfaces")
		return nil
	}
	ifaces := filterInterfaces(all)
	if len(ifaces) == 0 {
		log.Debug().Msg("no suitable network interfaces found for mDNS")
		return nil
	}

	port := s.cfg.APIPort()
	text := []string{
		"version=" + config.AppVersion,
		"path=/api",
	}
	srv, err := s.register(name, ServiceType, "local.", port, text, ifaces)
	if err != nil {
		log.Debug().Err(err).Msg("mDNS registration attempt failed")
		return nil
	}

	log.Info().
		Str("instance", name).
		Int("port", port).
		Str("type", ServiceType).
		Msg("mDNS service advertising started")
	return srv
}

// Run advertises until ctx is done. When the network isn't ready it keeps
// retrying for a while and then gives up; failing to advertise is never an
// error.
func (s *Service) Run(ctx context.Context) error {
	if !s.cfg.DiscoveryEnabled() {
		log.Info().Msg("mDNS discovery disabled by configuration")
		return nil
	}

	name := s.InstanceName()
	deadline := s.clock.Now().Add(maxRetryDuration)

	srv := s.tryRegister(name)
	for srv == nil {
		if !s.clock.Now().Before(deadline) {
			log.Warn().Msg("mDNS registration retry timed out, discovery will not be available")
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(retryInterval):
		}
		srv = s.tryRegister(name)
	}

	<-ctx.Done()
	log.Debug().Msg("stopping mDNS service advertising")
	srv.Shutdown()
	return nil
}
