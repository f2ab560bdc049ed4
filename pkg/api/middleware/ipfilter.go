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

// Package middleware holds the HTTP and WebSocket guards in front of the
// API: address allowlisting and per-address rate limiting.
package middleware

import (
	"net"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ParseRemoteIP returns the IP of an "ip:port" or bare "ip" address, or nil.
func ParseRemoteIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}

// IPFilter is an allowlist of addresses and CIDR ranges. An empty list
// allows everyone.
type IPFilter struct {
	nets  []*net.IPNet
	addrs []net.IP
	open  bool
}

// NewIPFilter parses entries, skipping (and logging) any that are neither
// an IP nor a CIDR range. Entries with a port have it stripped.
func NewIPFilter(entries []string) *IPFilter {
	f := &IPFilter{open: len(entries) == 0}
	for _, entry := range entries {
		if host, _, err := net.SplitHostPort(entry); err == nil {
			entry = host
		}
		if _, network, err := net.ParseCIDR(entry); err == nil {
			f.nets = append(f.nets, network)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			f.addrs = append(f.addrs, ip)
			continue
		}
		log.Warn().Str("ip", entry).Msg("invalid IP or CIDR in allowed_ips, skipping")
	}
	return f
}

func (f *IPFilter) IsAllowed(remoteAddr string) bool {
	if f.open {
		return true
	}
	ip := ParseRemoteIP(remoteAddr)
	if ip == nil {
		log.Warn().Str("addr", remoteAddr).Msg("failed to parse IP address")
		return false
	}
	for _, allowed := range f.addrs {
		if ip.Equal(allowed) {
			return true
		}
	}
	for _, network := range f.nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// HTTPIPFilterMiddleware answers 403 to addresses not on the allowlist.
// WebSocket upgrades go through it too.
func HTTPIPFilterMiddleware(filter *IPFilter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !filter.IsAllowed(r.RemoteAddr) {
				log.Debug().
					Str("addr", r.RemoteAddr).
					Str("path", r.URL.Path).
					Msg("request from blocked IP")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
