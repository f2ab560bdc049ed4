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

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func serve(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestParseRemoteIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want string
	}{
		{"192.168.1.100:12345", "192.168.1.100"},
		{"192.168.1.100", "192.168.1.100"},
		{"[2001:db8::1]:8080", "2001:db8::1"},
		{"::1", "::1"},
	}
	for _, tt := range tests {
		ip := ParseRemoteIP(tt.addr)
		require.NotNil(t, ip, tt.addr)
		assert.Equal(t, tt.want, ip.String())
	}
	assert.Nil(t, ParseRemoteIP("not-an-ip"))
}

func TestIPFilter_IsAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		allowed []string
		want    bool
	}{
		{name: "empty allows all", addr: "10.0.0.1:1", want: true},
		{name: "exact match", allowed: []string{"10.0.0.1"}, addr: "10.0.0.1:1", want: true},
		{name: "no match", allowed: []string{"10.0.0.1"}, addr: "10.0.0.2:1", want: false},
		{name: "cidr match", allowed: []string{"192.168.1.0/24"}, addr: "192.168.1.50:80", want: true},
		{name: "cidr miss", allowed: []string{"192.168.1.0/24"}, addr: "192.168.2.1:80", want: false},
		{name: "entry with port", allowed: []string{"10.0.0.1:7498"}, addr: "10.0.0.1:5", want: true},
		{name: "ipv6", allowed: []string{"::1"}, addr: "[::1]:9", want: true},
		{name: "invalid entries skipped", allowed: []string{"bogus", "10.0.0.1"}, addr: "10.0.0.1:1", want: true},
		{name: "only invalid entries", allowed: []string{"bogus"}, addr: "10.0.0.1:1", want: false},
		{name: "unparsable remote", allowed: []string{"10.0.0.1"}, addr: "garbage", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NewIPFilter(tt.allowed).IsAllowed(tt.addr))
		})
	}
}

func TestHTTPIPFilterMiddleware(t *testing.T) {
	t.Parallel()

	h := HTTPIPFilterMiddleware(NewIPFilter([]string{"127.0.0.1"}))(okHandler())

	rec := serve(h, "127.0.0.1:5000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = serve(h, "192.168.1.2:5000")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden\n", rec.Body.String())
}

func TestIPRateLimiter_PerAddress(t *testing.T) {
	t.Parallel()

	limiter := NewIPRateLimiter(clockwork.NewFakeClock())
	a := limiter.GetLimiter("10.0.0.1")
	b := limiter.GetLimiter("10.0.0.2")
	assert.NotSame(t, a, b)
	assert.Same(t, a, limiter.GetLimiter("10.0.0.1"))

	for i := range BurstSize {
		assert.True(t, a.Allow(), "request %d within burst", i+1)
	}
	assert.False(t, a.Allow())
	assert.True(t, b.Allow())
}

func TestHTTPRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	limiter := NewIPRateLimiter(nil)
	h := HTTPRateLimitMiddleware(limiter)(okHandler())

	for i := range BurstSize {
		require.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1234").Code, "request %d", i+1)
	}

	rec := serve(h, "10.0.0.1:4321")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too Many Requests")

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1234").Code)
}

func TestIPRateLimiter_Cleanup(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	limiter := NewIPRateLimiter(clock)

	limiter.GetLimiter("old")
	clock.Advance(staleAfter + time.Minute)
	limiter.GetLimiter("new")

	limiter.Cleanup()
	assert.NotContains(t, limiter.limiters, "old")
	assert.Contains(t, limiter.limiters, "new")
}

func TestIPRateLimiter_RunCleanup(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	limiter := NewIPRateLimiter(clock)
	limiter.GetLimiter("old")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		limiter.RunCleanup(ctx)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(staleAfter + cleanupInterval)

	assert.Eventually(t, func() bool {
		limiter.mu.Lock()
		defer limiter.mu.Unlock()
		return len(limiter.limiters) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
