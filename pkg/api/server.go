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

// Package api serves the card over HTTP: JSON endpoints for state, space,
// labels and listings, file downloads, and a WebSocket that pushes every
// mount state change.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/api/methods"
	apimiddleware "github.com/ZaparooProject/cardmon/pkg/api/middleware"
	"github.com/ZaparooProject/cardmon/pkg/api/models"
	"github.com/ZaparooProject/cardmon/pkg/lifecycle"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	RequestTimeout    = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var defaultOrigins = []string{"https://*", "http://*"}

type Options struct {
	Env *methods.Env
	// Changes feeds the WebSocket notifications. It may be nil.
	Changes        <-chan lifecycle.Change
	Clock          clockwork.Clock
	AllowedOrigins []string
	AllowedIPs     []string
}

type Server struct {
	handler http.Handler
	ws      *melody.Melody
	limiter *apimiddleware.IPRateLimiter
	env     *methods.Env
	changes <-chan lifecycle.Change
}

func NewServer(opts Options) *Server {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	s := &Server{
		ws:      melody.New(),
		limiter: apimiddleware.NewIPRateLimiter(opts.Clock),
		env:     opts.Env,
		changes: opts.Changes,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(apimiddleware.HTTPIPFilterMiddleware(apimiddleware.NewIPFilter(opts.AllowedIPs)))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))
		r.Use(apimiddleware.HTTPRateLimitMiddleware(s.limiter))

		r.Get("/api/status", s.env.HandleStatus)
		r.Get("/api/free", s.env.HandleFree)
		r.Get("/api/tree", s.env.HandleTree)
		r.Get("/api/label", s.env.HandleGetLabel)
		r.Put("/api/label", s.env.HandleSetLabel)
		r.Post("/api/mkdir", s.env.HandleMkdir)
		r.Get("/api/files/*", s.env.HandleFile)
		r.Get("/api/history", s.env.HandleHistory)
	})

	s.ws.Upgrader.CheckOrigin = func(*http.Request) bool { return true }
	s.ws.HandleConnect(s.handleConnect)
	s.ws.HandleMessage(apimiddleware.WebSocketRateLimitHandler(s.limiter, s.handleMessage))
	r.Get("/api/events", func(w http.ResponseWriter, r *http.Request) {
		if err := s.ws.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	})

	s.handler = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) status() []byte {
	st := lifecycle.Unmounted
	if s.env.Lifecycle != nil {
		st = s.env.Lifecycle.State()
	}
	data, err := json.Marshal(models.StatusResponse{State: st, Ready: st == lifecycle.Ready})
	if err != nil {
		log.Error().Err(err).Msg("marshalling status")
		return nil
	}
	return data
}

// handleConnect sends the current state so a new client doesn't have to
// wait for the next change.
func (s *Server) handleConnect(session *melody.Session) {
	if err := session.Write(s.status()); err != nil {
		log.Debug().Err(err).Msg("sending initial status")
	}
}

func (s *Server) handleMessage(session *melody.Session, msg []byte) {
	var reply []byte
	switch string(msg) {
	case "ping":
		reply = []byte("pong")
	case "status":
		reply = s.status()
	default:
		reply = []byte(`{"error":"unknown message"}`)
	}
	if err := session.Write(reply); err != nil {
		log.Debug().Err(err).Msg("sending websocket reply")
	}
}

// RunNotifications pushes every change to all WebSocket clients until ctx
// is done or the change channel closes.
func (s *Server) RunNotifications(ctx context.Context) {
	if s.changes == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-s.changes:
			if !ok {
				return
			}
			data, err := json.Marshal(models.Notification{
				Method: models.NotificationMountChanged,
				Params: change,
			})
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := s.ws.Broadcast(data); err != nil {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

// Close disconnects every WebSocket client.
func (s *Server) Close() {
	if err := s.ws.Close(); err != nil && !errors.Is(err, melody.ErrClosed) {
		log.Debug().Err(err).Msg("closing websocket sessions")
	}
}

// Serve runs the HTTP server on ln along with notifications and rate
// limiter cleanup, until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msg("API server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.RunNotifications(gctx)
		return nil
	})
	g.Go(func() error {
		s.limiter.RunCleanup(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("API stopped: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
