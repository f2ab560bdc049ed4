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

// Package service wires the card monitor and the mount lifecycle to every
// front end and recorder into one running daemon.
package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/api"
	"github.com/ZaparooProject/cardmon/pkg/api/methods"
	"github.com/ZaparooProject/cardmon/pkg/blockdev"
	"github.com/ZaparooProject/cardmon/pkg/config"
	"github.com/ZaparooProject/cardmon/pkg/events"
	"github.com/ZaparooProject/cardmon/pkg/history"
	"github.com/ZaparooProject/cardmon/pkg/lifecycle"
	"github.com/ZaparooProject/cardmon/pkg/monitor"
	"github.com/ZaparooProject/cardmon/pkg/service/broker"
	"github.com/ZaparooProject/cardmon/pkg/service/discovery"
	"github.com/ZaparooProject/cardmon/pkg/service/publishers"
	"github.com/ZaparooProject/cardmon/pkg/shell"
	"github.com/ZaparooProject/cardmon/pkg/tree"
	"github.com/ZaparooProject/cardmon/pkg/volume"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DispatchWait is how long the dispatch task waits for card events per pass.
const DispatchWait = 500 * time.Millisecond

const (
	evInserted events.ID = iota
	evRemoved
)

const (
	changeQueueSize  = 16
	subscriberBuffer = 100
)

type Options struct {
	// Card enables the shell's insert and eject commands.
	Card  *blockdev.SimCard
	Clock clockwork.Clock
	// Console is read by the shell. Nil disables the shell. Consoles that
	// implement io.Closer are closed on stop; others are left to the
	// process exit.
	Console    io.Reader
	ConsoleOut io.Writer
	CRLF       bool
	// APIListener replaces the configured listen address.
	APIListener net.Listener
	// History records every state change when set.
	History *history.Store
}

// Start brings up the daemon. The returned stop func shuts everything down
// and waits for it; done closes once every task has exited.
//
//nolint:gocritic // options struct passed by value like the other constructors
func Start(
	cfg *config.Instance,
	dev blockdev.Device,
	vol volume.Volume,
	opts Options,
) (stop func() error, done <-chan struct{}, err error) {
	log.Info().Msgf("version: %s", config.AppVersion)
	log.Info().Msgf("session: %s", uuid.New().String())

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ConsoleOut == nil {
		opts.ConsoleOut = io.Discard
	}

	ctx, cancel := context.WithCancel(context.Background())

	changes := make(chan lifecycle.Change, changeQueueSize)
	ctrl := lifecycle.New(dev, vol, lifecycle.Options{
		Clock: opts.Clock,
		OnChange: func(c lifecycle.Change) {
			log.Info().
				Stringer("from", c.Previous).
				Stringer("to", c.State).
				Str("error", c.Error).
				Msg("mount state changed")
			select {
			case changes <- c:
			default:
				log.Warn().Msg("change queue full, dropping mount state change")
			}
		},
	})
	changeBroker := broker.New(changes)

	enum := tree.New(vol, cfg.PathBufferSize())
	mon := monitor.New(dev, monitor.Options{
		Clock:    opts.Clock,
		Interval: cfg.PollInterval(),
		Samples:  cfg.DebounceSamples(),
	})
	listener := events.NewListener(opts.Clock)
	mon.Inserted().Register(listener, evInserted)
	mon.Removed().Register(listener, evRemoved)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		changeBroker.Run(gctx)
		return nil
	})

	g.Go(func() error {
		dispatch(gctx, listener, ctrl)
		return nil
	})

	env := &methods.Env{
		Volume:    vol,
		Tree:      enum,
		Lifecycle: ctrl,
	}
	var hist shell.History
	if opts.History != nil {
		log.Info().Msg("starting history recorder")
		recorded, _ := changeBroker.Subscribe(subscriberBuffer)
		g.Go(func() error {
			return opts.History.Run(gctx, recorded)
		})
		env.History = opts.History
		hist = opts.History
	}

	if err := startAPI(gctx, g, cfg, opts, changeBroker, env); err != nil {
		cancel()
		_ = g.Wait()
		return nil, nil, err
	}

	startPublishers(gctx, g, cfg, changeBroker)

	var console io.Closer
	if opts.Console != nil && cfg.ShellEnabled() {
		sh := shell.New(shell.Options{
			Volume:    vol,
			Tree:      enum,
			Lifecycle: ctrl,
			History:   hist,
			Card:      opts.Card,
			Clock:     opts.Clock,
			Version:   config.AppVersion,
			CRLF:      opts.CRLF,
		})
		run := func() error {
			return runConsole(gctx, sh, opts.Console, opts.ConsoleOut)
		}
		if c, ok := opts.Console.(io.Closer); ok {
			console = c
			g.Go(run)
		} else {
			// a blocked stdin read can't be interrupted
			go func() {
				if err := run(); err != nil {
					log.Error().Err(err).Msg("console stopped")
				}
			}()
		}
		log.Info().Msg("shell started")
	}

	if err := mon.Start(); err != nil {
		cancel()
		_ = g.Wait()
		return nil, nil, fmt.Errorf("failed to start card monitor: %w", err)
	}

	doneCh := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = g.Wait()
		if waitErr != nil {
			log.Error().Err(waitErr).Msg("service stopped with error")
		}
		mon.Stop()
		log.Info().Msg("service cleanup completed")
		close(doneCh)
	}()

	var once sync.Once
	stop = func() error {
		once.Do(func() {
			log.Info().Msg("stopping service")
			mon.Stop()
			cancel()
			if console != nil {
				if err := console.Close(); err != nil {
					log.Debug().Err(err).Msg("closing console")
				}
			}
		})
		<-doneCh
		return waitErr
	}
	return stop, doneCh, nil
}

// dispatch runs the lifecycle handlers for every card event until ctx is
// done, then treats shutdown as a removal so the volume is released.
func dispatch(ctx context.Context, l *events.Listener, ctrl *lifecycle.Controller) {
	handlers := map[events.ID]events.Handler{
		evInserted: func(events.ID) { ctrl.OnInserted() },
		evRemoved:  func(events.ID) { ctrl.OnRemoved() },
	}
	for {
		ids, err := l.Wait(ctx, DispatchWait)
		if err != nil {
			break
		}
		events.Dispatch(handlers, ids)
	}
	ctrl.OnRemoved()
}

func startAPI(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Instance,
	opts Options, //nolint:gocritic // see Start
	b *broker.Broker[lifecycle.Change],
	env *methods.Env,
) error {
	ln := opts.APIListener
	if ln == nil {
		if cfg.APIPort() == 0 {
			log.Info().Msg("API disabled by configuration")
			return nil
		}
		var lc net.ListenConfig
		var err error
		ln, err = lc.Listen(ctx, "tcp", cfg.APIListen())
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.APIListen(), err)
		}
	}

	log.Info().Msg("starting API service")
	notifications, _ := b.Subscribe(subscriberBuffer)
	srv := api.NewServer(api.Options{
		Env:            env,
		Changes:        notifications,
		Clock:          opts.Clock,
		AllowedOrigins: cfg.AllowedOrigins(),
		AllowedIPs:     cfg.AllowedIPs(),
	})
	g.Go(func() error {
		return srv.Serve(ctx, ln)
	})

	log.Info().Msg("starting mDNS discovery service")
	disc := discovery.New(cfg)
	g.Go(func() error {
		return disc.Run(ctx)
	})
	return nil
}

func startPublishers(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Instance,
	b *broker.Broker[lifecycle.Change],
) {
	addr := cfg.MQTTBroker()
	if addr == "" {
		return
	}

	log.Info().Msgf("starting MQTT publisher: %s (topic: %s)", addr, cfg.MQTTTopic())
	pub := publishers.NewMQTTPublisher(addr, cfg.MQTTTopic(), cfg.MQTTStates(), cfg.MQTTRetain())
	if err := pub.Connect(); err != nil {
		log.Error().Err(err).Msgf("failed to start MQTT publisher for %s", addr)
		return
	}
	notifications, _ := b.Subscribe(subscriberBuffer)
	g.Go(func() error {
		return pub.Run(ctx, notifications)
	})
}

// runConsole runs shell sessions back to back. Typing exit starts a new
// session; end of input or cancellation ends the console.
func runConsole(ctx context.Context, sh *shell.Shell, in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)
	for {
		err := sh.Run(ctx, r, out)
		switch {
		case errors.Is(err, shell.ErrExit):
			log.Debug().Msg("shell session exited, restarting")
			continue
		case err == nil:
			log.Info().Msg("console input closed")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("console failed: %w", err)
		}
	}
}
