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

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/cardmon/pkg/blockdev"
	"github.com/ZaparooProject/cardmon/pkg/config"
	"github.com/ZaparooProject/cardmon/pkg/helpers"
	"github.com/ZaparooProject/cardmon/pkg/history"
	"github.com/ZaparooProject/cardmon/pkg/service"
	"github.com/ZaparooProject/cardmon/pkg/volume"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Card is the device and volume the service manages.
type Card struct {
	Device blockdev.Device
	Volume volume.Volume
	// Sim is set in simulate mode.
	Sim *blockdev.SimCard
	// closer releases the node watcher, if any.
	closer io.Closer
}

// Close stops any presence watcher opened for the card.
func (c Card) Close() error {
	if c.closer == nil {
		return nil
	}
	if err := c.closer.Close(); err != nil {
		return fmt.Errorf("failed to close card watcher: %w", err)
	}
	return nil
}

// OpenCard picks the simulated card or the configured device node.
func OpenCard(cfg *config.Instance) Card {
	opts := volume.Options{
		Capacity: cfg.SimCapacity(),
		ReadOnly: cfg.ReadOnly(),
	}
	if cfg.Simulate() {
		log.Info().Uint64("capacity", opts.Capacity).Msg("using simulated card")
		sim := blockdev.NewSimCard()
		return Card{
			Device: sim,
			Volume: volume.NewAferoVolume(afero.NewMemMapFs(), opts),
			Sim:    sim,
		}
	}

	log.Info().
		Str("node", cfg.DeviceNode()).
		Str("mount_point", cfg.MountPoint()).
		Msg("using card device")
	card := Card{
		Device: blockdev.NewNodeDevice(nil, cfg.DeviceNode()),
		Volume: volume.NewOSVolume(cfg.MountPoint(), opts),
	}
	if cfg.WatchNode() {
		w, err := blockdev.WatchNode(cfg.DeviceNode())
		if err != nil {
			log.Warn().Err(err).Msg("node watch unavailable, polling device node")
			return card
		}
		card.Device = w
		card.closer = w
	}
	return card
}

// OpenHistory opens the change history in dataDir, or returns nil when
// history is disabled.
func OpenHistory(cfg *config.Instance, dataDir string) (*history.Store, error) {
	if !cfg.HistoryEnabled() || dataDir == "" {
		return nil, nil //nolint:nilnil // history is optional
	}
	store, err := history.Open(history.Path(dataDir), cfg.HistorySize())
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// Console is where the shell reads and writes.
type Console struct {
	In   io.Reader
	Out  io.Writer
	CRLF bool
}

// OpenConsole opens the configured serial port, or falls back to stdin and
// stdout outside daemon mode. It returns a zero Console when the shell has
// nowhere to run.
func OpenConsole(cfg *config.Instance, daemonMode bool) (Console, error) {
	if !cfg.ShellEnabled() {
		return Console{}, nil
	}
	if name := cfg.SerialPort(); name != "" {
		port, err := helpers.OpenSerial(name, cfg.BaudRate())
		if err != nil {
			return Console{}, fmt.Errorf("failed to open shell serial port: %w", err)
		}
		log.Info().Str("port", name).Int("baud", cfg.BaudRate()).Msg("shell on serial port")
		return Console{In: port, Out: port, CRLF: true}, nil
	}
	if daemonMode {
		return Console{}, nil
	}
	// hide Close so stop doesn't wait on a stdin read that can't be interrupted
	return Console{In: struct{ io.Reader }{os.Stdin}, Out: os.Stdout}, nil
}

// RunApp starts the service and blocks until a signal arrives or the
// service stops on its own.
func RunApp(cfg *config.Instance, dirs helpers.Dirs, daemonMode bool) (returnErr error) {
	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %v\n", r)
			log.Error().Msgf("panic recovered: %v", r)
			returnErr = fmt.Errorf("panic: %v", r)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if ServiceRunning(context.Background(), cfg) {
		log.Info().
			Int("port", cfg.APIPort()).
			Msg("service already running, exiting")
		return nil
	}

	card := OpenCard(cfg)
	defer func() {
		if err := card.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing card")
		}
	}()

	console, err := OpenConsole(cfg, daemonMode)
	if err != nil {
		return err
	}

	store, err := OpenHistory(cfg, dirs.Data)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing history")
			}
		}()
	}

	stopSvc, done, err := service.Start(cfg, card.Device, card.Volume, service.Options{
		Card:       card.Sim,
		Console:    console.In,
		ConsoleOut: console.Out,
		CRLF:       console.CRLF,
		History:    store,
	})
	if err != nil {
		log.Error().Msgf("error starting service: %s", err)
		return fmt.Errorf("error starting service: %w", err)
	}
	defer func() {
		if err := stopSvc(); err != nil {
			log.Error().Msgf("error stopping service: %s", err)
		}
	}()

	if daemonMode {
		log.Info().Msg("started in daemon mode")
	}

	select {
	case <-sigs:
	case <-done:
		log.Info().Msg("service shut down internally")
	}
	return nil
}
