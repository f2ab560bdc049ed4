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

// Package cli holds the flag handling and startup sequence shared by the
// cardmon binaries.
package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/ZaparooProject/cardmon/internal/telemetry"
	"github.com/ZaparooProject/cardmon/pkg/config"
	"github.com/ZaparooProject/cardmon/pkg/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Flags struct {
	Version   *bool
	Config    *string
	Simulate  *bool
	Daemon    *bool
	Status    *bool
	ListPorts *bool
}

// SetupFlags defines every cardmon flag on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Config: fs.String(
			"config",
			"",
			"path to the config file",
		),
		Simulate: fs.Bool(
			"simulate",
			false,
			"use an in-memory card instead of the configured device",
		),
		Daemon: fs.Bool(
			"daemon",
			false,
			"run without the console shell and log to stderr",
		),
		Status: fs.Bool(
			"status",
			false,
			"print the mount state of a running service and exit",
		),
		ListPorts: fs.Bool(
			"list-ports",
			false,
			"list serial ports the shell can use and exit",
		),
	}
}

// Pre parses args and handles the flags that need no config or logging.
// It returns true when the program should exit.
func (f *Flags) Pre(fs *flag.FlagSet, args []string, out io.Writer) (bool, error) {
	if err := fs.Parse(args); err != nil {
		return true, fmt.Errorf("failed to parse flags: %w", err)
	}

	switch {
	case *f.Version:
		_, _ = fmt.Fprintf(out, "Cardmon v%s\n", config.AppVersion)
		return true, nil
	case *f.ListPorts:
		return true, ListPorts(out, helpers.GetSerialDeviceList)
	}
	return false, nil
}

// Setup creates the directories, loads the config, starts error reporting
// and initializes logging, in that order.
//
//nolint:gocritic // config struct copied for immutability
func (f *Flags) Setup(
	dirs helpers.Dirs,
	defaults config.Values,
	writers []io.Writer,
) (*config.Instance, error) {
	if err := helpers.EnsureDirectories(dirs); err != nil {
		return nil, fmt.Errorf("error creating directories: %w", err)
	}

	var cfg *config.Instance
	var err error
	if *f.Config != "" {
		cfg, err = config.NewConfigAt(*f.Config, defaults)
	} else {
		cfg, err = config.NewConfig(dirs.Config, defaults)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if *f.Simulate {
		cfg.SetSimulate(true)
	}

	sentryWriter, err := telemetry.Init(telemetry.Options{
		DSN:        cfg.TelemetryDSN(),
		Version:    config.AppVersion,
		MountPoint: cfg.MountPoint(),
		Simulate:   cfg.Simulate(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	} else if sentryWriter != nil {
		writers = append(writers, sentryWriter)
	}

	if err := helpers.InitLogging(dirs.Log, writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("config", cfg.Path()).Msg("config loaded")
	return cfg, nil
}
