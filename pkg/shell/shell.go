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

// Package shell is a line oriented command console over the card. It runs on
// any reader and writer pair, typically stdin/stdout or a serial port.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/blockdev"
	"github.com/ZaparooProject/cardmon/pkg/history"
	"github.com/ZaparooProject/cardmon/pkg/lifecycle"
	"github.com/ZaparooProject/cardmon/pkg/tree"
	"github.com/ZaparooProject/cardmon/pkg/volume"
	"github.com/jonboulle/clockwork"
	"github.com/mackerelio/go-osstat/uptime"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPrompt = "cardmon> "
	// maxLine bounds a single input line.
	maxLine = 256
)

// ErrExit is returned by Run when the user typed exit.
var ErrExit = errors.New("shell exited")

// Lifecycle is the mount state the shell reports and checks.
type Lifecycle interface {
	Ready() bool
	State() lifecycle.State
}

// History is the stored log of state changes.
type History interface {
	Recent(n int) ([]history.Entry, error)
}

type Options struct {
	Volume    volume.Volume
	Tree      *tree.Enumerator
	Lifecycle Lifecycle
	// History enables the history command.
	History History
	// Card enables the insert and eject commands.
	Card    *blockdev.SimCard
	Clock   clockwork.Clock
	Prompt  string
	Version string
	// CRLF terminates output lines with \r\n, as serial terminals expect.
	CRLF bool
}

type command struct {
	run     func(w io.Writer, args []string) error
	help    string
	usage   []string
	maxArgs int
	minArgs int
}

type Shell struct {
	opts      Options
	started   time.Time
	commands  map[string]command
	sysUptime func() (time.Duration, error)
}

func New(opts Options) *Shell {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	s := &Shell{
		opts:      opts,
		started:   opts.Clock.Now(),
		sysUptime: uptime.Get,
	}
	s.commands = s.builtins()
	return s
}

// Run prints a banner and then reads and executes commands until the input
// ends, the context is cancelled or the user types exit. End of input
// returns nil and exit returns ErrExit.
func (s *Shell) Run(ctx context.Context, in *bufio.Reader, out io.Writer) error {
	w := out
	if s.opts.CRLF {
		w = &crlfWriter{w: out}
	}

	_, _ = fmt.Fprintf(w, "\nCardmon Shell %s\n", s.opts.Version)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.WriteString(w, s.opts.Prompt); err != nil {
			return fmt.Errorf("failed to write prompt: %w", err)
		}

		line, err := readLine(in)
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(line) == "" {
				return nil
			}
		} else if err != nil {
			return fmt.Errorf("failed to read command: %w", err)
		}

		if cmdErr := s.Exec(w, line); cmdErr != nil {
			return cmdErr
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// readLine reads one line, discarding anything past maxLine.
func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if len(line) > maxLine {
		line = line[:maxLine]
	}
	return line, err //nolint:wrapcheck // caller wraps
}

// Exec runs a single command line. Only ErrExit and write failures are
// returned; command failures are reported on w.
func (s *Shell) Exec(w io.Writer, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	name, args := args[0], args[1:]

	cmd, ok := s.commands[name]
	if !ok {
		return printf(w, "%s?\n", name)
	}

	if len(args) < cmd.minArgs || len(args) > cmd.maxArgs {
		return printf(w, "%s\n", strings.Join(cmd.usage, "\n"))
	}

	log.Debug().Str("command", name).Strs("args", args).Msg("shell command")
	return cmd.run(w, args)
}

// Commands returns the names of all available commands, sorted.
func (s *Shell) Commands() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// crlfWriter expands \n to \r\n.
type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	s := strings.ReplaceAll(string(p), "\n", "\r\n")
	if _, err := io.WriteString(c.w, s); err != nil {
		return 0, err //nolint:wrapcheck // io.Writer contract
	}
	return len(p), nil
}
