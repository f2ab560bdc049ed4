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

package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/tree"
	"github.com/ZaparooProject/cardmon/pkg/volume"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

const notMounted = "File System not mounted"

// catChunk is the read size used when echoing a file.
const catChunk = 255

// historyDefault is how many changes history prints without an argument.
const historyDefault = 10

func (s *Shell) builtins() map[string]command {
	listing := command{
		run:   s.cmdTree,
		help:  "list every file and directory on the card",
		usage: []string{"Usage: tree"},
	}
	cmds := map[string]command{
		"ls":   listing,
		"tree": listing,
		"free": {
			run:   s.cmdFree,
			help:  "show free space on the card",
			usage: []string{"Usage: free"},
		},
		"mkdir": {
			run:     s.cmdMkdir,
			help:    "create a directory",
			minArgs: 1,
			maxArgs: 1,
			usage: []string{
				"Usage: mkdir dirName",
				"       Creates directory with dirName (no spaces)",
			},
		},
		"setlabel": {
			run:     s.cmdSetLabel,
			help:    "set the volume label",
			minArgs: 1,
			maxArgs: 1,
			usage: []string{
				"Usage: setlabel label",
				"       Sets FAT label (no spaces)",
			},
		},
		"getlabel": {
			run:  s.cmdGetLabel,
			help: "print the volume label and serial number",
			usage: []string{
				"Usage: getlabel",
				"       Gets and prints FAT label",
			},
		},
		"cat": {
			run:     s.cmdCat,
			help:    "print a file",
			minArgs: 1,
			maxArgs: 1,
			usage: []string{
				"Usage: cat filename",
				"       Echos filename (no spaces)",
			},
		},
		"mem": {
			run:   cmdMem,
			help:  "show memory usage",
			usage: []string{"Usage: mem"},
		},
		"threads": {
			run:   cmdThreads,
			help:  "show goroutine usage",
			usage: []string{"Usage: threads"},
		},
		"status": {
			run:   s.cmdStatus,
			help:  "show the mount state",
			usage: []string{"Usage: status"},
		},
		"help": {
			run:   s.cmdHelp,
			help:  "list commands",
			usage: []string{"Usage: help"},
		},
		"exit": {
			run:   func(io.Writer, []string) error { return ErrExit },
			help:  "leave the shell",
			usage: []string{"Usage: exit"},
		},
	}

	if s.opts.History != nil {
		cmds["history"] = command{
			run:     s.cmdHistory,
			help:    "show recent mount state changes",
			maxArgs: 1,
			usage: []string{
				"Usage: history [count]",
				"       Prints the last count state changes, newest first",
			},
		}
	}

	if s.opts.Card != nil {
		cmds["insert"] = command{
			run:   s.cmdInsert,
			help:  "insert the simulated card",
			usage: []string{"Usage: insert"},
		}
		cmds["eject"] = command{
			run:   s.cmdEject,
			help:  "eject the simulated card",
			usage: []string{"Usage: eject"},
		}
	}

	return cmds
}

// printf writes to the console. A failed write ends the session.
func printf(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return fmt.Errorf("console write failed: %w", err)
	}
	return nil
}

// failed reports a failed volume call followed by the reason.
func failed(w io.Writer, call string, err error) error {
	return printf(w, "FS: %s failed\n\t%s.\n", call, tree.Describe(err))
}

// ready prints the not mounted message and returns false when the card
// can't be used.
func (s *Shell) ready(w io.Writer) bool {
	if s.opts.Lifecycle == nil || !s.opts.Lifecycle.Ready() {
		_, _ = fmt.Fprintln(w, notMounted)
		return false
	}
	return true
}

func (s *Shell) cmdTree(w io.Writer, _ []string) error {
	if !s.ready(w) {
		return nil
	}

	free, err := s.opts.Volume.Free()
	if err != nil {
		return failed(w, "free()", err)
	}
	err = printf(w, "FS: %d free clusters, %d sectors per cluster, %d bytes free\n",
		free.FreeClusters, free.SectorsPerCluster, free.Bytes())
	if err != nil {
		return err
	}

	if err := s.opts.Tree.Walk("", tree.NewTextSink(w)); err != nil {
		return failed(w, "tree()", err)
	}
	return nil
}

func (s *Shell) cmdFree(w io.Writer, _ []string) error {
	if !s.ready(w) {
		return nil
	}

	free, err := s.opts.Volume.Free()
	if err != nil {
		return failed(w, "free()", err)
	}
	b := free.Bytes()
	return printf(w,
		"FS: %d free clusters\n    %d sectors per cluster\n%d B free\n%d KB free\n%d MB free\n",
		free.FreeClusters, free.SectorsPerCluster, b, b/1024, b/(1024*1024))
}

func (s *Shell) cmdMkdir(w io.Writer, args []string) error {
	if !s.ready(w) {
		return nil
	}

	call := fmt.Sprintf("mkdir(%s)", args[0])
	if err := s.opts.Volume.Mkdir(args[0]); err != nil {
		return failed(w, call, err)
	}
	return printf(w, "FS: %s succeeded\n", call)
}

func (s *Shell) cmdSetLabel(w io.Writer, args []string) error {
	if !s.ready(w) {
		return nil
	}

	call := fmt.Sprintf("setlabel(%s)", args[0])
	if err := s.opts.Volume.SetLabel(args[0]); err != nil {
		return failed(w, call, err)
	}
	return printf(w, "FS: %s succeeded\n", call)
}

func (s *Shell) cmdGetLabel(w io.Writer, _ []string) error {
	if !s.ready(w) {
		return nil
	}

	label, err := s.opts.Volume.Label()
	if err != nil {
		return failed(w, "getlabel()", err)
	}
	return printf(w, "LABEL: %s\n  S/N: 0x%X\n", label.Name, label.Serial)
}

func (s *Shell) cmdCat(w io.Writer, args []string) error {
	if !s.ready(w) {
		return nil
	}

	f, err := s.opts.Volume.Open(args[0])
	if err != nil {
		return failed(w, fmt.Sprintf("open(%s)", args[0]), err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, catChunk)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if err := printf(w, "%s", buf[:n]); err != nil {
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return failed(w, "read()", fmt.Errorf("%w: %w", volume.ErrDisk, rerr))
		}
	}
	return printf(w, "\n")
}

func cmdMem(w io.Writer, _ []string) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	err := printf(w,
		"heap in use      : %d bytes\nheap objects     : %d\nheap free total  : %d bytes\nsys memory       : %d bytes\n",
		m.HeapInuse, m.HeapObjects, m.HeapIdle-m.HeapReleased, m.Sys)
	if err != nil {
		return err
	}

	if proc, perr := self(); perr == nil {
		if info, ierr := proc.MemoryInfo(); ierr == nil {
			if err := printf(w, "process rss      : %d bytes\n", info.RSS); err != nil {
				return err
			}
		}
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return printf(w, "system memory    : unavailable\n")
	}
	return printf(w, "system total     : %d bytes\nsystem available : %d bytes\n",
		vm.Total, vm.Available)
}

func cmdThreads(w io.Writer, _ []string) error {
	err := printf(w, "goroutines       : %d\nmax procs        : %d\n",
		runtime.NumGoroutine(), runtime.GOMAXPROCS(0))
	if err != nil {
		return err
	}
	if proc, perr := self(); perr == nil {
		if n, nerr := proc.NumThreads(); nerr == nil {
			return printf(w, "os threads       : %d\n", n)
		}
	}
	return nil
}

func self() (*process.Process, error) {
	//nolint:gosec // pids fit in int32
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect own process: %w", err)
	}
	return proc, nil
}

func (s *Shell) cmdStatus(w io.Writer, _ []string) error {
	state := "unknown"
	if s.opts.Lifecycle != nil {
		state = s.opts.Lifecycle.State().String()
	}
	up := s.opts.Clock.Since(s.started).Truncate(time.Second)
	if err := printf(w, "state  : %s\nuptime : %s\n", state, up); err != nil {
		return err
	}
	if sys, err := s.sysUptime(); err == nil {
		return printf(w, "system : %s\n", sys.Truncate(time.Second))
	}
	return nil
}

func (s *Shell) cmdHistory(w io.Writer, args []string) error {
	n := historyDefault
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return printf(w, "%s\n", strings.Join(s.commands["history"].usage, "\n"))
		}
		n = v
	}

	entries, err := s.opts.History.Recent(n)
	if err != nil {
		return printf(w, "history unavailable: %s\n", err)
	}
	if len(entries) == 0 {
		return printf(w, "no state changes recorded\n")
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s %-9s -> %s", e.At.UTC().Format(time.DateTime), e.Previous, e.State)
		if e.Error != "" {
			line += " (" + e.Error + ")"
		}
		if err := printf(w, "%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func (s *Shell) cmdHelp(w io.Writer, _ []string) error {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range s.Commands() {
		fmt.Fprintf(&b, "  %-9s %s\n", name, s.commands[name].help)
	}
	return printf(w, "%s", b.String())
}

func (s *Shell) cmdInsert(w io.Writer, _ []string) error {
	s.opts.Card.Insert()
	return printf(w, "card inserted\n")
}

func (s *Shell) cmdEject(w io.Writer, _ []string) error {
	s.opts.Card.Eject()
	return printf(w, "card ejected\n")
}
