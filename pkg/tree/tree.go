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

// Package tree lists a mounted volume recursively, depth first, reusing one
// path buffer for the whole walk.
package tree

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/ZaparooProject/cardmon/pkg/volume"
)

const (
	// HiddenPrefix marks entries that are never listed. It also covers the
	// "." and ".." entries some filesystems return.
	HiddenPrefix = "."
	// DefaultBufferSize is the default path buffer capacity.
	DefaultBufferSize = 1024
)

var ErrBusy = errors.New("a directory walk is already running")

// Describe extends volume.Describe with the enumerator's own errors.
func Describe(err error) string {
	switch {
	case errors.Is(err, ErrBusy):
		return "Another listing is in progress"
	case errors.Is(err, ErrPathTooLong):
		return "The path is too long for the path buffer"
	default:
		return volume.Describe(err)
	}
}

// Record is one listed entry.
type Record struct {
	Path     string
	Modified volume.Timestamp
	IsDir    bool
}

// Sink receives records as the walk produces them. Returning an error stops
// the walk.
type Sink interface {
	Record(rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rec Record) error

func (f SinkFunc) Record(rec Record) error {
	return f(rec)
}

// Enumerator walks a volume. A single Enumerator owns one path buffer, so
// only one walk can run on it at a time.
type Enumerator struct {
	dirs    volume.Directories
	path    *PathBuffer
	running atomic.Bool
}

// New returns an enumerator over dirs with a path buffer of bufferSize
// bytes. A bufferSize of zero or less uses DefaultBufferSize.
func New(dirs volume.Directories, bufferSize int) *Enumerator {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Enumerator{
		dirs: dirs,
		path: NewPathBuffer(bufferSize),
	}
}

// Walk lists every non-hidden entry below start, reporting each to sink.
// The caller must make sure the volume is mounted. Walk returns the first
// error from opening or reading a directory, or from the sink; records
// already sent are not taken back.
func (e *Enumerator) Walk(start string, sink Sink) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer e.running.Store(false)

	if err := e.path.Reset(start); err != nil {
		return err
	}
	return e.scan(sink)
}

// scan lists the directory currently held in the path buffer. The buffer
// has the same content when scan returns as when it was called.
func (e *Enumerator) scan(sink Sink) error {
	dirPath := e.path.String()
	dir, err := e.dirs.OpenDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to open directory %q: %w", dirPath, err)
	}
	defer func() { _ = dir.Close() }()

	for {
		entry, err := dir.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read directory %q: %w", dirPath, err)
		}
		if entry.Name == "" {
			return nil
		}
		if strings.HasPrefix(entry.Name, HiddenPrefix) {
			continue
		}

		if !entry.IsDir {
			err := sink.Record(Record{
				Path:     dirPath + string(Separator) + entry.Name,
				Modified: entry.Modified(),
			})
			if err != nil {
				return err
			}
			continue
		}

		mark := e.path.Len()
		if err := e.path.Append(entry.Name); err != nil {
			return err
		}
		err = sink.Record(Record{
			Path:     e.path.String(),
			Modified: entry.Modified(),
			IsDir:    true,
		})
		if err == nil {
			err = e.scan(sink)
		}
		e.path.Truncate(mark)
		if err != nil {
			return err
		}
	}
}

// TextSink writes one line per record in the shell's listing format.
type TextSink struct {
	w     io.Writer
	Dirs  int
	Files int
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Record(rec Record) error {
	var err error
	if rec.IsDir {
		s.Dirs++
		_, err = fmt.Fprintf(s.w, "%s <DIR> %s/\n", rec.Modified, rec.Path)
	} else {
		s.Files++
		_, err = fmt.Fprintf(s.w, "%s       %s\n", rec.Modified, rec.Path)
	}
	if err != nil {
		return fmt.Errorf("failed to write listing: %w", err)
	}
	return nil
}
