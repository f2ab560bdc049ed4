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

package tree

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins path segments in the buffer.
const Separator = '/'

var ErrPathTooLong = errors.New("path exceeds buffer capacity")

// PathBuffer is a fixed capacity path shared by every level of a traversal.
// Its content never ends in a separator; the root is the empty path.
type PathBuffer struct {
	buf []byte
}

// NewPathBuffer returns an empty buffer that holds at most capacity bytes.
func NewPathBuffer(capacity int) *PathBuffer {
	return &PathBuffer{buf: make([]byte, 0, capacity)}
}

// Cap returns the buffer capacity in bytes.
func (p *PathBuffer) Cap() int {
	return cap(p.buf)
}

// Len returns the current path length.
func (p *PathBuffer) Len() int {
	return len(p.buf)
}

func (p *PathBuffer) String() string {
	return string(p.buf)
}

// Reset replaces the content with path, minus any trailing separators. A
// relative path is rooted so that records match the directories opened.
func (p *PathBuffer) Reset(path string) error {
	path = strings.TrimRight(path, string(Separator))
	if path != "" && path[0] != Separator {
		path = string(Separator) + path
	}
	if len(path) > cap(p.buf) {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrPathTooLong, len(path), cap(p.buf))
	}
	p.buf = append(p.buf[:0], path...)
	return nil
}

// Append adds a separator and name at the end of the path. On failure the
// buffer is left unchanged.
func (p *PathBuffer) Append(name string) error {
	if len(p.buf)+1+len(name) > cap(p.buf) {
		return fmt.Errorf("%w: %s%c%s", ErrPathTooLong, p.buf, Separator, name)
	}
	p.buf = append(p.buf, Separator)
	p.buf = append(p.buf, name...)
	return nil
}

// Truncate cuts the path back to n bytes, a length previously returned by
// Len.
func (p *PathBuffer) Truncate(n int) {
	if n < 0 || n > len(p.buf) {
		panic(fmt.Sprintf("tree: truncate to %d outside path of length %d", n, len(p.buf)))
	}
	p.buf = p.buf[:n]
}
