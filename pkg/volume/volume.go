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

// Package volume is the filesystem side of a removable card: mounting,
// directory reads with FAT style timestamps, and the handful of volume
// operations exposed by the shell.
package volume

import (
	"io"
)

const (
	// DefaultSectorSize matches MMC/SD block size.
	DefaultSectorSize = 512
	// DefaultSectorsPerCluster gives 4KiB clusters.
	DefaultSectorsPerCluster = 8
	// MaxLabelLength is the FAT volume label limit.
	MaxLabelLength = 11
)

// Entry is a single directory entry as read from the volume.
type Entry struct {
	Name  string
	Size  int64
	Date  uint16
	Time  uint16
	IsDir bool
}

// Modified decodes the entry's packed timestamp.
func (e Entry) Modified() Timestamp {
	return DecodeTimestamp(e.Date, e.Time)
}

// Dir is an open directory. Next returns io.EOF after the last entry.
type Dir interface {
	Next() (Entry, error)
	Close() error
}

// Directories opens directories on a mounted volume.
type Directories interface {
	OpenDir(path string) (Dir, error)
}

// Volume is a mountable filesystem on a block device.
type Volume interface {
	Directories
	// Mount binds the volume at root. Mounting an already mounted volume
	// remounts it.
	Mount(root string) error
	// Unmount releases the volume. It returns ErrNotMounted if the volume was
	// not mounted.
	Unmount() error
	Mounted() bool
	Free() (FreeSpace, error)
	Mkdir(path string) error
	Label() (Label, error)
	SetLabel(label string) error
	Open(path string) (io.ReadCloser, error)
}

// FreeSpace describes unused space in clusters.
type FreeSpace struct {
	FreeClusters      uint64
	SectorsPerCluster uint32
	SectorSize        uint32
}

// ClusterSize returns the size of one cluster in bytes.
func (f FreeSpace) ClusterSize() uint64 {
	return uint64(f.SectorsPerCluster) * uint64(f.SectorSize)
}

// Bytes returns the free space in bytes.
func (f FreeSpace) Bytes() uint64 {
	return f.FreeClusters * f.ClusterSize()
}

// Label is the volume label and serial number.
type Label struct {
	Name   string
	Serial uint32
}
