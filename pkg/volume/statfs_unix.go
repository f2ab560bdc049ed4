// Cardmon
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Cardmon.
//
// Cardmon is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Cardmon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Cardmon.  If not, see <http://www.gnu.org/licenses/>.

//go:build unix

package volume

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func statFree(dir string, sectorsPerCluster uint32) (FreeSpace, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return FreeSpace{}, fmt.Errorf("%w: statfs %s: %w", ErrNotReady, dir, err)
	}

	free := FreeSpace{
		SectorsPerCluster: sectorsPerCluster,
		SectorSize:        DefaultSectorSize,
	}
	//nolint:gosec,unconvert // Bsize and Bavail types differ between platforms
	freeBytes := uint64(st.Bavail) * uint64(st.Bsize)
	free.FreeClusters = freeBytes / free.ClusterSize()
	return free, nil
}
