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

package volume

import (
	"errors"
	"fmt"
	"os"
)

var (
	ErrDisk           = errors.New("disk I/O error")
	ErrNotReady       = errors.New("drive not ready")
	ErrNoFile         = errors.New("no such file")
	ErrNoPath         = errors.New("no such path")
	ErrInvalidName    = errors.New("invalid name")
	ErrDenied         = errors.New("access denied")
	ErrExist          = errors.New("already exists")
	ErrWriteProtected = errors.New("write protected")
	ErrNoFilesystem   = errors.New("no valid filesystem")
	ErrNotMounted     = errors.New("volume not mounted")
)

// descriptions are the messages shown to shell users for each error.
var descriptions = []struct {
	err  error
	text string
}{
	{ErrDisk, "A hard error occurred in the low level disk I/O layer"},
	{ErrNotReady, "The physical drive cannot work"},
	{ErrNoFile, "Could not find the file"},
	{ErrNoPath, "Could not find the path"},
	{ErrInvalidName, "The path name format is invalid"},
	{ErrDenied, "Access denied due to prohibited access or directory full"},
	{ErrExist, "Access denied due to prohibited access"},
	{ErrWriteProtected, "The physical drive is write protected"},
	{ErrNoFilesystem, "There is no valid FAT volume"},
	{ErrNotMounted, "The volume has no work area"},
}

// Describe returns a human readable explanation of err suitable for printing
// under a failed command.
func Describe(err error) string {
	if err == nil {
		return "Succeeded"
	}
	for _, d := range descriptions {
		if errors.Is(err, d.err) {
			return d.text
		}
	}
	return "Unknown"
}

// mapError translates errors from the backing filesystem into the volume's
// error set. missing is used for not-exist errors so callers can tell a
// missing file from a missing directory.
func mapError(err, missing error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", missing, err)
	case errors.Is(err, os.ErrExist):
		return fmt.Errorf("%w: %w", ErrExist, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", ErrDenied, err)
	default:
		return fmt.Errorf("%w: %w", ErrDisk, err)
	}
}
