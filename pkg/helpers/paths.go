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

package helpers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/cardmon/pkg/config"
	"github.com/adrg/xdg"
)

// Dirs are the directories the service writes to.
type Dirs struct {
	Config string
	Log    string
	// Data holds the history database. Empty skips it.
	Data string
}

// DefaultDirs places config under the XDG config home and logs and data
// under the XDG data home.
func DefaultDirs() Dirs {
	data := filepath.Join(xdg.DataHome, config.AppName)
	return Dirs{
		Config: filepath.Join(xdg.ConfigHome, config.AppName),
		Log:    filepath.Join(data, "logs"),
		Data:   data,
	}
}

// EnsureDirectories creates the config, log and data directories.
func EnsureDirectories(dirs Dirs) error {
	if err := os.MkdirAll(dirs.Config, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.MkdirAll(dirs.Log, 0o750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if dirs.Data != "" {
		if err := os.MkdirAll(dirs.Data, 0o750); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return nil
}
