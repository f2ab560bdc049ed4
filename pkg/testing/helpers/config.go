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

// Package helpers holds fixtures shared by tests across packages.
package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZaparooProject/cardmon/pkg/config"
	"github.com/stretchr/testify/require"
)

// NewTestConfig saves the base defaults, changed by mutate, to a config file
// in a temp dir and loads it back.
func NewTestConfig(t testing.TB, mutate func(*config.Values)) *config.Instance {
	t.Helper()

	vals := config.BaseDefaults
	if mutate != nil {
		mutate(&vals)
	}
	cfg, err := config.NewConfigAt(filepath.Join(t.TempDir(), config.CfgFile), vals)
	require.NoError(t, err)
	return cfg
}

// NewTestConfigTOML loads a config from raw file content.
func NewTestConfigTOML(t testing.TB, content string) *config.Instance {
	t.Helper()

	cfg := NewTestConfig(t, nil)
	require.NoError(t, os.WriteFile(cfg.Path(), []byte(content), 0o600))
	require.NoError(t, cfg.Load())
	return cfg
}
