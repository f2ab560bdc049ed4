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

package mocks

import (
	"errors"
	"fmt"
	"io"

	"github.com/ZaparooProject/cardmon/pkg/volume"
	"github.com/stretchr/testify/mock"
)

// MockVolume is a mock implementation of volume.Volume using testify/mock
type MockVolume struct {
	mock.Mock
}

func mockErr(err error) error {
	if err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

// Mount binds the volume at root
func (m *MockVolume) Mount(root string) error {
	args := m.Called(root)
	return mockErr(args.Error(0))
}

// Unmount releases the volume
func (m *MockVolume) Unmount() error {
	args := m.Called()
	return mockErr(args.Error(0))
}

// Mounted reports whether the volume is mounted
func (m *MockVolume) Mounted() bool {
	args := m.Called()
	return args.Bool(0)
}

// OpenDir opens a directory for reading
func (m *MockVolume) OpenDir(path string) (volume.Dir, error) {
	args := m.Called(path)
	if dir, ok := args.Get(0).(volume.Dir); ok {
		return dir, mockErr(args.Error(1))
	}
	if err := args.Error(1); err != nil {
		return nil, mockErr(err)
	}
	return nil, errors.New("mock operation failed: no directory provided")
}

// Free returns the free space on the volume
func (m *MockVolume) Free() (volume.FreeSpace, error) {
	args := m.Called()
	free, _ := args.Get(0).(volume.FreeSpace)
	return free, mockErr(args.Error(1))
}

// Mkdir creates a directory
func (m *MockVolume) Mkdir(path string) error {
	args := m.Called(path)
	return mockErr(args.Error(0))
}

// Label returns the volume label and serial number
func (m *MockVolume) Label() (volume.Label, error) {
	args := m.Called()
	lbl, _ := args.Get(0).(volume.Label)
	return lbl, mockErr(args.Error(1))
}

// SetLabel changes the volume label
func (m *MockVolume) SetLabel(label string) error {
	args := m.Called(label)
	return mockErr(args.Error(0))
}

// Open opens a file for reading
func (m *MockVolume) Open(path string) (io.ReadCloser, error) {
	args := m.Called(path)
	if rc, ok := args.Get(0).(io.ReadCloser); ok {
		return rc, mockErr(args.Error(1))
	}
	if err := args.Error(1); err != nil {
		return nil, mockErr(err)
	}
	return nil, errors.New("mock operation failed: no file provided")
}
