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
	"fmt"

	"github.com/stretchr/testify/mock"
)

// MockDevice is a mock implementation of blockdev.Device using testify/mock
type MockDevice struct {
	mock.Mock
}

// IsInserted reports physical presence of the media
func (m *MockDevice) IsInserted() bool {
	args := m.Called()
	return args.Bool(0)
}

// Connect initialises the media
func (m *MockDevice) Connect() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

// Disconnect releases the media
func (m *MockDevice) Disconnect() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}
