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
	"fmt"
	"strings"
)

// invalidNameChars are rejected in labels and directory names.
const invalidNameChars = "\"*+,/:;<=>?[\\]|"

// NormalizeLabel validates a volume label and returns it the way FAT stores
// it: upper case, surrounding spaces trimmed. An empty label clears it.
func NormalizeLabel(label string) (string, error) {
	name := strings.ToUpper(strings.TrimSpace(label))
	if len(name) > MaxLabelLength {
		return "", fmt.Errorf("%w: label longer than %d characters", ErrInvalidName, MaxLabelLength)
	}
	if strings.ContainsAny(name, invalidNameChars+".") {
		return "", fmt.Errorf("%w: label %q contains invalid characters", ErrInvalidName, label)
	}
	for _, r := range name {
		if r < 0x20 || r > 0x7E {
			return "", fmt.Errorf("%w: label %q contains invalid characters", ErrInvalidName, label)
		}
	}
	return name, nil
}

// ValidName reports whether name can be used as a single file or directory
// name on the volume.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, invalidNameChars)
}
