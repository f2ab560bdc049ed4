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

// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"github.com/ZaparooProject/cardmon/pkg/history"
	"github.com/ZaparooProject/cardmon/pkg/lifecycle"
)

type StatusResponse struct {
	State lifecycle.State `json:"state"`
	Ready bool            `json:"ready"`
}

type FreeResponse struct {
	FreeClusters      uint64 `json:"freeClusters"`
	Bytes             uint64 `json:"bytes"`
	SectorsPerCluster uint32 `json:"sectorsPerCluster"`
	SectorSize        uint32 `json:"sectorSize"`
}

type LabelResponse struct {
	Label  string `json:"label"`
	Serial string `json:"serial"`
}

// TreeEntry is one line of a listing.
type TreeEntry struct {
	Path     string `json:"path" csv:"path"`
	Modified string `json:"modified" csv:"modified"`
	IsDir    bool   `json:"isDir" csv:"is_dir"`
}

// TreeResponse is a listing. After a failed walk it holds the entries read
// before the failure, with Error and Reason set.
type TreeResponse struct {
	Error   string      `json:"error,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Entries []TreeEntry `json:"entries"`
	Dirs    int         `json:"dirs"`
	Files   int         `json:"files"`
}

type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type MkdirParams struct {
	Path string `json:"path" validate:"required,max=255,fatpath"`
}

type SetLabelParams struct {
	Label string `json:"label" validate:"fatlabel"`
}

// Notification is pushed to every WebSocket client.
type Notification struct {
	Method string           `json:"method"`
	Params lifecycle.Change `json:"params"`
}

const NotificationMountChanged = "mount.changed"
