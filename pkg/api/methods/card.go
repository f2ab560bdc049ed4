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

// Package methods implements the HTTP handlers of the card API.
package methods

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ZaparooProject/cardmon/pkg/api/models"
	"github.com/ZaparooProject/cardmon/pkg/api/validation"
	"github.com/ZaparooProject/cardmon/pkg/history"
	"github.com/ZaparooProject/cardmon/pkg/lifecycle"
	"github.com/ZaparooProject/cardmon/pkg/tree"
	"github.com/ZaparooProject/cardmon/pkg/volume"
	"github.com/go-chi/chi/v5"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

const (
	notMounted = "File System not mounted"
	// maxBody bounds request bodies.
	maxBody = 4096
	// DefaultHistoryLimit is how many changes /api/history returns without
	// a limit parameter.
	DefaultHistoryLimit = 50
)

// Lifecycle is the mount state the handlers check.
type Lifecycle interface {
	Ready() bool
	State() lifecycle.State
}

// History is the stored log of state changes.
type History interface {
	Recent(n int) ([]history.Entry, error)
}

// Env is what every handler works with.
type Env struct {
	Volume    volume.Volume
	Tree      *tree.Enumerator
	Lifecycle Lifecycle
	// History is nil when history is disabled.
	History History
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := models.ErrorResponse{Error: msg}
	if err != nil {
		resp.Reason = tree.Describe(err)
	}
	writeJSON(w, status, resp)
}

// StatusCode maps a volume or enumerator error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, volume.ErrNoFile), errors.Is(err, volume.ErrNoPath):
		return http.StatusNotFound
	case errors.Is(err, volume.ErrExist), errors.Is(err, tree.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, volume.ErrInvalidName), errors.Is(err, tree.ErrPathTooLong):
		return http.StatusBadRequest
	case errors.Is(err, volume.ErrWriteProtected), errors.Is(err, volume.ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, volume.ErrNotMounted), errors.Is(err, volume.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ready answers 503 and returns false when the card can't be used.
func (env *Env) ready(w http.ResponseWriter) bool {
	if env.Lifecycle == nil || !env.Lifecycle.Ready() {
		writeError(w, http.StatusServiceUnavailable, notMounted, nil)
		return false
	}
	return true
}

func (env *Env) failed(w http.ResponseWriter, call string, err error) {
	log.Warn().Err(err).Str("call", call).Msg("card API request failed")
	writeError(w, StatusCode(err), call+" failed", err)
}

func (env *Env) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	state := lifecycle.Unmounted
	if env.Lifecycle != nil {
		state = env.Lifecycle.State()
	}
	writeJSON(w, http.StatusOK, models.StatusResponse{
		State: state,
		Ready: state == lifecycle.Ready,
	})
}

func (env *Env) HandleFree(w http.ResponseWriter, _ *http.Request) {
	if !env.ready(w) {
		return
	}
	free, err := env.Volume.Free()
	if err != nil {
		env.failed(w, "free()", err)
		return
	}
	writeJSON(w, http.StatusOK, models.FreeResponse{
		FreeClusters:      free.FreeClusters,
		SectorsPerCluster: free.SectorsPerCluster,
		SectorSize:        free.SectorSize,
		Bytes:             free.Bytes(),
	})
}

// HandleTree lists the card as text, or with ?format=json or ?format=csv
// as entries. The listing is buffered so a failed walk still gets an error
// status. Text and JSON keep whatever was listed before the failure; CSV
// has no room for the error and answers with the error body alone.
func (env *Env) HandleTree(w http.ResponseWriter, r *http.Request) {
	if !env.ready(w) {
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "json":
		resp, err := env.walkEntries()
		status := http.StatusOK
		if err != nil {
			log.Warn().Err(err).Msg("card tree listing failed")
			status = StatusCode(err)
			resp.Error = "tree() failed"
			resp.Reason = tree.Describe(err)
		}
		writeJSON(w, status, resp)
	case "csv":
		resp, err := env.walkEntries()
		if err != nil {
			env.failed(w, "tree()", err)
			return
		}
		data, err := gocsv.MarshalBytes(&resp.Entries)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to encode listing", nil)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		if _, err := w.Write(data); err != nil {
			log.Debug().Err(err).Msg("failed to write listing")
		}
	default:
		var buf bytes.Buffer
		status := http.StatusOK
		if err := env.Tree.Walk("", tree.NewTextSink(&buf)); err != nil {
			log.Warn().Err(err).Msg("card tree listing failed")
			status = StatusCode(err)
			fmt.Fprintf(&buf, "FS: tree() failed\n\t%s.\n", tree.Describe(err))
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		if _, err := buf.WriteTo(w); err != nil {
			log.Debug().Err(err).Msg("failed to write listing")
		}
	}
}

func (env *Env) walkEntries() (models.TreeResponse, error) {
	resp := models.TreeResponse{Entries: []models.TreeEntry{}}
	err := env.Tree.Walk("", tree.SinkFunc(func(rec tree.Record) error {
		if rec.IsDir {
			resp.Dirs++
		} else {
			resp.Files++
		}
		resp.Entries = append(resp.Entries, models.TreeEntry{
			Path:     rec.Path,
			Modified: rec.Modified.String(),
			IsDir:    rec.IsDir,
		})
		return nil
	}))
	return resp, err //nolint:wrapcheck // classified by StatusCode
}

func (env *Env) HandleGetLabel(w http.ResponseWriter, _ *http.Request) {
	if !env.ready(w) {
		return
	}
	label, err := env.Volume.Label()
	if err != nil {
		env.failed(w, "getlabel()", err)
		return
	}
	writeJSON(w, http.StatusOK, models.LabelResponse{
		Label:  label.Name,
		Serial: fmt.Sprintf("0x%X", label.Serial),
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
		return nil, false
	}
	return body, true
}

func invalid(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
		Error:  "invalid request",
		Reason: err.Error(),
	})
}

func (env *Env) HandleSetLabel(w http.ResponseWriter, r *http.Request) {
	if !env.ready(w) {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var params models.SetLabelParams
	if err := validation.DecodeAndValidate(body, &params); err != nil {
		invalid(w, err)
		return
	}
	if err := env.Volume.SetLabel(params.Label); err != nil {
		env.failed(w, fmt.Sprintf("setlabel(%s)", params.Label), err)
		return
	}
	log.Info().Str("label", params.Label).Msg("volume label set from API")
	env.HandleGetLabel(w, r)
}

func (env *Env) HandleMkdir(w http.ResponseWriter, r *http.Request) {
	if !env.ready(w) {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var params models.MkdirParams
	if err := validation.DecodeAndValidate(body, &params); err != nil {
		invalid(w, err)
		return
	}
	if err := env.Volume.Mkdir(params.Path); err != nil {
		env.failed(w, fmt.Sprintf("mkdir(%s)", params.Path), err)
		return
	}
	log.Info().Str("path", params.Path).Msg("directory created from API")
	w.WriteHeader(http.StatusCreated)
}

// HandleFile streams a file from the card.
func (env *Env) HandleFile(w http.ResponseWriter, r *http.Request) {
	if !env.ready(w) {
		return
	}
	name := chi.URLParam(r, "*")
	f, err := env.Volume.Open(name)
	if err != nil {
		env.failed(w, fmt.Sprintf("open(%s)", name), err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, f); err != nil {
		log.Warn().Err(err).Str("path", name).Msg("file read interrupted")
	}
}

// HandleHistory returns recent state changes, newest first. ?limit=0
// returns everything kept.
func (env *Env) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if env.History == nil {
		writeError(w, http.StatusNotFound, "history disabled", nil)
		return
	}

	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
				Error:  "invalid request",
				Reason: "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	entries, err := env.History.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read history")
		writeError(w, http.StatusInternalServerError, "failed to read history", nil)
		return
	}
	writeJSON(w, http.StatusOK, models.HistoryResponse{Entries: entries})
}
