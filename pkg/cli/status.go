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

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/api/models"
	"github.com/ZaparooProject/cardmon/pkg/config"
)

const statusTimeout = 2 * time.Second

var ErrAPIDisabled = errors.New("API is disabled in the config")

// localURL is the base URL of the API on this host.
func localURL(cfg *config.Instance) (string, error) {
	port := cfg.APIPort()
	if port == 0 {
		return "", ErrAPIDisabled
	}
	return "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), nil
}

// FetchStatus asks the API at baseURL for the mount state.
func FetchStatus(ctx context.Context, client *http.Client, baseURL string) (models.StatusResponse, error) {
	var st models.StatusResponse

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/status", http.NoBody)
	if err != nil {
		return st, fmt.Errorf("failed to build status request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return st, fmt.Errorf("failed to reach service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("service answered %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

// ServiceRunning reports whether a service already answers on the
// configured API port.
func ServiceRunning(ctx context.Context, cfg *config.Instance) bool {
	base, err := localURL(cfg)
	if err != nil {
		return false
	}
	_, err = FetchStatus(ctx, http.DefaultClient, base)
	return err == nil
}

// PrintStatus writes the mount state of the local service to out.
func PrintStatus(ctx context.Context, cfg *config.Instance, out io.Writer) error {
	base, err := localURL(cfg)
	if err != nil {
		return err
	}
	st, err := FetchStatus(ctx, http.DefaultClient, base)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "state: %s\nready: %t\n", st.State, st.Ready)
	return nil
}

// ListPorts prints every serial port list returns, one per line.
func ListPorts(out io.Writer, list func() ([]string, error)) error {
	ports, err := list()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		_, _ = fmt.Fprintln(out, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		_, _ = fmt.Fprintln(out, p)
	}
	return nil
}
