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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// SerialAuto selects the first USB serial adapter found.
const SerialAuto = "auto"

var ErrNoSerialDevice = errors.New("no serial device found")

func listTTYs(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	f, err := os.Open(dir) //nolint:gosec // fixed device directory
	if err != nil {
		return nil, fmt.Errorf("failed to open %s directory: %w", dir, err)
	}
	defer func(f *os.File) {
		closeErr := f.Close()
		if closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close serial device folder")
		}
	}(f)

	files, err := f.Readdir(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s directory: %w", dir, err)
	}

	devices := make([]string, 0, len(files))
	for _, v := range files {
		if v.IsDir() {
			continue
		}
		if !strings.HasPrefix(v.Name(), "ttyUSB") && !strings.HasPrefix(v.Name(), "ttyACM") {
			continue
		}
		devices = append(devices, filepath.Join(dir, v.Name()))
	}
	sort.Strings(devices)

	return devices, nil
}

// GetSerialDeviceList returns candidate USB serial adapters.
func GetSerialDeviceList() ([]string, error) {
	switch runtime.GOOS {
	case "linux":
		return listTTYs("/dev")
	case "darwin":
		var devices []string
		ports, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("failed to get serial ports list on darwin: %w", err)
		}
		for _, v := range ports {
			if strings.HasPrefix(v, "/dev/tty.usbserial") {
				devices = append(devices, v)
			}
		}
		return devices, nil
	default:
		ports, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("failed to get serial ports list: %w", err)
		}
		return ports, nil
	}
}

// ResolveSerialPort turns the configured port name into a device path.
func ResolveSerialPort(name string, list func() ([]string, error)) (string, error) {
	if name != SerialAuto {
		return name, nil
	}
	devices, err := list()
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", ErrNoSerialDevice
	}
	return devices[0], nil
}

// OpenSerial opens a serial port in 8N1 mode at the given baud rate.
func OpenSerial(name string, baud int) (serial.Port, error) {
	path, err := ResolveSerialPort(name, GetSerialDeviceList)
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	log.Info().Str("port", path).Int("baud", baud).Msg("opened serial console")
	return port, nil
}
