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

package blockdev

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// NodeWatcher is a NodeDevice whose presence is tracked from filesystem
// events on the node's directory, so IsInserted is a single atomic load.
type NodeWatcher struct {
	*NodeDevice
	watcher  *fsnotify.Watcher
	done     chan struct{}
	present  atomic.Bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// WatchNode starts watching the directory that holds node. Close stops it.
func WatchNode(node string) (*NodeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(node)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &NodeWatcher{
		NodeDevice: NewNodeDevice(nil, node),
		watcher:    watcher,
		done:       make(chan struct{}),
	}
	// events only report changes, so seed the current state after Add
	w.refresh()

	w.wg.Add(1)
	go w.watch()

	log.Debug().Str("node", node).Msg("watching device node")
	return w, nil
}

func (w *NodeWatcher) IsInserted() bool {
	return w.present.Load()
}

func (w *NodeWatcher) refresh() {
	_, err := os.Stat(w.node)
	w.present.Store(err == nil)
}

func (w *NodeWatcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.node) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.refresh()
				log.Debug().
					Str("node", w.node).
					Str("op", event.Op.String()).
					Bool("present", w.present.Load()).
					Msg("device node changed")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (w *NodeWatcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	if err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}
	return nil
}
