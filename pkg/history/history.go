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

// Package history keeps a bounded log of mount state changes in a bbolt
// database so they survive restarts.
package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/cardmon/pkg/lifecycle"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

const (
	DBFile      = "history.db"
	openTimeout = time.Second
)

var bucketChanges = []byte("changes")

var ErrClosed = errors.New("history store closed")

// Entry is a stored change with its sequence number.
type Entry struct {
	lifecycle.Change
	Seq uint64 `json:"seq"`
}

type Store struct {
	db  *bolt.DB
	max int
}

// Path returns the database location inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// Open opens or creates the database at path, keeping at most maxEntries
// changes. maxEntries <= 0 keeps every change.
func Open(path string, maxEntries int) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketChanges)
		return err //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}
	return &Store{db: db, max: maxEntries}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close bolt database: %w", err)
	}
	return nil
}

func key(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// Add appends a change and drops the oldest entries past the limit.
func (s *Store) Add(c lifecycle.Change) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChanges)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		data, err := json.Marshal(Entry{Change: c, Seq: seq})
		if err != nil {
			return fmt.Errorf("failed to marshal change: %w", err)
		}
		if err := b.Put(key(seq), data); err != nil {
			return fmt.Errorf("failed to store change: %w", err)
		}

		if s.max <= 0 || seq <= uint64(s.max) {
			return nil
		}
		// keys are sequence numbers, so everything at or below cutoff is
		// older than the newest max entries
		cutoff := seq - uint64(s.max)
		var stale [][]byte
		cur := b.Cursor()
		for k, _ := cur.First(); k != nil && binary.BigEndian.Uint64(k) <= cutoff; k, _ = cur.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("failed to prune change: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("failed to update bolt database: %w", err)
	}
	return nil
}

// Recent returns up to n changes, newest first. n <= 0 returns them all.
func (s *Store) Recent(n int) ([]Entry, error) {
	entries := make([]Entry, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(bucketChanges).Cursor()
		for k, v := cur.Last(); k != nil; k, v = cur.Prev() {
			if n > 0 && len(entries) >= n {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal change %d: %w", binary.BigEndian.Uint64(k), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return nil, ErrClosed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to view bolt database: %w", err)
	}
	return entries, nil
}

// Run records every change until ctx is done or the channel closes.
func (s *Store) Run(ctx context.Context, changes <-chan lifecycle.Change) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if err := s.Add(c); err != nil {
				log.Error().Err(err).Msg("failed to record mount state change")
			}
		}
	}
}
