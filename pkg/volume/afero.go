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
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ZaparooProject/cardmon/pkg/helpers/syncutil"
	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// MetadataFile holds the volume label and serial number. The leading dot
// keeps it out of directory listings.
const MetadataFile = ".volume.toml"

// Options configures an AferoVolume.
type Options struct {
	// Capacity is the size of the media in bytes. It is used to compute free
	// space when the backing filesystem can't report it.
	Capacity          uint64
	SectorsPerCluster uint32
	// ReadOnly mounts the volume write protected.
	ReadOnly bool
}

type metadata struct {
	Label  string `toml:"label"`
	Serial uint32 `toml:"serial"`
}

// AferoVolume implements Volume on top of an afero filesystem that stands in
// for the card's contents.
type AferoVolume struct {
	src    afero.Fs
	fs     afero.Fs
	statfs func() (FreeSpace, error)
	meta   metadata
	opts   Options
	mu     syncutil.RWMutex
}

// NewAferoVolume returns an unmounted volume backed by src.
func NewAferoVolume(src afero.Fs, opts Options) *AferoVolume {
	if opts.SectorsPerCluster == 0 {
		opts.SectorsPerCluster = DefaultSectorsPerCluster
	}
	return &AferoVolume{
		src:  src,
		opts: opts,
	}
}

// NewMemVolume returns a volume on an empty in-memory card of the given
// capacity.
func NewMemVolume(capacity uint64) *AferoVolume {
	return NewAferoVolume(afero.NewMemMapFs(), Options{Capacity: capacity})
}

// NewOSVolume returns a volume over a directory on the host where the OS
// mounts the card. Free space is read from the host filesystem.
func NewOSVolume(mountPoint string, opts Options) *AferoVolume {
	v := NewAferoVolume(afero.NewBasePathFs(afero.NewOsFs(), mountPoint), opts)
	spc := v.opts.SectorsPerCluster
	v.statfs = func() (FreeSpace, error) {
		return statFree(mountPoint, spc)
	}
	return v
}

// Media returns the filesystem holding the card's contents, mounted or not.
func (v *AferoVolume) Media() afero.Fs {
	return v.src
}

func cleanPath(p string) string {
	return path.Clean("/" + strings.TrimSpace(p))
}

func (v *AferoVolume) Mount(root string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	root = cleanPath(root)
	info, err := v.src.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoFilesystem, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNoFilesystem, root)
	}

	fs := v.src
	if root != "/" {
		fs = afero.NewBasePathFs(fs, root)
	}
	if v.opts.ReadOnly {
		fs = afero.NewReadOnlyFs(fs)
	}

	meta, err := readMetadata(fs)
	if err != nil {
		log.Warn().Err(err).Str("root", root).Msg("invalid volume metadata, regenerating")
	}
	if meta.Serial == 0 {
		meta.Serial = uuid.New().ID()
		if !v.opts.ReadOnly {
			if err := writeMetadata(fs, meta); err != nil {
				return err
			}
		}
	}

	v.fs = fs
	v.meta = meta
	log.Debug().Str("root", root).Str("label", meta.Label).Msg("volume mounted")
	return nil
}

func (v *AferoVolume) Unmount() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.fs == nil {
		return ErrNotMounted
	}
	v.fs = nil
	v.meta = metadata{}
	return nil
}

func (v *AferoVolume) Mounted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fs != nil
}

func (v *AferoVolume) mounted() (afero.Fs, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.fs == nil {
		return nil, ErrNotMounted
	}
	return v.fs, nil
}

func (v *AferoVolume) OpenDir(p string) (Dir, error) {
	fs, err := v.mounted()
	if err != nil {
		return nil, err
	}

	name := cleanPath(p)
	f, err := fs.Open(name)
	if err != nil {
		return nil, mapError(err, ErrNoPath)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, mapError(err, ErrNoPath)
	}
	if !info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNoPath, name)
	}
	return &aferoDir{f: f}, nil
}

type aferoDir struct {
	f afero.File
}

func (d *aferoDir) Next() (Entry, error) {
	infos, err := d.f.Readdir(1)
	if errors.Is(err, io.EOF) || (err == nil && len(infos) == 0) {
		return Entry{}, io.EOF
	}
	if err != nil {
		return Entry{}, mapError(err, ErrNoPath)
	}
	return entryFromInfo(infos[0]), nil
}

func (d *aferoDir) Close() error {
	if err := d.f.Close(); err != nil {
		return mapError(err, ErrNoPath)
	}
	return nil
}

func entryFromInfo(info os.FileInfo) Entry {
	mt := info.ModTime()
	return Entry{
		Name:  info.Name(),
		Size:  info.Size(),
		Date:  PackDate(mt),
		Time:  PackTime(mt),
		IsDir: info.IsDir(),
	}
}

func (v *AferoVolume) Free() (FreeSpace, error) {
	fs, err := v.mounted()
	if err != nil {
		return FreeSpace{}, err
	}
	if v.statfs != nil {
		return v.statfs()
	}

	free := FreeSpace{
		SectorsPerCluster: v.opts.SectorsPerCluster,
		SectorSize:        DefaultSectorSize,
	}
	clusterSize := free.ClusterSize()
	total := v.opts.Capacity / clusterSize

	var used uint64
	err = afero.Walk(fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == "/" {
			return nil
		}
		if info.IsDir() {
			used++
			return nil
		}
		//nolint:gosec // sizes from the backing fs are never negative
		used += (uint64(info.Size()) + clusterSize - 1) / clusterSize
		return nil
	})
	if err != nil {
		return FreeSpace{}, mapError(err, ErrNoPath)
	}

	if used < total {
		free.FreeClusters = total - used
	}
	return free, nil
}

func (v *AferoVolume) Mkdir(p string) error {
	fs, err := v.mounted()
	if err != nil {
		return err
	}
	if v.opts.ReadOnly {
		return ErrWriteProtected
	}

	name := cleanPath(p)
	if name == "/" || strings.ContainsAny(path.Base(name), invalidNameChars) {
		return fmt.Errorf("%w: %q", ErrInvalidName, p)
	}
	if _, err := fs.Stat(name); err == nil {
		return fmt.Errorf("%w: %s", ErrExist, name)
	}
	parent, err := fs.Stat(path.Dir(name))
	if err != nil {
		return mapError(err, ErrNoPath)
	}
	if !parent.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoPath, path.Dir(name))
	}
	if err := fs.Mkdir(name, 0o755); err != nil {
		return mapError(err, ErrNoPath)
	}
	return nil
}

func (v *AferoVolume) Label() (Label, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.fs == nil {
		return Label{}, ErrNotMounted
	}
	return Label{Name: v.meta.Label, Serial: v.meta.Serial}, nil
}

func (v *AferoVolume) SetLabel(label string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.fs == nil {
		return ErrNotMounted
	}
	if v.opts.ReadOnly {
		return ErrWriteProtected
	}
	name, err := NormalizeLabel(label)
	if err != nil {
		return err
	}

	meta := v.meta
	meta.Label = name
	if err := writeMetadata(v.fs, meta); err != nil {
		return err
	}
	v.meta = meta
	return nil
}

func (v *AferoVolume) Open(p string) (io.ReadCloser, error) {
	fs, err := v.mounted()
	if err != nil {
		return nil, err
	}

	name := cleanPath(p)
	f, err := fs.Open(name)
	if err != nil {
		return nil, mapError(err, ErrNoFile)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, mapError(err, ErrNoFile)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrNoFile, name)
	}
	return f, nil
}

func readMetadata(fs afero.Fs) (metadata, error) {
	var meta metadata
	data, err := afero.ReadFile(fs, "/"+MetadataFile)
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	} else if err != nil {
		return meta, fmt.Errorf("failed to read volume metadata: %w", err)
	}
	if err := toml.Unmarshal(data, &meta); err != nil {
		return metadata{}, fmt.Errorf("failed to parse volume metadata: %w", err)
	}
	return meta, nil
}

func writeMetadata(fs afero.Fs, meta metadata) error {
	data, err := toml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode volume metadata: %w", err)
	}
	if err := afero.WriteFile(fs, "/"+MetadataFile, data, 0o644); err != nil {
		return mapError(err, ErrNoPath)
	}
	return nil
}
