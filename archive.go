// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zipedit reads, modifies and rewrites ZIP archives in place.
//
// An Archive opened from disk keeps a handle to its file for its whole
// lifetime. Entries that were never updated are spliced byte-for-byte from
// that handle when the archive is saved; entries given new content are
// checksummed and deflated in parallel into scratch files first. Save
// writes the result to a temporary file next to the destination and
// renames it into place, so a failed save never touches the destination.
//
// Only stored and deflated entries are supported. Encrypted entries and
// archives needing zip64 are rejected.
//
// # Basic Usage
//
// Updating one entry of an existing archive:
//
//	archive, err := zipedit.Open("site.zip")
//	if err != nil {
//		return err
//	}
//	defer archive.Close()
//
//	if _, err := archive.UpdateEntry("build/index.html", "index.html"); err != nil {
//		return err
//	}
//	return archive.Save("site.zip")
//
// Building an archive from a directory tree with progress reporting:
//
//	archive := zipedit.Create(zipedit.WithProgress(func(p zipedit.Progress) {
//		fmt.Printf("\r%3.0f%%", p.Fraction()*100)
//	}))
//	if err := archive.UpdateEntries("assets"); err != nil {
//		return err
//	}
//	return archive.Save("assets.zip")
//
// An Archive is not safe for concurrent use.
package zipedit

import (
	_ "crypto/sha256" // registers digest.Canonical
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/lemon4ksan/zipedit/internal"
	"github.com/lemon4ksan/zipedit/internal/sys"
)

// Archive is an ordered set of entries, optionally backed by the archive
// file it was opened from. Entry order is the on-disk layout order and is
// preserved across saves.
type Archive struct {
	config      Config
	path        string   // file the archive was opened from or last saved to
	file        *os.File // retained read handle, nil for new archives
	size        int64
	end         internal.EndOfCentralDirectory
	comment     string
	entries     []*Entry
	compressors compressorSet
	closed      bool
}

// Open reads the archive at path. The file stays open until Close so the
// bodies of unchanged entries can be copied on save.
func Open(path string, opts ...Option) (*Archive, error) {
	a := Create(opts...)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	loaded, err := newZipReader(f, info.Size(), a.config.CompressionLevel).Load()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	a.path = path
	a.file = f
	a.size = info.Size()
	a.end = loaded.end
	a.comment = loaded.comment
	a.entries = loaded.entries
	for _, e := range a.entries {
		e.archive = a
	}

	a.log().Info("opened archive", "path", path, "entries", len(a.entries), "size", a.size)
	return a, nil
}

// Create returns an empty archive with no backing file.
func Create(opts ...Option) *Archive {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Archive{
		config: cfg,
		end:    internal.EndOfCentralDirectory{Signature: internal.EndOfCentralDirSignature},
	}
}

// Close releases the retained archive handle and any pending scratch data.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	for _, e := range a.entries {
		if staged, ok := e.source.(pendingUpdateStaged); ok {
			staged.result.discard()
			e.source = pendingUpdate{path: staged.path}
		}
	}

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.config.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.config.Logger
}

// Path returns the file the archive was opened from or last saved to.
func (a *Archive) Path() string { return a.path }

// Size returns the size in bytes of the backing file at open or last save.
func (a *Archive) Size() int64 { return a.size }

// Len returns the number of entries.
func (a *Archive) Len() int { return len(a.entries) }

// Entries returns a copy of the entry list in archive order.
func (a *Archive) Entries() []*Entry {
	return slices.Clone(a.entries)
}

// Comment returns the archive comment.
func (a *Archive) Comment() string { return a.comment }

// SetComment replaces the archive comment.
func (a *Archive) SetComment(comment string) error {
	if len(comment) > internal.MaxCommentLen {
		return fmt.Errorf("%w (%d bytes)", ErrCommentTooLong, len(comment))
	}
	a.comment = comment
	return nil
}

// Digest returns the content digest of the backing archive file.
func (a *Archive) Digest() (digest.Digest, error) {
	if a.path == "" {
		return "", ErrNoBackingFile
	}
	f, err := os.Open(a.path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.FromReader(f)
}

// FindEntry returns the entry whose name matches name ignoring case.
// Both forward and back slashes are accepted as separators.
func (a *Archive) FindEntry(name string) (*Entry, error) {
	if i := a.indexOf(name); i >= 0 {
		return a.entries[i], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

func (a *Archive) indexOf(name string) int {
	key := lookupKey(name)
	if key == "" {
		return -1
	}
	for i, e := range a.entries {
		if lookupKey(e.name) == key {
			return i
		}
	}
	return -1
}

// UpdateEntry schedules the file at diskPath as the content of zipPath,
// creating the entry at the end of the archive if it does not exist.
func (a *Archive) UpdateEntry(diskPath, zipPath string) (*Entry, error) {
	if a.closed {
		return nil, ErrClosed
	}

	info, err := os.Stat(diskPath)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalidEntryName, diskPath)
	}

	if e, err := a.FindEntry(zipPath); err == nil {
		if err := e.Update(diskPath); err != nil {
			return nil, err
		}
		return e, nil
	}

	name, err := validateName(zipPath)
	if err != nil {
		return nil, err
	}

	e := a.newEntry(name, false)
	e.source = pendingUpdate{path: diskPath}
	a.entries = append(a.entries, e)
	return e, nil
}

// UpdateEntries schedules every regular file under dir, using its path
// relative to dir as the entry name. Files that cannot be added are
// reported together after the walk.
func (a *Archive) UpdateEntries(dir string) error {
	var errs []error

	err := filepath.WalkDir(dir, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, walkPath)
		if err != nil {
			return err
		}

		if _, err := a.UpdateEntry(walkPath, filepath.ToSlash(rel)); err != nil {
			errs = append(errs, fmt.Errorf("failed to add %s: %w", walkPath, err))
			return nil
		}
		a.log().Debug("scheduled update", "path", walkPath, "entry", filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Mkdir adds an explicit directory entry.
// Directories are implied by entry names; this is used for empty directories.
func (a *Archive) Mkdir(name string) (*Entry, error) {
	clean, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if e, err := a.FindEntry(clean); err == nil {
		if !e.isDir {
			return nil, fmt.Errorf("%w: %s is a file", ErrInvalidEntryName, e.name)
		}
		return e, nil
	}

	e := a.newEntry(clean+"/", true)
	a.entries = append(a.entries, e)
	return e, nil
}

// RemoveEntry deletes the named entry from the archive.
func (a *Archive) RemoveEntry(name string) error {
	i := a.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	if staged, ok := a.entries[i].source.(pendingUpdateStaged); ok {
		staged.result.discard()
	}
	a.entries = slices.Delete(a.entries, i, i+1)
	return nil
}

// newEntry builds an entry with no original data and default attributes.
func (a *Archive) newEntry(name string, isDir bool) *Entry {
	attrs := sys.DefaultAttributes(isDir)
	if sys.NativeHostSystem() == sys.HostSystemUNIX {
		attrs.HasUnix = true
	}

	date, tm := timeToMsDos(time.Now())
	return &Entry{
		archive: a,
		name:    name,
		header: internal.CentralDirectory{
			Signature:       internal.CentralDirectorySignature,
			LastModFileDate: date,
			LastModFileTime: tm,
		},
		isDir:  isDir,
		attrs:  attrs,
		level:  a.config.CompressionLevel,
		source: originalOnly{},
	}
}

// validateName normalizes an entry name and checks its length.
func validateName(name string) (string, error) {
	clean := normalizeName(name)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryName, name)
	}
	if len(clean)+1 > math.MaxUint16 {
		return "", fmt.Errorf("%w (%d bytes)", ErrFilenameTooLong, len(clean))
	}
	return clean, nil
}
