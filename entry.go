// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lemon4ksan/zipedit/internal"
	"github.com/lemon4ksan/zipedit/internal/sys"
)

// Entry is one member of an archive: its central directory record, its
// name and comment, and the source its body will be taken from on save.
type Entry struct {
	archive *Archive

	name    string // as stored, directories keep their trailing slash
	comment string
	header  internal.CentralDirectory
	isDir   bool
	attrs   sys.Attributes
	level   int

	// bodyOffset is the position of the original body in the archive file,
	// captured at load. Zero means there is no original body.
	bodyOffset int64

	source dataSource
}

// Name returns the entry name as stored, using forward slashes.
// Directory names end with a slash.
func (e *Entry) Name() string { return e.name }

// Comment returns the entry comment.
func (e *Entry) Comment() string { return e.comment }

// SetComment replaces the entry comment.
func (e *Entry) SetComment(comment string) error {
	if len(comment) > math.MaxUint16 {
		return fmt.Errorf("%w (%d bytes)", ErrCommentTooLong, len(comment))
	}
	e.comment = comment
	return nil
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool { return e.isDir }

// Method returns the compression method of the stored body.
func (e *Entry) Method() CompressionMethod { return CompressionMethod(e.header.CompressionMethod) }

// CRC32 returns the checksum of the uncompressed body.
func (e *Entry) CRC32() uint32 { return e.header.CRC32 }

// CompressedSize returns the stored body size in bytes.
func (e *Entry) CompressedSize() int64 { return int64(e.header.CompressedSize) }

// UncompressedSize returns the body size after decompression.
func (e *Entry) UncompressedSize() int64 { return int64(e.header.UncompressedSize) }

// ModTime returns the MS-DOS modification time, at two-second precision.
func (e *Entry) ModTime() time.Time {
	return msDosToTime(e.header.LastModFileDate, e.header.LastModFileTime)
}

// HostSystem returns the attribute-compatibility tag the entry was written with.
func (e *Entry) HostSystem() sys.HostSystem { return sys.HostSystem(e.header.Compatibility()) }

// Attributes returns the platform attribute word.
func (e *Entry) Attributes() uint16 { return e.attrs.DOS }

// Mode returns the entry permissions as an fs.FileMode.
func (e *Entry) Mode() fs.FileMode {
	perm := e.attrs.Perm
	if !e.attrs.HasUnix {
		perm = sys.DefaultFilePerm
		if e.isDir {
			perm = sys.DefaultDirPerm
		}
		if e.attrs.DOS&sys.FileAttributeReadOnly != 0 {
			perm &^= 0222
		}
	}
	mode := fs.FileMode(perm & 0777)
	if perm&04000 != 0 {
		mode |= fs.ModeSetuid
	}
	if perm&02000 != 0 {
		mode |= fs.ModeSetgid
	}
	if perm&01000 != 0 {
		mode |= fs.ModeSticky
	}
	if e.isDir {
		mode |= fs.ModeDir
	}
	return mode
}

// LocalHeaderOffset returns the offset of the entry's local file header.
func (e *Entry) LocalHeaderOffset() int64 { return int64(e.header.LocalHeaderOffset) }

// CompressionLevel returns the deflate level used when the entry is next compressed.
func (e *Entry) CompressionLevel() int { return e.level }

// SetCompressionLevel sets the deflate level used when the entry is next compressed.
// It has no effect on bodies that are spliced unchanged.
func (e *Entry) SetCompressionLevel(level int) { e.level = normalizeLevel(level) }

// Update schedules new content for the entry. The file at path is read,
// checksummed and compressed on the next save. Calling Update again
// replaces the pending path. Directory entries carry no body and are refused.
func (e *Entry) Update(path string) error {
	if e.isDir {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidEntryName, e.name)
	}
	if staged, ok := e.source.(pendingUpdateStaged); ok {
		staged.result.discard()
	}
	e.source = pendingUpdate{path: path}
	return nil
}

// HasOriginalData reports whether the entry has a body inside the archive file.
func (e *Entry) HasOriginalData() bool { return e.bodyOffset != 0 }

// WantsOriginalData reports whether the entry has never been updated.
func (e *Entry) WantsOriginalData() bool {
	_, ok := e.source.(originalOnly)
	return ok
}

// PendingPath returns the content path scheduled by Update, if any.
func (e *Entry) PendingPath() (string, bool) {
	switch src := e.source.(type) {
	case pendingUpdate:
		return src.path, true
	case pendingUpdateStaged:
		return src.path, true
	}
	return "", false
}

// Open returns a reader of the decompressed body. The CRC-32 and size are
// verified when the reader is closed. The entry's archive file is opened
// independently, so several entries may be read concurrently.
func (e *Entry) Open() (io.ReadCloser, error) {
	var (
		f      *os.File
		body   io.Reader
		method CompressionMethod
		crc    uint32
		size   int64
		err    error
	)

	switch src := e.source.(type) {
	case pendingUpdateStaged:
		if f, err = os.Open(src.result.bodyPath); err != nil {
			return nil, err
		}
		body = io.LimitReader(f, src.result.compressedSize)
		method, crc, size = src.result.method, src.result.crc32, src.result.uncompressedSize
	default:
		if !e.HasOriginalData() {
			return nil, fmt.Errorf("%w: %s", ErrEntryLacksOriginalData, e.name)
		}
		if e.archive == nil || e.archive.path == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoBackingFile, e.name)
		}
		if f, err = os.Open(e.archive.path); err != nil {
			return nil, err
		}
		body = io.NewSectionReader(f, e.bodyOffset, e.CompressedSize())
		method, crc, size = e.Method(), e.header.CRC32, e.UncompressedSize()
	}

	rc, err := decompress(method, body)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &checksumReader{
		rc:   &multiCloser{Reader: rc, closers: []io.Closer{rc, f}},
		hash: crc32.NewIEEE(),
		want: crc,
		size: uint64(size),
	}, nil
}

// Extract writes the entry under destDir, recreating its directory structure.
// Entries whose path would escape destDir are refused with ErrInsecurePath.
func (e *Entry) Extract(destDir string) error {
	_, err := e.extract(context.Background(), destDir, nil)
	return err
}

// targetPath resolves the extraction path of e under destDir (Zip Slip protection).
// An empty destDir means the current directory.
func (e *Entry) targetPath(destDir string) (string, error) {
	rel := filepath.FromSlash(strings.TrimSuffix(strings.ReplaceAll(e.name, "\\", "/"), "/"))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrInsecurePath, e.name)
	}
	if destDir == "" {
		destDir = "."
	}
	return filepath.Join(destDir, rel), nil
}

// extract writes e under destDir and returns the target path. buf may be nil.
func (e *Entry) extract(ctx context.Context, destDir string, buf []byte) (string, error) {
	fpath, err := e.targetPath(destDir)
	if err != nil {
		return "", err
	}

	if e.isDir {
		if err := os.MkdirAll(fpath, 0755); err != nil {
			return fpath, err
		}
		// Best effort: the directory is still usable without its permissions.
		os.Chmod(fpath, e.Mode().Perm()|0700)
		return fpath, nil
	}

	if !e.HasOriginalData() && !e.staged() {
		return fpath, fmt.Errorf("%w: %s", ErrEntryLacksOriginalData, e.name)
	}

	if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
		return fpath, fmt.Errorf("create dir for %s: %w", e.name, err)
	}

	src, err := e.Open()
	if err != nil {
		return fpath, err
	}

	dst, err := os.Create(fpath)
	if err != nil {
		src.Close()
		return fpath, err
	}

	if buf == nil {
		buf = make([]byte, 64*1024)
	}
	_, copyErr := io.CopyBuffer(dst, &contextReader{ctx: ctx, r: src}, buf)
	closeErr := errors.Join(src.Close(), dst.Close())
	if copyErr != nil {
		os.Remove(fpath)
		return fpath, copyErr
	}
	if closeErr != nil {
		os.Remove(fpath)
		return fpath, closeErr
	}

	// Best-effort attempts to restore metadata. Errors are ignored as they
	// may occur on file systems that don't support these operations.
	os.Chmod(fpath, e.Mode().Perm())
	os.Chtimes(fpath, time.Now(), e.ModTime())

	return fpath, nil
}

func (e *Entry) staged() bool {
	_, ok := e.source.(pendingUpdateStaged)
	return ok
}
