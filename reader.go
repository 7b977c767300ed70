// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"fmt"
	"io"
	"strings"

	"github.com/lemon4ksan/zipedit/internal"
	"github.com/lemon4ksan/zipedit/internal/sys"
)

// eocdSearchWindow covers the largest possible trailing comment plus the record itself.
const eocdSearchWindow = internal.MaxCommentLen + internal.EndOfCentralDirLen

// zipReader handles low-level reading of ZIP archive structure.
type zipReader struct {
	src      io.ReaderAt // Source stream for reading archive data
	fileSize int64       // Total size of the archive
	level    int         // Compression level assigned to loaded entries
}

// loadedArchive is the structure recovered from an archive file.
type loadedArchive struct {
	end     internal.EndOfCentralDirectory
	comment string
	entries []*Entry
}

func newZipReader(src io.ReaderAt, size int64, level int) *zipReader {
	return &zipReader{src: src, fileSize: size, level: level}
}

// Load locates the end of central directory, decodes every central
// directory record and validates the entries.
func (zr *zipReader) Load() (*loadedArchive, error) {
	end, comment, err := zr.findEndOfCentralDir()
	if err != nil {
		return nil, err
	}

	if zr.fileSize < int64(end.CentralDirOffset)+int64(end.CentralDirSize) {
		return nil, fmt.Errorf("%w: central directory (offset %d, size %d) exceeds file size %d",
			ErrInvalidZip, end.CentralDirOffset, end.CentralDirSize, zr.fileSize)
	}

	entries, err := zr.readCentralDir(int64(end.CentralDirOffset), int(end.TotalNumberOfEntries))
	if err != nil {
		return nil, err
	}

	return &loadedArchive{end: end, comment: comment, entries: entries}, nil
}

// findEndOfCentralDir returns the end of central directory record and the archive comment.
//
// The last 22 bytes are tried first. Otherwise the trailing window is
// scanned forward one byte at a time and the first signature whose
// record and declared comment fit inside the file wins.
func (zr *zipReader) findEndOfCentralDir() (internal.EndOfCentralDirectory, string, error) {
	var end internal.EndOfCentralDirectory

	if zr.fileSize < internal.EndOfCentralDirLen {
		return end, "", fmt.Errorf("%w: file too small (%d bytes)", ErrInvalidZip, zr.fileSize)
	}

	tail := make([]byte, internal.EndOfCentralDirLen)
	if _, err := zr.src.ReadAt(tail, zr.fileSize-internal.EndOfCentralDirLen); err != nil && err != io.EOF {
		return end, "", fmt.Errorf("read end of central directory: %w", err)
	}
	if internal.HasSignature(tail, internal.EndOfCentralDirSignature) {
		end, err := internal.DecodeEndOfCentralDir(tail)
		if err != nil {
			return end, "", err
		}
		if end.CommentLength == 0 {
			return end, "", nil
		}
	}

	start := max(0, zr.fileSize-eocdSearchWindow)
	window := make([]byte, zr.fileSize-start)
	if _, err := zr.src.ReadAt(window, start); err != nil && err != io.EOF {
		return end, "", fmt.Errorf("read at %d: %w", start, err)
	}

	pos, ok := scanEndOfCentralDir(window)
	if !ok {
		return end, "", fmt.Errorf("%w: no end of central directory signature found", ErrInvalidZip)
	}

	end, err := internal.DecodeEndOfCentralDir(window[pos:])
	if err != nil {
		return end, "", err
	}
	commentStart := pos + internal.EndOfCentralDirLen
	comment := string(window[commentStart : commentStart+int(end.CommentLength)])

	return end, comment, nil
}

// scanEndOfCentralDir returns the offset in window of the first byte
// position holding the end of central directory signature whose record
// and declared comment fit before the end of window.
func scanEndOfCentralDir(window []byte) (int, bool) {
	for p := 0; p+internal.EndOfCentralDirLen <= len(window); p++ {
		if !internal.HasSignature(window[p:], internal.EndOfCentralDirSignature) {
			continue
		}
		end, err := internal.DecodeEndOfCentralDir(window[p:])
		if err != nil {
			continue
		}
		if p+internal.EndOfCentralDirLen+int(end.CommentLength) > len(window) {
			continue
		}
		return p, true
	}
	return 0, false
}

// readCentralDir reads the central directory entries starting at the specified offset.
func (zr *zipReader) readCentralDir(offset int64, count int) ([]*Entry, error) {
	entries := make([]*Entry, 0, count)
	cdReader := io.NewSectionReader(zr.src, offset, zr.fileSize-offset)

	for i := range count {
		record, err := internal.ReadCentralDirectory(cdReader)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidZip, i, err)
		}
		if record.Signature != internal.CentralDirectorySignature {
			return nil, fmt.Errorf("%w: expected central directory signature at entry %d", ErrMalformedZip, i)
		}

		name, err := readString(cdReader, int(record.FilenameLength))
		if err != nil {
			return nil, fmt.Errorf("%w: read name of entry %d: %v", ErrInvalidZip, i, err)
		}
		if _, err := cdReader.Seek(int64(record.ExtraFieldLength), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("skip extra field of %s: %w", name, err)
		}
		comment, err := readString(cdReader, int(record.FileCommentLength))
		if err != nil {
			return nil, fmt.Errorf("%w: read comment of %s: %v", ErrInvalidZip, name, err)
		}

		entry, err := zr.newEntryFromCentralDir(record, name, comment)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// newEntryFromCentralDir validates a record and builds its Entry.
func (zr *zipReader) newEntryFromCentralDir(record internal.CentralDirectory, name, comment string) (*Entry, error) {
	if record.GeneralPurposeBitFlag&internal.FlagEncrypted != 0 {
		return nil, fmt.Errorf("%w: %s", ErrEncryptedEntries, name)
	}

	method := CompressionMethod(record.CompressionMethod)
	if method != Stored && method != Deflated {
		return nil, fmt.Errorf("%w: %s uses method %d", ErrUnsupportedCompression, name, method)
	}

	bodyOffset, err := zr.bodyOffset(record, name)
	if err != nil {
		return nil, err
	}

	attrs, isDir := sys.ParseExternal(sys.HostSystem(record.Compatibility()), record.ExternalFileAttributes, strings.HasSuffix(name, "/"))

	return &Entry{
		name:       name,
		comment:    comment,
		header:     record,
		isDir:      isDir,
		attrs:      attrs,
		level:      zr.level,
		bodyOffset: bodyOffset,
		source:     originalOnly{},
	}, nil
}

// bodyOffset reads the entry's own local file header to find where its body starts.
func (zr *zipReader) bodyOffset(record internal.CentralDirectory, name string) (int64, error) {
	offset := int64(record.LocalHeaderOffset)
	if offset+internal.LocalFileHeaderLen > zr.fileSize {
		return 0, fmt.Errorf("%w: local header of %s at %d is out of bounds", ErrInvalidZip, name, offset)
	}

	local, err := internal.ReadLocalFileHeader(io.NewSectionReader(zr.src, offset, internal.LocalFileHeaderLen))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidZip, name, err)
	}
	if local.Signature != internal.LocalFileHeaderSignature {
		return 0, fmt.Errorf("%w: expected local file header signature for %s", ErrMalformedZip, name)
	}

	body := offset + internal.LocalFileHeaderLen + int64(local.FilenameLength) + int64(local.ExtraFieldLength)
	if body+int64(record.CompressedSize) > zr.fileSize {
		return 0, fmt.Errorf("%w: body of %s exceeds file size", ErrInvalidZip, name)
	}
	return body, nil
}

func readString(r io.Reader, n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
