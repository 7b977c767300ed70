// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import "errors"

var (
	// ErrInvalidZip is returned when the input is not a recognizable archive:
	// the end of central directory cannot be located or the declared
	// directory does not fit inside the file.
	ErrInvalidZip = errors.New("zip: not a valid zip file")

	// ErrMalformedZip is returned when a directory or local header record carries the wrong signature.
	ErrMalformedZip = errors.New("zip: malformed record")

	// ErrUnsupportedCompression is returned when an entry uses a method other than store or deflate.
	ErrUnsupportedCompression = errors.New("zip: unsupported compression method")

	// ErrEncryptedEntries is returned when an entry has the encrypted flag set.
	ErrEncryptedEntries = errors.New("zip: encrypted entries are not supported")

	// ErrEntryLacksOriginalData is returned when extracting an entry that has neither original nor staged data.
	ErrEntryLacksOriginalData = errors.New("zip: entry has no data to extract")

	// ErrEntryNotFound is returned when the requested entry is not in the archive.
	ErrEntryNotFound = errors.New("zip: entry not found")

	// ErrInvalidEntryName is returned for empty names or names that escape the archive root.
	ErrInvalidEntryName = errors.New("zip: invalid entry name")

	// ErrInsecurePath is returned when an extraction target escapes the destination directory (Zip Slip).
	ErrInsecurePath = errors.New("zip: insecure file path")

	// ErrFilenameTooLong is returned when a filename exceeds 65535 bytes.
	ErrFilenameTooLong = errors.New("zip: filename too long")

	// ErrCommentTooLong is returned when a comment exceeds 65535 bytes.
	ErrCommentTooLong = errors.New("zip: comment too long")

	// ErrArchiveTooLarge is returned when a size, offset or entry count needs zip64.
	ErrArchiveTooLarge = errors.New("zip: archive exceeds 32-bit limits")

	// ErrChecksum is returned when reading a file checksum does not match.
	ErrChecksum = errors.New("zip: checksum error")

	// ErrSizeMismatch is returned when the uncompressed size does not match the header.
	ErrSizeMismatch = errors.New("zip: uncompressed size mismatch")

	// ErrNoBackingFile is returned when an operation needs the archive file but the archive was never opened or saved.
	ErrNoBackingFile = errors.New("zip: archive has no backing file")

	// ErrClosed is returned when using an archive after Close.
	ErrClosed = errors.New("zip: archive is closed")
)
