// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"context"
	"fmt"
	"hash"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

// byteCountWriter counts bytes written to a writer.
type byteCountWriter struct {
	dest         io.Writer
	bytesWritten int64
}

func (w *byteCountWriter) Write(p []byte) (int, error) {
	n, err := w.dest.Write(p)
	w.bytesWritten += int64(n)
	return n, err
}

// contextReader wraps an io.Reader to make it respect context cancellation.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (n int, err error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// checksumReader verifies CRC32 and size of a decompressed stream on Close.
type checksumReader struct {
	rc   io.ReadCloser
	hash hash.Hash32
	want uint32
	read uint64
	size uint64
}

func (cr *checksumReader) Read(p []byte) (int, error) {
	n, err := cr.rc.Read(p)
	if n > 0 {
		cr.read += uint64(n)
		if cr.read > cr.size {
			return n, ErrSizeMismatch
		}
		cr.hash.Write(p[:n])
	}
	return n, err
}

func (cr *checksumReader) Close() error {
	defer cr.rc.Close()

	if cr.read != cr.size {
		return fmt.Errorf("%w: read %d, want %d", ErrSizeMismatch, cr.read, cr.size)
	}
	if got := cr.hash.Sum32(); got != cr.want {
		return fmt.Errorf("%w: got %x, want %x", ErrChecksum, got, cr.want)
	}
	return nil
}

// multiCloser closes the stream before the file backing it.
type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Time conversion functions
func timeToMsDos(t time.Time) (dosDate uint16, dosTime uint16) {
	year := min(max(t.Year()-1980, 0), 127)
	month := uint16(t.Month())
	day := uint16(t.Day())
	hour := uint16(t.Hour())
	minute := uint16(t.Minute())
	second := uint16(t.Second())

	if t.Year() < 1980 {
		month, day, hour, minute, second = 1, 1, 0, 0, 0
	}

	dosDate = uint16(year)<<9 | month<<5 | day
	dosTime = hour<<11 | minute<<5 | second/2
	return dosDate, dosTime
}

func msDosToTime(dosDate uint16, dosTime uint16) time.Time {
	day := dosDate & 0x1F
	month := (dosDate >> 5) & 0x0F
	year := int((dosDate>>9)&0x7F) + 1980
	second := (dosTime & 0x1F) * 2
	minute := (dosTime >> 5) & 0x3F
	hour := (dosTime >> 11) & 0x1F

	if month < 1 || month > 12 {
		month = 1
	}
	if day < 1 || day > 31 {
		day = 1
	}

	return time.Date(year, time.Month(month), int(day), int(hour), int(minute), int(second), 0, time.Local)
}

// isASCII reports whether s contains only 7-bit bytes.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// normalizeName converts a path to the canonical archive form: forward
// slashes, no leading slash, no "." or ".." segments.
func normalizeName(name string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
}

// lookupKey is the case-folded form used by FindEntry.
func lookupKey(name string) string {
	return strings.ToLower(strings.TrimSuffix(normalizeName(name), "/"))
}
