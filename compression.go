// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/lemon4ksan/zipedit/internal"
)

// CompressionMethod represents the compression algorithm used for an entry.
type CompressionMethod uint16

// Only store and deflate are read or written.
const (
	Stored   CompressionMethod = 0 // No compression - body stored as-is
	Deflated CompressionMethod = 8 // DEFLATE compression
)

func (m CompressionMethod) String() string {
	switch m {
	case Stored:
		return "store"
	case Deflated:
		return "deflate"
	default:
		return fmt.Sprintf("method(%d)", uint16(m))
	}
}

// Compression levels for DEFLATE algorithm
const (
	DeflateSuperFast = flate.BestSpeed       // Super fast compression (lowest ratio, fastest speed)
	DeflateFast      = 3                     // Fast compression (lower ratio, faster speed)
	DeflateNormal    = 6                     // Default compression level (good balance between speed and ratio)
	DeflateMaximum   = flate.BestCompression // Maximum compression (best ratio, slowest speed)
)

// normalizeLevel maps out-of-range levels to the strongest level.
func normalizeLevel(level int) int {
	if level < flate.BestSpeed || level > flate.BestCompression {
		return flate.BestCompression
	}
	return level
}

// deflateFlags returns general purpose bits 1 and 2 describing level.
func deflateFlags(level int) uint16 {
	switch {
	case level >= 8:
		return internal.FlagDeflateMaximum
	case level >= 2 && level <= DeflateFast:
		return internal.FlagDeflateFast
	case level <= 1:
		return internal.FlagDeflateSuperFast
	default:
		return 0
	}
}

// DeflateCompressor implements DEFLATE compression with memory pooling
type DeflateCompressor struct {
	pool sync.Pool
}

// NewDeflateCompressor creates a reusable compressor for a specific level
func NewDeflateCompressor(level int) *DeflateCompressor {
	level = normalizeLevel(level)
	return &DeflateCompressor{
		pool: sync.Pool{
			New: func() any {
				w, _ := flate.NewWriter(io.Discard, level)
				return w
			},
		},
	}
}

// Compress deflates src into dest and returns the number of bytes read from src.
func (d *DeflateCompressor) Compress(src io.Reader, dest io.Writer) (int64, error) {
	w := d.pool.Get().(*flate.Writer)
	defer d.pool.Put(w)

	w.Reset(dest)

	n, err := io.Copy(w, src)
	if err != nil {
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, err
	}
	return n, nil
}

// compressorSet lazily builds one pooled compressor per level.
type compressorSet struct {
	mu sync.Mutex
	m  map[int]*DeflateCompressor
}

func (s *compressorSet) get(level int) *DeflateCompressor {
	level = normalizeLevel(level)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.m == nil {
		s.m = make(map[int]*DeflateCompressor)
	}
	c, ok := s.m[level]
	if !ok {
		c = NewDeflateCompressor(level)
		s.m[level] = c
	}
	return c
}

// decompress wraps body in the reader for method.
func decompress(method CompressionMethod, body io.Reader) (io.ReadCloser, error) {
	switch method {
	case Stored:
		return io.NopCloser(body), nil
	case Deflated:
		return flate.NewReader(body), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompression, method)
	}
}
