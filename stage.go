// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/lemon4ksan/zipedit/internal/sys"
)

// stageEntries compresses and checksums every pending entry concurrently.
// The returned slice is indexed like a.entries; entries without pending
// content have a nil result. On error every scratch file already produced
// is removed.
func (a *Archive) stageEntries(ctx context.Context, scratch string, tracker *progressTracker) ([]*stageResult, error) {
	results := make([]*stageResult, len(a.entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.config.Workers))

	for i, e := range a.entries {
		pending, ok := e.source.(pendingUpdate)
		if !ok {
			continue
		}

		g.Go(func() error {
			res, err := a.stageEntry(gctx, e, pending.path, scratch)
			if err != nil {
				return fmt.Errorf("compress %s: %w", e.name, err)
			}
			results[i] = res
			tracker.AddCompressed(e.name, uint64(res.uncompressedSize))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, res := range results {
			res.discard()
		}
		return nil, err
	}
	return results, nil
}

// stageEntry reads the source once, computing its CRC-32 while deflating it
// into a scratch file. Bodies that do not shrink below the configured ratio
// are stored and read back from the source file at write time.
func (a *Archive) stageEntry(ctx context.Context, e *Entry, path, scratch string) (*stageResult, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	tmp, err := os.CreateTemp(scratch, "entry-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	tmpPath := tmp.Name()

	hasher := crc32.NewIEEE()
	counter := &byteCountWriter{dest: tmp}
	level := e.level
	n, err := a.compressors.get(level).Compress(io.TeeReader(&contextReader{ctx: ctx, r: src}, hasher), counter)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	if n > math.MaxUint32 || counter.bytesWritten > math.MaxUint32 {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrArchiveTooLarge, path, n)
	}

	res := &stageResult{
		method:           Deflated,
		level:            level,
		crc32:            hasher.Sum32(),
		compressedSize:   counter.bytesWritten,
		uncompressedSize: n,
		modTime:          info.ModTime(),
		attrs:            sys.FileAttributes(info),
		bodyPath:         tmpPath,
		temp:             true,
	}

	if n == 0 || float64(res.compressedSize)/float64(n) > a.config.MinCompressionRatio {
		os.Remove(tmpPath)
		res.method = Stored
		res.compressedSize = n
		res.bodyPath = path
		res.temp = false
	}

	a.log().Debug("staged entry",
		"name", e.name,
		"method", res.method,
		"uncompressed", res.uncompressedSize,
		"compressed", res.compressedSize)

	return res, nil
}
