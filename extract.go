// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var copyBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 64*1024) // 64KB
		return &b
	},
}

// Extract writes every entry under destDir.
// Includes Zip Slip protection to ensure files stay within the target path.
// Entries that fail are reported together; cancellation stops immediately.
func (a *Archive) Extract(destDir string) error {
	return a.ExtractContext(context.Background(), destDir)
}

// ExtractContext extracts entries sequentially with context support.
func (a *Archive) ExtractContext(ctx context.Context, destDir string) error {
	tracker := a.extractTracker()
	var errs []error
	var dirs []*Entry

	bufPtr := copyBufPool.Get().(*[]byte)
	defer copyBufPool.Put(bufPtr)

	for _, e := range sortAlphabetical(a.entries) {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := e.extract(ctx, destDir, *bufPtr)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			errs = append(errs, fmt.Errorf("failed to extract %s: %w", e.name, err))
			continue
		}
		if e.isDir {
			dirs = append(dirs, e)
		}
		tracker.AddWritten(e.name, uint64(e.UncompressedSize()))
	}

	restoreDirTimes(destDir, dirs)
	return errors.Join(errs...)
}

// ExtractParallel extracts entries using up to workers goroutines.
// Each worker opens its own handle on the archive file.
func (a *Archive) ExtractParallel(destDir string, workers int) error {
	return a.ExtractParallelContext(context.Background(), destDir, workers)
}

// ExtractParallelContext extracts entries concurrently with context support.
func (a *Archive) ExtractParallelContext(ctx context.Context, destDir string, workers int) error {
	tracker := a.extractTracker()
	entries := sortAlphabetical(a.entries)

	var (
		mu   sync.Mutex
		errs []error
		dirs []*Entry
	)
	fail := func(e *Entry, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("failed to extract %s: %w", e.name, err))
		mu.Unlock()
	}

	// Directories first, so workers never race on MkdirAll of a shared parent.
	var files []*Entry
	for _, e := range entries {
		if !e.isDir {
			files = append(files, e)
			continue
		}
		if _, err := e.extract(ctx, destDir, nil); err != nil {
			fail(e, err)
			continue
		}
		dirs = append(dirs, e)
		tracker.AddWritten(e.name, 0)
	}

	sem := semaphore.NewWeighted(int64(max(1, workers)))
	var wg sync.WaitGroup

	for _, e := range files {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer func() { sem.Release(1); wg.Done() }()

			bufPtr := copyBufPool.Get().(*[]byte)
			defer copyBufPool.Put(bufPtr)

			if _, err := e.extract(ctx, destDir, *bufPtr); err != nil {
				if ctx.Err() == nil {
					fail(e, err)
				}
				return
			}
			tracker.AddWritten(e.name, uint64(e.UncompressedSize()))
		}()
	}
	wg.Wait()

	restoreDirTimes(destDir, dirs)

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func (a *Archive) extractTracker() *progressTracker {
	var total uint64
	for _, e := range a.entries {
		total += uint64(e.UncompressedSize())
	}
	return newProgressTracker(ProgressExtract, a.config.OnProgress, total, 0)
}

// restoreDirTimes applies directory modification times deepest first,
// after their contents have been written.
func restoreDirTimes(destDir string, dirs []*Entry) {
	for i := len(dirs) - 1; i >= 0; i-- {
		if fpath, err := dirs[i].targetPath(destDir); err == nil {
			os.Chtimes(fpath, time.Now(), dirs[i].ModTime())
		}
	}
}
