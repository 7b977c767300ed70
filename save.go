// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/lemon4ksan/zipedit/internal"
)

// writtenArchive describes a fully written, not yet published archive.
type writtenArchive struct {
	tmpPath string
	plans   []entryPlan
	end     internal.EndOfCentralDirectory
	size    int64
}

// Save writes the archive to path, replacing any existing file atomically.
func (a *Archive) Save(path string) error {
	return a.SaveContext(context.Background(), path)
}

// SaveContext writes the archive to path with context support.
//
// Pending entries are compressed concurrently, then every entry is written
// in archive order to a temporary file in the destination directory, which
// is renamed over path once complete. Unchanged entries are copied from the
// retained archive handle without recompression. On failure path is left
// untouched and all entries keep their previous state.
func (a *Archive) SaveContext(ctx context.Context, path string) (err error) {
	if a.closed {
		return ErrClosed
	}
	if len(a.entries) > math.MaxUint16 {
		return fmt.Errorf("%w: %d entries", ErrArchiveTooLarge, len(a.entries))
	}

	started := time.Now()
	a.log().Info("saving archive", "path", path, "entries", len(a.entries))

	toWrite, toCompress, err := a.tally()
	if err != nil {
		return err
	}
	// Writing the central directory is charged as one percent of the body bytes.
	overhead := toWrite / 100
	tracker := newProgressTracker(ProgressSave, a.config.OnProgress, toWrite+overhead, toCompress)

	scratch, err := os.MkdirTemp(a.config.TempDir, "zipedit-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	results, err := a.stageEntries(ctx, scratch, tracker)
	if err != nil {
		return err
	}
	a.markStaged(results)
	defer func() {
		if err != nil {
			a.unstage()
		}
	}()

	written, err := a.writeTemp(ctx, path, tracker, overhead)
	if err != nil {
		return err
	}

	if err = a.publish(written.tmpPath, path); err != nil {
		os.Remove(written.tmpPath)
		return err
	}
	reopenErr := a.commit(path, written)
	tracker.Finish()

	a.log().Info("saved archive",
		"path", path,
		"entries", len(a.entries),
		"size", written.size,
		"compressed_bytes", toCompress,
		"duration", time.Since(started))

	return reopenErr
}

// tally sums the bytes each entry will cost to write and to compress.
func (a *Archive) tally() (toWrite, toCompress uint64, err error) {
	for _, e := range a.entries {
		switch src := e.source.(type) {
		case pendingUpdate:
			info, err := os.Stat(src.path)
			if err != nil {
				return 0, 0, fmt.Errorf("stat source of %s: %w", e.name, err)
			}
			toCompress += uint64(info.Size())
			toWrite += uint64(info.Size())
		default:
			if e.HasOriginalData() {
				toWrite += uint64(e.header.UncompressedSize)
			}
		}
	}
	return toWrite, toCompress, nil
}

func (a *Archive) markStaged(results []*stageResult) {
	for i, res := range results {
		if res == nil {
			continue
		}
		e := a.entries[i]
		if pending, ok := e.source.(pendingUpdate); ok {
			e.source = pendingUpdateStaged{path: pending.path, result: res}
		}
	}
}

// unstage returns staged entries to their pending state after a failed save.
func (a *Archive) unstage() {
	for _, e := range a.entries {
		if staged, ok := e.source.(pendingUpdateStaged); ok {
			staged.result.discard()
			e.source = pendingUpdate{path: staged.path}
		}
	}
}

// writeTemp writes the whole archive to a temporary file next to dest.
func (a *Archive) writeTemp(ctx context.Context, dest string, tracker *progressTracker, overhead uint64) (_ *writtenArchive, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".zipedit-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	var src io.ReaderAt
	if a.file != nil {
		src = a.file
	}

	bw := bufio.NewWriterSize(tmp, 1<<20)
	zw := newZipWriter(bw, src, tracker)

	plans := make([]entryPlan, len(a.entries))
	for i, e := range a.entries {
		var res *stageResult
		switch s := e.source.(type) {
		case pendingUpdateStaged:
			res = s.result
		case pendingUpdate:
			return nil, fmt.Errorf("entry %s was not staged", e.name)
		}

		plans[i], err = zw.WriteEntry(ctx, e, res)
		if err != nil {
			return nil, err
		}
		if res == nil && e.HasOriginalData() {
			a.log().Debug("spliced entry", "name", e.name, "bytes", e.CompressedSize())
		}
	}

	end, err := zw.WriteCentralDirAndEndRecords(a.comment)
	if err != nil {
		return nil, err
	}
	tracker.AddWritten("", overhead)

	if err = bw.Flush(); err != nil {
		return nil, fmt.Errorf("flush %s: %w", tmpPath, err)
	}
	if err = tmp.Sync(); err != nil {
		return nil, fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", tmpPath, err)
	}

	return &writtenArchive{
		tmpPath: tmpPath,
		plans:   plans,
		end:     end,
		size:    zw.dest.bytesWritten,
	}, nil
}

// publish renames tmpPath over dest. The retained handle is released first,
// since some platforms refuse to replace an open file, and restored if the
// rename fails.
func (a *Archive) publish(tmpPath, dest string) error {
	if a.file != nil {
		a.file.Close()
		a.file = nil
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		if a.path != "" {
			if f, openErr := os.Open(a.path); openErr == nil {
				a.file = f
			}
		}
		return fmt.Errorf("publish %s: %w", dest, err)
	}
	return nil
}

// commit rebases every entry onto the published file and reopens it.
func (a *Archive) commit(dest string, written *writtenArchive) error {
	for i, e := range a.entries {
		plan := written.plans[i]
		if staged, ok := e.source.(pendingUpdateStaged); ok {
			staged.result.discard()
		}
		e.header = plan.header
		e.attrs = plan.attrs
		e.bodyOffset = plan.bodyOffset
		e.source = originalOnly{}
	}

	a.end = written.end
	a.path = dest
	a.size = written.size

	f, err := os.Open(dest)
	if err != nil {
		return errors.Join(fmt.Errorf("reopen %s: %w", dest, err), ErrNoBackingFile)
	}
	a.file = f
	return nil
}
