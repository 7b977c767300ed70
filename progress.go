// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"sync"
	"sync/atomic"
)

// compressionWeight is the relative cost of compressing one byte compared
// to copying one byte.
const compressionWeight = 25

// ProgressKind identifies the operation reporting progress.
type ProgressKind uint8

const (
	// ProgressSave is reported while compressing and writing an archive.
	// Its fraction is weighted: compressed bytes count 25 times a written byte.
	ProgressSave ProgressKind = iota

	// ProgressExtract is reported while extracting entries.
	// Its fraction is the plain ratio of bytes processed to total bytes.
	ProgressExtract
)

func (k ProgressKind) String() string {
	switch k {
	case ProgressSave:
		return "save"
	case ProgressExtract:
		return "extract"
	default:
		return "unknown"
	}
}

// Progress is a snapshot of an ongoing save or extraction.
type Progress struct {
	Kind ProgressKind

	// Entry is the name of the entry that triggered this event, if any.
	Entry string

	// BytesWritten counts uncompressed bytes written (save) or extracted (extract).
	BytesWritten uint64

	// BytesCompressed counts uncompressed bytes that went through compression.
	// Always zero for extraction.
	BytesCompressed uint64

	TotalBytesToWrite    uint64
	TotalBytesToCompress uint64
}

// Processed returns the completed work units.
func (p Progress) Processed() uint64 {
	if p.Kind == ProgressSave {
		return p.BytesWritten + compressionWeight*p.BytesCompressed
	}
	return p.BytesWritten
}

// Total returns the total work units.
func (p Progress) Total() uint64 {
	if p.Kind == ProgressSave {
		return p.TotalBytesToWrite + compressionWeight*p.TotalBytesToCompress
	}
	return p.TotalBytesToWrite
}

// Fraction returns completion in [0, 1]. Zero total work counts as complete.
func (p Progress) Fraction() float64 {
	total := p.Total()
	if total == 0 {
		return 1
	}
	return min(float64(p.Processed())/float64(total), 1)
}

// ProgressFunc receives progress updates. Calls are never concurrent.
type ProgressFunc func(Progress)

// progressTracker accumulates byte counters from concurrent workers and
// serializes callback delivery.
type progressTracker struct {
	kind            ProgressKind
	fn              ProgressFunc
	totalWrite      uint64
	totalCompress   uint64
	bytesWritten    atomic.Uint64
	bytesCompressed atomic.Uint64

	mu sync.Mutex
}

func newProgressTracker(kind ProgressKind, fn ProgressFunc, totalWrite, totalCompress uint64) *progressTracker {
	return &progressTracker{
		kind:          kind,
		fn:            fn,
		totalWrite:    totalWrite,
		totalCompress: totalCompress,
	}
}

// AddWritten records n written bytes and notifies the callback.
func (t *progressTracker) AddWritten(entry string, n uint64) {
	t.bytesWritten.Add(n)
	t.emit(entry, false)
}

// AddCompressed records n compressed bytes and notifies the callback.
func (t *progressTracker) AddCompressed(entry string, n uint64) {
	t.bytesCompressed.Add(n)
	t.emit(entry, false)
}

// Finish forces the counters to their totals and emits a final event.
func (t *progressTracker) Finish() {
	t.emit("", true)
}

func (t *progressTracker) Snapshot() Progress {
	return Progress{
		Kind:                 t.kind,
		BytesWritten:         min(t.bytesWritten.Load(), t.totalWrite),
		BytesCompressed:      min(t.bytesCompressed.Load(), t.totalCompress),
		TotalBytesToWrite:    t.totalWrite,
		TotalBytesToCompress: t.totalCompress,
	}
}

// emit loads the counters under the lock, so events reach the callback in
// non-decreasing order even when workers race.
func (t *progressTracker) emit(entry string, final bool) {
	if t.fn == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if final {
		t.bytesWritten.Store(t.totalWrite)
		t.bytesCompressed.Store(t.totalCompress)
	}
	p := t.Snapshot()
	p.Entry = entry
	t.fn(p)
}
