// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"os"
	"time"

	"github.com/lemon4ksan/zipedit/internal/sys"
)

// dataSource says where an entry's body comes from on the next save.
// Exactly one of originalOnly, pendingUpdate or pendingUpdateStaged.
type dataSource interface {
	isDataSource()
}

// originalOnly: the body, if any, is spliced from the retained archive handle.
type originalOnly struct{}

// pendingUpdate: the body must be read from path, checksummed and compressed.
type pendingUpdate struct {
	path string
}

// pendingUpdateStaged: path has been compressed during the current save.
// Only the save pipeline creates this state.
type pendingUpdateStaged struct {
	path   string
	result *stageResult
}

func (originalOnly) isDataSource()        {}
func (pendingUpdate) isDataSource()       {}
func (pendingUpdateStaged) isDataSource() {}

// stageResult is the outcome of compressing one pending entry.
// Each worker owns its result until the stage barrier.
type stageResult struct {
	method           CompressionMethod
	level            int
	crc32            uint32
	compressedSize   int64
	uncompressedSize int64
	modTime          time.Time
	attrs            sys.Attributes

	// bodyPath holds exactly compressedSize bytes of body.
	// It is a scratch file when temp is set and the source file otherwise.
	bodyPath string
	temp     bool
}

// discard removes the scratch file backing r, if it owns one.
func (r *stageResult) discard() {
	if r != nil && r.temp {
		os.Remove(r.bodyPath)
	}
}
