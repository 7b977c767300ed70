// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"bytes"
	"context"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/lemon4ksan/zipedit/internal"
	"github.com/lemon4ksan/zipedit/internal/sys"
)

const (
	versionDefault = 10 // 1.0: stored bodies
	versionDeflate = 20 // 2.0: deflate and directories
)

// entryPlan is the header and body position an entry will have once the
// archive being written is published.
type entryPlan struct {
	header     internal.CentralDirectory
	bodyOffset int64
	attrs      sys.Attributes
}

// zipWriter handles the low-level writing of ZIP archive structure.
// Entries must be written in archive order: every local header offset is
// the stream position at the moment the entry is written.
type zipWriter struct {
	dest         *byteCountWriter // Target stream, doubling as the position counter
	src          io.ReaderAt      // Retained handle of the archive being rewritten
	centralDir   *bytes.Buffer    // Buffer for accumulating central directory before final write
	entriesNum   int              // Number of entries written to the archive
	copyBuf      []byte
	tracker      *progressTracker
	headerOffset int64 // Offset of the central directory once written
}

func newZipWriter(dest io.Writer, src io.ReaderAt, tracker *progressTracker) *zipWriter {
	return &zipWriter{
		dest:       &byteCountWriter{dest: dest},
		src:        src,
		centralDir: new(bytes.Buffer),
		copyBuf:    make([]byte, 256*1024),
		tracker:    tracker,
	}
}

// WriteEntry writes the local file header and body of e and queues its
// central directory record. res is the staged result for updated entries.
func (zw *zipWriter) WriteEntry(ctx context.Context, e *Entry, res *stageResult) (entryPlan, error) {
	if err := ctx.Err(); err != nil {
		return entryPlan{}, err
	}

	offset := zw.dest.bytesWritten
	if offset > math.MaxUint32 {
		return entryPlan{}, fmt.Errorf("%w: local header of %s at offset %d", ErrArchiveTooLarge, e.name, offset)
	}

	plan := e.planHeader(res)
	plan.header.LocalHeaderOffset = uint32(offset)

	if err := zw.writeFileHeader(e, plan.header); err != nil {
		return entryPlan{}, err
	}
	plan.bodyOffset = zw.dest.bytesWritten

	if err := zw.writeBody(ctx, e, res); err != nil {
		return entryPlan{}, fmt.Errorf("write body of %s: %w", e.name, err)
	}

	zw.addCentralDirEntry(e, plan.header)
	zw.tracker.AddWritten(e.name, uint64(plan.header.UncompressedSize))

	return plan, nil
}

// WriteCentralDirAndEndRecords writes the central directory and end records.
// This must be called after all entries have been written.
func (zw *zipWriter) WriteCentralDirAndEndRecords(comment string) (internal.EndOfCentralDirectory, error) {
	zw.headerOffset = zw.dest.bytesWritten
	size := int64(zw.centralDir.Len())

	if zw.headerOffset > math.MaxUint32 || size > math.MaxUint32 {
		return internal.EndOfCentralDirectory{}, fmt.Errorf("%w: central directory at %d, size %d", ErrArchiveTooLarge, zw.headerOffset, size)
	}
	if zw.entriesNum > math.MaxUint16 {
		return internal.EndOfCentralDirectory{}, fmt.Errorf("%w: %d entries", ErrArchiveTooLarge, zw.entriesNum)
	}

	if _, err := zw.dest.Write(zw.centralDir.Bytes()); err != nil {
		return internal.EndOfCentralDirectory{}, fmt.Errorf("write central directory: %w", err)
	}

	end := internal.EndOfCentralDirectory{
		Signature:                      internal.EndOfCentralDirSignature,
		TotalNumberOfEntriesOnThisDisk: uint16(zw.entriesNum),
		TotalNumberOfEntries:           uint16(zw.entriesNum),
		CentralDirSize:                 uint32(size),
		CentralDirOffset:               uint32(zw.headerOffset),
		CommentLength:                  uint16(len(comment)),
	}
	if _, err := zw.dest.Write(end.Encode()); err != nil {
		return end, fmt.Errorf("write end of central directory: %w", err)
	}
	if _, err := io.WriteString(zw.dest, comment); err != nil {
		return end, fmt.Errorf("write archive comment: %w", err)
	}

	return end, nil
}

// writeFileHeader writes the local header mirroring h, followed by the name.
// Sizes are always filled in, so no data descriptor follows the body.
func (zw *zipWriter) writeFileHeader(e *Entry, h internal.CentralDirectory) error {
	local := internal.LocalFileHeader{
		Signature:              internal.LocalFileHeaderSignature,
		VersionNeededToExtract: h.VersionNeededToExtract,
		GeneralPurposeBitFlag:  h.GeneralPurposeBitFlag,
		CompressionMethod:      h.CompressionMethod,
		LastModFileTime:        h.LastModFileTime,
		LastModFileDate:        h.LastModFileDate,
		CRC32:                  h.CRC32,
		CompressedSize:         h.CompressedSize,
		UncompressedSize:       h.UncompressedSize,
		FilenameLength:         h.FilenameLength,
	}

	if _, err := zw.dest.Write(local.Encode()); err != nil {
		return fmt.Errorf("write local header of %s: %w", e.name, err)
	}
	if _, err := io.WriteString(zw.dest, e.name); err != nil {
		return fmt.Errorf("write name of %s: %w", e.name, err)
	}
	return nil
}

// writeBody splices the original body, copies the staged one, or writes nothing.
func (zw *zipWriter) writeBody(ctx context.Context, e *Entry, res *stageResult) error {
	var (
		src  io.Reader
		size int64
		sum  hash.Hash32 // set when the body is re-read from its source file
	)

	switch {
	case res != nil:
		f, err := os.Open(res.bodyPath)
		if err != nil {
			return err
		}
		defer f.Close()
		src, size = f, res.compressedSize
		if !res.temp {
			sum = crc32.NewIEEE()
			src = io.TeeReader(f, sum)
		}
	case e.WantsOriginalData() && e.HasOriginalData():
		if zw.src == nil {
			return fmt.Errorf("%w: %s", ErrEntryLacksOriginalData, e.name)
		}
		size = e.CompressedSize()
		src = io.NewSectionReader(zw.src, e.bodyOffset, size)
	default:
		return nil
	}

	if size == 0 {
		return nil
	}

	n, err := io.CopyBuffer(zw.dest, io.LimitReader(&contextReader{ctx: ctx, r: src}, size), zw.copyBuf)
	if err != nil {
		return err
	}
	if n != size {
		return fmt.Errorf("%w: copied %d of %d bytes", io.ErrUnexpectedEOF, n, size)
	}
	if sum != nil && sum.Sum32() != res.crc32 {
		return fmt.Errorf("%w: %s changed after it was staged", ErrChecksum, res.bodyPath)
	}
	return nil
}

// addCentralDirEntry queues the directory record, name and comment of e.
func (zw *zipWriter) addCentralDirEntry(e *Entry, h internal.CentralDirectory) {
	zw.centralDir.Write(h.Encode())
	zw.centralDir.WriteString(e.name)
	zw.centralDir.WriteString(e.comment)
	zw.entriesNum++
}

// planHeader recomputes the derived header fields of e for the next write.
// The entry itself is not modified.
func (e *Entry) planHeader(res *stageResult) entryPlan {
	h := e.header
	h.Signature = internal.CentralDirectorySignature
	attrs := e.attrs
	flags := h.GeneralPurposeBitFlag &^ (internal.FlagUTF8 | internal.FlagDataDescriptor)

	if res != nil {
		date, tm := timeToMsDos(res.modTime)
		h.CompressionMethod = uint16(res.method)
		h.CRC32 = res.crc32
		h.CompressedSize = uint32(res.compressedSize)
		h.UncompressedSize = uint32(res.uncompressedSize)
		h.LastModFileDate, h.LastModFileTime = date, tm
		attrs = res.attrs

		flags &^= internal.FlagDeflateMask
		if res.method == Deflated {
			flags |= deflateFlags(res.level)
		}
	}

	host := sys.HostSystemFAT
	if attrs.HasUnix {
		host = sys.HostSystemUNIX
	}
	h.VersionMadeBy = uint16(host)<<8 | versionDeflate

	h.VersionNeededToExtract = versionDefault
	if CompressionMethod(h.CompressionMethod) == Deflated || e.isDir {
		h.VersionNeededToExtract = versionDeflate
	}

	if !isASCII(e.name) || !isASCII(e.comment) {
		flags |= internal.FlagUTF8
	}
	h.GeneralPurposeBitFlag = flags

	h.FilenameLength = uint16(len(e.name))
	h.ExtraFieldLength = 0
	h.FileCommentLength = uint16(len(e.comment))
	h.DiskNumberStart = 0
	h.ExternalFileAttributes = attrs.External(e.isDir)

	return entryPlan{header: h, attrs: attrs}
}
