// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package internal holds the fixed-width ZIP record codec.
//
// Records are encoded and decoded at explicit little-endian byte offsets.
// Decoding checks only that enough bytes are present; tag and size
// validation is left to the caller.
package internal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Each record type is identified by a header signature.
// Signature values begin with the two byte constant marker of 0x4b50, representing the characters "PK".
const (
	LocalFileHeaderSignature  uint32 = 0x04034b50
	CentralDirectorySignature uint32 = 0x02014b50
	EndOfCentralDirSignature  uint32 = 0x06054b50
)

// Fixed record sizes, excluding variable-length trailing fields.
const (
	LocalFileHeaderLen  = 30
	CentralDirectoryLen = 46
	EndOfCentralDirLen  = 22
)

// MaxCommentLen is the largest archive or entry comment the 16-bit length field can describe.
const MaxCommentLen = math.MaxUint16

// General purpose bit flags.
const (
	FlagEncrypted      uint16 = 0x0001
	FlagDataDescriptor uint16 = 0x0008
	FlagUTF8           uint16 = 0x0800

	// Bits 1 and 2 carry the deflate option used by the compressor.
	FlagDeflateMaximum   uint16 = 0x0002
	FlagDeflateFast      uint16 = 0x0004
	FlagDeflateSuperFast uint16 = 0x0006
	FlagDeflateMask      uint16 = 0x0006
)

// ErrShortRecord is returned when a buffer is too small to hold a fixed record.
var ErrShortRecord = errors.New("zip: short record")

// LocalFileHeader precedes every entry body.
type LocalFileHeader struct {
	Signature              uint32
	VersionNeededToExtract uint16
	GeneralPurposeBitFlag  uint16
	CompressionMethod      uint16
	LastModFileTime        uint16
	LastModFileDate        uint16
	CRC32                  uint32
	CompressedSize         uint32
	UncompressedSize       uint32
	FilenameLength         uint16
	ExtraFieldLength       uint16
}

func (h LocalFileHeader) Encode() []byte {
	buf := make([]byte, LocalFileHeaderLen)

	binary.LittleEndian.PutUint32(buf[0:4], h.Signature)
	binary.LittleEndian.PutUint16(buf[4:6], h.VersionNeededToExtract)
	binary.LittleEndian.PutUint16(buf[6:8], h.GeneralPurposeBitFlag)
	binary.LittleEndian.PutUint16(buf[8:10], h.CompressionMethod)
	binary.LittleEndian.PutUint16(buf[10:12], h.LastModFileTime)
	binary.LittleEndian.PutUint16(buf[12:14], h.LastModFileDate)
	binary.LittleEndian.PutUint32(buf[14:18], h.CRC32)
	binary.LittleEndian.PutUint32(buf[18:22], h.CompressedSize)
	binary.LittleEndian.PutUint32(buf[22:26], h.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[26:28], h.FilenameLength)
	binary.LittleEndian.PutUint16(buf[28:30], h.ExtraFieldLength)

	return buf
}

func DecodeLocalFileHeader(buf []byte) (LocalFileHeader, error) {
	if len(buf) < LocalFileHeaderLen {
		return LocalFileHeader{}, fmt.Errorf("%w: local file header needs %d bytes, got %d", ErrShortRecord, LocalFileHeaderLen, len(buf))
	}
	return LocalFileHeader{
		Signature:              binary.LittleEndian.Uint32(buf[0:4]),
		VersionNeededToExtract: binary.LittleEndian.Uint16(buf[4:6]),
		GeneralPurposeBitFlag:  binary.LittleEndian.Uint16(buf[6:8]),
		CompressionMethod:      binary.LittleEndian.Uint16(buf[8:10]),
		LastModFileTime:        binary.LittleEndian.Uint16(buf[10:12]),
		LastModFileDate:        binary.LittleEndian.Uint16(buf[12:14]),
		CRC32:                  binary.LittleEndian.Uint32(buf[14:18]),
		CompressedSize:         binary.LittleEndian.Uint32(buf[18:22]),
		UncompressedSize:       binary.LittleEndian.Uint32(buf[22:26]),
		FilenameLength:         binary.LittleEndian.Uint16(buf[26:28]),
		ExtraFieldLength:       binary.LittleEndian.Uint16(buf[28:30]),
	}, nil
}

// ReadLocalFileHeader reads exactly one fixed-size local file header from src.
func ReadLocalFileHeader(src io.Reader) (LocalFileHeader, error) {
	var buf [LocalFileHeaderLen]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return LocalFileHeader{}, fmt.Errorf("read local file header: %w", err)
	}
	return DecodeLocalFileHeader(buf[:])
}

// CentralDirectory is one record of the central directory index.
type CentralDirectory struct {
	Signature              uint32
	VersionMadeBy          uint16
	VersionNeededToExtract uint16
	GeneralPurposeBitFlag  uint16
	CompressionMethod      uint16
	LastModFileTime        uint16
	LastModFileDate        uint16
	CRC32                  uint32
	CompressedSize         uint32
	UncompressedSize       uint32
	FilenameLength         uint16
	ExtraFieldLength       uint16
	FileCommentLength      uint16
	DiskNumberStart        uint16
	InternalFileAttributes uint16
	ExternalFileAttributes uint32
	LocalHeaderOffset      uint32
}

// Compatibility returns the attribute-compatibility tag stored in the high byte of VersionMadeBy.
func (d CentralDirectory) Compatibility() uint8 {
	return uint8(d.VersionMadeBy >> 8)
}

func (d CentralDirectory) Encode() []byte {
	buf := make([]byte, CentralDirectoryLen)

	binary.LittleEndian.PutUint32(buf[0:4], d.Signature)
	binary.LittleEndian.PutUint16(buf[4:6], d.VersionMadeBy)
	binary.LittleEndian.PutUint16(buf[6:8], d.VersionNeededToExtract)
	binary.LittleEndian.PutUint16(buf[8:10], d.GeneralPurposeBitFlag)
	binary.LittleEndian.PutUint16(buf[10:12], d.CompressionMethod)
	binary.LittleEndian.PutUint16(buf[12:14], d.LastModFileTime)
	binary.LittleEndian.PutUint16(buf[14:16], d.LastModFileDate)
	binary.LittleEndian.PutUint32(buf[16:20], d.CRC32)
	binary.LittleEndian.PutUint32(buf[20:24], d.CompressedSize)
	binary.LittleEndian.PutUint32(buf[24:28], d.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[28:30], d.FilenameLength)
	binary.LittleEndian.PutUint16(buf[30:32], d.ExtraFieldLength)
	binary.LittleEndian.PutUint16(buf[32:34], d.FileCommentLength)
	binary.LittleEndian.PutUint16(buf[34:36], d.DiskNumberStart)
	binary.LittleEndian.PutUint16(buf[36:38], d.InternalFileAttributes)
	binary.LittleEndian.PutUint32(buf[38:42], d.ExternalFileAttributes)
	binary.LittleEndian.PutUint32(buf[42:46], d.LocalHeaderOffset)

	return buf
}

func DecodeCentralDirectory(buf []byte) (CentralDirectory, error) {
	if len(buf) < CentralDirectoryLen {
		return CentralDirectory{}, fmt.Errorf("%w: central directory record needs %d bytes, got %d", ErrShortRecord, CentralDirectoryLen, len(buf))
	}
	return CentralDirectory{
		Signature:              binary.LittleEndian.Uint32(buf[0:4]),
		VersionMadeBy:          binary.LittleEndian.Uint16(buf[4:6]),
		VersionNeededToExtract: binary.LittleEndian.Uint16(buf[6:8]),
		GeneralPurposeBitFlag:  binary.LittleEndian.Uint16(buf[8:10]),
		CompressionMethod:      binary.LittleEndian.Uint16(buf[10:12]),
		LastModFileTime:        binary.LittleEndian.Uint16(buf[12:14]),
		LastModFileDate:        binary.LittleEndian.Uint16(buf[14:16]),
		CRC32:                  binary.LittleEndian.Uint32(buf[16:20]),
		CompressedSize:         binary.LittleEndian.Uint32(buf[20:24]),
		UncompressedSize:       binary.LittleEndian.Uint32(buf[24:28]),
		FilenameLength:         binary.LittleEndian.Uint16(buf[28:30]),
		ExtraFieldLength:       binary.LittleEndian.Uint16(buf[30:32]),
		FileCommentLength:      binary.LittleEndian.Uint16(buf[32:34]),
		DiskNumberStart:        binary.LittleEndian.Uint16(buf[34:36]),
		InternalFileAttributes: binary.LittleEndian.Uint16(buf[36:38]),
		ExternalFileAttributes: binary.LittleEndian.Uint32(buf[38:42]),
		LocalHeaderOffset:      binary.LittleEndian.Uint32(buf[42:46]),
	}, nil
}

// ReadCentralDirectory reads one fixed-size central directory record from src.
// The variable-length name, extra field and comment that follow are left unread.
func ReadCentralDirectory(src io.Reader) (CentralDirectory, error) {
	var buf [CentralDirectoryLen]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return CentralDirectory{}, fmt.Errorf("read central directory record: %w", err)
	}
	return DecodeCentralDirectory(buf[:])
}

// EndOfCentralDirectory is the trailer locating the central directory.
type EndOfCentralDirectory struct {
	Signature                       uint32
	ThisDiskNum                     uint16
	DiskNumWithTheStartOfCentralDir uint16
	TotalNumberOfEntriesOnThisDisk  uint16
	TotalNumberOfEntries            uint16
	CentralDirSize                  uint32
	CentralDirOffset                uint32
	CommentLength                   uint16
}

func (e EndOfCentralDirectory) Encode() []byte {
	buf := make([]byte, EndOfCentralDirLen)

	binary.LittleEndian.PutUint32(buf[0:4], e.Signature)
	binary.LittleEndian.PutUint16(buf[4:6], e.ThisDiskNum)
	binary.LittleEndian.PutUint16(buf[6:8], e.DiskNumWithTheStartOfCentralDir)
	binary.LittleEndian.PutUint16(buf[8:10], e.TotalNumberOfEntriesOnThisDisk)
	binary.LittleEndian.PutUint16(buf[10:12], e.TotalNumberOfEntries)
	binary.LittleEndian.PutUint32(buf[12:16], e.CentralDirSize)
	binary.LittleEndian.PutUint32(buf[16:20], e.CentralDirOffset)
	binary.LittleEndian.PutUint16(buf[20:22], e.CommentLength)

	return buf
}

func DecodeEndOfCentralDir(buf []byte) (EndOfCentralDirectory, error) {
	if len(buf) < EndOfCentralDirLen {
		return EndOfCentralDirectory{}, fmt.Errorf("%w: end of central directory needs %d bytes, got %d", ErrShortRecord, EndOfCentralDirLen, len(buf))
	}
	return EndOfCentralDirectory{
		Signature:                       binary.LittleEndian.Uint32(buf[0:4]),
		ThisDiskNum:                     binary.LittleEndian.Uint16(buf[4:6]),
		DiskNumWithTheStartOfCentralDir: binary.LittleEndian.Uint16(buf[6:8]),
		TotalNumberOfEntriesOnThisDisk:  binary.LittleEndian.Uint16(buf[8:10]),
		TotalNumberOfEntries:            binary.LittleEndian.Uint16(buf[10:12]),
		CentralDirSize:                  binary.LittleEndian.Uint32(buf[12:16]),
		CentralDirOffset:                binary.LittleEndian.Uint32(buf[16:20]),
		CommentLength:                   binary.LittleEndian.Uint16(buf[20:22]),
	}, nil
}

// HasSignature reports whether buf starts with the little-endian signature sig.
func HasSignature(buf []byte, sig uint32) bool {
	return len(buf) >= 4 && binary.LittleEndian.Uint32(buf[0:4]) == sig
}
