// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package internal

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawCentralDirectory mirrors the packed wire layout so binary.Read can serve
// as an independent decoder for the hand-written offsets.
type rawCentralDirectory struct {
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

func TestLocalFileHeader_Encode(t *testing.T) {
	h := LocalFileHeader{
		Signature:              LocalFileHeaderSignature,
		VersionNeededToExtract: 20,
		GeneralPurposeBitFlag:  FlagUTF8 | FlagDeflateMaximum,
		CompressionMethod:      8,
		LastModFileTime:        0x6b2a,
		LastModFileDate:        0x5a21,
		CRC32:                  0x12345678,
		CompressedSize:         100,
		UncompressedSize:       200,
		FilenameLength:         8,
		ExtraFieldLength:       0,
	}

	buf := h.Encode()
	require.Len(t, buf, LocalFileHeaderLen)

	assert.Equal(t, []byte{0x50, 0x4b, 0x03, 0x04}, buf[0:4])
	assert.Equal(t, uint16(20), binary.LittleEndian.Uint16(buf[4:6]))
	assert.Equal(t, uint16(0x0802), binary.LittleEndian.Uint16(buf[6:8]))
	assert.Equal(t, uint16(8), binary.LittleEndian.Uint16(buf[8:10]))
	assert.Equal(t, uint32(0x12345678), binary.LittleEndian.Uint32(buf[14:18]))
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(buf[18:22]))
	assert.Equal(t, uint32(200), binary.LittleEndian.Uint32(buf[22:26]))
	assert.Equal(t, uint16(8), binary.LittleEndian.Uint16(buf[26:28]))

	decoded, err := DecodeLocalFileHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestCentralDirectory_EncodeMatchesPackedLayout(t *testing.T) {
	d := CentralDirectory{
		Signature:              CentralDirectorySignature,
		VersionMadeBy:          3<<8 | 20,
		VersionNeededToExtract: 20,
		GeneralPurposeBitFlag:  FlagUTF8,
		CompressionMethod:      8,
		LastModFileTime:        0x1111,
		LastModFileDate:        0x2222,
		CRC32:                  0xdeadbeef,
		CompressedSize:         0xfffffffe,
		UncompressedSize:       0xffffffff,
		FilenameLength:         12,
		ExtraFieldLength:       4,
		FileCommentLength:      7,
		DiskNumberStart:        0,
		InternalFileAttributes: 1,
		ExternalFileAttributes: 0100644 << 16,
		LocalHeaderOffset:      0x01020304,
	}

	buf := d.Encode()
	require.Len(t, buf, CentralDirectoryLen)

	var raw rawCentralDirectory
	require.NoError(t, binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw))
	assert.Equal(t, rawCentralDirectory(d), raw)
	assert.Equal(t, uint8(3), d.Compatibility())

	decoded, err := ReadCentralDirectory(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, d, decoded)
}

func TestEndOfCentralDirectory_RoundTrip(t *testing.T) {
	e := EndOfCentralDirectory{
		Signature:                      EndOfCentralDirSignature,
		TotalNumberOfEntriesOnThisDisk: 3,
		TotalNumberOfEntries:           3,
		CentralDirSize:                 150,
		CentralDirOffset:               4096,
		CommentLength:                  5,
	}

	buf := e.Encode()
	require.Len(t, buf, EndOfCentralDirLen)
	assert.True(t, HasSignature(buf, EndOfCentralDirSignature))
	assert.Equal(t, uint32(150), binary.LittleEndian.Uint32(buf[12:16]))
	assert.Equal(t, uint32(4096), binary.LittleEndian.Uint32(buf[16:20]))

	decoded, err := DecodeEndOfCentralDir(buf)
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
}

func TestDecode_DoesNotValidateSignature(t *testing.T) {
	buf := make([]byte, CentralDirectoryLen)
	binary.LittleEndian.PutUint32(buf[0:4], 0xcafebabe)

	d, err := DecodeCentralDirectory(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xcafebabe), d.Signature)
}

func TestDecode_ShortBuffer(t *testing.T) {
	tests := []struct {
		name   string
		decode func([]byte) error
		size   int
	}{
		{"local file header", func(b []byte) error { _, err := DecodeLocalFileHeader(b); return err }, LocalFileHeaderLen},
		{"central directory", func(b []byte) error { _, err := DecodeCentralDirectory(b); return err }, CentralDirectoryLen},
		{"end of central directory", func(b []byte) error { _, err := DecodeEndOfCentralDir(b); return err }, EndOfCentralDirLen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode(make([]byte, tt.size-1))
			assert.ErrorIs(t, err, ErrShortRecord)
		})
	}
}

func TestReadLocalFileHeader_Truncated(t *testing.T) {
	_, err := ReadLocalFileHeader(bytes.NewReader(make([]byte, 10)))
	assert.Error(t, err)
}

func TestHasSignature(t *testing.T) {
	assert.False(t, HasSignature([]byte{0x50, 0x4b}, EndOfCentralDirSignature))
	assert.True(t, HasSignature([]byte{0x50, 0x4b, 0x05, 0x06, 0x00}, EndOfCentralDirSignature))
	assert.False(t, HasSignature([]byte{0x50, 0x4b, 0x05, 0x07}, EndOfCentralDirSignature))
}
