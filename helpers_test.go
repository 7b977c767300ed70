// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"bytes"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/lemon4ksan/zipedit/internal"
)

var fixtureTime = time.Date(2024, 5, 6, 7, 8, 10, 0, time.Local)

type fixtureFile struct {
	name    string
	body    []byte
	method  uint16
	comment string
}

// writeFixture writes an archive with an independent ZIP implementation.
func writeFixture(t *testing.T, path string, files []fixtureFile, comment string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for _, ff := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     ff.name,
			Method:   ff.method,
			Comment:  ff.comment,
			Modified: fixtureTime,
		})
		require.NoError(t, err)
		_, err = w.Write(ff.body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.SetComment(comment))
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// readWithOracle returns every file body as decoded by an independent ZIP reader.
// Reading to EOF makes the oracle verify each CRC-32.
func readWithOracle(t *testing.T, path string) (map[string][]byte, string) {
	t.Helper()

	rc, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer rc.Close()

	contents := make(map[string][]byte, len(rc.File))
	for _, f := range rc.File {
		r, err := f.Open()
		require.NoError(t, err, f.Name)
		data, err := io.ReadAll(r)
		require.NoError(t, err, f.Name)
		require.NoError(t, r.Close())
		contents[f.Name] = data
	}
	return contents, rc.Comment
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func readEntry(t *testing.T, e *Entry) []byte {
	t.Helper()
	rc, err := e.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	return data
}

// rawEntry describes one member of a hand-built archive. Bodies are
// written verbatim, so method and flags can be anything.
type rawEntry struct {
	name   string
	body   []byte
	method uint16
	flags  uint16
	madeBy uint16
	ext    uint32
	crc    *uint32
}

// buildRaw assembles an archive byte by byte with the record codec.
func buildRaw(entries []rawEntry, comment string) []byte {
	var buf, cd bytes.Buffer

	for _, e := range entries {
		offset := buf.Len()
		crc := crc32.ChecksumIEEE(e.body)
		if e.crc != nil {
			crc = *e.crc
		}

		local := internal.LocalFileHeader{
			Signature:              internal.LocalFileHeaderSignature,
			VersionNeededToExtract: 20,
			GeneralPurposeBitFlag:  e.flags,
			CompressionMethod:      e.method,
			CRC32:                  crc,
			CompressedSize:         uint32(len(e.body)),
			UncompressedSize:       uint32(len(e.body)),
			FilenameLength:         uint16(len(e.name)),
		}
		buf.Write(local.Encode())
		buf.WriteString(e.name)
		buf.Write(e.body)

		record := internal.CentralDirectory{
			Signature:              internal.CentralDirectorySignature,
			VersionMadeBy:          e.madeBy,
			VersionNeededToExtract: 20,
			GeneralPurposeBitFlag:  e.flags,
			CompressionMethod:      e.method,
			CRC32:                  crc,
			CompressedSize:         uint32(len(e.body)),
			UncompressedSize:       uint32(len(e.body)),
			FilenameLength:         uint16(len(e.name)),
			ExternalFileAttributes: e.ext,
			LocalHeaderOffset:      uint32(offset),
		}
		cd.Write(record.Encode())
		cd.WriteString(e.name)
	}

	cdOffset := buf.Len()
	buf.Write(cd.Bytes())

	end := internal.EndOfCentralDirectory{
		Signature:                      internal.EndOfCentralDirSignature,
		TotalNumberOfEntriesOnThisDisk: uint16(len(entries)),
		TotalNumberOfEntries:           uint16(len(entries)),
		CentralDirSize:                 uint32(cd.Len()),
		CentralDirOffset:               uint32(cdOffset),
		CommentLength:                  uint16(len(comment)),
	}
	buf.Write(end.Encode())
	buf.WriteString(comment)

	return buf.Bytes()
}

func loadBytes(data []byte) (*loadedArchive, error) {
	return newZipReader(bytes.NewReader(data), int64(len(data)), DeflateMaximum).Load()
}

// listDir returns the names in dir.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}
