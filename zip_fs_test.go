// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveFS(t *testing.T) {
	a := openFixture(t, []fixtureFile{
		{name: "readme.txt", body: []byte("hello world\n")},
		{name: "docs/", method: zip.Store},
		{name: "docs/guide.md", body: []byte("# Guide\n"), method: zip.Deflate},
		{name: "src/cmd/main.go", body: []byte("package main\n"), method: zip.Deflate},
	})

	// Pending content is not visible until saved.
	_, err := a.UpdateEntry(writeFile(t, filepath.Join(t.TempDir(), "n"), []byte("n")), "pending.txt")
	require.NoError(t, err)

	fsys := a.FS()
	require.NoError(t, fstest.TestFS(fsys, "readme.txt", "docs/guide.md", "src/cmd/main.go"))

	data, err := fs.ReadFile(fsys, "src/cmd/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))

	entries, err := fs.ReadDir(fsys, ".")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"docs", "readme.txt", "src"}, names)

	info, err := fs.Stat(fsys, "src")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = fsys.Open("pending.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = fsys.Open("../readme.txt")
	assert.ErrorIs(t, err, fs.ErrInvalid)
}
