//go:build !windows

// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileAttributes(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		perm os.FileMode
		want Attributes
	}{
		{"writable", 0644, Attributes{DOS: FileAttributeArchive, Perm: 0644, HasUnix: true}},
		{"executable", 0755, Attributes{DOS: FileAttributeArchive, Perm: 0755, HasUnix: true}},
		{"read-only", 0444, Attributes{DOS: FileAttributeArchive | FileAttributeReadOnly, Perm: 0444, HasUnix: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
			require.NoError(t, os.Chmod(path, tt.perm))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, FileAttributes(info))
		})
	}

	info, err := os.Stat(dir)
	require.NoError(t, err)
	attrs := FileAttributes(info)
	assert.Equal(t, FileAttributeDirectory, attrs.DOS&FileAttributeDirectory)
	assert.Equal(t, HostSystemUNIX, NativeHostSystem())
}
