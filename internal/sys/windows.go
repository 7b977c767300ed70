//go:build windows

// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sys

import (
	"io/fs"
	"syscall"
)

// NativeHostSystem is the compatibility tag written for entries created on this OS.
func NativeHostSystem() HostSystem {
	return HostSystemFAT
}

// FileAttributes reports the ZIP attributes of a file on disk.
// Windows exposes no Unix permission bits, so only the platform word is set.
func FileAttributes(info fs.FileInfo) Attributes {
	if s, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		return Attributes{DOS: uint16(s.FileAttributes)}
	}

	dos := FileAttributeArchive
	if info.IsDir() {
		dos = FileAttributeDirectory
	}
	if info.Mode().Perm()&0200 == 0 {
		dos |= FileAttributeReadOnly
	}
	return Attributes{DOS: dos}
}
