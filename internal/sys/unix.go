//go:build !windows

// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sys

import "io/fs"

// NativeHostSystem is the compatibility tag written for entries created on this OS.
func NativeHostSystem() HostSystem {
	return HostSystemUNIX
}

// FileAttributes reports the ZIP attributes of a file on disk.
// On Unix the permission bits are always known.
func FileAttributes(info fs.FileInfo) Attributes {
	mode := info.Mode()

	dos := FileAttributeArchive
	if mode.IsDir() {
		dos = FileAttributeDirectory
	}
	if mode.Perm()&0200 == 0 {
		dos |= FileAttributeReadOnly
	}

	perm := uint32(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		perm |= 04000
	}
	if mode&fs.ModeSetgid != 0 {
		perm |= 02000
	}
	if mode&fs.ModeSticky != 0 {
		perm |= 01000
	}

	return Attributes{DOS: dos, Perm: perm, HasUnix: true}
}
