// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sys translates host file metadata into ZIP attribute words.
package sys

// HostSystem is the attribute-compatibility tag stored in the high byte of "version made by".
type HostSystem uint8

// Only MS-DOS and UNIX attribute words are interpreted; every other tag is
// treated as unknown and its attributes are reset to defaults on load.
const (
	HostSystemFAT    HostSystem = 0  // MS-DOS and OS/2 (FAT / VFAT / FAT32 file systems)
	HostSystemUNIX   HostSystem = 3  // UNIX
	HostSystemNTFS   HostSystem = 10 // Windows NTFS
	HostSystemDarwin HostSystem = 19 // OS X (Darwin)
)

func (h HostSystem) String() string {
	switch h {
	case HostSystemFAT:
		return "MS-DOS/OS2 (FAT)"
	case HostSystemUNIX:
		return "UNIX"
	case HostSystemNTFS:
		return "Windows NTFS"
	case HostSystemDarwin:
		return "OS X (Darwin)"
	}
	return "Unknown"
}

// Known reports whether external attributes written under h can be interpreted.
func (h HostSystem) Known() bool {
	return h == HostSystemFAT || h == HostSystemUNIX
}

// Unix constants for file types (standard POSIX)
const (
	S_IFMT  = 0170000 // File type mask
	S_IFREG = 0100000 // Regular file
	S_IFDIR = 0040000 // Directory
	S_IFLNK = 0120000 // Symlink

	PermMask = 07777 // Permission, setuid, setgid and sticky bits
)

// MS-DOS file attributes stored in the low word of the external attributes.
const (
	FileAttributeReadOnly  uint16 = 0x01
	FileAttributeHidden    uint16 = 0x02
	FileAttributeSystem    uint16 = 0x04
	FileAttributeDirectory uint16 = 0x10
	FileAttributeArchive   uint16 = 0x20
	FileAttributeNormal    uint16 = 0x80
)

// Default permissions applied when the archive carries no usable Unix mode.
const (
	DefaultFilePerm = 0644
	DefaultDirPerm  = 0755
)

// Attributes is the normalized attribute set carried by an archive entry.
type Attributes struct {
	DOS     uint16 // platform attribute word
	Perm    uint32 // Unix permission bits, meaningful when HasUnix is set
	HasUnix bool
}

// DefaultAttributes returns the attribute set used when the origin of an entry is unknown.
func DefaultAttributes(isDir bool) Attributes {
	if isDir {
		return Attributes{DOS: FileAttributeDirectory, Perm: DefaultDirPerm}
	}
	return Attributes{DOS: FileAttributeNormal, Perm: DefaultFilePerm}
}

// External packs attrs into the 32-bit external attribute field.
// The Unix half is written only when permission bits are known.
func (a Attributes) External(isDir bool) uint32 {
	ext := uint32(a.DOS)
	if isDir {
		ext |= uint32(FileAttributeDirectory)
	}
	if a.HasUnix {
		mode := a.Perm & PermMask
		if isDir {
			mode |= S_IFDIR
		} else {
			mode |= S_IFREG
		}
		ext |= mode << 16
	}
	return ext
}

// ParseExternal decodes the external attribute word written under host.
// isDir comes from the trailing slash of the entry name and is honored for
// every host; UNIX additionally derives it from the file-type nibble.
func ParseExternal(host HostSystem, ext uint32, isDir bool) (Attributes, bool) {
	var attrs Attributes
	switch host {
	case HostSystemUNIX:
		mode := ext >> 16
		if mode&S_IFMT == S_IFDIR {
			isDir = true
		}
		attrs = Attributes{DOS: uint16(ext), Perm: mode & PermMask, HasUnix: true}
	case HostSystemFAT:
		if uint16(ext)&FileAttributeDirectory != 0 {
			isDir = true
		}
		attrs = Attributes{DOS: uint16(ext)}
	default:
		return DefaultAttributes(isDir), isDir
	}

	// The directory bit is always written back, so keep it in sync on load.
	if isDir {
		attrs.DOS |= FileAttributeDirectory
	}
	return attrs, isDir
}
