// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

var (
	_ fs.FS        = (*archiveFS)(nil)
	_ fs.StatFS    = (*archiveFS)(nil)
	_ fs.ReadDirFS = (*archiveFS)(nil)
)

// FS returns a read-only view of the entries that have data in the archive
// file. Pending updates are not visible until saved.
func (a *Archive) FS() fs.FS {
	return &archiveFS{a: a}
}

type archiveFS struct {
	a *Archive
}

// fsNode is either a real entry or a directory implied by entry names.
type fsNode struct {
	name  string // fs path, no trailing slash
	entry *Entry // nil for implied directories and the root
}

func (n fsNode) isDir() bool { return n.entry == nil || n.entry.isDir }

func (afs *archiveFS) Open(name string) (fs.File, error) {
	node, err := afs.lookup(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if node.isDir() {
		return &fsDir{node: node, afs: afs}, nil
	}

	rc, err := node.entry.Open()
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &fsFile{node: node, rc: rc}, nil
}

func (afs *archiveFS) Stat(name string) (fs.FileInfo, error) {
	node, err := afs.lookup(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return fileInfo{node}, nil
}

func (afs *archiveFS) ReadDir(name string) ([]fs.DirEntry, error) {
	f, err := afs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dir, ok := f.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return dir.ReadDir(-1)
}

// lookup resolves the root, explicit entries and implied directories.
func (afs *archiveFS) lookup(name string) (fsNode, error) {
	if !fs.ValidPath(name) {
		return fsNode{}, fs.ErrInvalid
	}
	if name == "." {
		return fsNode{name: "."}, nil
	}

	prefix := name + "/"
	implied := false
	for _, e := range afs.visible() {
		entryName := strings.TrimSuffix(e.name, "/")
		if entryName == name {
			return fsNode{name: name, entry: e}, nil
		}
		if strings.HasPrefix(e.name, prefix) {
			implied = true
		}
	}
	if implied {
		return fsNode{name: name}, nil
	}
	return fsNode{}, fs.ErrNotExist
}

// visible returns entries that can be read back from the archive file.
func (afs *archiveFS) visible() []*Entry {
	var entries []*Entry
	for _, e := range afs.a.entries {
		if e.HasOriginalData() || e.isDir {
			entries = append(entries, e)
		}
	}
	return entries
}

// fsFile wraps a regular entry to satisfy fs.File.
type fsFile struct {
	node fsNode
	rc   io.ReadCloser
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return fileInfo{f.node}, nil }
func (f *fsFile) Read(b []byte) (int, error) { return f.rc.Read(b) }
func (f *fsFile) Close() error               { return f.rc.Close() }

// fsDir wraps a directory to satisfy fs.ReadDirFile.
type fsDir struct {
	node   fsNode
	afs    *archiveFS
	listed []fs.DirEntry
	offset int
}

func (d *fsDir) Stat() (fs.FileInfo, error) { return fileInfo{d.node}, nil }
func (d *fsDir) Close() error               { return nil }
func (d *fsDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.node.name, Err: fs.ErrInvalid}
}

// ReadDir lists the direct children of the directory in name order.
func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.listed == nil {
		d.listed = d.children()
	}

	rest := d.listed[d.offset:]
	if n <= 0 {
		d.offset = len(d.listed)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return rest[:n], nil
}

func (d *fsDir) children() []fs.DirEntry {
	dirPath := d.node.name + "/"
	if d.node.name == "." {
		dirPath = ""
	}

	index := make(map[string]int)
	var nodes []fsNode

	for _, e := range d.afs.visible() {
		rel, ok := strings.CutPrefix(e.name, dirPath)
		if !ok || rel == "" {
			continue
		}

		childName, nested, _ := strings.Cut(rel, "/")
		i, seen := index[childName]
		if !seen {
			i = len(nodes)
			index[childName] = i
			nodes = append(nodes, fsNode{name: path.Join(d.node.name, childName)})
		}
		// An explicit entry wins over a directory implied by its children.
		if nested == "" {
			nodes[i].entry = e
		}
	}

	slices.SortFunc(nodes, func(x, y fsNode) int {
		return strings.Compare(x.name, y.name)
	})

	entries := make([]fs.DirEntry, len(nodes))
	for i, n := range nodes {
		entries[i] = fs.FileInfoToDirEntry(fileInfo{n})
	}
	return entries
}

type fileInfo struct{ n fsNode }

func (i fileInfo) Name() string { return path.Base(i.n.name) }

func (i fileInfo) Size() int64 {
	if i.n.entry == nil {
		return 0
	}
	return i.n.entry.UncompressedSize()
}

func (i fileInfo) Mode() fs.FileMode {
	if i.n.entry == nil {
		return fs.ModeDir | 0755
	}
	return i.n.entry.Mode()
}

func (i fileInfo) ModTime() time.Time {
	if i.n.entry == nil {
		return time.Time{}
	}
	return i.n.entry.ModTime()
}

func (i fileInfo) IsDir() bool { return i.n.isDir() }
func (i fileInfo) Sys() any    { return nil }
