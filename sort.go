// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipedit

import (
	"cmp"
	"os"
	"slices"
)

// SortStrategy defines the order in which entries are laid out on the next save.
type SortStrategy int

const (
	SortDefault          SortStrategy = iota // Preserve current order
	SortAlphabetical                         // A-Z by name
	SortSizeAscending                        // Smallest first
	SortSizeDescending                       // Largest first
	SortDirectoriesFirst                     // Directories before files, otherwise unchanged
)

// SortEntries reorders the archive. Archive order is the on-disk layout
// order, so the new order takes effect on the next save.
func (a *Archive) SortEntries(strategy SortStrategy) {
	switch strategy {
	case SortAlphabetical:
		a.entries = sortAlphabetical(a.entries)
	case SortSizeAscending:
		a.entries = sortBySize(a.entries, false)
	case SortSizeDescending:
		a.entries = sortBySize(a.entries, true)
	case SortDirectoriesFirst:
		a.entries = partitionStable(a.entries, func(e *Entry) bool { return e.isDir })
	}
}

// partitionStable splits entries into two groups based on the keepFirst condition.
// It preserves the relative order of elements within groups.
func partitionStable(entries []*Entry, keepFirst func(*Entry) bool) []*Entry {
	countFirst := 0
	for _, e := range entries {
		if keepFirst(e) {
			countFirst++
		}
	}

	result := make([]*Entry, len(entries))
	idxFirst, idxSecond := 0, countFirst

	for _, e := range entries {
		if keepFirst(e) {
			result[idxFirst] = e
			idxFirst++
		} else {
			result[idxSecond] = e
			idxSecond++
		}
	}
	return result
}

func sortBySize(entries []*Entry, descending bool) []*Entry {
	sizes := make(map[*Entry]int64, len(entries))
	for _, e := range entries {
		sizes[e] = e.pendingSize()
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(x, y *Entry) int {
		if descending {
			return cmp.Compare(sizes[y], sizes[x])
		}
		return cmp.Compare(sizes[x], sizes[y])
	})
	return sorted
}

// sortAlphabetical sorts entries by name A-Z.
// This naturally groups entries of the same directory together.
func sortAlphabetical(entries []*Entry) []*Entry {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(x, y *Entry) int {
		return cmp.Compare(x.name, y.name)
	})
	return sorted
}

// pendingSize is the uncompressed size the entry will have after the next save.
func (e *Entry) pendingSize() int64 {
	if path, ok := e.PendingPath(); ok {
		if info, err := os.Stat(path); err == nil {
			return info.Size()
		}
	}
	return e.UncompressedSize()
}
