// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import "sort"

// A MapEntry records provenance for a contiguous run of expanded lines.
// Expanded line k within [Start, End] originates at Origin+(k-Start) in
// File.
type MapEntry struct {
	Start  int // first expanded line covered, 1-based
	End    int // last expanded line covered, inclusive
	File   string
	Origin int // origin line of Start, 1-based
}

// A SourceMap maps expanded line numbers back to their origin. Entries
// are appended in expansion order and cover the expanded text totally and
// without overlap; every origin transition starts a new entry.
type SourceMap struct {
	entries []MapEntry
}

// add records that expanded line (1-based) originates at file:origin.
// Consecutive lines from the same file extend the current entry.
func (m *SourceMap) add(expanded int, file string, origin int) {
	if n := len(m.entries); n > 0 {
		last := &m.entries[n-1]
		if last.File == file && expanded == last.End+1 && origin == last.Origin+(expanded-last.Start) {
			last.End = expanded
			return
		}
	}
	m.entries = append(m.entries, MapEntry{
		Start:  expanded,
		End:    expanded,
		File:   file,
		Origin: origin,
	})
}

// Lookup resolves an expanded line number (1-based) to its origin.
func (m *SourceMap) Lookup(line int) (Origin, bool) {
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].End >= line
	})
	if i == len(m.entries) || m.entries[i].Start > line {
		return Origin{}, false
	}
	e := m.entries[i]
	return Origin{File: e.File, Line: e.Origin + (line - e.Start)}, true
}

// Entries returns the map's entries in expansion order. The returned
// slice is owned by the map and must not be modified.
func (m *SourceMap) Entries() []MapEntry { return m.entries }

// Len reports the number of entries.
func (m *SourceMap) Len() int { return len(m.entries) }
