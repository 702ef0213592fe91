// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"embed"
	"io/fs"
	"sort"
)

// SourceUnit is one loadable template file, either the entry template or
// an include. Units are immutable once read.
type SourceUnit struct {
	Path string // virtual path, used in diagnostics and cycle detection
	Text string
}

// Loader resolves quoted include paths to source units. Virtual std/
// includes never reach the loader.
type Loader interface {
	Load(path string) (SourceUnit, error)
}

// FSLoader loads quoted includes from an fs.FS, typically rooted at the
// entry template's directory.
type FSLoader struct {
	FS fs.FS
}

func (l FSLoader) Load(path string) (SourceUnit, error) {
	b, err := fs.ReadFile(l.FS, path)
	if err != nil {
		return SourceUnit{}, err
	}
	return SourceUnit{Path: path, Text: string(b)}, nil
}

//go:embed std/*.wgsl
var stdFS embed.FS

// stdUnitString is the virtual path whose inclusion switches on string
// literal expansion.
const stdUnitString = "std/string"

// loadStd resolves a virtual include path against the bundled std
// namespace.
func loadStd(path string) (SourceUnit, bool) {
	b, err := stdFS.ReadFile(path + ".wgsl")
	if err != nil {
		return SourceUnit{}, false
	}
	return SourceUnit{Path: path, Text: string(b)}, true
}

// StdUnits lists the bundled virtual include paths in sorted order.
func StdUnits() []string {
	entries, err := stdFS.ReadDir("std")
	if err != nil {
		return nil
	}
	units := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		units = append(units, "std/"+name[:len(name)-len(".wgsl")])
	}
	sort.Strings(units)
	return units
}
