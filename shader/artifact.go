// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import "strings"

// Artifact is one complete preprocessing result awaiting backend
// validation: the final source text, the resolved binding set, assertion
// sites, and the provenance map. Pass scheduling and generation ids are
// layered on by the engine.
type Artifact struct {
	Source       string // hoisted extensions + generated prelude + expanded body
	PreludeLines int    // line count before the expanded body within Source
	Map          SourceMap
	Bindings     []BindingDescriptor
	Asserts      []AssertionSite
	Custom       []UniformSeed
	Data         []DataField
	Directives   []Directive
	Width        uint32
	Height       uint32
	EntryFile    string
}

// Origin maps a line of Source (1-based) back to original input. Lines
// inside the generated header have no user origin and report the
// synthetic "<prelude>" file.
func (a *Artifact) Origin(line int) Origin {
	if line <= a.PreludeLines {
		return Origin{File: "<prelude>", Line: line}
	}
	if o, ok := a.Map.Lookup(line - a.PreludeLines); ok {
		return o
	}
	return Origin{File: a.EntryFile}
}

// Descriptor returns the binding descriptor with the given name.
func (a *Artifact) Descriptor(name string) (BindingDescriptor, bool) {
	for _, d := range a.Bindings {
		if d.Name == name {
			return d, true
		}
	}
	return BindingDescriptor{}, false
}

// BuildConfig parameterizes Build.
type BuildConfig struct {
	Loader   Loader // quoted-include resolution; nil rejects quoted includes
	Width    uint32
	Height   uint32
	Uniforms []UniformSeed // host-seeded custom scalar uniforms
}

// Build runs the full preprocessing pipeline: expansion, symbol
// resolution, and prelude generation. It does not talk to any backend;
// validation and scheduling happen in the engine, which publishes the
// artifact only after both succeed.
func Build(entry SourceUnit, cfg BuildConfig) (*Artifact, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = DefaultWidth, DefaultHeight
	}
	pp := NewPreprocessor(Config{Loader: cfg.Loader, Width: cfg.Width, Height: cfg.Height})
	ex, err := pp.Expand(entry)
	if err != nil {
		return nil, err
	}
	st, err := Resolve(ex, ResolveConfig{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Uniforms: cfg.Uniforms,
	})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, ext := range ex.Extensions {
		b.WriteString(ext)
		b.WriteString("\n")
	}
	b.WriteString(GeneratePrelude(st))
	b.WriteString("\n")
	preludeLines := strings.Count(b.String(), "\n")
	b.WriteString(ex.Source)

	return &Artifact{
		Source:       b.String(),
		PreludeLines: preludeLines,
		Map:          ex.Map,
		Bindings:     st.Bindings,
		Asserts:      st.Asserts,
		Custom:       st.Custom,
		Data:         st.Data,
		Directives:   ex.Directives,
		Width:        st.Width,
		Height:       st.Height,
		EntryFile:    entry.Path,
	}, nil
}
