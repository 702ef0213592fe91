// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"fmt"

	"github.com/gogpu/codeskew/shader"
)

// layoutEntries translates the artifact's descriptors into the bind
// group layout request. MinSize repeats each descriptor's padded byte
// size so a size drift between codegen and allocation fails at layout
// creation, not at dispatch.
func layoutEntries(bindings []shader.BindingDescriptor) []LayoutEntry {
	entries := make([]LayoutEntry, 0, len(bindings))
	for _, d := range bindings {
		e := LayoutEntry{Binding: d.Binding, Kind: d.Kind}
		if d.Kind != shader.KindStorageTexture {
			e.MinSize = uint64(d.Size)
		}
		// The generated header declares pass_in and #data blocks with
		// read access; the layout has to agree.
		if d.Kind == shader.KindData || d.Name == shader.NamePassIn {
			e.ReadOnly = true
		}
		entries = append(entries, e)
	}
	return entries
}

// bufferUsage selects allocation flags per resource kind. Storage-class
// buffers carry CopySrc so hosts can read accumulated state back.
func bufferUsage(kind shader.ResourceKind) BufferUsage {
	switch kind {
	case shader.KindUniform:
		return BufferUsageUniform | BufferUsageCopyDst
	case shader.KindData:
		return BufferUsageStorage | BufferUsageCopyDst
	case shader.KindAssertCounter:
		return BufferUsageStorage | BufferUsageCopySrc | BufferUsageCopyDst
	default:
		return BufferUsageStorage | BufferUsageCopySrc | BufferUsageCopyDst
	}
}

// resourceKey identifies a reusable buffer across artifact generations.
// Two generations share a handle only when name, kind, size, and fixed
// initial contents all match; anything else reallocates.
type resourceKey struct {
	name string
	kind shader.ResourceKind
	size uint32
	init string
}

func keyFor(d shader.BindingDescriptor) resourceKey {
	return resourceKey{name: d.Name, kind: d.Kind, size: d.Size, init: string(d.Init)}
}

// resources is the realized GPU state of one artifact generation.
type resources struct {
	screen  TextureID
	buffers map[string]BufferID // keyed by descriptor name; the pass pair under pass_in/pass_out
	module  ModuleID
	layout  LayoutID
	playout PipelineLayoutID

	pipelines map[string]PipelineID // keyed by entry point

	// groups holds the two tick-parity bind groups: index 0 reads the
	// even pass buffer and writes the odd one, index 1 the reverse.
	groups [2]GroupID

	// Handles taken over from the previous generation. They are skipped
	// when this generation is released on a failed build (the previous
	// artifact still owns them) and protected when the previous
	// generation retires.
	inheritedBuffers  map[BufferID]bool
	inheritedTextures map[TextureID]bool
}

// release destroys every resource this generation owns, skipping the
// given keep sets. Bind groups go first so no destroyed buffer is still
// referenced by a live group.
func (r *resources) release(ad Adapter, keepBuffers map[BufferID]bool, keepTextures map[TextureID]bool) {
	if r == nil {
		return
	}
	for _, g := range r.groups {
		if g != InvalidID {
			ad.DestroyBindGroup(g)
		}
	}
	for _, p := range r.pipelines {
		ad.DestroyComputePipeline(p)
	}
	if r.playout != InvalidID {
		ad.DestroyPipelineLayout(r.playout)
	}
	if r.layout != InvalidID {
		ad.DestroyBindGroupLayout(r.layout)
	}
	if r.module != InvalidID {
		ad.DestroyShaderModule(r.module)
	}
	for _, id := range r.buffers {
		if id != InvalidID && !keepBuffers[id] {
			ad.DestroyBuffer(id)
		}
	}
	if r.screen != InvalidID && !keepTextures[r.screen] {
		ad.DestroyTexture(r.screen)
	}
}

// realize allocates the artifact's GPU resources, reusing unchanged
// buffers from the previous generation. On error everything newly
// allocated is released and the previous generation is untouched.
func realize(ad Adapter, comp Compiler, a *shader.Artifact, passes []Pass, prev *resources, prevBindings []shader.BindingDescriptor) (*resources, error) {
	res := &resources{
		buffers:           make(map[string]BufferID),
		pipelines:         make(map[string]PipelineID),
		inheritedBuffers:  make(map[BufferID]bool),
		inheritedTextures: make(map[TextureID]bool),
	}
	fail := func(err error) (*resources, error) {
		res.release(ad, res.inheritedBuffers, res.inheritedTextures)
		return nil, err
	}

	// Index the previous generation's buffers by content key. A key is
	// consumed on first reuse so two descriptors never share a handle.
	prevByKey := make(map[resourceKey]BufferID)
	var prevScreenKey resourceKey
	if prev != nil {
		for _, d := range prevBindings {
			if d.Kind == shader.KindStorageTexture {
				prevScreenKey = keyFor(d)
				continue
			}
			if id, ok := prev.buffers[d.Name]; ok {
				prevByKey[keyFor(d)] = id
			}
		}
	}

	realized := make(map[string]uint64)
	for _, d := range a.Bindings {
		switch {
		case d.Kind == shader.KindStorageTexture:
			if prev != nil && prev.screen != InvalidID && prevScreenKey == keyFor(d) {
				res.screen = prev.screen
				res.inheritedTextures[prev.screen] = true
				break
			}
			tex, err := ad.CreateTexture(a.Width, a.Height, TextureFormatRGBA8Unorm)
			if err != nil {
				return fail(fmt.Errorf("engine: screen texture: %w", err))
			}
			res.screen = tex

		case d.Name == shader.NamePassOut:
			// Allocated with pass_in as a pair below.

		case d.Name == shader.NamePassIn:
			for _, name := range []string{shader.NamePassIn, shader.NamePassOut} {
				key := keyFor(d)
				key.name = name
				id, err := takeOrCreate(ad, prevByKey, key, d, res)
				if err != nil {
					return fail(err)
				}
				res.buffers[name] = id
				realized[name] = uint64(d.Size)
			}

		default:
			id, err := takeOrCreate(ad, prevByKey, keyFor(d), d, res)
			if err != nil {
				return fail(err)
			}
			res.buffers[d.Name] = id
			realized[d.Name] = uint64(d.Size)
		}
	}

	if err := verifyPlan(a.Bindings, realized); err != nil {
		return fail(err)
	}

	spirv, err := comp.Compile(a.Source)
	if err != nil {
		return fail(fmt.Errorf("engine: spir-v translation: %w", err))
	}
	module, err := ad.CreateShaderModule(spirv, "codeskew")
	if err != nil {
		return fail(fmt.Errorf("engine: shader module: %w", err))
	}
	res.module = module

	layout, err := ad.CreateBindGroupLayout(layoutEntries(a.Bindings))
	if err != nil {
		return fail(fmt.Errorf("engine: bind group layout: %w", err))
	}
	res.layout = layout

	playout, err := ad.CreatePipelineLayout([]LayoutID{layout})
	if err != nil {
		return fail(fmt.Errorf("engine: pipeline layout: %w", err))
	}
	res.playout = playout

	for _, p := range passes {
		pipe, err := ad.CreateComputePipeline(playout, module, p.Name)
		if err != nil {
			return fail(fmt.Errorf("engine: pipeline %q: %w", p.Name, err))
		}
		res.pipelines[p.Name] = pipe
	}

	for parity := 0; parity < 2; parity++ {
		group, err := ad.CreateBindGroup(layout, groupEntries(a.Bindings, res, parity))
		if err != nil {
			return fail(fmt.Errorf("engine: bind group (parity %d): %w", parity, err))
		}
		res.groups[parity] = group
	}

	return res, nil
}

// takeOrCreate reuses a previous-generation buffer when the content key
// matches, otherwise allocates and initializes a fresh one.
func takeOrCreate(ad Adapter, prevByKey map[resourceKey]BufferID, key resourceKey, d shader.BindingDescriptor, res *resources) (BufferID, error) {
	if id, ok := prevByKey[key]; ok {
		delete(prevByKey, key)
		res.inheritedBuffers[id] = true
		slogger().Debug("buffer reused across generations", "name", key.name, "size", key.size)
		return id, nil
	}
	id, err := ad.CreateBuffer(uint64(d.Size), bufferUsage(d.Kind))
	if err != nil {
		return InvalidID, fmt.Errorf("engine: buffer %q: %w", key.name, err)
	}
	init := d.Init
	if init == nil {
		// Fresh storage starts zeroed regardless of backend behavior.
		init = make([]byte, d.Size)
	}
	ad.WriteBuffer(id, 0, init)
	return id, nil
}

// verifyPlan confirms every buffer descriptor was realized at exactly
// the byte size the generated code assumes.
func verifyPlan(bindings []shader.BindingDescriptor, realized map[string]uint64) error {
	for _, d := range bindings {
		if d.Kind == shader.KindStorageTexture {
			continue
		}
		got, ok := realized[d.Name]
		if !ok {
			return fmt.Errorf("engine: resource %q was never realized", d.Name)
		}
		if got != uint64(d.Size) {
			return fmt.Errorf("engine: resource %q realized at %d bytes, generated code assumes %d",
				d.Name, got, d.Size)
		}
	}
	return nil
}

// groupEntries builds the bind group for one tick parity. Parity 0
// exposes the even pass buffer as pass_in and the odd one as pass_out;
// parity 1 swaps the pair. Everything else binds identically.
func groupEntries(bindings []shader.BindingDescriptor, res *resources, parity int) []GroupEntry {
	in, out := res.buffers[shader.NamePassIn], res.buffers[shader.NamePassOut]
	if parity == 1 {
		in, out = out, in
	}
	entries := make([]GroupEntry, 0, len(bindings))
	for _, d := range bindings {
		e := GroupEntry{Binding: d.Binding, Size: uint64(d.Size)}
		switch {
		case d.Kind == shader.KindStorageTexture:
			e.Texture = res.screen
			e.Size = 0
		case d.Name == shader.NamePassIn:
			e.Buffer = in
		case d.Name == shader.NamePassOut:
			e.Buffer = out
		default:
			e.Buffer = res.buffers[d.Name]
		}
		entries = append(entries, e)
	}
	return entries
}
