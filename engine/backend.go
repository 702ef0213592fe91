// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"fmt"
	"sync"

	"github.com/gogpu/codeskew/shader"
)

// Validator checks assembled WGSL before an artifact is published.
//
// A nil diagnostic slice with a nil error means the source is valid. A
// non-empty slice means rejection; positions refer to the assembled
// source and are remapped by the engine. A non-nil error reports a
// validator-internal failure and also rejects the build.
type Validator interface {
	Validate(source string) ([]Diagnostic, error)
}

// Compiler translates validated WGSL into SPIR-V words for the Adapter.
type Compiler interface {
	Compile(source string) ([]uint32, error)
}

// Resource handles issued by an Adapter. The zero value is never a live
// resource.
type (
	ModuleID         uint64
	BufferID         uint64
	TextureID        uint64
	LayoutID         uint64
	PipelineLayoutID uint64
	PipelineID       uint64
	GroupID          uint64
)

// InvalidID is the zero resource handle.
const InvalidID = 0

// BufferUsage is a bitmask of buffer capabilities.
type BufferUsage uint32

const (
	BufferUsageStorage BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// TextureFormat selects a texture pixel layout.
type TextureFormat uint32

// TextureFormatRGBA8Unorm matches the screen binding the generated
// prelude declares.
const TextureFormatRGBA8Unorm TextureFormat = iota

// A LayoutEntry describes one binding slot of a bind group layout. All
// slots are visible to compute only.
type LayoutEntry struct {
	Binding  uint32
	Kind     shader.ResourceKind
	MinSize  uint64 // minimum buffer binding size; 0 for textures
	ReadOnly bool   // storage slot the generated code never writes
}

// A GroupEntry binds a concrete resource into a layout slot. Exactly
// one of Buffer and Texture is set.
type GroupEntry struct {
	Binding uint32
	Buffer  BufferID
	Texture TextureID
	Size    uint64
}

// ComputePass records compute commands between BeginComputePass and
// End. Encoders are single-use.
type ComputePass interface {
	SetPipeline(PipelineID)
	SetBindGroup(index uint32, group GroupID)
	Dispatch(x, y, z uint32)
	End()
}

// Adapter abstracts the GPU execution backend. Implementations must be
// safe for concurrent use; the engine calls them from both the compile
// and the tick path.
//
// Resources are created with Create* and released with Destroy*; a
// destroyed handle must not be reused.
type Adapter interface {
	CreateShaderModule(spirv []uint32, label string) (ModuleID, error)
	DestroyShaderModule(ModuleID)

	CreateBuffer(size uint64, usage BufferUsage) (BufferID, error)
	DestroyBuffer(BufferID)
	WriteBuffer(id BufferID, offset uint64, data []byte)
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	CreateTexture(width, height uint32, format TextureFormat) (TextureID, error)
	DestroyTexture(TextureID)
	ReadTexture(id TextureID, width, height uint32) ([]byte, error)

	CreateBindGroupLayout(entries []LayoutEntry) (LayoutID, error)
	DestroyBindGroupLayout(LayoutID)
	CreatePipelineLayout(layouts []LayoutID) (PipelineLayoutID, error)
	DestroyPipelineLayout(PipelineLayoutID)
	CreateComputePipeline(layout PipelineLayoutID, module ModuleID, entryPoint string) (PipelineID, error)
	DestroyComputePipeline(PipelineID)
	CreateBindGroup(layout LayoutID, entries []GroupEntry) (GroupID, error)
	DestroyBindGroup(GroupID)

	BeginComputePass() ComputePass
	Submit()
	WaitIdle()
}

// NullAdapter is an in-memory Adapter. Buffers are byte slices,
// textures are zeroed pixel planes, and dispatch is a no-op. It backs
// headless builds (--check) and tests; reads observe prior writes so
// upload plumbing stays verifiable without a device.
type NullAdapter struct {
	mu       sync.Mutex
	nextID   uint64
	buffers  map[BufferID][]byte
	textures map[TextureID][]byte
}

// NewNullAdapter returns an empty NullAdapter.
func NewNullAdapter() *NullAdapter {
	return &NullAdapter{
		nextID:   1,
		buffers:  make(map[BufferID][]byte),
		textures: make(map[TextureID][]byte),
	}
}

func (n *NullAdapter) newID() uint64 {
	id := n.nextID
	n.nextID++
	return id
}

func (n *NullAdapter) CreateShaderModule(spirv []uint32, label string) (ModuleID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return ModuleID(n.newID()), nil
}

func (n *NullAdapter) DestroyShaderModule(ModuleID) {}

func (n *NullAdapter) CreateBuffer(size uint64, usage BufferUsage) (BufferID, error) {
	if size == 0 {
		return InvalidID, fmt.Errorf("engine: zero-size buffer")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	id := BufferID(n.newID())
	n.buffers[id] = make([]byte, size)
	return id, nil
}

func (n *NullAdapter) DestroyBuffer(id BufferID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.buffers, id)
}

func (n *NullAdapter) WriteBuffer(id BufferID, offset uint64, data []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	buf, ok := n.buffers[id]
	if !ok || offset+uint64(len(data)) > uint64(len(buf)) {
		return
	}
	copy(buf[offset:], data)
}

func (n *NullAdapter) ReadBuffer(id BufferID, offset, size uint64) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	buf, ok := n.buffers[id]
	if !ok {
		return nil, fmt.Errorf("engine: buffer %d not found", id)
	}
	if offset+size > uint64(len(buf)) {
		return nil, fmt.Errorf("engine: read past end of buffer %d", id)
	}
	out := make([]byte, size)
	copy(out, buf[offset:])
	return out, nil
}

func (n *NullAdapter) CreateTexture(width, height uint32, format TextureFormat) (TextureID, error) {
	if width == 0 || height == 0 {
		return InvalidID, fmt.Errorf("engine: zero-size texture")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	id := TextureID(n.newID())
	n.textures[id] = make([]byte, uint64(width)*uint64(height)*4)
	return id, nil
}

func (n *NullAdapter) DestroyTexture(id TextureID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.textures, id)
}

func (n *NullAdapter) ReadTexture(id TextureID, width, height uint32) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pix, ok := n.textures[id]
	if !ok {
		return nil, fmt.Errorf("engine: texture %d not found", id)
	}
	out := make([]byte, len(pix))
	copy(out, pix)
	return out, nil
}

func (n *NullAdapter) CreateBindGroupLayout(entries []LayoutEntry) (LayoutID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return LayoutID(n.newID()), nil
}

func (n *NullAdapter) DestroyBindGroupLayout(LayoutID) {}

func (n *NullAdapter) CreatePipelineLayout(layouts []LayoutID) (PipelineLayoutID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return PipelineLayoutID(n.newID()), nil
}

func (n *NullAdapter) DestroyPipelineLayout(PipelineLayoutID) {}

func (n *NullAdapter) CreateComputePipeline(layout PipelineLayoutID, module ModuleID, entryPoint string) (PipelineID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return PipelineID(n.newID()), nil
}

func (n *NullAdapter) DestroyComputePipeline(PipelineID) {}

func (n *NullAdapter) CreateBindGroup(layout LayoutID, entries []GroupEntry) (GroupID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return GroupID(n.newID()), nil
}

func (n *NullAdapter) DestroyBindGroup(GroupID) {}

func (n *NullAdapter) BeginComputePass() ComputePass { return nullPass{} }

func (n *NullAdapter) Submit() {}

func (n *NullAdapter) WaitIdle() {}

type nullPass struct{}

func (nullPass) SetPipeline(PipelineID)          {}
func (nullPass) SetBindGroup(uint32, GroupID)    {}
func (nullPass) Dispatch(uint32, uint32, uint32) {}
func (nullPass) End()                            {}

var _ Adapter = (*NullAdapter)(nil)

// NullCompiler satisfies Compiler without producing real SPIR-V. Paired
// with NullAdapter for headless runs.
type NullCompiler struct{}

func (NullCompiler) Compile(source string) ([]uint32, error) {
	// A bare SPIR-V header keeps downstream length checks honest.
	return []uint32{0x07230203, 0x00010300, 0, 0, 0}, nil
}

var _ Compiler = NullCompiler{}
