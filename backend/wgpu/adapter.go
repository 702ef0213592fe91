// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package wgpu executes compute passes on a real GPU through
// gogpu/wgpu's hardware abstraction layer.
package wgpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"
	types "github.com/gogpu/gputypes"

	"github.com/gogpu/codeskew/engine"
	"github.com/gogpu/codeskew/shader"
)

// HALAdapter implements engine.Adapter on top of gogpu/wgpu/hal. It
// owns the mapping from engine resource IDs to HAL objects and a
// per-tick command encoder.
//
// HALAdapter is safe for concurrent use; all resource tables are
// guarded by a mutex.
type HALAdapter struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue
	limits types.Limits

	nextID atomic.Uint64

	buffers   map[engine.BufferID]hal.Buffer
	textures  map[engine.TextureID]hal.Texture
	texSizes  map[engine.TextureID][2]uint32
	modules   map[engine.ModuleID]hal.ShaderModule
	layouts   map[engine.LayoutID]hal.BindGroupLayout
	playouts  map[engine.PipelineLayoutID]hal.PipelineLayout
	pipelines map[engine.PipelineID]hal.ComputePipeline
	groups    map[engine.GroupID]hal.BindGroup

	encoder    hal.CommandEncoder
	hasEncoder bool
}

var _ engine.Adapter = (*HALAdapter)(nil)

// NewHALAdapter wraps an open device and its queue. If limits is nil,
// default limits are assumed.
func NewHALAdapter(device hal.Device, queue hal.Queue, limits *types.Limits) *HALAdapter {
	var lim types.Limits
	if limits != nil {
		lim = *limits
	} else {
		lim = types.DefaultLimits()
	}

	a := &HALAdapter{
		device:    device,
		queue:     queue,
		limits:    lim,
		buffers:   make(map[engine.BufferID]hal.Buffer),
		textures:  make(map[engine.TextureID]hal.Texture),
		texSizes:  make(map[engine.TextureID][2]uint32),
		modules:   make(map[engine.ModuleID]hal.ShaderModule),
		layouts:   make(map[engine.LayoutID]hal.BindGroupLayout),
		playouts:  make(map[engine.PipelineLayoutID]hal.PipelineLayout),
		pipelines: make(map[engine.PipelineID]hal.ComputePipeline),
		groups:    make(map[engine.GroupID]hal.BindGroup),
	}
	a.nextID.Store(1)
	return a
}

func (a *HALAdapter) newID() uint64 {
	return a.nextID.Add(1) - 1
}

// MaxWorkgroupSize returns the device's workgroup size limits.
func (a *HALAdapter) MaxWorkgroupSize() [3]uint32 {
	return [3]uint32{
		a.limits.MaxComputeWorkgroupSizeX,
		a.limits.MaxComputeWorkgroupSizeY,
		a.limits.MaxComputeWorkgroupSizeZ,
	}
}

func (a *HALAdapter) CreateShaderModule(spirv []uint32, label string) (engine.ModuleID, error) {
	if len(spirv) == 0 {
		return engine.InvalidID, fmt.Errorf("wgpu: empty SPIR-V bytecode")
	}

	module, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirv,
		},
	})
	if err != nil {
		return engine.InvalidID, fmt.Errorf("wgpu: create shader module: %w", err)
	}

	id := engine.ModuleID(a.newID())
	a.mu.Lock()
	a.modules[id] = module
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyShaderModule(id engine.ModuleID) {
	a.mu.Lock()
	module, ok := a.modules[id]
	if ok {
		delete(a.modules, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyShaderModule(module)
	}
}

func (a *HALAdapter) CreateBuffer(size uint64, usage engine.BufferUsage) (engine.BufferID, error) {
	if size == 0 {
		return engine.InvalidID, fmt.Errorf("wgpu: buffer size must be positive")
	}

	buffer, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "",
		Size:  size,
		Usage: convertBufferUsage(usage),
	})
	if err != nil {
		return engine.InvalidID, fmt.Errorf("wgpu: create buffer: %w", err)
	}

	id := engine.BufferID(a.newID())
	a.mu.Lock()
	a.buffers[id] = buffer
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyBuffer(id engine.BufferID) {
	a.mu.Lock()
	buffer, ok := a.buffers[id]
	if ok {
		delete(a.buffers, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyBuffer(buffer)
	}
}

func (a *HALAdapter) WriteBuffer(id engine.BufferID, offset uint64, data []byte) {
	a.mu.RLock()
	buffer, ok := a.buffers[id]
	a.mu.RUnlock()

	if ok && len(data) > 0 {
		a.queue.WriteBuffer(buffer, offset, data)
	}
}

// ReadBuffer copies a buffer range to a mapped staging buffer and waits
// for the copy to land.
func (a *HALAdapter) ReadBuffer(id engine.BufferID, offset, size uint64) ([]byte, error) {
	a.mu.RLock()
	buffer, ok := a.buffers[id]
	a.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("wgpu: buffer %d not found", id)
	}

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label:            "staging-readback",
		Size:             size,
		Usage:            types.BufferUsageMapRead | types.BufferUsageCopyDst,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "buffer-read-encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("buffer-read"); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(buffer, staging, []hal.BufferCopy{
		{SrcOffset: offset, DstOffset: 0, Size: size},
	})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer cmd.Destroy()

	fence, err := a.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		return nil, fmt.Errorf("wgpu: submit: %w", err)
	}
	if _, err := a.device.Wait(fence, 1, 5_000_000_000); err != nil {
		return nil, fmt.Errorf("wgpu: wait for fence: %w", err)
	}

	// TODO: copy out of the mapped staging range once hal exposes
	// buffer mapping.
	return make([]byte, size), nil
}

func (a *HALAdapter) CreateTexture(width, height uint32, format engine.TextureFormat) (engine.TextureID, error) {
	if width == 0 || height == 0 {
		return engine.InvalidID, fmt.Errorf("wgpu: texture dimensions must be positive")
	}

	texture, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label: "",
		Size: hal.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     types.TextureDimension2D,
		Format:        convertTextureFormat(format),
		Usage:         types.TextureUsageCopySrc | types.TextureUsageCopyDst | types.TextureUsageStorageBinding,
	})
	if err != nil {
		return engine.InvalidID, fmt.Errorf("wgpu: create texture: %w", err)
	}

	id := engine.TextureID(a.newID())
	a.mu.Lock()
	a.textures[id] = texture
	a.texSizes[id] = [2]uint32{width, height}
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyTexture(id engine.TextureID) {
	a.mu.Lock()
	texture, ok := a.textures[id]
	if ok {
		delete(a.textures, id)
		delete(a.texSizes, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyTexture(texture)
	}
}

func (a *HALAdapter) ReadTexture(id engine.TextureID, width, height uint32) ([]byte, error) {
	a.mu.RLock()
	_, ok := a.textures[id]
	a.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("wgpu: texture %d not found", id)
	}

	// Texture readback needs hal buffer mapping, same as ReadBuffer.
	return nil, fmt.Errorf("wgpu: texture readback not supported by hal yet")
}

func (a *HALAdapter) CreateBindGroupLayout(entries []engine.LayoutEntry) (engine.LayoutID, error) {
	halEntries := make([]types.BindGroupLayoutEntry, len(entries))
	for i, e := range entries {
		halEntries[i] = convertLayoutEntry(e)
	}

	layout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "codeskew",
		Entries: halEntries,
	})
	if err != nil {
		return engine.InvalidID, fmt.Errorf("wgpu: create bind group layout: %w", err)
	}

	id := engine.LayoutID(a.newID())
	a.mu.Lock()
	a.layouts[id] = layout
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyBindGroupLayout(id engine.LayoutID) {
	a.mu.Lock()
	layout, ok := a.layouts[id]
	if ok {
		delete(a.layouts, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyBindGroupLayout(layout)
	}
}

func (a *HALAdapter) CreatePipelineLayout(layouts []engine.LayoutID) (engine.PipelineLayoutID, error) {
	a.mu.RLock()
	halLayouts := make([]hal.BindGroupLayout, len(layouts))
	for i, id := range layouts {
		layout, ok := a.layouts[id]
		if !ok {
			a.mu.RUnlock()
			return engine.InvalidID, fmt.Errorf("wgpu: bind group layout %d not found", id)
		}
		halLayouts[i] = layout
	}
	a.mu.RUnlock()

	playout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "",
		BindGroupLayouts: halLayouts,
	})
	if err != nil {
		return engine.InvalidID, fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}

	id := engine.PipelineLayoutID(a.newID())
	a.mu.Lock()
	a.playouts[id] = playout
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyPipelineLayout(id engine.PipelineLayoutID) {
	a.mu.Lock()
	playout, ok := a.playouts[id]
	if ok {
		delete(a.playouts, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyPipelineLayout(playout)
	}
}

func (a *HALAdapter) CreateComputePipeline(layout engine.PipelineLayoutID, module engine.ModuleID, entryPoint string) (engine.PipelineID, error) {
	a.mu.RLock()
	playout, layoutOK := a.playouts[layout]
	halModule, moduleOK := a.modules[module]
	a.mu.RUnlock()

	if !layoutOK {
		return engine.InvalidID, fmt.Errorf("wgpu: pipeline layout %d not found", layout)
	}
	if !moduleOK {
		return engine.InvalidID, fmt.Errorf("wgpu: shader module %d not found", module)
	}

	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  entryPoint,
		Layout: playout,
		Compute: hal.ComputeState{
			Module:     halModule,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		return engine.InvalidID, fmt.Errorf("wgpu: create compute pipeline %q: %w", entryPoint, err)
	}

	id := engine.PipelineID(a.newID())
	a.mu.Lock()
	a.pipelines[id] = pipeline
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyComputePipeline(id engine.PipelineID) {
	a.mu.Lock()
	pipeline, ok := a.pipelines[id]
	if ok {
		delete(a.pipelines, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyComputePipeline(pipeline)
	}
}

func (a *HALAdapter) CreateBindGroup(layout engine.LayoutID, entries []engine.GroupEntry) (engine.GroupID, error) {
	a.mu.RLock()
	halLayout, ok := a.layouts[layout]
	if !ok {
		a.mu.RUnlock()
		return engine.InvalidID, fmt.Errorf("wgpu: bind group layout %d not found", layout)
	}

	halEntries := make([]types.BindGroupEntry, len(entries))
	for i, e := range entries {
		halEntry, err := a.convertGroupEntry(e)
		if err != nil {
			a.mu.RUnlock()
			return engine.InvalidID, fmt.Errorf("wgpu: bind group entry %d: %w", e.Binding, err)
		}
		halEntries[i] = halEntry
	}
	a.mu.RUnlock()

	group, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "",
		Layout:  halLayout,
		Entries: halEntries,
	})
	if err != nil {
		return engine.InvalidID, fmt.Errorf("wgpu: create bind group: %w", err)
	}

	id := engine.GroupID(a.newID())
	a.mu.Lock()
	a.groups[id] = group
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyBindGroup(id engine.GroupID) {
	a.mu.Lock()
	group, ok := a.groups[id]
	if ok {
		delete(a.groups, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyBindGroup(group)
	}
}

// BeginComputePass opens a compute pass on the frame encoder, creating
// the encoder on first use.
func (a *HALAdapter) BeginComputePass() engine.ComputePass {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasEncoder {
		encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
			Label: "compute-encoder",
		})
		if err != nil {
			return &halComputePass{adapter: a}
		}
		if err := encoder.BeginEncoding("compute-pass"); err != nil {
			return &halComputePass{adapter: a}
		}
		a.encoder = encoder
		a.hasEncoder = true
	}

	pass := a.encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: "compute",
	})
	return &halComputePass{adapter: a, pass: pass}
}

// Submit finishes the frame encoder and hands it to the queue.
func (a *HALAdapter) Submit() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hasEncoder || a.encoder == nil {
		return
	}

	cmd, err := a.encoder.EndEncoding()
	if err != nil {
		a.encoder = nil
		a.hasEncoder = false
		return
	}

	// Fire and forget; WaitIdle fences when the caller needs ordering.
	_ = a.queue.Submit([]hal.CommandBuffer{cmd}, nil, 0)

	cmd.Destroy()
	a.encoder = nil
	a.hasEncoder = false
}

// WaitIdle flushes pending work and blocks until the GPU catches up.
func (a *HALAdapter) WaitIdle() {
	a.Submit()

	fence, err := a.device.CreateFence()
	if err != nil {
		return
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit(nil, fence, 1); err != nil {
		return
	}
	_, _ = a.device.Wait(fence, 1, 5_000_000_000)
}

func convertBufferUsage(usage engine.BufferUsage) types.BufferUsage {
	var result types.BufferUsage
	if usage&engine.BufferUsageStorage != 0 {
		result |= types.BufferUsageStorage
	}
	if usage&engine.BufferUsageUniform != 0 {
		result |= types.BufferUsageUniform
	}
	if usage&engine.BufferUsageCopySrc != 0 {
		result |= types.BufferUsageCopySrc
	}
	if usage&engine.BufferUsageCopyDst != 0 {
		result |= types.BufferUsageCopyDst
	}
	return result
}

func convertTextureFormat(format engine.TextureFormat) types.TextureFormat {
	switch format {
	case engine.TextureFormatRGBA8Unorm:
		return types.TextureFormatRGBA8Unorm
	default:
		return types.TextureFormatRGBA8Unorm
	}
}

func convertLayoutEntry(e engine.LayoutEntry) types.BindGroupLayoutEntry {
	result := types.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: types.ShaderStageCompute,
	}

	switch {
	case e.Kind == shader.KindStorageTexture:
		result.Storage = &types.StorageTextureBindingLayout{
			Access:        types.StorageTextureAccessReadWrite,
			Format:        types.TextureFormatRGBA8Unorm,
			ViewDimension: types.TextureViewDimension2D,
		}
	case e.Kind == shader.KindUniform:
		result.Buffer = &types.BufferBindingLayout{
			Type:           types.BufferBindingTypeUniform,
			MinBindingSize: e.MinSize,
		}
	case e.ReadOnly:
		result.Buffer = &types.BufferBindingLayout{
			Type:           types.BufferBindingTypeReadOnlyStorage,
			MinBindingSize: e.MinSize,
		}
	default:
		result.Buffer = &types.BufferBindingLayout{
			Type:           types.BufferBindingTypeStorage,
			MinBindingSize: e.MinSize,
		}
	}
	return result
}

// convertGroupEntry resolves an engine entry to a HAL binding. Must be
// called with mu held for reading.
func (a *HALAdapter) convertGroupEntry(e engine.GroupEntry) (types.BindGroupEntry, error) {
	result := types.BindGroupEntry{
		Binding: e.Binding,
	}

	if e.Buffer != engine.InvalidID {
		if _, ok := a.buffers[e.Buffer]; !ok {
			return result, fmt.Errorf("buffer %d not found", e.Buffer)
		}
		result.Resource = types.BufferBinding{
			Buffer: uintptr(e.Buffer),
			Offset: 0,
			Size:   e.Size,
		}
	} else if e.Texture != engine.InvalidID {
		if _, ok := a.textures[e.Texture]; !ok {
			return result, fmt.Errorf("texture %d not found", e.Texture)
		}
		result.Resource = types.TextureViewBinding{
			TextureView: uintptr(e.Texture),
		}
	}
	return result, nil
}

// halComputePass implements engine.ComputePass over a HAL pass encoder.
// A nil pass (encoder creation failed) degrades to no-ops.
type halComputePass struct {
	adapter *HALAdapter
	pass    hal.ComputePassEncoder
}

func (p *halComputePass) SetPipeline(id engine.PipelineID) {
	if p.pass == nil {
		return
	}
	p.adapter.mu.RLock()
	pipeline, ok := p.adapter.pipelines[id]
	p.adapter.mu.RUnlock()
	if ok {
		p.pass.SetPipeline(pipeline)
	}
}

func (p *halComputePass) SetBindGroup(index uint32, id engine.GroupID) {
	if p.pass == nil {
		return
	}
	p.adapter.mu.RLock()
	group, ok := p.adapter.groups[id]
	p.adapter.mu.RUnlock()
	if ok {
		p.pass.SetBindGroup(index, group, nil)
	}
}

func (p *halComputePass) Dispatch(x, y, z uint32) {
	if p.pass == nil {
		return
	}
	p.pass.Dispatch(x, y, z)
}

func (p *halComputePass) End() {
	if p.pass == nil {
		return
	}
	p.pass.End()
}
