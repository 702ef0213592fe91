// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"fmt"
	"log"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan backend

	"github.com/gogpu/codeskew/backend"
	"github.com/gogpu/codeskew/engine"
)

// GPUDevice owns a HAL instance, device and queue, and exposes them to
// the engine through a HALAdapter.
type GPUDevice struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  *HALAdapter
	external bool
}

var _ backend.Device = (*GPUDevice)(nil)

// NewDevice returns an uninitialized GPU device. Call Init to acquire
// the hardware.
func NewDevice() *GPUDevice {
	return &GPUDevice{}
}

// NewExternalDevice wraps a device owned by a host application. The
// provider must also expose HalDevice() any and HalQueue() any
// returning the underlying hal.Device and hal.Queue; Close leaves the
// host's device alone.
func NewExternalDevice(provider gpucontext.DeviceProvider) (*GPUDevice, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	return &GPUDevice{
		device:   device,
		queue:    queue,
		adapter:  NewHALAdapter(device, queue, nil),
		external: true,
	}, nil
}

func (d *GPUDevice) Name() string { return backend.BackendWGPU }

// Init enumerates adapters on the Vulkan backend and opens the first
// discrete or integrated GPU, falling back to whatever is available.
// On an external device Init is a no-op.
func (d *GPUDevice) Init() error {
	if d.external {
		return nil
	}

	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("wgpu: vulkan backend not available")
	}

	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("wgpu: no GPU adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("wgpu: open device: %w", err)
	}

	log.Printf("wgpu: GPU: %s", selected.Info.Name)

	d.instance = instance
	d.device = open.Device
	d.queue = open.Queue
	d.adapter = NewHALAdapter(open.Device, open.Queue, nil)
	return nil
}

// Close waits for pending work and releases the device and instance.
// Devices adopted from a host provider are not destroyed.
func (d *GPUDevice) Close() {
	if d.adapter != nil {
		d.adapter.WaitIdle()
		d.adapter = nil
	}
	if d.external {
		d.device = nil
		d.queue = nil
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}

// Adapter returns the engine adapter, or nil before Init.
func (d *GPUDevice) Adapter() engine.Adapter {
	if d.adapter == nil {
		return nil
	}
	return d.adapter
}

func init() {
	backend.Register(backend.BackendWGPU, func() backend.Device {
		return NewDevice()
	})
}
