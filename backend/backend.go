// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"

	"github.com/gogpu/codeskew/engine"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend names.
const (
	BackendWGPU = "wgpu"
	BackendNull = "null"
)

// Device is one shader execution backend. Implementations register
// themselves via Register, typically from an init function, and are
// selected by name or through Default.
type Device interface {
	// Name returns the backend identifier (e.g. "wgpu", "null").
	Name() string

	// Init acquires the underlying device. It must be called before
	// Adapter and may fail when the platform lacks GPU support.
	Init() error

	// Close releases the device. The Device must not be used after
	// Close is called.
	Close()

	// Adapter returns the engine execution adapter, or nil before Init.
	Adapter() engine.Adapter
}

// NullDevice executes nothing: buffers live in host memory and
// dispatches are dropped. It backs check-only runs and tests, and is
// the fallback when no GPU backend is available.
type NullDevice struct {
	adapter *engine.NullAdapter
}

// NewNullDevice returns an uninitialized NullDevice.
func NewNullDevice() *NullDevice { return &NullDevice{} }

func (d *NullDevice) Name() string { return BackendNull }

func (d *NullDevice) Init() error {
	d.adapter = engine.NewNullAdapter()
	return nil
}

func (d *NullDevice) Close() { d.adapter = nil }

func (d *NullDevice) Adapter() engine.Adapter {
	if d.adapter == nil {
		return nil
	}
	return d.adapter
}

func init() {
	Register(BackendNull, func() Device { return NewNullDevice() })
}
