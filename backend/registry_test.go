// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/codeskew/engine"
)

// fakeDevice is a registrable test double.
type fakeDevice struct {
	name    string
	initErr error
	inited  bool
	closed  bool
}

func (d *fakeDevice) Name() string { return d.name }
func (d *fakeDevice) Init() error {
	if d.initErr != nil {
		return d.initErr
	}
	d.inited = true
	return nil
}
func (d *fakeDevice) Close() { d.closed = true }
func (d *fakeDevice) Adapter() engine.Adapter {
	if !d.inited {
		return nil
	}
	return engine.NewNullAdapter()
}

func TestRegisterAndGet(t *testing.T) {
	d := &fakeDevice{name: "fake"}
	Register("fake", func() Device { return d })
	defer Unregister("fake")

	if !IsRegistered("fake") {
		t.Error("IsRegistered(fake) = false after Register")
	}
	if got := Get("fake"); got != Device(d) {
		t.Errorf("Get(fake) = %v, want the registered device", got)
	}
	if got := Get("missing"); got != nil {
		t.Errorf("Get(missing) = %v, want nil", got)
	}

	Unregister("fake")
	if IsRegistered("fake") {
		t.Error("IsRegistered(fake) = true after Unregister")
	}
}

func TestNullDeviceRegisteredByDefault(t *testing.T) {
	if !IsRegistered(BackendNull) {
		t.Fatal("null device is not registered")
	}
	d := Get(BackendNull)
	if d == nil {
		t.Fatal("Get(null) = nil")
	}
	if d.Adapter() != nil {
		t.Error("Adapter() before Init is non-nil")
	}
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer d.Close()
	if d.Adapter() == nil {
		t.Error("Adapter() after Init is nil")
	}
}

func TestDefaultPrefersPriorityOrder(t *testing.T) {
	// Without a wgpu registration the default is the null device; with
	// one, it wins.
	if d := Default(); d == nil || d.Name() != BackendNull {
		t.Fatalf("Default() = %v, want the null device", d)
	}

	Register(BackendWGPU, func() Device { return &fakeDevice{name: BackendWGPU} })
	defer Unregister(BackendWGPU)
	if d := Default(); d == nil || d.Name() != BackendWGPU {
		t.Errorf("Default() = %v, want the wgpu registration", d)
	}
}

func TestInitDefaultSkipsFailingDevices(t *testing.T) {
	failing := &fakeDevice{name: BackendWGPU, initErr: errors.New("no vulkan")}
	Register(BackendWGPU, func() Device { return failing })
	defer Unregister(BackendWGPU)

	d, err := InitDefault()
	if err != nil {
		t.Fatalf("InitDefault: %v", err)
	}
	defer d.Close()
	if d.Name() != BackendNull {
		t.Errorf("InitDefault() chose %q, want fallback %q", d.Name(), BackendNull)
	}
	if !failing.closed {
		t.Error("failing device was not closed")
	}
}
