// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"
)

func resolve(t *testing.T, src string, cfg ResolveConfig) *SymbolTable {
	t.Helper()
	ex := expand(t, Config{Width: cfg.Width, Height: cfg.Height}, src)
	st, err := Resolve(ex, cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return st
}

func resolveErr(t *testing.T, src string, cfg ResolveConfig) error {
	t.Helper()
	ex := expand(t, Config{Width: cfg.Width, Height: cfg.Height}, src)
	_, err := Resolve(ex, cfg)
	if err == nil {
		t.Fatal("Resolve() succeeded, want error")
	}
	return err
}

func TestResolveBuiltinSlots(t *testing.T) {
	st := resolve(t, "#storage grid array<u32, 16>\n#storage accum f32\n", ResolveConfig{})

	wantSlots := map[string]uint32{
		NameScreen:   0,
		NameTime:     1,
		NameMouse:    2,
		NameKeyboard: 3,
		NameDispatch: 4,
		NamePassIn:   7,
		NamePassOut:  8,
		"grid":       10,
		"accum":      11,
	}
	for name, slot := range wantSlots {
		d, ok := st.Descriptor(name)
		if !ok {
			t.Errorf("Descriptor(%q) missing", name)
			continue
		}
		if d.Group != 0 || d.Binding != slot {
			t.Errorf("%s at (%d,%d), want (0,%d)", name, d.Group, d.Binding, slot)
		}
	}
	// Optional slots stay absent rather than shifting user bindings.
	for _, name := range []string{NameCustom, NameData, NameAssertCounts} {
		if _, ok := st.Descriptor(name); ok {
			t.Errorf("Descriptor(%q) present without a declaration", name)
		}
	}

	seen := make(map[[2]uint32]string)
	for _, d := range st.Bindings {
		key := [2]uint32{d.Group, d.Binding}
		if prev, dup := seen[key]; dup {
			t.Errorf("slot (%d,%d) assigned to both %s and %s", d.Group, d.Binding, prev, d.Name)
		}
		seen[key] = d.Name
	}
}

func TestResolveStoragePadding(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		size uint32
	}{
		{"scalar pads to 16", "f32", 16},
		{"vec3 pads to 16", "vec3<f32>", 16},
		{"array pads up", "array<f32, 5>", 32},
		{"matrix already aligned", "mat3x3<f32>", 48},
		{"large array", "array<vec4<f32>, 64>", 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := resolve(t, "#storage buf "+tt.typ+"\n", ResolveConfig{})
			d, ok := st.Descriptor("buf")
			if !ok {
				t.Fatal(`Descriptor("buf") missing`)
			}
			if d.Size != tt.size {
				t.Errorf("Size = %d, want %d", d.Size, tt.size)
			}
			if d.Size%16 != 0 {
				t.Errorf("Size = %d, want a multiple of 16", d.Size)
			}
			if d.Size < d.Type.Size {
				t.Errorf("Size = %d smaller than natural size %d", d.Size, d.Type.Size)
			}
		})
	}
}

func TestResolveStorageArrayElem(t *testing.T) {
	st := resolve(t, "#storage pts array<vec3<f32>, 8>\n", ResolveConfig{})
	d, _ := st.Descriptor("pts")
	if d.Count != 8 || d.ElemSize != 16 || d.Size != 128 {
		t.Errorf("pts = count %d elem %d size %d, want count 8 elem 16 size 128", d.Count, d.ElemSize, d.Size)
	}
	if d.Kind != KindStorage {
		t.Errorf("Kind = %v, want %v", d.Kind, KindStorage)
	}
}

func TestResolveStructStorage(t *testing.T) {
	st := resolve(t, "struct One { x: f32 }\n#storage s One\n", ResolveConfig{})
	d, ok := st.Descriptor("s")
	if !ok {
		t.Fatal(`Descriptor("s") missing`)
	}
	if d.Type.Size != 4 || d.Size != 16 {
		t.Errorf("s = natural %d padded %d, want natural 4 padded 16", d.Type.Size, d.Size)
	}
}

func TestResolveStructDeclaredAfterDirective(t *testing.T) {
	err := resolveErr(t, "#storage s Late\nstruct Late { x: f32 }\n", ResolveConfig{})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Resolve() error = %v, want %v", err, ErrUnknownType)
	}
}

func TestResolveDataSeed(t *testing.T) {
	st := resolve(t, "#data seed u32 1,2,3,4\n", ResolveConfig{})
	d, ok := st.Descriptor(NameData)
	if !ok {
		t.Fatal("data descriptor missing")
	}
	if d.Count != 4 || d.ElemSize != 4 || d.Size != 16 {
		t.Errorf("data = count %d elem %d size %d, want count 4 elem 4 size 16", d.Count, d.ElemSize, d.Size)
	}
	if d.Binding != 6 || d.Kind != KindData {
		t.Errorf("data at binding %d kind %v, want binding 6 kind %v", d.Binding, d.Kind, KindData)
	}
	want := make([]byte, 16)
	for i, v := range []uint32{1, 2, 3, 4} {
		binary.LittleEndian.PutUint32(want[i*4:], v)
	}
	if !reflect.DeepEqual(d.Init, want) {
		t.Errorf("Init = %v, want %v", d.Init, want)
	}
}

func TestResolveDataValues(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []uint32
	}{
		{"negative i32", "#data k i32 -1,2\n", []uint32{0xFFFFFFFF, 2}},
		{"hex u32", "#data k u32 0xff,0x10\n", []uint32{255, 16}},
		{"f32 bits", "#data k f32 0.5,1.5\n", []uint32{math.Float32bits(0.5), math.Float32bits(1.5)}},
		{"explicit array type", "#data k array<u32, 2> 7,8\n", []uint32{7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := resolve(t, tt.src, ResolveConfig{})
			if len(st.Data) != 1 {
				t.Fatalf("len(Data) = %d, want 1", len(st.Data))
			}
			if got := st.Data[0].Values; !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Values = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveDataErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"arity mismatch", "#data k array<u32, 4> 1,2,3\n", ErrDataArityMismatch},
		{"vector element", "#data k vec2<f32> 1,2\n", ErrMalformedArguments},
		{"f16 element", "#data k f16 1\n", ErrMalformedArguments},
		{"bad u32 literal", "#data k u32 1,x\n", ErrMalformedArguments},
		{"bad f32 literal", "#data k f32 0.5,zero\n", ErrMalformedArguments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := resolveErr(t, tt.src, ResolveConfig{}); !errors.Is(err, tt.want) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolveDuplicateNames(t *testing.T) {
	tests := []struct {
		name string
		src  string
		cfg  ResolveConfig
	}{
		{"storage twice", "#storage buf f32\n#storage buf u32\n", ResolveConfig{}},
		{"storage then data", "#storage buf f32\n#data buf u32 1\n", ResolveConfig{}},
		{"reserved storage name", "#storage time f32\n", ResolveConfig{}},
		{"reserved data name", "#data pass_in u32 1\n", ResolveConfig{}},
		{"reserved uniform seed", "", ResolveConfig{Uniforms: []UniformSeed{{Name: "mouse"}}}},
		{"uniform seed twice", "", ResolveConfig{Uniforms: []UniformSeed{{Name: "speed"}, {Name: "speed"}}}},
		{"storage shadows uniform", "#storage speed f32\n", ResolveConfig{Uniforms: []UniformSeed{{Name: "speed"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := resolveErr(t, tt.src, tt.cfg); !errors.Is(err, ErrDuplicateBinding) {
				t.Errorf("Resolve() error = %v, want %v", err, ErrDuplicateBinding)
			}
		})
	}
}

func TestResolveCustomUniforms(t *testing.T) {
	cfg := ResolveConfig{Uniforms: []UniformSeed{{Name: "speed", Value: 2}, {Name: "scale", Value: 0.5}}}
	st := resolve(t, "fn f() {}\n", cfg)

	d, ok := st.Descriptor(NameCustom)
	if !ok {
		t.Fatal("custom descriptor missing")
	}
	if d.Binding != 5 || d.Kind != KindUniform || d.Count != 2 || d.Size != 16 {
		t.Errorf("custom = binding %d kind %v count %d size %d, want 5 %v 2 16",
			d.Binding, d.Kind, d.Count, KindUniform, d.Size)
	}
	if got := binary.LittleEndian.Uint32(d.Init[0:]); got != math.Float32bits(2) {
		t.Errorf("Init[0] = %#x, want bits of 2.0", got)
	}
	if got := binary.LittleEndian.Uint32(d.Init[4:]); got != math.Float32bits(0.5) {
		t.Errorf("Init[1] = %#x, want bits of 0.5", got)
	}
}

func TestResolveAssertCounters(t *testing.T) {
	st := resolve(t, "fn f() {\n    #assert x > 0\n    #assert y > 0\n}\n", ResolveConfig{})

	if len(st.Asserts) != 2 {
		t.Fatalf("len(Asserts) = %d, want 2", len(st.Asserts))
	}
	for i, a := range st.Asserts {
		if a.Index != i {
			t.Errorf("Asserts[%d].Index = %d, want %d", i, a.Index, i)
		}
	}
	d, ok := st.Descriptor(NameAssertCounts)
	if !ok {
		t.Fatal("assert counter descriptor missing")
	}
	if d.Binding != 9 || d.Count != 2 || d.Size != 16 {
		t.Errorf("asserts = binding %d count %d size %d, want binding 9 count 2 size 16", d.Binding, d.Count, d.Size)
	}
}

func TestResolvePassBufferSize(t *testing.T) {
	st := resolve(t, "fn f() {}\n", ResolveConfig{Width: 8, Height: 4})

	want := uint32(2 * 8 * 4 * 4 * 4)
	if got := st.PassBufferSize(); got != want {
		t.Errorf("PassBufferSize() = %d, want %d", got, want)
	}
	in, _ := st.Descriptor(NamePassIn)
	out, _ := st.Descriptor(NamePassOut)
	if in.Size != want || out.Size != want {
		t.Errorf("pass buffers sized %d/%d, want %d", in.Size, out.Size, want)
	}
	if in.Count != want/4 {
		t.Errorf("pass_in Count = %d, want %d", in.Count, want/4)
	}
}

func TestResolveDeterministic(t *testing.T) {
	const src = "#storage grid array<u32, 16>\n#data seed u32 1,2,3,4\nfn f() {\n    #assert x > 0\n}\n"
	a := resolve(t, src, ResolveConfig{})
	b := resolve(t, src, ResolveConfig{})
	if !reflect.DeepEqual(a.Bindings, b.Bindings) {
		t.Error("resolving identical input twice produced different descriptors")
	}
}
