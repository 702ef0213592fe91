// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"encoding/binary"
	"math"
	"strconv"
)

// ResourceKind classifies a GPU-visible resource declaration.
type ResourceKind uint8

const (
	KindStorage        ResourceKind = iota // read-write storage buffer
	KindUniform                            // uniform buffer
	KindData                               // read-only storage buffer with fixed contents
	KindAssertCounter                      // shared atomic assertion counter buffer
	KindStorageTexture                     // write-only output texture
)

func (k ResourceKind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindUniform:
		return "uniform"
	case KindData:
		return "data"
	case KindAssertCounter:
		return "assert-counter"
	case KindStorageTexture:
		return "storage-texture"
	default:
		return "unknown"
	}
}

// BindingDescriptor is the resolved metadata for one GPU-visible
// resource. Size is the padded total byte size the generated code
// assumes; it is always a multiple of 16 for buffer kinds and zero for
// textures.
type BindingDescriptor struct {
	Name     string
	Kind     ResourceKind
	Type     Type // element or aggregate type; zero value for textures
	Count    uint32
	ElemSize uint32
	Size     uint32
	Group    uint32
	Binding  uint32
	Init     []byte // initial contents, little-endian; nil for zeroed
}

// AssertionSite is one #assert call site. Its counter occupies slot
// Index of the shared assert-counter buffer.
type AssertionSite struct {
	Index     int
	Predicate string
	At        Origin
}

// UniformSeed names one host-supplied custom scalar uniform and its
// initial value.
type UniformSeed struct {
	Name  string
	Value float32
}

// DataField is one #data declaration, a named array of scalar values.
type DataField struct {
	Name   string
	Type   Type
	Count  uint32
	Values []uint32 // raw little-endian bit patterns
	At     Origin
}

// Fixed binding slots within group 0. User storage declarations follow
// from bindingUserBase in declaration order. Slots for absent optional
// resources stay unused so numbering is stable across builds.
const (
	bindingScreen   = 0
	bindingTime     = 1
	bindingMouse    = 2
	bindingKeyboard = 3
	bindingDispatch = 4
	bindingCustom   = 5
	bindingData     = 6
	bindingPassIn   = 7
	bindingPassOut  = 8
	bindingAsserts  = 9
	bindingUserBase = 10
)

// Built-in resource names. These and the user namespace may not collide.
const (
	NameScreen       = "screen"
	NameTime         = "time"
	NameMouse        = "mouse"
	NameKeyboard     = "_keyboard"
	NameDispatch     = "dispatch"
	NameCustom       = "custom"
	NameData         = "data"
	NamePassIn       = "pass_in"
	NamePassOut      = "pass_out"
	NameAssertCounts = "_assert_counts"
)

// passChannels is the number of logical float4 pass-buffer layers
// addressable through passStore/passLoad.
const passChannels = 2

var reservedNames = map[string]bool{
	NameScreen:       true,
	NameTime:         true,
	NameMouse:        true,
	NameKeyboard:     true,
	NameDispatch:     true,
	NameCustom:       true,
	NameData:         true,
	NamePassIn:       true,
	NamePassOut:      true,
	NameAssertCounts: true,
}

// SymbolTable holds every resolved resource of one build.
type SymbolTable struct {
	Bindings []BindingDescriptor
	Asserts  []AssertionSite
	Data     []DataField   // declaration order; drives the Data record
	Custom   []UniformSeed // seed order; drives the Custom record
	Width    uint32
	Height   uint32
}

// Descriptor returns the descriptor with the given name.
func (st *SymbolTable) Descriptor(name string) (BindingDescriptor, bool) {
	for _, b := range st.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return BindingDescriptor{}, false
}

// PassBufferSize returns the byte size of one pass buffer.
func (st *SymbolTable) PassBufferSize() uint32 {
	return passBufferSize(st.Width, st.Height)
}

func passBufferSize(w, h uint32) uint32 {
	return roundUp(passChannels*w*h*4*4, 16)
}

// ResolveConfig parameterizes symbol resolution.
type ResolveConfig struct {
	Width    uint32
	Height   uint32
	Uniforms []UniformSeed // host-seeded custom scalar uniforms
}

// Resolve consumes the expansion's directive stream in order and
// produces the symbol table, or fails with a *ParseError or
// *LayoutError. Slot assignment is positional, so identical directive
// order yields identical descriptors.
func Resolve(ex *Expansion, cfg ResolveConfig) (*SymbolTable, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = DefaultWidth, DefaultHeight
	}
	st := &SymbolTable{Width: cfg.Width, Height: cfg.Height}

	declared := make(map[string]Origin) // user namespace across storage/data/uniform
	for _, u := range cfg.Uniforms {
		if reservedNames[u.Name] {
			return nil, layoutErr(ErrDuplicateBinding, Origin{File: ex.EntryFile}, u.Name, "name is reserved")
		}
		if at, ok := declared[u.Name]; ok {
			return nil, layoutErr(ErrDuplicateBinding, at, u.Name, "uniform already declared")
		}
		declared[u.Name] = Origin{File: ex.EntryFile}
		st.Custom = append(st.Custom, u)
	}

	var storages []userStorage

	for i, d := range ex.Directives {
		seq := ex.seqs[i]
		switch d := d.(type) {
		case Include, Define, WorkgroupCount, DispatchOnce, DispatchCount:
			// Includes and defines were applied during expansion;
			// dispatch directives are the scheduler's input.

		case Storage:
			at := d.Origin()
			if err := checkName(d.Name, at, declared); err != nil {
				return nil, err
			}
			t, err := parseType(d.Type, ex.structs, seq, at)
			if err != nil {
				return nil, err
			}
			declared[d.Name] = at
			storages = append(storages, userStorage{name: d.Name, typ: t, at: at})

		case Data:
			at := d.Origin()
			if err := checkName(d.Name, at, declared); err != nil {
				return nil, err
			}
			f, err := resolveData(d, ex.structs, seq)
			if err != nil {
				return nil, err
			}
			declared[d.Name] = at
			st.Data = append(st.Data, f)

		case Assert:
			st.Asserts = append(st.Asserts, AssertionSite{
				Index:     d.Index,
				Predicate: d.Predicate,
				At:        d.Origin(),
			})

		default:
			// Closed set; see Directive.
		}
	}

	st.Bindings = buildBindings(st, storages)
	return st, nil
}

func checkName(name string, at Origin, declared map[string]Origin) error {
	if reservedNames[name] {
		return layoutErr(ErrDuplicateBinding, at, name, "name is reserved")
	}
	if prev, ok := declared[name]; ok {
		return layoutErr(ErrDuplicateBinding, at, name, "already declared at %s", prev)
	}
	return nil
}

func resolveData(d Data, structs *structTable, seq int) (DataField, error) {
	at := d.Origin()
	t, err := parseType(d.Type, structs, seq, at)
	if err != nil {
		return DataField{}, err
	}
	elem := t
	count := uint32(len(d.Values))
	if t.IsArray() {
		elem = Type{Name: t.Scalar.String(), Scalar: t.Scalar, Size: t.Scalar.Size(), Align: t.Scalar.Size()}
		if t.Count != count {
			return DataField{}, layoutErr(ErrDataArityMismatch, at, d.Name,
				"type declares %d elements, %d values supplied", t.Count, count)
		}
	}
	if elem.Size != elem.Scalar.Size() || elem.Scalar == F16 {
		return DataField{}, parseErr(ErrMalformedArguments, at,
			"data element type must be u32, i32, or f32, got %s", elem.Name)
	}

	bits := make([]uint32, count)
	for i, v := range d.Values {
		var b uint32
		switch elem.Scalar {
		case U32:
			n, err := strconv.ParseUint(v, 0, 32)
			if err != nil {
				return DataField{}, parseErr(ErrMalformedArguments, at, "data value %q is not a u32", v)
			}
			b = uint32(n)
		case I32:
			n, err := strconv.ParseInt(v, 0, 32)
			if err != nil {
				return DataField{}, parseErr(ErrMalformedArguments, at, "data value %q is not an i32", v)
			}
			b = uint32(int32(n))
		case F32:
			n, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return DataField{}, parseErr(ErrMalformedArguments, at, "data value %q is not an f32", v)
			}
			b = math.Float32bits(float32(n))
		}
		bits[i] = b
	}
	return DataField{Name: d.Name, Type: arrayType(elem, count), Count: count, Values: bits, At: at}, nil
}

// userStorage is one accepted #storage declaration awaiting slot
// assignment.
type userStorage struct {
	name string
	typ  Type
	at   Origin
}

// buildBindings assigns (group, binding) slots: fixed built-ins first,
// then user storage declarations in order from bindingUserBase.
func buildBindings(st *SymbolTable, storages []userStorage) []BindingDescriptor {
	passSize := passBufferSize(st.Width, st.Height)
	b := []BindingDescriptor{
		{Name: NameScreen, Kind: KindStorageTexture, Binding: bindingScreen},
		{
			Name: NameTime, Kind: KindUniform, Binding: bindingTime,
			Type:  Type{Name: "Time", Size: 12, Align: 4},
			Count: 1, ElemSize: 12, Size: 16,
		},
		{
			Name: NameMouse, Kind: KindUniform, Binding: bindingMouse,
			Type:  Type{Name: "Mouse", Size: 12, Align: 8},
			Count: 1, ElemSize: 12, Size: 16,
		},
		{
			Name: NameKeyboard, Kind: KindUniform, Binding: bindingKeyboard,
			Type:  arrayType(vecType(4, U32), 2),
			Count: 2, ElemSize: 16, Size: 32,
		},
		{
			Name: NameDispatch, Kind: KindUniform, Binding: bindingDispatch,
			Type:  Type{Name: "DispatchInfo", Size: 4, Align: 4},
			Count: 1, ElemSize: 4, Size: 16,
		},
	}

	if len(st.Custom) > 0 {
		size := roundUp(uint32(len(st.Custom))*4, 16)
		init := make([]byte, size)
		for i, u := range st.Custom {
			binary.LittleEndian.PutUint32(init[i*4:], math.Float32bits(u.Value))
		}
		b = append(b, BindingDescriptor{
			Name: NameCustom, Kind: KindUniform, Binding: bindingCustom,
			Type:  Type{Name: "Custom", Size: uint32(len(st.Custom)) * 4, Align: 4},
			Count: uint32(len(st.Custom)), ElemSize: 4, Size: size, Init: init,
		})
	}

	if len(st.Data) > 0 {
		var offset uint32
		var words []uint32
		for _, f := range st.Data {
			offset = roundUp(offset, f.Type.Align) + f.Type.Size
			words = append(words, f.Values...)
		}
		size := roundUp(offset, 16)
		init := make([]byte, size)
		for i, w := range words {
			binary.LittleEndian.PutUint32(init[i*4:], w)
		}
		b = append(b, BindingDescriptor{
			Name: NameData, Kind: KindData, Binding: bindingData,
			Type:  Type{Name: "Data", Size: offset, Align: 4},
			Count: uint32(len(words)), ElemSize: 4, Size: size, Init: init,
		})
	}

	b = append(b,
		BindingDescriptor{
			Name: NamePassIn, Kind: KindStorage, Binding: bindingPassIn,
			Type:  scalarType(F32),
			Count: passSize / 4, ElemSize: 4, Size: passSize,
		},
		BindingDescriptor{
			Name: NamePassOut, Kind: KindStorage, Binding: bindingPassOut,
			Type:  scalarType(F32),
			Count: passSize / 4, ElemSize: 4, Size: passSize,
		},
	)

	if n := len(st.Asserts); n > 0 {
		b = append(b, BindingDescriptor{
			Name: NameAssertCounts, Kind: KindAssertCounter, Binding: bindingAsserts,
			Type:  scalarType(U32),
			Count: uint32(n), ElemSize: 4, Size: roundUp(uint32(n)*4, 16),
		})
	}

	for i, s := range storages {
		elemSize := s.typ.Size
		count := uint32(1)
		if s.typ.IsArray() {
			elemSize = s.typ.Stride
			count = s.typ.Count
		}
		b = append(b, BindingDescriptor{
			Name: s.name, Kind: KindStorage, Binding: uint32(bindingUserBase + i),
			Type:  s.typ,
			Count: count, ElemSize: elemSize, Size: roundUp(s.typ.Size, 16),
		})
	}
	return b
}
