// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// Scalar is a WGSL scalar component type usable in resource layouts.
type Scalar uint8

const (
	F32 Scalar = iota
	U32
	I32
	F16
)

func (s Scalar) String() string {
	switch s {
	case F32:
		return "f32"
	case U32:
		return "u32"
	case I32:
		return "i32"
	case F16:
		return "f16"
	default:
		return fmt.Sprintf("Scalar(%d)", uint8(s))
	}
}

// Size returns the scalar's byte size.
func (s Scalar) Size() uint32 {
	if s == F16 {
		return 2
	}
	return 4
}

// Type is a resolved type expression together with its memory layout.
// Size is the natural, unpadded size; resources additionally round up to
// a 16-byte multiple (see BindingDescriptor).
type Type struct {
	Name   string // canonical spelling, e.g. "vec3<f32>"
	Scalar Scalar // component scalar
	Size   uint32
	Align  uint32
	Count  uint32 // array element count; 0 for non-arrays
	Stride uint32 // array element stride; 0 for non-arrays
}

// IsArray reports whether the type is a fixed-size array.
func (t Type) IsArray() bool { return t.Count > 0 }

func roundUp(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}

func scalarType(s Scalar) Type {
	return Type{Name: s.String(), Scalar: s, Size: s.Size(), Align: s.Size()}
}

func vecType(n int, s Scalar) Type {
	align := 4 * s.Size()
	if n == 2 {
		align = 2 * s.Size()
	}
	return Type{
		Name:   fmt.Sprintf("vec%d<%s>", n, s),
		Scalar: s,
		Size:   uint32(n) * s.Size(),
		Align:  align,
	}
}

// matType lays a matrix out as an array of column vectors.
func matType(cols, rows int, s Scalar) Type {
	col := vecType(rows, s)
	stride := roundUp(col.Size, col.Align)
	return Type{
		Name:   fmt.Sprintf("mat%dx%d<%s>", cols, rows, s),
		Scalar: s,
		Size:   uint32(cols) * stride,
		Align:  col.Align,
	}
}

func arrayType(elem Type, count uint32) Type {
	stride := roundUp(elem.Size, elem.Align)
	return Type{
		Name:   fmt.Sprintf("array<%s, %d>", elem.Name, count),
		Scalar: elem.Scalar,
		Size:   count * stride,
		Align:  elem.Align,
		Count:  count,
		Stride: stride,
	}
}

// namedTypes maps plain (non-generic) spellings, including the prelude's
// short aliases, to their layouts.
var namedTypes = buildNamedTypes()

func buildNamedTypes() map[string]Type {
	m := make(map[string]Type)
	scalars := []struct {
		s     Scalar
		alias string
	}{
		{F32, "float"},
		{U32, "uint"},
		{I32, "int"},
		{F16, "half"},
	}
	for _, sc := range scalars {
		m[sc.s.String()] = scalarType(sc.s)
		m[sc.alias] = scalarType(sc.s)
		for n := 2; n <= 4; n++ {
			m[fmt.Sprintf("%s%d", sc.alias, n)] = vecType(n, sc.s)
		}
	}
	for c := 2; c <= 4; c++ {
		for r := 2; r <= 4; r++ {
			m[fmt.Sprintf("float%dx%d", c, r)] = matType(c, r, F32)
		}
	}
	return m
}

// parseType resolves a directive type expression against the fixed type
// grammar and any structs declared before seq in expansion order.
func parseType(expr string, structs *structTable, seq int, at Origin) (Type, error) {
	return parseTypeRec(expr, structs, seq, at, make(map[string]bool))
}

func parseTypeRec(expr string, structs *structTable, seq int, at Origin, visiting map[string]bool) (Type, error) {
	expr = strings.TrimSpace(expr)
	if t, ok := namedTypes[expr]; ok {
		return t, nil
	}

	i := strings.IndexByte(expr, '<')
	if i < 0 {
		if structs != nil {
			return structs.layout(expr, seq, at, visiting)
		}
		return Type{}, layoutErr(ErrUnknownType, at, expr, "")
	}
	if !strings.HasSuffix(expr, ">") {
		return Type{}, layoutErr(ErrUnknownType, at, expr, "unterminated type expression")
	}
	head := strings.TrimSpace(expr[:i])
	inner := expr[i+1 : len(expr)-1]

	switch {
	case head == "array":
		elemExpr, countExpr, ok := splitTopLevelComma(inner)
		if !ok {
			return Type{}, layoutErr(ErrUnknownType, at, expr, "array wants array<type, count>")
		}
		elem, err := parseTypeRec(elemExpr, structs, seq, at, visiting)
		if err != nil {
			return Type{}, err
		}
		count, err := strconv.ParseUint(countExpr, 10, 32)
		if err != nil || count == 0 {
			return Type{}, layoutErr(ErrUnknownType, at, expr, "array count %q is not a positive integer", countExpr)
		}
		return arrayType(elem, uint32(count)), nil

	case head == "vec2" || head == "vec3" || head == "vec4":
		s, ok := scalarSpelling(inner)
		if !ok {
			return Type{}, layoutErr(ErrUnknownType, at, expr, "vector component %q is not a scalar", inner)
		}
		return vecType(int(head[3]-'0'), s), nil

	default:
		if cols, rows, ok := matHead(head); ok {
			s, sok := scalarSpelling(inner)
			if !sok || s == U32 || s == I32 {
				return Type{}, layoutErr(ErrUnknownType, at, expr, "matrix component %q must be a float scalar", inner)
			}
			return matType(cols, rows, s), nil
		}
		return Type{}, layoutErr(ErrUnknownType, at, expr, "")
	}
}

func scalarSpelling(s string) (Scalar, bool) {
	t, ok := namedTypes[strings.TrimSpace(s)]
	if !ok || t.Size != t.Scalar.Size() || t.Align != t.Scalar.Size() {
		return F32, false
	}
	return t.Scalar, true
}

func matHead(head string) (cols, rows int, ok bool) {
	if len(head) != 6 || !strings.HasPrefix(head, "mat") || head[4] != 'x' {
		return 0, 0, false
	}
	cols = int(head[3] - '0')
	rows = int(head[5] - '0')
	if cols < 2 || cols > 4 || rows < 2 || rows > 4 {
		return 0, 0, false
	}
	return cols, rows, true
}

// splitTopLevelComma splits s at the first comma outside angle brackets.
func splitTopLevelComma(s string) (left, right string, ok bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return "", "", false
}

// structField is one member of a user-declared struct.
type structField struct {
	name string
	typ  string
}

// rawStruct records a struct declaration seen during expansion. Layout
// is computed lazily when a directive references the struct.
type rawStruct struct {
	name   string
	fields []structField
	seq    int // expansion order stamp; visible to later directives only
	at     Origin
}

// structTable indexes user struct declarations by name.
type structTable struct {
	byName map[string]*rawStruct
}

func newStructTable() *structTable {
	return &structTable{byName: make(map[string]*rawStruct)}
}

func (t *structTable) add(s *rawStruct) {
	// First declaration wins; the backend reports redeclaration itself.
	if _, ok := t.byName[s.name]; !ok {
		t.byName[s.name] = s
	}
}

// layout computes the WGSL layout of the named struct: member offsets
// round up to member alignment, struct alignment is the largest member
// alignment, and the struct size rounds up to that alignment.
func (t *structTable) layout(name string, seq int, at Origin, visiting map[string]bool) (Type, error) {
	if t == nil {
		return Type{}, layoutErr(ErrUnknownType, at, name, "")
	}
	rs, ok := t.byName[name]
	if !ok || rs.seq > seq {
		return Type{}, layoutErr(ErrUnknownType, at, name, "no struct %q declared before this directive", name)
	}
	if visiting[name] {
		return Type{}, layoutErr(ErrUnknownType, at, name, "struct %q is recursive", name)
	}
	if len(rs.fields) == 0 {
		return Type{}, layoutErr(ErrUnknownType, at, name, "struct %q has no members", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	var offset, maxAlign uint32
	for _, f := range rs.fields {
		ft, err := parseTypeRec(f.typ, t, rs.seq, at, visiting)
		if err != nil {
			return Type{}, err
		}
		offset = roundUp(offset, ft.Align) + ft.Size
		if ft.Align > maxAlign {
			maxAlign = ft.Align
		}
	}
	return Type{Name: name, Size: roundUp(offset, maxAlign), Align: maxAlign}, nil
}
