// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"strings"
)

// screenFormat is the storage texture format of the screen binding. The
// execution backend must allocate the output texture with a matching
// format.
const screenFormat = "rgba8unorm"

// GeneratePrelude emits the header prepended to the expanded body: type
// aliases, built-in records, one binding declaration per descriptor, and
// the fixed utility routines. Output is a pure function of the symbol
// table, so identical inputs produce byte-identical text.
func GeneratePrelude(st *SymbolTable) string {
	var b strings.Builder
	writeAliases(&b)
	writeRecords(&b, st)
	writeBindingDecls(&b, st)
	writeHelpers(&b, st)
	return b.String()
}

var aliasScalars = []struct {
	alias  string
	scalar string
}{
	{"int", "i32"},
	{"uint", "u32"},
	{"float", "f32"},
}

func writeAliases(b *strings.Builder) {
	for _, a := range aliasScalars {
		fmt.Fprintf(b, "alias %s = %s;\n", a.alias, a.scalar)
	}
	for _, a := range aliasScalars {
		for n := 2; n <= 4; n++ {
			fmt.Fprintf(b, "alias %s%d = vec%d<%s>;\n", a.alias, n, n, a.scalar)
		}
	}
	for n := 2; n <= 4; n++ {
		fmt.Fprintf(b, "alias bool%d = vec%d<bool>;\n", n, n)
	}
	for c := 2; c <= 4; c++ {
		for r := 2; r <= 4; r++ {
			fmt.Fprintf(b, "alias float%dx%d = mat%dx%d<f32>;\n", c, r, c, r)
		}
	}
	b.WriteString("\n")
}

func writeRecords(b *strings.Builder, st *SymbolTable) {
	b.WriteString("struct Time {\n    frame: uint,\n    elapsed: float,\n    delta: float,\n}\n\n")
	b.WriteString("struct Mouse {\n    pos: float2,\n    click: int,\n}\n\n")
	b.WriteString("struct DispatchInfo {\n    id: uint,\n}\n\n")

	if len(st.Custom) > 0 {
		b.WriteString("struct Custom {\n")
		for _, u := range st.Custom {
			fmt.Fprintf(b, "    %s: float,\n", u.Name)
		}
		b.WriteString("}\n\n")
	}
	if len(st.Data) > 0 {
		b.WriteString("struct Data {\n")
		for _, f := range st.Data {
			fmt.Fprintf(b, "    %s: %s,\n", f.Name, f.Type.Name)
		}
		b.WriteString("}\n\n")
	}
}

func writeBindingDecls(b *strings.Builder, st *SymbolTable) {
	for _, d := range st.Bindings {
		switch {
		case d.Kind == KindStorageTexture:
			fmt.Fprintf(b, "@group(%d) @binding(%d) var %s: texture_storage_2d<%s, write>;\n",
				d.Group, d.Binding, d.Name, screenFormat)
		case d.Kind == KindUniform:
			fmt.Fprintf(b, "@group(%d) @binding(%d) var<uniform> %s: %s;\n",
				d.Group, d.Binding, d.Name, d.Type.Name)
		case d.Kind == KindData:
			fmt.Fprintf(b, "@group(%d) @binding(%d) var<storage, read> %s: %s;\n",
				d.Group, d.Binding, d.Name, d.Type.Name)
		case d.Name == NamePassIn:
			fmt.Fprintf(b, "@group(%d) @binding(%d) var<storage, read> %s: array<f32>;\n",
				d.Group, d.Binding, d.Name)
		case d.Name == NamePassOut:
			fmt.Fprintf(b, "@group(%d) @binding(%d) var<storage, read_write> %s: array<f32>;\n",
				d.Group, d.Binding, d.Name)
		case d.Kind == KindAssertCounter:
			fmt.Fprintf(b, "@group(%d) @binding(%d) var<storage, read_write> %s: array<atomic<u32>>;\n",
				d.Group, d.Binding, d.Name)
		default:
			fmt.Fprintf(b, "@group(%d) @binding(%d) var<storage, read_write> %s: %s;\n",
				d.Group, d.Binding, d.Name, d.Type.Name)
		}
	}
	b.WriteString("\n")
}

func writeHelpers(b *strings.Builder, st *SymbolTable) {
	w, h := st.Width, st.Height

	b.WriteString("fn keyDown(keycode: uint) -> bool {\n")
	b.WriteString("    return ((_keyboard[keycode / 128u][(keycode % 128u) / 32u] >> (keycode % 32u)) & 1u) == 1u;\n")
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "fn _pass_coord(pass_index: int, coord: int2) -> uint {\n")
	fmt.Fprintf(b, "    let c = clamp(coord, int2(0, 0), int2(%d, %d));\n", w-1, h-1)
	fmt.Fprintf(b, "    let p = clamp(pass_index, 0, %d);\n", passChannels-1)
	fmt.Fprintf(b, "    return ((uint(p) * %du + uint(c.y)) * %du + uint(c.x)) * 4u;\n", h, w)
	b.WriteString("}\n\n")

	b.WriteString("fn passStore(pass_index: int, coord: int2, value: float4) {\n")
	b.WriteString("    let i = _pass_coord(pass_index, coord);\n")
	b.WriteString("    pass_out[i + 0u] = value.x;\n")
	b.WriteString("    pass_out[i + 1u] = value.y;\n")
	b.WriteString("    pass_out[i + 2u] = value.z;\n")
	b.WriteString("    pass_out[i + 3u] = value.w;\n")
	b.WriteString("}\n\n")

	b.WriteString("fn passLoad(pass_index: int, coord: int2, lod: int) -> float4 {\n")
	b.WriteString("    let i = _pass_coord(pass_index, coord);\n")
	b.WriteString("    return float4(pass_in[i + 0u], pass_in[i + 1u], pass_in[i + 2u], pass_in[i + 3u]);\n")
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "fn passSampleLevelBilinearRepeat(pass_index: int, uv: float2, lod: float) -> float4 {\n")
	fmt.Fprintf(b, "    let dims = float2(%d.0, %d.0);\n", w, h)
	b.WriteString("    let p = fract(uv) * dims - 0.5;\n")
	b.WriteString("    let base = floor(p);\n")
	b.WriteString("    let f = p - base;\n")
	b.WriteString("    let wrap = int2(dims);\n")
	b.WriteString("    let c00 = (int2(base) % wrap + wrap) % wrap;\n")
	b.WriteString("    let c11 = (c00 + int2(1, 1)) % wrap;\n")
	b.WriteString("    let s00 = passLoad(pass_index, int2(c00.x, c00.y), 0);\n")
	b.WriteString("    let s10 = passLoad(pass_index, int2(c11.x, c00.y), 0);\n")
	b.WriteString("    let s01 = passLoad(pass_index, int2(c00.x, c11.y), 0);\n")
	b.WriteString("    let s11 = passLoad(pass_index, int2(c11.x, c11.y), 0);\n")
	b.WriteString("    return mix(mix(s00, s10, f.x), mix(s01, s11, f.x), f.y);\n")
	b.WriteString("}\n")

	if len(st.Asserts) > 0 {
		b.WriteString("\nfn assert(index: int, success: bool) {\n")
		b.WriteString("    if (!success) {\n")
		b.WriteString("        atomicAdd(&_assert_counts[index], 1u);\n")
		b.WriteString("    }\n")
		b.WriteString("}\n")
	}
}
