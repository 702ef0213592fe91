// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader preprocesses directive-annotated WGSL templates into
// backend-consumable compute modules.
//
// A template is plain WGSL plus a small line-oriented directive
// language. Any line whose first non-whitespace character is '#' is a
// directive:
//
//	#include <std/noise>          splice a bundled library unit
//	#include "common.wgsl"        splice a unit through the Loader
//	#storage grid array<u32, 64>  declare a read-write storage buffer
//	#data seed u32 1,2,3,4        declare a fixed-content buffer
//	#define SIZE 64               whole-identifier substitution
//	#assert x < SIZE              advisory GPU-side assertion
//	#workgroup_count sim 8 8 1    explicit dispatch grid for a pass
//	#dispatch_once init           run a pass once per generation
//	#dispatch_count relax 32      run a pass on the first n ticks
//
// Expansion preserves non-directive lines verbatim, one output line per
// input line, and records provenance in a SourceMap so backend
// diagnostics can be reported against the file the author edited.
//
// The resolver turns declarations into BindingDescriptors with
// byte-exact sizes following WGSL layout rules: scalars align to 4,
// vec2 to 8, vec3 and vec4 to 16; array strides round elements up to
// their alignment; every buffer resource pads to a 16-byte multiple.
// Slot assignment is positional, so identical input yields identical
// descriptors.
//
// Build ties the stages together and prepends the generated prelude:
// type aliases, built-in uniform records (time, mouse, keyboard,
// dispatch metadata), one declaration per binding, and the pass-buffer
// and assertion helpers. Backend validation and dispatch scheduling are
// the engine package's concern.
package shader
