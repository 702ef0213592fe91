// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"testing"
)

const trivialCompute = "@compute @workgroup_size(1)\nfn main() {\n}\n"

func TestFrontendValidateAcceptsTrivialShader(t *testing.T) {
	f := NewFrontend()
	diags, err := f.Validate(trivialCompute)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("diags = %v, want none", diags)
	}
}

func TestFrontendValidateRejectsBrokenShader(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"parse error", "@compute @workgroup_size(1)\nfn main( {\n}\n"},
		{"undefined identifier", "@compute @workgroup_size(1)\nfn main() {\n    let x = no_such_symbol;\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFrontend()
			diags, err := f.Validate(tt.source)
			if err == nil && len(diags) == 0 {
				t.Error("broken shader accepted, want diagnostics or an error")
			}
			for _, d := range diags {
				if d.Message == "" {
					t.Errorf("diagnostic with empty message: %+v", d)
				}
			}
		})
	}
}

func TestFrontendCompileEmitsSPIRV(t *testing.T) {
	f := NewFrontend()
	words, err := f.Compile(trivialCompute)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(words) < 5 {
		t.Fatalf("len(words) = %d, want at least a SPIR-V header", len(words))
	}
	const spirvMagic = 0x07230203
	if words[0] != spirvMagic {
		t.Errorf("words[0] = %#x, want magic %#x", words[0], uint32(spirvMagic))
	}
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0xFF, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatalf("spirvWords: %v", err)
	}
	if words[0] != 0x07230203 {
		t.Errorf("words[0] = %#x, want 0x07230203", words[0])
	}
	if words[1] != 0xFF {
		t.Errorf("words[1] = %#x, want 0xFF", words[1])
	}

	if _, err := spirvWords([]byte{1, 2, 3}); err == nil {
		t.Error("spirvWords on a 3-byte blob succeeded, want error")
	}
	if _, err := spirvWords(nil); err == nil {
		t.Error("spirvWords on an empty blob succeeded, want error")
	}
}
