// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package profile

import (
	"image/color"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const fullProfile = `
render {
  width  = 640
  height = 360
  frames = 90
  fps    = 25
}

text {
  theme     = "dracula"
  font_size = 16
  tab_width = 8
}

effect {
  skew_x = 0.2
  skew_y = 0.05
  fold   = 0
  scale  = 0.8
}

shader {
  path = "plasma.wgsl"

  uniform "speed" {
    value = 2.5
  }

  uniform "intensity" {
    value = 1
  }

  gradient {
    stops = ["#102030", "#405060", "#708090"]
  }
}
`

func TestParseFullProfile(t *testing.T) {
	p, err := Parse([]byte(fullProfile), "full.hcl")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := &Profile{
		Width:      640,
		Height:     360,
		Frames:     90,
		FPS:        25,
		Theme:      "dracula",
		FontSize:   16,
		TabWidth:   8,
		SkewX:      0.2,
		SkewY:      0.05,
		Fold:       0,
		Scale:      0.8,
		ShaderPath: "plasma.wgsl",
		Uniforms: []Uniform{
			{Name: "speed", Value: 2.5},
			{Name: "intensity", Value: 1},
		},
		Gradient: Gradient{
			{R: 0x10, G: 0x20, B: 0x30, A: 0xFF},
			{R: 0x40, G: 0x50, B: 0x60, A: 0xFF},
			{R: 0x70, G: 0x80, B: 0x90, A: 0xFF},
		},
	}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("Parse() = %+v, want %+v", p, want)
	}
}

func TestParseEmptySourceGivesDefaults(t *testing.T) {
	p, err := Parse(nil, "empty.hcl")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(p, Default()) {
		t.Errorf("Parse(empty) = %+v, want defaults %+v", p, Default())
	}
}

func TestParsePartialOverride(t *testing.T) {
	p, err := Parse([]byte("render {\n  width = 512\n}\n"), "partial.hcl")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Width != 512 {
		t.Errorf("Width = %d, want 512", p.Width)
	}
	if p.Height != DefaultHeight {
		t.Errorf("Height = %d, want default %d", p.Height, DefaultHeight)
	}
	if p.Fold != DefaultFold {
		t.Errorf("Fold = %g, want default %g", p.Fold, DefaultFold)
	}
	if !reflect.DeepEqual(p.Gradient, DefaultGradient) {
		t.Errorf("Gradient = %v, want default", p.Gradient)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantSub string
	}{
		{"unknown attribute", "render {\n  wdith = 5\n}\n", "wdith"},
		{"unknown block", "audio {\n}\n", "audio"},
		{"syntax error", "render {\n", "parse"},
		{"duplicate uniform", "shader {\n  uniform \"a\" {\n    value = 1\n  }\n  uniform \"a\" {\n    value = 2\n  }\n}\n", "duplicate uniform"},
		{"non-numeric uniform", "shader {\n  uniform \"a\" {\n    value = [1]\n  }\n}\n", "uniform"},
		{"bad gradient stop", "shader {\n  gradient {\n    stops = [\"#zzz\"]\n  }\n}\n", "hex color"},
		{"empty gradient", "shader {\n  gradient {\n    stops = []\n  }\n}\n", "at least one stop"},
		{"zero width", "render {\n  width = 0\n}\n", "width"},
		{"zero frames", "render {\n  frames = 0\n}\n", "frames"},
		{"negative fps", "render {\n  fps = -1\n}\n", "fps"},
		{"zero tab width", "text {\n  tab_width = 0\n}\n", "tab width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.source), "bad.hcl")
			if err == nil {
				t.Fatal("Parse() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Parse() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestParseThreeDigitColor(t *testing.T) {
	p, err := Parse([]byte("shader {\n  gradient {\n    stops = [\"#abc\", \"#000\"]\n  }\n}\n"), "short.hcl")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := color.NRGBA{R: 0xAA, G: 0xBB, B: 0xCC, A: 0xFF}
	if p.Gradient[0] != want {
		t.Errorf("Gradient[0] = %v, want %v", p.Gradient[0], want)
	}
}

func TestGradientAt(t *testing.T) {
	two := Gradient{
		{R: 0, G: 0, B: 0, A: 0xFF},
		{R: 200, G: 100, B: 50, A: 0xFF},
	}
	three := Gradient{
		{R: 0, A: 0xFF},
		{R: 100, A: 0xFF},
		{R: 200, A: 0xFF},
	}

	tests := []struct {
		name string
		g    Gradient
		t    float64
		want color.NRGBA
	}{
		{"start", two, 0, color.NRGBA{A: 0xFF}},
		{"end", two, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 0xFF}},
		{"midpoint", two, 0.5, color.NRGBA{R: 100, G: 50, B: 25, A: 0xFF}},
		{"clamp low", two, -3, color.NRGBA{A: 0xFF}},
		{"clamp high", two, 7, color.NRGBA{R: 200, G: 100, B: 50, A: 0xFF}},
		{"three stops middle", three, 0.5, color.NRGBA{R: 100, A: 0xFF}},
		{"three stops quarter", three, 0.25, color.NRGBA{R: 50, A: 0xFF}},
		{"single stop", Gradient{{R: 9, A: 0xFF}}, 0.7, color.NRGBA{R: 9, A: 0xFF}},
		{"empty", Gradient{}, 0.5, color.NRGBA{A: 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.At(tt.t); got != tt.want {
				t.Errorf("At(%g) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.hcl")); err == nil {
		t.Error("Load() error = nil for missing file")
	}
}
