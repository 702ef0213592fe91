// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package profile loads declarative render profiles from HCL.
//
// A profile collects everything a render run needs beyond the input
// program: output dimensions, animation length, text styling, the 3D
// effect parameters, and the background shader with its custom
// uniforms. Every attribute is optional; omitted values take the
// package defaults, and unknown attributes or blocks are errors.
package profile

import (
	"fmt"
	"image/color"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Defaults for omitted profile attributes.
const (
	DefaultWidth    = 1200
	DefaultHeight   = 800
	DefaultFrames   = 1
	DefaultFPS      = 30.0
	DefaultTheme    = "monokai"
	DefaultFontSize = 14.0
	DefaultTabWidth = 4
	DefaultSkewX    = 0.15
	DefaultSkewY    = 0.0
	DefaultFold     = 0.4
	DefaultScale    = 0.6
)

// DefaultGradient is the background ramp used when the profile does not
// define stops.
var DefaultGradient = Gradient{
	{R: 0x1A, G: 0x1A, B: 0x1A, A: 0xFF},
	{R: 0x4A, G: 0x4A, B: 0x4A, A: 0xFF},
}

// Uniform seeds one custom shader uniform.
type Uniform struct {
	Name  string
	Value float64
}

// Gradient is a vertical color ramp with evenly spaced stops.
type Gradient []color.NRGBA

// At returns the interpolated color at t, clamped to [0, 1].
func (g Gradient) At(t float64) color.NRGBA {
	if len(g) == 0 {
		return color.NRGBA{A: 0xFF}
	}
	if len(g) == 1 || t <= 0 {
		return g[0]
	}
	if t >= 1 {
		return g[len(g)-1]
	}
	pos := t * float64(len(g)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := g[i], g[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*frac + 0.5)
	}
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 0xFF}
}

// Profile is a fully resolved render profile. Zero-configuration runs
// use Default().
type Profile struct {
	Width  int
	Height int
	Frames int
	FPS    float64

	Theme    string
	FontSize float64
	TabWidth int

	SkewX float64
	SkewY float64
	Fold  float64
	Scale float64

	ShaderPath string
	Uniforms   []Uniform
	Gradient   Gradient
}

// Default returns a profile with every attribute at its default.
func Default() *Profile {
	return &Profile{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		Frames:   DefaultFrames,
		FPS:      DefaultFPS,
		Theme:    DefaultTheme,
		FontSize: DefaultFontSize,
		TabWidth: DefaultTabWidth,
		SkewX:    DefaultSkewX,
		SkewY:    DefaultSkewY,
		Fold:     DefaultFold,
		Scale:    DefaultScale,
		Gradient: DefaultGradient,
	}
}

// fileSchema is the HCL shape of a profile file. No remain bodies, so
// unknown attributes and blocks surface as decode diagnostics.
type fileSchema struct {
	Render *renderSchema `hcl:"render,block"`
	Text   *textSchema   `hcl:"text,block"`
	Effect *effectSchema `hcl:"effect,block"`
	Shader *shaderSchema `hcl:"shader,block"`
}

type renderSchema struct {
	Width  *int     `hcl:"width,optional"`
	Height *int     `hcl:"height,optional"`
	Frames *int     `hcl:"frames,optional"`
	FPS    *float64 `hcl:"fps,optional"`
}

type textSchema struct {
	Theme    string   `hcl:"theme,optional"`
	FontSize *float64 `hcl:"font_size,optional"`
	TabWidth *int     `hcl:"tab_width,optional"`
}

type effectSchema struct {
	SkewX *float64 `hcl:"skew_x,optional"`
	SkewY *float64 `hcl:"skew_y,optional"`
	Fold  *float64 `hcl:"fold,optional"`
	Scale *float64 `hcl:"scale,optional"`
}

type shaderSchema struct {
	Path     string           `hcl:"path,optional"`
	Uniforms []*uniformSchema `hcl:"uniform,block"`
	Gradient *gradientSchema  `hcl:"gradient,block"`
}

type uniformSchema struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

type gradientSchema struct {
	Stops []string `hcl:"stops"`
}

// Load reads and decodes the profile file at path.
func Load(path string) (*Profile, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return Parse(src, path)
}

// Parse decodes profile source. The filename appears in diagnostics.
func Parse(src []byte, filename string) (*Profile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("profile: parse %s: %w", filename, diags)
	}

	var schema fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &schema); diags.HasErrors() {
		return nil, fmt.Errorf("profile: decode %s: %w", filename, diags)
	}
	return translate(&schema)
}

// translate applies defaults and validates the decoded schema.
func translate(s *fileSchema) (*Profile, error) {
	p := Default()

	if r := s.Render; r != nil {
		p.Width = intOr(r.Width, p.Width)
		p.Height = intOr(r.Height, p.Height)
		p.Frames = intOr(r.Frames, p.Frames)
		p.FPS = floatOr(r.FPS, p.FPS)
	}
	if t := s.Text; t != nil {
		if t.Theme != "" {
			p.Theme = t.Theme
		}
		p.FontSize = floatOr(t.FontSize, p.FontSize)
		p.TabWidth = intOr(t.TabWidth, p.TabWidth)
	}
	if e := s.Effect; e != nil {
		p.SkewX = floatOr(e.SkewX, p.SkewX)
		p.SkewY = floatOr(e.SkewY, p.SkewY)
		p.Fold = floatOr(e.Fold, p.Fold)
		p.Scale = floatOr(e.Scale, p.Scale)
	}
	if sh := s.Shader; sh != nil {
		p.ShaderPath = sh.Path
		for _, u := range sh.Uniforms {
			value, err := evalNumber(u.Value)
			if err != nil {
				return nil, fmt.Errorf("profile: uniform %q: %w", u.Name, err)
			}
			for _, existing := range p.Uniforms {
				if existing.Name == u.Name {
					return nil, fmt.Errorf("profile: duplicate uniform %q", u.Name)
				}
			}
			p.Uniforms = append(p.Uniforms, Uniform{Name: u.Name, Value: value})
		}
		if sh.Gradient != nil {
			grad, err := parseGradient(sh.Gradient.Stops)
			if err != nil {
				return nil, err
			}
			p.Gradient = grad
		}
	}

	return p, p.validate()
}

func (p *Profile) validate() error {
	switch {
	case p.Width < 1:
		return fmt.Errorf("profile: width %d must be positive", p.Width)
	case p.Height < 1:
		return fmt.Errorf("profile: height %d must be positive", p.Height)
	case p.Frames < 1:
		return fmt.Errorf("profile: frames %d must be positive", p.Frames)
	case p.FPS <= 0:
		return fmt.Errorf("profile: fps %g must be positive", p.FPS)
	case p.FontSize <= 0:
		return fmt.Errorf("profile: font size %g must be positive", p.FontSize)
	case p.TabWidth < 1:
		return fmt.Errorf("profile: tab width %d must be positive", p.TabWidth)
	case p.Scale <= 0:
		return fmt.Errorf("profile: scale %g must be positive", p.Scale)
	}
	return nil
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func floatOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

// evalNumber evaluates a uniform value expression to a float64.
func evalNumber(expr hcl.Expression) (float64, error) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return 0, diags
	}
	v, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("value is not a number: %w", err)
	}
	if v.IsNull() {
		return 0, fmt.Errorf("value is null")
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

func parseGradient(stops []string) (Gradient, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("profile: gradient needs at least one stop")
	}
	g := make(Gradient, len(stops))
	for i, s := range stops {
		c, err := parseColor(s)
		if err != nil {
			return nil, fmt.Errorf("profile: gradient stop %d: %w", i, err)
		}
		g[i] = c
	}
	return g, nil
}

// parseColor accepts #RGB and #RRGGBB.
func parseColor(s string) (color.NRGBA, error) {
	hex := s
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	nib := func(b byte) (uint8, bool) {
		switch {
		case b >= '0' && b <= '9':
			return b - '0', true
		case b >= 'a' && b <= 'f':
			return b - 'a' + 10, true
		case b >= 'A' && b <= 'F':
			return b - 'A' + 10, true
		}
		return 0, false
	}
	byteAt := func(i int) (uint8, bool) {
		hi, ok1 := nib(hex[i])
		lo, ok2 := nib(hex[i+1])
		return hi<<4 | lo, ok1 && ok2
	}

	switch len(hex) {
	case 3:
		r, ok1 := nib(hex[0])
		g, ok2 := nib(hex[1])
		b, ok3 := nib(hex[2])
		if !ok1 || !ok2 || !ok3 {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
		}
		return color.NRGBA{R: r * 17, G: g * 17, B: b * 17, A: 0xFF}, nil
	case 6:
		r, ok1 := byteAt(0)
		g, ok2 := byteAt(2)
		b, ok3 := byteAt(4)
		if !ok1 || !ok2 || !ok3 {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
		}
		return color.NRGBA{R: r, G: g, B: b, A: 0xFF}, nil
	}
	return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
}
