// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/wgsl"

	"github.com/gogpu/codeskew/engine"
)

// Frontend validates assembled WGSL and translates it to SPIR-V using
// the pure-Go naga compiler. It implements both engine.Validator and
// engine.Compiler and is shared by every device.
type Frontend struct {
	opts naga.CompileOptions
}

// NewFrontend returns a Frontend with default compile options.
func NewFrontend() *Frontend {
	return &Frontend{opts: naga.DefaultOptions()}
}

var (
	_ engine.Validator = (*Frontend)(nil)
	_ engine.Compiler  = (*Frontend)(nil)
)

// Validate runs parse, lowering, and IR validation without generating
// code. Findings the frontend can attribute to a source position come
// back as diagnostics; anything else is an internal error.
func (f *Frontend) Validate(source string) ([]engine.Diagnostic, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		if diags, ok := sourceDiagnostics(err); ok {
			return diags, nil
		}
		return nil, err
	}

	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		if diags, ok := sourceDiagnostics(err); ok {
			return diags, nil
		}
		return nil, err
	}

	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, err
	}
	if len(verrs) == 0 {
		return nil, nil
	}
	diags := make([]engine.Diagnostic, 0, len(verrs))
	for _, ve := range verrs {
		// IR validation findings carry no source span.
		diags = append(diags, engine.Diagnostic{Message: validationMessage(ve)})
	}
	return diags, nil
}

// Compile translates WGSL to SPIR-V words. IR validation is skipped
// here; the engine runs Validate first and reports findings with
// remapped positions.
func (f *Frontend) Compile(source string) ([]uint32, error) {
	opts := f.opts
	opts.Validate = false
	raw, err := naga.CompileWithOptions(source, opts)
	if err != nil {
		return nil, fmt.Errorf("backend: naga: %w", err)
	}
	return spirvWords(raw)
}

// sourceDiagnostics extracts positioned findings from a frontend error.
func sourceDiagnostics(err error) ([]engine.Diagnostic, bool) {
	var list wgsl.SourceErrors
	if errors.As(err, &list) {
		diags := make([]engine.Diagnostic, 0, len(list))
		for _, se := range list {
			diags = append(diags, sourceDiagnostic(se))
		}
		return diags, true
	}
	var se *wgsl.SourceError
	if errors.As(err, &se) {
		return []engine.Diagnostic{sourceDiagnostic(se)}, true
	}
	return nil, false
}

func sourceDiagnostic(se *wgsl.SourceError) engine.Diagnostic {
	return engine.Diagnostic{
		Line:    se.Span.Start.Line,
		Column:  se.Span.Start.Column,
		Message: se.Message,
	}
}

func validationMessage(ve ir.ValidationError) string {
	if ve.Function != "" {
		return fmt.Sprintf("in fn %s: %s", ve.Function, ve.Message)
	}
	return ve.Message
}

// spirvWords reinterprets a SPIR-V byte stream as little-endian words.
func spirvWords(raw []byte) ([]uint32, error) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, fmt.Errorf("backend: SPIR-V blob is %d bytes, not word aligned", len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = uint32(raw[i*4]) |
			uint32(raw[i*4+1])<<8 |
			uint32(raw[i*4+2])<<16 |
			uint32(raw[i*4+3])<<24
	}
	return words, nil
}
