package main

import (
	"errors"
	"testing"

	"github.com/gogpu/codeskew/engine"
	"github.com/gogpu/codeskew/shader"
)

func TestDiagnosticLine(t *testing.T) {
	if got := diagnosticLine(errors.New("boom")); got != "boom" {
		t.Errorf("diagnosticLine(plain) = %q, want %q", got, "boom")
	}

	ce := &engine.CompileError{Diagnostics: []engine.RemappedDiagnostic{
		{File: "fx.wgsl", Line: 3, Column: 7, Message: "unknown identifier"},
		{File: "fx.wgsl", Line: 9, Column: 1, Message: "second finding"},
	}}
	want := "fx.wgsl:3:7: unknown identifier"
	if got := diagnosticLine(ce); got != want {
		t.Errorf("diagnosticLine(compile error) = %q, want first diagnostic %q", got, want)
	}
}

func TestQueueCoalesces(t *testing.T) {
	v := &viewer{units: make(chan shader.SourceUnit, 1)}
	v.queue(shader.SourceUnit{Path: "a"})
	v.queue(shader.SourceUnit{Path: "b"})
	v.queue(shader.SourceUnit{Path: "c"})

	got := <-v.units
	if got.Path != "c" {
		t.Errorf("drained unit = %q, want newest %q", got.Path, "c")
	}
	select {
	case u := <-v.units:
		t.Errorf("unexpected second unit %q", u.Path)
	default:
	}
}
