// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDispatchGrid reports a pass with no computable dispatch
	// grid, carried inside a *SchedulingError.
	ErrMissingDispatchGrid = errors.New("engine: missing dispatch grid")

	// ErrClosed is returned from operations on a closed engine.
	ErrClosed = errors.New("engine: closed")

	// ErrNoAdapter is returned when an operation needs GPU execution but
	// the engine was constructed without an Adapter.
	ErrNoAdapter = errors.New("engine: no adapter configured")
)

// A SchedulingError reports that a discovered pass cannot be scheduled.
type SchedulingError struct {
	Err    error // scheduling sentinel
	Pass   string
	Detail string
}

func (e *SchedulingError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: pass %q", e.Err, e.Pass)
	}
	return fmt.Sprintf("%v: pass %q: %s", e.Err, e.Pass, e.Detail)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// A Diagnostic is one validator finding, located in the assembled
// (prelude plus expanded body) source. Line and Column are 1-based;
// zero means the validator supplied no position.
type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

// A RemappedDiagnostic is a Diagnostic translated back to the original
// input through the source map. Lines inside the generated prelude
// report the synthetic "<prelude>" file.
type RemappedDiagnostic struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (d RemappedDiagnostic) String() string {
	if d.Line == 0 {
		return d.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
}

// A CompileError reports backend rejection of generated source, with
// every diagnostic remapped to its origin location. The previous active
// artifact stays in place when a build fails this way.
type CompileError struct {
	Diagnostics []RemappedDiagnostic
	Err         error // underlying backend error, may be nil
}

func (e *CompileError) Error() string {
	switch len(e.Diagnostics) {
	case 0:
		return fmt.Sprintf("engine: shader rejected: %v", e.Err)
	case 1:
		return "engine: shader rejected: " + e.Diagnostics[0].String()
	default:
		return fmt.Sprintf("engine: shader rejected: %s (and %d more)",
			e.Diagnostics[0], len(e.Diagnostics)-1)
	}
}

func (e *CompileError) Unwrap() error { return e.Err }
