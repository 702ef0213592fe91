// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"fmt"
)

// Parse-stage sentinel errors. They are carried inside a *ParseError,
// which adds the origin location; match with errors.Is.
var (
	ErrIncludeNotFound    = errors.New("shader: include not found")
	ErrIncludeCycle       = errors.New("shader: include cycle")
	ErrUnknownDirective   = errors.New("shader: unknown directive")
	ErrMalformedArguments = errors.New("shader: malformed directive arguments")
)

// Layout-stage sentinel errors, carried inside a *LayoutError.
var (
	ErrUnknownType       = errors.New("shader: unknown type")
	ErrDuplicateBinding  = errors.New("shader: duplicate binding")
	ErrDataArityMismatch = errors.New("shader: data arity mismatch")
)

// A ParseError reports a directive or include failure at its origin
// location in the original, unexpanded source.
type ParseError struct {
	Err    error  // one of the parse-stage sentinels
	File   string // origin file
	Line   int    // 1-based origin line
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v: %s", e.File, e.Line, e.Err, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }

// parseErr builds a *ParseError at the given origin.
func parseErr(err error, at Origin, format string, args ...any) *ParseError {
	return &ParseError{
		Err:    err,
		File:   at.File,
		Line:   at.Line,
		Detail: fmt.Sprintf(format, args...),
	}
}

// A LayoutError reports a symbol-table or layout failure at the origin of
// the declaring directive.
type LayoutError struct {
	Err    error  // one of the layout-stage sentinels
	File   string
	Line   int
	Name   string // resource or type name involved
	Detail string
}

func (e *LayoutError) Error() string {
	msg := fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	if e.Name != "" {
		msg += fmt.Sprintf(" (%s)", e.Name)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *LayoutError) Unwrap() error { return e.Err }

// layoutErr builds a *LayoutError at the given origin.
func layoutErr(err error, at Origin, name, format string, args ...any) *LayoutError {
	return &LayoutError{
		Err:    err,
		File:   at.File,
		Line:   at.Line,
		Name:   name,
		Detail: fmt.Sprintf(format, args...),
	}
}
