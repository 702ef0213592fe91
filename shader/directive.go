// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// Origin locates a line in original, unexpanded source.
type Origin struct {
	File string
	Line int // 1-based
}

func (o Origin) String() string {
	return fmt.Sprintf("%s:%d", o.File, o.Line)
}

// Directive is one parsed preprocessor instruction. The concrete kinds
// below form a closed set; consumers switch over all of them so a new
// kind cannot be silently ignored.
type Directive interface {
	Origin() Origin
	directive()
}

// directiveBase carries the origin shared by every directive kind.
type directiveBase struct {
	at Origin
}

func (d directiveBase) Origin() Origin { return d.at }
func (directiveBase) directive()       {}

// Include splices another source unit into the expansion at this point.
// The angle-bracket form resolves against the bundled std namespace; the
// quoted form resolves through the build's Loader.
type Include struct {
	directiveBase
	Path    string
	Virtual bool
}

// Storage declares a read-write storage buffer. The type expression is
// parsed by the layout resolver, not here.
type Storage struct {
	directiveBase
	Name string
	Type string
}

// Data declares a read-only buffer with fixed initial contents.
type Data struct {
	directiveBase
	Name   string
	Type   string
	Values []string
}

// WorkgroupCount pins an explicit dispatch grid to the named pass.
type WorkgroupCount struct {
	directiveBase
	Pass    string
	X, Y, Z uint32
}

// DispatchOnce limits the named pass to a single dispatch per artifact
// generation.
type DispatchOnce struct {
	directiveBase
	Pass string
}

// DispatchCount limits the named pass to its first Count ticks.
type DispatchCount struct {
	directiveBase
	Pass  string
	Count uint32
}

// Assert registers an advisory GPU-side assertion site. Index is the
// dense site id assigned in parse order.
type Assert struct {
	directiveBase
	Index     int
	Predicate string
}

// Define registers a whole-identifier textual substitution applied to all
// subsequent lines.
type Define struct {
	directiveBase
	Name        string
	Replacement string
}

// directiveKeywords is the closed set of recognized directive keywords.
var directiveKeywords = map[string]bool{
	"include":         true,
	"storage":         true,
	"data":            true,
	"workgroup_count": true,
	"dispatch_once":   true,
	"dispatch_count":  true,
	"assert":          true,
	"define":          true,
}

// parseDirective parses one pre-split directive line. assertIndex is
// the next dense assertion site id.
func parseDirective(keyword, args string, at Origin, assertIndex int) (Directive, error) {
	if !directiveKeywords[keyword] {
		return nil, parseErr(ErrUnknownDirective, at, "#%s", keyword)
	}

	base := directiveBase{at: at}
	switch keyword {
	case "include":
		return parseInclude(args, base)

	case "storage":
		name, typeExpr, ok := splitNameType(args)
		if !ok {
			return nil, parseErr(ErrMalformedArguments, at, "storage wants: #storage <name> <type>")
		}
		return Storage{directiveBase: base, Name: name, Type: typeExpr}, nil

	case "data":
		fields := strings.Fields(args)
		if len(fields) < 3 {
			return nil, parseErr(ErrMalformedArguments, at, "data wants: #data <name> <type> <v1,v2,...>")
		}
		values := strings.Split(fields[len(fields)-1], ",")
		for i, v := range values {
			values[i] = strings.TrimSpace(v)
		}
		return Data{
			directiveBase: base,
			Name:          fields[0],
			Type:          strings.Join(fields[1:len(fields)-1], " "),
			Values:        values,
		}, nil

	case "workgroup_count":
		fields := strings.Fields(args)
		if len(fields) != 4 {
			return nil, parseErr(ErrMalformedArguments, at, "workgroup_count wants: #workgroup_count <pass> <x> <y> <z>")
		}
		var dims [3]uint32
		for i, f := range fields[1:] {
			n, err := strconv.ParseUint(f, 10, 32)
			if err != nil || n == 0 {
				return nil, parseErr(ErrMalformedArguments, at, "workgroup_count dimension %q is not a positive integer", f)
			}
			dims[i] = uint32(n)
		}
		return WorkgroupCount{
			directiveBase: base,
			Pass:          fields[0],
			X:             dims[0],
			Y:             dims[1],
			Z:             dims[2],
		}, nil

	case "dispatch_once":
		fields := strings.Fields(args)
		if len(fields) != 1 {
			return nil, parseErr(ErrMalformedArguments, at, "dispatch_once wants: #dispatch_once <pass>")
		}
		return DispatchOnce{directiveBase: base, Pass: fields[0]}, nil

	case "dispatch_count":
		fields := strings.Fields(args)
		if len(fields) != 2 {
			return nil, parseErr(ErrMalformedArguments, at, "dispatch_count wants: #dispatch_count <pass> <n>")
		}
		n, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil || n == 0 {
			return nil, parseErr(ErrMalformedArguments, at, "dispatch_count %q is not a positive integer", fields[1])
		}
		return DispatchCount{directiveBase: base, Pass: fields[0], Count: uint32(n)}, nil

	case "assert":
		if args == "" {
			return nil, parseErr(ErrMalformedArguments, at, "assert wants: #assert <predicate>")
		}
		return Assert{directiveBase: base, Index: assertIndex, Predicate: args}, nil

	case "define":
		name, repl, ok := splitNameType(args)
		if !ok || !isIdent(name) {
			return nil, parseErr(ErrMalformedArguments, at, "define wants: #define <name> <replacement>")
		}
		return Define{directiveBase: base, Name: name, Replacement: repl}, nil
	}
	// Unreachable: the keyword set above is closed.
	return nil, parseErr(ErrUnknownDirective, at, "#%s", keyword)
}

func parseInclude(args string, base directiveBase) (Directive, error) {
	at := base.at
	switch {
	case len(args) >= 2 && args[0] == '<' && args[len(args)-1] == '>':
		path := strings.TrimSpace(args[1 : len(args)-1])
		if path == "" {
			return nil, parseErr(ErrMalformedArguments, at, "empty include path")
		}
		return Include{directiveBase: base, Path: path, Virtual: true}, nil
	case len(args) >= 2 && args[0] == '"' && args[len(args)-1] == '"':
		path := strings.TrimSpace(args[1 : len(args)-1])
		if path == "" {
			return nil, parseErr(ErrMalformedArguments, at, "empty include path")
		}
		return Include{directiveBase: base, Path: path, Virtual: false}, nil
	default:
		return nil, parseErr(ErrMalformedArguments, at, `include wants: #include <std/unit> or #include "path"`)
	}
}

// splitNameType splits "name rest..." at the first whitespace run. The
// remainder may itself contain spaces (e.g. "array<f32, 4>").
func splitNameType(s string) (name, rest string, ok bool) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return "", "", false
	}
	return s[:i], strings.TrimSpace(s[i+1:]), true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
