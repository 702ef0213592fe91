// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Default output dimensions when the caller does not provide any.
const (
	DefaultWidth  = 800
	DefaultHeight = 450
)

// stringCapacity is the fixed character capacity of expanded string
// literals.
const stringCapacity = 20

// Config parameterizes a Preprocessor.
type Config struct {
	Loader Loader // quoted-include resolution; nil rejects quoted includes
	Width  uint32 // output width, seeds the SCREEN_WIDTH substitution
	Height uint32 // output height, seeds the SCREEN_HEIGHT substitution
}

// Preprocessor expands directive-annotated shader templates into plain
// WGSL plus a line-accurate source map.
type Preprocessor struct {
	cfg Config
}

func NewPreprocessor(cfg Config) *Preprocessor {
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = DefaultWidth, DefaultHeight
	}
	return &Preprocessor{cfg: cfg}
}

// Expansion is the parser's output: the expanded body, its provenance
// map, and the directive stream for the resolver and scheduler.
type Expansion struct {
	Source     string // expanded body text, directives stripped
	LineCount  int
	Map        SourceMap
	Directives []Directive
	Extensions []string // hoisted enable lines, first-appearance order
	EntryFile  string

	structs *structTable
	seqs    []int // per-directive expansion-order stamps
}

// Expand processes the entry unit and every include it reaches.
// Non-directive lines pass through verbatim, one output line per input
// line; directive lines emit no output except #assert, which emits its
// counter call. The source map covers every output line exactly once.
func (p *Preprocessor) Expand(entry SourceUnit) (*Expansion, error) {
	e := &expander{
		cfg:     p.cfg,
		extSeen: make(map[string]bool),
		defIdx:  make(map[string]int),
	}
	e.seedDefine("SCREEN_WIDTH", strconv.FormatUint(uint64(p.cfg.Width), 10))
	e.seedDefine("SCREEN_HEIGHT", strconv.FormatUint(uint64(p.cfg.Height), 10))

	if err := e.processUnit(entry, Origin{File: entry.Path}); err != nil {
		return nil, err
	}

	source := strings.Join(e.out, "\n")
	if strings.HasSuffix(entry.Text, "\n") && len(e.out) > 0 {
		source += "\n"
	}
	return &Expansion{
		Source:     source,
		LineCount:  len(e.out),
		Map:        e.m,
		Directives: e.dirs,
		Extensions: e.exts,
		EntryFile:  entry.Path,
		structs:    scanStructs(source),
		seqs:       e.seqs,
	}, nil
}

// define is one registered textual substitution.
type define struct {
	name string
	re   *regexp.Regexp
	repl string
}

type expander struct {
	cfg     Config
	out     []string
	m       SourceMap
	dirs    []Directive
	seqs    []int
	exts    []string
	extSeen map[string]bool
	stack   []string // include chain, for cycle detection
	defines []define
	defIdx  map[string]int
	strings bool // std/string included; expand quoted literals
	assertN int
}

func (e *expander) processUnit(u SourceUnit, includedAt Origin) error {
	for _, p := range e.stack {
		if p == u.Path {
			chain := strings.Join(append(e.stack, u.Path), " -> ")
			return parseErr(ErrIncludeCycle, includedAt, "%s", chain)
		}
	}
	e.stack = append(e.stack, u.Path)
	defer func() { e.stack = e.stack[:len(e.stack)-1] }()

	for i, raw := range splitLines(u.Text) {
		at := Origin{File: u.Path, Line: i + 1}
		line := strings.TrimSuffix(raw, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "#"):
			if err := e.processDirective(line, trimmed, at); err != nil {
				return err
			}
		case isEnableLine(trimmed):
			if !e.extSeen[trimmed] {
				e.extSeen[trimmed] = true
				e.exts = append(e.exts, trimmed)
			}
		default:
			s := e.applyDefines(line)
			if e.strings && strings.Contains(s, `"`) {
				var err error
				if s, err = e.expandStrings(s, at); err != nil {
					return err
				}
			}
			e.emit(s, at)
		}
	}
	return nil
}

func (e *expander) processDirective(line, trimmed string, at Origin) error {
	keyword, args := splitDirectiveLine(trimmed)
	if keyword != "define" {
		args = e.applyDefines(args)
	}
	d, err := parseDirective(keyword, args, at, e.assertN)
	if err != nil {
		return err
	}
	e.dirs = append(e.dirs, d)
	e.seqs = append(e.seqs, len(e.out))

	switch d := d.(type) {
	case Include:
		return e.processInclude(d, at)
	case Define:
		e.registerDefine(d.Name, e.applyDefines(d.Replacement))
	case Assert:
		e.assertN++
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		e.emit(fmt.Sprintf("%sassert(%d, (%s));", indent, d.Index, d.Predicate), at)
	case Storage, Data, WorkgroupCount, DispatchOnce, DispatchCount:
		// State-only; the resolver and scheduler consume these.
	}
	return nil
}

func (e *expander) processInclude(d Include, at Origin) error {
	if d.Virtual {
		unit, ok := loadStd(d.Path)
		if !ok {
			return parseErr(ErrIncludeNotFound, at, "no bundled unit %q", d.Path)
		}
		if d.Path == stdUnitString {
			e.strings = true
		}
		return e.processUnit(unit, at)
	}
	if e.cfg.Loader == nil {
		return parseErr(ErrIncludeNotFound, at, "%q: no loader configured for quoted includes", d.Path)
	}
	unit, err := e.cfg.Loader.Load(d.Path)
	if err != nil {
		return parseErr(ErrIncludeNotFound, at, "%q: %v", d.Path, err)
	}
	unit.Path = d.Path
	return e.processUnit(unit, at)
}

func (e *expander) emit(line string, at Origin) {
	e.out = append(e.out, line)
	e.m.add(len(e.out), at.File, at.Line)
}

func (e *expander) seedDefine(name, repl string) {
	e.registerDefine(name, repl)
}

func (e *expander) registerDefine(name, repl string) {
	if i, ok := e.defIdx[name]; ok {
		e.defines[i].repl = repl
		return
	}
	e.defIdx[name] = len(e.defines)
	e.defines = append(e.defines, define{
		name: name,
		re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`),
		repl: repl,
	})
}

func (e *expander) applyDefines(s string) string {
	for _, d := range e.defines {
		if strings.Contains(s, d.name) {
			s = d.re.ReplaceAllLiteralString(s, d.repl)
		}
	}
	return s
}

var stringLitRe = regexp.MustCompile(`"[^"]*"`)

// expandStrings rewrites double-quoted literals into fixed-capacity
// String constructor calls.
func (e *expander) expandStrings(line string, at Origin) (string, error) {
	var err error
	out := stringLitRe.ReplaceAllStringFunc(line, func(m string) string {
		if err != nil {
			return m
		}
		runes := []rune(m[1 : len(m)-1])
		if len(runes) > stringCapacity {
			err = parseErr(ErrMalformedArguments, at,
				"string literal %s exceeds %d characters", m, stringCapacity)
			return m
		}
		var b strings.Builder
		fmt.Fprintf(&b, "String(%du, array<uint, %d>(", len(runes), stringCapacity)
		for i := 0; i < stringCapacity; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			if i < len(runes) {
				fmt.Fprintf(&b, "0x%02xu", runes[i])
			} else {
				b.WriteString("0u")
			}
		}
		b.WriteString("))")
		return b.String()
	})
	return out, err
}

// splitLines splits text into lines without the trailing empty slice a
// final newline would otherwise produce.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitDirectiveLine splits "#keyword args..." into its parts. The line
// must already be trimmed and start with '#'.
func splitDirectiveLine(trimmed string) (keyword, args string) {
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		return rest[:i], strings.TrimSpace(rest[i+1:])
	}
	return rest, ""
}

// isEnableLine reports whether the line is a WGSL extension directive,
// which must be hoisted above all generated declarations.
func isEnableLine(trimmed string) bool {
	rest, ok := strings.CutPrefix(trimmed, "enable")
	if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return false
	}
	return strings.HasSuffix(strings.TrimSpace(rest), ";")
}

var (
	structRe = regexp.MustCompile(`\bstruct\s+([A-Za-z_][A-Za-z0-9_]*)\s*\{([^}]*)\}`)
	attrRe   = regexp.MustCompile(`@[A-Za-z_]+(\([^)]*\))?\s*`)
)

// scanStructs indexes struct declarations in the expanded body so later
// directives can reference them by name. Each struct is stamped with the
// line of its closing brace; it is visible only to directives that
// appear after that line.
func scanStructs(src string) *structTable {
	t := newStructTable()
	for _, loc := range structRe.FindAllStringSubmatchIndex(src, -1) {
		rs := &rawStruct{
			name: src[loc[2]:loc[3]],
			seq:  1 + strings.Count(src[:loc[1]], "\n"),
		}
		for _, f := range splitStructFields(src[loc[4]:loc[5]]) {
			rs.fields = append(rs.fields, f)
		}
		t.add(rs)
	}
	return t
}

func splitStructFields(body string) []structField {
	body = strings.ReplaceAll(body, ";", ",")
	var fields []structField
	depth, start := 0, 0
	flush := func(end int) {
		piece := strings.TrimSpace(attrRe.ReplaceAllString(body[start:end], ""))
		if piece == "" {
			return
		}
		c := strings.IndexByte(piece, ':')
		if c <= 0 {
			return
		}
		name := strings.TrimSpace(piece[:c])
		typ := strings.TrimSpace(piece[c+1:])
		if isIdent(name) && typ != "" {
			fields = append(fields, structField{name: name, typ: typ})
		}
	}
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(body))
	return fields
}
