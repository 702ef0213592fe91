// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package highlight tokenizes source code into per-line styled spans
// with resolved foreground colors, ready for shaping and rasterization.
//
// Lexers and color themes come from Chroma. Lookups never fail: an
// unknown language falls back to the plain-text lexer and an unknown
// theme falls back to DefaultTheme.
package highlight

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultTheme is the style used when the requested theme is unknown
// or empty.
const DefaultTheme = "monokai"

// DefaultTabWidth is the tab stop applied during expansion.
const DefaultTabWidth = 4

// defaultForeground is used when neither the token nor the theme base
// carries a color. Code renders over dark backgrounds, so light.
var defaultForeground = color.NRGBA{R: 0xF8, G: 0xF8, B: 0xF2, A: 0xFF}

// A Span is a run of uniformly styled text within one line. Tabs are
// already expanded to spaces.
type Span struct {
	Text      string
	Color     color.NRGBA
	Bold      bool
	Italic    bool
	Underline bool
}

// A Line is one source line of styled spans. An empty source line has
// no spans.
type Line struct {
	Number int // 1-based
	Spans  []Span
}

// Text reassembles the line without styling.
func (l Line) Text() string {
	var b strings.Builder
	for _, s := range l.Spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Options select the lexer, theme and tab handling.
type Options struct {
	// Language forces a lexer by name or alias. Empty means match by
	// filename.
	Language string

	// Theme names a Chroma style. Unknown or empty falls back to
	// DefaultTheme.
	Theme string

	// TabWidth is the tab stop for expansion. Non-positive means
	// DefaultTabWidth.
	TabWidth int
}

// Highlight tokenizes source and returns styled lines. The filename
// selects the lexer when Options.Language is empty; line numbers are
// 1-based and a trailing newline does not produce a final empty line.
func Highlight(source, filename string, opts Options) ([]Line, error) {
	if source == "" {
		return nil, nil
	}
	lexer := pickLexer(opts.Language, filename)
	style := pickStyle(opts.Theme)
	tabWidth := opts.TabWidth
	if tabWidth <= 0 {
		tabWidth = DefaultTabWidth
	}

	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return nil, fmt.Errorf("highlight: tokenize: %w", err)
	}

	base := style.Get(chroma.Text)

	var lines []Line
	cur := Line{Number: 1}
	col := 0

	emit := func(text string, entry chroma.StyleEntry) {
		if text == "" {
			return
		}
		expanded, next := expandTabs(text, col, tabWidth)
		col = next
		cur.Spans = append(cur.Spans, Span{
			Text:      expanded,
			Color:     foreground(entry, base),
			Bold:      entry.Bold == chroma.Yes,
			Italic:    entry.Italic == chroma.Yes,
			Underline: entry.Underline == chroma.Yes,
		})
	}

	for tok := it(); tok != chroma.EOF; tok = it() {
		entry := style.Get(tok.Type)
		value := tok.Value
		for {
			nl := strings.IndexByte(value, '\n')
			if nl < 0 {
				emit(value, entry)
				break
			}
			emit(strings.TrimSuffix(value[:nl], "\r"), entry)
			lines = append(lines, cur)
			cur = Line{Number: cur.Number + 1}
			col = 0
			value = value[nl+1:]
		}
	}
	if len(cur.Spans) > 0 {
		lines = append(lines, cur)
	}
	return lines, nil
}

// Themes lists the available theme names in sorted order.
func Themes() []string {
	return styles.Names()
}

func pickLexer(language, filename string) chroma.Lexer {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil && filename != "" {
		lexer = lexers.Match(filename)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

func pickStyle(theme string) *chroma.Style {
	if theme == "" {
		theme = DefaultTheme
	}
	if s, ok := styles.Registry[theme]; ok {
		return s
	}
	if s, ok := styles.Registry[strings.ToLower(theme)]; ok {
		return s
	}
	if s, ok := styles.Registry[DefaultTheme]; ok {
		return s
	}
	return styles.Fallback
}

func foreground(entry, base chroma.StyleEntry) color.NRGBA {
	c := entry.Colour
	if !c.IsSet() {
		c = base.Colour
	}
	if !c.IsSet() {
		return defaultForeground
	}
	return color.NRGBA{R: c.Red(), G: c.Green(), B: c.Blue(), A: 0xFF}
}

// expandTabs replaces tabs with spaces up to the next tab stop,
// tracking the column across spans of the same line.
func expandTabs(text string, col, tabWidth int) (string, int) {
	if !strings.ContainsRune(text, '\t') {
		return text, col + len([]rune(text))
	}
	var b strings.Builder
	for _, r := range text {
		if r == '\t' {
			n := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String(), col
}
