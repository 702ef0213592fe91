package text

import (
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
)

// ShapedGlyph is a positioned glyph produced by shaping.
// Positions are in pixels relative to the pen origin at the baseline
// of the first character; y grows down, matching image space.
type ShapedGlyph struct {
	// GID is the glyph index in the font.
	GID GlyphID

	// Cluster is the rune index in the shaped string this glyph maps
	// back to. Ligatures make this many-to-one.
	Cluster int

	// X, Y are the glyph origin relative to the pen origin.
	X, Y float64

	// XAdvance is how far the pen moves after this glyph.
	XAdvance float64
}

// shaperPool pools HarfbuzzShaper instances. HarfbuzzShaper has
// internal mutable state and is not safe for concurrent use, but
// reusing instances across sequential calls avoids reallocating its
// buffers.
var shaperPool = sync.Pool{
	New: func() any {
		return &shaping.HarfbuzzShaper{}
	},
}

// Shape converts text into positioned glyphs using HarfBuzz shaping
// via go-text/typesetting. The text is first split into direction runs
// with the Unicode bidi algorithm; runs are shaped separately and laid
// out in visual order, so the returned glyphs read left to right.
//
// Shaping applies the font's ligature and kerning tables, so the
// glyph count may differ from the rune count.
func (f Face) Shape(text string) []ShapedGlyph {
	if text == "" || f.source == nil {
		return nil
	}

	runes := []rune(text)
	runs := bidiRuns(text, DirectionLTR)
	if len(runs) == 0 {
		return nil
	}

	// font.Face is not safe for concurrent use; each Shape call gets
	// its own lightweight instance wrapping the shared Font.
	gtFace := font.NewFace(f.source.shaped)

	hb := shaperPool.Get().(*shaping.HarfbuzzShaper)
	defer shaperPool.Put(hb)

	glyphs := make([]ShapedGlyph, 0, len(runes))
	var penX float64

	for _, run := range runs {
		input := shaping.Input{
			Text:      runes,
			RunStart:  run.start,
			RunEnd:    run.end,
			Direction: mapDirection(run.dir),
			Face:      gtFace,
			Size:      f.ppem(),
			Script:    detectScript(runes[run.start:run.end]),
			Language:  language.NewLanguage("en"),
		}

		out := hb.Shape(input)
		for _, g := range out.Glyphs {
			adv := fixedToFloat64(g.Advance)
			glyphs = append(glyphs, ShapedGlyph{
				GID:      GlyphID(uint16(g.GlyphID)), //nolint:gosec // glyph IDs are 16-bit in sfnt fonts
				Cluster:  g.TextIndex(),
				X:        penX + fixedToFloat64(g.XOffset),
				Y:        -fixedToFloat64(g.YOffset),
				XAdvance: adv,
			})
			penX += adv
		}
	}

	return glyphs
}

// Advance returns the total advance width of the shaped text in
// pixels. This is the measure the layout uses for line widths;
// unlike summing per-rune advances it accounts for ligatures and
// kerning.
func (f Face) Advance(text string) float64 {
	var width float64
	for _, g := range f.Shape(text) {
		width += g.XAdvance
	}
	return width
}

// mapDirection converts a Direction to go-text's di.Direction.
func mapDirection(d Direction) di.Direction {
	if d == DirectionRTL {
		return di.DirectionRTL
	}
	return di.DirectionLTR
}

// detectScript inspects the runes and returns the script of the first
// non-space character. Runs come out of the bidi split, which keeps
// scripts from mixing within a run for the inputs we shape.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}
