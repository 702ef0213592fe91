package text

import (
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Face is a lightweight font instance at a specific size.
// Faces are values; copy them freely. All faces created from the same
// FontSource share its parsed font data and glyph mask cache.
type Face struct {
	source *FontSource
	size   float64
}

// Source returns the FontSource this face was created from.
func (f Face) Source() *FontSource {
	return f.source
}

// Size returns the font size in pixels per em.
func (f Face) Size() float64 {
	return f.size
}

// ppem returns the size in 26.6 fixed point.
func (f Face) ppem() fixed.Int26_6 {
	return fixed.Int26_6(f.size * 64)
}

// Metrics returns the font metrics at this face's size.
// Descent is negative, following the convention that y grows upward
// from the baseline in font space.
func (f Face) Metrics() FontMetrics {
	var buf sfnt.Buffer

	m, err := f.source.sfnt.Metrics(&buf, f.ppem(), font.HintingFull)
	if err != nil {
		return FontMetrics{}
	}

	ascent := fixedToFloat64(m.Ascent)
	descent := fixedToFloat64(m.Descent)
	return FontMetrics{
		Ascent:    ascent,
		Descent:   -descent,
		LineGap:   fixedToFloat64(m.Height) - ascent - descent,
		XHeight:   fixedToFloat64(m.XHeight),
		CapHeight: fixedToFloat64(m.CapHeight),
	}
}

// GlyphIndex returns the glyph ID for a rune.
// Returns 0 (the missing-glyph slot) if the font has no mapping.
func (f Face) GlyphIndex(r rune) GlyphID {
	idx, err := f.source.sfnt.GlyphIndex(nil, r)
	if err != nil {
		return 0
	}
	return GlyphID(idx)
}

// GlyphAdvance returns the advance width for a glyph at this size.
// Advances are unhinted so they agree with what the shaper produces.
func (f Face) GlyphAdvance(gid GlyphID) float64 {
	var buf sfnt.Buffer

	advance, err := f.source.sfnt.GlyphAdvance(&buf, sfnt.GlyphIndex(gid), f.ppem(), font.HintingNone)
	if err != nil {
		return 0
	}
	return fixedToFloat64(advance)
}

// CellAdvance returns the advance of the digit zero, the column width
// for monospace layout estimates.
func (f Face) CellAdvance() float64 {
	return f.GlyphAdvance(f.GlyphIndex('0'))
}

// fixedToFloat64 converts fixed.Int26_6 to float64.
func fixedToFloat64(x fixed.Int26_6) float64 {
	return float64(x) / 64.0
}
