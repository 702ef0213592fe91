package text

import (
	"image"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/gogpu/codeskew/cache"
)

// subpixelDivisions is the number of horizontal subpixel positions a
// glyph can be rasterized at. Four positions is the usual tradeoff:
// quarter-pixel placement removes visible jitter at small sizes while
// multiplying the mask cache by only 4x.
const subpixelDivisions = 4

// maskCacheCapacity is the per-shard capacity of the glyph mask cache.
const maskCacheCapacity = 512

// GlyphMask is a rasterized glyph: an alpha mask plus the placement
// offsets that anchor it to the pen position.
type GlyphMask struct {
	// Mask is the coverage mask. Nil for glyphs with no ink, such as
	// spaces.
	Mask *image.Alpha

	// Left and Top offset the mask's min corner from the integer pen
	// position on the baseline. Top is negative for anything with an
	// ascender.
	Left, Top int

	// Advance is the unhinted advance width in pixels.
	Advance float64
}

// maskKey identifies a rasterized mask. Size is stored as float32
// bits for exact matching without floating-point comparison.
type maskKey struct {
	font uint64
	gid  GlyphID
	size uint32
	sub  uint8
}

// maskKeyHasher mixes the key fields FNV-1a style for shard selection.
func maskKeyHasher(k maskKey) uint64 {
	const prime = 1099511628211
	h := k.font
	h = h*prime ^ uint64(k.gid)
	h = h*prime ^ uint64(k.size)
	h = h*prime ^ uint64(k.sub)
	return h
}

var maskCache = cache.NewSharded[maskKey, *GlyphMask](maskCacheCapacity, maskKeyHasher)

// quantizeSubpixel maps a fractional pixel offset in [0, 1) to one of
// subpixelDivisions discrete positions.
func quantizeSubpixel(frac float64) uint8 {
	q := int(frac * subpixelDivisions)
	if q < 0 {
		q = 0
	}
	if q >= subpixelDivisions {
		q = subpixelDivisions - 1
	}
	return uint8(q)
}

// Mask returns the rasterized mask for a glyph at this face's size.
// fracX is the fractional part of the pen x position; it selects which
// of the quantized subpixel variants is rendered. Masks are cached per
// (font, glyph, size, subpixel position) and shared across faces.
//
// The returned mask is shared; callers must not modify it.
func (f Face) Mask(gid GlyphID, fracX float64) *GlyphMask {
	fracX -= math.Floor(fracX)
	sub := quantizeSubpixel(fracX)

	key := maskKey{
		font: f.source.id,
		gid:  gid,
		size: math.Float32bits(float32(f.size)),
		sub:  sub,
	}
	return maskCache.GetOrCreate(key, func() *GlyphMask {
		return f.rasterize(gid, float64(sub)/subpixelDivisions)
	})
}

// rasterize renders a glyph outline into an alpha mask, shifted right
// by dx pixels for subpixel placement.
func (f Face) rasterize(gid GlyphID, dx float64) *GlyphMask {
	var buf sfnt.Buffer
	ppem := f.ppem()

	advance := 0.0
	if adv, err := f.source.sfnt.GlyphAdvance(&buf, sfnt.GlyphIndex(gid), ppem, font.HintingNone); err == nil {
		advance = fixedToFloat64(adv)
	}

	segments, err := f.source.sfnt.LoadGlyph(&buf, sfnt.GlyphIndex(gid), ppem, nil)
	if err != nil || len(segments) == 0 {
		// Missing glyph, color glyph, or blank glyph like a space.
		return &GlyphMask{Advance: advance}
	}

	bounds, _, err := f.source.sfnt.GlyphBounds(&buf, sfnt.GlyphIndex(gid), ppem, font.HintingNone)
	if err != nil {
		return &GlyphMask{Advance: advance}
	}

	// Integer mask rect covering the shifted outline. Glyph space is
	// y-down with the baseline at zero, so ascenders have negative Y.
	minX := int(math.Floor(fixedToFloat64(bounds.Min.X) + dx))
	minY := int(math.Floor(fixedToFloat64(bounds.Min.Y)))
	maxX := int(math.Ceil(fixedToFloat64(bounds.Max.X) + dx))
	maxY := int(math.Ceil(fixedToFloat64(bounds.Max.Y)))

	w := maxX - minX
	h := maxY - minY
	if w <= 0 || h <= 0 {
		return &GlyphMask{Advance: advance}
	}

	r := vector.NewRasterizer(w, h)
	ox := dx - float64(minX)
	oy := -float64(minY)
	at := func(p fixed.Point26_6) (float32, float32) {
		return float32(float64(p.X)/64 + ox), float32(float64(p.Y)/64 + oy)
	}

	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			x, y := at(seg.Args[0])
			r.MoveTo(x, y)
		case sfnt.SegmentOpLineTo:
			x, y := at(seg.Args[0])
			r.LineTo(x, y)
		case sfnt.SegmentOpQuadTo:
			cx, cy := at(seg.Args[0])
			x, y := at(seg.Args[1])
			r.QuadTo(cx, cy, x, y)
		case sfnt.SegmentOpCubeTo:
			c1x, c1y := at(seg.Args[0])
			c2x, c2y := at(seg.Args[1])
			x, y := at(seg.Args[2])
			r.CubeTo(c1x, c1y, c2x, c2y, x, y)
		}
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	r.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	return &GlyphMask{
		Mask:    mask,
		Left:    minX,
		Top:     minY,
		Advance: advance,
	}
}
