package layout

import "math"

// FoldPoint is the vertical position of the fold crease as a fraction
// of the layer height. Text is largest two thirds of the way down.
const FoldPoint = 0.67

// mapIterations bounds the fixed-point solve in Map.
const mapIterations = 32

// minScale keeps the per-axis scale factors away from zero so the
// inverse mapping stays finite.
const minScale = 1e-6

// Warp is the folded-paper transformation applied to the text layer.
//
// Unlike an affine or projective matrix, the warp is nonlinear: the
// vertical scale peaks at the fold crease and the horizontal scale
// shrinks from left to right, so straight lines of text bow outward
// around the fold. Skew shears the layer by the opposite axis.
//
// The zero value maps every point to itself once Width and Height are
// set.
type Warp struct {
	// Width and Height are the layer dimensions in pixels.
	Width  float64
	Height float64

	// SkewX shifts columns horizontally in proportion to their
	// distance from the vertical center, as a fraction of Width.
	SkewX float64

	// SkewY shifts rows vertically in proportion to their distance
	// from the horizontal center, as a fraction of Height.
	SkewY float64

	// Fold is the extra vertical scale at the crease. Zero disables
	// the fold.
	Fold float64

	// Scale is the extra horizontal scale at the left edge, tapering
	// to none at the right edge. Zero disables the taper.
	Scale float64
}

// vscale returns the vertical scale factor at normalized height v.
// It peaks at 1+Fold on the crease and falls back linearly toward the
// edges, reaching 1 at the top.
func (w Warp) vscale(v float64) float64 {
	span := math.Max(FoldPoint, 1-FoldPoint)
	s := 1 + w.Fold*(1-math.Abs(v-FoldPoint)/span)
	return math.Max(s, minScale)
}

// hscale returns the horizontal scale factor at normalized width u.
// The left edge is magnified by 1+Scale, the right edge is not.
func (w Warp) hscale(u float64) float64 {
	s := 1 + w.Scale*(1-u)
	return math.Max(s, minScale)
}

// Unmap maps a destination pixel back to the source pixel it samples.
// This is the direction the compositor walks, so it is analytic.
func (w Warp) Unmap(x, y float64) (float64, float64) {
	if w.Width <= 0 || w.Height <= 0 {
		return x, y
	}
	u := x / w.Width
	v := y / w.Height
	cx := w.Width / 2
	fy := FoldPoint * w.Height
	vs := w.vscale(v)
	sx := cx + (x-cx-w.SkewX*(v-0.5)*w.Width)/(w.hscale(u)*vs)
	sy := fy + (y-fy-w.SkewY*(u-0.5)*w.Height)/vs
	return sx, sy
}

// Map maps a source pixel to its destination position.
//
// The scale factors depend on the destination coordinates, so the
// forward direction has no closed form. Map solves Unmap(d) = s by
// fixed-point iteration, which converges quickly for the modest fold
// and skew strengths profiles use.
func (w Warp) Map(x, y float64) (float64, float64) {
	if w.Width <= 0 || w.Height <= 0 {
		return x, y
	}
	cx := w.Width / 2
	fy := FoldPoint * w.Height
	dx, dy := x, y
	for i := 0; i < mapIterations; i++ {
		u := dx / w.Width
		v := dy / w.Height
		vs := w.vscale(v)
		nx := cx + (x-cx)*w.hscale(u)*vs + w.SkewX*(v-0.5)*w.Width
		ny := fy + (y-fy)*vs + w.SkewY*(u-0.5)*w.Height
		if math.Abs(nx-dx) < 1e-6 && math.Abs(ny-dy) < 1e-6 {
			return nx, ny
		}
		dx, dy = nx, ny
	}
	return dx, dy
}

// IsIdentity returns true if the warp maps every point to itself.
func (w Warp) IsIdentity() bool {
	return w.SkewX == 0 && w.SkewY == 0 && w.Fold == 0 && w.Scale == 0
}
