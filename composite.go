package codeskew

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/gogpu/codeskew/highlight"
	"github.com/gogpu/codeskew/internal/parallel"
	"github.com/gogpu/codeskew/layout"
	"github.com/gogpu/codeskew/profile"
	"github.com/gogpu/codeskew/text"
)

// renderTextLayer rasterizes styled lines into a transparent RGBA
// layer. Glyphs sit on subpixel-positioned pens; lines whose ascenders
// start below the canvas are skipped.
func renderTextLayer(lines []highlight.Line, face text.Face, w, h int) *image.RGBA {
	layer := image.NewRGBA(image.Rect(0, 0, w, h))
	m := face.Metrics()
	lineH := m.Height()
	if lineH <= 0 {
		return layer
	}
	marginX := 2 * face.CellAdvance()
	marginY := lineH / 2

	for i, line := range lines {
		baseline := marginY + m.Ascent + float64(i)*lineH
		if baseline-m.Ascent > float64(h) {
			break
		}
		drawLine(layer, line, face, marginX, baseline)
	}
	return layer
}

// drawLine rasterizes one styled line with its pen starting at x. Bold
// spans double-strike one pixel to the right; underlines sit two
// pixels below the baseline.
func drawLine(dst *image.RGBA, line highlight.Line, face text.Face, x, baseline float64) {
	penX := x
	by := int(math.Round(baseline))
	for _, span := range line.Spans {
		glyphs := face.Shape(span.Text)
		startX := penX
		for _, g := range glyphs {
			gx := penX + g.X
			gm := face.Mask(g.GID, gx-math.Floor(gx))
			if gm == nil || gm.Mask == nil {
				continue
			}
			ox := int(math.Floor(gx)) + gm.Left
			oy := by + int(math.Round(g.Y)) + gm.Top
			drawMask(dst, ox, oy, gm.Mask, span.Color)
			if span.Bold {
				drawMask(dst, ox+1, oy, gm.Mask, span.Color)
			}
		}
		for _, g := range glyphs {
			penX += g.XAdvance
		}
		if span.Underline && penX > startX {
			rect := image.Rect(int(math.Round(startX)), by+2, int(math.Round(penX)), by+3)
			draw.Draw(dst, rect, image.NewUniform(span.Color), image.Point{}, draw.Over)
		}
	}
}

// drawMask blends a glyph mask at (x, y) in col. DrawMask clips
// against dst bounds, so partially visible glyphs are fine.
func drawMask(dst *image.RGBA, x, y int, mask *image.Alpha, col color.NRGBA) {
	b := mask.Bounds()
	r := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	draw.DrawMask(dst, r, image.NewUniform(col), image.Point{}, mask, b.Min, draw.Over)
}

// gradientImage fills a canvas with the profile's vertical ramp.
func gradientImage(g profile.Gradient, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		t := 0.0
		if h > 1 {
			t = float64(y) / float64(h-1)
		}
		c := g.At(t)
		row := img.Pix[y*img.Stride : y*img.Stride+4*w]
		for x := 0; x < w; x++ {
			row[4*x+0] = c.R
			row[4*x+1] = c.G
			row[4*x+2] = c.B
			row[4*x+3] = 0xFF
		}
	}
	return img
}

// screenImage wraps raw RGBA bytes from an engine readback. Screen
// textures are opaque, so alpha is forced to keep the shader output
// acting as the backdrop.
func screenImage(pix []byte, w, h int) (*image.RGBA, error) {
	if len(pix) != 4*w*h {
		return nil, fmt.Errorf("codeskew: screen readback %d bytes, want %d", len(pix), 4*w*h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
	return img, nil
}

// warpOver samples layer through the inverse fold transform and blends
// it over dst. Work runs per destination pixel so every output pixel
// gets exactly one sample; rows are split across cores since each row
// writes disjoint memory.
func warpOver(dst, layer *image.RGBA, w layout.Warp) {
	if w.IsIdentity() {
		draw.Draw(dst, dst.Bounds(), layer, layer.Bounds().Min, draw.Over)
		return
	}
	b := dst.Bounds()
	parallel.Rows(b.Dy(), func(y0, y1 int) {
		for y := b.Min.Y + y0; y < b.Min.Y+y1; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				sx, sy := w.Unmap(float64(x)+0.5, float64(y)+0.5)
				sr, sg, sb, sa := sampleBilinear(layer, sx-0.5, sy-0.5)
				if sa == 0 {
					continue
				}
				blendPixel(dst, x, y, sr, sg, sb, sa)
			}
		}
	})
}

// sampleBilinear reads a premultiplied texel at a fractional position.
// Out-of-bounds neighbors are transparent, so the sheet fades at its
// edges instead of smearing.
func sampleBilinear(img *image.RGBA, x, y float64) (r, g, b, a float64) {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	add := func(px, py int, weight float64) {
		if weight == 0 {
			return
		}
		if px < img.Rect.Min.X || px >= img.Rect.Max.X || py < img.Rect.Min.Y || py >= img.Rect.Max.Y {
			return
		}
		i := img.PixOffset(px, py)
		r += weight * float64(img.Pix[i+0])
		g += weight * float64(img.Pix[i+1])
		b += weight * float64(img.Pix[i+2])
		a += weight * float64(img.Pix[i+3])
	}
	add(x0, y0, (1-fx)*(1-fy))
	add(x0+1, y0, fx*(1-fy))
	add(x0, y0+1, (1-fx)*fy)
	add(x0+1, y0+1, fx*fy)
	return r, g, b, a
}

// blendPixel is premultiplied source-over on one destination pixel.
func blendPixel(dst *image.RGBA, x, y int, sr, sg, sb, sa float64) {
	i := dst.PixOffset(x, y)
	inv := 1 - sa/255
	dst.Pix[i+0] = clamp8(sr + float64(dst.Pix[i+0])*inv)
	dst.Pix[i+1] = clamp8(sg + float64(dst.Pix[i+1])*inv)
	dst.Pix[i+2] = clamp8(sb + float64(dst.Pix[i+2])*inv)
	dst.Pix[i+3] = clamp8(sa + float64(dst.Pix[i+3])*inv)
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
