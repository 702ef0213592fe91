// Package text shapes and rasterizes the source code layer.
//
// The pipeline has three stages:
//
//   - FontSource: heavyweight, shared font resource (parses TTF/OTF
//     once for both shaping and rasterization)
//   - Face: lightweight font instance at a specific size
//   - Shape / Mask: HarfBuzz shaping via go-text/typesetting and
//     alpha-mask rasterization via golang.org/x/image
//
// Shaping splits each line into direction runs with the Unicode bidi
// algorithm before handing runs to HarfBuzz, so right-to-left string
// literals and comments come out in visual order. Rasterized masks are
// cached per (font, glyph, size, subpixel position) in a sharded LRU.
//
// # Example usage
//
//	source, err := text.NewFontSourceFromFile("FiraCode-Regular.ttf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	face := source.Face(14)
//
//	for _, g := range face.Shape("let x = 1;") {
//	    mask := face.Mask(g.GID, g.X-math.Floor(g.X))
//	    // composite mask.Mask at (floor(g.X)+mask.Left, baseline+mask.Top)
//	}
//
// A built-in monospace fallback (Go Mono) is available through
// DefaultSource for callers that do not ship a font file.
package text
