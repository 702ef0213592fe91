package text

import (
	"math"
	"testing"
)

func testFace(t *testing.T, size float64) Face {
	t.Helper()
	source, err := DefaultSource()
	if err != nil {
		t.Fatalf("DefaultSource() error = %v", err)
	}
	return source.Face(size)
}

func TestMetrics(t *testing.T) {
	face := testFace(t, 14)
	m := face.Metrics()

	if m.Ascent <= 0 {
		t.Errorf("Ascent = %v, want > 0", m.Ascent)
	}
	if m.Descent >= 0 {
		t.Errorf("Descent = %v, want < 0", m.Descent)
	}
	if m.Height() < m.Ascent-m.Descent {
		t.Errorf("Height() = %v, want >= ascent - descent = %v", m.Height(), m.Ascent-m.Descent)
	}
}

func TestMetricsScaleWithSize(t *testing.T) {
	small := testFace(t, 10).Metrics()
	large := testFace(t, 20).Metrics()

	if large.Ascent <= small.Ascent {
		t.Errorf("Ascent at 20px = %v, want > Ascent at 10px = %v", large.Ascent, small.Ascent)
	}
	if large.Height() <= small.Height() {
		t.Errorf("Height() at 20px = %v, want > Height() at 10px = %v", large.Height(), small.Height())
	}
}

func TestGlyphIndex(t *testing.T) {
	face := testFace(t, 14)

	if gid := face.GlyphIndex('A'); gid == 0 {
		t.Error("GlyphIndex('A') = 0, want a mapped glyph")
	}
	// Private use area codepoint the Go fonts do not map.
	if gid := face.GlyphIndex(''); gid != 0 {
		t.Errorf("GlyphIndex(U+E007) = %d, want 0 for unmapped rune", gid)
	}
}

func TestGlyphAdvanceMonospace(t *testing.T) {
	face := testFace(t, 14)

	zero := face.GlyphAdvance(face.GlyphIndex('0'))
	if zero <= 0 {
		t.Fatalf("GlyphAdvance('0') = %v, want > 0", zero)
	}

	// Go Mono is fixed pitch: every printable glyph shares one advance.
	for _, r := range "iWm. " {
		adv := face.GlyphAdvance(face.GlyphIndex(r))
		if math.Abs(adv-zero) > 1e-6 {
			t.Errorf("GlyphAdvance(%q) = %v, want %v (monospace)", r, adv, zero)
		}
	}
}

func TestCellAdvance(t *testing.T) {
	face := testFace(t, 14)

	want := face.GlyphAdvance(face.GlyphIndex('0'))
	if got := face.CellAdvance(); got != want {
		t.Errorf("CellAdvance() = %v, want %v", got, want)
	}
}
