package text

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-text/typesetting/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// nextSourceID numbers font sources for cache keys.
var nextSourceID atomic.Uint64

// FontSource represents a loaded font file.
// One FontSource can create multiple Face instances at different sizes.
// FontSource is heavyweight and should be shared across the application.
//
// The font data is parsed twice up front: once with
// golang.org/x/image/font/sfnt for metrics and outline rasterization,
// and once with go-text/typesetting for HarfBuzz shaping. Both parsed
// forms are read-only afterwards, so FontSource is safe for concurrent
// use.
type FontSource struct {
	id   uint64
	name string
	data []byte

	// sfnt is the x/image side: metrics, advances, glyph outlines.
	sfnt *opentype.Font

	// shaped is the go-text side: OpenType shaping tables.
	shaped *font.Font
}

// NewFontSource creates a FontSource from font data (TTF or OTF).
// The data slice is copied internally and can be reused after this call.
func NewFontSource(data []byte) (*FontSource, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	parsed, err := opentype.Parse(dataCopy)
	if err != nil {
		return nil, fmt.Errorf("text: parse font: %w", err)
	}

	shaped, err := font.ParseTTF(bytes.NewReader(dataCopy))
	if err != nil {
		return nil, fmt.Errorf("text: parse font for shaping: %w", err)
	}

	s := &FontSource{
		id:     nextSourceID.Add(1),
		data:   dataCopy,
		sfnt:   parsed,
		shaped: shaped.Font,
	}
	s.name = extractFontName(parsed)

	return s, nil
}

// NewFontSourceFromFile loads a FontSource from a font file path.
func NewFontSourceFromFile(path string) (*FontSource, error) {
	// #nosec G304 -- Font file path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("text: read font file: %w", err)
	}

	return NewFontSource(data)
}

var defaultSource = sync.OnceValues(func() (*FontSource, error) {
	return NewFontSource(gomono.TTF)
})

// DefaultSource returns the built-in monospace font (Go Mono).
// The source is parsed on first use and shared by all callers.
func DefaultSource() (*FontSource, error) {
	return defaultSource()
}

// Face creates a Face at the specified size (in pixels per em).
// Multiple faces can be created from the same FontSource.
//
// Face is a lightweight value that shares the parsed font and caches
// with the FontSource.
func (s *FontSource) Face(size float64) Face {
	if s == nil {
		panic("text: FontSource is nil — did you check the error from NewFontSourceFromFile?")
	}
	return Face{source: s, size: size}
}

// Name returns the font family name.
func (s *FontSource) Name() string {
	return s.name
}

// extractFontName extracts the font family name from the parsed font.
func extractFontName(parsed *opentype.Font) string {
	if name, err := parsed.Name(nil, sfnt.NameIDFamily); err == nil && name != "" {
		return name
	}
	if full, err := parsed.Name(nil, sfnt.NameIDFull); err == nil && full != "" {
		return full
	}
	return "Unknown Font"
}
