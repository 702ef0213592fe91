// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package encode writes rendered frames to image files. The output
// format follows the file extension: .png for single frames, .gif for
// animations.
package encode

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Encoder consumes rendered frames in order and writes the output on
// Close. Implementations are not safe for concurrent use.
type Encoder interface {
	// Frame adds the next frame.
	Frame(img image.Image) error

	// Animated reports whether the format holds more than one frame.
	Animated() bool

	// Close finishes the output. Closing without any frame is an error.
	Close() error
}

// ForPath creates the file at path and returns an encoder matching its
// extension. The encoder owns the file handle; Close releases it.
func ForPath(path string, fps float64) (Encoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png", ".gif":
	default:
		return nil, fmt.Errorf("encode: unsupported output extension %q", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	switch ext {
	case ".png":
		e := NewPNG(f)
		e.closer = f
		return e, nil
	default:
		e := NewGIF(f, fps)
		e.closer = f
		return e, nil
	}
}

// PNG writes a single frame.
type PNG struct {
	w      io.Writer
	closer io.Closer
	frames int
}

// NewPNG returns a PNG encoder writing to w.
func NewPNG(w io.Writer) *PNG {
	return &PNG{w: w}
}

func (e *PNG) Frame(img image.Image) error {
	if e.frames > 0 {
		return fmt.Errorf("encode: png output holds a single frame")
	}
	e.frames++
	if err := png.Encode(e.w, img); err != nil {
		return fmt.Errorf("encode: png: %w", err)
	}
	return nil
}

func (e *PNG) Animated() bool { return false }

func (e *PNG) Close() error {
	var err error
	if e.frames == 0 {
		err = fmt.Errorf("encode: no frames written")
	}
	if e.closer != nil {
		if cerr := e.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// GIF accumulates frames and writes an endlessly looping animation on
// Close. Each frame is quantized to its own paletted plane.
type GIF struct {
	w      io.Writer
	closer io.Closer
	delay  int
	anim   gif.GIF
}

// NewGIF returns a GIF encoder writing to w. The per-frame delay is
// derived from fps; non-positive fps falls back to 30.
func NewGIF(w io.Writer, fps float64) *GIF {
	return &GIF{w: w, delay: DelayForFPS(fps)}
}

// DelayForFPS converts frames per second to a GIF frame delay in
// hundredths of a second. Decoders treat delays below 2 as 10, so the
// result is clamped.
func DelayForFPS(fps float64) int {
	if fps <= 0 {
		fps = 30
	}
	d := int(math.Round(100 / fps))
	if d < 2 {
		d = 2
	}
	return d
}

func (e *GIF) Frame(img image.Image) error {
	b := img.Bounds()
	pal := image.NewPaletted(b, palette.Plan9)
	draw.FloydSteinberg.Draw(pal, b, img, b.Min)
	e.anim.Image = append(e.anim.Image, pal)
	e.anim.Delay = append(e.anim.Delay, e.delay)
	return nil
}

func (e *GIF) Animated() bool { return true }

func (e *GIF) Close() error {
	var err error
	if len(e.anim.Image) == 0 {
		err = fmt.Errorf("encode: no frames written")
	} else if encErr := gif.EncodeAll(e.w, &e.anim); encErr != nil {
		err = fmt.Errorf("encode: gif: %w", encErr)
	}
	if e.closer != nil {
		if cerr := e.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
