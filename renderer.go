package codeskew

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gogpu/codeskew/backend"
	"github.com/gogpu/codeskew/encode"
	"github.com/gogpu/codeskew/engine"
	"github.com/gogpu/codeskew/highlight"
	"github.com/gogpu/codeskew/layout"
	"github.com/gogpu/codeskew/profile"
	"github.com/gogpu/codeskew/shader"
	"github.com/gogpu/codeskew/text"
)

// Renderer turns one source file into rendered frames. Create with
// NewRenderer, pull frames with Frame or drive a whole render with
// Render or RenderFile, and Close when done.
//
// A Renderer is not safe for concurrent use.
type Renderer struct {
	prof *profile.Profile
	log  *slog.Logger

	lines []highlight.Line
	face  text.Face
	warp  layout.Warp

	eng       *engine.Engine
	device    backend.Device
	ownDevice bool
	unit      shader.SourceUnit

	enc    encode.Encoder
	frames int

	layer *image.RGBA // rasterized text, built on first frame
	bg    *image.RGBA // gradient background, static across frames
}

// NewRenderer prepares a renderer for the given source text. The file
// name selects the highlight lexer. Profiles that name a shader read
// and stage it here; compilation waits for Build or the first Frame.
func NewRenderer(source, filename string, opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	prof := o.profile
	if prof == nil {
		prof = profile.Default()
	}
	if prof.Width <= 0 || prof.Height <= 0 {
		return nil, fmt.Errorf("codeskew: profile size %dx%d is not renderable", prof.Width, prof.Height)
	}

	lines, err := highlight.Highlight(source, filename, highlight.Options{
		Language: o.language,
		Theme:    prof.Theme,
		TabWidth: prof.TabWidth,
	})
	if err != nil {
		return nil, err
	}

	src := o.font
	if src == nil {
		src, err = text.DefaultSource()
		if err != nil {
			return nil, err
		}
	}

	log := o.logger
	if log == nil {
		log = Logger()
	}

	r := &Renderer{
		prof:  prof,
		log:   log,
		lines: lines,
		face:  src.Face(prof.FontSize),
		warp: layout.Warp{
			Width:  float64(prof.Width),
			Height: float64(prof.Height),
			SkewX:  prof.SkewX,
			SkewY:  prof.SkewY,
			Fold:   prof.Fold,
			Scale:  prof.Scale,
		},
		enc:    o.encoder,
		frames: prof.Frames,
	}
	if o.frames > 0 {
		r.frames = o.frames
	}
	if r.frames < 1 {
		r.frames = 1
	}

	if prof.ShaderPath != "" {
		if err := r.setupShader(&o); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// setupShader stages the entry template and builds the engine around
// the chosen device. Called once from NewRenderer.
func (r *Renderer) setupShader(o *options) error {
	// #nosec G304 -- Shader path comes from the user's profile.
	data, err := os.ReadFile(r.prof.ShaderPath)
	if err != nil {
		return fmt.Errorf("codeskew: read shader: %w", err)
	}
	r.unit = shader.SourceUnit{Path: filepath.Base(r.prof.ShaderPath), Text: string(data)}

	loader := o.loader
	if loader == nil {
		loader = shader.FSLoader{FS: os.DirFS(filepath.Dir(r.prof.ShaderPath))}
	}

	dev := o.device
	if dev == nil {
		dev, err = backend.InitDefault()
		if err != nil {
			return err
		}
		r.ownDevice = true
	}

	seeds := make([]shader.UniformSeed, len(r.prof.Uniforms))
	for i, u := range r.prof.Uniforms {
		seeds[i] = shader.UniformSeed{Name: u.Name, Value: float32(u.Value)}
	}

	var delta float32
	if r.prof.FPS > 0 {
		delta = float32(1.0 / r.prof.FPS)
	}

	fe := backend.NewFrontend()
	eng, err := engine.New(engine.Options{
		Loader:     loader,
		Width:      uint32(r.prof.Width),
		Height:     uint32(r.prof.Height),
		Uniforms:   seeds,
		FixedDelta: delta,
		Validator:  fe,
		Compiler:   fe,
		Adapter:    dev.Adapter(),
	})
	if err != nil {
		if r.ownDevice {
			dev.Close()
		}
		return err
	}
	r.device = dev
	r.eng = eng
	r.log.Debug("shader staged", "entry", r.unit.Path, "backend", dev.Name())
	return nil
}

// Build compiles the profile's shader synchronously and reports the
// first rejection. Profiles without a shader need no Build; Frame
// compiles on demand.
func (r *Renderer) Build(ctx context.Context) error {
	if r.eng == nil {
		return nil
	}
	_, err := r.eng.Build(ctx, r.unit)
	return err
}

// Frame renders the next frame. Each call advances shader time by one
// tick; without a shader every frame is identical.
func (r *Renderer) Frame(ctx context.Context) (image.Image, error) {
	bg, err := r.background(ctx)
	if err != nil {
		return nil, err
	}
	out := image.NewRGBA(bg.Bounds())
	copy(out.Pix, bg.Pix)

	if r.layer == nil {
		r.layer = renderTextLayer(r.lines, r.face, r.prof.Width, r.prof.Height)
	}
	warpOver(out, r.layer, r.warp)
	return out, nil
}

// background yields the backdrop for the next frame: a tick plus a
// screen readback when a shader is configured, a cached gradient
// otherwise.
func (r *Renderer) background(ctx context.Context) (*image.RGBA, error) {
	if r.eng == nil {
		if r.bg == nil {
			r.bg = gradientImage(r.prof.Gradient, r.prof.Width, r.prof.Height)
		}
		return r.bg, nil
	}
	if r.eng.Active() == nil {
		if err := r.Build(ctx); err != nil {
			return nil, err
		}
	}
	if err := r.eng.Tick(ctx); err != nil {
		return nil, err
	}
	pix, err := r.eng.ReadScreen(ctx)
	if err != nil {
		return nil, err
	}
	return screenImage(pix, r.prof.Width, r.prof.Height)
}

// Render encodes frames to the encoder configured with WithEncoder.
// The caller closes the encoder.
func (r *Renderer) Render(ctx context.Context) error {
	if r.enc == nil {
		return errors.New("codeskew: no encoder configured, use WithEncoder or RenderFile")
	}
	return r.renderTo(ctx, r.enc)
}

// RenderFile renders to path, choosing the format from its extension,
// and closes the file when done.
func (r *Renderer) RenderFile(ctx context.Context, path string) error {
	enc, err := encode.ForPath(path, r.prof.FPS)
	if err != nil {
		return err
	}
	if err := r.renderTo(ctx, enc); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func (r *Renderer) renderTo(ctx context.Context, enc encode.Encoder) error {
	frames := r.frames
	if !enc.Animated() {
		frames = 1
	}
	r.log.Info("render start", "frames", frames, "size", fmt.Sprintf("%dx%d", r.prof.Width, r.prof.Height))
	for i := 0; i < frames; i++ {
		img, err := r.Frame(ctx)
		if err != nil {
			return fmt.Errorf("codeskew: frame %d: %w", i, err)
		}
		if err := enc.Frame(img); err != nil {
			return err
		}
	}
	return nil
}

// Engine exposes the shader engine for live hosts that forward input
// or request recompiles. Nil when the profile has no shader.
func (r *Renderer) Engine() *engine.Engine {
	return r.eng
}

// Close releases the engine and any device the renderer opened itself.
func (r *Renderer) Close() error {
	var err error
	if r.eng != nil {
		err = r.eng.Close()
	}
	if r.device != nil && r.ownDevice {
		r.device.Close()
		r.device = nil
	}
	return err
}
