package codeskew

import (
	"log/slog"

	"github.com/gogpu/codeskew/backend"
	"github.com/gogpu/codeskew/encode"
	"github.com/gogpu/codeskew/profile"
	"github.com/gogpu/codeskew/shader"
	"github.com/gogpu/codeskew/text"
)

// Option configures a Renderer during creation.
// Use functional options to customize Renderer behavior.
//
// Example:
//
//	// Default profile, gradient background
//	r, err := codeskew.NewRenderer(src, "main.go")
//
//	// Explicit profile and device (dependency injection)
//	r, err := codeskew.NewRenderer(src, "main.go",
//	    codeskew.WithProfile(prof),
//	    codeskew.WithDevice(dev))
type Option func(*options)

// options holds optional configuration for Renderer creation.
type options struct {
	profile  *profile.Profile
	font     *text.FontSource
	device   backend.Device
	loader   shader.Loader
	language string
	logger   *slog.Logger
	frames   int
	encoder  encode.Encoder
}

// defaultOptions returns the default renderer options.
func defaultOptions() options {
	return options{
		profile: nil, // Will be set to profile.Default() if nil
		logger:  nil, // Will be set to the package logger if nil
	}
}

// WithProfile sets the render profile. Without it the renderer uses
// profile.Default().
//
// Example:
//
//	prof, err := profile.Load("render.hcl")
//	if err != nil {
//	    return err
//	}
//	r, err := codeskew.NewRenderer(src, "main.go", codeskew.WithProfile(prof))
func WithProfile(p *profile.Profile) Option {
	return func(o *options) {
		o.profile = p
	}
}

// WithFont sets the font used for the text layer. Without it the
// renderer shapes with the bundled monospace face.
func WithFont(src *text.FontSource) Option {
	return func(o *options) {
		o.font = src
	}
}

// WithDevice supplies an initialized execution device for the shader
// background. The caller keeps ownership: Close on the renderer will
// not close an injected device.
//
// Without this option, profiles that name a shader acquire a device
// through backend.InitDefault, falling back device by device until one
// initializes.
//
// Example:
//
//	dev := backend.Get("null")
//	if err := dev.Init(); err != nil {
//	    return err
//	}
//	defer dev.Close()
//	r, err := codeskew.NewRenderer(src, "main.go",
//	    codeskew.WithProfile(prof),
//	    codeskew.WithDevice(dev))
func WithDevice(d backend.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithShaderLoader overrides include resolution for the profile's
// shader. The default loader reads quoted includes from the directory
// of the shader file.
func WithShaderLoader(l shader.Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithLanguage forces the highlight lexer by name or alias instead of
// matching on the file name.
func WithLanguage(lang string) Option {
	return func(o *options) {
		o.language = lang
	}
}

// WithLogger sets the logger for this renderer instance. Without it
// the renderer shares the package logger configured via SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithFrames overrides the profile's frame count. Values below one are
// ignored. Single-frame encoders still render exactly one frame.
func WithFrames(n int) Option {
	return func(o *options) {
		o.frames = n
	}
}

// WithEncoder sets the encoder used by Render. The renderer hands it
// every frame in order and leaves Close to the caller.
//
// Example:
//
//	var buf bytes.Buffer
//	r, err := codeskew.NewRenderer(src, "main.go",
//	    codeskew.WithEncoder(encode.NewPNG(&buf)))
func WithEncoder(enc encode.Encoder) Option {
	return func(o *options) {
		o.encoder = enc
	}
}
