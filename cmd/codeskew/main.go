// Command codeskew renders a source file as a stylized PNG or GIF.
//
// Usage:
//
//	codeskew [flags] <input-file>
//
// The input file is highlighted, folded, and composited over a gradient
// or a WGSL compute shader background. Flags override the profile
// attribute of the same name.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/codeskew"
	"github.com/gogpu/codeskew/backend"
	_ "github.com/gogpu/codeskew/backend/wgpu"
	"github.com/gogpu/codeskew/engine"
	"github.com/gogpu/codeskew/profile"
	"github.com/gogpu/codeskew/shader"
	"github.com/gogpu/codeskew/text"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		var ce *engine.CompileError
		if errors.As(err, &ce) {
			for _, d := range ce.Diagnostics {
				fmt.Fprintln(os.Stderr, d.String())
			}
			if len(ce.Diagnostics) == 0 {
				fmt.Fprintln(os.Stderr, ce.Error())
			}
		} else {
			fmt.Fprintln(os.Stderr, "codeskew:", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("codeskew", flag.ContinueOnError)
	var (
		output   = fs.String("o", "out.png", "output image path (.png or .gif)")
		profPath = fs.String("profile", "", "HCL render profile")
		shaderP  = fs.String("shader", "", "WGSL background shader")
		width    = fs.Int("width", 0, "output width in pixels")
		height   = fs.Int("height", 0, "output height in pixels")
		theme    = fs.String("theme", "", "syntax highlight theme")
		frames   = fs.Int("frames", 0, "frame count for animated output")
		fps      = fs.Float64("fps", 0, "frames per second for animated output")
		fontPath = fs.String("font", "", "TTF or OTF font for the text layer")
		language = fs.String("lang", "", "force the highlight lexer by name")
		backendN = fs.String("backend", "", "execution backend; default picks the best available")
		check    = fs.Bool("check", false, "validate the shader and exit without rendering")
		verbose  = fs.Bool("v", false, "log progress to stderr")
	)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: codeskew [flags] <input-file>\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\nAvailable backends: %s\n", strings.Join(backend.Available(), ", "))
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *verbose {
		codeskew.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	prof := profile.Default()
	if *profPath != "" {
		p, err := profile.Load(*profPath)
		if err != nil {
			return err
		}
		prof = p
	}
	if *width > 0 {
		prof.Width = *width
	}
	if *height > 0 {
		prof.Height = *height
	}
	if *theme != "" {
		prof.Theme = *theme
	}
	if *shaderP != "" {
		prof.ShaderPath = *shaderP
	}
	if *frames > 0 {
		prof.Frames = *frames
	}
	if *fps > 0 {
		prof.FPS = *fps
	}

	if *check {
		if prof.ShaderPath == "" {
			return errors.New("-check needs a shader (-shader or a profile with one)")
		}
		return checkShader(prof)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one input file")
	}
	input := fs.Arg(0)
	src, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	opts := []codeskew.Option{codeskew.WithProfile(prof)}
	if *fontPath != "" {
		fsrc, err := text.NewFontSourceFromFile(*fontPath)
		if err != nil {
			return err
		}
		opts = append(opts, codeskew.WithFont(fsrc))
	}
	if *language != "" {
		opts = append(opts, codeskew.WithLanguage(*language))
	}
	if *backendN != "" {
		dev := backend.Get(*backendN)
		if dev == nil {
			return fmt.Errorf("unknown backend %q (available: %s)",
				*backendN, strings.Join(backend.Available(), ", "))
		}
		if err := dev.Init(); err != nil {
			return fmt.Errorf("backend %s: %w", *backendN, err)
		}
		defer dev.Close()
		opts = append(opts, codeskew.WithDevice(dev))
	}

	r, err := codeskew.NewRenderer(string(src), input, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := context.Background()
	if err := r.Build(ctx); err != nil {
		return err
	}
	return r.RenderFile(ctx, *output)
}

// checkShader runs the preprocess and validate pipeline without an
// execution device, so rejected templates fail fast even on hosts with
// no GPU.
func checkShader(prof *profile.Profile) error {
	data, err := os.ReadFile(prof.ShaderPath)
	if err != nil {
		return err
	}

	seeds := make([]shader.UniformSeed, len(prof.Uniforms))
	for i, u := range prof.Uniforms {
		seeds[i] = shader.UniformSeed{Name: u.Name, Value: float32(u.Value)}
	}

	eng, err := engine.New(engine.Options{
		Loader:    shader.FSLoader{FS: os.DirFS(filepath.Dir(prof.ShaderPath))},
		Width:     uint32(prof.Width),
		Height:    uint32(prof.Height),
		Uniforms:  seeds,
		Validator: backend.NewFrontend(),
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	unit := shader.SourceUnit{Path: filepath.Base(prof.ShaderPath), Text: string(data)}
	a, err := eng.Build(context.Background(), unit)
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok (%d passes, %d bindings)\n",
		prof.ShaderPath, len(a.Passes), len(a.Shader.Bindings))
	return nil
}
