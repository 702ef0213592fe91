// Command skewview opens a live preview window for a WGSL background
// shader. Saving the file recompiles it on the fly: good builds swap
// in atomically, rejected builds keep the previous image running and
// show the first diagnostic in the window title. Keyboard and mouse
// state is forwarded into the shader's input bindings.
//
// Usage:
//
//	skewview [flags] <shader.wgsl>
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

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/gogpu/codeskew"
	"github.com/gogpu/codeskew/backend"
	_ "github.com/gogpu/codeskew/backend/wgpu"
	"github.com/gogpu/codeskew/engine"
	"github.com/gogpu/codeskew/shader"
	"github.com/gogpu/codeskew/watch"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "skewview:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("skewview", flag.ContinueOnError)
	var (
		width    = fs.Int("width", shader.DefaultWidth, "preview width in pixels")
		height   = fs.Int("height", shader.DefaultHeight, "preview height in pixels")
		backendN = fs.String("backend", "", "execution backend; default picks the best available")
		verbose  = fs.Bool("v", false, "log progress to stderr")
	)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: skewview [flags] <shader.wgsl>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *verbose {
		codeskew.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one shader file")
	}
	path := fs.Arg(0)

	var dev backend.Device
	var err error
	if *backendN != "" {
		dev = backend.Get(*backendN)
		if dev == nil {
			return fmt.Errorf("unknown backend %q (available: %s)",
				*backendN, strings.Join(backend.Available(), ", "))
		}
		if err := dev.Init(); err != nil {
			return fmt.Errorf("backend %s: %w", *backendN, err)
		}
	} else {
		dev, err = backend.InitDefault()
		if err != nil {
			return err
		}
	}
	defer dev.Close()

	fe := backend.NewFrontend()
	eng, err := engine.New(engine.Options{
		Loader:    shader.FSLoader{FS: os.DirFS(filepath.Dir(path))},
		Width:     uint32(*width),
		Height:    uint32(*height),
		Validator: fe,
		Compiler:  fe,
		Adapter:   dev.Adapter(),
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	v := &viewer{
		eng:   eng,
		name:  filepath.Base(path),
		units: make(chan shader.SourceUnit, 1),
		w:     *width,
		h:     *height,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	unit := shader.SourceUnit{Path: filepath.Base(path), Text: string(data)}
	if _, err := eng.Build(context.Background(), unit); err != nil {
		v.setTitle(diagnosticLine(err))
	} else {
		v.setTitle("")
	}

	watcher, err := watch.New(path)
	if err != nil {
		return err
	}
	defer watcher.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := watcher.Run(ctx, v.queue); err != nil && ctx.Err() == nil {
			codeskew.Logger().Warn("watcher stopped", "err", err)
		}
	}()

	ebiten.SetWindowSize(*width, *height)
	return ebiten.RunGame(v)
}

// viewer drives the engine from ebiten's frame callback. Edits arrive
// through units, compiled synchronously in Update so the rejection can
// land in the window title.
type viewer struct {
	eng    *engine.Engine
	name   string
	units  chan shader.SourceUnit
	w, h   int
	canvas *ebiten.Image
}

// queue hands a fresh template to the update loop. A newer unit
// replaces an undrained older one, so save bursts compile once.
func (v *viewer) queue(unit shader.SourceUnit) {
	for {
		select {
		case v.units <- unit:
			return
		default:
		}
		select {
		case <-v.units:
		default:
		}
	}
}

func (v *viewer) setTitle(diag string) {
	title := "skewview: " + v.name
	if diag != "" {
		title += " [rejected] " + diag
	}
	ebiten.SetWindowTitle(title)
}

func (v *viewer) Update() error {
	select {
	case unit := <-v.units:
		if _, err := v.eng.Build(context.Background(), unit); err != nil {
			v.setTitle(diagnosticLine(err))
		} else {
			v.setTitle("")
		}
	default:
	}

	for _, k := range inpututil.AppendJustPressedKeys(nil) {
		v.eng.SetKey(int(k), true)
	}
	for _, k := range inpututil.AppendJustReleasedKeys(nil) {
		v.eng.SetKey(int(k), false)
	}
	mx, my := ebiten.CursorPosition()
	v.eng.SetMouse(float32(mx), float32(my), ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft))

	return v.eng.Tick(context.Background())
}

func (v *viewer) Draw(screen *ebiten.Image) {
	pix, err := v.eng.ReadScreen(context.Background())
	if err != nil {
		return
	}
	if v.canvas == nil {
		v.canvas = ebiten.NewImage(v.w, v.h)
	}
	v.canvas.WritePixels(pix)
	screen.DrawImage(v.canvas, nil)
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return v.w, v.h
}

// diagnosticLine condenses a build failure to one title-friendly line.
func diagnosticLine(err error) string {
	var ce *engine.CompileError
	if errors.As(err, &ce) && len(ce.Diagnostics) > 0 {
		return ce.Diagnostics[0].String()
	}
	return err.Error()
}
