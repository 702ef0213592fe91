// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/codeskew/shader"
)

// Options configures an Engine. Loader resolves #include paths.
// Validator and Adapter are optional: without a Validator sources go
// straight to realization, without an Adapter the engine only does
// bookkeeping (useful for --check runs and tests).
type Options struct {
	Loader shader.Loader
	Width  uint32
	Height uint32

	// Uniforms seeds the custom uniform block of every build.
	Uniforms []shader.UniformSeed

	// FixedDelta, when positive, replaces wall-clock timing: every tick
	// advances shader time by exactly this many seconds. Offline renders
	// set it to 1/fps so frame timestamps are deterministic.
	FixedDelta float32

	Validator Validator
	Compiler  Compiler
	Adapter   Adapter
}

// Engine owns the compile pipeline and the per-tick dispatch loop.
// Reads of the active artifact are lock-free; compilation and ticking
// serialize on an internal mutex.
type Engine struct {
	opts Options

	mu      sync.Mutex
	gen     uint64
	retired []retiredResources
	closed  bool

	active  atomic.Pointer[CompiledArtifact]
	pending chan shader.SourceUnit

	start        time.Time
	lastTick     time.Time
	fixedElapsed float32
	frame        uint32

	mouseX, mouseY float32
	mouseClick     int32
	keys           [8]uint32

	customVals map[string]float32
}

type retiredResources struct {
	res          *resources
	keepBuffers  map[BufferID]bool
	keepTextures map[TextureID]bool
}

// New prepares an engine. No compilation happens until Build or the
// first queued recompile request.
func New(opts Options) (*Engine, error) {
	if opts.Width == 0 {
		opts.Width = shader.DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = shader.DefaultHeight
	}
	if opts.Adapter != nil && opts.Compiler == nil {
		return nil, errors.New("engine: an adapter requires a compiler")
	}
	return &Engine{
		opts:       opts,
		pending:    make(chan shader.SourceUnit, 1),
		start:      time.Now(),
		customVals: make(map[string]float32),
	}, nil
}

// Active returns the currently published artifact, or nil before the
// first successful build. Safe to call from any goroutine.
func (e *Engine) Active() *CompiledArtifact {
	return e.active.Load()
}

// RequestRecompile queues a source unit for the next tick. Requests
// coalesce: a newer unit replaces an undrained older one, so a burst of
// file events compiles only the latest contents. Never blocks.
func (e *Engine) RequestRecompile(unit shader.SourceUnit) {
	for {
		select {
		case e.pending <- unit:
			return
		default:
		}
		select {
		case <-e.pending:
		default:
		}
	}
}

// Build compiles, validates, realizes, and publishes a source unit
// synchronously. On any failure the previously active artifact keeps
// rendering and the error describes the rejection; *CompileError
// carries diagnostics remapped to original file positions.
func (e *Engine) Build(ctx context.Context, unit shader.SourceUnit) (*CompiledArtifact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildLocked(ctx, unit)
}

func (e *Engine) buildLocked(ctx context.Context, unit shader.SourceUnit) (*CompiledArtifact, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	began := time.Now()
	sa, err := shader.Build(unit, shader.BuildConfig{
		Loader:   e.opts.Loader,
		Width:    e.opts.Width,
		Height:   e.opts.Height,
		Uniforms: e.opts.Uniforms,
	})
	if err != nil {
		return nil, err
	}

	passes, err := discoverPasses(sa)
	if err != nil {
		return nil, err
	}

	comp := &CompiledArtifact{
		Shader:      sa,
		Passes:      passes,
		state:       StateBuilding,
		runs:        make([]uint32, len(passes)),
		lastAsserts: make([]uint32, len(sa.Asserts)),
	}

	if e.opts.Validator != nil {
		diags, verr := e.opts.Validator.Validate(sa.Source)
		if verr != nil {
			comp.state = StateRejected
			return nil, fmt.Errorf("engine: validator: %w", verr)
		}
		if len(diags) > 0 {
			comp.state = StateRejected
			return nil, &CompileError{Diagnostics: remapDiagnostics(sa, diags)}
		}
	}
	comp.state = StateValidated

	prev := e.active.Load()
	if e.opts.Adapter != nil {
		var prevRes *resources
		var prevBindings []shader.BindingDescriptor
		if prev != nil {
			prevRes = prev.res
			prevBindings = prev.Shader.Bindings
		}
		res, rerr := realize(e.opts.Adapter, e.opts.Compiler, sa, passes, prevRes, prevBindings)
		if rerr != nil {
			comp.state = StateRejected
			return nil, rerr
		}
		comp.res = res
	}

	e.gen++
	comp.Generation = e.gen
	comp.state = StateActive
	e.active.Store(comp)

	if prev != nil && prev.res != nil {
		keepBuf, keepTex := map[BufferID]bool(nil), map[TextureID]bool(nil)
		if comp.res != nil {
			keepBuf, keepTex = comp.res.inheritedBuffers, comp.res.inheritedTextures
		}
		e.retired = append(e.retired, retiredResources{
			res:          prev.res,
			keepBuffers:  keepBuf,
			keepTextures: keepTex,
		})
	}

	e.applyCustomLocked(comp)

	slogger().Info("artifact published",
		"generation", comp.Generation,
		"entry", sa.EntryFile,
		"passes", len(passes),
		"bindings", len(sa.Bindings),
		"elapsed", time.Since(began))
	return comp, nil
}

// remapDiagnostics rewrites assembled-source positions back to the
// original files through the artifact's source map.
func remapDiagnostics(a *shader.Artifact, diags []Diagnostic) []RemappedDiagnostic {
	out := make([]RemappedDiagnostic, 0, len(diags))
	for _, d := range diags {
		r := RemappedDiagnostic{Column: d.Column, Message: d.Message}
		if d.Line > 0 {
			at := a.Origin(d.Line)
			r.File, r.Line = at.File, at.Line
		}
		out = append(out, r)
	}
	return out
}

// Tick runs one iteration of the render loop: drain a pending
// recompile, report assertion counters from the previous dispatch,
// refresh the built-in uniforms, and dispatch every due pass. Ticking
// with no artifact or an empty pass list is legal and does nothing.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case unit := <-e.pending:
		if _, err := e.buildLocked(ctx, unit); err != nil {
			// Keep rendering the previous artifact.
			slogger().Warn("recompile failed", "entry", unit.Path, "err", err)
		}
	default:
	}

	a := e.active.Load()
	if a == nil {
		return nil
	}

	var elapsed, delta float32
	if e.opts.FixedDelta > 0 {
		elapsed = e.fixedElapsed
		delta = e.opts.FixedDelta
		e.fixedElapsed += e.opts.FixedDelta
	} else {
		now := time.Now()
		elapsed = float32(now.Sub(e.start).Seconds())
		if !e.lastTick.IsZero() {
			delta = float32(now.Sub(e.lastTick).Seconds())
		}
		e.lastTick = now
	}

	if e.opts.Adapter == nil || len(a.Passes) == 0 {
		e.advanceBookkeeping(a)
		return nil
	}
	ad := e.opts.Adapter

	if len(e.retired) > 0 {
		ad.WaitIdle()
		for _, r := range e.retired {
			r.res.release(ad, r.keepBuffers, r.keepTextures)
		}
		e.retired = e.retired[:0]
	}

	if a.ticks > 0 && len(a.Shader.Asserts) > 0 {
		e.reportAsserts(a)
	}

	e.writeBuiltins(a, elapsed, delta)

	var due []int
	for i, p := range a.Passes {
		if p.due(a.runs[i]) {
			due = append(due, i)
		}
	}
	if len(due) > 0 {
		group := a.res.groups[a.ticks%2]
		pass := ad.BeginComputePass()
		for _, i := range due {
			p := a.Passes[i]
			pass.SetPipeline(a.res.pipelines[p.Name])
			pass.SetBindGroup(0, group)
			pass.Dispatch(p.Grid[0], p.Grid[1], p.Grid[2])
			a.runs[i]++
		}
		pass.End()
		ad.Submit()
	}

	a.ticks++
	e.frame++
	return nil
}

func (e *Engine) advanceBookkeeping(a *CompiledArtifact) {
	for i, p := range a.Passes {
		if p.due(a.runs[i]) {
			a.runs[i]++
		}
	}
	a.ticks++
	e.frame++
}

// writeBuiltins refreshes the per-tick uniform buffers. The dispatch id
// is the tick ordinal, so shaders can seed per-iteration randomness.
func (e *Engine) writeBuiltins(a *CompiledArtifact, elapsed, delta float32) {
	ad := e.opts.Adapter

	if id, ok := a.res.buffers[shader.NameTime]; ok {
		var b [12]byte
		binary.LittleEndian.PutUint32(b[0:], e.frame)
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(elapsed))
		binary.LittleEndian.PutUint32(b[8:], math.Float32bits(delta))
		ad.WriteBuffer(id, 0, b[:])
	}
	if id, ok := a.res.buffers[shader.NameMouse]; ok {
		var b [12]byte
		binary.LittleEndian.PutUint32(b[0:], math.Float32bits(e.mouseX))
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(e.mouseY))
		binary.LittleEndian.PutUint32(b[8:], uint32(e.mouseClick))
		ad.WriteBuffer(id, 0, b[:])
	}
	if id, ok := a.res.buffers[shader.NameKeyboard]; ok {
		var b [32]byte
		for i, w := range e.keys {
			binary.LittleEndian.PutUint32(b[i*4:], w)
		}
		ad.WriteBuffer(id, 0, b[:])
	}
	if id, ok := a.res.buffers[shader.NameDispatch]; ok {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[0:], uint32(a.ticks))
		ad.WriteBuffer(id, 0, b[:])
	}
}

// reportAsserts reads the assertion counters written by earlier
// dispatches and logs every site whose count increased. Counters lag
// the dispatch that bumped them by one tick.
func (e *Engine) reportAsserts(a *CompiledArtifact) {
	counts, err := e.readAssertsLocked(a)
	if err != nil {
		slogger().Warn("assertion readback failed", "err", err)
		return
	}
	for i, c := range counts {
		if c > a.lastAsserts[i] {
			site := a.Shader.Asserts[i]
			slogger().Warn("shader assertion failed",
				"site", site.Index,
				"predicate", site.Predicate,
				"at", site.At.String(),
				"count", c)
		}
		a.lastAsserts[i] = c
	}
}

func (e *Engine) readAssertsLocked(a *CompiledArtifact) ([]uint32, error) {
	id, ok := a.res.buffers[shader.NameAssertCounts]
	if !ok {
		return nil, fmt.Errorf("engine: no assertion counter buffer")
	}
	raw, err := e.opts.Adapter.ReadBuffer(id, 0, uint64(4*len(a.Shader.Asserts)))
	if err != nil {
		return nil, err
	}
	counts := make([]uint32, len(a.Shader.Asserts))
	for i := range counts {
		counts[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return counts, nil
}

// AssertCounts reads the current assertion counters keyed by site
// index. An artifact without assertions yields an empty map.
func (e *Engine) AssertCounts(ctx context.Context) (map[int]uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := e.active.Load()
	if a == nil || len(a.Shader.Asserts) == 0 {
		return map[int]uint32{}, nil
	}
	if e.opts.Adapter == nil || a.res == nil {
		return nil, ErrNoAdapter
	}
	counts, err := e.readAssertsLocked(a)
	if err != nil {
		return nil, err
	}
	out := make(map[int]uint32, len(counts))
	for i, c := range counts {
		out[a.Shader.Asserts[i].Index] = c
	}
	return out, nil
}

// SetUniform updates one custom uniform field. Values are cached so
// they survive recompilation; setting a name the active artifact does
// not declare is an error, but before the first build any name is
// accepted and applied once an artifact declares it.
func (e *Engine) SetUniform(name string, value float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.customVals[name] = value
	a := e.active.Load()
	if a == nil {
		return nil
	}
	off, ok := customOffset(a.Shader, name)
	if !ok {
		return fmt.Errorf("engine: no custom uniform %q", name)
	}
	if e.opts.Adapter != nil && a.res != nil {
		if id, found := a.res.buffers[shader.NameCustom]; found {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(value))
			e.opts.Adapter.WriteBuffer(id, off, b[:])
		}
	}
	return nil
}

// applyCustomLocked pushes cached uniform values into a freshly
// published artifact so host tweaks survive recompiles.
func (e *Engine) applyCustomLocked(a *CompiledArtifact) {
	if e.opts.Adapter == nil || a.res == nil || len(e.customVals) == 0 {
		return
	}
	id, ok := a.res.buffers[shader.NameCustom]
	if !ok {
		return
	}
	for name, v := range e.customVals {
		off, declared := customOffset(a.Shader, name)
		if !declared {
			continue
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		e.opts.Adapter.WriteBuffer(id, off, b[:])
	}
}

func customOffset(a *shader.Artifact, name string) (uint64, bool) {
	for i, u := range a.Custom {
		if u.Name == name {
			return uint64(4 * i), true
		}
	}
	return 0, false
}

// SetMouse records the pointer position in pixels and the button state
// for the next tick's mouse uniform.
func (e *Engine) SetMouse(x, y float32, down bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mouseX, e.mouseY = x, y
	if down {
		e.mouseClick = 1
	} else {
		e.mouseClick = 0
	}
}

// SetKey records one key's state in the 256-bit keyboard bitset. Codes
// outside [0, 255] are ignored.
func (e *Engine) SetKey(code int, down bool) {
	if code < 0 || code > 255 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	word, bit := code/32, uint32(1)<<(code%32)
	if down {
		e.keys[word] |= bit
	} else {
		e.keys[word] &^= bit
	}
}

// Screen returns the backend texture the active artifact renders into,
// or InvalidID before the first publish.
func (e *Engine) Screen() TextureID {
	a := e.active.Load()
	if a == nil || a.res == nil {
		return InvalidID
	}
	return a.res.screen
}

// ReadScreen copies the rendered image back as tightly packed RGBA
// bytes, row-major from the top-left.
func (e *Engine) ReadScreen(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := e.active.Load()
	if a == nil || a.res == nil || e.opts.Adapter == nil {
		return nil, ErrNoAdapter
	}
	e.opts.Adapter.WaitIdle()
	return e.opts.Adapter.ReadTexture(a.res.screen, a.Shader.Width, a.Shader.Height)
}

// Run drives the compile loop without ticking: it blocks on queued
// recompile requests until the context ends. Intended for hosts that
// tick from their own frame callback but want builds off that path.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case unit := <-e.pending:
			if _, err := e.Build(ctx, unit); err != nil {
				if errors.Is(err, ErrClosed) {
					return ErrClosed
				}
				slogger().Warn("recompile failed", "entry", unit.Path, "err", err)
			}
		}
	}
}

// Close releases every GPU resource. The engine rejects further
// operations afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	a := e.active.Swap(nil)
	if e.opts.Adapter != nil {
		e.opts.Adapter.WaitIdle()
		for _, r := range e.retired {
			r.res.release(e.opts.Adapter, r.keepBuffers, r.keepTextures)
		}
		e.retired = nil
		if a != nil && a.res != nil {
			a.res.release(e.opts.Adapter, nil, nil)
			a.res = nil
		}
	}
	return nil
}
