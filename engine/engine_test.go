// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/codeskew/shader"
)

const minimalEntry = "@compute @workgroup_size(16, 16)\nfn main_image(@builtin(global_invocation_id) id: uint3) {\n    textureStore(screen, int2(id.xy), float4(0.0, 0.0, 0.0, 1.0));\n}\n"

// mockValidator returns whatever the test configured, recording calls.
type mockValidator struct {
	diags []Diagnostic
	err   error
	calls int
}

func (v *mockValidator) Validate(source string) ([]Diagnostic, error) {
	v.calls++
	return v.diags, v.err
}

// recordingAdapter notes the bind group of every dispatch so parity
// alternation is observable.
type recordingAdapter struct {
	*NullAdapter
	bound []GroupID
}

func (r *recordingAdapter) BeginComputePass() ComputePass { return &recordingPass{ad: r} }

type recordingPass struct {
	ad *recordingAdapter
}

func (p *recordingPass) SetPipeline(PipelineID) {}
func (p *recordingPass) SetBindGroup(index uint32, group GroupID) {
	p.ad.bound = append(p.ad.bound, group)
}
func (p *recordingPass) Dispatch(x, y, z uint32) {}
func (p *recordingPass) End()                    {}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Adapter == nil {
		opts.Adapter = NewNullAdapter()
	}
	if opts.Compiler == nil {
		opts.Compiler = NullCompiler{}
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func unit(text string) shader.SourceUnit {
	return shader.SourceUnit{Path: "entry.wgsl", Text: text}
}

func TestNewRequiresCompilerWithAdapter(t *testing.T) {
	if _, err := New(Options{Adapter: NewNullAdapter()}); err == nil {
		t.Fatal("New with an adapter but no compiler succeeded, want error")
	}
	if _, err := New(Options{}); err != nil {
		t.Fatalf("New without backend: %v", err)
	}
}

func TestBuildPublishesArtifact(t *testing.T) {
	e := newTestEngine(t, Options{Width: 64, Height: 32})
	defer e.Close()

	a, err := e.Build(context.Background(), unit(minimalEntry))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a.Generation != 1 {
		t.Errorf("Generation = %d, want 1", a.Generation)
	}
	if a.State() != StateActive {
		t.Errorf("State = %v, want %v", a.State(), StateActive)
	}
	if got := e.Active(); got != a {
		t.Errorf("Active() = %p, want the built artifact %p", got, a)
	}
	if a.res == nil || a.res.screen == InvalidID {
		t.Fatal("published artifact has no screen texture")
	}
	if a.res.groups[0] == a.res.groups[1] {
		t.Error("parity bind groups share an ID, want two distinct groups")
	}
	if _, ok := a.res.buffers[shader.NamePassIn]; !ok {
		t.Error("pass_in buffer missing")
	}
	if _, ok := a.res.buffers[shader.NamePassOut]; !ok {
		t.Error("pass_out buffer missing")
	}
}

func TestBuildParseErrorLeavesNoArtifact(t *testing.T) {
	e := newTestEngine(t, Options{})
	defer e.Close()

	_, err := e.Build(context.Background(), unit("#storage\n"))
	var pe *shader.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Build error = %v (%T), want *shader.ParseError", err, err)
	}
	if e.Active() != nil {
		t.Error("Active() is set after a failed first build, want nil")
	}
}

func TestBuildRejectionKeepsPreviousActive(t *testing.T) {
	v := &mockValidator{}
	e := newTestEngine(t, Options{Width: 64, Height: 32, Validator: v})
	defer e.Close()

	first, err := e.Build(context.Background(), unit(minimalEntry))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	v.diags = []Diagnostic{{Line: first.Shader.PreludeLines + 2, Column: 7, Message: "type mismatch"}}
	_, err = e.Build(context.Background(), unit(minimalEntry+"// edited\n"))
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Build error = %v (%T), want *CompileError", err, err)
	}
	if got := e.Active(); got != first {
		t.Errorf("Active() changed after a rejected build: generation %d, want %d", got.Generation, first.Generation)
	}

	if len(ce.Diagnostics) != 1 {
		t.Fatalf("len(Diagnostics) = %d, want 1", len(ce.Diagnostics))
	}
	d := ce.Diagnostics[0]
	if d.File != "entry.wgsl" || d.Line != 2 {
		t.Errorf("diagnostic at %s:%d, want entry.wgsl:2", d.File, d.Line)
	}
	if d.Column != 7 {
		t.Errorf("Column = %d, want 7", d.Column)
	}
	if want := "entry.wgsl:2:7: type mismatch"; d.String() != want {
		t.Errorf("String() = %q, want %q", d.String(), want)
	}
}

func TestBuildRemapsPreludeDiagnostics(t *testing.T) {
	v := &mockValidator{}
	e := newTestEngine(t, Options{Width: 64, Height: 32, Validator: v})
	defer e.Close()

	v.diags = []Diagnostic{
		{Line: 1, Column: 1, Message: "inside generated code"},
		{Message: "no position"},
	}
	_, err := e.Build(context.Background(), unit(minimalEntry))
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Build error = %v (%T), want *CompileError", err, err)
	}
	if ce.Diagnostics[0].File != "<prelude>" {
		t.Errorf("File = %q, want %q", ce.Diagnostics[0].File, "<prelude>")
	}
	if got := ce.Diagnostics[1].String(); got != "no position" {
		t.Errorf("positionless String() = %q, want bare message", got)
	}
}

func TestBuildValidatorFailure(t *testing.T) {
	v := &mockValidator{err: errors.New("panic in lowering")}
	e := newTestEngine(t, Options{Validator: v})
	defer e.Close()

	_, err := e.Build(context.Background(), unit(minimalEntry))
	if err == nil || !strings.Contains(err.Error(), "validator") {
		t.Fatalf("Build error = %v, want a validator failure", err)
	}
	if e.Active() != nil {
		t.Error("Active() is set after a validator failure, want nil")
	}
}

func TestBuildSchedulingError(t *testing.T) {
	e := newTestEngine(t, Options{})
	defer e.Close()

	entry := "#storage grid array<u32, 4>\n@compute @workgroup_size(8, 8)\nfn simulate() { grid[0] = 1u; }\n@compute @workgroup_size(16, 16)\nfn main_image() { }\n"
	_, err := e.Build(context.Background(), unit(entry))
	if !errors.Is(err, ErrMissingDispatchGrid) {
		t.Fatalf("Build error = %v, want ErrMissingDispatchGrid", err)
	}
}

func TestRecompileCoalesces(t *testing.T) {
	e := newTestEngine(t, Options{Width: 64, Height: 32})
	defer e.Close()

	e.RequestRecompile(unit(minimalEntry))
	e.RequestRecompile(unit("#storage latest f32\n" + minimalEntry))
	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	a := e.Active()
	if a == nil {
		t.Fatal("Active() = nil after tick drained the queue")
	}
	if a.Generation != 1 {
		t.Errorf("Generation = %d, want 1 (older request dropped, not compiled)", a.Generation)
	}
	if _, ok := a.Shader.Descriptor("latest"); !ok {
		t.Error("published artifact lacks the latest request's storage binding")
	}
}

func TestTickRecompileFailureKeepsActive(t *testing.T) {
	e := newTestEngine(t, Options{Width: 64, Height: 32})
	defer e.Close()

	first, err := e.Build(context.Background(), unit(minimalEntry))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	e.RequestRecompile(unit("#include \"missing.wgsl\"\n"))
	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("Tick = %v, want nil (build failures are logged, not returned)", err)
	}
	if got := e.Active(); got != first {
		t.Errorf("Active() generation = %d, want %d after failed recompile", got.Generation, first.Generation)
	}
}

func TestTickWithoutArtifact(t *testing.T) {
	e := newTestEngine(t, Options{})
	defer e.Close()
	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("Tick with no artifact: %v", err)
	}
}

func TestTickPolicyBudgets(t *testing.T) {
	entry := `#storage grid array<u32, 64>
#workgroup_count seed_grid 1 1 1
#dispatch_once seed_grid
#workgroup_count sim 4 4 1
#dispatch_count sim 3

@compute @workgroup_size(8, 8)
fn seed_grid() {
    grid[0] = 1u;
}

@compute @workgroup_size(8, 8)
fn sim() {
    grid[1] = grid[0] + 1u;
}

@compute @workgroup_size(16, 16)
fn main_image(@builtin(global_invocation_id) id: uint3) {
    textureStore(screen, int2(id.xy), float4(f32(grid[1])));
}
`
	e := newTestEngine(t, Options{Width: 64, Height: 32})
	defer e.Close()
	if _, err := e.Build(context.Background(), unit(entry)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := e.Tick(context.Background()); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}

	a := e.Active()
	if got := a.Ticks(); got != 5 {
		t.Errorf("Ticks() = %d, want 5", got)
	}
	runs := []struct {
		pass string
		want uint32
	}{
		{"seed_grid", 1},
		{"sim", 3},
		{"main_image", 5},
	}
	for _, tt := range runs {
		if got := a.Runs(tt.pass); got != tt.want {
			t.Errorf("Runs(%q) = %d, want %d", tt.pass, got, tt.want)
		}
	}
}

func TestTickParityAlternates(t *testing.T) {
	ad := &recordingAdapter{NullAdapter: NewNullAdapter()}
	e := newTestEngine(t, Options{Width: 64, Height: 32, Adapter: ad})
	defer e.Close()

	a, err := e.Build(context.Background(), unit(minimalEntry))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := e.Tick(context.Background()); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
	want := []GroupID{a.res.groups[0], a.res.groups[1], a.res.groups[0], a.res.groups[1]}
	if len(ad.bound) != len(want) {
		t.Fatalf("len(bound) = %d, want %d", len(ad.bound), len(want))
	}
	for i := range want {
		if ad.bound[i] != want[i] {
			t.Errorf("tick %d bound group %d, want %d", i, ad.bound[i], want[i])
		}
	}
}

func TestResourceReuseAcrossGenerations(t *testing.T) {
	entryA := "#storage grid array<u32, 64>\n" + minimalEntry
	entryB := "#storage grid array<u32, 64>\n// tweaked\n" + minimalEntry
	entryC := "#storage grid array<u32, 128>\n" + minimalEntry

	e := newTestEngine(t, Options{Width: 64, Height: 32})
	defer e.Close()

	a1, err := e.Build(context.Background(), unit(entryA))
	if err != nil {
		t.Fatalf("Build A: %v", err)
	}
	grid1 := a1.res.buffers["grid"]
	time1 := a1.res.buffers[shader.NameTime]
	screen1 := a1.res.screen

	a2, err := e.Build(context.Background(), unit(entryB))
	if err != nil {
		t.Fatalf("Build B: %v", err)
	}
	if got := a2.res.buffers["grid"]; got != grid1 {
		t.Errorf("grid buffer = %d, want reused %d", got, grid1)
	}
	if got := a2.res.buffers[shader.NameTime]; got != time1 {
		t.Errorf("time buffer = %d, want reused %d", got, time1)
	}
	if a2.res.screen != screen1 {
		t.Errorf("screen = %d, want reused %d", a2.res.screen, screen1)
	}
	if a2.res.module == a1.res.module {
		t.Error("shader module reused across generations, want a fresh module")
	}

	a3, err := e.Build(context.Background(), unit(entryC))
	if err != nil {
		t.Fatalf("Build C: %v", err)
	}
	if got := a3.res.buffers["grid"]; got == grid1 {
		t.Error("resized grid buffer kept its old handle, want a reallocation")
	}

	// Two publishes queued two retirements; a tick drains them without
	// touching inherited handles.
	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(e.retired) != 0 {
		t.Errorf("len(retired) = %d after tick, want 0", len(e.retired))
	}
	if _, err := e.opts.Adapter.ReadBuffer(a3.res.buffers["grid"], 0, 4); err != nil {
		t.Errorf("ReadBuffer on live grid after retirement: %v", err)
	}
}

func TestStorageStateSurvivesRecompile(t *testing.T) {
	entryA := "#storage grid array<u32, 64>\n" + minimalEntry
	entryB := "#storage grid array<u32, 64>\n// edited\n" + minimalEntry

	ad := NewNullAdapter()
	e := newTestEngine(t, Options{Width: 64, Height: 32, Adapter: ad})
	defer e.Close()

	a1, err := e.Build(context.Background(), unit(entryA))
	if err != nil {
		t.Fatalf("Build A: %v", err)
	}
	var marker [4]byte
	binary.LittleEndian.PutUint32(marker[:], 0xCAFE)
	ad.WriteBuffer(a1.res.buffers["grid"], 0, marker[:])

	a2, err := e.Build(context.Background(), unit(entryB))
	if err != nil {
		t.Fatalf("Build B: %v", err)
	}
	got, err := ad.ReadBuffer(a2.res.buffers["grid"], 0, 4)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if binary.LittleEndian.Uint32(got) != 0xCAFE {
		t.Errorf("grid[0] = %#x after recompile, want %#x", binary.LittleEndian.Uint32(got), 0xCAFE)
	}
}

func TestAssertCounts(t *testing.T) {
	entry := "@compute @workgroup_size(16, 16)\nfn main_image(@builtin(global_invocation_id) id: uint3) {\n    let x = f32(id.x);\n    #assert x >= 0.0\n    #assert x < 8000.0\n    textureStore(screen, int2(id.xy), float4(x));\n}\n"

	ad := NewNullAdapter()
	e := newTestEngine(t, Options{Width: 64, Height: 32, Adapter: ad})
	defer e.Close()

	a, err := e.Build(context.Background(), unit(entry))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	id, ok := a.res.buffers[shader.NameAssertCounts]
	if !ok {
		t.Fatal("no assertion counter buffer realized")
	}
	var bump [4]byte
	binary.LittleEndian.PutUint32(bump[:], 7)
	ad.WriteBuffer(id, 0, bump[:])

	counts, err := e.AssertCounts(context.Background())
	if err != nil {
		t.Fatalf("AssertCounts: %v", err)
	}
	want := map[int]uint32{0: 7, 1: 0}
	if len(counts) != len(want) {
		t.Fatalf("counts = %v, want %v", counts, want)
	}
	for site, n := range want {
		if counts[site] != n {
			t.Errorf("counts[%d] = %d, want %d", site, counts[site], n)
		}
	}
}

func TestAssertCountsWithoutAsserts(t *testing.T) {
	e := newTestEngine(t, Options{Width: 64, Height: 32})
	defer e.Close()
	if _, err := e.Build(context.Background(), unit(minimalEntry)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	counts, err := e.AssertCounts(context.Background())
	if err != nil {
		t.Fatalf("AssertCounts: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("counts = %v, want empty", counts)
	}
}

func TestSetUniform(t *testing.T) {
	ad := NewNullAdapter()
	e := newTestEngine(t, Options{
		Width:   64,
		Height:  32,
		Adapter: ad,
		Uniforms: []shader.UniformSeed{
			{Name: "speed", Value: 1.5},
			{Name: "scale", Value: 3},
		},
	})
	defer e.Close()

	// Accepted and cached before any build.
	if err := e.SetUniform("speed", 2.5); err != nil {
		t.Fatalf("SetUniform before build: %v", err)
	}

	a, err := e.Build(context.Background(), unit(minimalEntry))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	id := a.res.buffers[shader.NameCustom]
	raw, err := ad.ReadBuffer(id, 0, 8)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(raw)); got != 2.5 {
		t.Errorf("speed = %v after publish, want cached 2.5", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(raw[4:])); got != 3 {
		t.Errorf("scale = %v, want seed 3", got)
	}

	if err := e.SetUniform("scale", 0.25); err != nil {
		t.Fatalf("SetUniform: %v", err)
	}
	raw, err = ad.ReadBuffer(id, 4, 4)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(raw)); got != 0.25 {
		t.Errorf("scale = %v after SetUniform, want 0.25", got)
	}

	if err := e.SetUniform("missing", 1); err == nil {
		t.Error("SetUniform on an undeclared name succeeded, want error")
	}
}

func TestReadScreen(t *testing.T) {
	e := newTestEngine(t, Options{Width: 8, Height: 4})
	defer e.Close()
	if _, err := e.Build(context.Background(), unit(minimalEntry)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	pix, err := e.ReadScreen(context.Background())
	if err != nil {
		t.Fatalf("ReadScreen: %v", err)
	}
	if len(pix) != 8*4*4 {
		t.Errorf("len(pix) = %d, want %d", len(pix), 8*4*4)
	}
}

func TestTickFixedDelta(t *testing.T) {
	ad := NewNullAdapter()
	e := newTestEngine(t, Options{Width: 8, Height: 4, Adapter: ad, FixedDelta: 0.5})
	defer e.Close()

	a, err := e.Build(context.Background(), unit(minimalEntry))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := e.Tick(context.Background()); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}

	raw, err := ad.ReadBuffer(a.res.buffers[shader.NameTime], 0, 12)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if got := binary.LittleEndian.Uint32(raw); got != 2 {
		t.Errorf("frame = %d after 3 ticks, want 2", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(raw[4:])); got != 1.0 {
		t.Errorf("elapsed = %v, want 1.0", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(raw[8:])); got != 0.5 {
		t.Errorf("delta = %v, want fixed 0.5", got)
	}
}

func TestCloseRejectsOperations(t *testing.T) {
	e := newTestEngine(t, Options{Width: 64, Height: 32})
	if _, err := e.Build(context.Background(), unit(minimalEntry)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if e.Active() != nil {
		t.Error("Active() non-nil after Close")
	}
	if err := e.Tick(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Tick after Close = %v, want ErrClosed", err)
	}
	if _, err := e.Build(context.Background(), unit(minimalEntry)); !errors.Is(err, ErrClosed) {
		t.Errorf("Build after Close = %v, want ErrClosed", err)
	}
	if err := e.SetUniform("speed", 1); !errors.Is(err, ErrClosed) {
		t.Errorf("SetUniform after Close = %v, want ErrClosed", err)
	}
}

func TestSetKeyBitset(t *testing.T) {
	e := newTestEngine(t, Options{})
	defer e.Close()

	e.SetKey(0, true)
	e.SetKey(33, true)
	e.SetKey(255, true)
	if e.keys[0] != 1 {
		t.Errorf("keys[0] = %#x, want 1", e.keys[0])
	}
	if e.keys[1] != 1<<1 {
		t.Errorf("keys[1] = %#x, want %#x", e.keys[1], uint32(1)<<1)
	}
	if e.keys[7] != 1<<31 {
		t.Errorf("keys[7] = %#x, want %#x", e.keys[7], uint32(1)<<31)
	}
	e.SetKey(33, false)
	if e.keys[1] != 0 {
		t.Errorf("keys[1] = %#x after release, want 0", e.keys[1])
	}
	e.SetKey(-1, true)
	e.SetKey(256, true)
}
