// Package codeskew renders source code as stylized images: syntax
// highlighted text laid over a shader-driven or gradient background,
// skewed and folded like a photographed sheet of paper.
//
// # Overview
//
// A render is a pipeline: a profile selects dimensions, theme, and
// effect parameters; the source file is tokenized into styled lines;
// the lines are shaped and rasterized into a text layer; per frame, a
// WGSL compute shader (or a CPU gradient when no shader is configured)
// produces the background; the text layer is warped through the fold
// transform and composited on top; frames go to a PNG or GIF encoder.
//
// # Quick Start
//
//	src, _ := os.ReadFile("main.go")
//
//	r, err := codeskew.NewRenderer(string(src), "main.go")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	if err := r.RenderFile(context.Background(), "out.png"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Architecture
//
// The library is organized into:
//   - Root: Renderer, functional options, compositing
//   - shader: WGSL template preprocessing and binding layout
//   - engine: compile pipeline and per-tick dispatch loop
//   - backend: execution devices (wgpu, null) and the naga frontend
//   - highlight, text, layout: styled lines, glyph rasterization, warp math
//   - profile, encode, watch: HCL profiles, PNG/GIF output, hot reload
//
// # Coordinate System
//
// Uses standard image coordinates:
//   - Origin (0,0) at top-left
//   - X increases right
//   - Y increases down
//
// The fold transform maps destination pixels back to source positions,
// so all per-pixel work happens in the inverse direction.
package codeskew

// Version information
const (
	// Version is the current version of the library
	Version = "0.4.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 4

	// VersionPatch is the patch version
	VersionPatch = 0
)
