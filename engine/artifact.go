// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import "github.com/gogpu/codeskew/shader"

// BuildState tracks an artifact through the compile pipeline.
type BuildState uint8

const (
	// StateBuilding means sources are expanded and resources are being
	// realized; nothing is visible to the render loop yet.
	StateBuilding BuildState = iota

	// StateValidated means the backend accepted the translated module
	// but the artifact has not been published.
	StateValidated

	// StateRejected means validation or realization failed; the
	// artifact holds no resources and is never published.
	StateRejected

	// StateActive means the artifact is the one the render loop
	// dispatches.
	StateActive
)

func (s BuildState) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateValidated:
		return "validated"
	case StateRejected:
		return "rejected"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// CompiledArtifact couples a preprocessed shader with its discovered
// passes and realized GPU resources. Artifacts are immutable once
// published except for the dispatch bookkeeping the render loop owns.
type CompiledArtifact struct {
	Shader *shader.Artifact
	Passes []Pass

	// Generation increases with every successful publish and never
	// repeats within an engine.
	Generation uint64

	state BuildState
	res   *resources

	// runs counts dispatches per pass for once / fixed-count policies.
	runs []uint32

	// ticks counts render loop iterations on this artifact; its parity
	// selects the pass-buffer bind group.
	ticks uint64

	// lastAsserts holds the counter values seen at the previous
	// readback so only increases are reported.
	lastAsserts []uint32
}

// State reports where the artifact is in its lifecycle.
func (c *CompiledArtifact) State() BuildState { return c.state }

// Ticks reports how many render iterations ran against this artifact.
func (c *CompiledArtifact) Ticks() uint64 { return c.ticks }

// Runs reports how many times the named pass has dispatched on this
// artifact.
func (c *CompiledArtifact) Runs(pass string) uint32 {
	for i, p := range c.Passes {
		if p.Name == pass {
			return c.runs[i]
		}
	}
	return 0
}
