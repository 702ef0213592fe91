// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package engine schedules and executes preprocessed compute shaders.
//
// The engine owns the compile pipeline (expand, resolve, validate,
// realize) and the per-tick dispatch loop. A successfully validated
// build is published atomically as a CompiledArtifact; the dispatch
// loop always reads the latest published artifact and never observes a
// partially built one. A rejected build leaves the previous artifact
// active.
//
// GPU access goes through two narrow seams: a Validator/Compiler pair
// for checking and translating generated WGSL, and an Adapter for
// resource allocation and dispatch. The backend package provides both
// (the naga frontend and the registered devices); NullAdapter provides
// an in-memory stand-in for headless use and tests.
package engine
