// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend selects and drives shader execution backends.
//
// The package has two halves. The Frontend wraps the pure-Go naga
// compiler and is shared by every backend: it validates assembled WGSL
// and translates it to SPIR-V. Devices provide execution; they
// implement the engine.Adapter surface and register themselves by name:
//
//   - "wgpu": compute on a real GPU through gogpu/wgpu's HAL
//     (see the wgpu subpackage)
//   - "null": in-memory bookkeeping with no execution, for
//     check-only runs and tests
//
// Hosts usually call InitDefault, which walks the priority order and
// returns the first device that initializes, falling back to "null"
// when no GPU is reachable.
package backend
