// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/codeskew/shader"
)

// Policy selects how often a pass is dispatched.
type Policy uint8

const (
	// PolicyAlways dispatches the pass on every tick.
	PolicyAlways Policy = iota
	// PolicyOnce dispatches the pass on the first tick of an artifact
	// generation only.
	PolicyOnce
	// PolicyFixed dispatches the pass on the first Budget ticks of an
	// artifact generation.
	PolicyFixed
)

func (p Policy) String() string {
	switch p {
	case PolicyAlways:
		return "always"
	case PolicyOnce:
		return "once"
	case PolicyFixed:
		return "fixed-count"
	default:
		return "unknown"
	}
}

// A Pass is one compute entry point with its dispatch plan. Passes are
// immutable once discovered; per-generation run counts live on the
// CompiledArtifact.
type Pass struct {
	Name      string
	Workgroup [3]uint32 // workgroup size; zero when unparsable
	Grid      [3]uint32 // dispatch grid in workgroups
	Policy    Policy
	Budget    uint32 // tick budget for PolicyOnce/PolicyFixed
}

// due reports whether the pass should dispatch on a tick given how many
// times it has already run this generation.
func (p Pass) due(runs uint32) bool {
	if p.Policy == PolicyAlways {
		return true
	}
	return runs < p.Budget
}

// entryRe matches compute entry points in the assembled source. The
// generated prelude declares none, so matches come from user code only.
var entryRe = regexp.MustCompile(`(?s)@compute.*?@workgroup_size\(([^)]*)\).*?fn\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Primary-pass names. The primary pass receives a default dispatch grid
// covering the output surface; all other passes need an explicit
// #workgroup_count.
const (
	primaryPassName    = "main_image"
	primaryPassNameAlt = "main"
)

// discoverPasses scans the artifact for compute entry points, in source
// order, and applies the artifact's dispatch directives to them.
func discoverPasses(a *shader.Artifact) ([]Pass, error) {
	var passes []Pass
	index := make(map[string]int)
	for _, m := range entryRe.FindAllStringSubmatch(a.Source, -1) {
		name := m[2]
		if _, dup := index[name]; dup {
			// The validator rejects duplicate function names; keep the
			// first occurrence so scheduling stays deterministic.
			continue
		}
		index[name] = len(passes)
		passes = append(passes, Pass{
			Name:      name,
			Workgroup: parseWorkgroupSize(m[1]),
			Policy:    PolicyAlways,
		})
	}

	for _, d := range a.Directives {
		switch d := d.(type) {
		case shader.WorkgroupCount:
			i, ok := index[d.Pass]
			if !ok {
				warnUnknownPass("workgroup_count", d.Pass, d.Origin())
				continue
			}
			passes[i].Grid = [3]uint32{d.X, d.Y, d.Z}
		case shader.DispatchOnce:
			i, ok := index[d.Pass]
			if !ok {
				warnUnknownPass("dispatch_once", d.Pass, d.Origin())
				continue
			}
			passes[i].Policy = PolicyOnce
			passes[i].Budget = 1
		case shader.DispatchCount:
			i, ok := index[d.Pass]
			if !ok {
				warnUnknownPass("dispatch_count", d.Pass, d.Origin())
				continue
			}
			passes[i].Policy = PolicyFixed
			passes[i].Budget = d.Count
		}
	}

	primary := primaryIndex(passes)
	for i := range passes {
		if passes[i].Grid != [3]uint32{} {
			continue
		}
		if i != primary {
			return nil, &SchedulingError{
				Err:    ErrMissingDispatchGrid,
				Pass:   passes[i].Name,
				Detail: "no #workgroup_count and not the primary image pass",
			}
		}
		wg := passes[i].Workgroup
		if wg == ([3]uint32{}) {
			return nil, &SchedulingError{
				Err:    ErrMissingDispatchGrid,
				Pass:   passes[i].Name,
				Detail: "workgroup size is not a literal integer list",
			}
		}
		passes[i].Grid = [3]uint32{ceilDiv(a.Width, wg[0]), ceilDiv(a.Height, wg[1]), 1}
	}
	return passes, nil
}

// primaryIndex designates the pass that gets the surface-covering
// default grid: "main_image", then "main", then a sole entry point.
func primaryIndex(passes []Pass) int {
	for i, p := range passes {
		if p.Name == primaryPassName {
			return i
		}
	}
	for i, p := range passes {
		if p.Name == primaryPassNameAlt {
			return i
		}
	}
	if len(passes) == 1 {
		return 0
	}
	return -1
}

// parseWorkgroupSize parses the literal argument list of a
// @workgroup_size attribute. Missing trailing components default to 1;
// a non-literal component yields the zero marker.
func parseWorkgroupSize(args string) [3]uint32 {
	wg := [3]uint32{1, 1, 1}
	parts := strings.Split(args, ",")
	if len(parts) > 3 {
		return [3]uint32{}
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil || n == 0 {
			return [3]uint32{}
		}
		wg[i] = uint32(n)
	}
	return wg
}

func warnUnknownPass(directive, pass string, at shader.Origin) {
	slogger().Warn("dispatch directive names no entry point; ignored",
		"directive", directive, "pass", pass, "at", at.String())
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
