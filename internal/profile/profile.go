// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package profile implements the §4.7 Profiling-Annotation Mixin: a
// pure pre-emit text transform that brackets a named region with
// start/stop calls against a runtime measurement primitive, plus that
// primitive's own generator-side accumulator, adapted from
// emer-gosl/timer's wall-clock Time type (copied there from
// emer-emergent/timer to avoid a circular module dependency; the same
// accumulator shape is reused here, generalized from a single global
// timer to a named-region registry keyed the way
// ANNarchy's ProfileGenerator names regions).
package profile

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Region is the runtime-side measurement accumulator for one named
// region (§4.7): Start/Stop bracket one measured interval, Avg reports
// the running mean, mirroring timer.Time's Start/Stop/Avg contract.
type Region struct {
	Name  string
	start time.Time
	total time.Duration
	n     int
}

// Start begins timing one interval of the region.
func (r *Region) Start() { r.start = time.Now() }

// Stop ends the interval begun by Start, accumulating it, and returns
// its duration.
func (r *Region) Stop() time.Duration {
	if r.start.IsZero() {
		return 0
	}
	iv := time.Since(r.start)
	r.total += iv
	r.n++
	return iv
}

// Avg returns the mean interval duration over every Start/Stop pair
// recorded so far.
func (r *Region) Avg() time.Duration {
	if r.n == 0 {
		return 0
	}
	return r.total / time.Duration(r.n)
}

// RegionName builds the region id for one step section, following
// ANNarchy's ProfileGenerator.py convention of naming profiled regions
// "<class>_<method>" (e.g. "pop0_step", "proj1_psp").
func RegionName(class, method string) string {
	return class + "_" + method
}

// Mixin collects the regions declared while wrapping one description's
// emitted sections; it is pure bookkeeping over text, never touching
// the order the emitter produced its sections in.
type Mixin struct {
	enabled bool
	regions []string
	seen    map[string]bool
}

// NewMixin constructs a Mixin; when enabled is false, Wrap is a no-op
// pass-through so -profile can be toggled without branching at every
// call site.
func NewMixin(enabled bool) *Mixin {
	return &Mixin{enabled: enabled, seen: map[string]bool{}}
}

// Wrap brackets body (one already-emitted section of imperative text,
// e.g. a local meta-step or a per-projection PSP loop) with start/stop
// calls against the named region, recording the region for the build
// manifest. It never reorders or otherwise rewrites body.
func (m *Mixin) Wrap(regionName, body string) string {
	if !m.enabled {
		return body
	}
	if !m.seen[regionName] {
		m.seen[regionName] = true
		m.regions = append(m.regions, regionName)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "__profile_regions__[%q].Start();\n", regionName)
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "__profile_regions__[%q].Stop();\n", regionName)
	return b.String()
}

// Regions returns every region name Wrap has bracketed so far, in
// first-use order, for the build manifest's region declaration list.
func (m *Mixin) Regions() []string {
	out := make([]string, len(m.regions))
	copy(out, m.regions)
	return out
}

// Enabled reports whether the mixin will bracket text passed to Wrap.
func (m *Mixin) Enabled() bool { return m.enabled }

// SortedRegions returns every declared region name in lexical order,
// used when a deterministic manifest listing is required independent
// of first-use order.
func (m *Mixin) SortedRegions() []string {
	out := m.Regions()
	sort.Strings(out)
	return out
}
