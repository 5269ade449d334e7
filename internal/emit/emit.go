// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package emit implements the §4.6 Template Emitter: it consumes a
// frozen Description plus a target backend tag and renders the type
// header, implementation unit, binding surface and build manifest text
// artifacts, enforcing the locality-routing and dependency-ordering
// invariants along the way.
//
// Grounded on emer-gosl/process.go's buffer-based rendering
// (slprint.Config.Fprint into a bytes.Buffer, one artifact written per
// source unit) generalized one level up: instead of pretty-printing
// reformatted Go, each artifact is rendered from a text/template over
// the description, since the output is the target imperative dialect,
// not Go.
package emit

import (
	"fmt"

	"github.com/nrnforge/netgen/internal/desc"
	"github.com/nrnforge/netgen/internal/profile"
	"github.com/nrnforge/netgen/internal/registry"
)

// Backend is the §5 runtime backend tag the emitter targets.
type Backend int

const (
	SingleThreaded Backend = iota
	ParallelThreads
	GPU
)

func (b Backend) String() string {
	switch b {
	case ParallelThreads:
		return "parallel-threads"
	case GPU:
		return "gpu"
	default:
		return "single-threaded"
	}
}

// ParseBackend resolves the -backend CLI flag's value.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "single", "single-threaded", "":
		return SingleThreaded, nil
	case "threads", "parallel-threads":
		return ParallelThreads, nil
	case "gpu":
		return GPU, nil
	default:
		return SingleThreaded, fmt.Errorf("unknown backend %q", s)
	}
}

// Artifacts is the §4.6 named set of text artifacts produced for one
// Description.
type Artifacts struct {
	ArtifactName string // "<Type><id>" assigned by the registry
	Header       string
	Impl         string
	Binding      string
	Manifest     string
}

// Emit renders every §4.6 artifact for d. reg assigns d's "<Type><id>"
// name (Population for a neuron, Projection for a synapse); mixin
// brackets the local/global meta-steps with profiling regions when
// enabled (§4.7), and is a no-op pass-through otherwise.
func Emit(d *desc.Description, backend Backend, reg *registry.Registry, mixin *profile.Mixin) (*Artifacts, error) {
	if !d.Frozen() {
		return nil, desc.Errf(desc.EmitterBug, d.Name, "description %q is not frozen", d.Name)
	}
	if err := checkLocalitySeparation(d); err != nil {
		return nil, err
	}

	class := registry.Population
	if d.Object == desc.Synapse {
		class = registry.Projection
	}
	artifactName := reg.Register(class, d.Name)

	header, err := buildHeader(artifactName, d)
	if err != nil {
		return nil, err
	}
	impl, err := buildImpl(artifactName, d, backend, mixin)
	if err != nil {
		return nil, err
	}
	binding := buildBinding(artifactName, d)
	manifest := buildManifest(artifactName, d, backend, mixin)

	return &Artifacts{
		ArtifactName: artifactName,
		Header:       header,
		Impl:         impl,
		Binding:      binding,
		Manifest:     manifest,
	}, nil
}
