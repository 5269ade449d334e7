// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry implements the §9 process-wide description registry:
// the original generator appends every analyzed description to a global
// list used to assign each generated class a numeric id ("Population0",
// "Projection1", ...). This package fixes that as an explicit struct
// threaded through the CLI rather than a package-level global, so that
// running the generator twice in one process (as the test suite does)
// never leaks state across runs.
package registry

import "fmt"

// Class is the generated artifact kind a Description is emitted as.
type Class int

const (
	Population Class = iota
	Projection
)

func (c Class) String() string {
	if c == Population {
		return "Population"
	}
	return "Projection"
}

// Registry assigns each description a stable "<Type><id>" name in the
// order descriptions are registered, per class.
type Registry struct {
	counts map[Class]int
	names  map[string]string // description name -> assigned artifact name
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{counts: map[Class]int{}, names: map[string]string{}}
}

// Register assigns and returns the next "<Type><id>" name for class,
// recording it under descName so later lookups (e.g. cross-references
// between a projection and its pre/post populations) can recover it.
func (r *Registry) Register(class Class, descName string) string {
	id := r.counts[class]
	r.counts[class]++
	name := fmt.Sprintf("%s%d", class, id)
	r.names[descName] = name
	return name
}

// Lookup returns the artifact name previously assigned to descName, or
// "" if it has not been registered.
func (r *Registry) Lookup(descName string) string {
	return r.names[descName]
}

// Count returns how many descriptions of class have been registered.
func (r *Registry) Count(class Class) int {
	return r.counts[class]
}
