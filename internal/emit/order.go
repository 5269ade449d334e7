// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"sort"
	"strings"

	"github.com/nrnforge/netgen/internal/desc"
)

// orderLocalityStep topologically sorts vars (every variable of one
// locality) so that a variable whose Eq.Dependencies names another
// variable of the same locality is emitted after it, per §4.6's
// "dependency order within a step" invariant. Coupled-cluster members
// (non-empty Eq.CoupledWith) are collapsed into a single node positioned
// at the rank of the cluster's earliest-declared member, then expanded
// back out in the alphabetical order the §4.4 solver assigned them, so
// the block's own internal ordering (e.g. `__coupled_det__` declared
// before it is divided by) is preserved.
func orderLocalityStep(vars []*desc.Attribute) ([]*desc.Attribute, error) {
	if len(vars) == 0 {
		return nil, nil
	}

	byName := map[string]*desc.Attribute{}
	declOrder := map[string]int{}
	for i, v := range vars {
		byName[v.Name] = v
		declOrder[v.Name] = i
	}

	repOf := map[string]string{}
	members := map[string][]string{}
	visited := map[string]bool{}
	for _, v := range vars {
		if v.Eq == nil || len(v.Eq.CoupledWith) == 0 || visited[v.Name] {
			continue
		}
		cluster := collectCoupledCluster(v.Name, byName, visited)
		sort.Strings(cluster)
		rep := cluster[0]
		for _, m := range cluster {
			repOf[m] = rep
		}
		members[rep] = cluster
	}

	nodeOf := func(name string) string {
		if r, ok := repOf[name]; ok {
			return r
		}
		return name
	}

	nodes := map[string]bool{}
	nodeRank := map[string]int{}
	for _, v := range vars {
		n := nodeOf(v.Name)
		if !nodes[n] {
			nodes[n] = true
			nodeRank[n] = declOrder[v.Name]
		} else if declOrder[v.Name] < nodeRank[n] {
			nodeRank[n] = declOrder[v.Name]
		}
	}

	succ := map[string]map[string]bool{}
	indeg := map[string]int{}
	for n := range nodes {
		succ[n] = map[string]bool{}
		indeg[n] = 0
	}
	for _, v := range vars {
		if v.Eq == nil {
			continue
		}
		self := nodeOf(v.Name)
		for dep := range v.Eq.Dependencies {
			depAttr, ok := byName[dep]
			if !ok || depAttr.Eq == nil {
				continue // not a same-locality stepped variable
			}
			depNode := nodeOf(dep)
			if depNode == self {
				continue // internal to one coupled cluster
			}
			if !succ[depNode][self] {
				succ[depNode][self] = true
				indeg[self]++
			}
		}
	}

	var ready []string
	for n := range nodes {
		if indeg[n] == 0 {
			ready = append(ready, n)
		}
	}

	var orderedNodes []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return nodeRank[ready[i]] < nodeRank[ready[j]] })
		n := ready[0]
		ready = ready[1:]
		orderedNodes = append(orderedNodes, n)
		var nexts []string
		for m := range succ[n] {
			nexts = append(nexts, m)
		}
		sort.Strings(nexts)
		for _, m := range nexts {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
	}

	if len(orderedNodes) != len(nodes) {
		return nil, desc.Errf(desc.DependencyCycle, "", "cannot order step: dependency cycle among %v", remainingNodes(nodes, orderedNodes))
	}

	out := make([]*desc.Attribute, 0, len(vars))
	for _, n := range orderedNodes {
		if group, ok := members[n]; ok {
			for _, m := range group {
				out = append(out, byName[m])
			}
			continue
		}
		out = append(out, byName[n])
	}
	return out, nil
}

func collectCoupledCluster(start string, byName map[string]*desc.Attribute, visited map[string]bool) []string {
	var cluster []string
	queue := []string{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true
		cluster = append(cluster, n)
		a, ok := byName[n]
		if !ok || a.Eq == nil {
			continue
		}
		for _, nb := range a.Eq.CoupledWith {
			if !visited[nb] {
				queue = append(queue, nb)
			}
		}
	}
	return cluster
}

func remainingNodes(nodes map[string]bool, ordered []string) []string {
	done := map[string]bool{}
	for _, n := range ordered {
		done[n] = true
	}
	var out []string
	for n := range nodes {
		if !done[n] {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// checkLocalitySeparation enforces Testable Property 5: a global
// variable's equation may never depend on a local attribute directly,
// since per-unit data has no meaning without a unit index outside the
// local meta-step; it must be routed through one of the global-operation
// reduction placeholders the builder records in Description.GlobalOperations.
// A local variable's equation may freely depend on a global attribute
// (every unit reading a shared parameter is ordinary).
func checkLocalitySeparation(d *desc.Description) error {
	localAttr := map[string]bool{}
	for _, a := range d.AllAttributes() {
		if a.Locality == desc.Local {
			localAttr[a.Name] = true
		}
	}
	reduced := map[string]bool{}
	for _, op := range d.GlobalOperations {
		reduced[op.Var] = true
	}
	for _, v := range d.Variables {
		if v.Locality != desc.Global || v.Eq == nil {
			continue
		}
		for dep := range v.Eq.Dependencies {
			if strings.HasPrefix(dep, "__global_op_") {
				continue
			}
			if localAttr[dep] && !reduced[dep] {
				return desc.Errf(desc.EmitterBug, dep, "global variable %q depends on local attribute %q without a global-operation reduction", v.Name, dep)
			}
		}
	}
	return nil
}
