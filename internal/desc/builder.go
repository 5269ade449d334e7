// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package desc

import (
	"sort"
	"strconv"
	"strings"

	"github.com/nrnforge/netgen/internal/rdist"
)

// Analyzer is the §4.3/§4.4 surface the builder depends on, satisfied
// by an adapter over package synexpr. It is declared here rather than
// imported concretely because synexpr itself imports desc for the data
// model and error taxonomy; the builder receives its analyzer (and its
// Solver, below) from the caller that wires every package together.
type Analyzer interface {
	Analyze(eq *Equation, name, methodFlag string, table SymbolTable) error
	RenderBound(text string, table SymbolTable) (rendered string, deps map[string]bool, err error)
}

// CoupledSystem mirrors solve.System's shape without importing package
// solve (which, like synexpr, imports desc for its error taxonomy).
type CoupledSystem struct {
	Names []string
	A     [][]string
	B     []string
}

// Solver is the §4.4 surface the builder depends on, satisfied by an
// adapter over package solve.
type Solver interface {
	Solve(sys CoupledSystem) (map[string]string, error)
}

// SymbolTable is implemented by *builderTable and consumed by the
// Analyzer; declared in this package so Description and Equation never
// need to import synexpr.
type SymbolTable interface {
	HasAttribute(name string) bool
	IsTarget(name string) bool
	IsRandomDraw(name string) bool
	IsFunction(name string) bool
	IsCoupled(name string) bool
}

// Input is one neuron or synapse declaration's already-classified
// surface: lexing and attribute classification (§4.1-§4.2) happen
// before Build is called, since package attr itself depends on desc.
type Input struct {
	Name   string
	Object ObjectType
	Type   ModelType

	Parameters []*Attribute
	Variables  []*Attribute
	Functions  []Function

	SpikeCond    string // spiking neuron only
	ResetEntries []ResetRecord
	Refractory   string

	SynapseOperation string // spiking synapse only; "" defaults to "sum"

	StructuralPlasticityEnabled bool // CLI-wide gate (§4.5)
}

// ResetRecord is one already-extracted reset-block statement, the
// lex.Record shape reduced to what the builder needs.
type ResetRecord struct {
	LHS, RHS          string
	UnlessRefractory bool
}

// Build orchestrates §4.3-§4.5 for one declaration (whose parameters
// and variables have already been classified by §4.1-§4.2) and returns
// the frozen Description, or the first *Error encountered.
func Build(in Input, a Analyzer, solver Solver) (*Description, error) {
	d := &Description{
		Name:       in.Name,
		Object:     in.Object,
		Type:       in.Type,
		Functions:  in.Functions,
		Parameters: in.Parameters,
		Variables:  in.Variables,
	}

	d.Targets = scanTargets(d.Variables)
	d.RandomDistributions = map[string]RandomDecl{}
	for _, p := range d.Parameters {
		if p.InitVal.Dist == "" {
			continue
		}
		kind, _ := rdist.Lookup(p.InitVal.Dist)
		args := make([]float64, 0, len(p.InitVal.DistArgs))
		for _, s := range p.InitVal.DistArgs {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err == nil {
				args = append(args, f)
			}
		}
		d.RandomDistributions[p.Name] = RandomDecl{Name: p.Name, Kind: kind.String(), Args: args}
	}

	if err := applyModelDefaults(d); err != nil {
		return nil, err
	}

	table := &builderTable{d: d, coupledCandidates: coupledCandidates(d.Variables)}

	for _, v := range d.Variables {
		if v.Eq == nil {
			continue
		}
		method := methodFlagOf(v)
		if err := a.Analyze(v.Eq, v.Name, method, table); err != nil {
			return nil, err
		}
	}

	if err := resolveCoupledClusters(d.Variables, solver); err != nil {
		return nil, err
	}

	if err := applyBounds(d.Variables, a, table); err != nil {
		return nil, err
	}

	if err := collectGlobalOperations(d); err != nil {
		return nil, err
	}

	if d.Object == Synapse && d.Type == SpikeType {
		op := in.SynapseOperation
		if op == "" {
			op = "sum"
		}
		if op != "sum" {
			return nil, Errf(IllegalOperation, op, "synapse %q permits only the sum operation on a spiking synapse, got %q", d.Name, op)
		}
	}

	if in.SpikeCond != "" {
		rendered, deps, err := a.RenderBound(in.SpikeCond, table)
		if err != nil {
			return nil, err
		}
		spike := &Spike{SpikeCond: rendered, SpikeCondDependencies: deps}
		for _, r := range in.ResetEntries {
			rendered, deps, err := a.RenderBound(r.RHS, table)
			if err != nil {
				return nil, err
			}
			constraint := ""
			if r.UnlessRefractory {
				constraint = "unless_refractory"
			}
			spike.SpikeReset = append(spike.SpikeReset, ResetEntry{
				Name:         r.LHS,
				Eq:           r.RHS,
				CPP:          r.LHS + " = " + rendered + ";",
				Constraint:   constraint,
				Dependencies: deps,
			})
		}
		if len(spike.SpikeReset) == 0 {
			return nil, Errf(MissingRequiredVariable, d.Name, "spiking description %q requires a non-empty reset list", d.Name)
		}
		d.Spike = spike
	}
	d.Refractory = in.Refractory

	for _, v := range d.Variables {
		if hasFlag(v.Flags, "pruning") || hasFlag(v.Flags, "creating") {
			d.StructuralPlasticity = true
		}
	}
	if d.StructuralPlasticity && !in.StructuralPlasticityEnabled {
		return nil, Errf(StructuralPlasticityDisabled, d.Name, "description %q declares pruning/creating clauses but structural plasticity is not enabled", d.Name)
	}

	for _, p := range d.Parameters {
		d.Attributes = append(d.Attributes, p.Name)
	}
	for _, v := range d.Variables {
		d.Attributes = append(d.Attributes, v.Name)
	}
	for _, at := range d.AllAttributes() {
		if at.Locality == Global {
			d.GlobalNames = append(d.GlobalNames, at.Name)
		} else {
			d.LocalNames = append(d.LocalNames, at.Name)
		}
	}

	d.Freeze()
	return d, nil
}

// applyModelDefaults implements the §4.5 rate/spike default rules.
func applyModelDefaults(d *Description) error {
	if d.Object != Neuron {
		return nil
	}
	hasR := d.Lookup("r") != nil
	switch d.Type {
	case Rate:
		if !hasR {
			return Errf(MissingRequiredVariable, d.Name, "rate-coded neuron %q must define variable %q", d.Name, "r")
		}
	case SpikeType:
		if hasR {
			return Errf(ForbiddenVariable, d.Name, "spiking neuron %q may not define %q; it is synthesized", d.Name, "r")
		}
		d.Variables = append(d.Variables, &Attribute{
			Name: "r", Kind: Variable, Locality: Local,
			InitVal: Init{Literal: "0.0"},
		})
		for _, t := range d.Targets {
			gname := "g_" + t
			if d.Lookup(gname) != nil {
				continue
			}
			d.Variables = append(d.Variables, &Attribute{
				Name: gname, Kind: Variable, Locality: Local,
				InitVal: Init{Literal: "0.0"},
				Eq:      &Equation{RawLHS: gname, Text: "0.0", IsODE: false, Method: "assign", CPP: gname + " = 0.0;"},
			})
		}
	}
	return nil
}

// scanTargets finds every name t referenced as sum(t) across a set of
// variable equations, by raw substring scan (targets must be known
// before the Expression Analyzer runs, since sum(t) substitution and
// target-driven defaults both depend on them).
func scanTargets(vars []*Attribute) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range vars {
		if v.Eq == nil {
			continue
		}
		text := v.Eq.Text
		idx := 0
		for {
			pos := strings.Index(text[idx:], "sum(")
			if pos < 0 {
				break
			}
			start := idx + pos + len("sum(")
			end := strings.IndexByte(text[start:], ')')
			if end < 0 {
				break
			}
			name := strings.TrimSpace(text[start : start+end])
			if name != "" && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
			idx = start + end + 1
		}
	}
	sort.Strings(out)
	return out
}

func methodFlagOf(a *Attribute) string {
	for _, f := range a.Flags {
		switch f {
		case "implicit", "midpoint", "exponential", "exact", "explicit":
			return f
		}
	}
	return ""
}

func coupledCandidates(vars []*Attribute) map[string]bool {
	out := map[string]bool{}
	for _, v := range vars {
		m := methodFlagOf(v)
		if m == "implicit" || m == "midpoint" {
			out[v.Name] = true
		}
	}
	return out
}

func hasFlag(flags []string, name string) bool {
	for _, f := range flags {
		if f == name {
			return true
		}
	}
	return false
}

// resolveCoupledClusters groups variables whose equations deferred to
// the §4.4 solver (CoupledWith non-empty) into connected components and
// replaces each member's CPP with the solved block's snippet.
func resolveCoupledClusters(vars []*Attribute, solver Solver) error {
	byName := map[string]*Attribute{}
	for _, v := range vars {
		byName[v.Name] = v
	}

	visited := map[string]bool{}
	for _, v := range vars {
		if v.Eq == nil || len(v.Eq.CoupledWith) == 0 || visited[v.Name] {
			continue
		}
		cluster := collectCluster(v.Name, byName, visited)
		sort.Strings(cluster)

		sys := CoupledSystem{Names: cluster}
		sys.A = make([][]string, len(cluster))
		sys.B = make([]string, len(cluster))
		for i, name := range cluster {
			eq := byName[name].Eq
			row := make([]string, len(cluster))
			for j, other := range cluster {
				row[j] = eq.CoupledCoeffs[other]
			}
			sys.A[i] = row
			sys.B[i] = eq.ConstB
		}

		cpp, err := solver.Solve(sys)
		if err != nil {
			return err
		}
		for _, name := range cluster {
			byName[name].Eq.CPP = cpp[name]
			byName[name].Eq.Switch = ""
		}
	}
	return nil
}

func collectCluster(start string, byName map[string]*Attribute, visited map[string]bool) []string {
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

// applyBounds renders and appends each variable's min/max clamp after
// its update snippet, per §4.3 step 4 and the §9 post-update convention.
func applyBounds(vars []*Attribute, a Analyzer, table SymbolTable) error {
	for _, v := range vars {
		if v.Eq == nil {
			continue
		}
		if v.Bounds.Min != "" {
			rendered, _, err := a.RenderBound(v.Bounds.Min, table)
			if err != nil {
				return err
			}
			v.Eq.CPP += "\n" + v.Name + " = max(" + v.Name + ", " + rendered + ");"
		}
		if v.Bounds.Max != "" {
			rendered, _, err := a.RenderBound(v.Bounds.Max, table)
			if err != nil {
				return err
			}
			v.Eq.CPP += "\n" + v.Name + " = min(" + v.Name + ", " + rendered + ");"
		}
	}
	return nil
}

// collectGlobalOperations recovers (op, var) pairs from the
// "__global_op_<op>_<var>" dependency markers placeholders.go installs.
func collectGlobalOperations(d *Description) error {
	seen := map[string]bool{}
	for _, v := range d.Variables {
		if v.Eq == nil {
			continue
		}
		for dep := range v.Eq.Dependencies {
			if !strings.HasPrefix(dep, "__global_op_") {
				continue
			}
			rest := strings.TrimPrefix(dep, "__global_op_")
			parts := strings.SplitN(rest, "_", 2)
			if len(parts) != 2 {
				continue
			}
			key := parts[0] + ":" + parts[1]
			if seen[key] {
				continue
			}
			seen[key] = true
			d.GlobalOperations = append(d.GlobalOperations, GlobalOp{Op: parts[0], Var: parts[1]})
		}
	}
	return nil
}

// builderTable is the SymbolTable view the Analyzer consumes while a
// Description is still being built.
type builderTable struct {
	d                 *Description
	coupledCandidates map[string]bool
}

func (t *builderTable) HasAttribute(name string) bool { return t.d.Lookup(name) != nil }

func (t *builderTable) IsTarget(name string) bool {
	for _, x := range t.d.Targets {
		if x == name {
			return true
		}
	}
	return false
}

func (t *builderTable) IsRandomDraw(name string) bool {
	if a := t.d.Lookup(name); a != nil {
		return a.InitVal.Dist != ""
	}
	return false
}

func (t *builderTable) IsFunction(name string) bool {
	for _, f := range t.d.Functions {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (t *builderTable) IsCoupled(name string) bool { return t.coupledCandidates[name] }
