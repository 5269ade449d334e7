// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package desc holds the §3 data model (Attribute, Equation, Description)
// and the §4.5 Description Builder, which turns already-classified
// attributes into a frozen Description, calling the expression analyzer
// and coupled-ODE solver through the Analyzer/Solver interfaces it is
// given (package pipeline wires lex/attr/synexpr/solve to it).
package desc

import "github.com/nrnforge/netgen/internal/rtype"

// Kind distinguishes a parameter (constant across the step) from a
// variable (updated by the step).
type Kind int

const (
	Parameter Kind = iota
	Variable
)

func (k Kind) String() string {
	if k == Parameter {
		return "parameter"
	}
	return "variable"
}

// Locality is whether an Attribute has one value per unit (Local) or one
// value shared by the whole group (Global).
type Locality int

const (
	Local Locality = iota
	Global
)

func (l Locality) String() string {
	if l == Local {
		return "local"
	}
	return "global"
}

// Init is the initial value of an Attribute: either a literal expression
// in the target dialect, or a reference to a named random distribution.
type Init struct {
	Literal  string   // e.g. "0.0", "-65.0", "false"
	Dist     string   // non-empty: name of a declared random_distributions entry
	DistArgs []string // distribution parameters, as given in source text
}

// Bounds is the partial {min, max, init} mapping of §3; each non-empty
// entry is a target-dialect expression, evaluated once per step after the
// update (§9 "Open question: bound expressions as imperative code" fixes
// post-update semantics).
type Bounds struct {
	Min  string
	Max  string
	Init string
}

// Attribute is a named scalar of one Description.
type Attribute struct {
	Name     string
	Kind     Kind
	Locality Locality
	CType    rtype.CType
	InitVal  Init
	Bounds   Bounds
	Flags    []string // raw flag names retained for diagnostics/emission

	Eq *Equation // nil for parameters
}

// Equation is the per-variable analysis result of §4.3.
type Equation struct {
	RawLHS       string            // original left-hand side text, e.g. "tau * dv/dt + v"
	Text         string            // original right-hand side text
	TransformedEq string           // special terms replaced by placeholders
	Untouched    map[string]string // placeholder -> final target-dialect snippet
	Method       string            // "explicit", "implicit", "midpoint", "exponential", "exact"
	IsODE        bool
	Switch       string            // slope snippet, for ODEs rendered as "compute slope, then x += dt*slope"
	CPP          string            // final imperative update snippet
	Dependencies map[string]bool

	CoeffA, ConstB string   // populated for implicit methods: dx/dt = A*x + B
	CoupledWith    []string // non-empty: this variable's update is emitted by the §4.4 solver, not CPP alone

	// CoupledCoeffs holds, for a variable deferred to the §4.4 solver, the
	// linear coefficient of each name in CoupledWith (plus its own name)
	// within its own reduced f(x) = dx/dt expression; ConstB is the
	// remaining name-independent term of that same reduction.
	CoupledCoeffs map[string]string
}

// ResetEntry is one statement of a spike reset block.
type ResetEntry struct {
	Name         string
	Eq           string
	CPP          string
	Constraint   string // "" or "unless_refractory"
	Dependencies map[string]bool
}

// Spike holds the spiking-neuron-only condition and reset block.
type Spike struct {
	SpikeCond             string
	SpikeCondDependencies map[string]bool
	SpikeReset            []ResetEntry
}

// GlobalOp is one (op, var) pair of description.global_operations.
type GlobalOp struct {
	Op  string // "min", "max", "mean", "norm1", "norm2"
	Var string
}

// Function is a user-defined pure scalar function available to equations.
type Function struct {
	Name string
	Args []string
	Body string
}

// ObjectType distinguishes neuron vs synapse descriptions.
type ObjectType int

const (
	Neuron ObjectType = iota
	Synapse
)

func (o ObjectType) String() string {
	if o == Neuron {
		return "neuron"
	}
	return "synapse"
}

// ModelType distinguishes rate-coded vs spiking models.
type ModelType int

const (
	Rate ModelType = iota
	SpikeType
)

func (m ModelType) String() string {
	if m == Rate {
		return "rate"
	}
	return "spike"
}

// Description is the top-level record for one neuron or synapse type,
// built once, mutated only during the build, then frozen.
type Description struct {
	Name       string
	Object     ObjectType
	Type       ModelType

	Parameters []*Attribute
	Variables  []*Attribute

	Functions []Function

	Attributes []string // name partition: all attribute names, declaration order
	LocalNames  []string
	GlobalNames []string

	Targets             []string
	RandomDistributions map[string]RandomDecl
	GlobalOperations    []GlobalOp

	Spike      *Spike // neuron, spiking only
	Refractory string // literal or expression, optional

	StructuralPlasticity bool // pruning/creating clauses present

	frozen bool
}

// RandomDecl is one named random-variate declaration (`xi ~ Normal(0,1)`).
type RandomDecl struct {
	Name string
	Kind string // rdist.Kind.String()
	Args []float64
}

// Freeze marks the description as built; the emitter receives a read-only
// view and callers must not mutate it further.
func (d *Description) Freeze() { d.frozen = true }

// Frozen reports whether Freeze has been called.
func (d *Description) Frozen() bool { return d.frozen }

// Lookup returns the Attribute named n, searching parameters then
// variables, or nil if none matches.
func (d *Description) Lookup(n string) *Attribute {
	for _, a := range d.Parameters {
		if a.Name == n {
			return a
		}
	}
	for _, a := range d.Variables {
		if a.Name == n {
			return a
		}
	}
	return nil
}

// AllAttributes returns parameters followed by variables, in declaration order.
func (d *Description) AllAttributes() []*Attribute {
	out := make([]*Attribute, 0, len(d.Parameters)+len(d.Variables))
	out = append(out, d.Parameters...)
	out = append(out, d.Variables...)
	return out
}
