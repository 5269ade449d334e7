// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synexpr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrnforge/netgen/internal/desc"
)

// fakeTable is a minimal SymbolTable for unit-testing the analyzer in
// isolation from the Description Builder.
type fakeTable struct {
	attrs    map[string]bool
	targets  map[string]bool
	randoms  map[string]bool
	funcs    map[string]bool
	coupled  map[string]bool
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		attrs:   map[string]bool{},
		targets: map[string]bool{},
		randoms: map[string]bool{},
		funcs:   map[string]bool{},
		coupled: map[string]bool{},
	}
}

func (t *fakeTable) HasAttribute(n string) bool { return t.attrs[n] }
func (t *fakeTable) IsTarget(n string) bool      { return t.targets[n] }
func (t *fakeTable) IsRandomDraw(n string) bool  { return t.randoms[n] }
func (t *fakeTable) IsFunction(n string) bool    { return t.funcs[n] }
func (t *fakeTable) IsCoupled(n string) bool     { return t.coupled[n] }

func TestAnalyzeExplicitLeaky(t *testing.T) {
	table := newFakeTable()
	table.attrs["tau"] = true
	table.attrs["baseline"] = true

	eq := &desc.Equation{RawLHS: "tau * dr/dt + r", Text: "baseline"}
	err := Analyze(eq, "r", "", table)
	require.NoError(t, err)
	require.True(t, eq.IsODE)
	require.Equal(t, "explicit", eq.Method)
	require.Equal(t, "r += dt * ((baseline - r) / tau);", eq.CPP)
	require.True(t, eq.Dependencies["tau"])
	require.True(t, eq.Dependencies["baseline"])
}

func TestAnalyzeImplicitSingleVariable(t *testing.T) {
	table := newFakeTable()
	table.attrs["tau"] = true

	eq := &desc.Equation{RawLHS: "tau * dv/dt + v", Text: "0.0"}
	err := Analyze(eq, "v", "implicit", table)
	require.NoError(t, err)
	require.Equal(t, "implicit", eq.Method)
	require.Contains(t, eq.CPP, "v = (v + dt *")
	require.NotEmpty(t, eq.CoeffA)
}

func TestAnalyzeAssignment(t *testing.T) {
	table := newFakeTable()
	table.attrs["g_exc"] = true
	table.attrs["g_inh"] = true

	eq := &desc.Equation{RawLHS: "i", Text: "g_exc - g_inh"}
	err := Analyze(eq, "i", "", table)
	require.NoError(t, err)
	require.False(t, eq.IsODE)
	require.Equal(t, "assign", eq.Method)
	require.Equal(t, "i = g_exc - g_inh;", eq.CPP)
}

func TestAnalyzeSumTarget(t *testing.T) {
	table := newFakeTable()
	table.attrs["tau"] = true
	table.targets["exc"] = true

	eq := &desc.Equation{RawLHS: "tau * dr/dt + r", Text: "sum(exc)"}
	err := Analyze(eq, "r", "", table)
	require.NoError(t, err)
	require.True(t, eq.Dependencies["exc"])
	require.Contains(t, eq.CPP, "_sum_exc%(local_index)s")
	require.NotContains(t, eq.CPP, "sum(")
}

func TestAnalyzePowerOperator(t *testing.T) {
	table := newFakeTable()
	table.attrs["w"] = true
	eq := &desc.Equation{RawLHS: "x", Text: "w^2"}
	err := Analyze(eq, "x", "", table)
	require.NoError(t, err)
	require.Equal(t, "x = pow(w, 2);", eq.CPP)
}

func TestAnalyzeConditional(t *testing.T) {
	table := newFakeTable()
	table.attrs["v"] = true
	table.attrs["v_thresh"] = true

	eq := &desc.Equation{RawLHS: "x", Text: "if v > v_thresh then 1.0 else 0.0"}
	err := Analyze(eq, "x", "", table)
	require.NoError(t, err)
	require.True(t, eq.Dependencies["v"])
	require.True(t, eq.Dependencies["v_thresh"])
	require.Equal(t, "x = (v > v_thresh) ? 1.0 : 0.0;", eq.CPP)
}

func TestAnalyzeSelfReferenceNotADependency(t *testing.T) {
	table := newFakeTable()
	eq := &desc.Equation{RawLHS: "dx/dt", Text: "-x"}
	err := Analyze(eq, "x", "", table)
	require.NoError(t, err)
	require.False(t, eq.Dependencies["x"])
}

func TestAnalyzeMalformedLHS(t *testing.T) {
	table := newFakeTable()
	eq := &desc.Equation{RawLHS: "tau * /dt", Text: "0.0"}
	err := Analyze(eq, "x", "", table)
	require.Error(t, err)
	de, ok := err.(*desc.Error)
	require.True(t, ok)
	require.Equal(t, desc.MalformedDeclaration, de.Kind)
}

func TestAnalyzeCoupledDefersCoeffs(t *testing.T) {
	table := newFakeTable()
	table.attrs["a"] = true
	table.attrs["b"] = true
	table.coupled["u"] = true
	table.coupled["w"] = true

	eq := &desc.Equation{RawLHS: "du/dt", Text: "-a * u + b * w"}
	err := Analyze(eq, "u", "implicit", table)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"w"}, eq.CoupledWith)
	require.Contains(t, eq.CoupledCoeffs["u"], "a")
	require.Contains(t, eq.CoupledCoeffs["w"], "b")
	require.Empty(t, eq.CPP) // left to the §4.4 solver, not discretize
}

func TestAnalyzeNonLinearImplicitRejected(t *testing.T) {
	table := newFakeTable()
	table.attrs["k"] = true
	eq := &desc.Equation{RawLHS: "dv/dt", Text: "k * v * v"}
	err := Analyze(eq, "v", "implicit", table)
	require.Error(t, err)
	de, ok := err.(*desc.Error)
	require.True(t, ok)
	require.Equal(t, desc.NonLinearImplicit, de.Kind)
}

func TestAnalyzeExponentialRequiresLeakyForm(t *testing.T) {
	table := newFakeTable()
	eq := &desc.Equation{RawLHS: "dv/dt", Text: "1.0"}
	err := Analyze(eq, "v", "exponential", table)
	require.Error(t, err)
	de, ok := err.(*desc.Error)
	require.True(t, ok)
	require.Equal(t, desc.UnsupportedMethod, de.Kind)
}

// TestExactMethodConvergesWithinTimeConstant is Property 3 (ODE
// round-trip): for tau*dx/dt + x = c with c, tau held constant, the
// *exact* method's emitted update brings x toward c with time constant
// tau to within floating-point tolerance over 1000 steps at dt <=
// tau/10. The generated CPP snippet is target-dialect text, so this
// simulates the same closed form discretizeExponential emits
// (x = c - (c-x)*exp(-dt/tau)) rather than executing the string.
func TestExactMethodConvergesWithinTimeConstant(t *testing.T) {
	table := newFakeTable()
	table.attrs["tau"] = true
	table.attrs["c"] = true

	eq := &desc.Equation{RawLHS: "tau * dx/dt + x", Text: "c"}
	err := Analyze(eq, "x", "exact", table)
	require.NoError(t, err)
	require.Equal(t, "exact", eq.Method)
	require.Contains(t, eq.CPP, "exp(-dt /")

	const tau = 10.0
	const c = 3.5
	const dt = tau / 10
	x := 0.0
	for i := 0; i < 1000; i++ {
		x = c - (c-x)*math.Exp(-dt/tau)
	}
	require.InDelta(t, c, x, 1e-9)
}

func TestRenderBoundRendersExpression(t *testing.T) {
	table := newFakeTable()
	table.attrs["v_rest"] = true
	rendered, deps, err := RenderBound("v_rest", table)
	require.NoError(t, err)
	require.Equal(t, "v_rest", rendered)
	require.True(t, deps["v_rest"])
}

func TestRenderBoundMalformed(t *testing.T) {
	table := newFakeTable()
	_, _, err := RenderBound("(", table)
	require.Error(t, err)
	de, ok := err.(*desc.Error)
	require.True(t, ok)
	require.Equal(t, desc.MalformedDeclaration, de.Kind)
}
