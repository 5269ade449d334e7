// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synexpr

import (
	"go/parser"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildFBareForm(t *testing.T) {
	rhs, err := parser.ParseExpr("-a * u + b * w")
	require.NoError(t, err)
	f, err := BuildF(odeForm{isODE: true, name: "u", tau: "1"}, rhs, "u")
	require.NoError(t, err)
	require.Equal(t, "-a * u + b * w", render(f, nil))
}

func TestBuildFLeakyFormDistributesTau(t *testing.T) {
	rhs, err := parser.ParseExpr("0.0")
	require.NoError(t, err)
	f, err := BuildF(odeForm{isODE: true, name: "v", tau: "tau", leak: true}, rhs, "v")
	require.NoError(t, err)

	coeffA, constB, err := linearize(f, "v", nil)
	require.NoError(t, err)
	require.Equal(t, "- ((1) / (tau))", coeffA)
	require.Equal(t, "0.0 / tau", constB)
}

func TestLinearizeSystemTauScaledCoupledPair(t *testing.T) {
	rhs, err := parser.ParseExpr("-a * u + b * w")
	require.NoError(t, err)
	f, err := BuildF(odeForm{isODE: true, name: "u", tau: "tau", leak: true}, rhs, "u")
	require.NoError(t, err)

	coeffs, constText, err := LinearizeSystem(f, []string{"u", "w"})
	require.NoError(t, err)
	require.Equal(t, "0.0", constText)
	require.Contains(t, coeffs["u"], "a")
	require.Contains(t, coeffs["u"], "tau")
	require.Contains(t, coeffs["w"], "b")
	require.Contains(t, coeffs["w"], "tau")
}

func TestLinearizeSystemBarePair(t *testing.T) {
	rhsU, err := parser.ParseExpr("-a * u + b * w")
	require.NoError(t, err)
	fU, err := BuildF(odeForm{isODE: true, name: "u", tau: "1"}, rhsU, "u")
	require.NoError(t, err)
	coeffs, constText, err := LinearizeSystem(fU, []string{"u", "w"})
	require.NoError(t, err)
	require.Equal(t, "0.0", constText)
	require.Equal(t, "(-a)", coeffs["u"])
	require.Equal(t, "(b)", coeffs["w"])
}

func TestLinearizeSystemRejectsMultipleNamesInOneTerm(t *testing.T) {
	rhs, err := parser.ParseExpr("u * w")
	require.NoError(t, err)
	_, _, err = LinearizeSystem(rhs, []string{"u", "w"})
	require.Error(t, err)
	_, ok := err.(*NonLinearTerm)
	require.True(t, ok)
}

func TestLinearizeSystemRejectsNonlinearTerm(t *testing.T) {
	rhs, err := parser.ParseExpr("u * u")
	require.NoError(t, err)
	_, _, err = LinearizeSystem(rhs, []string{"u"})
	require.Error(t, err)
	_, ok := err.(*NonLinearTerm)
	require.True(t, ok)
}
