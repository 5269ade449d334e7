// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractParameters(t *testing.T) {
	block := "tau = 10.0 : population\nbaseline = 0.0"
	recs, err := Extract(block, RequireEquals)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.Equal(t, "tau", recs[0].LHS)
	require.Equal(t, "10.0", recs[0].RHS)
	require.Equal(t, []Flag{{Name: "population"}}, recs[0].Flags)

	require.Equal(t, "baseline", recs[1].LHS)
	require.Equal(t, "0.0", recs[1].RHS)
	require.Empty(t, recs[1].Flags)
}

func TestExtractEquationWithBounds(t *testing.T) {
	block := "tau * dr/dt + r = baseline : min=0.0"
	recs, err := Extract(block, RequireEquals)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "tau * dr/dt + r", recs[0].LHS)
	require.Equal(t, "baseline", recs[0].RHS)
	require.Equal(t, "min", recs[0].Flags[0].Name)
	require.Equal(t, "0.0", recs[0].Flags[0].Value)
	require.True(t, recs[0].Flags[0].HasValue)
}

func TestExtractCallFlagValueNotSplit(t *testing.T) {
	block := "v = v_rest : max=(v_thresh), min=(v_reset)"
	recs, err := Extract(block, RequireEquals)
	require.NoError(t, err)
	require.Len(t, recs[0].Flags, 2)
	require.Equal(t, "(v_thresh)", recs[0].Flags[0].Value)
	require.Equal(t, "(v_reset)", recs[0].Flags[1].Value)
}

func TestExtractSemicolonSeparated(t *testing.T) {
	block := "a = 1; b = 2"
	recs, err := Extract(block, RequireEquals)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestExtractBlankAndComments(t *testing.T) {
	block := "\n# a comment\ntau = 10.0\n\n// another\nbaseline = 0.0\n"
	recs, err := Extract(block, RequireEquals)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestExtractMalformedUnbalanced(t *testing.T) {
	block := "tau = sum(exc"
	_, err := Extract(block, RequireEquals)
	require.Error(t, err)
	require.True(t, IsMalformed(err))
}

func TestExtractMalformedNoEquals(t *testing.T) {
	_, err := Extract("v_thresh", RequireEquals)
	require.Error(t, err)
}

func TestExtractAllowBare(t *testing.T) {
	recs, err := Extract("v > v_thresh", AllowBare)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "v > v_thresh", recs[0].LHS)
	require.Empty(t, recs[0].RHS)
}

func TestExtractResetWithConstraint(t *testing.T) {
	recs, err := Extract("v = v_reset : unless_refractory", RequireEquals)
	require.NoError(t, err)
	require.Equal(t, "unless_refractory", recs[0].Flags[0].Name)
	require.False(t, recs[0].Flags[0].HasValue)
}

func TestExtractODELHS(t *testing.T) {
	recs, err := Extract("dv/dt = a - b", RequireEquals)
	require.NoError(t, err)
	require.Equal(t, "dv/dt", recs[0].LHS)
	require.Equal(t, "a - b", recs[0].RHS)
}

func TestExtractComparisonNotSplitAsEquals(t *testing.T) {
	// not a statement form used in practice, but verifies <=/>=/== are not
	// mistaken for the assignment '='.
	recs, err := Extract("w = pre.r >= 0.0", RequireEquals)
	require.NoError(t, err)
	require.Equal(t, "w", recs[0].LHS)
	require.Equal(t, "pre.r >= 0.0", recs[0].RHS)
}
