// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrnforge/netgen/internal/desc"
	"github.com/nrnforge/netgen/internal/lex"
	"github.com/nrnforge/netgen/internal/rtype"
)

func TestClassifyParametersLocalityAndInit(t *testing.T) {
	recs, err := lex.Extract("tau = 10.0 : population\nbaseline = 0.0", lex.RequireEquals)
	require.NoError(t, err)

	as, err := Classify(recs, desc.Parameter, desc.Neuron, nil)
	require.NoError(t, err)
	require.Len(t, as, 2)

	require.Equal(t, "tau", as[0].Name)
	require.Equal(t, desc.Global, as[0].Locality)
	require.Equal(t, "10.0", as[0].InitVal.Literal)
	require.Equal(t, rtype.Double, as[0].CType)

	require.Equal(t, "baseline", as[1].Name)
	require.Equal(t, desc.Local, as[1].Locality)
	require.Equal(t, "0.0", as[1].InitVal.Literal)
}

func TestClassifyIntBoolFlags(t *testing.T) {
	recs, err := lex.Extract("n = 3 : int\nflag = true : bool", lex.RequireEquals)
	require.NoError(t, err)
	as, err := Classify(recs, desc.Parameter, desc.Neuron, nil)
	require.NoError(t, err)
	require.Equal(t, rtype.Int, as[0].CType)
	require.Equal(t, rtype.Boolean, as[1].CType)
}

func TestClassifyIncompatibleFlags(t *testing.T) {
	recs, err := lex.Extract("x = 1 : int, bool", lex.RequireEquals)
	require.NoError(t, err)
	_, err = Classify(recs, desc.Parameter, desc.Neuron, nil)
	require.Error(t, err)
	var derr *desc.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, desc.IncompatibleFlags, derr.Kind)
}

func TestClassifyUnknownFlag(t *testing.T) {
	recs, err := lex.Extract("x = 1 : frobnicate", lex.RequireEquals)
	require.NoError(t, err)
	_, err = Classify(recs, desc.Parameter, desc.Neuron, nil)
	require.Error(t, err)
	var derr *desc.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, desc.UnknownFlag, derr.Kind)
}

func TestClassifyDuplicateAttribute(t *testing.T) {
	recs, err := lex.Extract("x = 1\nx = 2", lex.RequireEquals)
	require.NoError(t, err)
	_, err = Classify(recs, desc.Parameter, desc.Neuron, nil)
	require.Error(t, err)
	var derr *desc.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, desc.DuplicateAttribute, derr.Kind)
}

func TestClassifySynapsePostsynapticIsGlobal(t *testing.T) {
	recs, err := lex.Extract("tau = 2000 : postsynaptic", lex.RequireEquals)
	require.NoError(t, err)
	as, err := Classify(recs, desc.Parameter, desc.Synapse, nil)
	require.NoError(t, err)
	require.Equal(t, desc.Global, as[0].Locality)
}

func TestClassifyDistributionInit(t *testing.T) {
	recs, err := lex.Extract("w = Uniform(0.0, 1.0)", lex.RequireEquals)
	require.NoError(t, err)
	as, err := Classify(recs, desc.Parameter, desc.Synapse, nil)
	require.NoError(t, err)
	require.Equal(t, "Uniform", as[0].InitVal.Dist)
}

func TestClassifyVariableEquationStored(t *testing.T) {
	recs, err := lex.Extract("tau * dr/dt + r = baseline : min=0.0", lex.RequireEquals)
	require.NoError(t, err)
	as, err := Classify(recs, desc.Variable, desc.Neuron, nil)
	require.NoError(t, err)
	require.Equal(t, "r", as[0].Name)
	require.NotNil(t, as[0].Eq)
	require.Equal(t, "baseline", as[0].Eq.Text)
	require.Equal(t, "0.0", as[0].Bounds.Min)
}

func TestClassifyExtraLiteralsResolveFlagValues(t *testing.T) {
	recs, err := lex.Extract("v = v_rest : min=V_FLOOR", lex.RequireEquals)
	require.NoError(t, err)
	as, err := Classify(recs, desc.Variable, desc.Neuron, map[string]string{"V_FLOOR": "-80.0"})
	require.NoError(t, err)
	require.Equal(t, "-80.0", as[0].Bounds.Min)
}
