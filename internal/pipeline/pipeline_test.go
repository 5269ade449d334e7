// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrnforge/netgen/internal/desc"
)

// TestRateNeuronWithLeak is scenario S1.
func TestRateNeuronWithLeak(t *testing.T) {
	d, err := Build(Declaration{
		Name:      "LeakyRate",
		Object:    desc.Neuron,
		Type:      desc.Rate,
		ParamText: "tau = 10.0 : population\nbaseline = 0.0",
		VarText:   "tau * dr/dt + r = baseline : min=0.0",
	})
	require.NoError(t, err)

	tau := d.Lookup("tau")
	require.NotNil(t, tau)
	require.Equal(t, desc.Global, tau.Locality)
	require.Equal(t, "10.0", tau.InitVal.Literal)

	baseline := d.Lookup("baseline")
	require.NotNil(t, baseline)
	require.Equal(t, desc.Local, baseline.Locality)
	require.Equal(t, "0.0", baseline.InitVal.Literal)

	r := d.Lookup("r")
	require.NotNil(t, r)
	require.True(t, r.Eq.IsODE)
	require.Equal(t, "explicit", r.Eq.Method)
	require.Contains(t, r.Eq.CPP, "r += dt *")
	require.Contains(t, r.Eq.CPP, "r = max(r, 0.0);")
	require.Empty(t, d.Targets)
	require.Empty(t, d.RandomDistributions)
}

// TestOjaSynapse is scenario S2.
func TestOjaSynapse(t *testing.T) {
	d, err := Build(Declaration{
		Name:      "Oja",
		Object:    desc.Synapse,
		Type:      desc.Rate,
		ParamText: "tau = 2000 : postsynaptic\nalpha = 8.0 : postsynaptic",
		VarText:   "tau * dw/dt = pre.r * post.r - alpha * post.r^2 * w",
	})
	require.NoError(t, err)

	require.Equal(t, desc.Global, d.Lookup("tau").Locality)
	require.Equal(t, desc.Global, d.Lookup("alpha").Locality)

	w := d.Lookup("w")
	require.NotNil(t, w)
	require.Equal(t, desc.Local, w.Locality)
	require.True(t, w.Eq.IsODE)
	for _, dep := range []string{"pre.r", "post.r", "alpha"} {
		require.True(t, w.Eq.Dependencies[dep], "missing dependency %s", dep)
	}
	require.False(t, w.Eq.Dependencies["w"])
}

// TestSpikingLIFWithRefractory is scenario S3.
func TestSpikingLIFWithRefractory(t *testing.T) {
	d, err := Build(Declaration{
		Name:       "LIF",
		Object:     desc.Neuron,
		Type:       desc.SpikeType,
		ParamText:  "tau=20\nv_rest=-65\nv_thresh=-50\nv_reset=-70",
		VarText:    "tau*dv/dt + v = v_rest + sum(exc) - sum(inh)",
		SpikeCond:  "v > v_thresh",
		ResetText:  "v = v_reset : unless_refractory",
		Refractory: "5.0",
	})
	require.NoError(t, err)

	require.NotNil(t, d.Lookup("g_exc"))
	require.Equal(t, "0.0", d.Lookup("g_exc").InitVal.Literal)
	require.NotNil(t, d.Lookup("g_inh"))
	require.NotNil(t, d.Lookup("r"))

	require.NotNil(t, d.Spike)
	require.True(t, d.Spike.SpikeCondDependencies["v"])
	require.True(t, d.Spike.SpikeCondDependencies["v_thresh"])
	require.Len(t, d.Spike.SpikeReset, 1)
	require.Equal(t, "unless_refractory", d.Spike.SpikeReset[0].Constraint)
	require.Equal(t, "5.0", d.Refractory)
	require.ElementsMatch(t, []string{"exc", "inh"}, d.Targets)
}

// TestCoupledImplicitPair is scenario S4.
func TestCoupledImplicitPair(t *testing.T) {
	d, err := Build(Declaration{
		Name:      "CoupledPair",
		Object:    desc.Neuron,
		Type:      desc.Rate,
		ParamText: "a = 0.1\nb = 0.2\nc = 0.3\ne = 0.4",
		VarText: "du/dt = -a * u + b * w : implicit\n" +
			"dw/dt = c * u - e * w : implicit\n" +
			"r = u + w",
	})
	require.NoError(t, err)

	u := d.Lookup("u")
	w := d.Lookup("w")
	require.NotNil(t, u)
	require.NotNil(t, w)
	require.Empty(t, u.Eq.Switch)
	require.Empty(t, w.Eq.Switch)
	require.Contains(t, u.Eq.CPP, "__coupled_det__")
	require.Contains(t, u.Eq.CPP, "double __coupled_det__")
	require.Contains(t, w.Eq.CPP, "/ __coupled_det__;")
	require.Contains(t, u.Eq.CPP, "u = ")
	require.Contains(t, w.Eq.CPP, "w = ")
}

// TestSumExcInRateModel is scenario S5.
func TestSumExcInRateModel(t *testing.T) {
	d, err := Build(Declaration{
		Name:      "SummingRate",
		Object:    desc.Neuron,
		Type:      desc.Rate,
		ParamText: "tau = 10.0 : population",
		VarText:   "tau*dr/dt + r = sum(exc)",
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"exc"}, d.Targets)
	r := d.Lookup("r")
	require.NotContains(t, r.Eq.CPP, "sum(")
	require.Contains(t, r.Eq.CPP, "_sum_exc")
}

// TestForbiddenSynapseOp is scenario S6.
func TestForbiddenSynapseOp(t *testing.T) {
	_, err := Build(Declaration{
		Name:             "MeanSynapse",
		Object:           desc.Synapse,
		Type:             desc.SpikeType,
		ParamText:        "w = 1.0",
		VarText:          "",
		SynapseOperation: "mean",
	})
	require.Error(t, err)
	de, ok := err.(*desc.Error)
	require.True(t, ok)
	require.Equal(t, desc.IllegalOperation, de.Kind)
}

func TestStructuralPlasticityGate(t *testing.T) {
	_, err := Build(Declaration{
		Name:      "PlasticSynapse",
		Object:    desc.Synapse,
		Type:      desc.Rate,
		ParamText: "eta = 0.01",
		VarText:   "w = eta : pruning",
	})
	require.Error(t, err)
	de, ok := err.(*desc.Error)
	require.True(t, ok)
	require.Equal(t, desc.StructuralPlasticityDisabled, de.Kind)

	d, err := Build(Declaration{
		Name:                        "PlasticSynapse",
		Object:                      desc.Synapse,
		Type:                        desc.Rate,
		ParamText:                   "eta = 0.01",
		VarText:                     "w = eta : pruning",
		StructuralPlasticityEnabled: true,
	})
	require.NoError(t, err)
	require.True(t, d.StructuralPlasticity)
}

func TestSpikeNeuronForbidsUserR(t *testing.T) {
	_, err := Build(Declaration{
		Name:      "BadSpike",
		Object:    desc.Neuron,
		Type:      desc.SpikeType,
		ParamText: "tau=20",
		VarText:   "r = 1.0",
		SpikeCond: "r > 1.0",
		ResetText: "r = 0.0",
	})
	require.Error(t, err)
	de, ok := err.(*desc.Error)
	require.True(t, ok)
	require.Equal(t, desc.ForbiddenVariable, de.Kind)
}

func TestRateNeuronRequiresR(t *testing.T) {
	_, err := Build(Declaration{
		Name:      "NoR",
		Object:    desc.Neuron,
		Type:      desc.Rate,
		ParamText: "tau=10",
		VarText:   "tau*dx/dt + x = 1.0",
	})
	require.Error(t, err)
	de, ok := err.(*desc.Error)
	require.True(t, ok)
	require.Equal(t, desc.MissingRequiredVariable, de.Kind)
}
