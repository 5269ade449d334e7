// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nrnforge/netgen/internal/desc"
	"github.com/nrnforge/netgen/internal/pipeline"
	"github.com/nrnforge/netgen/internal/profile"
	"github.com/nrnforge/netgen/internal/registry"
)

func buildLeakyRate(t *testing.T) *desc.Description {
	d, err := pipeline.Build(pipeline.Declaration{
		Name:      "LeakyRate",
		Object:    desc.Neuron,
		Type:      desc.Rate,
		ParamText: "tau = 10.0 : population\nbaseline = 0.0",
		VarText:   "tau * dr/dt + r = baseline : min=0.0",
	})
	require.NoError(t, err)
	return d
}

func TestEmitRateNeuronArtifacts(t *testing.T) {
	d := buildLeakyRate(t)
	reg := registry.New()
	mixin := profile.NewMixin(false)

	art, err := Emit(d, SingleThreaded, reg, mixin)
	require.NoError(t, err)
	require.Equal(t, "Population0", art.ArtifactName)
	require.Contains(t, art.Header, "func GetSingleR(i int) double")
	require.Contains(t, art.Header, "func GetTau() double")
	require.Contains(t, art.Header, "func StartRecordR()")
	require.Contains(t, art.Impl, "r[i] += dt *")
	require.Contains(t, art.Impl, "r[i] = max(r[i], 0.0)")
	require.NotContains(t, art.Impl, "tau[i]")
	require.Contains(t, art.Binding, "func (g *Population0Impl) GetTau() double")
	require.Contains(t, art.Manifest, "artifact: Population0")
}

func TestEmitAssignsSequentialRegistryNames(t *testing.T) {
	reg := registry.New()
	mixin := profile.NewMixin(false)

	d1 := buildLeakyRate(t)
	art1, err := Emit(d1, SingleThreaded, reg, mixin)
	require.NoError(t, err)
	require.Equal(t, "Population0", art1.ArtifactName)

	d2 := buildLeakyRate(t)
	art2, err := Emit(d2, SingleThreaded, reg, mixin)
	require.NoError(t, err)
	require.Equal(t, "Population1", art2.ArtifactName)
}

func TestEmitIsIdempotent(t *testing.T) {
	d := buildLeakyRate(t)
	art1, err := Emit(d, SingleThreaded, registry.New(), profile.NewMixin(false))
	require.NoError(t, err)
	art2, err := Emit(d, SingleThreaded, registry.New(), profile.NewMixin(false))
	require.NoError(t, err)
	require.Equal(t, art1.Header, art2.Header)
	require.Equal(t, art1.Impl, art2.Impl)
	require.Equal(t, art1.Binding, art2.Binding)
	require.Equal(t, art1.Manifest, art2.Manifest)
}

func buildOjaSynapse(t *testing.T) *desc.Description {
	d, err := pipeline.Build(pipeline.Declaration{
		Name:      "Oja",
		Object:    desc.Synapse,
		Type:      desc.Rate,
		ParamText: "tau = 2000 : postsynaptic\nalpha = 8.0 : postsynaptic",
		VarText:   "tau * dw/dt = pre.r * post.r - alpha * post.r^2 * w",
	})
	require.NoError(t, err)
	return d
}

func TestEmitSynapseArtifacts(t *testing.T) {
	d := buildOjaSynapse(t)
	reg := registry.New()
	mixin := profile.NewMixin(false)

	art, err := Emit(d, SingleThreaded, reg, mixin)
	require.NoError(t, err)
	require.Equal(t, "Projection0", art.ArtifactName)

	require.Contains(t, art.Impl, "type Projection0Impl struct")
	require.Contains(t, art.Impl, "func NewProjection0(preRanks [][]int) *Projection0Impl")
	require.Contains(t, art.Impl, "pre_idx := g._preRankFlat[i]")
	require.NotContains(t, art.Impl, "%(")

	require.Contains(t, art.Binding, "func (g *Projection0Impl) GetDendriteW(d int) []double")
	require.Contains(t, art.Binding, "func (g *Projection0Impl) SetDendriteW(d int, v []double)")
	require.Contains(t, art.Binding, "func (g *Projection0Impl) GetSynapseW(d, j int) double")
	require.Contains(t, art.Binding, "func (g *Projection0Impl) SetSynapseW(d, j int, v double)")
	require.Contains(t, art.Binding, "func (g *Projection0Impl) PreRank(d int) []int")
	require.Contains(t, art.Binding, "func (g *Projection0Impl) NbSynapses(d int) int")
	require.Contains(t, art.Binding, "func (g *Projection0Impl) AddSynapse(post, pre int, w float64, delaySteps int, extras ...float64) error")
	require.Contains(t, art.Binding, "func (g *Projection0Impl) RemoveSynapse(post, pre int) error")
	require.NotContains(t, art.Binding, "fmt.Errorf")
}

func TestEmitSynapseStructuralPlasticityDisabledByDefault(t *testing.T) {
	d := buildOjaSynapse(t)
	art, err := Emit(d, SingleThreaded, registry.New(), profile.NewMixin(false))
	require.NoError(t, err)
	require.Contains(t, art.Impl, "g._structuralPlasticityEnabled = false")
	require.Contains(t, art.Binding, `errorf("structural plasticity disabled for Oja")`)
}

func TestEmitSynapseStructuralPlasticityEnabled(t *testing.T) {
	d, err := pipeline.Build(pipeline.Declaration{
		Name:                        "PlasticSynapse",
		Object:                      desc.Synapse,
		Type:                        desc.Rate,
		ParamText:                   "eta = 0.01",
		VarText:                     "w = eta : pruning",
		StructuralPlasticityEnabled: true,
	})
	require.NoError(t, err)
	require.True(t, d.StructuralPlasticity)

	art, err := Emit(d, SingleThreaded, registry.New(), profile.NewMixin(false))
	require.NoError(t, err)
	require.Contains(t, art.Impl, "g._structuralPlasticityEnabled = true")
	require.Contains(t, art.Binding, "func (g *Projection0Impl) AddSynapse")
}

func TestEmitSpikingNeuronResetAndRefractory(t *testing.T) {
	d, err := pipeline.Build(pipeline.Declaration{
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

	art, err := Emit(d, SingleThreaded, registry.New(), profile.NewMixin(false))
	require.NoError(t, err)
	require.Contains(t, art.Impl, "func (g *Population0Impl) ApplyReset")
	require.Contains(t, art.Impl, "g._refractory_count[i] == 0")
	require.Contains(t, art.Impl, "func (g *Population0Impl) DecrementRefractory")
	require.Contains(t, art.Binding, "func (g *Population0Impl) EvalSpikeCond(i int) bool")
	require.NotContains(t, art.Impl, "%(")
}

func TestEmitWithProfilingMixinWrapsSteps(t *testing.T) {
	d := buildLeakyRate(t)
	mixin := profile.NewMixin(true)
	art, err := Emit(d, SingleThreaded, registry.New(), mixin)
	require.NoError(t, err)
	require.Contains(t, art.Impl, "__profile_regions__")
	require.Contains(t, art.Manifest, "profile_regions:")
}

func TestEmitRejectsUnfrozenDescription(t *testing.T) {
	d := &desc.Description{Name: "NotFrozen"}
	_, err := Emit(d, SingleThreaded, registry.New(), profile.NewMixin(false))
	require.Error(t, err)
	de, ok := err.(*desc.Error)
	require.True(t, ok)
	require.Equal(t, desc.EmitterBug, de.Kind)
}

func TestOrderLocalityStepDetectsCycle(t *testing.T) {
	a := &desc.Attribute{Name: "a", Locality: desc.Local, Eq: &desc.Equation{Dependencies: map[string]bool{"b": true}}}
	b := &desc.Attribute{Name: "b", Locality: desc.Local, Eq: &desc.Equation{Dependencies: map[string]bool{"a": true}}}
	_, err := orderLocalityStep([]*desc.Attribute{a, b})
	require.Error(t, err)
	de, ok := err.(*desc.Error)
	require.True(t, ok)
	require.Equal(t, desc.DependencyCycle, de.Kind)
}

func TestIndexLocalNamesSkipsAlreadyIndexedAndDotted(t *testing.T) {
	names := map[string]bool{"v": true}
	out := indexLocalNames("v[i] = pre.v + v", names)
	require.Equal(t, "v[i] = pre.v + v[i]", out)
}

func TestExpandPlaceholdersBindsAllTags(t *testing.T) {
	out := expandPlaceholders("_sum_exc%(local_index)s + _mean_v%(global_index)s")
	require.Equal(t, "_sum_exc[i] + _mean_v", out)
	require.NoError(t, checkNoPlaceholderLeak(out))
}
