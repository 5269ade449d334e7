// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/iancoleman/strcase"

	"github.com/nrnforge/netgen/internal/desc"
	"github.com/nrnforge/netgen/internal/profile"
)

type implData struct {
	ArtifactName string
	Name         string
	Backend      string
	StructFields string
	CtorParams   string
	Constructor  string
	LocalStep    string
	GlobalStep   string
	RecordRoutine string
	ResetRoutine  string
	RefractoryRoutine string
	HasSpike     bool
}

const implTmplText = `// {{.ArtifactName}}Impl is the generated implementation unit for {{.Name}}
// ({{.Backend}} backend).
package generated

type {{.ArtifactName}}Impl struct {
{{.StructFields}}
}

func New{{.ArtifactName}}({{.CtorParams}}) *{{.ArtifactName}}Impl {
{{.Constructor}}
}

func (g *{{.ArtifactName}}Impl) LocalMetaStep(dt float64) {
{{.LocalStep}}
}

func (g *{{.ArtifactName}}Impl) GlobalMetaStep(dt float64) {
{{.GlobalStep}}
}

func (g *{{.ArtifactName}}Impl) Record() {
{{.RecordRoutine}}
}
{{if .HasSpike}}
func (g *{{.ArtifactName}}Impl) ApplyReset(fired []bool) {
{{.ResetRoutine}}
}

func (g *{{.ArtifactName}}Impl) DecrementRefractory() {
{{.RefractoryRoutine}}
}
{{end}}`

var implTmpl = template.Must(template.New("impl").Parse(implTmplText))

// buildImpl renders the §4.6 implementation unit: constructor, local/
// global meta-steps (in dependency order, indexed per §4.6's indexing
// convention), record routine, and (spiking models only) reset and
// refractory routines.
func buildImpl(artifactName string, d *desc.Description, backend Backend, mixin *profile.Mixin) (string, error) {
	localVars, globalVars, err := orderedSteps(d)
	if err != nil {
		return "", err
	}

	localNames := map[string]bool{}
	for _, a := range d.AllAttributes() {
		if a.Locality == desc.Local {
			localNames[a.Name] = true
		}
	}

	localBody, err := renderStepBody(localVars, localNames, true, d.Object == desc.Synapse)
	if err != nil {
		return "", err
	}
	globalBody, err := renderStepBody(globalVars, localNames, false, false)
	if err != nil {
		return "", err
	}
	globalBody = prependGlobalOps(d, globalBody)

	data := implData{
		ArtifactName: artifactName,
		Name:         d.Name,
		Backend:      backend.String(),
		StructFields: buildStructFields(d),
		CtorParams:   ctorParams(d),
		Constructor:  buildConstructor(artifactName, d),
		LocalStep:    mixin.Wrap(profile.RegionName(artifactName, "local_step"), localBody),
		GlobalStep:   mixin.Wrap(profile.RegionName(artifactName, "global_step"), globalBody),
		RecordRoutine: buildRecordRoutine(d),
		HasSpike:     d.Spike != nil,
	}
	if d.Spike != nil {
		data.ResetRoutine = buildResetRoutine(d, localNames)
		data.RefractoryRoutine = buildRefractoryRoutine(d)
	}

	var b strings.Builder
	if err := implTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// orderedSteps partitions d.Variables by locality and topologically
// orders each partition, surfacing DependencyCycle from orderLocalityStep
// directly.
func orderedSteps(d *desc.Description) (local, global []*desc.Attribute, err error) {
	var localRaw, globalRaw []*desc.Attribute
	for _, v := range d.Variables {
		if v.Locality == desc.Local {
			localRaw = append(localRaw, v)
		} else {
			globalRaw = append(globalRaw, v)
		}
	}
	local, err = orderLocalityStep(localRaw)
	if err != nil {
		return nil, nil, err
	}
	global, err = orderLocalityStep(globalRaw)
	if err != nil {
		return nil, nil, err
	}
	return local, global, nil
}

// renderStepBody renders one meta-step's body: each variable's update
// snippet, placeholders expanded, local names indexed when indexed is
// true (the local meta-step addresses x as x[i]; the global meta-step
// addresses a global x bare, per §4.6's indexing convention).
func renderStepBody(vars []*desc.Attribute, localNames map[string]bool, indexed, isSynapse bool) (string, error) {
	var b strings.Builder
	for _, v := range vars {
		if v.Eq == nil || v.Eq.CPP == "" {
			continue
		}
		text := expandPlaceholders(v.Eq.CPP)
		if indexed {
			text = indexLocalNames(text, localNames)
		}
		if err := checkNoPlaceholderLeak(text); err != nil {
			return "", err
		}
		b.WriteString(wrapLoop(text, indexed, isSynapse))
	}
	return b.String(), nil
}

// wrapLoop wraps a variable's update snippet in a "for i" loop over the
// group when it is indexed (one local attribute per unit); a global
// variable's snippet executes once. A projection's local step additionally
// binds pre_idx, the flat index into the pre-synaptic population's arrays
// that %(pre_index)s placeholders were expanded against.
func wrapLoop(text string, indexed, isSynapse bool) string {
	if !indexed {
		return text + "\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "for i := 0; i < g._groupSize; i++ {\n")
	if isSynapse {
		b.WriteString("\tpre_idx := g._preRankFlat[i]\n")
	}
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, "\t%s\n", line)
	}
	b.WriteString("}\n")
	return b.String()
}

// prependGlobalOps declares one reduction variable per §4.4/§4.6 global
// operation ahead of the global meta-step body, matching the bare name
// (`_mean_v`, with no index) that substituteSpecialTerms already rebound
// into any equation referencing it.
func prependGlobalOps(d *desc.Description, body string) string {
	if len(d.GlobalOperations) == 0 {
		return body
	}
	ops := append([]desc.GlobalOp(nil), d.GlobalOperations...)
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Op != ops[j].Op {
			return ops[i].Op < ops[j].Op
		}
		return ops[i].Var < ops[j].Var
	})
	var b strings.Builder
	for _, op := range ops {
		fmt.Fprintf(&b, "_%s_%s := reduce_%s(%s[:])\n", op.Op, op.Var, op.Op, op.Var)
	}
	b.WriteString(body)
	return b.String()
}

// ctorParams is the constructor's parameter list: a neuron group is sized
// by a plain unit count, but a projection's synapse count is derived from
// its connectivity (the per-dendrite pre-rank lists), so it takes that
// topology directly instead of a bare size.
func ctorParams(d *desc.Description) string {
	if d.Object == desc.Synapse {
		return "preRanks [][]int"
	}
	return "groupSize int"
}

// buildStructFields declares the backing storage for every attribute, the
// recording bookkeeping for every variable, the refractory counter for a
// spiking model, and (for a projection) the dendrite topology the
// per-synapse accessors index into.
func buildStructFields(d *desc.Description) string {
	var b strings.Builder
	for _, a := range d.AllAttributes() {
		camel := strcase.ToCamel(a.Name)
		if a.Locality == desc.Local {
			fmt.Fprintf(&b, "\t%s []%s\n", camel, a.CType.String())
		} else {
			fmt.Fprintf(&b, "\t%s %s\n", camel, a.CType.String())
		}
	}
	for _, v := range d.Variables {
		fmt.Fprintf(&b, "\trecording_%s bool\n", v.Name)
		if v.Locality == desc.Local {
			fmt.Fprintf(&b, "\t_recorded_%s [][]%s\n", v.Name, v.CType.String())
		} else {
			fmt.Fprintf(&b, "\t_recorded_%s []%s\n", v.Name, v.CType.String())
		}
	}
	b.WriteString("\t_groupSize int\n")
	if d.Spike != nil {
		b.WriteString("\t_refractory_count []int\n")
	}
	if d.Object == desc.Synapse {
		b.WriteString("\t_preRank [][]int // preRanks[d] is dendrite d's own pre-rank list\n")
		b.WriteString("\t_dendriteOffset []int // len(preRanks)+1 prefix sums into the flat per-synapse arrays\n")
		b.WriteString("\t_preRankFlat []int\n")
		b.WriteString("\t_structuralPlasticityEnabled bool\n")
	}
	return b.String()
}

func buildConstructor(artifactName string, d *desc.Description) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\tg := new(%sImpl)\n", artifactName)
	if d.Object == desc.Synapse {
		b.WriteString("\tg._preRank = preRanks\n")
		b.WriteString("\tg._dendriteOffset = make([]int, len(preRanks)+1)\n")
		b.WriteString("\tfor d := range preRanks {\n\t\tg._dendriteOffset[d+1] = g._dendriteOffset[d] + len(preRanks[d])\n\t}\n")
		b.WriteString("\tgroupSize := g._dendriteOffset[len(preRanks)]\n")
		b.WriteString("\tg._preRankFlat = make([]int, groupSize)\n")
		b.WriteString("\tfor d, pr := range preRanks {\n\t\tcopy(g._preRankFlat[g._dendriteOffset[d]:], pr)\n\t}\n")
		fmt.Fprintf(&b, "\tg._structuralPlasticityEnabled = %t\n", d.StructuralPlasticity)
	}
	b.WriteString("\tg._groupSize = groupSize\n")
	for _, a := range d.AllAttributes() {
		if a.Locality == desc.Local {
			fmt.Fprintf(&b, "\tg.%s = make([]%s, groupSize)\n", strcase.ToCamel(a.Name), a.CType.String())
			fmt.Fprintf(&b, "\tfor i := range g.%s { g.%s[i] = %s }\n", strcase.ToCamel(a.Name), strcase.ToCamel(a.Name), literalOrDraw(a))
		} else {
			fmt.Fprintf(&b, "\tg.%s = %s\n", strcase.ToCamel(a.Name), literalOrDraw(a))
		}
	}
	b.WriteString("\treturn g\n")
	return b.String()
}

func literalOrDraw(a *desc.Attribute) string {
	if a.InitVal.Dist != "" {
		return fmt.Sprintf("draw_%s()", a.InitVal.Dist)
	}
	if a.InitVal.Literal != "" {
		return a.InitVal.Literal
	}
	return a.CType.ZeroLiteral()
}

func buildRecordRoutine(d *desc.Description) string {
	var b strings.Builder
	for _, v := range d.Variables {
		name := v.Name
		if v.Locality == desc.Local {
			fmt.Fprintf(&b, "if g.recording_%s {\n\tg._recorded_%s = append(g._recorded_%s, append([]%s(nil), g.%s...))\n}\n",
				name, name, name, v.CType.String(), strcase.ToCamel(name))
		} else {
			fmt.Fprintf(&b, "if g.recording_%s {\n\tg._recorded_%s = append(g._recorded_%s, g.%s)\n}\n",
				name, name, name, strcase.ToCamel(name))
		}
	}
	return b.String()
}

func buildResetRoutine(d *desc.Description, localNames map[string]bool) string {
	var b strings.Builder
	b.WriteString("for i := 0; i < g._groupSize; i++ {\n\tif !fired[i] {\n\t\tcontinue\n\t}\n")
	for _, r := range d.Spike.SpikeReset {
		text := indexLocalNames(expandPlaceholders(r.CPP), localNames)
		if r.Constraint == "unless_refractory" {
			fmt.Fprintf(&b, "\tif g._refractory_count[i] == 0 {\n\t\t%s\n\t}\n", text)
		} else {
			fmt.Fprintf(&b, "\t%s\n", text)
		}
	}
	if d.Refractory != "" {
		fmt.Fprintf(&b, "\tg._refractory_count[i] = %s\n", d.Refractory)
	}
	b.WriteString("}\n")
	return b.String()
}

func buildRefractoryRoutine(d *desc.Description) string {
	if d.Refractory == "" {
		return ""
	}
	return "for i := 0; i < g._groupSize; i++ {\n\tif g._refractory_count[i] > 0 {\n\t\tg._refractory_count[i]--\n\t}\n}\n"
}

// buildBinding renders the §4.6 binding surface: the accessor
// implementations wiring the type header's declared functions to the
// group's backing storage, plus the spike-condition evaluation that
// feeds ApplyReset.
func buildBinding(artifactName string, d *desc.Description) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s binds %s's accessors to the outer process-wide state.\n", artifactName, d.Name)
	for _, a := range d.AllAttributes() {
		camel := strcase.ToCamel(a.Name)
		if a.Locality == desc.Local {
			fmt.Fprintf(&b, "func (g *%sImpl) Get%s() []%s { return g.%s }\n", artifactName, camel, a.CType.String(), camel)
			fmt.Fprintf(&b, "func (g *%sImpl) Set%s(v []%s) { g.%s = v }\n", artifactName, camel, a.CType.String(), camel)
		} else {
			fmt.Fprintf(&b, "func (g *%sImpl) Get%s() %s { return g.%s }\n", artifactName, camel, a.CType.String(), camel)
			fmt.Fprintf(&b, "func (g *%sImpl) Set%s(v %s) { g.%s = v }\n", artifactName, camel, a.CType.String(), camel)
		}
	}
	if d.Spike != nil {
		localNames := map[string]bool{}
		for _, a := range d.AllAttributes() {
			if a.Locality == desc.Local {
				localNames[a.Name] = true
			}
		}
		cond := indexLocalNames(expandPlaceholders(d.Spike.SpikeCond), localNames)
		fmt.Fprintf(&b, "func (g *%sImpl) EvalSpikeCond(i int) bool { return %s }\n", artifactName, cond)
	}
	b.WriteString(buildRecordingAccessors(artifactName, d))
	if d.Object == desc.Synapse {
		b.WriteString(buildSynapseBinding(artifactName, d))
	}
	return b.String()
}

// buildRecordingAccessors implements the StartRecord/StopRecord/GetRecorded/
// ClearRecorded quartet the type header declares for every variable (§6).
func buildRecordingAccessors(artifactName string, d *desc.Description) string {
	var b strings.Builder
	for _, v := range d.Variables {
		camel := strcase.ToCamel(v.Name)
		fmt.Fprintf(&b, "func (g *%sImpl) StartRecord%s() { g.recording_%s = true }\n", artifactName, camel, v.Name)
		fmt.Fprintf(&b, "func (g *%sImpl) StopRecord%s() { g.recording_%s = false }\n", artifactName, camel, v.Name)
		if v.Locality == desc.Local {
			fmt.Fprintf(&b, "func (g *%sImpl) GetRecorded%s() [][]%s { return g._recorded_%s }\n", artifactName, camel, v.CType.String(), v.Name)
		} else {
			fmt.Fprintf(&b, "func (g *%sImpl) GetRecorded%s() []%s { return g._recorded_%s }\n", artifactName, camel, v.CType.String(), v.Name)
		}
		fmt.Fprintf(&b, "func (g *%sImpl) ClearRecorded%s() { g._recorded_%s = nil }\n", artifactName, camel, v.Name)
	}
	return b.String()
}

// buildSynapseBinding implements the dendrite/per-synapse accessor surface
// and structural-plasticity operations §6 declares for a projection. Every
// local attribute is stored as one flat array spanning the whole
// projection (matching the local meta-step's own flat indexing), with
// _dendriteOffset marking where each dendrite's synapses begin within it.
func buildSynapseBinding(artifactName string, d *desc.Description) string {
	var b strings.Builder
	var localAttrs []*desc.Attribute
	for _, a := range d.AllAttributes() {
		if a.Locality == desc.Local {
			localAttrs = append(localAttrs, a)
		}
	}
	for _, a := range localAttrs {
		camel := strcase.ToCamel(a.Name)
		ctype := a.CType.String()
		fmt.Fprintf(&b, "func (g *%sImpl) GetDendrite%s(d int) []%s {\n\treturn g.%s[g._dendriteOffset[d]:g._dendriteOffset[d+1]]\n}\n", artifactName, camel, ctype, camel)
		fmt.Fprintf(&b, "func (g *%sImpl) SetDendrite%s(d int, v []%s) {\n\tcopy(g.%s[g._dendriteOffset[d]:g._dendriteOffset[d+1]], v)\n}\n", artifactName, camel, ctype, camel)
		fmt.Fprintf(&b, "func (g *%sImpl) GetSynapse%s(d, j int) %s { return g.%s[g._dendriteOffset[d]+j] }\n", artifactName, camel, ctype, camel)
		fmt.Fprintf(&b, "func (g *%sImpl) SetSynapse%s(d, j int, v %s) { g.%s[g._dendriteOffset[d]+j] = v }\n", artifactName, camel, ctype, camel)
	}
	fmt.Fprintf(&b, "func (g *%sImpl) PreRank(d int) []int { return g._preRank[d] }\n", artifactName)
	fmt.Fprintf(&b, "func (g *%sImpl) NbSynapses(d int) int { return len(g._preRank[d]) }\n", artifactName)

	fmt.Fprintf(&b, "func (g *%sImpl) AddSynapse(post, pre int, w float64, delaySteps int, extras ...float64) error {\n", artifactName)
	fmt.Fprintf(&b, "\tif !g._structuralPlasticityEnabled {\n\t\treturn errorf(\"structural plasticity disabled for %s\")\n\t}\n", d.Name)
	b.WriteString("\tat := g._dendriteOffset[post+1]\n")
	b.WriteString("\tg._preRank[post] = append(g._preRank[post], pre)\n")
	b.WriteString("\tg._preRankFlat = append(g._preRankFlat[:at], append([]int{pre}, g._preRankFlat[at:]...)...)\n")
	extraIdx := 0
	for _, a := range localAttrs {
		camel := strcase.ToCamel(a.Name)
		lit := "w"
		if !isWeightAttr(a.Name) {
			if extraIdx < 8 { // §9's coupled-variable ceiling also bounds how many extras a declaration realistically carries
				lit = fmt.Sprintf("extraOrZero(extras, %d, %s)", extraIdx, a.CType.ZeroLiteral())
				extraIdx++
			} else {
				lit = a.CType.ZeroLiteral()
			}
		}
		fmt.Fprintf(&b, "\tg.%s = append(g.%s[:at], append([]%s{%s}, g.%s[at:]...)...)\n", camel, camel, a.CType.String(), lit, camel)
	}
	b.WriteString("\tfor d := post + 1; d < len(g._dendriteOffset); d++ {\n\t\tg._dendriteOffset[d]++\n\t}\n")
	b.WriteString("\treturn nil\n}\n")

	fmt.Fprintf(&b, "func (g *%sImpl) RemoveSynapse(post, pre int) error {\n", artifactName)
	fmt.Fprintf(&b, "\tif !g._structuralPlasticityEnabled {\n\t\treturn errorf(\"structural plasticity disabled for %s\")\n\t}\n", d.Name)
	b.WriteString("\tj := -1\n")
	b.WriteString("\tfor k, r := range g._preRank[post] {\n\t\tif r == pre {\n\t\t\tj = k\n\t\t\tbreak\n\t\t}\n\t}\n")
	b.WriteString("\tif j < 0 {\n\t\treturn errorf(\"no synapse from %d to %d\", pre, post)\n\t}\n")
	b.WriteString("\tat := g._dendriteOffset[post] + j\n")
	b.WriteString("\tg._preRank[post] = append(g._preRank[post][:j], g._preRank[post][j+1:]...)\n")
	b.WriteString("\tg._preRankFlat = append(g._preRankFlat[:at], g._preRankFlat[at+1:]...)\n")
	for _, a := range localAttrs {
		camel := strcase.ToCamel(a.Name)
		fmt.Fprintf(&b, "\tg.%s = append(g.%s[:at], g.%s[at+1:]...)\n", camel, camel, camel)
	}
	b.WriteString("\tfor d := post + 1; d < len(g._dendriteOffset); d++ {\n\t\tg._dendriteOffset[d]--\n\t}\n")
	b.WriteString("\treturn nil\n}\n")
	return b.String()
}

// isWeightAttr reports whether name is the conventional synaptic-weight
// attribute AddSynapse's w parameter initializes.
func isWeightAttr(name string) bool {
	return name == "w" || name == "weight"
}

// buildManifest renders the §4.6 build manifest: the source files
// composing this artifact and the external libraries it links, in
// dependency order (header before impl before binding).
func buildManifest(artifactName string, d *desc.Description, backend Backend, mixin *profile.Mixin) string {
	var b strings.Builder
	fmt.Fprintf(&b, "artifact: %s\n", artifactName)
	fmt.Fprintf(&b, "backend: %s\n", backend.String())
	fmt.Fprintf(&b, "sources:\n  - %s_header.gen\n  - %s_impl.gen\n  - %s_binding.gen\n", artifactName, artifactName, artifactName)
	if mixin.Enabled() {
		fmt.Fprintf(&b, "profile_regions:\n")
		for _, r := range mixin.SortedRegions() {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}
	if len(d.RandomDistributions) > 0 {
		names := make([]string, 0, len(d.RandomDistributions))
		for n := range d.RandomDistributions {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "random_distributions:\n")
		for _, n := range names {
			fmt.Fprintf(&b, "  - %s: %s\n", n, d.RandomDistributions[n].Kind)
		}
	}
	return b.String()
}
