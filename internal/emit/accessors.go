// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"strings"
	"text/template"

	"github.com/iancoleman/strcase"

	"github.com/nrnforge/netgen/internal/desc"
)

var tmplFuncs = template.FuncMap{"camel": strcase.ToCamel}

// attrView is the template-facing projection of one Attribute: the
// fields the §6 accessor table is parametric on (name, ctype, and
// whether its recorded-history accessor returns per-unit history).
type attrView struct {
	Name  string
	CType string
	Local bool
}

type headerData struct {
	ArtifactName string
	ObjectKind   string
	LocalAttrs   []attrView
	GlobalAttrs  []attrView
	Variables    []attrView
	IsSynapse    bool
}

// headerTmplText renders the §4.6 type header: typed accessors per
// attribute (§6's table), plus the per-dendrite/per-synapse and
// structural-plasticity surface when the description is a synapse.
const headerTmplText = `// {{.ArtifactName}} is the generated type header for {{.Name}}, a {{.ObjectKind}} group.
package generated
{{range .LocalAttrs}}
func Get{{camel .Name}}() []{{.CType}}
func Set{{camel .Name}}(v []{{.CType}})
func GetSingle{{camel .Name}}(i int) {{.CType}}
func SetSingle{{camel .Name}}(i int, v {{.CType}})
{{- end}}
{{range .GlobalAttrs}}
func Get{{camel .Name}}() {{.CType}}
func Set{{camel .Name}}(v {{.CType}})
{{- end}}
{{range .Variables}}
func StartRecord{{camel .Name}}()
func StopRecord{{camel .Name}}()
{{if .Local}}func GetRecorded{{camel .Name}}() [][]{{.CType}}{{else}}func GetRecorded{{camel .Name}}() []{{.CType}}{{end}}
func ClearRecorded{{camel .Name}}()
{{- end}}
{{if .IsSynapse}}
{{range .LocalAttrs}}
func GetDendrite{{camel .Name}}(d int) []{{.CType}}
func SetDendrite{{camel .Name}}(d int, v []{{.CType}})
func GetSynapse{{camel .Name}}(d, j int) {{.CType}}
func SetSynapse{{camel .Name}}(d, j int, v {{.CType}})
{{- end}}
func PreRank(d int) []int
func NbSynapses(d int) int
func AddSynapse(post, pre int, w float64, delaySteps int, extras ...float64) error
func RemoveSynapse(post, pre int) error
{{- end}}
`

var headerTmpl = template.Must(template.New("header").Funcs(tmplFuncs).Parse(headerTmplText))

// buildHeader renders the type header artifact for d, named artifactName
// by the process-wide registry.
func buildHeader(artifactName string, d *desc.Description) (string, error) {
	data := headerData{
		ArtifactName: artifactName,
		ObjectKind:   d.Object.String(),
		IsSynapse:    d.Object == desc.Synapse,
	}
	for _, a := range d.Parameters {
		v := attrView{Name: a.Name, CType: a.CType.String(), Local: a.Locality == desc.Local}
		if v.Local {
			data.LocalAttrs = append(data.LocalAttrs, v)
		} else {
			data.GlobalAttrs = append(data.GlobalAttrs, v)
		}
	}
	for _, a := range d.Variables {
		v := attrView{Name: a.Name, CType: a.CType.String(), Local: a.Locality == desc.Local}
		if v.Local {
			data.LocalAttrs = append(data.LocalAttrs, v)
		} else {
			data.GlobalAttrs = append(data.GlobalAttrs, v)
		}
		data.Variables = append(data.Variables, v)
	}
	var b strings.Builder
	if err := headerTmpl.Execute(&b, struct {
		headerData
		Name string
	}{data, d.Name}); err != nil {
		return "", err
	}
	return b.String(), nil
}
