// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	"github.com/nrnforge/netgen/internal/desc"
	"github.com/nrnforge/netgen/internal/pipeline"
)

// Declaration files are a section-based text format, one section per
// blank-line-free header line ("name:", "params:", ...) followed by its
// body up to the next header. Single-line sections (name, object, type,
// spike_cond, refractory, synapse_operation, structural_plasticity) take
// their value inline on the header line; multi-line sections (params,
// vars, reset, consts, functions) take their body from the following
// lines, passed through to the Lexical Extractor verbatim.
var multiLineSections = map[string]bool{
	"params": true, "vars": true, "reset": true, "consts": true, "functions": true,
}

// parseDeclFile parses one .neuron/.synapse source file into a
// pipeline.Declaration.
func parseDeclFile(text string) (pipeline.Declaration, error) {
	sections, err := splitSections(text)
	if err != nil {
		return pipeline.Declaration{}, err
	}

	decl := pipeline.Declaration{Extra: map[string]string{}}

	if v, ok := sections["name"]; ok {
		decl.Name = strings.TrimSpace(v)
	}
	if decl.Name == "" {
		return pipeline.Declaration{}, fmt.Errorf("missing required \"name:\" section")
	}

	switch strings.TrimSpace(sections["object"]) {
	case "neuron", "":
		decl.Object = desc.Neuron
	case "synapse":
		decl.Object = desc.Synapse
	default:
		return pipeline.Declaration{}, fmt.Errorf("%s: unknown object %q (want \"neuron\" or \"synapse\")", decl.Name, sections["object"])
	}

	switch strings.TrimSpace(sections["type"]) {
	case "rate", "":
		decl.Type = desc.Rate
	case "spike":
		decl.Type = desc.SpikeType
	default:
		return pipeline.Declaration{}, fmt.Errorf("%s: unknown type %q (want \"rate\" or \"spike\")", decl.Name, sections["type"])
	}

	if v, ok := sections["consts"]; ok {
		for _, line := range splitStatementLines(v) {
			name, val, ok := strings.Cut(line, "=")
			if !ok {
				return pipeline.Declaration{}, fmt.Errorf("%s: malformed consts entry %q (want name = value)", decl.Name, line)
			}
			decl.Extra[strings.TrimSpace(name)] = strings.TrimSpace(val)
		}
	}

	decl.ParamText = sections["params"]
	decl.VarText = sections["vars"]
	decl.ResetText = sections["reset"]
	decl.SpikeCond = strings.TrimSpace(sections["spike_cond"])
	decl.Refractory = strings.TrimSpace(sections["refractory"])
	decl.SynapseOperation = strings.TrimSpace(sections["synapse_operation"])
	decl.StructuralPlasticityEnabled = strings.TrimSpace(sections["structural_plasticity"]) == "true"

	if v, ok := sections["functions"]; ok {
		fns, err := parseFunctions(decl.Name, v)
		if err != nil {
			return pipeline.Declaration{}, err
		}
		decl.Functions = fns
	}

	return decl, nil
}

// splitSections walks text line by line, recognizing a header line as
// "<word>:<rest>" where <word> is one of the known section names, and
// otherwise appending the line to whichever section is currently open.
func splitSections(text string) (map[string]string, error) {
	known := map[string]bool{
		"name": true, "object": true, "type": true,
		"params": true, "vars": true, "functions": true,
		"spike_cond": true, "reset": true, "refractory": true,
		"synapse_operation": true, "structural_plasticity": true,
		"consts": true,
	}

	sections := map[string]string{}
	var bodies = map[string]*strings.Builder{}
	current := ""

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if name, rest, ok := strings.Cut(line, ":"); ok && known[strings.TrimSpace(name)] && !strings.Contains(name, " ") {
			current = strings.TrimSpace(name)
			if multiLineSections[current] {
				if bodies[current] == nil {
					bodies[current] = &strings.Builder{}
				}
				if strings.TrimSpace(rest) != "" {
					bodies[current].WriteString(strings.TrimSpace(rest))
					bodies[current].WriteString("\n")
				}
			} else {
				sections[current] = rest
			}
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("line %q precedes any section header", line)
		}
		if multiLineSections[current] {
			if bodies[current] == nil {
				bodies[current] = &strings.Builder{}
			}
			bodies[current].WriteString(line)
			bodies[current].WriteString("\n")
		} else {
			sections[current] += "\n" + line
		}
	}
	for name, b := range bodies {
		sections[name] = b.String()
	}
	return sections, nil
}

// splitStatementLines returns block's non-empty, non-comment lines.
func splitStatementLines(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// parseFunctions parses a functions: block of "name(arg1, arg2) = body"
// lines into desc.Function records.
func parseFunctions(declName, block string) ([]desc.Function, error) {
	var fns []desc.Function
	for _, line := range splitStatementLines(block) {
		head, body, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%s: malformed function %q (want name(args) = body)", declName, line)
		}
		head = strings.TrimSpace(head)
		open := strings.Index(head, "(")
		if open < 0 || !strings.HasSuffix(head, ")") {
			return nil, fmt.Errorf("%s: malformed function signature %q", declName, head)
		}
		name := strings.TrimSpace(head[:open])
		argList := head[open+1 : len(head)-1]
		var args []string
		if strings.TrimSpace(argList) != "" {
			for _, a := range strings.Split(argList, ",") {
				args = append(args, strings.TrimSpace(a))
			}
		}
		fns = append(fns, desc.Function{Name: name, Args: args, Body: strings.TrimSpace(body)})
	}
	return fns, nil
}
