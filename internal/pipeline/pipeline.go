// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline wires the Lexical Extractor, Attribute Classifier,
// Expression Analyzer, Coupled-ODE Solver and Description Builder
// together for one neuron or synapse declaration. It is the one place
// in the module that imports lex, attr, synexpr, solve and desc all at
// once: each of those packages depends on desc for the shared data
// model and error taxonomy, so desc itself cannot import any of them
// back without a cycle, and the concrete Analyzer/Solver the Description
// Builder needs are supplied from here instead.
package pipeline

import (
	"github.com/nrnforge/netgen/internal/attr"
	"github.com/nrnforge/netgen/internal/desc"
	"github.com/nrnforge/netgen/internal/lex"
	"github.com/nrnforge/netgen/internal/solve"
	"github.com/nrnforge/netgen/internal/synexpr"
)

// Declaration is one neuron or synapse's raw textual source, exactly
// the shape the declaration surface of §6 describes.
type Declaration struct {
	Name   string
	Object desc.ObjectType
	Type   desc.ModelType

	ParamText string
	VarText   string
	Functions []desc.Function

	SpikeCond  string
	ResetText  string
	Refractory string

	SynapseOperation string

	StructuralPlasticityEnabled bool

	Extra map[string]string
}

// Build runs §4.1 through §4.5 over one Declaration and returns the
// frozen Description.
func Build(decl Declaration) (*desc.Description, error) {
	var params, vars []*desc.Attribute

	if decl.ParamText != "" {
		recs, err := extract(decl.ParamText, lex.RequireEquals)
		if err != nil {
			return nil, err
		}
		params, err = attr.Classify(recs, desc.Parameter, decl.Object, decl.Extra)
		if err != nil {
			return nil, err
		}
	}

	if decl.VarText != "" {
		recs, err := extract(decl.VarText, lex.RequireEquals)
		if err != nil {
			return nil, err
		}
		vars, err = attr.Classify(recs, desc.Variable, decl.Object, decl.Extra)
		if err != nil {
			return nil, err
		}
	}

	var resets []desc.ResetRecord
	if decl.ResetText != "" {
		recs, err := extract(decl.ResetText, lex.RequireEquals)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			resets = append(resets, desc.ResetRecord{
				LHS: r.LHS, RHS: r.RHS,
				UnlessRefractory: hasFlag(r.Flags, "unless_refractory"),
			})
		}
	}

	in := desc.Input{
		Name:                        decl.Name,
		Object:                      decl.Object,
		Type:                        decl.Type,
		Parameters:                  params,
		Variables:                   vars,
		Functions:                   decl.Functions,
		SpikeCond:                   decl.SpikeCond,
		ResetEntries:                resets,
		Refractory:                  decl.Refractory,
		SynapseOperation:            decl.SynapseOperation,
		StructuralPlasticityEnabled: decl.StructuralPlasticityEnabled,
	}

	return desc.Build(in, analyzerAdapter{}, solverAdapter{})
}

// extract runs the Lexical Extractor and converts its internal
// malformed-block error into the shared *desc.Error taxonomy, since lex
// itself stays free of a dependency on desc.
func extract(block string, mode lex.Mode) ([]lex.Record, error) {
	recs, err := lex.Extract(block, mode)
	if err != nil {
		if lex.IsMalformed(err) {
			return nil, desc.Errf(desc.MalformedDeclaration, block, "%s", err.Error())
		}
		return nil, err
	}
	return recs, nil
}

func hasFlag(flags []lex.Flag, name string) bool {
	for _, f := range flags {
		if f.Name == name {
			return true
		}
	}
	return false
}

// analyzerAdapter satisfies desc.Analyzer over package synexpr.
type analyzerAdapter struct{}

func (analyzerAdapter) Analyze(eq *desc.Equation, name, methodFlag string, table desc.SymbolTable) error {
	return synexpr.Analyze(eq, name, methodFlag, table)
}

func (analyzerAdapter) RenderBound(text string, table desc.SymbolTable) (string, map[string]bool, error) {
	return synexpr.RenderBound(text, table)
}

// solverAdapter satisfies desc.Solver over package solve.
type solverAdapter struct{}

func (solverAdapter) Solve(sys desc.CoupledSystem) (map[string]string, error) {
	sol, err := solve.Solve(solve.System{Names: sys.Names, A: sys.A, B: sys.B})
	if err != nil {
		return nil, err
	}
	return sol.CPP, nil
}
