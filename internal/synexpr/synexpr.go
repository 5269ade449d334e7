// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package synexpr implements the §4.3 Expression Analyzer: given one
// equation's left- and right-hand sides, the frozen attribute table, and
// the flag set, it recognizes ODE forms, applies the selected
// discretization, substitutes special callable terms (sum/reductions/
// random draws/conditionals) behind placeholders, collects a dependency
// set, and produces the final imperative update snippet.
//
// Equations and bound expressions are parsed with go/parser's
// parser.ParseExpr (the same entry point goki.dev/gosl/v2 relies on via
// go/parser more broadly), walked with golang.org/x/tools/go/ast/astutil
// for the placeholder rewrites, and re-emitted with a small dialect
// renderer rather than go/printer, because the output is a C++-like
// imperative dialect, not reformatted Go.
package synexpr

import (
	"fmt"
	"go/ast"
	"go/parser"
	"strings"

	"github.com/nrnforge/netgen/internal/desc"
)

var mathFuncs = map[string]bool{
	"exp": true, "log": true, "log2": true, "log10": true,
	"sin": true, "cos": true, "tan": true, "atan": true, "asin": true, "acos": true,
	"sqrt": true, "fabs": true, "abs": true, "pow": true, "tanh": true,
	"floor": true, "ceil": true, "clip": true,
}

// Analyze runs the §4.3 pipeline for one variable's equation. eq.RawLHS
// and eq.Text must already be populated by the Attribute Classifier; on
// success eq's TransformedEq, Untouched, Method, IsODE, Switch, CPP,
// Dependencies (and, for implicit/coupled methods, CoeffA/ConstB/
// CoupledWith) are filled in.
func Analyze(eq *desc.Equation, name, methodFlag string, table SymbolTable) error {
	form, err := recognizeLHS(eq.RawLHS)
	if err != nil {
		return desc.Errf(desc.MalformedDeclaration, eq.RawLHS, "%s", err.Error())
	}
	eq.IsODE = form.isODE

	untouched := map[string]string{}
	deps := map[string]bool{}

	text := eq.Text
	if rewritten, ph, triple, ok := extractITE(text); ok {
		condText, condDeps, err := analyzeSubExpr(triple.cond, table, untouched)
		if err != nil {
			return err
		}
		thenText, thenDeps, err := analyzeSubExpr(triple.then, table, untouched)
		if err != nil {
			return err
		}
		elsText, elsDeps, err := analyzeSubExpr(triple.els, table, untouched)
		if err != nil {
			return err
		}
		mergeDeps(deps, condDeps, thenDeps, elsDeps)
		untouched[ph] = fmt.Sprintf("(%s) ? %s : %s", condText, thenText, elsText)
		text = rewritten
	}

	expr, err := parser.ParseExpr(text)
	if err != nil {
		return desc.Errf(desc.MalformedDeclaration, text, "cannot parse equation right-hand side: %s", err.Error())
	}

	substituted, subs := substituteSpecialTerms(expr, table)
	for _, s := range subs {
		untouched[s.placeholder] = s.untouched
		if s.dependency != "" {
			deps[s.dependency] = true
		}
	}

	for ident := range collectIdents(substituted, func(n string) bool { return mathFuncs[n] || table.IsFunction(n) }) {
		if ident == name {
			continue
		}
		if table.HasAttribute(ident) || table.IsTarget(ident) {
			deps[ident] = true
		}
	}
	eq.Dependencies = deps
	eq.TransformedEq = render(substituted, nil)

	if form.isODE {
		method := methodFlag
		if method == "" {
			method = "explicit"
		}
		eq.Method = method

		coupled := coupledRefs(substituted, table, name)
		if len(coupled) > 0 && (method == "implicit" || method == "midpoint") {
			fExpr, ferr := BuildF(form, substituted, name)
			if ferr != nil {
				return desc.Errf(desc.UnsupportedMethod, method, "%s", ferr.Error())
			}
			names := append([]string{name}, coupled...)
			coeffs, constText, lerr := LinearizeSystem(fExpr, names)
			if lerr != nil {
				if nl, ok := lerr.(*NonLinearTerm); ok {
					return desc.Errf(desc.NonLinearImplicit, name, "cannot isolate coupled system linearly: %s", nl.Term)
				}
				return desc.Errf(desc.NonLinearImplicit, name, "%s", lerr.Error())
			}
			for k, v := range coeffs {
				coeffs[k] = rebind(v, untouched)
			}
			eq.CoupledWith = coupled
			eq.CoupledCoeffs = coeffs
			eq.ConstB = rebind(constText, untouched)
			eq.Untouched = untouched
			return nil
		}

		res, err := discretize(method, form, substituted, name)
		if err != nil {
			if nl, ok := err.(*NonLinearTerm); ok {
				return desc.Errf(desc.NonLinearImplicit, name, "cannot isolate %s linearly: %s", nl.Name, nl.Term)
			}
			if nl, ok := err.(*NonLinearImplicitErr); ok {
				return desc.Errf(desc.NonLinearImplicit, name, "%s", nl.Error())
			}
			return desc.Errf(desc.UnsupportedMethod, method, "%s", err.Error())
		}
		eq.Switch = rebind(res.switchSnippet, untouched)
		eq.CPP = rebind(res.cpp, untouched)
		eq.CoeffA = rebind(res.coeffA, untouched)
		eq.ConstB = rebind(res.constB, untouched)
	} else {
		if methodFlag != "" && methodFlag != "explicit" {
			return desc.Errf(desc.UnsupportedMethod, methodFlag, "method flags only apply to ODE-form equations")
		}
		eq.Method = "assign"
		eq.CPP = rebind(fmt.Sprintf("%s = %s;", name, render(substituted, nil)), untouched)
	}

	eq.Untouched = untouched
	return nil
}

// analyzeSubExpr parses and placeholder-substitutes one opaque
// conditional branch (used for if/then/else), merging its own
// substitutions into the caller's untouched map and returning its
// dependency set.
func analyzeSubExpr(text string, table SymbolTable, untouched map[string]string) (string, map[string]bool, error) {
	expr, err := parser.ParseExpr(text)
	if err != nil {
		return "", nil, desc.Errf(desc.MalformedDeclaration, text, "cannot parse conditional branch: %s", err.Error())
	}
	substituted, subs := substituteSpecialTerms(expr, table)
	deps := map[string]bool{}
	for _, s := range subs {
		untouched[s.placeholder] = s.untouched
		if s.dependency != "" {
			deps[s.dependency] = true
		}
	}
	for ident := range collectIdents(substituted, func(n string) bool { return mathFuncs[n] || table.IsFunction(n) }) {
		if table.HasAttribute(ident) || table.IsTarget(ident) {
			deps[ident] = true
		}
	}
	return render(substituted, nil), deps, nil
}

func mergeDeps(dst map[string]bool, srcs ...map[string]bool) {
	for _, s := range srcs {
		for k := range s {
			dst[k] = true
		}
	}
}

// coupledRefs returns the names of other coupled (implicit/midpoint)
// attributes that expr references, excluding self.
func coupledRefs(expr ast.Expr, table SymbolTable, self string) []string {
	var out []string
	for ident := range collectIdents(expr, func(n string) bool { return mathFuncs[n] || table.IsFunction(n) }) {
		if ident == self {
			continue
		}
		if table.IsCoupled(ident) {
			out = append(out, ident)
		}
	}
	return out
}

// RenderBound runs steps 1, 5 and 6 of the pipeline (substitution,
// rebinding, dependency collection) over a bound expression (§4.3 step 4),
// which is parsed in "return" mode: it may reference other attributes,
// evaluated with post-update semantics by convention (§9 open question).
func RenderBound(text string, table SymbolTable) (rendered string, deps map[string]bool, err error) {
	expr, err := parser.ParseExpr(text)
	if err != nil {
		return "", nil, desc.Errf(desc.MalformedDeclaration, text, "cannot parse bound expression: %s", err.Error())
	}
	substituted, subs := substituteSpecialTerms(expr, table)
	untouched := map[string]string{}
	deps = map[string]bool{}
	for _, s := range subs {
		untouched[s.placeholder] = s.untouched
		if s.dependency != "" {
			deps[s.dependency] = true
		}
	}
	for ident := range collectIdents(substituted, func(n string) bool { return mathFuncs[n] || table.IsFunction(n) }) {
		if table.HasAttribute(ident) || table.IsTarget(ident) {
			deps[ident] = true
		}
	}
	return rebind(render(substituted, nil), untouched), deps, nil
}

func rebind(text string, untouched map[string]string) string {
	for ph, final := range untouched {
		text = strings.ReplaceAll(text, ph, final)
	}
	return text
}

// NonLinearImplicitErr wraps a linearization failure for the top-level
// f(name) expression built by the implicit discretizer.
type NonLinearImplicitErr struct {
	Name  string
	Cause error
}

func (e *NonLinearImplicitErr) Error() string {
	return fmt.Sprintf("implicit method cannot isolate %s linearly: %s", e.Name, e.Cause.Error())
}
