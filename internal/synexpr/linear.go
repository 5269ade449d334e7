// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synexpr

import (
	"go/ast"
	"go/token"
)

// signedTerm is one additive term of a flattened expression tree, with
// its sign relative to the whole expression.
type signedTerm struct {
	neg  bool
	expr ast.Expr
}

// flattenAdd decomposes expr into a flat list of signed additive terms,
// descending through +/- BinaryExprs and ParenExprs.
func flattenAdd(expr ast.Expr, neg bool) []signedTerm {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return flattenAdd(e.X, neg)
	case *ast.BinaryExpr:
		switch e.Op {
		case token.ADD:
			out := flattenAdd(e.X, neg)
			return append(out, flattenAdd(e.Y, neg)...)
		case token.SUB:
			out := flattenAdd(e.X, neg)
			return append(out, flattenAdd(e.Y, !neg)...)
		}
	case *ast.UnaryExpr:
		if e.Op == token.SUB {
			return flattenAdd(e.X, !neg)
		}
	}
	return []signedTerm{{neg: neg, expr: expr}}
}

// splitFactors decomposes expr into numerator and denominator factors,
// descending through * and / BinaryExprs and ParenExprs, so a term like
// tau's reciprocal (introduced by distributeDiv below) can still be
// searched for a bare occurrence of the isolated variable.
func splitFactors(expr ast.Expr) (num, den []ast.Expr) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return splitFactors(e.X)
	case *ast.BinaryExpr:
		switch e.Op {
		case token.MUL:
			n1, d1 := splitFactors(e.X)
			n2, d2 := splitFactors(e.Y)
			return append(n1, n2...), append(d1, d2...)
		case token.QUO:
			n1, d1 := splitFactors(e.X)
			n2, d2 := splitFactors(e.Y)
			return append(n1, d2...), append(d1, n2...)
		}
	}
	return []ast.Expr{expr}, nil
}

// renderFactorCoeff renders a coefficient given its already-isolated
// numerator factors (the name itself removed) and denominator factors.
func renderFactorCoeff(num, den []ast.Expr, subst map[string]string) string {
	numText := "1"
	if len(num) > 0 {
		numText = render(num[0], subst)
		for _, f := range num[1:] {
			numText += " * " + render(f, subst)
		}
	}
	if len(den) == 0 {
		return numText
	}
	denText := render(den[0], subst)
	for _, f := range den[1:] {
		denText += " * " + render(f, subst)
	}
	return "(" + numText + ") / (" + denText + ")"
}

// distributeDiv pushes division by denom through every additive leaf of
// expr, so that a tau-scaled or leaky right-hand side (rhs - name)/tau
// keeps its additive structure visible to linearize/LinearizeSystem
// instead of collapsing into one opaque division term.
func distributeDiv(expr, denom ast.Expr) ast.Expr {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return distributeDiv(e.X, denom)
	case *ast.BinaryExpr:
		switch e.Op {
		case token.ADD, token.SUB:
			return &ast.BinaryExpr{X: distributeDiv(e.X, denom), Op: e.Op, Y: distributeDiv(e.Y, denom)}
		}
	case *ast.UnaryExpr:
		if e.Op == token.SUB {
			return &ast.UnaryExpr{Op: token.SUB, X: distributeDiv(e.X, denom)}
		}
	}
	return binDiv(expr, denom)
}

// linearize attempts to write expr as A*name + B for some coefficient
// expression A and remainder expression text B, neither of which
// references name. It returns rendered text for A and B. err is
// NonLinearImplicit-shaped (the caller attaches the desc.Error kind) when
// name appears in a term in a way that cannot be isolated as a simple
// multiplicative factor (division, exponentiation, nested inside a call,
// or more than once in one term).
func linearize(expr ast.Expr, name string, subst map[string]string) (coeffText, constText string, err error) {
	terms := flattenAdd(expr, false)

	var coeffParts []string
	var constParts []string

	for _, t := range terms {
		count := countIdent(t.expr, name)
		if count == 0 {
			constParts = append(constParts, signedRender(t, subst))
			continue
		}
		if count > 1 {
			return "", "", &NonLinearTerm{Name: name, Term: render(t.expr, subst)}
		}
		num, den := splitFactors(t.expr)
		kept := num[:0:0]
		found := false
		for _, f := range num {
			if id, ok := f.(*ast.Ident); ok && id.Name == name && !found {
				found = true
				continue
			}
			kept = append(kept, f)
		}
		if !found {
			// name occurs exactly once in the term but not as a bare
			// top-level factor of a product or quotient: nested inside a
			// call, exponent, or a denominator.
			return "", "", &NonLinearTerm{Name: name, Term: render(t.expr, subst)}
		}
		sign := "+"
		if t.neg {
			sign = "-"
		}
		if len(kept) == 0 && len(den) == 0 {
			coeffParts = append(coeffParts, sign+" 1")
		} else {
			coeffParts = append(coeffParts, sign+" ("+renderFactorCoeff(kept, den, subst)+")")
		}
	}

	coeffText = joinSigned(coeffParts)
	constText = joinSigned(constParts)
	return coeffText, constText, nil
}

func signedRender(t signedTerm, subst map[string]string) string {
	if t.neg {
		return "- " + render(t.expr, subst)
	}
	return "+ " + render(t.expr, subst)
}

func joinSigned(parts []string) string {
	if len(parts) == 0 {
		return "0.0"
	}
	s := parts[0]
	// strip a leading "+ " for readability
	if len(s) > 2 && s[:2] == "+ " {
		s = s[2:]
	}
	for _, p := range parts[1:] {
		s += " " + p
	}
	return s
}

// NonLinearTerm reports that `name` could not be isolated linearly in one
// additive term of an implicit-method right-hand side.
type NonLinearTerm struct {
	Name string
	Term string
}

func (e *NonLinearTerm) Error() string {
	return "cannot isolate " + e.Name + " linearly in term: " + e.Term
}
