// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synexpr

import (
	"go/ast"
)

// BuildF reduces one ODE's left-hand side form and already-substituted
// right-hand side into f(name) = dname/dt, the same reduction
// discretizeImplicit performs, exposed so the multi-variable coupled
// path (§4.4) can build one f per variable before linearizing the whole
// system at once.
func BuildF(form odeForm, rhs ast.Expr, name string) (ast.Expr, error) {
	if form.leak {
		tauExpr, err := parseSubExpr(form.tau)
		if err != nil {
			return nil, err
		}
		return distributeDiv(binMinus(rhs, ast.NewIdent(name)), tauExpr), nil
	}
	if form.tau != "1" {
		tauExpr, err := parseSubExpr(form.tau)
		if err != nil {
			return nil, err
		}
		return distributeDiv(rhs, tauExpr), nil
	}
	return rhs, nil
}

// LinearizeSystem decomposes f = A[0]*names[0] + ... + A[n-1]*names[n-1] + B
// for one equation's f expression, where names is the full coupled set
// (f's own variable included). Every additive term of f must reference at
// most one name of the set, exactly once, as a bare multiplicative
// factor; terms referencing none of names contribute to B.
func LinearizeSystem(f ast.Expr, names []string) (coeffs map[string]string, constText string, err error) {
	terms := flattenAdd(f, false)
	coeffParts := map[string][]string{}
	var constParts []string

	for _, t := range terms {
		present := map[string]int{}
		for _, n := range names {
			if c := countIdent(t.expr, n); c > 0 {
				present[n] = c
			}
		}
		switch len(present) {
		case 0:
			constParts = append(constParts, signedRender(t, nil))
			continue
		case 1:
			var which string
			var count int
			for n, c := range present {
				which, count = n, c
			}
			if count > 1 {
				return nil, "", &NonLinearTerm{Name: which, Term: render(t.expr, nil)}
			}
			num, den := splitFactors(t.expr)
			kept := num[:0:0]
			found := false
			for _, fac := range num {
				if id, ok := fac.(*ast.Ident); ok && id.Name == which && !found {
					found = true
					continue
				}
				kept = append(kept, fac)
			}
			if !found {
				return nil, "", &NonLinearTerm{Name: which, Term: render(t.expr, nil)}
			}
			sign := "+"
			if t.neg {
				sign = "-"
			}
			if len(kept) == 0 && len(den) == 0 {
				coeffParts[which] = append(coeffParts[which], sign+" 1")
			} else {
				coeffParts[which] = append(coeffParts[which], sign+" ("+renderFactorCoeff(kept, den, nil)+")")
			}
		default:
			return nil, "", &NonLinearTerm{Name: names[0], Term: render(t.expr, nil) + " (couples more than one variable in a single term)"}
		}
	}

	coeffs = map[string]string{}
	for _, n := range names {
		coeffs[n] = joinSigned(coeffParts[n])
	}
	constText = joinSigned(constParts)
	return coeffs, constText, nil
}
