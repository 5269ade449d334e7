// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synexpr

import (
	"fmt"
	"go/ast"
)

// exactSupported reports whether form belongs to the small built-in set
// of closed-form ODEs the "exact" method is allowed to discretize (§4.3 step 3, *exact*): here, the
// canonical leaky form tau*dx/dt + x = c, whose exact solution over one
// step coincides with the exponential-Euler formula when c and tau are
// held constant across the step.
func exactSupported(form odeForm) bool {
	return form.isODE && form.leak
}

// discretizeResult carries the emitted snippet(s) for one variable.
type discretizeResult struct {
	switchSnippet string // slope term, empty when not applicable
	cpp           string // final update statement(s)
	coupled       bool   // true: caller must defer to the §4.4 solver
	coeffA        string // populated for implicit/coupled: A in dx/dt = A*x + B
	constB        string // populated for implicit/coupled: B
}

// discretize applies the method selected by flags to one ODE form, given
// the already placeholder-substituted right-hand side expr.
func discretize(method string, form odeForm, rhs ast.Expr, name string) (discretizeResult, error) {
	switch method {
	case "", "explicit":
		return discretizeExplicit(form, rhs, name)
	case "implicit":
		return discretizeImplicit(form, rhs, name)
	case "midpoint":
		return discretizeMidpoint(form, rhs, name)
	case "exponential":
		return discretizeExponential(form, rhs, name)
	case "exact":
		if !exactSupported(form) {
			return discretizeResult{}, fmt.Errorf("exact method is only registered for the canonical leaky ODE form")
		}
		return discretizeExponential(form, rhs, name)
	default:
		return discretizeResult{}, fmt.Errorf("unknown method %q", method)
	}
}

func leakF(form odeForm, rhsText string, name string) string {
	if form.leak {
		return fmt.Sprintf("(%s - %s) / %s", rhsText, name, form.tau)
	}
	if form.tau == "1" {
		return rhsText
	}
	return fmt.Sprintf("%s / %s", rhsText, form.tau)
}

func discretizeExplicit(form odeForm, rhs ast.Expr, name string) (discretizeResult, error) {
	rhsText := render(rhs, nil)
	slope := leakF(form, rhsText, name)
	return discretizeResult{
		switchSnippet: slope,
		cpp:           fmt.Sprintf("%s += dt * (%s);", name, slope),
	}, nil
}

func discretizeImplicit(form odeForm, rhs ast.Expr, name string) (discretizeResult, error) {
	// f(name) = (rhs - name)/tau  (leaky form) or rhs/tau (scaled) or rhs
	// (bare); linearize f itself in name to get dx/dt = A*x + B.
	fExpr, err := BuildF(form, rhs, name)
	if err != nil {
		return discretizeResult{}, err
	}

	a, b, err := linearize(fExpr, name, nil)
	if err != nil {
		return discretizeResult{}, &NonLinearImplicitErr{Name: name, Cause: err}
	}
	cpp := fmt.Sprintf("%s = (%s + dt * (%s)) / (1.0 - dt * (%s));", name, name, b, a)
	return discretizeResult{cpp: cpp, coeffA: a, constB: b}, nil
}

func discretizeMidpoint(form odeForm, rhs ast.Expr, name string) (discretizeResult, error) {
	rhsText := render(rhs, nil)
	k1 := leakF(form, rhsText, name)

	half := fmt.Sprintf("(%s + 0.5 * dt * __k1__)", name)
	rhsTextHalf := render(rhs, map[string]string{name: half})
	k1TextForHalf := "__k1__"
	_ = k1TextForHalf
	// the leak term subtracts the half-step state as well
	k2 := leakF(form, rhsTextHalf, half)

	cpp := fmt.Sprintf("double __k1__ = %s;\n\tdouble __k2__ = %s;\n\t%s += dt * __k2__;", k1, k2, name)
	return discretizeResult{switchSnippet: k2, cpp: cpp}, nil
}

func discretizeExponential(form odeForm, rhs ast.Expr, name string) (discretizeResult, error) {
	if !form.leak {
		return discretizeResult{}, fmt.Errorf("exponential method requires the canonical leaky ODE form tau*d%s/dt + %s = rhs", name, name)
	}
	rhsText := render(rhs, nil)
	cpp := fmt.Sprintf("%s = (%s) - ((%s) - %s) * exp(-dt / (%s));", name, rhsText, rhsText, name, form.tau)
	return discretizeResult{cpp: cpp}, nil
}

// replaceWord replaces whole-word occurrences of word in s with repl,
// leaving longer identifiers containing word as a substring untouched.
func replaceWord(s, word, repl string) string {
	out := make([]byte, 0, len(s))
	i := 0
	for i < len(s) {
		if i+len(word) <= len(s) && s[i:i+len(word)] == word {
			before := i == 0 || !isIdentByte(s[i-1])
			after := i+len(word) == len(s) || !isIdentByte(s[i+len(word)])
			if before && after {
				out = append(out, repl...)
				i += len(word)
				continue
			}
		}
		out = append(out, s[i])
		i++
	}
	return string(out)
}
