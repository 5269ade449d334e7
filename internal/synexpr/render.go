// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synexpr

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"
)

// render walks expr and produces target-dialect text. Go's binary XOR
// operator token is repurposed, by convention of this package, to spell
// the power operator in equation source text (e.g. "post.r^2"): Go's own
// grammar has no infix power operator, and XOR is never meaningful in a
// scalar neuron/synapse equation, so this encodes a target-dialect
// concept inside otherwise-valid Go syntax, the same trick sltype.Float
// (a type alias) and slbool.Bool (an int32) play elsewhere, for "^"
// meaning pow(a, b). subst optionally overrides how a bare identifier
// renders, used by the midpoint discretizer to substitute the half-step
// state.
func render(expr ast.Expr, subst map[string]string) string {
	switch e := expr.(type) {
	case *ast.Ident:
		if s, ok := subst[e.Name]; ok {
			return s
		}
		return e.Name
	case *ast.BasicLit:
		return e.Value
	case *ast.ParenExpr:
		return "(" + render(e.X, subst) + ")"
	case *ast.UnaryExpr:
		return unaryOp(e.Op) + render(e.X, subst)
	case *ast.BinaryExpr:
		if e.Op == token.XOR {
			return fmt.Sprintf("pow(%s, %s)", render(e.X, subst), render(e.Y, subst))
		}
		return render(e.X, subst) + " " + binaryOp(e.Op) + " " + render(e.Y, subst)
	case *ast.CallExpr:
		fn := render(e.Fun, subst)
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = render(a, subst)
		}
		return fn + "(" + strings.Join(args, ", ") + ")"
	case *ast.SelectorExpr:
		return render(e.X, subst) + "." + e.Sel.Name
	case *ast.IndexExpr:
		return render(e.X, subst) + "[" + render(e.Index, subst) + "]"
	default:
		return fmt.Sprintf("<unsupported:%T>", expr)
	}
}

func unaryOp(op token.Token) string {
	switch op {
	case token.NOT:
		return "!"
	case token.SUB:
		return "-"
	case token.ADD:
		return "+"
	default:
		return op.String()
	}
}

func binaryOp(op token.Token) string {
	switch op {
	case token.LAND:
		return "&&"
	case token.LOR:
		return "||"
	default:
		return op.String()
	}
}

// collectIdents gathers every *ast.Ident name free in expr, including the
// base of selector expressions rendered as "base.sel" for pre./post.
// references, skipping call-target identifiers that name a known builtin
// or user function.
func collectIdents(expr ast.Expr, isFunc func(string) bool) map[string]bool {
	out := map[string]bool{}
	var walk func(ast.Expr)
	walk = func(n ast.Expr) {
		switch e := n.(type) {
		case *ast.Ident:
			out[e.Name] = true
		case *ast.ParenExpr:
			walk(e.X)
		case *ast.UnaryExpr:
			walk(e.X)
		case *ast.BinaryExpr:
			walk(e.X)
			walk(e.Y)
		case *ast.CallExpr:
			if id, ok := e.Fun.(*ast.Ident); ok && isFunc(id.Name) {
				// skip the function name itself
			} else {
				walk(e.Fun)
			}
			for _, a := range e.Args {
				walk(a)
			}
		case *ast.SelectorExpr:
			if base, ok := e.X.(*ast.Ident); ok {
				out[base.Name+"."+e.Sel.Name] = true
			} else {
				walk(e.X)
			}
		case *ast.IndexExpr:
			walk(e.X)
			walk(e.Index)
		}
	}
	walk(expr)
	return out
}

// countIdent reports how many times name occurs as a bare identifier
// (not as a selector base) within expr.
func countIdent(expr ast.Expr, name string) int {
	n := 0
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		switch v := e.(type) {
		case *ast.Ident:
			if v.Name == name {
				n++
			}
		case *ast.ParenExpr:
			walk(v.X)
		case *ast.UnaryExpr:
			walk(v.X)
		case *ast.BinaryExpr:
			walk(v.X)
			walk(v.Y)
		case *ast.CallExpr:
			walk(v.Fun)
			for _, a := range v.Args {
				walk(a)
			}
		case *ast.SelectorExpr:
			walk(v.X)
		case *ast.IndexExpr:
			walk(v.X)
			walk(v.Index)
		}
	}
	walk(expr)
	return n
}
