// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synexpr

import (
	"go/ast"
	"go/parser"
	"go/token"
)

// parseSubExpr parses a small expression fragment (e.g. a tau coefficient
// text recovered from an ODE left-hand side) using the same
// parser.ParseExpr entry point Analyze uses for full right-hand sides.
func parseSubExpr(text string) (ast.Expr, error) {
	return parser.ParseExpr(text)
}

func binDiv(x, y ast.Expr) ast.Expr {
	return &ast.BinaryExpr{X: x, Op: token.QUO, Y: y}
}

func binMinus(x, y ast.Expr) ast.Expr {
	return &ast.BinaryExpr{X: x, Op: token.SUB, Y: y}
}
