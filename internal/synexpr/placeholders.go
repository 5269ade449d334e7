// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synexpr

import (
	"fmt"
	"go/ast"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

var reductionOps = map[string]bool{"mean": true, "max": true, "min": true, "norm1": true, "norm2": true}

// iteTriple is one extracted "if cond then a else b" conditional; Go has
// no ternary expression, so this extraction happens on raw text before
// parser.ParseExpr ever sees the equation.
type iteTriple struct {
	cond, then, els string
}

// extractITE recognizes text that is as a whole an "if ... then ... else
// ..." conditional (a conditional nested inside a larger expression is
// not found) and replaces it with a bare placeholder identifier, returning the
// replacement text and the extracted triple (ok=false if none present).
// Only one top-level conditional per equation is supported, matching the
// common case in the declaration surface of §6.
func extractITE(text string) (rewritten, placeholder string, triple iteTriple, ok bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "if ") {
		return text, "", iteTriple{}, false
	}
	rest := trimmed[3:]
	thenIdx := topLevelIndex(rest, "then")
	if thenIdx < 0 {
		return text, "", iteTriple{}, false
	}
	cond := strings.TrimSpace(rest[:thenIdx])
	rest2 := rest[thenIdx+len("then"):]
	elseIdx := topLevelIndex(rest2, "else")
	if elseIdx < 0 {
		return text, "", iteTriple{}, false
	}
	then := strings.TrimSpace(rest2[:elseIdx])
	els := strings.TrimSpace(rest2[elseIdx+len("else"):])

	placeholder = "__ite0__"
	return placeholder, placeholder, iteTriple{cond: cond, then: then, els: els}, true
}

// topLevelIndex finds the index of word as a whole-word occurrence at
// paren depth 0.
func topLevelIndex(s, word string) int {
	depth := 0
	for i := 0; i+len(word) <= len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && s[i:i+len(word)] == word {
			boundaryBefore := i == 0 || !isIdentByte(s[i-1])
			boundaryAfter := i+len(word) == len(s) || !isIdentByte(s[i+len(word)])
			if boundaryBefore && boundaryAfter {
				return i
			}
		}
	}
	return -1
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// substitution is one special-term replacement discovered while walking
// the parsed expression: the placeholder identifier installed in the
// tree, and its final target-dialect binding recorded into `untouched`.
type substitution struct {
	placeholder string
	untouched   string
	dependency  string // name added to the dependency set; "" if none
}

// substituteSpecialTerms rewrites expr in place (via astutil.Apply),
// replacing sum(t), the global reductions, pre./post. selectors, and bare
// random-draw identifiers with fresh placeholder identifiers. It returns
// the rewritten expression and the list of substitutions performed.
func substituteSpecialTerms(expr ast.Expr, table SymbolTable) (ast.Expr, []substitution) {
	var subs []substitution
	n := 0
	fresh := func(prefix string) string {
		n++
		return fmt.Sprintf("__%s_%d__", prefix, n)
	}

	root := astutil.Apply(expr, func(c *astutil.Cursor) bool {
		node := c.Node()
		switch e := node.(type) {
		case *ast.CallExpr:
			if id, ok := e.Fun.(*ast.Ident); ok {
				if id.Name == "sum" && len(e.Args) == 1 {
					if arg, ok := e.Args[0].(*ast.Ident); ok {
						ph := "__sum_" + arg.Name + "__"
						subs = append(subs, substitution{
							placeholder: ph,
							untouched:   fmt.Sprintf("_sum_%s%%(local_index)s", arg.Name),
							dependency:  arg.Name,
						})
						c.Replace(ast.NewIdent(ph))
						return false
					}
				}
				if reductionOps[id.Name] && len(e.Args) == 1 {
					if arg, ok := e.Args[0].(*ast.Ident); ok {
						ph := fresh(id.Name)
						subs = append(subs, substitution{
							placeholder: ph,
							untouched:   fmt.Sprintf("_%s_%s%%(global_index)s", id.Name, arg.Name),
							dependency:  "__global_op_" + id.Name + "_" + arg.Name,
						})
						c.Replace(ast.NewIdent(ph))
						return false
					}
				}
				if table.IsRandomDraw(id.Name) && len(e.Args) == 0 {
					ph := fresh("rand")
					subs = append(subs, substitution{
						placeholder: ph,
						untouched:   fmt.Sprintf("_rand_%s%%(local_index)s", id.Name),
						dependency:  id.Name,
					})
					c.Replace(ast.NewIdent(ph))
					return false
				}
			}
		case *ast.SelectorExpr:
			if base, ok := e.X.(*ast.Ident); ok && (base.Name == "pre" || base.Name == "post") {
				ph := fmt.Sprintf("__%s_%s__", base.Name, e.Sel.Name)
				idx := "local_index"
				if base.Name == "pre" {
					idx = "pre_index"
				}
				subs = append(subs, substitution{
					placeholder: ph,
					untouched:   fmt.Sprintf("%s_%s%%(%s)s", base.Name, e.Sel.Name, idx),
					dependency:  base.Name + "." + e.Sel.Name,
				})
				c.Replace(ast.NewIdent(ph))
				return false
			}
		case *ast.Ident:
			if table.IsRandomDraw(e.Name) {
				ph := fresh("rand")
				subs = append(subs, substitution{
					placeholder: ph,
					untouched:   fmt.Sprintf("_rand_%s%%(local_index)s", e.Name),
					dependency:  e.Name,
				})
				c.Replace(ast.NewIdent(ph))
				return false
			}
		}
		return true
	}, nil)

	return root.(ast.Expr), subs
}
