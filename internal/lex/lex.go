// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lex implements the §4.1 Lexical Extractor: it splits a
// multi-line parameter or equation declaration block into one Record per
// statement, separating the left-hand side, right-hand side, and a
// trailing flag list introduced by a colon.
//
// The line-oriented scanning style (byte-slice prefix/suffix checks driven
// by a small state machine) is carried over from goki.dev/gosl/v2's
// extract.go, which splits a Go source file into //gosl-tagged regions the
// same way; here the regions are statements within one declaration block
// rather than comment-delimited code blocks.
package lex

import (
	"strings"
)

// Record is one parsed statement: `lhs = rhs : flag, flag=value, ...`.
type Record struct {
	LHS   string
	RHS   string
	Flags []Flag
	Raw   string // the original statement text, for error spans
}

// Flag is one trailing tag: a bare identifier, or name=value.
type Flag struct {
	Name  string
	Value string // empty for a bare flag
	HasValue bool
}

// Mode selects whether a bare statement (no '=') is acceptable.
type Mode int

const (
	// RequireEquals rejects a statement with no top-level '='.
	RequireEquals Mode = iota
	// AllowBare accepts a statement with no '=' (lhs is the whole text,
	// rhs is empty) -- used for e.g. a spike condition.
	AllowBare
)

// Extract splits a text block into Records. Statements are separated by
// newlines or semicolons; blank lines and lines beginning with "#" or "//"
// are discarded.
func Extract(block string, mode Mode) ([]Record, error) {
	stmts, err := splitStatements(block)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(stmts))
	for _, s := range stmts {
		r, err := parseStatement(s, mode)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, nil
}

// splitStatements breaks block into individual statement texts on
// newlines and semicolons, tracking paren/bracket balance so that a flag
// value like `min=(v_rest)` or a call like `sum(exc)` does not get split
// mid-expression, and reporting MalformedDeclaration on an unbalanced
// block.
func splitStatements(block string) ([]string, error) {
	var stmts []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" && !strings.HasPrefix(s, "#") && !strings.HasPrefix(s, "//") {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}
	for _, r := range block {
		switch r {
		case '(', '[':
			depth++
			cur.WriteRune(r)
		case ')', ']':
			depth--
			if depth < 0 {
				return nil, &malformed{text: block, msg: "unbalanced delimiter"}
			}
			cur.WriteRune(r)
		case '\n', ';':
			if depth == 0 {
				flush()
			} else {
				cur.WriteRune(' ')
			}
		default:
			cur.WriteRune(r)
		}
	}
	if depth != 0 {
		return nil, &malformed{text: block, msg: "unbalanced delimiter"}
	}
	flush()
	return stmts, nil
}

// parseStatement splits one statement into lhs, rhs, and flags.
func parseStatement(stmt string, mode Mode) (Record, error) {
	body, flagStr, hasFlags := splitTrailingFlags(stmt)
	flags, err := parseFlags(flagStr)
	if err != nil {
		return Record{}, err
	}
	_ = hasFlags

	eqIdx := topLevelEquals(body)
	if eqIdx < 0 {
		if mode == RequireEquals {
			return Record{}, &malformed{text: stmt, msg: "statement has no top-level '=' "}
		}
		return Record{LHS: strings.TrimSpace(body), Flags: flags, Raw: stmt}, nil
	}
	lhs := strings.TrimSpace(body[:eqIdx])
	rhs := strings.TrimSpace(body[eqIdx+1:])
	return Record{LHS: lhs, RHS: rhs, Flags: flags, Raw: stmt}, nil
}

// splitTrailingFlags finds the top-level ':' introducing the flag list,
// if any, and returns the body before it and the flag text after it.
func splitTrailingFlags(stmt string) (body, flagStr string, hasFlags bool) {
	depth := 0
	for i, r := range stmt {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ':':
			if depth == 0 {
				return stmt[:i], stmt[i+1:], true
			}
		}
	}
	return stmt, "", false
}

// topLevelEquals finds the index of an '=' not nested in parens/brackets
// and not part of '==', '!=', '<=', '>='.
func topLevelEquals(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(s) && s[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && (s[i-1] == '!' || s[i-1] == '<' || s[i-1] == '>') {
				continue
			}
			return i
		}
	}
	return -1
}

func parseFlags(s string) ([]Flag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts, err := splitTopLevel(s, ',')
	if err != nil {
		return nil, err
	}
	flags := make([]Flag, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if idx := strings.IndexByte(p, '='); idx >= 0 {
			flags = append(flags, Flag{Name: strings.TrimSpace(p[:idx]), Value: strings.TrimSpace(p[idx+1:]), HasValue: true})
		} else {
			flags = append(flags, Flag{Name: p})
		}
	}
	return flags, nil
}

// splitTopLevel splits s on sep, ignoring seps nested inside parens.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var parts []string
	var cur strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '(', '[':
			depth++
			cur.WriteByte(c)
		case ')', ']':
			depth--
			if depth < 0 {
				return nil, &malformed{text: s, msg: "unbalanced delimiter"}
			}
			cur.WriteByte(c)
		default:
			if c == sep && depth == 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			} else {
				cur.WriteByte(c)
			}
		}
	}
	if depth != 0 {
		return nil, &malformed{text: s, msg: "unbalanced delimiter"}
	}
	parts = append(parts, cur.String())
	return parts, nil
}

// malformed is the lex package's local error; package pipeline converts
// it to desc.Error with the MalformedDeclaration kind to keep this package
// free of a dependency on desc.
type malformed struct {
	text string
	msg  string
}

func (e *malformed) Error() string { return e.msg + ": " + e.text }

// IsMalformed reports whether err was produced by this package's internal
// balance checks, so callers can classify it as MalformedDeclaration.
func IsMalformed(err error) bool {
	_, ok := err.(*malformed)
	return ok
}
