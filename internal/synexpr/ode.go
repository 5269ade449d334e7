// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synexpr

import "strings"

// odeForm is the recognized shape of one equation's left-hand side, per
// §4.3 step 2.
type odeForm struct {
	isODE bool
	name  string // the variable being defined
	tau   string // coefficient text; "1" when absent
	leak  bool   // true when the LHS carries a trailing "+ name" leak term
}

// RecognizeLHS classifies an equation's left-hand side text into one of:
//   - "tau * d<name>/dt + <name>"  (leaky ODE, the canonical form of §3)
//   - "tau * d<name>/dt"           (scaled ODE, no leak term)
//   - "d<name>/dt"                 (bare ODE, tau == 1)
//   - "<name>"                     (direct assignment, not an ODE)
//
// It is exported so the Attribute Classifier (§4.2) can recover the name
// being defined without duplicating this grammar.
func RecognizeLHS(lhs string) (name string, isODE bool, err error) {
	f, err := recognizeLHS(lhs)
	if err != nil {
		return "", false, err
	}
	return f.name, f.isODE, nil
}

func recognizeLHS(lhs string) (odeForm, error) {
	lhs = strings.TrimSpace(lhs)

	slash := strings.Index(lhs, "/dt")
	if slash < 0 {
		return odeForm{isODE: false, name: lhs}, nil
	}

	// walk back over the identifier that precedes "/dt"; it must begin
	// with the derivative's 'd'
	end := slash
	for end > 0 && lhs[end-1] == ' ' {
		end--
	}
	dPos := end
	for dPos > 0 && isIdentByte(lhs[dPos-1]) {
		dPos--
	}
	if dPos == end || lhs[dPos] != 'd' {
		return odeForm{}, &MalformedLHS{LHS: lhs, Reason: "found '/dt' with no preceding 'd<name>'"}
	}
	name := strings.TrimSpace(lhs[dPos+1 : slash])
	if name == "" || !isIdent(name) {
		return odeForm{}, &MalformedLHS{LHS: lhs, Reason: "invalid derivative variable name"}
	}

	before := strings.TrimSpace(lhs[:dPos])
	after := strings.TrimSpace(lhs[slash+3:])

	tau := "1"
	if before != "" {
		before = strings.TrimSuffix(before, "*")
		before = strings.TrimSpace(before)
		if before == "" {
			return odeForm{}, &MalformedLHS{LHS: lhs, Reason: "expected '<coef> * d<name>/dt'"}
		}
		tau = before
	}

	leak := false
	if after != "" {
		after = strings.TrimPrefix(after, "+")
		after = strings.TrimSpace(after)
		if after != name {
			return odeForm{}, &MalformedLHS{LHS: lhs, Reason: "expected trailing '+ " + name + "' leak term"}
		}
		leak = true
	}

	return odeForm{isODE: true, name: name, tau: tau, leak: leak}, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

// MalformedLHS reports an equation left-hand side that looks like it is
// attempting the ODE notation but does not match either recognized form.
type MalformedLHS struct {
	LHS    string
	Reason string
}

func (e *MalformedLHS) Error() string {
	return "malformed equation left-hand side " + "\"" + e.LHS + "\": " + e.Reason
}
