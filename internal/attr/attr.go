// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package attr implements the §4.2 Attribute Classifier: given Lexical
// Extractor output and a caller-supplied table of named literal values, it
// produces the ordered list of Attributes for one declaration block
// (parameters, then separately variables).
package attr

import (
	"strconv"
	"strings"

	"github.com/nrnforge/netgen/internal/desc"
	"github.com/nrnforge/netgen/internal/lex"
	"github.com/nrnforge/netgen/internal/rdist"
	"github.com/nrnforge/netgen/internal/rtype"
	"github.com/nrnforge/netgen/internal/synexpr"
)

// recognizedFlags is the set of flag names the classifier understands.
// Anything outside this set is UnknownFlag.
var recognizedFlags = map[string]bool{
	"population": true, "postsynaptic": true, "projection": true,
	"int": true, "bool": true,
	"init": true, "min": true, "max": true,
	"implicit": true, "midpoint": true, "exponential": true, "exact": true, "explicit": true,
	"unless_refractory": true,
	"pruning":           true, "creating": true,
}

// Classify builds Attributes for one declaration block (either all
// parameters or all variables) of the given object type. extra resolves
// literal values referenced from flags by name (e.g. a shared constant
// pulled from an outer configuration).
func Classify(recs []lex.Record, kind desc.Kind, object desc.ObjectType, extra map[string]string) ([]*desc.Attribute, error) {
	seen := map[string]bool{}
	out := make([]*desc.Attribute, 0, len(recs))
	for _, r := range recs {
		a, err := classifyOne(r, kind, object, extra)
		if err != nil {
			return nil, err
		}
		if seen[a.Name] {
			return nil, desc.Errf(desc.DuplicateAttribute, a.Name, "attribute %q declared more than once", a.Name)
		}
		seen[a.Name] = true
		out = append(out, a)
	}
	return out, nil
}

func classifyOne(r lex.Record, kind desc.Kind, object desc.ObjectType, extra map[string]string) (*desc.Attribute, error) {
	name := r.LHS
	if kind == desc.Variable {
		// equations may be given as "tau * dx/dt + x" or "dx/dt"; recover
		// the name being defined via the same ODE grammar the Expression
		// Analyzer uses, so there is one source of truth for it.
		n, _, err := synexpr.RecognizeLHS(r.LHS)
		if err != nil {
			return nil, desc.Errf(desc.MalformedDeclaration, r.LHS, "%s", err.Error())
		}
		name = n
	}

	hasInt, hasBool := false, false
	var initFlag, minFlag, maxFlag string
	var hasInitFlag, hasMinFlag, hasMaxFlag bool
	var rawFlags []string
	locality := desc.Local

	for _, f := range r.Flags {
		rawFlags = append(rawFlags, f.Name)
		if !recognizedFlags[f.Name] {
			return nil, desc.Errf(desc.UnknownFlag, f.Name, "unrecognized flag %q on attribute %q", f.Name, name)
		}
		switch f.Name {
		case "population":
			if object == desc.Neuron {
				locality = desc.Global
			}
		case "postsynaptic", "projection":
			if object == desc.Synapse {
				locality = desc.Global
			}
		case "int":
			hasInt = true
		case "bool":
			hasBool = true
		case "init":
			initFlag, hasInitFlag = resolveValue(f.Value, extra), true
		case "min":
			minFlag, hasMinFlag = resolveValue(f.Value, extra), true
		case "max":
			maxFlag, hasMaxFlag = resolveValue(f.Value, extra), true
		}
	}

	ctype, err := rtype.ParseCType(hasInt, hasBool)
	if err != nil {
		return nil, desc.Errf(desc.IncompatibleFlags, name, "%s", err.Error())
	}

	a := &desc.Attribute{
		Name:     name,
		Kind:     kind,
		Locality: locality,
		CType:    ctype,
		Flags:    rawFlags,
	}

	if hasMinFlag {
		a.Bounds.Min = minFlag
	}
	if hasMaxFlag {
		a.Bounds.Max = maxFlag
	}

	// init resolution, §4.2 rule 3 and rule 4.
	switch {
	case hasInitFlag:
		a.InitVal = desc.Init{Literal: initFlag}
	case kind == desc.Parameter:
		rhs := strings.TrimSpace(r.RHS)
		if distName, distArgs, ok := parseDistribution(rhs); ok {
			a.InitVal = desc.Init{Dist: distName, DistArgs: distArgs}
		} else if isLiteral(rhs) {
			a.InitVal = desc.Init{Literal: rhs}
		} else {
			a.InitVal = desc.Init{Literal: ctype.ZeroLiteral()}
		}
	default: // variable: RHS is the equation, not an init literal
		a.InitVal = desc.Init{Literal: ctype.ZeroLiteral()}
	}

	if kind == desc.Variable {
		eqText := r.RHS
		if eqText == "" {
			eqText = r.LHS
		}
		a.Eq = &desc.Equation{RawLHS: r.LHS, Text: eqText}
	}

	return a, nil
}

func resolveValue(raw string, extra map[string]string) string {
	raw = strings.Trim(raw, "()")
	raw = strings.TrimSpace(raw)
	if v, ok := extra[raw]; ok {
		return v
	}
	return raw
}

func isLiteral(s string) bool {
	if s == "" {
		return false
	}
	if s == "true" || s == "false" {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true
	}
	return false
}

// parseDistribution recognizes "Name(a, b, ...)" where Name is a
// registered random distribution (§4.2 rule 4).
func parseDistribution(rhs string) (name string, args []string, ok bool) {
	open := strings.IndexByte(rhs, '(')
	if open < 0 || !strings.HasSuffix(rhs, ")") {
		return "", nil, false
	}
	name = strings.TrimSpace(rhs[:open])
	if _, known := rdist.Lookup(name); !known {
		return "", nil, false
	}
	inner := rhs[open+1 : len(rhs)-1]
	parts := strings.Split(inner, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return name, parts, true
}
