// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rtype defines the scalar ctypes an Attribute may carry, and the
// runtime-facing encoding used for the bool ctype in emitted code.
//
// CType mirrors the "thin named wrapper over a primitive" idiom of
// goki.dev/gosl/v2's sltype.Float (a type alias over float32); Bool mirrors
// goki.dev/gosl/v2's slbool.Bool, an int32-backed tri-state that avoids the
// native bool type's alignment surprises in a target imperative dialect.
package rtype

import "fmt"

// CType is the scalar type an Attribute is classified as, per §4.2 rule 2.
type CType int

const (
	Double CType = iota
	Int
	Boolean
)

func (c CType) String() string {
	switch c {
	case Double:
		return "double"
	case Int:
		return "int"
	case Boolean:
		return "bool"
	default:
		return "double"
	}
}

// ZeroLiteral renders the default literal for a ctype, used when no
// explicit init is given (§4.2 rule 3).
func (c CType) ZeroLiteral() string {
	switch c {
	case Int:
		return "0"
	case Boolean:
		return "false"
	default:
		return "0.0"
	}
}

// Bool is an int32-backed two-state boolean (False, True), the runtime encoding for Boolean
// attributes in emitted target-dialect code. Modeled directly on
// slbool.Bool: an int32 obeys 4-byte alignment and sidesteps HLSL's
// lack of a native bool storage type on some backends.
type Bool int32

const (
	False Bool = 0
	True  Bool = 1
)

func (b *Bool) IsTrue() bool  { return *b == True }
func (b *Bool) IsFalse() bool { return *b == False }

func (b *Bool) SetBool(v bool) { *b = FromBool(v) }

func (b Bool) String() string {
	if b == True {
		return "true"
	}
	return "false"
}

// FromBool converts a native bool to the Bool encoding.
func FromBool(v bool) Bool {
	if v {
		return True
	}
	return False
}

// ParseCType classifies a flag set into a CType per §4.2 rule 2: "int" if
// flag int, "bool" if flag bool, otherwise double. Both flags present is
// IncompatibleFlags, reported by the caller (the classifier), not here.
func ParseCType(hasInt, hasBool bool) (CType, error) {
	if hasInt && hasBool {
		return Double, fmt.Errorf("int and bool flags are mutually exclusive")
	}
	if hasInt {
		return Int, nil
	}
	if hasBool {
		return Boolean, nil
	}
	return Double, nil
}
