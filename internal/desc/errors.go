// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package desc

import (
	"fmt"
	"go/token"
)

// ErrorKind identifies one entry of the generator's error taxonomy.
type ErrorKind int

const (
	MalformedDeclaration ErrorKind = iota
	DuplicateAttribute
	UnknownFlag
	IncompatibleFlags
	UnresolvedSymbol
	UnsupportedMethod
	NonLinearImplicit
	SingularCoupling
	TooManyCoupled
	MissingRequiredVariable
	ForbiddenVariable
	IllegalOperation
	StructuralPlasticityDisabled
	DependencyCycle
	EmitterBug
)

var kindNames = [...]string{
	"MalformedDeclaration",
	"DuplicateAttribute",
	"UnknownFlag",
	"IncompatibleFlags",
	"UnresolvedSymbol",
	"UnsupportedMethod",
	"NonLinearImplicit",
	"SingularCoupling",
	"TooManyCoupled",
	"MissingRequiredVariable",
	"ForbiddenVariable",
	"IllegalOperation",
	"StructuralPlasticityDisabled",
	"DependencyCycle",
	"EmitterBug",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "UnknownKind"
	}
	return kindNames[k]
}

// Error is the single error type returned across component boundaries.
// It carries the offending text span (when the input was parsed through
// go/parser and a token.Position is available) and a human-readable message.
type Error struct {
	Kind ErrorKind
	Span token.Position
	Text string // the offending source text, e.g. an equation or flag
	Msg  string
}

func (e *Error) Error() string {
	if e.Span.IsValid() {
		return fmt.Sprintf("%s: %s: %q (at %s)", e.Kind, e.Msg, e.Text, e.Span)
	}
	if e.Text != "" {
		return fmt.Sprintf("%s: %s: %q", e.Kind, e.Msg, e.Text)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Errf constructs an *Error with no span information.
func Errf(kind ErrorKind, text, format string, args ...any) *Error {
	return &Error{Kind: kind, Text: text, Msg: fmt.Sprintf(format, args...)}
}

// ErrfSpan constructs an *Error anchored to a parsed source position.
func ErrfSpan(kind ErrorKind, span token.Position, text, format string, args ...any) *Error {
	return &Error{Kind: kind, Span: span, Text: text, Msg: fmt.Sprintf(format, args...)}
}
