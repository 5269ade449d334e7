// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package synexpr

// SymbolTable is the view the Expression Analyzer needs of the
// in-progress Description: which names are attributes, targets, random
// draws, or user functions, and which attributes are in the coupled-ODE
// set (implicit/midpoint), so that Analyze can detect cross-references
// that must defer to §4.4's solver.
type SymbolTable interface {
	HasAttribute(name string) bool
	IsTarget(name string) bool
	IsRandomDraw(name string) bool
	IsFunction(name string) bool
	IsCoupled(name string) bool // true if name's method is implicit or midpoint
}
