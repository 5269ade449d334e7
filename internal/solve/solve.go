// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solve implements the §4.4 Coupled-ODE Solver: given the subset
// of a step's variables whose discretization method is implicit or
// midpoint and whose right-hand sides reference one another, it builds
// the linear system A·x_{n+1} = B·x_n + c and inverts it, producing one
// emitted snippet per variable that advances the whole set atomically.
//
// dt and every coefficient may themselves be runtime expressions (a time
// step chosen by the caller, synaptic parameters, other non-coupled
// attributes), so the inversion is carried out symbolically as text
// rather than numerically: gonum.org/v1/gonum/mat is used instead in the
// package's tests, to evaluate the generated formulas at concrete
// parameter values and check them against a direct numeric
// (I - dt·J)⁻¹ reference (Testable Property 7).
package solve

import (
	"fmt"
	"math"
	"strconv"

	"github.com/nrnforge/netgen/internal/desc"
)

// singularProbeSteps are the two step sizes used to decide whether a
// coupled block built entirely from literal coefficients is singular.
// The discrete system actually inverted is I - dt*A, not A itself, so
// checking det(A) == 0 (the continuous Jacobian) answers the wrong
// question: a singular A does not make I - dt*A singular for a generic
// dt, and a nonsingular A can still make I - dt*A singular at isolated
// step sizes. det(I - dt*A) equals 1 at dt == 0 for every A, so no
// literal A ever makes it the zero polynomial in dt; the two probes
// below only catch the case where both happen to land on roots of that
// polynomial, which is the closest a generation-time check (it never
// sees the caller's actual dt) can get to flagging a pathological
// coefficient set without rejecting well-conditioned ones.
var singularProbeSteps = [2]float64{1.0, 3.0}

// MaxCoupled is the implementation's fixed bound on the size of one
// coupled set (§4.4, §9 open question: "implementations may widen it but
// must surface TooManyCoupled rather than silently degrading").
const MaxCoupled = 8

// System is one coupled-ODE block: Names gives a fixed order; A[i][j] is
// the (already rendered) coefficient text of Names[j] in the
// right-hand-side reduction f_i = dNames[i]/dt; B[i] is the remaining,
// name-independent text.
type System struct {
	Names []string
	A     [][]string
	B     []string
}

// Solution maps each coupled variable to its final imperative update
// statement, emitted so that the whole block must execute as one unit:
// every statement reads only pre-step values (x_n) and assigns x_{n+1}.
type Solution struct {
	CPP map[string]string
}

// Solve inverts sys and returns one update statement per variable. The
// discrete-time system is x_{n+1} = (I - dt·A)⁻¹ · (x_n + dt·c).
func Solve(sys System) (*Solution, error) {
	n := len(sys.Names)
	if n > MaxCoupled {
		return nil, desc.Errf(desc.TooManyCoupled, fmt.Sprintf("%v", sys.Names),
			"coupled set of %d variables exceeds the implementation bound of %d", n, MaxCoupled)
	}
	if n == 0 {
		return &Solution{CPP: map[string]string{}}, nil
	}
	if n == 1 {
		return solveSingle(sys)
	}
	if n == 2 {
		return solvePair(sys)
	}
	return solveGeneral(sys)
}

func coeff(sys System, i, j int) string {
	c := sys.A[i][j]
	if c == "" {
		return "0.0"
	}
	return c
}

func rhsConst(sys System, i int) string {
	if sys.B[i] == "" {
		return "0.0"
	}
	return sys.B[i]
}

// parseLiteral reports whether s is a bare numeric literal (as opposed
// to an expression referencing a parameter or attribute name), used for
// the determinant check that can only be evaluated when every
// coefficient of the coupled pair is a compile-time constant.
func parseLiteral(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// pairDeterminantAt evaluates det(I - dt*A) for a literal 2x2 A at a
// concrete step size, mirroring the m00..m11/det construction solvePair
// renders as text.
func pairDeterminantAt(a00, a01, a10, a11, dt float64) float64 {
	m00 := 1.0 - dt*a00
	m01 := -dt * a01
	m10 := -dt * a10
	m11 := 1.0 - dt*a11
	return m00*m11 - m01*m10
}

// literalPairSingular reports whether a literal 2x2 coupling block looks
// singular by checking det(I - dt*A) at both singularProbeSteps, rather
// than det(A) (the continuous Jacobian, which is not the matrix being
// inverted).
func literalPairSingular(a00, a01, a10, a11 float64) bool {
	const eps = 1e-12
	for _, dt := range singularProbeSteps {
		if math.Abs(pairDeterminantAt(a00, a01, a10, a11, dt)) > eps {
			return false
		}
	}
	return true
}

// literalCoeffMatrix returns sys's n x n coefficient matrix as float64,
// or ok == false if any entry is not a bare numeric literal.
func literalCoeffMatrix(sys System, n int) ([][]float64, bool) {
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			f, ok := parseLiteral(coeff(sys, i, j))
			if !ok {
				return nil, false
			}
			out[i][j] = f
		}
	}
	return out, true
}

// generalDiscreteSingularAt runs the same Gauss-Jordan elimination
// solveGeneral performs, over float64 at a concrete step size, purely to
// check whether a pivot vanishes.
func generalDiscreteSingularAt(a [][]float64, dt float64) bool {
	n := len(a)
	m := make([][]float64, n)
	for i := range a {
		m[i] = make([]float64, n)
		for j := range a[i] {
			if i == j {
				m[i][j] = 1.0 - dt*a[i][j]
			} else {
				m[i][j] = -dt * a[i][j]
			}
		}
	}
	const eps = 1e-12
	for col := 0; col < n; col++ {
		if math.Abs(m[col][col]) < eps {
			return true
		}
		pivot := m[col][col]
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := m[row][col] / pivot
			for k := col; k < n; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}
	return false
}

// literalGeneralSingular mirrors literalPairSingular for 3+ variables:
// true only if the literal coefficient matrix eliminates to a vanishing
// pivot at every one of singularProbeSteps.
func literalGeneralSingular(a [][]float64) bool {
	for _, dt := range singularProbeSteps {
		if !generalDiscreteSingularAt(a, dt) {
			return false
		}
	}
	return true
}

func solveSingle(sys System) (*Solution, error) {
	name := sys.Names[0]
	a := coeff(sys, 0, 0)
	b := rhsConst(sys, 0)
	cpp := fmt.Sprintf("%s = (%s + dt * (%s)) / (1.0 - dt * (%s));", name, name, b, a)
	return &Solution{CPP: map[string]string{name: cpp}}, nil
}

// solvePair applies Cramer's rule to the explicit 2x2 case, the shape
// named by scenario S4: two implicit variables with cross-dependence,
// emitted as a single 2x2 solve block.
func solvePair(sys System) (*Solution, error) {
	x0, x1 := sys.Names[0], sys.Names[1]
	a00, a01 := coeff(sys, 0, 0), coeff(sys, 0, 1)
	a10, a11 := coeff(sys, 1, 0), coeff(sys, 1, 1)
	b0, b1 := rhsConst(sys, 0), rhsConst(sys, 1)

	if f00, ok1 := parseLiteral(a00); ok1 {
		if f01, ok2 := parseLiteral(a01); ok2 {
			if f10, ok3 := parseLiteral(a10); ok3 {
				if f11, ok4 := parseLiteral(a11); ok4 {
					if literalPairSingular(f00, f01, f10, f11) {
						return nil, desc.Errf(desc.SingularCoupling, fmt.Sprintf("%v", sys.Names),
							"coupling matrix for %s, %s is singular (I - dt*A is singular at every probed step size)", x0, x1)
					}
				}
			}
		}
	}

	m00 := fmt.Sprintf("(1.0 - dt * (%s))", a00)
	m01 := fmt.Sprintf("(-dt * (%s))", a01)
	m10 := fmt.Sprintf("(-dt * (%s))", a10)
	m11 := fmt.Sprintf("(1.0 - dt * (%s))", a11)

	det := fmt.Sprintf("(%s * %s - %s * %s)", m00, m11, m01, m10)

	r0 := fmt.Sprintf("(%s + dt * (%s))", x0, b0)
	r1 := fmt.Sprintf("(%s + dt * (%s))", x1, b1)

	num0 := fmt.Sprintf("(%s * %s - %s * %s)", m11, r0, m01, r1)
	num1 := fmt.Sprintf("(%s * %s - %s * %s)", m00, r1, m10, r0)

	cpp0 := fmt.Sprintf("double __coupled_det__ = %s;\n\t%s = %s / __coupled_det__;", det, x0, num0)
	cpp1 := fmt.Sprintf("%s = %s / __coupled_det__;", x1, num1)

	return &Solution{CPP: map[string]string{x0: cpp0, x1: cpp1}}, nil
}

// solveGeneral performs textual Gauss-Jordan elimination on the
// augmented matrix [I - dt·A | x_n + dt·c] for 3 to MaxCoupled
// variables, keeping every entry as a parenthesized symbolic expression
// rather than a floating-point number, since coefficients may reference
// other runtime parameters.
func solveGeneral(sys System) (*Solution, error) {
	n := len(sys.Names)
	m := make([][]string, n)
	aug := make([]string, n)
	for i := 0; i < n; i++ {
		m[i] = make([]string, n)
		for j := 0; j < n; j++ {
			if i == j {
				m[i][j] = fmt.Sprintf("(1.0 - dt * (%s))", coeff(sys, i, j))
			} else {
				m[i][j] = fmt.Sprintf("(-dt * (%s))", coeff(sys, i, j))
			}
		}
		aug[i] = fmt.Sprintf("(%s + dt * (%s))", sys.Names[i], rhsConst(sys, i))
	}

	if lits, ok := literalCoeffMatrix(sys, n); ok && literalGeneralSingular(lits) {
		return nil, desc.Errf(desc.SingularCoupling, fmt.Sprintf("%v", sys.Names),
			"coupled system of %d variables is singular (I - dt*A is singular at every probed step size)", n)
	}

	for col := 0; col < n; col++ {
		pivot := m[col][col]
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := fmt.Sprintf("(%s) / (%s)", m[row][col], pivot)
			for k := col; k < n; k++ {
				m[row][k] = fmt.Sprintf("(%s) - (%s) * (%s)", m[row][k], factor, m[col][k])
			}
			aug[row] = fmt.Sprintf("(%s) - (%s) * (%s)", aug[row], factor, aug[col])
		}
	}

	cpp := map[string]string{}
	for i := 0; i < n; i++ {
		cpp[sys.Names[i]] = fmt.Sprintf("%s = (%s) / (%s);", sys.Names[i], aug[i], m[i][i])
	}
	return &Solution{CPP: cpp}, nil
}
