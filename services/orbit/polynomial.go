// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// IntPolynomial
// -----------------------------------------------------------------------------

// IntPolynomial is an immutable integer-coefficient polynomial.
//
// Description:
//
//	Coefficients are stored in ascending order of degree and trimmed of
//	trailing zeros on construction, so equal polynomials have equal
//	representations and Equal can compare slices directly. The zero
//	polynomial is represented by an empty coefficient slice.
//
// Thread Safety: Immutable after construction; safe to share.
type IntPolynomial struct {
	// coeffs[i] is the coefficient of x^i. Trimmed: the last element is
	// nonzero, or the slice is empty for the zero polynomial.
	coeffs []int64
}

// NewIntPolynomial constructs a polynomial from ascending coefficients.
// The slice is copied and trailing zeros are trimmed.
func NewIntPolynomial(coeffs []int64) *IntPolynomial {
	n := len(coeffs)
	for n > 0 && coeffs[n-1] == 0 {
		n--
	}
	c := make([]int64, n)
	copy(c, coeffs[:n])
	return &IntPolynomial{coeffs: c}
}

// ZeroPolynomial returns the zero polynomial.
func ZeroPolynomial() *IntPolynomial {
	return &IntPolynomial{}
}

// OnePolynomial returns the constant polynomial 1, the virtual initial
// iterate B_0 of every orbit.
func OnePolynomial() *IntPolynomial {
	return &IntPolynomial{coeffs: []int64{1}}
}

// Degree returns the degree, or -1 for the zero polynomial.
func (p *IntPolynomial) Degree() int {
	return len(p.coeffs) - 1
}

// IsZero reports whether p is the zero polynomial.
func (p *IntPolynomial) IsZero() bool {
	return len(p.coeffs) == 0
}

// IsOne reports whether p is the constant polynomial 1.
func (p *IntPolynomial) IsOne() bool {
	return len(p.coeffs) == 1 && p.coeffs[0] == 1
}

// Coeff returns the coefficient of x^i, with 0 for i beyond the degree.
func (p *IntPolynomial) Coeff(i int) int64 {
	if i < 0 || i >= len(p.coeffs) {
		return 0
	}
	return p.coeffs[i]
}

// Coeffs returns a copy of the ascending coefficient slice.
func (p *IntPolynomial) Coeffs() []int64 {
	c := make([]int64, len(p.coeffs))
	copy(c, p.coeffs)
	return c
}

// LeadingCoeff returns the coefficient of the highest-degree term, or 0
// for the zero polynomial.
func (p *IntPolynomial) LeadingCoeff() int64 {
	if len(p.coeffs) == 0 {
		return 0
	}
	return p.coeffs[len(p.coeffs)-1]
}

// Equal reports coefficient-wise equality.
func (p *IntPolynomial) Equal(q *IntPolynomial) bool {
	if len(p.coeffs) != len(q.coeffs) {
		return false
	}
	for i, c := range p.coeffs {
		if q.coeffs[i] != c {
			return false
		}
	}
	return true
}

// MaxAbsCoeff returns the largest absolute coefficient value, or 0 for
// the zero polynomial. This drives the precision offset bookkeeping and
// the overflow guard.
func (p *IntPolynomial) MaxAbsCoeff() int64 {
	var m int64
	for _, c := range p.coeffs {
		if c < 0 {
			c = -c
		}
		if c > m {
			m = c
		}
	}
	return m
}

// SumAbsCoeff returns the sum of absolute coefficient values, the second
// component of the polynomial's GroupKey.
func (p *IntPolynomial) SumAbsCoeff() int64 {
	var s int64
	for _, c := range p.coeffs {
		if c < 0 {
			c = -c
		}
		s += c
	}
	return s
}

// Eval evaluates p at x by Horner's rule at the given binary precision.
func (p *IntPolynomial) Eval(x *big.Float, prec uint) *big.Float {
	result := new(big.Float).SetPrec(prec)
	term := new(big.Float).SetPrec(prec)
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		result.Mul(result, x)
		result.Add(result, term.SetInt64(p.coeffs[i]))
	}
	return result
}

// EvalDerivative evaluates p'(x) by Horner's rule at the given binary
// precision. Coefficient-times-index products are formed in big.Float so
// coefficients near the overflow ceiling stay exact.
func (p *IntPolynomial) EvalDerivative(x *big.Float, prec uint) *big.Float {
	result := new(big.Float).SetPrec(prec)
	term := new(big.Float).SetPrec(prec)
	scale := new(big.Float).SetPrec(prec)
	for i := len(p.coeffs) - 1; i >= 1; i-- {
		result.Mul(result, x)
		term.SetInt64(p.coeffs[i])
		term.Mul(term, scale.SetInt64(int64(i)))
		result.Add(result, term)
	}
	return result
}

// MulX returns x*p. Coefficients are unchanged, so no overflow check is
// needed; the result is one degree higher.
func (p *IntPolynomial) MulX() *IntPolynomial {
	if p.IsZero() {
		return ZeroPolynomial()
	}
	c := make([]int64, len(p.coeffs)+1)
	copy(c[1:], p.coeffs)
	return &IntPolynomial{coeffs: c}
}

// NextIterate applies the orbit recurrence B' = x*p - digit, reduced
// modulo the monic polynomial minPoly whenever the product reaches its
// degree.
//
// Inputs:
//
//	digit - The beta-expansion digit c_n to subtract.
//	minPoly - Monic minimal polynomial used for the modular reduction.
//	ceiling - Largest allowed absolute coefficient in the result.
//
// Outputs:
//
//	*IntPolynomial - The next iterate, degree < minPoly.Degree().
//	bool - False when any intermediate or final coefficient overflows
//	int64 arithmetic or exceeds ceiling (an OverflowCondition for the
//	caller); the polynomial result is nil in that case.
func (p *IntPolynomial) NextIterate(digit int64, minPoly *IntPolynomial, ceiling int64) (*IntPolynomial, bool) {
	deg := minPoly.Degree()

	coeffs := make([]int64, len(p.coeffs)+1)
	copy(coeffs[1:], p.coeffs)
	coeffs[0] = -digit

	// Reduce x*p once it reaches the modulus degree. minPoly is monic, so
	// subtracting lead*minPoly clears the top coefficient exactly.
	if len(coeffs)-1 == deg && coeffs[deg] != 0 {
		lead := coeffs[deg]
		for i := 0; i <= deg; i++ {
			prod, ok := mulInt64(lead, minPoly.Coeff(i))
			if !ok {
				return nil, false
			}
			coeffs[i], ok = subInt64(coeffs[i], prod)
			if !ok {
				return nil, false
			}
		}
	}

	for _, c := range coeffs {
		if c > ceiling || c < -ceiling {
			return nil, false
		}
	}
	return NewIntPolynomial(coeffs), true
}

// String renders the polynomial in conventional descending form, e.g.
// "x^2 - 3x + 1". The zero polynomial renders as "0".
func (p *IntPolynomial) String() string {
	if p.IsZero() {
		return "0"
	}
	var b strings.Builder
	first := true
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		c := p.coeffs[i]
		if c == 0 {
			continue
		}
		switch {
		case first && c < 0:
			b.WriteString("-")
		case !first && c < 0:
			b.WriteString(" - ")
		case !first:
			b.WriteString(" + ")
		}
		abs := c
		if abs < 0 {
			abs = -abs
		}
		if i == 0 || abs != 1 {
			b.WriteString(strconv.FormatInt(abs, 10))
		}
		switch {
		case i == 1:
			b.WriteString("x")
		case i > 1:
			b.WriteString("x^" + strconv.Itoa(i))
		}
		first = false
	}
	return b.String()
}

// -----------------------------------------------------------------------------
// Checked int64 arithmetic
// -----------------------------------------------------------------------------

// mulInt64 multiplies with overflow detection.
func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a == math.MinInt64 || b == math.MinInt64 {
		return 0, false
	}
	r := a * b
	if r/b != a {
		return 0, false
	}
	return r, true
}

// subInt64 subtracts with overflow detection.
func subInt64(a, b int64) (int64, bool) {
	r := a - b
	if (b > 0 && r > a) || (b < 0 && r < a) {
		return 0, false
	}
	return r, true
}
