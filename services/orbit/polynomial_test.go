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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewIntPolynomial_TrimsTrailingZeros verifies canonical form.
func TestNewIntPolynomial_TrimsTrailingZeros(t *testing.T) {
	p := NewIntPolynomial([]int64{1, -3, 1, 0, 0})
	assert.Equal(t, 2, p.Degree())
	assert.Equal(t, []int64{1, -3, 1}, p.Coeffs())

	zero := NewIntPolynomial([]int64{0, 0})
	assert.True(t, zero.IsZero())
	assert.Equal(t, -1, zero.Degree())
}

// TestNewIntPolynomial_CopiesInput verifies the caller's slice is not
// aliased.
func TestNewIntPolynomial_CopiesInput(t *testing.T) {
	src := []int64{1, 2}
	p := NewIntPolynomial(src)
	src[0] = 99
	assert.Equal(t, int64(1), p.Coeff(0), "mutation of the source slice must not leak in")
}

// TestIntPolynomial_Predicates covers IsZero, IsOne, and Coeff bounds.
func TestIntPolynomial_Predicates(t *testing.T) {
	assert.True(t, ZeroPolynomial().IsZero())
	assert.True(t, OnePolynomial().IsOne())
	assert.False(t, OnePolynomial().IsZero())

	p := NewIntPolynomial([]int64{-2, 1})
	assert.Equal(t, int64(-2), p.Coeff(0))
	assert.Equal(t, int64(1), p.Coeff(1))
	assert.Equal(t, int64(0), p.Coeff(2), "coefficients beyond the degree are zero")
	assert.Equal(t, int64(0), p.Coeff(-1))
	assert.Equal(t, int64(1), p.LeadingCoeff())
	assert.Equal(t, int64(0), ZeroPolynomial().LeadingCoeff())
}

// TestIntPolynomial_Equal verifies coefficient-wise equality.
func TestIntPolynomial_Equal(t *testing.T) {
	a := NewIntPolynomial([]int64{1, -3, 1})
	b := NewIntPolynomial([]int64{1, -3, 1, 0})
	c := NewIntPolynomial([]int64{1, -3, 2})

	assert.True(t, a.Equal(b), "trimming makes trailing zeros irrelevant")
	assert.False(t, a.Equal(c))
	assert.True(t, ZeroPolynomial().Equal(NewIntPolynomial(nil)))
}

// TestIntPolynomial_CoeffAggregates covers MaxAbsCoeff and SumAbsCoeff.
func TestIntPolynomial_CoeffAggregates(t *testing.T) {
	p := NewIntPolynomial([]int64{-7, 3, 1})
	assert.Equal(t, int64(7), p.MaxAbsCoeff())
	assert.Equal(t, int64(11), p.SumAbsCoeff())
	assert.Equal(t, int64(0), ZeroPolynomial().MaxAbsCoeff())
}

// TestIntPolynomial_Eval verifies Horner evaluation.
func TestIntPolynomial_Eval(t *testing.T) {
	// p(x) = x^2 - 3x + 1; p(2) = -1, p(0) = 1.
	p := NewIntPolynomial([]int64{1, -3, 1})

	got, _ := p.Eval(big.NewFloat(2), 64).Float64()
	assert.InDelta(t, -1.0, got, 1e-12)

	got, _ = p.Eval(big.NewFloat(0), 64).Float64()
	assert.InDelta(t, 1.0, got, 1e-12)

	got, _ = ZeroPolynomial().Eval(big.NewFloat(5), 64).Float64()
	assert.Zero(t, got)
}

// TestIntPolynomial_EvalDerivative verifies p'(x) evaluation.
func TestIntPolynomial_EvalDerivative(t *testing.T) {
	// p(x) = x^2 - 3x + 1; p'(x) = 2x - 3; p'(2) = 1.
	p := NewIntPolynomial([]int64{1, -3, 1})
	got, _ := p.EvalDerivative(big.NewFloat(2), 64).Float64()
	assert.InDelta(t, 1.0, got, 1e-12)

	// Constants have zero derivative.
	got, _ = OnePolynomial().EvalDerivative(big.NewFloat(2), 64).Float64()
	assert.Zero(t, got)
}

// TestIntPolynomial_MulX verifies the degree shift.
func TestIntPolynomial_MulX(t *testing.T) {
	p := NewIntPolynomial([]int64{-1, 1}) // x - 1
	xp := p.MulX()                        // x^2 - x
	assert.Equal(t, []int64{0, -1, 1}, xp.Coeffs())
	assert.True(t, ZeroPolynomial().MulX().IsZero())
}

// TestNextIterate_NoReduction covers the case below the modulus degree.
func TestNextIterate_NoReduction(t *testing.T) {
	minPoly := NewIntPolynomial([]int64{1, -3, 1}) // x^2 - 3x + 1

	next, ok := OnePolynomial().NextIterate(2, minPoly, 1<<62)
	require.True(t, ok)
	assert.Equal(t, []int64{-2, 1}, next.Coeffs(), "x*1 - 2 = x - 2")
}

// TestNextIterate_Reduction covers the monic modular reduction.
func TestNextIterate_Reduction(t *testing.T) {
	minPoly := NewIntPolynomial([]int64{1, -3, 1})
	prev := NewIntPolynomial([]int64{-2, 1}) // x - 2

	// x*(x-2) - 1 = x^2 - 2x - 1, reduced by x^2 - 3x + 1 gives x - 2.
	next, ok := prev.NextIterate(1, minPoly, 1<<62)
	require.True(t, ok)
	assert.True(t, next.Equal(prev))
}

// TestNextIterate_ReachesZero covers the simple Parry terminal algebra.
func TestNextIterate_ReachesZero(t *testing.T) {
	minPoly := NewIntPolynomial([]int64{-1, -1, 1}) // x^2 - x - 1
	prev := NewIntPolynomial([]int64{-1, 1})        // x - 1

	// x*(x-1) - 1 = x^2 - x - 1, which is the modulus itself.
	next, ok := prev.NextIterate(1, minPoly, 1<<62)
	require.True(t, ok)
	assert.True(t, next.IsZero())
}

// TestNextIterate_CeilingExceeded verifies the per-coefficient guard.
func TestNextIterate_CeilingExceeded(t *testing.T) {
	minPoly := NewIntPolynomial([]int64{1, -3, 1})

	_, ok := OnePolynomial().NextIterate(2, minPoly, 1)
	assert.False(t, ok, "coefficient -2 exceeds ceiling 1")
}

// TestNextIterate_ArithmeticOverflow verifies that forming lead*minPoly
// near the int64 boundary fails closed instead of wrapping.
func TestNextIterate_ArithmeticOverflow(t *testing.T) {
	minPoly := NewIntPolynomial([]int64{1, -3, 1})
	huge := NewIntPolynomial([]int64{0, 1 << 62})

	_, ok := huge.NextIterate(0, minPoly, math.MaxInt64)
	assert.False(t, ok, "-3 * 2^62 does not fit int64")
}

// TestIntPolynomial_String verifies the descending rendering.
func TestIntPolynomial_String(t *testing.T) {
	tests := []struct {
		name   string
		coeffs []int64
		want   string
	}{
		{"zero", nil, "0"},
		{"constant", []int64{5}, "5"},
		{"monic quadratic", []int64{1, -3, 1}, "x^2 - 3x + 1"},
		{"negative lead", []int64{0, 2, -1}, "-x^2 + 2x"},
		{"sparse", []int64{-1, 0, 0, 1}, "x^3 - 1"},
		{"linear", []int64{-2, 1}, "x - 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewIntPolynomial(tt.coeffs).String())
		})
	}
}

// TestCheckedArithmetic covers the overflow-guarded helpers.
func TestCheckedArithmetic(t *testing.T) {
	r, ok := mulInt64(1<<31, 1<<31)
	assert.True(t, ok)
	assert.Equal(t, int64(1)<<62, r)

	_, ok = mulInt64(1<<32, 1<<32)
	assert.False(t, ok)

	_, ok = mulInt64(math.MinInt64, -1)
	assert.False(t, ok)

	r, ok = subInt64(5, 7)
	assert.True(t, ok)
	assert.Equal(t, int64(-2), r)

	_, ok = subInt64(math.MinInt64, 1)
	assert.False(t, ok)

	_, ok = subInt64(math.MaxInt64, -1)
	assert.False(t, ok)
}
