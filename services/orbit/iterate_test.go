// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestIterator builds an iterator with a fresh controller for one
// number.
func newTestIterator(t *testing.T, coeffs []int64, root string, startDPS, maxDPS int, ceiling int64) *OrbitIterator {
	t.Helper()
	beta, err := ParsePerronNumber(coeffs, root)
	require.NoError(t, err)
	ctrl := NewPrecisionController(beta.Degree(), 1, beta.Beta0Ceil(), startDPS, maxDPS)
	return NewOrbitIterator(beta, ctrl, ceiling)
}

// TestOrbitIterator_ResolvesPlainDigits walks the first two steps of
// x^2 - 3x + 1 (beta ~ 2.618): digits 2, 1 and a fixed iterate x - 2.
func TestOrbitIterator_ResolvesPlainDigits(t *testing.T) {
	it := newTestIterator(t, []int64{1, -3, 1}, "2.6180339887498948482", 32, 64, 1<<62)

	res, err := it.Step(OnePolynomial())
	require.NoError(t, err)
	require.Equal(t, StepOK, res.Outcome)
	assert.Equal(t, int64(2), res.Digit)
	assert.Equal(t, []int64{-2, 1}, res.Next.Coeffs())

	res, err = it.Step(res.Next)
	require.NoError(t, err)
	require.Equal(t, StepOK, res.Outcome)
	assert.Equal(t, int64(1), res.Digit)
	assert.Equal(t, []int64{-2, 1}, res.Next.Coeffs(), "x - 2 is a fixed point of the recurrence")
}

// TestOrbitIterator_SimpleTerminal verifies the golden ratio reaches the
// zero polynomial: xi is exactly 1 on the second step, which stays
// ambiguous to the ceiling and resolves by rounding.
func TestOrbitIterator_SimpleTerminal(t *testing.T) {
	it := newTestIterator(t, []int64{-1, -1, 1}, "1.6180339887498948482", 8, 64, 1<<62)

	res, err := it.Step(OnePolynomial())
	require.NoError(t, err)
	require.Equal(t, StepOK, res.Outcome)
	assert.Equal(t, int64(1), res.Digit)

	res, err = it.Step(res.Next)
	require.NoError(t, err)
	require.Equal(t, StepSimpleTerminal, res.Outcome)
	assert.Equal(t, int64(1), res.Digit)
	assert.True(t, res.Next.IsZero())
	assert.Positive(t, it.ctrl.Escalations(), "a true integer xi must exhaust escalation first")
}

// TestOrbitIterator_PrecisionFailed verifies a genuinely unresolvable
// digit at a tiny precision ceiling. With beta = 2 + sqrt(3) and one
// decimal digit of tolerance, the second step's fractional part lands
// inside eta and the rounded iterate is nonzero.
func TestOrbitIterator_PrecisionFailed(t *testing.T) {
	it := newTestIterator(t, []int64{1, -4, 1}, "3.7320508075688772935", 1, 1, 1<<62)

	res, err := it.Step(OnePolynomial())
	require.NoError(t, err)
	require.Equal(t, StepOK, res.Outcome)
	assert.Equal(t, int64(3), res.Digit)

	res, err = it.Step(res.Next)
	require.NoError(t, err)
	assert.Equal(t, StepPrecisionFailed, res.Outcome)
}

// TestOrbitIterator_EntryGuard verifies an oversized incoming iterate is
// rejected before any arithmetic.
func TestOrbitIterator_EntryGuard(t *testing.T) {
	it := newTestIterator(t, []int64{1, -3, 1}, "2.6180339887498948482", 32, 64, 10)

	res, err := it.Step(NewIntPolynomial([]int64{11, 1}))
	require.NoError(t, err)
	assert.Equal(t, StepOverflowed, res.Outcome)
}

// TestOrbitIterator_OverflowOnNextIterate verifies a ceiling violation
// while forming the next iterate.
func TestOrbitIterator_OverflowOnNextIterate(t *testing.T) {
	// First digit is 2, so B_1 = x - 2 exceeds a ceiling of 1.
	it := newTestIterator(t, []int64{1, -3, 1}, "2.6180339887498948482", 32, 64, 1)

	res, err := it.Step(OnePolynomial())
	require.NoError(t, err)
	assert.Equal(t, StepOverflowed, res.Outcome)
}

// TestResolveAtCeiling_NegativeXi verifies negative xi is always a
// precision failure regardless of the fractional part.
func TestResolveAtCeiling_NegativeXi(t *testing.T) {
	it := newTestIterator(t, []int64{1, -3, 1}, "2.6180339887498948482", 1, 1, 1<<62)

	res := it.resolveAtCeiling(OnePolynomial(), big.NewFloat(-0.5), -1, big.NewFloat(0.5))
	assert.Equal(t, StepPrecisionFailed, res.Outcome)
}

// TestResolveAtCeiling_RoundsToNonzero verifies that a near-integer xi
// whose rounded recurrence does not vanish is a precision failure.
func TestResolveAtCeiling_RoundsToNonzero(t *testing.T) {
	it := newTestIterator(t, []int64{1, -3, 1}, "2.6180339887498948482", 1, 1, 1<<62)

	// Rounding 2.999 to 3 gives x*1 - 3 = x - 3, nonzero.
	res := it.resolveAtCeiling(OnePolynomial(), big.NewFloat(2.999), 2, big.NewFloat(0.999))
	assert.Equal(t, StepPrecisionFailed, res.Outcome)
}

// TestAmbiguous covers both sides of the tolerance band.
func TestAmbiguous(t *testing.T) {
	eta := big.NewFloat(0.01)

	assert.True(t, ambiguous(big.NewFloat(0.005), eta), "frac near 0")
	assert.True(t, ambiguous(big.NewFloat(0.995), eta), "frac near 1")
	assert.False(t, ambiguous(big.NewFloat(0.5), eta))
	assert.True(t, ambiguous(big.NewFloat(0.01), eta), "boundary is inclusive")
}

// TestFloorParts verifies true floor semantics for negative values.
func TestFloorParts(t *testing.T) {
	floor, frac, ok := floorParts(big.NewFloat(2.75))
	require.True(t, ok)
	assert.Equal(t, int64(2), floor)
	f, _ := frac.Float64()
	assert.InDelta(t, 0.75, f, 1e-12)

	floor, frac, ok = floorParts(big.NewFloat(-1.25))
	require.True(t, ok)
	assert.Equal(t, int64(-2), floor, "floor rounds toward negative infinity")
	f, _ = frac.Float64()
	assert.InDelta(t, 0.75, f, 1e-12)

	floor, frac, ok = floorParts(big.NewFloat(3))
	require.True(t, ok)
	assert.Equal(t, int64(3), floor)
	assert.Zero(t, frac.Sign())

	huge := new(big.Float).SetMantExp(big.NewFloat(1), 80)
	_, _, ok = floorParts(huge)
	assert.False(t, ok, "floors beyond int64 are rejected")
}
