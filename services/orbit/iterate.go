// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import (
	"fmt"
	"math/big"
)

// -----------------------------------------------------------------------------
// Step Results
// -----------------------------------------------------------------------------

// StepOutcome classifies a single application of the orbit recurrence.
type StepOutcome int

const (
	// StepOK means the digit was resolved and the next iterate computed.
	StepOK StepOutcome = iota

	// StepSimpleTerminal means the ambiguous digit was resolved by
	// rounding at the precision ceiling and the recurrence landed exactly
	// on the zero polynomial: the input is a simple Parry number.
	StepSimpleTerminal

	// StepPrecisionFailed means the digit stayed ambiguous at the
	// precision ceiling and the rounded tentative digit did not produce
	// the zero polynomial.
	StepPrecisionFailed

	// StepOverflowed means a coefficient exceeded the safety ceiling,
	// either on the incoming iterate or while forming the next one.
	StepOverflowed
)

// String returns the outcome name for logs.
func (o StepOutcome) String() string {
	switch o {
	case StepOK:
		return "ok"
	case StepSimpleTerminal:
		return "simple_terminal"
	case StepPrecisionFailed:
		return "precision_failed"
	case StepOverflowed:
		return "overflowed"
	default:
		return "unknown"
	}
}

// StepResult carries the digit and next iterate of one resolved step.
// Digit and Next are meaningful for StepOK and StepSimpleTerminal only.
type StepResult struct {
	Outcome StepOutcome
	Digit   int64
	Next    *IntPolynomial
}

// -----------------------------------------------------------------------------
// OrbitIterator
// -----------------------------------------------------------------------------

// OrbitIterator applies one step of the beta-expansion recurrence with
// adaptive precision.
//
// Description:
//
//	Each step evaluates xi = beta0 * B(beta0) at the controller's x
//	precision and tests the fractional part against the ambiguity
//	tolerance eta = 2^-y * (x*B)'(beta0 + 2^-y). When frac(xi) falls
//	within eta of either integer neighbor, the computed floor cannot be
//	trusted and precision is escalated before retrying. At the precision
//	ceiling the step is resolved terminally: a negative xi or a nonzero
//	rounded iterate is a precision failure, while a rounded iterate of
//	exactly zero identifies a simple Parry number (xi was a true
//	integer, not a rounding artifact).
//
// Thread Safety: Not safe for concurrent use; each run owns its own.
type OrbitIterator struct {
	beta    *PerronNumber
	ctrl    *PrecisionController
	ceiling int64
}

// NewOrbitIterator creates an iterator bound to one number, one precision
// controller, and one coefficient ceiling.
func NewOrbitIterator(beta *PerronNumber, ctrl *PrecisionController, coeffCeiling int64) *OrbitIterator {
	return &OrbitIterator{beta: beta, ctrl: ctrl, ceiling: coeffCeiling}
}

// Step resolves the next digit and iterate from the previous iterate.
//
// Inputs:
//
//	prev - The iterate B_{n-1} (OnePolynomial for the first step).
//
// Outputs:
//
//	StepResult - Terminal classification plus digit/next on success.
//	error - Non-nil only for internal failures (root refinement), never
//	for the terminal conditions, which are StepResult values.
func (it *OrbitIterator) Step(prev *IntPolynomial) (StepResult, error) {
	// Entry guard: the incoming iterate must itself be safely below the
	// ceiling before any arithmetic on it is trusted.
	if prev.MaxAbsCoeff() > it.ceiling {
		return StepResult{Outcome: StepOverflowed}, nil
	}

	for {
		xi, err := it.evalXi(prev)
		if err != nil {
			return StepResult{}, err
		}

		floor, frac, ok := floorParts(xi)
		if !ok {
			// The digit itself does not fit the coefficient width.
			return StepResult{Outcome: StepOverflowed}, nil
		}

		eta, err := it.calcEta(prev)
		if err != nil {
			return StepResult{}, err
		}

		if !ambiguous(frac, eta) {
			next, fits := prev.NextIterate(floor, it.beta.MinPoly(), it.ceiling)
			if !fits {
				return StepResult{Outcome: StepOverflowed}, nil
			}
			return StepResult{Outcome: StepOK, Digit: floor, Next: next}, nil
		}

		if it.ctrl.Escalate() {
			continue
		}

		// Precision ceiling reached with the digit still ambiguous.
		return it.resolveAtCeiling(prev, xi, floor, frac), nil
	}
}

// resolveAtCeiling classifies an irreducibly ambiguous step. xi within
// tolerance of an integer at the ceiling is either a true integer (the
// orbit of a simple Parry number hitting exactly 1 at the final digit)
// or an unresolvable rounding artifact.
func (it *OrbitIterator) resolveAtCeiling(prev *IntPolynomial, xi *big.Float, floor int64, frac *big.Float) StepResult {
	if xi.Sign() < 0 {
		return StepResult{Outcome: StepPrecisionFailed}
	}

	// Round to the nearest integer: the candidate exact value of xi.
	digit := floor
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		digit++
	}

	next, fits := prev.NextIterate(digit, it.beta.MinPoly(), it.ceiling)
	if !fits || !next.IsZero() {
		// A nonzero (or unrepresentable) iterate means xi was not a true
		// integer; the ambiguity is a genuine precision failure.
		return StepResult{Outcome: StepPrecisionFailed}
	}
	return StepResult{Outcome: StepSimpleTerminal, Digit: digit, Next: next}
}

// evalXi computes beta0 * prev(beta0) at the x precision.
func (it *OrbitIterator) evalXi(prev *IntPolynomial) (*big.Float, error) {
	x := it.ctrl.XPrec()
	beta0, err := it.beta.Beta0(x)
	if err != nil {
		return nil, fmt.Errorf("evaluate xi: %w", err)
	}
	xi := prev.Eval(beta0, x)
	return xi.Mul(xi, beta0), nil
}

// calcEta computes the ambiguity tolerance at the y resolution:
// eta = 2^-y * (x*prev)'(beta0 + 2^-y).
func (it *OrbitIterator) calcEta(prev *IntPolynomial) (*big.Float, error) {
	y := it.ctrl.YPrec()
	beta0, err := it.beta.Beta0(y)
	if err != nil {
		return nil, fmt.Errorf("calc eta: %w", err)
	}
	eps := new(big.Float).SetPrec(y).SetMantExp(big.NewFloat(1), -int(y))
	point := new(big.Float).SetPrec(y).Add(beta0, eps)
	eta := prev.MulX().EvalDerivative(point, y)
	return eta.Mul(eta, eps), nil
}

// ambiguous reports whether frac(xi) lies within eta of either integer
// neighbor.
func ambiguous(frac, eta *big.Float) bool {
	if frac.Cmp(eta) <= 0 {
		return true
	}
	oneMinus := new(big.Float).SetPrec(frac.Prec()).Sub(big.NewFloat(1), frac)
	return oneMinus.Cmp(eta) <= 0
}

// floorParts splits a float into its integer floor and fractional part.
// Returns ok=false when the floor does not fit in int64.
func floorParts(x *big.Float) (int64, *big.Float, bool) {
	i, _ := x.Int(nil) // truncates toward zero
	f := new(big.Float).SetPrec(x.Prec()).SetInt(i)
	if x.Sign() < 0 && f.Cmp(x) != 0 {
		i.Sub(i, big.NewInt(1))
		f.SetInt(i)
	}
	frac := new(big.Float).SetPrec(x.Prec()).Sub(x, f)
	if !i.IsInt64() {
		return 0, nil, false
	}
	return i.Int64(), frac, true
}
