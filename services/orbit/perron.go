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
	"sync"
)

// Guard bits used on top of a requested precision while refining.
const refineGuardBits = 32

// -----------------------------------------------------------------------------
// PerronNumber
// -----------------------------------------------------------------------------

// PerronNumber is a validated orbit input: a monic integer minimal
// polynomial together with an approximation of its dominant real root
// beta0 > 1.
//
// Description:
//
//	Root isolation happens outside the engine; the seeded approximation
//	only needs enough correct digits to lie inside the Newton basin of
//	beta0. The engine refines it on demand to whatever working precision
//	the current computation step requires, caching the best refinement so
//	precision escalations pay only for the marginal digits.
//
// Thread Safety: Safe for concurrent use; the refinement cache is
// mutex-guarded.
type PerronNumber struct {
	minPoly *IntPolynomial

	mu     sync.Mutex
	approx *big.Float // best refinement so far, precision approx.Prec()
}

// NewPerronNumber validates inputs and constructs a PerronNumber.
//
// Inputs:
//
//	minPoly - Monic minimal polynomial, degree >= 1.
//	rootApprox - Approximation of the dominant root, > 1. Its precision
//	is taken as the number of trusted bits.
//
// Outputs:
//
//	*PerronNumber - The validated number.
//	error - ErrNotMonic or ErrNotPerron on invalid inputs.
func NewPerronNumber(minPoly *IntPolynomial, rootApprox *big.Float) (*PerronNumber, error) {
	if minPoly == nil || minPoly.Degree() < 1 {
		return nil, fmt.Errorf("%w: degree must be >= 1", ErrNotPerron)
	}
	if minPoly.LeadingCoeff() != 1 {
		return nil, ErrNotMonic
	}
	if rootApprox == nil || rootApprox.Cmp(big.NewFloat(1)) <= 0 {
		return nil, fmt.Errorf("%w: root approximation must be > 1", ErrNotPerron)
	}
	return &PerronNumber{
		minPoly: minPoly,
		approx:  new(big.Float).Copy(rootApprox),
	}, nil
}

// ParsePerronNumber constructs a PerronNumber from ascending integer
// coefficients and a decimal root approximation, the form inputs take in
// seed files and in the store.
func ParsePerronNumber(coeffs []int64, rootDecimal string) (*PerronNumber, error) {
	prec := uint(4 * len(rootDecimal))
	if prec < 64 {
		prec = 64
	}
	root, _, err := big.ParseFloat(rootDecimal, 10, prec, big.ToNearestEven)
	if err != nil {
		return nil, fmt.Errorf("%w: parse root %q: %v", ErrNotPerron, rootDecimal, err)
	}
	return NewPerronNumber(NewIntPolynomial(coeffs), root)
}

// MinPoly returns the minimal polynomial.
func (p *PerronNumber) MinPoly() *IntPolynomial {
	return p.minPoly
}

// Degree returns the degree of the minimal polynomial.
func (p *PerronNumber) Degree() int {
	return p.minPoly.Degree()
}

// Group returns the polynomial group this number belongs to.
func (p *PerronNumber) Group() GroupKey {
	return GroupKeyFor(p.minPoly)
}

// Beta0 returns the dominant root at the requested binary precision,
// refining the cached approximation with Newton's method if needed.
//
// Outputs:
//
//	*big.Float - beta0 rounded to prec bits.
//	error - ErrNotPerron when the refinement fails to converge, which
//	means the seeded approximation was not actually near a root.
func (p *PerronNumber) Beta0(prec uint) (*big.Float, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.approx.Prec() < prec+refineGuardBits {
		refined, err := p.refine(prec + refineGuardBits)
		if err != nil {
			return nil, err
		}
		p.approx = refined
	}
	return new(big.Float).SetPrec(prec).Set(p.approx), nil
}

// Beta0Ceil returns ceil(beta0) as an integer, used by the precision
// offset closed form. The cached approximation is always accurate enough
// for this; no refinement is triggered.
func (p *PerronNumber) Beta0Ceil() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	floor, acc := p.approx.Int64()
	if acc == big.Exact {
		return floor
	}
	return floor + 1
}

// refine runs Newton's method at precision prec starting from the cached
// approximation. Convergence is quadratic, so iterations are logarithmic
// in the precision; the generous cap below only trips when the starting
// point is not in the root's basin.
func (p *PerronNumber) refine(prec uint) (*big.Float, error) {
	x := new(big.Float).SetPrec(prec).Set(p.approx)

	// Converged when the Newton step shrinks below one unit in the last
	// place of the target precision.
	tol := new(big.Float).SetMantExp(big.NewFloat(1), 1-int(prec))

	fx := new(big.Float).SetPrec(prec)
	dfx := new(big.Float).SetPrec(prec)
	step := new(big.Float).SetPrec(prec)
	bound := new(big.Float).SetPrec(prec)

	const maxIter = 64
	for i := 0; i < maxIter; i++ {
		fx.Set(p.minPoly.Eval(x, prec))
		dfx.Set(p.minPoly.EvalDerivative(x, prec))
		if dfx.Sign() == 0 {
			return nil, fmt.Errorf("%w: derivative vanished during refinement", ErrNotPerron)
		}

		step.Quo(fx, dfx)
		x.Sub(x, step)

		bound.Mul(tol, bound.Abs(bound.Set(x)))
		if step.Abs(step).Cmp(bound) <= 0 {
			if x.Cmp(big.NewFloat(1)) <= 0 {
				return nil, fmt.Errorf("%w: refined root <= 1", ErrNotPerron)
			}
			return x, nil
		}
	}
	return nil, fmt.Errorf("%w: newton refinement did not converge", ErrNotPerron)
}
