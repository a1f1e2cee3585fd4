// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import (
	"math"
	"math/bits"
)

// -----------------------------------------------------------------------------
// PrecisionController
// -----------------------------------------------------------------------------

// PrecisionController manages the paired working precisions of one orbit
// computation.
//
// Description:
//
//	Two binary precisions are maintained: y, the resolution of the
//	ambiguity tolerance (eta is proportional to 2^-y), and x, the
//	precision at which xi is evaluated. x must exceed y by an offset that
//	absorbs the rounding error of evaluating an integer polynomial at
//	beta0, so that a digit deemed unambiguous at resolution y really is.
//
//	The offset's closed form is
//
//	    bitlen(deg) + bitlen(maxAbsCoeff(B)) + (deg-1)*bitlen(ceil(beta0))
//
//	recomputed incrementally as coefficients grow or shrink, floored at
//	its orbit-start value. Escalation doubles y up to a ceiling derived
//	from the configured maximum decimal precision; x follows as
//	clamp(y+offset, lower, ceiling). The lower bound covers the constant
//	of the Lagrange remainder term: 1 bit suffices at degree 2, and
//	bitlen(deg)+bitlen(deg-1) bits dominate it for higher degrees.
//
//	The controller is a plain value scoped to one run. It carries no
//	process-global state, so concurrent orbits never interfere.
//
// Thread Safety: Not safe for concurrent use; each run owns its own.
type PrecisionController struct {
	xPrec      uint
	yPrec      uint
	offset     uint
	baseOffset uint
	lower      uint
	ceiling    uint

	escalations int64
}

// NewPrecisionController creates a controller for one orbit run.
//
// Inputs:
//
//	deg - Degree of the minimal polynomial. Must be >= 1.
//	startCoeff - maxAbsCoeff of the resume iterate (1 for a fresh orbit).
//	beta0Ceil - ceil(beta0) as an integer, >= 2 for any Perron number.
//	startDPS - Initial tolerance resolution in decimal digits.
//	maxDPS - Hard precision ceiling in decimal digits.
func NewPrecisionController(deg int, startCoeff, beta0Ceil int64, startDPS, maxDPS int) *PrecisionController {
	c := &PrecisionController{
		ceiling: bitsForDecimalDigits(maxDPS),
	}

	if deg == 2 {
		c.lower = 1
	} else {
		c.lower = bitlen(int64(deg)) + bitlen(int64(deg-1))
	}

	c.baseOffset = bitlen(int64(deg)) + bitlen(startCoeff) + uint(deg-1)*bitlen(beta0Ceil)
	c.offset = c.baseOffset

	c.yPrec = bitsForDecimalDigits(startDPS)
	if c.yPrec > c.ceiling {
		c.yPrec = c.ceiling
	}
	c.recomputeX()
	return c
}

// XPrec returns the current evaluation precision in bits.
func (c *PrecisionController) XPrec() uint { return c.xPrec }

// YPrec returns the current tolerance resolution in bits.
func (c *PrecisionController) YPrec() uint { return c.yPrec }

// Ceiling returns the hard precision ceiling in bits.
func (c *PrecisionController) Ceiling() uint { return c.ceiling }

// Escalations returns how many times precision was escalated.
func (c *PrecisionController) Escalations() int64 { return c.escalations }

// AtCeiling reports whether no further escalation is possible.
func (c *PrecisionController) AtCeiling() bool {
	return c.yPrec >= c.ceiling
}

// Escalate doubles the tolerance resolution, clamped at the ceiling.
//
// Outputs:
//
//	bool - False when already at the ceiling; the caller must then fall
//	back to the terminal classification path.
func (c *PrecisionController) Escalate() bool {
	if c.AtCeiling() {
		return false
	}
	c.yPrec *= 2
	if c.yPrec > c.ceiling {
		c.yPrec = c.ceiling
	}
	c.recomputeX()
	c.escalations++
	return true
}

// RecordGrowth adjusts the offset by the signed change in coefficient
// magnitude between consecutive iterates. Shrinking coefficients may
// lower the offset, but never below its orbit-start value.
func (c *PrecisionController) RecordGrowth(prevMax, newMax int64) {
	delta := int(bitlen(newMax)) - int(bitlen(prevMax))
	next := int(c.offset) + delta
	if next < int(c.baseOffset) {
		next = int(c.baseOffset)
	}
	c.offset = uint(next)
	c.recomputeX()
}

// recomputeX derives x from y, clamped to [lower, ceiling].
func (c *PrecisionController) recomputeX() {
	x := c.yPrec + c.offset
	if x < c.lower {
		x = c.lower
	}
	if x > c.ceiling {
		x = c.ceiling
	}
	c.xPrec = x
}

// bitlen returns the number of significant bits of |v|, with 0 for 0.
func bitlen(v int64) uint {
	if v < 0 {
		v = -v
	}
	return uint(bits.Len64(uint64(v)))
}

// bitsForDecimalDigits converts a decimal digit count to binary precision.
func bitsForDecimalDigits(dps int) uint {
	if dps <= 0 {
		return 0
	}
	return uint(math.Ceil(float64(dps) * math.Log2(10)))
}
