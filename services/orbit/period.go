// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import (
	"fmt"
	"sort"
)

// -----------------------------------------------------------------------------
// IterateSource
// -----------------------------------------------------------------------------

// IterateSource provides indexed read access to already-accepted orbit
// iterates, regardless of whether they live in the in-memory block buffer
// or have been flushed to the store.
//
// Description:
//
//	The period detector addresses iterates purely by index through this
//	interface, so the detection algorithm stays independent of the
//	buffering and checkpointing scheme. Index 0 is the virtual initial
//	iterate B_0 = 1, which is never persisted.
type IterateSource interface {
	// GetIterate returns B_n for n >= 0. Implementations must serve
	// n == 0 as the constant polynomial 1.
	GetIterate(n int) (*IntPolynomial, error)
}

// -----------------------------------------------------------------------------
// PeriodDetector
// -----------------------------------------------------------------------------

// PeriodDetector finds the eventual cycle of the polynomial orbit with a
// half-index comparison scheme.
//
// Description:
//
//	After iterate B_n is accepted at an even index n = 2k, the detector
//	compares B_k against B_n. If the orbit has entered its cycle by index
//	k and completed at least one full revolution by index 2k, the two
//	match, and the cycle period must divide k. The true period is then
//	the smallest divisor p of k with B_{k+p} == B_k, and the pre-period
//	is the smallest m with B_m == B_{m+p}.
//
//	The tortoise value B_k is maintained by a lazily advancing read
//	cursor over the IterateSource: each even check advances the cursor at
//	most one index, so detection costs one extra iterate read per two
//	steps plus a bounded confirmation scan on the rare half-index hit.
//	On resume the cursor re-reads from persisted blocks; nothing about
//	the detector itself needs checkpointing.
//
// Thread Safety: Not safe for concurrent use; each run owns its own.
type PeriodDetector struct {
	src IterateSource

	// k is the cursor index; bk is B_k.
	k  int
	bk *IntPolynomial
}

// NewPeriodDetector creates a detector with its cursor at the virtual
// initial iterate B_0 = 1.
func NewPeriodDetector(src IterateSource) *PeriodDetector {
	return &PeriodDetector{src: src, k: 0, bk: OnePolynomial()}
}

// Check inspects a freshly accepted iterate for a half-index match.
//
// Inputs:
//
//	n - Index of the accepted iterate, 1-based.
//	bn - The iterate B_n.
//
// Outputs:
//
//	found - True when the cycle structure was resolved.
//	preperiod, period - The minimal (m, p) when found.
//	error - Source read failures, or ErrPeriodInconsistent when a
//	half-index match cannot be confirmed by any divisor (corrupted data
//	or an engine bug; the caller must abort loudly).
func (d *PeriodDetector) Check(n int, bn *IntPolynomial) (found bool, preperiod, period int64, err error) {
	if n%2 != 0 {
		return false, 0, 0, nil
	}
	k := n / 2

	for d.k < k {
		d.k++
		b, err := d.src.GetIterate(d.k)
		if err != nil {
			return false, 0, 0, fmt.Errorf("advance tortoise to %d: %w", d.k, err)
		}
		d.bk = b
	}

	if !d.bk.Equal(bn) {
		return false, 0, 0, nil
	}

	p, err := d.confirmPeriod(k)
	if err != nil {
		return false, 0, 0, err
	}
	m, err := d.minimalPreperiod(k, p)
	if err != nil {
		return false, 0, 0, err
	}
	return true, int64(m), int64(p), nil
}

// confirmPeriod returns the smallest divisor p of k with B_{k+p} == B_k.
// The cycle period divides k whenever B_k == B_2k, so scanning divisors
// in ascending order yields the minimal period.
func (d *PeriodDetector) confirmPeriod(k int) (int, error) {
	for _, p := range divisors(k) {
		b, err := d.src.GetIterate(k + p)
		if err != nil {
			return 0, fmt.Errorf("confirm period %d: %w", p, err)
		}
		if b.Equal(d.bk) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: half index %d", ErrPeriodInconsistent, k)
}

// minimalPreperiod returns the smallest m in [0, k] with B_m == B_{m+p}.
// m = 0 compares against the virtual B_0 = 1. The scan is guaranteed to
// terminate at m = k because B_k == B_{k+p} was just confirmed.
func (d *PeriodDetector) minimalPreperiod(k, p int) (int, error) {
	for m := 0; m <= k; m++ {
		bm, err := d.src.GetIterate(m)
		if err != nil {
			return 0, fmt.Errorf("preperiod scan at %d: %w", m, err)
		}
		bmp, err := d.src.GetIterate(m + p)
		if err != nil {
			return 0, fmt.Errorf("preperiod scan at %d: %w", m+p, err)
		}
		if bm.Equal(bmp) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: no preperiod below half index %d", ErrPeriodInconsistent, k)
}

// divisors returns all positive divisors of k in ascending order.
func divisors(k int) []int {
	var ds []int
	for d := 1; d*d <= k; d++ {
		if k%d == 0 {
			ds = append(ds, d)
			if q := k / d; q != d {
				ds = append(ds, q)
			}
		}
	}
	sort.Ints(ds)
	return ds
}
