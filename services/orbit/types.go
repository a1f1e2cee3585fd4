// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Keys
// -----------------------------------------------------------------------------

// GroupKey identifies a family of minimal polynomials sharing a degree and
// a sum of absolute coefficient values. Groups partition the input space so
// related polynomials are enumerated, summarized, and stored together.
type GroupKey struct {
	// Degree of the minimal polynomials in this group.
	Degree int

	// SumAbsCoeff is the sum of absolute values of all coefficients.
	SumAbsCoeff int
}

// GroupKeyFor derives the group of a minimal polynomial.
func GroupKeyFor(minPoly *IntPolynomial) GroupKey {
	return GroupKey{
		Degree:      minPoly.Degree(),
		SumAbsCoeff: int(minPoly.SumAbsCoeff()),
	}
}

// String renders the group in its canonical key form, e.g. "d2s5".
func (g GroupKey) String() string {
	return fmt.Sprintf("d%ds%d", g.Degree, g.SumAbsCoeff)
}

// ParseGroupKey parses the canonical "d{degree}s{sum}" form.
//
// Outputs:
//
//	GroupKey - The parsed group.
//	error - ErrBadKey if the string does not match the canonical form.
func ParseGroupKey(s string) (GroupKey, error) {
	var g GroupKey
	if _, err := fmt.Sscanf(s, "d%ds%d", &g.Degree, &g.SumAbsCoeff); err != nil {
		return GroupKey{}, fmt.Errorf("%w: %q", ErrBadKey, s)
	}
	if g.String() != s {
		return GroupKey{}, fmt.Errorf("%w: %q", ErrBadKey, s)
	}
	return g, nil
}

// OrbitKey identifies a single seeded Perron number: its polynomial group
// plus the orbit's index within that group. Keys are closed values (per
// the storage layout) rather than open string prefixes, so ownership
// partitioning and summaries can enumerate them deterministically.
type OrbitKey struct {
	Group GroupKey

	// Index of the orbit within its group, starting at 1.
	Index int
}

// String renders the orbit key, e.g. "d2s5:00000001". The zero-padded
// index keeps store keys in numeric order under lexicographic iteration.
func (k OrbitKey) String() string {
	return fmt.Sprintf("%s:%08d", k.Group, k.Index)
}

// ParseOrbitKey parses the canonical "{group}:{index:08d}" form.
func ParseOrbitKey(s string) (OrbitKey, error) {
	var (
		g   GroupKey
		idx int
	)
	if _, err := fmt.Sscanf(s, "d%ds%d:%08d", &g.Degree, &g.SumAbsCoeff, &idx); err != nil {
		return OrbitKey{}, fmt.Errorf("%w: %q", ErrBadKey, s)
	}
	k := OrbitKey{Group: g, Index: idx}
	if k.String() != s {
		return OrbitKey{}, fmt.Errorf("%w: %q", ErrBadKey, s)
	}
	return k, nil
}

// -----------------------------------------------------------------------------
// Persistent Records
// -----------------------------------------------------------------------------

// Sentinel value used across persistent records for "not set".
const Unset int64 = -1

// OrbitStatus records how far an orbit has been computed and whether it
// hit a non-periodic terminal condition.
//
// The three slots encode the orbit state compactly:
//
//	(n, -1, -1)   n iterates computed and persisted, still unresolved
//	(-1, -1, -1)  resolved periodic (see PeriodicityRecord)
//	(n-1, n, -1)  precision exhausted attempting iterate n
//	(n-1, -1, n-1) coefficient overflow detected on iterate n-1
//
// A fresh orbit starts at (0, -1, -1).
type OrbitStatus struct {
	// ComputedLen is the number of polynomial iterates persisted, or -1
	// once the orbit is resolved periodic.
	ComputedLen int64

	// PrecisionErrIdx is the 1-based index of the first digit that could
	// not be resolved at the precision ceiling, or -1.
	PrecisionErrIdx int64

	// OverflowIdx is the 1-based index of the last safely representable
	// iterate when a coefficient exceeded the configured ceiling, or -1.
	OverflowIdx int64
}

// NewOrbitStatus returns the status of a freshly seeded orbit.
func NewOrbitStatus() OrbitStatus {
	return OrbitStatus{ComputedLen: 0, PrecisionErrIdx: Unset, OverflowIdx: Unset}
}

// PeriodicOrbitStatus returns the all-sentinel status written once an
// orbit is resolved periodic (including simple Parry orbits).
func PeriodicOrbitStatus() OrbitStatus {
	return OrbitStatus{ComputedLen: Unset, PrecisionErrIdx: Unset, OverflowIdx: Unset}
}

// IsPeriodic reports whether the status is the resolved-periodic sentinel.
func (s OrbitStatus) IsPeriodic() bool {
	return s.ComputedLen == Unset
}

// Failed reports whether the orbit stopped on precision exhaustion or
// coefficient overflow.
func (s OrbitStatus) Failed() bool {
	return s.PrecisionErrIdx != Unset || s.OverflowIdx != Unset
}

// Terminal reports whether no further computation can change this orbit.
func (s OrbitStatus) Terminal() bool {
	return s.IsPeriodic() || s.Failed()
}

// String renders the status triple for logs and the CLI.
func (s OrbitStatus) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.ComputedLen, s.PrecisionErrIdx, s.OverflowIdx)
}

// PeriodicityRecord stores the resolved cycle structure of an orbit.
//
// For an eventually periodic orbit the polynomial iterates satisfy
// B_{n+p} == B_n for all n > m, with m minimal. A simple Parry number
// reaches the zero polynomial; it is encoded with the zero polynomial as
// a period-1 fixed point and Simple set, which keeps the truncation
// arithmetic (m+p polynomials, m+p+1 digits) uniform.
type PeriodicityRecord struct {
	// Preperiod is the minimal m, or -1 while unresolved.
	Preperiod int64

	// Period is the minimal p, or -1 while unresolved.
	Period int64

	// Simple marks a simple Parry number (expansion terminates in the
	// zero polynomial, digit tail is a single 0).
	Simple bool
}

// NewPeriodicityRecord returns the unresolved record of a fresh orbit.
func NewPeriodicityRecord() PeriodicityRecord {
	return PeriodicityRecord{Preperiod: Unset, Period: Unset}
}

// Known reports whether the cycle structure has been resolved.
func (r PeriodicityRecord) Known() bool {
	return r.Preperiod != Unset && r.Period != Unset
}

// OrbitLen returns the principal length m+p of the polynomial orbit.
// Only meaningful when Known.
func (r PeriodicityRecord) OrbitLen() int64 {
	return r.Preperiod + r.Period
}

// String renders the record for logs and the CLI.
func (r PeriodicityRecord) String() string {
	if !r.Known() {
		return "(unresolved)"
	}
	if r.Simple {
		return fmt.Sprintf("(m=%d, p=%d, simple)", r.Preperiod, r.Period)
	}
	return fmt.Sprintf("(m=%d, p=%d)", r.Preperiod, r.Period)
}

// MonotonicityRecord captures a best-effort heuristic about coefficient
// growth along the orbit: whether the maximum absolute coefficient grew
// alternating-monotonically, and the smallest step-over-step blowup ratio
// observed. Purely diagnostic; never consulted by the engine.
type MonotonicityRecord struct {
	// Alternating is true when successive growth ratios strictly
	// alternated between expansion and contraction over the whole
	// observed prefix.
	Alternating bool

	// MinRatio is the smallest maxAbsCoeff(B_n)/maxAbsCoeff(B_{n-1})
	// observed, or 0 when fewer than two iterates were observed.
	MinRatio float64

	// Observed is the number of iterates the heuristic saw.
	Observed int64
}

// GroupSummary aggregates orbit progress across a polynomial group. It is
// recomputed by the coordinator before dispatch; workers only read it.
type GroupSummary struct {
	// MinCompletedLen is the minimum completed orbit length over the
	// group. Resolved periodic orbits contribute their principal length
	// m+p.
	MinCompletedLen int64

	// Orbits is the number of seeded orbits in the group.
	Orbits int64

	// Resolved counts orbits with a known PeriodicityRecord.
	Resolved int64
}

// -----------------------------------------------------------------------------
// Outcomes
// -----------------------------------------------------------------------------

// Outcome classifies how a computation run ended. Terminal conditions are
// values, not errors; a run returns a non-nil error only for storage
// failures or internal inconsistencies.
type Outcome int

const (
	// OutcomeUnresolved means the run stopped (cancelled or failed)
	// before reaching any terminal condition.
	OutcomeUnresolved Outcome = iota

	// OutcomePeriodic means a pre-period and period were found.
	OutcomePeriodic

	// OutcomeSimpleTerminal means the orbit reached the zero polynomial
	// (simple Parry number).
	OutcomeSimpleTerminal

	// OutcomePrecisionFailed means a digit stayed ambiguous at the
	// precision ceiling.
	OutcomePrecisionFailed

	// OutcomeOverflowed means a coefficient exceeded the safety ceiling.
	OutcomeOverflowed

	// OutcomeLengthExhausted means the configured maximum orbit length
	// was reached without resolution. The orbit can be resumed later
	// with a larger budget.
	OutcomeLengthExhausted
)

// String returns the outcome name used in logs, metrics labels, and the CLI.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnresolved:
		return "unresolved"
	case OutcomePeriodic:
		return "periodic"
	case OutcomeSimpleTerminal:
		return "simple_terminal"
	case OutcomePrecisionFailed:
		return "precision_failed"
	case OutcomeOverflowed:
		return "overflowed"
	case OutcomeLengthExhausted:
		return "length_exhausted"
	default:
		return "unknown"
	}
}
