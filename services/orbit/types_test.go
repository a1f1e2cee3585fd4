// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGroupKey_RoundTrip verifies rendering and parsing agree.
func TestGroupKey_RoundTrip(t *testing.T) {
	g := GroupKey{Degree: 2, SumAbsCoeff: 5}
	assert.Equal(t, "d2s5", g.String())

	parsed, err := ParseGroupKey("d2s5")
	require.NoError(t, err)
	assert.Equal(t, g, parsed)
}

// TestParseGroupKey_Rejects covers malformed group keys.
func TestParseGroupKey_Rejects(t *testing.T) {
	for _, s := range []string{"", "d2", "s5", "2s5", "d2s5x"} {
		_, err := ParseGroupKey(s)
		assert.ErrorIs(t, err, ErrBadKey, "input %q", s)
	}
}

// TestGroupKeyFor derives the group from a polynomial.
func TestGroupKeyFor(t *testing.T) {
	g := GroupKeyFor(NewIntPolynomial([]int64{1, -3, 1}))
	assert.Equal(t, GroupKey{Degree: 2, SumAbsCoeff: 5}, g)
}

// TestOrbitKey_RoundTrip verifies the zero-padded key form.
func TestOrbitKey_RoundTrip(t *testing.T) {
	k := OrbitKey{Group: GroupKey{Degree: 3, SumAbsCoeff: 4}, Index: 12}
	assert.Equal(t, "d3s4:00000012", k.String())

	parsed, err := ParseOrbitKey("d3s4:00000012")
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = ParseOrbitKey("d3s4:12")
	assert.ErrorIs(t, err, ErrBadKey, "unpadded index must not parse")
}

// TestOrbitStatus_Predicates covers the sentinel encodings.
func TestOrbitStatus_Predicates(t *testing.T) {
	fresh := NewOrbitStatus()
	assert.Equal(t, OrbitStatus{ComputedLen: 0, PrecisionErrIdx: Unset, OverflowIdx: Unset}, fresh)
	assert.False(t, fresh.Terminal())

	periodic := PeriodicOrbitStatus()
	assert.True(t, periodic.IsPeriodic())
	assert.True(t, periodic.Terminal())
	assert.False(t, periodic.Failed())

	precision := OrbitStatus{ComputedLen: 4, PrecisionErrIdx: 5, OverflowIdx: Unset}
	assert.True(t, precision.Failed())
	assert.True(t, precision.Terminal())
	assert.False(t, precision.IsPeriodic())

	overflow := OrbitStatus{ComputedLen: 7, PrecisionErrIdx: Unset, OverflowIdx: 7}
	assert.True(t, overflow.Failed())

	assert.Equal(t, "(4, 5, -1)", precision.String())
}

// TestPeriodicityRecord covers resolution state and rendering.
func TestPeriodicityRecord(t *testing.T) {
	unresolved := NewPeriodicityRecord()
	assert.False(t, unresolved.Known())
	assert.Equal(t, "(unresolved)", unresolved.String())

	periodic := PeriodicityRecord{Preperiod: 1, Period: 1}
	assert.True(t, periodic.Known())
	assert.Equal(t, int64(2), periodic.OrbitLen())
	assert.Equal(t, "(m=1, p=1)", periodic.String())

	simple := PeriodicityRecord{Preperiod: 2, Period: 1, Simple: true}
	assert.Equal(t, "(m=2, p=1, simple)", simple.String())
}

// TestOutcome_String verifies metric label stability.
func TestOutcome_String(t *testing.T) {
	want := map[Outcome]string{
		OutcomeUnresolved:      "unresolved",
		OutcomePeriodic:        "periodic",
		OutcomeSimpleTerminal:  "simple_terminal",
		OutcomePrecisionFailed: "precision_failed",
		OutcomeOverflowed:      "overflowed",
		OutcomeLengthExhausted: "length_exhausted",
		Outcome(99):            "unknown",
	}
	for o, s := range want {
		assert.Equal(t, s, o.String())
	}
}
