// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import "context"

// Store is the persistence contract of the orbit engine.
//
// Description:
//
//	Orbit data is append-only and key-partitioned: every seeded Perron
//	number owns its polynomial orbit, digit orbit, and records under its
//	OrbitKey, so concurrent workers computing disjoint key sets never
//	contend. Polynomial and digit orbits are persisted in fixed-size
//	blocks addressed by the 1-based index of their first element; blocks
//	are immutable once appended, and truncation after period resolution
//	may delete whole blocks past the boundary and rewrite the single
//	straddling one.
//
//	The engine consumes this interface abstractly. The badger-backed
//	implementation lives in the store subpackage.
//
// Thread Safety: Implementations must be safe for concurrent use across
// distinct orbit keys. Concurrent writers to the same key are excluded
// by the worker partition, not by the store.
type Store interface {
	// SeedInput registers a minimal polynomial and decimal root
	// approximation under a key. Inputs are write-once; seeding an
	// already-seeded key fails.
	SeedInput(ctx context.Context, key OrbitKey, minPoly *IntPolynomial, rootDecimal string) error

	// MinimalPolynomial returns the seeded polynomial, or
	// ErrOrbitNotSeeded.
	MinimalPolynomial(ctx context.Context, key OrbitKey) (*IntPolynomial, error)

	// RootApproximation returns the seeded decimal root string, or
	// ErrOrbitNotSeeded.
	RootApproximation(ctx context.Context, key OrbitKey) (string, error)

	// Groups enumerates all polynomial groups with seeded inputs, in
	// key order.
	Groups(ctx context.Context) ([]GroupKey, error)

	// Orbits enumerates the seeded orbit indices of a group, ascending.
	Orbits(ctx context.Context, group GroupKey) ([]int, error)

	// Status returns the orbit's status record, or a fresh
	// NewOrbitStatus when none was written yet.
	Status(ctx context.Context, key OrbitKey) (OrbitStatus, error)

	// SetStatus overwrites the orbit's status record.
	SetStatus(ctx context.Context, key OrbitKey, status OrbitStatus) error

	// Periodicity returns the orbit's periodicity record, or an
	// unresolved NewPeriodicityRecord when none was written yet.
	Periodicity(ctx context.Context, key OrbitKey) (PeriodicityRecord, error)

	// SetPeriodicity overwrites the orbit's periodicity record.
	SetPeriodicity(ctx context.Context, key OrbitKey, record PeriodicityRecord) error

	// Monotonicity returns the orbit's growth heuristic record, or the
	// zero record when none was written yet.
	Monotonicity(ctx context.Context, key OrbitKey) (MonotonicityRecord, error)

	// SetMonotonicity overwrites the orbit's growth heuristic record.
	SetMonotonicity(ctx context.Context, key OrbitKey, record MonotonicityRecord) error

	// Summary returns the group's coordinator aggregate, or the zero
	// summary when none was written yet.
	Summary(ctx context.Context, group GroupKey) (GroupSummary, error)

	// SetSummary overwrites the group's coordinator aggregate. Only the
	// coordinator calls this; workers read.
	SetSummary(ctx context.Context, group GroupKey, summary GroupSummary) error

	// AppendPolyBlock persists iterates B_startN..B_{startN+len-1} as one
	// immutable block. startN is 1-based and must equal the current
	// orbit length + 1.
	AppendPolyBlock(ctx context.Context, key OrbitKey, startN int, polys []*IntPolynomial) error

	// AppendDigitBlock persists digits c_startN.. as one immutable block.
	AppendDigitBlock(ctx context.Context, key OrbitKey, startN int, digits []int64) error

	// PolyOrbitLen returns the number of persisted polynomial iterates.
	PolyOrbitLen(ctx context.Context, key OrbitKey) (int, error)

	// DigitOrbitLen returns the number of persisted digits.
	DigitOrbitLen(ctx context.Context, key OrbitKey) (int, error)

	// Poly returns the persisted iterate B_n, 1-based.
	Poly(ctx context.Context, key OrbitKey, n int) (*IntPolynomial, error)

	// Digits returns the persisted digits c_from..c_to inclusive, 1-based.
	Digits(ctx context.Context, key OrbitKey, from, to int) ([]int64, error)

	// TruncatePolyOrbit discards iterates beyond the given length.
	TruncatePolyOrbit(ctx context.Context, key OrbitKey, length int) error

	// TruncateDigitOrbit discards digits beyond the given length.
	TruncateDigitOrbit(ctx context.Context, key OrbitKey, length int) error

	// DropOrbitData removes all polynomial and digit blocks of an orbit,
	// leaving inputs and records in place. Used by consistency repair.
	DropOrbitData(ctx context.Context, key OrbitKey) error
}
