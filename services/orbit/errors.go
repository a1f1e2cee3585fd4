// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import "errors"

var (
	// ErrNotMonic is returned when a minimal polynomial has a leading
	// coefficient other than 1.
	ErrNotMonic = errors.New("minimal polynomial must be monic")

	// ErrNotPerron is returned when the supplied root approximation is not
	// compatible with a Perron number (root <= 1, wrong degree, or the
	// Newton refinement fails to converge to a root).
	ErrNotPerron = errors.New("not a valid Perron number")

	// ErrPeriodInconsistent is returned when the half-index comparison
	// matched but no divisor of the half index reproduces the cycle. This
	// indicates corrupted orbit data or an engine bug and always aborts
	// the computation loudly.
	ErrPeriodInconsistent = errors.New("period detection inconsistency: half-index match without a confirming period")

	// ErrOrbitNotSeeded is returned when a computation is requested for an
	// orbit key with no registered minimal polynomial or root.
	ErrOrbitNotSeeded = errors.New("orbit inputs not seeded")

	// ErrNilStore is returned when a Computation or Runner is constructed
	// without a store.
	ErrNilStore = errors.New("store must not be nil")

	// ErrBadKey is returned when a persisted key or key string cannot be
	// parsed back into an OrbitKey.
	ErrBadKey = errors.New("malformed orbit key")
)
