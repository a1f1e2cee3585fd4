// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orbit computes beta expansions of 1 for Perron numbers and
// decides their eventual periodicity.
//
// A Perron number beta is an algebraic integer whose largest real root
// beta0 strictly dominates the modulus of its conjugates. The beta
// expansion of 1 produces a digit sequence c_1, c_2, ... together with a
// parallel sequence of integer polynomials B_1, B_2, ... satisfying
//
//	xi_n  = beta0 * B_{n-1}(beta0)        (B_0 = 1)
//	c_n   = floor(xi_n)
//	B_n   = x*B_{n-1} - c_n   (mod minimal polynomial of beta)
//
// Because B_n determines the entire tail of the expansion, the digit
// sequence is eventually periodic exactly when the polynomial sequence
// revisits a value. The engine iterates the recurrence with adaptive
// floating-point precision, detects cycles with a half-index comparison
// scheme over partially persisted data, and records the pre-period m and
// period p once found.
//
// # Architecture
//
//	PerronNumber         validated input: minimal polynomial + refined root
//	PrecisionController  paired working precisions with escalation policy
//	OrbitIterator        one step of the recurrence, ambiguity-checked
//	PeriodDetector       half-index cycle detection over an IterateSource
//	Computation          resumable orchestrator with block checkpoints
//	Runner               batch execution partitioned by worker rank
//	Store                append-only persistence contract (see store package)
//
// Long orbits are persisted in fixed-size blocks so a crashed or
// preempted worker resumes from its last checkpoint instead of
// recomputing from scratch. All terminal conditions (periodic, simple
// Parry, precision exhausted, coefficient overflow, length budget
// exhausted) are ordinary results, not errors; errors are reserved for
// storage failures and internal inconsistencies.
package orbit
