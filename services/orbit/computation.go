// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// -----------------------------------------------------------------------------
// Computation
// -----------------------------------------------------------------------------

// Computation runs one orbit to a terminal condition or its budget,
// checkpointing through the store so it can resume after interruption.
//
// Description:
//
//	The orchestrator owns the run lifecycle around the step primitives:
//	it loads the resume point, verifies that persisted polynomial and
//	digit orbits agree with the status record (wiping and restarting the
//	orbit on any violation), iterates with an in-memory block buffer
//	that is flushed every BlockLen accepted steps, feeds even-index
//	iterates to the period detector, and finalizes records when a
//	terminal condition is reached.
//
//	Two cheap identity checks run before the detector on every step:
//	B_n == B_{n-1} resolves a period-1 tail immediately, and B_n == 1
//	(the virtual B_0) resolves a full-cycle return with zero pre-period.
//	Both produce the same records the detector would, at m+p = n.
//
//	All precision state lives in a PrecisionController value created per
//	run, and every exit path detaches the unflushed buffers, so an
//	interrupted or failed run leaves exactly the state of its last
//	checkpoint.
//
// Thread Safety: A Computation is single-use state for one goroutine.
// Distinct orbits may run concurrently against a shared Store.
type Computation struct {
	store  Store
	key    OrbitKey
	beta   *PerronNumber
	cfg    Config
	logger *slog.Logger

	// Block buffer state. bufStart is the 1-based index of the first
	// buffered element; polyBuf and digitBuf always hold the same index
	// range.
	polyBuf  []*IntPolynomial
	digitBuf []int64
	bufStart int
}

// NewComputation validates inputs and prepares a run for one orbit key.
//
// Inputs:
//
//	store - Persistence backend. Must not be nil.
//	key - The orbit to compute. Its group must match beta's polynomial.
//	beta - The seeded Perron number.
//	cfg - Computation parameters. Must pass Validate().
//	logger - Optional; defaults to slog.Default().
//
// Outputs:
//
//	*Computation - Ready to Run.
//	error - Non-nil on invalid inputs.
func NewComputation(store Store, key OrbitKey, beta *PerronNumber, cfg Config, logger *slog.Logger) (*Computation, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if beta == nil {
		return nil, fmt.Errorf("%w: nil number", ErrNotPerron)
	}
	if beta.Group() != key.Group {
		return nil, fmt.Errorf("%w: key group %s does not match polynomial group %s",
			ErrBadKey, key.Group, beta.Group())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Computation{
		store:  store,
		key:    key,
		beta:   beta,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "computation"), slog.String("orbit", key.String())),
	}, nil
}

// Run computes the orbit until a terminal condition, the iterate budget,
// or cancellation.
//
// Outputs:
//
//	Outcome - Terminal classification, or OutcomeUnresolved when the run
//	stopped early (error or cancellation).
//	error - Storage failures, internal inconsistencies, or ctx.Err().
//	Terminal conditions are outcomes, never errors.
//
// Idempotence: running an already-resolved orbit returns its recorded
// outcome without touching the store.
func (c *Computation) Run(ctx context.Context) (outcome Outcome, err error) {
	ctx, span := otel.Tracer("orbit").Start(ctx, "computation.Run",
		trace.WithAttributes(attribute.String("orbit", c.key.String())))
	defer span.End()

	var ctrl *PrecisionController
	defer func() {
		// Every exit path drops the unflushed tail: the store holds
		// exactly the state of the last checkpoint.
		c.polyBuf, c.digitBuf = nil, nil
		if ctrl != nil {
			metricPrecisionEscalations.Add(float64(ctrl.Escalations()))
		}
		metricOrbitsFinished.WithLabelValues(outcome.String()).Inc()
		span.SetAttributes(attribute.String("outcome", outcome.String()))
	}()

	rec, err := c.store.Periodicity(ctx, c.key)
	if err != nil {
		return OutcomeUnresolved, fmt.Errorf("load periodicity: %w", err)
	}
	status, err := c.store.Status(ctx, c.key)
	if err != nil {
		return OutcomeUnresolved, fmt.Errorf("load status: %w", err)
	}

	// Terminal orbits are a no-op.
	switch {
	case rec.Known() && rec.Simple:
		return OutcomeSimpleTerminal, nil
	case rec.Known():
		return OutcomePeriodic, nil
	case status.PrecisionErrIdx != Unset:
		return OutcomePrecisionFailed, nil
	case status.OverflowIdx != Unset:
		return OutcomeOverflowed, nil
	}

	status, err = c.checkConsistency(ctx, status)
	if err != nil {
		return OutcomeUnresolved, err
	}

	startN := int(status.ComputedLen) + 1
	prev := OnePolynomial()
	if startN > 1 {
		prev, err = c.store.Poly(ctx, c.key, startN-1)
		if err != nil {
			return OutcomeUnresolved, fmt.Errorf("load resume iterate %d: %w", startN-1, err)
		}
	}

	storedMono, err := c.store.Monotonicity(ctx, c.key)
	if err != nil {
		return OutcomeUnresolved, fmt.Errorf("load monotonicity: %w", err)
	}

	ctrl = NewPrecisionController(c.beta.Degree(), prev.MaxAbsCoeff(), c.beta.Beta0Ceil(), c.cfg.StartDPS, c.cfg.MaxDPS)
	iter := NewOrbitIterator(c.beta, ctrl, c.cfg.CoeffCeiling)
	det := NewPeriodDetector(&bufferedSource{ctx: ctx, c: c})
	mono := newMonotonicityTracker(prev.MaxAbsCoeff(), storedMono)

	c.bufStart = startN
	c.logger.Info("orbit run starting",
		slog.Int("start_n", startN),
		slog.Int("max_orbit_len", c.cfg.MaxOrbitLen),
		slog.Uint64("x_prec", uint64(ctrl.XPrec())),
		slog.Uint64("y_prec", uint64(ctrl.YPrec())))

	for n := startN; n <= c.cfg.MaxOrbitLen; n++ {
		if err := ctx.Err(); err != nil {
			// Stop between checkpoints; the buffered tail is discarded
			// and the orbit resumes from the last flush.
			return OutcomeUnresolved, err
		}

		res, err := iter.Step(prev)
		if err != nil {
			return OutcomeUnresolved, err
		}

		switch res.Outcome {
		case StepOverflowed:
			return c.finishOverflow(ctx, n, mono)
		case StepPrecisionFailed:
			return c.finishPrecisionFailed(ctx, n, mono)
		case StepSimpleTerminal:
			return c.finishSimple(ctx, n, res, mono)
		}

		ctrl.RecordGrowth(prev.MaxAbsCoeff(), res.Next.MaxAbsCoeff())
		c.polyBuf = append(c.polyBuf, res.Next)
		c.digitBuf = append(c.digitBuf, res.Digit)
		mono.observe(res.Next.MaxAbsCoeff())
		metricDigitsComputed.Inc()

		var (
			found bool
			m, p  int64
		)
		switch {
		case res.Next.Equal(prev):
			found, m, p = true, int64(n-1), 1
		case res.Next.IsOne():
			found, m, p = true, 0, int64(n)
		default:
			found, m, p, err = det.Check(n, res.Next)
			if err != nil {
				return OutcomeUnresolved, err
			}
		}
		if found {
			return c.finishPeriodic(ctx, n, m, p, mono)
		}

		if len(c.polyBuf) >= c.cfg.BlockLen {
			if err := c.flush(ctx); err != nil {
				return OutcomeUnresolved, err
			}
		}
		prev = res.Next
	}

	return c.finishLengthExhausted(ctx, mono)
}

// checkConsistency verifies persisted orbit lengths against the status
// record. Any mismatch (partial flush after a crash, manual tampering)
// wipes the orbit data and restarts from scratch rather than trusting
// half-written state.
func (c *Computation) checkConsistency(ctx context.Context, status OrbitStatus) (OrbitStatus, error) {
	polyLen, err := c.store.PolyOrbitLen(ctx, c.key)
	if err != nil {
		return status, fmt.Errorf("poly orbit length: %w", err)
	}
	digitLen, err := c.store.DigitOrbitLen(ctx, c.key)
	if err != nil {
		return status, fmt.Errorf("digit orbit length: %w", err)
	}
	if int64(polyLen) == status.ComputedLen && int64(digitLen) == status.ComputedLen {
		return status, nil
	}

	c.logger.Warn("inconsistent orbit data, wiping and restarting",
		slog.Int("poly_len", polyLen),
		slog.Int("digit_len", digitLen),
		slog.String("status", status.String()))
	metricOrbitRepairs.Inc()

	if err := c.store.DropOrbitData(ctx, c.key); err != nil {
		return status, fmt.Errorf("wipe orbit data: %w", err)
	}
	fresh := NewOrbitStatus()
	if err := c.store.SetStatus(ctx, c.key, fresh); err != nil {
		return status, fmt.Errorf("reset status: %w", err)
	}
	return fresh, nil
}

// flush appends the buffered blocks and advances the checkpoint. Blocks
// are written before the status record, so a crash in between leaves a
// length mismatch that the next resume repairs.
func (c *Computation) flush(ctx context.Context) error {
	if len(c.polyBuf) == 0 && len(c.digitBuf) == 0 {
		return nil
	}
	if len(c.polyBuf) > 0 {
		if err := c.store.AppendPolyBlock(ctx, c.key, c.bufStart, c.polyBuf); err != nil {
			return fmt.Errorf("append poly block at %d: %w", c.bufStart, err)
		}
	}
	if len(c.digitBuf) > 0 {
		if err := c.store.AppendDigitBlock(ctx, c.key, c.bufStart, c.digitBuf); err != nil {
			return fmt.Errorf("append digit block at %d: %w", c.bufStart, err)
		}
	}

	lastN := c.bufStart + len(c.polyBuf) - 1
	if err := c.store.SetStatus(ctx, c.key, OrbitStatus{ComputedLen: int64(lastN), PrecisionErrIdx: Unset, OverflowIdx: Unset}); err != nil {
		return fmt.Errorf("checkpoint status: %w", err)
	}

	metricBlockFlushes.Inc()
	c.logger.Debug("checkpoint flushed",
		slog.Int("first_n", c.bufStart),
		slog.Int("last_n", lastN))

	c.bufStart = lastN + 1
	c.polyBuf = c.polyBuf[:0]
	c.digitBuf = c.digitBuf[:0]
	return nil
}

// finishOverflow records a coefficient overflow detected attempting
// iterate n; B_{n-1} is the last safely representable iterate.
func (c *Computation) finishOverflow(ctx context.Context, n int, mono *monotonicityTracker) (Outcome, error) {
	if err := c.flush(ctx); err != nil {
		return OutcomeUnresolved, err
	}
	status := OrbitStatus{ComputedLen: int64(n - 1), PrecisionErrIdx: Unset, OverflowIdx: int64(n - 1)}
	if err := c.writeRecords(ctx, status, nil, mono); err != nil {
		return OutcomeUnresolved, err
	}
	c.logger.Info("orbit overflowed", slog.Int("last_n", n-1))
	return OutcomeOverflowed, nil
}

// finishPrecisionFailed records a digit left ambiguous at the precision
// ceiling while attempting iterate n.
func (c *Computation) finishPrecisionFailed(ctx context.Context, n int, mono *monotonicityTracker) (Outcome, error) {
	if err := c.flush(ctx); err != nil {
		return OutcomeUnresolved, err
	}
	status := OrbitStatus{ComputedLen: int64(n - 1), PrecisionErrIdx: int64(n), OverflowIdx: Unset}
	if err := c.writeRecords(ctx, status, nil, mono); err != nil {
		return OutcomeUnresolved, err
	}
	c.logger.Info("orbit precision exhausted", slog.Int("failed_n", n))
	return OutcomePrecisionFailed, nil
}

// finishSimple finalizes a simple Parry number: iterate n is the zero
// polynomial, the digit orbit gains a trailing 0, and the cycle is
// encoded as the zero polynomial fixed at period 1.
func (c *Computation) finishSimple(ctx context.Context, n int, res StepResult, mono *monotonicityTracker) (Outcome, error) {
	c.polyBuf = append(c.polyBuf, res.Next)
	c.digitBuf = append(c.digitBuf, res.Digit)
	if err := c.flush(ctx); err != nil {
		return OutcomeUnresolved, err
	}
	// The trailing zero digit has no matching polynomial; it goes in its
	// own block so flushed blocks never exceed BlockLen.
	if err := c.store.AppendDigitBlock(ctx, c.key, n+1, []int64{0}); err != nil {
		return OutcomeUnresolved, fmt.Errorf("append trailing digit: %w", err)
	}

	rec := PeriodicityRecord{Preperiod: int64(n - 1), Period: 1, Simple: true}
	if err := c.writeRecords(ctx, PeriodicOrbitStatus(), &rec, mono); err != nil {
		return OutcomeUnresolved, err
	}
	c.logger.Info("orbit resolved simple Parry", slog.String("periodicity", rec.String()))
	return OutcomeSimpleTerminal, nil
}

// finishPeriodic finalizes a resolved cycle: the orbit is truncated (or
// extended by the one digit the detector does not need) to its principal
// lengths, m+p polynomials and m+p+1 digits.
func (c *Computation) finishPeriodic(ctx context.Context, n int, m, p int64, mono *monotonicityTracker) (Outcome, error) {
	if err := c.flush(ctx); err != nil {
		return OutcomeUnresolved, err
	}

	orbitLen := int(m + p)
	switch {
	case n == orbitLen:
		// Digit c_{m+p+1} equals c_{m+1}: B_m == B_{m+p} makes the digit
		// streams identical one step past the matching iterates.
		ds, err := c.store.Digits(ctx, c.key, int(m)+1, int(m)+1)
		if err != nil {
			return OutcomeUnresolved, fmt.Errorf("fetch cycle digit: %w", err)
		}
		if err := c.store.AppendDigitBlock(ctx, c.key, n+1, []int64{ds[0]}); err != nil {
			return OutcomeUnresolved, fmt.Errorf("append cycle digit: %w", err)
		}
	case n > orbitLen:
		if err := c.store.TruncatePolyOrbit(ctx, c.key, orbitLen); err != nil {
			return OutcomeUnresolved, fmt.Errorf("truncate poly orbit: %w", err)
		}
		if err := c.store.TruncateDigitOrbit(ctx, c.key, orbitLen+1); err != nil {
			return OutcomeUnresolved, fmt.Errorf("truncate digit orbit: %w", err)
		}
	}

	rec := PeriodicityRecord{Preperiod: m, Period: p}
	if err := c.writeRecords(ctx, PeriodicOrbitStatus(), &rec, mono); err != nil {
		return OutcomeUnresolved, err
	}
	c.logger.Info("orbit resolved periodic", slog.String("periodicity", rec.String()))
	return OutcomePeriodic, nil
}

// finishLengthExhausted checkpoints everything computed and records the
// exhausted budget; the orbit stays resumable.
func (c *Computation) finishLengthExhausted(ctx context.Context, mono *monotonicityTracker) (Outcome, error) {
	if err := c.flush(ctx); err != nil {
		return OutcomeUnresolved, err
	}
	// After the final flush the persisted length is bufStart-1. Recording
	// that rather than MaxOrbitLen keeps the status truthful when the
	// budget is smaller than an earlier run's checkpoint, which would
	// otherwise read as corruption on the next resume.
	lastN := c.bufStart - 1
	status := OrbitStatus{ComputedLen: int64(lastN), PrecisionErrIdx: Unset, OverflowIdx: Unset}
	if err := c.writeRecords(ctx, status, nil, mono); err != nil {
		return OutcomeUnresolved, err
	}
	c.logger.Warn("orbit budget exhausted",
		slog.Int("computed_len", lastN),
		slog.Int("max_orbit_len", c.cfg.MaxOrbitLen))
	return OutcomeLengthExhausted, nil
}

// writeRecords persists the final status, optional periodicity, and the
// monotonicity heuristic of a finished run.
func (c *Computation) writeRecords(ctx context.Context, status OrbitStatus, rec *PeriodicityRecord, mono *monotonicityTracker) error {
	if rec != nil {
		if err := c.store.SetPeriodicity(ctx, c.key, *rec); err != nil {
			return fmt.Errorf("write periodicity: %w", err)
		}
	}
	if err := c.store.SetStatus(ctx, c.key, status); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if err := c.store.SetMonotonicity(ctx, c.key, mono.record()); err != nil {
		return fmt.Errorf("write monotonicity: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// bufferedSource
// -----------------------------------------------------------------------------

// bufferedSource serves the period detector from the in-memory block
// buffer when possible and from the store otherwise.
type bufferedSource struct {
	ctx context.Context
	c   *Computation
}

// GetIterate returns B_n. Index 0 is the virtual constant 1.
func (s *bufferedSource) GetIterate(n int) (*IntPolynomial, error) {
	if n == 0 {
		return OnePolynomial(), nil
	}
	c := s.c
	if n >= c.bufStart && n-c.bufStart < len(c.polyBuf) {
		return c.polyBuf[n-c.bufStart], nil
	}
	return c.store.Poly(s.ctx, c.key, n)
}

// -----------------------------------------------------------------------------
// monotonicityTracker
// -----------------------------------------------------------------------------

// monotonicityTracker accumulates the coefficient growth heuristic. It
// is best-effort across resumes: the growth direction at the resume
// boundary is unknown and never counted against alternation.
type monotonicityTracker struct {
	prevMax  int64
	lastDir  int
	altern   bool
	minRatio float64
	observed int64
}

func newMonotonicityTracker(startMax int64, resume MonotonicityRecord) *monotonicityTracker {
	t := &monotonicityTracker{prevMax: startMax, altern: true, minRatio: math.Inf(1)}
	if resume.Observed > 0 {
		t.altern = resume.Alternating
		t.observed = resume.Observed
		if resume.MinRatio > 0 {
			t.minRatio = resume.MinRatio
		}
	}
	return t
}

func (t *monotonicityTracker) observe(maxAbs int64) {
	t.observed++
	if t.prevMax > 0 && maxAbs > 0 {
		ratio := float64(maxAbs) / float64(t.prevMax)
		if ratio < t.minRatio {
			t.minRatio = ratio
		}
		dir := 0
		switch {
		case maxAbs > t.prevMax:
			dir = 1
		case maxAbs < t.prevMax:
			dir = -1
		}
		switch {
		case dir == 0:
			t.altern = false
		case t.lastDir != 0 && dir == t.lastDir:
			t.altern = false
		}
		if dir != 0 {
			t.lastDir = dir
		}
	}
	t.prevMax = maxAbs
}

func (t *monotonicityTracker) record() MonotonicityRecord {
	r := MonotonicityRecord{Alternating: t.altern, Observed: t.observed}
	if t.observed < 2 {
		r.Alternating = false
	}
	if !math.IsInf(t.minRatio, 1) {
		r.MinRatio = t.minRatio
	}
	return r
}
