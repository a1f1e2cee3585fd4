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
	"sync"

	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Runner executes the orbits owned by one worker rank.
//
// Description:
//
//	The seeded input space is flattened into a deterministic key list
//	(groups in key order, indices ascending) and divided into consecutive
//	partition blocks of PartitionLen keys. Worker r owns block i iff
//	i % WorkerCount == r, so any number of workers can run against the
//	same seeded inputs without coordination: ownership is a pure function
//	of the key list and the runner configuration, and no two workers ever
//	write the same orbit.
//
//	Owned orbits are computed with bounded parallelism. A failing orbit
//	is recorded and skipped, never aborting its siblings; only context
//	cancellation stops the batch early.
//
// Thread Safety: Safe for a single Run call at a time.
type Runner struct {
	store  Store
	cfg    RunnerConfig
	logger *slog.Logger
}

// OrbitResult is the outcome of one orbit within a batch.
type OrbitResult struct {
	Key     OrbitKey
	Outcome Outcome
	Err     error
}

// RunReport summarizes a batch run.
type RunReport struct {
	// Owned is the number of orbit keys this rank owns.
	Owned int

	// ByOutcome counts finished orbits per terminal classification.
	ByOutcome map[Outcome]int

	// Failed lists orbits that errored instead of finishing.
	Failed []OrbitResult
}

// NewRunner validates the configuration and creates a batch runner.
func NewRunner(store Store, cfg RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "runner"), slog.Int("worker_rank", cfg.WorkerRank)),
	}, nil
}

// Run computes every owned orbit and reports the results.
//
// Outputs:
//
//	*RunReport - Per-outcome counts and failed orbits. Non-nil whenever
//	error is nil, including when this rank owns nothing.
//	error - Enumeration failures or ctx.Err(). Individual orbit errors
//	land in the report, not here.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	keys, err := r.ownedKeys(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info("batch starting",
		slog.Int("owned_orbits", len(keys)),
		slog.Int("parallelism", r.cfg.Parallelism))

	var (
		mu      sync.Mutex
		results = make([]OrbitResult, 0, len(keys))
	)
	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Parallelism)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			outcome, err := r.runOne(ctx, key)
			mu.Lock()
			results = append(results, OrbitResult{Key: key, Outcome: outcome, Err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := &RunReport{Owned: len(keys), ByOutcome: make(map[Outcome]int)}
	for _, res := range results {
		if res.Err != nil {
			report.Failed = append(report.Failed, res)
			r.logger.Error("orbit failed",
				slog.String("orbit", res.Key.String()),
				slog.String("error", res.Err.Error()))
			continue
		}
		report.ByOutcome[res.Outcome]++
	}
	r.logger.Info("batch finished",
		slog.Int("owned_orbits", report.Owned),
		slog.Int("failed", len(report.Failed)))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// runOne loads one seeded input and runs its computation.
func (r *Runner) runOne(ctx context.Context, key OrbitKey) (Outcome, error) {
	minPoly, err := r.store.MinimalPolynomial(ctx, key)
	if err != nil {
		return OutcomeUnresolved, fmt.Errorf("load input %s: %w", key, err)
	}
	rootDecimal, err := r.store.RootApproximation(ctx, key)
	if err != nil {
		return OutcomeUnresolved, fmt.Errorf("load root %s: %w", key, err)
	}
	beta, err := ParsePerronNumber(minPoly.Coeffs(), rootDecimal)
	if err != nil {
		return OutcomeUnresolved, fmt.Errorf("parse input %s: %w", key, err)
	}
	comp, err := NewComputation(r.store, key, beta, r.cfg.Engine, r.logger)
	if err != nil {
		return OutcomeUnresolved, err
	}
	return comp.Run(ctx)
}

// ownedKeys flattens the seeded input space and keeps this rank's share.
func (r *Runner) ownedKeys(ctx context.Context) ([]OrbitKey, error) {
	groups, err := r.store.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate groups: %w", err)
	}
	var all []OrbitKey
	for _, group := range groups {
		idxs, err := r.store.Orbits(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("enumerate orbits of %s: %w", group, err)
		}
		for _, idx := range idxs {
			all = append(all, OrbitKey{Group: group, Index: idx})
		}
	}
	return PartitionKeys(all, r.cfg.WorkerCount, r.cfg.WorkerRank, r.cfg.PartitionLen), nil
}

// PartitionKeys returns the subset of keys owned by one worker rank.
// Keys are grouped into consecutive blocks of partitionLen; block i
// belongs to rank i % workerCount. The input order is preserved.
func PartitionKeys(keys []OrbitKey, workerCount, rank, partitionLen int) []OrbitKey {
	var owned []OrbitKey
	for i, key := range keys {
		if (i/partitionLen)%workerCount == rank {
			owned = append(owned, key)
		}
	}
	return owned
}

// -----------------------------------------------------------------------------
// Summaries
// -----------------------------------------------------------------------------

// RecomputeSummaries rebuilds every group's aggregate from its orbit
// records. This is the coordinator pass: exactly one process runs it,
// after worker batches finish.
//
// A resolved periodic orbit contributes its principal orbit length m+p;
// every other orbit contributes its computed length. Groups with no
// seeded orbits are skipped.
func RecomputeSummaries(ctx context.Context, store Store, logger *slog.Logger) error {
	if store == nil {
		return ErrNilStore
	}
	if logger == nil {
		logger = slog.Default()
	}
	groups, err := store.Groups(ctx)
	if err != nil {
		return fmt.Errorf("enumerate groups: %w", err)
	}

	for _, group := range groups {
		idxs, err := store.Orbits(ctx, group)
		if err != nil {
			return fmt.Errorf("enumerate orbits of %s: %w", group, err)
		}
		if len(idxs) == 0 {
			continue
		}

		summary := GroupSummary{MinCompletedLen: -1}
		for _, idx := range idxs {
			key := OrbitKey{Group: group, Index: idx}
			status, err := store.Status(ctx, key)
			if err != nil {
				return fmt.Errorf("status of %s: %w", key, err)
			}
			rec, err := store.Periodicity(ctx, key)
			if err != nil {
				return fmt.Errorf("periodicity of %s: %w", key, err)
			}

			completed := status.ComputedLen
			switch {
			case rec.Known():
				completed = rec.OrbitLen()
				summary.Resolved++
			case status.Failed():
				summary.Resolved++
			}
			summary.Orbits++
			if summary.MinCompletedLen < 0 || completed < summary.MinCompletedLen {
				summary.MinCompletedLen = completed
			}
		}

		if err := store.SetSummary(ctx, group, summary); err != nil {
			return fmt.Errorf("write summary of %s: %w", group, err)
		}
		logger.Info("group summary updated",
			slog.String("group", group.String()),
			slog.Int64("orbits", summary.Orbits),
			slog.Int64("resolved", summary.Resolved),
			slog.Int64("min_completed_len", summary.MinCompletedLen))
	}
	return nil
}
