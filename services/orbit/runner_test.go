// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBeta/services/orbit"
)

// testRunnerConfig is a single-worker batch configuration over the
// shared engine test config.
func testRunnerConfig() orbit.RunnerConfig {
	return orbit.RunnerConfig{
		Engine:       testConfig(),
		WorkerCount:  1,
		WorkerRank:   0,
		Parallelism:  2,
		PartitionLen: 2,
	}
}

func makeKeys(n int) []orbit.OrbitKey {
	keys := make([]orbit.OrbitKey, n)
	for i := range keys {
		keys[i] = orbit.OrbitKey{Group: orbit.GroupKey{Degree: 2, SumAbsCoeff: 5}, Index: i + 1}
	}
	return keys
}

// TestPartitionKeys_DisjointCover verifies the ranks of one worker
// count partition the key list exactly, preserving order.
func TestPartitionKeys_DisjointCover(t *testing.T) {
	keys := makeKeys(11)
	const workerCount, partitionLen = 3, 2

	seen := make(map[orbit.OrbitKey]int)
	for rank := 0; rank < workerCount; rank++ {
		for _, k := range orbit.PartitionKeys(keys, workerCount, rank, partitionLen) {
			seen[k]++
		}
	}

	assert.Len(t, seen, len(keys), "every key is owned by some rank")
	for k, count := range seen {
		assert.Equal(t, 1, count, "key %s owned by exactly one rank", k)
	}

	// Rank 0 owns blocks 0 and 3: indices 0,1 and 6,7.
	owned := orbit.PartitionKeys(keys, workerCount, 0, partitionLen)
	assert.Equal(t, []orbit.OrbitKey{keys[0], keys[1], keys[6], keys[7]}, owned)
}

// TestPartitionKeys_SingleWorker verifies one worker owns everything in
// order.
func TestPartitionKeys_SingleWorker(t *testing.T) {
	keys := makeKeys(5)
	assert.Equal(t, keys, orbit.PartitionKeys(keys, 1, 0, 16))
}

// TestPartitionKeys_Deterministic verifies ownership is a pure function
// of its inputs.
func TestPartitionKeys_Deterministic(t *testing.T) {
	keys := makeKeys(20)
	a := orbit.PartitionKeys(keys, 4, 2, 3)
	b := orbit.PartitionKeys(keys, 4, 2, 3)
	assert.Equal(t, a, b)
}

// TestRunner_EndToEnd seeds a mixed batch and verifies the outcome
// tally.
func TestRunner_EndToEnd(t *testing.T) {
	st := newTestStore(t)
	for _, f := range []fixture{fixtureGolden, fixtureFixedPoint, fixtureTribonacci, fixtureInteger} {
		seedFixture(t, st, f)
	}

	r, err := orbit.NewRunner(st, testRunnerConfig(), nil)
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Owned)
	assert.Empty(t, report.Failed)
	assert.Equal(t, map[orbit.Outcome]int{
		orbit.OutcomeSimpleTerminal: 3,
		orbit.OutcomePeriodic:       1,
	}, report.ByOutcome)
}

// TestRunner_TwoRanksResolveEverything verifies two ranks split the
// batch without overlap and together resolve every orbit.
func TestRunner_TwoRanksResolveEverything(t *testing.T) {
	st := newTestStore(t)
	var keys []orbit.OrbitKey
	for _, f := range []fixture{fixtureGolden, fixtureFixedPoint, fixtureTribonacci, fixtureInteger} {
		key, _ := seedFixture(t, st, f)
		keys = append(keys, key)
	}

	total := 0
	for rank := 0; rank < 2; rank++ {
		cfg := testRunnerConfig()
		cfg.WorkerCount = 2
		cfg.WorkerRank = rank
		cfg.PartitionLen = 1

		r, err := orbit.NewRunner(st, cfg, nil)
		require.NoError(t, err)
		report, err := r.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 2, report.Owned, "rank %d", rank)
		assert.Empty(t, report.Failed)
		total += report.Owned
	}
	assert.Equal(t, len(keys), total)

	ctx := context.Background()
	for _, key := range keys {
		rec, err := st.Periodicity(ctx, key)
		require.NoError(t, err)
		assert.True(t, rec.Known(), "orbit %s resolved", key)
	}
}

// TestRunner_RecordsFailures verifies an unparseable input lands in the
// report without aborting the batch.
func TestRunner_RecordsFailures(t *testing.T) {
	st := newTestStore(t)
	goodKey, _ := seedFixture(t, st, fixtureFixedPoint)

	badPoly, err := orbit.ParsePerronNumber(fixtureGolden.coeffs, fixtureGolden.root)
	require.NoError(t, err)
	badKey := orbit.OrbitKey{Group: badPoly.Group(), Index: 1}
	require.NoError(t, st.SeedInput(context.Background(), badKey, badPoly.MinPoly(), "not-a-number"))

	r, err := orbit.NewRunner(st, testRunnerConfig(), nil)
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Owned)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, badKey, report.Failed[0].Key)
	assert.ErrorIs(t, report.Failed[0].Err, orbit.ErrNotPerron)
	assert.Equal(t, 1, report.ByOutcome[orbit.OutcomePeriodic], "sibling orbit %s still finished", goodKey)
}

// TestNewRunner_Validation covers the constructor guards.
func TestNewRunner_Validation(t *testing.T) {
	st := newTestStore(t)

	_, err := orbit.NewRunner(nil, testRunnerConfig(), nil)
	assert.ErrorIs(t, err, orbit.ErrNilStore)

	cfg := testRunnerConfig()
	cfg.WorkerRank = 1
	_, err = orbit.NewRunner(st, cfg, nil)
	assert.Error(t, err, "rank beyond worker count")
}

// TestRecomputeSummaries verifies the coordinator aggregate: periodic
// orbits contribute their principal orbit length, failed orbits count
// as resolved with their computed length.
func TestRecomputeSummaries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	fpKey, fpBeta := seedFixture(t, st, fixtureFixedPoint)
	require.Equal(t, orbit.OutcomePeriodic, runOrbit(t, st, fpKey, fpBeta, testConfig()))

	// A second orbit in the same group, still unresolved at length 5.
	partialKey, _ := seedFixture(t, st, fixtureFixedPoint)
	require.NoError(t, st.SetStatus(ctx, partialKey, orbit.OrbitStatus{ComputedLen: 5, PrecisionErrIdx: orbit.Unset, OverflowIdx: orbit.Unset}))

	// A precision failure in its own group.
	narrowKey, narrowBeta := seedFixture(t, st, fixtureNarrow)
	narrowCfg := testConfig()
	narrowCfg.StartDPS = 1
	narrowCfg.MaxDPS = 1
	require.Equal(t, orbit.OutcomePrecisionFailed, runOrbit(t, st, narrowKey, narrowBeta, narrowCfg))

	require.NoError(t, orbit.RecomputeSummaries(ctx, st, nil))

	sum, err := st.Summary(ctx, fpKey.Group)
	require.NoError(t, err)
	assert.Equal(t, orbit.GroupSummary{MinCompletedLen: 2, Orbits: 2, Resolved: 1}, sum,
		"periodic orbit contributes m+p=2, the untouched one its computed length 5")

	sum, err = st.Summary(ctx, narrowKey.Group)
	require.NoError(t, err)
	assert.Equal(t, orbit.GroupSummary{MinCompletedLen: 1, Orbits: 1, Resolved: 1}, sum,
		"a failed orbit is resolved at its computed length")
}
