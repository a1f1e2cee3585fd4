// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store provides the BadgerDB-backed implementation of the
// orbit engine's persistence contract.
//
// Orbit data is append-only and key-partitioned: iterate and digit
// blocks are immutable once written, every record is checksummed, and
// keys zero-pad their numeric components so lexicographic iteration is
// numeric iteration. Truncation after period resolution deletes whole
// blocks past the boundary and rewrites only the single straddling one.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianBeta/services/orbit"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrCorrupted is returned when a stored value fails its CRC check.
	ErrCorrupted = errors.New("store value corrupted (CRC mismatch)")

	// ErrAlreadySeeded is returned when seeding an already-seeded key.
	ErrAlreadySeeded = errors.New("orbit input already seeded")

	// ErrNotPersisted is returned when a requested iterate or digit lies
	// beyond the persisted orbit.
	ErrNotPersisted = errors.New("orbit element not persisted")

	// ErrBlockMisaligned is returned when an appended block does not
	// start exactly one past the current orbit length.
	ErrBlockMisaligned = errors.New("block start does not extend the orbit")

	// ErrStoreClosed is returned when operations are called after Close.
	ErrStoreClosed = errors.New("store is closed")
)

// -----------------------------------------------------------------------------
// BadgerStore
// -----------------------------------------------------------------------------

// BadgerStore implements orbit.Store on BadgerDB.
//
// Thread Safety: Safe for concurrent use. Writers to the same orbit key
// must be excluded externally (the worker partition guarantees this).
type BadgerStore struct {
	db     *badger.DB
	gc     *gcRunner
	logger *slog.Logger
	closed atomic.Bool
}

var _ orbit.Store = (*BadgerStore)(nil)

// Open opens (creating if necessary) a store per the configuration.
//
// Outputs:
//
//	*BadgerStore - Ready to use. Caller must Close.
//	error - Invalid configuration or BadgerDB open failure.
func Open(cfg Config) (*BadgerStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "orbitstore"))

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &BadgerStore{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		s.gc.start()
	}

	logger.Info("orbit store opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory),
		slog.Bool("sync_writes", cfg.SyncWrites))
	return s, nil
}

// OpenInMemory opens a throwaway in-memory store for testing.
func OpenInMemory() (*BadgerStore, error) {
	return Open(InMemoryConfig())
}

// Close stops garbage collection and closes the database. Safe to call
// once; subsequent operations return ErrStoreClosed.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// withTxn runs fn in a read-write transaction, committing on nil.
func (s *BadgerStore) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// withReadTxn runs fn in a read-only transaction.
func (s *BadgerStore) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

// -----------------------------------------------------------------------------
// Inputs
// -----------------------------------------------------------------------------

// SeedInput registers a minimal polynomial and decimal root under a key.
func (s *BadgerStore) SeedInput(ctx context.Context, key orbit.OrbitKey, minPoly *orbit.IntPolynomial, rootDecimal string) error {
	if minPoly == nil {
		return fmt.Errorf("%w: nil polynomial", orbit.ErrBadKey)
	}
	if got := orbit.GroupKeyFor(minPoly); got != key.Group {
		return fmt.Errorf("%w: polynomial group %s does not match key group %s", orbit.ErrBadKey, got, key.Group)
	}

	polyVal, err := encodeValue(minPoly.Coeffs())
	if err != nil {
		return err
	}
	rootVal, err := encodeValue(rootDecimal)
	if err != nil {
		return err
	}

	return s.withTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(inputPolyKey(key)); err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadySeeded, key)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(inputPolyKey(key), polyVal); err != nil {
			return err
		}
		return txn.Set(inputRootKey(key), rootVal)
	})
}

// MinimalPolynomial returns the seeded polynomial.
func (s *BadgerStore) MinimalPolynomial(ctx context.Context, key orbit.OrbitKey) (*orbit.IntPolynomial, error) {
	var coeffs []int64
	found, err := s.getRecord(ctx, inputPolyKey(key), &coeffs)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", orbit.ErrOrbitNotSeeded, key)
	}
	return orbit.NewIntPolynomial(coeffs), nil
}

// RootApproximation returns the seeded decimal root string.
func (s *BadgerStore) RootApproximation(ctx context.Context, key orbit.OrbitKey) (string, error) {
	var root string
	found, err := s.getRecord(ctx, inputRootKey(key), &root)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s", orbit.ErrOrbitNotSeeded, key)
	}
	return root, nil
}

// Groups enumerates all polynomial groups with seeded inputs, in key
// order. Input keys sort by group then index, so groups come out
// contiguous.
func (s *BadgerStore) Groups(ctx context.Context) ([]orbit.GroupKey, error) {
	var groups []orbit.GroupKey
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(inputPolyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k, err := orbit.ParseOrbitKey(string(it.Item().Key()[len(prefix):]))
			if err != nil {
				return err
			}
			if len(groups) == 0 || groups[len(groups)-1] != k.Group {
				groups = append(groups, k.Group)
			}
		}
		return nil
	})
	return groups, err
}

// Orbits enumerates the seeded orbit indices of a group, ascending.
func (s *BadgerStore) Orbits(ctx context.Context, group orbit.GroupKey) ([]int, error) {
	var idxs []int
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(inputPolyPrefix + group.String() + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var idx int
			if _, err := fmt.Sscanf(string(it.Item().Key()[len(prefix):]), "%08d", &idx); err != nil {
				return fmt.Errorf("%w: input key %q", orbit.ErrBadKey, it.Item().Key())
			}
			idxs = append(idxs, idx)
		}
		return nil
	})
	return idxs, err
}

// -----------------------------------------------------------------------------
// Records
// -----------------------------------------------------------------------------

// getRecord loads and decodes one value; found is false on a missing key.
func (s *BadgerStore) getRecord(ctx context.Context, key []byte, out any) (found bool, err error) {
	err = s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return decodeValue(val, out)
		})
	})
	return found, err
}

// setRecord encodes and overwrites one value.
func (s *BadgerStore) setRecord(ctx context.Context, key []byte, v any) error {
	val, err := encodeValue(v)
	if err != nil {
		return err
	}
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// Status returns the orbit's status record, defaulting to fresh.
func (s *BadgerStore) Status(ctx context.Context, key orbit.OrbitKey) (orbit.OrbitStatus, error) {
	var status orbit.OrbitStatus
	found, err := s.getRecord(ctx, statusKey(key), &status)
	if err != nil {
		return orbit.OrbitStatus{}, err
	}
	if !found {
		return orbit.NewOrbitStatus(), nil
	}
	return status, nil
}

// SetStatus overwrites the orbit's status record.
func (s *BadgerStore) SetStatus(ctx context.Context, key orbit.OrbitKey, status orbit.OrbitStatus) error {
	return s.setRecord(ctx, statusKey(key), status)
}

// Periodicity returns the orbit's periodicity record, defaulting to
// unresolved.
func (s *BadgerStore) Periodicity(ctx context.Context, key orbit.OrbitKey) (orbit.PeriodicityRecord, error) {
	var rec orbit.PeriodicityRecord
	found, err := s.getRecord(ctx, periodicKey(key), &rec)
	if err != nil {
		return orbit.PeriodicityRecord{}, err
	}
	if !found {
		return orbit.NewPeriodicityRecord(), nil
	}
	return rec, nil
}

// SetPeriodicity overwrites the orbit's periodicity record.
func (s *BadgerStore) SetPeriodicity(ctx context.Context, key orbit.OrbitKey, record orbit.PeriodicityRecord) error {
	return s.setRecord(ctx, periodicKey(key), record)
}

// Monotonicity returns the orbit's growth heuristic record.
func (s *BadgerStore) Monotonicity(ctx context.Context, key orbit.OrbitKey) (orbit.MonotonicityRecord, error) {
	var rec orbit.MonotonicityRecord
	if _, err := s.getRecord(ctx, monoKey(key), &rec); err != nil {
		return orbit.MonotonicityRecord{}, err
	}
	return rec, nil
}

// SetMonotonicity overwrites the orbit's growth heuristic record.
func (s *BadgerStore) SetMonotonicity(ctx context.Context, key orbit.OrbitKey, record orbit.MonotonicityRecord) error {
	return s.setRecord(ctx, monoKey(key), record)
}

// Summary returns the group's coordinator aggregate.
func (s *BadgerStore) Summary(ctx context.Context, group orbit.GroupKey) (orbit.GroupSummary, error) {
	var sum orbit.GroupSummary
	if _, err := s.getRecord(ctx, summaryKey(group), &sum); err != nil {
		return orbit.GroupSummary{}, err
	}
	return sum, nil
}

// SetSummary overwrites the group's coordinator aggregate.
func (s *BadgerStore) SetSummary(ctx context.Context, group orbit.GroupKey, summary orbit.GroupSummary) error {
	return s.setRecord(ctx, summaryKey(group), summary)
}

// -----------------------------------------------------------------------------
// Orbit blocks
// -----------------------------------------------------------------------------

// AppendPolyBlock persists one immutable block of polynomial iterates.
func (s *BadgerStore) AppendPolyBlock(ctx context.Context, key orbit.OrbitKey, startN int, polys []*orbit.IntPolynomial) error {
	if len(polys) == 0 {
		return errors.New("poly block must not be empty")
	}
	rows := make([][]int64, len(polys))
	for i, p := range polys {
		if p == nil {
			return fmt.Errorf("poly at index %d is nil", i)
		}
		rows[i] = p.Coeffs()
	}
	val, err := encodeValue(rows)
	if err != nil {
		return err
	}

	prefix := polyBlockPrefix(key)
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		cur, err := orbitLenTxn[[]int64](txn, prefix)
		if err != nil {
			return err
		}
		if startN != cur+1 {
			return fmt.Errorf("%w: append at %d, orbit length %d", ErrBlockMisaligned, startN, cur)
		}
		return txn.Set(polyBlockKey(key, startN), val)
	})
}

// AppendDigitBlock persists one immutable block of digits.
func (s *BadgerStore) AppendDigitBlock(ctx context.Context, key orbit.OrbitKey, startN int, digits []int64) error {
	if len(digits) == 0 {
		return errors.New("digit block must not be empty")
	}
	val, err := encodeValue(digits)
	if err != nil {
		return err
	}

	prefix := coefBlockPrefix(key)
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		cur, err := orbitLenTxn[int64](txn, prefix)
		if err != nil {
			return err
		}
		if startN != cur+1 {
			return fmt.Errorf("%w: append at %d, orbit length %d", ErrBlockMisaligned, startN, cur)
		}
		return txn.Set(coefBlockKey(key, startN), val)
	})
}

// PolyOrbitLen returns the number of persisted polynomial iterates.
func (s *BadgerStore) PolyOrbitLen(ctx context.Context, key orbit.OrbitKey) (int, error) {
	var length int
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		length, err = orbitLenTxn[[]int64](txn, polyBlockPrefix(key))
		return err
	})
	return length, err
}

// DigitOrbitLen returns the number of persisted digits.
func (s *BadgerStore) DigitOrbitLen(ctx context.Context, key orbit.OrbitKey) (int, error) {
	var length int
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		length, err = orbitLenTxn[int64](txn, coefBlockPrefix(key))
		return err
	})
	return length, err
}

// orbitLenTxn computes the persisted orbit length from the last block:
// a reverse seek past the prefix lands on the highest block key, and
// the length is its startN - 1 plus its element count.
func orbitLenTxn[E any](txn *badger.Txn, prefix string) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	pfx := []byte(prefix)
	it.Seek(append(append([]byte{}, pfx...), 0xFF, 0xFF, 0xFF, 0xFF))
	if !it.ValidForPrefix(pfx) {
		return 0, nil
	}

	item := it.Item()
	startN, err := parseBlockStart(item.Key(), len(pfx))
	if err != nil {
		return 0, err
	}
	var block []E
	if err := item.Value(func(val []byte) error {
		return decodeValue(val, &block)
	}); err != nil {
		return 0, err
	}
	return startN - 1 + len(block), nil
}

// Poly returns the persisted iterate B_n, 1-based. A reverse seek to
// the block key for n lands on the covering block (the greatest block
// start <= n).
func (s *BadgerStore) Poly(ctx context.Context, key orbit.OrbitKey, n int) (*orbit.IntPolynomial, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: iterate index %d", orbit.ErrBadKey, n)
	}

	var poly *orbit.IntPolynomial
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		pfx := []byte(polyBlockPrefix(key))
		it.Seek(polyBlockKey(key, n))
		if !it.ValidForPrefix(pfx) {
			return fmt.Errorf("%w: iterate %d of %s", ErrNotPersisted, n, key)
		}

		item := it.Item()
		startN, err := parseBlockStart(item.Key(), len(pfx))
		if err != nil {
			return err
		}
		var rows [][]int64
		if err := item.Value(func(val []byte) error {
			return decodeValue(val, &rows)
		}); err != nil {
			return err
		}
		idx := n - startN
		if idx >= len(rows) {
			return fmt.Errorf("%w: iterate %d of %s", ErrNotPersisted, n, key)
		}
		poly = orbit.NewIntPolynomial(rows[idx])
		return nil
	})
	return poly, err
}

// Digits returns the persisted digits c_from..c_to inclusive, 1-based.
func (s *BadgerStore) Digits(ctx context.Context, key orbit.OrbitKey, from, to int) ([]int64, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("%w: digit range [%d, %d]", orbit.ErrBadKey, from, to)
	}

	out := make([]int64, 0, to-from+1)
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		pfx := []byte(coefBlockPrefix(key))

		// Locate the block covering `from` with a reverse seek, then walk
		// forward from there.
		var firstKey []byte
		{
			opts := badger.DefaultIteratorOptions
			opts.Reverse = true
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			it.Seek(coefBlockKey(key, from))
			if !it.ValidForPrefix(pfx) {
				it.Close()
				return fmt.Errorf("%w: digit %d of %s", ErrNotPersisted, from, key)
			}
			firstKey = it.Item().KeyCopy(nil)
			it.Close()
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(firstKey); it.ValidForPrefix(pfx); it.Next() {
			item := it.Item()
			startN, err := parseBlockStart(item.Key(), len(pfx))
			if err != nil {
				return err
			}
			var block []int64
			if err := item.Value(func(val []byte) error {
				return decodeValue(val, &block)
			}); err != nil {
				return err
			}
			for i, d := range block {
				n := startN + i
				if n < from {
					continue
				}
				if n > to {
					return nil
				}
				out = append(out, d)
			}
			if len(out) == to-from+1 {
				return nil
			}
		}
		if len(out) != to-from+1 {
			return fmt.Errorf("%w: digits [%d, %d] of %s", ErrNotPersisted, from, to, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TruncatePolyOrbit discards iterates beyond the given length.
func (s *BadgerStore) TruncatePolyOrbit(ctx context.Context, key orbit.OrbitKey, length int) error {
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		return truncateTxn[[]int64](txn, polyBlockPrefix(key), length)
	})
}

// TruncateDigitOrbit discards digits beyond the given length.
func (s *BadgerStore) TruncateDigitOrbit(ctx context.Context, key orbit.OrbitKey, length int) error {
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		return truncateTxn[int64](txn, coefBlockPrefix(key), length)
	})
}

// truncateTxn deletes every block past the boundary and rewrites the
// one straddling it, if any.
func truncateTxn[E any](txn *badger.Txn, prefix string, length int) error {
	if length < 0 {
		return fmt.Errorf("%w: truncate length %d", orbit.ErrBadKey, length)
	}

	var (
		deleteKeys [][]byte
		rewriteKey []byte
		rewriteVal []byte
	)

	pfx := []byte(prefix)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	for it.Seek(pfx); it.ValidForPrefix(pfx); it.Next() {
		item := it.Item()
		startN, err := parseBlockStart(item.Key(), len(pfx))
		if err != nil {
			it.Close()
			return err
		}
		if startN > length {
			deleteKeys = append(deleteKeys, item.KeyCopy(nil))
			continue
		}

		var block []E
		if err := item.Value(func(val []byte) error {
			return decodeValue(val, &block)
		}); err != nil {
			it.Close()
			return err
		}
		if keep := length - startN + 1; keep < len(block) {
			val, err := encodeValue(block[:keep])
			if err != nil {
				it.Close()
				return err
			}
			rewriteKey = item.KeyCopy(nil)
			rewriteVal = val
		}
	}
	it.Close()

	for _, k := range deleteKeys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	if rewriteKey != nil {
		return txn.Set(rewriteKey, rewriteVal)
	}
	return nil
}

// DropOrbitData removes all polynomial and digit blocks of an orbit,
// leaving inputs and records in place. Deletes run in bounded batches
// so arbitrarily long orbits cannot overflow a single transaction.
func (s *BadgerStore) DropOrbitData(ctx context.Context, key orbit.OrbitKey) error {
	for _, prefix := range []string{polyBlockPrefix(key), coefBlockPrefix(key)} {
		var keys [][]byte
		err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			pfx := []byte(prefix)
			for it.Seek(pfx); it.ValidForPrefix(pfx); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			return nil
		})
		if err != nil {
			return err
		}

		const batch = 1000
		for i := 0; i < len(keys); i += batch {
			end := min(i+batch, len(keys))
			err := s.withTxn(ctx, func(txn *badger.Txn) error {
				for _, k := range keys[i:end] {
					if err := txn.Delete(k); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
