// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// configValidate is the validator instance for engine configuration.
var configValidate = validator.New()

// Config holds the per-orbit computation parameters.
type Config struct {
	// MaxOrbitLen is the iterate budget. An orbit that reaches it without
	// resolving stops with OutcomeLengthExhausted and can be resumed
	// later with a larger budget.
	MaxOrbitLen int `yaml:"max_orbit_len" validate:"required,min=1"`

	// BlockLen is the checkpoint granularity: iterates and digits are
	// buffered in memory and flushed to the store in blocks of this size.
	BlockLen int `yaml:"block_len" validate:"required,min=1"`

	// StartDPS is the initial tolerance resolution in decimal digits.
	StartDPS int `yaml:"start_dps" validate:"required,min=1"`

	// MaxDPS is the hard precision ceiling in decimal digits. A digit
	// still ambiguous at this precision terminates the orbit.
	MaxDPS int `yaml:"max_dps" validate:"required,min=1,gtefield=StartDPS"`

	// CoeffCeiling is the largest allowed absolute iterate coefficient.
	// Kept below the int64 range so the modular reduction arithmetic has
	// headroom before wrapping.
	CoeffCeiling int64 `yaml:"coeff_ceiling" validate:"required,min=1,max=4611686018427387904"`
}

// DefaultConfig returns production defaults.
//
// Outputs:
//
//	Config - Ready-to-use computation configuration.
func DefaultConfig() Config {
	return Config{
		MaxOrbitLen:  10_000_000,
		BlockLen:     10_000,
		StartDPS:     32,
		MaxDPS:       1_000,
		CoeffCeiling: 1 << 62,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid orbit config: %w", err)
	}
	return nil
}

// RunnerConfig holds the batch execution parameters on top of the
// per-orbit Config.
type RunnerConfig struct {
	// Engine is the per-orbit computation configuration.
	Engine Config `yaml:"engine"`

	// WorkerCount is the total number of worker processes sharing the
	// input space.
	WorkerCount int `yaml:"worker_count" validate:"required,min=1"`

	// WorkerRank identifies this worker, in [0, WorkerCount).
	WorkerRank int `yaml:"worker_rank" validate:"min=0"`

	// Parallelism bounds the number of orbits this worker computes
	// concurrently.
	Parallelism int `yaml:"parallelism" validate:"required,min=1"`

	// PartitionLen is the number of consecutive orbit keys per ownership
	// block. Worker r owns partition block i iff i % WorkerCount == r.
	PartitionLen int `yaml:"partition_len" validate:"required,min=1"`
}

// DefaultRunnerConfig returns single-process defaults: one worker owning
// everything, computing orbits one at a time.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Engine:       DefaultConfig(),
		WorkerCount:  1,
		WorkerRank:   0,
		Parallelism:  1,
		PartitionLen: 16,
	}
}

// Validate checks the configuration, including the rank/count relation
// that struct tags cannot express.
func (c RunnerConfig) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid runner config: %w", err)
	}
	if c.WorkerRank >= c.WorkerCount {
		return fmt.Errorf("invalid runner config: worker_rank %d must be < worker_count %d", c.WorkerRank, c.WorkerCount)
	}
	return nil
}
