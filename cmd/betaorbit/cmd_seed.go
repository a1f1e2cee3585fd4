// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianBeta/services/orbit"
)

var seedCmd = &cobra.Command{
	Use:   "seed [inputs.yaml]",
	Short: "Register Perron numbers from a YAML input file",
	Long: `Reads minimal polynomials and decimal root approximations from a YAML
file and registers each under the next free index of its group. Inputs
whose polynomial is already seeded in the group are skipped, so re-running
seed with the same file is harmless.

Input file format (coefficients ascending, constant term first):

  inputs:
    - coeffs: [1, -3, 1]
      root: "2.6180339887498948482"
    - coeffs: [-1, -1, 1]
      root: "1.6180339887498948482"`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

// seedFile is the YAML schema of the input file.
type seedFile struct {
	Inputs []seedInput `yaml:"inputs"`
}

type seedInput struct {
	// Coeffs are the minimal polynomial coefficients, ascending.
	Coeffs []int64 `yaml:"coeffs"`

	// Root is the decimal approximation of the Perron root.
	Root string `yaml:"root"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	logger := newLogger("betaorbit")
	defer logger.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read inputs %s: %w", args[0], err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse inputs %s: %w", args[0], err)
	}
	if len(file.Inputs) == 0 {
		return fmt.Errorf("no inputs in %s", args[0])
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	var seeded, skipped int
	for i, in := range file.Inputs {
		beta, err := orbit.ParsePerronNumber(in.Coeffs, in.Root)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		group := beta.Group()

		idxs, err := st.Orbits(ctx, group)
		if err != nil {
			return err
		}
		dup := false
		for _, idx := range idxs {
			existing, err := st.MinimalPolynomial(ctx, orbit.OrbitKey{Group: group, Index: idx})
			if err != nil {
				return err
			}
			if existing.Equal(beta.MinPoly()) {
				dup = true
				break
			}
		}
		if dup {
			skipped++
			continue
		}

		next := 1
		if len(idxs) > 0 {
			next = idxs[len(idxs)-1] + 1
		}
		key := orbit.OrbitKey{Group: group, Index: next}
		if err := st.SeedInput(ctx, key, beta.MinPoly(), in.Root); err != nil {
			return fmt.Errorf("seed input %d as %s: %w", i, key, err)
		}
		logger.Info("input seeded",
			slog.String("orbit", key.String()),
			slog.String("min_poly", beta.MinPoly().String()))
		seeded++
	}

	fmt.Printf("Seeded %d input(s), skipped %d duplicate(s).\n", seeded, skipped)
	return nil
}
