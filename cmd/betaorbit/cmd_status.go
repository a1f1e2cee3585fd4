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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBeta/services/orbit"
)

var (
	flagDigits int

	statusCmd = &cobra.Command{
		Use:   "status [orbit-key]",
		Short: "Show group summaries or one orbit's records",
		Long: `Without arguments, lists every group with its summary. With an orbit
key such as "d2s5:00000001", prints that orbit's input, records, and a
prefix of its digit expansion.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runStatus,
	}
)

func init() {
	statusCmd.Flags().IntVar(&flagDigits, "digits", 32, "Number of expansion digits to print for a single orbit")
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger("betaorbit")
	defer logger.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if len(args) == 0 {
		return printGroups(ctx, st)
	}

	key, err := orbit.ParseOrbitKey(args[0])
	if err != nil {
		return err
	}
	return printOrbit(ctx, st, key)
}

func printGroups(ctx context.Context, st orbit.Store) error {
	groups, err := st.Groups(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("No seeded inputs.")
		return nil
	}

	fmt.Printf("%-10s %8s %10s %18s\n", "GROUP", "ORBITS", "RESOLVED", "MIN_COMPLETED_LEN")
	for _, group := range groups {
		sum, err := st.Summary(ctx, group)
		if err != nil {
			return err
		}
		fmt.Printf("%-10s %8d %10d %18d\n", group, sum.Orbits, sum.Resolved, sum.MinCompletedLen)
	}
	return nil
}

func printOrbit(ctx context.Context, st orbit.Store, key orbit.OrbitKey) error {
	minPoly, err := st.MinimalPolynomial(ctx, key)
	if err != nil {
		return err
	}
	root, err := st.RootApproximation(ctx, key)
	if err != nil {
		return err
	}
	status, err := st.Status(ctx, key)
	if err != nil {
		return err
	}
	rec, err := st.Periodicity(ctx, key)
	if err != nil {
		return err
	}
	mono, err := st.Monotonicity(ctx, key)
	if err != nil {
		return err
	}
	digitLen, err := st.DigitOrbitLen(ctx, key)
	if err != nil {
		return err
	}

	fmt.Printf("Orbit %s\n", key)
	fmt.Printf("  min poly:     %s\n", minPoly)
	fmt.Printf("  root:         %s\n", root)
	fmt.Printf("  status:       %s\n", status)
	fmt.Printf("  periodicity:  %s\n", rec)
	if mono.Observed > 0 {
		fmt.Printf("  growth:       alternating=%t min_ratio=%.4f observed=%d\n",
			mono.Alternating, mono.MinRatio, mono.Observed)
	}
	fmt.Printf("  digits:       %d persisted\n", digitLen)

	if digitLen > 0 && flagDigits > 0 {
		to := min(flagDigits, digitLen)
		digits, err := st.Digits(ctx, key, 1, to)
		if err != nil {
			return err
		}
		fmt.Printf("  expansion:    %v", digits)
		if to < digitLen {
			fmt.Printf(" ...")
		}
		fmt.Println()
	}
	return nil
}
