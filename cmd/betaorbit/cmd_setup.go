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

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize records and group summaries for seeded inputs",
	Long: `Writes an explicit fresh status record for every seeded orbit that has
none yet, then rebuilds all group summaries. Run it once after seeding
(and again after adding inputs); workers read the summaries it produces.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
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
	groups, err := st.Groups(ctx)
	if err != nil {
		return err
	}

	var initialized int
	for _, group := range groups {
		idxs, err := st.Orbits(ctx, group)
		if err != nil {
			return err
		}
		for _, idx := range idxs {
			key := orbit.OrbitKey{Group: group, Index: idx}
			polyLen, err := st.PolyOrbitLen(ctx, key)
			if err != nil {
				return err
			}
			if polyLen > 0 {
				continue // already running or finished
			}
			if err := st.SetStatus(ctx, key, orbit.NewOrbitStatus()); err != nil {
				return err
			}
			initialized++
		}
	}

	if err := orbit.RecomputeSummaries(ctx, st, logger.Slog()); err != nil {
		return err
	}

	fmt.Printf("Initialized %d orbit(s) across %d group(s).\n", initialized, len(groups))
	return nil
}
