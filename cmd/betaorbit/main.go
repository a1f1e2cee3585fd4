// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command betaorbit computes beta-expansion orbits of Perron numbers.
//
// The workflow is:
//
//	# Register minimal polynomials and root approximations
//	betaorbit seed inputs.yaml --store ~/.betaorbit/db
//
//	# Initialize records and group summaries
//	betaorbit setup --store ~/.betaorbit/db
//
//	# Compute this worker's share of the orbits
//	betaorbit run --store ~/.betaorbit/db --workers 4 --rank 2
//
//	# Inspect progress
//	betaorbit status --store ~/.betaorbit/db
//	betaorbit status d2s5:00000001 --store ~/.betaorbit/db
//
// Multiple workers may run concurrently against copies of the same
// seeded inputs; ownership is a pure function of rank and worker count,
// so no two workers ever write the same orbit.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
