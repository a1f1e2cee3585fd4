// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orbit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the engine. Purely observational; no
// engine decision reads a metric.
var (
	metricOrbitsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "betaorbit",
		Subsystem: "engine",
		Name:      "orbits_finished_total",
		Help:      "Orbit computation runs finished, by outcome.",
	}, []string{"outcome"})

	metricDigitsComputed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "betaorbit",
		Subsystem: "engine",
		Name:      "digits_computed_total",
		Help:      "Beta-expansion digits resolved across all orbits.",
	})

	metricPrecisionEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "betaorbit",
		Subsystem: "engine",
		Name:      "precision_escalations_total",
		Help:      "Precision doublings triggered by ambiguous digits.",
	})

	metricBlockFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "betaorbit",
		Subsystem: "engine",
		Name:      "block_flushes_total",
		Help:      "Checkpoint blocks flushed to the store.",
	})

	metricOrbitRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "betaorbit",
		Subsystem: "engine",
		Name:      "orbit_repairs_total",
		Help:      "Orbits wiped and restarted after a resume consistency violation.",
	})
)
