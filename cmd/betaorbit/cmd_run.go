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
	"os/signal"
	"sort"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/AleutianBeta/services/orbit"
)

var (
	flagWorkers      int
	flagRank         int
	flagParallelism  int
	flagPartitionLen int
	flagMaxOrbitLen  int
	flagMetricsAddr  string
	flagTrace        bool
	flagSummarize    bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Compute this worker's share of the seeded orbits",
		Long: `Partitions the seeded orbit keys into consecutive blocks and computes
every block owned by this worker's rank. Interrupting with SIGINT or
SIGTERM stops between checkpoints; a later run resumes from the last
flushed block.

Flags override values from the --config file. With --summarize the
worker rebuilds group summaries after its batch; only one worker (by
convention rank 0) should pass it.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Total number of workers sharing the input space")
	runCmd.Flags().IntVar(&flagRank, "rank", -1, "This worker's rank, in [0, workers)")
	runCmd.Flags().IntVar(&flagParallelism, "parallelism", 0, "Concurrent orbits within this worker")
	runCmd.Flags().IntVar(&flagPartitionLen, "partition-len", 0, "Orbit keys per ownership block")
	runCmd.Flags().IntVar(&flagMaxOrbitLen, "max-orbit-len", 0, "Iterate budget per orbit")
	runCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	runCmd.Flags().BoolVar(&flagTrace, "trace", false, "Emit OpenTelemetry spans to stdout")
	runCmd.Flags().BoolVar(&flagSummarize, "summarize", false, "Rebuild group summaries after the batch")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(&cfg.Runner)
	if err := cfg.Runner.Validate(); err != nil {
		return err
	}

	runID := uuid.New().String()
	logger := newLogger(fmt.Sprintf("betaorbit-rank%d", cfg.Runner.WorkerRank))
	defer logger.Close()
	slogger := logger.Slog().With(slog.String("run_id", runID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagTrace {
		shutdown, err := setupTracing()
		if err != nil {
			return err
		}
		defer shutdown()
	}
	if flagMetricsAddr != "" {
		startMetricsServer(flagMetricsAddr, slogger)
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := orbit.NewRunner(st, cfg.Runner, slogger)
	if err != nil {
		return err
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("betaorbit run %s\n  store: %s\n  rank: %d/%d, parallelism %d\n",
			runID, cfg.StorePath, cfg.Runner.WorkerRank, cfg.Runner.WorkerCount, cfg.Runner.Parallelism)
	}

	report, runErr := runner.Run(ctx)
	if report != nil {
		printReport(report)
	}
	if runErr != nil {
		return runErr
	}

	if flagSummarize {
		if err := orbit.RecomputeSummaries(ctx, st, slogger); err != nil {
			return err
		}
	}
	return nil
}

// applyRunFlags overlays explicitly set flags onto the file config.
func applyRunFlags(cfg *orbit.RunnerConfig) {
	if flagWorkers > 0 {
		cfg.WorkerCount = flagWorkers
	}
	if flagRank >= 0 {
		cfg.WorkerRank = flagRank
	}
	if flagParallelism > 0 {
		cfg.Parallelism = flagParallelism
	}
	if flagPartitionLen > 0 {
		cfg.PartitionLen = flagPartitionLen
	}
	if flagMaxOrbitLen > 0 {
		cfg.Engine.MaxOrbitLen = flagMaxOrbitLen
	}
}

// setupTracing installs a stdout span exporter for local inspection.
func setupTracing() (func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return func() { _ = tp.Shutdown(context.Background()) }, nil
}

// startMetricsServer serves /metrics in the background. Errors are
// logged, not fatal; the batch matters more than its metrics endpoint.
func startMetricsServer(addr string, logger *slog.Logger) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.String(200, "ok")
	})

	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := router.Run(addr); err != nil {
			logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
}

// printReport writes the per-outcome tally of a finished batch.
func printReport(report *orbit.RunReport) {
	fmt.Printf("Owned orbits: %d\n", report.Owned)

	outcomes := make([]orbit.Outcome, 0, len(report.ByOutcome))
	for o := range report.ByOutcome {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })
	for _, o := range outcomes {
		fmt.Printf("  %-18s %d\n", o.String()+":", report.ByOutcome[o])
	}
	for _, f := range report.Failed {
		fmt.Printf("  FAILED %s: %v\n", f.Key, f.Err)
	}
}
