// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianBeta/pkg/logging"
	"github.com/AleutianAI/AleutianBeta/services/orbit"
	"github.com/AleutianAI/AleutianBeta/services/orbit/store"
)

var (
	rootCmd = &cobra.Command{
		Use:   "betaorbit",
		Short: "Compute beta-expansion orbits of Perron numbers",
		Long: `betaorbit iterates the beta expansion of 1 for seeded Perron numbers,
detects eventual periodicity, and persists orbits crash-consistently so
interrupted computations resume from their last checkpoint.`,
		SilenceUsage: true,
	}

	// Persistent flags.
	flagStorePath  string
	flagConfigPath string
	flagLogDir     string
	flagDebug      bool
	flagQuiet      bool
	flagJSONLogs   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagStorePath, "store", "", "Path to the orbit store directory")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to a YAML runner configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "Directory for log files (file logging disabled when empty)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "Disable stderr logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "Emit JSON logs on stderr")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}

// cliConfig is the on-disk configuration file: the runner configuration
// plus the store location. Flags override file values.
type cliConfig struct {
	StorePath string             `yaml:"store_path"`
	Runner    orbit.RunnerConfig `yaml:",inline"`
}

// loadConfig reads the optional configuration file and applies flag
// overrides. Returns defaults when no file was given.
func loadConfig() (cliConfig, error) {
	cfg := cliConfig{Runner: orbit.DefaultRunnerConfig()}
	if flagConfigPath != "" {
		data, err := os.ReadFile(flagConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", flagConfigPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", flagConfigPath, err)
		}
	}
	if flagStorePath != "" {
		cfg.StorePath = flagStorePath
	}
	if cfg.StorePath == "" {
		return cfg, fmt.Errorf("no store path: set --store or store_path in the config file")
	}
	return cfg, nil
}

// newLogger builds the process logger from the persistent flags.
func newLogger(service string) *logging.Logger {
	level := logging.LevelInfo
	if flagDebug {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  flagLogDir,
		Service: service,
		JSON:    flagJSONLogs,
		Quiet:   flagQuiet,
	})
}

// openStore opens the configured store for a subcommand.
func openStore(cfg cliConfig, logger *logging.Logger) (*store.BadgerStore, error) {
	storeCfg := store.DefaultConfig()
	storeCfg.Path = cfg.StorePath
	storeCfg.Logger = logger.Slog()
	return store.Open(storeCfg)
}
