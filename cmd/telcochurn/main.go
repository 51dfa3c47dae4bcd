//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TelcoETL.
//
// TelcoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TelcoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TelcoETL. If not, see https://www.gnu.org/licenses/.


package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aaronlmathis/telcoetl/config"
	"github.com/aaronlmathis/telcoetl/database"
	"github.com/aaronlmathis/telcoetl/logging"
	"github.com/aaronlmathis/telcoetl/pipeline"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := 0
	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		code = 1
	}

	stop()
	_ = logging.Sync()
	os.Exit(code)
}

// newRootCmd builds the command tree. Previews and reports go to out.
func newRootCmd(out io.Writer) *cobra.Command {
	var source string

	runE := func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), out, source)
	}

	root := &cobra.Command{
		Use:   "telcochurn",
		Short: "Extract and stage the telco customer churn dataset",
		Long: `telcochurn extracts the raw telco customer churn CSV, stages it into a typed
table, and optionally exports it to a file and loads it into the warehouse.
Configuration comes from the environment and an optional .env file.`,
		RunE:          runE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&source, "source", "", "source CSV path or s3:// URI (overrides ETL_SOURCE_PATH)")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		RunE:  runE,
	})

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Test the warehouse connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConnection(cmd.Context(), out)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "telcochurn v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	return root
}

// setup loads configuration and installs the global logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, nil, err
	}

	log, err := logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		return nil, nil, err
	}

	log.Debug("configuration loaded", zap.Stringer("config", cfg))
	return cfg, log, nil
}

func runPipeline(ctx context.Context, out io.Writer, source string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if source != "" {
		cfg.Pipeline.SourcePath = source
	}

	p, err := pipeline.New(cfg, log, pipeline.WithPreviewWriter(out))
	if err != nil {
		log.Error("failed to create pipeline", zap.Error(err))
		return err
	}

	res, err := p.Run(ctx)
	if err != nil {
		log.Error("pipeline run failed", zap.String("run_id", res.RunID), zap.Stringer("state", res.State))
		return err
	}
	return nil
}

func checkConnection(ctx context.Context, out io.Writer) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	res := database.Check(ctx, cfg.Database, logging.Named(log, "database"))
	if !res.Healthy() {
		fmt.Fprintf(out, "database connection FAILED: %s\n", res.Target)
		return res.Err
	}
	fmt.Fprintf(out, "database connection OK: %s (%s)\n", res.Target, res.Latency)
	return nil
}
