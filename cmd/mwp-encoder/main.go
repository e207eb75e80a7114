// mwp-encoder: Label Encoding for Math Word Problem Datasets
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lab/mwp-encoder/internal/config"
	"github.com/lab/mwp-encoder/internal/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	envPath    string
	cfg        *config.Config
	logger     *logging.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "mwp-encoder",
		Short: "Encode math word problem equations into training labels",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Close()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a JSON config file")
	flags.StringVar(&a.envPath, "env", ".env", "path to a .env file")
	flags.StringP("mode", "m", "", "labeling mode: flat, incremental or parallel")
	flags.StringP("input", "i", "", "input dataset (JSON array or JSONL)")
	flags.String("format", "", "record format: math23k or complex (detected from the file name when empty)")
	flags.String("vocab", "", "tokenizer vocabulary (vocab.txt or tokenizer.json)")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newBuildCmd(a),
		newInspectCmd(a),
		newCollateCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

// init loads .env, the config file and flag overrides, then opens the logger.
func (a *app) init(cmd *cobra.Command) error {
	if err := config.LoadEnv(a.envPath); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	overrides := map[string]*string{
		"mode":      &cfg.Labeling.Mode,
		"input":     &cfg.Data.Input,
		"format":    &cfg.Data.Format,
		"vocab":     &cfg.Tokenizer.VocabPath,
		"log-level": &cfg.Logging.Level,
	}
	for name, dst := range overrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}
