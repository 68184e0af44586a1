// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// parley-relay serves the three relay endpoints parley clients use:
// the websocket hub for server-relay rooms (/relay), the WebRTC peer
// broker (/peer), and the mesh signaling board (/board/...). It runs
// until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/parley/lib/config"
	"github.com/bureau-foundation/parley/lib/logging"
	"github.com/bureau-foundation/parley/lib/version"
	"github.com/bureau-foundation/parley/relay"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath, listen string
	var verbose, showVersion bool

	flagSet := pflag.NewFlagSet("parley-relay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "config file (yaml, toml or jsonc; default $PARLEY_CONFIG)")
	flagSet.StringVar(&listen, "listen", "", "listen address (overrides relay.listen)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.SetOutput(io.Discard)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Usage: parley-relay [flags]\n\nFlags:\n")
			flagSet.SetOutput(os.Stderr)
			flagSet.PrintDefaults()
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if showVersion {
		version.Print("parley-relay")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Relay.Listen = listen
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve runs the relay until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	server := relay.NewServer(relay.ServerConfig{
		MemberTTL:    cfg.Relay.MemberTTL.Std(),
		WriteTimeout: cfg.Relay.WriteTimeout.Std(),
		Logger:       logger,
	})
	defer server.Close()

	go func() {
		select {
		case <-server.Ready():
			logger.Info("relay running",
				"address", server.Address(),
				"environment", cfg.Environment,
				"member_ttl", cfg.Relay.MemberTTL,
				"version", version.Info(),
			)
		case <-ctx.Done():
		}
	}()

	err := server.ListenAndServe(ctx, cfg.Relay.Listen)
	logger.Info("shutting down")
	return err
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
