// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mbeema/veil/pkg/agent"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var (
		opts  agent.Options
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a redacting OTLP logs relay",
		Long: `Accept OTLP logs over gRPC, redact every request and forward it to the
upstream collector. SIGHUP reloads the configuration; with --watch a
configuration file is reloaded whenever it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.interactive {
				return fmt.Errorf("--interactive is not available in serve mode")
			}
			ctx := cmd.Context()
			cfg, err := c.loadConfig(ctx, c.configSource)
			if err != nil {
				return err
			}
			rules, err := c.rules()
			if err != nil {
				return err
			}
			saved, err := c.savedDecisions()
			if err != nil {
				return err
			}

			opts.Config = cfg
			opts.Rules = rules
			opts.Decisions = saved
			opts.Loader = c.loader
			opts.Version = version
			if watch {
				if _, err := os.Stat(c.configSource); err != nil {
					return fmt.Errorf("--watch needs a configuration file: %w", err)
				}
				opts.WatchPath = c.configSource
			}

			logger := c.logger
			logger.Info("starting veil relay",
				zap.String("version", version),
				zap.String("commit", commit),
			)

			a, err := agent.New(opts, logger.Named("agent"))
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			hupCh := make(chan os.Signal, 1)
			signal.Notify(hupCh, syscall.SIGHUP)
			defer signal.Stop(sigCh)
			defer signal.Stop(hupCh)

			for {
				select {
				case sig := <-sigCh:
					logger.Info("received shutdown signal", zap.String("signal", sig.String()))
					done := make(chan error, 1)
					go func() { done <- a.Stop() }()
					select {
					case err := <-done:
						return err
					case <-time.After(shutdownTimeout):
						return fmt.Errorf("shutdown timed out after %s", shutdownTimeout)
					}

				case <-hupCh:
					logger.Info("received SIGHUP, reloading configuration")
					c.loader.Clear()
					next, err := c.loadConfig(ctx, c.configSource)
					if err != nil {
						logger.Error("failed to reload config", zap.Error(err))
						continue
					}
					if err := a.Reload(next); err != nil {
						logger.Error("failed to apply new config", zap.Error(err))
					}
				}
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ListenAddr, "listen", agent.DefaultListenAddr, "relay gRPC listen address")
	flags.StringVar(&opts.Upstream, "upstream", "", "OTLP gRPC endpoint to forward redacted logs to")
	flags.BoolVar(&opts.Insecure, "insecure", false, "connect to the upstream without TLS")
	flags.StringVar(&opts.Compression, "compression", "gzip", "upstream compression (gzip or none)")
	flags.StringVar(&opts.HealthAddr, "health", "127.0.0.1:13133", "health server address, empty to disable")
	flags.BoolVar(&watch, "watch", false, "reload the --config file when it changes")
	return cmd
}
