// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mbeema/veil/pkg/engine"
	"github.com/mbeema/veil/pkg/events"
)

func newRedactCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "redact IN OUT",
		Short: "Redact an OTLP logs file (JSON or protobuf)",
		Long: `Redact every log event in IN and write the result to OUT in the same
encoding. Events whose type is on the removed list are dropped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig(ctx, c.configSource)
			if err != nil {
				return err
			}
			eng, err := c.newEngine(cmd, cfg)
			if err != nil {
				return err
			}

			req, enc, err := events.ReadFile(args[0])
			if err != nil {
				return err
			}
			batch := events.FromRequest(req)
			report, err := eng.RunEvents(ctx, batch.Events())
			if err != nil {
				return err
			}
			if err := events.WriteFile(args[1], batch.Request(), enc); err != nil {
				return err
			}
			c.logReport(report, args[0], args[1])
			return nil
		},
	}
}

func newTextCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "text [IN] [OUT]",
		Short: "Redact a text file line by line",
		Long: `Redact IN (default stdin, or "-") into OUT (default stdout). Word rules
and discovered values apply first, then the string categories.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig(ctx, c.configSource)
			if err != nil {
				return err
			}
			eng, err := c.newEngine(cmd, cfg)
			if err != nil {
				return err
			}

			var src io.Reader = cmd.InOrStdin()
			in := "-"
			if len(args) > 0 && args[0] != "-" {
				in = args[0]
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				src = f
			}

			dst := cmd.OutOrStdout()
			out := "-"
			if len(args) > 1 && args[1] != "-" {
				out = args[1]
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				dst = f
			}

			report, err := eng.RunText(ctx, src, dst)
			if err != nil {
				return err
			}
			c.logReport(report, in, out)
			return nil
		},
	}
}

func (c *cli) logReport(r engine.Report, in, out string) {
	c.logger.Info("redaction complete",
		zap.String("run_id", r.RunID),
		zap.String("in", in),
		zap.String("out", out),
		zap.Stringer("discovery", r.Mode),
		zap.Int("events", r.Events),
		zap.Int("removed", r.Removed),
		zap.Int("lines", r.Lines),
		zap.Int("discovered", r.Discovered),
		zap.Int("replaced", r.Replaced),
	)
}
