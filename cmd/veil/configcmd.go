// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mbeema/veil/pkg/config"
	"github.com/mbeema/veil/pkg/pseudonym"
)

func newConfigCmd(c *cli) *cobra.Command {
	var listPresets bool
	cmd := &cobra.Command{
		Use:   "config [SOURCE]",
		Short: "Print the merged configuration",
		Long: `Resolve SOURCE (default the --config value) with its parents and
environment overrides, and print the merged result as YAML.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if listPresets {
				for _, name := range config.Presets() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			source := c.configSource
			if len(args) == 1 {
				source = args[0]
			}
			cfg, err := c.loadConfig(cmd.Context(), source)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&listPresets, "presets", false, "list the bundled presets")
	return cmd
}

func newGenerateCmd(c *cli) *cobra.Command {
	var (
		count int
		value string
	)
	cmd := &cobra.Command{
		Use:   "generate CATEGORY",
		Short: "Print pseudonyms from a category's template",
		Long: `Print N distinct pseudonyms drawn from CATEGORY's template, or with
--value the pseudonym VALUE maps to under the configured seed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd.Context(), c.configSource)
			if err != nil {
				return err
			}
			ps := cfg.Pseudonymization
			gen, err := pseudonym.New(ps.TemplateMap(),
				pseudonym.WithSeed(ps.SeedOrDefault()),
				pseudonym.WithLogger(c.logger.Named("pseudonym")),
			)
			if err != nil {
				return err
			}

			category := args[0]
			if !gen.Has(category) {
				return fmt.Errorf("no template for category %q (have: %s)",
					category, strings.Join(gen.Categories(), ", "))
			}

			out := cmd.OutOrStdout()
			if value != "" {
				v, _ := gen.Generate(category, value)
				fmt.Fprintln(out, v)
				return nil
			}
			for i := 0; i < count; i++ {
				v, _ := gen.Generate(category, fmt.Sprintf("#%d", i))
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of values")
	cmd.Flags().StringVar(&value, "value", "", "original value to pseudonymize")
	return cmd
}
