// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mbeema/veil/pkg/config"
	"github.com/mbeema/veil/pkg/discovery"
	"github.com/mbeema/veil/pkg/engine"
	"github.com/mbeema/veil/pkg/prompt"
	"github.com/mbeema/veil/pkg/words"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// cli holds the global flags and what they resolve to.
type cli struct {
	configSource string
	wordsPath    string
	discovery    string
	interactive  bool
	decisions    string
	logLevel     string

	logger *zap.Logger
	loader *config.Loader
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "veil",
		Short: "Redact sensitive values from logs and events",
		Long: `veil removes credentials, personal identifiers and host details from
OTLP log events and plain text, driven by a layered YAML policy.

Policies are bundled presets ("default", "strict"), files or URLs, and may
name a parent to extend. Word rule files add per-word redact, keep and
replace rules.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(c.logLevel)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			c.logger = logger
			c.loader = config.NewLoader(config.WithLogger(logger.Named("config")))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configSource, "config", "default", "configuration preset, file or URL")
	flags.StringVar(&c.wordsPath, "words", "", "word rule file")
	flags.StringVar(&c.discovery, "discovery", "", "discovery mode override (NONE, FAST, TWO_PASS)")
	flags.BoolVar(&c.interactive, "interactive", false, "ask what to do with discovered values (TWO_PASS)")
	flags.StringVar(&c.decisions, "decisions", "", "YAML file that interactive decisions are read from and appended to")
	flags.StringVar(&c.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRedactCmd(c),
		newTextCmd(c),
		newServeCmd(c),
		newConfigCmd(c),
		newGenerateCmd(c),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves the --config source with environment and flag
// overrides applied.
func (c *cli) loadConfig(ctx context.Context, source string) (*config.Config, error) {
	cfg, err := c.loader.Resolve(ctx, source)
	if err != nil {
		return nil, err
	}
	cfg = config.ApplyEnvOverrides(cfg)
	if c.discovery != "" {
		mode, err := discovery.ParseMode(c.discovery)
		if err != nil {
			return nil, err
		}
		cfg = config.Apply(cfg, &config.Config{
			Discovery: config.DiscoveryConfig{Mode: config.String(mode.String())},
		})
	}
	return cfg, nil
}

// rules loads the word rule file, if any.
func (c *cli) rules() ([]words.Rule, error) {
	if c.wordsPath == "" {
		return nil, nil
	}
	return words.ParseFile(c.wordsPath)
}

// savedDecisions loads earlier decisions. A decisions file that does not
// exist yet holds none.
func (c *cli) savedDecisions() ([]discovery.Resolution, error) {
	if c.decisions == "" {
		return nil, nil
	}
	saved, err := prompt.ReadDecisions(c.decisions)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return saved, err
}

func (c *cli) newEngine(cmd *cobra.Command, cfg *config.Config) (*engine.Engine, error) {
	rules, err := c.rules()
	if err != nil {
		return nil, err
	}
	saved, err := c.savedDecisions()
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithLogger(c.logger.Named("engine")),
		engine.WithRules(rules),
		engine.WithDecisions(saved),
	}
	if c.interactive {
		if !prompt.IsInteractive(os.Stdin) {
			return nil, fmt.Errorf("--interactive needs a terminal on stdin")
		}
		opts = append(opts, engine.WithDecider(prompt.NewTerminal(os.Stdin, cmd.ErrOrStderr(),
			prompt.WithDecisionsFile(c.decisions),
			prompt.WithLogger(c.logger.Named("prompt")),
		)))
	}
	return engine.New(cfg, opts...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "veil %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info", "":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return cfg.Build()
}
