// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package prompt asks a person what to do with discovered tokens and
// remembers the answers in a decisions file.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/mbeema/veil/pkg/discovery"
)

// Terminal is a discovery.Decider that reads answers from a line-oriented
// input. Blank answers and end of input mean redact.
type Terminal struct {
	in        *bufio.Reader
	out       io.Writer
	decisions string
	logger    *zap.Logger
	asked     int
}

// Option customizes a Terminal.
type Option func(*Terminal)

// WithDecisionsFile sets the file decisions are appended to.
func WithDecisionsFile(path string) Option {
	return func(t *Terminal) { t.decisions = path }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Terminal) { t.logger = logger }
}

// NewTerminal returns a prompt that reads from in and writes to out.
func NewTerminal(in io.Reader, out io.Writer, opts ...Option) *Terminal {
	t := &Terminal{
		in:     bufio.NewReader(in),
		out:    out,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Decide shows the candidate and reads an answer:
//
//	k             keep
//	r, <enter>    redact
//	s VALUE       replace with VALUE, which may contain spaces
func (t *Terminal) Decide(ctx context.Context, c discovery.Candidate) (discovery.Decision, error) {
	if t.asked == 0 {
		fmt.Fprintln(t.out, color.New(color.Bold).Sprint("Discovered values (k = keep, r = redact, s VALUE = replace):"))
	}
	t.asked++

	for {
		if err := ctx.Err(); err != nil {
			return discovery.Decision{}, err
		}
		fmt.Fprintf(t.out, "%s (%s, %d) [r]: ",
			color.YellowString(c.Value), color.CyanString(c.Category), c.Count)

		line, err := t.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return discovery.Decision{}, fmt.Errorf("read answer: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		d, ok := parseAnswer(line)
		if ok {
			return d, nil
		}
		if eof {
			fmt.Fprintln(t.out)
			return discovery.Decision{Action: discovery.Redact}, nil
		}
		fmt.Fprintln(t.out, color.RedString("expected k, r or s VALUE"))
	}
}

func parseAnswer(line string) (discovery.Decision, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return discovery.Decision{Action: discovery.Redact}, true
	}
	word, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		word, rest = line[:i], strings.TrimSpace(line[i:])
	}
	switch strings.ToLower(word) {
	case "k", "keep":
		return discovery.Decision{Action: discovery.Keep}, rest == ""
	case "r", "redact":
		return discovery.Decision{Action: discovery.Redact}, rest == ""
	case "s", "replace":
		if rest == "" {
			return discovery.Decision{}, false
		}
		return discovery.Decision{Action: discovery.Replace, Replacement: rest}, true
	}
	return discovery.Decision{}, false
}

// record is one saved decision.
type record struct {
	Value       string `yaml:"value"`
	Category    string `yaml:"category,omitempty"`
	Action      string `yaml:"action"`
	Replacement string `yaml:"replacement,omitempty"`
}

// Persist appends the resolutions to the decisions file as one YAML
// document, so a later run loaded with ReadDecisions reuses them. Without a
// file it is a no-op.
func (t *Terminal) Persist(_ context.Context, resolutions []discovery.Resolution) error {
	if t.decisions == "" || len(resolutions) == 0 {
		return nil
	}

	records := make([]record, len(resolutions))
	for i, r := range resolutions {
		records[i] = record{
			Value:       r.Candidate.Value,
			Category:    r.Candidate.Category,
			Action:      r.Decision.Action.String(),
			Replacement: r.Decision.Replacement,
		}
	}
	doc, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode decisions: %w", err)
	}

	f, err := os.OpenFile(t.decisions, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open decisions file: %w", err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "---\n# recorded %s\n", time.Now().UTC().Format(time.RFC3339))
	w.Write(doc)
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write decisions file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close decisions file: %w", err)
	}

	t.logger.Info("decisions saved",
		zap.String("path", t.decisions),
		zap.Int("count", len(resolutions)),
	)
	return nil
}

// ReadDecisions loads every decision saved to path, oldest first.
func ReadDecisions(path string) ([]discovery.Resolution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open decisions file: %w", err)
	}
	defer f.Close()

	var out []discovery.Resolution
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	for {
		var records []record
		if err := dec.Decode(&records); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, rec := range records {
			action, err := discovery.ParseAction(rec.Action)
			if err != nil {
				return nil, fmt.Errorf("%s: value %q: %w", path, rec.Value, err)
			}
			if rec.Value == "" || (action == discovery.Replace && rec.Replacement == "") {
				return nil, fmt.Errorf("%s: incomplete decision for %q", path, rec.Value)
			}
			out = append(out, discovery.Resolution{
				Candidate: discovery.Candidate{Value: rec.Value, Category: rec.Category},
				Decision:  discovery.Decision{Action: action, Replacement: rec.Replacement},
			})
		}
	}
}
