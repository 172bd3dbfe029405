// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package redact

import (
	"go.uber.org/zap"

	"github.com/mbeema/veil/pkg/config"
	"github.com/mbeema/veil/pkg/pseudonym"
)

// Replacer turns a sensitive value into its replacement.
//
// With pseudonymization off the value becomes the marker, or a random
// template value when realistic output is on. With pseudonymization on the
// value becomes its stable pseudonym when the category has a template, and a
// seeded hash in the configured format otherwise.
type Replacer struct {
	marker       string
	realistic    bool
	pseudonymize bool
	format       pseudonym.HashFormat
	gen          *pseudonym.Generator
	replaced     int
}

// NewReplacer builds the replacement policy of cfg.
func NewReplacer(cfg *config.Config, logger *zap.Logger) (*Replacer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ps := &cfg.Pseudonymization
	r := &Replacer{
		marker:       cfg.General.Marker(),
		realistic:    cfg.General.IsRealistic(),
		pseudonymize: ps.IsEnabled(),
		format: pseudonym.HashFormat{
			Kind:   ps.FormatName(),
			Prefix: ps.PrefixOrDefault(),
			Suffix: ps.SuffixOrDefault(),
			Length: ps.HashLengthOrDefault(),
			Seed:   ps.SeedOrDefault(),
		},
	}
	if r.pseudonymize || r.realistic {
		gen, err := pseudonym.New(ps.TemplateMap(),
			pseudonym.WithSeed(ps.SeedOrDefault()),
			pseudonym.WithLogger(logger.Named("pseudonym")),
		)
		if err != nil {
			return nil, err
		}
		r.gen = gen
	}
	return r, nil
}

// Marker returns the redaction text.
func (r *Replacer) Marker() string {
	return r.marker
}

// Pseudonymizing reports whether replacements are stable pseudonyms.
func (r *Replacer) Pseudonymizing() bool {
	return r.pseudonymize
}

// Generator returns the pseudonym generator, or nil when neither
// pseudonymization nor realistic output is on.
func (r *Replacer) Generator() *pseudonym.Generator {
	return r.gen
}

// Replaced returns how many values have been replaced.
func (r *Replacer) Replaced() int {
	return r.replaced
}

// Redact returns the replacement for value, which belongs to category.
func (r *Replacer) Redact(category, value string) string {
	r.replaced++
	if !r.pseudonymize {
		if r.realistic && r.gen != nil {
			if v, ok := r.gen.GenerateRandom(category); ok {
				return v
			}
		}
		return r.marker
	}
	if v, ok := r.gen.Generate(category, value); ok {
		return v
	}
	return r.format.Format(value)
}
