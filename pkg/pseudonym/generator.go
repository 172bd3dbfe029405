// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package pseudonym

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

const (
	// CardinalityLimit caps cardinality estimation.
	CardinalityLimit = 100_000

	// MinRecommendedCardinality is the size below which a template is
	// flagged, since small output spaces make collisions likely.
	MinRecommendedCardinality = 1_000
)

// definition is one category's template plus its per-run state.
type definition struct {
	name        string
	tmpl        *Template
	iter        *Iterator
	memo        map[string]string
	generation  uint64
	cardinality uint64
}

// Generator produces pseudonyms from per-category regex templates. The same
// original always yields the same pseudonym for the lifetime of a Generator,
// and distinct originals yield distinct pseudonyms until a template runs out
// of values. A Generator is not safe for concurrent use.
type Generator struct {
	defs        map[string]*definition
	seed        uint64
	rnd         *rand.Rand
	logger      *zap.Logger
	exhaustions int
}

// Option customizes a Generator.
type Option func(*Generator)

// WithSeed sets the seed that orders every template's values.
func WithSeed(seed uint64) Option {
	return func(g *Generator) { g.seed = seed }
}

// WithLogger sets the logger used for quality warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// WithRand sets the source used by GenerateRandom.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rnd = r }
}

// New compiles templates, keyed by category. Templates whose cardinality is
// below MinRecommendedCardinality are logged as warnings; they still work.
func New(templates map[string]string, opts ...Option) (*Generator, error) {
	g := &Generator{
		defs:   make(map[string]*definition, len(templates)),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rnd == nil {
		g.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	for _, name := range sortedKeys(templates) {
		tmpl, err := Compile(templates[name])
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", name, err)
		}
		d := &definition{
			name:        name,
			tmpl:        tmpl,
			memo:        make(map[string]string),
			cardinality: tmpl.Cardinality(CardinalityLimit),
		}
		d.iter = tmpl.Iterator(g.categorySeed(name, 0))
		g.defs[name] = d

		if d.cardinality < MinRecommendedCardinality {
			g.logger.Warn("pseudonym template has low cardinality",
				zap.String("category", name),
				zap.String("template", tmpl.String()),
				zap.Uint64("cardinality", d.cardinality),
				zap.Int("recommended", MinRecommendedCardinality),
			)
		}
	}
	return g, nil
}

// Has reports whether category has a template.
func (g *Generator) Has(category string) bool {
	_, ok := g.defs[category]
	return ok
}

// Categories returns the categories with templates, sorted.
func (g *Generator) Categories() []string {
	names := make([]string, 0, len(g.defs))
	for name := range g.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate returns the pseudonym for original in category. It reports false
// when the category has no template.
func (g *Generator) Generate(category, original string) (string, bool) {
	d, ok := g.defs[category]
	if !ok {
		return "", false
	}
	if v, ok := d.memo[original]; ok {
		return v, true
	}

	v, ok := d.iter.Next()
	if !ok {
		// Out of unique values: start over, so values repeat from here on.
		d.generation++
		g.exhaustions++
		g.logger.Warn("pseudonym template exhausted, values will repeat",
			zap.String("category", category),
			zap.Int("distinct", d.iter.Emitted()),
			zap.Uint64("generation", d.generation),
		)
		d.iter = d.tmpl.Iterator(g.categorySeed(category, d.generation))
		v, _ = d.iter.Next()
	}
	d.memo[original] = v
	return v, true
}

// GenerateRandom returns a random value from category's template, for
// realistic-looking redaction without pseudonym stability.
func (g *Generator) GenerateRandom(category string) (string, bool) {
	d, ok := g.defs[category]
	if !ok {
		return "", false
	}
	return d.tmpl.Value(g.rnd.Uint64N(d.tmpl.indexSpace())), true
}

// Cardinality returns the estimated number of distinct values of category,
// capped at CardinalityLimit.
func (g *Generator) Cardinality(category string) (uint64, bool) {
	d, ok := g.defs[category]
	if !ok {
		return 0, false
	}
	return d.cardinality, true
}

// LowCardinality returns the categories below MinRecommendedCardinality.
func (g *Generator) LowCardinality() []string {
	var names []string
	for _, name := range g.Categories() {
		if g.defs[name].cardinality < MinRecommendedCardinality {
			names = append(names, name)
		}
	}
	return names
}

// Exhaustions returns how many times any template ran out of values.
func (g *Generator) Exhaustions() int {
	return g.exhaustions
}

func (g *Generator) categorySeed(category string, generation uint64) uint64 {
	return g.seed ^ xxhash.Sum64String(category) ^ splitmix64(generation)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
