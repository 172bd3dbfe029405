// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/mbeema/veil/pkg/config"
)

var hexLiteral = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)

// FieldMatcher reports whether a field name is sensitive on its own.
type FieldMatcher interface {
	Matches(fieldName string) bool
}

// ValueMatcher reports whether a whole value is a static category match.
type ValueMatcher interface {
	Match(value string) (string, bool)
}

type extractor struct {
	name  string
	re    *regexp.Regexp
	group int
}

// Engine collects candidate tokens for one run. Tokens are pulled out of
// values by the extractor patterns; the extractor's name is the category.
// Tokens already covered by the static configuration are skipped. An Engine
// is not safe for concurrent use.
type Engine struct {
	mode           Mode
	minOccurrences int
	minLength      int
	interval       int
	ignored        map[string]struct{}
	extractors     []extractor

	fields FieldMatcher
	values ValueMatcher
	logger *zap.Logger

	// tokens decided in earlier runs; never snapshotted or asked about again
	decided map[string]struct{}

	patterns  *Patterns
	live      *Set
	units     int
	snapshots int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCoverage sets the matchers that decide what static redaction handles.
func WithCoverage(fields FieldMatcher, values ValueMatcher) Option {
	return func(e *Engine) {
		e.fields = fields
		e.values = values
	}
}

// WithDecisions marks tokens that already have a decision from an earlier
// run. The caller applies those decisions itself.
func WithDecisions(resolutions []Resolution) Option {
	return func(e *Engine) {
		if e.decided == nil {
			e.decided = make(map[string]struct{}, len(resolutions))
		}
		for _, r := range resolutions {
			e.decided[r.Candidate.Value] = struct{}{}
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New builds a discovery engine from cfg.
func New(cfg config.DiscoveryConfig, opts ...Option) (*Engine, error) {
	mode, err := ParseMode(cfg.ModeName())
	if err != nil {
		return nil, err
	}
	e := &Engine{
		mode:           mode,
		minOccurrences: cfg.MinOccurrencesOrDefault(),
		minLength:      cfg.MinLengthOrDefault(),
		interval:       cfg.SnapshotIntervalOrDefault(),
		ignored:        make(map[string]struct{}, len(cfg.Ignored)),
		logger:         zap.NewNop(),
		patterns:       NewPatterns(),
		live:           emptySet,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.interval < 1 {
		e.interval = 1
	}
	for _, v := range cfg.Ignored {
		e.ignored[strings.ToLower(v)] = struct{}{}
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("discovery pattern %s: %w", p.Name, err)
		}
		group := 0
		if idx := re.SubexpIndex("value"); idx > 0 {
			group = idx
		} else if re.NumSubexp() > 0 {
			group = 1
		}
		e.extractors = append(e.extractors, extractor{name: p.Name, re: re, group: group})
	}
	return e, nil
}

// Mode returns the discovery mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// IsCandidate reports whether token may be discovered: it contains a letter,
// is not a 0x hex literal, is at least the minimum length and is not ignored.
func (e *Engine) IsCandidate(token string) bool {
	if len(token) < e.minLength {
		return false
	}
	if !PlausibleToken(token) {
		return false
	}
	_, ignored := e.ignored[strings.ToLower(token)]
	return !ignored
}

// PlausibleToken is the fixed heuristic: at least one letter and not a hex
// literal with a 0x prefix.
func PlausibleToken(token string) bool {
	if hexLiteral.MatchString(token) {
		return false
	}
	return strings.IndexFunc(token, unicode.IsLetter) >= 0
}

// ObserveField scans the value of a field. Values of sensitive fields are
// redacted whole, so nothing is learned from them.
func (e *Engine) ObserveField(name, value string) int {
	if e.fields != nil && e.fields.Matches(name) {
		return 0
	}
	return e.observe(value)
}

// ObserveText scans one line of text.
func (e *Engine) ObserveText(line string) int {
	return e.observe(line)
}

func (e *Engine) observe(value string) int {
	if value == "" {
		return 0
	}
	found := 0
	for _, ex := range e.extractors {
		for _, loc := range ex.re.FindAllStringSubmatchIndex(value, -1) {
			start, end := loc[2*ex.group], loc[2*ex.group+1]
			if start < 0 || end <= start {
				continue
			}
			token := value[start:end]
			if !e.IsCandidate(token) {
				continue
			}
			if e.values != nil {
				if _, covered := e.values.Match(token); covered {
					continue
				}
			}
			if e.patterns.Count(ex.name, token) == 0 {
				e.logger.Debug("token discovered",
					zap.String("category", ex.name),
					zap.Int("length", len(token)),
				)
			}
			e.patterns.Add(ex.name, token)
			found++
		}
	}
	return found
}

// Tick counts one processed unit. Every snapshot interval units the live
// set is replaced by a snapshot; Tick reports whether that happened.
func (e *Engine) Tick() bool {
	e.units++
	if e.units%e.interval != 0 {
		return false
	}
	e.Install(e.Snapshot(e.minOccurrences))
	return true
}

// Units returns how many units Tick has counted.
func (e *Engine) Units() int {
	return e.units
}

// Snapshots returns how many sets have been installed.
func (e *Engine) Snapshots() int {
	return e.snapshots
}

// Live returns the installed set. It is empty until the first snapshot.
func (e *Engine) Live() *Set {
	return e.live
}

// Install makes set the live set.
func (e *Engine) Install(set *Set) {
	if set == nil {
		set = emptySet
	}
	e.live = set
	e.snapshots++
	e.logger.Debug("discovered patterns installed",
		zap.Int("tokens", set.Len()),
		zap.Int("units", e.units),
	)
}

// Patterns returns everything discovered so far.
func (e *Engine) Patterns() *Patterns {
	return e.patterns
}

// Candidates returns the tokens seen at least minOccurrences times that
// have no earlier decision.
func (e *Engine) Candidates(minOccurrences int) []Candidate {
	var out []Candidate
	for _, t := range e.patterns.All() {
		if t.Count < minOccurrences {
			continue
		}
		if _, ok := e.decided[t.Value]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Snapshot returns a set of the tokens seen at least minOccurrences times,
// all to be redacted. When a token was found under several categories the
// first category wins.
func (e *Engine) Snapshot(minOccurrences int) *Set {
	set := &Set{entries: make(map[string]entry)}
	for _, c := range e.Candidates(minOccurrences) {
		if _, dup := set.entries[c.Value]; !dup {
			set.entries[c.Value] = entry{category: c.Category}
		}
	}
	return set
}

// Resolve turns the candidates into the live set. With a decider every
// candidate is decided first and the decisions are persisted once; without
// one every candidate is redacted.
func (e *Engine) Resolve(ctx context.Context, decider Decider) (*Set, error) {
	if decider == nil {
		set := e.Snapshot(e.minOccurrences)
		e.Install(set)
		return set, nil
	}

	set := &Set{entries: make(map[string]entry)}
	decided := make(map[string]struct{})
	var resolutions []Resolution
	for _, c := range e.Candidates(e.minOccurrences) {
		if _, dup := decided[c.Value]; dup {
			continue
		}
		decided[c.Value] = struct{}{}
		d, err := decider.Decide(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("decide %s token: %w", c.Category, err)
		}
		resolutions = append(resolutions, Resolution{Candidate: c, Decision: d})
		switch d.Action {
		case Keep:
		case Replace:
			set.entries[c.Value] = entry{category: c.Category, replacement: d.Replacement}
		default:
			set.entries[c.Value] = entry{category: c.Category}
		}
	}
	if err := decider.Persist(ctx, resolutions); err != nil {
		return nil, fmt.Errorf("persist decisions: %w", err)
	}
	e.Install(set)
	return set, nil
}
