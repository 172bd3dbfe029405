// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package engine composes the matchers, the pseudonym generator and
// discovery into redaction runs over events and text.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mbeema/veil/pkg/config"
	"github.com/mbeema/veil/pkg/discovery"
	"github.com/mbeema/veil/pkg/events"
	"github.com/mbeema/veil/pkg/health"
	"github.com/mbeema/veil/pkg/redact"
	"github.com/mbeema/veil/pkg/words"
)

// PropertyCategory is the replacement category for values of sensitive
// fields.
const PropertyCategory = "properties"

// Report summarizes one run.
type Report struct {
	RunID      string
	Mode       discovery.Mode
	Events     int
	Removed    int
	Lines      int
	Discovered int
	Snapshots  int
	Replaced   int
}

// Engine redacts events and text lines according to one configuration.
// Matchers and pseudonym state live as long as the Engine; discovery state
// is rebuilt for every run. An Engine is not safe for concurrent use; use
// one per stream.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger
	stats  *health.Stats

	properties *redact.Properties
	strings    *redact.Strings
	replacer   *redact.Replacer
	words      *words.Engine
	decider    discovery.Decider

	// earlier decisions, applied in every mode
	decisions []discovery.Resolution
	saved     *discovery.Set

	mode          discovery.Mode
	removeEnabled bool
	removed       map[string]struct{}

	disc        *discovery.Engine
	last        Report
	exhaustions int
}

// Option customizes an Engine.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	rules   []words.Rule
	decider   discovery.Decider
	decisions []discovery.Resolution
	stats     *health.Stats
	memo      int
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRules sets the word rules, evaluated in order.
func WithRules(rules []words.Rule) Option {
	return func(o *options) { o.rules = rules }
}

// WithDecider attaches a decider for tokens found by TWO_PASS discovery.
func WithDecider(d discovery.Decider) Option {
	return func(o *options) { o.decider = d }
}

// WithDecisions applies decisions saved by an earlier interactive run. Their
// tokens are redacted or kept in every mode and are not asked about again.
func WithDecisions(resolutions []discovery.Resolution) Option {
	return func(o *options) { o.decisions = resolutions }
}

// WithStats sets the counters runs report into.
func WithStats(s *health.Stats) Option {
	return func(o *options) { o.stats = s }
}

// WithMemoSize bounds the word rule memo.
func WithMemoSize(n int) Option {
	return func(o *options) { o.memo = n }
}

// New builds an engine. It refuses configurations that do not validate, so
// nothing is redacted under a broken policy.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	o := options{logger: zap.NewNop(), memo: words.DefaultMemoSize}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	replacer, err := redact.NewReplacer(cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("build replacer: %w", err)
	}
	props, err := redact.NewProperties(cfg.Properties)
	if err != nil {
		return nil, fmt.Errorf("build property matcher: %w", err)
	}
	strs, err := redact.NewStrings(cfg.Strings, replacer)
	if err != nil {
		return nil, fmt.Errorf("build string categories: %w", err)
	}
	mode, err := discovery.ParseMode(cfg.Discovery.ModeName())
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:           cfg,
		logger:        o.logger,
		stats:         o.stats,
		properties:    props,
		strings:       strs,
		replacer:      replacer,
		decider:       o.decider,
		decisions:     o.decisions,
		saved:         discovery.NewDecidedSet(o.decisions),
		mode:          mode,
		removeEnabled: cfg.Events.IsEnabled(),
		removed:       make(map[string]struct{}, len(cfg.Events.Removed)),
		words: words.NewEngine(o.rules,
			words.WithReplacer(replacer),
			words.WithMemoSize(o.memo),
		),
	}
	for _, t := range cfg.Events.Removed {
		e.removed[t] = struct{}{}
	}
	e.words.SetFallback(e.discovered)

	// Build the discovery engine once up front so extractor errors surface
	// here rather than at the first run.
	if e.disc, err = e.newDiscovery(e.logger); err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Mode returns the discovery mode.
func (e *Engine) Mode() discovery.Mode {
	return e.mode
}

// Replacer returns the replacement policy.
func (e *Engine) Replacer() *redact.Replacer {
	return e.replacer
}

// Discovered returns what the last run discovered.
func (e *Engine) Discovered() *discovery.Patterns {
	return e.disc.Patterns()
}

// LastReport returns the report of the last run.
func (e *Engine) LastReport() Report {
	return e.last
}

func (e *Engine) newDiscovery(logger *zap.Logger) (*discovery.Engine, error) {
	return discovery.New(e.cfg.Discovery,
		discovery.WithCoverage(e.properties, e.strings),
		discovery.WithDecisions(e.decisions),
		discovery.WithLogger(logger.Named("discovery")),
	)
}

// discovered is the word engine fallback: tokens no rule decides are
// checked against saved decisions, then the live discovered set.
func (e *Engine) discovered(token string) (string, bool) {
	for _, set := range []*discovery.Set{e.saved, e.disc.Live()} {
		if set.Len() == 0 {
			continue
		}
		if out := set.Replace(token, e.replacer.Redact); out != token {
			return out, true
		}
	}
	return "", false
}

// redactWords runs the word rules, then replaces dotted discovered tokens
// the word-level pass could not see whole.
func (e *Engine) redactWords(s string) string {
	s = e.words.RedactText(s)
	s = e.saved.ReplaceCompound(s, e.replacer.Redact)
	return e.disc.Live().ReplaceCompound(s, e.replacer.Redact)
}

// RemoveEvent reports whether events of the given type are dropped.
func (e *Engine) RemoveEvent(eventType string) bool {
	if !e.removeEnabled {
		return false
	}
	_, ok := e.removed[eventType]
	return ok
}

// SensitiveField reports whether every value of the field is redacted.
func (e *Engine) SensitiveField(name string) bool {
	return e.properties.Matches(name)
}

// RedactValue returns the redacted form of a field value. Values of
// sensitive fields are replaced outright: strings by their replacement and
// other scalars by a zero value. Other strings go through the string
// categories, then word rules and discovered tokens. Arrays are handled
// element by element and maps key by key, so a sensitive inner key is
// redacted wherever it is nested.
func (e *Engine) RedactValue(fieldName string, v events.Value) events.Value {
	if e.properties.Matches(fieldName) {
		return e.redactSensitive(v)
	}
	switch v.Kind() {
	case events.KindString:
		s := e.strings.Redact(fieldName, v.Str())
		return events.String(e.redactWords(s))
	case events.KindArray:
		items := make([]events.Value, len(v.Array()))
		for i, item := range v.Array() {
			items[i] = e.RedactValue(fieldName, item)
		}
		return events.Array(items...)
	case events.KindMap:
		fields := make([]events.Field, len(v.Map()))
		for i, f := range v.Map() {
			fields[i] = events.Field{Name: f.Name, Value: e.RedactValue(f.Name, f.Value)}
		}
		return events.Map(fields...)
	default:
		return v
	}
}

func (e *Engine) redactSensitive(v events.Value) events.Value {
	switch v.Kind() {
	case events.KindString:
		return events.String(e.replacer.Redact(PropertyCategory, v.Str()))
	case events.KindInt:
		return events.Int(0)
	case events.KindDouble:
		return events.Double(0)
	case events.KindBool:
		return events.Bool(false)
	case events.KindBytes:
		return events.Bytes(nil)
	case events.KindArray:
		items := make([]events.Value, len(v.Array()))
		for i, item := range v.Array() {
			items[i] = e.redactSensitive(item)
		}
		return events.Array(items...)
	case events.KindMap:
		fields := make([]events.Field, len(v.Map()))
		for i, f := range v.Map() {
			fields[i] = events.Field{Name: f.Name, Value: e.redactSensitive(f.Value)}
		}
		return events.Map(fields...)
	default:
		return events.Empty()
	}
}

// RedactLine redacts one line of text: word rules and discovered tokens
// first, then the string categories.
func (e *Engine) RedactLine(line string) string {
	return e.strings.Redact("", e.redactWords(line))
}

// RedactEvent redacts every field of ev in place.
func (e *Engine) RedactEvent(ev *events.Event) {
	for i := range ev.Fields {
		f := &ev.Fields[i]
		f.Value = e.RedactValue(f.Name, f.Value)
	}
}

func (e *Engine) observeEvent(ev *events.Event) {
	for _, f := range ev.Fields {
		e.observeValue(f.Name, f.Value)
	}
}

func (e *Engine) observeValue(name string, v events.Value) {
	switch v.Kind() {
	case events.KindString:
		e.disc.ObserveField(name, v.Str())
	case events.KindArray:
		for _, item := range v.Array() {
			e.observeValue(name, item)
		}
	case events.KindMap:
		if e.properties.Matches(name) {
			return
		}
		for _, f := range v.Map() {
			e.observeValue(f.Name, f.Value)
		}
	}
}

type run struct {
	report Report
	logger *zap.Logger
	start  int
}

// begin resets discovery for a new run.
func (e *Engine) begin() (*run, error) {
	id := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", id))
	disc, err := e.newDiscovery(logger)
	if err != nil {
		return nil, err
	}
	e.disc = disc
	logger.Debug("redaction run started", zap.Stringer("mode", e.mode))
	return &run{
		report: Report{RunID: id, Mode: e.mode},
		logger: logger,
		start:  e.replacer.Replaced(),
	}, nil
}

func (e *Engine) finish(r *run) Report {
	r.report.Discovered = e.disc.Patterns().Len()
	r.report.Snapshots = e.disc.Snapshots()
	r.report.Replaced = e.replacer.Replaced() - r.start
	e.last = r.report

	exhaustions := 0
	if gen := e.replacer.Generator(); gen != nil {
		exhaustions = gen.Exhaustions()
	}
	if e.stats != nil {
		e.stats.Runs.Add(1)
		e.stats.EventsProcessed.Add(int64(r.report.Events))
		e.stats.EventsRemoved.Add(int64(r.report.Removed))
		e.stats.LinesProcessed.Add(int64(r.report.Lines))
		e.stats.ValuesRedacted.Add(int64(r.report.Replaced))
		e.stats.TokensDiscovered.Add(int64(r.report.Discovered))
		e.stats.PseudonymExhaustions.Add(int64(exhaustions - e.exhaustions))
	}
	e.exhaustions = exhaustions

	r.logger.Debug("redaction run finished",
		zap.Int("events", r.report.Events),
		zap.Int("removed", r.report.Removed),
		zap.Int("lines", r.report.Lines),
		zap.Int("discovered", r.report.Discovered),
		zap.Int("replaced", r.report.Replaced),
	)
	return r.report
}

// resolve installs the TWO_PASS discoveries, asking the decider if any.
func (e *Engine) resolve(ctx context.Context, r *run) error {
	set, err := e.disc.Resolve(ctx, e.decider)
	if err != nil {
		return err
	}
	r.logger.Debug("discovery pass complete",
		zap.Int("candidates", e.disc.Patterns().Len()),
		zap.Int("installed", set.Len()),
	)
	return nil
}

// RunEvents redacts evs in place as one run. Removed events are marked and
// never inspected. With TWO_PASS discovery every kept event is observed
// before any is redacted; with FAST each event is observed, counted, then
// redacted.
func (e *Engine) RunEvents(ctx context.Context, evs []*events.Event) (Report, error) {
	r, err := e.begin()
	if err != nil {
		return Report{}, err
	}

	kept := make([]*events.Event, 0, len(evs))
	for _, ev := range evs {
		if e.RemoveEvent(ev.Type) {
			ev.Remove()
			r.report.Removed++
			continue
		}
		kept = append(kept, ev)
	}
	r.report.Events = len(evs)

	switch e.mode {
	case discovery.TwoPass:
		for _, ev := range kept {
			if err := ctx.Err(); err != nil {
				return Report{}, err
			}
			e.observeEvent(ev)
		}
		if err := e.resolve(ctx, r); err != nil {
			return Report{}, err
		}
		for _, ev := range kept {
			e.RedactEvent(ev)
		}
	case discovery.Fast:
		for _, ev := range kept {
			if err := ctx.Err(); err != nil {
				return Report{}, err
			}
			e.observeEvent(ev)
			e.disc.Tick()
			e.RedactEvent(ev)
		}
	default:
		for _, ev := range kept {
			if err := ctx.Err(); err != nil {
				return Report{}, err
			}
			e.RedactEvent(ev)
		}
	}
	return e.finish(r), nil
}
