// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Discovery modes.
const (
	ModeNone    = "NONE"
	ModeFast    = "FAST"
	ModeTwoPass = "TWO_PASS"
)

// Pseudonym output formats.
const (
	FormatRedacted = "REDACTED"
	FormatHash     = "HASH"
	FormatCustom   = "CUSTOM"
)

// Defaults applied by the accessors when a value is not set by any layer.
const (
	DefaultRedactionText    = "***"
	DefaultMinOccurrences   = 1
	DefaultMinLength        = 3
	DefaultSnapshotInterval = 1000
	DefaultHashLength       = 8
)

// Config is one layer of redaction configuration. Scalars are pointers so a
// layer can tell "not set" apart from a zero value; Merge relies on that.
type Config struct {
	Parent           string                 `yaml:"parent,omitempty"`
	General          GeneralConfig          `yaml:"general,omitempty"`
	Properties       PropertiesConfig       `yaml:"properties,omitempty"`
	Strings          StringsConfig          `yaml:"strings,omitempty"`
	Events           EventsConfig           `yaml:"events,omitempty"`
	Discovery        DiscoveryConfig        `yaml:"discovery,omitempty"`
	Pseudonymization PseudonymizationConfig `yaml:"pseudonymization,omitempty"`

	source string
}

// GeneralConfig holds output formatting shared by all redaction paths.
type GeneralConfig struct {
	RedactionText *string `yaml:"redaction_text,omitempty"`
	Realistic     *bool   `yaml:"realistic,omitempty"` // random realistic values instead of the marker
}

// PropertiesConfig lists field names whose values are always redacted.
type PropertiesConfig struct {
	Enabled  *bool    `yaml:"enabled,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"` // literal substring or /regex/
}

// StringsConfig holds the ordered string categories.
type StringsConfig struct {
	Enabled    *bool      `yaml:"enabled,omitempty"`
	Categories []Category `yaml:"categories,omitempty"`
}

// Category is a named group of value patterns, e.g. emails.
type Category struct {
	Name     string   `yaml:"name"`
	Enabled  *bool    `yaml:"enabled,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
}

// EventsConfig lists event types that are dropped entirely.
type EventsConfig struct {
	Enabled *bool    `yaml:"enabled,omitempty"`
	Removed []string `yaml:"removed,omitempty"`
}

// DiscoveryConfig configures discovery of tokens the static patterns miss.
type DiscoveryConfig struct {
	Mode             *string            `yaml:"mode,omitempty"`
	MinOccurrences   *int               `yaml:"min_occurrences,omitempty"`
	MinLength        *int               `yaml:"min_length,omitempty"`
	SnapshotInterval *int               `yaml:"snapshot_interval,omitempty"`
	Ignored          []string           `yaml:"ignored,omitempty"`
	Patterns         []DiscoveryPattern `yaml:"patterns,omitempty"`
}

// DiscoveryPattern extracts candidate tokens from values. The token is the
// capture group named "value", else group 1, else the whole match.
type DiscoveryPattern struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// PseudonymizationConfig configures deterministic replacement values.
type PseudonymizationConfig struct {
	Enabled    *bool      `yaml:"enabled,omitempty"`
	Format     *string    `yaml:"format,omitempty"`
	Prefix     *string    `yaml:"prefix,omitempty"`
	Suffix     *string    `yaml:"suffix,omitempty"`
	HashLength *int       `yaml:"hash_length,omitempty"`
	Seed       *uint64    `yaml:"seed,omitempty"`
	Templates  []Template `yaml:"templates,omitempty"`
}

// Template maps a category to the regex its pseudonyms are drawn from.
type Template struct {
	Category string `yaml:"category"`
	Template string `yaml:"template"`
}

// Source returns where the configuration was loaded from, if anywhere.
func (c *Config) Source() string {
	return c.source
}

// Marker returns the redaction text.
func (g *GeneralConfig) Marker() string {
	return stringOr(g.RedactionText, DefaultRedactionText)
}

// IsRealistic reports whether redaction uses random realistic values.
func (g *GeneralConfig) IsRealistic() bool {
	return boolOr(g.Realistic, false)
}

// IsEnabled reports whether property matching is on. Defaults to true.
func (p *PropertiesConfig) IsEnabled() bool {
	return boolOr(p.Enabled, true)
}

// IsEnabled reports whether string category matching is on. Defaults to true.
func (s *StringsConfig) IsEnabled() bool {
	return boolOr(s.Enabled, true)
}

// Category returns the named category.
func (s *StringsConfig) Category(name string) (Category, bool) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// IsEnabled reports whether the category is on. Defaults to true.
func (c *Category) IsEnabled() bool {
	return boolOr(c.Enabled, true)
}

// IsEnabled reports whether event removal is on. Defaults to true.
func (e *EventsConfig) IsEnabled() bool {
	return boolOr(e.Enabled, true)
}

// ModeName returns the normalized discovery mode, NONE when unset.
func (d *DiscoveryConfig) ModeName() string {
	return NormalizeMode(stringOr(d.Mode, ModeNone))
}

// MinOccurrencesOrDefault returns how often a token must be seen in a
// discovery pass before it is installed.
func (d *DiscoveryConfig) MinOccurrencesOrDefault() int {
	return intOr(d.MinOccurrences, DefaultMinOccurrences)
}

// MinLengthOrDefault returns the shortest token length that can be discovered.
func (d *DiscoveryConfig) MinLengthOrDefault() int {
	return intOr(d.MinLength, DefaultMinLength)
}

// SnapshotIntervalOrDefault returns the FAST mode snapshot interval in units.
func (d *DiscoveryConfig) SnapshotIntervalOrDefault() int {
	return intOr(d.SnapshotInterval, DefaultSnapshotInterval)
}

// IsEnabled reports whether pseudonymization is on. Defaults to false.
func (p *PseudonymizationConfig) IsEnabled() bool {
	return boolOr(p.Enabled, false)
}

// FormatName returns the upper-cased output format, HASH when unset.
func (p *PseudonymizationConfig) FormatName() string {
	return strings.ToUpper(stringOr(p.Format, FormatHash))
}

// HashLengthOrDefault returns the number of hex digits kept from a hash.
func (p *PseudonymizationConfig) HashLengthOrDefault() int {
	return intOr(p.HashLength, DefaultHashLength)
}

// SeedOrDefault returns the pseudonym seed.
func (p *PseudonymizationConfig) SeedOrDefault() uint64 {
	if p.Seed == nil {
		return 0
	}
	return *p.Seed
}

// PrefixOrDefault returns the CUSTOM format prefix.
func (p *PseudonymizationConfig) PrefixOrDefault() string {
	return stringOr(p.Prefix, "")
}

// SuffixOrDefault returns the CUSTOM format suffix.
func (p *PseudonymizationConfig) SuffixOrDefault() string {
	return stringOr(p.Suffix, "")
}

// TemplateMap returns category -> template.
func (p *PseudonymizationConfig) TemplateMap() map[string]string {
	m := make(map[string]string, len(p.Templates))
	for _, t := range p.Templates {
		m[t.Category] = t.Template
	}
	return m
}

// NormalizeMode upper-cases a mode name and accepts "-" in place of "_".
func NormalizeMode(mode string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(mode)), "-", "_")
}

// RegexBody reports whether p is written as /regex/ and returns the regex.
func RegexBody(p string) (string, bool) {
	if len(p) >= 2 && p[0] == '/' && p[len(p)-1] == '/' {
		return p[1 : len(p)-1], true
	}
	return "", false
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Bool, String, Int and Uint64 return pointers for building layers in code.
func Bool(v bool) *bool { return &v }

func String(v string) *string { return &v }

func Int(v int) *int { return &v }

func Uint64(v uint64) *uint64 { return &v }

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
