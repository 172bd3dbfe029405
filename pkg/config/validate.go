// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
	"github.com/mbeema/veil/pkg/pseudonym"
)

// Validate checks every pattern and setting and reports all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	for _, p := range c.Properties.Patterns {
		if body, ok := RegexBody(p); ok {
			if _, err := regexp.Compile(body); err != nil {
				result = multierror.Append(result, fmt.Errorf("properties.patterns: %q: %w", p, err))
			}
		}
	}

	for i, cat := range c.Strings.Categories {
		if cat.Name == "" {
			result = multierror.Append(result, fmt.Errorf("strings.categories[%d]: name is required", i))
		}
		for _, p := range cat.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				result = multierror.Append(result, fmt.Errorf("strings.categories[%s]: %q: %w", cat.Name, p, err))
			}
		}
	}

	switch c.Discovery.ModeName() {
	case ModeNone, ModeFast, ModeTwoPass:
	default:
		result = multierror.Append(result, fmt.Errorf("discovery.mode must be NONE, FAST or TWO_PASS, got %q", *c.Discovery.Mode))
	}
	if c.Discovery.MinOccurrencesOrDefault() < 1 {
		result = multierror.Append(result, fmt.Errorf("discovery.min_occurrences must be at least 1"))
	}
	if c.Discovery.MinLengthOrDefault() < 1 {
		result = multierror.Append(result, fmt.Errorf("discovery.min_length must be at least 1"))
	}
	if c.Discovery.SnapshotIntervalOrDefault() < 1 {
		result = multierror.Append(result, fmt.Errorf("discovery.snapshot_interval must be at least 1"))
	}
	for i, p := range c.Discovery.Patterns {
		if p.Name == "" {
			result = multierror.Append(result, fmt.Errorf("discovery.patterns[%d]: name is required", i))
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			result = multierror.Append(result, fmt.Errorf("discovery.patterns[%s]: %q: %w", p.Name, p.Pattern, err))
		}
	}

	switch c.Pseudonymization.FormatName() {
	case FormatRedacted, FormatHash, FormatCustom:
	default:
		result = multierror.Append(result, fmt.Errorf("pseudonymization.format must be REDACTED, HASH or CUSTOM, got %q", *c.Pseudonymization.Format))
	}
	if n := c.Pseudonymization.HashLengthOrDefault(); n < 1 || n > 16 {
		result = multierror.Append(result, fmt.Errorf("pseudonymization.hash_length must be between 1 and 16, got %d", n))
	}
	for i, t := range c.Pseudonymization.Templates {
		if t.Category == "" {
			result = multierror.Append(result, fmt.Errorf("pseudonymization.templates[%d]: category is required", i))
		}
		if _, err := pseudonym.Compile(t.Template); err != nil {
			result = multierror.Append(result, fmt.Errorf("pseudonymization.templates[%s]: %w", t.Category, err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return &InvalidError{Source: c.source, Err: err}
	}
	return nil
}
