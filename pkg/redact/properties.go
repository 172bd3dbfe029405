// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package redact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mbeema/veil/pkg/config"
)

// Properties decides whether a field is sensitive from its name alone.
// Matching is case-sensitive on the raw field name: a literal pattern matches
// when the name equals or contains it, a /regex/ pattern when the regex
// matches anywhere in the name.
//
// Literals are substrings, not whole names, so "password" also covers
// "db.password" and "password_hash". A pattern that must name exactly one
// field is written anchored, as /^password$/.
type Properties struct {
	enabled  bool
	literals []string
	regexes  []*regexp.Regexp
}

// NewProperties compiles the property patterns of cfg.
func NewProperties(cfg config.PropertiesConfig) (*Properties, error) {
	p := &Properties{enabled: cfg.IsEnabled()}
	for _, pat := range cfg.Patterns {
		if body, ok := config.RegexBody(pat); ok {
			re, err := regexp.Compile(body)
			if err != nil {
				return nil, fmt.Errorf("property pattern %q: %w", pat, err)
			}
			p.regexes = append(p.regexes, re)
			continue
		}
		if pat != "" {
			p.literals = append(p.literals, pat)
		}
	}
	return p, nil
}

// Matches reports whether every value of the named field must be redacted.
func (p *Properties) Matches(fieldName string) bool {
	if p == nil || !p.enabled {
		return false
	}
	for _, lit := range p.literals {
		if strings.Contains(fieldName, lit) {
			return true
		}
	}
	for _, re := range p.regexes {
		if re.MatchString(fieldName) {
			return true
		}
	}
	return false
}
