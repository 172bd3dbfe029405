// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mbeema/veil/pkg/config"
)

type pattern struct {
	category string
	re       *regexp.Regexp
	whole    *regexp.Regexp // anchored variant for Match
}

// Strings replaces values matched by the enabled string categories.
type Strings struct {
	patterns []pattern
	replacer *Replacer
}

// NewStrings compiles the enabled categories of cfg in order. Matched spans
// are replaced through replacer.
func NewStrings(cfg config.StringsConfig, replacer *Replacer) (*Strings, error) {
	s := &Strings{replacer: replacer}
	if !cfg.IsEnabled() {
		return s, nil
	}
	for _, cat := range cfg.Categories {
		if !cat.IsEnabled() {
			continue
		}
		for _, expr := range cat.Patterns {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("category %s: pattern %q: %w", cat.Name, expr, err)
			}
			whole, err := regexp.Compile(`^(?:` + expr + `)$`)
			if err != nil {
				return nil, fmt.Errorf("category %s: pattern %q: %w", cat.Name, expr, err)
			}
			s.patterns = append(s.patterns, pattern{category: cat.Name, re: re, whole: whole})
		}
	}
	return s, nil
}

// Categories returns the enabled category names in order.
func (s *Strings) Categories() []string {
	var names []string
	for _, p := range s.patterns {
		if len(names) == 0 || names[len(names)-1] != p.category {
			names = append(names, p.category)
		}
	}
	return names
}

// Match reports the first category that matches the whole value.
func (s *Strings) Match(value string) (string, bool) {
	for _, p := range s.patterns {
		if p.whole.MatchString(value) {
			return p.category, true
		}
	}
	return "", false
}

type span struct {
	start, end int
	rank       int
}

// Redact replaces every category match in value. The field name does not
// take part; sensitive names are handled by Properties before this point.
//
// Each pattern contributes its non-overlapping matches over the whole value.
// Where spans of different patterns overlap, the one starting first wins,
// then the one from the earlier category and pattern.
func (s *Strings) Redact(_ string, value string) string {
	if len(s.patterns) == 0 || value == "" {
		return value
	}

	var spans []span
	for rank, p := range s.patterns {
		for _, loc := range p.re.FindAllStringIndex(value, -1) {
			if loc[1] > loc[0] {
				spans = append(spans, span{start: loc[0], end: loc[1], rank: rank})
			}
		}
	}
	if len(spans) == 0 {
		return value
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].rank < spans[j].rank
	})

	var b strings.Builder
	cursor := 0
	for _, sp := range spans {
		if sp.start < cursor {
			continue
		}
		b.WriteString(value[cursor:sp.start])
		b.WriteString(s.replacer.Redact(s.patterns[sp.rank].category, value[sp.start:sp.end]))
		cursor = sp.end
	}
	b.WriteString(value[cursor:])
	return b.String()
}
