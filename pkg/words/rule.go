// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package words applies ordered keep/redact/replace rules to words and to
// the words of text lines.
package words

import (
	"regexp"
	"strings"
)

// Kind is what a rule does to a matching word.
type Kind int

const (
	// Redact replaces the word with the redaction marker or its pseudonym.
	Redact Kind = iota
	// Keep leaves the word as is.
	Keep
	// Replace substitutes a fixed replacement.
	Replace
)

func (k Kind) String() string {
	switch k {
	case Redact:
		return "REDACT"
	case Keep:
		return "KEEP"
	case Replace:
		return "REPLACE"
	default:
		return "UNKNOWN"
	}
}

// Rule is one parsed word rule. The legacy "-$ prefix" form is stored as a
// Redact rule with the wildcard pattern "prefix*".
type Rule struct {
	Kind        Kind
	Pattern     string // as written: literal, wildcard, or /regex/
	Replacement string // Replace only
	Line        int    // 1-based source line, 0 when built in code
	Text        string // source line

	re *regexp.Regexp // nil for literal patterns
}

// NewRule compiles pattern into a rule of the given kind.
func NewRule(kind Kind, pattern, replacement string) (Rule, error) {
	r := Rule{Kind: kind, Pattern: pattern, Replacement: replacement}
	expr, ok := compilePattern(pattern)
	if !ok {
		return r, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return r, err
	}
	r.re = re
	return r, nil
}

// Matches reports whether the rule's pattern matches the entire word.
func (r *Rule) Matches(word string) bool {
	if r.re == nil {
		return word == r.Pattern
	}
	return r.re.MatchString(word)
}

// compilePattern returns the anchored regex for a /regex/ or wildcard
// pattern, or false for a literal.
func compilePattern(pattern string) (string, bool) {
	if len(pattern) >= 2 && pattern[0] == '/' && pattern[len(pattern)-1] == '/' {
		return `^(?:` + pattern[1:len(pattern)-1] + `)$`, true
	}
	if strings.Contains(pattern, "*") {
		return WildcardRegex(pattern), true
	}
	return "", false
}

// WildcardRegex translates a wildcard pattern into an anchored regex: every
// '*' becomes ".*" and everything else is matched literally.
func WildcardRegex(pattern string) string {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, ".*") + "$"
}
