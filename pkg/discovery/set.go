// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package discovery

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type entry struct {
	category    string
	replacement string
}

// Set is an immutable snapshot of discovered tokens used while redacting.
type Set struct {
	entries map[string]entry
}

var emptySet = &Set{}

// Len returns the number of tokens in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Lookup returns the category of token and its fixed replacement, if any.
func (s *Set) Lookup(token string) (category, replacement string, ok bool) {
	if s == nil {
		return "", "", false
	}
	e, ok := s.entries[token]
	return e.category, e.replacement, ok
}

// Replace substitutes every discovered token inside text. Tokens are runs
// of letters, digits and _ - . and a token ending in dots also matches
// without them. Tokens with a fixed replacement use it; the others are
// passed to redact.
func (s *Set) Replace(text string, redact func(category, token string) string) string {
	return s.replaceTokens(text, redact, false)
}

// ReplaceCompound is Replace restricted to tokens containing a dot, which
// word-level tokenization splits apart and so never sees whole.
func (s *Set) ReplaceCompound(text string, redact func(category, token string) string) string {
	return s.replaceTokens(text, redact, true)
}

func (s *Set) replaceTokens(text string, redact func(category, token string) string, compound bool) string {
	if s.Len() == 0 || text == "" {
		return text
	}
	var b strings.Builder
	changed := false
	start := -1
	flush := func(end int) {
		tok := text[start:end]
		trimmed := strings.TrimRight(tok, ".")
		if compound && !strings.Contains(trimmed, ".") {
			b.WriteString(tok)
			start = -1
			return
		}
		if out, ok := s.replace(trimmed, redact); ok && trimmed != "" {
			b.WriteString(out)
			b.WriteString(tok[len(trimmed):])
			changed = true
		} else {
			b.WriteString(tok)
		}
		start = -1
	}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
		} else {
			if start >= 0 {
				flush(i)
			}
			b.WriteString(text[i : i+size])
		}
		i += size
	}
	if start >= 0 {
		flush(len(text))
	}
	if !changed {
		return text
	}
	return b.String()
}

func (s *Set) replace(token string, redact func(category, token string) string) (string, bool) {
	e, ok := s.entries[token]
	if !ok {
		return "", false
	}
	if e.replacement != "" {
		return e.replacement, true
	}
	return redact(e.category, token), true
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}
