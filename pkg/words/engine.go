// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package words

import (
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultMemoSize bounds the per-engine memo of rule decisions.
	DefaultMemoSize = 65536

	// Category is the replacement category used by Redact rules.
	Category = "words"
)

// Replacer produces the replacement for a redacted value.
type Replacer interface {
	Redact(category, value string) string
}

type markerReplacer string

func (m markerReplacer) Redact(string, string) string { return string(m) }

// Fallback is consulted for tokens no rule matches. It reports false to leave
// the token unchanged.
type Fallback func(token string) (string, bool)

// Outcome is the decision for one word.
type Outcome struct {
	Kind  Kind
	Value string
	Rule  *Rule
}

// Engine applies rules in order; the first matching rule decides. Which rule
// matched a word is memoized, so repeated words skip the scan. An Engine is
// not safe for concurrent use.
type Engine struct {
	rules    []Rule
	replacer Replacer
	fallback Fallback
	memo     *lru.Cache[string, int]
}

// Option customizes an Engine.
type Option func(*Engine)

// WithReplacer sets how Redact rules produce their output. The default is
// the plain "***" marker.
func WithReplacer(r Replacer) Option {
	return func(e *Engine) { e.replacer = r }
}

// WithFallback sets the handler for tokens no rule matches.
func WithFallback(f Fallback) Option {
	return func(e *Engine) { e.fallback = f }
}

// WithMemoSize sets the memo capacity.
func WithMemoSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.memo, _ = lru.New[string, int](n)
		}
	}
}

// NewEngine builds an engine over rules, which are evaluated in order.
func NewEngine(rules []Rule, opts ...Option) *Engine {
	e := &Engine{
		rules:    rules,
		replacer: markerReplacer("***"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.memo == nil {
		e.memo, _ = lru.New[string, int](DefaultMemoSize)
	}
	return e
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// SetFallback replaces the handler for unmatched tokens.
func (e *Engine) SetFallback(f Fallback) {
	e.fallback = f
}

// Match returns the outcome of the first rule matching word.
func (e *Engine) Match(word string) (Outcome, bool) {
	idx, ok := e.memo.Get(word)
	if !ok {
		idx = -1
		for i := range e.rules {
			if e.rules[i].Matches(word) {
				idx = i
				break
			}
		}
		e.memo.Add(word, idx)
	}
	if idx < 0 {
		return Outcome{}, false
	}

	rule := &e.rules[idx]
	out := Outcome{Kind: rule.Kind, Rule: rule}
	switch rule.Kind {
	case Keep:
		out.Value = word
	case Replace:
		out.Value = rule.Replacement
	default:
		out.Value = e.replacer.Redact(Category, word)
	}
	return out, true
}

// Apply returns word after rules; unmatched words are returned unchanged.
func (e *Engine) Apply(word string) string {
	if out, ok := e.Match(word); ok {
		return out.Value
	}
	return word
}

// RedactText applies the rules to every token of text and keeps everything
// between tokens verbatim. Tokens are maximal runs of letters, digits and
// the characters _ - + /.
func (e *Engine) RedactText(text string) string {
	if len(e.rules) == 0 && e.fallback == nil {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	forEachToken(text, isWordRune, func(tok string, isWord bool) {
		if !isWord {
			b.WriteString(tok)
			return
		}
		if out, ok := e.Match(tok); ok {
			b.WriteString(out.Value)
			return
		}
		if e.fallback != nil {
			if v, ok := e.fallback(tok); ok {
				b.WriteString(v)
				return
			}
		}
		b.WriteString(tok)
	})
	return b.String()
}

// Tokens returns the word tokens of text.
func Tokens(text string) []string {
	var out []string
	forEachToken(text, isWordRune, func(tok string, isWord bool) {
		if isWord {
			out = append(out, tok)
		}
	})
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '+' || r == '/'
}

// forEachToken splits s into alternating runs of word and non-word runes.
func forEachToken(s string, word func(rune) bool, fn func(tok string, isWord bool)) {
	start := 0
	inWord := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		w := word(r)
		if i > start && w != inWord {
			fn(s[start:i], inWord)
			start = i
		}
		inWord = w
		i += size
	}
	if start < len(s) {
		fn(s[start:], inWord)
	}
}
