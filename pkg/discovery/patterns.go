// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package discovery

// Token is a discovered value with its category and occurrence count.
type Token struct {
	Value    string
	Category string
	Count    int
}

type categoryTokens struct {
	counts map[string]int
	order  []string
}

// Patterns holds discovered tokens per category with occurrence counts.
// Categories and tokens keep the order in which they were first seen.
type Patterns struct {
	byCategory map[string]*categoryTokens
	categories []string
}

// NewPatterns returns an empty store.
func NewPatterns() *Patterns {
	return &Patterns{byCategory: make(map[string]*categoryTokens)}
}

// Add records one occurrence of token in category.
func (p *Patterns) Add(category, token string) {
	ct, ok := p.byCategory[category]
	if !ok {
		ct = &categoryTokens{counts: make(map[string]int)}
		p.byCategory[category] = ct
		p.categories = append(p.categories, category)
	}
	if _, seen := ct.counts[token]; !seen {
		ct.order = append(ct.order, token)
	}
	ct.counts[token]++
}

// Count returns how often token was seen in category.
func (p *Patterns) Count(category, token string) int {
	if ct, ok := p.byCategory[category]; ok {
		return ct.counts[token]
	}
	return 0
}

// Categories returns the categories in first-seen order.
func (p *Patterns) Categories() []string {
	return append([]string(nil), p.categories...)
}

// Tokens returns the tokens of category in first-seen order.
func (p *Patterns) Tokens(category string) []Token {
	ct, ok := p.byCategory[category]
	if !ok {
		return nil
	}
	out := make([]Token, 0, len(ct.order))
	for _, v := range ct.order {
		out = append(out, Token{Value: v, Category: category, Count: ct.counts[v]})
	}
	return out
}

// All returns every token, grouped by category.
func (p *Patterns) All() []Token {
	var out []Token
	for _, c := range p.categories {
		out = append(out, p.Tokens(c)...)
	}
	return out
}

// Len returns the number of distinct (category, token) pairs.
func (p *Patterns) Len() int {
	n := 0
	for _, ct := range p.byCategory {
		n += len(ct.order)
	}
	return n
}
