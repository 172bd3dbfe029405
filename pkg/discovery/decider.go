// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package discovery

import (
	"context"
	"fmt"
	"strings"
)

// Action is a decision about a discovered token.
type Action int

const (
	// Redact replaces the token like any other sensitive value.
	Redact Action = iota
	// Keep leaves the token alone.
	Keep
	// Replace substitutes a fixed replacement.
	Replace
)

func (a Action) String() string {
	switch a {
	case Keep:
		return "keep"
	case Replace:
		return "replace"
	default:
		return "redact"
	}
}

// ParseAction parses keep, redact or replace, ignoring case.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep":
		return Keep, nil
	case "redact", "":
		return Redact, nil
	case "replace":
		return Replace, nil
	}
	return Redact, fmt.Errorf("unknown decision %q", s)
}

// Decision is the outcome for one candidate.
type Decision struct {
	Action      Action
	Replacement string // Replace only
}

// Candidate is a discovered token awaiting a decision.
type Candidate = Token

// Resolution pairs a candidate with its decision.
type Resolution struct {
	Candidate Candidate
	Decision  Decision
}

// Decider resolves discovered tokens, typically by asking a person, and
// stores the decisions for later runs. Persist is called once per run,
// after every candidate has been decided.
type Decider interface {
	Decide(ctx context.Context, c Candidate) (Decision, error)
	Persist(ctx context.Context, resolutions []Resolution) error
}

// NewDecidedSet builds a set from earlier decisions. Kept tokens are left
// out and a later decision for the same token overrides an earlier one.
func NewDecidedSet(resolutions []Resolution) *Set {
	set := &Set{entries: make(map[string]entry, len(resolutions))}
	for _, r := range resolutions {
		switch r.Decision.Action {
		case Keep:
			delete(set.entries, r.Candidate.Value)
		case Replace:
			set.entries[r.Candidate.Value] = entry{category: r.Candidate.Category, replacement: r.Decision.Replacement}
		default:
			set.entries[r.Candidate.Value] = entry{category: r.Candidate.Category}
		}
	}
	return set
}
