// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package discovery finds sensitive tokens that static patterns do not
// cover, using configured extractor patterns and a conservative heuristic.
package discovery

import (
	"fmt"

	"github.com/mbeema/veil/pkg/config"
)

// Mode selects how discovery interleaves with redaction.
type Mode int

const (
	// None disables discovery.
	None Mode = iota
	// Fast discovers and redacts in one pass, installing snapshots of what
	// has been found at fixed intervals. Tokens found late may escape
	// redaction at their first occurrences.
	Fast
	// TwoPass reads the whole input once to discover, then again to redact.
	TwoPass
)

// ParseMode parses NONE, FAST or TWO_PASS, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch config.NormalizeMode(s) {
	case "", config.ModeNone:
		return None, nil
	case config.ModeFast:
		return Fast, nil
	case config.ModeTwoPass:
		return TwoPass, nil
	}
	return None, fmt.Errorf("unknown discovery mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case Fast:
		return config.ModeFast
	case TwoPass:
		return config.ModeTwoPass
	default:
		return config.ModeNone
	}
}
