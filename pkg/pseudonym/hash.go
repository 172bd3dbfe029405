// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package pseudonym

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Hash output formats.
const (
	FormatRedacted = "REDACTED"
	FormatHash     = "HASH"
	FormatCustom   = "CUSTOM"
)

// HashFormat renders a seeded hash of a value, used for categories that have
// no template.
type HashFormat struct {
	Kind   string // REDACTED, HASH or CUSTOM
	Prefix string // CUSTOM only
	Suffix string // CUSTOM only
	Length int    // hex digits, 1..16
	Seed   uint64
}

// HashValue returns the first f.Length hex digits of the seeded xxhash of value.
func (f HashFormat) HashValue(value string) string {
	d := xxhash.NewWithSeed(f.Seed)
	d.WriteString(value)
	h := fmt.Sprintf("%016x", d.Sum64())
	if f.Length > 0 && f.Length < len(h) {
		h = h[:f.Length]
	}
	return h
}

// Format renders value in the configured format.
func (f HashFormat) Format(value string) string {
	h := f.HashValue(value)
	switch strings.ToUpper(f.Kind) {
	case FormatRedacted:
		return "<redacted:" + h + ">"
	case FormatCustom:
		return f.Prefix + h + f.Suffix
	default:
		return "<hash:" + h + ">"
	}
}
