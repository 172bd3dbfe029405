// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package pseudonym

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashFormat(t *testing.T) {
	tests := []struct {
		name   string
		format HashFormat
		want   string
	}{
		{"hash", HashFormat{Kind: FormatHash, Length: 8}, `^<hash:[0-9a-f]{8}>$`},
		{"redacted", HashFormat{Kind: FormatRedacted, Length: 4}, `^<redacted:[0-9a-f]{4}>$`},
		{"custom", HashFormat{Kind: FormatCustom, Prefix: "[", Suffix: "]", Length: 6}, `^\[[0-9a-f]{6}\]$`},
		{"lower case kind", HashFormat{Kind: "custom", Prefix: "u-", Length: 3}, `^u-[0-9a-f]{3}$`},
		{"full length", HashFormat{Kind: FormatHash, Length: 16}, `^<hash:[0-9a-f]{16}>$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Regexp(t, tt.want, tt.format.Format("alice"))
		})
	}
}

func TestHashValueIsSeeded(t *testing.T) {
	a := HashFormat{Kind: FormatHash, Length: 16, Seed: 1}
	b := HashFormat{Kind: FormatHash, Length: 16, Seed: 2}

	assert.Equal(t, a.HashValue("alice"), a.HashValue("alice"))
	assert.NotEqual(t, a.HashValue("alice"), a.HashValue("bob"))
	assert.NotEqual(t, a.HashValue("alice"), b.HashValue("alice"))
}
