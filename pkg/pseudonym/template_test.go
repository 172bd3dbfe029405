// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package pseudonym

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileEnumeratesValues(t *testing.T) {
	tmpl, err := Compile(`[ab]c`)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tmpl.Size())
	assert.ElementsMatch(t, []string{"ac", "bc"}, []string{tmpl.Value(0), tmpl.Value(1)})
}

func TestCompileOpenRepeatIsCapped(t *testing.T) {
	tmpl, err := Compile(`a+`)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), tmpl.Size())
	assert.Equal(t, "a", tmpl.Value(0))
	assert.Equal(t, "aaaa", tmpl.Value(3))
}

func TestCompileNegatedClassIsPrintable(t *testing.T) {
	tmpl, err := Compile(`[^/]`)
	require.NoError(t, err)
	assert.Equal(t, uint64(93), tmpl.Size())
	for i := uint64(0); i < tmpl.Size(); i++ {
		v := tmpl.Value(i)
		assert.NotEqual(t, "/", v)
		assert.GreaterOrEqual(t, v[0], byte('!'))
		assert.LessOrEqual(t, v[0], byte('~'))
	}
}

func TestCompileDotUsesAlphanumerics(t *testing.T) {
	tmpl, err := Compile(`.`)
	require.NoError(t, err)
	assert.Equal(t, uint64(62), tmpl.Size())
}

func TestCompileAnchorsProduceNothing(t *testing.T) {
	tmpl, err := Compile(`^ab$`)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tmpl.Size())
	assert.Equal(t, "ab", tmpl.Value(0))
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(`[a-`)
	assert.Error(t, err)

	_, err = Compile(`[^\x00-\x{10FFFF}]`)
	assert.Error(t, err)
}

func TestCompileExpandsPlaceholders(t *testing.T) {
	tmpl, err := Compile(`{users}@example\.com`)
	require.NoError(t, err)
	assert.Equal(t, "{users}@example\\.com", tmpl.String())
	assert.Equal(t, uint64(len(sampleUsers)), tmpl.Size())

	re := regexp.MustCompile(`^[a-z.]+@example\.com$`)
	for i := uint64(0); i < tmpl.Size(); i++ {
		assert.Regexp(t, re, tmpl.Value(i))
	}
}

func TestCardinalityCountsDistinctValues(t *testing.T) {
	tmpl, err := Compile(`(x|xy)(y|)`)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), tmpl.Size())
	assert.Equal(t, uint64(3), tmpl.Cardinality(CardinalityLimit))
}

func TestCardinalityIsCapped(t *testing.T) {
	tmpl, err := Compile(`[a-z]{8}`)
	require.NoError(t, err)
	assert.Equal(t, uint64(CardinalityLimit), tmpl.Cardinality(CardinalityLimit))
}

func TestUnboundedTemplateSaturates(t *testing.T) {
	tmpl, err := Compile(`[a-z]{20}[0-9]{20}`)
	require.NoError(t, err)
	assert.False(t, tmpl.Bounded())
	assert.Len(t, tmpl.Value(12345), 40)
}

func TestExpandPlaceholdersQuotesValues(t *testing.T) {
	out := ExpandPlaceholders("{emails}")
	assert.True(t, strings.HasPrefix(out, "(?:"))
	assert.Contains(t, out, `\.`)
	assert.Equal(t, "{unknown}", ExpandPlaceholders("{unknown}"))
}
