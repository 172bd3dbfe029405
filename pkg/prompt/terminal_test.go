// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package prompt

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeema/veil/pkg/discovery"
)

func candidate(v string) discovery.Candidate {
	return discovery.Candidate{Value: v, Category: "users", Count: 2}
}

func TestDecideAnswers(t *testing.T) {
	in := strings.NewReader("k\n\ns pat\nwhat\nr\n")
	var out bytes.Buffer
	term := NewTerminal(in, &out)
	ctx := context.Background()

	d, err := term.Decide(ctx, candidate("alice"))
	require.NoError(t, err)
	assert.Equal(t, discovery.Keep, d.Action)

	d, err = term.Decide(ctx, candidate("bob"))
	require.NoError(t, err)
	assert.Equal(t, discovery.Redact, d.Action)

	d, err = term.Decide(ctx, candidate("carol"))
	require.NoError(t, err)
	assert.Equal(t, discovery.Replace, d.Action)
	assert.Equal(t, "pat", d.Replacement)

	// An unknown answer asks again.
	d, err = term.Decide(ctx, candidate("dave"))
	require.NoError(t, err)
	assert.Equal(t, discovery.Redact, d.Action)

	assert.Contains(t, out.String(), "alice")
	assert.Contains(t, out.String(), "users")
	assert.Contains(t, out.String(), "expected k, r or s VALUE")
}

func TestDecideDefaultsToRedactAtEOF(t *testing.T) {
	term := NewTerminal(strings.NewReader(""), &bytes.Buffer{})
	d, err := term.Decide(context.Background(), candidate("alice"))
	require.NoError(t, err)
	assert.Equal(t, discovery.Redact, d.Action)

	// A final answer without a newline still counts.
	term = NewTerminal(strings.NewReader("k"), &bytes.Buffer{})
	d, err = term.Decide(context.Background(), candidate("alice"))
	require.NoError(t, err)
	assert.Equal(t, discovery.Keep, d.Action)
}

func TestDecideHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTerminal(strings.NewReader("k\n"), &bytes.Buffer{}).Decide(ctx, candidate("alice"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecideReplacementKeepsSpaces(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("s\ns  Jane  Roe \n"), &out)

	d, err := term.Decide(context.Background(), candidate("alice"))
	require.NoError(t, err)
	assert.Equal(t, discovery.Replace, d.Action)
	assert.Equal(t, "Jane  Roe", d.Replacement)
	assert.Contains(t, out.String(), "expected k, r or s VALUE")
}

func TestDecideRejectsTrailingWords(t *testing.T) {
	term := NewTerminal(strings.NewReader("k maybe\nk\n"), &bytes.Buffer{})
	d, err := term.Decide(context.Background(), candidate("alice"))
	require.NoError(t, err)
	assert.Equal(t, discovery.Keep, d.Action)
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.yaml")
	term := NewTerminal(strings.NewReader(""), &bytes.Buffer{}, WithDecisionsFile(path))

	first := []discovery.Resolution{
		{Candidate: candidate("john.doe"), Decision: discovery.Decision{Action: discovery.Redact}},
		{Candidate: candidate("svc*"), Decision: discovery.Decision{Action: discovery.Keep}},
		{Candidate: candidate("/tmp/"), Decision: discovery.Decision{Action: discovery.Keep}},
		{Candidate: candidate("carol"), Decision: discovery.Decision{Action: discovery.Replace, Replacement: "Jane Roe"}},
	}
	second := []discovery.Resolution{
		{Candidate: candidate("john.doe"), Decision: discovery.Decision{Action: discovery.Keep}},
	}
	require.NoError(t, term.Persist(context.Background(), first))
	require.NoError(t, term.Persist(context.Background(), second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "---\n"))

	got, err := ReadDecisions(path)
	require.NoError(t, err)
	want := append(append([]discovery.Resolution{}, first...), second...)
	for i := range want {
		want[i].Candidate.Count = 0
	}
	assert.Equal(t, want, got)
}

func TestReadDecisionsErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	_, err := ReadDecisions(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ReadDecisions(write("action.yaml", "- value: bob\n  action: shred\n"))
	assert.ErrorContains(t, err, "unknown decision")

	_, err = ReadDecisions(write("replace.yaml", "- value: bob\n  action: replace\n"))
	assert.ErrorContains(t, err, "incomplete decision")

	_, err = ReadDecisions(write("field.yaml", "- value: bob\n  action: keep\n  colour: red\n"))
	assert.Error(t, err)

	got, err := ReadDecisions(write("empty.yaml", ""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPersistWithoutFile(t *testing.T) {
	term := NewTerminal(strings.NewReader(""), &bytes.Buffer{})
	assert.NoError(t, term.Persist(context.Background(), []discovery.Resolution{
		{Candidate: candidate("alice")},
	}))
}

func TestIsInteractive(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "notatty")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsInteractive(f))
}
