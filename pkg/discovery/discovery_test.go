// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeema/veil/pkg/config"
)

func homeUsers() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		Mode:    config.String(config.ModeFast),
		Ignored: []string{"root"},
		Patterns: []config.DiscoveryPattern{
			{Name: "users", Pattern: `/home/([^/\s]+)`},
			{Name: "tokens", Pattern: `tok=(?P<value>\S+)`},
		},
	}
}

func newEngine(t *testing.T, cfg config.DiscoveryConfig, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"", None},
		{"none", None},
		{"FAST", Fast},
		{"two_pass", TwoPass},
		{"two-pass", TwoPass},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseMode("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "TWO_PASS", TwoPass.String())
}

func TestCandidateHeuristic(t *testing.T) {
	e := newEngine(t, homeUsers())

	assert.False(t, e.IsCandidate("0xdeadbeef"))
	assert.False(t, e.IsCandidate("0XCAFE"))
	assert.False(t, e.IsCandidate("123456"))
	assert.False(t, e.IsCandidate("ab"))
	assert.False(t, e.IsCandidate("ROOT"))

	assert.True(t, e.IsCandidate("DEADBEEF"))
	assert.True(t, e.IsCandidate("0xzz"))
	assert.True(t, e.IsCandidate("alice"))
}

func TestObserveGroupsByExtractor(t *testing.T) {
	e := newEngine(t, config.DiscoveryConfig{Patterns: []config.DiscoveryPattern{
		{Name: "users", Pattern: `/home/([^/\s]+)`},
		{Name: "tokens", Pattern: `tok=(?P<value>\S+)`},
		{Name: "hex", Pattern: `id=(\S+)`},
	}})

	e.ObserveText("cd /home/alice && cat /home/bob/x /home/alice/y tok=DEADBEEF id=0x1f id=1234")
	p := e.Patterns()

	assert.Equal(t, []string{"users", "tokens"}, p.Categories())
	assert.Equal(t, []Token{
		{Value: "alice", Category: "users", Count: 2},
		{Value: "bob", Category: "users", Count: 1},
	}, p.Tokens("users"))
	assert.Equal(t, 1, p.Count("tokens", "DEADBEEF"))
	assert.Nil(t, p.Tokens("hex"))
	assert.Equal(t, 3, p.Len())
}

type sensitiveNames []string

func (s sensitiveNames) Matches(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

type staticEmails struct{}

func (staticEmails) Match(v string) (string, bool) {
	if strings.Contains(v, "@") {
		return "emails", true
	}
	return "", false
}

func TestObserveSkipsCoveredValues(t *testing.T) {
	e := newEngine(t, config.DiscoveryConfig{Patterns: []config.DiscoveryPattern{
		{Name: "owners", Pattern: `owner=(\S+)`},
	}}, WithCoverage(sensitiveNames{"password"}, staticEmails{}))

	assert.Equal(t, 0, e.ObserveField("password", "owner=hunter"))
	assert.Equal(t, 0, e.ObserveField("note", "owner=alice@corp.com"))
	assert.Equal(t, 1, e.ObserveField("note", "owner=carol"))
	assert.Equal(t, []Token{{Value: "carol", Category: "owners", Count: 1}}, e.Patterns().All())
}

func TestFastSnapshotsAtInterval(t *testing.T) {
	cfg := homeUsers()
	cfg.SnapshotInterval = config.Int(2)
	e := newEngine(t, cfg)

	e.ObserveText("/home/alice")
	assert.False(t, e.Tick())
	assert.Equal(t, 0, e.Live().Len())

	assert.True(t, e.Tick())
	_, _, ok := e.Live().Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, 1, e.Snapshots())
}

func TestSnapshotMinOccurrences(t *testing.T) {
	e := newEngine(t, homeUsers())
	e.ObserveText("/home/alice /home/alice /home/bob")

	set := e.Snapshot(2)
	assert.Equal(t, 1, set.Len())
	cat, _, ok := set.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, "users", cat)
}

type scriptedDecider struct {
	decisions map[string]Decision
	asked     []string
	persisted []Resolution
	persists  int
}

func (d *scriptedDecider) Decide(_ context.Context, c Candidate) (Decision, error) {
	d.asked = append(d.asked, c.Value)
	if dec, ok := d.decisions[c.Value]; ok {
		return dec, nil
	}
	return Decision{Action: Redact}, nil
}

func (d *scriptedDecider) Persist(_ context.Context, r []Resolution) error {
	d.persists++
	d.persisted = r
	return nil
}

func TestResolveWithDecider(t *testing.T) {
	cfg := homeUsers()
	cfg.Mode = config.String(config.ModeTwoPass)
	e := newEngine(t, cfg)
	e.ObserveText("/home/alice /home/bob /home/carol")

	d := &scriptedDecider{decisions: map[string]Decision{
		"alice": {Action: Keep},
		"bob":   {Action: Replace, Replacement: "USER_B"},
	}}
	set, err := e.Resolve(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, 1, d.persists)
	assert.Len(t, d.persisted, len(d.asked))
	assert.Contains(t, d.asked, "alice")

	_, _, ok := set.Lookup("alice")
	assert.False(t, ok)
	_, repl, ok := set.Lookup("bob")
	assert.True(t, ok)
	assert.Equal(t, "USER_B", repl)
	assert.Same(t, set, e.Live())

	out := set.Replace("alice bob carol", func(category, token string) string { return "<" + category + ">" })
	assert.Equal(t, "alice USER_B <users>", out)
}

type failingDecider struct{ scriptedDecider }

func (failingDecider) Decide(context.Context, Candidate) (Decision, error) {
	return Decision{}, errors.New("closed")
}

func TestResolveDeciderError(t *testing.T) {
	e := newEngine(t, homeUsers())
	e.ObserveText("/home/alice")
	_, err := e.Resolve(context.Background(), &failingDecider{})
	assert.Error(t, err)
}

func TestResolveSkipsEarlierDecisions(t *testing.T) {
	cfg := homeUsers()
	cfg.Mode = config.String(config.ModeTwoPass)
	earlier := []Resolution{
		{Candidate: Candidate{Value: "alice", Category: "users"}, Decision: Decision{Action: Keep}},
		{Candidate: Candidate{Value: "john.doe", Category: "users"}},
	}
	e := newEngine(t, cfg, WithDecisions(earlier))
	e.ObserveText("/home/alice /home/john.doe /home/bob")

	d := &scriptedDecider{}
	set, err := e.Resolve(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, d.asked)
	assert.Len(t, d.persisted, 1)
	assert.Equal(t, 1, set.Len())

	// Snapshots leave decided tokens to the caller too.
	assert.Equal(t, 1, e.Snapshot(1).Len())
	assert.Equal(t, 3, e.Patterns().Len())
}

func TestSetFromDecisions(t *testing.T) {
	set := NewDecidedSet([]Resolution{
		{Candidate: Candidate{Value: "john.doe", Category: "users"}},
		{Candidate: Candidate{Value: "carol", Category: "users"}, Decision: Decision{Action: Replace, Replacement: "Jane Roe"}},
		{Candidate: Candidate{Value: "alice", Category: "users"}},
		{Candidate: Candidate{Value: "alice", Category: "users"}, Decision: Decision{Action: Keep}},
	})
	assert.Equal(t, 2, set.Len())

	mark := func(category, token string) string { return "<" + category + ">" }
	assert.Equal(t, "<users> and Jane Roe, not alice",
		set.Replace("john.doe and carol, not alice", mark))

	// The compound pass only touches dotted tokens.
	assert.Equal(t, "<users> and carol.", set.ReplaceCompound("john.doe and carol.", mark))
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{"keep": Keep, "Redact": Redact, "": Redact, " replace ": Replace} {
		got, err := ParseAction(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAction("shred")
	assert.Error(t, err)
}

func TestSetReplaceTokens(t *testing.T) {
	e := newEngine(t, homeUsers())
	e.ObserveText("/home/john_doe /home/db-01.internal")
	set := e.Snapshot(1)

	redact := func(string, string) string { return "***" }
	assert.Equal(t, "User *** accessed /home/***/documents.", set.Replace("User john_doe accessed /home/john_doe/documents.", redact))
	assert.Equal(t, "host ***.", set.Replace("host db-01.internal.", redact))
	assert.Equal(t, "john_doex", set.Replace("john_doex", redact))

	var empty *Set
	assert.Equal(t, "john_doe", empty.Replace("john_doe", redact))
}
