// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	"pgregory.net/rapid"

	"github.com/mbeema/veil/pkg/config"
	"github.com/mbeema/veil/pkg/discovery"
	"github.com/mbeema/veil/pkg/events"
	"github.com/mbeema/veil/pkg/health"
	"github.com/mbeema/veil/pkg/prompt"
	"github.com/mbeema/veil/pkg/words"
)

func preset(t *testing.T, name string, overlay *config.Config) *config.Config {
	t.Helper()
	cfg, err := config.NewLoader().Resolve(context.Background(), name)
	require.NoError(t, err)
	if overlay != nil {
		cfg = config.Merge(cfg, overlay)
	}
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

func rules(t *testing.T, src string) []words.Rule {
	t.Helper()
	r, err := words.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return r
}

func usersDiscovery(mode string, interval int) *config.Config {
	return &config.Config{Discovery: config.DiscoveryConfig{
		Mode:             config.String(mode),
		SnapshotInterval: config.Int(interval),
		Patterns: []config.DiscoveryPattern{
			{Name: "users", Pattern: `/home/([^/\s]+)`},
		},
	}}
}

func TestRedactLineWithRules(t *testing.T) {
	e := newEngine(t, &config.Config{}, WithRules(rules(t, "- john_doe\n- /.*\\/john_doe\\/.*/\n")))
	out, err := e.RedactString(context.Background(), "User john_doe accessed /home/john_doe/documents")
	require.NoError(t, err)
	assert.Equal(t, "User *** accessed ***", out)
}

func TestRunEventsWithDefaultPreset(t *testing.T) {
	stats := health.NewStats()
	e := newEngine(t, preset(t, "default", nil), WithStats(stats))

	login := &events.Event{Type: "login", Fields: []events.Field{
		{Name: "password", Value: events.String("hunter2")},
		{Name: "token", Value: events.Int(1234)},
		{Name: "secret.flag", Value: events.Bool(true)},
		{Name: "secret.blob", Value: events.Bytes([]byte{1, 2})},
		{Name: "api_key.list", Value: events.Array(events.String("k1"), events.Double(2.5))},
		{Name: "message", Value: events.String("mail alice@corp.com from 10.1.2.3")},
		{Name: "port", Value: events.Int(22)},
	}}
	env := &events.Event{Type: "process.environment", Fields: []events.Field{
		{Name: "password", Value: events.String("untouched")},
	}}

	report, err := e.RunEvents(context.Background(), []*events.Event{login, env})
	require.NoError(t, err)

	assert.Equal(t, "***", login.Fields[0].Value.Str())
	assert.Equal(t, int64(0), login.Fields[1].Value.Int())
	assert.False(t, login.Fields[2].Value.Bool())
	assert.Empty(t, login.Fields[3].Value.Bytes())
	assert.Equal(t, "***", login.Fields[4].Value.Array()[0].Str())
	assert.Equal(t, 0.0, login.Fields[4].Value.Array()[1].Double())
	assert.Equal(t, "mail *** from ***", login.Fields[5].Value.Str())
	assert.Equal(t, int64(22), login.Fields[6].Value.Int())

	assert.True(t, env.Removed())
	assert.Equal(t, "untouched", env.Fields[0].Value.Str())

	assert.Equal(t, 2, report.Events)
	assert.Equal(t, 1, report.Removed)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, int64(1), stats.Runs.Load())
	assert.Equal(t, int64(1), stats.EventsRemoved.Load())
	assert.Equal(t, int64(report.Replaced), stats.ValuesRedacted.Load())
}

func TestEventRemovalDisabled(t *testing.T) {
	e := newEngine(t, preset(t, "default", &config.Config{Events: config.EventsConfig{Enabled: config.Bool(false)}}))
	assert.False(t, e.RemoveEvent("process.environment"))
}

func TestRedactValueKeyValueLists(t *testing.T) {
	e := newEngine(t, preset(t, "default", nil))
	kvlist := func(kvs ...*commonpb.KeyValue) *commonpb.AnyValue {
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_KvlistValue{
			KvlistValue: &commonpb.KeyValueList{Values: kvs},
		}}
	}
	str := func(k, v string) *commonpb.KeyValue {
		return &commonpb.KeyValue{Key: k, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v}}}
	}

	t.Run("sensitive field", func(t *testing.T) {
		out := e.RedactValue("password", events.FromAnyValue(kvlist(str("value", "hunter2"))))
		require.Equal(t, events.KindMap, out.Kind())
		kvs := events.ToAnyValue(out).GetKvlistValue().GetValues()
		require.Len(t, kvs, 1)
		assert.Equal(t, "value", kvs[0].GetKey())
		assert.Equal(t, "***", kvs[0].GetValue().GetStringValue())
	})

	t.Run("sensitive inner key", func(t *testing.T) {
		in := kvlist(
			str("password", "hunter2"),
			str("note", "mail alice@corp.com"),
			&commonpb.KeyValue{Key: "nested", Value: kvlist(str("secret", "s3cr3t"))},
		)
		out := e.RedactValue("request", events.FromAnyValue(in))
		fields := out.Map()
		require.Len(t, fields, 3)
		assert.Equal(t, "***", fields[0].Value.Str())
		assert.Equal(t, "mail ***", fields[1].Value.Str())
		assert.Equal(t, "***", fields[2].Value.Map()[0].Value.Str())
	})
}

func TestPseudonymsStableAcrossEvents(t *testing.T) {
	cfg := preset(t, "default", &config.Config{Pseudonymization: config.PseudonymizationConfig{
		Enabled: config.Bool(true),
		Seed:    config.Uint64(7),
	}})
	e := newEngine(t, cfg)

	a := e.RedactValue("message", events.String("alice@corp.com")).Str()
	b := e.RedactValue("note", events.String("to alice@corp.com")).Str()
	c := e.RedactValue("message", events.String("bob@corp.com")).Str()

	assert.Regexp(t, `^[a-z]+[0-9]{2}@example\.(com|org|net)$`, a)
	assert.Equal(t, "to "+a, b)
	assert.NotEqual(t, a, c)

	h := e.RedactValue("password", events.String("hunter2")).Str()
	assert.Regexp(t, `^<hash:[0-9a-f]{8}>$`, h)
}

func TestInvalidConfigIsRefused(t *testing.T) {
	cfg := &config.Config{Strings: config.StringsConfig{Categories: []config.Category{
		{Name: "broken", Patterns: []string{"("}},
	}}}
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestTwoPassRedactsEarlyOccurrences(t *testing.T) {
	input := "login alice\r\nopen /home/alice/notes\nbye alice"

	e := newEngine(t, usersDiscovery(config.ModeTwoPass, 1))
	out, err := e.RedactString(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "login ***\r\nopen /home/***/notes\nbye ***", out)
	assert.Equal(t, 3, e.LastReport().Lines)
	assert.Equal(t, 1, e.Discovered().Count("users", "alice"))

	e = newEngine(t, usersDiscovery(config.ModeFast, 1))
	out, err = e.RedactString(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "login alice\r\nopen /home/***/notes\nbye ***", out)
}

func TestTwoPassBuffersUnseekableInput(t *testing.T) {
	e := newEngine(t, usersDiscovery(config.ModeTwoPass, 1))
	var out bytes.Buffer
	_, err := e.RunText(context.Background(), bytes.NewBufferString("alice\n/home/alice\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "***\n/home/***\n", out.String())
}

func TestFastWithoutSnapshotRedactsNothingNew(t *testing.T) {
	e := newEngine(t, usersDiscovery(config.ModeFast, 1000))
	out, err := e.RedactString(context.Background(), "/home/alice\nalice\n")
	require.NoError(t, err)
	assert.Equal(t, "/home/alice\nalice\n", out)
	assert.Equal(t, 0, e.LastReport().Snapshots)
}

func TestEachRunStartsFresh(t *testing.T) {
	e := newEngine(t, usersDiscovery(config.ModeTwoPass, 1))
	_, err := e.RedactString(context.Background(), "/home/alice\n")
	require.NoError(t, err)
	first := e.LastReport().RunID

	out, err := e.RedactString(context.Background(), "alice\n")
	require.NoError(t, err)
	assert.Equal(t, "alice\n", out)
	assert.NotEqual(t, first, e.LastReport().RunID)
	assert.Equal(t, 0, e.Discovered().Len())
}

// The trade-off between the modes: TWO_PASS redacts every occurrence of a
// discovered token, FAST only those at or after the unit that revealed it.
func TestDiscoveryModesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 30).Draw(t, "lines")
		k := rapid.IntRange(0, n-1).Draw(t, "reveal")
		lines := make([]string, n)
		for i := range lines {
			lines[i] = fmt.Sprintf("msg %d alice", i)
		}
		lines[k] = "open /home/alice/file"
		input := strings.Join(lines, "\n") + "\n"

		two, err := New(usersDiscovery(config.ModeTwoPass, 1))
		if err != nil {
			t.Fatal(err)
		}
		out, err := two.RedactString(context.Background(), input)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(out, "alice") {
			t.Fatalf("TWO_PASS leaked a token: %q", out)
		}

		fast, err := New(usersDiscovery(config.ModeFast, 1))
		if err != nil {
			t.Fatal(err)
		}
		out, err = fast.RedactString(context.Background(), input)
		if err != nil {
			t.Fatal(err)
		}
		got := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		for i, line := range got {
			leaked := strings.Contains(line, "alice")
			if leaked != (i < k) {
				t.Fatalf("FAST line %d (reveal at %d) = %q", i, k, line)
			}
		}
	})
}

type recordingDecider struct {
	persisted []discovery.Resolution
	calls     int
}

func (d *recordingDecider) Decide(_ context.Context, c discovery.Candidate) (discovery.Decision, error) {
	if c.Value == "bob" {
		return discovery.Decision{Action: discovery.Keep}, nil
	}
	return discovery.Decision{Action: discovery.Replace, Replacement: "USER"}, nil
}

func (d *recordingDecider) Persist(_ context.Context, r []discovery.Resolution) error {
	d.calls++
	d.persisted = r
	return nil
}

func TestTwoPassConsultsDecider(t *testing.T) {
	d := &recordingDecider{}
	e := newEngine(t, usersDiscovery(config.ModeTwoPass, 1), WithDecider(d))

	out, err := e.RedactString(context.Background(), "alice bob\n/home/alice /home/bob\n")
	require.NoError(t, err)
	assert.Equal(t, "USER bob\n/home/USER /home/bob\n", out)
	assert.Equal(t, 1, d.calls)
	assert.Len(t, d.persisted, 2)
}

func TestSavedDecisionsApplyInLaterRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.yaml")
	term := prompt.NewTerminal(strings.NewReader(""), &bytes.Buffer{}, prompt.WithDecisionsFile(path))
	require.NoError(t, term.Persist(context.Background(), []discovery.Resolution{
		{Candidate: discovery.Candidate{Value: "john.doe", Category: "users"}},
		{Candidate: discovery.Candidate{Value: "svc*", Category: "users"}, Decision: discovery.Decision{Action: discovery.Keep}},
		{Candidate: discovery.Candidate{Value: "carol", Category: "users"},
			Decision: discovery.Decision{Action: discovery.Replace, Replacement: "Jane Roe"}},
	}))
	saved, err := prompt.ReadDecisions(path)
	require.NoError(t, err)

	t.Run("none", func(t *testing.T) {
		e := newEngine(t, &config.Config{}, WithDecisions(saved))
		out, err := e.RedactString(context.Background(), "john.doe logged in\ncarol met svc01\n")
		require.NoError(t, err)
		assert.Equal(t, "*** logged in\nJane Roe met svc01\n", out)
	})

	t.Run("two pass does not ask again", func(t *testing.T) {
		d := &recordingDecider{}
		e := newEngine(t, usersDiscovery(config.ModeTwoPass, 1), WithDecider(d), WithDecisions(saved))
		out, err := e.RedactString(context.Background(), "/home/john.doe /home/carol /home/bob\n")
		require.NoError(t, err)
		assert.Equal(t, "/home/*** /home/Jane Roe /home/bob\n", out)
		assert.Equal(t, 1, d.calls)
		require.Len(t, d.persisted, 1)
		assert.Equal(t, "bob", d.persisted[0].Candidate.Value)
	})
}

func TestTwoPassRedactsDottedTokens(t *testing.T) {
	e := newEngine(t, usersDiscovery(config.ModeTwoPass, 1))
	out, err := e.RedactString(context.Background(), "john.doe logged in\nopen /home/john.doe/notes\n")
	require.NoError(t, err)
	assert.Equal(t, "*** logged in\nopen /home/***/notes\n", out)
}

func TestRunEventsTwoPassSkipsRemovedEvents(t *testing.T) {
	cfg := usersDiscovery(config.ModeTwoPass, 1)
	cfg.Events.Removed = []string{"process.environment"}
	e := newEngine(t, cfg)

	env := &events.Event{Type: "process.environment", Fields: []events.Field{
		{Name: "HOME", Value: events.String("/home/carol")},
	}}
	msg := &events.Event{Type: "log", Fields: []events.Field{
		{Name: "body", Value: events.String("carol and /home/dave")},
	}}
	_, err := e.RunEvents(context.Background(), []*events.Event{env, msg})
	require.NoError(t, err)

	assert.Equal(t, "carol and /home/***", msg.Fields[0].Value.Str())
	assert.Equal(t, 0, e.Discovered().Count("users", "carol"))
}

func TestRunCanceled(t *testing.T) {
	e := newEngine(t, &config.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RunText(ctx, strings.NewReader("a\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
