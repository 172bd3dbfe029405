// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/mbeema/veil/pkg/events"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "veil dev")
}

func TestTextFromStdin(t *testing.T) {
	out, err := run(t, "login from 10.0.0.1\nuser=bob\n", "text")
	require.NoError(t, err)
	assert.Equal(t, "login from ***\nuser=bob\n", out)
}

func TestTextFilesWithWordRules(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.log")
	out := filepath.Join(dir, "out.log")
	rules := filepath.Join(dir, "rules.words")
	require.NoError(t, os.WriteFile(in, []byte("user=bob\r\nuser=alice\n"), 0o644))
	require.NoError(t, os.WriteFile(rules, []byte("- bob\n! alice pat\n"), 0o644))

	_, err := run(t, "", "--words", rules, "text", in, out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "user=***\r\nuser=pat\n", string(data))
}

func TestTextAppliesSavedDecisions(t *testing.T) {
	dir := t.TempDir()
	decisions := filepath.Join(dir, "decisions.yaml")
	require.NoError(t, os.WriteFile(decisions, []byte(`---
- value: john.doe
  category: users
  action: redact
- value: carol
  category: users
  action: replace
  replacement: Jane Roe
`), 0o644))

	out, err := run(t, "john.doe logged in\ncarol too\n", "--config", "none", "--decisions", decisions, "text")
	require.NoError(t, err)
	assert.Equal(t, "*** logged in\nJane Roe too\n", out)

	// A decisions file that does not exist yet is not an error.
	out, err = run(t, "john.doe\n", "--config", "none", "--decisions", filepath.Join(dir, "new.yaml"), "text")
	require.NoError(t, err)
	assert.Equal(t, "john.doe\n", out)
}

func TestTextTwoPassDiscovery(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "veil.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`parent: none
discovery:
  patterns:
    - name: users
      pattern: '/home/([^/\s]+)'
`), 0o644))
	in := filepath.Join(dir, "in.log")
	require.NoError(t, os.WriteFile(in, []byte("hello jdoe\nopened /home/jdoe/notes\n"), 0o644))

	out, err := run(t, "", "--config", cfg, "--discovery", "two_pass", "text", in)
	require.NoError(t, err)
	assert.Equal(t, "hello ***\nopened /home/***/notes\n", out)
}

func TestRedactEventsFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	out := filepath.Join(dir, "out.json")

	str := func(v string) *commonpb.AnyValue {
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v}}
	}
	req := &collogspb.ExportLogsServiceRequest{ResourceLogs: []*logspb.ResourceLogs{{
		ScopeLogs: []*logspb.ScopeLogs{{LogRecords: []*logspb.LogRecord{
			{Body: str("mail john@corp.com"), Attributes: []*commonpb.KeyValue{{Key: "api_key", Value: str("abc123")}}},
			{Body: str("env"), Attributes: []*commonpb.KeyValue{{Key: "event.name", Value: str("process.environment")}}},
		}}},
	}}}
	require.NoError(t, events.WriteFile(in, req, events.EncodingJSON))

	_, err := run(t, "", "redact", in, out)
	require.NoError(t, err)

	got, enc, err := events.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, events.EncodingJSON, enc)
	records := got.ResourceLogs[0].ScopeLogs[0].LogRecords
	require.Len(t, records, 1)
	assert.Equal(t, "mail ***", records[0].Body.GetStringValue())
	assert.Equal(t, "***", records[0].Attributes[0].Value.GetStringValue())
}

func TestConfigCommand(t *testing.T) {
	out, err := run(t, "", "config", "--presets")
	require.NoError(t, err)
	assert.Equal(t, "default\nstrict\n", out)

	out, err = run(t, "", "config", "strict")
	require.NoError(t, err)
	assert.Contains(t, out, "TWO_PASS")
	assert.Contains(t, out, "password")

	out, err = run(t, "", "--discovery", "fast", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "mode: FAST")

	_, err = run(t, "", "config", "no-such-preset")
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	out, err := run(t, "", "generate", "uuids", "-n", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	re := regexp.MustCompile(`^[0-9a-f]{8}-0000-4000-8000-[0-9a-f]{12}$`)
	seen := map[string]bool{}
	for _, l := range lines {
		assert.Regexp(t, re, l)
		seen[l] = true
	}
	assert.Len(t, seen, 3)

	first, err := run(t, "", "generate", "ipv4", "--value", "192.168.1.7")
	require.NoError(t, err)
	second, err := run(t, "", "generate", "ipv4", "--value", "192.168.1.7")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "10."))

	_, err = run(t, "", "generate", "nope")
	assert.ErrorContains(t, err, "nope")
}

func TestUnknownLogLevel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "loud", "version"})
	assert.Error(t, cmd.Execute())
}
