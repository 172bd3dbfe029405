// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "veil.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parent: none\ngeneral:\n  redaction_text: one\n"), 0o644))

	loader := NewLoader()
	first, err := loader.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "one", first.General.Marker())

	changed := make(chan *Config, 4)
	w := NewWatcher(path, loader, func(c *Config) { changed <- c }, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("parent: none\ngeneral:\n  redaction_text: two\n"), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, "two", cfg.General.Marker())
		assert.NotSame(t, first, cfg)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}

func TestWatcherKeepsConfigOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "veil.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parent: none\n"), 0o644))

	changed := make(chan *Config, 4)
	w := NewWatcher(path, NewLoader(), func(c *Config) { changed <- c }, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("parent: none\nbogus: 1\n"), 0o644))

	select {
	case <-changed:
		t.Fatal("invalid configuration was delivered")
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestWatcherFollowsParentChain(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "shared", "base.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(base), 0o755))
	require.NoError(t, os.WriteFile(base, []byte("parent: none\ngeneral:\n  redaction_text: one\n"), 0o644))
	path := filepath.Join(dir, "veil.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parent: shared/base.yaml\n"), 0o644))

	loader := NewLoader()
	first, err := loader.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "one", first.General.Marker())
	assert.Equal(t, []string{base, path}, loader.Files())

	changed := make(chan *Config, 4)
	w := NewWatcher(path, loader, func(c *Config) { changed <- c }, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.ElementsMatch(t, []string{path, base}, w.Files())

	require.NoError(t, os.WriteFile(base, []byte("parent: none\ngeneral:\n  redaction_text: two\n"), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, "two", cfg.General.Marker())
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the parent change")
	}
}

func TestWatcherCallbackMayUseWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "veil.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parent: none\n"), 0o644))

	var w *Watcher
	files := make(chan []string, 4)
	w = NewWatcher(path, NewLoader(), func(*Config) { files <- w.Files() }, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("parent: none\ngeneral:\n  redaction_text: two\n"), 0o644))

	select {
	case got := <-files:
		assert.Equal(t, []string{path}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}

func TestWatcherSilentAfterStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "veil.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parent: none\n"), 0o644))

	changed := make(chan *Config, 4)
	w := NewWatcher(path, NewLoader(), func(c *Config) { changed <- c }, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("parent: none\ngeneral:\n  redaction_text: two\n"), 0o644))
	// Let the event arrive and arm the debounce timer, then stop before it fires.
	time.Sleep(100 * time.Millisecond)
	w.Stop()

	select {
	case <-changed:
		t.Fatal("reload delivered after Stop")
	case <-time.After(2 * watchDebounce):
	}
}
