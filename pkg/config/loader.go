// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SourceNone is the parent value meaning "no parent".
const SourceNone = "none"

const (
	fetchConnectTimeout = 10 * time.Second
	fetchReadTimeout    = 10 * time.Second
	maxRemoteSize       = 4 << 20
)

// Loader resolves configuration sources and their parent chains. Resolved
// configurations are cached by source string until Clear is called.
type Loader struct {
	mu      sync.Mutex
	cache   map[string]*Config
	loading []string

	presets fs.FS
	client  *http.Client
	logger  *zap.Logger
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithPresets replaces the embedded presets. Files are looked up as <name>.yaml.
func WithPresets(fsys fs.FS) LoaderOption {
	return func(l *Loader) { l.presets = fsys }
}

// WithHTTPClient replaces the client used for http and https sources.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// WithLogger sets the loader's logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader with the embedded presets.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		cache:   make(map[string]*Config),
		presets: builtinPresets,
		client:  defaultHTTPClient(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: fetchConnectTimeout + fetchReadTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: fetchConnectTimeout}).DialContext,
			TLSHandshakeTimeout:   fetchConnectTimeout,
			ResponseHeaderTimeout: fetchReadTimeout,
		},
	}
}

// Resolve loads source, resolves its parent chain, merges it, and validates
// the result. The same source always yields the same *Config until Clear.
func (l *Loader) Resolve(ctx context.Context, source string) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolve(ctx, source)
}

// Clear drops every cached configuration.
func (l *Loader) Clear() {
	l.mu.Lock()
	n := len(l.cache)
	l.cache = make(map[string]*Config)
	l.mu.Unlock()
	l.logger.Info("configuration cache cleared", zap.Int("entries", n))
}

// Files returns the local files behind the cached configurations, sorted.
func (l *Loader) Files() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var files []string
	for source := range l.cache {
		if source == SourceNone || isURL(source) || isPresetName(source) {
			continue
		}
		files = append(files, filepath.Clean(source))
	}
	sort.Strings(files)
	return files
}

func (l *Loader) resolve(ctx context.Context, source string) (*Config, error) {
	if IsNone(source) {
		source = SourceNone
	}
	if cfg, ok := l.cache[source]; ok {
		return cfg, nil
	}

	for _, s := range l.loading {
		if s == source {
			chain := append(append([]string{}, l.loading...), source)
			return nil, &CircularDependencyError{Chain: chain[indexOf(chain, source):]}
		}
	}
	l.loading = append(l.loading, source)
	defer func() { l.loading = l.loading[:len(l.loading)-1] }()

	l.logger.Debug("resolving configuration", zap.String("source", source))

	var raw *Config
	if source == SourceNone {
		raw = &Config{source: SourceNone}
	} else {
		data, err := l.read(ctx, source)
		if err != nil {
			return nil, err
		}
		if raw, err = Parse(data, source); err != nil {
			return nil, err
		}
	}

	resolved := raw
	if !IsNone(raw.Parent) {
		parentSource := l.parentSource(source, raw.Parent)
		parent, err := l.resolve(ctx, parentSource)
		if err != nil {
			return nil, fmt.Errorf("resolve parent %q of %s: %w", raw.Parent, source, err)
		}
		resolved = Merge(parent, raw)
	}

	if err := resolved.Validate(); err != nil {
		return nil, err
	}

	l.cache[source] = resolved
	return resolved, nil
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return 0
}

// IsNone reports whether a parent reference means "no parent".
func IsNone(source string) bool {
	s := strings.TrimSpace(source)
	return s == "" || strings.EqualFold(s, SourceNone)
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	switch {
	case isURL(source):
		return l.fetch(ctx, source)
	case isPresetName(source):
		data, err := fs.ReadFile(l.presets, source+".yaml")
		if err != nil {
			return nil, &NotFoundError{Source: source, Reason: "unknown preset"}
		}
		return data, nil
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, &NotFoundError{Source: source, Err: err}
		}
		return data, nil
	}
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, &NetworkError{URL: source, Err: err}
	}

	if u.Scheme == "file" {
		data, err := os.ReadFile(filepath.FromSlash(u.Path))
		if err != nil {
			return nil, &NotFoundError{Source: source, Err: err}
		}
		return data, nil
	}
	if u.Host == "" {
		return nil, &NetworkError{URL: source, Err: errors.New("missing host")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &NetworkError{URL: source, Err: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{Source: source, Reason: resp.Status}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: source, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize))
	if err != nil {
		return nil, &NetworkError{URL: source, Err: err}
	}
	return data, nil
}

// parentSource interprets a parent reference relative to the child that
// named it: relative paths resolve against the child's directory or URL.
func (l *Loader) parentSource(child, parent string) string {
	parent = strings.TrimSpace(parent)
	if isURL(parent) || isPresetName(parent) || filepath.IsAbs(parent) {
		return parent
	}
	if isURL(child) {
		base, err := url.Parse(child)
		if err != nil {
			return parent
		}
		if base.Scheme == "file" {
			base.Path = path.Join(path.Dir(base.Path), filepath.ToSlash(parent))
			return base.String()
		}
		ref, err := url.Parse(filepath.ToSlash(parent))
		if err != nil {
			return parent
		}
		return base.ResolveReference(ref).String()
	}
	if isPresetName(child) {
		return parent
	}
	return filepath.Join(filepath.Dir(child), parent)
}

func isURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "file://")
}

// isPresetName reports whether source is a bare name rather than a path.
func isPresetName(source string) bool {
	if source == "" || strings.ContainsAny(source, `/\`) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(source))
	return ext != ".yaml" && ext != ".yml"
}
