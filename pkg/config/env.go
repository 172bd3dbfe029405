// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvOverlay builds a configuration layer from VEIL_* environment variables.
// It returns nil when none are set.
func EnvOverlay() *Config {
	overlay := &Config{}
	set := false

	stringOverrides := map[string]**string{
		"VEIL_REDACTION_TEXT":          &overlay.General.RedactionText,
		"VEIL_DISCOVERY_MODE":          &overlay.Discovery.Mode,
		"VEIL_PSEUDONYMIZATION_FORMAT": &overlay.Pseudonymization.Format,
	}
	boolOverrides := map[string]**bool{
		"VEIL_PSEUDONYMIZE": &overlay.Pseudonymization.Enabled,
		"VEIL_REALISTIC":    &overlay.General.Realistic,
	}

	for envKey, target := range stringOverrides {
		if val := os.Getenv(envKey); val != "" {
			*target = String(val)
			set = true
		}
	}
	for envKey, target := range boolOverrides {
		if val := os.Getenv(envKey); val != "" {
			*target = Bool(parseBool(val))
			set = true
		}
	}
	if val := os.Getenv("VEIL_PSEUDONYMIZATION_SEED"); val != "" {
		if seed, err := strconv.ParseUint(strings.TrimSpace(val), 10, 64); err == nil {
			overlay.Pseudonymization.Seed = Uint64(seed)
			set = true
		}
	}

	if !set {
		return nil
	}
	return overlay
}

// ApplyEnvOverrides returns cfg with the environment layer merged on top.
// cfg itself is left untouched, so cached configurations stay intact.
func ApplyEnvOverrides(cfg *Config) *Config {
	overlay := EnvOverlay()
	if overlay == nil {
		return cfg
	}
	return Apply(cfg, overlay)
}

// Apply merges overlay on top of cfg while keeping cfg's parent and source,
// for overrides that are not configuration layers of their own.
func Apply(cfg, overlay *Config) *Config {
	layer := *overlay
	layer.Parent = cfg.Parent
	layer.source = cfg.source
	return Merge(cfg, &layer)
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
