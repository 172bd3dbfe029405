// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

// Merge layers child on top of parent and returns a new Config. Lists are
// unioned in order (parent first), named entries are merged by name, and
// scalars take the child's value when the child sets them. Neither input is
// modified.
func Merge(parent, child *Config) *Config {
	if parent == nil {
		parent = &Config{}
	}
	if child == nil {
		child = &Config{}
	}
	return &Config{
		Parent: child.Parent,
		General: GeneralConfig{
			RedactionText: pick(parent.General.RedactionText, child.General.RedactionText),
			Realistic:     pick(parent.General.Realistic, child.General.Realistic),
		},
		Properties: PropertiesConfig{
			Enabled:  pick(parent.Properties.Enabled, child.Properties.Enabled),
			Patterns: union(parent.Properties.Patterns, child.Properties.Patterns),
		},
		Strings: StringsConfig{
			Enabled:    pick(parent.Strings.Enabled, child.Strings.Enabled),
			Categories: mergeCategories(parent.Strings.Categories, child.Strings.Categories),
		},
		Events: EventsConfig{
			Enabled: pick(parent.Events.Enabled, child.Events.Enabled),
			Removed: union(parent.Events.Removed, child.Events.Removed),
		},
		Discovery: DiscoveryConfig{
			Mode:             pick(parent.Discovery.Mode, child.Discovery.Mode),
			MinOccurrences:   pick(parent.Discovery.MinOccurrences, child.Discovery.MinOccurrences),
			MinLength:        pick(parent.Discovery.MinLength, child.Discovery.MinLength),
			SnapshotInterval: pick(parent.Discovery.SnapshotInterval, child.Discovery.SnapshotInterval),
			Ignored:          union(parent.Discovery.Ignored, child.Discovery.Ignored),
			Patterns:         mergeDiscoveryPatterns(parent.Discovery.Patterns, child.Discovery.Patterns),
		},
		Pseudonymization: PseudonymizationConfig{
			Enabled:    pick(parent.Pseudonymization.Enabled, child.Pseudonymization.Enabled),
			Format:     pick(parent.Pseudonymization.Format, child.Pseudonymization.Format),
			Prefix:     pick(parent.Pseudonymization.Prefix, child.Pseudonymization.Prefix),
			Suffix:     pick(parent.Pseudonymization.Suffix, child.Pseudonymization.Suffix),
			HashLength: pick(parent.Pseudonymization.HashLength, child.Pseudonymization.HashLength),
			Seed:       pick(parent.Pseudonymization.Seed, child.Pseudonymization.Seed),
			Templates:  mergeTemplates(parent.Pseudonymization.Templates, child.Pseudonymization.Templates),
		},
		source: child.source,
	}
}

// pick returns a copy of child when set, else a copy of parent.
func pick[T any](parent, child *T) *T {
	src := parent
	if child != nil {
		src = child
	}
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func union(parent, child []string) []string {
	if len(parent) == 0 && len(child) == 0 {
		return nil
	}
	out := make([]string, 0, len(parent)+len(child))
	seen := make(map[string]bool, len(parent)+len(child))
	for _, list := range [][]string{parent, child} {
		for _, v := range list {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func mergeCategories(parent, child []Category) []Category {
	if len(parent) == 0 && len(child) == 0 {
		return nil
	}
	out := make([]Category, 0, len(parent)+len(child))
	index := make(map[string]int, len(parent)+len(child))
	for _, list := range [][]Category{parent, child} {
		for _, c := range list {
			if i, ok := index[c.Name]; ok {
				out[i] = Category{
					Name:     c.Name,
					Enabled:  pick(out[i].Enabled, c.Enabled),
					Patterns: union(out[i].Patterns, c.Patterns),
				}
				continue
			}
			index[c.Name] = len(out)
			out = append(out, Category{
				Name:     c.Name,
				Enabled:  pick[bool](nil, c.Enabled),
				Patterns: union(nil, c.Patterns),
			})
		}
	}
	return out
}

// mergeDiscoveryPatterns unions extractors. A category may have several
// extractors, so entries are only deduplicated when name and pattern match.
func mergeDiscoveryPatterns(parent, child []DiscoveryPattern) []DiscoveryPattern {
	if len(parent) == 0 && len(child) == 0 {
		return nil
	}
	out := make([]DiscoveryPattern, 0, len(parent)+len(child))
	seen := make(map[DiscoveryPattern]bool, len(parent)+len(child))
	for _, list := range [][]DiscoveryPattern{parent, child} {
		for _, p := range list {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func mergeTemplates(parent, child []Template) []Template {
	if len(parent) == 0 && len(child) == 0 {
		return nil
	}
	out := make([]Template, 0, len(parent)+len(child))
	index := make(map[string]int, len(parent)+len(child))
	for _, list := range [][]Template{parent, child} {
		for _, t := range list {
			if i, ok := index[t.Category]; ok {
				out[i].Template = t.Template
				continue
			}
			index[t.Category] = len(out)
			out = append(out, t)
		}
	}
	return out
}
