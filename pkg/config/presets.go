// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed presets/*.yaml
var presetFiles embed.FS

var builtinPresets = mustSub(presetFiles, "presets")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// Presets returns the names of the bundled presets.
func Presets() []string {
	entries, err := fs.ReadDir(builtinPresets, ".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
