// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package pseudonym

import (
	"regexp"
	"strings"
)

// Sample values substituted for placeholders so generated output looks like
// real data without being real.
var (
	sampleUsers = []string{
		"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi",
		"ivan", "judy", "mallory", "niaj", "olivia", "peggy", "rupert",
		"sybil", "trent", "victor", "walter", "yara",
	}
	sampleFirstNames = []string{
		"Alice", "Bob", "Carol", "David", "Erin", "Frank", "Grace", "Henry",
		"Irene", "James", "Karen", "Liam",
	}
	sampleLastNames = []string{
		"Anderson", "Brown", "Clark", "Davis", "Evans", "Garcia", "Harris",
		"Jones", "Miller", "Smith",
	}
	sampleDomains = []string{"example.com", "example.org", "example.net", "test.invalid"}
)

var placeholders = map[string]string{
	"{users}":  alternation(sampleUsers),
	"{names}":  alternation(sampleFirstNames) + " " + alternation(sampleLastNames),
	"{emails}": alternation(sampleUsers) + "@" + alternation(sampleDomains),
}

// ExpandPlaceholders replaces {users}, {names} and {emails} with
// alternations of sample values.
func ExpandPlaceholders(template string) string {
	if !strings.Contains(template, "{") {
		return template
	}
	for name, expansion := range placeholders {
		template = strings.ReplaceAll(template, name, expansion)
	}
	return template
}

func alternation(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}
