// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package words

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseRule parses one rule line:
//
//	- pattern              redact
//	+ pattern              keep
//	! pattern replacement  replace
//	-$ prefix              redact words starting with prefix
//
// Lines of any other shape are not rules; ParseRule reports false for them
// without an error.
func ParseRule(line string) (Rule, bool, error) {
	text := strings.TrimSpace(line)

	var kind Kind
	var rest string
	prefix := false
	switch {
	case strings.HasPrefix(text, "-$"):
		kind, rest, prefix = Redact, text[2:], true
	case len(text) > 1 && isSpace(text[1]) && text[0] == '-':
		kind, rest = Redact, text[1:]
	case len(text) > 1 && isSpace(text[1]) && text[0] == '+':
		kind, rest = Keep, text[1:]
	case len(text) > 1 && isSpace(text[1]) && text[0] == '!':
		kind, rest = Replace, text[1:]
	default:
		return Rule{}, false, nil
	}

	pattern, rest := nextPattern(rest)
	if pattern == "" {
		return Rule{}, false, &InvalidRuleError{Text: text, Reason: "missing pattern"}
	}

	var replacement string
	if kind == Replace {
		replacement, _ = nextField(rest)
		if replacement == "" {
			return Rule{}, false, &InvalidRuleError{Text: text, Reason: "replace rule needs a replacement"}
		}
	}
	if prefix {
		pattern += "*"
	}

	r, err := NewRule(kind, pattern, replacement)
	if err != nil {
		return Rule{}, false, &InvalidRuleError{Text: text, Reason: "bad pattern", Err: err}
	}
	r.Text = text
	return r, true, nil
}

// Parse reads rules, one per line, ignoring lines that are not rules.
func Parse(r io.Reader) ([]Rule, error) {
	var rules []Rule
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		rule, ok, err := ParseRule(scanner.Text())
		if err != nil {
			if ire, isRuleErr := err.(*InvalidRuleError); isRuleErr {
				ire.Line = n
			}
			return nil, err
		}
		if !ok {
			continue
		}
		rule.Line = n
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read word rules: %w", err)
	}
	return rules, nil
}

// ParseFile reads rules from the file at path.
func ParseFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word rules: %w", err)
	}
	defer f.Close()

	rules, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// nextPattern splits off the pattern at the start of s. A pattern starting
// with '/' runs to the last '/' on the line, so regexes may contain spaces.
func nextPattern(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	if strings.HasPrefix(s, "/") {
		if end := strings.LastIndexByte(s, '/'); end > 0 {
			return s[:end+1], s[end+1:]
		}
	}
	return nextField(s)
}

func nextField(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	end := strings.IndexAny(s, " \t")
	if end < 0 {
		return s, ""
	}
	return s[:end], s[end:]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}
