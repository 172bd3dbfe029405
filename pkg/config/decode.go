// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	yamlLineRe     = regexp.MustCompile(`line (\d+)(?:, column (\d+))?`)
	unknownFieldRe = regexp.MustCompile(`field (\S+) not found`)
)

// Parse decodes one configuration layer. Unknown keys are rejected. An
// empty document is reported as not found.
func Parse(data []byte, source string) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &NotFoundError{Source: source, Reason: "empty configuration"}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &NotFoundError{Source: source, Reason: "empty configuration"}
		}
		return nil, newDecodeError(source, data, err)
	}
	cfg.source = source
	return cfg, nil
}

// newDecodeError turns a yaml.v3 error into an InvalidError carrying the
// offending key, position, and the surrounding lines of the document.
func newDecodeError(source string, data []byte, err error) *InvalidError {
	msg := err.Error()
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		msg = typeErr.Errors[0]
	}

	ie := &InvalidError{Source: source, Err: err}
	if m := yamlLineRe.FindStringSubmatch(msg); m != nil {
		ie.Line, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			ie.Column, _ = strconv.Atoi(m[2])
		}
	}

	lines := strings.Split(string(data), "\n")
	if m := unknownFieldRe.FindStringSubmatch(msg); m != nil {
		ie.Key = m[1]
		ie.Err = fmt.Errorf("unknown property %q", m[1])
	} else if ie.Line > 0 && ie.Line <= len(lines) {
		ie.Key = keyOnLine(lines[ie.Line-1])
	}

	if ie.Line > 0 && ie.Line <= len(lines) {
		if ie.Column == 0 && ie.Key != "" {
			if idx := strings.Index(lines[ie.Line-1], ie.Key); idx >= 0 {
				ie.Column = idx + 1
			}
		}
		ie.Context = excerpt(lines, ie.Line, ie.Column)
	}
	return ie
}

func keyOnLine(line string) string {
	trimmed := strings.TrimLeft(line, " \t-")
	if idx := strings.Index(trimmed, ":"); idx > 0 {
		return strings.TrimSpace(trimmed[:idx])
	}
	return ""
}

// excerpt renders the line before, the offending line, and the line after,
// with a caret under the column when known.
func excerpt(lines []string, line, column int) string {
	var b strings.Builder
	width := len(strconv.Itoa(line + 1))
	for n := line - 1; n <= line+1; n++ {
		if n < 1 || n > len(lines) {
			continue
		}
		mark := " "
		if n == line {
			mark = ">"
		}
		fmt.Fprintf(&b, "%s %*d | %s\n", mark, width, n, strings.TrimRight(lines[n-1], "\r"))
		if n == line && column > 0 {
			fmt.Fprintf(&b, "  %s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", column-1))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
