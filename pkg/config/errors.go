// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("configuration not found")
	ErrInvalid            = errors.New("invalid configuration")
	ErrCircularDependency = errors.New("circular configuration dependency")
	ErrNetwork            = errors.New("network failure")
)

// NotFoundError reports a missing preset, file, or URL.
type NotFoundError struct {
	Source string
	Reason string
	Err    error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("configuration %q not found", e.Source)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NetworkError reports a remote configuration that could not be fetched.
// It also matches ErrNotFound, since the configuration is unavailable.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch configuration %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork || target == ErrNotFound
}

// CircularDependencyError reports a parent chain that revisits a source.
// Chain starts and ends with the repeated source.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular configuration dependency: %s", strings.Join(e.Chain, " -> "))
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrCircularDependency }

// InvalidError reports a configuration document that cannot be used.
// Line and Column are 1-based and zero when unknown.
type InvalidError struct {
	Source  string
	Key     string
	Line    int
	Column  int
	Context string
	Err     error
}

func (e *InvalidError) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration")
	if e.Source != "" {
		fmt.Fprintf(&b, " %s", e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ", column %d", e.Column)
		}
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " (property %q)", e.Key)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Context != "" {
		b.WriteString("\n")
		b.WriteString(e.Context)
	}
	return b.String()
}

func (e *InvalidError) Unwrap() error { return e.Err }

func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }
