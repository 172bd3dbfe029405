// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package words

import (
	"errors"
	"fmt"
)

// ErrInvalidRule is matched by every InvalidRuleError.
var ErrInvalidRule = errors.New("invalid word rule")

// InvalidRuleError reports a malformed rule line.
type InvalidRuleError struct {
	Line   int
	Text   string
	Reason string
	Err    error
}

func (e *InvalidRuleError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Line > 0 {
		return fmt.Sprintf("invalid word rule at line %d %q: %s", e.Line, e.Text, msg)
	}
	return fmt.Sprintf("invalid word rule %q: %s", e.Text, msg)
}

func (e *InvalidRuleError) Unwrap() error { return e.Err }

func (e *InvalidRuleError) Is(target error) bool { return target == ErrInvalidRule }
