// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for
// security-critical identifiers.
//
// Memory keys and agent names travel into journal lines, audit content, and
// URL paths. Restricting them to a safe shape keeps journal lines parseable
// and prevents path and log injection through attacker-chosen identifiers.
package validation

import (
	"fmt"
	"regexp"
)

// keyPattern matches valid memory keys: a letter or digit followed by
// letters, digits, dots, underscores, hyphens, and colons. Max 128 chars.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]{0,127}$`)

// agentPattern matches valid agent names; same alphabet, max 64 chars.
var agentPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateMemoryKey validates a memory key.
//
// Valid keys:
//   - 1-128 characters
//   - start with a letter or digit
//   - letters, digits, dots, underscores, hyphens, colons
//
// Example:
//
//	if err := validation.ValidateMemoryKey(key); err != nil {
//	    return nil, fmt.Errorf("invalid key: %w", err)
//	}
func ValidateMemoryKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid key format: must be 1-128 chars of letters, digits, '.', '_', ':', '-'")
	}
	return nil
}

// ValidateAgentName validates an agent identifier used in task claims.
func ValidateAgentName(agent string) error {
	if agent == "" {
		return fmt.Errorf("agent cannot be empty")
	}
	if !agentPattern.MatchString(agent) {
		return fmt.Errorf("invalid agent format: must be 1-64 chars of letters, digits, '.', '_', '-'")
	}
	return nil
}
