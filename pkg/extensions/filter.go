// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"strings"
)

// SecretFilter scrubs credential material from text that crosses the trust
// boundary outward.
//
// # Description
//
// Upstream providers occasionally echo request headers back in error bodies.
// Every upstream excerpt that could reach a client response or an audit
// record is passed through this filter first, so a configured credential
// value can never appear on the wire even when an upstream misbehaves.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type SecretFilter interface {
	// Redact returns s with every known secret replaced by a placeholder.
	Redact(s string) string
}

// NopSecretFilter passes text through unchanged.
type NopSecretFilter struct{}

// Redact returns s unmodified.
func (f *NopSecretFilter) Redact(s string) string {
	return s
}

// CredentialFilter replaces occurrences of the configured credential values.
//
// The filter holds copies of the secrets; it is constructed once at startup
// from the provider bindings and is immutable afterwards.
type CredentialFilter struct {
	secrets []string
}

// redactedPlaceholder replaces each scrubbed credential occurrence.
const redactedPlaceholder = "[REDACTED]"

// NewCredentialFilter builds a filter over the given secret values.
// Empty strings are ignored.
func NewCredentialFilter(secrets ...string) *CredentialFilter {
	f := &CredentialFilter{}
	for _, s := range secrets {
		if s != "" {
			f.secrets = append(f.secrets, s)
		}
	}
	return f
}

// Redact replaces every occurrence of every configured secret.
func (f *CredentialFilter) Redact(s string) string {
	for _, secret := range f.secrets {
		s = strings.ReplaceAll(s, secret, redactedPlaceholder)
	}
	return s
}

// Compile-time interface compliance checks.
var (
	_ SecretFilter = (*NopSecretFilter)(nil)
	_ SecretFilter = (*CredentialFilter)(nil)
)
