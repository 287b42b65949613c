// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the gateway's pluggable trust-boundary
// interfaces.
//
// The gateway core depends only on these interfaces; concrete
// implementations (the HMAC token verifier, the chain-backed audit logger,
// the credential scrubber) are injected via ServiceOptions when the
// dispatcher is wired. Defaults are permissive no-ops suitable for local
// development.
//
// # Extension Categories
//
//   - auth.go: authentication and authorization (AuthProvider, AuthzProvider)
//   - audit.go: audit event recording (AuditLogger)
//   - filter.go: outbound credential scrubbing (SecretFilter)
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
// Multiple goroutines may call methods simultaneously.
package extensions

// ServiceOptions groups all extension points for dispatcher configuration.
//
// Pass this to the route wiring to select concrete trust-boundary behavior.
// All fields are optional; nil values are replaced with no-op defaults when
// DefaultOptions() is called.
type ServiceOptions struct {
	// AuthProvider validates bearer tokens.
	// Default: DevAuthProvider (synthetic admin principal, dev mode)
	AuthProvider AuthProvider

	// AuthzProvider checks authorization for privileged operations.
	// Default: NopAuthzProvider (allows all actions)
	AuthzProvider AuthzProvider

	// AuditLogger records one event per terminal response.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger

	// SecretFilter scrubs configured credentials from any text that may
	// leave the trust boundary (error excerpts, upstream diagnostics).
	// Default: NopSecretFilter (passes text through unchanged)
	SecretFilter SecretFilter
}

// DefaultOptions returns ServiceOptions with permissive defaults.
//
// This is the configuration of a gateway started without an auth secret:
// every request is authenticated as the synthetic development principal, no
// audit trail is kept, nothing is scrubbed.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:  &DevAuthProvider{},
		AuthzProvider: &NopAuthzProvider{},
		AuditLogger:   &NopAuditLogger{},
		SecretFilter:  &NopSecretFilter{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAuthz returns a copy of opts with the given AuthzProvider.
func (opts ServiceOptions) WithAuthz(provider AuthzProvider) ServiceOptions {
	opts.AuthzProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithSecretFilter returns a copy of opts with the given SecretFilter.
func (opts ServiceOptions) WithSecretFilter(filter SecretFilter) ServiceOptions {
	opts.SecretFilter = filter
	return opts
}
