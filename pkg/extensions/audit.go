// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
)

// AuditEvent is the content payload of one audit chain record.
//
// Exactly one event is emitted per terminal HTTP response. The event records
// provider identity, never credential material; anything that could carry an
// upstream excerpt passes through the SecretFilter before it lands here.
//
// # Fields
//
//   - RequestID: the X-Request-Id of the request.
//   - Subject: authenticated principal, or the network address in
//     development mode.
//   - Method, Path: the dispatched route.
//   - Status: terminal HTTP status code.
//   - Provider, Model: populated for chat/generate operations.
//   - Error: short wire error tag ("rate_limited", "provider_error", ...);
//     empty on success.
//   - DurationMS: handler wall time.
type AuditEvent struct {
	RequestID  string `json:"request_id"`
	Subject    string `json:"subject"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// AuditFilter selects audit events for Query. Zero values match everything;
// populated fields are combined with AND.
type AuditFilter struct {
	Subject string
	Path    string
	Status  int
	Error   string
	Limit   int
	Offset  int
}

// AuditLogger records audit events.
//
// # Description
//
// The production implementation appends each event to the audit hash chain
// (journaled when AUDIT_JOURNAL is configured, ring-bounded otherwise).
// Log is called on the request goroutine after the terminal response; it
// must return quickly.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type AuditLogger interface {
	// Log records one event. The event is already scrubbed; implementations
	// store it verbatim.
	Log(ctx context.Context, event AuditEvent) error

	// Query returns events matching the filter in chain order, plus the
	// total match count before pagination.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, int, error)

	// Flush ensures buffered events are persisted. Called on shutdown.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events. Used when auditing is not wired.
//
// Thread-safe: this implementation has no mutable state.
type NopAuditLogger struct{}

// Log discards the event without recording it.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Query returns no events.
func (l *NopAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, int, error) {
	return nil, 0, nil
}

// Flush is a no-op since nothing is buffered.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

// Compile-time interface compliance check.
var _ AuditLogger = (*NopAuditLogger)(nil)
