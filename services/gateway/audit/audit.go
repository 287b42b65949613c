// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package audit provides the chain-backed audit logger.
//
// One event is appended per terminal gateway response. With AUDIT_JOURNAL
// configured the chain is journaled; without it the chain is ring-bounded to
// the most recent entries so an unjournaled gateway cannot grow without
// limit.
package audit

import (
	"context"
	"encoding/json"

	"github.com/AleutianAI/AleutianGateway/pkg/extensions"
	"github.com/AleutianAI/AleutianGateway/services/gateway/chain"
)

// ringSize bounds the in-memory audit chain when no journal is configured.
const ringSize = 1000

// Logger appends audit events to a hash chain.
//
// # Thread Safety
//
// Safe for concurrent use; the chain serializes appends.
type Logger struct {
	log *chain.Log
}

// NewLogger creates a logger over an existing chain.
func NewLogger(log *chain.Log) *Logger {
	return &Logger{log: log}
}

// NewRingLogger creates an unjournaled logger bounded to the most recent
// entries.
func NewRingLogger() *Logger {
	return &Logger{log: chain.NewLog(chain.WithMaxRecords(ringSize))}
}

// Log implements extensions.AuditLogger.
func (l *Logger) Log(ctx context.Context, event extensions.AuditEvent) error {
	_, err := l.log.Append(event)
	return err
}

// Query implements extensions.AuditLogger.
func (l *Logger) Query(ctx context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, int, error) {
	match := func(rec chain.Record) bool {
		var ev extensions.AuditEvent
		if err := json.Unmarshal(rec.Content, &ev); err != nil {
			return false
		}
		if filter.Subject != "" && ev.Subject != filter.Subject {
			return false
		}
		if filter.Path != "" && ev.Path != filter.Path {
			return false
		}
		if filter.Status != 0 && ev.Status != filter.Status {
			return false
		}
		if filter.Error != "" && ev.Error != filter.Error {
			return false
		}
		return true
	}

	records, total := l.log.List(chain.Filter{
		Match:  match,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})

	events := make([]extensions.AuditEvent, 0, len(records))
	for _, rec := range records {
		var ev extensions.AuditEvent
		if err := json.Unmarshal(rec.Content, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, total, nil
}

// Flush implements extensions.AuditLogger. Appends are write-through, so
// there is nothing buffered to drain.
func (l *Logger) Flush(ctx context.Context) error {
	return nil
}

// Verify verifies the audit chain.
func (l *Logger) Verify() chain.VerifyResult {
	return l.log.Verify()
}

var _ extensions.AuditLogger = (*Logger)(nil)
