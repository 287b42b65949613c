// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memory implements the content-addressed memory chain.
//
// A memory entry is a chain record whose content carries a key, an opaque
// value, an entry type, and a truth state. Entries are never updated in
// place: writing the same key again appends a new record, and reads resolve
// to the newest record for a key. Redactive erasure replaces the record
// content while preserving chain linkage; an erased entry's key is
// unrecoverable by design, so it no longer resolves after a restart either.
package memory

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/AleutianAI/AleutianGateway/services/gateway/chain"
)

// Entry types.
const (
	TypeFact        = "fact"
	TypeObservation = "observation"
	TypeInference   = "inference"
	TypeCommitment  = "commitment"
)

// Truth states.
const (
	TruthFalse   = -1
	TruthUnknown = 0
	TruthTrue    = 1
)

// ErrUnknownKey is returned when no live entry exists for a key.
var ErrUnknownKey = errors.New("unknown memory key")

// entryContent is the canonical chain content of one memory entry.
type entryContent struct {
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
	Type       string          `json:"type"`
	TruthState int             `json:"truth_state"`
}

// Entry is the read-side view of a memory record.
//
// For erased records Value carries the erasure marker string, TruthState is
// -1, and Key is empty (redaction removes it).
type Entry struct {
	Hash        string          `json:"hash"`
	PrevHash    string          `json:"prev_hash"`
	TimestampNS int64           `json:"timestamp_ns"`
	Key         string          `json:"key,omitempty"`
	Value       json.RawMessage `json:"value"`
	Type        string          `json:"type,omitempty"`
	TruthState  int             `json:"truth_state"`
	Erased      bool            `json:"erased,omitempty"`
}

// Chain is the memory subsystem over one chain.Log.
//
// # Thread Safety
//
// Safe for concurrent use. The key index has its own lock; the log
// serializes appends internally.
type Chain struct {
	log *chain.Log

	mu    sync.RWMutex
	byKey map[string]string // key -> newest record hash
}

// New builds a memory chain over log, indexing any rehydrated records.
// Erased records are skipped: their keys are gone.
func New(log *chain.Log) *Chain {
	c := &Chain{log: log, byKey: make(map[string]string)}
	records, _ := log.List(chain.Filter{})
	for _, rec := range records {
		var content entryContent
		if err := json.Unmarshal(rec.Content, &content); err != nil || content.Key == "" {
			continue
		}
		c.byKey[content.Key] = rec.Hash
	}
	return c
}

// Append records a new memory entry and returns its view.
func (c *Chain) Append(key string, value json.RawMessage, entryType string, truthState int) (Entry, error) {
	if entryType == "" {
		entryType = TypeFact
	}
	rec, err := c.log.Append(entryContent{
		Key:        key,
		Value:      value,
		Type:       entryType,
		TruthState: truthState,
	})
	if err != nil {
		return Entry{}, err
	}

	c.mu.Lock()
	c.byKey[key] = rec.Hash
	c.mu.Unlock()

	return toEntry(rec), nil
}

// Get resolves the newest live entry for key.
func (c *Chain) Get(key string) (Entry, error) {
	c.mu.RLock()
	hash, ok := c.byKey[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, ErrUnknownKey
	}
	rec, ok := c.log.Get(hash)
	if !ok || rec.Erased {
		return Entry{}, ErrUnknownKey
	}
	return toEntry(rec), nil
}

// Erase redactively erases the newest entry for key.
//
// The record's content becomes the erasure marker, its truth state reads as
// -1, and the key stops resolving. Chain linkage is untouched.
func (c *Chain) Erase(key string) (Entry, error) {
	c.mu.Lock()
	hash, ok := c.byKey[key]
	if ok {
		delete(c.byKey, key)
	}
	c.mu.Unlock()
	if !ok {
		return Entry{}, ErrUnknownKey
	}
	if !c.log.Erase(hash) {
		return Entry{}, ErrUnknownKey
	}
	rec, _ := c.log.Get(hash)
	return toEntry(rec), nil
}

// List returns entries in chain order plus the total count before
// pagination. Erased entries appear only when includeErased is set.
func (c *Chain) List(limit, offset int, includeErased bool) ([]Entry, int) {
	records, total := c.log.List(chain.Filter{
		Limit:         limit,
		Offset:        offset,
		IncludeErased: includeErased,
	})
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, toEntry(rec))
	}
	return entries, total
}

// Verify verifies the underlying chain.
func (c *Chain) Verify() chain.VerifyResult {
	return c.log.Verify()
}

// toEntry projects a chain record into the read-side view.
func toEntry(rec chain.Record) Entry {
	e := Entry{
		Hash:        rec.Hash,
		PrevHash:    rec.PrevHash,
		TimestampNS: rec.TimestampNS,
		Erased:      rec.Erased,
	}
	if rec.Erased {
		e.Value = rec.Content
		e.TruthState = TruthFalse
		return e
	}
	var content entryContent
	if err := json.Unmarshal(rec.Content, &content); err == nil {
		e.Key = content.Key
		e.Value = content.Value
		e.Type = content.Type
		e.TruthState = content.TruthState
	}
	return e
}
