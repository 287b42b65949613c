// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ratelimit implements fixed-window request quotas keyed by client
// identity and route class.
//
// A window is the tuple (client, route class, floor(now/window)*window). Each
// hit atomically increments the window's counter; once the counter exceeds
// the class limit, further hits are denied until the window rolls over. The
// counter store is pluggable: the in-process store is the default, and an
// external key-value store can be substituted by putting entries with a TTL
// of the window length plus a small grace.
package ratelimit

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Route Classes
// =============================================================================

// Route classes group paths for quota purposes.
const (
	ClassChat   = "chat"
	ClassMemory = "memory"
	ClassAgents = "agents"
	ClassGlobal = "global"
)

// RouteClass maps a request path to its rate-limit class. Unknown paths fall
// into the global class.
func RouteClass(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/chat"),
		strings.HasPrefix(path, "/v1/generate"),
		strings.HasPrefix(path, "/v1/models"):
		return ClassChat
	case strings.HasPrefix(path, "/memory"):
		return ClassMemory
	case strings.HasPrefix(path, "/agents"),
		strings.HasPrefix(path, "/tasks"):
		return ClassAgents
	default:
		return ClassGlobal
	}
}

// Limit is the quota for one route class.
type Limit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// DefaultLimits returns the per-class quotas (all per 60 s window).
func DefaultLimits() map[string]Limit {
	return map[string]Limit{
		ClassChat:   {Requests: 60, Window: time.Minute},
		ClassMemory: {Requests: 120, Window: time.Minute},
		ClassAgents: {Requests: 30, Window: time.Minute},
		ClassGlobal: {Requests: 200, Window: time.Minute},
	}
}

// =============================================================================
// Store
// =============================================================================

// Store is the counter backend for the limiter.
//
// # Description
//
// Incr atomically increments the counter for key, creating it with the given
// TTL when absent, and returns the post-increment value. Implementations
// must never resurrect an expired key: an expired entry is equivalent to an
// absent one.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// sweepEvery bounds how many Incr calls pass between opportunistic sweeps of
// the in-process store.
const sweepEvery = 256

type bucket struct {
	count   int64
	expires time.Time
}

// MemoryStore is the in-process counter store.
//
// Expired buckets are reaped opportunistically on Incr and by Sweep, which
// the server also drives from a periodic timer. Eviction may run concurrently
// with inserts; an expired key is always treated as absent.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	ops     int
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Incr implements Store.
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || now.After(b.expires) {
		b = &bucket{expires: now.Add(ttl)}
		s.buckets[key] = b
	}
	b.count++

	s.ops++
	if s.ops >= sweepEvery {
		s.ops = 0
		s.sweepLocked(now)
	}
	return b.count, nil
}

// Sweep removes expired buckets. O(buckets expired) plus the scan.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *MemoryStore) sweepLocked(now time.Time) int {
	removed := 0
	for key, b := range s.buckets {
		if now.After(b.expires) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// =============================================================================
// Limiter
// =============================================================================

// Decision is the outcome of one rate-limit check.
//
// # Fields
//
//   - Allowed: whether the request may proceed.
//   - Remaining: requests left in the current window (0 when denied).
//   - Reset: unix seconds at which the window rolls over.
//   - RetryAfter: whole seconds until the window rolls over (denials only).
type Decision struct {
	Allowed    bool
	Remaining  int
	Reset      int64
	RetryAfter int
}

// Limiter enforces fixed-window quotas per (client, route class).
//
// # Thread Safety
//
// Safe for concurrent use; all mutability lives in the Store.
type Limiter struct {
	store  Store
	limits map[string]Limit
	now    func() time.Time
}

// NewLimiter creates a limiter over the given store. Classes absent from
// limits fall back to the global class; a nil map uses DefaultLimits.
func NewLimiter(store Store, limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Limiter{store: store, limits: limits, now: time.Now}
}

// Allow records a hit for client on the given route class.
//
// # Description
//
// Computes the current window key, atomically increments its counter with a
// TTL of the window length plus a five second grace, and compares against
// the class limit. The counter for an allowed request never exceeds the
// limit; the first denied request observes limit+1 and every later hit in
// the same window keeps counting without extending the window.
//
// # Inputs
//
//   - ctx: passed through to the store (external stores may block).
//   - client: stable client identity (token digest or network address).
//   - class: route class from RouteClass.
//
// # Outputs
//
//   - Decision: allow/deny plus header material.
//   - error: store failure. Callers should fail open on store errors so a
//     degraded counter backend cannot take down the data path.
func (l *Limiter) Allow(ctx context.Context, client, class string) (Decision, error) {
	limit, ok := l.limits[class]
	if !ok {
		limit = l.limits[ClassGlobal]
	}
	if limit.Requests <= 0 {
		return Decision{Allowed: true, Reset: l.now().Unix()}, nil
	}

	now := l.now()
	windowStart := now.Truncate(limit.Window)
	windowEnd := windowStart.Add(limit.Window)

	key := client + "|" + class + "|" + strconv.FormatInt(windowStart.UnixMilli(), 10)
	count, err := l.store.Incr(ctx, key, limit.Window+5*time.Second)
	if err != nil {
		return Decision{Allowed: true, Reset: windowEnd.Unix()}, err
	}

	d := Decision{Reset: windowEnd.Unix()}
	if count > int64(limit.Requests) {
		d.RetryAfter = int(windowEnd.Sub(now).Seconds())
		if windowEnd.Sub(now)%time.Second != 0 || d.RetryAfter == 0 {
			d.RetryAfter++
		}
		return d, nil
	}

	d.Allowed = true
	d.Remaining = limit.Requests - int(count)
	return d, nil
}
