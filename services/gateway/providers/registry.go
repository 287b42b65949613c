// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"sort"

	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"golang.org/x/sync/semaphore"
)

// defaultMaxConns is the per-provider concurrent upstream connection cap
// used when a binding does not specify one.
const defaultMaxConns = 32

// Registry is the immutable provider-binding table.
//
// # Description
//
// Built once at startup from configuration; never mutated at runtime, so
// reads need no locking. Each registered adapter is wrapped with a weighted
// semaphore capping concurrent upstream connections for that provider.
// Health probes bypass the cap so a saturated provider still reports alive.
//
// # Thread Safety
//
// Safe for concurrent use after construction.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds a provider identity to an adapter with the given
// concurrent-connection cap (0 uses the default). Call only during startup.
func (r *Registry) Register(id string, a Adapter, maxConns int64) {
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	r.adapters[id] = &connCapped{
		inner: a,
		sem:   semaphore.NewWeighted(maxConns),
	}
}

// Adapter returns the adapter bound to id.
func (r *Registry) Adapter(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// IDs returns the bound provider identities, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// Connection Cap Decorator
// =============================================================================

// connCapped limits the number of in-flight upstream calls per provider.
// Acquisition respects the request context, so a deadline that expires while
// queued surfaces as a timeout rather than a hung request.
type connCapped struct {
	inner Adapter
	sem   *semaphore.Weighted
}

func (c *connCapped) Chat(ctx context.Context, req datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)
	return c.inner.Chat(ctx, req)
}

func (c *connCapped) ChatStream(ctx context.Context, req datatypes.ChatRequest, cb StreamCallback) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)
	return c.inner.ChatStream(ctx, req, cb)
}

func (c *connCapped) Generate(ctx context.Context, req datatypes.GenerateRequest) (*datatypes.GenerateResponse, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)
	return c.inner.Generate(ctx, req)
}

func (c *connCapped) Models(ctx context.Context) ([]string, error) {
	return c.inner.Models(ctx)
}

func (c *connCapped) Health(ctx context.Context) bool {
	return c.inner.Health(ctx)
}

var _ Adapter = (*connCapped)(nil)
