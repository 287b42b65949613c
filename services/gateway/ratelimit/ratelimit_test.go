// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the fixed-window rate limiter

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(limits map[string]Limit, at time.Time) (*Limiter, *MemoryStore, *time.Time) {
	now := at
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	l := NewLimiter(store, limits)
	l.now = func() time.Time { return now }
	return l, store, &now
}

// =============================================================================
// Allow Tests
// =============================================================================

func TestLimiter_AllowsUpToLimitThenDenies(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l, _, _ := newTestLimiter(map[string]Limit{
		ClassChat:   {Requests: 3, Window: time.Minute},
		ClassGlobal: {Requests: 200, Window: time.Minute},
	}, start)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "client-a", ClassChat)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should pass", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}

	denied, err := l.Allow(ctx, "client-a", ClassChat)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Zero(t, denied.Remaining)
	assert.Greater(t, denied.RetryAfter, 0)
	assert.LessOrEqual(t, denied.RetryAfter, 60)
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l, _, _ := newTestLimiter(map[string]Limit{
		ClassChat:   {Requests: 1, Window: time.Minute},
		ClassGlobal: {Requests: 200, Window: time.Minute},
	}, start)
	ctx := context.Background()

	d, err := l.Allow(ctx, "client-a", ClassChat)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "client-b", ClassChat)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "client-a", ClassChat)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestLimiter_WindowRollover(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	l, _, now := newTestLimiter(map[string]Limit{
		ClassChat:   {Requests: 1, Window: time.Minute},
		ClassGlobal: {Requests: 200, Window: time.Minute},
	}, start)
	ctx := context.Background()

	d, err := l.Allow(ctx, "client-a", ClassChat)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "client-a", ClassChat)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.LessOrEqual(t, d.RetryAfter, 30)

	// Next minute: fresh window, fresh counter.
	*now = start.Add(31 * time.Second)
	d, err = l.Allow(ctx, "client-a", ClassChat)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_ResetIsWindowEnd(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	l, _, _ := newTestLimiter(nil, start)

	d, err := l.Allow(context.Background(), "client-a", ClassChat)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC).Unix(), d.Reset)
}

func TestLimiter_UnknownClassFallsBackToGlobal(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l, _, _ := newTestLimiter(map[string]Limit{
		ClassGlobal: {Requests: 2, Window: time.Minute},
	}, start)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "client-a", "mystery")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "client-a", "mystery")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

// =============================================================================
// Route Class Tests
// =============================================================================

func TestRouteClass(t *testing.T) {
	cases := map[string]string{
		"/v1/chat":        ClassChat,
		"/v1/generate":    ClassChat,
		"/v1/models":      ClassChat,
		"/memory":         ClassMemory,
		"/memory/verify":  ClassMemory,
		"/memory/somekey": ClassMemory,
		"/agents":         ClassAgents,
		"/tasks":          ClassAgents,
		"/tasks/42/claim": ClassAgents,
		"/health":         ClassGlobal,
		"/unknown":        ClassGlobal,
	}
	for path, want := range cases {
		assert.Equal(t, want, RouteClass(path), "path %s", path)
	}
}

// =============================================================================
// Store Tests
// =============================================================================

func TestMemoryStore_SweepRemovesExpired(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Incr(ctx, "a", time.Minute)
	require.NoError(t, err)
	_, err = store.Incr(ctx, "b", 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	now = now.Add(90 * time.Second)
	removed := store.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ExpiredKeyIsNotResurrected(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	count, err := store.Incr(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Past expiry the same key starts over even without a sweep.
	now = now.Add(2 * time.Minute)
	count, err = store.Incr(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
