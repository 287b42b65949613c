// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the provider registry and connection cap

package providers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAdapter counts concurrent Chat calls and blocks until released.
type stubAdapter struct {
	inFlight atomic.Int64
	peak     atomic.Int64
	release  chan struct{}
}

func (s *stubAdapter) Chat(ctx context.Context, req datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &datatypes.ChatResponse{Model: req.Model}, nil
}

func (s *stubAdapter) ChatStream(ctx context.Context, req datatypes.ChatRequest, cb StreamCallback) error {
	return nil
}

func (s *stubAdapter) Generate(ctx context.Context, req datatypes.GenerateRequest) (*datatypes.GenerateResponse, error) {
	return &datatypes.GenerateResponse{Model: req.Model, Done: true}, nil
}

func (s *stubAdapter) Models(ctx context.Context) ([]string, error) { return nil, nil }
func (s *stubAdapter) Health(ctx context.Context) bool              { return true }

func TestRegistry_AdapterLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(ProviderOllama, &stubAdapter{release: make(chan struct{})}, 0)

	_, ok := r.Adapter(ProviderOllama)
	assert.True(t, ok)
	_, ok = r.Adapter(ProviderGemini)
	assert.False(t, ok)
	assert.Equal(t, []string{ProviderOllama}, r.IDs())
}

func TestRegistry_ConnectionCap(t *testing.T) {
	stub := &stubAdapter{release: make(chan struct{})}
	r := NewRegistry()
	r.Register(ProviderOpenAI, stub, 2)

	a, ok := r.Adapter(ProviderOpenAI)
	require.True(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.Chat(context.Background(), datatypes.ChatRequest{Model: "gpt-4o"})
		}()
	}

	// Give the goroutines time to queue on the semaphore, then drain.
	time.Sleep(50 * time.Millisecond)
	close(stub.release)
	wg.Wait()

	assert.LessOrEqual(t, stub.peak.Load(), int64(2))
}

func TestRegistry_CapAcquireRespectsDeadline(t *testing.T) {
	stub := &stubAdapter{release: make(chan struct{})}
	r := NewRegistry()
	r.Register(ProviderOpenAI, stub, 1)
	a, _ := r.Adapter(ProviderOpenAI)

	// Saturate the single slot.
	go func() { _, _ = a.Chat(context.Background(), datatypes.ChatRequest{Model: "gpt-4o"}) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := a.Chat(ctx, datatypes.ChatRequest{Model: "gpt-4o"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(stub.release)
}
