// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
)

// StreamCallback receives one content delta per upstream frame, in arrival
// order. Return an error to abort the stream (e.g. on client disconnect);
// the adapter closes the upstream connection and returns that error.
type StreamCallback func(delta string) error

// Adapter is the per-upstream contract.
//
// # Description
//
// An Adapter owns request shaping, credential injection, and response
// normalization for one upstream API. Adapters never expose credential
// material: errors carry at most a short, already-truncated upstream
// excerpt, which the dispatcher additionally scrubs before it reaches a
// client or the audit chain.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Multiple requests may
// call methods simultaneously.
type Adapter interface {
	// Chat sends a unary conversation and returns the normalized response.
	Chat(ctx context.Context, req datatypes.ChatRequest) (*datatypes.ChatResponse, error)

	// ChatStream sends a streaming conversation; cb is invoked once per
	// content delta. Returns after the upstream terminates or cb aborts.
	ChatStream(ctx context.Context, req datatypes.ChatRequest, cb StreamCallback) error

	// Generate runs a legacy single-prompt completion.
	Generate(ctx context.Context, req datatypes.GenerateRequest) (*datatypes.GenerateResponse, error)

	// Models lists the model names the upstream currently serves.
	Models(ctx context.Context) ([]string, error)

	// Health is a cheap liveness probe. It must respect ctx deadlines and
	// never block longer than the probe budget.
	Health(ctx context.Context) bool
}

// =============================================================================
// Errors
// =============================================================================

// ErrNoBinding is returned when a selected provider has no runtime binding.
var ErrNoBinding = errors.New("no binding for provider")

// excerptLimit caps how much upstream error body an UpstreamError retains.
const excerptLimit = 200

// UpstreamError reports a non-2xx upstream status or a network failure.
//
// Excerpt is a truncated fragment of the upstream response body, kept short
// so diagnostics survive without replaying payloads. The dispatcher scrubs
// it through the SecretFilter before surfacing it anywhere.
type UpstreamError struct {
	Provider string
	Status   int
	Excerpt  string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s upstream returned status %d: %s", e.Provider, e.Status, e.Excerpt)
	}
	return fmt.Sprintf("%s upstream unreachable: %s", e.Provider, e.Excerpt)
}

// newUpstreamError builds an UpstreamError with a bounded excerpt.
func newUpstreamError(provider string, status int, body string) *UpstreamError {
	if len(body) > excerptLimit {
		body = body[:excerptLimit]
	}
	return &UpstreamError{Provider: provider, Status: status, Excerpt: body}
}
