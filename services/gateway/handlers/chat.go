// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianGateway/pkg/extensions"
	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGateway/services/gateway/middleware"
	"github.com/AleutianAI/AleutianGateway/services/gateway/observability"
	"github.com/AleutianAI/AleutianGateway/services/gateway/providers"
	"github.com/gin-gonic/gin"
)

// defaultChatTimeout is the end-to-end deadline for chat and generate
// requests, streaming included.
const defaultChatTimeout = 120 * time.Second

// modelListTimeout bounds the per-provider model listing fan-out.
const modelListTimeout = 5 * time.Second

// ChatHandler serves the unified chat surface.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; Gin invokes handlers
// from many goroutines.
type ChatHandler interface {
	// HandleChat processes POST /v1/chat, unary or streaming.
	HandleChat(c *gin.Context)

	// HandleGenerate processes the legacy POST /v1/generate.
	HandleGenerate(c *gin.Context)

	// HandleModels processes GET /v1/models.
	HandleModels(c *gin.Context)
}

// chatHandler implements ChatHandler over the provider registry.
//
// # Fields
//
//   - registry: immutable provider-binding table
//   - opts: extension points (secret filter for excerpt scrubbing)
//   - metrics: provider call instrumentation; may be nil in tests
//   - chatTimeout: end-to-end deadline for upstream calls
type chatHandler struct {
	registry    *providers.Registry
	opts        extensions.ServiceOptions
	metrics     *observability.GatewayMetrics
	chatTimeout time.Duration
}

// NewChatHandler creates the production chat handler. Panics on a nil
// registry (programming error).
func NewChatHandler(registry *providers.Registry, opts extensions.ServiceOptions, metrics *observability.GatewayMetrics) ChatHandler {
	if registry == nil {
		panic("NewChatHandler: registry must not be nil")
	}
	return &chatHandler{
		registry:    registry,
		opts:        opts,
		metrics:     metrics,
		chatTimeout: defaultChatTimeout,
	}
}

// resolveAdapter picks the provider for a model and looks up its binding.
func (h *chatHandler) resolveAdapter(c *gin.Context, model string) (providers.Adapter, string, bool) {
	provider := providers.PickProvider(model)
	middleware.SetAuditProvider(c, provider, model)

	adapter, ok := h.registry.Adapter(provider)
	if !ok {
		abortWithError(c, http.StatusBadGateway, datatypes.ErrProviderUnavailable,
			"no binding configured for provider "+provider)
		return nil, provider, false
	}
	return adapter, provider, true
}

// HandleChat implements ChatHandler.
func (h *chatHandler) HandleChat(c *gin.Context) {
	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	adapter, provider, ok := h.resolveAdapter(c, req.Model)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.chatTimeout)
	defer cancel()

	if req.Stream {
		h.streamChat(c, ctx, adapter, provider, req)
		return
	}

	start := time.Now()
	resp, err := adapter.Chat(ctx, req)
	if h.metrics != nil {
		h.metrics.RecordProviderCall(provider, err == nil, time.Since(start).Seconds())
	}
	if err != nil {
		abortProviderError(c, h.opts.SecretFilter, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// streamChat forwards upstream deltas as SSE frames.
//
// Each delta becomes one `data: {json}` frame; a successful stream ends
// with `data: [DONE]`. A failure before the first frame degrades to the
// regular JSON error shape. A failure mid-stream emits one error frame and
// terminates without [DONE] — the client can distinguish a completed stream
// from a truncated one.
func (h *chatHandler) streamChat(c *gin.Context, ctx context.Context, adapter providers.Adapter, provider string, req datatypes.ChatRequest) {
	SetSSEHeaders(c.Writer)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, datatypes.ErrInternal, "")
		return
	}

	if h.metrics != nil {
		h.metrics.ActiveStreams.Inc()
		defer h.metrics.ActiveStreams.Dec()
	}

	start := time.Now()
	streamErr := adapter.ChatStream(ctx, req, func(delta string) error {
		return writer.WriteData(datatypes.StreamDelta{
			Model:   req.Model,
			Message: datatypes.Message{Role: "assistant", Content: delta},
		})
	})
	if h.metrics != nil {
		h.metrics.RecordProviderCall(provider, streamErr == nil, time.Since(start).Seconds())
	}

	if streamErr != nil {
		if writer.Count() == 0 {
			abortProviderError(c, h.opts.SecretFilter, streamErr)
			return
		}
		// Frames are already on the wire; all that is left is to mark the
		// stream failed and stop.
		tag := datatypes.ErrProviderError
		if errors.Is(streamErr, context.DeadlineExceeded) {
			tag = datatypes.ErrTimeout
		}
		middleware.SetAuditError(c, tag)
		slog.Warn("stream aborted mid-flight",
			"provider", provider,
			"frames", writer.Count(),
			"error", h.opts.SecretFilter.Redact(streamErr.Error()),
			"request_id", middleware.GetRequestID(c))
		_ = writer.WriteData(datatypes.ErrorResponse{Error: tag})
		return
	}

	if err := writer.WriteDone(); err != nil {
		slog.Warn("failed to write stream terminator", "error", err)
	}
}

// HandleGenerate implements ChatHandler.
func (h *chatHandler) HandleGenerate(c *gin.Context) {
	var req datatypes.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	adapter, provider, ok := h.resolveAdapter(c, req.Model)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.chatTimeout)
	defer cancel()

	start := time.Now()
	resp, err := adapter.Generate(ctx, req)
	if h.metrics != nil {
		h.metrics.RecordProviderCall(provider, err == nil, time.Since(start).Seconds())
	}
	if err != nil {
		abortProviderError(c, h.opts.SecretFilter, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleModels implements ChatHandler. Bound providers are probed
// concurrently; a provider that fails to answer is reported with an empty
// list rather than failing the whole response.
func (h *chatHandler) HandleModels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), modelListTimeout)
	defer cancel()

	type result struct {
		provider string
		models   []string
	}
	ids := h.registry.IDs()
	results := make(chan result, len(ids))

	for _, id := range ids {
		adapter, _ := h.registry.Adapter(id)
		go func(id string, adapter providers.Adapter) {
			models, err := adapter.Models(ctx)
			if err != nil {
				slog.Debug("model listing failed", "provider", id, "error", err)
				models = []string{}
			}
			results <- result{provider: id, models: models}
		}(id, adapter)
	}

	models := make(map[string][]string, len(ids))
	for range ids {
		r := <-results
		models[r.provider] = r.models
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}
