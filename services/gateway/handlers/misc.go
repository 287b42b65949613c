// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	_ "embed"
	"net/http"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGateway/services/gateway/providers"
	"github.com/gin-gonic/gin"
)

// healthProbeTimeout bounds each provider liveness probe.
const healthProbeTimeout = 3 * time.Second

//go:embed openapi.json
var openAPISchema []byte

// MiscHandler serves the public surface and the agent roster.
type MiscHandler interface {
	HandleHealth(c *gin.Context)
	HandleReady(c *gin.Context)
	HandleOpenAPI(c *gin.Context)
	HandleAgents(c *gin.Context)
}

type miscHandler struct {
	registry *providers.Registry
	agents   []datatypes.Agent
	devMode  bool
}

// NewMiscHandler creates the handler for health, readiness, schema, and the
// static roster.
func NewMiscHandler(registry *providers.Registry, agents []datatypes.Agent, devMode bool) MiscHandler {
	return &miscHandler{registry: registry, agents: agents, devMode: devMode}
}

// HandleHealth reports instance and provider availability. Bound providers
// are probed concurrently under a 3 s deadline each.
func (h *miscHandler) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	status := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range h.registry.IDs() {
		adapter, _ := h.registry.Adapter(id)
		wg.Add(1)
		go func(id string, adapter providers.Adapter) {
			defer wg.Done()
			alive := adapter.Health(ctx)
			mu.Lock()
			status[id] = alive
			mu.Unlock()
		}(id, adapter)
	}
	wg.Wait()

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"dev_mode":  h.devMode,
		"providers": status,
	})
}

// HandleReady answers 200 once startup has completed. Reaching this handler
// implies the router is wired, so readiness is unconditional.
func (h *miscHandler) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// HandleOpenAPI serves the static schema.
func (h *miscHandler) HandleOpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", openAPISchema)
}

// HandleAgents serves the static roster.
func (h *miscHandler) HandleAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": h.agents, "count": len(h.agents)})
}
