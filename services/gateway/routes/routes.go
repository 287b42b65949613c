// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the middleware pipeline and the HTTP surface.
//
// All collaborators are injected through Deps; nothing here holds module
// state, so multiple independent gateway instances can coexist in one
// process.
package routes

import (
	"net/http"

	"github.com/AleutianAI/AleutianGateway/pkg/extensions"
	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGateway/services/gateway/handlers"
	"github.com/AleutianAI/AleutianGateway/services/gateway/memory"
	"github.com/AleutianAI/AleutianGateway/services/gateway/middleware"
	"github.com/AleutianAI/AleutianGateway/services/gateway/observability"
	"github.com/AleutianAI/AleutianGateway/services/gateway/providers"
	"github.com/AleutianAI/AleutianGateway/services/gateway/ratelimit"
	"github.com/AleutianAI/AleutianGateway/services/gateway/tasks"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries every collaborator of the dispatcher.
type Deps struct {
	Registry *providers.Registry
	Tasks    *tasks.Store
	Memory   *memory.Chain
	Limiter  *ratelimit.Limiter
	Opts     extensions.ServiceOptions
	Metrics  *observability.GatewayMetrics
	Agents   []datatypes.Agent
	DevMode  bool
}

// SetupRoutes installs the middleware pipeline and all endpoints.
//
// Middleware order is load-bearing:
//
//   - Audit registers before Recovery so panics still produce an audit
//     event once Recovery has shaped the 500.
//   - RateLimit registers before Auth so a quota denial never reveals
//     whether the presented token was valid.
func SetupRoutes(router *gin.Engine, deps Deps) {
	chatHandler := handlers.NewChatHandler(deps.Registry, deps.Opts, deps.Metrics)
	taskHandler := handlers.NewTaskHandler(deps.Tasks)
	memoryHandler := handlers.NewMemoryHandler(deps.Memory)
	miscHandler := handlers.NewMiscHandler(deps.Registry, deps.Agents, deps.DevMode)

	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics(deps.Metrics))
	router.Use(middleware.Audit(deps.Opts.AuditLogger, deps.Opts.SecretFilter))
	router.Use(middleware.Recovery())
	router.Use(middleware.BodyLimit())
	router.Use(middleware.RateLimit(deps.Limiter, deps.Metrics))
	router.Use(middleware.AuthMiddleware(deps.Opts.AuthProvider))

	// Public surface.
	router.GET("/health", miscHandler.HandleHealth)
	router.GET("/ready", miscHandler.HandleReady)
	router.GET("/openapi.json", miscHandler.HandleOpenAPI)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Chat surface.
	v1 := router.Group("/v1")
	{
		v1.POST("/chat", chatHandler.HandleChat)
		v1.POST("/generate", chatHandler.HandleGenerate)
		v1.GET("/models", chatHandler.HandleModels)
	}

	// Application-state surface.
	router.GET("/agents", miscHandler.HandleAgents)

	taskRoutes := router.Group("/tasks")
	{
		taskRoutes.GET("", taskHandler.HandleList)
		taskRoutes.POST("", taskHandler.HandleCreate)
		taskRoutes.GET("/verify", taskHandler.HandleVerify)
		taskRoutes.POST("/:id/claim", taskHandler.HandleClaim)
		taskRoutes.POST("/:id/start", taskHandler.HandleStart)
		taskRoutes.POST("/:id/complete", taskHandler.HandleComplete)
		taskRoutes.POST("/:id/cancel", taskHandler.HandleCancel)
	}

	memoryRoutes := router.Group("/memory")
	{
		memoryRoutes.GET("", memoryHandler.HandleList)
		memoryRoutes.POST("", memoryHandler.HandleAppend)
		memoryRoutes.GET("/verify", memoryHandler.HandleVerify)
		memoryRoutes.GET("/:key", memoryHandler.HandleGet)
		memoryRoutes.DELETE("/:key", memoryHandler.HandleErase)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: datatypes.ErrNotFound})
	})
}
