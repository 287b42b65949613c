// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/AleutianAI/AleutianGateway/pkg/validation"
	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGateway/services/gateway/tasks"
	"github.com/gin-gonic/gin"
)

// TaskHandler serves the task marketplace.
type TaskHandler interface {
	HandleList(c *gin.Context)
	HandleCreate(c *gin.Context)
	HandleClaim(c *gin.Context)
	HandleStart(c *gin.Context)
	HandleComplete(c *gin.Context)
	HandleCancel(c *gin.Context)
	HandleVerify(c *gin.Context)
}

type taskHandler struct {
	store *tasks.Store
}

// NewTaskHandler creates the marketplace handler.
func NewTaskHandler(store *tasks.Store) TaskHandler {
	if store == nil {
		panic("NewTaskHandler: store must not be nil")
	}
	return &taskHandler{store: store}
}

// abortTaskError maps store errors onto the wire taxonomy.
func abortTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		abortWithError(c, http.StatusNotFound, datatypes.ErrNotFound, "unknown task")
	case errors.Is(err, tasks.ErrNotAvailable):
		abortWithError(c, http.StatusConflict, datatypes.ErrConflict, "not_available")
	case errors.Is(err, tasks.ErrNotClaimable):
		abortWithError(c, http.StatusConflict, datatypes.ErrConflict, "not claimable in current state")
	default:
		abortWithError(c, http.StatusBadRequest, datatypes.ErrValidation, err.Error())
	}
}

// queryInt parses an integer query parameter, defaulting on absence.
func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

// HandleList implements TaskHandler.
func (h *taskHandler) HandleList(c *gin.Context) {
	list, total := h.store.List(tasks.Filter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Agent:    c.Query("agent"),
		Limit:    queryInt(c, "limit", 0),
		Offset:   queryInt(c, "offset", 0),
	})
	c.JSON(http.StatusOK, gin.H{"tasks": list, "total": total})
}

// HandleCreate implements TaskHandler.
func (h *taskHandler) HandleCreate(c *gin.Context) {
	var req datatypes.TaskCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	task, err := h.store.Create(req.Title, req.Description, req.Priority, req.Tags, req.Skills)
	if err != nil {
		abortTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// HandleClaim implements TaskHandler.
func (h *taskHandler) HandleClaim(c *gin.Context) {
	var req datatypes.TaskClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if err := validation.ValidateAgentName(req.Agent); err != nil {
		abortWithError(c, http.StatusBadRequest, datatypes.ErrValidation, err.Error())
		return
	}

	task, err := h.store.Claim(c.Param("id"), req.Agent)
	if err != nil {
		abortTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// HandleStart implements TaskHandler.
func (h *taskHandler) HandleStart(c *gin.Context) {
	var req datatypes.TaskClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if err := validation.ValidateAgentName(req.Agent); err != nil {
		abortWithError(c, http.StatusBadRequest, datatypes.ErrValidation, err.Error())
		return
	}

	task, err := h.store.Start(c.Param("id"), req.Agent)
	if err != nil {
		abortTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// HandleComplete implements TaskHandler.
func (h *taskHandler) HandleComplete(c *gin.Context) {
	var req datatypes.TaskCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	if err := validation.ValidateAgentName(req.Agent); err != nil {
		abortWithError(c, http.StatusBadRequest, datatypes.ErrValidation, err.Error())
		return
	}

	task, err := h.store.Complete(c.Param("id"), req.Agent, req.Summary)
	if err != nil {
		abortTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// HandleCancel implements TaskHandler.
func (h *taskHandler) HandleCancel(c *gin.Context) {
	task, err := h.store.Cancel(c.Param("id"))
	if err != nil {
		abortTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// HandleVerify implements TaskHandler.
func (h *taskHandler) HandleVerify(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.VerifyLineage())
}
