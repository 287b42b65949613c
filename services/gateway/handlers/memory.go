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

	"github.com/AleutianAI/AleutianGateway/pkg/validation"
	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGateway/services/gateway/memory"
	"github.com/gin-gonic/gin"
)

// MemoryHandler serves the content-addressed memory chain.
type MemoryHandler interface {
	HandleList(c *gin.Context)
	HandleAppend(c *gin.Context)
	HandleGet(c *gin.Context)
	HandleErase(c *gin.Context)
	HandleVerify(c *gin.Context)
}

type memoryHandler struct {
	chain *memory.Chain
}

// NewMemoryHandler creates the memory handler.
func NewMemoryHandler(chain *memory.Chain) MemoryHandler {
	if chain == nil {
		panic("NewMemoryHandler: chain must not be nil")
	}
	return &memoryHandler{chain: chain}
}

// HandleList implements MemoryHandler. Erased records are excluded unless
// include_erased=true is passed.
func (h *memoryHandler) HandleList(c *gin.Context) {
	entries, total := h.chain.List(
		queryInt(c, "limit", 0),
		queryInt(c, "offset", 0),
		c.Query("include_erased") == "true",
	)
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total})
}

// HandleAppend implements MemoryHandler.
func (h *memoryHandler) HandleAppend(c *gin.Context) {
	var req datatypes.MemoryAppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}
	if err := validation.ValidateMemoryKey(req.Key); err != nil {
		abortWithError(c, http.StatusBadRequest, datatypes.ErrValidation, err.Error())
		return
	}

	truthState := memory.TruthUnknown
	if req.TruthState != nil {
		truthState = *req.TruthState
	}

	entry, err := h.chain.Append(req.Key, req.Value, req.Type, truthState)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, datatypes.ErrInternal, "")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// HandleGet implements MemoryHandler.
func (h *memoryHandler) HandleGet(c *gin.Context) {
	entry, err := h.chain.Get(c.Param("key"))
	if err != nil {
		if errors.Is(err, memory.ErrUnknownKey) {
			abortWithError(c, http.StatusNotFound, datatypes.ErrNotFound, "unknown memory key")
			return
		}
		abortWithError(c, http.StatusInternalServerError, datatypes.ErrInternal, "")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// HandleErase implements MemoryHandler.
func (h *memoryHandler) HandleErase(c *gin.Context) {
	entry, err := h.chain.Erase(c.Param("key"))
	if err != nil {
		if errors.Is(err, memory.ErrUnknownKey) {
			abortWithError(c, http.StatusNotFound, datatypes.ErrNotFound, "unknown memory key")
			return
		}
		abortWithError(c, http.StatusInternalServerError, datatypes.ErrInternal, "")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// HandleVerify implements MemoryHandler.
func (h *memoryHandler) HandleVerify(c *gin.Context) {
	c.JSON(http.StatusOK, h.chain.Verify())
}
