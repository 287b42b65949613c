// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the gateway's HTTP endpoints.
//
// Handlers do only HTTP work: parse and validate the envelope, call the
// injected collaborator, and shape the result or the error. Business rules
// live in the stores and adapters.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianGateway/pkg/extensions"
	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGateway/services/gateway/middleware"
	"github.com/AleutianAI/AleutianGateway/services/gateway/providers"
	"github.com/gin-gonic/gin"
)

// abortWithError writes the stable error shape and records the tag for the
// audit event.
func abortWithError(c *gin.Context, status int, tag, message string) {
	middleware.SetAuditError(c, tag)
	c.AbortWithStatusJSON(status, datatypes.ErrorResponse{Error: tag, Message: message})
}

// abortValidation writes a 400 with one message per violated rule.
func abortValidation(c *gin.Context, err error) {
	middleware.SetAuditError(c, datatypes.ErrValidation)
	c.AbortWithStatusJSON(http.StatusBadRequest, datatypes.ErrorResponse{
		Error:  datatypes.ErrValidation,
		Errors: datatypes.FormatValidationErrors(err),
	})
}

// abortProviderError maps an adapter failure onto the wire taxonomy.
//
// Deadline expiry becomes 504 timeout; upstream non-2xx and network
// failures become 502 provider_error with the excerpt scrubbed through the
// secret filter. Anything else is an internal error whose detail goes to
// the log, not the client.
func abortProviderError(c *gin.Context, filter extensions.SecretFilter, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		abortWithError(c, http.StatusGatewayTimeout, datatypes.ErrTimeout, "upstream call exceeded the request deadline")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written. Record the tag
		// so the audit event reflects the aborted call.
		middleware.SetAuditError(c, datatypes.ErrTimeout)
		c.Abort()
	default:
		var upErr *providers.UpstreamError
		if errors.As(err, &upErr) {
			abortWithError(c, http.StatusBadGateway, datatypes.ErrProviderError, filter.Redact(upErr.Excerpt))
			return
		}
		slog.Error("unexpected provider failure", "error", err, "request_id", middleware.GetRequestID(c))
		abortWithError(c, http.StatusInternalServerError, datatypes.ErrInternal, "")
	}
}
