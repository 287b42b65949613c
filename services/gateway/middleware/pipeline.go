// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianGateway/pkg/extensions"
	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGateway/services/gateway/observability"
	"github.com/AleutianAI/AleutianGateway/services/gateway/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxBodyBytes caps incoming request bodies. Chat payloads are small; a
// larger body indicates abuse.
const maxBodyBytes = 1 << 20

// =============================================================================
// Request ID
// =============================================================================

// RequestID assigns each request a uuid and echoes it as X-Request-Id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-Id", id)
		c.Next()
	}
}

// GetRequestID returns the request's assigned ID, or empty.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// =============================================================================
// CORS
// =============================================================================

// CORS sets permissive cross-origin headers and answers preflight requests
// with 204 before any other processing.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// =============================================================================
// Body Limit
// =============================================================================

// BodyLimit caps request body size at 1 MiB.
func BodyLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		c.Next()
	}
}

// =============================================================================
// Rate Limit
// =============================================================================

// RateLimit enforces the fixed-window quota before authentication runs.
//
// Allowed requests carry X-RateLimit-Remaining and X-RateLimit-Reset;
// denials add Retry-After and the rate_limited error body. A failing
// counter store fails open: quota enforcement degrades rather than the
// data path.
func RateLimit(limiter *ratelimit.Limiter, metrics *observability.GatewayMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if PublicPaths[path] {
			c.Next()
			return
		}

		class := ratelimit.RouteClass(path)
		decision, err := limiter.Allow(c.Request.Context(), ClientKey(c), class)
		if err != nil {
			slog.Warn("rate limit store failed; allowing request", "error", err, "class", class)
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset, 10))

		if !decision.Allowed {
			if metrics != nil {
				metrics.RateLimitDenialsTotal.WithLabelValues(class).Inc()
			}
			h.Set("Retry-After", strconv.Itoa(decision.RetryAfter))
			SetAuditError(c, datatypes.ErrRateLimited)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, datatypes.ErrorResponse{
				Error:      datatypes.ErrRateLimited,
				Message:    "request quota exceeded for this window",
				RetryAfter: decision.RetryAfter,
			})
			return
		}
		c.Next()
	}
}

// =============================================================================
// Metrics
// =============================================================================

// Metrics counts every terminal response by route class and status.
func Metrics(m *observability.GatewayMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m != nil {
			m.RecordRequest(ratelimit.RouteClass(c.Request.URL.Path), strconv.Itoa(c.Writer.Status()))
		}
	}
}

// =============================================================================
// Recovery
// =============================================================================

// Recovery catches handler panics at the dispatcher boundary and converts
// them to the stable internal_error shape. Full detail goes to the log and
// the audit record, never to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("handler panic recovered",
					"panic", r,
					"path", c.Request.URL.Path,
					"request_id", GetRequestID(c))
				SetAuditError(c, datatypes.ErrInternal)
				c.AbortWithStatusJSON(http.StatusInternalServerError, datatypes.ErrorResponse{
					Error: datatypes.ErrInternal,
				})
			}
		}()
		c.Next()
	}
}

// =============================================================================
// Audit
// =============================================================================

// Audit emits exactly one audit event per terminal response.
//
// The event is appended after the response is written, on the request
// goroutine; for streams that means after the final frame. Events are
// scrubbed through the secret filter as a belt-and-braces measure — handler
// error tags contain no free text, but provider excerpts may transit the
// context in future fields.
func Audit(logger extensions.AuditLogger, filter extensions.SecretFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if PublicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		subject := ""
		if info := GetAuthInfo(c); info != nil {
			subject = info.Subject
		}
		if subject == "" {
			subject = c.ClientIP()
		}

		event := extensions.AuditEvent{
			RequestID:  GetRequestID(c),
			Subject:    subject,
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Status:     c.Writer.Status(),
			Provider:   c.GetString(auditProviderKey),
			Model:      c.GetString(auditModelKey),
			Error:      filter.Redact(c.GetString(auditErrorKey)),
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err := logger.Log(c.Request.Context(), event); err != nil {
			slog.Error("audit append failed", "error", err, "request_id", event.RequestID)
		}
	}
}
