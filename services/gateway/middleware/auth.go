// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides the gateway's HTTP middleware stack.
//
// # Pipeline Order
//
// The dispatcher runs middleware in a fixed order:
//
//	Request
//	   │
//	   ▼
//	RequestID ─► CORS ─► Metrics ─► Audit ─► Recovery ─► BodyLimit ─► RateLimit ─► Auth ─► Handler
//
// Rate limiting runs before authentication so a denial never reveals
// whether the presented token was valid. The audit middleware observes the
// terminal status of every dispatched request, whichever layer produced it.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization header,
// validates it with the configured AuthProvider, and stores the resulting
// AuthInfo in the Gin context for downstream handlers.
package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/AleutianAI/AleutianGateway/pkg/extensions"
	"github.com/AleutianAI/AleutianGateway/services/gateway/datatypes"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// Context Keys
// =============================================================================

// Context keys are namespaced to prevent collisions with other middleware.
const (
	authInfoKey      = "gateway_auth_info"
	requestIDKey     = "gateway_request_id"
	auditProviderKey = "gateway_audit_provider"
	auditModelKey    = "gateway_audit_model"
	auditErrorKey    = "gateway_audit_error"
)

// PublicPaths require neither authentication nor rate limiting.
var PublicPaths = map[string]bool{
	"/health":       true,
	"/ready":        true,
	"/openapi.json": true,
	"/metrics":      true,
}

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated principal in the Gin context.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated principal, or nil when the
// request has not passed authentication.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// SetAuditProvider records the provider and model a handler dispatched to,
// for the terminal audit event.
func SetAuditProvider(c *gin.Context, provider, model string) {
	c.Set(auditProviderKey, provider)
	c.Set(auditModelKey, model)
}

// SetAuditError records the wire error tag of a failed request.
func SetAuditError(c *gin.Context, tag string) {
	c.Set(auditErrorKey, tag)
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware authenticates every non-public request.
//
// # Description
//
// Extracts the bearer token from the Authorization header and validates it
// with the provider. A missing header, a non-Bearer scheme, a bad
// signature, and an expired token are indistinguishable on the wire: all
// yield 401 with the unauthorized error shape. On success the principal is
// stored in the context for handlers and the audit middleware.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AuthMiddleware(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if PublicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		token := extractBearerToken(c)
		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			SetAuditError(c, datatypes.ErrUnauthorized)
			c.AbortWithStatusJSON(http.StatusUnauthorized, datatypes.ErrorResponse{
				Error:   datatypes.ErrUnauthorized,
				Message: "missing, invalid, or expired bearer token",
			})
			return
		}

		SetAuthInfo(c, info)
		c.Next()
	}
}

// extractBearerToken parses the Authorization header expecting
// "Bearer <token>". Returns empty string if the header is missing or uses a
// different scheme. The prefix is case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ClientKey derives the rate-limit identity for a request.
//
// Runs before authentication, so it must not depend on token validity: a
// presented bearer token is fingerprinted (never stored raw), and requests
// without one fall back to the network address. Both shapes are opaque on
// the wire and never reveal whether a token verifies.
func ClientKey(c *gin.Context) string {
	if token := extractBearerToken(c); token != "" {
		sum := sha256.Sum256([]byte(token))
		return "tok:" + hex.EncodeToString(sum[:8])
	}
	return "ip:" + c.ClientIP()
}
