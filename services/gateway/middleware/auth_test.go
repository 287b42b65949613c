// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for authentication middleware and the HMAC provider

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGateway/pkg/extensions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authedRouter(provider extensions.AuthProvider) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(provider))
	r.GET("/v1/models", func(c *gin.Context) {
		info := GetAuthInfo(c)
		c.JSON(http.StatusOK, gin.H{"subject": info.Subject, "role": info.Role})
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

// =============================================================================
// HMAC Provider Tests
// =============================================================================

func TestHMACAuthProvider_ValidToken(t *testing.T) {
	p := NewHMACAuthProvider(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "agent-7",
		"role": "worker",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	info, err := p.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "agent-7", info.Subject)
	assert.Equal(t, "worker", info.Role)
	assert.False(t, info.Dev)
}

func TestHMACAuthProvider_ExpiredToken(t *testing.T) {
	p := NewHMACAuthProvider(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "agent-7",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	_, err := p.Validate(context.Background(), token)
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}

func TestHMACAuthProvider_WrongSecret(t *testing.T) {
	p := NewHMACAuthProvider(testSecret)
	token := signToken(t, "some-other-secret", jwt.MapClaims{
		"sub": "agent-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := p.Validate(context.Background(), token)
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}

func TestHMACAuthProvider_MissingExpiry(t *testing.T) {
	p := NewHMACAuthProvider(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "agent-7"})

	_, err := p.Validate(context.Background(), token)
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}

func TestHMACAuthProvider_MissingSubject(t *testing.T) {
	p := NewHMACAuthProvider(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := p.Validate(context.Background(), token)
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}

func TestHMACAuthProvider_EmptyToken(t *testing.T) {
	p := NewHMACAuthProvider(testSecret)
	_, err := p.Validate(context.Background(), "")
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}

// =============================================================================
// Middleware Tests
// =============================================================================

func TestAuthMiddleware_NoHeader(t *testing.T) {
	r := authedRouter(NewHMACAuthProvider(testSecret))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"unauthorized"`)
}

func TestAuthMiddleware_BasicSchemeRejected(t *testing.T) {
	r := authedRouter(NewHMACAuthProvider(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidBearer(t *testing.T) {
	r := authedRouter(NewHMACAuthProvider(testSecret))
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "agent-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "agent-7")
}

func TestAuthMiddleware_PublicPathSkipsAuth(t *testing.T) {
	r := authedRouter(NewHMACAuthProvider(testSecret))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_DevProvider(t *testing.T) {
	r := authedRouter(&extensions.DevAuthProvider{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anonymous")
	assert.Contains(t, w.Body.String(), "admin")
}

// =============================================================================
// Client Key Tests
// =============================================================================

func TestClientKey_TokenFingerprint(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	c.Request.Header.Set("Authorization", "Bearer sometoken123")

	key := ClientKey(c)
	assert.Contains(t, key, "tok:")
	// The raw token never appears in the key.
	assert.NotContains(t, key, "sometoken123")

	// Same token, same key.
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	c2.Request.Header.Set("Authorization", "Bearer sometoken123")
	assert.Equal(t, key, ClientKey(c2))
}

func TestClientKey_FallsBackToAddress(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	c.Request.RemoteAddr = "10.1.2.3:5555"

	assert.Equal(t, "ip:10.1.2.3", ClientKey(c))
}
