// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianGateway/pkg/extensions"
	"github.com/golang-jwt/jwt/v5"
)

// HMACAuthProvider validates HS256 bearer tokens against a shared secret.
//
// # Description
//
// Tokens are three base64url segments signed with HMAC-SHA256 over the
// first two. The `exp` claim must be in the future; `sub` becomes the
// principal subject and an optional `role` claim carries the role. No other
// claims are interpreted.
//
// Error paths never echo token material: validation failures all collapse
// to ErrUnauthorized with a category only.
//
// # Thread Safety
//
// Safe for concurrent use; the secret is immutable after construction.
type HMACAuthProvider struct {
	secret []byte
}

// NewHMACAuthProvider creates a provider for the given signing secret.
func NewHMACAuthProvider(secret string) *HMACAuthProvider {
	return &HMACAuthProvider{secret: []byte(secret)}
}

// Validate implements extensions.AuthProvider.
func (p *HMACAuthProvider) Validate(ctx context.Context, token string) (*extensions.AuthInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("no bearer token presented: %w", extensions.ErrUnauthorized)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("token validation failed: %w", extensions.ErrUnauthorized)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("token has no subject: %w", extensions.ErrUnauthorized)
	}

	info := &extensions.AuthInfo{Subject: subject}
	if role, ok := claims["role"].(string); ok {
		info.Role = role
	}
	return info, nil
}

var _ extensions.AuthProvider = (*HMACAuthProvider)(nil)
