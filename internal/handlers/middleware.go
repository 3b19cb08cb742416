// order-notify - Order confirmation notifications over WhatsApp
// Copyright (C) 2026  nexus contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jredh-dev/order-notify/internal/token"
)

// HeaderShopifyHMAC carries the base64 HMAC-SHA256 of the raw body.
const HeaderShopifyHMAC = "X-Shopify-Hmac-Sha256"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsContextKey stores the validated admin token claims.
	ClaimsContextKey contextKey = "claims"
)

// ShopifyHMAC rejects webhooks whose signature does not match secret. The
// body is restored for the next handler. An empty secret disables the
// check.
func ShopifyHMAC(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	secret = strings.TrimSpace(secret)
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
			if err != nil {
				jsonError(w, "could not read request body", http.StatusBadRequest)
				return
			}

			if !validSignature(secret, body, r.Header.Get(HeaderShopifyHMAC)) {
				logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
				jsonError(w, "invalid webhook signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// SignBody returns the base64 HMAC-SHA256 of body, as Shopify sends it.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return subtle.ConstantTimeCompare(decoded, mac.Sum(nil)) == 1
}

// AdminAuth requires a bearer token carrying the admin role.
// Returns 401 for a missing or invalid token and 403 for a valid token
// without the role.
func AdminAuth(tokens *token.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				jsonError(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.ValidateToken(strings.TrimSpace(raw))
			if err != nil {
				logger.Warn("admin token rejected", "error", err)
				jsonError(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if !claims.HasRole(token.RoleAdmin) {
				jsonError(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts the admin claims set by AdminAuth.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*token.Claims)
	return claims, ok
}
