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

// Package token issues and validates the HS256 bearer tokens that guard
// the admin API.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// RoleAdmin grants access to the queue and ledger endpoints.
const RoleAdmin = "admin"

// DefaultIssuer is used when no issuer is configured.
const DefaultIssuer = "order-notify"

// Service handles JWT generation and validation.
type Service struct {
	signingKey []byte
	issuer     string
}

// Claims carried by admin tokens.
type Claims struct {
	Operator string   `json:"operator"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims include role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// New creates a token service.
func New(signingKey, issuer string) *Service {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// GenerateSigningKey generates a secure random signing key.
func GenerateSigningKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate signing key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateToken creates a token for operator.
func (s *Service) GenerateToken(operator string, roles []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Operator: operator,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// ValidateToken validates a token and returns its claims. Tokens from a
// different issuer are rejected.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !claims.VerifyIssuer(s.issuer, true) {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	return claims, nil
}
