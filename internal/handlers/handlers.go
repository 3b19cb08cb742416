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

// Package handlers serves the order webhook, the bridge session callback
// and the admin API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jredh-dev/order-notify/internal/delivery"
	"github.com/jredh-dev/order-notify/internal/deliverylog"
	"github.com/jredh-dev/order-notify/internal/gate"
	"github.com/jredh-dev/order-notify/internal/order"
)

// Receipts remembers which webhook deliveries were already handled.
type Receipts interface {
	ClaimWebhook(ctx context.Context, webhookID string) (bool, error)
	ReleaseWebhook(ctx context.Context, webhookID string) error
}

// History lists recorded delivery attempts.
type History interface {
	Recent(ctx context.Context, limit int) ([]deliverylog.Attempt, error)
	AttemptsFor(ctx context.Context, notificationID string) ([]deliverylog.Attempt, error)
}

// DeadLetters receives notifications removed from the queue by hand.
type DeadLetters interface {
	DeadLetter(ctx context.Context, n delivery.PendingNotification, reason string) error
}

// Deps are the collaborators a Handler needs. Receipts, History and
// DeadLetters are optional.
type Deps struct {
	Dispatcher  *delivery.Dispatcher
	Gate        *gate.Gate
	Receipts    Receipts
	History     History
	DeadLetters DeadLetters
	Defaults    order.Defaults

	// Session is the bridge session this service drives. Callbacks for
	// other sessions are ignored. Empty accepts every session.
	Session string

	Logger *slog.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	dispatcher  *delivery.Dispatcher
	gate        *gate.Gate
	receipts    Receipts
	history     History
	deadLetters DeadLetters
	defaults    order.Defaults
	session     string
	logger      *slog.Logger
}

// New creates a new Handler.
func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dispatcher:  d.Dispatcher,
		gate:        d.Gate,
		receipts:    d.Receipts,
		history:     d.History,
		deadLetters: d.DeadLetters,
		defaults:    d.Defaults,
		session:     d.Session,
		logger:      logger.With("component", "http"),
	}
}

// --- Helpers ---

func jsonOK(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
