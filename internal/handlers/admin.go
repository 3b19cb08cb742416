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
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/order-notify/internal/delivery"
	"github.com/jredh-dev/order-notify/internal/deliverylog"
)

const (
	defaultDeliveriesLimit = 50
	maxDeliveriesLimit     = 500
)

// --- Admin endpoints (bearer token with the admin role) ---

// ListQueue returns the pending notifications in delivery order.
// GET /admin/queue
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, h.dispatcher.Snapshot())
}

// RemoveQueued drops a pending notification without sending it. The head
// of the queue is retried forever, so this is how an operator unblocks a
// notification that can never be delivered.
// DELETE /admin/queue/{id}
func (h *Handler) RemoveQueued(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	n, err := h.dispatcher.Remove(id)
	switch {
	case errors.Is(err, delivery.ErrInFlight):
		jsonError(w, "notification is being sent, try again", http.StatusConflict)
		return
	case errors.Is(err, delivery.ErrNotFound):
		jsonError(w, "notification not found", http.StatusNotFound)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	operator := "unknown"
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		operator = claims.Operator
	}
	h.logger.Warn("queued notification removed", "id", n.ID, "recipient", n.Recipient, "operator", operator)

	if h.deadLetters != nil {
		if err := h.deadLetters.DeadLetter(r.Context(), n, "removed by "+operator); err != nil {
			h.logger.Error("dead letter failed", "id", n.ID, "error", err)
		}
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{"removed": n})
}

// ListDeliveries returns the newest delivery attempts.
// GET /admin/deliveries?limit=N
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		jsonError(w, "delivery history not configured", http.StatusNotFound)
		return
	}

	limit := defaultDeliveriesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxDeliveriesLimit)
	}

	attempts, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list deliveries failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if attempts == nil {
		attempts = []deliverylog.Attempt{}
	}
	jsonOK(w, http.StatusOK, attempts)
}

// NotificationDeliveries returns every attempt for one notification, oldest
// first. An id with no recorded attempts is a 404.
// GET /admin/deliveries/{notificationID}
func (h *Handler) NotificationDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		jsonError(w, "delivery history not configured", http.StatusNotFound)
		return
	}

	id := chi.URLParam(r, "notificationID")
	attempts, err := h.history.AttemptsFor(r.Context(), id)
	if err != nil {
		h.logger.Error("list notification deliveries failed", "id", id, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if len(attempts) == 0 {
		jsonError(w, "no attempts recorded for notification", http.StatusNotFound)
		return
	}
	jsonOK(w, http.StatusOK, attempts)
}
