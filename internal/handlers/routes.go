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
	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/order-notify/internal/token"
)

// Routes registers the service endpoints on r. Admin routes are mounted
// only when tokens is non-nil.
func (h *Handler) Routes(r chi.Router, webhookSecret string, tokens *token.Service) {
	r.With(ShopifyHMAC(webhookSecret, h.logger)).Post("/webhook", h.Webhook)
	r.Post("/session/events", h.SessionEvents)
	r.Get("/status", h.Status)

	if tokens == nil {
		return
	}
	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminAuth(tokens, h.logger))
		r.Get("/queue", h.ListQueue)
		r.Delete("/queue/{id}", h.RemoveQueued)
		r.Get("/deliveries", h.ListDeliveries)
		r.Get("/deliveries/{notificationID}", h.NotificationDeliveries)
	})
}
