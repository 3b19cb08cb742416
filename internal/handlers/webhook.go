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
	"io"
	"net/http"
	"strings"

	"github.com/jredh-dev/order-notify/internal/delivery"
	"github.com/jredh-dev/order-notify/internal/order"
	"github.com/jredh-dev/order-notify/internal/phone"
)

const (
	// HeaderWebhookID identifies one webhook delivery. Shopify resends the
	// same id when it retries.
	HeaderWebhookID = "X-Shopify-Webhook-Id"

	maxWebhookBytes = 1 << 20 // 1 MiB
)

// Delivery values reported in the webhook receipt.
const (
	DeliverySent      = "sent"
	DeliveryQueued    = "queued"
	DeliveryDuplicate = "duplicate"
)

// WebhookReceipt is the body of a successful webhook response.
type WebhookReceipt struct {
	Status         string `json:"status"`
	Delivery       string `json:"delivery"`
	NotificationID string `json:"notification_id,omitempty"`
	Order          string `json:"order,omitempty"`
}

// Webhook accepts an order-created webhook and notifies the customer.
// POST /webhook
//
// With the session ready the message is sent before responding and a send
// failure is a 500. Otherwise it is queued and delivered once the session
// becomes ready.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		jsonError(w, "could not read request body", http.StatusBadRequest)
		return
	}

	o, err := order.Parse(body, h.defaults)
	if err != nil {
		h.logger.Warn("rejected webhook", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if phone.Digits(o.Phone) == "" {
		h.logger.Warn("rejected webhook", "order", o.Reference, "error", "phone has no digits")
		jsonError(w, "invalid payload: customer phone has no digits", http.StatusBadRequest)
		return
	}
	if len(o.Ignored) > 0 {
		h.logger.Warn("ignored malformed optional fields", "order", o.Reference, "fields", o.Ignored)
	}

	recipient := phone.Normalize(o.Phone)
	text := order.Render(o)

	webhookID := strings.TrimSpace(r.Header.Get(HeaderWebhookID))
	if webhookID != "" && h.receipts != nil {
		claimed, err := h.receipts.ClaimWebhook(r.Context(), webhookID)
		switch {
		case err != nil:
			// Continue without dedupe.
			h.logger.Error("webhook dedupe unavailable", "webhook_id", webhookID, "error", err)
			webhookID = ""
		case !claimed:
			h.logger.Info("duplicate webhook", "webhook_id", webhookID, "order", o.Reference)
			jsonOK(w, http.StatusOK, WebhookReceipt{Status: "received", Delivery: DeliveryDuplicate, Order: o.Reference})
			return
		}
	}

	if !h.gate.IsReady() {
		n := h.dispatcher.Enqueue(recipient, text)
		jsonOK(w, http.StatusOK, WebhookReceipt{Status: "received", Delivery: DeliveryQueued, NotificationID: n.ID, Order: o.Reference})
		return
	}

	n, err := h.dispatcher.Dispatch(r.Context(), recipient, text)
	switch {
	case err == nil:
		jsonOK(w, http.StatusOK, WebhookReceipt{Status: "received", Delivery: DeliverySent, NotificationID: n.ID, Order: o.Reference})
	case errors.Is(err, delivery.ErrNotReady):
		// The session dropped between the gate check and the send.
		n = h.dispatcher.Enqueue(recipient, text)
		jsonOK(w, http.StatusOK, WebhookReceipt{Status: "received", Delivery: DeliveryQueued, NotificationID: n.ID, Order: o.Reference})
	default:
		if webhookID != "" {
			if rerr := h.receipts.ReleaseWebhook(r.Context(), webhookID); rerr != nil {
				h.logger.Error("release webhook claim failed", "webhook_id", webhookID, "error", rerr)
			}
		}
		jsonError(w, "failed to send notification", http.StatusInternalServerError)
	}
}
