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

package delivery

import (
	"time"

	"github.com/google/uuid"
)

// PendingNotification is one order confirmation waiting to be delivered.
// It is immutable once created.
//
// JSON schema (as reported by the admin queue endpoint):
//
//	{
//	  "id":          "550e8400-e29b-41d4-a716-446655440000",
//	  "recipient":   "94771234567@c.us",
//	  "body":        "Hello Amal, ...",
//	  "enqueued_at": "2026-03-01T10:00:00Z"
//	}
type PendingNotification struct {
	// ID correlates log lines, ledger rows and outcome events for one
	// notification across retries.
	ID string `json:"id"`

	// Recipient is a normalized chat identifier (digits + "@c.us").
	Recipient string `json:"recipient"`

	// Body is the rendered message text.
	Body string `json:"body"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewNotification stamps a fresh notification for recipient.
func NewNotification(recipient, body string) PendingNotification {
	return PendingNotification{
		ID:         uuid.New().String(),
		Recipient:  recipient,
		Body:       body,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Mode says which path attempted a delivery.
type Mode string

const (
	// ModeImmediate is a send made while handling the webhook request.
	ModeImmediate Mode = "immediate"
	// ModeQueued is a send made by the drain loop.
	ModeQueued Mode = "queued"
)

// Outcome describes a single delivery attempt.
type Outcome struct {
	NotificationID string
	Recipient      string
	Mode           Mode
	// Attempt counts attempts for this notification on its current path,
	// starting at 1.
	Attempt  int
	Err      error
	At       time.Time
	Duration time.Duration
}

// Succeeded reports whether the attempt delivered the message.
func (o Outcome) Succeeded() bool { return o.Err == nil }
