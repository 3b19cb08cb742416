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

package deliverylog

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"github.com/jredh-dev/order-notify/internal/delivery"
)

// DefaultCollection is the Firestore collection attempts are mirrored to.
const DefaultCollection = "order_notify_attempts"

// FirestoreMirror copies every attempt into Firestore so deliveries can be
// inspected from the console without shell access to the SQLite file.
type FirestoreMirror struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewFirestoreMirror connects to Firestore. database may be empty for the
// default database; credentialsPath may be empty to use application
// default credentials.
func NewFirestoreMirror(ctx context.Context, projectID, database, credentialsPath string, logger *slog.Logger) (*FirestoreMirror, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreMirror{
		client:     client,
		collection: DefaultCollection,
		logger:     logger.With("component", "firestore-mirror"),
	}, nil
}

// Put writes one attempt document keyed by its ID.
func (m *FirestoreMirror) Put(ctx context.Context, a Attempt) error {
	_, err := m.client.Collection(m.collection).Doc(a.ID).Set(ctx, a)
	if err != nil {
		return fmt.Errorf("firestore put %s: %w", a.ID, err)
	}
	return nil
}

// Observe implements delivery.Observer.
func (m *FirestoreMirror) Observe(ctx context.Context, o delivery.Outcome) {
	if err := m.Put(ctx, AttemptFromOutcome(o)); err != nil {
		m.logger.Error("mirror write failed", "notification_id", o.NotificationID, "error", err)
	}
}

// Close releases the Firestore client.
func (m *FirestoreMirror) Close() error {
	return m.client.Close()
}
