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

// Package deliverylog records delivery attempts and webhook receipts.
//
// The delivery queue itself stays in memory; this ledger is where the
// outcome of a queued send becomes visible after the webhook request that
// caused it has long returned. It also remembers which webhook deliveries
// were already handled so a store's retry does not message the customer
// twice.
package deliverylog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jredh-dev/order-notify/internal/delivery"
)

// Attempt is one row of the ledger. Mode is "immediate" or "queued";
// Attempt counts from 1 per notification; Status is "sent" or "failed".
type Attempt struct {
	ID             string    `json:"id" firestore:"id"`
	NotificationID string    `json:"notification_id" firestore:"notification_id"`
	Recipient      string    `json:"recipient" firestore:"recipient"`
	Mode           string    `json:"mode" firestore:"mode"`
	Attempt        int       `json:"attempt" firestore:"attempt"`
	Status         string    `json:"status" firestore:"status"`
	Error          string    `json:"error,omitempty" firestore:"error"`
	DurationMS     int64     `json:"duration_ms" firestore:"duration_ms"`
	CreatedAt      time.Time `json:"created_at" firestore:"created_at"`
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// AttemptFromOutcome converts a dispatcher outcome into a ledger row.
func AttemptFromOutcome(o delivery.Outcome) Attempt {
	a := Attempt{
		ID:             uuid.New().String(),
		NotificationID: o.NotificationID,
		Recipient:      o.Recipient,
		Mode:           string(o.Mode),
		Attempt:        o.Attempt,
		Status:         StatusSent,
		DurationMS:     o.Duration.Milliseconds(),
		CreatedAt:      o.At,
	}
	if !o.Succeeded() {
		a.Status = StatusFailed
		a.Error = o.Err.Error()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return a
}

// DB wraps the SQLite connection.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS delivery_attempts (
	id              TEXT PRIMARY KEY,
	notification_id TEXT NOT NULL,
	recipient       TEXT NOT NULL,
	mode            TEXT NOT NULL,
	attempt         INTEGER NOT NULL,
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS webhook_receipts (
	webhook_id  TEXT PRIMARY KEY,
	received_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_attempts_notification ON delivery_attempts(notification_id);
CREATE INDEX IF NOT EXISTS idx_attempts_created      ON delivery_attempts(created_at);
CREATE INDEX IF NOT EXISTS idx_receipts_received     ON webhook_receipts(received_at);
`

// Open creates or opens the SQLite database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer, many readers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{conn: conn, logger: logger.With("component", "deliverylog")}, nil
}

// Close shuts down the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// --- Delivery attempts ---

// RecordAttempt inserts one attempt.
func (db *DB) RecordAttempt(ctx context.Context, a Attempt) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO delivery_attempts (id, notification_id, recipient, mode, attempt, status, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.NotificationID, a.Recipient, a.Mode, a.Attempt, a.Status, a.Error, a.DurationMS, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Observe implements delivery.Observer. Ledger failures are logged and
// never affect delivery.
func (db *DB) Observe(ctx context.Context, o delivery.Outcome) {
	if err := db.RecordAttempt(ctx, AttemptFromOutcome(o)); err != nil {
		db.logger.Error("ledger write failed", "notification_id", o.NotificationID, "error", err)
	}
}

// Recent returns the newest attempts first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, notification_id, recipient, mode, attempt, status, error, duration_ms, created_at
		 FROM delivery_attempts ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

// AttemptsFor returns every attempt for one notification, oldest first.
func (db *DB) AttemptsFor(ctx context.Context, notificationID string) ([]Attempt, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, notification_id, recipient, mode, attempt, status, error, duration_ms, created_at
		 FROM delivery_attempts WHERE notification_id = ? ORDER BY rowid ASC`,
		notificationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func scanAttempts(rows *sql.Rows) ([]Attempt, error) {
	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(
			&a.ID, &a.NotificationID, &a.Recipient, &a.Mode, &a.Attempt,
			&a.Status, &a.Error, &a.DurationMS, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// --- Webhook receipts ---

// ClaimWebhook records webhookID as handled. It returns false if the id was
// already claimed, meaning this request is a redelivery.
func (db *DB) ClaimWebhook(ctx context.Context, webhookID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO webhook_receipts (webhook_id, received_at) VALUES (?, ?)`,
		webhookID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("claim webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim webhook: %w", err)
	}
	return n == 1, nil
}

// ReleaseWebhook forgets a claim so the sender's retry is processed again.
func (db *DB) ReleaseWebhook(ctx context.Context, webhookID string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM webhook_receipts WHERE webhook_id = ?`, webhookID)
	if err != nil {
		return fmt.Errorf("release webhook: %w", err)
	}
	return nil
}

// PurgeReceipts deletes webhook claims older than cutoff and returns how
// many were removed.
func (db *DB) PurgeReceipts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM webhook_receipts WHERE received_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge receipts: %w", err)
	}
	return res.RowsAffected()
}
