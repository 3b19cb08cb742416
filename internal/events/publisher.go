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

// Package events publishes delivery outcomes to Kafka so other services
// (analytics, support tooling) can follow order notifications without
// polling the admin API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/jredh-dev/order-notify/internal/delivery"
)

const (
	// DefaultTopic receives one event per delivery attempt.
	DefaultTopic = "order-notify-outcomes"

	// DeadLetterTopic receives notifications an operator removed from the
	// queue, so they can be inspected and replayed by hand.
	DeadLetterTopic = "order-notify-dlq"
)

// Event is the JSON value written for every delivery attempt.
//
//	{
//	  "notification_id": "550e8400-...",
//	  "recipient":       "94771234567@c.us",
//	  "mode":            "queued",
//	  "attempt":         3,
//	  "status":          "failed",
//	  "error":           "send to 94771234567@c.us: messenger not ready",
//	  "duration_ms":     12,
//	  "at":              "2026-03-01T10:00:05Z"
//	}
type Event struct {
	NotificationID string    `json:"notification_id"`
	Recipient      string    `json:"recipient"`
	Mode           string    `json:"mode"`
	Attempt        int       `json:"attempt"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	At             time.Time `json:"at"`
}

// EventFromOutcome builds the wire event for o.
func EventFromOutcome(o delivery.Outcome) Event {
	e := Event{
		NotificationID: o.NotificationID,
		Recipient:      o.Recipient,
		Mode:           string(o.Mode),
		Attempt:        o.Attempt,
		Status:         "sent",
		DurationMS:     o.Duration.Milliseconds(),
		At:             o.At.UTC(),
	}
	if !o.Succeeded() {
		e.Status = "failed"
		e.Error = o.Err.Error()
	}
	return e
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes outcome events and dead letters. Messages are keyed by
// notification ID so every attempt for one notification lands on the same
// partition, in order.
type Publisher struct {
	outcomes messageWriter
	dlq      messageWriter
	logger   *slog.Logger
}

// ParseBrokers splits a comma-separated broker list like "kafka:9092,kafka2:9092".
func ParseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewPublisher creates a Publisher connected to brokers. An empty topic
// means DefaultTopic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}

	outcomes := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	dlq := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        DeadLetterTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return newPublisher(outcomes, dlq, logger), nil
}

func newPublisher(outcomes, dlq messageWriter, logger *slog.Logger) *Publisher {
	return &Publisher{
		outcomes: outcomes,
		dlq:      dlq,
		logger:   logger.With("component", "events"),
	}
}

// Publish writes one outcome event.
func (p *Publisher) Publish(ctx context.Context, o delivery.Outcome) error {
	value, err := json.Marshal(EventFromOutcome(o))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.outcomes.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.NotificationID),
		Value: value,
		Time:  o.At,
	})
	if err != nil {
		return fmt.Errorf("publish outcome %s: %w", o.NotificationID, err)
	}
	return nil
}

// Observe implements delivery.Observer. A broker outage is logged and
// never holds up delivery.
func (p *Publisher) Observe(ctx context.Context, o delivery.Outcome) {
	if err := p.Publish(ctx, o); err != nil {
		p.logger.Warn("outcome not published", "notification_id", o.NotificationID, "error", err)
	}
}

// DeadLetter writes a notification that was removed from the queue
// without being delivered.
func (p *Publisher) DeadLetter(ctx context.Context, n delivery.PendingNotification, reason string) error {
	value, err := json.Marshal(struct {
		delivery.PendingNotification
		Reason    string    `json:"reason"`
		RemovedAt time.Time `json:"removed_at"`
	}{n, reason, time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if err := p.dlq.WriteMessages(ctx, kafka.Message{Key: []byte(n.ID), Value: value}); err != nil {
		return fmt.Errorf("dead letter %s: %w", n.ID, err)
	}
	return nil
}

// Close flushes and releases both writers.
func (p *Publisher) Close() error {
	oerr := p.outcomes.Close()
	derr := p.dlq.Close()
	if oerr != nil {
		return oerr
	}
	return derr
}
