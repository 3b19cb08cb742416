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

package messenger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jredh-dev/order-notify/internal/gate"
)

// Signal is a lifecycle signal from the messaging session.
type Signal string

const (
	SignalQR            Signal = "qr"
	SignalAuthenticated Signal = "authenticated"
	SignalReady         Signal = "ready"
	SignalDisconnected  Signal = "disconnected"
)

// State maps a signal onto the session state machine.
func (s Signal) State() (gate.State, bool) {
	switch s {
	case SignalQR, SignalAuthenticated:
		return gate.Authenticating, true
	case SignalReady:
		return gate.Ready, true
	case SignalDisconnected:
		return gate.Disconnected, true
	default:
		return 0, false
	}
}

// SignalFromStatus translates a bridge session status into a signal.
//
//	STARTING      -> authenticated (session restoring, not usable yet)
//	SCAN_QR_CODE  -> qr
//	WORKING       -> ready
//	FAILED        -> disconnected
//	STOPPED       -> disconnected
func SignalFromStatus(status string) (Signal, bool) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "STARTING":
		return SignalAuthenticated, true
	case "SCAN_QR_CODE":
		return SignalQR, true
	case "WORKING":
		return SignalReady, true
	case "FAILED", "STOPPED":
		return SignalDisconnected, true
	default:
		return "", false
	}
}

// Transitioner is the part of the gate signals are applied to.
type Transitioner interface {
	Transition(to gate.State) bool
}

// Apply feeds sig into g. It reports false for an unknown signal.
func Apply(g Transitioner, sig Signal) bool {
	state, ok := sig.State()
	if !ok {
		return false
	}
	g.Transition(state)
	return true
}

// SessionEvent is the callback the bridge posts when a session changes
// status.
//
//	{
//	  "event":   "session.status",
//	  "session": "default",
//	  "payload": {"status": "WORKING"}
//	}
type SessionEvent struct {
	Event   string `json:"event"`
	Session string `json:"session"`
	Payload struct {
		Status string `json:"status"`
	} `json:"payload"`
}

// EventSessionStatus is the only bridge event this service reacts to.
const EventSessionStatus = "session.status"

// StatusSource reports the bridge session status.
type StatusSource interface {
	Status(ctx context.Context) (string, error)
}

// Watcher polls the bridge session status and keeps the gate in step. It
// covers startup, where no callback has arrived yet, and callbacks the
// bridge failed to deliver.
type Watcher struct {
	source   StatusSource
	gate     Transitioner
	interval time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a Watcher polling every interval.
func NewWatcher(source StatusSource, g Transitioner, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		source:   source,
		gate:     g,
		interval: interval,
		logger:   logger.With("component", "session-watcher"),
	}
}

// Run polls until ctx is cancelled. An unreachable bridge counts as a
// disconnected session.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := ""
	for {
		last = w.poll(ctx, last)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll checks the bridge once and returns the status it saw.
func (w *Watcher) poll(ctx context.Context, last string) string {
	status, err := w.source.Status(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return last
		}
		if last != "unreachable" {
			w.logger.Warn("bridge status unavailable", "error", err)
		}
		Apply(w.gate, SignalDisconnected)
		return "unreachable"
	}

	sig, ok := SignalFromStatus(status)
	if !ok {
		if status != last {
			w.logger.Warn("unknown bridge status", "status", status)
		}
		return status
	}
	if status != last {
		w.logger.Info("bridge status", "status", status, "signal", sig)
		if sig == SignalQR {
			w.logger.Info("whatsapp login required: scan the QR code in the bridge")
		}
	}
	Apply(w.gate, sig)
	return status
}
