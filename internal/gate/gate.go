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

// Package gate tracks the WhatsApp session lifecycle and projects it onto
// a single readiness flag.
//
// The session moves between four states driven by signals from the
// messaging bridge:
//
//	Unauthenticated --qr--> Authenticating --ready--> Ready
//	      ^                                            |
//	      +---------------- Disconnected <--disconnect-+
//
// Only Ready opens the gate. Every closed->open transition runs the
// registered OnOpen hooks exactly once, each in its own goroutine, so the
// caller delivering the signal is never blocked.
package gate

import (
	"log/slog"
	"sync"
	"time"
)

// State is a session lifecycle state.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Ready
	Disconnected
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Gate is the process-wide readiness indicator. The zero value is not
// usable; call New.
type Gate struct {
	mu     sync.RWMutex
	state  State
	since  time.Time
	onOpen []func()
	logger *slog.Logger
}

// New returns a closed gate in the Unauthenticated state.
func New(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		state:  Unauthenticated,
		since:  time.Now().UTC(),
		logger: logger.With("component", "gate"),
	}
}

// OnOpen registers fn to run on every closed->open transition.
func (g *Gate) OnOpen(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onOpen = append(g.onOpen, fn)
}

// SetReady opens (Ready) or closes (Disconnected) the gate.
func (g *Gate) SetReady(ready bool) {
	if ready {
		g.Transition(Ready)
		return
	}
	g.Transition(Disconnected)
}

// Transition moves the session to state to. It reports whether the
// transition opened the gate.
func (g *Gate) Transition(to State) bool {
	g.mu.Lock()
	from := g.state
	if from == to {
		g.mu.Unlock()
		return false
	}
	g.state = to
	g.since = time.Now().UTC()
	opened := from != Ready && to == Ready
	var hooks []func()
	if opened {
		hooks = make([]func(), len(g.onOpen))
		copy(hooks, g.onOpen)
	}
	g.mu.Unlock()

	g.logger.Info("session state changed", "from", from.String(), "to", to.String())

	for _, fn := range hooks {
		go fn()
	}
	return opened
}

// IsReady reports whether the gate is open.
func (g *Gate) IsReady() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state == Ready
}

// State returns the current session state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Since returns when the current state was entered.
func (g *Gate) Since() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.since
}
