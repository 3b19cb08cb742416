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
	"encoding/json"
	"net/http"
	"time"

	"github.com/jredh-dev/order-notify/internal/messenger"
)

type sessionEventResp struct {
	Status string `json:"status"`
	Signal string `json:"signal,omitempty"`
	State  string `json:"state"`
}

// SessionEvents receives session status callbacks from the bridge.
// POST /session/events
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	var ev messenger.SessionEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBytes)).Decode(&ev); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	ignored := sessionEventResp{Status: "ignored", State: h.gate.State().String()}
	if ev.Event != messenger.EventSessionStatus {
		jsonOK(w, http.StatusOK, ignored)
		return
	}
	if h.session != "" && ev.Session != "" && ev.Session != h.session {
		h.logger.Debug("session event for another session", "session", ev.Session)
		jsonOK(w, http.StatusOK, ignored)
		return
	}

	sig, ok := messenger.SignalFromStatus(ev.Payload.Status)
	if !ok {
		h.logger.Warn("unknown session status", "status", ev.Payload.Status)
		jsonOK(w, http.StatusOK, ignored)
		return
	}

	messenger.Apply(h.gate, sig)
	h.logger.Info("session signal", "signal", sig, "state", h.gate.State())
	jsonOK(w, http.StatusOK, sessionEventResp{
		Status: "applied",
		Signal: string(sig),
		State:  h.gate.State().String(),
	})
}

type statusResp struct {
	State    string    `json:"state"`
	Ready    bool      `json:"ready"`
	Since    time.Time `json:"since"`
	Depth    int       `json:"queue_depth"`
	Draining bool      `json:"draining"`
}

// Status reports the session and queue state. Message bodies are left out;
// they are behind the admin API.
// GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.dispatcher.Snapshot()
	jsonOK(w, http.StatusOK, statusResp{
		State:    h.gate.State().String(),
		Ready:    h.gate.IsReady(),
		Since:    h.gate.Since(),
		Depth:    snap.Depth,
		Draining: snap.Draining,
	})
}
