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

// Package messenger talks to the WhatsApp bridge: a sidecar process that
// owns the browser-backed WhatsApp Web session (QR login, persisted
// session, reconnects) and exposes it over a small REST API.
//
// This service never sees the QR code or the session files. It only sends
// text messages, asks whether a number is on WhatsApp, and follows the
// session status so the readiness gate can open and close.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jredh-dev/order-notify/internal/phone"
)

// DefaultTimeout bounds every request to the bridge. The bridge drives a
// real browser and can hang; callers must not wait on it forever.
const DefaultTimeout = 15 * time.Second

// Bridge is an HTTP client for the WhatsApp bridge.
type Bridge struct {
	baseURL    string
	session    string
	apiKey     string
	httpClient *http.Client
}

// NewBridge creates a Bridge.
//
// baseURL is the bridge root, e.g. "http://whatsapp-bridge:3000".
// session names the bridge session to drive ("default" if empty).
// apiKey is sent as X-Api-Key when non-empty.
func NewBridge(baseURL, session, apiKey string, timeout time.Duration) *Bridge {
	if session == "" {
		session = "default"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Session returns the bridge session name.
func (b *Bridge) Session() string { return b.session }

// sendTextRequest is the JSON body sent to POST /api/sendText.
type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

// bridgeError captures the error envelope the bridge returns on failure.
type bridgeError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Send delivers text to the chat identified by recipient ("<digits>@c.us").
// It returns a non-nil error if the request fails or the bridge answers
// with a non-2xx status. Retrying is the caller's decision.
func (b *Bridge) Send(ctx context.Context, recipient, text string) error {
	body, err := json.Marshal(sendTextRequest{
		Session: b.session,
		ChatID:  recipient,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := b.newRequest(ctx, http.MethodPost, "/api/sendText", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = b.do(req)
	return err
}

// checkExistsResponse is the body of GET /api/contacts/check-exists.
type checkExistsResponse struct {
	NumberExists bool   `json:"numberExists"`
	ChatID       string `json:"chatId"`
}

// IsRegistered asks the bridge whether the number behind recipient has a
// WhatsApp account.
func (b *Bridge) IsRegistered(ctx context.Context, recipient string) (bool, error) {
	q := url.Values{}
	q.Set("phone", phone.FromIdentifier(recipient))
	q.Set("session", b.session)

	req, err := b.newRequest(ctx, http.MethodGet, "/api/contacts/check-exists?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}

	respBody, err := b.do(req)
	if err != nil {
		return false, err
	}

	var resp checkExistsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return false, fmt.Errorf("decode check-exists response: %w", err)
	}
	return resp.NumberExists, nil
}

// sessionResponse is the body of GET /api/sessions/{session}.
type sessionResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Status returns the bridge's current status string for the session,
// e.g. "WORKING" or "SCAN_QR_CODE".
func (b *Bridge) Status(ctx context.Context) (string, error) {
	req, err := b.newRequest(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(b.session), nil)
	if err != nil {
		return "", err
	}

	respBody, err := b.do(req)
	if err != nil {
		return "", err
	}

	var resp sessionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	return resp.Status, nil
}

func (b *Bridge) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if b.apiKey != "" {
		req.Header.Set("X-Api-Key", b.apiKey)
	}
	return req, nil
}

func (b *Bridge) do(req *http.Request) ([]byte, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var be bridgeError
		if err := json.Unmarshal(respBody, &be); err == nil {
			if msg := firstNonEmpty(be.Message, be.Error); msg != "" {
				return nil, fmt.Errorf("bridge returned %d: %s", resp.StatusCode, msg)
			}
		}
		return nil, fmt.Errorf("bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
