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
	"errors"
	"fmt"
)

var (
	// ErrNotReady means the messaging session cannot accept sends right now.
	ErrNotReady = errors.New("messaging session not ready")

	// ErrUnregisteredRecipient means the bridge reports the number has no
	// active WhatsApp account.
	ErrUnregisteredRecipient = errors.New("recipient not registered on whatsapp")

	// ErrTransport wraps any failure reported by the bridge itself.
	ErrTransport = errors.New("messaging transport failure")

	// ErrInFlight is returned by Remove while the item is being sent.
	ErrInFlight = errors.New("notification is being sent")

	// ErrNotFound is returned by Remove for an unknown notification ID.
	ErrNotFound = errors.New("notification not found")
)

// SendError is returned by Dispatch. Kind is one of ErrNotReady,
// ErrUnregisteredRecipient or ErrTransport; Err is the underlying cause,
// if any. Both are visible to errors.Is.
type SendError struct {
	Kind      error
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send to %s: %v: %v", e.Recipient, e.Kind, e.Err)
	}
	return fmt.Sprintf("send to %s: %v", e.Recipient, e.Kind)
}

func (e *SendError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
