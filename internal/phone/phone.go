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

// Package phone turns customer phone numbers into WhatsApp chat
// identifiers. No length or country-code validation happens here; a bad
// number only surfaces later as a registration or transport failure from
// the bridge.
package phone

import "strings"

// ChatSuffix is the address suffix WhatsApp uses for individual chats.
const ChatSuffix = "@c.us"

// Digits strips a phone number down to ASCII digits only.
func Digits(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

// Normalize returns the chat identifier for phone: every character outside
// 0-9 is removed and ChatSuffix is appended.
//
// Normalize is idempotent. An identifier that already carries the suffix
// is reduced to its digits first, so "94772415566@c.us" maps to itself
// instead of picking up the suffix's characters or a second suffix.
func Normalize(phone string) string {
	phone = strings.TrimSuffix(strings.TrimSpace(phone), ChatSuffix)
	return Digits(phone) + ChatSuffix
}

// FromIdentifier returns the digits portion of a chat identifier.
func FromIdentifier(id string) string {
	return Digits(strings.TrimSuffix(id, ChatSuffix))
}
