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

// Package order parses order webhooks and renders the confirmation text
// sent to the customer.
package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPayload marks a webhook that cannot produce a notification.
var ErrInvalidPayload = errors.New("invalid payload")

const (
	// DefaultCustomerName greets customers without a first name.
	DefaultCustomerName = "Valued Customer"
	// DefaultCurrency is used when the webhook carries no currency.
	DefaultCurrency = "LKR"
)

// Reference is an order reference that may arrive as a JSON string or
// number.
type Reference string

// UnmarshalJSON accepts a string, a number, or null.
func (r *Reference) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Reference(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("order reference must be a string or number: %w", err)
	}
	*r = Reference(n.String())
	return nil
}

// Customer is the customer block of the webhook.
type Customer struct {
	Phone     string          `json:"phone"`
	FirstName json.RawMessage `json:"first_name"`
}

// LineItem is one purchased product.
type LineItem struct {
	Title        string `json:"title"`
	VariantTitle string `json:"variant_title"`
	Quantity     int    `json:"quantity"`
	Price        Amount `json:"price"`
}

// UnmarshalJSON accepts the quantity as a JSON number or a numeric string.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	type plain LineItem
	var raw struct {
		plain
		Quantity json.Number `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*li = LineItem(raw.plain)
	li.Quantity = 0
	if raw.Quantity != "" {
		q, err := strconv.Atoi(raw.Quantity.String())
		if err != nil || q < 0 {
			return fmt.Errorf("invalid quantity %q", raw.Quantity.String())
		}
		li.Quantity = q
	}
	return nil
}

// Subtotal returns price x quantity.
func (li LineItem) Subtotal() Amount {
	return li.Price.Times(li.Quantity)
}

// Webhook is the subset of the order webhook body this service reads.
// Optional fields stay raw so a malformed value can be dropped without
// rejecting the order.
type Webhook struct {
	Customer    *Customer       `json:"customer"`
	OrderNumber Reference       `json:"order_number"`
	ID          Reference       `json:"id"`
	Currency    json.RawMessage `json:"currency"`
	TotalPrice  json.RawMessage `json:"total_price"`
	LineItems   json.RawMessage `json:"line_items"`
}

// Defaults fills in fields the webhook leaves out.
type Defaults struct {
	Currency     string
	CustomerName string
}

// Order is a validated webhook with defaults applied.
type Order struct {
	Phone        string
	CustomerName string
	Reference    string
	Currency     string
	// Total is nil when the webhook had no usable total_price.
	Total *Amount
	Items []LineItem
	// Ignored lists optional fields that were present but could not be
	// decoded, as "field: reason". They are treated as absent.
	Ignored []string
}

// Parse decodes and validates a webhook body. Errors wrap
// ErrInvalidPayload.
func Parse(body []byte, defaults Defaults) (Order, error) {
	var wh Webhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return FromWebhook(wh, defaults)
}

// FromWebhook validates an already-decoded webhook. Only a missing phone or
// order reference is an error.
func FromWebhook(wh Webhook, defaults Defaults) (Order, error) {
	if wh.Customer == nil || strings.TrimSpace(wh.Customer.Phone) == "" {
		return Order{}, fmt.Errorf("%w: customer.phone is required", ErrInvalidPayload)
	}

	ref := strings.TrimPrefix(string(wh.OrderNumber), "#")
	if ref == "" {
		ref = strings.TrimPrefix(string(wh.ID), "#")
	}
	if ref == "" {
		return Order{}, fmt.Errorf("%w: order_number or id is required", ErrInvalidPayload)
	}

	o := Order{
		Phone:     strings.TrimSpace(wh.Customer.Phone),
		Reference: ref,
	}

	var name string
	o.ignore("customer.first_name", decodeOptional(wh.Customer.FirstName, &name))
	o.CustomerName = firstNonEmpty(strings.TrimSpace(name), defaults.CustomerName, DefaultCustomerName)

	var currency string
	o.ignore("currency", decodeOptional(wh.Currency, &currency))
	o.Currency = firstNonEmpty(strings.TrimSpace(currency), defaults.Currency, DefaultCurrency)

	var total Amount
	if present(wh.TotalPrice) {
		if err := json.Unmarshal(wh.TotalPrice, &total); err != nil {
			o.ignore("total_price", err)
		} else {
			o.Total = &total
		}
	}

	var items []LineItem
	if err := decodeOptional(wh.LineItems, &items); err != nil {
		o.ignore("line_items", err)
	} else {
		o.Items = items
	}

	return o, nil
}

func (o *Order) ignore(field string, err error) {
	if err != nil {
		o.Ignored = append(o.Ignored, field+": "+err.Error())
	}
}

// present reports whether a raw field carries a value other than null.
func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// decodeOptional leaves v untouched when raw is absent or null.
func decodeOptional(raw json.RawMessage, v any) error {
	if !present(raw) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// ItemsTotal sums the line subtotals.
func (o Order) ItemsTotal() Amount {
	var sum Amount
	for _, li := range o.Items {
		sum = sum.Plus(li.Subtotal())
	}
	return sum
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
