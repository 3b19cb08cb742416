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

package order

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Render builds the confirmation message. The output depends only on o,
// and is NFC-normalized so names typed with combining marks render the
// same on every device.
//
// With line items:
//
//	Hello Amal,
//
//	Thank you for your order #101!
//
//	Items:
//	- Candle (Large)
//	  2 x LKR 100.00 = LKR 200.00
//
//	Total: LKR 250.00
//
//	We will process it soon.
//
// Without line items the message is a single line.
func Render(o Order) string {
	if len(o.Items) == 0 {
		return norm.NFC.String(fmt.Sprintf(
			"Hello %s, thank you for your order #%s! We will process it soon.",
			o.CustomerName, o.Reference))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", o.CustomerName)
	fmt.Fprintf(&b, "Thank you for your order #%s!\n\n", o.Reference)
	b.WriteString("Items:\n")
	for _, li := range o.Items {
		b.WriteString("- ")
		b.WriteString(li.Title)
		if v := strings.TrimSpace(li.VariantTitle); v != "" {
			fmt.Fprintf(&b, " (%s)", v)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "  %d x %s %s = %s %s\n",
			li.Quantity, o.Currency, li.Price, o.Currency, li.Subtotal())
	}

	total := o.ItemsTotal()
	if o.Total != nil {
		total = *o.Total
	}
	fmt.Fprintf(&b, "\nTotal: %s %s\n\n", o.Currency, total)
	b.WriteString("We will process it soon.")

	return norm.NFC.String(b.String())
}
