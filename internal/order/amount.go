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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a money value in minor units (cents). Shopify sends prices as
// decimal strings ("100.00"); some senders use bare JSON numbers. Both
// decode to the same Amount, rounded half-up to two decimals.
type Amount int64

// maxUnits keeps units*100 plus rounded cents inside int64.
const maxUnits = (math.MaxInt64 - 100) / 100

// ParseAmount parses a decimal string such as "250", "250.5" or "-3.999".
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	if s == "" || s == "." {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > maxUnits {
		return 0, fmt.Errorf("amount %q out of range", s)
	}

	// Two decimals kept, the third decides rounding.
	padded := frac + "000"
	cents, _ := strconv.ParseInt(padded[:2], 10, 64)
	if padded[2] >= '5' {
		cents++
	}

	total := units*100 + cents
	if neg {
		total = -total
	}
	return Amount(total), nil
}

// UnmarshalJSON accepts a decimal string, a JSON number, or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount must be a string or number: %w", err)
		}
		raw = n.String()
	}

	if strings.ContainsAny(raw, "eE") {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", raw, err)
		}
		raw = strconv.FormatFloat(f, 'f', -1, 64)
	}

	v, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Times returns a multiplied by n, saturating at the int64 bounds.
func (a Amount) Times(n int) Amount {
	if a == 0 || n == 0 {
		return 0
	}
	x, y := int64(a), int64(n)
	p := x * y
	if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return saturate((x < 0) != (y < 0))
	}
	return Amount(p)
}

// Plus returns a+b, saturating at the int64 bounds.
func (a Amount) Plus(b Amount) Amount {
	s := a + b
	switch {
	case b > 0 && s < a:
		return saturate(false)
	case b < 0 && s > a:
		return saturate(true)
	}
	return s
}

func saturate(negative bool) Amount {
	if negative {
		return math.MinInt64
	}
	return math.MaxInt64
}

// String formats the amount with exactly two decimals.
func (a Amount) String() string {
	sign := ""
	v := uint64(a)
	if a < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
