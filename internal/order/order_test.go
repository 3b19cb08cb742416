package order

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const amalWebhook = `{
	"customer": {"phone": "94771234567", "first_name": "Amal"},
	"order_number": 101,
	"currency": "LKR",
	"total_price": "250.00",
	"line_items": [{"title": "Candle", "quantity": 2, "price": "100.00"}]
}`

func TestParseAndRender(t *testing.T) {
	o, err := Parse([]byte(amalWebhook), Defaults{})
	require.NoError(t, err)

	assert.Equal(t, "94771234567", o.Phone)
	assert.Equal(t, "Amal", o.CustomerName)
	assert.Equal(t, "101", o.Reference)
	assert.Equal(t, "LKR", o.Currency)
	require.NotNil(t, o.Total)
	assert.Equal(t, Amount(25000), *o.Total)

	want := "Hello Amal,\n\n" +
		"Thank you for your order #101!\n\n" +
		"Items:\n" +
		"- Candle\n" +
		"  2 x LKR 100.00 = LKR 200.00\n\n" +
		"Total: LKR 250.00\n\n" +
		"We will process it soon."
	assert.Equal(t, want, Render(o))
}

func TestRenderIsDeterministic(t *testing.T) {
	o, err := Parse([]byte(amalWebhook), Defaults{})
	require.NoError(t, err)
	assert.Equal(t, Render(o), Render(o))
}

func TestRenderVariantAndComputedTotal(t *testing.T) {
	body := `{
		"customer": {"phone": "+94 77 000 0000"},
		"id": "5001",
		"line_items": [
			{"title": "Mug", "variant_title": "Blue", "quantity": 3, "price": 12.5},
			{"title": "Tea", "variant_title": "", "quantity": 1, "price": "4.99"}
		]
	}`
	o, err := Parse([]byte(body), Defaults{Currency: "USD", CustomerName: "Friend"})
	require.NoError(t, err)

	msg := Render(o)
	assert.Contains(t, msg, "Hello Friend,")
	assert.Contains(t, msg, "#5001")
	assert.Contains(t, msg, "- Mug (Blue)\n  3 x USD 12.50 = USD 37.50")
	assert.Contains(t, msg, "- Tea\n  1 x USD 4.99 = USD 4.99")
	assert.Contains(t, msg, "Total: USD 42.49")
}

func TestRenderWithoutLineItems(t *testing.T) {
	o, err := Parse([]byte(`{"customer":{"phone":"1"},"id":42}`), Defaults{})
	require.NoError(t, err)

	assert.Equal(t, "Hello Valued Customer, thank you for your order #42! We will process it soon.", Render(o))
}

func TestRenderNormalizesToNFC(t *testing.T) {
	// "José" written with a combining acute accent.
	o := Order{CustomerName: "Jose\u0301", Reference: "1"}
	assert.Contains(t, Render(o), "Jos\u00e9")
}

func TestParseOrderNumberPreferredOverID(t *testing.T) {
	o, err := Parse([]byte(`{"customer":{"phone":"1"},"order_number":"#1001","id":820982911946154508}`), Defaults{})
	require.NoError(t, err)
	assert.Equal(t, "1001", o.Reference)

	o, err = Parse([]byte(`{"customer":{"phone":"1"},"id":820982911946154508}`), Defaults{})
	require.NoError(t, err)
	assert.Equal(t, "820982911946154508", o.Reference)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"malformed json":   `{"customer":`,
		"no customer":      `{"order_number":1}`,
		"no phone":         `{"customer":{"first_name":"Amal"},"order_number":1}`,
		"blank phone":      `{"customer":{"phone":"  "},"order_number":1}`,
		"no reference":     `{"customer":{"phone":"1"}}`,
		"object reference": `{"customer":{"phone":"1"},"id":{}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body), Defaults{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestParseDropsMalformedOptionalFields(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		ignored string
		render  string
	}{
		{
			name:    "empty total falls back to computed total",
			body:    `{"customer":{"phone":"1"},"id":7,"total_price":"","line_items":[{"title":"Mug","quantity":2,"price":"5.00"}]}`,
			ignored: "total_price: ",
			render:  "Total: LKR 10.00",
		},
		{
			name:    "unpriced item falls back to summary",
			body:    `{"customer":{"phone":"1"},"id":7,"line_items":[{"title":"Mug","quantity":1,"price":"N/A"}]}`,
			ignored: "line_items: ",
			render:  "Hello Valued Customer, thank you for your order #7! We will process it soon.",
		},
		{
			name:    "line items not a list",
			body:    `{"customer":{"phone":"1"},"id":7,"line_items":{"title":"Mug"}}`,
			ignored: "line_items: ",
			render:  "thank you for your order #7!",
		},
		{
			name:    "numeric first name",
			body:    `{"customer":{"phone":"1","first_name":42},"id":7}`,
			ignored: "customer.first_name: ",
			render:  "Hello Valued Customer,",
		},
		{
			name:    "numeric currency",
			body:    `{"customer":{"phone":"1"},"id":7,"currency":1,"line_items":[{"title":"Mug","quantity":1,"price":"5"}]}`,
			ignored: "currency: ",
			render:  "1 x LKR 5.00 = LKR 5.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Parse([]byte(tt.body), Defaults{})
			require.NoError(t, err)
			require.Len(t, o.Ignored, 1)
			assert.Contains(t, o.Ignored[0], tt.ignored)
			assert.Contains(t, Render(o), tt.render)
		})
	}
}

func TestParseQuantityAsString(t *testing.T) {
	o, err := Parse([]byte(`{"customer":{"phone":"1"},"id":7,"line_items":[{"title":"Mug","quantity":"2","price":"5.00"}]}`), Defaults{})
	require.NoError(t, err)
	assert.Empty(t, o.Ignored)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Contains(t, Render(o), "2 x LKR 5.00 = LKR 10.00")
}

func TestParseBadQuantityDropsItems(t *testing.T) {
	for _, q := range []string{`"two"`, `"2.5"`, `-1`, `[]`} {
		o, err := Parse([]byte(`{"customer":{"phone":"1"},"id":7,"line_items":[{"title":"Mug","quantity":`+q+`,"price":"5"}]}`), Defaults{})
		require.NoError(t, err, q)
		assert.Empty(t, o.Items, q)
		assert.Len(t, o.Ignored, 1, q)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
	}{
		{"100.00", 10000},
		{"100", 10000},
		{"0.5", 50},
		{".75", 75},
		{"4.995", 500},
		{"4.994", 499},
		{"-3.10", -310},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "1.2.3", "1,00", "abc", "-", "100000000000000000", "99999999999999999999"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestAmountJSON(t *testing.T) {
	var items []LineItem
	err := json.Unmarshal([]byte(`[{"price":"19.90"},{"price":19.9},{"price":2e1},{"price":null}]`), &items)
	require.NoError(t, err)
	assert.Equal(t, Amount(1990), items[0].Price)
	assert.Equal(t, Amount(1990), items[1].Price)
	assert.Equal(t, Amount(2000), items[2].Price)
	assert.Equal(t, Amount(0), items[3].Price)
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "200.00", Amount(20000).String())
	assert.Equal(t, "0.05", Amount(5).String())
	assert.Equal(t, "-1.50", Amount(-150).String())
}

func TestAmountSaturates(t *testing.T) {
	big, err := ParseAmount("92233720368547757")
	require.NoError(t, err)
	assert.Equal(t, "92233720368547757.00", big.String())

	assert.Equal(t, Amount(math.MaxInt64), big.Times(1000))
	assert.Equal(t, Amount(math.MinInt64), big.Times(-1000))
	assert.Equal(t, Amount(math.MaxInt64), Amount(math.MaxInt64).Plus(1))
	assert.Equal(t, Amount(math.MinInt64), Amount(math.MinInt64).Plus(-1))
	assert.Equal(t, Amount(600), Amount(200).Times(3))
	assert.Equal(t, "-92233720368547758.08", Amount(math.MinInt64).String())

	o := Order{Reference: "1", Currency: "LKR", Items: []LineItem{
		{Title: "a", Quantity: 1000, Price: big},
		{Title: "b", Quantity: 1, Price: 100},
	}}
	assert.Equal(t, Amount(math.MaxInt64), o.ItemsTotal())
	assert.NotContains(t, Render(o), "Total: LKR -")
}
