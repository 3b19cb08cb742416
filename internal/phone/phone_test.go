package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"94772415566", "94772415566@c.us"},
		{"+94 77-241 5566", "94772415566@c.us"},
		{"(077) 241.5566", "0772415566@c.us"},
		{"  +1 (555) 123-4567  ", "15551234567@c.us"},
		{"", "@c.us"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeEquivalentInputs(t *testing.T) {
	assert.Equal(t, Normalize("94772415566"), Normalize("+94 77-241 5566"))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"+94 77-241 5566", "94771234567", "+1-555-0100"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalizing %q twice", in)
	}
}

func TestNormalizeIgnoresNonASCIIDigits(t *testing.T) {
	// Arabic-Indic digits are not in 0-9 and are dropped.
	assert.Equal(t, "12@c.us", Normalize("1٣2"))
}

func TestFromIdentifier(t *testing.T) {
	assert.Equal(t, "94772415566", FromIdentifier("94772415566@c.us"))
	assert.Equal(t, "94772415566", FromIdentifier("+94 77 241 5566"))
}
