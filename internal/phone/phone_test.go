package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain national", "5551234567", "5551234567"},
		{"formatted", "(555) 123-4567", "5551234567"},
		{"country code", "15551234567", "5551234567"},
		{"plus country code", "+1 555 123 4567", "5551234567"},
		{"trunk prefix", "05551234567", "5551234567"},
		{"country code then trunk", "105551234567", "5551234567"},
		{"overlong keeps last digits", "9915551234567", "5551234567"},
		{"short number passes through", "12345", "12345"},
		{"letters dropped", "555-CALL-ME4567", "5554567"},
		{"empty", "", ""},
		{"only junk", "abc-+()", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"+1 (555) 123-4567", "05551234567", "5551234567", "99", ""}
	for _, raw := range inputs {
		once := Normalize(raw)
		assert.Equal(t, once, Normalize(once), "normalizing twice must match normalizing once for %q", raw)
	}
}
