package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "formatted mobile with country code",
			raw:      "+55 (11) 98765-4321",
			expected: "5511987654321",
		},
		{
			name:     "national mobile without country code",
			raw:      "11987654321",
			expected: "5511987654321",
		},
		{
			name:     "national landline without country code",
			raw:      "1133334444",
			expected: "551133334444",
		},
		{
			name:     "leading trunk zero is stripped",
			raw:      "011987654321",
			expected: "5511987654321",
		},
		{
			name:     "already normalized",
			raw:      "5511987654321",
			expected: "5511987654321",
		},
		{
			name:     "long foreign number keeps its digits",
			raw:      "4915123456789",
			expected: "4915123456789",
		},
		{
			name:     "empty input",
			raw:      "",
			expected: "55",
		},
		{
			name:     "punctuation only",
			raw:      "()- .",
			expected: "55",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhone(tt.raw))
		})
	}
}

func TestIsValidBrazilianPhone(t *testing.T) {
	tests := []struct {
		name       string
		normalized string
		valid      bool
	}{
		{
			name:       "valid mobile",
			normalized: "5511987654321",
			valid:      true,
		},
		{
			name:       "valid landline",
			normalized: "551133334444",
			valid:      true,
		},
		{
			name:       "mobile missing the leading nine",
			normalized: "5511887654321",
			valid:      false,
		},
		{
			name:       "area code too low",
			normalized: "5510987654321",
			valid:      false,
		},
		{
			name:       "wrong country code",
			normalized: "5411987654321",
			valid:      false,
		},
		{
			name:       "too short",
			normalized: "55119876",
			valid:      false,
		},
		{
			name:       "too long",
			normalized: "55119876543210",
			valid:      false,
		},
		{
			name:       "empty",
			normalized: "",
			valid:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidBrazilianPhone(tt.normalized))
		})
	}
}
