package validation

import (
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"ada@example.com", true},
		{"billing+invoices@acme.co.uk", true},
		{"a@b.io", true},

		// Invalid cases
		{"", false},
		{"not-an-email", false},
		{"@example.com", false},
		{"ada@", false},
		{"ada@example", false}, // no TLD
		{"ada @example.com", false},
		{"ada@exa mple.com", false},
	}

	for _, tc := range tests {
		result := IsValidEmail(tc.email)
		if result != tc.valid {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tc.email, result, tc.valid)
		}
	}
}

func TestIsValidCurrency(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"USD", true},
		{"EUR", true},
		{"GBP", true},

		{"usd", false}, // lowercase
		{"US", false},
		{"DOLLARS", false},
		{"", false},
		{"U$D", false},
	}

	for _, tc := range tests {
		result := IsValidCurrency(tc.code)
		if result != tc.valid {
			t.Errorf("IsValidCurrency(%q) = %v, want %v", tc.code, result, tc.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"  Acme Corp  ", 100, "Acme Corp"},
		{"abcdef", 3, "abc"},
		{"null\x00byte", 100, "nullbyte"},
		{"", 100, ""},
		{"unchanged", 100, "unchanged"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Ada@Example.COM", "ada@example.com"},
		{"  ada@example.com  ", "ada@example.com"},
		{"already@lower.case", "already@lower.case"},
	}

	for _, tc := range tests {
		result := NormalizeEmail(tc.input)
		if result != tc.expected {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}
