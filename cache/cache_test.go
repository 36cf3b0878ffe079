package cache

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"empty key", "", ErrInvalidKey},
		{"hex digest", "3f2a9c0d1e4b5a6978c1d2e3f4a5b6c7", nil},
		{"reserved identifier", "PATHCACHE_keys", nil},
		{"too long", strings.Repeat("x", MaxKeyLength+1), ErrKeyTooLong},
		{"contains newline", "key\nwith\nnewlines", ErrInvalidKey},
		{"contains carriage return", "key\rwith\rreturns", ErrInvalidKey},
		{"whitespace only", "   ", ErrInvalidKey},
		{"max length exactly", strings.Repeat("x", MaxKeyLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); err != tt.wantErr {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		err     error
		wantMsg string
	}{
		{ErrInvalidKey, "cache: key is invalid"},
		{ErrKeyTooLong, "cache: key exceeds max length"},
		{ErrNotSupported, "cache: operation not supported by store"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.wantMsg {
			t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
		}
	}
}
