package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	result := WithOperation(logger, "test_operation")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestWithProvider(t *testing.T) {
	logger := slog.Default()
	result := WithProvider(logger, "gmail")
	if result == nil {
		t.Error("WithProvider returned nil")
	}
}

func TestWithAccount(t *testing.T) {
	logger := slog.Default()
	result := WithAccount(logger, "work")
	if result == nil {
		t.Error("WithAccount returned nil")
	}
}

func TestOperationAttr(t *testing.T) {
	attr := Operation("test_op")
	if attr.Key != KeyOperation {
		t.Errorf("Operation key = %q, want %q", attr.Key, KeyOperation)
	}
	if attr.Value.String() != "test_op" {
		t.Errorf("Operation value = %q, want %q", attr.Value.String(), "test_op")
	}
}

func TestProviderAttr(t *testing.T) {
	attr := Provider("imap")
	if attr.Key != KeyProvider {
		t.Errorf("Provider key = %q, want %q", attr.Key, KeyProvider)
	}
	if attr.Value.String() != "imap" {
		t.Errorf("Provider value = %q, want %q", attr.Value.String(), "imap")
	}
}

func TestAccountAttr(t *testing.T) {
	attr := Account("work")
	if attr.Key != KeyAccount {
		t.Errorf("Account key = %q, want %q", attr.Key, KeyAccount)
	}
	if attr.Value.String() != "work" {
		t.Errorf("Account value = %q, want %q", attr.Value.String(), "work")
	}
}

func TestStatusAttr(t *testing.T) {
	attr := Status(StatusSuccess)
	if attr.Key != KeyStatus {
		t.Errorf("Status key = %q, want %q", attr.Key, KeyStatus)
	}
	if attr.Value.String() != StatusSuccess {
		t.Errorf("Status value = %q, want %q", attr.Value.String(), StatusSuccess)
	}
}

func TestErr(t *testing.T) {
	// Test with error
	err := errors.New("test error")
	attr := Err(err)
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	// Test with nil - should return an empty group that slog will omit
	attr = Err(nil)
	// Empty Group has empty key
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		email    string
		wantLen  int  // Expected length of result (0 for empty)
		hasValue bool // Whether result should have a value
	}{
		{"jane@example.com", 21, true}, // "user:" + 16 hex chars
		{"user@gmail.com", 21, true},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got := AnonymizeEmail(tt.email)
			if tt.hasValue {
				if len(got) != tt.wantLen {
					t.Errorf("AnonymizeEmail(%q) length = %d, want %d", tt.email, len(got), tt.wantLen)
				}
				if !strings.HasPrefix(got, "user:") {
					t.Errorf("AnonymizeEmail(%q) = %q, want user: prefix", tt.email, got)
				}
				if strings.Contains(got, tt.email) {
					t.Errorf("AnonymizeEmail(%q) leaked the raw email", tt.email)
				}
			} else if got != "" {
				t.Errorf("AnonymizeEmail(%q) = %q, want empty", tt.email, got)
			}
		})
	}

	// Same email must always hash to the same value for correlation
	if AnonymizeEmail("a@b.com") != AnonymizeEmail("a@b.com") {
		t.Error("AnonymizeEmail is not deterministic")
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken(""); got != "<empty>" {
		t.Errorf("SanitizeToken(\"\") = %q, want <empty>", got)
	}
	got := SanitizeToken("ya29.secret-token-value")
	if strings.Contains(got, "secret") {
		t.Errorf("SanitizeToken leaked token content: %q", got)
	}
	if got != "[token:23 chars]" {
		t.Errorf("SanitizeToken = %q, want [token:23 chars]", got)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"jane@example.com", "example.com"},
		{"not-an-email", ""},
		{"", ""},
		{"a@b@c", ""},
	}

	for _, tt := range tests {
		if got := ExtractDomain(tt.email); got != tt.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}
