package ledger

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrAccountNotFound", ErrAccountNotFound, true},
		{"wrapped ErrAccountNotFound", fmt.Errorf("account 1: %w", ErrAccountNotFound), true},
		{"log not found is not an account miss", ErrLogNotFound, false},
		{"nil error", nil, false},
		{"custom error", errors.New("custom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsNotFound(tt.err); result != tt.expected {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsPersistence(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrPersistence", ErrPersistence, true},
		{"persistenceError", persistenceError("deposit", "12345", cause), true},
		{"double wrap", persistenceError("deposit", "12345", persistenceError("deposit", "12345", cause)), true},
		{"indeterminate", fmt.Errorf("file log: %w", ErrIndeterminate), true},
		{"raw cause", cause, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsPersistence(tt.err); result != tt.expected {
				t.Errorf("IsPersistence(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestPersistenceError_KeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := persistenceError("withdraw", "12345", cause)

	if !errors.Is(err, cause) {
		t.Errorf("Expected cause to remain matchable, got %v", err)
	}
	if persistenceError("withdraw", "12345", nil) != nil {
		t.Error("Expected nil for nil cause")
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"not found", ErrAccountNotFound, true},
		{"too many attempts", fmt.Errorf("after 3: %w", ErrTooManyAttempts), true},
		{"wrong pin", ErrAuthenticationFailed, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsTerminal(tt.err); result != tt.expected {
				t.Errorf("IsTerminal(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, "ok"},
		{WrapError(ErrCircuitOpen, "redis", "append"), "circuit_open"},
		{persistenceError("deposit", "1", WrapError(ErrCircuitOpen, "redis", "append")), "circuit_open"},
		{WrapError(ErrTimeout, "redis", "read"), "timeout"},
		{ErrInsufficientFunds, "insufficient_funds"},
		{ErrInvalidAmount, "invalid_amount"},
		{ErrAccountNotFound, "account_not_found"},
		{ErrTooManyAttempts, "too_many_attempts"},
		{ErrAuthenticationFailed, "authentication_failed"},
		{ErrSessionClosed, "session_closed"},
		{ErrDuplicateAccount, "duplicate_account"},
		{ErrInvalidAccountNumber, "invalid_account_number"},
		{fmt.Errorf("account 1 deposit: %w", ErrAccountRetired), "account_retired"},
		{ErrMalformedRecord, "malformed_record"},
		{ErrLogNotFound, "log_not_found"},
		{persistenceError("deposit", "1", errors.New("eio")), "persistence"},
		{persistenceError("deposit", "1", fmt.Errorf("%w: %w", ErrIndeterminate, errors.New("eio"))), "indeterminate"},
		{errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.expected {
				t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "file", "append") != nil {
		t.Error("WrapError(nil) should return nil")
	}

	err := WrapError(ErrTimeout, "file", "append")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected wrapped ErrTimeout, got %v", err)
	}
	if err.Error() != "log backend file append: ledger: log operation timeout" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}
