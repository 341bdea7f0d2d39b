package ledger

import (
	"errors"
	"fmt"
)

// Ledger and authentication errors.
// Every operation reports one of these explicitly; callers match with errors.Is.
var (
	// ErrAccountNotFound is returned when an account number is not registered
	ErrAccountNotFound = errors.New("ledger: account not found")

	// ErrAuthenticationFailed is returned for a wrong secret while attempts remain
	ErrAuthenticationFailed = errors.New("ledger: authentication failed")

	// ErrTooManyAttempts is returned once the authentication budget is exhausted
	ErrTooManyAttempts = errors.New("ledger: too many authentication attempts")

	// ErrSessionClosed is returned when a secret is submitted to a finished session
	ErrSessionClosed = errors.New("ledger: authentication session closed")

	// ErrInsufficientFunds is returned when a withdrawal exceeds the balance
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInvalidAmount is returned when an amount violates the configured AmountPolicy
	ErrInvalidAmount = errors.New("ledger: invalid amount")

	// ErrDuplicateAccount is returned when an account number is provisioned twice
	ErrDuplicateAccount = errors.New("ledger: duplicate account number")

	// ErrAccountRetired is returned by an account handle that was replaced in its directory
	ErrAccountRetired = errors.New("ledger: account handle retired")

	// ErrInvalidAccountNumber is returned for empty or unsafe account numbers
	ErrInvalidAccountNumber = errors.New("ledger: invalid account number")

	// ErrPersistence wraps any I/O failure while appending to or reading a transaction log
	ErrPersistence = errors.New("ledger: persistence failure")

	// ErrIndeterminate is returned when a failed append may still have left
	// its record in the log. It matches ErrPersistence as well.
	ErrIndeterminate = fmt.Errorf("%w: append outcome unknown", ErrPersistence)

	// ErrLogNotFound is returned by ReadAll when no record was ever appended
	ErrLogNotFound = errors.New("ledger: transaction log not found")

	// ErrMalformedRecord is returned when a persisted line cannot be parsed
	ErrMalformedRecord = errors.New("ledger: malformed transaction record")

	// ErrTimeout is returned when a log operation exceeds its deadline
	ErrTimeout = errors.New("ledger: log operation timeout")

	// ErrCircuitOpen is returned when the log backend circuit breaker is open
	ErrCircuitOpen = errors.New("ledger: circuit breaker open")
)

// IsNotFound reports whether err means the account does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// IsPersistence reports whether err is a durable-write or durable-read failure.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsTerminal reports whether err ends an authentication session.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrTooManyAttempts)
}

// ClassifyError returns a stable label for err, used as a metrics dimension.
func ClassifyError(err error) string {
	if err == nil {
		return "ok"
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, ErrDuplicateAccount):
		return "duplicate_account"
	case errors.Is(err, ErrAccountRetired):
		return "account_retired"
	case errors.Is(err, ErrInvalidAccountNumber):
		return "invalid_account_number"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, ErrLogNotFound):
		return "log_not_found"
	case errors.Is(err, ErrIndeterminate):
		return "indeterminate"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}

// persistenceError marks err as a persistence failure while keeping the cause matchable.
func persistenceError(op, account string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return fmt.Errorf("account %s %s: %w", account, op, err)
	}
	return fmt.Errorf("account %s %s: %w: %w", account, op, ErrPersistence, err)
}

// WrapError adds the backend and operation to a log error.
func WrapError(err error, backend string, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("log backend %s %s: %w", backend, operation, err)
}
