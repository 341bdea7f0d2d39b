package ledger

import (
	"context"
)

// TransactionLog is the append-only durable record store of a single account.
type TransactionLog interface {
	// Append durably writes one record. Each call is a separate write;
	// implementations must not buffer across calls.
	Append(ctx context.Context, tx Transaction) error

	// ReadAll returns every record in append order.
	// Returns ErrLogNotFound if nothing was ever appended.
	ReadAll(ctx context.Context) ([]Transaction, error)
}

// LogStore hands out one TransactionLog per account.
type LogStore interface {
	// Open returns the log for accountNumber. It must not create anything
	// durable; logs are created lazily by the first Append.
	Open(accountNumber string) TransactionLog

	// Name identifies the backend (e.g., "file", "redis", "postgres").
	// Used for logging, metrics and debugging.
	Name() string

	// Close releases any resources held by the store.
	Close() error
}

// Mirror receives a copy of every durably appended record.
// Mirrors are best effort: their errors never change an operation's outcome.
type Mirror interface {
	Write(ctx context.Context, accountNumber string, tx Transaction) error
}
