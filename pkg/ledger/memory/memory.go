package memory

import (
	"context"
	"sync"

	"atm-ledger/pkg/ledger"
)

// Store is an in-process LogStore. Logs survive for the lifetime of the Store,
// so a second Open of the same account sees earlier appends.
type Store struct {
	name string

	mu   sync.RWMutex
	logs map[string][]ledger.Transaction
}

// NewStore creates an empty in-memory store.
func NewStore(name string) *Store {
	if name == "" {
		name = "memory"
	}
	return &Store{
		name: name,
		logs: make(map[string][]ledger.Transaction),
	}
}

// Open returns the log for accountNumber.
func (s *Store) Open(accountNumber string) ledger.TransactionLog {
	return &Log{store: s, account: accountNumber}
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Close drops all logs.
func (s *Store) Close() error {
	s.mu.Lock()
	s.logs = make(map[string][]ledger.Transaction)
	s.mu.Unlock()
	return nil
}

// Len returns the number of records held for accountNumber.
func (s *Store) Len(accountNumber string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[accountNumber])
}

// Accounts returns the account numbers that have at least one record.
func (s *Store) Accounts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.logs))
	for k := range s.logs {
		out = append(out, k)
	}
	return out
}

// Log is one account's in-memory log.
type Log struct {
	store   *Store
	account string
}

// Append adds tx to the end of the log.
func (l *Log) Append(ctx context.Context, tx ledger.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.store.mu.Lock()
	l.store.logs[l.account] = append(l.store.logs[l.account], tx)
	l.store.mu.Unlock()
	return nil
}

// ReadAll returns a copy of the log.
func (l *Log) ReadAll(ctx context.Context) ([]ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()

	txs, ok := l.store.logs[l.account]
	if !ok {
		return nil, ledger.ErrLogNotFound
	}
	out := make([]ledger.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}
