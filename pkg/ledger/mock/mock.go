package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"atm-ledger/pkg/ledger"
)

// Log is a mock TransactionLog for testing.
// It allows injecting custom behavior for each method and tracks call counts.
// Without hooks it behaves like a real in-memory log.
type Log struct {
	// Function hooks - set these to customize behavior
	AppendFunc  func(ctx context.Context, tx ledger.Transaction) error
	ReadAllFunc func(ctx context.Context) ([]ledger.Transaction, error)

	mu      sync.Mutex
	records []ledger.Transaction
	created bool

	// Call tracking (must use atomic operations for race-free access)
	appendCalls  int64
	readAllCalls int64
}

// Append implements TransactionLog.Append with optional custom behavior.
func (m *Log) Append(ctx context.Context, tx ledger.Transaction) error {
	atomic.AddInt64(&m.appendCalls, 1)
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx)
	}
	m.mu.Lock()
	m.records = append(m.records, tx)
	m.created = true
	m.mu.Unlock()
	return nil
}

// ReadAll implements TransactionLog.ReadAll with optional custom behavior.
func (m *Log) ReadAll(ctx context.Context) ([]ledger.Transaction, error) {
	atomic.AddInt64(&m.readAllCalls, 1)
	if m.ReadAllFunc != nil {
		return m.ReadAllFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return nil, ledger.ErrLogNotFound
	}
	out := make([]ledger.Transaction, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Seed pre-populates the default in-memory records.
func (m *Log) Seed(txs ...ledger.Transaction) {
	m.mu.Lock()
	m.records = append(m.records, txs...)
	m.created = true
	m.mu.Unlock()
}

// AppendCalls returns the number of Append calls (thread-safe).
func (m *Log) AppendCalls() int {
	return int(atomic.LoadInt64(&m.appendCalls))
}

// ReadAllCalls returns the number of ReadAll calls (thread-safe).
func (m *Log) ReadAllCalls() int {
	return int(atomic.LoadInt64(&m.readAllCalls))
}

// Store is a mock LogStore handing out one mock Log per account.
type Store struct {
	NameFunc  func() string
	CloseFunc func() error

	// NewLog, when set, builds the log for a newly opened account.
	NewLog func(accountNumber string) *Log

	mu   sync.Mutex
	logs map[string]*Log

	closeCalls int64
}

// NewStore creates a mock store with default behavior.
func NewStore(name string) *Store {
	return &Store{
		NameFunc: func() string { return name },
		logs:     make(map[string]*Log),
	}
}

// Open returns the mock log for accountNumber, creating it on first use.
func (s *Store) Open(accountNumber string) ledger.TransactionLog {
	return s.Log(accountNumber)
}

// Log returns the concrete mock log for accountNumber.
func (s *Store) Log(accountNumber string) *Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logs == nil {
		s.logs = make(map[string]*Log)
	}
	l, ok := s.logs[accountNumber]
	if !ok {
		if s.NewLog != nil {
			l = s.NewLog(accountNumber)
		} else {
			l = &Log{}
		}
		s.logs[accountNumber] = l
	}
	return l
}

// Name implements LogStore.Name with optional custom behavior.
func (s *Store) Name() string {
	if s.NameFunc != nil {
		return s.NameFunc()
	}
	return "mock"
}

// Close implements LogStore.Close with optional custom behavior.
func (s *Store) Close() error {
	atomic.AddInt64(&s.closeCalls, 1)
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}

// CloseCalls returns the number of Close calls (thread-safe).
func (s *Store) CloseCalls() int {
	return int(atomic.LoadInt64(&s.closeCalls))
}
