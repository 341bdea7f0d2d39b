package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"atm-ledger/pkg/ledger"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Store keeps every account's log in one append-only table, ordered by a
// serial id. Rows are only ever inserted.
type Store struct {
	db   *sql.DB
	name string
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	Name     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DefaultConfig returns default PostgreSQL configuration.
func DefaultConfig() Config {
	return Config{
		Name:     "postgres",
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "atm_ledger",
		SSLMode:  "disable",
	}
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// NewStore opens a connection pool, pings it and creates the table if needed.
func NewStore(cfg Config) (*Store, error) {
	return Open(cfg.Name, cfg.DSN())
}

// Open is NewStore for a ready-made DSN.
func Open(name, dsn string) (*Store, error) {
	if name == "" {
		name = "postgres"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{db: db, name: name}
	if err := s.initTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init tables: %w", err)
	}

	return s, nil
}

func (s *Store) initTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ledger_transactions (
			id BIGSERIAL PRIMARY KEY,
			account_number TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('Deposit', 'Withdrawal')),
			amount NUMERIC NOT NULL,
			occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_transactions_account ON ledger_transactions(account_number, id)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// Open returns the log for accountNumber.
func (s *Store) Open(accountNumber string) ledger.TransactionLog {
	return &Log{db: s.db, account: accountNumber}
}

// Name returns the backend name.
func (s *Store) Name() string {
	return s.name
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for tests and maintenance tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Log is one account's slice of the ledger_transactions table.
type Log struct {
	db      *sql.DB
	account string
}

// Append inserts one row.
func (l *Log) Append(ctx context.Context, tx ledger.Transaction) error {
	query := `INSERT INTO ledger_transactions (account_number, kind, amount, occurred_at)
			  VALUES ($1, $2, $3, $4)`
	if _, err := l.db.ExecContext(ctx, query, l.account, string(tx.Kind), tx.Amount.String(), tx.Timestamp); err != nil {
		return fmt.Errorf("could not append transaction: %w", err)
	}
	return nil
}

// ReadAll returns the account's rows in insertion order.
func (l *Log) ReadAll(ctx context.Context) ([]ledger.Transaction, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT kind, amount, occurred_at FROM ledger_transactions
		 WHERE account_number = $1 ORDER BY id`, l.account)
	if err != nil {
		return nil, fmt.Errorf("could not read transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var (
			kind   string
			amount string
			at     time.Time
		)
		if err := rows.Scan(&kind, &amount, &at); err != nil {
			return nil, fmt.Errorf("could not scan transaction: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("%w: amount %q: %v", ledger.ErrMalformedRecord, amount, err)
		}
		k := ledger.Kind(kind)
		if !k.Valid() {
			return nil, fmt.Errorf("%w: unknown kind %q", ledger.ErrMalformedRecord, kind)
		}
		txs = append(txs, ledger.Transaction{Kind: k, Amount: d, Timestamp: at.Local()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	if len(txs) == 0 {
		return nil, ledger.ErrLogNotFound
	}
	return txs, nil
}
