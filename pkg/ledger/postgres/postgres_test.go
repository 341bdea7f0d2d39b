package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"atm-ledger/pkg/ledger"

	"github.com/shopspring/decimal"
)

func setupTestPostgres(t *testing.T) *Store {
	dsn := os.Getenv("ATM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ATM_TEST_POSTGRES_DSN not set")
	}

	s, err := Open("TestPostgres", dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	return s
}

func testAccount(t *testing.T, s *Store) string {
	number := fmt.Sprintf("test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		s.DB().Exec(`DELETE FROM ledger_transactions WHERE account_number = $1`, number)
	})
	return number
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	expected := "host=localhost port=5432 user=postgres password=postgres dbname=atm_ledger sslmode=disable"
	if got := cfg.DSN(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestStore_AppendReadAll(t *testing.T) {
	s := setupTestPostgres(t)
	defer s.Close()

	ctx := context.Background()
	number := testAccount(t, s)

	if s.Name() != "TestPostgres" {
		t.Errorf("Expected name 'TestPostgres', got '%s'", s.Name())
	}

	if _, err := s.Open(number).ReadAll(ctx); !errors.Is(err, ledger.ErrLogNotFound) {
		t.Fatalf("Expected ErrLogNotFound, got %v", err)
	}

	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	records := []ledger.Transaction{
		ledger.NewTransaction(ledger.Deposit, decimal.RequireFromString("1000.50"), at),
		ledger.NewTransaction(ledger.Withdrawal, decimal.NewFromInt(500), at.Add(time.Second)),
	}
	for _, tx := range records {
		if err := s.Open(number).Append(ctx, tx); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := s.Open(number).ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(got))
	}
	for i := range records {
		if got[i].Kind != records[i].Kind || !got[i].Amount.Equal(records[i].Amount) || !got[i].Timestamp.Equal(records[i].Timestamp) {
			t.Errorf("record %d: expected %v, got %v", i, records[i], got[i])
		}
	}
}

func TestStore_AccountsAreIsolated(t *testing.T) {
	s := setupTestPostgres(t)
	defer s.Close()

	ctx := context.Background()
	a := testAccount(t, s)
	b := a + "-other"
	t.Cleanup(func() {
		s.DB().Exec(`DELETE FROM ledger_transactions WHERE account_number = $1`, b)
	})

	s.Open(a).Append(ctx, ledger.NewTransaction(ledger.Deposit, decimal.NewFromInt(1), time.Now()))
	if _, err := s.Open(b).ReadAll(ctx); !errors.Is(err, ledger.ErrLogNotFound) {
		t.Errorf("Expected ErrLogNotFound, got %v", err)
	}
}
