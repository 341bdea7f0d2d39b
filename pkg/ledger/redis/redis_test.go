package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"atm-ledger/pkg/ledger"

	"github.com/shopspring/decimal"
)

func skipIfNoRedis(t *testing.T, s *Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
}

func setupTestRedis(t *testing.T) *Store {
	config := DefaultConfig()
	config.Name = "TestRedis"
	config.KeyPrefix = fmt.Sprintf("test:atm:%d", time.Now().UnixNano())
	config.Location = time.UTC

	s, err := NewStore(config)
	if err != nil {
		t.Skipf("Failed to create Redis client: %v", err)
	}
	skipIfNoRedis(t, s)
	return s
}

func TestNewStore_NoAddress(t *testing.T) {
	_, err := NewStore(Config{})
	if err == nil {
		t.Error("Expected error without addresses")
	}
}

func TestStore_Key(t *testing.T) {
	s := &Store{keys: ledger.NewKeyPattern("atm:ledger", ":")}
	if got := s.Key("12345"); got != "atm:ledger:tx:12345" {
		t.Errorf("Expected atm:ledger:tx:12345, got %s", got)
	}
}

func TestStore_AppendReadAll(t *testing.T) {
	s := setupTestRedis(t)
	defer s.Close()

	ctx := context.Background()
	defer s.Delete(ctx, "12345")

	if s.Name() != "TestRedis" {
		t.Errorf("Expected name 'TestRedis', got '%s'", s.Name())
	}

	log := s.Open("12345")
	if _, err := log.ReadAll(ctx); !errors.Is(err, ledger.ErrLogNotFound) {
		t.Fatalf("Expected ErrLogNotFound, got %v", err)
	}

	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	records := []ledger.Transaction{
		ledger.NewTransaction(ledger.Deposit, decimal.NewFromInt(1000), at),
		ledger.NewTransaction(ledger.Withdrawal, decimal.NewFromInt(500), at),
	}
	for _, tx := range records {
		if err := log.Append(ctx, tx); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := s.Open("12345").ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(got))
	}
	for i := range records {
		if got[i].Record() != records[i].Record() {
			t.Errorf("record %d: expected %q, got %q", i, records[i].Record(), got[i].Record())
		}
	}
}

func TestStore_Delete(t *testing.T) {
	s := setupTestRedis(t)
	defer s.Close()

	ctx := context.Background()
	s.Open("67890").Append(ctx, ledger.NewTransaction(ledger.Deposit, decimal.NewFromInt(1), time.Now()))

	if err := s.Delete(ctx, "67890"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Open("67890").ReadAll(ctx); !errors.Is(err, ledger.ErrLogNotFound) {
		t.Errorf("Expected ErrLogNotFound after delete, got %v", err)
	}
}
