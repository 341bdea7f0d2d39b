package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewTransaction_TruncatesToSecond(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 987654321, time.UTC)
	tx := NewTransaction(Deposit, decimal.NewFromInt(100), at)

	if tx.Timestamp.Nanosecond() != 0 {
		t.Errorf("Expected whole seconds, got %v", tx.Timestamp)
	}
	if tx.Timestamp.Second() != 7 {
		t.Errorf("Expected second 7, got %d", tx.Timestamp.Second())
	}
}

func TestTransaction_Record(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	tests := []struct {
		name     string
		tx       Transaction
		expected string
	}{
		{"deposit", NewTransaction(Deposit, decimal.NewFromInt(1000), at), "Deposit 1000 2024-03-09 14:05:07"},
		{"withdrawal", NewTransaction(Withdrawal, decimal.NewFromInt(500), at), "Withdrawal 500 2024-03-09 14:05:07"},
		{"fractional", NewTransaction(Deposit, decimal.RequireFromString("12.50"), at), "Deposit 12.5 2024-03-09 14:05:07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tx.Record(); got != tt.expected {
				t.Errorf("Record() = %q, want %q", got, tt.expected)
			}
			if tt.tx.String() != tt.tx.Record() {
				t.Error("String() should match Record()")
			}
		})
	}
}

func TestTransaction_Signed(t *testing.T) {
	at := time.Now()
	if got := NewTransaction(Deposit, decimal.NewFromInt(10), at).Signed(); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected 10, got %s", got)
	}
	if got := NewTransaction(Withdrawal, decimal.NewFromInt(10), at).Signed(); !got.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("Expected -10, got %s", got)
	}
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		kind    Kind
		amount  string
		wantErr bool
	}{
		{"deposit", "Deposit 1000 2024-03-09 14:05:07", Deposit, "1000", false},
		{"withdrawal", "Withdrawal 500 2024-03-09 14:05:07", Withdrawal, "500", false},
		{"wide separators", "Deposit  1000  2024-03-09 14:05:07", Deposit, "1000", false},
		{"decimal amount", "Deposit 0.01 2024-03-09 14:05:07", Deposit, "0.01", false},
		{"negative amount", "Deposit -5 2024-03-09 14:05:07", Deposit, "-5", false},
		{"unknown kind", "Transfer 10 2024-03-09 14:05:07", "", "", true},
		{"lowercase kind", "deposit 10 2024-03-09 14:05:07", "", "", true},
		{"bad amount", "Deposit ten 2024-03-09 14:05:07", "", "", true},
		{"missing time", "Deposit 10 2024-03-09", "", "", true},
		{"bad timestamp", "Deposit 10 2024-13-09 14:05:07", "", "", true},
		{"too many fields", "Deposit 10 2024-03-09 14:05:07 extra", "", "", true},
		{"empty", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := ParseRecord(tt.line, time.UTC)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRecord(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedRecord) {
					t.Errorf("Expected ErrMalformedRecord, got %v", err)
				}
				return
			}
			if tx.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, tx.Kind)
			}
			if !tx.Amount.Equal(decimal.RequireFromString(tt.amount)) {
				t.Errorf("Expected amount %s, got %s", tt.amount, tx.Amount)
			}
		})
	}
}

func TestParseRecord_RoundTripsRecord(t *testing.T) {
	loc := time.FixedZone("ATM", 5*3600)
	original := NewTransaction(Withdrawal, decimal.RequireFromString("250.75"), time.Date(2023, 12, 31, 23, 59, 59, 0, loc))

	parsed, err := ParseRecord(original.Record(), loc)
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	if parsed.Kind != original.Kind || !parsed.Amount.Equal(original.Amount) || !parsed.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Expected %v, got %v", original, parsed)
	}
}

func TestParseRecord_NilLocationUsesLocal(t *testing.T) {
	tx, err := ParseRecord("Deposit 1 2024-01-01 00:00:00", nil)
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	if tx.Timestamp.Location() != time.Local {
		t.Errorf("Expected time.Local, got %v", tx.Timestamp.Location())
	}
}

func TestParseRecords(t *testing.T) {
	lines := []string{
		"Deposit 1000 2024-03-09 14:05:07",
		"",
		"Withdrawal 500 2024-03-09 14:06:00",
		"   ",
	}

	txs, err := ParseRecords(lines, time.UTC)
	if err != nil {
		t.Fatalf("ParseRecords failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Kind != Deposit || txs[1].Kind != Withdrawal {
		t.Errorf("Unexpected order: %v", txs)
	}
	if !Net(txs).Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected net 500, got %s", Net(txs))
	}
}

func TestParseRecords_ReportsLine(t *testing.T) {
	_, err := ParseRecords([]string{"Deposit 1 2024-01-01 00:00:00", "garbage"}, time.UTC)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("Expected ErrMalformedRecord, got %v", err)
	}
	if got := err.Error(); got[:6] != "line 2" {
		t.Errorf("Expected error to name line 2, got %q", got)
	}
}

func TestNet_Empty(t *testing.T) {
	if !Net(nil).IsZero() {
		t.Error("Expected zero net for no transactions")
	}
}

func TestTransaction_Equal(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	tx := NewTransaction(Withdrawal, decimal.NewFromInt(200), at)

	elsewhere := NewTransaction(Withdrawal, decimal.RequireFromString("200.00"), at.In(time.FixedZone("UTC+2", 2*60*60)))
	if !tx.Equal(elsewhere) {
		t.Errorf("Expected %v to equal %v", tx, elsewhere)
	}
	if tx.Equal(NewTransaction(Deposit, decimal.NewFromInt(200), at)) {
		t.Error("Expected different kinds to differ")
	}
	if tx.Equal(NewTransaction(Withdrawal, decimal.NewFromInt(200), at.Add(time.Second))) {
		t.Error("Expected different timestamps to differ")
	}
}
