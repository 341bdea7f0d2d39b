package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the second-precision layout used in persisted records.
const TimestampLayout = "2006-01-02 15:04:05"

// Kind is the direction of a transaction.
type Kind string

const (
	// Deposit credits the account.
	Deposit Kind = "Deposit"
	// Withdrawal debits the account.
	Withdrawal Kind = "Withdrawal"
)

// Valid reports whether k is a known transaction kind.
func (k Kind) Valid() bool {
	return k == Deposit || k == Withdrawal
}

// Transaction is one immutable ledger entry.
type Transaction struct {
	Kind      Kind            `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewTransaction stamps a transaction with t truncated to whole seconds.
func NewTransaction(kind Kind, amount decimal.Decimal, t time.Time) Transaction {
	return Transaction{Kind: kind, Amount: amount, Timestamp: t.Truncate(time.Second)}
}

// Equal reports whether t and o describe the same entry. Timestamps are
// compared as instants so records read back in another location still match.
func (t Transaction) Equal(o Transaction) bool {
	return t.Kind == o.Kind && t.Amount.Equal(o.Amount) && t.Timestamp.Equal(o.Timestamp)
}

// Signed returns the amount as it applies to the balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == Withdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Record renders t as a single log line without the trailing newline:
//
//	<kind> <amount> <YYYY-MM-DD HH:MM:SS>
func (t Transaction) Record() string {
	return fmt.Sprintf("%s %s %s", t.Kind, t.Amount.String(), t.Timestamp.Format(TimestampLayout))
}

// String implements fmt.Stringer.
func (t Transaction) String() string {
	return t.Record()
}

// ParseRecord parses one log line produced by Record.
// Runs of spaces between fields are accepted so logs written with wider
// separators remain readable. Timestamps are interpreted in loc.
func ParseRecord(line string, loc *time.Location) (Transaction, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return Transaction{}, fmt.Errorf("%w: want 4 fields, got %d in %q", ErrMalformedRecord, len(fields), line)
	}

	kind := Kind(fields[0])
	if !kind.Valid() {
		return Transaction{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedRecord, fields[0])
	}

	amount, err := decimal.NewFromString(fields[1])
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: amount %q: %v", ErrMalformedRecord, fields[1], err)
	}

	if loc == nil {
		loc = time.Local
	}
	ts, err := time.ParseInLocation(TimestampLayout, fields[2]+" "+fields[3], loc)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedRecord, err)
	}

	return Transaction{Kind: kind, Amount: amount, Timestamp: ts}, nil
}

// ParseRecords parses lines in order, skipping blank ones.
// The first malformed line aborts parsing and its 1-based line number is reported.
func ParseRecords(lines []string, loc *time.Location) ([]Transaction, error) {
	out := make([]Transaction, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tx, err := ParseRecord(line, loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// Net sums the signed amounts of txs.
func Net(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Signed())
	}
	return total
}
