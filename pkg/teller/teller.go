// Package teller is the session surface offered to an authenticated holder:
// deposit, withdraw, show balance, show history and exit.
package teller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidOperation is returned for menu choices outside 1..5.
var ErrInvalidOperation = errors.New("teller: invalid operation")

// ErrSessionEnded is returned when Execute is called after Exit.
var ErrSessionEnded = errors.New("teller: session ended")

// Operation is one of the five session operations.
type Operation int

const (
	Deposit Operation = iota + 1
	Withdraw
	ShowBalance
	ShowHistory
	Exit
)

var operationNames = map[Operation]string{
	Deposit:     "deposit",
	Withdraw:    "withdraw",
	ShowBalance: "balance",
	ShowHistory: "history",
	Exit:        "exit",
}

// String returns the operation name.
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "unknown"
}

// NeedsAmount reports whether the operation takes an amount.
func (o Operation) NeedsAmount() bool {
	return o == Deposit || o == Withdraw
}

// ParseOperation maps a menu choice ("1".."5") or an operation name to an Operation.
func ParseOperation(choice string) (Operation, error) {
	choice = strings.ToLower(strings.TrimSpace(choice))
	if n, err := strconv.Atoi(choice); err == nil {
		op := Operation(n)
		if _, ok := operationNames[op]; ok {
			return op, nil
		}
		return 0, fmt.Errorf("%w: %q", ErrInvalidOperation, choice)
	}
	for op, name := range operationNames {
		if name == choice {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOperation, choice)
}

// Account is the part of *ledger.Account a teller drives.
type Account interface {
	Number() string
	Deposit(ctx context.Context, amount decimal.Decimal) (ledger.Receipt, error)
	Withdraw(ctx context.Context, amount decimal.Decimal) (ledger.Receipt, error)
	Balance() decimal.Decimal
	History(ctx context.Context) (ledger.History, error)
}

// Request is one operation invocation.
type Request struct {
	Op     Operation
	Amount decimal.Decimal
}

// Result is the structured outcome of a request.
type Result struct {
	Op Operation

	// Balance after the operation (all operations except Exit)
	Balance decimal.Decimal

	// Receipt is set for Deposit and Withdraw
	Receipt *ledger.Receipt

	// History is set for ShowHistory
	History *ledger.History

	// Done is true once Exit was executed
	Done bool
}

// Teller serves one authenticated session.
type Teller struct {
	account Account
	logger  *logging.Logger
	done    bool
}

// New starts a session for an authenticated account.
func New(account Account) *Teller {
	return &Teller{
		account: account,
		logger:  logging.L().Named("teller").ForAccount(account.Number()),
	}
}

// Done reports whether Exit has been executed.
func (t *Teller) Done() bool {
	return t.done
}

// Execute runs one request. Errors from the account are returned unchanged,
// so callers match them with errors.Is.
func (t *Teller) Execute(ctx context.Context, req Request) (Result, error) {
	if t.done {
		return Result{Op: req.Op, Done: true}, ErrSessionEnded
	}

	start := time.Now()
	res, err := t.execute(ctx, req)
	t.logger.Debug("operation executed",
		zap.Stringer("operation", req.Op),
		zap.String("outcome", ledger.ClassifyError(err)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, err
}

func (t *Teller) execute(ctx context.Context, req Request) (Result, error) {
	res := Result{Op: req.Op}

	switch req.Op {
	case Deposit, Withdraw:
		var (
			receipt ledger.Receipt
			err     error
		)
		if req.Op == Deposit {
			receipt, err = t.account.Deposit(ctx, req.Amount)
		} else {
			receipt, err = t.account.Withdraw(ctx, req.Amount)
		}
		if err != nil {
			res.Balance = t.account.Balance()
			return res, err
		}
		res.Receipt = &receipt
		res.Balance = receipt.Balance
		return res, nil

	case ShowBalance:
		res.Balance = t.account.Balance()
		return res, nil

	case ShowHistory:
		h, err := t.account.History(ctx)
		if err != nil {
			return res, err
		}
		res.History = &h
		res.Balance = t.account.Balance()
		return res, nil

	case Exit:
		t.done = true
		res.Done = true
		return res, nil

	default:
		return res, fmt.Errorf("%w: %d", ErrInvalidOperation, int(req.Op))
	}
}
