package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// reconcileTimeout bounds the log read that settles a failed append.
const reconcileTimeout = 5 * time.Second

// SecretVerifier compares a candidate secret with a stored digest.
type SecretVerifier interface {
	Verify(secret []byte, digest string) bool
}

// AccountConfig carries everything needed to construct an Account.
type AccountConfig struct {
	Number         string
	Holder         string
	Type           string
	Digest         string
	InitialBalance decimal.Decimal

	// Verifier checks candidate secrets against Digest (required)
	Verifier SecretVerifier

	// Log is this account's durable record store (required)
	Log TransactionLog

	// Backend names the log backend for logging and metrics
	Backend string

	Policy  Policy
	Mirror  Mirror
	Metrics metrics.Collector
}

// Receipt describes the outcome of a successful deposit or withdrawal.
type Receipt struct {
	Transaction Transaction
	Balance     decimal.Decimal

	// Durable is false only under WarnAndContinue when the write failed.
	Durable bool

	// PersistErr holds the wrapped ErrPersistence when Durable is false.
	PersistErr error
}

// History is the durable transaction history of an account.
type History struct {
	Transactions []Transaction

	// Found is false when the account has never persisted a transaction.
	Found bool
}

// Account holds a balance, its in-memory transaction cache and its durable log.
// Mutations and log appends for one account are serialized by mu.
type Account struct {
	number      string
	holder      string
	accountType string
	digest      string
	initial     decimal.Decimal

	verifier SecretVerifier
	log      TransactionLog
	backend  string
	policy   Policy
	mirror   Mirror
	metrics  metrics.Collector
	logger   *logging.Logger

	mu           sync.RWMutex
	balance      decimal.Decimal
	transactions []Transaction

	// stale is set when an append failed and the log could not be re-read;
	// the next mutation reloads from the log first.
	stale bool

	retired bool

	sf singleflight.Group
}

// NewAccount creates an account with the given configuration.
// The in-memory cache starts empty; call Restore to seed it from the log.
func NewAccount(config AccountConfig) (*Account, error) {
	if err := ValidateAccountNumber(config.Number); err != nil {
		return nil, err
	}
	if config.Verifier == nil {
		return nil, errors.New("ledger: account requires a secret verifier")
	}
	if config.Log == nil {
		return nil, errors.New("ledger: account requires a transaction log")
	}
	if err := config.Policy.Validate(); err != nil {
		return nil, err
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}
	if config.Backend == "" {
		config.Backend = "unknown"
	}

	return &Account{
		number:      config.Number,
		holder:      config.Holder,
		accountType: config.Type,
		digest:      config.Digest,
		initial:     config.InitialBalance,
		verifier:    config.Verifier,
		log:         config.Log,
		backend:     config.Backend,
		policy:      config.Policy.withDefaults(),
		mirror:      config.Mirror,
		metrics:     config.Metrics,
		logger:      logging.L().Named("ledger").ForAccount(config.Number),
		balance:     config.InitialBalance,
	}, nil
}

// Number returns the immutable account number.
func (a *Account) Number() string { return a.number }

// Holder returns the account holder name.
func (a *Account) Holder() string { return a.holder }

// Type returns the account type (e.g., "Savings").
func (a *Account) Type() string { return a.accountType }

// InitialBalance returns the balance the account was provisioned with.
func (a *Account) InitialBalance() decimal.Decimal { return a.initial }

// Authenticate reports whether candidate matches the stored digest.
// It keeps no state; attempt counting belongs to the authentication session.
func (a *Account) Authenticate(candidate string) bool {
	return a.verifier.Verify([]byte(candidate), a.digest)
}

// Balance returns a snapshot of the current balance.
func (a *Account) Balance() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance
}

// Retire makes every later Deposit and Withdraw on this handle fail with
// ErrAccountRetired. It waits for an in-flight mutation to finish.
func (a *Account) Retire() {
	a.mu.Lock()
	a.retired = true
	a.mu.Unlock()
}

// Transactions returns a copy of the in-memory transaction cache.
func (a *Account) Transactions() []Transaction {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Transaction, len(a.transactions))
	copy(out, a.transactions)
	return out
}

// Deposit credits amount and records a Deposit transaction.
func (a *Account) Deposit(ctx context.Context, amount decimal.Decimal) (Receipt, error) {
	start := time.Now()
	receipt, err := a.deposit(ctx, amount)
	a.metrics.RecordOperation("deposit", ClassifyError(err), time.Since(start))
	return receipt, err
}

func (a *Account) deposit(ctx context.Context, amount decimal.Decimal) (Receipt, error) {
	if err := a.checkAmount(amount); err != nil {
		return Receipt{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ready(ctx, "deposit"); err != nil {
		return Receipt{}, err
	}

	tx := NewTransaction(Deposit, amount, a.now())
	return a.commit(ctx, "deposit", tx, a.balance.Add(amount))
}

// Withdraw debits amount and records a Withdrawal transaction.
// If amount exceeds the balance it fails with ErrInsufficientFunds and
// neither the balance nor the transaction cache change.
func (a *Account) Withdraw(ctx context.Context, amount decimal.Decimal) (Receipt, error) {
	start := time.Now()
	receipt, err := a.withdraw(ctx, amount)
	a.metrics.RecordOperation("withdraw", ClassifyError(err), time.Since(start))
	return receipt, err
}

func (a *Account) withdraw(ctx context.Context, amount decimal.Decimal) (Receipt, error) {
	if err := a.checkAmount(amount); err != nil {
		return Receipt{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ready(ctx, "withdraw"); err != nil {
		return Receipt{}, err
	}

	if amount.GreaterThan(a.balance) {
		a.logger.Info("withdrawal refused",
			zap.String("amount", amount.String()),
			zap.String("balance", a.balance.String()),
		)
		return Receipt{}, fmt.Errorf("withdraw %s from balance %s: %w", amount, a.balance, ErrInsufficientFunds)
	}

	tx := NewTransaction(Withdrawal, amount, a.now())
	return a.commit(ctx, "withdraw", tx, a.balance.Sub(amount))
}

// commit persists tx and then applies it. Must be called with mu held.
func (a *Account) commit(ctx context.Context, op string, tx Transaction, next decimal.Decimal) (Receipt, error) {
	if err := a.log.Append(ctx, tx); err != nil {
		perr := persistenceError(op, a.number, err)

		if a.policy.Durability == Rollback {
			return a.rollback(ctx, op, tx, perr)
		}

		a.apply(tx, next)
		a.metrics.RecordDurabilityGap(a.backend)
		a.logger.Warn("append failed, mutation kept without durable record",
			zap.String("operation", op),
			zap.String("backend", a.backend),
			zap.String("balance", next.String()),
			zap.Error(err),
		)
		return Receipt{Transaction: tx, Balance: next, Durable: false, PersistErr: perr}, nil
	}

	a.apply(tx, next)
	a.mirrorWrite(ctx, tx)

	return Receipt{Transaction: tx, Balance: next, Durable: true}, nil
}

// rollback settles a failed append under Rollback. A backend may fail after
// the record was stored, so unless the request was rejected outright the log
// is re-read and in-memory state replaced by it. If the record turns out to
// be there the operation succeeds. Must be called with mu held.
func (a *Account) rollback(ctx context.Context, op string, tx Transaction, perr error) (Receipt, error) {
	if errors.Is(perr, ErrCircuitOpen) {
		a.logger.Error("append rejected, mutation rolled back",
			zap.String("operation", op),
			zap.String("backend", a.backend),
			zap.Error(perr),
		)
		return Receipt{}, perr
	}

	before := len(a.transactions)
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()

	if err := a.reload(rctx); err != nil {
		a.stale = true
		a.logger.Error("append failed and log unreadable, account marked stale",
			zap.String("operation", op),
			zap.String("backend", a.backend),
			zap.Error(perr),
			zap.NamedError("read_error", err),
		)
		return Receipt{}, perr
	}

	if n := len(a.transactions); n > before && a.transactions[n-1].Equal(tx) {
		a.logger.Warn("append reported failure but the record is in the log",
			zap.String("operation", op),
			zap.String("backend", a.backend),
			zap.Error(perr),
		)
		a.mirrorWrite(ctx, tx)
		return Receipt{Transaction: tx, Balance: a.balance, Durable: true}, nil
	}

	a.logger.Error("append failed, mutation rolled back",
		zap.String("operation", op),
		zap.String("backend", a.backend),
		zap.Error(perr),
	)
	return Receipt{}, perr
}

// ready refuses mutations on a retired handle and reloads an account left
// stale by an earlier failed append. Must be called with mu held.
func (a *Account) ready(ctx context.Context, op string) error {
	if a.retired {
		return fmt.Errorf("account %s %s: %w", a.number, op, ErrAccountRetired)
	}
	if !a.stale {
		return nil
	}
	if err := a.reload(ctx); err != nil {
		return persistenceError(op, a.number, err)
	}
	a.logger.Info("stale account reloaded from log",
		zap.String("balance", a.balance.String()),
	)
	return nil
}

func (a *Account) mirrorWrite(ctx context.Context, tx Transaction) {
	if a.mirror == nil {
		return
	}
	if err := a.mirror.Write(ctx, a.number, tx); err != nil {
		a.logger.Debug("mirror write skipped", zap.Error(err))
	}
}

func (a *Account) now() time.Time {
	return a.policy.Clock().In(a.policy.Location)
}

// apply updates in-memory state. Must be called with mu held.
func (a *Account) apply(tx Transaction, next decimal.Decimal) {
	a.balance = next
	a.transactions = append(a.transactions, tx)
}

func (a *Account) checkAmount(amount decimal.Decimal) error {
	if a.policy.Amounts == RequirePositive && !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, amount)
	}
	return nil
}

// History reads the full durable log. Concurrent calls share one read.
func (a *Account) History(ctx context.Context) (History, error) {
	start := time.Now()

	v, err, _ := a.sf.Do("history", func() (interface{}, error) {
		a.mu.RLock()
		defer a.mu.RUnlock()
		return a.log.ReadAll(ctx)
	})

	if errors.Is(err, ErrLogNotFound) {
		a.metrics.RecordOperation("history", "ok", time.Since(start))
		return History{Transactions: []Transaction{}, Found: false}, nil
	}
	if err != nil {
		err = persistenceError("history", a.number, err)
		a.metrics.RecordOperation("history", ClassifyError(err), time.Since(start))
		return History{}, err
	}

	shared := v.([]Transaction)
	txs := make([]Transaction, len(shared))
	copy(txs, shared)

	a.metrics.RecordOperation("history", "ok", time.Since(start))
	return History{Transactions: txs, Found: true}, nil
}

// Restore reloads the in-memory cache from the durable log and replays it
// onto the provisioning balance. Any cached, non-durable entries are dropped.
func (a *Account) Restore(ctx context.Context) error {
	start := time.Now()
	err := a.restore(ctx)
	a.metrics.RecordOperation("restore", ClassifyError(err), time.Since(start))
	return err
}

func (a *Account) restore(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.reload(ctx); err != nil {
		return persistenceError("restore", a.number, err)
	}
	return nil
}

// reload replaces in-memory state with the durable log replayed onto the
// provisioning balance. Must be called with mu held.
func (a *Account) reload(ctx context.Context) error {
	txs, err := a.log.ReadAll(ctx)
	if errors.Is(err, ErrLogNotFound) {
		txs, err = nil, nil
	}
	if err != nil {
		return err
	}

	a.transactions = append([]Transaction(nil), txs...)
	a.balance = a.initial.Add(Net(txs))
	a.stale = false

	if a.balance.IsNegative() {
		a.logger.Warn("restored balance is negative",
			zap.String("balance", a.balance.String()),
			zap.Int("transactions", len(txs)),
		)
	}
	a.logger.Debug("account restored",
		zap.Int("transactions", len(txs)),
		zap.String("balance", a.balance.String()),
	)
	return nil
}
