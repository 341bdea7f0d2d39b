// Package directory registers accounts by number and runs the PIN
// authentication protocol in front of them.
package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"atm-ledger/pkg/auth"
	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DuplicatePolicy decides what AddAccount does with an already registered number.
type DuplicatePolicy int

const (
	// RejectDuplicates fails the second registration with ErrDuplicateAccount.
	RejectDuplicates DuplicatePolicy = iota
	// ReplaceDuplicates lets the last registration win. The replaced handle
	// is retired so only one handle ever writes to an account's log.
	ReplaceDuplicates
)

// String returns the configuration name of the policy.
func (p DuplicatePolicy) String() string {
	switch p {
	case RejectDuplicates:
		return "reject"
	case ReplaceDuplicates:
		return "replace"
	default:
		return "unknown"
	}
}

// ParseDuplicatePolicy accepts "reject" or "replace".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return RejectDuplicates, nil
	case "replace":
		return ReplaceDuplicates, nil
	default:
		return RejectDuplicates, fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// Options configures a Directory.
type Options struct {
	// Store hands out the per-account transaction logs (required)
	Store ledger.LogStore

	// Hasher digests provisioning secrets (default: SHA-256)
	Hasher auth.Hasher

	// Policy is shared by every account
	Policy ledger.Policy

	Duplicates DuplicatePolicy

	// MaxAttempts per authentication session (default: 3)
	MaxAttempts int

	// Mirror, when set, receives every durable record. If it implements
	// io.Closer it is closed by Directory.Close.
	Mirror ledger.Mirror

	Metrics metrics.Collector
}

// Provision describes an account to register.
type Provision struct {
	Number         string
	Holder         string
	Type           string
	InitialBalance decimal.Decimal

	// Secret is hashed immediately and never retained.
	Secret string

	// Digest, when set, is used as the stored digest instead of hashing Secret.
	Digest string
}

// Summary is the public, non-sensitive description of an account.
type Summary struct {
	Number string `json:"number"`
	Holder string `json:"holder"`
	Type   string `json:"type"`
}

// Prompt tells a SecretSource which attempt it is answering.
type Prompt struct {
	Account   string
	Attempt   int
	Remaining int

	// PreviousFailed is true when the last submission was wrong.
	PreviousFailed bool
}

// SecretSource supplies candidate secrets during authentication,
// typically by reading from a terminal with echo disabled.
type SecretSource interface {
	Secret(ctx context.Context, prompt Prompt) (string, error)
}

// SecretFunc adapts a function to SecretSource.
type SecretFunc func(ctx context.Context, prompt Prompt) (string, error)

// Secret calls f.
func (f SecretFunc) Secret(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// Directory is the registry of accounts.
type Directory struct {
	store       ledger.LogStore
	hasher      auth.Hasher
	policy      ledger.Policy
	duplicates  DuplicatePolicy
	maxAttempts int
	mirror      ledger.Mirror
	metrics     metrics.Collector
	logger      *logging.Logger

	mu       sync.RWMutex
	accounts map[string]*ledger.Account
}

// New creates an empty directory.
func New(opts Options) (*Directory, error) {
	if opts.Store == nil {
		return nil, errors.New("directory: a log store is required")
	}
	if opts.Hasher == nil {
		opts.Hasher = auth.SHA256Hasher{}
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = auth.DefaultMaxAttempts
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpCollector{}
	}

	return &Directory{
		store:       opts.Store,
		hasher:      opts.Hasher,
		policy:      opts.Policy,
		duplicates:  opts.Duplicates,
		maxAttempts: opts.MaxAttempts,
		mirror:      opts.Mirror,
		metrics:     opts.Metrics,
		logger:      logging.L().Named("directory"),
		accounts:    make(map[string]*ledger.Account),
	}, nil
}

// AddAccount hashes the secret, opens the account's log, restores its
// history and registers it.
func (d *Directory) AddAccount(ctx context.Context, p Provision) (*ledger.Account, error) {
	if err := ledger.ValidateAccountNumber(p.Number); err != nil {
		return nil, err
	}

	d.mu.RLock()
	_, exists := d.accounts[p.Number]
	d.mu.RUnlock()
	if exists && d.duplicates == RejectDuplicates {
		return nil, fmt.Errorf("account %s: %w", p.Number, ledger.ErrDuplicateAccount)
	}

	digest := p.Digest
	if digest == "" {
		digest = d.hasher.Hash([]byte(p.Secret))
	}

	acct, err := ledger.NewAccount(ledger.AccountConfig{
		Number:         p.Number,
		Holder:         p.Holder,
		Type:           p.Type,
		Digest:         digest,
		InitialBalance: p.InitialBalance,
		Verifier:       d.hasher,
		Log:            d.store.Open(p.Number),
		Backend:        d.store.Name(),
		Policy:         d.policy,
		Mirror:         d.mirror,
		Metrics:        d.metrics,
	})
	if err != nil {
		return nil, err
	}

	if err := acct.Restore(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Re-check under the write lock; another provisioning may have won the race.
	if old, exists := d.accounts[p.Number]; exists {
		if d.duplicates == RejectDuplicates {
			return nil, fmt.Errorf("account %s: %w", p.Number, ledger.ErrDuplicateAccount)
		}
		old.Retire()
		// Pick up anything the old handle wrote since the first restore.
		if err := acct.Restore(ctx); err != nil {
			delete(d.accounts, p.Number)
			d.logger.Error("account replacement failed, number unregistered",
				zap.String("account", p.Number),
				zap.Error(err),
			)
			return nil, err
		}
		d.logger.Warn("account replaced", zap.String("account", p.Number))
	}
	d.accounts[p.Number] = acct

	d.logger.Info("account registered",
		zap.String("account", p.Number),
		zap.String("type", p.Type),
		zap.Int("restored_transactions", len(acct.Transactions())),
	)
	return acct, nil
}

// Lookup returns the account registered under number.
func (d *Directory) Lookup(number string) (*ledger.Account, error) {
	d.mu.RLock()
	acct, ok := d.accounts[number]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("account %s: %w", number, ledger.ErrAccountNotFound)
	}
	return acct, nil
}

// Begin looks up number and starts a fresh authentication session for
// callers that submit secrets themselves.
func (d *Directory) Begin(number string) (*auth.Session, *ledger.Account, error) {
	acct, err := d.Lookup(number)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewSession(acct, d.maxAttempts), acct, nil
}

// Authenticate resolves number and runs the authentication protocol,
// pulling secrets from src until the session is authenticated or rejected.
// An unknown number fails with ErrAccountNotFound without prompting.
func (d *Directory) Authenticate(ctx context.Context, number string, src SecretSource) (*ledger.Account, error) {
	session, acct, err := d.Begin(number)
	if err != nil {
		d.metrics.RecordAuthOutcome(ledger.ClassifyError(err))
		d.logger.Info("authentication for unknown account", zap.String("account", number))
		return nil, err
	}

	logger := d.logger.ForAccount(number).ForSession(uuid.NewString())
	failed := false

	for {
		if err := ctx.Err(); err != nil {
			d.metrics.RecordAuthOutcome("aborted")
			return nil, err
		}

		secret, err := src.Secret(ctx, Prompt{
			Account:        number,
			Attempt:        session.Attempts() + 1,
			Remaining:      session.Remaining(),
			PreviousFailed: failed,
		})
		if err != nil {
			d.metrics.RecordAuthOutcome("aborted")
			logger.Info("authentication aborted", zap.Error(err))
			return nil, fmt.Errorf("read secret: %w", err)
		}

		state, err := session.Submit(secret)
		d.metrics.RecordAuthAttempt(state == auth.Authenticated)

		switch {
		case state == auth.Authenticated:
			d.metrics.RecordAuthOutcome("authenticated")
			logger.Info("authenticated", zap.Int("attempts", session.Attempts()))
			return acct, nil
		case errors.Is(err, ledger.ErrAuthenticationFailed):
			failed = true
			logger.Info("wrong secret", zap.Int("remaining", session.Remaining()))
		default:
			d.metrics.RecordAuthOutcome(ledger.ClassifyError(err))
			logger.Warn("authentication rejected", zap.Int("attempts", session.Attempts()))
			return nil, err
		}
	}
}

// Accounts lists the registered accounts ordered by number.
func (d *Directory) Accounts() []Summary {
	d.mu.RLock()
	out := make([]Summary, 0, len(d.accounts))
	for _, a := range d.accounts {
		out = append(out, Summary{Number: a.Number(), Holder: a.Holder(), Type: a.Type()})
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Len returns the number of registered accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts)
}

// Close flushes and closes the mirror, then closes the log store.
func (d *Directory) Close() error {
	var err error
	if c, ok := d.mirror.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return multierr.Append(err, d.store.Close())
}
