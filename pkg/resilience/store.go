package resilience

import (
	"context"
	"errors"
	"time"

	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Store wraps a LogStore so that every log it hands out shares one circuit
// breaker and a per-call timeout. Backend latency and outcome are reported
// to the metrics collector.
type Store struct {
	store   ledger.LogStore
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewStore wraps store with the given configuration and no metrics.
func NewStore(store ledger.LogStore, config Config) *Store {
	return NewStoreWithMetrics(store, config, metrics.NoOpCollector{})
}

// NewStoreWithMetrics wraps store and reports to collector.
func NewStoreWithMetrics(store ledger.LogStore, config Config, collector metrics.Collector) *Store {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	logger := logging.L().Named("resilience").Named(store.Name())

	s := &Store{
		store:   store,
		timeout: config.Timeout,
		metrics: collector,
		logger:  logger,
	}

	logger.Info("resilient log store initialized",
		zap.String("backend", store.Name()),
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_requests", config.CircuitBreakerConfig.MaxRequests),
		zap.Duration("circuit_interval", config.CircuitBreakerConfig.Interval),
		zap.Duration("circuit_timeout", config.CircuitBreakerConfig.Timeout),
	)

	settings := gobreaker.Settings{
		Name:        store.Name(),
		MaxRequests: config.CircuitBreakerConfig.MaxRequests,
		Interval:    config.CircuitBreakerConfig.Interval,
		Timeout:     config.CircuitBreakerConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if config.CircuitBreakerConfig.ReadyToTrip != nil {
				return config.CircuitBreakerConfig.ReadyToTrip(Counts{
					Requests:             counts.Requests,
					TotalSuccesses:       counts.TotalSuccesses,
					TotalFailures:        counts.TotalFailures,
					ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
					ConsecutiveFailures:  counts.ConsecutiveFailures,
				})
			}
			return counts.ConsecutiveFailures >= 5
		},
		// A log that was never created is an answer, not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ledger.ErrLogNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)

			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			s.metrics.RecordCircuitState(name, state)
		},
	}

	s.cb = gobreaker.NewCircuitBreaker(settings)
	return s
}

// Open returns the protected log for accountNumber.
func (s *Store) Open(accountNumber string) ledger.TransactionLog {
	return &Log{store: s, account: accountNumber, log: s.store.Open(accountNumber)}
}

// Name returns the name of the underlying backend.
func (s *Store) Name() string {
	return s.store.Name()
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.store.Close()
}

// State returns the current circuit breaker state.
func (s *Store) State() metrics.CircuitState {
	switch s.cb.State() {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

// Log is one account's log behind the shared breaker.
type Log struct {
	store   *Store
	account string
	log     ledger.TransactionLog
}

// Append writes tx with timeout and circuit breaker protection.
func (l *Log) Append(ctx context.Context, tx ledger.Transaction) error {
	s := l.store
	start := time.Now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, l.log.Append(ctx, tx)
	})

	duration := time.Since(start)
	s.metrics.RecordLogAppend(s.store.Name(), err == nil, duration)

	if err != nil {
		return s.translate(ctx, err, "append", l.account, duration)
	}
	return nil
}

// ReadAll reads the log with timeout and circuit breaker protection.
func (l *Log) ReadAll(ctx context.Context) ([]ledger.Transaction, error) {
	s := l.store
	start := time.Now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.cb.Execute(func() (interface{}, error) {
		return l.log.ReadAll(ctx)
	})

	duration := time.Since(start)
	found := err == nil || errors.Is(err, ledger.ErrLogNotFound)
	s.metrics.RecordLogRead(s.store.Name(), found, duration)

	if err != nil {
		if errors.Is(err, ledger.ErrLogNotFound) {
			return nil, err
		}
		return nil, s.translate(ctx, err, "read", l.account, duration)
	}

	txs, _ := result.([]ledger.Transaction)
	return txs, nil
}

// translate maps breaker and deadline failures to ledger errors.
func (s *Store) translate(ctx context.Context, err error, op, account string, duration time.Duration) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Warn("circuit breaker open - request rejected",
			zap.String("operation", op),
			zap.String("account", account),
		)
		return ledger.WrapError(ledger.ErrCircuitOpen, s.store.Name(), op)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("operation timeout",
			zap.String("operation", op),
			zap.String("account", account),
			zap.Duration("timeout", s.timeout),
			zap.Duration("elapsed", duration),
		)
		return ledger.WrapError(ledger.ErrTimeout, s.store.Name(), op)
	}
	s.logger.Error("log operation failed",
		zap.String("operation", op),
		zap.String("account", account),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
	return ledger.WrapError(err, s.store.Name(), op)
}
