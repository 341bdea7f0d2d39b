package writer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"
	"atm-ledger/pkg/metrics"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var _ ledger.Mirror = (*Mirror)(nil)

// Mirror copies durably appended transactions to a secondary LogStore in the
// background. Each account is pinned to one worker queue, so records of one
// account reach the secondary store in the order they were committed.
type Mirror struct {
	store   ledger.LogStore
	queues  []chan mirrorOp
	wg      sync.WaitGroup
	config  MirrorConfig
	metrics metrics.Collector
	logger  *logging.Logger
	backend string

	// closeMu guards closed against concurrent Write and Close.
	closeMu sync.RWMutex
	closed  bool

	// Statistics (accessed atomically)
	pending       int64
	droppedWrites int64
	totalWrites   int64
	failedWrites  int64

	errMu   sync.Mutex
	lastErr error

	metricsTicker *time.Ticker
	metricsStop   chan struct{}
}

type mirrorOp struct {
	id       uuid.UUID
	account  string
	tx       ledger.Transaction
	enqueued time.Time
}

// MirrorConfig configures the mirror.
type MirrorConfig struct {
	// QueueSize is the bounded queue size per worker (default: 256)
	QueueSize int

	// Workers is the number of concurrent workers (default: 2)
	Workers int

	// MaxWaitTime is the max time to wait if a queue is full.
	// 0 means the default of 10ms; negative drops immediately.
	MaxWaitTime time.Duration

	// WriteTimeout bounds each secondary append (default: 5s)
	WriteTimeout time.Duration

	// MetricsInterval is how often queue depth is reported (default: 5s)
	MetricsInterval time.Duration
}

// NewMirror starts a mirror writing to store. It must be closed with Close,
// which also closes store.
func NewMirror(store ledger.LogStore, config MirrorConfig) *Mirror {
	return NewMirrorWithMetrics(store, config, metrics.NoOpCollector{})
}

// NewMirrorWithMetrics starts a mirror reporting to collector.
func NewMirrorWithMetrics(store ledger.LogStore, config MirrorConfig, collector metrics.Collector) *Mirror {
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.MaxWaitTime == 0 {
		config.MaxWaitTime = 10 * time.Millisecond
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.MetricsInterval <= 0 {
		config.MetricsInterval = 5 * time.Second
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}

	m := &Mirror{
		store:         store,
		queues:        make([]chan mirrorOp, config.Workers),
		config:        config,
		metrics:       collector,
		logger:        logging.L().Named("mirror").With(zap.String("backend", store.Name())),
		backend:       store.Name(),
		metricsTicker: time.NewTicker(config.MetricsInterval),
		metricsStop:   make(chan struct{}),
	}

	for i := range m.queues {
		m.queues[i] = make(chan mirrorOp, config.QueueSize)
		m.wg.Add(1)
		go m.worker(m.queues[i])
	}

	go m.reportMetrics()

	return m
}

// shard picks the worker queue owning accountNumber.
func (m *Mirror) shard(accountNumber string) chan mirrorOp {
	return m.queues[xxhash.Sum64String(accountNumber)%uint64(len(m.queues))]
}

// Write enqueues tx for accountNumber.
// If the queue is full, it waits up to MaxWaitTime before dropping the write.
// Returns ErrQueueFull if the write was dropped due to backpressure.
func (m *Mirror) Write(ctx context.Context, accountNumber string, tx ledger.Transaction) error {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()

	if m.closed {
		return ErrWriterClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	op := mirrorOp{
		id:       uuid.New(),
		account:  accountNumber,
		tx:       tx,
		enqueued: time.Now(),
	}
	queue := m.shard(accountNumber)

	atomic.AddInt64(&m.pending, 1)

	select {
	case queue <- op:
		atomic.AddInt64(&m.totalWrites, 1)
		return nil
	default:
	}

	if m.config.MaxWaitTime < 0 {
		return m.drop(op)
	}

	timer := time.NewTimer(m.config.MaxWaitTime)
	defer timer.Stop()

	select {
	case queue <- op:
		atomic.AddInt64(&m.totalWrites, 1)
		return nil
	case <-timer.C:
		return m.drop(op)
	case <-ctx.Done():
		atomic.AddInt64(&m.pending, -1)
		return ctx.Err()
	}
}

func (m *Mirror) drop(op mirrorOp) error {
	atomic.AddInt64(&m.pending, -1)
	atomic.AddInt64(&m.droppedWrites, 1)
	m.metrics.RecordMirrorDropped(m.backend)
	m.logger.Warn("mirror queue full, write dropped",
		zap.String("op_id", op.id.String()),
		zap.String("account", op.account),
	)
	return ErrQueueFull
}

// worker applies queued writes until its queue is closed and drained.
func (m *Mirror) worker(queue <-chan mirrorOp) {
	defer m.wg.Done()

	for op := range queue {
		m.apply(op)
	}
}

func (m *Mirror) apply(op mirrorOp) {
	defer atomic.AddInt64(&m.pending, -1)

	ctx, cancel := context.WithTimeout(context.Background(), m.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := m.store.Open(op.account).Append(ctx, op.tx)
	duration := time.Since(start)

	m.metrics.RecordMirrorWrite(m.backend, err == nil, duration)

	if err != nil {
		atomic.AddInt64(&m.failedWrites, 1)
		m.errMu.Lock()
		m.lastErr = err
		m.errMu.Unlock()
		m.logger.Error("mirror write failed",
			zap.String("op_id", op.id.String()),
			zap.String("account", op.account),
			zap.String("record", op.tx.Record()),
			zap.Duration("queued", start.Sub(op.enqueued)),
			zap.Error(err),
		)
	}
}

// Flush waits for all pending writes to complete or until timeout.
// Returns ErrFlushTimeout if timeout is exceeded.
func (m *Mirror) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if atomic.LoadInt64(&m.pending) == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}

		time.Sleep(5 * time.Millisecond)
	}
}

// Close stops accepting new writes, drains the queues, waits for workers and
// closes the secondary store. Calling Close twice returns ErrWriterClosed.
func (m *Mirror) Close() error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return ErrWriterClosed
	}
	m.closed = true
	for _, q := range m.queues {
		close(q)
	}
	m.closeMu.Unlock()

	close(m.metricsStop)
	m.metricsTicker.Stop()

	m.wg.Wait()

	var err error
	if failed := atomic.LoadInt64(&m.failedWrites); failed > 0 {
		m.logger.Warn("mirror closed with failed writes", zap.Int64("failed", failed))
		err = multierr.Append(err, fmt.Errorf("%w: %d failed, last: %v", ErrMirrorIncomplete, failed, m.lastError()))
	}
	return multierr.Append(err, m.store.Close())
}

func (m *Mirror) lastError() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

// reportMetrics periodically reports queue depth.
func (m *Mirror) reportMetrics() {
	for {
		select {
		case <-m.metricsTicker.C:
			m.metrics.RecordMirrorQueueDepth(m.backend, m.queueDepth())
		case <-m.metricsStop:
			return
		}
	}
}

func (m *Mirror) queueDepth() int {
	depth := 0
	for _, q := range m.queues {
		depth += len(q)
	}
	return depth
}

// Stats returns current statistics about the mirror.
func (m *Mirror) Stats() Stats {
	return Stats{
		QueueDepth:    m.queueDepth(),
		DroppedWrites: atomic.LoadInt64(&m.droppedWrites),
		TotalWrites:   atomic.LoadInt64(&m.totalWrites),
		FailedWrites:  atomic.LoadInt64(&m.failedWrites),
	}
}
