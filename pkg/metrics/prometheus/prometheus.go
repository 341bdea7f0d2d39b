package prometheus

import (
	"strconv"
	"time"

	"atm-ledger/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

var _ metrics.Collector = (*Collector)(nil)

// Collector implements metrics.Collector for Prometheus.
type Collector struct {
	namespace string

	// Account operations
	operations     *prometheus.CounterVec
	durabilityGaps *prometheus.CounterVec
	opLatency      *prometheus.HistogramVec

	// Authentication
	authAttempts *prometheus.CounterVec
	authOutcomes *prometheus.CounterVec

	// Log backends
	logAppends    *prometheus.CounterVec
	logReads      *prometheus.CounterVec
	appendLatency *prometheus.HistogramVec
	readLatency   *prometheus.HistogramVec

	// Circuit breaker
	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	// Mirror
	queueDepth    *prometheus.GaugeVec
	droppedWrites *prometheus.CounterVec
	mirrorWrites  *prometheus.CounterVec
	mirrorLatency *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	buckets := prometheus.ExponentialBuckets(0.0001, 2, 15) // 0.1ms to ~3s

	return &Collector{
		namespace: namespace,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of account operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		durabilityGaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "durability_gaps_total",
				Help:      "Mutations committed in memory without a durable record",
			},
			[]string{"backend"},
		),
		opLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Account operation latency",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		authAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Secret submissions by result",
			},
			[]string{"result"},
		),
		authOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_sessions_total",
				Help:      "Finished authentication sessions by outcome",
			},
			[]string{"outcome"},
		),
		logAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_appends_total",
				Help:      "Transaction log appends per backend",
			},
			[]string{"backend", "status"},
		),
		logReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_reads_total",
				Help:      "Transaction log reads per backend",
			},
			[]string{"backend", "status"},
		),
		appendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "log_append_duration_seconds",
				Help:      "Transaction log append latency",
				Buckets:   buckets,
			},
			[]string{"backend"},
		),
		readLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "log_read_duration_seconds",
				Help:      "Transaction log read latency",
				Buckets:   buckets,
			},
			[]string{"backend"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per backend",
			},
			[]string{"backend"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per backend (0=closed, 1=open, 2=half-open)",
			},
			[]string{"backend"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mirror_queue_depth",
				Help:      "Current mirror queue depth per backend",
			},
			[]string{"backend"},
		),
		droppedWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mirror_dropped_total",
				Help:      "Mirror writes dropped because the queue was full",
			},
			[]string{"backend"},
		),
		mirrorWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mirror_writes_total",
				Help:      "Mirror writes per backend",
			},
			[]string{"backend", "status"},
		),
		mirrorLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mirror_write_duration_seconds",
				Help:      "Mirror write latency",
				Buckets:   buckets,
			},
			[]string{"backend"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (c *Collector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.operations,
		c.durabilityGaps,
		c.opLatency,
		c.authAttempts,
		c.authOutcomes,
		c.logAppends,
		c.logReads,
		c.appendLatency,
		c.readLatency,
		c.circuitOpens,
		c.circuitState,
		c.queueDepth,
		c.droppedWrites,
		c.mirrorWrites,
		c.mirrorLatency,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordOperation records one account operation.
func (c *Collector) RecordOperation(op string, outcome string, duration time.Duration) {
	c.operations.WithLabelValues(op, outcome).Inc()
	c.opLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordDurabilityGap records a mutation kept without a durable record.
func (c *Collector) RecordDurabilityGap(backend string) {
	c.durabilityGaps.WithLabelValues(backend).Inc()
}

// RecordAuthAttempt records one secret submission.
func (c *Collector) RecordAuthAttempt(success bool) {
	c.authAttempts.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordAuthOutcome records how an authentication session ended.
func (c *Collector) RecordAuthOutcome(outcome string) {
	c.authOutcomes.WithLabelValues(outcome).Inc()
}

// RecordLogAppend records a backend append.
func (c *Collector) RecordLogAppend(backend string, success bool, duration time.Duration) {
	c.logAppends.WithLabelValues(backend, status(success)).Inc()
	c.appendLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordLogRead records a backend read.
func (c *Collector) RecordLogRead(backend string, success bool, duration time.Duration) {
	c.logReads.WithLabelValues(backend, status(success)).Inc()
	c.readLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordCircuitState records the current circuit breaker state.
func (c *Collector) RecordCircuitState(backend string, state metrics.CircuitState) {
	c.circuitState.WithLabelValues(backend).Set(float64(state))
	if state == metrics.CircuitOpen {
		c.circuitOpens.WithLabelValues(backend).Inc()
	}
}

// RecordMirrorQueueDepth records the current mirror queue depth.
func (c *Collector) RecordMirrorQueueDepth(backend string, depth int) {
	c.queueDepth.WithLabelValues(backend).Set(float64(depth))
}

// RecordMirrorDropped records a dropped mirror write.
func (c *Collector) RecordMirrorDropped(backend string) {
	c.droppedWrites.WithLabelValues(backend).Inc()
}

// RecordMirrorWrite records a completed mirror write.
func (c *Collector) RecordMirrorWrite(backend string, success bool, duration time.Duration) {
	c.mirrorWrites.WithLabelValues(backend, status(success)).Inc()
	c.mirrorLatency.WithLabelValues(backend).Observe(duration.Seconds())
}
