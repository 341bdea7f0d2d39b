package memory

import (
	"sync"
	"time"

	"atm-ledger/pkg/metrics"
)

var _ metrics.Collector = (*Collector)(nil)

// Collector implements metrics.Collector in memory, for tests and the status endpoint.
type Collector struct {
	mu sync.RWMutex

	operations map[string]map[string]int64 // op -> outcome -> count
	backends   map[string]*BackendMetrics

	authSuccesses int64
	authFailures  int64
	authOutcomes  map[string]int64

	opLatencies map[string][]time.Duration
}

// BackendMetrics holds metrics for one log backend or mirror.
type BackendMetrics struct {
	Appends      int64
	AppendErrors int64
	Reads        int64
	ReadErrors   int64

	// DurabilityGaps counts mutations kept without a durable record
	DurabilityGaps int64

	// Circuit breaker
	CircuitState metrics.CircuitState
	CircuitOpens int64

	// Mirror
	QueueDepth    int
	DroppedWrites int64
	MirrorWrites  int64
	MirrorErrors  int64

	AppendLatencies []time.Duration
	ReadLatencies   []time.Duration
}

// NewCollector creates a new in-memory metrics collector.
func NewCollector() *Collector {
	c := &Collector{}
	c.reset()
	return c
}

func (c *Collector) reset() {
	c.operations = make(map[string]map[string]int64)
	c.backends = make(map[string]*BackendMetrics)
	c.authOutcomes = make(map[string]int64)
	c.opLatencies = make(map[string][]time.Duration)
	c.authSuccesses = 0
	c.authFailures = 0
}

// backend returns the metrics for name, creating them if needed. Must be called with mu held.
func (c *Collector) backend(name string) *BackendMetrics {
	bm, ok := c.backends[name]
	if !ok {
		bm = &BackendMetrics{}
		c.backends[name] = bm
	}
	return bm
}

// RecordOperation records one account operation and its outcome.
func (c *Collector) RecordOperation(op string, outcome string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.operations[op] == nil {
		c.operations[op] = make(map[string]int64)
	}
	c.operations[op][outcome]++
	c.opLatencies[op] = append(c.opLatencies[op], duration)
}

// RecordDurabilityGap records a mutation committed without a durable record.
func (c *Collector) RecordDurabilityGap(backend string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend(backend).DurabilityGaps++
}

// RecordAuthAttempt records one secret submission.
func (c *Collector) RecordAuthAttempt(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.authSuccesses++
	} else {
		c.authFailures++
	}
}

// RecordAuthOutcome records how an authentication session ended.
func (c *Collector) RecordAuthOutcome(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authOutcomes[outcome]++
}

// RecordLogAppend records a backend append.
func (c *Collector) RecordLogAppend(backend string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bm := c.backend(backend)
	bm.Appends++
	if !success {
		bm.AppendErrors++
	}
	bm.AppendLatencies = append(bm.AppendLatencies, duration)
}

// RecordLogRead records a backend read.
func (c *Collector) RecordLogRead(backend string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bm := c.backend(backend)
	bm.Reads++
	if !success {
		bm.ReadErrors++
	}
	bm.ReadLatencies = append(bm.ReadLatencies, duration)
}

// RecordCircuitState records the current circuit breaker state.
func (c *Collector) RecordCircuitState(backend string, state metrics.CircuitState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bm := c.backend(backend)
	oldState := bm.CircuitState
	bm.CircuitState = state

	// Count transitions to open
	if oldState != metrics.CircuitOpen && state == metrics.CircuitOpen {
		bm.CircuitOpens++
	}
}

// RecordMirrorQueueDepth records the current mirror queue depth.
func (c *Collector) RecordMirrorQueueDepth(backend string, depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend(backend).QueueDepth = depth
}

// RecordMirrorDropped records a mirror write dropped because the queue was full.
func (c *Collector) RecordMirrorDropped(backend string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend(backend).DroppedWrites++
}

// RecordMirrorWrite records a completed mirror write.
func (c *Collector) RecordMirrorWrite(backend string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bm := c.backend(backend)
	bm.MirrorWrites++
	if !success {
		bm.MirrorErrors++
	}
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	Operations    map[string]map[string]int64 `json:"operations"`
	AuthSuccesses int64                       `json:"auth_successes"`
	AuthFailures  int64                       `json:"auth_failures"`
	AuthOutcomes  map[string]int64            `json:"auth_outcomes"`
	Backends      map[string]BackendSummary   `json:"backends"`
}

// BackendSummary is the latency-free part of BackendMetrics.
type BackendSummary struct {
	Appends        int64  `json:"appends"`
	AppendErrors   int64  `json:"append_errors"`
	Reads          int64  `json:"reads"`
	ReadErrors     int64  `json:"read_errors"`
	DurabilityGaps int64  `json:"durability_gaps"`
	CircuitState   string `json:"circuit_state"`
	CircuitOpens   int64  `json:"circuit_opens"`
	QueueDepth     int    `json:"queue_depth"`
	DroppedWrites  int64  `json:"dropped_writes"`
	MirrorWrites   int64  `json:"mirror_writes"`
	MirrorErrors   int64  `json:"mirror_errors"`
}

// Snapshot returns a copy of the current metrics state.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Operations:    make(map[string]map[string]int64, len(c.operations)),
		AuthSuccesses: c.authSuccesses,
		AuthFailures:  c.authFailures,
		AuthOutcomes:  make(map[string]int64, len(c.authOutcomes)),
		Backends:      make(map[string]BackendSummary, len(c.backends)),
	}
	for op, outcomes := range c.operations {
		m := make(map[string]int64, len(outcomes))
		for k, v := range outcomes {
			m[k] = v
		}
		s.Operations[op] = m
	}
	for k, v := range c.authOutcomes {
		s.AuthOutcomes[k] = v
	}
	for name, bm := range c.backends {
		s.Backends[name] = BackendSummary{
			Appends:        bm.Appends,
			AppendErrors:   bm.AppendErrors,
			Reads:          bm.Reads,
			ReadErrors:     bm.ReadErrors,
			DurabilityGaps: bm.DurabilityGaps,
			CircuitState:   bm.CircuitState.String(),
			CircuitOpens:   bm.CircuitOpens,
			QueueDepth:     bm.QueueDepth,
			DroppedWrites:  bm.DroppedWrites,
			MirrorWrites:   bm.MirrorWrites,
			MirrorErrors:   bm.MirrorErrors,
		}
	}
	return s
}

// Operation returns how many times op finished with outcome.
func (c *Collector) Operation(op, outcome string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.operations[op][outcome]
}

// AuthOutcome returns how many sessions ended with outcome.
func (c *Collector) AuthOutcome(outcome string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authOutcomes[outcome]
}

// AuthAttempts returns the number of successful and failed secret submissions.
func (c *Collector) AuthAttempts() (success, failure int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authSuccesses, c.authFailures
}

// Backend returns a copy of the metrics for a backend, or nil if none were recorded.
func (c *Collector) Backend(name string) *BackendMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if bm, exists := c.backends[name]; exists {
		cp := *bm
		cp.AppendLatencies = append([]time.Duration(nil), bm.AppendLatencies...)
		cp.ReadLatencies = append([]time.Duration(nil), bm.ReadLatencies...)
		return &cp
	}
	return nil
}

// Reset clears all collected metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}
