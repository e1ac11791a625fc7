package tcc

import "sync"

// Metric names recorded by the coordinator.
const (
	MetricTransactionsStarted   = "transactions_started"
	MetricTransactionsSucceeded = "transactions_succeeded"
	MetricTransactionsFailed    = "transactions_failed"
	MetricRetryAttempts         = "retry_attempts"
	MetricHangingTransactions   = "hanging_transactions"
	MetricMonitorTicks          = "monitor_ticks"
)

// MetricsCollector receives the coordinator's counters & gauges. It is
// injected rather than global so tests can assert on recorded values.
type MetricsCollector interface {
	// Add increments the named counter by delta.
	Add(name string, delta int64)
	// Set overwrites the named gauge.
	Set(name string, value int64)
	// Snapshot returns a copy of all recorded values.
	Snapshot() map[string]int64
}

type memoryMetrics struct {
	mux    sync.RWMutex
	values map[string]int64
}

// NewMetricsCollector returns the default in-process collector.
func NewMetricsCollector() MetricsCollector {
	return &memoryMetrics{
		values: make(map[string]int64),
	}
}

func (m *memoryMetrics) Add(name string, delta int64) {
	m.mux.Lock()
	m.values[name] += delta
	m.mux.Unlock()
}

func (m *memoryMetrics) Set(name string, value int64) {
	m.mux.Lock()
	m.values[name] = value
	m.mux.Unlock()
}

func (m *memoryMetrics) Snapshot() map[string]int64 {
	m.mux.RLock()
	defer m.mux.RUnlock()
	r := make(map[string]int64, len(m.values))
	for k, v := range m.values {
		r[k] = v
	}
	return r
}
