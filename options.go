package tcc

import "time"

// Options configure a TxManager.
type Options struct {
	// Timeout is the Try-phase budget per transaction.
	Timeout time.Duration
	// MonitorInterval spaces the reconciliation loop's ticks.
	MonitorInterval time.Duration
	// EnableMonitor gates the reconciliation loop.
	EnableMonitor bool
	// AdvanceFanout bounds how many hanging transactions one monitor tick
	// advances concurrently. Non-positive means unbounded.
	AdvanceFanout int
	// Retry parameterizes the Confirm/Cancel retry executor.
	Retry RetryOptions
}

// DefaultOptions returns the coordinator defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:         5 * time.Second,
		MonitorInterval: 10 * time.Second,
		EnableMonitor:   true,
		AdvanceFanout:   20,
		Retry:           DefaultRetryOptions(),
	}
}

// repair replaces out-of-range values with defaults.
func (o Options) repair() Options {
	d := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MonitorInterval <= 0 {
		o.MonitorInterval = d.MonitorInterval
	}
	o.Retry = o.Retry.repair()
	return o
}

// StartOptions optionally tune a single StartTransaction call.
type StartOptions struct {
	// Timeout shrinks the manager's Try-phase budget for this call when > 0;
	// values above the manager budget are clamped to it, since the monitor
	// expires overdue try phases against the manager budget. A negative value
	// means a zero budget: the try phase expires immediately and the
	// transaction is cancelled. Zero leaves the manager budget in effect.
	Timeout time.Duration
	// Metadata is handed to every participant's Try. Not persisted.
	Metadata map[string]string
}
