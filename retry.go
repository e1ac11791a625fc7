package tcc

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryOptions configure the RetryExecutor's exponential backoff.
type RetryOptions struct {
	// MaxRetries bounds re-attempts; attempt 0 is the initial call.
	MaxRetries uint64
	// BaseDelay is the attempt-0 backoff.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff, pre jitter.
	MaxDelay time.Duration
	// BackoffMultiplier grows the delay per attempt.
	BackoffMultiplier float64
	// Jitter adds uniform(0, Jitter) on top of each backoff.
	Jitter time.Duration
}

// DefaultRetryOptions returns the retry parameters used when none are given.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:        3,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2,
		Jitter:            50 * time.Millisecond,
	}
}

// repair replaces out-of-range values with defaults.
func (o RetryOptions) repair() RetryOptions {
	d := DefaultRetryOptions()
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = o.BaseDelay
	}
	if o.BackoffMultiplier < 1 {
		o.BackoffMultiplier = d.BackoffMultiplier
	}
	if o.Jitter < 0 {
		o.Jitter = d.Jitter
	}
	return o
}

// RetryExecutor wraps unary operations with exponential backoff + jitter.
// Retryable failures (per ShouldRetry) are re-attempted up to MaxRetries;
// terminal failures surface immediately.
type RetryExecutor struct {
	options RetryOptions
	metrics MetricsCollector
}

// NewRetryExecutor builds an executor from the given options. A nil metrics
// collector gets a private in-memory one.
func NewRetryExecutor(options RetryOptions, metrics MetricsCollector) *RetryExecutor {
	if metrics == nil {
		metrics = NewMetricsCollector()
	}
	return &RetryExecutor{
		options: options.repair(),
		metrics: metrics,
	}
}

// Execute runs task, retrying per the executor's options. name is used for
// logging only. Exhausting MaxRetries surfaces the last failure.
func (re *RetryExecutor) Execute(ctx context.Context, name string, task func(ctx context.Context) error) error {
	o := re.options
	attempt := 0
	var b retry.Backoff = retry.BackoffFunc(func() (time.Duration, bool) {
		d := float64(o.BaseDelay) * math.Pow(o.BackoffMultiplier, float64(attempt))
		attempt++
		if d > float64(o.MaxDelay) || d < 0 {
			d = float64(o.MaxDelay)
		}
		next := time.Duration(d)
		if o.Jitter > 0 {
			next += time.Duration(rand.Int63n(int64(o.Jitter)))
		}
		return next, false
	})
	b = retry.WithMaxRetries(o.MaxRetries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := task(ctx)
		if err == nil {
			return nil
		}
		if !ShouldRetry(err) {
			return err
		}
		re.metrics.Add(MetricRetryAttempts, 1)
		log.Warn(fmt.Sprintf("%s failed, will retry, details: %v", name, err))
		return retry.RetryableError(err)
	})
}
