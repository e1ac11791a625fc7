package tcc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryOptions(maxRetries uint64) RetryOptions {
	return RetryOptions{
		MaxRetries:        maxRetries,
		BaseDelay:         time.Millisecond,
		MaxDelay:          2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestRetryExecutor_TransientThenSuccess(t *testing.T) {
	metrics := NewMetricsCollector()
	re := NewRetryExecutor(fastRetryOptions(5), metrics)

	calls := 0
	err := re.Execute(context.Background(), "confirm of transaction 1", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Error{Code: StorageFailure, Err: errors.New("transient io")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if got := metrics.Snapshot()[MetricRetryAttempts]; got != 2 {
		t.Errorf("retry attempts metric = %d, want 2", got)
	}
}

func TestRetryExecutor_TerminalErrorShortCircuits(t *testing.T) {
	re := NewRetryExecutor(fastRetryOptions(5), nil)

	calls := 0
	err := re.Execute(context.Background(), "advance of transaction 1", func(ctx context.Context) error {
		calls++
		return Error{Code: TransactionNotFound, UserData: int64(1)}
	})
	if err == nil {
		t.Fatalf("Execute should surface the terminal error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for a terminal error", calls)
	}
	var e Error
	if !errors.As(err, &e) || e.Code != TransactionNotFound {
		t.Errorf("got %v, want TransactionNotFound", err)
	}
}

func TestRetryExecutor_ExhaustionSurfacesLastError(t *testing.T) {
	re := NewRetryExecutor(fastRetryOptions(2), nil)

	calls := 0
	err := re.Execute(context.Background(), "cancel of transaction 1", func(ctx context.Context) error {
		calls++
		return Error{Code: StorageFailure, Err: errors.New("still down")}
	})
	if err == nil {
		t.Fatalf("Execute should fail after retries are exhausted")
	}
	// Initial attempt plus MaxRetries re-attempts.
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	var e Error
	if !errors.As(err, &e) || e.Code != StorageFailure {
		t.Errorf("got %v, want the last StorageFailure", err)
	}
}

func TestRetryExecutor_HonorsContextCancellation(t *testing.T) {
	re := NewRetryExecutor(RetryOptions{
		MaxRetries:        10,
		BaseDelay:         50 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := re.Execute(ctx, "confirm of transaction 1", func(ctx context.Context) error {
		calls++
		return Error{Code: StorageFailure, Err: errors.New("down")}
	})
	if err == nil {
		t.Fatalf("Execute should fail once the context is cancelled")
	}
	if calls > 2 {
		t.Errorf("calls = %d, cancellation should stop the backoff early", calls)
	}
}
