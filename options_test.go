package tcc

import (
	"testing"
	"time"
)

func TestOptionsRepair_Defaults(t *testing.T) {
	o := Options{}.repair()
	d := DefaultOptions()
	if o.Timeout != d.Timeout {
		t.Errorf("Timeout = %v, want %v", o.Timeout, d.Timeout)
	}
	if o.MonitorInterval != d.MonitorInterval {
		t.Errorf("MonitorInterval = %v, want %v", o.MonitorInterval, d.MonitorInterval)
	}
	if o.Retry.MaxRetries != 0 {
		t.Errorf("repair should not invent retries, got %d", o.Retry.MaxRetries)
	}
	if o.Retry.BaseDelay != d.Retry.BaseDelay {
		t.Errorf("Retry.BaseDelay = %v, want %v", o.Retry.BaseDelay, d.Retry.BaseDelay)
	}
}

func TestOptionsRepair_KeepsValidValues(t *testing.T) {
	o := Options{
		Timeout:         20 * time.Millisecond,
		MonitorInterval: 30 * time.Millisecond,
		AdvanceFanout:   5,
	}.repair()
	if o.Timeout != 20*time.Millisecond || o.MonitorInterval != 30*time.Millisecond || o.AdvanceFanout != 5 {
		t.Errorf("valid values were replaced: %+v", o)
	}
}

func TestRetryOptionsRepair_ClampsMaxDelay(t *testing.T) {
	o := RetryOptions{BaseDelay: time.Second, MaxDelay: time.Millisecond, BackoffMultiplier: 2}.repair()
	if o.MaxDelay < o.BaseDelay {
		t.Errorf("MaxDelay %v must not undercut BaseDelay %v", o.MaxDelay, o.BaseDelay)
	}
}

func TestRetryOptionsRepair_RejectsShrinkingMultiplier(t *testing.T) {
	o := RetryOptions{BackoffMultiplier: 0.5}.repair()
	if o.BackoffMultiplier < 1 {
		t.Errorf("BackoffMultiplier = %v, want >= 1", o.BackoffMultiplier)
	}
}
