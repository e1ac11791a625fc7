package tcc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestShouldRetry_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
		{"storage failure", Error{Code: StorageFailure, Err: errors.New("io")}, true},
		{"lock acquisition failure", Error{Code: LockAcquisitionFailure}, true},
		{"transaction not found", Error{Code: TransactionNotFound}, false},
		{"duplicate participant", Error{Code: DuplicateParticipant}, false},
		{"no participants", Error{Code: NoParticipantsRegistered}, false},
		{"transaction timeout", Error{Code: TransactionTimeout}, false},
		{"invalid transaction state", Error{Code: InvalidTransactionState}, false},
		{"participant business rejection", Error{Code: ParticipantFailure, Err: errors.New("insufficient funds")}, false},
		{"participant network glitch", Error{Code: ParticipantFailure, Err: &net.DNSError{IsTimeout: true}}, true},
		{"participant wrapping storage failure", Error{Code: ParticipantFailure, Err: Error{Code: StorageFailure}}, true},
		{"bare net error", &net.DNSError{IsTemporary: true}, true},
		{"unknown error presumed transient", errors.New("boom"), true},
	}
	for _, tt := range tests {
		if got := ShouldRetry(tt.err); got != tt.want {
			t.Errorf("%s: ShouldRetry = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestShouldRetry_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("advance failed: %w", Error{Code: TransactionNotFound, UserData: int64(42)})
	if ShouldRetry(err) {
		t.Errorf("wrapped TransactionNotFound should stay terminal")
	}
	err = fmt.Errorf("sweep failed: %w", Error{Code: StorageFailure, Err: errors.New("io")})
	if !ShouldRetry(err) {
		t.Errorf("wrapped StorageFailure should stay retryable")
	}
}

func TestError_UnwrapKeepsChain(t *testing.T) {
	inner := errors.New("socket closed")
	err := Error{Code: StorageFailure, Err: inner, UserData: int64(7)}
	if !errors.Is(err, inner) {
		t.Errorf("errors.Is should reach the wrapped error")
	}
	var e Error
	if !errors.As(error(err), &e) || e.Code != StorageFailure {
		t.Errorf("errors.As should recover the Error, got %v", e)
	}
}
