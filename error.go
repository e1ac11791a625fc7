package tcc

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorCode classifies coordinator errors. Classification is by kind, never by
// message text; ShouldRetry keys off these codes.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	LockAcquisitionFailure
	TransactionNotFound
	DuplicateParticipant
	NoParticipantsRegistered
	TransactionTimeout
	StorageFailure
	InvalidTransactionState
	ParticipantFailure
)

// TCC custom error.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	return fmt.Sprintf("error code: %d, user data: %v, details: %v", e.Code, e.UserData, e.Err)
}

// Unwrap returns the wrapped error so errors.Is/As keep working through Error.
func (e Error) Unwrap() error {
	return e.Err
}

// ShouldRetry reports whether the error is retryable. Storage & lock failures
// and generic network/timeout conditions are transient; logical errors such as
// TransactionNotFound or DuplicateParticipant are permanent. Context
// cancellations/timeouts are permanent from the caller's POV.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var e Error
	if errors.As(err, &e) {
		switch e.Code {
		case StorageFailure, LockAcquisitionFailure:
			return true
		case TransactionNotFound, DuplicateParticipant, NoParticipantsRegistered,
			TransactionTimeout, InvalidTransactionState:
			return false
		case ParticipantFailure:
			// Depends on the underlying cause, e.g. a network glitch reaching
			// the participant is transient, a business rejection is not.
			if e.Err == nil {
				return false
			}
			var ne net.Error
			if errors.As(e.Err, &ne) {
				return true
			}
			var inner Error
			if errors.As(e.Err, &inner) {
				return ShouldRetry(inner)
			}
			return false
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	// Unknown errors are presumed transient so the retry executor, not this
	// classifier, bounds how long they are chased.
	return true
}
