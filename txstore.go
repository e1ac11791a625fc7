package tcc

import (
	"context"
	"time"
)

// TransactionStore is the durable transaction log contract. Implementations
// must be crash-safe: a transaction visible as hanging after a restart still
// reflects the last durably acknowledged per-participant update.
//
// Mutations are at-least-once & idempotent:
//   - TXUpdateComponentStatus applies first-non-Hanging-write-wins per entry,
//     so a late Try result cannot overwrite an earlier recorded outcome.
//   - TXSubmit is idempotent for the same (txID, success) pair and fails with
//     InvalidTransactionState on a conflicting terminal write.
type TransactionStore interface {
	// CreateTx persists a new hanging transaction holding one hanging entry
	// per given participant id, returning its store-assigned monotonic id.
	CreateTx(ctx context.Context, participantIDs []string) (int64, error)

	// TXUpdateComponentStatus atomically resolves one participant entry to
	// successful (accept) or failure. Unknown txID yields TransactionNotFound.
	TXUpdateComponentStatus(ctx context.Context, txID int64, participantID string, accept bool) error

	// TXSubmit atomically sets the transaction's terminal status.
	TXSubmit(ctx context.Context, txID int64, success bool) error

	// GetHangingTXs lists hanging transactions ascending by creation time,
	// bounded by the store's fetch cap.
	GetHangingTXs(ctx context.Context) ([]Transaction, error)

	// GetTX fetches one transaction or fails with TransactionNotFound.
	GetTX(ctx context.Context, txID int64) (Transaction, error)

	// Lock acquires the cluster-wide advisory monitor lock for at most the
	// expire duration, failing with LockAcquisitionFailure when another
	// coordinator instance holds it.
	Lock(ctx context.Context, expire time.Duration) error

	// Unlock releases whatever this store instance holds; no-op if nothing.
	Unlock(ctx context.Context) error
}
