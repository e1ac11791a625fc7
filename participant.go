package tcc

import "context"

// TryRequest carries the Try-phase inputs for one participant. Metadata is
// request-scoped and not persisted; Confirm/Cancel only ever see the
// transaction id, so participants must key any state they need off that id.
type TryRequest struct {
	TxID     int64
	Metadata map[string]string
}

// Participant is one downstream system taking part in a transaction. The
// coordinator is oblivious to transports; in-process, HTTP or RPC participants
// all hide behind this interface.
//
// All three operations must be idempotent for the same transaction id: the
// coordinator guarantees at-least-once delivery of Confirm/Cancel, never
// exactly-once.
//
//   - Try may fail for business reasons; any Try failure aborts the transaction.
//   - Confirm must eventually succeed once its Try succeeded; the coordinator
//     keeps retrying it across monitor ticks until it does.
//   - Cancel must eventually succeed; its failures are retried but never flip
//     the outcome of an already-aborted transaction.
type Participant interface {
	// ID returns the participant's stable identity.
	ID() string
	// Try reserves whatever the participant needs for the transaction.
	Try(ctx context.Context, req *TryRequest) error
	// Confirm finalizes a successfully tried transaction.
	Confirm(ctx context.Context, txID int64) error
	// Cancel releases the Try reservation of an aborted transaction.
	Cancel(ctx context.Context, txID int64) error
}
