package tcc

// AggregateStatus derives the transaction-level status from the per-participant
// try statuses of the given registered participant ids:
//   - any TryFailure => TxFailure
//   - else any TryHanging => TxHanging
//   - else => TxSuccessful
//
// Failure dominating Hanging is what lets the monitor cancel a transaction
// with a recorded failure while other entries are still pending, instead of
// leaving Try reservations orphaned. Registered ids without an entry in the
// transaction carry no vote (they joined after the transaction was created).
func AggregateStatus(tx *Transaction, registeredIDs []string) TxStatus {
	hanging := false
	for _, id := range registeredIDs {
		entry, ok := tx.ParticipantStatuses[id]
		if !ok {
			continue
		}
		switch entry.TryStatus {
		case TryFailure:
			return TxFailure
		case TryHanging:
			hanging = true
		}
	}
	if hanging {
		return TxHanging
	}
	return TxSuccessful
}
