package tcc

import (
	"sort"
	"time"
)

// Now lambda to allow unit test to inject replayable time.Now.
var Now = time.Now

// TryStatus is the durable outcome of a participant's Try call.
type TryStatus int

const (
	// TryHanging means the participant's Try has not reported a result yet.
	TryHanging TryStatus = iota
	// TrySuccessful means the participant acknowledged its Try.
	TrySuccessful
	// TryFailure means the participant rejected its Try, or the Try timed out.
	TryFailure
)

// String returns the display name of the TryStatus.
func (s TryStatus) String() string {
	switch s {
	case TrySuccessful:
		return "successful"
	case TryFailure:
		return "failure"
	}
	return "hanging"
}

// TxStatus is the aggregate, durable status of a transaction.
type TxStatus int

const (
	// TxHanging is the initial, non-terminal status.
	TxHanging TxStatus = iota
	// TxSuccessful is terminal; every participant confirmed.
	TxSuccessful
	// TxFailure is terminal; every participant was cancelled.
	TxFailure
)

// String returns the display name of the TxStatus.
func (s TxStatus) String() string {
	switch s {
	case TxSuccessful:
		return "successful"
	case TxFailure:
		return "failure"
	}
	return "hanging"
}

// ParticipantEntry records the Try outcome of one participant within a transaction.
type ParticipantEntry struct {
	ParticipantID string    `json:"participantId"`
	TryStatus     TryStatus `json:"tryStatus"`
}

// Transaction is the durable unit the coordinator logs & recovers.
// ParticipantStatuses' key set is fixed at creation time; entries only ever
// transition out of TryHanging, never back.
type Transaction struct {
	ID                  int64                       `json:"id"`
	Status              TxStatus                    `json:"status"`
	ParticipantStatuses map[string]ParticipantEntry `json:"participantStatuses"`
	CreatedAt           time.Time                   `json:"createdAt"`
}

// ParticipantIDs returns the transaction's participant IDs in sorted order.
func (t *Transaction) ParticipantIDs() []string {
	ids := make([]string, 0, len(t.ParticipantStatuses))
	for id := range t.ParticipantStatuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
