package tcc

import (
	"testing"
	"time"
)

func newTx(entries map[string]TryStatus) *Transaction {
	tx := &Transaction{
		ID:                  1,
		Status:              TxHanging,
		ParticipantStatuses: make(map[string]ParticipantEntry, len(entries)),
		CreatedAt:           time.Now(),
	}
	for id, st := range entries {
		tx.ParticipantStatuses[id] = ParticipantEntry{ParticipantID: id, TryStatus: st}
	}
	return tx
}

func TestAggregateStatus_AllSuccessful(t *testing.T) {
	tx := newTx(map[string]TryStatus{"a": TrySuccessful, "b": TrySuccessful})
	if got := AggregateStatus(tx, []string{"a", "b"}); got != TxSuccessful {
		t.Errorf("got %s, want successful", got)
	}
}

func TestAggregateStatus_FailureDominatesHanging(t *testing.T) {
	// One participant already failed while another hasn't reported; the
	// transaction must be cancellable now, not stuck behind the straggler.
	tx := newTx(map[string]TryStatus{"a": TryHanging, "b": TryFailure, "c": TrySuccessful})
	if got := AggregateStatus(tx, []string{"a", "b", "c"}); got != TxFailure {
		t.Errorf("got %s, want failure", got)
	}
}

func TestAggregateStatus_HangingDominatesSuccess(t *testing.T) {
	tx := newTx(map[string]TryStatus{"a": TrySuccessful, "b": TryHanging})
	if got := AggregateStatus(tx, []string{"a", "b"}); got != TxHanging {
		t.Errorf("got %s, want hanging", got)
	}
}

func TestAggregateStatus_RegisteredWithoutEntryCarriesNoVote(t *testing.T) {
	// "c" registered after the transaction was created; it must not block.
	tx := newTx(map[string]TryStatus{"a": TrySuccessful, "b": TrySuccessful})
	if got := AggregateStatus(tx, []string{"a", "b", "c"}); got != TxSuccessful {
		t.Errorf("got %s, want successful", got)
	}
}

func TestAggregateStatus_OnlyRegisteredIDsVote(t *testing.T) {
	tx := newTx(map[string]TryStatus{"a": TrySuccessful, "b": TryFailure})
	if got := AggregateStatus(tx, []string{"a"}); got != TxSuccessful {
		t.Errorf("got %s, want successful when the failed entry is not in scope", got)
	}
}
