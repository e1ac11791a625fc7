package tcc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sharedcode/tcc"
	"github.com/sharedcode/tcc/inmemory"
)

// fakeParticipant is a scriptable in-process participant.
type fakeParticipant struct {
	id string

	mu         sync.Mutex
	tries      int
	confirms   int
	cancels    int
	tryErr     error
	tryDelay   time.Duration
	confirmErr error
}

func (p *fakeParticipant) ID() string {
	return p.id
}

func (p *fakeParticipant) Try(ctx context.Context, req *tcc.TryRequest) error {
	p.mu.Lock()
	p.tries++
	delay, err := p.tryDelay, p.tryErr
	p.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (p *fakeParticipant) Confirm(ctx context.Context, txID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirms++
	return p.confirmErr
}

func (p *fakeParticipant) Cancel(ctx context.Context, txID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancels++
	return nil
}

func (p *fakeParticipant) counts() (tries, confirms, cancels int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tries, p.confirms, p.cancels
}

func (p *fakeParticipant) setConfirmErr(err error) {
	p.mu.Lock()
	p.confirmErr = err
	p.mu.Unlock()
}

func fastManagerOptions() tcc.Options {
	return tcc.Options{
		Timeout:       500 * time.Millisecond,
		EnableMonitor: false,
		Retry: tcc.RetryOptions{
			MaxRetries:        2,
			BaseDelay:         time.Millisecond,
			MaxDelay:          2 * time.Millisecond,
			BackoffMultiplier: 2,
		},
	}
}

// waitForStatus polls the store until the transaction reaches want.
func waitForStatus(t *testing.T, store tcc.TransactionStore, txID int64, want tcc.TxStatus) tcc.Transaction {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		tx, err := store.GetTX(context.Background(), txID)
		if err != nil {
			t.Fatalf("GetTX failed: %v", err)
		}
		if tx.Status == want {
			return tx
		}
		if time.Now().After(deadline) {
			t.Fatalf("transaction %d stuck at %s, want %s", txID, tx.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartTransaction_AllParticipantsConfirm(t *testing.T) {
	store := inmemory.NewTransactionStore()
	m := tcc.NewTxManager(store, fastManagerOptions(), nil)
	defer m.Stop()
	inv := &fakeParticipant{id: "inventory"}
	pay := &fakeParticipant{id: "payment"}
	if err := m.Register(inv); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := m.Register(pay); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	r, err := m.StartTransaction(context.Background(), nil)
	if err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}
	if !r.Success || r.Outcome != tcc.OutcomeOK {
		t.Errorf("result = %+v, want ok", r)
	}

	waitForStatus(t, store, r.TxID, tcc.TxSuccessful)
	if _, confirms, cancels := inv.counts(); confirms != 1 || cancels != 0 {
		t.Errorf("inventory confirms/cancels = %d/%d, want 1/0", confirms, cancels)
	}
	if _, confirms, cancels := pay.counts(); confirms != 1 || cancels != 0 {
		t.Errorf("payment confirms/cancels = %d/%d, want 1/0", confirms, cancels)
	}
}

func TestStartTransaction_RejectedTryCancelsAll(t *testing.T) {
	store := inmemory.NewTransactionStore()
	m := tcc.NewTxManager(store, fastManagerOptions(), nil)
	defer m.Stop()
	inv := &fakeParticipant{id: "inventory"}
	pay := &fakeParticipant{id: "payment", tryErr: errors.New("insufficient funds")}
	m.Register(inv)
	m.Register(pay)

	r, err := m.StartTransaction(context.Background(), nil)
	if err != nil {
		t.Fatalf("a business rejection must not surface as an error, got: %v", err)
	}
	if r.Success || r.Outcome != tcc.OutcomeBusinessFailure {
		t.Errorf("result = %+v, want business failure", r)
	}

	tx := waitForStatus(t, store, r.TxID, tcc.TxFailure)
	if tx.ParticipantStatuses["payment"].TryStatus != tcc.TryFailure {
		t.Errorf("payment entry = %s, want failure", tx.ParticipantStatuses["payment"].TryStatus)
	}
	if _, confirms, cancels := inv.counts(); confirms != 0 || cancels < 1 {
		t.Errorf("inventory confirms/cancels = %d/%d, want 0/>=1", confirms, cancels)
	}
	if _, _, cancels := pay.counts(); cancels < 1 {
		t.Errorf("payment cancels = %d, want >= 1", cancels)
	}
}

func TestStartTransaction_TimeoutCancelsAll(t *testing.T) {
	store := inmemory.NewTransactionStore()
	m := tcc.NewTxManager(store, fastManagerOptions(), nil)
	defer m.Stop()
	fast := &fakeParticipant{id: "fast"}
	slow := &fakeParticipant{id: "slow", tryDelay: 5 * time.Second}
	m.Register(fast)
	m.Register(slow)

	r, err := m.StartTransaction(context.Background(), &tcc.StartOptions{Timeout: 40 * time.Millisecond})
	if err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}
	if r.Success || r.Outcome != tcc.OutcomeTimeout {
		t.Errorf("result = %+v, want timeout", r)
	}

	tx := waitForStatus(t, store, r.TxID, tcc.TxFailure)
	if tx.ParticipantStatuses["slow"].TryStatus != tcc.TryFailure {
		t.Errorf("slow entry = %s, want failure recorded at expiry", tx.ParticipantStatuses["slow"].TryStatus)
	}
	// The fast participant reserved; the abort must release it.
	if _, confirms, cancels := fast.counts(); confirms != 0 || cancels < 1 {
		t.Errorf("fast confirms/cancels = %d/%d, want 0/>=1", confirms, cancels)
	}
}

func TestStartTransaction_TimeoutOverrideCannotExtendBudget(t *testing.T) {
	store := inmemory.NewTransactionStore()
	o := fastManagerOptions()
	o.Timeout = 40 * time.Millisecond
	m := tcc.NewTxManager(store, o, nil)
	defer m.Stop()
	slow := &fakeParticipant{id: "slow", tryDelay: 300 * time.Millisecond}
	m.Register(slow)

	// The override is above the manager budget; honoring it verbatim would
	// let the monitor's expiry sweep cancel the transaction mid-try and then
	// contradict a successful result. It must be clamped instead.
	r, err := m.StartTransaction(context.Background(), &tcc.StartOptions{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}
	if r.Success || r.Outcome != tcc.OutcomeTimeout {
		t.Fatalf("result = %+v, want timeout under the clamped budget", r)
	}
	waitForStatus(t, store, r.TxID, tcc.TxFailure)
	if _, confirms, cancels := slow.counts(); confirms != 0 || cancels < 1 {
		t.Errorf("confirms/cancels = %d/%d, want 0/>=1", confirms, cancels)
	}
}

func TestStartTransaction_ZeroBudgetExpiresImmediately(t *testing.T) {
	store := inmemory.NewTransactionStore()
	m := tcc.NewTxManager(store, fastManagerOptions(), nil)
	defer m.Stop()
	inv := &fakeParticipant{id: "inventory"}
	m.Register(inv)

	r, err := m.StartTransaction(context.Background(), &tcc.StartOptions{Timeout: -1})
	if err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}
	if r.Success || r.Outcome != tcc.OutcomeTimeout {
		t.Fatalf("result = %+v, want immediate timeout", r)
	}

	tx := waitForStatus(t, store, r.TxID, tcc.TxFailure)
	if tx.ParticipantStatuses["inventory"].TryStatus != tcc.TryFailure {
		t.Errorf("entry = %s, want failure", tx.ParticipantStatuses["inventory"].TryStatus)
	}
	tries, confirms, _ := inv.counts()
	if tries != 0 {
		t.Errorf("tries = %d, want none dispatched on a zero budget", tries)
	}
	if confirms != 0 {
		t.Errorf("confirms = %d, want 0", confirms)
	}
	// The abort is still delivered.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, _, cancels := inv.counts(); cancels >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cancel was never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartTransaction_NoParticipants(t *testing.T) {
	m := tcc.NewTxManager(inmemory.NewTransactionStore(), fastManagerOptions(), nil)
	defer m.Stop()

	_, err := m.StartTransaction(context.Background(), nil)
	var e tcc.Error
	if !errors.As(err, &e) || e.Code != tcc.NoParticipantsRegistered {
		t.Fatalf("got %v, want NoParticipantsRegistered", err)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	m := tcc.NewTxManager(inmemory.NewTransactionStore(), fastManagerOptions(), nil)
	defer m.Stop()

	if err := m.Register(&fakeParticipant{id: "inventory"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	err := m.Register(&fakeParticipant{id: "inventory"})
	var e tcc.Error
	if !errors.As(err, &e) || e.Code != tcc.DuplicateParticipant {
		t.Fatalf("got %v, want DuplicateParticipant", err)
	}
}

func TestAdvance_ConfirmFailureLeavesTransactionHanging(t *testing.T) {
	store := inmemory.NewTransactionStore()
	m := tcc.NewTxManager(store, fastManagerOptions(), nil)
	defer m.Stop()
	inv := &fakeParticipant{id: "inventory"}
	inv.setConfirmErr(tcc.Error{Code: tcc.ParticipantFailure, Err: errors.New("endpoint gone")})
	m.Register(inv)

	r, err := m.StartTransaction(context.Background(), nil)
	if err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}
	if !r.Success {
		t.Fatalf("try phase should have succeeded, got %+v", r)
	}

	// Wait for the async confirm fan-out to fail, then verify nothing was
	// submitted: the transaction stays visible to the monitor.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, confirms, _ := inv.counts(); confirms >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("confirm was never attempted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	tx, err := store.GetTX(context.Background(), r.TxID)
	if err != nil {
		t.Fatalf("GetTX failed: %v", err)
	}
	if tx.Status != tcc.TxHanging {
		t.Fatalf("status = %s, want hanging while confirm keeps failing", tx.Status)
	}

	// Participant recovers; re-driving the transaction completes it.
	inv.setConfirmErr(nil)
	if err := m.AdvanceTransactionProgressByID(context.Background(), r.TxID); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	waitForStatus(t, store, r.TxID, tcc.TxSuccessful)
}

func TestAdvance_TerminalTransactionIsIdempotent(t *testing.T) {
	store := inmemory.NewTransactionStore()
	m := tcc.NewTxManager(store, fastManagerOptions(), nil)
	defer m.Stop()
	inv := &fakeParticipant{id: "inventory"}
	m.Register(inv)

	r, err := m.StartTransaction(context.Background(), nil)
	if err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}
	waitForStatus(t, store, r.TxID, tcc.TxSuccessful)

	// A redelivery must not error nor flip the terminal status.
	if err := m.AdvanceTransactionProgressByID(context.Background(), r.TxID); err != nil {
		t.Fatalf("re-advance failed: %v", err)
	}
	tx, _ := store.GetTX(context.Background(), r.TxID)
	if tx.Status != tcc.TxSuccessful {
		t.Errorf("status = %s, want successful", tx.Status)
	}
}

func TestStartTransaction_MetadataReachesParticipants(t *testing.T) {
	store := inmemory.NewTransactionStore()
	m := tcc.NewTxManager(store, fastManagerOptions(), nil)
	defer m.Stop()

	var gotMu sync.Mutex
	var got map[string]string
	p := &recordingParticipant{id: "inventory", onTry: func(req *tcc.TryRequest) {
		gotMu.Lock()
		got = req.Metadata
		gotMu.Unlock()
	}}
	m.Register(p)

	want := map[string]string{"orderId": "o-17"}
	if _, err := m.StartTransaction(context.Background(), &tcc.StartOptions{Metadata: want}); err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}
	gotMu.Lock()
	defer gotMu.Unlock()
	if got["orderId"] != "o-17" {
		t.Errorf("metadata = %v, want %v", got, want)
	}
}

func TestGetHealth(t *testing.T) {
	m := tcc.NewTxManager(inmemory.NewTransactionStore(), fastManagerOptions(), nil)
	m.Register(&fakeParticipant{id: "inventory"})

	h := m.GetHealth()
	if !h.Healthy || h.ParticipantsCount != 1 || h.MonitorEnabled {
		t.Errorf("health = %+v", h)
	}
	if h.InstanceID == "" {
		t.Errorf("instance id should be set")
	}
	m.Stop()
	if h = m.GetHealth(); h.Healthy {
		t.Errorf("health should report unhealthy after Stop")
	}
}

// recordingParticipant accepts every call and hands the TryRequest to onTry.
type recordingParticipant struct {
	id    string
	onTry func(req *tcc.TryRequest)
}

func (p *recordingParticipant) ID() string { return p.id }

func (p *recordingParticipant) Try(ctx context.Context, req *tcc.TryRequest) error {
	if p.onTry != nil {
		p.onTry(req)
	}
	return nil
}

func (p *recordingParticipant) Confirm(ctx context.Context, txID int64) error { return nil }

func (p *recordingParticipant) Cancel(ctx context.Context, txID int64) error { return nil }
