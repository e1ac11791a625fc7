// Package inmemory provides a process-local TransactionStore. It honors the
// full store contract (atomic first-writer-wins entries, idempotent submit,
// TTL advisory lock) and is what the engine's unit tests and the examples run
// against. It is of course not crash-safe.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sharedcode/tcc"
)

// DefaultMaxHangingFetch caps GetHangingTXs result size.
const DefaultMaxHangingFetch = 100

// backend is the state shared by every handle onto one logical store.
type backend struct {
	mux          sync.Mutex
	lastID       int64
	transactions map[int64]*tcc.Transaction

	lockMux    sync.Mutex
	lockOwner  tcc.UUID
	lockExpiry time.Time
}

// TransactionStore keeps all transactions in process memory. Handles created
// with NewSharedStore see the same data & advisory lock under their own lock
// owner id, which lets tests stand up multiple "coordinator instances" over
// one backend.
type TransactionStore struct {
	b               *backend
	maxHangingFetch int
	lockKey         *tcc.LockKey
}

// NewTransactionStore returns an empty store with the default hanging-fetch cap.
func NewTransactionStore() *TransactionStore {
	return NewTransactionStoreWithCap(DefaultMaxHangingFetch)
}

// NewTransactionStoreWithCap returns an empty store capping GetHangingTXs at maxHangingFetch.
func NewTransactionStoreWithCap(maxHangingFetch int) *TransactionStore {
	if maxHangingFetch <= 0 {
		maxHangingFetch = DefaultMaxHangingFetch
	}
	return &TransactionStore{
		b: &backend{
			transactions: make(map[int64]*tcc.Transaction),
		},
		maxHangingFetch: maxHangingFetch,
		lockKey:         tcc.CreateLockKeys([]string{"Monitor"})[0],
	}
}

// NewSharedStore returns another handle onto this store's data & advisory
// lock, holding a fresh lock owner id.
func (s *TransactionStore) NewSharedStore() *TransactionStore {
	return &TransactionStore{
		b:               s.b,
		maxHangingFetch: s.maxHangingFetch,
		lockKey:         tcc.CreateLockKeys([]string{"Monitor"})[0],
	}
}

// CreateTx persists a new hanging transaction and returns its monotonic id.
func (s *TransactionStore) CreateTx(ctx context.Context, participantIDs []string) (int64, error) {
	if len(participantIDs) == 0 {
		return 0, tcc.Error{Code: tcc.StorageFailure, Err: fmt.Errorf("a transaction needs at least one participant")}
	}
	s.b.mux.Lock()
	defer s.b.mux.Unlock()
	s.b.lastID++
	id := s.b.lastID
	statuses := make(map[string]tcc.ParticipantEntry, len(participantIDs))
	for _, pid := range participantIDs {
		statuses[pid] = tcc.ParticipantEntry{ParticipantID: pid, TryStatus: tcc.TryHanging}
	}
	s.b.transactions[id] = &tcc.Transaction{
		ID:                  id,
		Status:              tcc.TxHanging,
		ParticipantStatuses: statuses,
		CreatedAt:           tcc.Now(),
	}
	return id, nil
}

// TXUpdateComponentStatus resolves one participant entry. First non-hanging
// write wins; later writes for the same entry are no-ops.
func (s *TransactionStore) TXUpdateComponentStatus(ctx context.Context, txID int64, participantID string, accept bool) error {
	s.b.mux.Lock()
	defer s.b.mux.Unlock()
	tx, ok := s.b.transactions[txID]
	if !ok {
		return tcc.Error{Code: tcc.TransactionNotFound, Err: fmt.Errorf("transaction %d not found", txID), UserData: txID}
	}
	entry, ok := tx.ParticipantStatuses[participantID]
	if !ok {
		return tcc.Error{Code: tcc.TransactionNotFound, Err: fmt.Errorf("transaction %d has no participant %s", txID, participantID), UserData: participantID}
	}
	if entry.TryStatus != tcc.TryHanging {
		return nil
	}
	if accept {
		entry.TryStatus = tcc.TrySuccessful
	} else {
		entry.TryStatus = tcc.TryFailure
	}
	tx.ParticipantStatuses[participantID] = entry
	return nil
}

// TXSubmit sets the terminal status. Idempotent per (txID, success);
// a conflicting terminal write fails with InvalidTransactionState.
func (s *TransactionStore) TXSubmit(ctx context.Context, txID int64, success bool) error {
	s.b.mux.Lock()
	defer s.b.mux.Unlock()
	tx, ok := s.b.transactions[txID]
	if !ok {
		return tcc.Error{Code: tcc.TransactionNotFound, Err: fmt.Errorf("transaction %d not found", txID), UserData: txID}
	}
	target := tcc.TxFailure
	if success {
		target = tcc.TxSuccessful
	}
	if tx.Status == target {
		return nil
	}
	if tx.Status != tcc.TxHanging {
		return tcc.Error{Code: tcc.InvalidTransactionState, Err: fmt.Errorf("transaction %d is already %s", txID, tx.Status), UserData: txID}
	}
	tx.Status = target
	return nil
}

// GetHangingTXs returns hanging transactions ascending by creation time,
// bounded by the store's fetch cap.
func (s *TransactionStore) GetHangingTXs(ctx context.Context) ([]tcc.Transaction, error) {
	s.b.mux.Lock()
	defer s.b.mux.Unlock()
	r := make([]tcc.Transaction, 0)
	for _, tx := range s.b.transactions {
		if tx.Status == tcc.TxHanging {
			r = append(r, cloneTx(tx))
		}
	}
	sort.Slice(r, func(i, j int) bool {
		if r[i].CreatedAt.Equal(r[j].CreatedAt) {
			return r[i].ID < r[j].ID
		}
		return r[i].CreatedAt.Before(r[j].CreatedAt)
	})
	if len(r) > s.maxHangingFetch {
		r = r[:s.maxHangingFetch]
	}
	return r, nil
}

// GetTX fetches a copy of one transaction.
func (s *TransactionStore) GetTX(ctx context.Context, txID int64) (tcc.Transaction, error) {
	s.b.mux.Lock()
	defer s.b.mux.Unlock()
	tx, ok := s.b.transactions[txID]
	if !ok {
		return tcc.Transaction{}, tcc.Error{Code: tcc.TransactionNotFound, Err: fmt.Errorf("transaction %d not found", txID), UserData: txID}
	}
	return cloneTx(tx), nil
}

// Lock acquires the advisory monitor lock for at most the expire duration.
// Re-acquiring a lock this handle already owns just extends its expiry.
func (s *TransactionStore) Lock(ctx context.Context, expire time.Duration) error {
	s.b.lockMux.Lock()
	defer s.b.lockMux.Unlock()
	now := tcc.Now()
	held := !s.b.lockOwner.IsNil() && s.b.lockExpiry.After(now)
	if held && s.b.lockOwner != s.lockKey.LockID {
		return tcc.Error{Code: tcc.LockAcquisitionFailure, Err: fmt.Errorf("monitor lock is held by %s", s.b.lockOwner), UserData: s.b.lockOwner.String()}
	}
	s.b.lockOwner = s.lockKey.LockID
	s.b.lockExpiry = now.Add(expire)
	s.lockKey.IsLockOwner = true
	return nil
}

// Unlock releases the advisory lock if this handle owns it.
func (s *TransactionStore) Unlock(ctx context.Context) error {
	s.b.lockMux.Lock()
	defer s.b.lockMux.Unlock()
	if !s.lockKey.IsLockOwner || s.b.lockOwner != s.lockKey.LockID {
		s.lockKey.IsLockOwner = false
		return nil
	}
	s.b.lockOwner = tcc.NilUUID
	s.lockKey.IsLockOwner = false
	return nil
}

func cloneTx(tx *tcc.Transaction) tcc.Transaction {
	c := *tx
	c.ParticipantStatuses = make(map[string]tcc.ParticipantEntry, len(tx.ParticipantStatuses))
	for k, v := range tx.ParticipantStatuses {
		c.ParticipantStatuses[k] = v
	}
	return c
}
