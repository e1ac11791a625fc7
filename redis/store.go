package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sharedcode/tcc"
)

// Key layout of the transaction log in Redis. Static parts of a transaction
// (id, participants, createdAt) live in one JSON record; the volatile parts
// (per-participant try statuses, terminal status) are one key each so SETNX
// gives us first-writer-wins without scripting.
const (
	idSequenceKey   = "TCCtx_seq"
	hangingIndexKey = "TCCtx_hanging"

	recordKeyFormat = "TCCtx_%d"
	entryKeyFormat  = "TCCtx_%d_p_%s"
	statusKeyFormat = "TCCtx_%d_status"
)

// DefaultMaxHangingFetch caps GetHangingTXs result size.
const DefaultMaxHangingFetch = 100

// txRecord is the serialized static part of a transaction.
type txRecord struct {
	ID             int64     `json:"id"`
	ParticipantIDs []string  `json:"participantIds"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TransactionStore is a Redis-backed tcc.TransactionStore. Suitable as a
// lightweight production backend when Redis persistence (AOF) is enabled; it
// also supplies the advisory locker the cassandra store composes in.
type TransactionStore struct {
	c               client
	maxHangingFetch int
	lockKey         *tcc.LockKey
}

// NewTransactionStore returns a store over the singleton Redis connection.
// OpenConnection must have been called beforehand.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		c:               client{conn: connection},
		maxHangingFetch: DefaultMaxHangingFetch,
		lockKey:         tcc.CreateLockKeys([]string{"Monitor"})[0],
	}
}

func storageError(err error) error {
	return tcc.Error{Code: tcc.StorageFailure, Err: err}
}

// CreateTx persists a new hanging transaction and returns its monotonic id
// drawn from a Redis sequence.
func (s *TransactionStore) CreateTx(ctx context.Context, participantIDs []string) (int64, error) {
	if len(participantIDs) == 0 {
		return 0, tcc.Error{Code: tcc.StorageFailure, Err: fmt.Errorf("a transaction needs at least one participant")}
	}
	id, err := s.c.Incr(ctx, idSequenceKey)
	if err != nil {
		return 0, storageError(err)
	}
	rec := txRecord{
		ID:             id,
		ParticipantIDs: participantIDs,
		CreatedAt:      tcc.Now().UTC(),
	}
	if err := s.c.SetStruct(ctx, fmt.Sprintf(recordKeyFormat, id), rec, 0); err != nil {
		return 0, storageError(err)
	}
	// Index for the monitor's hanging sweep, scored by creation time.
	if err := s.c.ZAdd(ctx, hangingIndexKey, float64(rec.CreatedAt.UnixNano()), strconv.FormatInt(id, 10)); err != nil {
		return 0, storageError(err)
	}
	return id, nil
}

// TXUpdateComponentStatus resolves one participant entry. SETNX makes the
// first non-hanging write win; repeats and late stragglers are no-ops.
func (s *TransactionStore) TXUpdateComponentStatus(ctx context.Context, txID int64, participantID string, accept bool) error {
	rec, err := s.getRecord(ctx, txID)
	if err != nil {
		return err
	}
	known := false
	for _, pid := range rec.ParticipantIDs {
		if pid == participantID {
			known = true
			break
		}
	}
	if !known {
		return tcc.Error{Code: tcc.TransactionNotFound, Err: fmt.Errorf("transaction %d has no participant %s", txID, participantID), UserData: participantID}
	}
	status := tcc.TryFailure
	if accept {
		status = tcc.TrySuccessful
	}
	if _, err := s.c.SetNX(ctx, fmt.Sprintf(entryKeyFormat, txID, participantID), strconv.Itoa(int(status)), 0); err != nil {
		return storageError(err)
	}
	return nil
}

// TXSubmit sets the terminal status. SETNX keeps the first terminal write;
// an equal repeat is a no-op, a conflicting one fails with InvalidTransactionState.
func (s *TransactionStore) TXSubmit(ctx context.Context, txID int64, success bool) error {
	if _, err := s.getRecord(ctx, txID); err != nil {
		return err
	}
	target := tcc.TxFailure
	if success {
		target = tcc.TxSuccessful
	}
	key := fmt.Sprintf(statusKeyFormat, txID)
	created, err := s.c.SetNX(ctx, key, strconv.Itoa(int(target)), 0)
	if err != nil {
		return storageError(err)
	}
	if !created {
		found, current, err := s.c.Get(ctx, key)
		if err != nil {
			return storageError(err)
		}
		if found && current != strconv.Itoa(int(target)) {
			return tcc.Error{Code: tcc.InvalidTransactionState, Err: fmt.Errorf("transaction %d already has a conflicting terminal status", txID), UserData: txID}
		}
		return nil
	}
	if err := s.c.ZRem(ctx, hangingIndexKey, strconv.FormatInt(txID, 10)); err != nil {
		// The sweep tolerates already-terminal entries; next tick retries the index cleanup.
		return storageError(err)
	}
	return nil
}

// GetHangingTXs returns hanging transactions ascending by creation time,
// bounded by the store's fetch cap.
func (s *TransactionStore) GetHangingTXs(ctx context.Context) ([]tcc.Transaction, error) {
	members, err := s.c.ZRange(ctx, hangingIndexKey, int64(s.maxHangingFetch))
	if err != nil {
		return nil, storageError(err)
	}
	r := make([]tcc.Transaction, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		tx, err := s.GetTX(ctx, id)
		if err != nil {
			return nil, err
		}
		if tx.Status != tcc.TxHanging {
			// Terminal but still indexed (interrupted submit); finish the cleanup.
			_ = s.c.ZRem(ctx, hangingIndexKey, m)
			continue
		}
		r = append(r, tx)
	}
	return r, nil
}

// GetTX assembles one transaction from its record, entry & status keys.
func (s *TransactionStore) GetTX(ctx context.Context, txID int64) (tcc.Transaction, error) {
	rec, err := s.getRecord(ctx, txID)
	if err != nil {
		return tcc.Transaction{}, err
	}
	tx := tcc.Transaction{
		ID:                  rec.ID,
		Status:              tcc.TxHanging,
		ParticipantStatuses: make(map[string]tcc.ParticipantEntry, len(rec.ParticipantIDs)),
		CreatedAt:           rec.CreatedAt,
	}
	for _, pid := range rec.ParticipantIDs {
		entry := tcc.ParticipantEntry{ParticipantID: pid, TryStatus: tcc.TryHanging}
		found, v, err := s.c.Get(ctx, fmt.Sprintf(entryKeyFormat, txID, pid))
		if err != nil {
			return tcc.Transaction{}, storageError(err)
		}
		if found {
			n, err := strconv.Atoi(v)
			if err == nil {
				entry.TryStatus = tcc.TryStatus(n)
			}
		}
		tx.ParticipantStatuses[pid] = entry
	}
	found, v, err := s.c.Get(ctx, fmt.Sprintf(statusKeyFormat, txID))
	if err != nil {
		return tcc.Transaction{}, storageError(err)
	}
	if found {
		n, err := strconv.Atoi(v)
		if err == nil {
			tx.Status = tcc.TxStatus(n)
		}
	}
	return tx, nil
}

// Lock acquires the cluster-wide advisory monitor lock with the given TTL.
func (s *TransactionStore) Lock(ctx context.Context, expire time.Duration) error {
	ok, owner, err := s.c.Lock(ctx, expire, []*tcc.LockKey{s.lockKey})
	if err != nil {
		return storageError(err)
	}
	if !ok {
		return tcc.Error{Code: tcc.LockAcquisitionFailure, Err: fmt.Errorf("monitor lock is held by %s", owner), UserData: owner.String()}
	}
	return nil
}

// Unlock releases the monitor lock if this store holds it.
func (s *TransactionStore) Unlock(ctx context.Context) error {
	if err := s.c.Unlock(ctx, []*tcc.LockKey{s.lockKey}); err != nil {
		return storageError(err)
	}
	return nil
}

func (s *TransactionStore) getRecord(ctx context.Context, txID int64) (txRecord, error) {
	var rec txRecord
	found, err := s.c.GetStruct(ctx, fmt.Sprintf(recordKeyFormat, txID), &rec)
	if err != nil {
		return rec, storageError(err)
	}
	if !found {
		return rec, tcc.Error{Code: tcc.TransactionNotFound, Err: fmt.Errorf("transaction %d not found", txID), UserData: txID}
	}
	return rec, nil
}
