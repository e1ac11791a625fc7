package cassandra

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"github.com/sharedcode/tcc"
	"github.com/sharedcode/tcc/redis"
)

// Monotonic transaction ids come from a Redis sequence; Cassandra counters
// can't be read-and-incremented atomically.
const idSequenceKey = "TCCtx_seq"

// DefaultMaxHangingFetch caps GetHangingTXs result size.
const DefaultMaxHangingFetch = 100

// TransactionStore is a Cassandra-backed tcc.TransactionStore. Per-entry and
// terminal status writes go through lightweight transactions (IF conditions)
// so the first non-hanging write wins no matter how many coordinators race.
type TransactionStore struct {
	conn            *Connection
	rc              redis.Client
	maxHangingFetch int
	lockKey         *tcc.LockKey
}

// NewTransactionStore returns a store over the singleton Cassandra & Redis
// connections. Both OpenConnection funcs must have been called beforehand.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		conn:            connection,
		rc:              redis.NewClient(),
		maxHangingFetch: DefaultMaxHangingFetch,
		lockKey:         tcc.CreateLockKeys([]string{"Monitor"})[0],
	}
}

func storageError(err error) error {
	return tcc.Error{Code: tcc.StorageFailure, Err: err}
}

func (s *TransactionStore) table() string {
	return fmt.Sprintf("%s.transactions", s.conn.Config.Keyspace)
}

// CreateTx persists a new hanging transaction row holding one hanging entry
// per participant.
func (s *TransactionStore) CreateTx(ctx context.Context, participantIDs []string) (int64, error) {
	if len(participantIDs) == 0 {
		return 0, tcc.Error{Code: tcc.StorageFailure, Err: fmt.Errorf("a transaction needs at least one participant")}
	}
	id, err := s.rc.Incr(ctx, idSequenceKey)
	if err != nil {
		return 0, storageError(err)
	}
	statuses := make(map[string]int, len(participantIDs))
	for _, pid := range participantIDs {
		statuses[pid] = int(tcc.TryHanging)
	}
	qry := fmt.Sprintf("INSERT INTO %s (id, status, statuses, created_at) VALUES(?,?,?,?);", s.table())
	if err := s.conn.Session.Query(qry, id, int(tcc.TxHanging), statuses, tcc.Now().UTC()).
		WithContext(ctx).Consistency(s.conn.Consistency).Exec(); err != nil {
		return 0, storageError(err)
	}
	return id, nil
}

// TXUpdateComponentStatus resolves one participant entry. The IF condition
// makes the first non-hanging write win; repeats and late stragglers are no-ops.
func (s *TransactionStore) TXUpdateComponentStatus(ctx context.Context, txID int64, participantID string, accept bool) error {
	status := tcc.TryFailure
	if accept {
		status = tcc.TrySuccessful
	}
	qry := fmt.Sprintf("UPDATE %s SET statuses[?] = ? WHERE id = ? IF statuses[?] = ?;", s.table())
	prev := make(map[string]interface{})
	applied, err := s.conn.Session.Query(qry, participantID, int(status), txID, participantID, int(tcc.TryHanging)).
		WithContext(ctx).MapScanCAS(prev)
	if err != nil {
		return storageError(err)
	}
	if applied {
		return nil
	}
	// Not applied: either the entry is already resolved (fine) or the row
	// or the participant does not exist.
	tx, err := s.GetTX(ctx, txID)
	if err != nil {
		return err
	}
	if _, ok := tx.ParticipantStatuses[participantID]; !ok {
		return tcc.Error{Code: tcc.TransactionNotFound, Err: fmt.Errorf("transaction %d has no participant %s", txID, participantID), UserData: participantID}
	}
	return nil
}

// TXSubmit sets the terminal status via an IF status = hanging update; an
// equal repeat is a no-op, a conflicting one fails with InvalidTransactionState.
func (s *TransactionStore) TXSubmit(ctx context.Context, txID int64, success bool) error {
	target := tcc.TxFailure
	if success {
		target = tcc.TxSuccessful
	}
	qry := fmt.Sprintf("UPDATE %s SET status = ? WHERE id = ? IF status = ?;", s.table())
	prev := make(map[string]interface{})
	applied, err := s.conn.Session.Query(qry, int(target), txID, int(tcc.TxHanging)).
		WithContext(ctx).MapScanCAS(prev)
	if err != nil {
		return storageError(err)
	}
	if applied {
		return nil
	}
	current, ok := prev["status"].(int)
	if !ok {
		// No previous status column means no row.
		return tcc.Error{Code: tcc.TransactionNotFound, Err: fmt.Errorf("transaction %d not found", txID), UserData: txID}
	}
	if tcc.TxStatus(current) == target {
		return nil
	}
	return tcc.Error{Code: tcc.InvalidTransactionState, Err: fmt.Errorf("transaction %d already has a conflicting terminal status", txID), UserData: txID}
}

// GetHangingTXs returns hanging transactions ascending by creation time,
// bounded by the store's fetch cap. Served by the status secondary index.
func (s *TransactionStore) GetHangingTXs(ctx context.Context) ([]tcc.Transaction, error) {
	qry := fmt.Sprintf("SELECT id, status, statuses, created_at FROM %s WHERE status = ? LIMIT ?;", s.table())
	iter := s.conn.Session.Query(qry, int(tcc.TxHanging), s.maxHangingFetch).
		WithContext(ctx).Consistency(s.conn.Consistency).Iter()

	r := make([]tcc.Transaction, 0, s.maxHangingFetch)
	var (
		id        int64
		status    int
		statuses  map[string]int
		createdAt time.Time
	)
	for iter.Scan(&id, &status, &statuses, &createdAt) {
		r = append(r, toTransaction(id, status, statuses, createdAt))
		statuses = nil
	}
	if err := iter.Close(); err != nil {
		return nil, storageError(err)
	}
	sort.Slice(r, func(i, j int) bool {
		if r[i].CreatedAt.Equal(r[j].CreatedAt) {
			return r[i].ID < r[j].ID
		}
		return r[i].CreatedAt.Before(r[j].CreatedAt)
	})
	return r, nil
}

// GetTX fetches one transaction row.
func (s *TransactionStore) GetTX(ctx context.Context, txID int64) (tcc.Transaction, error) {
	qry := fmt.Sprintf("SELECT status, statuses, created_at FROM %s WHERE id = ?;", s.table())
	var (
		status    int
		statuses  map[string]int
		createdAt time.Time
	)
	if err := s.conn.Session.Query(qry, txID).WithContext(ctx).Consistency(s.conn.Consistency).
		Scan(&status, &statuses, &createdAt); err != nil {
		if err == gocql.ErrNotFound {
			return tcc.Transaction{}, tcc.Error{Code: tcc.TransactionNotFound, Err: fmt.Errorf("transaction %d not found", txID), UserData: txID}
		}
		return tcc.Transaction{}, storageError(err)
	}
	return toTransaction(txID, status, statuses, createdAt), nil
}

// Lock acquires the cluster-wide advisory monitor lock with the given TTL.
// The lock lives in Redis; Cassandra has no native advisory locking.
func (s *TransactionStore) Lock(ctx context.Context, expire time.Duration) error {
	ok, owner, err := s.rc.Lock(ctx, expire, []*tcc.LockKey{s.lockKey})
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
	if err := s.rc.Unlock(ctx, []*tcc.LockKey{s.lockKey}); err != nil {
		return storageError(err)
	}
	return nil
}

func toTransaction(id int64, status int, statuses map[string]int, createdAt time.Time) tcc.Transaction {
	tx := tcc.Transaction{
		ID:                  id,
		Status:              tcc.TxStatus(status),
		ParticipantStatuses: make(map[string]tcc.ParticipantEntry, len(statuses)),
		CreatedAt:           createdAt,
	}
	for pid, st := range statuses {
		tx.ParticipantStatuses[pid] = tcc.ParticipantEntry{ParticipantID: pid, TryStatus: tcc.TryStatus(st)}
	}
	return tx
}
