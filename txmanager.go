package tcc

import (
	"context"
	"fmt"
	log "log/slog"
	"sort"
	"sync"
	"time"
)

// Outcome discriminates why a Try phase ended the way it did. The collapsed
// Success bool in Result is kept for callers that don't care.
type Outcome int

const (
	// OutcomeOK means every Try completed successfully within the budget.
	OutcomeOK Outcome = iota
	// OutcomeTimeout means the Try-phase timer expired first.
	OutcomeTimeout
	// OutcomeBusinessFailure means a participant rejected its Try.
	OutcomeBusinessFailure
)

// String returns the display name of the Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeTimeout:
		return "timeout"
	case OutcomeBusinessFailure:
		return "businessFailure"
	}
	return "ok"
}

// Result is what StartTransaction hands back to the caller.
type Result struct {
	TxID    int64   `json:"id"`
	Success bool    `json:"success"`
	Outcome Outcome `json:"outcome"`
}

// Health is the coordinator's self-report.
type Health struct {
	Healthy           bool             `json:"healthy"`
	InstanceID        string           `json:"instanceId"`
	ParticipantsCount int              `json:"participantsCount"`
	MonitorEnabled    bool             `json:"monitorEnabled"`
	Metrics           map[string]int64 `json:"metrics"`
}

// TxManager coordinates registered participants through the Try-Confirm-Cancel
// protocol against a durable TransactionStore. All its in-memory state
// (registry, monitor flag, instance id) is per-process; everything that must
// survive a restart lives in the store.
type TxManager struct {
	store      TransactionStore
	options    Options
	metrics    MetricsCollector
	retrier    *RetryExecutor
	instanceID UUID

	// Guards participants. Never held across participant or store calls;
	// fan-outs operate on a snapshot.
	mux          sync.RWMutex
	participants map[string]Participant

	stopOnce sync.Once
	done     chan struct{}
	joiner   sync.WaitGroup
}

// NewTxManager constructs a coordinator over the given store and starts its
// monitor loop when enabled. A nil metrics collector gets the in-memory default.
func NewTxManager(store TransactionStore, options Options, metrics MetricsCollector) *TxManager {
	if metrics == nil {
		metrics = NewMetricsCollector()
	}
	options = options.repair()
	t := &TxManager{
		store:        store,
		options:      options,
		metrics:      metrics,
		retrier:      NewRetryExecutor(options.Retry, metrics),
		instanceID:   NewUUID(),
		participants: make(map[string]Participant),
		done:         make(chan struct{}),
	}
	if options.EnableMonitor {
		t.joiner.Add(1)
		go t.monitor()
	}
	return t
}

// Register adds a participant to this instance's registry.
func (t *TxManager) Register(p Participant) error {
	if p == nil || p.ID() == "" {
		return fmt.Errorf("participant with a non-empty ID is required")
	}
	t.mux.Lock()
	defer t.mux.Unlock()
	if _, ok := t.participants[p.ID()]; ok {
		return Error{Code: DuplicateParticipant, Err: fmt.Errorf("participant %s is already registered", p.ID()), UserData: p.ID()}
	}
	t.participants[p.ID()] = p
	return nil
}

// Stop signals the monitor loop to exit and waits for it to join. In-flight
// StartTransaction calls are not cancelled; callers are expected to drain first.
func (t *TxManager) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
	t.joiner.Wait()
}

// GetHealth reports this instance's runtime state and metric snapshot.
func (t *TxManager) GetHealth() Health {
	t.mux.RLock()
	count := len(t.participants)
	t.mux.RUnlock()
	healthy := true
	select {
	case <-t.done:
		healthy = false
	default:
	}
	return Health{
		Healthy:           healthy,
		InstanceID:        t.instanceID.String(),
		ParticipantsCount: count,
		MonitorEnabled:    t.options.EnableMonitor,
		Metrics:           t.metrics.Snapshot(),
	}
}

// snapshot returns the registered participants sorted by id. Registry reads
// are taken once per operation so a concurrent Register can't change the
// participant set mid-flight.
func (t *TxManager) snapshot() []Participant {
	t.mux.RLock()
	defer t.mux.RUnlock()
	parts := make([]Participant, 0, len(t.participants))
	for _, p := range t.participants {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].ID() < parts[j].ID() })
	return parts
}

func (t *TxManager) lookup(id string) (Participant, bool) {
	t.mux.RLock()
	defer t.mux.RUnlock()
	p, ok := t.participants[id]
	return p, ok
}

// StartTransaction creates a transaction over the currently registered
// participants, fans out their Tries racing the Try-phase timer, then kicks
// off second-phase advancement. The returned Result reflects the Try phase:
// Success is true iff every Try completed successfully within the budget and
// every status update was durably recorded. Business-level Try rejections are
// reported through the Result, not the error; infrastructure failures surface
// as the error.
func (t *TxManager) StartTransaction(ctx context.Context, opts *StartOptions) (*Result, error) {
	parts := t.snapshot()
	if len(parts) == 0 {
		return nil, Error{Code: NoParticipantsRegistered, Err: fmt.Errorf("no participants registered")}
	}
	ids := make([]string, len(parts))
	for i, p := range parts {
		ids[i] = p.ID()
	}

	txID, err := t.store.CreateTx(ctx, ids)
	if err != nil {
		return nil, err
	}
	t.metrics.Add(MetricTransactionsStarted, 1)

	timeout := t.options.Timeout
	var metadata map[string]string
	if opts != nil {
		// A per-call override may shrink the budget but never extend it: the
		// monitor expires overdue try phases against the manager budget, so a
		// longer override would get cancelled out from under a still-running
		// try phase. A negative override means a zero budget, i.e. the try
		// phase expires immediately.
		if opts.Timeout < 0 {
			timeout = 0
		} else if opts.Timeout > 0 && opts.Timeout < timeout {
			timeout = opts.Timeout
		}
		metadata = opts.Metadata
	}

	outcome, tryErr := t.runTryPhase(ctx, txID, parts, timeout, metadata)

	// Second-phase advancement is handed off so the caller gets its Try
	// verdict promptly; when it fails here the monitor redoes it.
	go func() {
		actx := context.WithoutCancel(ctx)
		if err := t.AdvanceTransactionProgressByID(actx, txID); err != nil {
			log.Warn(fmt.Sprintf("foreground advance of transaction %d failed, leaving it to the monitor, details: %v", txID, err))
		}
	}()

	r := &Result{TxID: txID, Success: outcome == OutcomeOK, Outcome: outcome}
	if tryErr != nil {
		return r, tryErr
	}
	return r, nil
}

type tryResult struct {
	participantID string
	err           error
	infra         bool
}

// runTryPhase races the participants' concurrent Tries against the Try-phase
// timer. The first of {Try rejection, terminal status-update error, timer
// expiry} flips the transaction onto the losing path; still-running Tries are
// abandoned but their eventual status updates are honored by the store's
// first-non-Hanging-write-wins. On expiry the coordinator durably records
// failure for every entry that hasn't reported, so the aggregate can reach
// TxFailure instead of hanging behind a stuck participant.
func (t *TxManager) runTryPhase(ctx context.Context, txID int64, parts []Participant, timeout time.Duration, metadata map[string]string) (Outcome, error) {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Status updates survive abandonment of the try phase.
	sctx := context.WithoutCancel(ctx)

	if timeout <= 0 {
		// Zero budget: expire without dispatching a single Try. The cancel
		// fan-out still runs so participants with an empty reservation get
		// their idempotent Cancel.
		for _, p := range parts {
			if uerr := t.store.TXUpdateComponentStatus(sctx, txID, p.ID(), false); uerr != nil {
				log.Error(fmt.Sprintf("recording zero-budget expiry of transaction %d participant %s failed, details: %v", txID, p.ID(), uerr))
			}
		}
		log.Warn(fmt.Sprintf("try phase of transaction %d expired immediately, zero budget", txID))
		return OutcomeTimeout, nil
	}

	resCh := make(chan tryResult, len(parts))
	for _, p := range parts {
		p := p
		go func() {
			if err := p.Try(cctx, &TryRequest{TxID: txID, Metadata: metadata}); err != nil {
				log.Warn(fmt.Sprintf("try of transaction %d rejected by participant %s, details: %v", txID, p.ID(), err))
				if uerr := t.store.TXUpdateComponentStatus(sctx, txID, p.ID(), false); uerr != nil {
					log.Error(fmt.Sprintf("recording try failure of transaction %d participant %s failed, details: %v", txID, p.ID(), uerr))
				}
				resCh <- tryResult{participantID: p.ID(), err: Error{Code: ParticipantFailure, Err: err, UserData: p.ID()}}
				return
			}
			if uerr := t.store.TXUpdateComponentStatus(sctx, txID, p.ID(), true); uerr != nil {
				log.Error(fmt.Sprintf("recording try success of transaction %d participant %s failed, details: %v", txID, p.ID(), uerr))
				resCh <- tryResult{participantID: p.ID(), err: uerr, infra: true}
				return
			}
			resCh <- tryResult{participantID: p.ID()}
		}()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	completed := make(map[string]bool, len(parts))
	remaining := len(parts)
	for remaining > 0 {
		select {
		case r := <-resCh:
			remaining--
			completed[r.participantID] = true
			if r.err == nil {
				continue
			}
			// Losing path; abandon the other tries.
			cancel()
			if r.infra {
				// The participant may have reserved; its idempotent Cancel
				// covers us once the monitor drives the abort.
				return OutcomeBusinessFailure, r.err
			}
			return OutcomeBusinessFailure, nil
		case <-timer.C:
			cancel()
			for _, p := range parts {
				if completed[p.ID()] {
					continue
				}
				if uerr := t.store.TXUpdateComponentStatus(sctx, txID, p.ID(), false); uerr != nil {
					log.Error(fmt.Sprintf("recording try timeout of transaction %d participant %s failed, details: %v", txID, p.ID(), uerr))
				}
			}
			log.Warn(fmt.Sprintf("try phase of transaction %d timed out after %v", txID, timeout))
			return OutcomeTimeout, nil
		}
	}
	return OutcomeOK, nil
}

// AdvanceTransactionProgressByID fetches the transaction then advances it.
func (t *TxManager) AdvanceTransactionProgressByID(ctx context.Context, txID int64) error {
	tx, err := t.store.GetTX(ctx, txID)
	if err != nil {
		return err
	}
	return t.AdvanceTransactionProgress(ctx, &tx)
}

// AdvanceTransactionProgress drives one transaction towards a terminal state.
// Idempotent: a terminal transaction aggregates to the same status and its
// submit is a no-op. The transaction is only submitted after every
// participant's Confirm (resp. Cancel) returned success; any unresolved
// participant leaves it hanging for the next monitor tick.
func (t *TxManager) AdvanceTransactionProgress(ctx context.Context, tx *Transaction) error {
	parts := t.snapshot()
	if len(parts) == 0 {
		return Error{Code: NoParticipantsRegistered, Err: fmt.Errorf("no participants registered to advance transaction %d", tx.ID)}
	}
	ids := make([]string, len(parts))
	for i, p := range parts {
		ids[i] = p.ID()
	}

	status := AggregateStatus(tx, ids)
	if status == TxHanging {
		refreshed, err := t.expireOverdueTryPhase(ctx, tx)
		if err != nil {
			return err
		}
		if refreshed == nil {
			// Still within its Try budget; revisit on a later tick.
			return nil
		}
		tx = refreshed
		status = AggregateStatus(tx, ids)
		if status == TxHanging {
			return nil
		}
	}

	success := status == TxSuccessful
	phase := "confirm"
	if !success {
		phase = "cancel"
	}

	// Every recorded entry needs a registered participant to receive its
	// second phase; a partially re-registered instance must not submit.
	for id := range tx.ParticipantStatuses {
		if _, ok := t.lookup(id); !ok {
			return Error{Code: ParticipantFailure, Err: fmt.Errorf("participant %s of transaction %d is not registered on this instance", id, tx.ID), UserData: id}
		}
	}

	tr := NewTaskRunner(0)
	for id := range tx.ParticipantStatuses {
		p, _ := t.lookup(id)
		tr.Go(func() error {
			op := p.Cancel
			if success {
				op = p.Confirm
			}
			name := fmt.Sprintf("%s of transaction %d participant %s", phase, tx.ID, p.ID())
			return t.retrier.Execute(ctx, name, func(ctx context.Context) error {
				return op(ctx, tx.ID)
			})
		})
	}
	if err := tr.Wait(); err != nil {
		// Leave the transaction hanging; the monitor will retry the phase.
		// Participant idempotency makes the repeats safe.
		if success {
			log.Error(fmt.Sprintf("confirm fan-out of transaction %d did not resolve, details: %v", tx.ID, err))
		} else {
			log.Warn(fmt.Sprintf("cancel fan-out of transaction %d did not resolve, details: %v", tx.ID, err))
		}
		return err
	}

	if err := t.store.TXSubmit(ctx, tx.ID, success); err != nil {
		return err
	}
	if success {
		t.metrics.Add(MetricTransactionsSucceeded, 1)
	} else {
		t.metrics.Add(MetricTransactionsFailed, 1)
	}
	log.Info(fmt.Sprintf("transaction %d submitted as %s", tx.ID, status))
	return nil
}

// expireOverdueTryPhase handles a transaction whose Try phase outlived its
// budget, e.g. because the coordinator died mid-fan-out before it could record
// the timeout. Entries still hanging past the budget are recorded as failures
// (first-writer-wins keeps late successes that already landed) and the
// refreshed transaction is returned. Returns nil when the budget hasn't
// elapsed yet.
func (t *TxManager) expireOverdueTryPhase(ctx context.Context, tx *Transaction) (*Transaction, error) {
	if Now().Sub(tx.CreatedAt) <= t.options.Timeout {
		return nil, nil
	}
	for id, entry := range tx.ParticipantStatuses {
		if entry.TryStatus != TryHanging {
			continue
		}
		if err := t.store.TXUpdateComponentStatus(ctx, tx.ID, id, false); err != nil {
			return nil, err
		}
	}
	refreshed, err := t.store.GetTX(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	return &refreshed, nil
}
