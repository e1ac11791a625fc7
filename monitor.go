package tcc

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"
)

// monitor is the reconciliation loop: each tick it takes the cluster-wide
// advisory lock, fetches the hanging transactions and advances them
// concurrently. The lock only reduces duplicate work across coordinator
// instances; correctness rests on the store's atomicity.
func (t *TxManager) monitor() {
	defer t.joiner.Done()
	log.Info(fmt.Sprintf("monitor of coordinator instance %s started, interval %v", t.instanceID, t.options.MonitorInterval))

	interval := t.options.MonitorInterval
	wait := interval
	for {
		select {
		case <-t.done:
			log.Info("monitor stopped")
			return
		case <-time.After(wait):
		}
		if err := t.tick(); err != nil {
			log.Warn(fmt.Sprintf("monitor tick failed, backing off, details: %v", err))
			// Back off against a sick backend.
			wait = 3 * interval
			continue
		}
		wait = interval
	}
}

// tick runs one monitor iteration. A held lock elsewhere skips the tick
// without error; anything else bubbles up and triggers the loop's backoff.
func (t *TxManager) tick() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*t.options.MonitorInterval)
	defer cancel()
	t.metrics.Add(MetricMonitorTicks, 1)

	if err := t.store.Lock(ctx, 2*t.options.MonitorInterval); err != nil {
		var e Error
		if errors.As(err, &e) && e.Code == LockAcquisitionFailure {
			// Another instance is sweeping.
			log.Debug("monitor lock is held elsewhere, skipping tick")
			return nil
		}
		return err
	}
	defer func() {
		if err := t.store.Unlock(ctx); err != nil {
			log.Warn(fmt.Sprintf("monitor unlock failed, lock will expire on its own, details: %v", err))
		}
	}()

	txs, err := t.store.GetHangingTXs(ctx)
	if err != nil {
		return err
	}
	t.metrics.Set(MetricHangingTransactions, int64(len(txs)))
	if len(txs) == 0 {
		return nil
	}
	log.Info(fmt.Sprintf("monitor advancing %d hanging transaction(s)", len(txs)))

	// Outcomes are collected per transaction; one failed advance must not
	// fail the whole tick.
	tr := NewTaskRunner(t.options.AdvanceFanout)
	for i := range txs {
		tx := txs[i]
		tr.Go(func() error {
			if err := t.AdvanceTransactionProgress(ctx, &tx); err != nil {
				log.Warn(fmt.Sprintf("monitor advance of transaction %d failed, details: %v", tx.ID, err))
			}
			return nil
		})
	}
	return tr.Wait()
}
