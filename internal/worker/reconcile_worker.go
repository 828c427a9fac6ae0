package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"homeledger/internal/amqp"
	"homeledger/internal/core"
	"homeledger/internal/log"
)

// BalanceChecker is the read side of the reconciler.
type BalanceChecker interface {
	Check(ctx context.Context) ([]core.Drift, error)
	CheckAccounts(ctx context.Context, ids ...int64) ([]core.Drift, error)
}

// EventSource delivers ledger events until ctx ends.
type EventSource interface {
	ConsumeEvents(ctx context.Context, handler amqp.EventHandler) error
}

// ReconcileWorker verifies account balances after every ledger event and on
// a fixed interval. It reports drift and never rewrites balances.
type ReconcileWorker struct {
	checker  BalanceChecker
	interval time.Duration
	logger   *log.Logger

	checks atomic.Int64
	drifts atomic.Int64
}

func NewReconcileWorker(checker BalanceChecker, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		checker:  checker,
		interval: interval,
		logger:   log.Default(log.ComponentWorker),
	}
}

// HandleEvent checks the accounts named by ev.
func (w *ReconcileWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.DebugContext(ctx, "Processing ledger event",
		log.FieldEventType, ev.Type,
		log.FieldRecordID, ev.RecordID,
		"account_ids", ev.AccountIDs)

	drifts, err := w.checker.CheckAccounts(ctx, ev.AccountIDs...)
	if err != nil {
		return fmt.Errorf("check accounts for record %d: %w", ev.RecordID, err)
	}
	w.record(ctx, drifts, "event")
	return nil
}

// CheckAll runs a full reconciliation once.
func (w *ReconcileWorker) CheckAll(ctx context.Context) error {
	start := time.Now()
	drifts, err := w.checker.Check(ctx)
	if err != nil {
		return fmt.Errorf("full reconcile: %w", err)
	}
	w.record(ctx, drifts, "periodic")
	w.logger.DebugContext(ctx, "Full reconcile finished",
		log.FieldOperation, log.OpReconcile,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// RunPeriodic calls CheckAll immediately and then on every tick until ctx ends.
// Failed runs are logged and retried on the next tick.
func (w *ReconcileWorker) RunPeriodic(ctx context.Context) error {
	if err := w.CheckAll(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup reconcile failed", log.FieldError, err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.CheckAll(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic reconcile failed", log.FieldError, err)
			}
		}
	}
}

// Run consumes events from source (when not nil) and runs the periodic check
// until ctx is cancelled or the consumer fails.
func (w *ReconcileWorker) Run(ctx context.Context, source EventSource) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.RunPeriodic(ctx)
	})
	if source != nil {
		g.Go(func() error {
			return source.ConsumeEvents(ctx, w.HandleEvent)
		})
	} else {
		w.logger.InfoContext(ctx, "No event source configured, running periodic checks only")
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stats returns how many checks ran and how many drifted accounts they found.
func (w *ReconcileWorker) Stats() (checks, drifts int64) {
	return w.checks.Load(), w.drifts.Load()
}

func (w *ReconcileWorker) record(ctx context.Context, drifts []core.Drift, trigger string) {
	w.checks.Add(1)
	w.drifts.Add(int64(len(drifts)))
	if len(drifts) > 0 {
		w.logger.WarnContext(ctx, "Balances out of step with records",
			"trigger", trigger, "accounts", len(drifts))
	}
}
