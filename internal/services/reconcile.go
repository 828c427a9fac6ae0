package services

import (
	"context"
	"fmt"

	"homeledger/internal/core"
	"homeledger/internal/log"
	"homeledger/internal/storage"
)

// Reconciler compares stored account balances with the signed sum of their
// records and, when asked, rewrites a drifted balance.
type Reconciler struct {
	store  Store
	logger *log.Logger
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store, logger: log.Default(log.ComponentReconcile)}
}

// Check returns every account whose stored balance disagrees with its records.
func (r *Reconciler) Check(ctx context.Context) ([]core.Drift, error) {
	all, err := r.store.Queries().BalanceChecks(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	drifts := drifted(all)
	r.report(ctx, drifts, len(all))
	return drifts, nil
}

// CheckAccounts is Check restricted to the given accounts. Unknown ids are skipped.
func (r *Reconciler) CheckAccounts(ctx context.Context, ids ...int64) ([]core.Drift, error) {
	q := r.store.Queries()
	var all []core.Drift
	for _, id := range ids {
		d, err := q.BalanceCheck(ctx, id)
		if err != nil {
			if isNotFound(err) {
				r.logger.DebugContext(ctx, "Account gone before reconcile", log.FieldAccountID, id)
				continue
			}
			return nil, fmt.Errorf("reconcile account %d: %w", id, err)
		}
		all = append(all, d)
	}
	drifts := drifted(all)
	r.report(ctx, drifts, len(all))
	return drifts, nil
}

// Repair sets the balance of one account to the sum of its records and
// returns the drift it corrected. A consistent account is left untouched.
func (r *Reconciler) Repair(ctx context.Context, accountID int64) (core.Drift, error) {
	var d core.Drift
	err := r.store.InTx(ctx, func(q *storage.Queries) error {
		var err error
		d, err = q.BalanceCheck(ctx, accountID)
		if err != nil {
			return notFound("account", accountID, err)
		}
		if d.Difference().IsZero() {
			return nil
		}
		return q.SetAccountBalance(ctx, accountID, d.Expected.Cents)
	})
	if err != nil {
		return core.Drift{}, fmt.Errorf("repair account %d: %w", accountID, err)
	}
	if !d.Difference().IsZero() {
		r.logger.WarnContext(ctx, "Account balance repaired",
			log.FieldOperation, log.OpRepair,
			log.FieldAccountID, accountID,
			"stored_cents", d.Stored.Cents,
			"expected_cents", d.Expected.Cents)
	}
	return d, nil
}

// RepairAll repairs every drifted account and returns what it changed.
func (r *Reconciler) RepairAll(ctx context.Context) ([]core.Drift, error) {
	drifts, err := r.Check(ctx)
	if err != nil {
		return nil, err
	}
	var fixed []core.Drift
	for _, d := range drifts {
		got, err := r.Repair(ctx, d.AccountID)
		if err != nil {
			return fixed, err
		}
		if !got.Difference().IsZero() {
			fixed = append(fixed, got)
		}
	}
	return fixed, nil
}

func (r *Reconciler) report(ctx context.Context, drifts []core.Drift, checked int) {
	for _, d := range drifts {
		r.logger.WarnContext(ctx, "Balance drift detected",
			log.FieldAccountID, d.AccountID,
			log.FieldName, d.AccountName,
			"stored_cents", d.Stored.Cents,
			"expected_cents", d.Expected.Cents)
	}
	r.logger.DebugContext(ctx, "Reconcile finished",
		log.FieldOperation, log.OpReconcile, "checked", checked, "drifted", len(drifts))
}

func drifted(all []core.Drift) []core.Drift {
	var out []core.Drift
	for _, d := range all {
		if !d.Difference().IsZero() {
			out = append(out, d)
		}
	}
	return out
}
