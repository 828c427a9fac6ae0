package services

import (
	"context"
	"fmt"

	"homeledger/internal/core"
	"homeledger/internal/log"
)

// DeltaApplier adds a signed amount of cents to an account's stored balance.
// *storage.Queries implements it.
type DeltaApplier interface {
	ApplyBalanceDelta(ctx context.Context, accountID, delta int64) error
}

// BalanceLedger moves account balances in step with record mutations. Every
// change is an in-place delta; a balance is never overwritten here.
type BalanceLedger struct {
	q      DeltaApplier
	logger *log.Logger
}

func NewBalanceLedger(q DeltaApplier) *BalanceLedger {
	return &BalanceLedger{q: q, logger: log.Default(log.ComponentBalance)}
}

// Apply adds delta to the account balance. It is not retried.
func (b *BalanceLedger) Apply(ctx context.Context, accountID int64, delta core.Money) error {
	if err := b.q.ApplyBalanceDelta(ctx, accountID, delta.Cents); err != nil {
		b.logger.WarnContext(ctx, "Balance delta failed",
			log.FieldAccountID, accountID,
			log.FieldDeltaCents, delta.Cents,
			log.FieldError, err)
		return fmt.Errorf("apply delta to account %d: %w", accountID, err)
	}
	b.logger.DebugContext(ctx, "Balance delta applied",
		log.FieldAccountID, accountID,
		log.FieldDeltaCents, delta.Cents)
	return nil
}

// RecordCreated applies the record's contribution.
func (b *BalanceLedger) RecordCreated(ctx context.Context, r core.Record) error {
	return b.Apply(ctx, r.AccountID, r.Contribution())
}

// RecordDeleted reverses the contribution of the record as it was before deletion.
func (b *BalanceLedger) RecordDeleted(ctx context.Context, r core.Record) error {
	return b.Apply(ctx, r.AccountID, r.Contribution().Neg())
}

// RecordEdited reverses the old contribution on the old account, then applies
// the new contribution on the new account.
func (b *BalanceLedger) RecordEdited(ctx context.Context, old, updated core.Record) error {
	if err := b.Apply(ctx, old.AccountID, old.Contribution().Neg()); err != nil {
		return err
	}
	return b.Apply(ctx, updated.AccountID, updated.Contribution())
}
