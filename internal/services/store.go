package services

import (
	"context"

	"homeledger/internal/amqp"
	"homeledger/internal/storage"
)

// Store is the part of the ledger database the services need: pooled reads
// and one transaction per mutation.
type Store interface {
	Queries() *storage.Queries
	InTx(ctx context.Context, fn func(q *storage.Queries) error) error
}

// EventPublisher receives ledger events after a mutation commits.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}
