package services

import (
	"context"
	"errors"
	"fmt"

	"homeledger/internal/core"
	"homeledger/internal/storage"
)

// ReferenceGuard answers whether an entity can be deleted without orphaning
// records or losing a non-zero balance. It only reads.
type ReferenceGuard struct {
	q *storage.Queries
}

func NewReferenceGuard(q *storage.Queries) *ReferenceGuard {
	return &ReferenceGuard{q: q}
}

func (g *ReferenceGuard) CanDeleteMember(ctx context.Context, id int64) (bool, error) {
	reason, err := g.memberConflict(ctx, id)
	return err == nil && reason == "", err
}

func (g *ReferenceGuard) CanDeleteAccount(ctx context.Context, id int64) (bool, error) {
	reason, err := g.accountConflict(ctx, id)
	return err == nil && reason == "", err
}

func (g *ReferenceGuard) CanDeleteCategory(ctx context.Context, id int64) (bool, error) {
	reason, err := g.categoryConflict(ctx, id)
	return err == nil && reason == "", err
}

// checkMember returns ErrReferentialConflict if the member cannot be deleted.
func (g *ReferenceGuard) checkMember(ctx context.Context, id int64) error {
	return conflict(g.memberConflict(ctx, id))
}

func (g *ReferenceGuard) checkAccount(ctx context.Context, id int64) error {
	return conflict(g.accountConflict(ctx, id))
}

func (g *ReferenceGuard) checkCategory(ctx context.Context, id int64) error {
	return conflict(g.categoryConflict(ctx, id))
}

func conflict(reason string, err error) error {
	if err != nil {
		return err
	}
	if reason != "" {
		return fmt.Errorf("%w: %s", core.ErrReferentialConflict, reason)
	}
	return nil
}

func (g *ReferenceGuard) memberConflict(ctx context.Context, id int64) (string, error) {
	if _, err := g.q.GetMember(ctx, id); err != nil {
		return "", notFound("member", id, err)
	}
	if id == core.SelfMemberID {
		return "the default member cannot be deleted", nil
	}
	n, err := g.q.CountRecordsByMember(ctx, id)
	if err != nil {
		return "", fmt.Errorf("count member records: %w", err)
	}
	if n > 0 {
		return fmt.Sprintf("member is used by %d record(s)", n), nil
	}
	return "", nil
}

func (g *ReferenceGuard) accountConflict(ctx context.Context, id int64) (string, error) {
	a, err := g.q.GetAccount(ctx, id)
	if err != nil {
		return "", notFound("account", id, err)
	}
	n, err := g.q.CountRecordsByAccount(ctx, id)
	if err != nil {
		return "", fmt.Errorf("count account records: %w", err)
	}
	if n > 0 {
		return fmt.Sprintf("account is used by %d record(s)", n), nil
	}
	if !a.Balance.IsZero() {
		return fmt.Sprintf("account balance is %s, not zero", a.Balance), nil
	}
	return "", nil
}

func (g *ReferenceGuard) categoryConflict(ctx context.Context, id int64) (string, error) {
	c, err := g.q.GetCategory(ctx, id)
	if err != nil {
		return "", notFound("category", id, err)
	}
	n, err := g.q.CountRecordsByCategory(ctx, id)
	if err != nil {
		return "", fmt.Errorf("count category records: %w", err)
	}
	if n > 0 {
		return fmt.Sprintf("category is used by %d record(s)", n), nil
	}
	if c.IsRoot() {
		children, err := g.q.CountChildren(ctx, id)
		if err != nil {
			return "", fmt.Errorf("count subcategories: %w", err)
		}
		if children > 0 {
			return fmt.Sprintf("category has %d subcategory(ies)", children), nil
		}
	}
	return "", nil
}

// notFound annotates a lookup failure with the entity it was looking for.
// Anything but a missing row is a store failure.
func notFound(entity string, id int64, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%w: %s %d", core.ErrNotFound, entity, id)
	}
	if errors.Is(err, core.ErrPersistence) {
		return fmt.Errorf("get %s %d: %w", entity, id, err)
	}
	return &core.PersistenceError{Stage: core.StageRecord, Err: fmt.Errorf("get %s %d: %w", entity, id, err)}
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
