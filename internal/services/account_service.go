package services

import (
	"context"
	"fmt"

	"homeledger/internal/core"
	"homeledger/internal/log"
	"homeledger/internal/storage"
)

// AccountService manages accounts. Balances start at zero and only move
// through record mutations or an explicit reconcile repair.
type AccountService struct {
	store  Store
	logger *log.Logger
}

func NewAccountService(store Store) *AccountService {
	return &AccountService{store: store, logger: log.Default(log.ComponentSettings)}
}

func (s *AccountService) Create(ctx context.Context, name string) (core.Account, error) {
	name, err := core.NormalizeName(name)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	a, err := s.store.Queries().CreateAccount(ctx, name)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account %q: %w", name, err)
	}
	s.logger.InfoContext(ctx, "Account created", log.FieldAccountID, a.ID, log.FieldName, a.Name)
	return a, nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (core.Account, error) {
	a, err := s.store.Queries().GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, notFound("account", id, err)
	}
	return a, nil
}

func (s *AccountService) List(ctx context.Context) ([]core.Account, error) {
	accounts, err := s.store.Queries().ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountService) Rename(ctx context.Context, id int64, name string) error {
	name, err := core.NormalizeName(name)
	if err != nil {
		return fmt.Errorf("rename account: %w", err)
	}
	if err := s.store.Queries().RenameAccount(ctx, id, name); err != nil {
		return fmt.Errorf("rename account %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Account renamed", log.FieldOperation, log.OpRename, log.FieldAccountID, id, log.FieldName, name)
	return nil
}

func (s *AccountService) CanDelete(ctx context.Context, id int64) (bool, error) {
	return NewReferenceGuard(s.store.Queries()).CanDeleteAccount(ctx, id)
}

// Delete removes an account with no records and a zero balance.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if err := NewReferenceGuard(q).checkAccount(ctx, id); err != nil {
			return err
		}
		return q.DeleteAccount(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Account deleted", log.FieldAccountID, id)
	return nil
}
