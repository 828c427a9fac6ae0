package services

import (
	"context"
	"fmt"

	"homeledger/internal/core"
	"homeledger/internal/log"
	"homeledger/internal/storage"
)

// MemberService manages household members.
type MemberService struct {
	store  Store
	logger *log.Logger
}

func NewMemberService(store Store) *MemberService {
	return &MemberService{store: store, logger: log.Default(log.ComponentSettings)}
}

func (s *MemberService) Create(ctx context.Context, name string) (core.Member, error) {
	name, err := core.NormalizeName(name)
	if err != nil {
		return core.Member{}, fmt.Errorf("create member: %w", err)
	}
	m, err := s.store.Queries().CreateMember(ctx, name)
	if err != nil {
		return core.Member{}, fmt.Errorf("create member %q: %w", name, err)
	}
	s.logger.InfoContext(ctx, "Member created", log.FieldMemberID, m.ID, log.FieldName, m.Name)
	return m, nil
}

func (s *MemberService) List(ctx context.Context) ([]core.Member, error) {
	members, err := s.store.Queries().ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *MemberService) Rename(ctx context.Context, id int64, name string) error {
	name, err := core.NormalizeName(name)
	if err != nil {
		return fmt.Errorf("rename member: %w", err)
	}
	if err := s.store.Queries().RenameMember(ctx, id, name); err != nil {
		return fmt.Errorf("rename member %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Member renamed", log.FieldOperation, log.OpRename, log.FieldMemberID, id, log.FieldName, name)
	return nil
}

func (s *MemberService) CanDelete(ctx context.Context, id int64) (bool, error) {
	return NewReferenceGuard(s.store.Queries()).CanDeleteMember(ctx, id)
}

// Delete removes a member no record refers to. The default member is kept.
func (s *MemberService) Delete(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if err := NewReferenceGuard(q).checkMember(ctx, id); err != nil {
			return err
		}
		return q.DeleteMember(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete member %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Member deleted", log.FieldMemberID, id)
	return nil
}
