package services

import (
	"context"
	"errors"
	"fmt"

	"homeledger/internal/core"
	"homeledger/internal/log"
	"homeledger/internal/storage"
)

// CategoryService maintains the two-level category hierarchy: roots carry a
// kind, children inherit it from their root.
type CategoryService struct {
	store  Store
	logger *log.Logger
}

func NewCategoryService(store Store) *CategoryService {
	return &CategoryService{store: store, logger: log.Default(log.ComponentCategory)}
}

// CreateRoot adds a top-level category of the given kind.
func (s *CategoryService) CreateRoot(ctx context.Context, name string, kind core.Kind) (core.Category, error) {
	name, err := core.NormalizeName(name)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	if err := kind.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	var c core.Category
	err = s.store.InTx(ctx, func(q *storage.Queries) error {
		if err := ensureNoSibling(ctx, q, 0, name, 0); err != nil {
			return err
		}
		c, err = q.CreateCategory(ctx, name, 0, kind)
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category %q: %w", name, err)
	}

	s.logger.InfoContext(ctx, "Category created",
		log.FieldCategoryID, c.ID, log.FieldName, c.Name, log.FieldKind, c.Kind)
	return c, nil
}

// CreateChild adds a subcategory under a root. The child takes the root's kind.
func (s *CategoryService) CreateChild(ctx context.Context, name string, parentID int64) (core.Category, error) {
	name, err := core.NormalizeName(name)
	if err != nil {
		return core.Category{}, fmt.Errorf("create subcategory: %w", err)
	}

	var c core.Category
	err = s.store.InTx(ctx, func(q *storage.Queries) error {
		parent, err := q.GetCategory(ctx, parentID)
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: category %d does not exist", core.ErrInvalidParent, parentID)
		}
		if err != nil {
			return fmt.Errorf("get parent: %w", err)
		}
		if !parent.IsRoot() {
			return fmt.Errorf("%w: %q is already a subcategory", core.ErrInvalidParent, parent.Name)
		}
		if err := ensureNoSibling(ctx, q, parentID, name, 0); err != nil {
			return err
		}
		c, err = q.CreateCategory(ctx, name, parentID, parent.Kind)
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create subcategory %q: %w", name, err)
	}

	s.logger.InfoContext(ctx, "Subcategory created",
		log.FieldCategoryID, c.ID, log.FieldName, c.Name, "parent_id", parentID)
	return c, nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (core.Category, error) {
	c, err := s.store.Queries().GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, notFound("category", id, err)
	}
	return c, nil
}

// ResolvePath returns "Parent > Child" for a subcategory and the bare name
// for a root.
func (s *CategoryService) ResolvePath(ctx context.Context, id int64) (string, error) {
	return resolvePath(ctx, s.store.Queries(), id)
}

func resolvePath(ctx context.Context, q *storage.Queries, id int64) (string, error) {
	c, err := q.GetCategory(ctx, id)
	if err != nil {
		return "", notFound("category", id, err)
	}
	if c.IsRoot() {
		return c.Name, nil
	}
	parent, err := q.GetCategory(ctx, c.ParentID)
	if err != nil {
		return "", notFound("category", c.ParentID, err)
	}
	return parent.Name + " > " + c.Name, nil
}

// Rename changes a category's name. Renaming to the current name succeeds
// without touching the store.
func (s *CategoryService) Rename(ctx context.Context, id int64, newName string) error {
	newName, err := core.NormalizeName(newName)
	if err != nil {
		return fmt.Errorf("rename category: %w", err)
	}

	err = s.store.InTx(ctx, func(q *storage.Queries) error {
		c, err := q.GetCategory(ctx, id)
		if err != nil {
			return notFound("category", id, err)
		}
		if c.Name == newName {
			return nil
		}
		if err := ensureNoSibling(ctx, q, c.ParentID, newName, id); err != nil {
			return err
		}
		return q.RenameCategory(ctx, id, newName)
	})
	if err != nil {
		return fmt.Errorf("rename category %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Category renamed", log.FieldOperation, log.OpRename, log.FieldCategoryID, id, log.FieldName, newName)
	return nil
}

// Tree lists roots of the given kind (all kinds when empty) with their
// children, both ordered by id.
func (s *CategoryService) Tree(ctx context.Context, kind core.Kind) ([]core.CategoryNode, error) {
	if kind != "" {
		if err := kind.Validate(); err != nil {
			return nil, err
		}
	}
	all, err := s.store.Queries().ListCategories(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	var nodes []core.CategoryNode
	index := make(map[int64]int)
	for _, c := range all {
		if c.IsRoot() {
			index[c.ID] = len(nodes)
			nodes = append(nodes, core.CategoryNode{Category: c})
		}
	}
	for _, c := range all {
		if c.IsRoot() {
			continue
		}
		if i, ok := index[c.ParentID]; ok {
			nodes[i].Children = append(nodes[i].Children, c)
		}
	}
	return nodes, nil
}

func (s *CategoryService) CanDelete(ctx context.Context, id int64) (bool, error) {
	return NewReferenceGuard(s.store.Queries()).CanDeleteCategory(ctx, id)
}

// Delete removes a category that no record uses and, for a root, that has
// no subcategories.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if err := NewReferenceGuard(q).checkCategory(ctx, id); err != nil {
			return err
		}
		return q.DeleteCategory(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Category deleted", log.FieldCategoryID, id)
	return nil
}

// ensureNoSibling fails with ErrDuplicateName when another category under
// parentID (other than self) already uses name.
func ensureNoSibling(ctx context.Context, q *storage.Queries, parentID int64, name string, self int64) error {
	existing, err := q.FindSibling(ctx, parentID, name)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("find sibling: %w", err)
	case existing.ID != self:
		return fmt.Errorf("%w: %q already exists at this level", core.ErrDuplicateName, name)
	}
	return nil
}
