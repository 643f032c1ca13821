package services

import (
	"context"
	"strings"

	"expensa/internal/amqp"
	"expensa/internal/core"
	"expensa/internal/log"
)

// CategoryService manages categories and subcategories. Expenses removed by a
// cascading delete are announced through expenses, which may be nil.
type CategoryService struct {
	store    CategoryStore
	expenses *ExpenseService
	stats    Invalidator
	logger   *log.Logger
}

func NewCategoryService(store CategoryStore, expenses *ExpenseService, stats Invalidator, logger *log.Logger) *CategoryService {
	if logger == nil {
		logger = log.Nop()
	}
	return &CategoryService{store: store, expenses: expenses, stats: stats, logger: logger}
}

func (s *CategoryService) Create(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Type == "" {
		c.Type = core.CategoryMisc
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	return s.store.CreateCategory(ctx, c)
}

func (s *CategoryService) Update(ctx context.Context, c core.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return err
	}
	s.invalidate(c.UserID)
	return nil
}

func (s *CategoryService) Get(ctx context.Context, userID, id string) (core.Category, error) {
	return s.store.GetCategory(ctx, userID, id)
}

func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	return s.store.ListCategories(ctx, userID)
}

// Delete removes the category along with its subcategories, expenses and
// budgets, returning how many expenses went with it.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) (int, error) {
	removed, err := s.store.DeleteCategory(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	s.invalidate(userID)
	s.cascaded(ctx, userID, removed)
	return len(removed), nil
}

func (s *CategoryService) CreateSubcategory(ctx context.Context, sc core.Subcategory) (core.Subcategory, error) {
	sc.Name = strings.TrimSpace(sc.Name)
	if err := sc.Validate(); err != nil {
		return core.Subcategory{}, err
	}
	return s.store.CreateSubcategory(ctx, sc)
}

func (s *CategoryService) UpdateSubcategory(ctx context.Context, sc core.Subcategory) error {
	sc.Name = strings.TrimSpace(sc.Name)
	if err := sc.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateSubcategory(ctx, sc); err != nil {
		return err
	}
	s.invalidate(sc.UserID)
	return nil
}

func (s *CategoryService) ListSubcategories(ctx context.Context, userID, categoryID string) ([]core.Subcategory, error) {
	return s.store.ListSubcategories(ctx, userID, categoryID)
}

func (s *CategoryService) DeleteSubcategory(ctx context.Context, userID, id string) error {
	removed, err := s.store.DeleteSubcategory(ctx, userID, id)
	if err != nil {
		return err
	}
	s.invalidate(userID)
	s.cascaded(ctx, userID, removed)
	return nil
}

func (s *CategoryService) cascaded(ctx context.Context, userID string, expenseIDs []string) {
	if s.expenses != nil {
		s.expenses.changedAll(ctx, amqp.TypeExpenseDeleted, userID, expenseIDs)
	}
}

func (s *CategoryService) invalidate(userID string) {
	if s.stats != nil {
		s.stats.Invalidate(userID)
	}
}
