package services

import (
	"context"
	"errors"
	"fmt"

	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/storage"
)

type BudgetService struct {
	store  BudgetStore
	stats  Invalidator
	logger *log.Logger
}

func NewBudgetService(store BudgetStore, stats Invalidator, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.Nop()
	}
	return &BudgetService{store: store, stats: stats, logger: logger.WithComponent(log.ComponentBudget)}
}

// Set creates a budget for a category and month. A budget for the same
// category and month fails with storage.ErrConflict.
func (s *BudgetService) Set(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := s.checkCategory(ctx, b); err != nil {
		return core.Budget{}, err
	}
	saved, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, err
	}
	s.invalidate(b.UserID)
	s.logger.InfoContext(ctx, "Budget set",
		log.FieldUserID, b.UserID, log.FieldCategoryID, b.CategoryID,
		log.FieldMonth, b.Month.String(), log.FieldAmountCents, b.Amount.Cents)
	return saved, nil
}

func (s *BudgetService) Update(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := s.checkCategory(ctx, b); err != nil {
		return err
	}
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return err
	}
	s.invalidate(b.UserID)
	return nil
}

func (s *BudgetService) Get(ctx context.Context, userID, id string) (core.Budget, error) {
	return s.store.GetBudget(ctx, userID, id)
}

func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

// List returns the budgets of month, or all budgets for a zero month.
func (s *BudgetService) List(ctx context.Context, userID string, month core.Month) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, userID, month)
}

func (s *BudgetService) checkCategory(ctx context.Context, b core.Budget) error {
	if _, err := s.store.GetCategory(ctx, b.UserID, b.CategoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("category %s: %w", b.CategoryID, storage.ErrBadReference)
		}
		return err
	}
	return nil
}

func (s *BudgetService) invalidate(userID string) {
	if s.stats != nil {
		s.stats.Invalidate(userID)
	}
}
