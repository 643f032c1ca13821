package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"expensa/internal/amqp"
	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/storage"
)

// ExpenseService validates and persists expenses, then invalidates cached
// statistics and publishes an event for the worker. A nil publisher or
// invalidator is allowed.
type ExpenseService struct {
	store     ExpenseStore
	publisher Publisher
	stats     Invalidator
	logger    *log.Logger
}

func NewExpenseService(store ExpenseStore, publisher Publisher, stats Invalidator, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Nop()
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		stats:     stats,
		logger:    logger.WithComponent(log.ComponentExpense),
	}
}

func normalize(e *core.Expense) {
	e.Description = strings.TrimSpace(e.Description)
	e.CategoryID = strings.TrimSpace(e.CategoryID)
	e.SubcategoryID = strings.TrimSpace(e.SubcategoryID)
}

// checkRefs verifies that the category exists for the user and, when given,
// that the subcategory sits under it.
func (s *ExpenseService) checkRefs(ctx context.Context, userID, categoryID, subcategoryID string) error {
	if _, err := s.store.GetCategory(ctx, userID, categoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("category %s: %w", categoryID, storage.ErrBadReference)
		}
		return err
	}
	if subcategoryID == "" {
		return nil
	}
	sub, err := s.store.GetSubcategory(ctx, userID, subcategoryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("subcategory %s: %w", subcategoryID, storage.ErrBadReference)
		}
		return err
	}
	if sub.CategoryID != categoryID {
		return ErrSubcategoryMismatch
	}
	return nil
}

// Prepare normalizes and validates an expense without saving it.
func (s *ExpenseService) Prepare(ctx context.Context, e *core.Expense) error {
	normalize(e)
	if err := e.Validate(); err != nil {
		return err
	}
	return s.checkRefs(ctx, e.UserID, e.CategoryID, e.SubcategoryID)
}

func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := s.Prepare(ctx, &e); err != nil {
		return core.Expense{}, err
	}
	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense created",
		log.NewFields().WithUser(saved.UserID).
			WithExpense(saved.ID, saved.Description, saved.Amount.Cents, saved.CategoryID).ToSlice()...)
	s.changed(ctx, amqp.TypeExpenseCreated, saved.UserID, saved.ID)
	return saved, nil
}

// Update replaces the editable fields of an expense. Series membership and
// the Splitwise link are kept from the stored row.
func (s *ExpenseService) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	current, err := s.store.GetExpense(ctx, e.UserID, e.ID)
	if err != nil {
		return core.Expense{}, err
	}
	e.Recurring = current.Recurring
	e.SplitwiseExpenseID = current.SplitwiseExpenseID
	e.CreatedAt = current.CreatedAt
	if err := s.Prepare(ctx, &e); err != nil {
		return core.Expense{}, err
	}
	if e.Recurring != nil && core.MonthOf(e.Date) != core.MonthOf(current.Date) {
		return core.Expense{}, fmt.Errorf("%w: a series occurrence cannot move to another month", core.ErrInvalidRecurrence)
	}
	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.changed(ctx, amqp.TypeExpenseUpdated, e.UserID, e.ID)
	return e, nil
}

func (s *ExpenseService) Get(ctx context.Context, userID, id string) (core.Expense, error) {
	return s.store.GetExpense(ctx, userID, id)
}

func (s *ExpenseService) List(ctx context.Context, userID string, f storage.ExpenseFilter) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, userID, f)
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, amqp.TypeExpenseDeleted, userID, id)
	return nil
}

func (s *ExpenseService) BulkDelete(ctx context.Context, userID string, ids []string) (int, error) {
	deleted, err := s.store.BulkDeleteExpenses(ctx, userID, ids)
	if err != nil {
		return 0, err
	}
	s.changedAll(ctx, amqp.TypeExpenseDeleted, userID, deleted)
	s.logger.InfoContext(ctx, "Expenses deleted", log.FieldUserID, userID, log.FieldCount, len(deleted))
	return len(deleted), nil
}

// BulkRecategorize moves expenses to another category and subcategory.
func (s *ExpenseService) BulkRecategorize(ctx context.Context, userID string, ids []string, categoryID, subcategoryID string) (int, error) {
	if strings.TrimSpace(categoryID) == "" {
		return 0, core.ErrMissingCategory
	}
	if err := s.checkRefs(ctx, userID, categoryID, subcategoryID); err != nil {
		return 0, err
	}
	updated, err := s.store.BulkUpdateCategory(ctx, userID, ids, categoryID, subcategoryID)
	if err != nil {
		return 0, err
	}
	s.changedAll(ctx, amqp.TypeExpenseUpdated, userID, updated)
	return len(updated), nil
}

func (s *ExpenseService) invalidate(userID string) {
	if s.stats != nil {
		s.stats.Invalidate(userID)
	}
}

// changed invalidates statistics and publishes the event. Publish failures
// are logged only; the write already succeeded.
func (s *ExpenseService) changed(ctx context.Context, typ, userID, expenseID string) {
	s.invalidate(userID)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewExpenseEvent(typ, userID, expenseID)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish expense event",
			log.FieldMessageType, typ, log.FieldExpenseID, expenseID, log.FieldError, err)
	}
}

// changedAll is changed for a batch: statistics are invalidated once and one
// event is published per expense.
func (s *ExpenseService) changedAll(ctx context.Context, typ, userID string, expenseIDs []string) {
	if len(expenseIDs) == 0 {
		return
	}
	s.invalidate(userID)
	if s.publisher == nil {
		return
	}
	for _, id := range expenseIDs {
		if err := s.publisher.Publish(ctx, amqp.NewExpenseEvent(typ, userID, id)); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish expense event",
				log.FieldMessageType, typ, log.FieldExpenseID, id, log.FieldError, err)
		}
	}
}
