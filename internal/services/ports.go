// Package services holds the application logic between the HTTP/worker
// entry points and storage.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"expensa/internal/amqp"
	"expensa/internal/core"
	"expensa/internal/splitwise"
	"expensa/internal/storage"
)

var (
	ErrSubcategoryMismatch = errors.New("subcategory does not belong to category")
	ErrRangeTooLarge       = errors.New("date range too large (max 366 days)")
	ErrInvalidRange        = errors.New("invalid date range")
	ErrSplitwiseNotReady   = errors.New("splitwise integration is not configured")
)

// IsValidation reports whether err is caused by bad input rather than a
// missing record or an internal failure.
func IsValidation(err error) bool {
	return core.IsValidation(err) ||
		errors.Is(err, ErrSubcategoryMismatch) ||
		errors.Is(err, ErrRangeTooLarge) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, storage.ErrBadReference)
}

// Publisher sends events and jobs to the broker. *amqp.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, msg *amqp.Message) error
}

// Invalidator drops cached computations for a user.
type Invalidator interface {
	Invalidate(userID string)
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	GetCategory(ctx context.Context, userID, id string) (core.Category, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	DeleteCategory(ctx context.Context, userID, id string) ([]string, error)
	CreateSubcategory(ctx context.Context, s core.Subcategory) (core.Subcategory, error)
	UpdateSubcategory(ctx context.Context, s core.Subcategory) error
	GetSubcategory(ctx context.Context, userID, id string) (core.Subcategory, error)
	ListSubcategories(ctx context.Context, userID, categoryID string) ([]core.Subcategory, error)
	DeleteSubcategory(ctx context.Context, userID, id string) ([]string, error)
}

type ExpenseStore interface {
	GetCategory(ctx context.Context, userID, id string) (core.Category, error)
	GetSubcategory(ctx context.Context, userID, id string) (core.Subcategory, error)
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	InsertExpenses(ctx context.Context, batch []core.Expense) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	ListExpenses(ctx context.Context, userID string, f storage.ExpenseFilter) ([]core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id string) error
	BulkDeleteExpenses(ctx context.Context, userID string, ids []string) ([]string, error)
	BulkUpdateCategory(ctx context.Context, userID string, ids []string, categoryID, subcategoryID string) ([]string, error)
}

type RecurringStore interface {
	ExpenseStore
	ListSkips(ctx context.Context, userID string) (map[string][]core.Month, error)
	StopSeries(ctx context.Context, userID, groupID string, from core.Month) ([]string, error)
}

type BudgetStore interface {
	GetCategory(ctx context.Context, userID, id string) (core.Category, error)
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) error
	GetBudget(ctx context.Context, userID, id string) (core.Budget, error)
	DeleteBudget(ctx context.Context, userID, id string) error
	ListBudgets(ctx context.Context, userID string, month core.Month) ([]core.Budget, error)
}

type GoalStore interface {
	CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error)
	UpdateGoal(ctx context.Context, g core.SavingsGoal) error
	GetGoal(ctx context.Context, userID, id string) (core.SavingsGoal, error)
	ListGoals(ctx context.Context, userID string) ([]core.SavingsGoal, error)
	DeleteGoal(ctx context.Context, userID, id string) error
	AddContribution(ctx context.Context, c core.Contribution) (core.Contribution, core.SavingsGoal, error)
	DeleteContribution(ctx context.Context, userID, goalID, id string) (core.SavingsGoal, error)
	ListContributions(ctx context.Context, userID, goalID string) ([]core.Contribution, error)
}

type SettingsStore interface {
	GetCategory(ctx context.Context, userID, id string) (core.Category, error)
	GetSubcategory(ctx context.Context, userID, id string) (core.Subcategory, error)
	GetSettings(ctx context.Context, userID string) (core.UserSettings, error)
	UpsertSettings(ctx context.Context, s core.UserSettings) error
	MarkSynced(ctx context.Context, userID string, at time.Time) error
}

type StatsStore interface {
	ListExpenses(ctx context.Context, userID string, f storage.ExpenseFilter) ([]core.Expense, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	ListSubcategories(ctx context.Context, userID, categoryID string) ([]core.Subcategory, error)
	ListBudgets(ctx context.Context, userID string, month core.Month) ([]core.Budget, error)
}

// SplitwiseAPI is the subset of *splitwise.Client the services use.
type SplitwiseAPI interface {
	GetCurrentUser(ctx context.Context, apiKey string) (splitwise.User, error)
	GetGroups(ctx context.Context, apiKey string) ([]splitwise.Group, error)
	GetGroup(ctx context.Context, apiKey string, id int64) (splitwise.Group, error)
	GetExpenses(ctx context.Context, apiKey string, q splitwise.ExpenseQuery) ([]splitwise.Expense, error)
	CreateExpense(ctx context.Context, apiKey string, payload map[string]any) (json.RawMessage, error)
}

var (
	_ RecurringStore = (*storage.SQLiteRepository)(nil)
	_ CategoryStore  = (*storage.SQLiteRepository)(nil)
	_ BudgetStore    = (*storage.SQLiteRepository)(nil)
	_ GoalStore      = (*storage.SQLiteRepository)(nil)
	_ SettingsStore  = (*storage.SQLiteRepository)(nil)
	_ StatsStore     = (*storage.SQLiteRepository)(nil)
	_ Publisher      = (*amqp.Client)(nil)
	_ SplitwiseAPI   = (*splitwise.Client)(nil)
)
