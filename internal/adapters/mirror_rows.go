// Package adapters joins repository records into the flat shapes outbound
// ports expect.
package adapters

import (
	"context"
	"errors"
	"fmt"

	"expensa/internal/core"
	"expensa/internal/mirror"
	"expensa/internal/storage"
)

// ExpenseReader is the part of the repository the row builder reads.
type ExpenseReader interface {
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	GetCategory(ctx context.Context, userID, id string) (core.Category, error)
	GetSubcategory(ctx context.Context, userID, id string) (core.Subcategory, error)
}

// RowBuilder turns stored expenses into mirror rows with category names
// resolved.
type RowBuilder struct {
	storage ExpenseReader
}

func NewRowBuilder(storage ExpenseReader) *RowBuilder {
	return &RowBuilder{storage: storage}
}

// Row loads the expense and its category names. A subcategory that has been
// removed since is left blank.
func (b *RowBuilder) Row(ctx context.Context, userID, expenseID string) (mirror.Row, error) {
	e, err := b.storage.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return mirror.Row{}, fmt.Errorf("get expense: %w", err)
	}
	cat, err := b.storage.GetCategory(ctx, userID, e.CategoryID)
	if err != nil {
		return mirror.Row{}, fmt.Errorf("get category: %w", err)
	}
	row := mirror.Row{
		ExpenseID:   e.ID,
		UserID:      e.UserID,
		Date:        e.Date,
		Description: e.Description,
		Amount:      e.Amount,
		Category:    cat.Name,
	}
	if e.SubcategoryID != "" {
		sub, err := b.storage.GetSubcategory(ctx, userID, e.SubcategoryID)
		switch {
		case err == nil:
			row.Subcategory = sub.Name
		case !errors.Is(err, storage.ErrNotFound):
			return mirror.Row{}, fmt.Errorf("get subcategory: %w", err)
		}
	}
	return row, nil
}
