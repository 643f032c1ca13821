// Package mirror defines the outbound port for copying expenses into an
// external spreadsheet.
package mirror

import (
	"context"
	"errors"

	"expensa/internal/core"
)

var ErrSheetNotFound = errors.New("mirror sheet not found")

// Row is one mirrored expense, flattened with its category names.
type Row struct {
	ExpenseID   string
	UserID      string
	Date        core.Date
	Description string
	Amount      core.Money
	Category    string
	Subcategory string
}

func (r Row) Validate() error {
	if r.ExpenseID == "" {
		return errors.New("mirror row needs an expense id")
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	return r.Amount.Validate()
}

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		// Upsert writes the row, replacing an existing row for the same expense.
		Upsert(ctx context.Context, r Row) (rowRef string, err error)
	}

	ExpenseDeleter interface {
		// Delete removes the row for the expense. A missing row is not an error.
		Delete(ctx context.Context, expenseID string) error
	}

	Mirror interface {
		ExpenseWriter
		ExpenseDeleter
	}

	// ExpenseLister is implemented by mirrors that can enumerate their rows,
	// which lets a resync drop rows whose expense no longer exists.
	ExpenseLister interface {
		ExpenseIDs(ctx context.Context, userID string) ([]string, error)
	}
)
