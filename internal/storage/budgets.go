package storage

import (
	"context"
	"fmt"

	"expensa/internal/core"
)

const budgetColumns = `id, user_id, category_id, month, amount_cents`

// CreateBudget inserts a budget. A second budget for the same category and
// month fails with ErrConflict.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = newID()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, user_id, category_id, month, amount_cents)
		 SELECT ?, ?, id, ?, ? FROM categories WHERE id = ? AND user_id = ?`,
		b.ID, b.UserID, b.Month.String(), b.Amount.Cents, b.CategoryID, b.UserID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", mapErr(err))
	}
	if err := requireAffected(res); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", ErrBadReference)
	}
	return b, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET category_id = ?, month = ?, amount_cents = ?
		 WHERE id = ? AND user_id = ?
		   AND EXISTS (SELECT 1 FROM categories WHERE id = ? AND user_id = ?)`,
		b.CategoryID, b.Month.String(), b.Amount.Cents, b.ID, b.UserID, b.CategoryID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", mapErr(err))
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, mapErr(err)
	}
	return b, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", mapErr(err))
	}
	return requireAffected(res)
}

// ListBudgets returns the user's budgets; a non-zero month restricts the result.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string, month core.Month) ([]core.Budget, error) {
	q := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ?`
	args := []any{userID}
	if !month.IsZero() {
		q += ` AND month = ?`
		args = append(args, month.String())
	}
	q += ` ORDER BY month DESC, category_id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()
	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b     core.Budget
		month string
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.CategoryID, &month, &b.Amount.Cents); err != nil {
		return core.Budget{}, err
	}
	m, err := core.ParseMonth(month)
	if err != nil {
		return core.Budget{}, err
	}
	b.Month = m
	return b, nil
}
