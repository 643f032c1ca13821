package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"expensa/internal/core"
	"expensa/internal/log"
)

// ExpenseFilter narrows ListExpenses. Zero values mean "no constraint".
type ExpenseFilter struct {
	From          core.Date
	To            core.Date
	CategoryID    string
	SubcategoryID string
	GroupID       string
	OnlyRecurring bool
	Limit         int
}

const expenseColumns = `id, user_id, amount_cents, description, date, category_id, subcategory_id,
	recurring_group_id, recurring_start_date, recurring_total_months, splitwise_expense_id, created_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func expenseArgs(e core.Expense) []any {
	var (
		group, start sql.NullString
		total        sql.NullInt64
		splitwise    sql.NullInt64
	)
	if e.Recurring != nil {
		group = nullString(e.Recurring.GroupID)
		start = nullString(e.Recurring.StartDate.Format(dateLayout))
		total = sql.NullInt64{Int64: int64(e.Recurring.TotalMonths), Valid: true}
	}
	if e.SplitwiseExpenseID != nil {
		splitwise = sql.NullInt64{Int64: *e.SplitwiseExpenseID, Valid: true}
	}
	return []any{
		e.ID, e.UserID, e.Amount.Cents, e.Description, e.Date.Format(dateLayout), core.MonthOf(e.Date).String(),
		e.CategoryID, nullString(e.SubcategoryID), group, start, total, splitwise,
		e.CreatedAt.Format(timestampLayout),
	}
}

func insertExpense(ctx context.Context, x execer, verb string, e core.Expense) (sql.Result, error) {
	return x.ExecContext(ctx, verb+` INTO expenses (id, user_id, amount_cents, description, date, month,
		category_id, subcategory_id, recurring_group_id, recurring_start_date, recurring_total_months,
		splitwise_expense_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, expenseArgs(e)...)
}

func (r *SQLiteRepository) stamp(e *core.Expense) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC().Truncate(time.Second)
	}
}

// CreateExpense inserts a single expense and returns it with ID and timestamp set.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	r.stamp(&e)
	if _, err := insertExpense(ctx, r.db, "INSERT", e); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", mapErr(err))
	}
	r.logger.DebugContext(ctx, "Expense saved",
		log.NewFields().WithExpense(e.ID, e.Description, e.Amount.Cents, e.CategoryID).WithUser(e.UserID).ToSlice()...)
	return e, nil
}

// InsertExpenses inserts a batch in one transaction, silently skipping rows
// that collide with an existing series month or imported Splitwise expense.
// It returns the rows actually written.
func (r *SQLiteRepository) InsertExpenses(ctx context.Context, batch []core.Expense) ([]core.Expense, error) {
	var written []core.Expense
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range batch {
			r.stamp(&e)
			res, err := insertExpense(ctx, tx, "INSERT OR IGNORE", e)
			if err != nil {
				return mapErr(err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				written = append(written, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert expenses: %w", err)
	}
	return written, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	var (
		group, start sql.NullString
		total        sql.NullInt64
	)
	if e.Recurring != nil {
		group = nullString(e.Recurring.GroupID)
		start = nullString(e.Recurring.StartDate.Format(dateLayout))
		total = sql.NullInt64{Int64: int64(e.Recurring.TotalMonths), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET amount_cents = ?, description = ?, date = ?, month = ?, category_id = ?,
		 subcategory_id = ?, recurring_group_id = ?, recurring_start_date = ?, recurring_total_months = ?
		 WHERE id = ? AND user_id = ?`,
		e.Amount.Cents, e.Description, e.Date.Format(dateLayout), core.MonthOf(e.Date).String(), e.CategoryID,
		nullString(e.SubcategoryID), group, start, total, e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", mapErr(err))
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, mapErr(err)
	}
	return e, nil
}

// ListExpenses returns the user's expenses, newest first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, f ExpenseFilter) ([]core.Expense, error) {
	q := `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = ?`
	args := []any{userID}
	if !f.From.IsZero() {
		q += ` AND date >= ?`
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		q += ` AND date <= ?`
		args = append(args, f.To.Format(dateLayout))
	}
	if f.CategoryID != "" {
		q += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.SubcategoryID != "" {
		q += ` AND subcategory_id = ?`
		args = append(args, f.SubcategoryID)
	}
	if f.GroupID != "" {
		q += ` AND recurring_group_id = ?`
		args = append(args, f.GroupID)
	}
	if f.OnlyRecurring {
		q += ` AND recurring_group_id IS NOT NULL`
	}
	q += ` ORDER BY date DESC, created_at DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// skipDeleted records the months of deleted series occurrences so catch-up
// does not recreate them.
func skipDeleted(ctx context.Context, tx *sql.Tx, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{userID}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO recurring_skips (group_id, month, user_id)
		 SELECT recurring_group_id, month, user_id FROM expenses
		 WHERE user_id = ? AND recurring_group_id IS NOT NULL AND id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

// DeleteExpense removes one expense. Deleting a series occurrence marks its
// month as skipped for that series.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	deleted, err := r.BulkDeleteExpenses(ctx, userID, []string{id})
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkDeleteExpenses removes the listed expenses and returns the IDs that
// existed.
func (r *SQLiteRepository) BulkDeleteExpenses(ctx context.Context, userID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := []any{userID}
	for _, id := range ids {
		args = append(args, id)
	}
	var deleted []string
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		deleted, err = selectIDs(ctx, tx,
			`SELECT id FROM expenses WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`) ORDER BY id`, args...)
		if err != nil || len(deleted) == 0 {
			return err
		}
		if err := skipDeleted(ctx, tx, userID, ids); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM expenses WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete expenses: %w", mapErr(err))
	}
	return deleted, nil
}

// BulkUpdateCategory moves the listed expenses to another category and
// subcategory, returning the IDs updated.
func (r *SQLiteRepository) BulkUpdateCategory(ctx context.Context, userID string, ids []string, categoryID, subcategoryID string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := []any{userID}
	for _, id := range ids {
		args = append(args, id)
	}
	var updated []string
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		updated, err = selectIDs(ctx, tx,
			`SELECT id FROM expenses WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`) ORDER BY id`, args...)
		if err != nil || len(updated) == 0 {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE expenses SET category_id = ?, subcategory_id = ?
			 WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`,
			append([]any{categoryID, nullString(subcategoryID)}, args...)...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recategorize expenses: %w", mapErr(err))
	}
	return updated, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func selectIDs(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSkips returns the skipped months per series group for a user.
func (r *SQLiteRepository) ListSkips(ctx context.Context, userID string) (map[string][]core.Month, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_id, month FROM recurring_skips WHERE user_id = ? ORDER BY group_id, month`, userID)
	if err != nil {
		return nil, fmt.Errorf("list skips: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]core.Month)
	for rows.Next() {
		var group, month string
		if err := rows.Scan(&group, &month); err != nil {
			return nil, err
		}
		m, err := core.ParseMonth(month)
		if err != nil {
			return nil, err
		}
		out[group] = append(out[group], m)
	}
	return out, rows.Err()
}

// StopSeries ends a series before the given month: occurrences from that
// month on are deleted and the remaining ones are pinned to a fixed length so
// catch-up stops there. It returns the IDs of the deleted occurrences.
func (r *SQLiteRepository) StopSeries(ctx context.Context, userID, groupID string, from core.Month) ([]string, error) {
	var deleted []string
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var start string
		var total sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT recurring_start_date, recurring_total_months FROM expenses WHERE user_id = ? AND recurring_group_id = ? LIMIT 1`,
			userID, groupID).Scan(&start, &total)
		if err != nil {
			return mapErr(err)
		}
		startDate, err := parseDate(start)
		if err != nil {
			return err
		}
		deleted, err = selectIDs(ctx, tx,
			`SELECT id FROM expenses WHERE user_id = ? AND recurring_group_id = ? AND month >= ? ORDER BY month`,
			userID, groupID, from.String())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM expenses WHERE user_id = ? AND recurring_group_id = ? AND month >= ?`,
			userID, groupID, from.String()); err != nil {
			return err
		}
		keep := core.MonthOf(startDate).MonthsUntil(from)
		if total.Int64 > 0 && keep > int(total.Int64) {
			keep = int(total.Int64)
		}
		if keep <= 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE expenses SET recurring_total_months = ? WHERE user_id = ? AND recurring_group_id = ?`,
			keep, userID, groupID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("stop series: %w", err)
	}
	r.logger.InfoContext(ctx, "Recurring series stopped",
		log.FieldUserID, userID, log.FieldGroupID, groupID, log.FieldMonth, from.String(), log.FieldCount, len(deleted))
	return deleted, nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e         core.Expense
		date      string
		sub       sql.NullString
		group     sql.NullString
		start     sql.NullString
		total     sql.NullInt64
		splitwise sql.NullInt64
		created   string
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.Amount.Cents, &e.Description, &date, &e.CategoryID, &sub,
		&group, &start, &total, &splitwise, &created); err != nil {
		return core.Expense{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return core.Expense{}, err
	}
	e.Date = d
	e.SubcategoryID = sub.String
	if group.Valid {
		sd, err := parseDate(start.String)
		if err != nil {
			return core.Expense{}, err
		}
		e.Recurring = &core.Recurrence{GroupID: group.String, StartDate: sd, TotalMonths: int(total.Int64)}
	}
	if splitwise.Valid {
		id := splitwise.Int64
		e.SplitwiseExpenseID = &id
	}
	e.CreatedAt = parseTimestamp(created)
	return e, nil
}
