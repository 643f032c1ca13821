package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"expensa/internal/core"
)

// ErrContributionExceedsBalance is returned when removing a contribution
// would drive a goal's current amount below zero.
var ErrContributionExceedsBalance = errors.New("contribution exceeds goal balance")

const goalColumns = `id, user_id, name, target_cents, current_cents, due_date, icon, color, created_at`

func dueDateArg(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return nullString(d.Format(dateLayout))
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	if g.ID == "" {
		g.ID = newID()
	}
	g.CreatedAt = r.now().UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO savings_goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.TargetAmount.Cents, g.CurrentAmount.Cents, dueDateArg(g.DueDate),
		g.Icon, g.Color, g.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("create goal: %w", mapErr(err))
	}
	return g, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.SavingsGoal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE savings_goals SET name = ?, target_cents = ?, current_cents = ?, due_date = ?, icon = ?, color = ?
		 WHERE id = ? AND user_id = ?`,
		g.Name, g.TargetAmount.Cents, g.CurrentAmount.Cents, dueDateArg(g.DueDate), g.Icon, g.Color, g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("update goal: %w", mapErr(err))
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, id string) (core.SavingsGoal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM savings_goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if err != nil {
		return core.SavingsGoal{}, mapErr(err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.SavingsGoal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()
	var out []core.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGoal removes the goal and its contributions.
func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM savings_goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", mapErr(err))
	}
	return requireAffected(res)
}

// AddContribution records a contribution and adds it to the goal's current
// amount in one transaction. It returns the updated goal.
func (r *SQLiteRepository) AddContribution(ctx context.Context, c core.Contribution) (core.Contribution, core.SavingsGoal, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	var goal core.SavingsGoal
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE savings_goals SET current_cents = current_cents + ? WHERE id = ? AND user_id = ?`,
			c.Amount.Cents, c.GoalID, c.UserID)
		if err != nil {
			return mapErr(err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO goal_contributions (id, goal_id, user_id, amount_cents, date, note, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.GoalID, c.UserID, c.Amount.Cents, c.Date.Format(dateLayout), c.Note,
			r.now().UTC().Format(timestampLayout)); err != nil {
			return mapErr(err)
		}
		goal, err = scanGoal(tx.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM savings_goals WHERE id = ?`, c.GoalID))
		return err
	})
	if err != nil {
		return core.Contribution{}, core.SavingsGoal{}, fmt.Errorf("add contribution: %w", err)
	}
	return c, goal, nil
}

// DeleteContribution removes a contribution and subtracts it from its goal.
func (r *SQLiteRepository) DeleteContribution(ctx context.Context, userID, goalID, id string) (core.SavingsGoal, error) {
	var goal core.SavingsGoal
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var amount int64
		err := tx.QueryRowContext(ctx,
			`SELECT amount_cents FROM goal_contributions WHERE id = ? AND goal_id = ? AND user_id = ?`,
			id, goalID, userID).Scan(&amount)
		if err != nil {
			return mapErr(err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE savings_goals SET current_cents = current_cents - ?
			 WHERE id = ? AND user_id = ? AND current_cents >= ?`, amount, goalID, userID, amount)
		if err != nil {
			return mapErr(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrContributionExceedsBalance
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM goal_contributions WHERE id = ?`, id); err != nil {
			return err
		}
		goal, err = scanGoal(tx.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM savings_goals WHERE id = ?`, goalID))
		return err
	})
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("delete contribution: %w", err)
	}
	return goal, nil
}

// ListContributions returns a goal's contributions, newest first.
func (r *SQLiteRepository) ListContributions(ctx context.Context, userID, goalID string) ([]core.Contribution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, goal_id, user_id, amount_cents, date, note FROM goal_contributions
		 WHERE goal_id = ? AND user_id = ? ORDER BY date DESC, created_at DESC`, goalID, userID)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()
	var out []core.Contribution
	for rows.Next() {
		var (
			c    core.Contribution
			date string
		)
		if err := rows.Scan(&c.ID, &c.GoalID, &c.UserID, &c.Amount.Cents, &date, &c.Note); err != nil {
			return nil, err
		}
		if c.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanGoal(s scanner) (core.SavingsGoal, error) {
	var (
		g       core.SavingsGoal
		due     sql.NullString
		created string
	)
	if err := s.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount.Cents, &g.CurrentAmount.Cents, &due,
		&g.Icon, &g.Color, &created); err != nil {
		return core.SavingsGoal{}, err
	}
	if due.Valid && due.String != "" {
		d, err := parseDate(due.String)
		if err != nil {
			return core.SavingsGoal{}, err
		}
		g.DueDate = &d
	}
	g.CreatedAt = parseTimestamp(created)
	return g, nil
}
