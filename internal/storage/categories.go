package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"expensa/internal/core"
	"expensa/internal/log"
)

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = r.now().UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, type, icon, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), c.Icon, c.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", mapErr(err))
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, icon = ? WHERE id = ? AND user_id = ?`,
		c.Name, string(c.Type), c.Icon, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update category: %w", mapErr(err))
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, icon, created_at FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, mapErr(err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, type, icon, created_at FROM categories WHERE user_id = ? ORDER BY name, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCategory removes the category together with its subcategories,
// expenses and budgets (foreign keys cascade). It returns the IDs of the
// expenses removed.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) ([]string, error) {
	var removed []string
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = selectIDs(ctx, tx,
			`SELECT id FROM expenses WHERE category_id = ? AND user_id = ? ORDER BY date, id`, id, userID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return mapErr(err)
		}
		return requireAffected(res)
	})
	if err != nil {
		return nil, fmt.Errorf("delete category: %w", err)
	}
	r.logger.InfoContext(ctx, "Category deleted",
		log.FieldUserID, userID, log.FieldCategoryID, id, log.FieldCount, len(removed))
	return removed, nil
}

func (r *SQLiteRepository) CreateSubcategory(ctx context.Context, s core.Subcategory) (core.Subcategory, error) {
	if s.ID == "" {
		s.ID = newID()
	}
	s.CreatedAt = r.now().UTC().Truncate(time.Second)
	// The parent must belong to the same user.
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subcategories (id, user_id, category_id, name, created_at)
		 SELECT ?, ?, id, ?, ? FROM categories WHERE id = ? AND user_id = ?`,
		s.ID, s.UserID, s.Name, s.CreatedAt.Format(timestampLayout), s.CategoryID, s.UserID)
	if err != nil {
		return core.Subcategory{}, fmt.Errorf("create subcategory: %w", mapErr(err))
	}
	if err := requireAffected(res); err != nil {
		return core.Subcategory{}, fmt.Errorf("create subcategory: %w", ErrBadReference)
	}
	return s, nil
}

func (r *SQLiteRepository) UpdateSubcategory(ctx context.Context, s core.Subcategory) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subcategories SET name = ?, category_id = ?
		 WHERE id = ? AND user_id = ?
		   AND EXISTS (SELECT 1 FROM categories WHERE id = ? AND user_id = ?)`,
		s.Name, s.CategoryID, s.ID, s.UserID, s.CategoryID, s.UserID)
	if err != nil {
		return fmt.Errorf("update subcategory: %w", mapErr(err))
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) GetSubcategory(ctx context.Context, userID, id string) (core.Subcategory, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, category_id, name, created_at FROM subcategories WHERE id = ? AND user_id = ?`, id, userID)
	s, err := scanSubcategory(row)
	if err != nil {
		return core.Subcategory{}, mapErr(err)
	}
	return s, nil
}

// ListSubcategories lists the user's subcategories; a non-empty categoryID
// restricts the result to that parent.
func (r *SQLiteRepository) ListSubcategories(ctx context.Context, userID, categoryID string) ([]core.Subcategory, error) {
	q := `SELECT id, user_id, category_id, name, created_at FROM subcategories WHERE user_id = ?`
	args := []any{userID}
	if categoryID != "" {
		q += ` AND category_id = ?`
		args = append(args, categoryID)
	}
	q += ` ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	defer rows.Close()
	var out []core.Subcategory
	for rows.Next() {
		s, err := scanSubcategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSubcategory removes the subcategory and its expenses, returning the
// IDs of the expenses removed.
func (r *SQLiteRepository) DeleteSubcategory(ctx context.Context, userID, id string) ([]string, error) {
	var removed []string
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = selectIDs(ctx, tx,
			`SELECT id FROM expenses WHERE subcategory_id = ? AND user_id = ? ORDER BY date, id`, id, userID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM subcategories WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return mapErr(err)
		}
		return requireAffected(res)
	})
	if err != nil {
		return nil, fmt.Errorf("delete subcategory: %w", err)
	}
	return removed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c       core.Category
		typ     string
		created string
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.Icon, &created); err != nil {
		return core.Category{}, err
	}
	c.Type = core.CategoryType(typ)
	c.CreatedAt = parseTimestamp(created)
	return c, nil
}

func scanSubcategory(s scanner) (core.Subcategory, error) {
	var (
		sc      core.Subcategory
		created string
	)
	if err := s.Scan(&sc.ID, &sc.UserID, &sc.CategoryID, &sc.Name, &created); err != nil {
		return core.Subcategory{}, err
	}
	sc.CreatedAt = parseTimestamp(created)
	return sc, nil
}
