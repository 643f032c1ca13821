package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"expensa/internal/core"
)

// GetSettings returns the user's integration settings. A user without a row
// gets zero-value settings, not ErrNotFound.
func (r *SQLiteRepository) GetSettings(ctx context.Context, userID string) (core.UserSettings, error) {
	var (
		s        core.UserSettings
		cat, sub sql.NullString
		lastSync sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, splitwise_api_key, splitwise_user_id, default_category_id, default_subcategory_id, last_sync_time
		 FROM user_settings WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.SplitwiseAPIKey, &s.SplitwiseUserID, &cat, &sub, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserSettings{UserID: userID}, nil
	}
	if err != nil {
		return core.UserSettings{}, fmt.Errorf("get settings: %w", err)
	}
	s.DefaultCategoryID = cat.String
	s.DefaultSubcategoryID = sub.String
	if lastSync.Valid {
		t := parseTimestamp(lastSync.String)
		s.LastSyncTime = &t
	}
	return s, nil
}

// UpsertSettings writes every field except LastSyncTime, which only
// MarkSynced changes.
func (r *SQLiteRepository) UpsertSettings(ctx context.Context, s core.UserSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, splitwise_api_key, splitwise_user_id, default_category_id, default_subcategory_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   splitwise_api_key = excluded.splitwise_api_key,
		   splitwise_user_id = excluded.splitwise_user_id,
		   default_category_id = excluded.default_category_id,
		   default_subcategory_id = excluded.default_subcategory_id,
		   updated_at = excluded.updated_at`,
		s.UserID, s.SplitwiseAPIKey, s.SplitwiseUserID, nullString(s.DefaultCategoryID), nullString(s.DefaultSubcategoryID),
		r.now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("upsert settings: %w", mapErr(err))
	}
	return nil
}

// MarkSynced records the time of the last successful Splitwise import.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_settings SET last_sync_time = ? WHERE user_id = ?`, at.UTC().Format(timestampLayout), userID)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return requireAffected(res)
}
