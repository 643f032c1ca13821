package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/splitwise"
	"expensa/internal/storage"
)

// SettingsView is what clients see; the API key never leaves the server.
type SettingsView struct {
	HasSplitwiseKey      bool
	SplitwiseUserID      int64
	DefaultCategoryID    string
	DefaultSubcategoryID string
	LastSyncTime         *time.Time
}

// SettingsPatch carries the fields to change; nil fields are left alone.
// An empty SplitwiseAPIKey clears the stored key.
type SettingsPatch struct {
	SplitwiseAPIKey      *string
	SplitwiseUserID      *int64
	DefaultCategoryID    *string
	DefaultSubcategoryID *string
}

type SettingsService struct {
	store  SettingsStore
	logger *log.Logger
}

func NewSettingsService(store SettingsStore, logger *log.Logger) *SettingsService {
	if logger == nil {
		logger = log.Nop()
	}
	return &SettingsService{store: store, logger: logger.WithComponent(log.ComponentSettings)}
}

func view(s core.UserSettings) SettingsView {
	return SettingsView{
		HasSplitwiseKey:      s.SplitwiseAPIKey != "",
		SplitwiseUserID:      s.SplitwiseUserID,
		DefaultCategoryID:    s.DefaultCategoryID,
		DefaultSubcategoryID: s.DefaultSubcategoryID,
		LastSyncTime:         s.LastSyncTime,
	}
}

func (s *SettingsService) Get(ctx context.Context, userID string) (SettingsView, error) {
	st, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return SettingsView{}, err
	}
	return view(st), nil
}

func (s *SettingsService) Update(ctx context.Context, userID string, p SettingsPatch) (SettingsView, error) {
	st, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return SettingsView{}, err
	}
	if p.SplitwiseAPIKey != nil {
		st.SplitwiseAPIKey = strings.TrimSpace(*p.SplitwiseAPIKey)
	}
	if p.SplitwiseUserID != nil {
		st.SplitwiseUserID = *p.SplitwiseUserID
	}
	if p.DefaultCategoryID != nil {
		st.DefaultCategoryID = strings.TrimSpace(*p.DefaultCategoryID)
		if p.DefaultSubcategoryID == nil {
			st.DefaultSubcategoryID = ""
		}
	}
	if p.DefaultSubcategoryID != nil {
		st.DefaultSubcategoryID = strings.TrimSpace(*p.DefaultSubcategoryID)
	}
	if err := st.Validate(); err != nil {
		return SettingsView{}, err
	}
	if err := s.checkDefaults(ctx, st); err != nil {
		return SettingsView{}, err
	}
	if err := s.store.UpsertSettings(ctx, st); err != nil {
		return SettingsView{}, err
	}
	s.logger.InfoContext(ctx, "Settings updated", log.FieldUserID, userID, "splitwise_ready", st.SplitwiseReady())
	return view(st), nil
}

func (s *SettingsService) checkDefaults(ctx context.Context, st core.UserSettings) error {
	if st.DefaultCategoryID == "" {
		return nil
	}
	if _, err := s.store.GetCategory(ctx, st.UserID, st.DefaultCategoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("default category: %w", storage.ErrBadReference)
		}
		return err
	}
	if st.DefaultSubcategoryID == "" {
		return nil
	}
	sub, err := s.store.GetSubcategory(ctx, st.UserID, st.DefaultSubcategoryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("default subcategory: %w", storage.ErrBadReference)
		}
		return err
	}
	if sub.CategoryID != st.DefaultCategoryID {
		return ErrSubcategoryMismatch
	}
	return nil
}

// SplitwiseKey returns the user's stored Splitwise key or
// splitwise.ErrMissingKey.
func (s *SettingsService) SplitwiseKey(ctx context.Context, userID string) (string, error) {
	st, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return "", err
	}
	if st.SplitwiseAPIKey == "" {
		return "", splitwise.ErrMissingKey
	}
	return st.SplitwiseAPIKey, nil
}
