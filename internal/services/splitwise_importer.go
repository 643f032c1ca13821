package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"expensa/internal/amqp"
	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/splitwise"

	"github.com/shopspring/decimal"
)

const (
	importPageSize = 200
	maxImportPages = 50
)

// SplitwiseImporter copies the user's share of new Splitwise expenses into
// local expenses filed under the default category.
type SplitwiseImporter struct {
	api      SplitwiseAPI
	settings SettingsStore
	expenses *ExpenseService
	lookback time.Duration
	logger   *log.Logger
	now      func() time.Time
}

func NewSplitwiseImporter(api SplitwiseAPI, settings SettingsStore, expenses *ExpenseService, lookback time.Duration, logger *log.Logger) *SplitwiseImporter {
	if logger == nil {
		logger = log.Nop()
	}
	return &SplitwiseImporter{
		api:      api,
		settings: settings,
		expenses: expenses,
		lookback: lookback,
		logger:   logger.WithComponent(log.ComponentSplitwise),
		now:      time.Now,
	}
}

// Ready reports whether the user has configured the integration.
func (im *SplitwiseImporter) Ready(ctx context.Context, userID string) (bool, error) {
	st, err := im.settings.GetSettings(ctx, userID)
	if err != nil {
		return false, err
	}
	return st.SplitwiseReady(), nil
}

// Import fetches expenses dated since the last sync (or the lookback window
// on the first run) and stores the owed share of each one. Expenses already
// imported are skipped. It returns the number of new expenses.
func (im *SplitwiseImporter) Import(ctx context.Context, userID string) (int, error) {
	st, err := im.settings.GetSettings(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !st.SplitwiseReady() {
		return 0, ErrSplitwiseNotReady
	}

	now := im.now().UTC()
	after := now.Add(-im.lookback)
	if st.LastSyncTime != nil && st.LastSyncTime.Before(now) {
		after = *st.LastSyncTime
	}

	remote, complete, err := im.fetch(ctx, st.SplitwiseAPIKey, after, now)
	if err != nil {
		return 0, err
	}

	var batch []core.Expense
	for _, re := range splitwise.FilterOwed(remote, st.SplitwiseUserID) {
		e, ok := im.toExpense(ctx, userID, st, re)
		if ok {
			batch = append(batch, e)
		}
	}

	written := 0
	if len(batch) > 0 {
		saved, err := im.expenses.store.InsertExpenses(ctx, batch)
		if err != nil {
			return 0, fmt.Errorf("store imported expenses: %w", err)
		}
		written = len(saved)
		for _, e := range saved {
			im.expenses.changed(ctx, amqp.TypeExpenseCreated, e.UserID, e.ID)
		}
	}

	if complete {
		if err := im.settings.MarkSynced(ctx, userID, now); err != nil {
			return written, fmt.Errorf("mark synced: %w", err)
		}
	} else {
		// The next run repeats the window; already imported rows are ignored.
		im.logger.WarnContext(ctx, "Splitwise import stopped at the page limit, sync time kept",
			log.FieldUserID, userID, "pages", maxImportPages)
	}
	im.logger.InfoContext(ctx, "Splitwise import complete",
		log.FieldOperation, log.OpImport,
		log.FieldUserID, userID,
		log.FieldCount, written,
		"fetched", len(remote))
	return written, nil
}

// fetch pages through every expense dated in (after, before]. complete is
// false when maxImportPages full pages came back and more may remain.
func (im *SplitwiseImporter) fetch(ctx context.Context, apiKey string, after, before time.Time) ([]splitwise.Expense, bool, error) {
	var all []splitwise.Expense
	for page := 0; page < maxImportPages; page++ {
		batch, err := im.api.GetExpenses(ctx, apiKey, splitwise.ExpenseQuery{
			DatedAfter:  after,
			DatedBefore: before,
			Limit:       importPageSize,
			Offset:      page * importPageSize,
		})
		if err != nil {
			return nil, false, fmt.Errorf("fetch splitwise expenses: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < importPageSize {
			return all, true, nil
		}
	}
	return all, false, nil
}

func (im *SplitwiseImporter) toExpense(ctx context.Context, userID string, st core.UserSettings, re splitwise.Expense) (core.Expense, bool) {
	owed, _ := re.OwedShare(st.SplitwiseUserID)
	cents := owed.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	when, err := re.ParsedDate()
	if err != nil || cents <= 0 {
		im.logger.WarnContext(ctx, "Skipping unusable Splitwise expense",
			log.FieldSplitwiseID, re.ID, log.FieldError, err)
		return core.Expense{}, false
	}

	desc := strings.TrimSpace(re.Description)
	if desc == "" {
		desc = "Splitwise expense"
	}
	if utf8.RuneCountInString(desc) > core.MaxDescriptionLength {
		desc = string([]rune(desc)[:core.MaxDescriptionLength])
	}

	id := re.ID
	e := core.Expense{
		UserID:             userID,
		Amount:             core.Money{Cents: cents},
		Description:        desc,
		Date:               core.DateOf(when.UTC()),
		CategoryID:         st.DefaultCategoryID,
		SubcategoryID:      st.DefaultSubcategoryID,
		SplitwiseExpenseID: &id,
	}
	if err := e.Validate(); err != nil {
		im.logger.WarnContext(ctx, "Skipping invalid Splitwise expense", log.FieldSplitwiseID, re.ID, log.FieldError, err)
		return core.Expense{}, false
	}
	return e, true
}
