package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"expensa/internal/amqp"
	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/storage"

	"github.com/google/uuid"
)

// SeriesSummary describes one recurring series as currently stored.
type SeriesSummary struct {
	GroupID       string
	Description   string
	Amount        core.Money
	CategoryID    string
	SubcategoryID string
	StartDate     core.Date
	TotalMonths   int // 0 for an indefinite series
	Occurrences   int
	LastDate      core.Date
}

// RecurringService materializes monthly series. Each occurrence is an
// ordinary expense row sharing the series group ID.
type RecurringService struct {
	store    RecurringStore
	expenses *ExpenseService
	stats    Invalidator
	logger   *log.Logger
	now      func() time.Time
}

func NewRecurringService(store RecurringStore, expenses *ExpenseService, stats Invalidator, logger *log.Logger) *RecurringService {
	if logger == nil {
		logger = log.Nop()
	}
	return &RecurringService{
		store:    store,
		expenses: expenses,
		stats:    stats,
		logger:   logger.WithComponent(log.ComponentRecurring),
		now:      time.Now,
	}
}

// CreateSeries starts a series from template. months > 0 creates exactly
// that many occurrences up front; months == 0 starts an indefinite series
// materialized through the current month and extended later by CatchUp.
func (s *RecurringService) CreateSeries(ctx context.Context, template core.Expense, months int) ([]core.Expense, error) {
	if months < 0 {
		return nil, fmt.Errorf("%w: months must not be negative", core.ErrInvalidRecurrence)
	}
	template.ID = ""
	template.SplitwiseExpenseID = nil
	template.Recurring = &core.Recurrence{
		GroupID:     uuid.NewString(),
		StartDate:   template.Date,
		TotalMonths: months,
	}
	if err := s.expenses.Prepare(ctx, &template); err != nil {
		return nil, err
	}

	n := months
	if template.Recurring.Indefinite() {
		n = template.Recurring.StartMonth().MonthsUntil(core.CurrentMonth(s.now())) + 1
		if n < 1 {
			n = 1
		}
	}

	written, err := s.store.InsertExpenses(ctx, core.ExpandSeries(template, n))
	if err != nil {
		return nil, fmt.Errorf("create series: %w", err)
	}
	s.invalidate(template.UserID)
	s.logger.InfoContext(ctx, "Recurring series created",
		log.FieldUserID, template.UserID,
		log.FieldGroupID, template.Recurring.GroupID,
		log.FieldCount, len(written),
		"total_months", months)
	for _, e := range written {
		s.expenses.changed(ctx, amqp.TypeExpenseCreated, e.UserID, e.ID)
	}
	return written, nil
}

// CatchUp inserts every occurrence that is due through the given month but
// missing, for all of the user's series. Deleted occurrences stay deleted.
// Running it twice inserts nothing the second time.
func (s *RecurringService) CatchUp(ctx context.Context, userID string, through core.Month) (int, error) {
	if through.IsZero() {
		through = core.CurrentMonth(s.now())
	}
	existing, err := s.store.ListExpenses(ctx, userID, storage.ExpenseFilter{OnlyRecurring: true})
	if err != nil {
		return 0, fmt.Errorf("list series: %w", err)
	}
	if len(existing) == 0 {
		return 0, nil
	}
	skips, err := s.store.ListSkips(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list skips: %w", err)
	}

	var missing []core.Expense
	for _, tmpl := range core.SeriesTemplates(existing) {
		missing = append(missing, core.MissingOccurrences(tmpl, existing, skips[tmpl.Recurring.GroupID], through)...)
	}
	if len(missing) == 0 {
		return 0, nil
	}

	written, err := s.store.InsertExpenses(ctx, missing)
	if err != nil {
		return 0, fmt.Errorf("catch up: %w", err)
	}
	if len(written) > 0 {
		s.invalidate(userID)
		for _, e := range written {
			s.expenses.changed(ctx, amqp.TypeExpenseCreated, e.UserID, e.ID)
		}
	}
	s.logger.InfoContext(ctx, "Recurring catch-up complete",
		log.FieldOperation, log.OpCatchUp,
		log.FieldUserID, userID,
		log.FieldMonth, through.String(),
		log.FieldCount, len(written))
	return len(written), nil
}

// StopSeries deletes the occurrences from the given month on and ends the
// series there.
func (s *RecurringService) StopSeries(ctx context.Context, userID, groupID string, from core.Month) (int, error) {
	if err := from.Validate(); err != nil {
		return 0, err
	}
	deleted, err := s.store.StopSeries(ctx, userID, groupID, from)
	if err != nil {
		return 0, err
	}
	s.invalidate(userID)
	s.expenses.changedAll(ctx, amqp.TypeExpenseDeleted, userID, deleted)
	return len(deleted), nil
}

// ListSeries summarizes the user's series, ordered by start date.
func (s *RecurringService) ListSeries(ctx context.Context, userID string) ([]SeriesSummary, error) {
	existing, err := s.store.ListExpenses(ctx, userID, storage.ExpenseFilter{OnlyRecurring: true})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, e := range existing {
		counts[e.Recurring.GroupID]++
	}

	templates := core.SeriesTemplates(existing)
	out := make([]SeriesSummary, 0, len(templates))
	for _, t := range templates {
		out = append(out, SeriesSummary{
			GroupID:       t.Recurring.GroupID,
			Description:   t.Description,
			Amount:        t.Amount,
			CategoryID:    t.CategoryID,
			SubcategoryID: t.SubcategoryID,
			StartDate:     t.Recurring.StartDate,
			TotalMonths:   t.Recurring.TotalMonths,
			Occurrences:   counts[t.Recurring.GroupID],
			LastDate:      t.Date,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate.Time) })
	return out, nil
}

func (s *RecurringService) invalidate(userID string) {
	if s.stats != nil {
		s.stats.Invalidate(userID)
	}
}
