package services

import (
	"context"
	"fmt"
	"time"

	"expensa/internal/cache"
	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/storage"
)

const (
	maxRangeDays   = 366
	maxTrendMonths = 60
)

// StatsService computes spending statistics. Results are cached per user and
// dropped whenever that user's expenses, categories or budgets change.
type StatsService struct {
	store   StatsStore
	stats   *cache.LRUCache[core.Statistics]
	trends  *cache.LRUCache[[]core.MonthTotal]
	budgets *cache.LRUCache[[]core.BudgetStatus]
	logger  *log.Logger
}

func NewStatsService(store StatsStore, cacheSize int, ttl time.Duration, logger *log.Logger) *StatsService {
	if logger == nil {
		logger = log.Nop()
	}
	return &StatsService{
		store:   store,
		stats:   cache.NewLRUCache[core.Statistics](cacheSize, ttl),
		trends:  cache.NewLRUCache[[]core.MonthTotal](cacheSize, ttl),
		budgets: cache.NewLRUCache[[]core.BudgetStatus](cacheSize, ttl),
		logger:  logger.WithComponent(log.ComponentStats),
	}
}

// Caches exposes the underlying caches so a cache.Manager can sweep them.
func (s *StatsService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.stats, s.trends, s.budgets}
}

func userPrefix(userID string) string { return userID + "|" }

func (s *StatsService) Invalidate(userID string) {
	p := userPrefix(userID)
	n := s.stats.DeletePrefix(p) + s.trends.DeletePrefix(p) + s.budgets.DeletePrefix(p)
	if n > 0 {
		s.logger.Debug("Statistics cache invalidated", log.FieldUserID, userID, log.FieldCount, n)
	}
}

// Monthly returns the category breakdown for one month.
func (s *StatsService) Monthly(ctx context.Context, userID string, m core.Month) (core.Statistics, error) {
	if err := m.Validate(); err != nil {
		return core.Statistics{}, err
	}
	return s.Range(ctx, userID, m.FirstDay(), m.LastDay())
}

// Range returns the breakdown over [from, to], at most 366 days.
func (s *StatsService) Range(ctx context.Context, userID string, from, to core.Date) (core.Statistics, error) {
	if from.IsZero() || to.IsZero() || to.Before(from.Time) {
		return core.Statistics{}, ErrInvalidRange
	}
	if to.Sub(from.Time) > maxRangeDays*24*time.Hour {
		return core.Statistics{}, ErrRangeTooLarge
	}

	key := fmt.Sprintf("%srange|%s|%s", userPrefix(userID), from, to)
	if st, ok := s.stats.Get(key); ok {
		return st, nil
	}

	expenses, err := s.store.ListExpenses(ctx, userID, storage.ExpenseFilter{From: from, To: to})
	if err != nil {
		return core.Statistics{}, fmt.Errorf("load expenses: %w", err)
	}
	categories, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return core.Statistics{}, fmt.Errorf("load categories: %w", err)
	}
	subcategories, err := s.store.ListSubcategories(ctx, userID, "")
	if err != nil {
		return core.Statistics{}, fmt.Errorf("load subcategories: %w", err)
	}

	st := core.Aggregate(expenses, categories, subcategories, from, to)
	s.stats.Set(key, st)
	return st, nil
}

// Trend returns monthly totals from..to inclusive.
func (s *StatsService) Trend(ctx context.Context, userID string, from, to core.Month) ([]core.MonthTotal, error) {
	if from.Validate() != nil || to.Validate() != nil || to.Before(from) {
		return nil, ErrInvalidRange
	}
	if from.MonthsUntil(to) >= maxTrendMonths {
		return nil, ErrRangeTooLarge
	}

	key := fmt.Sprintf("%strend|%s|%s", userPrefix(userID), from, to)
	if t, ok := s.trends.Get(key); ok {
		return t, nil
	}
	expenses, err := s.store.ListExpenses(ctx, userID, storage.ExpenseFilter{From: from.FirstDay(), To: to.LastDay()})
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	t := core.Trend(expenses, from, to)
	s.trends.Set(key, t)
	return t, nil
}

// BudgetProgress compares the month's budgets with what was spent.
func (s *StatsService) BudgetProgress(ctx context.Context, userID string, m core.Month) ([]core.BudgetStatus, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%sbudget|%s", userPrefix(userID), m)
	if b, ok := s.budgets.Get(key); ok {
		return b, nil
	}

	budgets, err := s.store.ListBudgets(ctx, userID, m)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	expenses, err := s.store.ListExpenses(ctx, userID, storage.ExpenseFilter{From: m.FirstDay(), To: m.LastDay()})
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	progress := core.BudgetProgress(budgets, expenses, m)
	s.budgets.Set(key, progress)
	return progress, nil
}
