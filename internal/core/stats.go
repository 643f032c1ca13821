package core

import (
	"math"
	"sort"
)

// UnknownCategoryName labels spend whose category no longer exists.
const UnknownCategoryName = "Unknown"

type (
	SubcategoryAmount struct {
		SubcategoryID string
		Name          string
		Total         Money
		Count         int
	}

	CategoryBreakdown struct {
		CategoryID    string
		Name          string
		Type          CategoryType
		Total         Money
		Count         int
		Percentage    float64 // share of the period total, one decimal
		Subcategories []SubcategoryAmount
	}

	// Statistics summarizes spend over an inclusive date range.
	Statistics struct {
		From       Date
		To         Date
		Total      Money
		Count      int
		Categories []CategoryBreakdown
	}

	MonthTotal struct {
		Month Month
		Total Money
		Count int
	}

	BudgetStatus struct {
		CategoryID string
		Budget     Money
		Spent      Money
		Remaining  Money
		Percentage float64 // capped at 100
		Over       bool
	}
)

// Percentage returns part/total*100 rounded to one decimal, 0 when total is 0.
func Percentage(part, total Money) float64 {
	if total.Cents == 0 {
		return 0
	}
	return math.Round(float64(part.Cents)/float64(total.Cents)*1000) / 10
}

// InRange reports whether d lies in [from, to].
func InRange(d, from, to Date) bool {
	return !d.Before(from.Time) && !d.After(to.Time)
}

// Aggregate groups the expenses dated within [from, to] by category and
// subcategory. Breakdown entries are sorted by total descending, ties by name.
func Aggregate(expenses []Expense, categories []Category, subcategories []Subcategory, from, to Date) Statistics {
	catByID := make(map[string]Category, len(categories))
	for _, c := range categories {
		catByID[c.ID] = c
	}
	subByID := make(map[string]Subcategory, len(subcategories))
	for _, s := range subcategories {
		subByID[s.ID] = s
	}

	stats := Statistics{From: from, To: to}
	byCat := make(map[string]*CategoryBreakdown)
	bySub := make(map[string]map[string]*SubcategoryAmount)
	for _, e := range expenses {
		if !InRange(e.Date, from, to) {
			continue
		}
		stats.Total = stats.Total.Add(e.Amount)
		stats.Count++

		cb, ok := byCat[e.CategoryID]
		if !ok {
			cb = &CategoryBreakdown{CategoryID: e.CategoryID, Name: UnknownCategoryName, Type: CategoryMisc}
			if c, found := catByID[e.CategoryID]; found {
				cb.Name, cb.Type = c.Name, c.Type
			}
			byCat[e.CategoryID] = cb
			bySub[e.CategoryID] = make(map[string]*SubcategoryAmount)
		}
		cb.Total = cb.Total.Add(e.Amount)
		cb.Count++

		if e.SubcategoryID == "" {
			continue
		}
		sa, ok := bySub[e.CategoryID][e.SubcategoryID]
		if !ok {
			sa = &SubcategoryAmount{SubcategoryID: e.SubcategoryID, Name: UnknownCategoryName}
			if s, found := subByID[e.SubcategoryID]; found {
				sa.Name = s.Name
			}
			bySub[e.CategoryID][e.SubcategoryID] = sa
		}
		sa.Total = sa.Total.Add(e.Amount)
		sa.Count++
	}

	stats.Categories = make([]CategoryBreakdown, 0, len(byCat))
	for id, cb := range byCat {
		cb.Percentage = Percentage(cb.Total, stats.Total)
		for _, sa := range bySub[id] {
			cb.Subcategories = append(cb.Subcategories, *sa)
		}
		sort.Slice(cb.Subcategories, func(i, j int) bool {
			a, b := cb.Subcategories[i], cb.Subcategories[j]
			if a.Total != b.Total {
				return a.Total.Cents > b.Total.Cents
			}
			return a.Name < b.Name
		})
		stats.Categories = append(stats.Categories, *cb)
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		a, b := stats.Categories[i], stats.Categories[j]
		if a.Total != b.Total {
			return a.Total.Cents > b.Total.Cents
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.CategoryID < b.CategoryID
	})
	return stats
}

// Monthly aggregates the expenses of a single month.
func Monthly(expenses []Expense, categories []Category, subcategories []Subcategory, m Month) Statistics {
	return Aggregate(expenses, categories, subcategories, m.FirstDay(), m.LastDay())
}

// Trend returns one total per month from..to inclusive; months without spend
// are present with a zero total.
func Trend(expenses []Expense, from, to Month) []MonthTotal {
	n := from.MonthsUntil(to) + 1
	if n <= 0 {
		return nil
	}
	out := make([]MonthTotal, n)
	for i := range out {
		out[i].Month = from.AddMonths(i)
	}
	for _, e := range expenses {
		i := from.MonthsUntil(MonthOf(e.Date))
		if i < 0 || i >= n {
			continue
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}
	return out
}

// BudgetProgress compares the month's budgets with actual spend. Categories
// with spend but no budget are reported with a zero budget at 100 percent.
// The result is ordered by category ID.
func BudgetProgress(budgets []Budget, expenses []Expense, m Month) []BudgetStatus {
	spent := make(map[string]Money)
	for _, e := range expenses {
		if !m.Contains(e.Date) {
			continue
		}
		spent[e.CategoryID] = spent[e.CategoryID].Add(e.Amount)
	}

	seen := make(map[string]bool)
	var out []BudgetStatus
	for _, b := range budgets {
		if b.Month != m || seen[b.CategoryID] {
			continue
		}
		seen[b.CategoryID] = true
		s := spent[b.CategoryID]
		pct := 0.0
		if b.Amount.Cents > 0 {
			pct = math.Min(float64(s.Cents)/float64(b.Amount.Cents)*100, 100)
		}
		out = append(out, BudgetStatus{
			CategoryID: b.CategoryID,
			Budget:     b.Amount,
			Spent:      s,
			Remaining:  b.Amount.Sub(s),
			Percentage: pct,
			Over:       s.Cents > b.Amount.Cents,
		})
	}
	for id, s := range spent {
		if seen[id] {
			continue
		}
		out = append(out, BudgetStatus{
			CategoryID: id,
			Spent:      s,
			Remaining:  Money{}.Sub(s),
			Percentage: 100,
			Over:       s.Cents > 0,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out
}
