package core

import "sort"

// ExpandSeries materializes the first months occurrences of a recurring
// expense. Occurrence i is dated Recurring.StartDate + i months with the day
// clamped to the end of the target month. IDs are left empty for the caller
// to assign.
//
// A template without Recurrence, or months <= 0, yields the template alone.
func ExpandSeries(template Expense, months int) []Expense {
	if template.Recurring == nil || months <= 0 {
		return []Expense{template}
	}
	out := make([]Expense, 0, months)
	for i := 0; i < months; i++ {
		out = append(out, occurrence(template, i))
	}
	return out
}

func occurrence(template Expense, offset int) Expense {
	e := template
	r := *template.Recurring
	e.ID = ""
	e.SplitwiseExpenseID = nil
	e.Date = r.StartDate.AddMonths(offset)
	e.Recurring = &r
	return e
}

// ExpectedMonths lists the months a series should have occurrences for, from
// its start month through the earlier of its last month and through.
// An indefinite series runs until through. The result is empty when through
// precedes the start month.
func ExpectedMonths(r Recurrence, through Month) []Month {
	start := r.StartMonth()
	end := through
	if last, ok := r.LastMonth(); ok && last.Before(end) {
		end = last
	}
	n := start.MonthsUntil(end) + 1
	if n <= 0 {
		return nil
	}
	out := make([]Month, n)
	for i := range out {
		out[i] = start.AddMonths(i)
	}
	return out
}

// MissingOccurrences returns the occurrences of template's series that are
// expected through the given month but neither present in existing nor listed
// in skipped. existing may hold expenses of other series; they are ignored.
//
// Running MissingOccurrences again after inserting its result returns nothing.
func MissingOccurrences(template Expense, existing []Expense, skipped []Month, through Month) []Expense {
	if template.Recurring == nil {
		return nil
	}
	r := *template.Recurring
	present := make(map[Month]struct{}, len(existing)+len(skipped))
	for _, e := range existing {
		if e.Recurring == nil || e.Recurring.GroupID != r.GroupID {
			continue
		}
		present[MonthOf(e.Date)] = struct{}{}
	}
	for _, m := range skipped {
		present[m] = struct{}{}
	}

	start := r.StartMonth()
	var out []Expense
	for _, m := range ExpectedMonths(r, through) {
		if _, ok := present[m]; ok {
			continue
		}
		out = append(out, occurrence(template, start.MonthsUntil(m)))
	}
	return out
}

// SeriesTemplates picks one representative occurrence per recurring group,
// the latest dated one, so edits to amount or description carry forward.
// Non-recurring expenses are skipped. The result is ordered by group ID.
func SeriesTemplates(expenses []Expense) []Expense {
	latest := make(map[string]Expense)
	for _, e := range expenses {
		if e.Recurring == nil {
			continue
		}
		cur, ok := latest[e.Recurring.GroupID]
		if !ok || e.Date.After(cur.Date.Time) {
			latest[e.Recurring.GroupID] = e
		}
	}
	out := make([]Expense, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Recurring.GroupID < out[j].Recurring.GroupID
	})
	return out
}
