package http

import (
	"fmt"
	"strings"
	"time"

	"expensa/internal/core"
	"expensa/internal/services"
)

// Wire shapes. Amounts travel as integer cents plus a display string;
// inputs accept either "amount" (decimal string, comma or dot) or
// "amount_cents".

type moneyInput struct {
	Amount      string `json:"amount,omitempty"`
	AmountCents *int64 `json:"amount_cents,omitempty"`
}

func (m moneyInput) money() (core.Money, error) {
	if m.AmountCents != nil {
		return core.Money{Cents: *m.AmountCents}, nil
	}
	if strings.TrimSpace(m.Amount) == "" {
		return core.Money{}, core.ErrInvalidAmount
	}
	return core.ParseMoney(m.Amount)
}

type categoryDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type categoryInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Icon string `json:"icon"`
}

func toCategoryDTO(c core.Category) categoryDTO {
	return categoryDTO{ID: c.ID, Name: c.Name, Type: string(c.Type), Icon: c.Icon, CreatedAt: c.CreatedAt}
}

type subcategoryDTO struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

type subcategoryInput struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

func toSubcategoryDTO(s core.Subcategory) subcategoryDTO {
	return subcategoryDTO{ID: s.ID, CategoryID: s.CategoryID, Name: s.Name, CreatedAt: s.CreatedAt}
}

type recurrenceDTO struct {
	GroupID     string `json:"group_id"`
	StartDate   string `json:"start_date"`
	TotalMonths int    `json:"total_months"`
}

type expenseDTO struct {
	ID                 string         `json:"id"`
	Description        string         `json:"description"`
	AmountCents        int64          `json:"amount_cents"`
	Amount             string         `json:"amount"`
	Date               string         `json:"date"`
	CategoryID         string         `json:"category_id"`
	SubcategoryID      string         `json:"subcategory_id,omitempty"`
	Recurring          *recurrenceDTO `json:"recurring,omitempty"`
	SplitwiseExpenseID *int64         `json:"splitwise_expense_id,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

func toExpenseDTO(e core.Expense) expenseDTO {
	d := expenseDTO{
		ID:                 e.ID,
		Description:        e.Description,
		AmountCents:        e.Amount.Cents,
		Amount:             e.Amount.String(),
		Date:               e.Date.String(),
		CategoryID:         e.CategoryID,
		SubcategoryID:      e.SubcategoryID,
		SplitwiseExpenseID: e.SplitwiseExpenseID,
		CreatedAt:          e.CreatedAt,
	}
	if e.Recurring != nil {
		d.Recurring = &recurrenceDTO{
			GroupID:     e.Recurring.GroupID,
			StartDate:   e.Recurring.StartDate.String(),
			TotalMonths: e.Recurring.TotalMonths,
		}
	}
	return d
}

func toExpenseDTOs(es []core.Expense) []expenseDTO {
	out := make([]expenseDTO, 0, len(es))
	for _, e := range es {
		out = append(out, toExpenseDTO(e))
	}
	return out
}

type expenseInput struct {
	moneyInput
	Description   string `json:"description"`
	Date          string `json:"date"`
	CategoryID    string `json:"category_id"`
	SubcategoryID string `json:"subcategory_id"`
}

// expense converts the input; an empty date means today.
func (in expenseInput) expense(userID string, now time.Time) (core.Expense, error) {
	amount, err := in.money()
	if err != nil {
		return core.Expense{}, err
	}
	date := core.DateOf(now.UTC())
	if strings.TrimSpace(in.Date) != "" {
		if date, err = core.ParseDate(in.Date); err != nil {
			return core.Expense{}, err
		}
	}
	return core.Expense{
		UserID:        userID,
		Amount:        amount,
		Description:   sanitizeInput(in.Description),
		Date:          date,
		CategoryID:    in.CategoryID,
		SubcategoryID: in.SubcategoryID,
	}, nil
}

type bulkInput struct {
	IDs           []string `json:"ids"`
	CategoryID    string   `json:"category_id,omitempty"`
	SubcategoryID string   `json:"subcategory_id,omitempty"`
}

type seriesInput struct {
	expenseInput
	Months int `json:"months"`
}

type seriesDTO struct {
	GroupID       string `json:"group_id"`
	Description   string `json:"description"`
	AmountCents   int64  `json:"amount_cents"`
	CategoryID    string `json:"category_id"`
	SubcategoryID string `json:"subcategory_id,omitempty"`
	StartDate     string `json:"start_date"`
	TotalMonths   int    `json:"total_months"`
	Indefinite    bool   `json:"indefinite"`
	Occurrences   int    `json:"occurrences"`
	LastDate      string `json:"last_date"`
}

func toSeriesDTO(s services.SeriesSummary) seriesDTO {
	return seriesDTO{
		GroupID:       s.GroupID,
		Description:   s.Description,
		AmountCents:   s.Amount.Cents,
		CategoryID:    s.CategoryID,
		SubcategoryID: s.SubcategoryID,
		StartDate:     s.StartDate.String(),
		TotalMonths:   s.TotalMonths,
		Indefinite:    s.TotalMonths == 0,
		Occurrences:   s.Occurrences,
		LastDate:      s.LastDate.String(),
	}
}

type budgetDTO struct {
	ID          string     `json:"id"`
	CategoryID  string     `json:"category_id"`
	Month       core.Month `json:"month"`
	AmountCents int64      `json:"amount_cents"`
}

type budgetInput struct {
	moneyInput
	CategoryID string     `json:"category_id"`
	Month      core.Month `json:"month"`
}

func toBudgetDTO(b core.Budget) budgetDTO {
	return budgetDTO{ID: b.ID, CategoryID: b.CategoryID, Month: b.Month, AmountCents: b.Amount.Cents}
}

type budgetStatusDTO struct {
	CategoryID     string  `json:"category_id"`
	BudgetCents    int64   `json:"budget_cents"`
	SpentCents     int64   `json:"spent_cents"`
	RemainingCents int64   `json:"remaining_cents"`
	Percentage     float64 `json:"percentage"`
	Over           bool    `json:"over"`
}

func toBudgetStatusDTO(b core.BudgetStatus) budgetStatusDTO {
	return budgetStatusDTO{
		CategoryID:     b.CategoryID,
		BudgetCents:    b.Budget.Cents,
		SpentCents:     b.Spent.Cents,
		RemainingCents: b.Remaining.Cents,
		Percentage:     b.Percentage,
		Over:           b.Over,
	}
}

type goalDTO struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	TargetAmountCents  int64     `json:"target_amount_cents"`
	CurrentAmountCents int64     `json:"current_amount_cents"`
	DueDate            string    `json:"due_date,omitempty"`
	Icon               string    `json:"icon,omitempty"`
	Color              string    `json:"color,omitempty"`
	Progress           float64   `json:"progress"`
	Completed          bool      `json:"completed"`
	CreatedAt          time.Time `json:"created_at"`
}

func toGoalDTO(g core.SavingsGoal) goalDTO {
	d := goalDTO{
		ID:                 g.ID,
		Name:               g.Name,
		TargetAmountCents:  g.TargetAmount.Cents,
		CurrentAmountCents: g.CurrentAmount.Cents,
		Icon:               g.Icon,
		Color:              g.Color,
		Progress:           g.Progress(),
		Completed:          g.Completed(),
		CreatedAt:          g.CreatedAt,
	}
	if g.DueDate != nil {
		d.DueDate = g.DueDate.String()
	}
	return d
}

type goalInput struct {
	Name              string `json:"name"`
	TargetAmount      string `json:"target_amount,omitempty"`
	TargetAmountCents *int64 `json:"target_amount_cents,omitempty"`
	DueDate           string `json:"due_date,omitempty"`
	Icon              string `json:"icon,omitempty"`
	Color             string `json:"color,omitempty"`
}

func (in goalInput) goal(userID string) (core.SavingsGoal, error) {
	target, err := moneyInput{Amount: in.TargetAmount, AmountCents: in.TargetAmountCents}.money()
	if err != nil {
		return core.SavingsGoal{}, err
	}
	g := core.SavingsGoal{
		UserID:       userID,
		Name:         sanitizeInput(in.Name),
		TargetAmount: target,
		Icon:         in.Icon,
		Color:        in.Color,
	}
	if strings.TrimSpace(in.DueDate) != "" {
		d, err := core.ParseDate(in.DueDate)
		if err != nil {
			return core.SavingsGoal{}, err
		}
		g.DueDate = &d
	}
	return g, nil
}

type contributionDTO struct {
	ID          string `json:"id"`
	GoalID      string `json:"goal_id"`
	AmountCents int64  `json:"amount_cents"`
	Date        string `json:"date"`
	Note        string `json:"note,omitempty"`
}

func toContributionDTO(c core.Contribution) contributionDTO {
	return contributionDTO{ID: c.ID, GoalID: c.GoalID, AmountCents: c.Amount.Cents, Date: c.Date.String(), Note: c.Note}
}

type contributionInput struct {
	moneyInput
	Date string `json:"date,omitempty"`
	Note string `json:"note,omitempty"`
}

type settingsDTO struct {
	HasSplitwiseKey      bool       `json:"has_splitwise_key"`
	SplitwiseUserID      int64      `json:"splitwise_user_id,omitempty"`
	DefaultCategoryID    string     `json:"default_category_id,omitempty"`
	DefaultSubcategoryID string     `json:"default_subcategory_id,omitempty"`
	LastSyncTime         *time.Time `json:"last_sync_time,omitempty"`
}

func toSettingsDTO(v services.SettingsView) settingsDTO {
	return settingsDTO{
		HasSplitwiseKey:      v.HasSplitwiseKey,
		SplitwiseUserID:      v.SplitwiseUserID,
		DefaultCategoryID:    v.DefaultCategoryID,
		DefaultSubcategoryID: v.DefaultSubcategoryID,
		LastSyncTime:         v.LastSyncTime,
	}
}

type settingsInput struct {
	SplitwiseAPIKey      *string `json:"splitwise_api_key,omitempty"`
	SplitwiseUserID      *int64  `json:"splitwise_user_id,omitempty"`
	DefaultCategoryID    *string `json:"default_category_id,omitempty"`
	DefaultSubcategoryID *string `json:"default_subcategory_id,omitempty"`
}

type subcategoryAmountDTO struct {
	SubcategoryID string `json:"subcategory_id"`
	Name          string `json:"name"`
	TotalCents    int64  `json:"total_cents"`
	Count         int    `json:"count"`
}

type categoryBreakdownDTO struct {
	CategoryID    string                 `json:"category_id"`
	Name          string                 `json:"name"`
	Type          string                 `json:"type,omitempty"`
	TotalCents    int64                  `json:"total_cents"`
	Count         int                    `json:"count"`
	Percentage    float64                `json:"percentage"`
	Subcategories []subcategoryAmountDTO `json:"subcategories"`
}

type statisticsDTO struct {
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	TotalCents int64                  `json:"total_cents"`
	Total      string                 `json:"total"`
	Count      int                    `json:"count"`
	Categories []categoryBreakdownDTO `json:"categories"`
}

func toStatisticsDTO(s core.Statistics) statisticsDTO {
	out := statisticsDTO{
		From:       s.From.String(),
		To:         s.To.String(),
		TotalCents: s.Total.Cents,
		Total:      s.Total.String(),
		Count:      s.Count,
		Categories: make([]categoryBreakdownDTO, 0, len(s.Categories)),
	}
	for _, c := range s.Categories {
		cb := categoryBreakdownDTO{
			CategoryID:    c.CategoryID,
			Name:          c.Name,
			Type:          string(c.Type),
			TotalCents:    c.Total.Cents,
			Count:         c.Count,
			Percentage:    c.Percentage,
			Subcategories: make([]subcategoryAmountDTO, 0, len(c.Subcategories)),
		}
		for _, sc := range c.Subcategories {
			cb.Subcategories = append(cb.Subcategories, subcategoryAmountDTO{
				SubcategoryID: sc.SubcategoryID, Name: sc.Name, TotalCents: sc.Total.Cents, Count: sc.Count,
			})
		}
		out.Categories = append(out.Categories, cb)
	}
	return out
}

type monthTotalDTO struct {
	Month      core.Month `json:"month"`
	TotalCents int64      `json:"total_cents"`
	Count      int        `json:"count"`
}

type countDTO struct {
	Count int `json:"count"`
}

func requireIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ids must not be empty")
	}
	return out, nil
}
