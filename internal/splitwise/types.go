package splitwise

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID                 int64  `json:"id"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name,omitempty"`
	Email              string `json:"email,omitempty"`
	RegistrationStatus string `json:"registration_status,omitempty"`
}

type Group struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Members []User `json:"members,omitempty"`
}

// Share is one user's part of an expense. Amounts are decimal strings as
// Splitwise sends them.
type Share struct {
	UserID    int64  `json:"user_id"`
	User      *User  `json:"user,omitempty"`
	PaidShare string `json:"paid_share"`
	OwedShare string `json:"owed_share"`
}

type Expense struct {
	ID           int64   `json:"id"`
	GroupID      *int64  `json:"group_id"`
	Description  string  `json:"description"`
	Details      *string `json:"details,omitempty"`
	Cost         string  `json:"cost"`
	CurrencyCode string  `json:"currency_code"`
	Date         string  `json:"date"`
	Payment      bool    `json:"payment"`
	DeletedAt    *string `json:"deleted_at"`
	Users        []Share `json:"users"`
}

// ExpenseQuery narrows GetExpenses. Zero fields are omitted.
type ExpenseQuery struct {
	DatedAfter  time.Time
	DatedBefore time.Time
	GroupID     int64
	Limit       int
	Offset      int
}

// OwedShare returns what userID owes on the expense. ok is false when the
// user is not part of it.
func (e Expense) OwedShare(userID int64) (decimal.Decimal, bool) {
	for _, s := range e.Users {
		if s.UserID != userID {
			continue
		}
		if s.OwedShare == "" {
			return decimal.Zero, true
		}
		d, err := decimal.NewFromString(s.OwedShare)
		if err != nil {
			return decimal.Zero, true
		}
		return d, true
	}
	return decimal.Zero, false
}

// ParsedDate returns the expense date. Splitwise sends RFC 3339 timestamps.
func (e Expense) ParsedDate() (time.Time, error) {
	return time.Parse(time.RFC3339, e.Date)
}

// FilterOwed drops payments and deleted expenses and keeps those where
// userID owes a positive share.
func FilterOwed(expenses []Expense, userID int64) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Payment || e.DeletedAt != nil {
			continue
		}
		if owed, ok := e.OwedShare(userID); ok && owed.IsPositive() {
			out = append(out, e)
		}
	}
	return out
}
