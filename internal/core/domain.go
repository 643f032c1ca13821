package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	CategoryCar       CategoryType = "car"
	CategoryGroceries CategoryType = "groceries"
	CategoryHome      CategoryType = "home"
	CategoryFood      CategoryType = "food"
	CategoryMisc      CategoryType = "misc"
)

const (
	MaxNameLength        = 50
	MaxDescriptionLength = 200
)

type (
	CategoryType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID        string
		UserID    string
		Name      string
		Type      CategoryType
		Icon      string // opaque, chosen by the client
		CreatedAt time.Time
	}

	Subcategory struct {
		ID         string
		UserID     string
		CategoryID string
		Name       string
		CreatedAt  time.Time
	}

	// Recurrence links an expense to a monthly series. StartDate is the date
	// of the first occurrence; TotalMonths == 0 marks an indefinite series.
	Recurrence struct {
		GroupID     string
		StartDate   Date
		TotalMonths int
	}

	Expense struct {
		ID                 string
		UserID             string
		Amount             Money
		Description        string
		Date               Date
		CategoryID         string
		SubcategoryID      string
		Recurring          *Recurrence
		SplitwiseExpenseID *int64
		CreatedAt          time.Time
	}

	Budget struct {
		ID         string
		UserID     string
		CategoryID string
		Month      Month
		Amount     Money
	}

	SavingsGoal struct {
		ID            string
		UserID        string
		Name          string
		TargetAmount  Money
		CurrentAmount Money
		DueDate       *Date
		Icon          string
		Color         string
		CreatedAt     time.Time
	}

	Contribution struct {
		ID     string
		GoalID string
		UserID string
		Amount Money
		Date   Date
		Note   string
	}

	UserSettings struct {
		UserID               string
		SplitwiseAPIKey      string
		SplitwiseUserID      int64
		DefaultCategoryID    string
		DefaultSubcategoryID string
		LastSyncTime         *time.Time
	}

	User struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}
)

var (
	ErrInvalidDay           = errors.New("invalid day")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrNegativeAmount       = errors.New("amount cannot be negative")
	ErrEmptyName            = errors.New("name is required")
	ErrNameTooLong          = errors.New("name is too long (max 50 characters)")
	ErrEmptyDescription     = errors.New("empty description")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrInvalidCategoryType  = errors.New("invalid category type")
	ErrMissingCategory      = errors.New("category is required")
	ErrMissingSubcategory   = errors.New("subcategory is required")
	ErrInvalidRecurrence    = errors.New("invalid recurrence")
	ErrMissingGoal          = errors.New("savings goal is required")
	ErrInvalidSplitwiseUser = errors.New("invalid splitwise user id")
	ErrInvalidDate          = errors.New("invalid date")
)

func (t CategoryType) Validate() error {
	switch t {
	case CategoryCar, CategoryGroceries, CategoryHome, CategoryFood, CategoryMisc:
		return nil
	}
	return ErrInvalidCategoryType
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its civil date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// AddMonths shifts the date by n months, clamping the day to the last day of
// the target month (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(n int) Date {
	target := MonthOf(d).AddMonths(n)
	day := d.Day()
	if last := target.LastDay().Day(); day > last {
		day = last
	}
	return NewDate(target.Year, int(target.Month), day)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	return c.Type.Validate()
}

func (s Subcategory) Validate() error {
	if strings.TrimSpace(s.CategoryID) == "" {
		return ErrMissingCategory
	}
	return validateName(s.Name)
}

func (r Recurrence) Validate() error {
	if strings.TrimSpace(r.GroupID) == "" || r.TotalMonths < 0 {
		return ErrInvalidRecurrence
	}
	if err := r.StartDate.Validate(); err != nil {
		return ErrInvalidRecurrence
	}
	return nil
}

func (r Recurrence) StartMonth() Month {
	return MonthOf(r.StartDate)
}

// Indefinite reports whether the series has no fixed length.
func (r Recurrence) Indefinite() bool {
	return r.TotalMonths == 0
}

// LastMonth returns the final month of a bounded series. ok is false for an
// indefinite series.
func (r Recurrence) LastMonth() (Month, bool) {
	if r.Indefinite() {
		return Month{}, false
	}
	return r.StartMonth().AddMonths(r.TotalMonths - 1), true
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.CategoryID) == "" {
		return ErrMissingCategory
	}
	if e.Recurring != nil {
		if err := e.Recurring.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrMissingCategory
	}
	if err := b.Month.Validate(); err != nil {
		return err
	}
	return b.Amount.Validate()
}

func (g SavingsGoal) Validate() error {
	if err := validateName(g.Name); err != nil {
		return err
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return err
	}
	if g.CurrentAmount.Cents < 0 {
		return ErrNegativeAmount
	}
	if g.DueDate != nil {
		if err := g.DueDate.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Progress returns the completion percentage, not capped at 100.
func (g SavingsGoal) Progress() float64 {
	if g.TargetAmount.Cents <= 0 {
		return 0
	}
	return float64(g.CurrentAmount.Cents) / float64(g.TargetAmount.Cents) * 100
}

func (g SavingsGoal) Completed() bool {
	return g.TargetAmount.Cents > 0 && g.CurrentAmount.Cents >= g.TargetAmount.Cents
}

func (c Contribution) Validate() error {
	if strings.TrimSpace(c.GoalID) == "" {
		return ErrMissingGoal
	}
	if err := c.Date.Validate(); err != nil {
		return err
	}
	return c.Amount.Validate()
}

func (s UserSettings) Validate() error {
	if s.SplitwiseUserID < 0 {
		return ErrInvalidSplitwiseUser
	}
	if s.DefaultSubcategoryID != "" && s.DefaultCategoryID == "" {
		return ErrMissingCategory
	}
	return nil
}

// SplitwiseReady reports whether the settings carry everything the importer needs.
func (s UserSettings) SplitwiseReady() bool {
	return s.SplitwiseAPIKey != "" && s.SplitwiseUserID > 0 && s.DefaultCategoryID != ""
}

var validationErrors = []error{
	ErrInvalidDay, ErrInvalidMonth, ErrInvalidAmount, ErrNegativeAmount, ErrEmptyName, ErrNameTooLong,
	ErrEmptyDescription, ErrDescriptionTooLong, ErrInvalidCategoryType, ErrMissingCategory,
	ErrMissingSubcategory, ErrInvalidRecurrence, ErrMissingGoal, ErrInvalidSplitwiseUser, ErrInvalidDate,
}

// IsValidation reports whether err stems from invalid user input.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
