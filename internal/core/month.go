package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Month identifies a calendar month. Its string form is "YYYY-MM".
type Month struct {
	Year  int
	Month time.Month
}

const monthLayout = "2006-01"

// ParseMonth parses a "YYYY-MM" key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing d.
func MonthOf(d Date) Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

// CurrentMonth returns the month containing now in UTC.
func CurrentMonth(now time.Time) Month {
	return MonthOf(DateOf(now.UTC()))
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) Validate() error {
	if m.Year < 1 || m.Month < time.January || m.Month > time.December {
		return ErrInvalidMonth
	}
	return nil
}

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// AddMonths returns the month n months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) index() int {
	return m.Year*12 + int(m.Month) - 1
}

func (m Month) Before(o Month) bool { return m.index() < o.index() }
func (m Month) After(o Month) bool  { return m.index() > o.index() }

// MonthsUntil returns the number of months from m to o; negative when o is earlier.
func (m Month) MonthsUntil(o Month) int {
	return o.index() - m.index()
}

func (m Month) FirstDay() Date {
	return NewDate(m.Year, int(m.Month), 1)
}

func (m Month) LastDay() Date {
	return Date{Time: m.AddMonths(1).FirstDay().AddDate(0, 0, -1)}
}

// Contains reports whether d falls inside the month.
func (m Month) Contains(d Date) bool {
	return MonthOf(d) == m
}

func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
