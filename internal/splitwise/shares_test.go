package splitwise

import (
	"errors"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

func TestNormalizeShares_Rounding(t *testing.T) {
	req := map[string]any{
		"cost":                  "10.005",
		"description":           "Pizza",
		"users__0__user_id":     float64(1),
		"users__0__paid_share":  "10.005",
		"users__0__owed_share":  "3.333",
		"users__1__user_id":     float64(2),
		"users__1__owed_share":  "3.333",
		"users__2__user_id":     float64(3),
		"users__2__owed_share":  "3.333",
		"unrelated_client_junk": true,
	}
	got, err := NormalizeShares(req, "42", fixedNow)
	if err != nil {
		t.Fatalf("NormalizeShares: %v", err)
	}

	if got["cost"] != 10.01 {
		t.Errorf("cost = %v, want 10.01", got["cost"])
	}
	if got["users__0__paid_share"] != "10.01" {
		t.Errorf("paid share = %v, want 10.01", got["users__0__paid_share"])
	}
	// 3.33 * 3 = 9.99, so the last owed share absorbs 0.02.
	if got["users__2__owed_share"] != "3.35" {
		t.Errorf("last owed share = %v, want 3.35", got["users__2__owed_share"])
	}
	if got["users__0__owed_share"] != "3.33" {
		t.Errorf("first owed share = %v, want 3.33", got["users__0__owed_share"])
	}
	if got["group_id"] != int64(42) {
		t.Errorf("group_id = %v, want 42", got["group_id"])
	}
	if _, ok := got["unrelated_client_junk"]; ok {
		t.Error("unknown keys should not be forwarded")
	}
}

func TestNormalizeShares_Defaults(t *testing.T) {
	req := map[string]any{
		"cost":                 float64(20),
		"description":          "Taxi",
		"users__0__user_id":    float64(1),
		"users__0__owed_share": "20",
	}
	got, err := NormalizeShares(req, "", fixedNow)
	if err != nil {
		t.Fatalf("NormalizeShares: %v", err)
	}
	want := map[string]any{
		"date":            "2025-03-14T00:00:00Z",
		"repeat_interval": "never",
		"currency_code":   "USD",
		"category_id":     1,
		"group_id":        int64(0),
		"split_equally":   false,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v (%T), want %v (%T)", k, got[k], got[k], v, v)
		}
	}
	if _, ok := got["details"]; ok {
		t.Error("details should be omitted when absent")
	}
}

func TestNormalizeShares_SkipsZeroOwedWhenAdjusting(t *testing.T) {
	req := map[string]any{
		"cost":                 "30",
		"description":          "Groceries",
		"date":                 "2025-01-02",
		"users__0__user_id":    float64(1),
		"users__0__owed_share": "14.99",
		"users__1__user_id":    float64(2),
		"users__1__owed_share": "0",
	}
	got, err := NormalizeShares(req, "7", fixedNow)
	if err != nil {
		t.Fatalf("NormalizeShares: %v", err)
	}
	if got["users__0__owed_share"] != "30" {
		t.Errorf("owed share = %v, want 30", got["users__0__owed_share"])
	}
	if got["users__1__owed_share"] != "0" {
		t.Errorf("zero share changed to %v", got["users__1__owed_share"])
	}
	if got["date"] != "2025-01-02T00:00:00Z" {
		t.Errorf("date = %v", got["date"])
	}
}

func TestNormalizeShares_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  map[string]any
		want error
	}{
		{"missing cost", map[string]any{"description": "x", "users__0__user_id": 1.0}, ErrMissingField},
		{"missing description", map[string]any{"cost": "5", "users__0__user_id": 1.0}, ErrMissingField},
		{"bad cost", map[string]any{"cost": "abc", "description": "x", "users__0__user_id": 1.0}, ErrInvalidCost},
		{"no users", map[string]any{"cost": "5", "description": "x"}, ErrNoUsers},
		{"bad share", map[string]any{"cost": "5", "description": "x", "users__0__user_id": 1.0, "users__0__owed_share": "five"}, ErrInvalidShare},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeShares(tt.req, "1", fixedNow)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFilterOwed(t *testing.T) {
	deleted := "2025-01-01T00:00:00Z"
	expenses := []Expense{
		{ID: 1, Users: []Share{{UserID: 7, OwedShare: "5.00"}}},
		{ID: 2, Payment: true, Users: []Share{{UserID: 7, OwedShare: "5.00"}}},
		{ID: 3, DeletedAt: &deleted, Users: []Share{{UserID: 7, OwedShare: "5.00"}}},
		{ID: 4, Users: []Share{{UserID: 7, OwedShare: "0.0"}, {UserID: 8, OwedShare: "5.00"}}},
		{ID: 5, Users: []Share{{UserID: 8, OwedShare: "5.00"}}},
		{ID: 6, Users: []Share{{UserID: 7, OwedShare: "0.01"}}},
	}
	got := FilterOwed(expenses, 7)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 6 {
		t.Errorf("FilterOwed ids = %v, want [1 6]", ids(got))
	}
}

func ids(es []Expense) []int64 {
	out := make([]int64, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}
