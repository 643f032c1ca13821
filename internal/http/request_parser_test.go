package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"expensa/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		limit   int64
		want    string
		wantErr error
	}{
		{name: "valid", body: `{"name":"rent"}`, want: "rent"},
		{name: "empty body", body: "  ", wantErr: ErrEmptyBody},
		{name: "malformed", body: `{"name":`, wantErr: ErrInvalidJSON},
		{name: "unknown field", body: `{"name":"x","extra":1}`, wantErr: ErrInvalidJSON},
		{name: "too large", body: `{"name":"abcdefghij"}`, limit: 8, wantErr: ErrInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(r, tt.limit, &p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name != tt.want {
				t.Errorf("Name = %q, want %q", p.Name, tt.want)
			}
		})
	}
}

func TestDecodeJSONMap_KeepsNumbers(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"cost":"12.50","users__0__user_id":42}`))
	m, err := decodeJSONMap(r, maxBodyBytes)
	if err != nil {
		t.Fatalf("decodeJSONMap: %v", err)
	}
	if got := m["users__0__user_id"]; got == nil || got.(interface{ String() string }).String() != "42" {
		t.Errorf("user id = %#v, want json.Number 42", got)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[1,2]`))
	if _, err := decodeJSONMap(r, maxBodyBytes); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("array body err = %v, want ErrInvalidJSON", err)
	}
}

func TestParseMonthParam(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		query   url.Values
		want    core.Month
		wantErr bool
	}{
		{name: "explicit", query: url.Values{"month": {"2023-11"}}, want: core.Month{Year: 2023, Month: time.November}},
		{name: "missing uses now", query: url.Values{}, want: core.Month{Year: 2024, Month: time.March}},
		{name: "padded", query: url.Values{"month": {" 2024-01 "}}, want: core.Month{Year: 2024, Month: time.January}},
		{name: "garbage", query: url.Values{"month": {"2024-13"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParam(tt.query, "month", now)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidMonth) {
					t.Fatalf("err = %v, want ErrInvalidMonth", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseOptionalMonth(t *testing.T) {
	m, err := ParseOptionalMonth(url.Values{}, "month")
	if err != nil || !m.IsZero() {
		t.Errorf("absent month = %v, %v; want zero, nil", m, err)
	}
}

func TestParseDateParams(t *testing.T) {
	q := url.Values{"from": {"2024-02-29"}, "bad": {"2024-02-30"}}

	d, err := ParseDateParam(q, "from")
	if err != nil {
		t.Fatalf("ParseDateParam: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Errorf("date = %s, want 2024-02-29", d)
	}
	if _, err := ParseDateParam(q, "to"); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("missing required date err = %v, want ErrInvalidDate", err)
	}
	if _, err := ParseDateParam(q, "bad"); err == nil {
		t.Error("expected error for 2024-02-30")
	}
	if d, err := ParseOptionalDate(q, "to"); err != nil || !d.IsZero() {
		t.Errorf("optional absent date = %v, %v; want zero, nil", d, err)
	}
}

func TestParseIntParam(t *testing.T) {
	q := url.Values{"limit": {"25"}, "bad": {"ten"}}
	if n, err := ParseIntParam(q, "limit", 0); err != nil || n != 25 {
		t.Errorf("limit = %d, %v; want 25", n, err)
	}
	if n, err := ParseIntParam(q, "missing", 7); err != nil || n != 7 {
		t.Errorf("default = %d, %v; want 7", n, err)
	}
	if _, err := ParseIntParam(q, "bad", 0); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Groceries  ", "Groceries"},
		{"Line1\nLine2", "Line1\nLine2"},
		{"bell\x07char", "bellchar"},
		{"tab\there", "tab\there"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
