package splitwise

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"expensa/internal/log"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second, log.Nop())
}

func TestClient_GetCurrentUser(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_current_user" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"user":{"id":7,"first_name":"Ada","last_name":"L","email":"ada@example.com","registration_status":"confirmed"}}`))
	})

	u, err := c.GetCurrentUser(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("GetCurrentUser: %v", err)
	}
	if u.ID != 7 || u.FirstName != "Ada" || u.RegistrationStatus != "confirmed" {
		t.Errorf("user = %+v", u)
	}
}

func TestClient_GetGroupAndGroups(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_groups":
			w.Write([]byte(`{"groups":[{"id":1,"name":"Flat"},{"id":2,"name":"Trip"}]}`))
		case "/get_group/2":
			w.Write([]byte(`{"group":{"id":2,"name":"Trip","members":[{"id":7,"first_name":"Ada"}]}}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	groups, err := c.GetGroups(ctx, "k")
	if err != nil || len(groups) != 2 || groups[1].Name != "Trip" {
		t.Fatalf("GetGroups = %+v, %v", groups, err)
	}
	g, err := c.GetGroup(ctx, "k", 2)
	if err != nil || len(g.Members) != 1 || g.Members[0].ID != 7 {
		t.Fatalf("GetGroup = %+v, %v", g, err)
	}
}

func TestClient_GetExpensesQuery(t *testing.T) {
	after := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("dated_after"); got != "2025-02-01T08:00:00Z" {
			t.Errorf("dated_after = %q", got)
		}
		if r.URL.Query().Has("limit") {
			t.Error("zero limit should be omitted")
		}
		if got := r.URL.Query().Get("offset"); got != "400" {
			t.Errorf("offset = %q", got)
		}
		w.Write([]byte(`{"expenses":[{"id":9,"description":"Dinner","cost":"30.0","date":"2025-02-02T19:00:00Z","payment":false,"deleted_at":null,"users":[{"user_id":7,"paid_share":"0.0","owed_share":"10.0"}]}]}`))
	})

	exps, err := c.GetExpenses(context.Background(), "k", ExpenseQuery{DatedAfter: after, Offset: 400})
	if err != nil {
		t.Fatalf("GetExpenses: %v", err)
	}
	if len(exps) != 1 || exps[0].DeletedAt != nil {
		t.Fatalf("expenses = %+v", exps)
	}
	owed, ok := exps[0].OwedShare(7)
	if !ok || owed.String() != "10" {
		t.Errorf("OwedShare = %s, %v", owed, ok)
	}
}

func TestClient_CreateExpensePostsPayload(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["description"] != "Taxi" {
			t.Errorf("description = %v", body["description"])
		}
		w.Write([]byte(`{"expenses":[{"id":1}],"errors":{}}`))
	})

	raw, err := c.CreateExpense(context.Background(), "k", map[string]any{"description": "Taxi"})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if string(raw) != `{"expenses":[{"id":1}],"errors":{}}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestClient_Errors(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
	})
	ctx := context.Background()

	_, err := c.GetGroups(ctx, "k")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v, want APIError 401", err)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Error("401 should unwrap to ErrUnauthorized")
	}
	if err.Error() != "Splitwise API error: 401" {
		t.Errorf("message = %q", err.Error())
	}

	if _, err := c.GetGroups(ctx, ""); !errors.Is(err, ErrMissingKey) {
		t.Errorf("empty key err = %v, want ErrMissingKey", err)
	}
}
