package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"expensa/internal/core"
	"expensa/internal/storage"
)

type fakeUsers map[string]core.User

func (f fakeUsers) UserByToken(_ context.Context, token string) (core.User, error) {
	if token == "boom" {
		return core.User{}, errors.New("db down")
	}
	u, ok := f[token]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMiddleware(t *testing.T) {
	users := fakeUsers{"good": {ID: "u1", Name: "Ada"}}
	var gotStatus int
	onError := func(w http.ResponseWriter, r *http.Request, status int, err error) {
		gotStatus = status
		w.WriteHeader(status)
	}
	h := Middleware(users, onError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok || u.ID != "u1" {
			t.Errorf("user not in context: %+v", u)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer good", http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"unknown", "Bearer nope", http.StatusUnauthorized},
		{"lookup failure", "Bearer boom", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotStatus = 0
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusNoContent && gotStatus != tt.want {
				t.Fatalf("onError status = %d", gotStatus)
			}
		})
	}
}
