package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"expensa/internal/amqp"
	"expensa/internal/core"
	"expensa/internal/splitwise"
	"expensa/internal/storage"
)

func ptr[T any](v T) *T { return &v }

func configureSplitwise(t *testing.T, env *testEnv) *SettingsService {
	t.Helper()
	settings := NewSettingsService(env.repo, nil)
	_, err := settings.Update(context.Background(), env.user.ID, SettingsPatch{
		SplitwiseAPIKey:      ptr("sw-key"),
		SplitwiseUserID:      ptr(int64(42)),
		DefaultCategoryID:    ptr(env.cat.ID),
		DefaultSubcategoryID: ptr(env.sub.ID),
	})
	if err != nil {
		t.Fatalf("Update settings: %v", err)
	}
	return settings
}

func TestSettingsService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := NewSettingsService(env.repo, nil)

	view, err := settings.Get(ctx, env.user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.HasSplitwiseKey || view.DefaultCategoryID != "" {
		t.Errorf("fresh settings = %+v", view)
	}
	if _, err := settings.SplitwiseKey(ctx, env.user.ID); !errors.Is(err, splitwise.ErrMissingKey) {
		t.Errorf("SplitwiseKey without key error = %v", err)
	}

	tests := []struct {
		name    string
		patch   SettingsPatch
		wantErr error
	}{
		{"unknown category", SettingsPatch{DefaultCategoryID: ptr("nope")}, storage.ErrBadReference},
		{"subcategory without category", SettingsPatch{DefaultSubcategoryID: ptr(env.sub.ID)}, core.ErrMissingCategory},
		{"negative splitwise user", SettingsPatch{SplitwiseUserID: ptr(int64(-1))}, core.ErrInvalidSplitwiseUser},
		{"valid", SettingsPatch{SplitwiseAPIKey: ptr("  key  "), DefaultCategoryID: ptr(env.cat.ID), DefaultSubcategoryID: ptr(env.sub.ID)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := settings.Update(ctx, env.user.ID, tt.patch)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Update error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	key, err := settings.SplitwiseKey(ctx, env.user.ID)
	if err != nil || key != "key" {
		t.Errorf("SplitwiseKey = %q, %v; want trimmed key", key, err)
	}

	// Changing the category alone clears a stale subcategory.
	other, err := env.repo.CreateCategory(ctx, core.Category{UserID: env.user.ID, Name: "Food", Type: core.CategoryFood})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	view, err = settings.Update(ctx, env.user.ID, SettingsPatch{DefaultCategoryID: ptr(other.ID)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if view.DefaultSubcategoryID != "" || !view.HasSplitwiseKey {
		t.Errorf("view after category change = %+v", view)
	}
}

func owedExpense(id int64, date, owed string) splitwise.Expense {
	return splitwise.Expense{
		ID:          id,
		Description: "Dinner",
		Cost:        "50.00",
		Date:        date,
		Users: []splitwise.Share{
			{UserID: 42, PaidShare: "0.00", OwedShare: owed},
			{UserID: 7, PaidShare: "50.00", OwedShare: "0.00"},
		},
	}
}

func TestSplitwiseImporter_Import(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	configureSplitwise(t, env)

	api := &fakeSplitwise{expenses: []splitwise.Expense{
		owedExpense(1, "2025-03-10T19:30:00Z", "12.34"),
		owedExpense(2, "2025-03-11T12:00:00Z", "0.00"),
		{ID: 3, Payment: true, Date: "2025-03-11T12:00:00Z", Users: []splitwise.Share{{UserID: 42, OwedShare: "5.00"}}},
	}}
	im := NewSplitwiseImporter(api, env.repo, env.expenses, 8*time.Hour, nil)
	im.now = fixedNow("2025-03-12T00:00:00Z")

	n, err := im.Import(ctx, env.user.ID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 1 {
		t.Fatalf("Import = %d, want 1", n)
	}
	if len(api.queries) != 1 {
		t.Fatalf("GetExpenses calls = %d", len(api.queries))
	}
	q := api.queries[0]
	if want := im.now().Add(-8 * time.Hour); !q.DatedAfter.Equal(want) {
		t.Errorf("first import DatedAfter = %v, want lookback %v", q.DatedAfter, want)
	}
	if api.keys[0] != "sw-key" {
		t.Errorf("api key = %q", api.keys[0])
	}

	imported, err := env.repo.ListExpenses(ctx, env.user.ID, storage.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("stored %d expenses, want 1", len(imported))
	}
	e := imported[0]
	if e.Amount.Cents != 1234 || e.Date.String() != "2025-03-10" || e.CategoryID != env.cat.ID || e.SubcategoryID != env.sub.ID {
		t.Errorf("imported expense = %+v", e)
	}
	if e.SplitwiseExpenseID == nil || *e.SplitwiseExpenseID != 1 {
		t.Errorf("SplitwiseExpenseID = %v", e.SplitwiseExpenseID)
	}
	if got := env.publisher.types(); len(got) != 1 || got[0] != amqp.TypeExpenseCreated {
		t.Errorf("published %v", got)
	}

	// Second run starts from the recorded sync time and skips duplicates.
	im.now = fixedNow("2025-03-12T06:00:00Z")
	n, err = im.Import(ctx, env.user.ID)
	if err != nil || n != 0 {
		t.Fatalf("second Import = %d, %v; want 0", n, err)
	}
	if q := api.queries[1]; !q.DatedAfter.Equal(fixedNow("2025-03-12T00:00:00Z")()) {
		t.Errorf("second import DatedAfter = %v, want last sync time", q.DatedAfter)
	}
}

func TestSplitwiseImporter_PagesThroughWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	configureSplitwise(t, env)

	start := fixedNow("2025-03-11T16:00:00Z")()
	api := &fakeSplitwise{filterDates: true}
	for i := 1; i <= 250; i++ {
		date := start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339)
		api.expenses = append(api.expenses, owedExpense(int64(i), date, "1.00"))
	}
	im := NewSplitwiseImporter(api, env.repo, env.expenses, 8*time.Hour, nil)
	im.now = fixedNow("2025-03-12T00:00:00Z")

	n, err := im.Import(ctx, env.user.ID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 250 {
		t.Fatalf("Import = %d, want 250", n)
	}
	var offsets []int
	for _, q := range api.queries {
		offsets = append(offsets, q.Offset)
	}
	if fmt.Sprint(offsets) != "[0 200]" {
		t.Errorf("page offsets = %v", offsets)
	}

	im.now = fixedNow("2025-03-12T06:00:00Z")
	if n, err := im.Import(ctx, env.user.ID); err != nil || n != 0 {
		t.Fatalf("second Import = %d, %v; want 0", n, err)
	}
	stored, err := env.repo.ListExpenses(ctx, env.user.ID, storage.ExpenseFilter{})
	if err != nil || len(stored) != 250 {
		t.Fatalf("stored %d expenses, %v; want 250", len(stored), err)
	}
}

func TestSplitwiseImporter_NotReady(t *testing.T) {
	env := newTestEnv(t)
	im := NewSplitwiseImporter(&fakeSplitwise{}, env.repo, env.expenses, time.Hour, nil)

	ready, err := im.Ready(context.Background(), env.user.ID)
	if err != nil || ready {
		t.Errorf("Ready = %v, %v; want false", ready, err)
	}
	if _, err := im.Import(context.Background(), env.user.ID); !errors.Is(err, ErrSplitwiseNotReady) {
		t.Errorf("Import error = %v, want ErrSplitwiseNotReady", err)
	}
}

func TestSplitwiseImporter_UpstreamFailureKeepsSyncTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	configureSplitwise(t, env)

	api := &fakeSplitwise{err: &splitwise.APIError{Status: 401}}
	im := NewSplitwiseImporter(api, env.repo, env.expenses, time.Hour, nil)
	if _, err := im.Import(ctx, env.user.ID); !errors.Is(err, splitwise.ErrUnauthorized) {
		t.Fatalf("Import error = %v, want ErrUnauthorized", err)
	}
	st, err := env.repo.GetSettings(ctx, env.user.ID)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if st.LastSyncTime != nil {
		t.Errorf("LastSyncTime = %v, want unset after a failed import", st.LastSyncTime)
	}
}

func TestSplitwiseProxy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := configureSplitwise(t, env)

	api := &fakeSplitwise{
		user: splitwise.User{ID: 42, FirstName: "Bob"},
		groups: []splitwise.Group{{
			ID: 9, Name: "Flat",
			Members: []splitwise.User{{ID: 42, FirstName: "Bob", RegistrationStatus: "confirmed"}, {ID: 7, FirstName: "Ann"}},
		}},
		expenses: []splitwise.Expense{owedExpense(1, "2025-03-10T19:30:00Z", "25.00"), owedExpense(2, "2025-03-10T19:30:00Z", "0")},
	}
	proxy := NewSplitwiseProxy(api, settings, nil)

	u, err := proxy.CurrentUser(ctx, env.user.ID)
	if err != nil || u.ID != 42 {
		t.Errorf("CurrentUser = %+v, %v", u, err)
	}

	groups, err := proxy.Groups(ctx, env.user.ID)
	if err != nil || len(groups) != 1 || groups[0].Name != "Flat" {
		t.Errorf("Groups = %+v, %v", groups, err)
	}

	members, err := proxy.GroupMembers(ctx, env.user.ID, 9)
	if err != nil || len(members) != 2 {
		t.Fatalf("GroupMembers = %+v, %v", members, err)
	}
	if members[0].RegistrationStatus != "" {
		t.Errorf("members should be trimmed, got %+v", members[0])
	}

	owed, err := proxy.OwedExpenses(ctx, env.user.ID, time.Time{}, 42)
	if err != nil || len(owed) != 1 || owed[0].ID != 1 {
		t.Errorf("OwedExpenses = %+v, %v", owed, err)
	}

	_, err = proxy.CreateExpense(ctx, env.user.ID, "9", map[string]any{
		"cost":        "10",
		"description": "Pizza",
		"users__0__user_id":    float64(42),
		"users__0__paid_share": "10",
		"users__0__owed_share": "3.333",
		"users__1__user_id":    float64(7),
		"users__1__paid_share": "0",
		"users__1__owed_share": "6.667",
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if len(api.created) != 1 || api.created[0]["group_id"] != int64(9) {
		t.Errorf("forwarded payload = %+v", api.created)
	}
}

func TestSplitwiseProxy_MissingKey(t *testing.T) {
	env := newTestEnv(t)
	api := &fakeSplitwise{}
	proxy := NewSplitwiseProxy(api, NewSettingsService(env.repo, nil), nil)

	if _, err := proxy.Groups(context.Background(), env.user.ID); !errors.Is(err, splitwise.ErrMissingKey) {
		t.Errorf("Groups error = %v, want ErrMissingKey", err)
	}
	if len(api.keys) != 0 {
		t.Error("upstream must not be called without a key")
	}
}
