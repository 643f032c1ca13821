package services

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"expensa/internal/amqp"
	"expensa/internal/core"
	"expensa/internal/storage"
)

func TestExpenseService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	otherCat, err := env.repo.CreateCategory(ctx, core.Category{UserID: env.user.ID, Name: "Car", Type: core.CategoryCar})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(e *core.Expense)
		wantErr error
	}{
		{name: "valid", mutate: func(e *core.Expense) {}},
		{name: "trims description", mutate: func(e *core.Expense) { e.Description = "  rent  " }},
		{name: "zero amount", mutate: func(e *core.Expense) { e.Amount.Cents = 0 }, wantErr: core.ErrInvalidAmount},
		{name: "empty description", mutate: func(e *core.Expense) { e.Description = "   " }, wantErr: core.ErrEmptyDescription},
		{name: "missing category", mutate: func(e *core.Expense) { e.CategoryID = "" }, wantErr: core.ErrMissingCategory},
		{name: "unknown category", mutate: func(e *core.Expense) { e.CategoryID = "nope" }, wantErr: storage.ErrBadReference},
		{name: "unknown subcategory", mutate: func(e *core.Expense) { e.SubcategoryID = "nope" }, wantErr: storage.ErrBadReference},
		{name: "subcategory of another category", mutate: func(e *core.Expense) { e.CategoryID = otherCat.ID }, wantErr: ErrSubcategoryMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := env.expense("rent", 90000, core.NewDate(2025, 3, 1))
			tt.mutate(&e)
			saved, err := env.expenses.Create(ctx, e)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Create error = %v, want %v", err, tt.wantErr)
				}
				if !IsValidation(err) {
					t.Errorf("IsValidation(%v) = false", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if saved.ID == "" {
				t.Error("saved expense has no ID")
			}
			if saved.Description != "rent" {
				t.Errorf("Description = %q, want %q", saved.Description, "rent")
			}
		})
	}
}

func TestExpenseService_PublishesEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved, err := env.expenses.Create(ctx, env.expense("coffee", 250, core.NewDate(2025, 3, 2)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	saved.Amount = core.Money{Cents: 300}
	if _, err := env.expenses.Update(ctx, saved); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := env.expenses.Delete(ctx, env.user.ID, saved.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []string{amqp.TypeExpenseCreated, amqp.TypeExpenseUpdated, amqp.TypeExpenseDeleted}
	if got := env.publisher.types(); !reflect.DeepEqual(got, want) {
		t.Errorf("published %v, want %v", got, want)
	}
}

func TestExpenseService_PublishFailureDoesNotFailWrite(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = amqp.ErrCircuitOpen

	if _, err := env.expenses.Create(context.Background(), env.expense("tea", 150, core.NewDate(2025, 3, 2))); err != nil {
		t.Fatalf("Create with failing publisher: %v", err)
	}
}

func TestExpenseService_NilPublisher(t *testing.T) {
	env := newTestEnv(t)
	svc := NewExpenseService(env.repo, nil, nil, nil)
	if _, err := svc.Create(context.Background(), env.expense("bread", 200, core.NewDate(2025, 3, 3))); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestExpenseService_UpdateKeepsStoredLinks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := int64(77)
	e := env.expense("dinner", 4000, core.NewDate(2025, 3, 4))
	e.SplitwiseExpenseID = &id
	saved, err := env.expenses.Create(ctx, e)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	saved.SplitwiseExpenseID = nil
	saved.Description = "team dinner"
	if _, err := env.expenses.Update(ctx, saved); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := env.expenses.Get(ctx, env.user.ID, saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SplitwiseExpenseID == nil || *got.SplitwiseExpenseID != 77 {
		t.Errorf("SplitwiseExpenseID = %v, want 77", got.SplitwiseExpenseID)
	}
	if got.Description != "team dinner" {
		t.Errorf("Description = %q", got.Description)
	}
}

func TestExpenseService_UpdateMissing(t *testing.T) {
	env := newTestEnv(t)
	e := env.expense("ghost", 100, core.NewDate(2025, 3, 1))
	e.ID = "does-not-exist"
	if _, err := env.expenses.Update(context.Background(), e); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update error = %v, want ErrNotFound", err)
	}
}

func TestExpenseService_BulkRecategorize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		saved, err := env.expenses.Create(ctx, env.expense("item", 100, core.NewDate(2025, 3, i+1)))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, saved.ID)
	}
	car, err := env.repo.CreateCategory(ctx, core.Category{UserID: env.user.ID, Name: "Car", Type: core.CategoryCar})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	if _, err := env.expenses.BulkRecategorize(ctx, env.user.ID, ids, car.ID, env.sub.ID); !errors.Is(err, ErrSubcategoryMismatch) {
		t.Fatalf("mismatched subcategory error = %v", err)
	}
	n, err := env.expenses.BulkRecategorize(ctx, env.user.ID, ids[:2], car.ID, "")
	if err != nil {
		t.Fatalf("BulkRecategorize: %v", err)
	}
	if n != 2 {
		t.Errorf("BulkRecategorize updated %d, want 2", n)
	}

	moved, err := env.expenses.List(ctx, env.user.ID, storage.ExpenseFilter{CategoryID: car.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(moved) != 2 {
		t.Errorf("expenses in new category = %d, want 2", len(moved))
	}

	deleted, err := env.expenses.BulkDelete(ctx, env.user.ID, ids)
	if err != nil || deleted != 3 {
		t.Errorf("BulkDelete = %d, %v; want 3", deleted, err)
	}
}

func TestBulkChangesPublishPerExpense(t *testing.T) {
	ctx := context.Background()
	seedTwo := func(t *testing.T, env *testEnv) []string {
		var ids []string
		for i := 0; i < 2; i++ {
			saved, err := env.expenses.Create(ctx, env.expense("item", 100, core.NewDate(2025, 3, i+1)))
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			ids = append(ids, saved.ID)
		}
		return ids
	}

	tests := []struct {
		name     string
		seed     func(t *testing.T, env *testEnv) []string
		run      func(env *testEnv, ids []string) error
		wantType string
	}{
		{
			name: "bulk delete skips unknown ids",
			seed: seedTwo,
			run: func(env *testEnv, ids []string) error {
				_, err := env.expenses.BulkDelete(ctx, env.user.ID, append(ids, "unknown"))
				return err
			},
			wantType: amqp.TypeExpenseDeleted,
		},
		{
			name: "bulk recategorize",
			seed: seedTwo,
			run: func(env *testEnv, ids []string) error {
				car, err := env.repo.CreateCategory(ctx, core.Category{UserID: env.user.ID, Name: "Car", Type: core.CategoryCar})
				if err != nil {
					return err
				}
				_, err = env.expenses.BulkRecategorize(ctx, env.user.ID, ids, car.ID, "")
				return err
			},
			wantType: amqp.TypeExpenseUpdated,
		},
		{
			name: "category cascade",
			seed: seedTwo,
			run: func(env *testEnv, _ []string) error {
				_, err := NewCategoryService(env.repo, env.expenses, env.stats, nil).Delete(ctx, env.user.ID, env.cat.ID)
				return err
			},
			wantType: amqp.TypeExpenseDeleted,
		},
		{
			name: "subcategory cascade",
			seed: seedTwo,
			run: func(env *testEnv, _ []string) error {
				return NewCategoryService(env.repo, env.expenses, env.stats, nil).DeleteSubcategory(ctx, env.user.ID, env.sub.ID)
			},
			wantType: amqp.TypeExpenseDeleted,
		},
		{
			name: "stopped series",
			seed: func(t *testing.T, env *testEnv) []string {
				written, err := newRecurring(env, "2025-06-10T08:00:00Z").
					CreateSeries(ctx, env.expense("parking", 5000, core.NewDate(2025, 1, 15)), 0)
				if err != nil {
					t.Fatalf("CreateSeries: %v", err)
				}
				var ids []string
				for _, e := range written {
					if e.Date.Month() >= 4 {
						ids = append(ids, e.ID)
					}
				}
				return ids
			},
			run: func(env *testEnv, ids []string) error {
				e, err := env.repo.GetExpense(ctx, env.user.ID, ids[0])
				if err != nil {
					return err
				}
				_, err = newRecurring(env, "2025-06-10T08:00:00Z").
					StopSeries(ctx, env.user.ID, e.Recurring.GroupID, core.Month{Year: 2025, Month: 4})
				return err
			},
			wantType: amqp.TypeExpenseDeleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			want := tt.seed(t, env)
			env.publisher.reset()

			if err := tt.run(env, want); err != nil {
				t.Fatalf("run: %v", err)
			}
			if got := env.publisher.types(); len(got) != len(want) {
				t.Errorf("published %v, want %d %s events", got, len(want), tt.wantType)
			}
			got := env.publisher.expenseIDs(tt.wantType)
			sort.Strings(got)
			sort.Strings(want)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("%s events for %v, want %v", tt.wantType, got, want)
			}
		})
	}
}
