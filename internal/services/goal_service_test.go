package services

import (
	"context"
	"errors"
	"testing"

	"expensa/internal/core"
	"expensa/internal/storage"
)

func TestGoalService_Contributions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goals := NewGoalService(env.repo, nil)
	goals.now = fixedNow("2025-03-15T09:00:00Z")

	g, err := goals.Create(ctx, core.SavingsGoal{UserID: env.user.ID, Name: "  Bike ", TargetAmount: core.Money{Cents: 10000}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.Name != "Bike" {
		t.Errorf("Name = %q", g.Name)
	}

	c, updated, err := goals.Contribute(ctx, core.Contribution{UserID: env.user.ID, GoalID: g.ID, Amount: core.Money{Cents: 6000}})
	if err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	if c.Date.String() != "2025-03-15" {
		t.Errorf("default contribution date = %s", c.Date)
	}
	if updated.CurrentAmount.Cents != 6000 || updated.Completed() {
		t.Errorf("goal after first contribution = %+v", updated)
	}

	_, updated, err = goals.Contribute(ctx, core.Contribution{UserID: env.user.ID, GoalID: g.ID, Amount: core.Money{Cents: 5000}, Date: core.NewDate(2025, 3, 20)})
	if err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	if !updated.Completed() || updated.Progress() != 110 {
		t.Errorf("goal = %+v progress %v", updated, updated.Progress())
	}

	// Editing the goal must not reset the saved amount.
	edit := updated
	edit.CurrentAmount = core.Money{}
	edit.TargetAmount = core.Money{Cents: 20000}
	edited, err := goals.Update(ctx, edit)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if edited.CurrentAmount.Cents != 11000 {
		t.Errorf("CurrentAmount after Update = %d, want 11000", edited.CurrentAmount.Cents)
	}

	list, err := goals.Contributions(ctx, env.user.ID, g.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("Contributions = %d, %v", len(list), err)
	}
	after, err := goals.RemoveContribution(ctx, env.user.ID, g.ID, c.ID)
	if err != nil {
		t.Fatalf("RemoveContribution: %v", err)
	}
	if after.CurrentAmount.Cents != 5000 {
		t.Errorf("CurrentAmount after removal = %d, want 5000", after.CurrentAmount.Cents)
	}
}

func TestGoalService_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goals := NewGoalService(env.repo, nil)

	if _, err := goals.Create(ctx, core.SavingsGoal{UserID: env.user.ID, Name: "", TargetAmount: core.Money{Cents: 1}}); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("empty name error = %v", err)
	}
	if _, err := goals.Create(ctx, core.SavingsGoal{UserID: env.user.ID, Name: "Car"}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero target error = %v", err)
	}
	if _, _, err := goals.Contribute(ctx, core.Contribution{UserID: env.user.ID, GoalID: "missing", Amount: core.Money{Cents: 100}}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("contribution to missing goal error = %v", err)
	}
	if _, err := goals.Contributions(ctx, env.user.ID, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Contributions of missing goal error = %v", err)
	}
}

func TestCategoryAndBudgetServices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	categories := NewCategoryService(env.repo, env.expenses, env.stats, nil)
	budgets := NewBudgetService(env.repo, env.stats, nil)

	c, err := categories.Create(ctx, core.Category{UserID: env.user.ID, Name: "Hobbies"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Type != core.CategoryMisc {
		t.Errorf("default type = %q, want misc", c.Type)
	}
	if _, err := categories.Create(ctx, core.Category{UserID: env.user.ID, Name: "X", Type: "boats"}); !errors.Is(err, core.ErrInvalidCategoryType) {
		t.Errorf("invalid type error = %v", err)
	}

	sub, err := categories.CreateSubcategory(ctx, core.Subcategory{UserID: env.user.ID, CategoryID: c.ID, Name: "Books"})
	if err != nil {
		t.Fatalf("CreateSubcategory: %v", err)
	}
	subs, err := categories.ListSubcategories(ctx, env.user.ID, c.ID)
	if err != nil || len(subs) != 1 || subs[0].ID != sub.ID {
		t.Errorf("ListSubcategories = %+v, %v", subs, err)
	}

	march := core.Month{Year: 2025, Month: 3}
	b, err := budgets.Set(ctx, core.Budget{UserID: env.user.ID, CategoryID: c.ID, Month: march, Amount: core.Money{Cents: 3000}})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := budgets.Set(ctx, core.Budget{UserID: env.user.ID, CategoryID: c.ID, Month: march, Amount: core.Money{Cents: 4000}}); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate budget error = %v, want ErrConflict", err)
	}
	if _, err := budgets.Set(ctx, core.Budget{UserID: env.user.ID, CategoryID: "missing", Month: march, Amount: core.Money{Cents: 4000}}); !errors.Is(err, storage.ErrBadReference) {
		t.Errorf("unknown category budget error = %v", err)
	}
	b.Amount = core.Money{Cents: 3500}
	if err := budgets.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}
	list, err := budgets.List(ctx, env.user.ID, march)
	if err != nil || len(list) != 1 || list[0].Amount.Cents != 3500 {
		t.Errorf("List = %+v, %v", list, err)
	}

	if _, err := env.expenses.Create(ctx, core.Expense{
		UserID: env.user.ID, Amount: core.Money{Cents: 500}, Description: "novel",
		Date: core.NewDate(2025, 3, 3), CategoryID: c.ID, SubcategoryID: sub.ID,
	}); err != nil {
		t.Fatalf("Create expense: %v", err)
	}
	n, err := categories.Delete(ctx, env.user.ID, c.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 1 {
		t.Errorf("Delete removed %d expenses, want 1", n)
	}
	if _, err := budgets.Get(ctx, env.user.ID, b.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("budget after category delete error = %v, want ErrNotFound", err)
	}
}
