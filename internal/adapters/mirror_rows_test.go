package adapters

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"expensa/internal/core"
	"expensa/internal/log"
	"expensa/internal/storage"
)

func TestRowBuilder(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "rows.db"), log.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()

	u, err := repo.CreateUser(ctx, "dana", "tok")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	cat, err := repo.CreateCategory(ctx, core.Category{UserID: u.ID, Name: "Food", Type: core.CategoryFood})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	sub, err := repo.CreateSubcategory(ctx, core.Subcategory{UserID: u.ID, CategoryID: cat.ID, Name: "Lunch"})
	if err != nil {
		t.Fatalf("CreateSubcategory: %v", err)
	}
	e, err := repo.CreateExpense(ctx, core.Expense{
		UserID: u.ID, Amount: core.Money{Cents: 1100}, Description: "Sandwich",
		Date: core.NewDate(2025, 5, 2), CategoryID: cat.ID, SubcategoryID: sub.ID,
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	b := NewRowBuilder(repo)
	row, err := b.Row(ctx, u.ID, e.ID)
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if row.Category != "Food" || row.Subcategory != "Lunch" || row.Amount.Cents != 1100 || row.ExpenseID != e.ID {
		t.Errorf("row = %+v", row)
	}

	if _, err := b.Row(ctx, u.ID, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing expense error = %v, want ErrNotFound", err)
	}
	if _, err := b.Row(ctx, "someone-else", e.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign user error = %v, want ErrNotFound", err)
	}
}
