package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsSeedDefaultCategories(t *testing.T) {
	repo := testRepo(t)

	cats, err := repo.ListCategories(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) == 0 {
		t.Fatal("expected seeded categories")
	}

	var savings int
	for _, c := range cats {
		if !c.Type.Valid() {
			t.Fatalf("seeded category with invalid type: %+v", c)
		}
		if c.Type.IsSavings() {
			savings++
		}
	}
	if savings == 0 {
		t.Fatal("expected seeded savings categories")
	}
}

func TestCategoryLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	id, err := repo.CreateCategory(ctx, core.Category{Name: "Books", Type: core.TypeExpense})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetCategory(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Books" || got.Type != core.TypeExpense || !got.IsActive {
		t.Fatalf("got %+v", got)
	}
	if got.Color != core.DefaultCategoryColor {
		t.Fatalf("default color not applied: %q", got.Color)
	}

	// Same name with a different type is a different category.
	if _, err := repo.CreateCategory(ctx, core.Category{Name: "Books", Type: core.TypeIncome}); err != nil {
		t.Fatalf("same name, different type: %v", err)
	}
	if _, err := repo.CreateCategory(ctx, core.Category{Name: "Books", Type: core.TypeExpense}); !errors.Is(err, ErrDuplicateCategory) {
		t.Fatalf("duplicate: got %v", err)
	}

	if err := repo.UpdateCategoryColor(ctx, id, "#123456"); err != nil {
		t.Fatalf("update color: %v", err)
	}
	got, _ = repo.GetCategory(ctx, id)
	if got.Color != "#123456" {
		t.Fatalf("color = %q", got.Color)
	}

	if err := repo.DeactivateCategory(ctx, id); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	cats, _ := repo.ListCategories(ctx, core.TypeExpense)
	for _, c := range cats {
		if c.ID == id {
			t.Fatal("deactivated category still listed")
		}
	}

	if err := repo.UpdateCategoryColor(ctx, 9999, "#fff"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: got %v", err)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	catID, err := repo.CreateCategory(ctx, core.Category{Name: "Freelance", Type: core.TypeIncome})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	id, err := repo.CreateTransaction(ctx, core.Transaction{
		CategoryID:  catID,
		Amount:      core.Money{Cents: 12345},
		Date:        core.NewDate(2024, 1, 15),
		Description: "invoice #1",
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	got, err := repo.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 12345 || got.CategoryName != "Freelance" || got.CategoryType != core.TypeIncome {
		t.Fatalf("got %+v", got)
	}
	if !got.Date.Equal(core.NewDate(2024, 1, 15)) {
		t.Fatalf("date = %s", got.Date)
	}

	newAmount := core.Money{Cents: 20000}
	if err := repo.UpdateTransaction(ctx, id, TransactionUpdate{Amount: &newAmount}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.GetTransaction(ctx, id)
	if got.Amount.Cents != 20000 {
		t.Fatalf("amount after update = %d", got.Amount.Cents)
	}
	if got.Description != "invoice #1" {
		t.Fatalf("partial update touched description: %q", got.Description)
	}

	if err := repo.DeleteTransaction(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete: got %v", err)
	}
}

func TestCreateTransactionUnknownCategory(t *testing.T) {
	repo := testRepo(t)

	_, err := repo.CreateTransaction(context.Background(), core.Transaction{
		CategoryID: 424242,
		Amount:     core.Money{Cents: 100},
		Date:       core.NewDate(2024, 1, 1),
	})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("got %v, want ErrUnknownCategory", err)
	}
}

func TestListTransactionsRangeAndSavingsFilter(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	incomeID, _ := repo.CreateCategory(ctx, core.Category{Name: "Wages", Type: core.TypeIncome})
	savingsID, _ := repo.CreateCategory(ctx, core.Category{Name: "Vault", Type: core.TypeSavingsExpense})

	mustCreate := func(catID int64, cents int64, date core.Date) {
		t.Helper()
		if _, err := repo.CreateTransaction(ctx, core.Transaction{
			CategoryID: catID, Amount: core.Money{Cents: cents}, Date: date,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	mustCreate(incomeID, 1000, core.NewDate(2024, 1, 5))
	mustCreate(savingsID, 500, core.NewDate(2024, 1, 6))
	mustCreate(incomeID, 2000, core.NewDate(2024, 2, 1)) // outside range

	all, err := repo.ListTransactions(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31), true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	// Newest first.
	if !all[0].Date.After(all[1].Date) {
		t.Fatalf("order: %s then %s", all[0].Date, all[1].Date)
	}

	primary, err := repo.ListTransactions(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31), false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(primary) != 1 || primary[0].CategoryType != core.TypeIncome {
		t.Fatalf("savings filter: %+v", primary)
	}

	// The analytics source sees plain transactions.
	rng := analytics.Range{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)}
	txs, err := repo.TransactionsInRange(ctx, rng, true)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("source len = %d", len(txs))
	}
}

func TestReportSurvivesCategoryDeactivation(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	catID, err := repo.CreateCategory(ctx, core.Category{Name: "Gadgets", Type: core.TypeExpense})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := repo.CreateTransaction(ctx, core.Transaction{
		CategoryID: catID, Amount: core.Money{Cents: 2500}, Date: core.NewDate(2024, 3, 10),
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if err := repo.DeactivateCategory(ctx, catID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// The listing hides the deactivated category.
	cats, err := repo.ListCategories(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, c := range cats {
		if c.ID == catID {
			t.Fatalf("deactivated category still listed: %+v", c)
		}
	}

	// The analytics source must still resolve its transactions.
	all, err := repo.AllCategories(ctx)
	if err != nil {
		t.Fatalf("all categories: %v", err)
	}
	found := false
	for _, c := range all {
		if c.ID == catID {
			if c.IsActive {
				t.Fatalf("category %d should be inactive", catID)
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("category %d missing from full set", catID)
	}

	svc := analytics.NewService(repo, repo)
	result, err := svc.Report(ctx, analytics.Request{
		Period:    analytics.PeriodCustom,
		StartDate: core.NewDate(2024, 3, 10),
		EndDate:   core.NewDate(2024, 3, 10),
	})
	if err != nil {
		t.Fatalf("report after deactivation: %v", err)
	}
	if result.TotalExpense.Cents != 2500 {
		t.Fatalf("expense = %d, want 2500", result.TotalExpense.Cents)
	}
	found = false
	for _, ct := range result.ByCategory {
		if ct.CategoryID == catID {
			found = true
		}
	}
	if !found {
		t.Fatalf("deactivated category missing from breakdown: %+v", result.ByCategory)
	}
}

func TestListTransactionsCarriesCreatedAt(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	catID, _ := repo.CreateCategory(ctx, core.Category{Name: "Wages", Type: core.TypeIncome})
	id, err := repo.CreateTransaction(ctx, core.Transaction{
		CategoryID: catID, Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 1, 5),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	listed, err := repo.ListTransactions(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31), true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].CreatedAt.IsZero() {
		t.Fatalf("listed row has zero created_at: %+v", listed)
	}

	got, err := repo.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("fetched row has zero created_at: %+v", got)
	}
}

func TestCredentialAndTokens(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if _, err := repo.GetPasswordHash(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("fresh store: got %v", err)
	}

	if err := repo.SetPasswordHash(ctx, "hash-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.SetPasswordHash(ctx, "hash-2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	hash, err := repo.GetPasswordHash(ctx)
	if err != nil || hash != "hash-2" {
		t.Fatalf("get = %q, %v", hash, err)
	}

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := repo.SaveToken(ctx, "tok-1", expiry); err != nil {
		t.Fatalf("save token: %v", err)
	}
	got, err := repo.TokenExpiry(ctx, "tok-1")
	if err != nil {
		t.Fatalf("expiry: %v", err)
	}
	if !got.Equal(expiry) {
		t.Fatalf("expiry = %v, want %v", got, expiry)
	}
	if _, err := repo.TokenExpiry(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token: got %v", err)
	}

	if err := repo.SaveToken(ctx, "tok-old", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.DeleteExpiredTokens(ctx, time.Now()); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := repo.TokenExpiry(ctx, "tok-old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired token survived purge: %v", err)
	}
	if _, err := repo.TokenExpiry(ctx, "tok-1"); err != nil {
		t.Fatalf("valid token purged: %v", err)
	}
}
