package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

type testEnv struct {
	server *Server
	store  *storage.SQLiteRepository
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := applog.New(applog.Config{
		Level:     slog.LevelError,
		Component: applog.ComponentHTTP,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
	authSvc := auth.NewService(repo, time.Hour)
	srv := NewServer(":0", repo, authSvc, nil, logger)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	env := &testEnv{server: srv, store: repo}

	env.do(t, http.MethodPost, "/api/auth/setup", `{"password":"hunter2"}`, "")
	resp := env.do(t, http.MethodPost, "/api/auth/login", `{"password":"hunter2"}`, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", resp.Code, resp.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	env.token = login.Token

	return env
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "127.0.0.1:54321"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) authed(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	return e.do(t, method, path, body, e.token)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	// Second setup must be rejected.
	if resp := env.do(t, http.MethodPost, "/api/auth/setup", `{"password":"other"}`, ""); resp.Code != http.StatusConflict {
		t.Fatalf("second setup: status %d", resp.Code)
	}

	if resp := env.do(t, http.MethodPost, "/api/auth/login", `{"password":"wrong"}`, ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", resp.Code)
	}

	if resp := env.authed(t, http.MethodGet, "/api/auth/check", ""); resp.Code != http.StatusNoContent {
		t.Fatalf("check with token: status %d", resp.Code)
	}

	if resp := env.do(t, http.MethodGet, "/api/auth/check", "", "bogus"); resp.Code != http.StatusUnauthorized {
		t.Fatalf("check with bad token: status %d", resp.Code)
	}

	if resp := env.do(t, http.MethodGet, "/api/categories", "", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", resp.Code)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.authed(t, http.MethodPost, "/api/categories", `{"name":"Consulting","type":"income"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", resp.Code, resp.Body.String())
	}
	var created idResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Duplicate name and type conflicts.
	if resp := env.authed(t, http.MethodPost, "/api/categories", `{"name":"Consulting","type":"income"}`); resp.Code != http.StatusConflict {
		t.Fatalf("duplicate: status %d", resp.Code)
	}

	// Bad type is a validation error.
	if resp := env.authed(t, http.MethodPost, "/api/categories", `{"name":"X","type":"weird"}`); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad type: status %d", resp.Code)
	}

	path := fmt.Sprintf("/api/categories/%d", created.ID)
	if resp := env.authed(t, http.MethodPut, path, `{"color":"#112233"}`); resp.Code != http.StatusNoContent {
		t.Fatalf("update color: status %d body %s", resp.Code, resp.Body.String())
	}

	resp = env.authed(t, http.MethodGet, "/api/categories?type=income", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list: status %d", resp.Code)
	}
	var cats []core.Category
	if err := json.Unmarshal(resp.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	found := false
	for _, c := range cats {
		if c.ID == created.ID {
			found = true
			if c.Color != "#112233" {
				t.Fatalf("color not updated: %q", c.Color)
			}
		}
		if c.Type != core.TypeIncome {
			t.Fatalf("type filter leaked %q", c.Type)
		}
	}
	if !found {
		t.Fatal("created category missing from list")
	}

	if resp := env.authed(t, http.MethodDelete, path, ""); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.Code)
	}
	resp = env.authed(t, http.MethodGet, "/api/categories?type=income", "")
	cats = nil
	_ = json.Unmarshal(resp.Body.Bytes(), &cats)
	for _, c := range cats {
		if c.ID == created.ID {
			t.Fatal("deactivated category still listed")
		}
	}

	// include_inactive surfaces it again, flagged inactive.
	resp = env.authed(t, http.MethodGet, "/api/categories?include_inactive=true", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list inactive: status %d", resp.Code)
	}
	cats = nil
	if err := json.Unmarshal(resp.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode inactive list: %v", err)
	}
	found = false
	for _, c := range cats {
		if c.ID == created.ID {
			found = true
			if c.IsActive {
				t.Fatal("deactivated category reported active")
			}
		}
	}
	if !found {
		t.Fatal("deactivated category missing from include_inactive list")
	}
}

func TestTransactionEndpoints(t *testing.T) {
	env := newTestEnv(t)

	catID := mustCategoryID(t, env, "Freelance", core.TypeIncome)

	body := fmt.Sprintf(`{"amount":1000.00,"category_id":%d,"date":"2024-01-01","description":"January salary"}`, catID)
	resp := env.authed(t, http.MethodPost, "/api/transactions", body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", resp.Code, resp.Body.String())
	}
	var created idResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Unknown category on write is a caller error.
	if resp := env.authed(t, http.MethodPost, "/api/transactions", `{"amount":5,"category_id":424242,"date":"2024-01-01"}`); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown category: status %d body %s", resp.Code, resp.Body.String())
	}

	// Zero amount is rejected before the store sees it.
	if resp := env.authed(t, http.MethodPost, "/api/transactions", fmt.Sprintf(`{"amount":0,"category_id":%d,"date":"2024-01-01"}`, catID)); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero amount: status %d", resp.Code)
	}

	path := fmt.Sprintf("/api/transactions/%d", created.ID)
	if resp := env.authed(t, http.MethodPut, path, `{"description":"Salary (net)"}`); resp.Code != http.StatusNoContent {
		t.Fatalf("update: status %d body %s", resp.Code, resp.Body.String())
	}

	resp = env.authed(t, http.MethodGet, "/api/transactions?period=custom&start_date=2024-01-01&end_date=2024-01-31", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list: status %d body %s", resp.Code, resp.Body.String())
	}
	var rows []core.ClassifiedTransaction
	if err := json.Unmarshal(resp.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Description != "Salary (net)" {
		t.Fatalf("description not updated: %q", rows[0].Description)
	}
	if rows[0].CategoryName != "Freelance" {
		t.Fatalf("classification missing: %q", rows[0].CategoryName)
	}

	// Custom period without both bounds is rejected.
	if resp := env.authed(t, http.MethodGet, "/api/transactions?period=custom&start_date=2024-01-01", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("incomplete range: status %d", resp.Code)
	}
	// Inverted bounds are rejected.
	if resp := env.authed(t, http.MethodGet, "/api/transactions?period=custom&start_date=2024-02-01&end_date=2024-01-01", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("inverted range: status %d", resp.Code)
	}

	if resp := env.authed(t, http.MethodDelete, path, ""); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.Code)
	}
	if resp := env.authed(t, http.MethodDelete, path, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("delete twice: status %d", resp.Code)
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	incomeID := mustCategoryID(t, env, "Wages", core.TypeIncome)
	expenseID := mustCategoryID(t, env, "Housing", core.TypeExpense)
	savingsID := mustCategoryID(t, env, "Vault in", core.TypeSavingsExpense)

	for _, body := range []string{
		fmt.Sprintf(`{"amount":1000.00,"category_id":%d,"date":"2024-01-01"}`, incomeID),
		fmt.Sprintf(`{"amount":400.00,"category_id":%d,"date":"2024-01-01"}`, expenseID),
		fmt.Sprintf(`{"amount":100.00,"category_id":%d,"date":"2024-01-02"}`, savingsID),
	} {
		if resp := env.authed(t, http.MethodPost, "/api/transactions", body); resp.Code != http.StatusCreated {
			t.Fatalf("seed: status %d body %s", resp.Code, resp.Body.String())
		}
	}

	req := `{"period":"custom","start_date":"2024-01-01","end_date":"2024-01-05","group_by":"category"}`
	resp := env.authed(t, http.MethodPost, "/api/analytics", req)
	if resp.Code != http.StatusOK {
		t.Fatalf("analytics: status %d body %s", resp.Code, resp.Body.String())
	}
	var result analytics.Result
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.TotalIncome.Cents != 100000 || result.TotalExpense.Cents != 40000 {
		t.Fatalf("totals: income %d expense %d", result.TotalIncome.Cents, result.TotalExpense.Cents)
	}
	if result.Balance.Cents != 60000 {
		t.Fatalf("balance: %d", result.Balance.Cents)
	}
	if result.SavingsBalance.Cents != 10000 {
		t.Fatalf("savings balance: %d", result.SavingsBalance.Cents)
	}
	if len(result.DailyTotals) != 5 {
		t.Fatalf("daily buckets: %d, want 5", len(result.DailyTotals))
	}
	// Savings stay out of the breakdown unless asked for.
	for _, row := range result.ByCategory {
		if row.CategoryType.IsSavings() {
			t.Fatalf("savings category %q in default breakdown", row.CategoryName)
		}
	}

	// Identical request is served from cache with the same payload.
	again := env.authed(t, http.MethodPost, "/api/analytics", req)
	if again.Code != http.StatusOK {
		t.Fatalf("cached analytics: status %d", again.Code)
	}
	var cached analytics.Result
	if err := json.Unmarshal(again.Body.Bytes(), &cached); err != nil {
		t.Fatalf("decode cached: %v", err)
	}
	if cached.Balance.Cents != result.Balance.Cents || len(cached.ByCategory) != len(result.ByCategory) {
		t.Fatal("cached result differs")
	}

	// A write invalidates the cache.
	body := fmt.Sprintf(`{"amount":50.00,"category_id":%d,"date":"2024-01-03"}`, expenseID)
	if resp := env.authed(t, http.MethodPost, "/api/transactions", body); resp.Code != http.StatusCreated {
		t.Fatalf("post-cache write: status %d", resp.Code)
	}
	fresh := env.authed(t, http.MethodPost, "/api/analytics", req)
	var refreshed analytics.Result
	if err := json.Unmarshal(fresh.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("decode refreshed: %v", err)
	}
	if refreshed.TotalExpense.Cents != 45000 {
		t.Fatalf("stale expense total after write: %d", refreshed.TotalExpense.Cents)
	}

	savingsReq := `{"period":"custom","start_date":"2024-01-01","end_date":"2024-01-05","group_by":"category"}`
	resp = env.authed(t, http.MethodPost, "/api/analytics/savings", savingsReq)
	if resp.Code != http.StatusOK {
		t.Fatalf("savings analytics: status %d body %s", resp.Code, resp.Body.String())
	}
	var savings analytics.SavingsResult
	if err := json.Unmarshal(resp.Body.Bytes(), &savings); err != nil {
		t.Fatalf("decode savings: %v", err)
	}
	if savings.SavingsExpense.Cents != 10000 || savings.SavingsBalance.Cents != 10000 {
		t.Fatalf("savings totals: expense %d balance %d", savings.SavingsExpense.Cents, savings.SavingsBalance.Cents)
	}
	if len(savings.ByCategory) != 1 || savings.ByCategory[0].CategoryName != "Vault in" {
		t.Fatalf("savings breakdown: %+v", savings.ByCategory)
	}

	// Custom period missing a bound is a bad request.
	if resp := env.authed(t, http.MethodPost, "/api/analytics", `{"period":"custom","start_date":"2024-01-01"}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("incomplete range: status %d", resp.Code)
	}
}

func TestAnalyticsAfterCategoryDeletion(t *testing.T) {
	env := newTestEnv(t)

	catID := mustCategoryID(t, env, "Subscriptions", core.TypeExpense)
	body := fmt.Sprintf(`{"amount":15.00,"category_id":%d,"date":"2024-05-05"}`, catID)
	if resp := env.authed(t, http.MethodPost, "/api/transactions", body); resp.Code != http.StatusCreated {
		t.Fatalf("seed: status %d body %s", resp.Code, resp.Body.String())
	}

	path := fmt.Sprintf("/api/categories/%d", catID)
	if resp := env.authed(t, http.MethodDelete, path, ""); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.Code)
	}

	// Historical windows must still report the deleted category's rows.
	req := `{"period":"custom","start_date":"2024-05-01","end_date":"2024-05-31","group_by":"category"}`
	resp := env.authed(t, http.MethodPost, "/api/analytics", req)
	if resp.Code != http.StatusOK {
		t.Fatalf("analytics after delete: status %d body %s", resp.Code, resp.Body.String())
	}
	var result analytics.Result
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.TotalExpense.Cents != 1500 {
		t.Fatalf("expense = %d, want 1500", result.TotalExpense.Cents)
	}
	found := false
	for _, row := range result.ByCategory {
		if row.CategoryID == catID && row.CategoryName == "Subscriptions" {
			found = true
		}
	}
	if !found {
		t.Fatalf("deleted category missing from breakdown: %+v", result.ByCategory)
	}

	// The listing endpoint also keeps classifying those rows.
	list := env.authed(t, http.MethodGet, "/api/transactions?period=custom&start_date=2024-05-01&end_date=2024-05-31", "")
	if list.Code != http.StatusOK {
		t.Fatalf("list after delete: status %d body %s", list.Code, list.Body.String())
	}
}

func TestPeriodsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.authed(t, http.MethodGet, "/api/periods", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	var periods []string
	if err := json.Unmarshal(resp.Body.Bytes(), &periods); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(periods) != len(analytics.Periods()) {
		t.Fatalf("got %d periods", len(periods))
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	if resp := env.do(t, http.MethodGet, "/healthz", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", resp.Code)
	}
	if resp := env.do(t, http.MethodGet, "/readyz", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("readyz: status %d body %s", resp.Code, resp.Body.String())
	}
}

func mustCategoryID(t *testing.T, env *testEnv, name string, typ core.CategoryType) int64 {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"type":%q}`, name, string(typ))
	resp := env.authed(t, http.MethodPost, "/api/categories", body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create category %s: status %d body %s", name, resp.Code, resp.Body.String())
	}
	var created idResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return created.ID
}
