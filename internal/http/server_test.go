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
	"testing"
	"time"

	"persacc/internal/closing"
	"persacc/internal/core"
	"persacc/internal/forecast"
	"persacc/internal/kpi"
	"persacc/internal/ledger"
	applog "persacc/internal/log"
	"persacc/internal/periods"
	"persacc/internal/storage"
)

type fixture struct {
	ts    *httptest.Server
	repo  *storage.Repository
	catID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.Open(t.TempDir() + "/ledger.db")
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	reg := periods.NewRegistry(repo)
	if _, err := reg.Bootstrap(ctx, core.PeriodKey{Year: 2025, Month: time.March}, core.Money{Cents: 124_500}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	catID, err := repo.Queries().InsertCategory(ctx, core.Category{
		Name: "Groceries", Movement: core.Expense, Active: true,
	})
	if err != nil {
		t.Fatalf("insert category: %v", err)
	}

	logger := applog.New(applog.Config{
		Level:   slog.LevelError,
		Handler: slog.NewTextHandler(io.Discard, nil),
	})
	kpiSvc := kpi.NewService(repo)
	ledgerSvc := ledger.NewService(repo, kpiSvc)
	engine := closing.NewEngine(repo, "", nil, kpiSvc)
	srv := NewServer(ledgerSvc, reg, kpiSvc, engine, forecast.LeastSquares{}, repo, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, repo: repo, catID: catID}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, decoded
}

func (f *fixture) doList(t *testing.T, path string) (int, []map[string]any) {
	t.Helper()
	resp, err := f.ts.Client().Get(f.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var decoded []map[string]any
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode, decoded
}

func asInt(t *testing.T, m map[string]any, key string) int64 {
	t.Helper()
	v, ok := m[key].(float64)
	if !ok {
		t.Fatalf("field %q missing or not a number in %v", key, m)
	}
	return int64(v)
}

func TestTransactionLifecycle(t *testing.T) {
	f := newFixture(t)

	status, created := f.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"real_date":   "2025-03-12",
		"movement":    "expense",
		"category_id": f.catID,
		"concept":     "weekly shop",
		"amount":      "45.00",
		"relevance":   "NE",
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, body %v", status, created)
	}
	if got := asInt(t, created, "amount_cents"); got != -4_500 {
		t.Errorf("amount_cents = %d, want -4500", got)
	}
	if created["period"] != "2025-03" {
		t.Errorf("period = %v, want 2025-03", created["period"])
	}
	id := asInt(t, created, "id")

	status, list := f.doList(t, "/api/transactions?period=2025-03")
	if status != http.StatusOK || len(list) != 1 {
		t.Fatalf("list status = %d, entries = %d", status, len(list))
	}

	status, updated := f.do(t, http.MethodPatch, fmt.Sprintf("/api/transactions/%d", id), map[string]any{
		"amount": "50.00",
	})
	if status != http.StatusOK {
		t.Fatalf("update status = %d, body %v", status, updated)
	}
	if got := asInt(t, updated, "amount_cents"); got != -5_000 {
		t.Errorf("updated amount_cents = %d, want -5000", got)
	}

	status, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", id), nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete status = %d", status)
	}
	status, body := f.do(t, http.MethodGet, fmt.Sprintf("/api/transactions/%d", id), nil)
	if status != http.StatusNotFound {
		t.Fatalf("get after delete = %d, body %v", status, body)
	}
}

func TestValidationAndNotFoundMapping(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"real_date":   "2025-03-12",
		"movement":    "sideways",
		"category_id": f.catID,
		"concept":     "weekly shop",
		"amount":      "45.00",
	})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("bad movement status = %d, body %v", status, body)
	}

	status, body = f.do(t, http.MethodGet, "/api/transactions/9999", nil)
	if status != http.StatusNotFound || body["code"] != "not_found" {
		t.Errorf("missing transaction: status = %d, code = %v", status, body["code"])
	}

	status, body = f.do(t, http.MethodGet, "/api/closing/draft/not-a-uuid", nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad draft id status = %d, body %v", status, body)
	}

	status, body = f.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"real_date": "2025-03-12",
		"movement":  "expense",
		"amount":    "45.00",
		"concept":   "shop",
		"surprise":  true,
	})
	if status != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, body %v", status, body)
	}
}

func TestClosingWorkflowOverAPI(t *testing.T) {
	f := newFixture(t)

	status, draft := f.do(t, http.MethodPost, "/api/closing/draft", nil)
	if status != http.StatusCreated {
		t.Fatalf("new draft status = %d, body %v", status, draft)
	}
	if draft["target"] != "2025-03" || draft["state"] != "DRAFT" {
		t.Fatalf("draft = %v", draft)
	}
	id := draft["id"].(string)

	surplus, salary := int64(5_000), int64(2_000)
	status, body := f.do(t, http.MethodPut, "/api/closing/draft/"+id, map[string]any{
		"captured":       "1245.00",
		"new_salary":     "2500.00",
		"surplus_pct_bp": surplus,
		"salary_pct_bp":  salary,
	})
	if status != http.StatusOK {
		t.Fatalf("set inputs status = %d, body %v", status, body)
	}

	status, body = f.do(t, http.MethodPost, "/api/closing/draft/"+id+"/validate", nil)
	if status != http.StatusOK || body["state"] != "VALIDATED" {
		t.Fatalf("validate status = %d, body %v", status, body)
	}
	preview, ok := body["preview"].(map[string]any)
	if !ok {
		t.Fatalf("validated draft has no preview: %v", body)
	}
	if got := asInt(t, preview, "closing_balance_cents"); got != 262_250 {
		t.Errorf("preview closing balance = %d, want 262250", got)
	}

	status, snap := f.do(t, http.MethodPost, "/api/closing/draft/"+id+"/commit", nil)
	if status != http.StatusOK {
		t.Fatalf("commit status = %d, body %v", status, snap)
	}
	if got := asInt(t, snap, "closing_balance_cents"); got != 262_250 {
		t.Errorf("snapshot closing balance = %d, want 262250", got)
	}
	if got := asInt(t, snap, "surplus_retained_cents"); got != 62_250 {
		t.Errorf("surplus retained = %d, want 62250", got)
	}

	status, period := f.do(t, http.MethodGet, "/api/periods/2025-03", nil)
	if status != http.StatusOK || period["state"] != "CLOSED" {
		t.Fatalf("closed period: status = %d, body %v", status, period)
	}
	status, current := f.do(t, http.MethodGet, "/api/periods/open", nil)
	if status != http.StatusOK || current["period"] != "2025-04" {
		t.Fatalf("current period: status = %d, body %v", status, current)
	}
	if got := asInt(t, current, "opening_balance_cents"); got != 262_250 {
		t.Errorf("successor opening = %d, want 262250", got)
	}

	// A second commit of the same draft is a conflict, not a repeat closing.
	status, body = f.do(t, http.MethodPost, "/api/closing/draft/"+id+"/commit", nil)
	if status != http.StatusConflict || body["code"] != "already_closed" {
		t.Errorf("double commit: status = %d, code = %v", status, body["code"])
	}
}

func TestWriteIntoClosedPeriodIsConflict(t *testing.T) {
	f := newFixture(t)

	_, draft := f.do(t, http.MethodPost, "/api/closing/draft", nil)
	id := draft["id"].(string)
	f.do(t, http.MethodPut, "/api/closing/draft/"+id, map[string]any{
		"captured": "1245.00", "new_salary": "2500.00",
	})
	f.do(t, http.MethodPost, "/api/closing/draft/"+id+"/validate", nil)
	if status, body := f.do(t, http.MethodPost, "/api/closing/draft/"+id+"/commit", nil); status != http.StatusOK {
		t.Fatalf("commit status = %d, body %v", status, body)
	}

	status, body := f.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"real_date":   "2025-03-20",
		"movement":    "expense",
		"category_id": f.catID,
		"concept":     "late receipt",
		"amount":      "10.00",
		"relevance":   "NE",
	})
	if status != http.StatusConflict || body["code"] != "period_closed" {
		t.Errorf("closed period write: status = %d, code = %v", status, body["code"])
	}
}

func TestPeriodSummaryEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"real_date":   "2025-03-05",
		"movement":    "expense",
		"category_id": f.catID,
		"concept":     "weekly shop",
		"amount":      "60.00",
		"relevance":   "NE",
	})

	status, body := f.do(t, http.MethodGet, "/api/kpi/2025-03", nil)
	if status != http.StatusOK {
		t.Fatalf("summary status = %d, body %v", status, body)
	}
	if got := asInt(t, body, "total_expense_cents"); got != 6_000 {
		t.Errorf("total expense = %d, want 6000", got)
	}
	if got := asInt(t, body, "liquid_balance_cents"); got != 118_500 {
		t.Errorf("liquid balance = %d, want 118500", got)
	}

	status, body = f.do(t, http.MethodGet, "/api/kpi/2030-01", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown period summary status = %d, body %v", status, body)
	}
}

func TestConfigUnavailableIsServiceError(t *testing.T) {
	f := newFixture(t)

	// An engine pointed at a missing config file cannot open drafts.
	kpiSvc := kpi.NewService(f.repo)
	broken := closing.NewEngine(f.repo, t.TempDir()+"/missing.toml", nil)
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	srv := NewServer(ledger.NewService(f.repo), periods.NewRegistry(f.repo), kpiSvc, broken, forecast.LeastSquares{}, f.repo, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/api/closing/draft", "application/json", nil)
	if err != nil {
		t.Fatalf("post draft: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("draft with missing config status = %d, want 503", resp.StatusCode)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/healthz", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz: status = %d, body %v", status, body)
	}

	resp, err := f.ts.Client().Get(f.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}
