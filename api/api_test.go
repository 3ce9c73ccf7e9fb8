package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/billbatista/obra-balance/balance"
	"github.com/billbatista/obra-balance/docstore"
	"github.com/billbatista/obra-balance/ledger"
	"github.com/billbatista/obra-balance/transactions"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// flakyStore fails the expenses stream while broken is set.
type flakyStore struct {
	*docstore.Store
	broken atomic.Bool
}

func (s *flakyStore) ListExpenses(ctx context.Context, projectID uuid.UUID) ([]ledger.Expense, error) {
	if s.broken.Load() {
		return nil, errors.New("expenses unavailable")
	}
	return s.Store.ListExpenses(ctx, projectID)
}

type testServer struct {
	*httptest.Server
	store *flakyStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := docstore.New(filepath.Join(t.TempDir(), "obra.db"))
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	flaky := &flakyStore{Store: st}
	reg := prometheus.NewRegistry()
	engine := balance.NewEngine(flaky, balance.WithMetrics(balance.NewMetrics(reg)))
	service := transactions.NewService(st, engine)

	srv := httptest.NewServer(New(st, engine, service, WithGatherer(reg)).Routes())
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: flaky}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]json.RawMessage) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		t.Fatalf("decoding %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func (s *testServer) createProject(t *testing.T) string {
	t.Helper()

	status, body := s.do(t, http.MethodPost, "/projects", map[string]string{"name": "Villa Erbil"})
	if status != http.StatusCreated {
		t.Fatalf("create project status = %d, want %d", status, http.StatusCreated)
	}
	var project ledger.Project
	if err := json.Unmarshal(body["project"], &project); err != nil {
		t.Fatal(err)
	}
	return "/projects/" + project.ID.String()
}

func decimalField(t *testing.T, raw json.RawMessage) decimal.Decimal {
	t.Helper()

	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		t.Fatalf("decoding decimal %s: %v", raw, err)
	}
	return d
}

func errorCode(t *testing.T, body map[string]json.RawMessage) string {
	t.Helper()

	var code string
	if err := json.Unmarshal(body["error"], &code); err != nil {
		t.Fatalf("decoding error code: %v", err)
	}
	return code
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(data) != "ok" {
		t.Errorf("GET /health = %d %q, want 200 \"ok\"", resp.StatusCode, data)
	}
}

func TestBalanceFlow(t *testing.T) {
	srv := newTestServer(t)
	project := srv.createProject(t)

	status, body := srv.do(t, http.MethodPost, project+"/receipts", map[string]any{"amount": 10000})
	if status != http.StatusCreated {
		t.Fatalf("add receipt status = %d, want %d", status, http.StatusCreated)
	}
	if got := decimalField(t, body["balance"]); !got.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("balance = %s, want 10000", got)
	}

	status, body = srv.do(t, http.MethodPost, project+"/expenses", map[string]any{"amount": 15000, "paymentStatus": "paid"})
	if status != http.StatusConflict {
		t.Fatalf("unaffordable expense status = %d, want %d", status, http.StatusConflict)
	}
	if code := errorCode(t, body); code != "insufficient_balance" {
		t.Errorf("error = %q, want insufficient_balance", code)
	}
	if got := decimalField(t, body["deficit"]); !got.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("deficit = %s, want 5000", got)
	}

	status, body = srv.do(t, http.MethodPost, project+"/expenses", map[string]any{"amount": 2500})
	if status != http.StatusCreated {
		t.Fatalf("unpaid expense status = %d, want %d", status, http.StatusCreated)
	}
	var expense ledger.Expense
	if err := json.Unmarshal(body["expense"], &expense); err != nil {
		t.Fatal(err)
	}

	status, body = srv.do(t, http.MethodPost, project+"/expenses/"+expense.ID.String()+"/pay", nil)
	if status != http.StatusOK {
		t.Fatalf("pay expense status = %d, want %d", status, http.StatusOK)
	}
	if got := decimalField(t, body["balance"]); !got.Equal(decimal.NewFromInt(7500)) {
		t.Errorf("balance = %s, want 7500", got)
	}

	status, body = srv.do(t, http.MethodPost, project+"/expenses/"+expense.ID.String()+"/pay", nil)
	if status != http.StatusConflict || errorCode(t, body) != "already_paid" {
		t.Errorf("second pay = %d %s, want 409 already_paid", status, body["error"])
	}

	status, body = srv.do(t, http.MethodGet, project+"/balance", nil)
	if status != http.StatusOK {
		t.Fatalf("get balance status = %d, want %d", status, http.StatusOK)
	}
	var snapshot ledger.BalanceSnapshot
	if err := json.Unmarshal(body["snapshot"], &snapshot); err != nil {
		t.Fatal(err)
	}
	if !snapshot.Balance.Equal(decimal.NewFromInt(7500)) || !snapshot.TotalExpensesPaid.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("snapshot = %+v, want balance 7500 with 2500 expenses", snapshot)
	}

	status, _ = srv.do(t, http.MethodGet, project+"/balance/reconciliation", nil)
	if status != http.StatusNotFound {
		t.Errorf("reconciliation before any run = %d, want %d", status, http.StatusNotFound)
	}

	status, body = srv.do(t, http.MethodPost, project+"/balance/reconcile", nil)
	if status != http.StatusOK {
		t.Fatalf("reconcile status = %d, want %d", status, http.StatusOK)
	}
	var rec balance.Reconciliation
	if err := json.Unmarshal(body["reconciliation"], &rec); err != nil {
		t.Fatal(err)
	}
	if !rec.Drift.IsZero() || rec.Corrected {
		t.Errorf("reconciliation = %+v, want no drift", rec)
	}

	status, _ = srv.do(t, http.MethodGet, project+"/balance/reconciliation", nil)
	if status != http.StatusOK {
		t.Errorf("last reconciliation = %d, want %d", status, http.StatusOK)
	}

	status, body = srv.do(t, http.MethodPost, project+"/balance/affordability", map[string]any{"amount": 10000})
	if status != http.StatusOK {
		t.Fatalf("affordability status = %d, want %d", status, http.StatusOK)
	}
	var result balance.Affordability
	if err := json.Unmarshal(body["affordability"], &result); err != nil {
		t.Fatal(err)
	}
	if result.OK || !result.Deficit.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("affordability = %+v, want refused with deficit 2500", result)
	}

	status, body = srv.do(t, http.MethodPost, project+"/balance/adjust", map[string]any{"delta": "-500"})
	if status != http.StatusOK {
		t.Fatalf("adjust status = %d, want %d", status, http.StatusOK)
	}
	if got := decimalField(t, body["balance"]); !got.Equal(decimal.NewFromInt(7000)) {
		t.Errorf("adjusted balance = %s, want 7000", got)
	}

	status, body = srv.do(t, http.MethodPost, project+"/balance/reconcile", nil)
	if status != http.StatusOK {
		t.Fatalf("reconcile status = %d, want %d", status, http.StatusOK)
	}
	if err := json.Unmarshal(body["reconciliation"], &rec); err != nil {
		t.Fatal(err)
	}
	if !rec.Corrected || !rec.After.Equal(decimal.NewFromInt(7500)) {
		t.Errorf("reconciliation = %+v, want corrected back to 7500", rec)
	}
}

func TestProjectResolution(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"unknown project", "/projects/" + uuid.NewString() + "/balance"},
		{"malformed id", "/projects/not-a-uuid/balance"},
		{"nil id", "/projects/" + uuid.Nil.String() + "/balance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := srv.do(t, http.MethodGet, tt.path, nil)
			if status != http.StatusNotFound {
				t.Errorf("status = %d, want %d", status, http.StatusNotFound)
			}
			if code := errorCode(t, body); code != "no_active_project" {
				t.Errorf("error = %q, want no_active_project", code)
			}
		})
	}
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	project := srv.createProject(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"zero receipt", http.MethodPost, "/receipts", map[string]any{"amount": 0}, http.StatusBadRequest, "invalid_parameter"},
		{"negative advance", http.MethodPost, "/advances", map[string]any{"amount": -5}, http.StatusBadRequest, "invalid_parameter"},
		{"bad status", http.MethodPost, "/expenses", map[string]any{"amount": 5, "paymentStatus": "pending"}, http.StatusBadRequest, "invalid_parameter"},
		{"missing contractor", http.MethodPost, "/contractor-payments", map[string]any{"amount": 5}, http.StatusBadRequest, "invalid_parameter"},
		{"unknown expense", http.MethodDelete, "/expenses/" + uuid.NewString(), nil, http.StatusNotFound, "not_found"},
		{"malformed record id", http.MethodDelete, "/receipts/abc", nil, http.StatusBadRequest, "invalid_parameter"},
		{"zero affordability", http.MethodPost, "/balance/affordability", map[string]any{"amount": 0}, http.StatusBadRequest, "invalid_parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := srv.do(t, tt.method, project+tt.path, tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if code := errorCode(t, body); code != tt.wantCode {
				t.Errorf("error = %q, want %q", code, tt.wantCode)
			}
		})
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+project+"/receipts", strings.NewReader("{"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestPartialSnapshotIsUnavailable(t *testing.T) {
	srv := newTestServer(t)
	project := srv.createProject(t)

	if status, _ := srv.do(t, http.MethodPost, project+"/receipts", map[string]any{"amount": 1000}); status != http.StatusCreated {
		t.Fatalf("add receipt status = %d", status)
	}

	srv.store.broken.Store(true)

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/balance", nil},
		{http.MethodPost, "/balance/reconcile", nil},
		{http.MethodPost, "/balance/affordability", map[string]any{"amount": 10}},
	} {
		status, body := srv.do(t, tc.method, project+tc.path, tc.body)
		if status != http.StatusServiceUnavailable {
			t.Errorf("%s %s status = %d, want %d", tc.method, tc.path, status, http.StatusServiceUnavailable)
			continue
		}
		if code := errorCode(t, body); code != "partial_snapshot" {
			t.Errorf("%s %s error = %q, want partial_snapshot", tc.method, tc.path, code)
		}
		if !strings.Contains(string(body["result"]), "expenses") {
			t.Errorf("%s %s result %s should name the failed stream", tc.method, tc.path, body["result"])
		}
	}

	srv.store.broken.Store(false)
	if status, _ := srv.do(t, http.MethodGet, project+"/balance", nil); status != http.StatusOK {
		t.Errorf("balance after recovery = %d, want %d", status, http.StatusOK)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	project := srv.createProject(t)

	if status, _ := srv.do(t, http.MethodPost, project+"/receipts", map[string]any{"amount": 1000}); status != http.StatusCreated {
		t.Fatalf("add receipt status = %d", status)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "obra_balance_adjustments_total 1") {
		t.Errorf("metrics output missing adjustment counter:\n%s", data)
	}
}

func TestContractorPayments(t *testing.T) {
	srv := newTestServer(t)
	project := srv.createProject(t)

	if status, _ := srv.do(t, http.MethodPost, project+"/receipts", map[string]any{"amount": 3000}); status != http.StatusCreated {
		t.Fatalf("add receipt status = %d", status)
	}

	status, body := srv.do(t, http.MethodPost, project+"/contractors", map[string]string{"name": "Karwan"})
	if status != http.StatusCreated {
		t.Fatalf("add contractor status = %d, want %d", status, http.StatusCreated)
	}
	var contractor ledger.Contractor
	if err := json.Unmarshal(body["contractor"], &contractor); err != nil {
		t.Fatal(err)
	}

	status, body = srv.do(t, http.MethodPost, project+"/contractor-payments", map[string]any{
		"contractorId": contractor.ID,
		"amount":       "1200",
	})
	if status != http.StatusCreated {
		t.Fatalf("add payment status = %d, want %d", status, http.StatusCreated)
	}
	if got := decimalField(t, body["balance"]); !got.Equal(decimal.NewFromInt(1800)) {
		t.Errorf("balance = %s, want 1800", got)
	}
	var payment ledger.ContractorPayment
	if err := json.Unmarshal(body["contractorPayment"], &payment); err != nil {
		t.Fatal(err)
	}

	status, _ = srv.do(t, http.MethodPost, project+"/contractor-payments", map[string]any{
		"contractorId": contractor.ID,
		"amount":       "2000",
	})
	if status != http.StatusConflict {
		t.Errorf("unaffordable payment status = %d, want %d", status, http.StatusConflict)
	}

	status, body = srv.do(t, http.MethodDelete, project+"/contractor-payments/"+payment.ID.String(), nil)
	if status != http.StatusOK {
		t.Fatalf("delete payment status = %d, want %d", status, http.StatusOK)
	}
	if got := decimalField(t, body["balance"]); !got.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("balance = %s, want 3000", got)
	}

	status, body = srv.do(t, http.MethodPost, project+"/contractors", map[string]string{"name": ""})
	if status != http.StatusBadRequest || errorCode(t, body) != "invalid_parameter" {
		t.Errorf("empty contractor name = %d %s, want 400 invalid_parameter", status, body["error"])
	}
}
