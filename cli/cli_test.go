package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/billbatista/obra-balance/docstore"
	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

func setupEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)

	boltPath := filepath.Join(dir, "obra.db")
	t.Setenv("STORE_DRIVER", "bolt")
	t.Setenv("BOLT_PATH", boltPath)
	for _, k := range []string{"DATABASE_URL", "PORT", "DRIFT_TOLERANCE", "CURRENCY_PLACES", "EVENT_BUFFER_SIZE", "DEBUG"} {
		t.Setenv(k, "")
	}
	return boltPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func createProject(t *testing.T, name string) uuid.UUID {
	t.Helper()

	out, err := run(t, "project", "create", "--name", name)
	if err != nil {
		t.Fatalf("project create: %v", err)
	}
	id, err := uuid.Parse(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("project create printed %q: %v", out, err)
	}
	return id
}

// seed writes records behind the engine's back, leaving the cached balance
// stale.
func seed(t *testing.T, boltPath string, projectID uuid.UUID) {
	t.Helper()

	st, err := docstore.New(boltPath)
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	receipt, err := ledger.NewReceipt(projectID, decimal.NewFromInt(5000), time.Time{}, "first installment")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SaveReceipt(ctx, receipt); err != nil {
		t.Fatalf("SaveReceipt: %v", err)
	}
	expense, err := ledger.NewExpense(projectID, decimal.NewFromInt(1000), ledger.PaymentStatusPaid, "cement", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SaveExpense(ctx, expense); err != nil {
		t.Fatalf("SaveExpense: %v", err)
	}
}

func TestProjectCommands(t *testing.T) {
	setupEnv(t)

	id := createProject(t, "Villa Erbil")

	out, err := run(t, "project", "list", "--output", "json")
	if err != nil {
		t.Fatalf("project list: %v", err)
	}
	var projects []projectReport
	if err := json.Unmarshal([]byte(out), &projects); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(projects) != 1 || projects[0].ID != id.String() || projects[0].Name != "Villa Erbil" {
		t.Errorf("projects = %+v, want the created project", projects)
	}
	if projects[0].Balance != "0" {
		t.Errorf("Balance = %q, want %q", projects[0].Balance, "0")
	}

	if _, err := run(t, "project", "create"); err == nil {
		t.Error("project create without --name should fail")
	}
}

func TestBalanceCommand(t *testing.T) {
	boltPath := setupEnv(t)
	id := createProject(t, "Villa Erbil")
	seed(t, boltPath, id)

	out, err := run(t, "balance", id.String())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !strings.Contains(out, "Balance:             4000") {
		t.Errorf("text output missing balance:\n%s", out)
	}

	out, err = run(t, "balance", id.String(), "-o", "json")
	if err != nil {
		t.Fatalf("balance json: %v", err)
	}
	var report snapshotReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if report.Balance != "4000" || report.Components.TotalExpenses != "1000" {
		t.Errorf("report = %+v, want balance 4000 with 1000 expenses", report)
	}

	if _, err := run(t, "balance", uuid.NewString()); err == nil {
		t.Error("balance of an unknown project should fail")
	}
}

func TestReconcileCommand(t *testing.T) {
	boltPath := setupEnv(t)
	id := createProject(t, "Villa Erbil")
	seed(t, boltPath, id)

	out, err := run(t, "reconcile", id.String(), "--output", "yaml")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	var reports []reconciliationReport
	if err := yaml.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	got := reports[0]
	if got.Before != "0" || got.After != "4000" || got.Drift != "-4000" || !got.Corrected {
		t.Errorf("report = %+v, want 0 -> 4000 corrected", got)
	}

	second := createProject(t, "Duhok Warehouse")

	out, err = run(t, "reconcile", "--all", "-o", "json")
	if err != nil {
		t.Fatalf("reconcile --all: %v", err)
	}
	reports = nil
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	for _, r := range reports {
		if r.Drift != "0" || r.Corrected {
			t.Errorf("report %s = %+v, want no drift", r.ProjectID, r)
		}
		if r.ProjectID == second.String() && r.After != "0" {
			t.Errorf("empty project balance = %s, want 0", r.After)
		}
	}

	out, err = run(t, "project", "list")
	if err != nil {
		t.Fatalf("project list: %v", err)
	}
	if !strings.Contains(out, "4000") {
		t.Errorf("persisted balance missing from list:\n%s", out)
	}
}

func TestArgumentErrors(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"reconcile without target", []string{"reconcile"}},
		{"reconcile with id and all", []string{"reconcile", uuid.NewString(), "--all"}},
		{"reconcile bad id", []string{"reconcile", "nope"}},
		{"balance bad id", []string{"balance", "nope"}},
		{"balance bad output", []string{"balance", uuid.NewString(), "-o", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("STORE_DRIVER", "mysql")

	if _, err := run(t, "project", "list"); err == nil {
		t.Error("unknown store driver should fail")
	}
}
