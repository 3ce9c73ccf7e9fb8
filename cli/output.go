package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/billbatista/obra-balance/balance"
	"github.com/billbatista/obra-balance/ledger"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q, want text, json or yaml", format)
}

// render writes v as JSON or YAML, or calls text for the plain format.
func render(w io.Writer, format string, v any, text func(io.Writer)) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(w)
		return nil
	}
}

type componentsReport struct {
	TotalReceived           string `json:"totalReceived" yaml:"total_received"`
	TotalPaid               string `json:"totalPaid" yaml:"total_paid"`
	TotalRefunded           string `json:"totalRefunded" yaml:"total_refunded"`
	TotalContractorPayments string `json:"totalContractorPayments" yaml:"total_contractor_payments"`
	TotalExpenses           string `json:"totalExpenses" yaml:"total_expenses"`
}

func newComponentsReport(c ledger.BalanceComponents) componentsReport {
	return componentsReport{
		TotalReceived:           c.TotalReceived.String(),
		TotalPaid:               c.TotalPaid.String(),
		TotalRefunded:           c.TotalRefunded.String(),
		TotalContractorPayments: c.TotalContractorPayments.String(),
		TotalExpenses:           c.TotalExpenses.String(),
	}
}

type snapshotReport struct {
	ProjectID     string           `json:"projectId" yaml:"project_id"`
	Balance       string           `json:"balance" yaml:"balance"`
	Components    componentsReport `json:"components" yaml:"components"`
	Partial       bool             `json:"partial" yaml:"partial"`
	FailedStreams []ledger.Stream  `json:"failedStreams,omitempty" yaml:"failed_streams,omitempty"`
	Violations    int              `json:"violations" yaml:"violations"`
	ComputedAt    time.Time        `json:"computedAt" yaml:"computed_at"`
}

func newSnapshotReport(s ledger.BalanceSnapshot) snapshotReport {
	return snapshotReport{
		ProjectID:     s.ProjectID.String(),
		Balance:       s.Balance.String(),
		Components:    newComponentsReport(s.Components()),
		Partial:       s.Partial,
		FailedStreams: s.FailedStreams,
		Violations:    len(s.Violations),
		ComputedAt:    s.ComputedAt,
	}
}

func (r snapshotReport) text(w io.Writer) {
	fmt.Fprintf(w, "Project:             %s\n", r.ProjectID)
	if r.Partial {
		fmt.Fprintf(w, "Balance:             unknown (failed streams: %v)\n", r.FailedStreams)
	} else {
		fmt.Fprintf(w, "Balance:             %s\n", r.Balance)
	}
	fmt.Fprintf(w, "Received:            %s\n", r.Components.TotalReceived)
	fmt.Fprintf(w, "Advances paid:       %s\n", r.Components.TotalPaid)
	fmt.Fprintf(w, "Refunded:            %s\n", r.Components.TotalRefunded)
	fmt.Fprintf(w, "Contractor payments: %s\n", r.Components.TotalContractorPayments)
	fmt.Fprintf(w, "Expenses paid:       %s\n", r.Components.TotalExpenses)
	if r.Violations > 0 {
		fmt.Fprintf(w, "Clamped records:     %d\n", r.Violations)
	}
}

type reconciliationReport struct {
	ProjectID     string           `json:"projectId" yaml:"project_id"`
	Before        string           `json:"before" yaml:"before"`
	After         string           `json:"after" yaml:"after"`
	Drift         string           `json:"drift" yaml:"drift"`
	Corrected     bool             `json:"corrected" yaml:"corrected"`
	Partial       bool             `json:"partial" yaml:"partial"`
	FailedStreams []ledger.Stream  `json:"failedStreams,omitempty" yaml:"failed_streams,omitempty"`
	Components    componentsReport `json:"components" yaml:"components"`
	CheckedAt     time.Time        `json:"checkedAt" yaml:"checked_at"`
}

func newReconciliationReport(rec balance.Reconciliation) reconciliationReport {
	return reconciliationReport{
		ProjectID:     rec.ProjectID.String(),
		Before:        rec.Before.String(),
		After:         rec.After.String(),
		Drift:         rec.Drift.String(),
		Corrected:     rec.Corrected,
		Partial:       rec.Partial,
		FailedStreams: rec.FailedStreams,
		Components:    newComponentsReport(rec.Components),
		CheckedAt:     rec.CheckedAt,
	}
}

func reconciliationText(reports []reconciliationReport) func(io.Writer) {
	return func(w io.Writer) {
		for _, r := range reports {
			status := "ok"
			switch {
			case r.Partial:
				status = fmt.Sprintf("partial, failed streams %v", r.FailedStreams)
			case r.Corrected:
				status = "corrected"
			}
			fmt.Fprintf(w, "%s  before=%s after=%s drift=%s  %s\n", r.ProjectID, r.Before, r.After, r.Drift, status)
		}
	}
}
