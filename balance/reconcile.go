package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reconciliation reports one recompute of a project's balance against the
// cached value.
type Reconciliation struct {
	ProjectID     uuid.UUID                   `json:"projectId"`
	Before        decimal.Decimal             `json:"before"`
	After         decimal.Decimal             `json:"after"`
	Drift         decimal.Decimal             `json:"drift"`
	Corrected     bool                        `json:"corrected"`
	Partial       bool                        `json:"partial"`
	FailedStreams []ledger.Stream             `json:"failedStreams,omitempty"`
	Components    ledger.BalanceComponents    `json:"components"`
	Violations    []ledger.IntegrityViolation `json:"violations,omitempty"`
	CheckedAt     time.Time                   `json:"checkedAt"`
}

// Reconcile recomputes the balance from scratch and persists it, reporting
// how far the cached value had drifted. A partial recompute persists nothing
// and returns the report together with an error matching
// ErrPartialSnapshot.
func (e *Engine) Reconcile(ctx context.Context, projectID uuid.UUID) (Reconciliation, error) {
	unlock := e.locks.lock(projectID)
	defer unlock()

	project, err := e.activeProject(ctx, projectID)
	if err != nil {
		return Reconciliation{}, err
	}

	snapshot, err := e.aggregate(ctx, projectID)
	if err != nil {
		return Reconciliation{}, err
	}

	rec := Reconciliation{
		ProjectID:     projectID,
		Before:        project.CurrentBalance,
		After:         snapshot.Balance,
		Partial:       snapshot.Partial,
		FailedStreams: snapshot.FailedStreams,
		Components:    snapshot.Components(),
		Violations:    snapshot.Violations,
		CheckedAt:     snapshot.ComputedAt,
	}

	if snapshot.Partial {
		rec.After = project.CurrentBalance
		rec.Drift = decimal.Zero
		e.metrics.Reconciliations.WithLabelValues("partial").Inc()
		slog.Warn("reconciliation skipped, snapshot is partial",
			"project_id", projectID,
			"failed_streams", snapshot.FailedStreams,
		)
		e.remember(rec)
		e.emit(projectID, EventBalanceReconciled, rec)
		return rec, snapshot.Err()
	}

	if err := e.persist(ctx, projectID, snapshot); err != nil {
		e.metrics.Reconciliations.WithLabelValues("failed").Inc()
		return rec, err
	}

	e.metrics.LastReconciled.Set(float64(rec.CheckedAt.Unix()))

	rec.Drift = rec.Before.Sub(rec.After)
	rec.Corrected = rec.Drift.Abs().GreaterThan(e.tolerance)

	if rec.Corrected {
		e.metrics.DriftCorrections.Inc()
		e.metrics.Reconciliations.WithLabelValues("corrected").Inc()
		slog.Warn("balance drift corrected",
			"project_id", projectID,
			"before", rec.Before,
			"after", rec.After,
			"drift", rec.Drift,
		)
		e.emit(projectID, EventBalanceCorrected, rec)
	} else {
		e.metrics.Reconciliations.WithLabelValues("matched").Inc()
		slog.Info("balance reconciled", "project_id", projectID, "balance", rec.After, "drift", rec.Drift)
	}

	e.remember(rec)
	e.emit(projectID, EventBalanceReconciled, rec)

	return rec, nil
}

// ReconcileAll reconciles every project in the store, continuing past
// failures. The returned error joins the per-project errors.
func (e *Engine) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	projects, err := e.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	var (
		results []Reconciliation
		errs    []error
	)
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		rec, err := e.Reconcile(ctx, p.ID)
		if err != nil {
			slog.Error("failed to reconcile project", "error", err, "project_id", p.ID)
			errs = append(errs, fmt.Errorf("project %s: %w", p.ID, err))
		}
		if rec.ProjectID != uuid.Nil {
			results = append(results, rec)
		}
	}

	return results, errors.Join(errs...)
}

// LastReconciliation returns the most recent reconciliation this engine ran
// for the project.
func (e *Engine) LastReconciliation(projectID uuid.UUID) (Reconciliation, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec, ok := e.last[projectID]
	return rec, ok
}

func (e *Engine) remember(rec Reconciliation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.last[rec.ProjectID] = rec
}
