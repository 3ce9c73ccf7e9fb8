package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustBalance adds delta to the cached project balance and returns the new
// value. It is a read-modify-write: concurrent adjusters in this process are
// serialized per project, writers elsewhere may still lose an update until
// the next reconciliation.
func (e *Engine) AdjustBalance(ctx context.Context, projectID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	unlock := e.locks.lock(projectID)
	defer unlock()

	return e.adjust(ctx, projectID, delta)
}

// Apply runs commit and then adjusts the balance by the delta it returns,
// holding the project lock across both. If commit fails nothing is adjusted.
// If the adjustment fails the committed record stays and the error wraps
// ErrPersistenceFailure.
func (e *Engine) Apply(ctx context.Context, projectID uuid.UUID, commit func(ctx context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	unlock := e.locks.lock(projectID)
	defer unlock()

	project, err := e.activeProject(ctx, projectID)
	if err != nil {
		return decimal.Zero, err
	}

	delta, err := commit(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if delta.IsZero() {
		return project.CurrentBalance, nil
	}

	return e.adjust(ctx, projectID, delta)
}

func (e *Engine) adjust(ctx context.Context, projectID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	project, err := e.activeProject(ctx, projectID)
	if err != nil {
		return decimal.Zero, err
	}

	before := project.CurrentBalance
	balance := before.Add(delta)

	if err := e.store.SetCurrentBalance(ctx, projectID, balance, e.now()); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return decimal.Zero, ledger.ErrNoActiveProject
		}
		e.metrics.PersistFailures.Inc()
		slog.Error("failed to adjust balance", "error", err, "project_id", projectID, "delta", delta)
		return decimal.Zero, fmt.Errorf("%w: %w", ledger.ErrPersistenceFailure, err)
	}

	e.metrics.Adjustments.Inc()
	e.emit(projectID, EventBalanceAdjusted, adjustedData{
		ProjectID: projectID,
		Delta:     delta,
		Before:    before,
		Balance:   balance,
	})
	slog.Info("balance adjusted", "project_id", projectID, "delta", delta, "balance", balance)

	return balance, nil
}
