package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
)

// PersistSnapshot overwrites the cached balance, its breakdown and the
// calculation time in one write. This is the only writer of the breakdown.
// Partial snapshots are refused.
func (e *Engine) PersistSnapshot(ctx context.Context, projectID uuid.UUID, snapshot ledger.BalanceSnapshot) error {
	unlock := e.locks.lock(projectID)
	defer unlock()

	return e.persist(ctx, projectID, snapshot)
}

func (e *Engine) persist(ctx context.Context, projectID uuid.UUID, snapshot ledger.BalanceSnapshot) error {
	if projectID == uuid.Nil {
		return ledger.ErrNoActiveProject
	}
	if snapshot.Partial {
		return snapshot.Err()
	}

	at := e.now()
	err := e.store.SaveBalanceSnapshot(ctx, projectID, snapshot.Balance, snapshot.Components(), at)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.ErrNoActiveProject
		}
		e.metrics.PersistFailures.Inc()
		slog.Error("failed to persist balance snapshot", "error", err, "project_id", projectID)
		return fmt.Errorf("%w: %w", ledger.ErrPersistenceFailure, err)
	}

	e.emit(projectID, EventBalancePersisted, snapshot)

	return nil
}
