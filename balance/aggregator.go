package balance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
)

// ComputeSnapshot recomputes the project balance from all four streams. It
// never writes to the store. A stream that cannot be read contributes zero
// and marks the snapshot partial; callers must check Partial before trusting
// the balance.
func (e *Engine) ComputeSnapshot(ctx context.Context, projectID uuid.UUID) (ledger.BalanceSnapshot, error) {
	if _, err := e.activeProject(ctx, projectID); err != nil {
		return ledger.BalanceSnapshot{}, err
	}
	return e.aggregate(ctx, projectID)
}

// activeProject loads the project or reports ErrNoActiveProject.
func (e *Engine) activeProject(ctx context.Context, projectID uuid.UUID) (*ledger.Project, error) {
	if projectID == uuid.Nil {
		return nil, ledger.ErrNoActiveProject
	}

	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("reading project: %w", err)
	}
	if project == nil {
		return nil, ledger.ErrNoActiveProject
	}

	return project, nil
}

func (e *Engine) aggregate(ctx context.Context, projectID uuid.UUID) (ledger.BalanceSnapshot, error) {
	var (
		wg                 sync.WaitGroup
		receipts           []ledger.Receipt
		advances           []ledger.AdvancePayment
		contractorPayments []ledger.ContractorPayment
		expenses           []ledger.Expense
		errs               = make(map[ledger.Stream]error, len(ledger.Streams))
		errsMu             sync.Mutex
	)

	fail := func(stream ledger.Stream, err error) {
		errsMu.Lock()
		errs[stream] = err
		errsMu.Unlock()
	}

	wg.Go(func() {
		var err error
		if receipts, err = e.store.ListReceipts(ctx, projectID); err != nil {
			fail(ledger.StreamReceipts, err)
		}
	})
	wg.Go(func() {
		var err error
		if advances, err = e.store.ListAdvancePayments(ctx, projectID); err != nil {
			fail(ledger.StreamAdvancePayments, err)
		}
	})
	wg.Go(func() {
		var err error
		if contractorPayments, err = e.store.ListContractorPayments(ctx, projectID); err != nil {
			fail(ledger.StreamContractorPayments, err)
		}
	})
	wg.Go(func() {
		var err error
		if expenses, err = e.store.ListExpenses(ctx, projectID); err != nil {
			fail(ledger.StreamExpenses, err)
		}
	})
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return ledger.BalanceSnapshot{}, err
	}

	snapshot := ledger.NewSnapshot(projectID)

	for _, stream := range ledger.Streams {
		err, failed := errs[stream]
		if failed {
			e.streamFailed(projectID, &snapshot, stream, err)
			continue
		}

		switch stream {
		case ledger.StreamReceipts:
			snapshot.AddReceipts(receipts)
		case ledger.StreamAdvancePayments:
			for _, v := range snapshot.AddAdvancePayments(advances) {
				e.integrityViolated(projectID, v)
			}
		case ledger.StreamContractorPayments:
			snapshot.AddContractorPayments(contractorPayments)
		case ledger.StreamExpenses:
			snapshot.AddExpenses(expenses)
		}
	}

	snapshot.Settle(e.now())

	slog.Debug("balance snapshot computed",
		"project_id", projectID,
		"balance", snapshot.Balance,
		"partial", snapshot.Partial,
		"failed_streams", snapshot.FailedStreams,
	)

	return snapshot, nil
}

func (e *Engine) streamFailed(projectID uuid.UUID, snapshot *ledger.BalanceSnapshot, stream ledger.Stream, err error) {
	slog.Error("failed to read transaction stream", "error", err, "project_id", projectID, "stream", stream)
	e.metrics.StreamReadFailures.WithLabelValues(string(stream)).Inc()
	snapshot.MarkFailed(stream, err)
}

func (e *Engine) integrityViolated(projectID uuid.UUID, v ledger.IntegrityViolation) {
	slog.Warn("record clamped during aggregation",
		"error", ledger.ErrIntegrityViolation,
		"project_id", projectID,
		"stream", v.Stream,
		"record_id", v.RecordID,
		"field", v.Field,
		"value", v.Value,
		"limit", v.Limit,
	)
	e.metrics.IntegrityViolations.Inc()
	e.emit(projectID, EventIntegrityViolation, v)
}
