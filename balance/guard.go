package balance

import (
	"context"
	"log/slog"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Affordability struct {
	ProjectID     uuid.UUID       `json:"projectId"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	OK            bool            `json:"ok"`
	Deficit       decimal.Decimal `json:"deficit"`
	Partial       bool            `json:"partial"`
	FailedStreams []ledger.Stream `json:"failedStreams,omitempty"`
}

// CheckAffordability reports whether the project can pay amount, based on a
// fresh recompute rather than the cached balance. It reserves nothing: a
// concurrent debit committed between this check and the caller's own commit
// can still drive the balance negative.
func (e *Engine) CheckAffordability(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal) (Affordability, error) {
	if !amount.IsPositive() {
		return Affordability{}, ledger.ErrInvalidAmount
	}

	snapshot, err := e.ComputeSnapshot(ctx, projectID)
	if err != nil {
		return Affordability{}, err
	}

	result := Affordability{
		ProjectID: projectID,
		Amount:    amount,
		Balance:   snapshot.Balance,
		Deficit:   decimal.Zero,
	}

	if snapshot.Partial {
		result.Partial = true
		result.FailedStreams = snapshot.FailedStreams
		e.denied(projectID, "partial", result)
		return result, snapshot.Err()
	}

	result.OK = amount.LessThanOrEqual(snapshot.Balance)
	if !result.OK {
		result.Deficit = amount.Sub(snapshot.Balance)
		e.denied(projectID, "insufficient", result)
	}

	return result, nil
}

func (e *Engine) denied(projectID uuid.UUID, reason string, result Affordability) {
	e.metrics.GuardDenials.WithLabelValues(reason).Inc()
	slog.Info("debit refused",
		"project_id", projectID,
		"reason", reason,
		"amount", result.Amount,
		"balance", result.Balance,
		"deficit", result.Deficit,
	)
	e.emit(projectID, EventGuardDenied, result)
}
