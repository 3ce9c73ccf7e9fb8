package balance

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventBalanceAdjusted    = "balance.adjusted"
	EventBalancePersisted   = "balance.persisted"
	EventBalanceReconciled  = "balance.reconciled"
	EventBalanceCorrected   = "balance.corrected"
	EventIntegrityViolation = "integrity.violation"
	EventGuardDenied        = "guard.denied"
)

type adjustedData struct {
	ProjectID uuid.UUID       `json:"projectId"`
	Delta     decimal.Decimal `json:"delta"`
	Before    decimal.Decimal `json:"before"`
	Balance   decimal.Decimal `json:"balance"`
}
