package transactions

import (
	"fmt"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/shopspring/decimal"
)

// InsufficientBalanceError is returned when a debit exceeds the freshly
// computed project balance.
type InsufficientBalanceError struct {
	Amount  decimal.Decimal
	Balance decimal.Decimal
	Deficit decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient project balance: amount %s, balance %s, deficit %s", e.Amount, e.Balance, e.Deficit)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ledger.ErrInsufficientBalance
}
