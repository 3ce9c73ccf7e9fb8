package transactions

import (
	"context"
	"time"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventAdvanceCreated  = "advance.created"
	EventAdvanceRefunded = "advance.refunded"
	EventAdvanceDeleted  = "advance.deleted"
)

type AdvanceInput struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Recipient   string          `json:"recipient"`
	Description string          `json:"description"`
}

// AddAdvancePayment records money advanced out of the project, to be
// refunded in part or in full later.
func (s *Service) AddAdvancePayment(ctx context.Context, projectID uuid.UUID, in AdvanceInput) (ledger.AdvancePayment, decimal.Decimal, error) {
	advance, err := ledger.NewAdvancePayment(projectID, s.round(in.Amount), in.Date, in.Recipient, in.Description)
	if err != nil {
		return ledger.AdvancePayment{}, decimal.Zero, err
	}

	newBalance, err := s.apply(ctx, projectID, "adding advance payment", func(ctx context.Context) (decimal.Decimal, error) {
		if err := s.store.SaveAdvancePayment(ctx, advance); err != nil {
			return decimal.Zero, err
		}
		return advance.Contribution(), nil
	})
	if err != nil {
		return advance, decimal.Zero, err
	}

	s.record(projectID, EventAdvanceCreated, advance.ID, advance.Contribution())
	return advance, newBalance, nil
}

// RefundAdvance records money returned against an advance. The refunded
// total can never exceed the advance.
func (s *Service) RefundAdvance(ctx context.Context, projectID, advanceID uuid.UUID, amount decimal.Decimal) (ledger.AdvancePayment, decimal.Decimal, error) {
	amount = s.round(amount)
	if !amount.IsPositive() {
		return ledger.AdvancePayment{}, decimal.Zero, ledger.ErrInvalidAmount
	}

	var advance ledger.AdvancePayment
	newBalance, err := s.apply(ctx, projectID, "refunding advance", func(ctx context.Context) (decimal.Decimal, error) {
		stored, err := s.store.GetAdvancePayment(ctx, projectID, advanceID)
		if err != nil {
			return decimal.Zero, err
		}
		if stored == nil {
			return decimal.Zero, ledger.ErrNotFound
		}

		advance = *stored
		if err := advance.Refund(amount, s.now()); err != nil {
			return decimal.Zero, err
		}
		if err := s.store.SaveAdvancePayment(ctx, advance); err != nil {
			return decimal.Zero, err
		}
		return amount, nil
	})
	if err != nil {
		return advance, decimal.Zero, err
	}

	s.record(projectID, EventAdvanceRefunded, advance.ID, amount)
	return advance, newBalance, nil
}

// DeleteAdvancePayment removes an advance, returning its outstanding
// principal to the balance.
func (s *Service) DeleteAdvancePayment(ctx context.Context, projectID, advanceID uuid.UUID) (decimal.Decimal, error) {
	var delta decimal.Decimal
	newBalance, err := s.apply(ctx, projectID, "deleting advance payment", func(ctx context.Context) (decimal.Decimal, error) {
		stored, err := s.store.GetAdvancePayment(ctx, projectID, advanceID)
		if err != nil {
			return decimal.Zero, err
		}
		if stored == nil {
			return decimal.Zero, ledger.ErrNotFound
		}

		if err := s.store.DeleteAdvancePayment(ctx, projectID, advanceID); err != nil {
			return decimal.Zero, err
		}
		delta = stored.Contribution().Neg()
		return delta, nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.record(projectID, EventAdvanceDeleted, advanceID, delta)
	return newBalance, nil
}
