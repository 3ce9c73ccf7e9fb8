package transactions

import (
	"context"
	"time"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventReceiptCreated = "receipt.created"
	EventReceiptUpdated = "receipt.updated"
	EventReceiptDeleted = "receipt.deleted"
)

type ReceiptInput struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
}

// AddReceipt records money received by the project.
func (s *Service) AddReceipt(ctx context.Context, projectID uuid.UUID, in ReceiptInput) (ledger.Receipt, decimal.Decimal, error) {
	receipt, err := ledger.NewReceipt(projectID, s.round(in.Amount), in.Date, in.Description)
	if err != nil {
		return ledger.Receipt{}, decimal.Zero, err
	}

	newBalance, err := s.apply(ctx, projectID, "adding receipt", func(ctx context.Context) (decimal.Decimal, error) {
		if err := s.store.SaveReceipt(ctx, receipt); err != nil {
			return decimal.Zero, err
		}
		return receipt.Contribution(), nil
	})
	if err != nil {
		return receipt, decimal.Zero, err
	}

	s.record(projectID, EventReceiptCreated, receipt.ID, receipt.Contribution())
	return receipt, newBalance, nil
}

// UpdateReceiptAmount changes the amount of a receipt and adjusts the
// balance by the difference.
func (s *Service) UpdateReceiptAmount(ctx context.Context, projectID, receiptID uuid.UUID, amount decimal.Decimal) (ledger.Receipt, decimal.Decimal, error) {
	amount = s.round(amount)
	if !amount.IsPositive() {
		return ledger.Receipt{}, decimal.Zero, ledger.ErrInvalidAmount
	}

	var receipt ledger.Receipt
	var delta decimal.Decimal
	newBalance, err := s.apply(ctx, projectID, "updating receipt", func(ctx context.Context) (decimal.Decimal, error) {
		stored, err := s.store.GetReceipt(ctx, projectID, receiptID)
		if err != nil {
			return decimal.Zero, err
		}
		if stored == nil {
			return decimal.Zero, ledger.ErrNotFound
		}

		receipt = *stored
		delta = amount.Sub(receipt.Amount)
		receipt.Amount = amount
		receipt.UpdatedAt = s.now()
		if err := s.store.SaveReceipt(ctx, receipt); err != nil {
			return decimal.Zero, err
		}
		return delta, nil
	})
	if err != nil {
		return receipt, decimal.Zero, err
	}

	s.record(projectID, EventReceiptUpdated, receipt.ID, delta)
	return receipt, newBalance, nil
}

func (s *Service) DeleteReceipt(ctx context.Context, projectID, receiptID uuid.UUID) (decimal.Decimal, error) {
	var delta decimal.Decimal
	newBalance, err := s.apply(ctx, projectID, "deleting receipt", func(ctx context.Context) (decimal.Decimal, error) {
		stored, err := s.store.GetReceipt(ctx, projectID, receiptID)
		if err != nil {
			return decimal.Zero, err
		}
		if stored == nil {
			return decimal.Zero, ledger.ErrNotFound
		}

		if err := s.store.DeleteReceipt(ctx, projectID, receiptID); err != nil {
			return decimal.Zero, err
		}
		delta = stored.Contribution().Neg()
		return delta, nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.record(projectID, EventReceiptDeleted, receiptID, delta)
	return newBalance, nil
}
