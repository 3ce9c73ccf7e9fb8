package transactions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventContractorCreated        = "contractor.created"
	EventContractorPaymentCreated = "contractor_payment.created"
	EventContractorPaymentDeleted = "contractor_payment.deleted"
)

type ContractorPaymentInput struct {
	ContractorID uuid.UUID       `json:"contractorId"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  time.Time       `json:"paymentDate"`
	Method       string          `json:"method"`
	Type         string          `json:"type"`
	Description  string          `json:"description"`
}

// AddContractor registers a contractor on the project. Registration does not
// move the balance.
func (s *Service) AddContractor(ctx context.Context, projectID uuid.UUID, name string) (ledger.Contractor, error) {
	contractor, err := ledger.NewContractor(projectID, name)
	if err != nil {
		return ledger.Contractor{}, err
	}
	if err := s.store.SaveContractor(ctx, contractor); err != nil {
		return contractor, fmt.Errorf("adding contractor: %w", err)
	}

	s.record(projectID, EventContractorCreated, contractor.ID, decimal.Zero)
	return contractor, nil
}

// AddContractorPayment pays a contractor from the project balance and
// credits the contractor's paid total. The payment is refused when the
// project cannot cover it.
func (s *Service) AddContractorPayment(ctx context.Context, projectID uuid.UUID, in ContractorPaymentInput) (ledger.ContractorPayment, decimal.Decimal, error) {
	payment, err := ledger.NewContractorPayment(projectID, in.ContractorID, s.round(in.Amount), in.PaymentDate)
	if err != nil {
		return ledger.ContractorPayment{}, decimal.Zero, err
	}
	if in.Method != "" {
		payment.Method = in.Method
	}
	if in.Type != "" {
		payment.Type = in.Type
	}
	payment.Description = in.Description

	newBalance, err := s.apply(ctx, projectID, "adding contractor payment", func(ctx context.Context) (decimal.Decimal, error) {
		contractor, err := s.store.GetContractor(ctx, projectID, in.ContractorID)
		if err != nil {
			return decimal.Zero, err
		}
		if contractor == nil {
			return decimal.Zero, ledger.ErrNotFound
		}
		if err := s.guard(ctx, projectID, payment.Amount); err != nil {
			return decimal.Zero, err
		}

		if err := s.store.SaveContractorPayment(ctx, payment); err != nil {
			return decimal.Zero, err
		}

		contractor.AddPaid(payment.Amount, s.now())
		s.saveContractor(ctx, *contractor)

		return payment.Contribution(), nil
	})
	if err != nil {
		return payment, decimal.Zero, err
	}

	s.record(projectID, EventContractorPaymentCreated, payment.ID, payment.Contribution())
	return payment, newBalance, nil
}

// DeleteContractorPayment removes a payment, returning its amount to the
// balance and debiting the contractor's paid total, never below zero.
func (s *Service) DeleteContractorPayment(ctx context.Context, projectID, paymentID uuid.UUID) (decimal.Decimal, error) {
	var delta decimal.Decimal
	newBalance, err := s.apply(ctx, projectID, "deleting contractor payment", func(ctx context.Context) (decimal.Decimal, error) {
		payment, err := s.store.GetContractorPayment(ctx, projectID, paymentID)
		if err != nil {
			return decimal.Zero, err
		}
		if payment == nil {
			return decimal.Zero, ledger.ErrNotFound
		}

		if err := s.store.DeleteContractorPayment(ctx, projectID, paymentID); err != nil {
			return decimal.Zero, err
		}

		contractor, err := s.store.GetContractor(ctx, projectID, payment.ContractorID)
		switch {
		case err != nil:
			slog.Warn("failed to load contractor for paid total", "error", err, "project_id", projectID, "contractor_id", payment.ContractorID)
		case contractor != nil:
			contractor.SubtractPaid(payment.Amount, s.now())
			s.saveContractor(ctx, *contractor)
		}

		delta = payment.Contribution().Neg()
		return delta, nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.record(projectID, EventContractorPaymentDeleted, paymentID, delta)
	return newBalance, nil
}

// saveContractor writes the denormalized paid total. A failure is logged and
// does not undo the payment, which already counts toward the balance.
func (s *Service) saveContractor(ctx context.Context, contractor ledger.Contractor) {
	if err := s.store.SaveContractor(ctx, contractor); err != nil {
		slog.Warn("failed to update contractor paid total", "error", err, "project_id", contractor.ProjectID, "contractor_id", contractor.ID)
	}
}
