package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// advanceDoc is the stored layout of the advances collection, which holds
// both received payments and paid advances.
type advanceDoc struct {
	ledger.AdvancePayment
	TransactionType ledger.TransactionType `json:"transactionType"`
}

func (s *Store) SetCurrentBalance(ctx context.Context, projectID uuid.UUID, balance decimal.Decimal, at time.Time) error {
	return s.UpdateProject(ctx, projectID, func(p *ledger.Project) {
		p.CurrentBalance = balance
		p.UpdatedAt = at
	})
}

func (s *Store) SaveBalanceSnapshot(ctx context.Context, projectID uuid.UUID, balance decimal.Decimal, details ledger.BalanceComponents, at time.Time) error {
	return s.UpdateProject(ctx, projectID, func(p *ledger.Project) {
		p.CurrentBalance = balance
		p.BalanceDetails = details
		p.LastBalanceCalculation = &at
		p.UpdatedAt = at
	})
}

func (s *Store) listAdvances(ctx context.Context, projectID uuid.UUID, kind ledger.TransactionType) ([]ledger.AdvancePayment, error) {
	var advances []ledger.AdvancePayment
	err := s.list(ctx, projectID, BucketAdvances, func(data []byte) error {
		var doc advanceDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		if doc.TransactionType == kind {
			advances = append(advances, doc.AdvancePayment)
		}
		return nil
	})
	return advances, err
}

func (s *Store) getAdvance(ctx context.Context, projectID, id uuid.UUID, kind ledger.TransactionType) (*ledger.AdvancePayment, error) {
	var doc advanceDoc
	found, err := s.get(ctx, projectID, id, BucketAdvances, &doc)
	if err != nil {
		return nil, err
	}
	if !found || doc.TransactionType != kind {
		return nil, nil
	}
	return &doc.AdvancePayment, nil
}

func (s *Store) ListReceipts(ctx context.Context, projectID uuid.UUID) ([]ledger.Receipt, error) {
	advances, err := s.listAdvances(ctx, projectID, ledger.TransactionReceive)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	receipts := make([]ledger.Receipt, 0, len(advances))
	for _, a := range advances {
		receipts = append(receipts, receiptFromDoc(a))
	}
	return receipts, nil
}

func (s *Store) GetReceipt(ctx context.Context, projectID, receiptID uuid.UUID) (*ledger.Receipt, error) {
	a, err := s.getAdvance(ctx, projectID, receiptID, ledger.TransactionReceive)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}
	if a == nil {
		return nil, nil
	}
	receipt := receiptFromDoc(*a)
	return &receipt, nil
}

func (s *Store) SaveReceipt(ctx context.Context, receipt ledger.Receipt) error {
	doc := advanceDoc{
		AdvancePayment: ledger.AdvancePayment{
			ID:           receipt.ID,
			ProjectID:    receipt.ProjectID,
			Amount:       receipt.Amount,
			RefundStatus: ledger.RefundStatusNone,
			Description:  receipt.Description,
			Date:         receipt.Date,
			CreatedAt:    receipt.CreatedAt,
			UpdatedAt:    receipt.UpdatedAt,
		},
		TransactionType: ledger.TransactionReceive,
	}
	if err := s.put(ctx, receipt.ProjectID, receipt.ID, BucketAdvances, doc); err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

func (s *Store) DeleteReceipt(ctx context.Context, projectID, receiptID uuid.UUID) error {
	if err := s.delete(ctx, projectID, receiptID, BucketAdvances); err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	return nil
}

func (s *Store) ListAdvancePayments(ctx context.Context, projectID uuid.UUID) ([]ledger.AdvancePayment, error) {
	advances, err := s.listAdvances(ctx, projectID, ledger.TransactionPayment)
	if err != nil {
		return nil, fmt.Errorf("failed to list advance payments: %w", err)
	}
	return advances, nil
}

func (s *Store) GetAdvancePayment(ctx context.Context, projectID, advanceID uuid.UUID) (*ledger.AdvancePayment, error) {
	a, err := s.getAdvance(ctx, projectID, advanceID, ledger.TransactionPayment)
	if err != nil {
		return nil, fmt.Errorf("failed to read advance payment: %w", err)
	}
	return a, nil
}

func (s *Store) SaveAdvancePayment(ctx context.Context, advance ledger.AdvancePayment) error {
	doc := advanceDoc{AdvancePayment: advance, TransactionType: ledger.TransactionPayment}
	if err := s.put(ctx, advance.ProjectID, advance.ID, BucketAdvances, doc); err != nil {
		return fmt.Errorf("failed to save advance payment: %w", err)
	}
	return nil
}

func (s *Store) DeleteAdvancePayment(ctx context.Context, projectID, advanceID uuid.UUID) error {
	if err := s.delete(ctx, projectID, advanceID, BucketAdvances); err != nil {
		return fmt.Errorf("failed to delete advance payment: %w", err)
	}
	return nil
}

func (s *Store) ListContractorPayments(ctx context.Context, projectID uuid.UUID) ([]ledger.ContractorPayment, error) {
	var payments []ledger.ContractorPayment
	err := s.list(ctx, projectID, BucketContractorPayments, func(data []byte) error {
		var p ledger.ContractorPayment
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		payments = append(payments, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list contractor payments: %w", err)
	}
	return payments, nil
}

func (s *Store) GetContractorPayment(ctx context.Context, projectID, paymentID uuid.UUID) (*ledger.ContractorPayment, error) {
	var payment ledger.ContractorPayment
	found, err := s.get(ctx, projectID, paymentID, BucketContractorPayments, &payment)
	if err != nil {
		return nil, fmt.Errorf("failed to read contractor payment: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &payment, nil
}

func (s *Store) SaveContractorPayment(ctx context.Context, payment ledger.ContractorPayment) error {
	if err := s.put(ctx, payment.ProjectID, payment.ID, BucketContractorPayments, payment); err != nil {
		return fmt.Errorf("failed to save contractor payment: %w", err)
	}
	return nil
}

func (s *Store) DeleteContractorPayment(ctx context.Context, projectID, paymentID uuid.UUID) error {
	if err := s.delete(ctx, projectID, paymentID, BucketContractorPayments); err != nil {
		return fmt.Errorf("failed to delete contractor payment: %w", err)
	}
	return nil
}

func (s *Store) GetContractor(ctx context.Context, projectID, contractorID uuid.UUID) (*ledger.Contractor, error) {
	var contractor ledger.Contractor
	found, err := s.get(ctx, projectID, contractorID, BucketContractors, &contractor)
	if err != nil {
		return nil, fmt.Errorf("failed to read contractor: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &contractor, nil
}

func (s *Store) SaveContractor(ctx context.Context, contractor ledger.Contractor) error {
	if err := s.put(ctx, contractor.ProjectID, contractor.ID, BucketContractors, contractor); err != nil {
		return fmt.Errorf("failed to save contractor: %w", err)
	}
	return nil
}

func (s *Store) ListExpenses(ctx context.Context, projectID uuid.UUID) ([]ledger.Expense, error) {
	var expenses []ledger.Expense
	err := s.list(ctx, projectID, BucketExpenses, func(data []byte) error {
		var e ledger.Expense
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		expenses = append(expenses, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

func (s *Store) GetExpense(ctx context.Context, projectID, expenseID uuid.UUID) (*ledger.Expense, error) {
	var expense ledger.Expense
	found, err := s.get(ctx, projectID, expenseID, BucketExpenses, &expense)
	if err != nil {
		return nil, fmt.Errorf("failed to read expense: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &expense, nil
}

func (s *Store) SaveExpense(ctx context.Context, expense ledger.Expense) error {
	if err := s.put(ctx, expense.ProjectID, expense.ID, BucketExpenses, expense); err != nil {
		return fmt.Errorf("failed to save expense: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, projectID, expenseID uuid.UUID) error {
	if err := s.delete(ctx, projectID, expenseID, BucketExpenses); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

func receiptFromDoc(a ledger.AdvancePayment) ledger.Receipt {
	return ledger.Receipt{
		ID:          a.ID,
		ProjectID:   a.ProjectID,
		Amount:      a.Amount,
		Description: a.Description,
		Date:        a.Date,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
