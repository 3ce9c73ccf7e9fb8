package transactions

import (
	"context"
	"time"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventExpenseCreated = "expense.created"
	EventExpensePaid    = "expense.paid"
	EventExpenseUpdated = "expense.updated"
	EventExpenseDeleted = "expense.deleted"
)

type ExpenseInput struct {
	Amount      decimal.Decimal      `json:"amount"`
	Status      ledger.PaymentStatus `json:"paymentStatus"`
	Category    string               `json:"category"`
	Recipient   string               `json:"recipient"`
	Description string               `json:"description"`
	Date        time.Time            `json:"date"`
}

// AddExpense records an expense. Unpaid expenses leave the balance alone;
// paid ones are debited and refused when the project cannot cover them.
func (s *Service) AddExpense(ctx context.Context, projectID uuid.UUID, in ExpenseInput) (ledger.Expense, decimal.Decimal, error) {
	expense, err := ledger.NewExpense(projectID, s.round(in.Amount), in.Status, in.Category, in.Date)
	if err != nil {
		return ledger.Expense{}, decimal.Zero, err
	}
	expense.Recipient = in.Recipient
	expense.Description = in.Description

	newBalance, err := s.apply(ctx, projectID, "adding expense", func(ctx context.Context) (decimal.Decimal, error) {
		if expense.CountsTowardBalance() {
			if err := s.guard(ctx, projectID, expense.Amount); err != nil {
				return decimal.Zero, err
			}
		}
		if err := s.store.SaveExpense(ctx, expense); err != nil {
			return decimal.Zero, err
		}
		return expense.Contribution(), nil
	})
	if err != nil {
		return expense, decimal.Zero, err
	}

	s.record(projectID, EventExpenseCreated, expense.ID, expense.Contribution())
	return expense, newBalance, nil
}

// MarkExpensePaid moves an unpaid expense to paid and debits it. There is no
// transition back to unpaid.
func (s *Service) MarkExpensePaid(ctx context.Context, projectID, expenseID uuid.UUID) (ledger.Expense, decimal.Decimal, error) {
	var expense ledger.Expense
	newBalance, err := s.apply(ctx, projectID, "paying expense", func(ctx context.Context) (decimal.Decimal, error) {
		stored, err := s.store.GetExpense(ctx, projectID, expenseID)
		if err != nil {
			return decimal.Zero, err
		}
		if stored == nil {
			return decimal.Zero, ledger.ErrNotFound
		}

		expense = *stored
		if err := expense.MarkPaid(s.now()); err != nil {
			return decimal.Zero, err
		}
		if expense.CountsTowardBalance() {
			if err := s.guard(ctx, projectID, expense.Amount); err != nil {
				return decimal.Zero, err
			}
		}
		if err := s.store.SaveExpense(ctx, expense); err != nil {
			return decimal.Zero, err
		}
		return expense.Contribution(), nil
	})
	if err != nil {
		return expense, decimal.Zero, err
	}

	s.record(projectID, EventExpensePaid, expense.ID, expense.Contribution())
	return expense, newBalance, nil
}

// UpdateExpenseAmount changes an expense amount. For a paid expense the
// balance moves by the difference and an increase must be affordable.
func (s *Service) UpdateExpenseAmount(ctx context.Context, projectID, expenseID uuid.UUID, amount decimal.Decimal) (ledger.Expense, decimal.Decimal, error) {
	amount = s.round(amount)
	if !amount.IsPositive() {
		return ledger.Expense{}, decimal.Zero, ledger.ErrInvalidAmount
	}

	var expense ledger.Expense
	var delta decimal.Decimal
	newBalance, err := s.apply(ctx, projectID, "updating expense", func(ctx context.Context) (decimal.Decimal, error) {
		stored, err := s.store.GetExpense(ctx, projectID, expenseID)
		if err != nil {
			return decimal.Zero, err
		}
		if stored == nil {
			return decimal.Zero, ledger.ErrNotFound
		}

		expense = *stored
		before := expense.Contribution()
		expense.Amount = amount
		expense.UpdatedAt = s.now()
		delta = expense.Contribution().Sub(before)

		if delta.IsNegative() {
			if err := s.guard(ctx, projectID, delta.Neg()); err != nil {
				return decimal.Zero, err
			}
		}
		if err := s.store.SaveExpense(ctx, expense); err != nil {
			return decimal.Zero, err
		}
		return delta, nil
	})
	if err != nil {
		return expense, decimal.Zero, err
	}

	s.record(projectID, EventExpenseUpdated, expense.ID, delta)
	return expense, newBalance, nil
}

// DeleteExpense removes an expense. A paid expense is credited back.
func (s *Service) DeleteExpense(ctx context.Context, projectID, expenseID uuid.UUID) (decimal.Decimal, error) {
	var delta decimal.Decimal
	newBalance, err := s.apply(ctx, projectID, "deleting expense", func(ctx context.Context) (decimal.Decimal, error) {
		stored, err := s.store.GetExpense(ctx, projectID, expenseID)
		if err != nil {
			return decimal.Zero, err
		}
		if stored == nil {
			return decimal.Zero, ledger.ErrNotFound
		}

		if err := s.store.DeleteExpense(ctx, projectID, expenseID); err != nil {
			return decimal.Zero, err
		}
		delta = stored.Contribution().Neg()
		return delta, nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.record(projectID, EventExpenseDeleted, expenseID, delta)
	return newBalance, nil
}
