// Package transactions records receipts, advances, contractor payments and
// expenses, and keeps the project balance in step with every change.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/billbatista/obra-balance/balance"
	"github.com/billbatista/obra-balance/eventlogger"
	"github.com/billbatista/obra-balance/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store interface {
	GetReceipt(ctx context.Context, projectID, receiptID uuid.UUID) (*ledger.Receipt, error)
	SaveReceipt(ctx context.Context, receipt ledger.Receipt) error
	DeleteReceipt(ctx context.Context, projectID, receiptID uuid.UUID) error

	GetAdvancePayment(ctx context.Context, projectID, advanceID uuid.UUID) (*ledger.AdvancePayment, error)
	SaveAdvancePayment(ctx context.Context, advance ledger.AdvancePayment) error
	DeleteAdvancePayment(ctx context.Context, projectID, advanceID uuid.UUID) error

	GetContractor(ctx context.Context, projectID, contractorID uuid.UUID) (*ledger.Contractor, error)
	SaveContractor(ctx context.Context, contractor ledger.Contractor) error
	GetContractorPayment(ctx context.Context, projectID, paymentID uuid.UUID) (*ledger.ContractorPayment, error)
	SaveContractorPayment(ctx context.Context, payment ledger.ContractorPayment) error
	DeleteContractorPayment(ctx context.Context, projectID, paymentID uuid.UUID) error

	GetExpense(ctx context.Context, projectID, expenseID uuid.UUID) (*ledger.Expense, error)
	SaveExpense(ctx context.Context, expense ledger.Expense) error
	DeleteExpense(ctx context.Context, projectID, expenseID uuid.UUID) error
}

// Balancer applies balance deltas and checks debits. balance.Engine
// satisfies it.
type Balancer interface {
	Apply(ctx context.Context, projectID uuid.UUID, commit func(ctx context.Context) (decimal.Decimal, error)) (decimal.Decimal, error)
	CheckAffordability(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal) (balance.Affordability, error)
}

type Recorder interface {
	Log(event eventlogger.Event)
}

type nopRecorder struct{}

func (nopRecorder) Log(eventlogger.Event) {}

type Service struct {
	store    Store
	balancer Balancer
	recorder Recorder
	places   int32
	now      func() time.Time
}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithCurrencyPlaces sets how many decimal places amounts are rounded to.
func WithCurrencyPlaces(places int32) Option {
	return func(s *Service) {
		s.places = places
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store Store, balancer Balancer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		balancer: balancer,
		recorder: nopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(s.places)
}

// guard refuses a debit the project cannot cover. It runs inside the commit
// so that in-process debits for the same project are checked one at a time.
func (s *Service) guard(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal) error {
	result, err := s.balancer.CheckAffordability(ctx, projectID, amount)
	if err != nil {
		return err
	}
	if !result.OK {
		return &InsufficientBalanceError{
			Amount:  result.Amount,
			Balance: result.Balance,
			Deficit: result.Deficit,
		}
	}
	return nil
}

func (s *Service) record(projectID uuid.UUID, eventType string, recordID uuid.UUID, delta decimal.Decimal) {
	s.recorder.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventType),
		eventlogger.WithProject(projectID),
		eventlogger.WithData(changeData{RecordID: recordID, Delta: delta}),
	))
}

// apply wraps Balancer.Apply and logs a failed adjustment, whose record is
// already committed and waits for reconciliation.
func (s *Service) apply(ctx context.Context, projectID uuid.UUID, op string, commit func(ctx context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	newBalance, err := s.balancer.Apply(ctx, projectID, commit)
	if err != nil {
		if errors.Is(err, ledger.ErrPersistenceFailure) {
			slog.Error("record committed but balance not adjusted", "error", err, "project_id", projectID, "operation", op)
		}
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return newBalance, nil
}

type changeData struct {
	RecordID uuid.UUID       `json:"recordId"`
	Delta    decimal.Decimal `json:"delta"`
}
