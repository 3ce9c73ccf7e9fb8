package ledger

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Stream string

const (
	StreamReceipts           Stream = "receipts"
	StreamAdvancePayments    Stream = "advancePayments"
	StreamContractorPayments Stream = "contractorPayments"
	StreamExpenses           Stream = "expenses"
)

// Streams lists every balance stream in reporting order.
var Streams = []Stream{
	StreamReceipts,
	StreamAdvancePayments,
	StreamContractorPayments,
	StreamExpenses,
}

type IntegrityViolation struct {
	Stream   Stream          `json:"stream"`
	RecordID uuid.UUID       `json:"recordId"`
	Field    string          `json:"field"`
	Value    decimal.Decimal `json:"value"`
	Limit    decimal.Decimal `json:"limit"`
}

// BalanceSnapshot is the result of one full aggregation over a project's
// streams. A partial snapshot had at least one stream fail to read and must
// not be trusted as the project balance.
type BalanceSnapshot struct {
	ProjectID               uuid.UUID            `json:"projectId"`
	TotalReceived           decimal.Decimal      `json:"totalReceived"`
	TotalAdvancesPaid       decimal.Decimal      `json:"totalAdvancesPaid"`
	TotalRefunded           decimal.Decimal      `json:"totalRefunded"`
	TotalContractorPayments decimal.Decimal      `json:"totalContractorPayments"`
	TotalExpensesPaid       decimal.Decimal      `json:"totalExpensesPaid"`
	Balance                 decimal.Decimal      `json:"balance"`
	Partial                 bool                 `json:"partial"`
	FailedStreams           []Stream             `json:"failedStreams,omitempty"`
	Violations              []IntegrityViolation `json:"violations,omitempty"`
	ComputedAt              time.Time            `json:"computedAt"`

	StreamErrors []*StreamReadError `json:"-"`
}

func NewSnapshot(projectID uuid.UUID) BalanceSnapshot {
	return BalanceSnapshot{
		ProjectID:               projectID,
		TotalReceived:           decimal.Zero,
		TotalAdvancesPaid:       decimal.Zero,
		TotalRefunded:           decimal.Zero,
		TotalContractorPayments: decimal.Zero,
		TotalExpensesPaid:       decimal.Zero,
		Balance:                 decimal.Zero,
	}
}

func (s *BalanceSnapshot) AddReceipts(receipts []Receipt) {
	for _, r := range receipts {
		s.TotalReceived = s.TotalReceived.Add(r.Amount)
	}
}

// AddAdvancePayments sums advance principal and refunds. A negative amount is
// clamped to zero and a refunded amount outside [0, Amount] is clamped to that
// range. Both are reported; the returned slice holds only the violations found
// in this call.
func (s *BalanceSnapshot) AddAdvancePayments(advances []AdvancePayment) []IntegrityViolation {
	var found []IntegrityViolation
	for _, a := range advances {
		amount := a.Amount
		if amount.IsNegative() {
			found = append(found, IntegrityViolation{
				Stream:   StreamAdvancePayments,
				RecordID: a.ID,
				Field:    "amount",
				Value:    amount,
				Limit:    decimal.Zero,
			})
			amount = decimal.Zero
		}

		refunded := a.RefundedAmount
		switch {
		case refunded.GreaterThan(amount):
			found = append(found, IntegrityViolation{
				Stream:   StreamAdvancePayments,
				RecordID: a.ID,
				Field:    "refundedAmount",
				Value:    refunded,
				Limit:    amount,
			})
			refunded = amount
		case refunded.IsNegative():
			found = append(found, IntegrityViolation{
				Stream:   StreamAdvancePayments,
				RecordID: a.ID,
				Field:    "refundedAmount",
				Value:    refunded,
				Limit:    decimal.Zero,
			})
			refunded = decimal.Zero
		}

		s.TotalAdvancesPaid = s.TotalAdvancesPaid.Add(amount)
		s.TotalRefunded = s.TotalRefunded.Add(refunded)
	}

	s.Violations = append(s.Violations, found...)
	return found
}

func (s *BalanceSnapshot) AddContractorPayments(payments []ContractorPayment) {
	for _, p := range payments {
		s.TotalContractorPayments = s.TotalContractorPayments.Add(p.Amount)
	}
}

func (s *BalanceSnapshot) AddExpenses(expenses []Expense) {
	for _, e := range expenses {
		if e.CountsTowardBalance() {
			s.TotalExpensesPaid = s.TotalExpensesPaid.Add(e.Amount)
		}
	}
}

// MarkFailed records a stream that could not be read. Its contribution stays
// zero and the snapshot becomes partial.
func (s *BalanceSnapshot) MarkFailed(stream Stream, err error) {
	s.Partial = true
	if !slices.Contains(s.FailedStreams, stream) {
		s.FailedStreams = append(s.FailedStreams, stream)
	}
	s.StreamErrors = append(s.StreamErrors, &StreamReadError{Stream: stream, Err: err})
}

// Err returns nil for a complete snapshot. For a partial one it matches
// ErrPartialSnapshot and every recorded StreamReadError.
func (s BalanceSnapshot) Err() error {
	if !s.Partial {
		return nil
	}
	errs := []error{ErrPartialSnapshot}
	for _, e := range s.StreamErrors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Settle computes the balance from the accumulated totals.
func (s *BalanceSnapshot) Settle(at time.Time) {
	s.Balance = s.TotalReceived.
		Sub(s.TotalAdvancesPaid.Sub(s.TotalRefunded)).
		Sub(s.TotalContractorPayments).
		Sub(s.TotalExpensesPaid)
	s.ComputedAt = at

	slices.SortFunc(s.FailedStreams, func(a, b Stream) int {
		return slices.Index(Streams, a) - slices.Index(Streams, b)
	})
}

// Components is the breakdown persisted on the project record.
func (s BalanceSnapshot) Components() BalanceComponents {
	return BalanceComponents{
		TotalReceived:           s.TotalReceived,
		TotalPaid:               s.TotalAdvancesPaid,
		TotalRefunded:           s.TotalRefunded,
		TotalContractorPayments: s.TotalContractorPayments,
		TotalExpenses:           s.TotalExpensesPaid,
	}
}
